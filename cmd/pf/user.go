package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/planfold/planfold/internal/types"
)

var userCmd = &cobra.Command{
	Use:     "user",
	GroupID: "setup",
	Short:   "Manage users",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Register a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		displayName, _ := cmd.Flags().GetString("name")
		roleStr, _ := cmd.Flags().GetString("role")

		role := types.Role(roleStr)
		if !role.IsValid() {
			FatalErrorWithHint(fmt.Sprintf("invalid role %q", roleStr),
				"Valid roles: admin, project-lead, member")
		}

		user := &types.User{
			Username:    args[0],
			DisplayName: displayName,
			Role:        role,
		}
		if err := store.CreateUser(rootCtx, user); err != nil {
			FatalError("creating user: %v", err)
		}

		if jsonOutput {
			outputJSON(user)
			return
		}
		fmt.Printf("Added user %s (%s)\n", user.Username, user.Role)
	},
}

var userShowCmd = &cobra.Command{
	Use:   "show <username>",
	Short: "Show a user",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		user, err := store.ResolveUser(rootCtx, args[0])
		if err != nil {
			FatalError("finding user %s: %v", args[0], err)
		}

		if jsonOutput {
			outputJSON(user)
			return
		}
		fmt.Printf("%s (%s)\n", user.Username, user.Role)
		if user.DisplayName != "" {
			fmt.Printf("  Name: %s\n", user.DisplayName)
		}
		fmt.Printf("  ID:   %s\n", user.ID)
	},
}

func init() {
	userAddCmd.Flags().String("name", "", "Display name")
	userAddCmd.Flags().String("role", "member", "Role: admin, project-lead, member")

	userCmd.AddCommand(userAddCmd)
	userCmd.AddCommand(userShowCmd)
	rootCmd.AddCommand(userCmd)
}
