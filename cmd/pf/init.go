package main

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/planfold/planfold/internal/types"
)

var initCmd = &cobra.Command{
	Use:     "init <key> <name>",
	GroupID: "setup",
	Short:   "Create a new project",
	Long: `Create a new project with the given key and name.

The key prefixes every issue in the project (e.g. key PLAT yields PLAT-1,
PLAT-2, ...). Keys are uppercase, 2-10 characters, and must start with a
letter.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key := strings.ToUpper(args[0])
		name := args[1]

		columnNames, _ := cmd.Flags().GetStringSlice("columns")
		columns := make([]types.Status, 0, len(columnNames))
		for _, c := range columnNames {
			columns = append(columns, types.Status(c))
		}

		project := &types.Project{
			Key:             key,
			Name:            name,
			WorkflowColumns: columns,
		}
		if err := store.CreateProject(rootCtx, project); err != nil {
			FatalError("creating project: %v", err)
		}

		if jsonOutput {
			outputJSON(project)
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Created project %s (%s)\n", green("✓"), project.Key, project.Name)
		names := make([]string, len(project.WorkflowColumns))
		for i, c := range project.WorkflowColumns {
			names[i] = string(c)
		}
		fmt.Printf("  Workflow: %s\n", strings.Join(names, " > "))
	},
}

func init() {
	initCmd.Flags().StringSlice("columns", nil, "Workflow columns in board order (default: To Do, In Progress, Review, Done)")
	rootCmd.AddCommand(initCmd)
}
