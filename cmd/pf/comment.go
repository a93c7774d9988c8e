package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var commentCmd = &cobra.Command{
	Use:     "comment <issue-key> <text>",
	GroupID: "issues",
	Short:   "Add a comment to an issue",
	Args:    cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		issueKey := strings.ToUpper(args[0])
		text := strings.Join(args[1:], " ")

		issue, err := store.GetIssue(rootCtx, issueKey)
		if err != nil {
			FatalError("finding %s: %v", issueKey, err)
		}

		comment, err := store.AddComment(rootCtx, issue.ID, getActor(), text)
		if err != nil {
			FatalError("adding comment: %v", err)
		}

		if jsonOutput {
			outputJSON(comment)
			return
		}
		fmt.Printf("Commented on %s\n", issue.IssueKey)
	},
}

func init() {
	rootCmd.AddCommand(commentCmd)
}
