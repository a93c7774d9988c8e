package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/planfold/planfold/internal/types"
)

var showCmd = &cobra.Command{
	Use:     "show <issue-key>",
	GroupID: "views",
	Short:   "Show an issue with its history and comments",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		issueKey := strings.ToUpper(args[0])

		issue, err := store.GetIssue(rootCtx, issueKey)
		if err != nil {
			FatalError("finding %s: %v", issueKey, err)
		}

		if jsonOutput {
			outputJSON(issue)
			return
		}
		printIssue(issue)
	},
}

func printIssue(issue *types.Issue) {
	fmt.Printf("%s: %s\n", issue.IssueKey, issue.Title)
	fmt.Printf("  Status:   %s\n", issue.Status)
	fmt.Printf("  Type:     %s  Priority: %d  Points: %d\n",
		issue.IssueType, issue.Priority, issue.StoryPoints)
	if issue.Assignee != "" {
		fmt.Printf("  Assignee: %s\n", issue.Assignee)
	}
	if issue.SprintID != nil {
		fmt.Printf("  Sprint:   %s\n", *issue.SprintID)
	} else {
		fmt.Printf("  Sprint:   (backlog)\n")
	}
	fmt.Printf("  Created:  %s\n", issue.CreatedAt.Local().Format("2006-01-02 15:04"))

	if len(issue.History) > 0 {
		fmt.Println("\nHistory:")
		for _, ev := range issue.History {
			ts := ev.CreatedAt.Local().Format("2006-01-02 15:04")
			switch ev.Action {
			case types.EventStatusChange:
				fmt.Printf("  %s  %s: %s → %s (%s)\n", ts, ev.Action, ev.From, ev.To, ev.Actor)
			default:
				fmt.Printf("  %s  %s (%s)\n", ts, ev.Action, ev.Actor)
			}
		}
	}

	if len(issue.Comments) > 0 {
		fmt.Println("\nComments:")
		for _, c := range issue.Comments {
			ts := c.CreatedAt.Local().Format("2006-01-02 15:04")
			fmt.Printf("  [%s] %s: %s\n", ts, c.AuthorID, c.Text)
		}
	}
}

func init() {
	rootCmd.AddCommand(showCmd)
}
