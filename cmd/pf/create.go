package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/planfold/planfold/internal/types"
	"github.com/planfold/planfold/internal/workflow"
)

var createCmd = &cobra.Command{
	Use:     "create <project-key> <title>",
	GroupID: "issues",
	Short:   "Create a new issue",
	Long: `Create a new issue in the given project.

The issue key is allocated atomically from the project's counter, so keys
are sequential and never reused even when multiple clients create issues
concurrently. New issues land in the backlog in the project's first
workflow column.`,
	Args: cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		projectKey := strings.ToUpper(args[0])
		title := strings.Join(args[1:], " ")

		issueType, _ := cmd.Flags().GetString("type")
		priority, _ := cmd.Flags().GetInt("priority")
		points, _ := cmd.Flags().GetInt("points")
		assignee, _ := cmd.Flags().GetString("assignee")

		project, err := store.GetProjectByKey(rootCtx, projectKey)
		if err != nil {
			FatalErrorWithHint(fmt.Sprintf("project %s: %v", projectKey, err),
				"Run 'pf init <key> <name>' to create a project")
		}

		issue, err := engine.CreateIssue(rootCtx, workflow.CreateIssueRequest{
			ProjectID:   project.ID,
			Title:       title,
			Type:        types.IssueType(issueType),
			Priority:    priority,
			StoryPoints: points,
			AssigneeRef: assignee,
			Actor:       getActor(),
		})
		if err != nil {
			FatalError("creating issue: %v", err)
		}

		if jsonOutput {
			outputJSON(issue)
			return
		}
		fmt.Printf("Created %s: %s\n", issue.IssueKey, issue.Title)
	},
}

func init() {
	createCmd.Flags().StringP("type", "t", "task", "Issue type: task, bug, story, epic, chore")
	createCmd.Flags().IntP("priority", "p", 2, "Priority: 0 (critical) to 4 (trivial)")
	createCmd.Flags().Int("points", 0, "Story point estimate")
	createCmd.Flags().StringP("assignee", "a", "", "Assignee (username or user id)")
	rootCmd.AddCommand(createCmd)
}
