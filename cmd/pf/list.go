package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/planfold/planfold/internal/types"
)

var listCmd = &cobra.Command{
	Use:     "list <project-key>",
	GroupID: "views",
	Short:   "List issues in a project",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		projectKey := strings.ToUpper(args[0])

		project, err := store.GetProjectByKey(rootCtx, projectKey)
		if err != nil {
			FatalError("project %s: %v", projectKey, err)
		}

		statusFlag, _ := cmd.Flags().GetString("status")
		assigneeFlag, _ := cmd.Flags().GetString("assignee")
		sprintFlag, _ := cmd.Flags().GetString("sprint")
		backlog, _ := cmd.Flags().GetBool("backlog")
		limit, _ := cmd.Flags().GetInt("limit")

		filter := types.IssueFilter{
			ProjectID: project.ID,
			Backlog:   backlog,
			Limit:     limit,
		}
		if statusFlag != "" {
			st := parseStatus(statusFlag)
			filter.Status = &st
		}
		if assigneeFlag != "" {
			filter.Assignee = &assigneeFlag
		}
		if sprintFlag != "" {
			filter.SprintID = &sprintFlag
		}

		issues, err := store.ListIssues(rootCtx, filter)
		if err != nil {
			FatalError("listing issues: %v", err)
		}

		if jsonOutput {
			outputJSON(issues)
			return
		}
		if len(issues) == 0 {
			fmt.Println("No issues found")
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tSTATUS\tPTS\tASSIGNEE\tTITLE")
		for _, issue := range issues {
			assignee := issue.Assignee
			if assignee == "" {
				assignee = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
				issue.IssueKey, issue.Status, issue.StoryPoints, assignee, issue.Title)
		}
		_ = w.Flush()
	},
}

func init() {
	listCmd.Flags().StringP("status", "s", "", "Filter by status")
	listCmd.Flags().StringP("assignee", "a", "", "Filter by assignee")
	listCmd.Flags().String("sprint", "", "Filter by sprint id")
	listCmd.Flags().Bool("backlog", false, "Only backlog issues (no sprint)")
	listCmd.Flags().IntP("limit", "n", 0, "Limit number of results (0 = no limit)")
	rootCmd.AddCommand(listCmd)
}
