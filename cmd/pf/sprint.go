package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/planfold/planfold/internal/sprints"
	"github.com/planfold/planfold/internal/timeparsing"
	"github.com/planfold/planfold/internal/types"
)

var sprintCmd = &cobra.Command{
	Use:     "sprint",
	GroupID: "sprints",
	Short:   "Manage sprints",
	Long: `Manage sprints: create, start, complete, and assign issues.

Sprints move through planned, active, and completed, in that order. Only
one sprint per project may be active at a time. Completing a sprint moves
its unfinished issues back to the backlog.`,
}

var sprintCreateCmd = &cobra.Command{
	Use:   "create <project-key> <name>",
	Short: "Create a planned sprint",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		projectKey := strings.ToUpper(args[0])
		name := strings.Join(args[1:], " ")

		project, err := store.GetProjectByKey(rootCtx, projectKey)
		if err != nil {
			FatalError("project %s: %v", projectKey, err)
		}

		goal, _ := cmd.Flags().GetString("goal")
		req := sprints.CreateSprintRequest{
			ProjectID: project.ID,
			Name:      name,
			Goal:      goal,
		}

		now := time.Now()
		if startFlag, _ := cmd.Flags().GetString("start"); startFlag != "" {
			t, err := timeparsing.Parse(startFlag, now)
			if err != nil {
				FatalError("%v", err)
			}
			req.StartDate = &t
		}
		if endFlag, _ := cmd.Flags().GetString("end"); endFlag != "" {
			base := now
			if req.StartDate != nil {
				base = *req.StartDate
			}
			t, err := timeparsing.Parse(endFlag, base)
			if err != nil {
				FatalError("%v", err)
			}
			req.EndDate = &t
		}

		sprint, err := mgr.Create(rootCtx, req)
		if err != nil {
			FatalError("creating sprint: %v", err)
		}

		if jsonOutput {
			outputJSON(sprint)
			return
		}
		fmt.Printf("Created sprint %q (%s)\n", sprint.Name, sprint.ID)
	},
}

var sprintStartCmd = &cobra.Command{
	Use:   "start <sprint-id>",
	Short: "Start a planned sprint",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		sprint, err := mgr.Start(rootCtx, args[0], getActor())
		if err != nil {
			if errors.Is(err, sprints.ErrConflict) {
				FatalErrorWithHint(fmt.Sprintf("starting sprint: %v", err),
					"Complete the currently active sprint first")
			}
			FatalError("starting sprint: %v", err)
		}

		if jsonOutput {
			outputJSON(sprint)
			return
		}
		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Sprint %q is now active\n", green("✓"), sprint.Name)
	},
}

var sprintCompleteCmd = &cobra.Command{
	Use:   "complete <sprint-id>",
	Short: "Complete an active sprint",
	Long: `Complete an active sprint.

Issues that are not Done move back to the backlog. Done issues keep their
sprint membership so velocity reports can attribute them.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		result, err := mgr.Complete(rootCtx, args[0], getActor())
		if err != nil {
			FatalError("completing sprint: %v", err)
		}

		if jsonOutput {
			outputJSON(result)
			return
		}
		fmt.Printf("Completed sprint %q\n", result.Sprint.Name)
		if result.MovedToBacklog > 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("%s %d unfinished issue(s) moved to backlog\n",
				yellow("!"), result.MovedToBacklog)
		}
	},
}

var sprintAssignCmd = &cobra.Command{
	Use:   "assign <issue-key> <sprint-id>",
	Short: "Assign an issue to a sprint",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		issueKey := strings.ToUpper(args[0])

		issue, err := mgr.AssignIssue(rootCtx, issueKey, args[1])
		if err != nil {
			FatalError("assigning %s: %v", issueKey, err)
		}

		if jsonOutput {
			outputJSON(issue)
			return
		}
		fmt.Printf("Assigned %s to sprint %s\n", issue.IssueKey, *issue.SprintID)
	},
}

var sprintListCmd = &cobra.Command{
	Use:   "list <project-key>",
	Short: "List a project's sprints",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		projectKey := strings.ToUpper(args[0])

		project, err := store.GetProjectByKey(rootCtx, projectKey)
		if err != nil {
			FatalError("project %s: %v", projectKey, err)
		}

		statusStr, _ := cmd.Flags().GetString("status")
		statusFilter := types.SprintStatus(strings.ToLower(statusStr))

		list, err := store.ListSprints(rootCtx, project.ID, statusFilter)
		if err != nil {
			FatalError("listing sprints: %v", err)
		}

		if jsonOutput {
			outputJSON(list)
			return
		}
		if len(list) == 0 {
			fmt.Println("No sprints found")
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSTART\tEND")
		for _, sp := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				sp.ID, sp.Name, sp.Status, formatDate(sp.StartDate), formatDate(sp.EndDate))
		}
		_ = w.Flush()
	},
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}

func init() {
	sprintCreateCmd.Flags().StringP("goal", "g", "", "Sprint goal")
	sprintCreateCmd.Flags().String("start", "", "Planned start date (2026-01-05, +1w, \"next monday\")")
	sprintCreateCmd.Flags().String("end", "", "Planned end date, relative dates resolve against --start")
	sprintListCmd.Flags().StringP("status", "s", "", "Filter by status: planned, active, completed")

	sprintCmd.AddCommand(sprintCreateCmd)
	sprintCmd.AddCommand(sprintStartCmd)
	sprintCmd.AddCommand(sprintCompleteCmd)
	sprintCmd.AddCommand(sprintAssignCmd)
	sprintCmd.AddCommand(sprintListCmd)
	rootCmd.AddCommand(sprintCmd)
}
