package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var velocityCmd = &cobra.Command{
	Use:     "velocity <project-key>",
	GroupID: "views",
	Short:   "Show completed-sprint velocity for a project",
	Long: `Show commitment versus completed story points for the project's
most recently completed sprints, oldest first.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		projectKey := strings.ToUpper(args[0])

		project, err := store.GetProjectByKey(rootCtx, projectKey)
		if err != nil {
			FatalError("project %s: %v", projectKey, err)
		}

		limit, _ := cmd.Flags().GetInt("limit")
		points, err := charts.Velocity(rootCtx, project.ID, limit)
		if err != nil {
			FatalError("building velocity: %v", err)
		}

		if jsonOutput {
			outputJSON(points)
			return
		}
		if len(points) == 0 {
			fmt.Println("No completed sprints yet")
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SPRINT\tCOMMITTED\tCOMPLETED")
		for _, p := range points {
			fmt.Fprintf(w, "%s\t%d\t%d\n", p.SprintName, p.Commitment, p.Completed)
		}
		_ = w.Flush()
	},
}

func init() {
	velocityCmd.Flags().IntP("limit", "n", 5, "Number of completed sprints to include")
	rootCmd.AddCommand(velocityCmd)
}
