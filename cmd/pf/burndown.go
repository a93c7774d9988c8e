package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var burndownCmd = &cobra.Command{
	Use:     "burndown <sprint-id>",
	GroupID: "views",
	Short:   "Show a sprint's burndown chart",
	Long: `Show a sprint's burndown chart.

The remaining points per day are reconstructed from each issue's status
history, so the chart is accurate even though no snapshots are stored.
The series covers at most 30 days.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		points, err := charts.Burndown(rootCtx, args[0])
		if err != nil {
			FatalError("building burndown: %v", err)
		}

		if jsonOutput {
			outputJSON(points)
			return
		}
		if len(points) == 0 {
			fmt.Println("Sprint has not started yet")
			return
		}

		maxPoints := points[0].RemainingPoints
		for _, p := range points {
			if p.RemainingPoints > maxPoints {
				maxPoints = p.RemainingPoints
			}
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "DAY\tREMAINING\tIDEAL\t")
		for _, p := range points {
			fmt.Fprintf(w, "%s\t%d\t%.1f\t%s\n",
				p.Day.Format("2006-01-02"), p.RemainingPoints, p.IdealPoints,
				bar(p.RemainingPoints, maxPoints))
		}
		_ = w.Flush()
	},
}

// bar renders a proportional text bar, 1 block per point scaled to fit 40
// columns.
func bar(value, max int) string {
	if max <= 0 || value <= 0 {
		return ""
	}
	width := value * 40 / max
	if width == 0 {
		width = 1
	}
	return strings.Repeat("#", width)
}

func init() {
	rootCmd.AddCommand(burndownCmd)
}
