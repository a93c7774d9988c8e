package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var projectsCmd = &cobra.Command{
	Use:     "projects",
	GroupID: "views",
	Short:   "List all projects",
	Args:    cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		list, err := store.ListProjects(rootCtx)
		if err != nil {
			FatalError("listing projects: %v", err)
		}

		if jsonOutput {
			outputJSON(list)
			return
		}
		if len(list) == 0 {
			fmt.Println("No projects yet. Run 'pf init <key> <name>' to create one.")
			return
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tNAME\tISSUES")
		for _, p := range list {
			fmt.Fprintf(w, "%s\t%s\t%d\n", p.Key, p.Name, p.IssueCounter)
		}
		_ = w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(projectsCmd)
}
