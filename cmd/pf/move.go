package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/planfold/planfold/internal/types"
	"github.com/planfold/planfold/internal/workflow"
)

var moveCmd = &cobra.Command{
	Use:     "move <issue-key> <status>",
	GroupID: "issues",
	Short:   "Move an issue to another workflow column",
	Long: `Move an issue to another workflow column.

Admins and project leads may move issues between any columns. Members are
limited to advancing their work: To Do to In Progress, In Progress to
Review or Done, and Review back to In Progress or on to Done.

Moving an issue to its current column is a no-op.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		issueKey := strings.ToUpper(args[0])
		target := parseStatus(args[1])

		issue, err := engine.Transition(rootCtx, issueKey, target, currentActor())
		if err != nil {
			if errors.Is(err, workflow.ErrForbidden) {
				FatalErrorWithHint(fmt.Sprintf("moving %s: %v", issueKey, err),
					"Members can only advance their own work; ask a project lead")
			}
			FatalError("moving %s: %v", issueKey, err)
		}

		if jsonOutput {
			outputJSON(issue)
			return
		}
		fmt.Printf("%s is now %s\n", issue.IssueKey, issue.Status)
	},
}

// parseStatus accepts shell-friendly aliases (todo, in-progress) alongside
// the canonical column names. Unrecognized names pass through unchanged so
// projects with custom columns still work.
func parseStatus(s string) types.Status {
	switch strings.ToLower(strings.NewReplacer("-", "", "_", "", " ", "").Replace(s)) {
	case "todo":
		return types.StatusToDo
	case "inprogress":
		return types.StatusInProgress
	case "review":
		return types.StatusReview
	case "done":
		return types.StatusDone
	}
	return types.Status(s)
}

func init() {
	rootCmd.AddCommand(moveCmd)
}
