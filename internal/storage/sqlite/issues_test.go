package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"golang.org/x/sync/errgroup"

	"github.com/planfold/planfold/internal/storage"
	"github.com/planfold/planfold/internal/types"
)

const testActor = "alice"

func TestCreateIssueAllocatesSequentialKeys(t *testing.T) {
	store := newTestStore(t)
	project := newTestProject(t, store, "SEQ")
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		issue := &types.Issue{ProjectID: project.ID, Title: fmt.Sprintf("Issue %d", i)}
		if err := store.CreateIssue(ctx, issue, testActor); err != nil {
			t.Fatalf("CreateIssue %d failed: %v", i, err)
		}
		want := fmt.Sprintf("SEQ-%d", i)
		if issue.IssueKey != want {
			t.Errorf("Expected key %s, got %s", want, issue.IssueKey)
		}
	}

	got, err := store.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if got.IssueCounter != 5 {
		t.Errorf("Expected counter 5, got %d", got.IssueCounter)
	}
}

// Concurrent creators must each get a unique key with no gaps: the counter
// read and bump are serialized by the IMMEDIATE transaction.
func TestCreateIssueConcurrentKeysUnique(t *testing.T) {
	store := newTestStore(t)
	project := newTestProject(t, store, "CONC")
	ctx := context.Background()

	const n = 20
	keys := make([]string, n)

	var g errgroup.Group
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			issue := &types.Issue{ProjectID: project.ID, Title: fmt.Sprintf("Concurrent %d", i)}
			if err := store.CreateIssue(ctx, issue, testActor); err != nil {
				return err
			}
			keys[i] = issue.IssueKey
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("Concurrent CreateIssue failed: %v", err)
	}

	sort.Strings(keys)
	seen := make(map[string]bool, n)
	for _, key := range keys {
		if seen[key] {
			t.Errorf("Duplicate issue key allocated: %s", key)
		}
		seen[key] = true
	}
	for i := 1; i <= n; i++ {
		want := fmt.Sprintf("CONC-%d", i)
		if !seen[want] {
			t.Errorf("Expected key %s to be allocated, missing from %v", want, keys)
		}
	}
}

func TestCreateIssueUnknownProject(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	issue := &types.Issue{ProjectID: "nonexistent", Title: "Orphan"}
	err := store.CreateIssue(ctx, issue, testActor)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

// A failed creation must not advance the counter: the bump rolls back with
// the rest of the transaction.
func TestCreateIssueFailureDoesNotAdvanceCounter(t *testing.T) {
	store := newTestStore(t)
	project := newTestProject(t, store, "ROLL")
	ctx := context.Background()

	good := &types.Issue{ProjectID: project.ID, Title: "First"}
	if err := store.CreateIssue(ctx, good, testActor); err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}

	// Reuse the existing row id to force a unique constraint failure on
	// insert, after the counter has been bumped inside the transaction.
	dup := &types.Issue{ID: good.ID, ProjectID: project.ID, Title: "Duplicate row id"}
	if err := store.CreateIssue(ctx, dup, testActor); err == nil {
		t.Fatal("Expected CreateIssue with duplicate id to fail")
	}

	next := &types.Issue{ProjectID: project.ID, Title: "Second"}
	if err := store.CreateIssue(ctx, next, testActor); err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	if next.IssueKey != "ROLL-2" {
		t.Errorf("Expected key ROLL-2 after rolled-back attempt, got %s", next.IssueKey)
	}
}

func TestCreateIssueRecordsCreatedEvent(t *testing.T) {
	store := newTestStore(t)
	project := newTestProject(t, store, "EVT")
	ctx := context.Background()

	issue := &types.Issue{ProjectID: project.ID, Title: "Audited"}
	if err := store.CreateIssue(ctx, issue, testActor); err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}

	events, err := store.GetEvents(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetEvents failed: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(events))
	}
	if events[0].Action != types.EventCreated {
		t.Errorf("Expected created event, got %s", events[0].Action)
	}
	if events[0].Actor != testActor {
		t.Errorf("Expected actor %q, got %q", testActor, events[0].Actor)
	}
}

func TestCreateIssueDefaultsToFirstColumn(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	project := &types.Project{
		Key:             "CUST",
		Name:            "Custom workflow",
		WorkflowColumns: []types.Status{"Triage", "Doing", "Done"},
	}
	if err := store.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}

	issue := &types.Issue{ProjectID: project.ID, Title: "Lands in triage"}
	if err := store.CreateIssue(ctx, issue, testActor); err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	if issue.Status != types.Status("Triage") {
		t.Errorf("Expected status Triage, got %s", issue.Status)
	}
}

func TestGetIssueByKeyAndID(t *testing.T) {
	store := newTestStore(t)
	project := newTestProject(t, store, "GET")
	ctx := context.Background()

	issue := &types.Issue{ProjectID: project.ID, Title: "Findable"}
	if err := store.CreateIssue(ctx, issue, testActor); err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}

	byKey, err := store.GetIssue(ctx, "GET-1")
	if err != nil {
		t.Fatalf("GetIssue by key failed: %v", err)
	}
	if byKey.ID != issue.ID {
		t.Errorf("Lookup by key returned wrong issue: %s", byKey.ID)
	}

	byID, err := store.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue by id failed: %v", err)
	}
	if byID.IssueKey != "GET-1" {
		t.Errorf("Lookup by id returned wrong issue: %s", byID.IssueKey)
	}

	if _, err := store.GetIssue(ctx, "GET-999"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for missing issue, got %v", err)
	}
}

func TestUpdateIssueStatusAppendsEvent(t *testing.T) {
	store := newTestStore(t)
	project := newTestProject(t, store, "UPD")
	ctx := context.Background()

	issue := &types.Issue{ProjectID: project.ID, Title: "Moves along"}
	if err := store.CreateIssue(ctx, issue, testActor); err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}

	if err := store.UpdateIssueStatus(ctx, issue.ID, types.StatusToDo, types.StatusInProgress, testActor); err != nil {
		t.Fatalf("UpdateIssueStatus failed: %v", err)
	}

	got, err := store.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if got.Status != types.StatusInProgress {
		t.Errorf("Expected In Progress, got %s", got.Status)
	}
	if !got.UpdatedAt.After(got.CreatedAt) && !got.UpdatedAt.Equal(got.CreatedAt) {
		t.Errorf("UpdatedAt went backwards: created %v, updated %v", got.CreatedAt, got.UpdatedAt)
	}

	last := got.History[len(got.History)-1]
	if last.Action != types.EventStatusChange {
		t.Fatalf("Expected status_change at end of history, got %s", last.Action)
	}
	if last.From != types.StatusToDo || last.To != types.StatusInProgress {
		t.Errorf("Expected To Do -> In Progress, got %s -> %s", last.From, last.To)
	}

	err = store.UpdateIssueStatus(ctx, "missing-id", types.StatusToDo, types.StatusDone, testActor)
	if !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestMoveIssueToBacklogIdempotent(t *testing.T) {
	store := newTestStore(t)
	project := newTestProject(t, store, "MOVE")
	ctx := context.Background()

	sprint := &types.Sprint{ProjectID: project.ID, Name: "Sprint 1"}
	if err := store.CreateSprint(ctx, sprint); err != nil {
		t.Fatalf("CreateSprint failed: %v", err)
	}

	issue := &types.Issue{ProjectID: project.ID, Title: "In sprint"}
	if err := store.CreateIssue(ctx, issue, testActor); err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}
	if err := store.AssignIssueToSprint(ctx, issue.ID, sprint.ID); err != nil {
		t.Fatalf("AssignIssueToSprint failed: %v", err)
	}

	moved, err := store.MoveIssueToBacklog(ctx, issue.ID, sprint.ID)
	if err != nil {
		t.Fatalf("MoveIssueToBacklog failed: %v", err)
	}
	if !moved {
		t.Error("Expected first move to report moved=true")
	}

	// Second attempt is a no-op, not an error.
	moved, err = store.MoveIssueToBacklog(ctx, issue.ID, sprint.ID)
	if err != nil {
		t.Fatalf("Second MoveIssueToBacklog failed: %v", err)
	}
	if moved {
		t.Error("Expected second move to report moved=false")
	}

	got, err := store.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if got.SprintID != nil {
		t.Errorf("Expected nil sprint id, got %v", *got.SprintID)
	}
}

func TestListIssuesFilters(t *testing.T) {
	store := newTestStore(t)
	project := newTestProject(t, store, "LIST")
	ctx := context.Background()

	sprint := &types.Sprint{ProjectID: project.ID, Name: "Sprint 1"}
	if err := store.CreateSprint(ctx, sprint); err != nil {
		t.Fatalf("CreateSprint failed: %v", err)
	}

	var issues []*types.Issue
	for i := 0; i < 4; i++ {
		issue := &types.Issue{ProjectID: project.ID, Title: fmt.Sprintf("Issue %d", i)}
		if err := store.CreateIssue(ctx, issue, testActor); err != nil {
			t.Fatalf("CreateIssue failed: %v", err)
		}
		issues = append(issues, issue)
	}
	if err := store.AssignIssueToSprint(ctx, issues[0].ID, sprint.ID); err != nil {
		t.Fatalf("AssignIssueToSprint failed: %v", err)
	}
	if err := store.UpdateIssueStatus(ctx, issues[1].ID, types.StatusToDo, types.StatusDone, testActor); err != nil {
		t.Fatalf("UpdateIssueStatus failed: %v", err)
	}

	inSprint, err := store.ListIssues(ctx, types.IssueFilter{ProjectID: project.ID, SprintID: &sprint.ID})
	if err != nil {
		t.Fatalf("ListIssues by sprint failed: %v", err)
	}
	if len(inSprint) != 1 || inSprint[0].ID != issues[0].ID {
		t.Errorf("Expected only the sprint issue, got %d issues", len(inSprint))
	}

	backlog, err := store.ListIssues(ctx, types.IssueFilter{ProjectID: project.ID, Backlog: true})
	if err != nil {
		t.Fatalf("ListIssues backlog failed: %v", err)
	}
	if len(backlog) != 3 {
		t.Errorf("Expected 3 backlog issues, got %d", len(backlog))
	}

	done := types.StatusDone
	doneIssues, err := store.ListIssues(ctx, types.IssueFilter{ProjectID: project.ID, Status: &done})
	if err != nil {
		t.Fatalf("ListIssues by status failed: %v", err)
	}
	if len(doneIssues) != 1 || doneIssues[0].ID != issues[1].ID {
		t.Errorf("Expected only the done issue, got %d issues", len(doneIssues))
	}

	limited, err := store.ListIssues(ctx, types.IssueFilter{ProjectID: project.ID, Limit: 2})
	if err != nil {
		t.Fatalf("ListIssues with limit failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("Expected 2 issues with limit, got %d", len(limited))
	}
}

func TestAddCommentRecordsEvent(t *testing.T) {
	store := newTestStore(t)
	project := newTestProject(t, store, "CMT")
	ctx := context.Background()

	issue := &types.Issue{ProjectID: project.ID, Title: "Discussed"}
	if err := store.CreateIssue(ctx, issue, testActor); err != nil {
		t.Fatalf("CreateIssue failed: %v", err)
	}

	comment, err := store.AddComment(ctx, issue.ID, testActor, "Looks good")
	if err != nil {
		t.Fatalf("AddComment failed: %v", err)
	}
	if comment.ID == 0 {
		t.Error("Expected comment to get an id")
	}

	got, err := store.GetIssue(ctx, issue.ID)
	if err != nil {
		t.Fatalf("GetIssue failed: %v", err)
	}
	if len(got.Comments) != 1 || got.Comments[0].Text != "Looks good" {
		t.Fatalf("Expected 1 comment, got %v", got.Comments)
	}

	last := got.History[len(got.History)-1]
	if last.Action != types.EventCommentAdded {
		t.Errorf("Expected comment_added event, got %s", last.Action)
	}

	if _, err := store.AddComment(ctx, "missing-id", testActor, "hello?"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}
