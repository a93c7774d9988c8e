package analytics

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planfold/planfold/internal/storage"
	"github.com/planfold/planfold/internal/storage/sqlite"
	"github.com/planfold/planfold/internal/types"
)

func date(day, hour int) time.Time {
	return time.Date(2026, 6, day, hour, 0, 0, 0, time.UTC)
}

func sprintWithDates(start, end time.Time) *types.Sprint {
	return &types.Sprint{
		ID:        "sprint-1",
		ProjectID: "project-1",
		Name:      "Sprint 1",
		Status:    types.SprintActive,
		StartDate: &start,
		EndDate:   &end,
	}
}

func statusChange(issueID string, at time.Time, from, to types.Status) *types.Event {
	return &types.Event{
		IssueID:   issueID,
		Action:    types.EventStatusChange,
		Actor:     "alice",
		From:      from,
		To:        to,
		CreatedAt: at,
	}
}

func TestBuildBurndownReplaysHistory(t *testing.T) {
	sprint := sprintWithDates(date(1, 9), date(6, 17))

	// 5 points done on day 3, 3 points never finished.
	done := &types.Issue{ID: "i1", StoryPoints: 5, Status: types.StatusDone, CreatedAt: date(1, 9)}
	open := &types.Issue{ID: "i2", StoryPoints: 3, Status: types.StatusInProgress, CreatedAt: date(1, 9)}
	history := map[string][]*types.Event{
		"i1": {
			statusChange("i1", date(2, 10), types.StatusToDo, types.StatusInProgress),
			statusChange("i1", date(3, 10), types.StatusInProgress, types.StatusDone),
		},
		"i2": {
			statusChange("i2", date(2, 11), types.StatusToDo, types.StatusInProgress),
		},
	}

	points := BuildBurndown(sprint, []*types.Issue{done, open}, history, types.StatusToDo, date(6, 17))
	require.Len(t, points, 6)

	wantRemaining := []int{8, 8, 3, 3, 3, 3}
	for i, want := range wantRemaining {
		assert.Equal(t, want, points[i].RemainingPoints, "day %d", i+1)
	}

	// Ideal line starts at the committed total and decays toward zero.
	assert.InDelta(t, 8.0, points[0].IdealPoints, 0.001)
	for i := 1; i < len(points); i++ {
		assert.LessOrEqual(t, points[i].IdealPoints, points[i-1].IdealPoints)
	}
	assert.Less(t, points[len(points)-1].IdealPoints, points[0].IdealPoints)
}

func TestBuildBurndownIssueCreatedMidSprint(t *testing.T) {
	sprint := sprintWithDates(date(1, 9), date(4, 17))

	late := &types.Issue{ID: "i1", StoryPoints: 4, Status: types.StatusToDo, CreatedAt: date(3, 12)}
	history := map[string][]*types.Event{}

	points := BuildBurndown(sprint, []*types.Issue{late}, history, types.StatusToDo, date(4, 17))
	require.Len(t, points, 4)

	// The issue contributes nothing before it exists.
	assert.Equal(t, 0, points[0].RemainingPoints)
	assert.Equal(t, 0, points[1].RemainingPoints)
	assert.Equal(t, 4, points[2].RemainingPoints)
	assert.Equal(t, 4, points[3].RemainingPoints)
}

func TestBuildBurndownFlatLinesWithoutHistory(t *testing.T) {
	sprint := sprintWithDates(date(1, 9), date(3, 17))

	// An issue with no status_change events replays as its current status
	// for the whole window, even though that predates the events that would
	// explain it.
	legacy := &types.Issue{ID: "i1", StoryPoints: 5, Status: types.StatusDone, CreatedAt: date(1, 9)}

	points := BuildBurndown(sprint, []*types.Issue{legacy}, nil, types.StatusToDo, date(3, 17))
	require.Len(t, points, 3)
	for i, p := range points {
		assert.Equal(t, 0, p.RemainingPoints, "day %d", i+1)
	}
}

func TestBuildBurndownUnstartedSprint(t *testing.T) {
	sprint := &types.Sprint{ID: "s", ProjectID: "p", Name: "Planned", Status: types.SprintPlanned}
	points := BuildBurndown(sprint, nil, nil, types.StatusToDo, date(1, 0))
	assert.Nil(t, points)
}

func TestBuildBurndownCapsAtThirtyDays(t *testing.T) {
	start := date(1, 0)
	end := start.AddDate(0, 0, 90)
	sprint := sprintWithDates(start, end)

	points := BuildBurndown(sprint, nil, nil, types.StatusToDo, end)
	assert.Len(t, points, maxBurndownDays)
}

func TestBuildBurndownZeroSpan(t *testing.T) {
	at := date(5, 12)
	sprint := sprintWithDates(at, at)

	issue := &types.Issue{ID: "i1", StoryPoints: 7, Status: types.StatusToDo, CreatedAt: at}
	points := BuildBurndown(sprint, []*types.Issue{issue}, nil, types.StatusToDo, at)
	require.Len(t, points, 1)
	assert.Equal(t, 7, points[0].RemainingPoints)
	assert.InDelta(t, 7.0, points[0].IdealPoints, 0.001)
}

func TestBuildBurndownEndBeforeStart(t *testing.T) {
	sprint := sprintWithDates(date(10, 9), date(5, 9))

	points := BuildBurndown(sprint, nil, nil, types.StatusToDo, date(20, 0))
	assert.Len(t, points, 1)
}

func TestStatusAtOrdering(t *testing.T) {
	issue := &types.Issue{ID: "i1", Status: types.StatusDone}
	events := []*types.Event{
		statusChange("i1", date(2, 10), types.StatusToDo, types.StatusInProgress),
		statusChange("i1", date(4, 10), types.StatusInProgress, types.StatusDone),
	}

	assert.Equal(t, types.StatusToDo, statusAt(issue, events, types.StatusToDo, date(1, 23)))
	assert.Equal(t, types.StatusInProgress, statusAt(issue, events, types.StatusToDo, date(3, 0)))
	assert.Equal(t, types.StatusDone, statusAt(issue, events, types.StatusToDo, date(4, 11)))
}

func newAnalyticsStore(t *testing.T) (*Engine, *sqlite.Store, *types.Project) {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(ctx, t.TempDir()+"/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	project := &types.Project{
		Key:             "ANA",
		Name:            "Analytics test",
		WorkflowColumns: types.DefaultWorkflowColumns(),
	}
	require.NoError(t, store.CreateProject(ctx, project))

	return New(store), store, project
}

// completedSprint inserts a completed sprint whose issues are already laid
// out as the caller wants them, bypassing the lifecycle manager.
func completedSprint(t *testing.T, store *sqlite.Store, project *types.Project, name string, end time.Time, donePts, openPts []int) *types.Sprint {
	t.Helper()
	ctx := context.Background()

	sprint := &types.Sprint{
		ProjectID: project.ID,
		Name:      name,
		Status:    types.SprintCompleted,
		EndDate:   &end,
	}
	require.NoError(t, store.CreateSprint(ctx, sprint))

	for i, pts := range donePts {
		issue := &types.Issue{ProjectID: project.ID, Title: fmt.Sprintf("%s done %d", name, i), StoryPoints: pts}
		require.NoError(t, store.CreateIssue(ctx, issue, "alice"))
		require.NoError(t, store.UpdateIssueStatus(ctx, issue.ID, issue.Status, types.StatusDone, "alice"))
		require.NoError(t, store.AssignIssueToSprint(ctx, issue.ID, sprint.ID))
	}
	for i, pts := range openPts {
		issue := &types.Issue{ProjectID: project.ID, Title: fmt.Sprintf("%s open %d", name, i), StoryPoints: pts}
		require.NoError(t, store.CreateIssue(ctx, issue, "alice"))
		require.NoError(t, store.AssignIssueToSprint(ctx, issue.ID, sprint.ID))
	}
	return sprint
}

func TestVelocityOldestFirst(t *testing.T) {
	engine, store, project := newAnalyticsStore(t)
	ctx := context.Background()

	completedSprint(t, store, project, "Sprint 1", date(10, 17), []int{4, 6}, nil)
	completedSprint(t, store, project, "Sprint 2", date(24, 17), []int{5}, []int{3})

	points, err := engine.Velocity(ctx, project.ID, 0)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, "Sprint 1", points[0].SprintName)
	assert.Equal(t, 10, points[0].Commitment)
	assert.Equal(t, 10, points[0].Completed)

	assert.Equal(t, "Sprint 2", points[1].SprintName)
	assert.Equal(t, 8, points[1].Commitment)
	assert.Equal(t, 5, points[1].Completed)
}

func TestVelocityLimit(t *testing.T) {
	engine, store, project := newAnalyticsStore(t)
	ctx := context.Background()

	for i := 1; i <= 7; i++ {
		completedSprint(t, store, project, fmt.Sprintf("Sprint %d", i), date(i, 17), []int{i}, nil)
	}

	// Default limit keeps the 5 most recently ended, oldest first.
	points, err := engine.Velocity(ctx, project.ID, 0)
	require.NoError(t, err)
	require.Len(t, points, 5)
	assert.Equal(t, "Sprint 3", points[0].SprintName)
	assert.Equal(t, "Sprint 7", points[4].SprintName)

	points, err = engine.Velocity(ctx, project.ID, 2)
	require.NoError(t, err)
	require.Len(t, points, 2)
	assert.Equal(t, "Sprint 6", points[0].SprintName)
	assert.Equal(t, "Sprint 7", points[1].SprintName)
}

func TestVelocityIgnoresUnfinishedSprints(t *testing.T) {
	engine, store, project := newAnalyticsStore(t)
	ctx := context.Background()

	completedSprint(t, store, project, "Done sprint", date(10, 17), []int{5}, nil)

	planned := &types.Sprint{ProjectID: project.ID, Name: "Planned sprint"}
	require.NoError(t, store.CreateSprint(ctx, planned))
	active := &types.Sprint{ProjectID: project.ID, Name: "Active sprint", Status: types.SprintActive}
	require.NoError(t, store.CreateSprint(ctx, active))

	points, err := engine.Velocity(ctx, project.ID, 0)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, "Done sprint", points[0].SprintName)
}

func TestVelocityUnknownProject(t *testing.T) {
	engine, _, _ := newAnalyticsStore(t)

	_, err := engine.Velocity(context.Background(), "missing", 0)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestBurndownThroughStore(t *testing.T) {
	engine, store, project := newAnalyticsStore(t)
	ctx := context.Background()

	// A window safely in the past, so the status change recorded at test
	// runtime always lands after it.
	start := time.Date(2020, 6, 1, 9, 0, 0, 0, time.UTC)
	end := time.Date(2020, 6, 5, 17, 0, 0, 0, time.UTC)
	sprint := &types.Sprint{
		ProjectID: project.ID,
		Name:      "Sprint 1",
		Status:    types.SprintActive,
		StartDate: &start,
		EndDate:   &end,
	}
	require.NoError(t, store.CreateSprint(ctx, sprint))

	// Backdated issue, finished long after the sprint window: the replay
	// must show it unfinished for every in-window day.
	issue := &types.Issue{ProjectID: project.ID, Title: "Late finish", StoryPoints: 5, CreatedAt: start}
	require.NoError(t, store.CreateIssue(ctx, issue, "alice"))
	require.NoError(t, store.AssignIssueToSprint(ctx, issue.ID, sprint.ID))
	require.NoError(t, store.UpdateIssueStatus(ctx, issue.ID, types.StatusToDo, types.StatusDone, "alice"))

	points, err := engine.Burndown(ctx, sprint.ID)
	require.NoError(t, err)
	require.Len(t, points, 5)
	for i, p := range points {
		assert.Equal(t, 5, p.RemainingPoints, "day %d", i+1)
	}

	_, err = engine.Burndown(ctx, "missing")
	require.ErrorIs(t, err, storage.ErrNotFound)
}
