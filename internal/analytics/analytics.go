// Package analytics reconstructs point-in-time project state from issue
// audit history. It is strictly read-side: nothing here mutates issues or
// sprints.
package analytics

import (
	"context"
	"time"

	"github.com/planfold/planfold/internal/storage"
	"github.com/planfold/planfold/internal/types"
)

// maxBurndownDays caps day enumeration as a safeguard against malformed
// sprint date ranges producing unbounded output.
const maxBurndownDays = 30

// defaultVelocityLimit is how many closed sprints Velocity considers when
// the caller does not say.
const defaultVelocityLimit = 5

// BurndownPoint is one day in a sprint burndown series.
type BurndownPoint struct {
	Day             time.Time `json:"day"`
	RemainingPoints int       `json:"remaining_points"`
	IdealPoints     float64   `json:"ideal_points"`
}

// VelocityPoint is one completed sprint in a velocity series.
type VelocityPoint struct {
	SprintName string `json:"sprint_name"`
	Commitment int    `json:"commitment"`
	Completed  int    `json:"completed"`
}

// Engine derives analytics views from stored issues and sprints.
type Engine struct {
	store storage.Storage
	now   func() time.Time
}

// New returns an analytics engine backed by the given store.
func New(store storage.Storage) *Engine {
	return &Engine{store: store, now: time.Now}
}

// Burndown reconstructs the day-by-day remaining story points for a sprint
// by replaying each issue's status history. A sprint that has not started
// yields an empty series.
func (e *Engine) Burndown(ctx context.Context, sprintID string) ([]BurndownPoint, error) {
	sprint, err := e.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	project, err := e.store.GetProject(ctx, sprint.ProjectID)
	if err != nil {
		return nil, err
	}

	issues, err := e.store.ListIssues(ctx, types.IssueFilter{SprintID: &sprint.ID})
	if err != nil {
		return nil, err
	}
	history := make(map[string][]*types.Event, len(issues))
	for _, issue := range issues {
		events, err := e.store.GetEvents(ctx, issue.ID)
		if err != nil {
			return nil, err
		}
		history[issue.ID] = events
	}

	return BuildBurndown(sprint, issues, history, project.InitialStatus(), e.now()), nil
}

// BuildBurndown computes a burndown series from already-loaded state. It is
// a deterministic pure function of its inputs.
//
// Total sprint points are summed over the issues currently tagged to the
// sprint. That stands in for "committed at sprint start": no commitment
// snapshot is kept, and this approximation is deliberate.
func BuildBurndown(sprint *types.Sprint, issues []*types.Issue, history map[string][]*types.Event, initial types.Status, now time.Time) []BurndownPoint {
	if sprint.StartDate == nil {
		return nil
	}
	start := *sprint.StartDate
	end := now
	if sprint.EndDate != nil {
		end = *sprint.EndDate
	}
	if end.Before(start) {
		end = start
	}

	total := 0
	for _, issue := range issues {
		total += issue.StoryPoints
	}
	span := end.Sub(start)

	var points []BurndownPoint
	day := startOfDay(start)
	for i := 0; i < maxBurndownDays; i++ {
		if day.After(end) {
			break
		}
		cutoff := endOfDay(day)

		remaining := 0
		for _, issue := range issues {
			if issue.CreatedAt.After(cutoff) {
				continue // did not exist yet
			}
			if statusAt(issue, history[issue.ID], initial, cutoff) != types.StatusDone {
				remaining += issue.StoryPoints
			}
		}

		ideal := float64(total)
		if span > 0 {
			elapsed := float64(day.Sub(start)) / float64(span)
			if elapsed < 0 {
				elapsed = 0
			}
			if elapsed > 1 {
				elapsed = 1
			}
			ideal = float64(total) * (1 - elapsed)
		}

		points = append(points, BurndownPoint{Day: day, RemainingPoints: remaining, IdealPoints: ideal})
		day = day.AddDate(0, 0, 1)
	}
	return points
}

// statusAt reconstructs an issue's status as of cutoff by replaying its
// status_change events in chronological order from the initial column.
//
// Issues with no status history at all flat-line at their current status.
// That is a documented imprecision for legacy data, not something to fix by
// inventing synthetic events.
func statusAt(issue *types.Issue, events []*types.Event, initial types.Status, cutoff time.Time) types.Status {
	changes := 0
	status := initial
	for _, event := range events {
		if event.Action != types.EventStatusChange {
			continue
		}
		changes++
		if event.CreatedAt.After(cutoff) {
			continue
		}
		status = event.To
	}
	if changes == 0 {
		return issue.Status
	}
	return status
}

// Velocity reports commitment vs completed story points for the limit most
// recently completed sprints of a project, oldest first.
func (e *Engine) Velocity(ctx context.Context, projectID string, limit int) ([]VelocityPoint, error) {
	if limit <= 0 {
		limit = defaultVelocityLimit
	}
	if _, err := e.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}

	// Most recently ended first, then reversed to chronological order.
	sprints, err := e.store.ListSprints(ctx, projectID, types.SprintCompleted)
	if err != nil {
		return nil, err
	}
	if len(sprints) > limit {
		sprints = sprints[:limit]
	}

	points := make([]VelocityPoint, 0, len(sprints))
	for i := len(sprints) - 1; i >= 0; i-- {
		sprint := sprints[i]
		issues, err := e.store.ListIssues(ctx, types.IssueFilter{SprintID: &sprint.ID})
		if err != nil {
			return nil, err
		}
		point := VelocityPoint{SprintName: sprint.Name}
		for _, issue := range issues {
			point.Commitment += issue.StoryPoints
			if issue.Status == types.StatusDone {
				point.Completed += issue.StoryPoints
			}
		}
		points = append(points, point)
	}
	return points, nil
}

// startOfDay truncates t to midnight in its own location.
func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// endOfDay returns 23:59:59.999 on the same calendar day.
func endOfDay(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), 23, 59, 59, 999_000_000, day.Location())
}
