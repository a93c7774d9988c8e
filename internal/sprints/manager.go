// Package sprints governs the sprint lifecycle: planned -> active ->
// completed, with at most one active sprint per project.
package sprints

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/planfold/planfold/internal/storage"
	"github.com/planfold/planfold/internal/types"
)

// ErrConflict is returned when a sprint transition would violate the
// lifecycle: starting a sprint while another is active, starting a sprint
// that is not planned, or completing a sprint that is not active.
var ErrConflict = errors.New("sprint state conflict")

// Manager drives sprint lifecycle transitions against a storage backend.
type Manager struct {
	store storage.Storage
	log   zerolog.Logger
	now   func() time.Time
}

// New returns a sprint manager backed by the given store.
func New(store storage.Storage, log zerolog.Logger) *Manager {
	return &Manager{store: store, log: log, now: time.Now}
}

// CreateSprintRequest carries the caller-supplied fields for a new sprint.
type CreateSprintRequest struct {
	ProjectID string
	Name      string
	Goal      string
	StartDate *time.Time
	EndDate   *time.Time
}

// Create creates a sprint in the planned state.
func (m *Manager) Create(ctx context.Context, req CreateSprintRequest) (*types.Sprint, error) {
	if _, err := m.store.GetProject(ctx, req.ProjectID); err != nil {
		return nil, err
	}

	sprint := &types.Sprint{
		ProjectID: req.ProjectID,
		Name:      req.Name,
		Goal:      req.Goal,
		Status:    types.SprintPlanned,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	}
	if err := m.store.CreateSprint(ctx, sprint); err != nil {
		return nil, err
	}
	return sprint, nil
}

// Start activates a planned sprint.
//
// The single-active-sprint invariant is checked immediately before the
// write. This is a deliberate check-then-act: sprint starts are rare,
// human-paced events, and the window is accepted rather than wrapped in a
// transaction.
func (m *Manager) Start(ctx context.Context, sprintID, actor string) (*types.Sprint, error) {
	sprint, err := m.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	if sprint.Status != types.SprintPlanned {
		return nil, fmt.Errorf("sprint %s is %s, only planned sprints can start: %w",
			sprint.Name, sprint.Status, ErrConflict)
	}

	active, err := m.store.HasActiveSprint(ctx, sprint.ProjectID, sprint.ID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, fmt.Errorf("project already has an active sprint: %w", ErrConflict)
	}

	now := m.now()
	sprint.Status = types.SprintActive
	sprint.StartDate = &now
	if err := m.store.UpdateSprint(ctx, sprint); err != nil {
		return nil, err
	}

	m.log.Info().Str("sprint", sprint.Name).Str("actor", actor).Msg("sprint started")
	return sprint, nil
}

// CompletionResult reports the outcome of completing a sprint.
type CompletionResult struct {
	Sprint         *types.Sprint `json:"sprint"`
	MovedToBacklog int           `json:"moved_to_backlog"`
}

// Complete finishes an active sprint. Every issue in the sprint that is not
// Done is re-parented to the backlog; Done issues keep their sprint so
// velocity can attribute them.
//
// The migration is not atomic across issues. Each re-parent is an
// independent idempotent write and the sprint is only marked completed after
// all of them, so a partial failure leaves a retry-safe intermediate state:
// re-running skips already-moved issues and finishes the job.
func (m *Manager) Complete(ctx context.Context, sprintID, actor string) (*CompletionResult, error) {
	sprint, err := m.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	if sprint.Status != types.SprintActive {
		return nil, fmt.Errorf("sprint %s is %s, only active sprints can complete: %w",
			sprint.Name, sprint.Status, ErrConflict)
	}

	issues, err := m.store.ListIssues(ctx, types.IssueFilter{SprintID: &sprint.ID})
	if err != nil {
		return nil, err
	}

	moved := 0
	for _, issue := range issues {
		if issue.Status == types.StatusDone {
			continue
		}
		didMove, err := m.store.MoveIssueToBacklog(ctx, issue.ID, sprint.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to migrate %s to backlog: %w", issue.IssueKey, err)
		}
		if didMove {
			moved++
		}
	}

	now := m.now()
	sprint.Status = types.SprintCompleted
	sprint.EndDate = &now
	if err := m.store.UpdateSprint(ctx, sprint); err != nil {
		return nil, err
	}

	m.log.Info().Str("sprint", sprint.Name).Str("actor", actor).
		Int("moved_to_backlog", moved).Msg("sprint completed")
	return &CompletionResult{Sprint: sprint, MovedToBacklog: moved}, nil
}

// AssignIssue places an issue into a sprint (planning). The issue keeps its
// status and history.
func (m *Manager) AssignIssue(ctx context.Context, issueRef, sprintID string) (*types.Issue, error) {
	sprint, err := m.store.GetSprint(ctx, sprintID)
	if err != nil {
		return nil, err
	}
	if sprint.Status == types.SprintCompleted {
		return nil, fmt.Errorf("sprint %s is completed: %w", sprint.Name, ErrConflict)
	}

	issue, err := m.store.GetIssue(ctx, issueRef)
	if err != nil {
		return nil, err
	}
	if issue.ProjectID != sprint.ProjectID {
		return nil, fmt.Errorf("issue %s belongs to a different project than sprint %s", issue.IssueKey, sprint.Name)
	}
	if err := m.store.AssignIssueToSprint(ctx, issue.ID, sprint.ID); err != nil {
		return nil, err
	}
	return m.store.GetIssue(ctx, issue.ID)
}
