// Package storage provides shared types for tracker storage.
//
// The concrete implementation lives in the sqlite sub-package. This package
// holds the interface and sentinel errors referenced by both the
// implementation and its consumers (workflow, sprints, analytics, cmd/pf).
package storage

import (
	"context"
	"errors"

	"github.com/planfold/planfold/internal/types"
)

// ErrNotFound is returned when a referenced project, issue, sprint, or user
// does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnavailable is returned when a write could not land after bounded
// retries on transient contention. The operation had no effect and may be
// retried by the caller.
var ErrUnavailable = errors.New("storage unavailable")

// Storage is the interface satisfied by *sqlite.Store. Consumers depend on
// this interface rather than the concrete type so that alternative
// implementations can be substituted.
type Storage interface {
	// Projects
	CreateProject(ctx context.Context, project *types.Project) error
	GetProject(ctx context.Context, id string) (*types.Project, error)
	GetProjectByKey(ctx context.Context, key string) (*types.Project, error)
	ListProjects(ctx context.Context) ([]*types.Project, error)

	// Issues.
	//
	// CreateIssue allocates the issue key: it reads the owning project's
	// counter, bumps it, and inserts the issue plus its created event inside
	// one serializable transaction. Two concurrent calls on the same project
	// never observe the same counter value, and an aborted attempt never
	// advances it.
	CreateIssue(ctx context.Context, issue *types.Issue, actor string) error
	GetIssue(ctx context.Context, ref string) (*types.Issue, error) // by id or issue key; loads history and comments
	ListIssues(ctx context.Context, filter types.IssueFilter) ([]*types.Issue, error)
	// UpdateIssueStatus writes the new cached status and appends the
	// status_change event in one local transaction. Last write wins across
	// concurrent callers.
	UpdateIssueStatus(ctx context.Context, id string, from, to types.Status, actor string) error
	// MoveIssueToBacklog clears the issue's sprint assignment if it still
	// points at fromSprintID. Idempotent: re-running after a partial sprint
	// completion is a no-op for already-moved issues.
	MoveIssueToBacklog(ctx context.Context, id, fromSprintID string) (moved bool, err error)
	AssignIssueToSprint(ctx context.Context, id, sprintID string) error

	// Comments and events
	AddComment(ctx context.Context, issueID, authorID, text string) (*types.Comment, error)
	GetEvents(ctx context.Context, issueID string) ([]*types.Event, error)
	GetComments(ctx context.Context, issueID string) ([]*types.Comment, error)

	// Sprints
	CreateSprint(ctx context.Context, sprint *types.Sprint) error
	GetSprint(ctx context.Context, id string) (*types.Sprint, error)
	ListSprints(ctx context.Context, projectID string, status types.SprintStatus) ([]*types.Sprint, error)
	UpdateSprint(ctx context.Context, sprint *types.Sprint) error
	// HasActiveSprint reports whether the project has an active sprint other
	// than excludeID (pass "" to consider all sprints).
	HasActiveSprint(ctx context.Context, projectID, excludeID string) (bool, error)

	// Users
	CreateUser(ctx context.Context, user *types.User) error
	GetUser(ctx context.Context, id string) (*types.User, error)
	// ResolveUser looks a user up by id or username.
	ResolveUser(ctx context.Context, ref string) (*types.User, error)

	// Lifecycle
	Close() error
}
