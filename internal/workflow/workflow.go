// Package workflow implements issue creation and the role-gated status
// transition state machine.
package workflow

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/planfold/planfold/internal/storage"
	"github.com/planfold/planfold/internal/types"
)

// ErrForbidden is returned when the actor's role does not permit the
// requested status transition. Nothing is mutated and nothing is appended to
// history.
var ErrForbidden = errors.New("transition not permitted")

// Actor identifies who is performing an operation, as established by the
// surrounding auth layer.
type Actor struct {
	ID   string
	Role types.Role
}

// edge is one (from, to) pair in a project workflow.
type edge struct {
	from, to types.Status
}

// memberEdges is the explicit transition set permitted to regular members.
// The table is intentionally asymmetric: a member may not move work straight
// from To Do to Review or Done. Do not collapse it into a forward-only
// chain.
var memberEdges = map[edge]bool{
	{types.StatusToDo, types.StatusInProgress}:   true,
	{types.StatusInProgress, types.StatusReview}: true,
	{types.StatusInProgress, types.StatusDone}:   true,
	{types.StatusReview, types.StatusInProgress}: true,
	{types.StatusReview, types.StatusDone}:       true,
}

// transitionAllowed consults the permission table for (role, from, to).
// Admins and project leads may make any transition.
func transitionAllowed(role types.Role, from, to types.Status) bool {
	switch role {
	case types.RoleAdmin, types.RoleProjectLead:
		return true
	case types.RoleMember:
		return memberEdges[edge{from, to}]
	default:
		return false
	}
}

// Engine drives issue creation and status transitions against a storage
// backend.
type Engine struct {
	store storage.Storage
	log   zerolog.Logger
}

// New returns a workflow engine backed by the given store.
func New(store storage.Storage, log zerolog.Logger) *Engine {
	return &Engine{store: store, log: log}
}

// CreateIssueRequest carries the caller-supplied fields for a new issue.
// AssigneeRef may be a user id or username; an unresolvable reference falls
// back to unassigned rather than failing the creation.
type CreateIssueRequest struct {
	ProjectID   string
	Title       string
	Type        types.IssueType
	Priority    int
	StoryPoints int
	AssigneeRef string
	Actor       string
}

// CreateIssue creates an issue in the project's first workflow column. The
// issue key is allocated atomically with the insert by the storage layer,
// and a created event is appended.
func (e *Engine) CreateIssue(ctx context.Context, req CreateIssueRequest) (*types.Issue, error) {
	issue := &types.Issue{
		ProjectID:   req.ProjectID,
		Title:       req.Title,
		IssueType:   req.Type,
		Priority:    req.Priority,
		StoryPoints: req.StoryPoints,
		Assignee:    e.resolveAssignee(ctx, req.AssigneeRef),
	}

	if err := e.store.CreateIssue(ctx, issue, req.Actor); err != nil {
		return nil, err
	}
	return e.store.GetIssue(ctx, issue.ID)
}

// resolveAssignee maps a human-entered reference to a canonical user id.
// Unresolvable references are logged and dropped, not fatal.
func (e *Engine) resolveAssignee(ctx context.Context, ref string) string {
	if ref == "" {
		return ""
	}
	user, err := e.store.ResolveUser(ctx, ref)
	if err != nil {
		e.log.Warn().Str("assignee_ref", ref).Err(err).
			Msg("could not resolve assignee, leaving issue unassigned")
		return ""
	}
	return user.ID
}

// Transition moves an issue to the requested status.
//
// Requesting the issue's current status is an idempotent no-op: the issue is
// returned unchanged and no event is appended. Otherwise the (role, from,
// to) permission table decides; on denial ErrForbidden is returned with zero
// state change. On success the cached status is updated, a status_change
// event is appended, and updatedAt bumps.
func (e *Engine) Transition(ctx context.Context, issueRef string, requested types.Status, actor Actor) (*types.Issue, error) {
	issue, err := e.store.GetIssue(ctx, issueRef)
	if err != nil {
		return nil, err
	}

	if issue.Status == requested {
		return issue, nil
	}

	project, err := e.store.GetProject(ctx, issue.ProjectID)
	if err != nil {
		return nil, err
	}
	if !project.HasColumn(requested) {
		return nil, fmt.Errorf("status %q is not a workflow column of project %s", requested, project.Key)
	}

	if !transitionAllowed(actor.Role, issue.Status, requested) {
		return nil, fmt.Errorf("role %s may not move %s from %q to %q: %w",
			actor.Role, issue.IssueKey, issue.Status, requested, ErrForbidden)
	}

	if err := e.store.UpdateIssueStatus(ctx, issue.ID, issue.Status, requested, actor.ID); err != nil {
		return nil, err
	}
	return e.store.GetIssue(ctx, issue.ID)
}
