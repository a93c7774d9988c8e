// Package types defines core data structures for the planfold tracker.
package types

import (
	"fmt"
	"regexp"
	"time"
)

// Status is one named workflow column in a project's ordered status sequence.
type Status string

// Built-in workflow columns. Projects may define their own ordered column
// list; these are the defaults and the statuses the member permission table
// is expressed in.
const (
	StatusToDo       Status = "To Do"
	StatusInProgress Status = "In Progress"
	StatusReview     Status = "Review"
	StatusDone       Status = "Done"
)

// DefaultWorkflowColumns returns the standard four-column workflow in order.
func DefaultWorkflowColumns() []Status {
	return []Status{StatusToDo, StatusInProgress, StatusReview, StatusDone}
}

// Role is the actor's authorization role, supplied by the surrounding auth
// layer. It gates issue status transitions.
type Role string

// Role constants
const (
	RoleAdmin       Role = "admin"
	RoleProjectLead Role = "project-lead"
	RoleMember      Role = "member"
)

// IsValid checks if the role value is valid
func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleProjectLead, RoleMember:
		return true
	}
	return false
}

// IssueType categorizes the kind of work
type IssueType string

// Issue type constants
const (
	TypeTask  IssueType = "task"
	TypeBug   IssueType = "bug"
	TypeStory IssueType = "story"
	TypeEpic  IssueType = "epic"
	TypeChore IssueType = "chore"
)

// IsValid checks if the issue type value is valid
func (t IssueType) IsValid() bool {
	switch t {
	case TypeTask, TypeBug, TypeStory, TypeEpic, TypeChore:
		return true
	}
	return false
}

var projectKeyRe = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

// Project owns issues and sprints. IssueCounter is the per-project sequence
// behind human-readable issue keys; it is only ever touched inside the same
// storage transaction that creates an issue.
type Project struct {
	ID              string    `json:"id"`
	Key             string    `json:"key"`
	Name            string    `json:"name"`
	IssueCounter    int64     `json:"issue_counter"`
	WorkflowColumns []Status  `json:"workflow_columns"`
	CreatedAt       time.Time `json:"created_at"`
}

// Validate checks if the project has valid field values
func (p *Project) Validate() error {
	if !projectKeyRe.MatchString(p.Key) {
		return fmt.Errorf("project key must be a short uppercase code (got %q)", p.Key)
	}
	if p.Name == "" {
		return fmt.Errorf("project name is required")
	}
	if len(p.WorkflowColumns) < 2 {
		return fmt.Errorf("workflow needs at least 2 columns (got %d)", len(p.WorkflowColumns))
	}
	seen := make(map[Status]bool, len(p.WorkflowColumns))
	for _, col := range p.WorkflowColumns {
		if col == "" {
			return fmt.Errorf("workflow column names must be non-empty")
		}
		if seen[col] {
			return fmt.Errorf("duplicate workflow column %q", col)
		}
		seen[col] = true
	}
	return nil
}

// HasColumn reports whether status is one of the project's workflow columns.
func (p *Project) HasColumn(status Status) bool {
	for _, col := range p.WorkflowColumns {
		if col == status {
			return true
		}
	}
	return false
}

// InitialStatus returns the first workflow column, the status new issues
// start in.
func (p *Project) InitialStatus() Status {
	if len(p.WorkflowColumns) == 0 {
		return StatusToDo
	}
	return p.WorkflowColumns[0]
}

// Issue represents a trackable work item. SprintID nil means the issue sits
// in the backlog. Status is a cached projection of History: it always equals
// the `to` of the most recent status_change event, or the project's initial
// column if none exists.
type Issue struct {
	ID          string     `json:"id"`
	IssueKey    string     `json:"issue_key"`
	ProjectID   string     `json:"project_id"`
	SprintID    *string    `json:"sprint_id,omitempty"`
	Title       string     `json:"title"`
	IssueType   IssueType  `json:"issue_type"`
	Priority    int        `json:"priority"` // No omitempty: 0 is valid (P0/critical)
	StoryPoints int        `json:"story_points"`
	Assignee    string     `json:"assignee,omitempty"` // canonical user id, empty = unassigned
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	History     []*Event   `json:"history,omitempty"`  // Populated on full fetch
	Comments    []*Comment `json:"comments,omitempty"` // Populated on full fetch
}

// Validate checks if the issue has valid field values
func (i *Issue) Validate() error {
	if len(i.Title) == 0 {
		return fmt.Errorf("title is required")
	}
	if len(i.Title) > 500 {
		return fmt.Errorf("title must be 500 characters or less (got %d)", len(i.Title))
	}
	if i.Priority < 0 || i.Priority > 4 {
		return fmt.Errorf("priority must be between 0 and 4 (got %d)", i.Priority)
	}
	if i.StoryPoints < 0 {
		return fmt.Errorf("story points cannot be negative (got %d)", i.StoryPoints)
	}
	if !i.IssueType.IsValid() {
		return fmt.Errorf("invalid issue type: %s", i.IssueType)
	}
	return nil
}

// InBacklog reports whether the issue has no sprint assignment.
func (i *Issue) InBacklog() bool {
	return i.SprintID == nil
}

// EventAction categorizes audit trail events
type EventAction string

// Event action constants for the audit trail
const (
	EventCreated      EventAction = "created"
	EventStatusChange EventAction = "status_change"
	EventCommentAdded EventAction = "comment_added"
)

// Event is an immutable audit record attached to an issue. History is
// append-only and ordered by CreatedAt non-decreasing; it is the single
// source of truth for point-in-time reconstruction.
type Event struct {
	ID        int64       `json:"id"`
	IssueID   string      `json:"issue_id"`
	Action    EventAction `json:"action"`
	Actor     string      `json:"actor"`
	From      Status      `json:"from,omitempty"`
	To        Status      `json:"to,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Comment represents a comment on an issue; append-only, not involved in
// analytics.
type Comment struct {
	ID        int64     `json:"id"`
	IssueID   string    `json:"issue_id"`
	AuthorID  string    `json:"author_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// SprintStatus represents the lifecycle state of a sprint
type SprintStatus string

// Sprint status constants. planned -> active -> completed, no skips,
// completed is terminal.
const (
	SprintPlanned   SprintStatus = "planned"
	SprintActive    SprintStatus = "active"
	SprintCompleted SprintStatus = "completed"
)

// IsValid checks if the sprint status value is valid
func (s SprintStatus) IsValid() bool {
	switch s {
	case SprintPlanned, SprintActive, SprintCompleted:
		return true
	}
	return false
}

// Sprint is a time-boxed iteration. For a given project at most one sprint
// is active at any time.
type Sprint struct {
	ID        string       `json:"id"`
	ProjectID string       `json:"project_id"`
	Name      string       `json:"name"`
	Goal      string       `json:"goal,omitempty"`
	Status    SprintStatus `json:"status"`
	StartDate *time.Time   `json:"start_date,omitempty"`
	EndDate   *time.Time   `json:"end_date,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
}

// Validate checks if the sprint has valid field values
func (s *Sprint) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("sprint name is required")
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("invalid sprint status: %s", s.Status)
	}
	if s.StartDate != nil && s.EndDate != nil && s.EndDate.Before(*s.StartDate) {
		return fmt.Errorf("sprint end date precedes start date")
	}
	return nil
}

// User is a minimal registry entry used to resolve human-entered assignee
// references to canonical ids. Credential management lives elsewhere.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
}

// IssueFilter is used to filter issue queries
type IssueFilter struct {
	ProjectID string
	SprintID  *string // non-nil: only issues in this sprint
	Backlog   bool    // only issues with no sprint assignment
	Status    *Status
	Assignee  *string
	Limit     int
}
