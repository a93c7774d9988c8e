package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/planfold/planfold/internal/storage"
	"github.com/planfold/planfold/internal/types"
)

// CreateIssue creates a new issue, allocating its human-readable key from
// the owning project's counter.
//
// The counter read, counter bump, issue insert, and created event all happen
// inside one IMMEDIATE transaction on a dedicated connection. IMMEDIATE
// acquires a RESERVED lock up front, which serializes key allocation across
// concurrent writers: a naive read-then-write would lose increments and hand
// out duplicate keys under concurrent creation. An aborted attempt rolls the
// counter back with everything else.
func (s *Store) CreateIssue(ctx context.Context, issue *types.Issue, actor string) error {
	now := time.Now()
	if issue.CreatedAt.IsZero() {
		issue.CreatedAt = now
	}
	if issue.UpdatedAt.IsZero() {
		issue.UpdatedAt = issue.CreatedAt
	}
	if issue.IssueType == "" {
		issue.IssueType = types.TypeTask
	}
	if issue.ID == "" {
		issue.ID = uuid.NewString()
	}
	if err := issue.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Dedicated connection: the raw BEGIN IMMEDIATE / COMMIT must run on the
	// same connection as the statements between them.
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediate(ctx, conn); err != nil {
		if isBusyError(err) {
			return fmt.Errorf("could not acquire write lock: %w", storage.ErrUnavailable)
		}
		return fmt.Errorf("failed to begin immediate transaction: %w", err)
	}

	// Rollback uses a background context so cleanup happens even if ctx was
	// canceled mid-transaction.
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	var (
		projectKey string
		counter    int64
		columns    string
	)
	err = conn.QueryRowContext(ctx, `
		SELECT key, issue_counter, workflow_columns FROM projects WHERE id = ?
	`, issue.ProjectID).Scan(&projectKey, &counter, &columns)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("project %s: %w", issue.ProjectID, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to read project: %w", err)
	}

	next := counter + 1
	issue.IssueKey = fmt.Sprintf("%s-%d", projectKey, next)
	if issue.Status == "" {
		issue.Status = initialColumn(columns)
	}

	if _, err := conn.ExecContext(ctx, `
		UPDATE projects SET issue_counter = ? WHERE id = ?
	`, next, issue.ProjectID); err != nil {
		return fmt.Errorf("failed to advance issue counter: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `
		INSERT INTO issues (
			id, issue_key, project_id, sprint_id, title, issue_type,
			priority, story_points, assignee, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		issue.ID, issue.IssueKey, issue.ProjectID, issue.SprintID, issue.Title,
		issue.IssueType, issue.Priority, issue.StoryPoints, issue.Assignee,
		issue.Status, formatTime(issue.CreatedAt), formatTime(issue.UpdatedAt),
	); err != nil {
		return fmt.Errorf("failed to insert issue: %w", err)
	}

	if _, err := conn.ExecContext(ctx, `
		INSERT INTO events (issue_id, action, actor, created_at)
		VALUES (?, ?, ?, ?)
	`, issue.ID, types.EventCreated, actor, formatTime(issue.CreatedAt)); err != nil {
		return fmt.Errorf("failed to record created event: %w", err)
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit issue creation: %w", err)
	}
	committed = true
	return nil
}

// initialColumn extracts the first workflow column from the stored JSON
// array. The column list is validated non-empty at project creation.
func initialColumn(columnsJSON string) types.Status {
	cols := decodeColumns(columnsJSON)
	if len(cols) == 0 {
		return types.StatusToDo
	}
	return cols[0]
}

// GetIssue retrieves an issue by row id or by its human-readable key,
// including its full history and comments.
func (s *Store) GetIssue(ctx context.Context, ref string) (*types.Issue, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, issue_key, project_id, sprint_id, title, issue_type,
		       priority, story_points, assignee, status, created_at, updated_at
		FROM issues WHERE id = ? OR issue_key = ?
	`, ref, ref)
	issue, err := scanIssue(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("issue %s: %w", ref, storage.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if issue.History, err = s.GetEvents(ctx, issue.ID); err != nil {
		return nil, err
	}
	if issue.Comments, err = s.GetComments(ctx, issue.ID); err != nil {
		return nil, err
	}
	return issue, nil
}

// ListIssues returns issues matching the filter, ordered by creation time.
// History and comments are not loaded; use GetIssue or GetEvents for those.
func (s *Store) ListIssues(ctx context.Context, filter types.IssueFilter) ([]*types.Issue, error) {
	query := `
		SELECT id, issue_key, project_id, sprint_id, title, issue_type,
		       priority, story_points, assignee, status, created_at, updated_at
		FROM issues`
	var (
		where []string
		args  []any
	)
	if filter.ProjectID != "" {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.SprintID != nil {
		where = append(where, "sprint_id = ?")
		args = append(args, *filter.SprintID)
	}
	if filter.Backlog {
		where = append(where, "sprint_id IS NULL")
	}
	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, *filter.Status)
	}
	if filter.Assignee != nil {
		where = append(where, "assignee = ?")
		args = append(args, *filter.Assignee)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at, issue_key"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query issues: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var issues []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, issue)
	}
	return issues, rows.Err()
}

// UpdateIssueStatus writes the issue's new cached status and appends the
// status_change event in one transaction, so a persisted status always has
// its authoritative event at the end of history. Concurrent transitions on
// the same issue are last-write-wins.
func (s *Store) UpdateIssueStatus(ctx context.Context, id string, from, to types.Status, actor string) error {
	now := time.Now()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE issues SET status = ?, updated_at = ? WHERE id = ?
		`, to, formatTime(now), id)
		if err != nil {
			return fmt.Errorf("failed to update status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to check update result: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("issue %s: %w", id, storage.ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (issue_id, action, actor, from_status, to_status, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, id, types.EventStatusChange, actor, from, to, formatTime(now)); err != nil {
			return fmt.Errorf("failed to record status change: %w", err)
		}
		return nil
	})
}

// MoveIssueToBacklog clears the issue's sprint assignment if it still points
// at fromSprintID. Returns false without error when the issue was already
// moved, making sprint-completion retries safe.
func (s *Store) MoveIssueToBacklog(ctx context.Context, id, fromSprintID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE issues SET sprint_id = NULL, updated_at = ? WHERE id = ? AND sprint_id = ?
	`, formatTime(time.Now()), id, fromSprintID)
	if err != nil {
		return false, fmt.Errorf("failed to move issue to backlog: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to check move result: %w", err)
	}
	return n > 0, nil
}

// AssignIssueToSprint re-parents an issue onto a sprint.
func (s *Store) AssignIssueToSprint(ctx context.Context, id, sprintID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE issues SET sprint_id = ?, updated_at = ? WHERE id = ?
	`, sprintID, formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("failed to assign issue to sprint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check assign result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("issue %s: %w", id, storage.ErrNotFound)
	}
	return nil
}

// AddComment appends a comment and its comment_added audit event.
func (s *Store) AddComment(ctx context.Context, issueID, authorID, text string) (*types.Comment, error) {
	now := time.Now()
	comment := &types.Comment{
		IssueID:   issueID,
		AuthorID:  authorID,
		Text:      text,
		CreatedAt: now,
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM issues WHERE id = ?)`, issueID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check issue existence: %w", err)
		}
		if !exists {
			return fmt.Errorf("issue %s: %w", issueID, storage.ErrNotFound)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO comments (issue_id, author_id, text, created_at)
			VALUES (?, ?, ?, ?)
		`, issueID, authorID, text, formatTime(now))
		if err != nil {
			return fmt.Errorf("failed to insert comment: %w", err)
		}
		if comment.ID, err = res.LastInsertId(); err != nil {
			return fmt.Errorf("failed to get comment id: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO events (issue_id, action, actor, created_at)
			VALUES (?, ?, ?, ?)
		`, issueID, types.EventCommentAdded, authorID, formatTime(now)); err != nil {
			return fmt.Errorf("failed to record comment event: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// GetEvents retrieves an issue's audit history in chronological order.
func (s *Store) GetEvents(ctx context.Context, issueID string) ([]*types.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, action, actor, from_status, to_status, created_at
		FROM events WHERE issue_id = ?
		ORDER BY created_at, id
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var events []*types.Event
	for rows.Next() {
		var (
			event     types.Event
			from, to  sql.NullString
			createdAt string
		)
		if err := rows.Scan(&event.ID, &event.IssueID, &event.Action, &event.Actor, &from, &to, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		event.From = types.Status(nullToString(from))
		event.To = types.Status(nullToString(to))
		if event.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		events = append(events, &event)
	}
	return events, rows.Err()
}

// GetComments retrieves all comments for an issue, oldest first.
func (s *Store) GetComments(ctx context.Context, issueID string) ([]*types.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, author_id, text, created_at
		FROM comments WHERE issue_id = ?
		ORDER BY created_at, id
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("failed to query comments: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var comments []*types.Comment
	for rows.Next() {
		var (
			comment   types.Comment
			createdAt string
		)
		if err := rows.Scan(&comment.ID, &comment.IssueID, &comment.AuthorID, &comment.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan comment: %w", err)
		}
		if comment.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		comments = append(comments, &comment)
	}
	return comments, rows.Err()
}

func scanIssue(row rowScanner) (*types.Issue, error) {
	var (
		issue              types.Issue
		sprintID           sql.NullString
		createdAt, updated string
	)
	if err := row.Scan(
		&issue.ID, &issue.IssueKey, &issue.ProjectID, &sprintID, &issue.Title,
		&issue.IssueType, &issue.Priority, &issue.StoryPoints, &issue.Assignee,
		&issue.Status, &createdAt, &updated,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan issue: %w", err)
	}
	if sprintID.Valid {
		issue.SprintID = &sprintID.String
	}
	var err error
	if issue.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if issue.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &issue, nil
}
