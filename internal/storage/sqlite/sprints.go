package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/planfold/planfold/internal/storage"
	"github.com/planfold/planfold/internal/types"
)

// CreateSprint creates a new sprint. Sprints always start out planned.
func (s *Store) CreateSprint(ctx context.Context, sprint *types.Sprint) error {
	if sprint.Status == "" {
		sprint.Status = types.SprintPlanned
	}
	if err := sprint.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if sprint.ID == "" {
		sprint.ID = uuid.NewString()
	}
	if sprint.CreatedAt.IsZero() {
		sprint.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sprints (id, project_id, name, goal, status, start_date, end_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, sprint.ID, sprint.ProjectID, sprint.Name, sprint.Goal, sprint.Status,
		formatNullTime(sprint.StartDate), formatNullTime(sprint.EndDate), formatTime(sprint.CreatedAt))
	if err != nil {
		return fmt.Errorf("failed to insert sprint: %w", err)
	}
	return nil
}

// GetSprint retrieves a sprint by id
func (s *Store) GetSprint(ctx context.Context, id string) (*types.Sprint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, project_id, name, goal, status, start_date, end_date, created_at
		FROM sprints WHERE id = ?
	`, id)
	sprint, err := scanSprint(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("sprint %s: %w", id, storage.ErrNotFound)
	}
	return sprint, err
}

// ListSprints returns a project's sprints, most recently ended first.
// Sprints without an end date sort last. Pass an empty status to list all.
func (s *Store) ListSprints(ctx context.Context, projectID string, status types.SprintStatus) ([]*types.Sprint, error) {
	query := `
		SELECT id, project_id, name, goal, status, start_date, end_date, created_at
		FROM sprints WHERE project_id = ?`
	args := []any{projectID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY end_date IS NULL, end_date DESC, created_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sprints: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var sprints []*types.Sprint
	for rows.Next() {
		sprint, err := scanSprint(rows)
		if err != nil {
			return nil, err
		}
		sprints = append(sprints, sprint)
	}
	return sprints, rows.Err()
}

// UpdateSprint persists the sprint's mutable fields (status, dates, name,
// goal). Last write wins.
func (s *Store) UpdateSprint(ctx context.Context, sprint *types.Sprint) error {
	if err := sprint.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE sprints SET name = ?, goal = ?, status = ?, start_date = ?, end_date = ?
		WHERE id = ?
	`, sprint.Name, sprint.Goal, sprint.Status,
		formatNullTime(sprint.StartDate), formatNullTime(sprint.EndDate), sprint.ID)
	if err != nil {
		return fmt.Errorf("failed to update sprint: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sprint %s: %w", sprint.ID, storage.ErrNotFound)
	}
	return nil
}

// HasActiveSprint reports whether the project has an active sprint other
// than excludeID.
func (s *Store) HasActiveSprint(ctx context.Context, projectID, excludeID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM sprints
			WHERE project_id = ? AND status = ? AND id != ?
		)
	`, projectID, types.SprintActive, excludeID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check active sprints: %w", err)
	}
	return exists, nil
}

func scanSprint(row rowScanner) (*types.Sprint, error) {
	var (
		sprint     types.Sprint
		start, end sql.NullString
		createdAt  string
	)
	if err := row.Scan(&sprint.ID, &sprint.ProjectID, &sprint.Name, &sprint.Goal,
		&sprint.Status, &start, &end, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan sprint: %w", err)
	}
	var err error
	if sprint.StartDate, err = parseNullTime(start); err != nil {
		return nil, err
	}
	if sprint.EndDate, err = parseNullTime(end); err != nil {
		return nil, err
	}
	if sprint.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &sprint, nil
}
