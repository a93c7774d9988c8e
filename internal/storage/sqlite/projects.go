package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/planfold/planfold/internal/storage"
	"github.com/planfold/planfold/internal/types"
)

// CreateProject creates a new project with its workflow column list.
func (s *Store) CreateProject(ctx context.Context, project *types.Project) error {
	if len(project.WorkflowColumns) == 0 {
		project.WorkflowColumns = types.DefaultWorkflowColumns()
	}
	if err := project.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	if project.ID == "" {
		project.ID = uuid.NewString()
	}
	if project.CreatedAt.IsZero() {
		project.CreatedAt = time.Now()
	}

	columns, err := json.Marshal(project.WorkflowColumns)
	if err != nil {
		return fmt.Errorf("failed to encode workflow columns: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO projects (id, key, name, issue_counter, workflow_columns, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, project.ID, project.Key, project.Name, project.IssueCounter, string(columns), formatTime(project.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("project key %s already exists: %w", project.Key, err)
		}
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// GetProject retrieves a project by id
func (s *Store) GetProject(ctx context.Context, id string) (*types.Project, error) {
	return s.getProject(ctx, `WHERE id = ?`, id)
}

// GetProjectByKey retrieves a project by its short uppercase key
func (s *Store) GetProjectByKey(ctx context.Context, key string) (*types.Project, error) {
	return s.getProject(ctx, `WHERE key = ?`, key)
}

func (s *Store) getProject(ctx context.Context, where string, arg any) (*types.Project, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, key, name, issue_counter, workflow_columns, created_at
		FROM projects `+where, arg)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("project %v: %w", arg, storage.ErrNotFound)
	}
	return project, err
}

// ListProjects returns all projects ordered by creation time.
func (s *Store) ListProjects(ctx context.Context) ([]*types.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, key, name, issue_counter, workflow_columns, created_at
		FROM projects ORDER BY created_at, key
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var projects []*types.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

// decodeColumns decodes a stored workflow column list, returning nil on
// malformed data rather than failing the read.
func decodeColumns(columnsJSON string) []types.Status {
	var cols []types.Status
	if err := json.Unmarshal([]byte(columnsJSON), &cols); err != nil {
		return nil
	}
	return cols
}

func scanProject(row rowScanner) (*types.Project, error) {
	var (
		project   types.Project
		columns   string
		createdAt string
	)
	if err := row.Scan(&project.ID, &project.Key, &project.Name, &project.IssueCounter, &columns, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	if err := json.Unmarshal([]byte(columns), &project.WorkflowColumns); err != nil {
		return nil, fmt.Errorf("failed to decode workflow columns: %w", err)
	}
	var err error
	if project.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &project, nil
}
