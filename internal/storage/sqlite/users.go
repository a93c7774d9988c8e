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

// CreateUser registers a user in the assignee-resolution registry.
func (s *Store) CreateUser(ctx context.Context, user *types.User) error {
	if user.Username == "" {
		return fmt.Errorf("username is required")
	}
	if user.Role == "" {
		user.Role = types.RoleMember
	}
	if !user.Role.IsValid() {
		return fmt.Errorf("invalid role: %s", user.Role)
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, display_name, role, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, user.ID, user.Username, user.DisplayName, user.Role, formatTime(user.CreatedAt))
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("username %s already exists: %w", user.Username, err)
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by id
func (s *Store) GetUser(ctx context.Context, id string) (*types.User, error) {
	return s.getUser(ctx, `WHERE id = ?`, id)
}

// ResolveUser looks a user up by id or username.
func (s *Store) ResolveUser(ctx context.Context, ref string) (*types.User, error) {
	return s.getUser(ctx, `WHERE id = ? OR username = ?`, ref, ref)
}

func (s *Store) getUser(ctx context.Context, where string, args ...any) (*types.User, error) {
	var (
		user      types.User
		createdAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, display_name, role, created_at FROM users `+where, args...,
	).Scan(&user.ID, &user.Username, &user.DisplayName, &user.Role, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %v: %w", args[0], storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	if user.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &user, nil
}
