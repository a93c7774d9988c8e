package sqlite

import (
	"context"
	"testing"

	"github.com/planfold/planfold/internal/types"
)

// newTestStore creates a Store backed by a temp-file database.
//
// File-based databases are more reliable than in-memory for connection pool
// scenarios (concurrent writers in particular), and t.TempDir gives each
// test its own isolated file.
func newTestStore(t *testing.T) *Store {
	t.Helper()

	ctx := context.Background()
	store, err := New(ctx, t.TempDir()+"/test.db")
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}

	t.Cleanup(func() {
		if cerr := store.Close(); cerr != nil {
			t.Fatalf("Failed to close test database: %v", cerr)
		}
	})

	return store
}

// newTestProject creates a project with the default workflow for tests.
func newTestProject(t *testing.T, store *Store, key string) *types.Project {
	t.Helper()

	project := &types.Project{
		Key:             key,
		Name:            key + " project",
		WorkflowColumns: types.DefaultWorkflowColumns(),
	}
	if err := store.CreateProject(context.Background(), project); err != nil {
		t.Fatalf("Failed to create test project: %v", err)
	}
	return project
}
