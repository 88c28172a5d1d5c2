package database

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/calw/pocketsort/internal/database/repository"
)

func TestSeedDefaultsIdempotent(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("migrations")
	require.NoError(t, err)
	require.NoError(t, RunMigrations(dbPath, migrations))

	db, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, SeedDefaults(ctx, db))

	ruleRepo := repository.NewRuleRepo(db)
	catRepo := repository.NewCategoryRepo(db)

	rules, err := ruleRepo.List(ctx, repository.RuleFilters{})
	require.NoError(t, err)
	require.NotEmpty(t, rules)
	for _, r := range rules {
		require.True(t, r.IsSystem)
		require.True(t, r.IsActive)
		require.Equal(t, strings.ToLower(r.Value), r.Value)
	}

	cats, err := catRepo.List(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, cats)

	// Running again must not duplicate anything.
	require.NoError(t, SeedDefaults(ctx, db))
	again, err := ruleRepo.List(ctx, repository.RuleFilters{})
	require.NoError(t, err)
	require.Len(t, again, len(rules))
}

func TestSeedDefaultsStopsWhenExistenceCheckFails(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	migrations, err := filepath.Abs("migrations")
	require.NoError(t, err)
	require.NoError(t, RunMigrations(dbPath, migrations))

	db, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// Break the existing-rules check without touching categories.
	_, err = db.ExecContext(ctx, `ALTER TABLE rules RENAME TO rules_hidden`)
	require.NoError(t, err)

	require.Error(t, SeedDefaults(ctx, db))

	// The failed check must abort the run before any writes.
	cats, err := repository.NewCategoryRepo(db).List(ctx)
	require.NoError(t, err)
	require.Empty(t, cats)
}
