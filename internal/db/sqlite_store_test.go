package db

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/soaringjerry/adi/internal/api"
	"github.com/soaringjerry/adi/internal/api/storetest"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "adi.db"))
	require.NoError(t, err)
	logger := zaptest.NewLogger(t)
	_, err = RunMigrations(context.Background(), db, "", logger)
	require.NoError(t, err)
	s, err := NewSQLiteStore(db, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestSQLiteStoreContract(t *testing.T) {
	storetest.Run(t, func(t *testing.T) api.Store { return newTestStore(t) })
}

func TestRunMigrationsIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "adi.db"))
	require.NoError(t, err)
	defer db.Close()

	ran, err := RunMigrations(ctx, db, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_init.sql", "0002_insights_dashboards.sql"}, ran)

	ran, err = RunMigrations(ctx, db, "", nil)
	require.NoError(t, err)
	assert.Empty(t, ran)
}

func TestRunMigrationsFromDirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "0001_only.sql"), []byte("CREATE TABLE IF NOT EXISTS scratch (id INTEGER);"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	db, err := Open(filepath.Join(t.TempDir(), "adi.db"))
	require.NoError(t, err)
	defer db.Close()

	ran, err := RunMigrations(ctx, db, dir, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"0001_only.sql"}, ran)
	_, err = db.ExecContext(ctx, `INSERT INTO scratch (id) VALUES (1)`)
	assert.NoError(t, err)
}

func TestTimeLayoutSorts(t *testing.T) {
	whole := time.Date(2024, 1, 1, 0, 0, 5, 0, time.UTC)
	a := formatTime(whole)
	b := formatTime(whole.Add(500 * time.Millisecond))
	assert.Less(t, a, b)
}
