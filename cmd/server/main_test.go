package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		migrationsDir = ""
	})
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func writeConfig(t *testing.T, dbPath string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "adi.yaml")
	content := "storage:\n  driver: sqlite\n  sqlite_path: " + dbPath + "\nlogging:\n  level: warn\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestMigrateCommand(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "adi.db")
	cfgPath := writeConfig(t, dbPath)

	out := execute(t, "--config", cfgPath, "migrate")
	assert.Contains(t, out, "applied 0001_init.sql")
	assert.Contains(t, out, "applied 0002_insights_dashboards.sql")

	out = execute(t, "--config", cfgPath, "migrate")
	assert.Contains(t, out, "database is up to date")
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeConfig(t, filepath.Join(dir, "adi.db"))
	snapshot := filepath.Join(dir, "export.json")
	require.NoError(t, os.WriteFile(snapshot, []byte(`{
  "surveys": [{"id": "s1", "title": "Payments", "is_active": "1", "created_at": "2023-02-01T10:00:00Z",
    "questions": "[{\"id\":\"q1\",\"question\":\"Mobile money?\",\"options\":[\"Yes\",\"No\"]}]"}],
  "survey_responses": [{"survey_id": "s1", "user_id": "u1", "question_index": 0, "answer": "Yes",
    "response_year": 2023, "created_at": "2023-03-01T08:00:00Z"}]
}`), 0o644))

	out := execute(t, "--config", cfgPath, "import", snapshot)
	assert.Contains(t, out, "imported 1 surveys, 1 responses, 0 verifications")
}
