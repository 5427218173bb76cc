package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/school-intake-api/internal/models"
	"github.com/noah-isme/school-intake-api/internal/repository"
	"github.com/noah-isme/school-intake-api/internal/service"
	"github.com/noah-isme/school-intake-api/pkg/config"
	"github.com/noah-isme/school-intake-api/pkg/database"
)

// execute runs the root command with fresh flag state and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	verbose, timeout = false, time.Minute
	previewOutput, previewPDF = "", false
	tokenOperator, tokenTTL, tokenScopes = "", 0, []string{models.AdminScopeRuns}
	runsStatus, runsSchool, runsSince, runsLimit = "", "", "", 50
	runsFormat, runsOutput, pruneOlder = "csv", "", 90*24*time.Hour
	forgetParent, forgetName = "", ""
	showStages = false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func ledgerEnv(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "ledger.db")
	t.Setenv("ENABLE_LEDGER", "true")
	t.Setenv("DB_DRIVER", database.DriverSQLite)
	t.Setenv("DB_DSN", dsn)
	return dsn
}

func TestTokenCommandIssuesVerifiableToken(t *testing.T) {
	t.Setenv("ADMIN_JWT_SECRET", "cli-secret")
	t.Setenv("ADMIN_JWT_ISSUER", "school-intake-api")

	out, err := execute(t, "token", "--operator", "ops@example.org", "--ttl", "1h")
	require.NoError(t, err)

	tokens := service.NewAdminTokenService(service.AdminTokenConfig{Secret: "cli-secret", Issuer: "school-intake-api"})
	claims, err := tokens.Validate(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ops@example.org", claims.Operator)
	assert.True(t, claims.HasScope(models.AdminScopeRuns))
}

func TestPreviewCommandWritesHTML(t *testing.T) {
	dir := t.TempDir()
	payload := filepath.Join(dir, "inquiry.yaml")
	require.NoError(t, os.WriteFile(payload, []byte(yamlPayload), 0o600))
	target := filepath.Join(dir, "summary.html")

	_, err := execute(t, "preview", payload, "-o", target)
	require.NoError(t, err)

	html, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Contains(t, string(html), "Lincoln Elementary")
	assert.Contains(t, string(html), "Science")
}

func TestPreviewCommandRejectsInvalidPayload(t *testing.T) {
	payload := filepath.Join(t.TempDir(), "inquiry.json")
	require.NoError(t, os.WriteFile(payload, []byte(`{"school":{"contactEmail":"ada@example.org"}}`), 0o600))

	_, err := execute(t, "preview", payload)
	require.Error(t, err)
}

func TestRunsCommandsAgainstSQLiteLedger(t *testing.T) {
	dsn := ledgerEnv(t)

	out, err := execute(t, "runs", "list")
	require.NoError(t, err)
	assert.Equal(t, "no runs\n", out)

	db, err := database.Open(config.LedgerConfig{Driver: database.DriverSQLite, DSN: dsn})
	require.NoError(t, err)
	repo := repository.NewSubmissionRunRepository(db)
	old := time.Now().UTC().Add(-48 * time.Hour)
	require.NoError(t, repo.Create(context.Background(), &models.SubmissionRun{
		ID:           "run-old",
		SchoolName:   "Lincoln Elementary",
		ContactEmail: "ada@example.org",
		Status:       models.RunStatusSucceeded,
		StartedAt:    old,
		FinishedAt:   old,
	}))
	require.NoError(t, db.Close())

	out, err = execute(t, "runs", "list", "--status", "succeeded")
	require.NoError(t, err)
	assert.Contains(t, out, "run-old")
	assert.Contains(t, out, "Lincoln Elementary")

	export := filepath.Join(t.TempDir(), "runs.csv")
	out, err = execute(t, "runs", "export", "-o", export)
	require.NoError(t, err)
	assert.Equal(t, export+"\n", out)
	csv, err := os.ReadFile(export)
	require.NoError(t, err)
	assert.Contains(t, string(csv), "run-old")

	out, err = execute(t, "runs", "prune", "--older-than", "24h")
	require.NoError(t, err)
	assert.Equal(t, "removed 1 runs\n", out)
}

func TestRunsCommandRequiresLedger(t *testing.T) {
	t.Setenv("ENABLE_LEDGER", "false")

	_, err := execute(t, "runs", "list")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ENABLE_LEDGER")
}

func TestCacheCommands(t *testing.T) {
	mr := miniredis.RunT(t)
	t.Setenv("REDIS_HOST", mr.Host())
	t.Setenv("REDIS_PORT", mr.Port())

	require.NoError(t, mr.Set(repository.FolderKey("root", "Lincoln Elementary"), "f1"))
	require.NoError(t, mr.Set(repository.FolderKey("root", "Oak Ridge"), "f2"))
	require.NoError(t, mr.Set(repository.FolderKey("f2", "2026-10-19"), "f3"))
	require.NoError(t, mr.Set("unrelated", "keep"))

	out, err := execute(t, "cache", "forget", "--parent", "root", "--name", "Oak Ridge")
	require.NoError(t, err)
	assert.Contains(t, out, "Oak Ridge")
	assert.False(t, mr.Exists(repository.FolderKey("root", "Oak Ridge")))

	out, err = execute(t, "cache", "purge")
	require.NoError(t, err)
	assert.Equal(t, "removed 2 cached folders\n", out)
	assert.True(t, mr.Exists("unrelated"))
}
