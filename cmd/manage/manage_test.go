package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobboard-backend/internal/bootstrap"
	"jobboard-backend/internal/shared/config"
	"jobboard-backend/internal/users"
)

func testDeps(t *testing.T) (deps, *bootstrap.App) {
	t.Helper()
	cfg := config.Config{
		Env:             "dev",
		LogLevel:        "error",
		SecretKey:       "test-secret",
		AccessTokenTTL:  time.Minute,
		RefreshTokenTTL: time.Hour,
		LocalStoreDir:   t.TempDir(),
	}
	app, err := bootstrap.Build(cfg, bootstrap.WithoutRouter())
	require.NoError(t, err)
	return deps{
		loadConfig: func() config.Config { return cfg },
		build:      func(config.Config) (*bootstrap.App, error) { return app, nil },
	}, app
}

func execute(t *testing.T, d deps, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(d)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQuestionsImport(t *testing.T) {
	d, app := testDeps(t)
	file := filepath.Join(t.TempDir(), "questions.json")
	require.NoError(t, os.WriteFile(file, []byte(`[
		{"text": "What is a goroutine?", "technology": "go", "complexity": "easy"},
		{"text": "Explain the GIL", "technology": "python", "complexity": "medium"}
	]`), 0o600))

	out, err := execute(t, d, "questions", "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "created 2, skipped 0")

	out, err = execute(t, d, "questions", "import", file)
	require.NoError(t, err)
	assert.Contains(t, out, "created 0, skipped 2")

	n, err := app.Interview.Questions.Count(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestQuestionsImportRejectsInvalidFile(t *testing.T) {
	d, _ := testDeps(t)
	file := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(file, []byte(`[{"text": "x", "complexity": "impossible"}]`), 0o600))

	_, err := execute(t, d, "questions", "import", file)
	assert.Error(t, err)

	_, err = execute(t, d, "questions", "import", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestUsersPromote(t *testing.T) {
	d, app := testDeps(t)
	ctx := context.Background()
	_, err := app.Users.Create(ctx, users.CreateInput{Email: "lead@example.com", Password: "secret"})
	require.NoError(t, err)

	out, err := execute(t, d, "users", "promote", "lead@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "lead@example.com is now an admin")

	user, err := app.Users.GetByEmail(ctx, "lead@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)

	_, err = execute(t, d, "users", "promote", "nobody@example.com")
	assert.Error(t, err)
}

func TestMigrateRejectsUnknownAction(t *testing.T) {
	d, _ := testDeps(t)
	_, err := execute(t, d, "migrate", "sideways")
	assert.Error(t, err)
}
