package cli

import (
	"bytes"
	"path/filepath"
	"testing"

	"storyline-server/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(args)
	require.NoError(t, RootCmd.Execute(), out.String())
	return out.String()
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range RootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["serve"])
	assert.True(t, names["migrate"])
	assert.True(t, names["sweep"])
}

func TestMigrateAndSweepOnSQLite(t *testing.T) {
	prev := config.SecretsDir
	config.SecretsDir = t.TempDir()
	t.Cleanup(func() { config.SecretsDir = prev })
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "db", "storyline.db"))
	t.Setenv("PROGRESS_TRANSPORT", "memory")
	t.Setenv("AI_CLIENT_TYPE", "scripted")
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("LOG_LEVEL", "error")

	runCLI(t, "migrate", "up", "--env-file", ".env")
	assert.Contains(t, runCLI(t, "migrate", "version"), "version=1 dirty=false")
	assert.Contains(t, runCLI(t, "sweep"), "deleted 0 idle sessions")
}
