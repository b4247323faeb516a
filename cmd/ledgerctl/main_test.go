package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const luciaTOML = `
id = "kid-1"
family_id = "fam-1"
name = "Lucía"
timezone = "Europe/Madrid"

[[consequences]]
type = "trust"
label = "Confianza"
amount = 30
kind = "shield"

[[plan]]
day = "friday"
hours = 2

[[plan]]
day = "saturday"
hours = 3
`

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestCLI_ImportToggleAndInspect(t *testing.T) {
	// GIVEN a fresh database and a profile file
	dir := t.TempDir()
	db := filepath.Join(dir, "ledger.db")
	file := filepath.Join(dir, "lucia.toml")
	require.NoError(t, os.WriteFile(file, []byte(luciaTOML), 0o600))

	// WHEN the profile is imported
	out := run(t, "profile", "import", file, "--db", db)
	assert.Contains(t, out, "Imported Lucía (kid-1) into family fam-1")

	out = run(t, "profile", "list", "--db", db)
	assert.Contains(t, out, "kid-1")
	assert.Contains(t, out, "friday,saturday")

	// WHEN trust is toggled on a day without choosing a session
	out = run(t, "toggle", "kid-1", "trust", "--db", db, "--date", "2025-03-14", "--actor", "mama")
	assert.Contains(t, out, "Confianza: applied (Vie)")

	// THEN the panel and the log reflect it
	out = run(t, "state", "kid-1", "--db", db, "--date", "2025-03-14")
	assert.Contains(t, out, "Total: -30 minutes")

	out = run(t, "history", "kid-1", "--db", db)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[1], "consequence")
	assert.Contains(t, lines[1], "mama")

	// WHEN toggled again it is undone
	out = run(t, "toggle", "kid-1", "trust", "--db", db, "--date", "2025-03-14")
	assert.Contains(t, out, "Confianza: undone (-)")
}

func TestCLI_ToggleUnknownType(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "ledger.db")
	file := filepath.Join(dir, "lucia.toml")
	require.NoError(t, os.WriteFile(file, []byte(luciaTOML), 0o600))
	run(t, "profile", "import", file, "--db", db)

	rootCmd.SetOut(&bytes.Buffer{})
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"toggle", "kid-1", "homework", "--db", db})
	err := rootCmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown consequence type")
}
