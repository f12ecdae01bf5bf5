package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteArgs(t *testing.T, extra ...string) []string {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "ledger.db")
	return append([]string{"-db-driver", "sqlite", "-database-url", dbPath}, extra...)
}

func TestRun_Success(t *testing.T) {
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)

	args := sqliteArgs(t, "-email", "Admin@Example.com", "-name", "Admin", "-password", "supersecret", "-role", "admin")
	err := run(args, new(bytes.Buffer), stdout, stderr)
	require.NoError(t, err)

	assert.Contains(t, stdout.String(), "User admin@example.com created successfully")
	assert.Contains(t, stdout.String(), "(role ADMIN)")
}

func TestRun_DuplicateUser(t *testing.T) {
	args := sqliteArgs(t, "-email", "a@example.com", "-name", "A", "-password", "supersecret")

	err := run(args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.NoError(t, err, "first run should succeed")

	err = run(args, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err, "expected error on duplicate user")
	assert.Contains(t, err.Error(), "already exists")
}

func TestRun_PasswordFromStdin(t *testing.T) {
	stdout := new(bytes.Buffer)
	stdin := strings.NewReader("piped-password\n")

	err := run(sqliteArgs(t, "-email", "p@example.com", "-name", "P"), stdin, stdout, new(bytes.Buffer))
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Password: ")
}

func TestRun_Rejects(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing email", []string{"-name", "A", "-password", "supersecret"}, "missing required flags"},
		{"bad role", []string{"-email", "a@example.com", "-name", "A", "-password", "supersecret", "-role", "owner"}, "unknown role"},
		{"short password", []string{"-email", "a@example.com", "-name", "A", "-password", "short"}, "at least 8 characters"},
		{"long password", []string{"-email", "a@example.com", "-name", "A", "-password", strings.Repeat("x", 80)}, "at most 72 bytes"},
		{"bad email", []string{"-email", "nope", "-name", "A", "-password", "supersecret"}, "email must be valid"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stdout := new(bytes.Buffer)
			err := run(sqliteArgs(t, tt.args...), new(bytes.Buffer), stdout, new(bytes.Buffer))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestRun_MissingDatabase(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	err := run([]string{"-email", "a@example.com", "-name", "A", "-password", "supersecret"}, new(bytes.Buffer), new(bytes.Buffer), new(bytes.Buffer))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing database")
}
