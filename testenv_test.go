package contentset

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestEnv returns an Environment rooted under a fresh t.TempDir(), torn
// down automatically at test cleanup.
func newTestEnv(t *testing.T) *Environment {
	t.Helper()
	root := filepath.Join(t.TempDir(), "blobs")
	env, err := NewEnvironment(root)
	require.NoError(t, err)
	t.Cleanup(func() { env.Close() })
	return env
}

// writeFile creates a file with the given content under dir at relPath,
// creating parent directories as needed.
func writeFile(t *testing.T, dir, relPath, content string) string {
	t.Helper()
	full := filepath.Join(dir, relPath)
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	return full
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}
