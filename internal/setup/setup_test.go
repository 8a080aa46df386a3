package setup

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestProbeWritable(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, ProbeWritable(dir))

	// The probe file must not be left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Empty(t, entries)

	require.Error(t, ProbeWritable(filepath.Join(dir, "missing")))
}

func TestProbeWritable_ReadOnlyDir(t *testing.T) {
	t.Parallel()

	if runtime.GOOS == "windows" {
		t.Skip("chmod-based read-only dirs do not apply on windows")
	}
	if os.Geteuid() == 0 {
		t.Skip("root bypasses directory permissions")
	}

	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o555))
	t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })

	require.Error(t, ProbeWritable(dir))
}

func TestFindBrowser_NeverPanics(t *testing.T) {
	t.Parallel()

	// The result depends on the host; an empty string is a valid answer.
	path := FindBrowser()
	if path != "" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		require.False(t, info.IsDir())
	}
}

func TestBrowserCandidates(t *testing.T) {
	t.Parallel()

	require.NotEmpty(t, browserCandidates())
}
