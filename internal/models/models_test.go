package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// modelServer serves a manifest plus the artifacts it lists, counting
// artifact downloads.
func modelServer(t *testing.T, artifacts map[string][]byte) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	downloads := &atomic.Int64{}
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/manifest.json", func(w http.ResponseWriter, _ *http.Request) {
		manifest := Manifest{Version: "1"}
		for name, data := range artifacts {
			manifest.Artifacts = append(manifest.Artifacts, Artifact{
				Name:   name,
				URL:    srv.URL + "/artifacts/" + name,
				SHA256: sha256Hex(data),
				Size:   int64(len(data)),
			})
		}
		require.NoError(t, json.NewEncoder(w).Encode(manifest))
	})
	mux.HandleFunc("/artifacts/", func(w http.ResponseWriter, r *http.Request) {
		downloads.Add(1)
		name := filepath.Base(r.URL.Path)
		data, ok := artifacts[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, downloads
}

func TestManager_FetchManifest(t *testing.T) {
	t.Parallel()

	srv, _ := modelServer(t, map[string][]byte{"tokenizer.bin": []byte("weights")})
	m := New(srv.URL+"/manifest.json", t.TempDir(), 2, nil)

	manifest, err := m.FetchManifest(context.Background())
	require.NoError(t, err)
	require.Equal(t, "1", manifest.Version)
	require.Len(t, manifest.Artifacts, 1)
	require.Equal(t, "tokenizer.bin", manifest.Artifacts[0].Name)
}

func TestManager_FetchManifest_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := New(srv.URL, t.TempDir(), 1, nil)
	_, err := m.FetchManifest(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected status 500")
}

func TestManager_DownloadAll(t *testing.T) {
	t.Parallel()

	artifacts := map[string][]byte{
		"tokenizer.bin":  []byte("token weights"),
		"classifier.bin": []byte("classifier weights"),
	}
	srv, _ := modelServer(t, artifacts)
	dir := t.TempDir()
	m := New(srv.URL+"/manifest.json", dir, 2, nil)

	manifest, err := m.FetchManifest(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.DownloadAll(context.Background(), manifest))

	for name, data := range artifacts {
		got, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		require.Equal(t, data, got)
	}
}

func TestManager_DownloadAll_SkipsPresentArtifacts(t *testing.T) {
	t.Parallel()

	srv, downloads := modelServer(t, map[string][]byte{"tokenizer.bin": []byte("weights")})
	dir := t.TempDir()
	m := New(srv.URL+"/manifest.json", dir, 1, nil)

	manifest, err := m.FetchManifest(context.Background())
	require.NoError(t, err)
	require.NoError(t, m.DownloadAll(context.Background(), manifest))
	require.Equal(t, int64(1), downloads.Load())

	// Second run verifies the checksum locally and fetches nothing.
	require.NoError(t, m.DownloadAll(context.Background(), manifest))
	require.Equal(t, int64(1), downloads.Load())
}

func TestManager_DownloadAll_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("tampered content"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	m := New("", dir, 1, nil)
	manifest := Manifest{Artifacts: []Artifact{{
		Name:   "model.bin",
		URL:    srv.URL + "/model.bin",
		SHA256: sha256Hex([]byte("expected content")),
		Size:   16,
	}}}

	err := m.DownloadAll(context.Background(), manifest)
	require.Error(t, err)
	require.Contains(t, err.Error(), "checksum mismatch")

	// The failed download never lands at the destination.
	_, statErr := os.Stat(filepath.Join(dir, "model.bin"))
	require.True(t, os.IsNotExist(statErr))
}

func TestManager_ListAndClear(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	m := New("", dir, 1, nil)

	models, err := m.List()
	require.NoError(t, err)
	require.Empty(t, models)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.bin"), []byte("aa"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.bin"), []byte("bbbb"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	models, err = m.List()
	require.NoError(t, err)
	require.Len(t, models, 2)
	require.Equal(t, "a.bin", models[0].Name)
	require.Equal(t, int64(2), models[0].Size)

	require.NoError(t, m.Clear())
	models, err = m.List()
	require.NoError(t, err)
	require.Empty(t, models)
}

func TestManager_ListMissingDir(t *testing.T) {
	t.Parallel()

	m := New("", filepath.Join(t.TempDir(), "absent"), 1, nil)
	models, err := m.List()
	require.NoError(t, err)
	require.Nil(t, models)
}
