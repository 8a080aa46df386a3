// Package models manages optional model artifacts: manifest fetch, concurrent
// verified downloads, and local inventory.
package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Artifact is a single downloadable model described by the manifest.
type Artifact struct {
	Name   string `json:"name"`
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Manifest lists the artifacts the service can prefetch.
type Manifest struct {
	Version   string     `json:"version"`
	Artifacts []Artifact `json:"artifacts"`
}

// LocalModel describes an artifact already present on disk.
type LocalModel struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Manager downloads and inventories model artifacts.
type Manager struct {
	manifestURL string
	dir         string
	parallel    int
	client      *http.Client
	logger      *zap.Logger
}

// New constructs a Manager. parallel bounds concurrent downloads (min 1).
func New(manifestURL, dir string, parallel int, logger *zap.Logger) *Manager {
	if parallel < 1 {
		parallel = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		manifestURL: manifestURL,
		dir:         dir,
		parallel:    parallel,
		client:      &http.Client{Timeout: 10 * time.Minute},
		logger:      logger,
	}
}

// FetchManifest downloads and decodes the manifest.
func (m *Manager) FetchManifest(ctx context.Context) (Manifest, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.manifestURL, nil)
	if err != nil {
		return Manifest{}, fmt.Errorf("build manifest request: %w", err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return Manifest{}, fmt.Errorf("fetch manifest: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return Manifest{}, fmt.Errorf("fetch manifest: unexpected status %d", resp.StatusCode)
	}
	var manifest Manifest
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&manifest); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return manifest, nil
}

// DownloadAll fetches every artifact not already present, verifying checksums.
// Downloads run concurrently, bounded by the configured parallelism.
func (m *Manager) DownloadAll(ctx context.Context, manifest Manifest) error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return fmt.Errorf("create models dir: %w", err)
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(m.parallel)
	for _, artifact := range manifest.Artifacts {
		g.Go(func() error {
			return m.download(ctx, artifact)
		})
	}
	return g.Wait()
}

func (m *Manager) download(ctx context.Context, artifact Artifact) error {
	dest := filepath.Join(m.dir, filepath.Base(artifact.Name))
	if info, err := os.Stat(dest); err == nil && info.Size() == artifact.Size {
		if ok, _ := verifyChecksum(dest, artifact.SHA256); ok {
			m.logger.Debug("model already present", zap.String("name", artifact.Name))
			return nil
		}
	}

	m.logger.Info("downloading model",
		zap.String("name", artifact.Name),
		zap.Int64("size", artifact.Size),
	)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, artifact.URL, nil)
	if err != nil {
		return fmt.Errorf("build request for %s: %w", artifact.Name, err)
	}
	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", artifact.Name, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %d", artifact.Name, resp.StatusCode)
	}

	tmp, err := os.CreateTemp(m.dir, ".download-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	hasher := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, hasher), resp.Body); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", artifact.Name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	if artifact.SHA256 != "" && sum != artifact.SHA256 {
		return fmt.Errorf("checksum mismatch for %s: got %s want %s", artifact.Name, sum, artifact.SHA256)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("finalize %s: %w", artifact.Name, err)
	}
	m.logger.Info("model downloaded", zap.String("name", artifact.Name), zap.String("path", dest))
	return nil
}

// List returns artifacts present in the local models directory.
func (m *Manager) List() ([]LocalModel, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read models dir: %w", err)
	}
	models := make([]LocalModel, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		models = append(models, LocalModel{
			Name:    entry.Name(),
			Path:    filepath.Join(m.dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	return models, nil
}

// Clear removes the local models directory and its contents.
func (m *Manager) Clear() error {
	if err := os.RemoveAll(m.dir); err != nil {
		return fmt.Errorf("clear models dir: %w", err)
	}
	return nil
}

func verifyChecksum(path, want string) (bool, error) {
	if want == "" {
		return true, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer func() { _ = f.Close() }()
	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return false, err
	}
	return hex.EncodeToString(hasher.Sum(nil)) == want, nil
}
