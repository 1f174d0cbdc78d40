package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/graphview/internal/chart"
)

const (
	SourceServer  = "server"
	SourceBrowser = "browser"

	sidecarExt = ".json"
)

// SnapshotMeta describes a stored graph image.
type SnapshotMeta struct {
	ID           string    `json:"id"`
	Source       string    `json:"source"`
	URI          string    `json:"uri"`
	TargetID     string    `json:"target_id,omitempty"`
	TabID        string    `json:"tab_id,omitempty"`
	Format       string    `json:"format"`
	Width        int       `json:"width"`
	Height       int       `json:"height"`
	SeriesLength int       `json:"series_length"`
	SizeBytes    int       `json:"size_bytes"`
	CreatedAt    time.Time `json:"created_at"`
	Notes        string    `json:"notes,omitempty"`
}

// Store keeps one image file and one JSON sidecar per snapshot id in a
// single directory.
type Store struct {
	dir  string
	keep int
	mu   sync.RWMutex
}

type StoreOption func(*Store)

// WithMaxSnapshots bounds the store; Save evicts the oldest snapshots past n.
// Zero keeps everything.
func WithMaxSnapshots(n int) StoreOption {
	return func(s *Store) {
		if n > 0 {
			s.keep = n
		}
	}
}

func NewStore(dir string, opts ...StoreOption) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot store: mkdir %s: %w", dir, err)
	}
	s := &Store{dir: dir}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func NewID() string { return uuid.NewString() }

// checkID accepts only canonical lowercase UUIDs so ids are safe file names.
func checkID(id string) error {
	if u, err := uuid.Parse(id); err != nil || u.String() != id {
		return chart.NewError(chart.CodeValidation, fmt.Sprintf("invalid snapshot id: %q", id), nil)
	}
	return nil
}

func (s *Store) imagePath(id, format string) string { return filepath.Join(s.dir, id+"."+format) }
func (s *Store) sidecarPath(id string) string        { return filepath.Join(s.dir, id+sidecarExt) }

// Save writes the image and then its sidecar. A snapshot is visible only
// once the sidecar exists.
func (s *Store) Save(meta SnapshotMeta, image []byte) error {
	if err := checkID(meta.ID); err != nil {
		return err
	}
	if meta.Format == "" {
		meta.Format = "png"
	}
	meta.SizeBytes = len(image)
	sidecar, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("snapshot store: marshal meta: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	imgPath := s.imagePath(meta.ID, meta.Format)
	if err := writeFileAtomic(imgPath, image); err != nil {
		return fmt.Errorf("snapshot store: write image: %w", err)
	}
	if err := writeFileAtomic(s.sidecarPath(meta.ID), sidecar); err != nil {
		_ = os.Remove(imgPath)
		return fmt.Errorf("snapshot store: write meta: %w", err)
	}
	if s.keep > 0 {
		s.evictLocked()
	}
	return nil
}

// writeFileAtomic writes through a temp file in the same directory and
// renames it into place.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func (s *Store) Get(id string) (SnapshotMeta, error) {
	if err := checkID(id); err != nil {
		return SnapshotMeta{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.readMeta(id)
}

func (s *Store) readMeta(id string) (SnapshotMeta, error) {
	var meta SnapshotMeta
	data, err := os.ReadFile(s.sidecarPath(id))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return meta, chart.NewError(chart.CodeSnapshotNotFound, "snapshot not found: "+id, nil)
	case err != nil:
		return meta, fmt.Errorf("snapshot store: read meta: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("snapshot store: decode meta %s: %w", id, err)
	}
	return meta, nil
}

// List returns all snapshots, newest first. Unreadable sidecars are skipped.
func (s *Store) List() ([]SnapshotMeta, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listLocked()
}

func (s *Store) listLocked() ([]SnapshotMeta, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("snapshot store: read dir: %w", err)
	}
	metas := make([]SnapshotMeta, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != sidecarExt {
			continue
		}
		meta, err := s.readMeta(name[:len(name)-len(sidecarExt)])
		if err != nil {
			slog.Debug("snapshot sidecar skipped", "file", name, "error", err)
			continue
		}
		metas = append(metas, meta)
	}
	slices.SortFunc(metas, func(a, b SnapshotMeta) int { return b.CreatedAt.Compare(a.CreatedAt) })
	return metas, nil
}

// ReadImage returns the image bytes and their format.
func (s *Store) ReadImage(id string) ([]byte, string, error) {
	if err := checkID(id); err != nil {
		return nil, "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	meta, err := s.readMeta(id)
	if err != nil {
		return nil, "", err
	}
	data, err := os.ReadFile(s.imagePath(id, meta.Format))
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil, "", chart.NewError(chart.CodeSnapshotNotFound, "snapshot image not found: "+id, nil)
	case err != nil:
		return nil, "", fmt.Errorf("snapshot store: read image: %w", err)
	}
	return data, meta.Format, nil
}

func (s *Store) Delete(id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, err := s.readMeta(id)
	if err != nil {
		return err
	}
	return s.removeLocked(meta)
}

// removeLocked drops the sidecar first so a half-removed snapshot is never listed.
func (s *Store) removeLocked(meta SnapshotMeta) error {
	if err := os.Remove(s.sidecarPath(meta.ID)); err != nil {
		return fmt.Errorf("snapshot store: remove meta: %w", err)
	}
	if err := os.Remove(s.imagePath(meta.ID, meta.Format)); err != nil {
		slog.Debug("snapshot image cleanup failed", "id", meta.ID, "error", err)
	}
	return nil
}

func (s *Store) evictLocked() {
	metas, err := s.listLocked()
	if err != nil || len(metas) <= s.keep {
		return
	}
	for _, meta := range metas[s.keep:] {
		if err := s.removeLocked(meta); err != nil {
			slog.Warn("snapshot eviction failed", "id", meta.ID, "error", err)
			continue
		}
		slog.Info("snapshot evicted", "id", meta.ID, "created_at", meta.CreatedAt)
	}
}
