package snapshot

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgnsrekt/graphview/internal/chart"
)

func TestSaveGetListReadImage(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() = %v; want nil", err)
	}

	older := SnapshotMeta{ID: NewID(), Source: SourceServer, URI: "/read/a/b/c", Format: "png", CreatedAt: time.Now().Add(-time.Minute)}
	newer := SnapshotMeta{ID: NewID(), Source: SourceBrowser, URI: "/graph/a/b/c", TargetID: "graph-1", Format: "png", CreatedAt: time.Now()}
	if err := store.Save(older, []byte("old")); err != nil {
		t.Fatalf("Save(older) = %v; want nil", err)
	}
	if err := store.Save(newer, []byte("newer")); err != nil {
		t.Fatalf("Save(newer) = %v; want nil", err)
	}

	got, err := store.Get(newer.ID)
	if err != nil {
		t.Fatalf("Get() = %v; want nil", err)
	}
	if got.SizeBytes != 5 || got.TargetID != "graph-1" {
		t.Fatalf("Get() = %+v; want size 5 and target graph-1", got)
	}

	list, err := store.List()
	if err != nil {
		t.Fatalf("List() = %v; want nil", err)
	}
	if len(list) != 2 || list[0].ID != newer.ID {
		t.Fatalf("List() = %+v; want newest first", list)
	}

	img, format, err := store.ReadImage(older.ID)
	if err != nil {
		t.Fatalf("ReadImage() = %v; want nil", err)
	}
	if string(img) != "old" || format != "png" {
		t.Fatalf("ReadImage() = (%q, %q); want (old, png)", img, format)
	}
}

func TestGetErrorsAreCoded(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() = %v; want nil", err)
	}
	if _, err := store.Get("../etc/passwd"); !chart.IsCode(err, chart.CodeValidation) {
		t.Fatalf("Get(bad id) error = %v; want %s", err, chart.CodeValidation)
	}
	if _, err := store.Get(NewID()); !chart.IsCode(err, chart.CodeSnapshotNotFound) {
		t.Fatalf("Get(missing) error = %v; want %s", err, chart.CodeSnapshotNotFound)
	}
}

func TestDeleteLogsImageCleanupFailureWhenImageMissing(t *testing.T) {
	dir := t.TempDir()
	store := &Store{dir: dir}
	id := "123e4567-e89b-12d3-a456-426614174000"
	jsonPath := filepath.Join(dir, id+".json")

	metaBytes, err := json.Marshal(SnapshotMeta{ID: id, Format: "png"})
	if err != nil {
		t.Fatalf("json.Marshal() failed: %v", err)
	}
	if err := os.WriteFile(jsonPath, metaBytes, 0o644); err != nil {
		t.Fatalf("os.WriteFile() failed: %v", err)
	}

	var buf bytes.Buffer
	oldLogger := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() {
		slog.SetDefault(oldLogger)
	})

	if err := store.Delete(id); err != nil {
		t.Fatalf("Delete() = %v; want nil", err)
	}
	if !strings.Contains(buf.String(), "snapshot image cleanup failed") {
		t.Fatalf("expected image cleanup debug log, got %q", buf.String())
	}
	if _, err := os.Stat(jsonPath); !os.IsNotExist(err) {
		t.Fatalf("sidecar still present: %v", err)
	}
}

func TestSaveEvictsOldest(t *testing.T) {
	store, err := NewStore(t.TempDir(), WithMaxSnapshots(2))
	if err != nil {
		t.Fatalf("NewStore() = %v; want nil", err)
	}
	base := time.Now()
	ids := make([]string, 3)
	for i := range ids {
		ids[i] = NewID()
		meta := SnapshotMeta{ID: ids[i], Source: SourceServer, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := store.Save(meta, []byte("img")); err != nil {
			t.Fatalf("Save(%d) = %v; want nil", i, err)
		}
	}

	list, err := store.List()
	if err != nil {
		t.Fatalf("List() = %v; want nil", err)
	}
	if len(list) != 2 || list[0].ID != ids[2] || list[1].ID != ids[1] {
		t.Fatalf("List() = %+v; want the two newest", list)
	}
	if _, err := store.Get(ids[0]); !chart.IsCode(err, chart.CodeSnapshotNotFound) {
		t.Fatalf("Get(evicted) error = %v; want %s", err, chart.CodeSnapshotNotFound)
	}
	if _, err := os.Stat(filepath.Join(store.dir, ids[0]+".png")); !os.IsNotExist(err) {
		t.Fatalf("evicted image still present: %v", err)
	}
}

func TestCheckIDRejectsNonCanonical(t *testing.T) {
	for _, id := range []string{"", "../etc/passwd", "123E4567-E89B-12D3-A456-426614174000", "{123e4567-e89b-12d3-a456-426614174000}"} {
		if err := checkID(id); !chart.IsCode(err, chart.CodeValidation) {
			t.Fatalf("checkID(%q) = %v; want %s", id, err, chart.CodeValidation)
		}
	}
}
