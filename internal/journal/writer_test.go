package journal

import (
	"bufio"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dgnsrekt/graphview/internal/loader"
)

func TestWriterFlushesOnClose(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir, "loads", 16, 1)
	fixed := time.Date(2025, 5, 4, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return fixed }

	observe := w.LoaderObserver()
	observe(loader.Event{Type: loader.EventStarted, TargetID: "graph-1"})
	observe(loader.Event{Type: loader.EventRendered, TargetID: "graph-1"})
	observe(loader.Event{Type: loader.EventFailed, TargetID: "graph-2", Code: "FETCH_FAILED"})

	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v; want nil", err)
	}

	f, err := os.Open(filepath.Join(dir, "2025-05-04", "loads.jsonl"))
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	defer f.Close()

	var got []loader.Event
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var ev loader.Event
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("json.Unmarshal(%q) = %v", sc.Text(), err)
		}
		got = append(got, ev)
	}
	if len(got) != 2 {
		t.Fatalf("journal lines = %d; want 2 (started events are skipped)", len(got))
	}
	if got[1].Code != "FETCH_FAILED" {
		t.Fatalf("second record code = %q; want FETCH_FAILED", got[1].Code)
	}
}

func TestWriteAfterClose(t *testing.T) {
	w := NewWriter(t.TempDir(), "loads", 1, 1)
	if err := w.Close(); err != nil {
		t.Fatalf("Close() = %v; want nil", err)
	}
	if err := w.Write(map[string]string{"a": "b"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Write() after Close = %v; want ErrClosed", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("second Close() = %v; want nil", err)
	}
}
