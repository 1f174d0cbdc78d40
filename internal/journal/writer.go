// Package journal records loader outcomes as JSON lines, one directory per
// UTC day, rotated by size with lumberjack.
package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/dgnsrekt/graphview/internal/loader"
)

var (
	ErrClosed     = errors.New("journal closed")
	ErrBufferFull = errors.New("journal buffer full")
)

const drainTimeout = 5 * time.Second

// Writer appends records asynchronously.
type Writer struct {
	baseDir   string
	name      string
	maxSizeMB int

	writeCh chan any
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup

	mu          sync.Mutex
	currentDate string
	logger      *lumberjack.Logger
	now         func() time.Time
}

// NewWriter starts a writer storing <baseDir>/<date>/<name>.jsonl.
func NewWriter(baseDir, name string, bufferSize, maxSizeMB int) *Writer {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 50
	}
	w := &Writer{
		baseDir:   baseDir,
		name:      name,
		maxSizeMB: maxSizeMB,
		writeCh:   make(chan any, bufferSize),
		done:      make(chan struct{}),
		now:       time.Now,
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// Write queues a record. It never blocks: a full buffer drops the record.
func (w *Writer) Write(record any) error {
	select {
	case <-w.done:
		return ErrClosed
	default:
	}
	select {
	case w.writeCh <- record:
		return nil
	default:
		slog.Warn("journal buffer full, dropping record", "name", w.name)
		return ErrBufferFull
	}
}

// LoaderObserver journals every terminal loader event.
func (w *Writer) LoaderObserver() loader.Observer {
	return func(ev loader.Event) {
		if ev.Type == loader.EventStarted {
			return
		}
		_ = w.Write(ev)
	}
}

// Close flushes pending records and closes the current file.
func (w *Writer) Close() error {
	w.once.Do(func() { close(w.done) })
	w.wg.Wait()

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.logger != nil {
		err := w.logger.Close()
		w.logger = nil
		return err
	}
	return nil
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case record := <-w.writeCh:
			w.writeRecord(record)
		case <-w.done:
			w.drain()
			return
		}
	}
}

func (w *Writer) drain() {
	timeout := time.After(drainTimeout)
	for {
		select {
		case record := <-w.writeCh:
			w.writeRecord(record)
		case <-timeout:
			slog.Warn("journal close timeout, records lost", "name", w.name, "pending", len(w.writeCh))
			return
		default:
			return
		}
	}
}

func (w *Writer) writeRecord(record any) {
	data, err := json.Marshal(record)
	if err != nil {
		slog.Error("journal marshal failed", "name", w.name, "error", err)
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	date := w.now().UTC().Format("2006-01-02")
	if w.logger == nil || date != w.currentDate {
		if err := w.openForDate(date); err != nil {
			slog.Error("journal open failed", "name", w.name, "error", err)
			return
		}
	}
	if _, err := w.logger.Write(append(data, '\n')); err != nil {
		slog.Error("journal write failed", "name", w.name, "error", err)
	}
}

func (w *Writer) openForDate(date string) error {
	if w.logger != nil {
		_ = w.logger.Close()
		w.logger = nil
	}
	dir := filepath.Join(w.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	filename := filepath.Join(dir, w.name+".jsonl")
	w.logger = &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    w.maxSizeMB,
		MaxBackups: 100,
		MaxAge:     30,
		LocalTime:  false,
	}
	w.currentDate = date
	slog.Info("journal opened", "file", filename)
	return nil
}
