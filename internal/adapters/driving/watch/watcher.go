// Package watch ingests files dropped into watched directories. Each
// created or modified file becomes a document in memory, so a folder
// on disk acts as an inbox for the ingestion pipeline.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"

	"github.com/quorum-labs/quorum/internal/core/domain"
	"github.com/quorum-labs/quorum/internal/core/ports/driving"
	"github.com/quorum-labs/quorum/internal/logger"
)

// DefaultSettleDelay is how long a file must stay quiet after its last
// write before it is ingested. Editors and sync clients write in
// bursts; ingesting mid-burst would capture a partial file.
const DefaultSettleDelay = 500 * time.Millisecond

// extTypes maps supported file extensions to document types.
var extTypes = map[string]domain.DocumentType{
	".txt":  domain.DocTypeFile,
	".md":   domain.DocTypeNote,
	".eml":  domain.DocTypeEmail,
	".html": domain.DocTypeWeb,
	".json": domain.DocTypeRecord,
	".csv":  domain.DocTypeRecord,
}

// Watcher turns filesystem events in watched directories into
// document ingestions.
type Watcher struct {
	ingest      driving.IngestService
	dirs        []string
	settleDelay time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
	wg      sync.WaitGroup
}

// Option configures the watcher.
type Option func(*Watcher)

// WithSettleDelay overrides how long a file must stay quiet before
// ingestion.
func WithSettleDelay(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.settleDelay = d
		}
	}
}

// NewWatcher creates a watcher over the given directories.
func NewWatcher(ingest driving.IngestService, dirs []string, opts ...Option) (*Watcher, error) {
	if len(dirs) == 0 {
		return nil, fmt.Errorf("no directories to watch: %w", domain.ErrInvalidInput)
	}
	for _, dir := range dirs {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("watch dir %s: %w", dir, err)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("watch path %s is not a directory: %w", dir, domain.ErrInvalidInput)
		}
	}

	w := &Watcher{
		ingest:      ingest,
		dirs:        dirs,
		settleDelay: DefaultSettleDelay,
		pending:     make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Run watches until ctx is cancelled. Blocks.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		logger.Info("watching %s", dir)
	}

	for {
		select {
		case <-ctx.Done():
			w.drainTimers()
			w.wg.Wait()
			return ctx.Err()

		case event, ok := <-fsw.Events:
			if !ok {
				w.wg.Wait()
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !supported(event.Name) {
				continue
			}
			w.schedule(ctx, event.Name)

		case err, ok := <-fsw.Errors:
			if !ok {
				w.wg.Wait()
				return nil
			}
			logger.Warn("watch error: %v", err)
		}
	}
}

// schedule (re)arms the settle timer for a path. Every further write
// within the delay pushes ingestion back.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.settleDelay)
		return
	}

	w.wg.Add(1)
	w.pending[path] = time.AfterFunc(w.settleDelay, func() {
		defer w.wg.Done()
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		if ctx.Err() != nil {
			return
		}
		w.ingestFile(ctx, path)
	})
}

// drainTimers stops pending timers that have not fired yet.
func (w *Watcher) drainTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, timer := range w.pending {
		if timer.Stop() {
			w.wg.Done()
		}
		delete(w.pending, path)
	}
}

// ingestFile reads the file and pushes it through the pipeline.
func (w *Watcher) ingestFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		logger.Warn("reading %s: %v", path, err)
		return
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		logger.Debug("skipping empty file %s", path)
		return
	}

	doc := &domain.Document{
		ID:      uuid.NewString(),
		Type:    extTypes[strings.ToLower(filepath.Ext(path))],
		Title:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Content: content,
		Tags:    []string{"watched"},
		Metadata: map[string]any{
			"source_path": path,
		},
	}

	embedded, err := w.ingest.IngestDocument(ctx, doc)
	if err != nil {
		logger.Warn("ingesting %s: %v", path, err)
		return
	}
	if embedded {
		logger.Info("ingested %s", filepath.Base(path))
	} else {
		logger.Warn("ingested %s without embeddings; not yet searchable", filepath.Base(path))
	}
}

// supported reports whether the path looks like an ingestable file.
func supported(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") || strings.HasSuffix(base, "~") {
		return false
	}
	_, ok := extTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}
