package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DatasetHandler consumes a dataset file that appeared in the watched
// directory.
type DatasetHandler func(ctx context.Context, path string) error

// WatcherConfig watcher settings.
type WatcherConfig struct {
	Dir      string
	Debounce time.Duration
}

// DatasetWatcher hands every CSV written into Dir to a handler, one file at
// a time. Bursts of write events for one file collapse into a single call.
type DatasetWatcher struct {
	config  WatcherConfig
	handle  DatasetHandler
	logger  *zap.Logger
	watcher *fsnotify.Watcher

	ready   chan string
	pending map[string]*time.Timer
	mu      sync.Mutex

	stopChan chan struct{}
	wg       sync.WaitGroup
}

func NewDatasetWatcher(config WatcherConfig, handle DatasetHandler, logger *zap.Logger) (*DatasetWatcher, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("watch dir is required")
	}
	if config.Debounce <= 0 {
		config.Debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(config.Dir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", config.Dir, err)
	}

	return &DatasetWatcher{
		config:   config,
		handle:   handle,
		logger:   logger.With(zap.String("component", "dataset_watcher"), zap.String("dir", config.Dir)),
		watcher:  watcher,
		ready:    make(chan string, 16),
		pending:  make(map[string]*time.Timer),
		stopChan: make(chan struct{}),
	}, nil
}

// Start begins handling events until Stop or ctx is done.
func (w *DatasetWatcher) Start(ctx context.Context) {
	w.wg.Add(1)
	go w.run(ctx)
	w.logger.Info("watching for datasets")
}

func (w *DatasetWatcher) Stop() error {
	close(w.stopChan)
	err := w.watcher.Close()
	w.wg.Wait()

	w.mu.Lock()
	for path, timer := range w.pending {
		timer.Stop()
		delete(w.pending, path)
	}
	w.mu.Unlock()
	return err
}

func (w *DatasetWatcher) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopChan:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !isDatasetEvent(event) {
				continue
			}
			w.schedule(event.Name)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		case path := <-w.ready:
			start := time.Now()
			if err := w.handle(ctx, path); err != nil {
				w.logger.Error("dataset rejected", zap.String("file", path), zap.Error(err))
				continue
			}
			w.logger.Info("dataset handled", zap.String("file", path), zap.Duration("took", time.Since(start)))
		}
	}
}

func (w *DatasetWatcher) schedule(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.config.Debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.config.Debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()

		select {
		case w.ready <- path:
		case <-w.stopChan:
		}
	})
}

func isDatasetEvent(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return false
	}
	return strings.EqualFold(filepath.Ext(event.Name), ".csv")
}
