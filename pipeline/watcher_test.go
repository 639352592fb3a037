package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestDatasetWatcherHandlesCSV(t *testing.T) {
	dir := t.TempDir()
	handled := make(chan string, 4)

	watcher, err := NewDatasetWatcher(WatcherConfig{Dir: dir, Debounce: 20 * time.Millisecond},
		func(ctx context.Context, path string) error {
			handled <- path
			return nil
		}, zap.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watcher.Start(ctx)
	defer watcher.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignore me"), 0o600))
	target := filepath.Join(dir, "week12.csv")
	require.NoError(t, os.WriteFile(target, []byte(sampleCSV), 0o600))

	select {
	case path := <-handled:
		assert.Equal(t, target, path)
	case <-time.After(5 * time.Second):
		t.Fatal("dataset was not handled")
	}
}

func TestDatasetWatcherRequiresDir(t *testing.T) {
	_, err := NewDatasetWatcher(WatcherConfig{}, nil, nil)
	assert.Error(t, err)

	_, err = NewDatasetWatcher(WatcherConfig{Dir: filepath.Join(t.TempDir(), "missing")}, nil, nil)
	assert.Error(t, err)
}
