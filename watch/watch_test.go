package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NoFiles(t *testing.T) {
	_, err := New(nil)
	assert.Error(t, err)
}

func TestNew_MissingDirectory(t *testing.T) {
	_, err := New([]string{filepath.Join(t.TempDir(), "missing", "urls.txt")})
	assert.Error(t, err)
}

func TestRun_DebouncesChanges(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "urls.txt")
	other := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(input, []byte("/\n"), 0o644))

	w, err := New([]string{input})
	require.NoError(t, err)
	w.WithDebounce(50 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	events := make(chan Event, 10)
	done := make(chan error, 1)
	go func() {
		done <- w.Run(ctx, func(ctx context.Context, e Event) error {
			calls.Add(1)
			events <- e
			return nil
		})
	}()

	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))
	for _, content := range []string{"/\n/a\n", "/\n/a\n/b\n", "/\n/a\n/b\n/c\n"} {
		require.NoError(t, os.WriteFile(input, []byte(content), 0o644))
	}

	select {
	case e := <-events:
		assert.Equal(t, "urls.txt", filepath.Base(e.Name))
	case <-time.After(5 * time.Second):
		t.Fatal("callback was not called after the file changed")
	}

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load(), "a burst of writes should trigger one run")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_KeepsWatchingAfterError(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "urls.csv")
	require.NoError(t, os.WriteFile(input, []byte("loc\n/\n"), 0o644))

	w, err := New([]string{input})
	require.NoError(t, err)
	w.WithDebounce(20 * time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan struct{}, 10)
	go w.Run(ctx, func(ctx context.Context, e Event) error {
		calls <- struct{}{}
		return errors.New("bad input")
	})

	for range 2 {
		require.NoError(t, os.WriteFile(input, []byte("loc\n/x\n"), 0o644))
		select {
		case <-calls:
		case <-time.After(5 * time.Second):
			t.Fatal("callback was not called")
		}
	}
}
