package hostloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/danmuck/graphctl/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

func startLoop(t *testing.T, size int) (*Loop, context.CancelFunc, <-chan error) {
	t.Helper()
	l := New(size, nil)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	stopped := make(chan struct{})
	go func() {
		errc <- l.Run(ctx)
		close(stopped)
	}()
	require.Eventually(t, l.Running, time.Second, 5*time.Millisecond)
	t.Cleanup(func() {
		cancel()
		<-stopped
	})
	return l, cancel, errc
}

func TestLoopRunsTasksInOrderOnOneGoroutine(t *testing.T) {
	testlog.Start(t)
	l, _, _ := startLoop(t, 16)

	var (
		mu    sync.Mutex
		order []int
	)
	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		require.NoError(t, l.Post(func() {
			defer wg.Done()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}))
	}
	wg.Wait()
	require.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, order)
	require.EqualValues(t, 10, l.Ran())
}

func TestPostFailsWhenFull(t *testing.T) {
	testlog.Start(t)
	l := New(1, nil)
	require.NoError(t, l.Post(func() {}))
	err := l.Post(func() {})
	require.ErrorIs(t, err, ErrQueueFull)
	require.Equal(t, 1, l.Pending())
}

func TestPostAfterClose(t *testing.T) {
	testlog.Start(t)
	l := New(4, nil)
	l.Close()
	l.Close()
	require.ErrorIs(t, l.Post(func() {}), ErrLoopClosed)
	require.ErrorIs(t, l.Post(nil), ErrNilTask)
}

func TestRunDrainsQueuedTasksOnClose(t *testing.T) {
	testlog.Start(t)
	l := New(4, nil)
	hits := 0
	for range 3 {
		require.NoError(t, l.Post(func() { hits++ }))
	}
	l.Close()
	require.NoError(t, l.Run(context.Background()))
	require.Equal(t, 3, hits)
	require.False(t, l.Running())
}

func TestPanicDoesNotStopLoop(t *testing.T) {
	testlog.Start(t)
	l, _, _ := startLoop(t, 4)

	require.NoError(t, l.Post(func() { panic("boom") }))
	got, err := Call(context.Background(), l, func() string { return "alive" })
	require.NoError(t, err)
	require.Equal(t, "alive", got)
	require.EqualValues(t, 1, l.Panics())
}

func TestRunTwiceFails(t *testing.T) {
	testlog.Start(t)
	l, _, _ := startLoop(t, 4)
	require.ErrorIs(t, l.Run(context.Background()), ErrRunning)
}

func TestCancelStopsLoop(t *testing.T) {
	testlog.Start(t)
	l, cancel, done := startLoop(t, 4)
	cancel()
	select {
	case err := <-done:
		require.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatalf("loop did not stop")
	}
	require.ErrorIs(t, l.Post(func() {}), ErrLoopClosed)
}

func TestCallHonorsContext(t *testing.T) {
	testlog.Start(t)
	l, _, _ := startLoop(t, 4)

	release := make(chan struct{})
	require.NoError(t, l.Post(func() { <-release }))
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := Call(ctx, l, func() int { return 1 })
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
