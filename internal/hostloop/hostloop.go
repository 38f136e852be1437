// Package hostloop provides the exclusive execution context that owns the
// graph host. Every host call runs on the single goroutine draining the loop.
package hostloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrLoopClosed = errors.New("hostloop: loop closed")
	ErrQueueFull  = errors.New("hostloop: queue full")
	ErrNilTask    = errors.New("hostloop: nil task")
	ErrRunning    = errors.New("hostloop: already running")
)

const DefaultQueueSize = 64

// Executor accepts work for the exclusive context. Post never blocks.
type Executor interface {
	Post(task func()) error
}

type Loop struct {
	queue  chan func()
	logger zerolog.Logger

	mu      sync.RWMutex
	closed  bool
	running atomic.Bool

	ran    atomic.Uint64
	panics atomic.Uint64
}

var _ Executor = (*Loop)(nil)

func New(queueSize int, logger *zerolog.Logger) *Loop {
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	l := log.Logger
	if logger != nil {
		l = *logger
	}
	return &Loop{
		queue:  make(chan func(), queueSize),
		logger: l.With().Str("component", "hostloop").Logger(),
	}
}

// Post enqueues task. It fails fast when the loop is closed or saturated.
func (l *Loop) Post(task func()) error {
	if task == nil {
		return ErrNilTask
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return ErrLoopClosed
	}
	select {
	case l.queue <- task:
		return nil
	default:
		return fmt.Errorf("%w: %d pending", ErrQueueFull, len(l.queue))
	}
}

// Run drains the queue on the calling goroutine until ctx is done or Close
// is called. Tasks already queued at shutdown still run.
func (l *Loop) Run(ctx context.Context) error {
	if !l.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer l.running.Store(false)
	l.logger.Info().Int("capacity", cap(l.queue)).Msg("hostloop.Loop.Run start")

	for {
		select {
		case <-ctx.Done():
			l.Close()
			for task := range l.queue {
				l.exec(task)
			}
			l.logger.Info().Uint64("ran", l.ran.Load()).Msg("hostloop.Loop.Run stopped")
			return ctx.Err()
		case task, ok := <-l.queue:
			if !ok {
				l.logger.Info().Uint64("ran", l.ran.Load()).Msg("hostloop.Loop.Run closed")
				return nil
			}
			l.exec(task)
		}
	}
}

func (l *Loop) exec(task func()) {
	defer func() {
		if r := recover(); r != nil {
			l.panics.Add(1)
			l.logger.Error().Interface("panic", r).Msg("hostloop.Loop task panicked")
		}
	}()
	l.ran.Add(1)
	task()
}

// Close stops accepting work. It is safe to call more than once.
func (l *Loop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.closed = true
	close(l.queue)
}

// Running reports whether a goroutine is currently draining the loop.
func (l *Loop) Running() bool { return l.running.Load() }

func (l *Loop) Pending() int { return len(l.queue) }

func (l *Loop) Ran() uint64 { return l.ran.Load() }

func (l *Loop) Panics() uint64 { return l.panics.Load() }

// Call posts fn and waits for its result. It must not be called from the
// loop goroutine.
func Call[T any](ctx context.Context, ex Executor, fn func() T) (T, error) {
	var zero T
	result := make(chan T, 1)
	if err := ex.Post(func() { result <- fn() }); err != nil {
		return zero, err
	}
	select {
	case v := <-result:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
