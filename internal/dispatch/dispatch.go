// Package dispatch routes decoded commands to handlers that run inside the
// exclusive host context. The calling goroutine never runs a handler.
package dispatch

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/graphctl/internal/hostloop"
	"github.com/danmuck/graphctl/internal/observability"
	"github.com/danmuck/graphctl/internal/protocol"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Handler runs on the host context with exclusive access to state.
type Handler[S any] func(cmd protocol.Command, state S) protocol.Response

type Config struct {
	Timeout      time.Duration
	PollInterval time.Duration
	Logger       *zerolog.Logger
}

func DefaultConfig() Config {
	return Config{
		Timeout:      protocol.DefaultHandoffTimeout,
		PollInterval: protocol.DefaultHandoffPoll,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Timeout <= 0 {
		c.Timeout = def.Timeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.PollInterval > c.Timeout {
		c.PollInterval = c.Timeout
	}
	return c
}

type Dispatcher[S any] struct {
	exec   hostloop.Executor
	state  S
	cfg    Config
	logger zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler[S]

	shutdown atomic.Bool
	// alive gates handlers that start after shutdown was signalled.
	alive atomic.Bool
}

func New[S any](exec hostloop.Executor, state S, cfg Config) *Dispatcher[S] {
	cfg = cfg.withDefaults()
	l := log.Logger
	if cfg.Logger != nil {
		l = *cfg.Logger
	}
	d := &Dispatcher[S]{
		exec:     exec,
		state:    state,
		cfg:      cfg,
		logger:   l.With().Str("component", "dispatch").Logger(),
		handlers: make(map[string]Handler[S]),
	}
	d.alive.Store(true)
	return d
}

// Register binds action to h, replacing any previous handler.
func (d *Dispatcher[S]) Register(action string, h Handler[S]) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[action] = h
}

func (d *Dispatcher[S]) Actions() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]string, 0, len(d.handlers))
	for a := range d.handlers {
		out = append(out, a)
	}
	slices.Sort(out)
	return out
}

func (d *Dispatcher[S]) lookup(action string) (Handler[S], bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[action]
	return h, ok
}

// SignalShutdown makes new and in-flight dispatches fail fast. It is
// idempotent.
func (d *Dispatcher[S]) SignalShutdown() {
	if d.shutdown.CompareAndSwap(false, true) {
		d.alive.Store(false)
		d.logger.Info().Msg("dispatch.Dispatcher.SignalShutdown")
	}
}

func (d *Dispatcher[S]) ShuttingDown() bool { return d.shutdown.Load() }

// Dispatch decodes body, hands the command to the host context and waits
// for its response. The returned response always carries the action.
func (d *Dispatcher[S]) Dispatch(ctx context.Context, body []byte) protocol.Response {
	start := time.Now()
	cmd, err := protocol.DecodeCommand(body)
	if err != nil {
		resp := protocol.Fail(err)
		d.record(invalidLabel, resp, start)
		return resp
	}
	action := cmd.Action()
	resp := d.dispatch(ctx, cmd).Stamp(action)
	label := action
	if _, ok := d.lookup(action); !ok {
		label = unknownLabel
	}
	d.record(label, resp, start)
	return resp
}

func (d *Dispatcher[S]) dispatch(ctx context.Context, cmd protocol.Command) protocol.Response {
	action := cmd.Action()
	h, ok := d.lookup(action)
	if !ok {
		return protocol.Failf(protocol.KindProtocol, "Unknown action: '%s'", action)
	}
	if d.ShuttingDown() {
		return shuttingDown()
	}

	done := make(chan protocol.Response, 1)
	task := func() {
		if !d.alive.Load() {
			done <- shuttingDown()
			return
		}
		done <- d.run(h, cmd)
	}
	if err := d.exec.Post(task); err != nil {
		d.logger.Warn().Str("action", action).Err(err).Msg("dispatch.Dispatcher post failed")
		return protocol.Failf(protocol.KindUnavailable, "Host context unavailable: %v", err)
	}

	deadline := time.NewTimer(d.cfg.Timeout)
	defer deadline.Stop()
	poll := time.NewTicker(d.cfg.PollInterval)
	defer poll.Stop()
	for {
		select {
		case resp := <-done:
			return resp
		case <-poll.C:
			if d.ShuttingDown() {
				return shuttingDown()
			}
		case <-deadline.C:
			observability.RecordDispatchTimeout(action)
			d.logger.Error().Str("action", action).Dur("timeout", d.cfg.Timeout).
				Msg("dispatch.Dispatcher handoff timed out")
			return protocol.Failf(protocol.KindTimeout, "Command '%s' timed out after %dms",
				action, d.cfg.Timeout.Milliseconds())
		case <-ctx.Done():
			return protocol.Failf(protocol.KindUnavailable, "Command '%s' cancelled: %v", action, ctx.Err())
		}
	}
}

// run invokes h on the host context. Panics become host errors.
func (d *Dispatcher[S]) run(h Handler[S], cmd protocol.Command) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error().Str("action", cmd.Action()).Interface("panic", r).Msg("dispatch.Dispatcher handler panicked")
			resp = protocol.Failf(protocol.KindHost, "Handler for '%s' failed: %v", cmd.Action(), r)
		}
	}()
	return h(cmd, d.state)
}

func (d *Dispatcher[S]) record(label string, resp protocol.Response, start time.Time) {
	kind := ""
	if !resp.IsOK() {
		kind = string(resp.Kind)
	}
	observability.RecordCommand(label, string(resp.Status), kind, time.Since(start))
	ev := d.logger.Debug()
	if !resp.IsOK() {
		ev = d.logger.Warn().Str("kind", kind)
	}
	ev.Str("action", resp.Action).Dur("elapsed", time.Since(start)).Str("detail", resp.Message).
		Msg("dispatch.Dispatcher.Dispatch")
}

// Metric labels for commands outside the action table. Client-chosen names
// never become label values.
const (
	invalidLabel = "<invalid>"
	unknownLabel = "<unknown>"
)

func shuttingDown() protocol.Response {
	return protocol.Failf(protocol.KindUnavailable, "Server is shutting down")
}

