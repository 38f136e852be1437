// Package listener accepts loopback TCP clients one at a time and feeds
// their framed requests to a dispatcher.
package listener

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/graphctl/internal/observability"
	"github.com/danmuck/graphctl/internal/protocol"
	"github.com/danmuck/graphctl/internal/protocol/frame"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotLoopback    = errors.New("listener: address is not loopback")
	ErrAlreadyStarted = errors.New("listener: already started")
	ErrStopped        = errors.New("listener: stopped")
)

// Dispatcher turns one request body into one response.
type Dispatcher interface {
	Dispatch(ctx context.Context, body []byte) protocol.Response
}

type Config struct {
	Addr         string
	IdleTimeout  time.Duration
	PollInterval time.Duration
	Limits       frame.Limits
	Logger       *zerolog.Logger
	// Listen binds the socket. Nil means net.Listen.
	Listen func(network, address string) (net.Listener, error)
}

func DefaultConfig() Config {
	return Config{
		Addr:         protocol.DefaultAddr,
		IdleTimeout:  protocol.DefaultIdleTimeout,
		PollInterval: protocol.DefaultAcceptPoll,
		Limits:       frame.DefaultLimits(),
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if strings.TrimSpace(c.Addr) == "" {
		c.Addr = def.Addr
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = def.IdleTimeout
	}
	if c.PollInterval <= 0 {
		c.PollInterval = def.PollInterval
	}
	if c.PollInterval > c.IdleTimeout {
		c.PollInterval = c.IdleTimeout
	}
	c.Limits = c.Limits.WithDefaults()
	if c.Listen == nil {
		c.Listen = net.Listen
	}
	return c
}

// CheckLoopback rejects listen addresses that are reachable off-host.
func CheckLoopback(addr string) error {
	host, _, err := net.SplitHostPort(strings.TrimSpace(addr))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNotLoopback, err)
	}
	if strings.EqualFold(host, "localhost") {
		return nil
	}
	ip := net.ParseIP(host)
	if ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%w: %q", ErrNotLoopback, addr)
	}
	return nil
}

type Listener struct {
	cfg    Config
	disp   Dispatcher
	logger zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	ln      net.Listener
	active  net.Conn
	started bool
	done    chan struct{}
	err     error

	stopping atomic.Bool
	stopOnce sync.Once
	served   atomic.Uint64
}

func New(cfg Config, disp Dispatcher) *Listener {
	cfg = cfg.withDefaults()
	l := log.Logger
	if cfg.Logger != nil {
		l = *cfg.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		cfg:    cfg,
		disp:   disp,
		logger: l.With().Str("component", "listener").Logger(),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Start binds the listening socket and begins serving in the background.
func (l *Listener) Start() error {
	if err := CheckLoopback(l.cfg.Addr); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started {
		return ErrAlreadyStarted
	}
	if l.stopping.Load() {
		return ErrStopped
	}
	ln, err := l.cfg.Listen("tcp", l.cfg.Addr)
	if err != nil {
		return err
	}
	l.ln = ln
	l.started = true
	l.logger.Info().Str("addr", ln.Addr().String()).Msg("listener.Listener.Start listening")
	go l.acceptLoop(ln)
	return nil
}

// Addr returns the bound address, or nil before Start.
func (l *Listener) Addr() net.Addr {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Done is closed when the accept loop exits, after Stop or on failure.
func (l *Listener) Done() <-chan struct{} { return l.done }

// Err reports why the accept loop exited. It is nil after a clean Stop.
func (l *Listener) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Served counts clients that have been accepted.
func (l *Listener) Served() uint64 { return l.served.Load() }

// Stop closes the socket and any active client, then waits for the accept
// loop to exit. It is safe to call more than once.
func (l *Listener) Stop() {
	l.stopOnce.Do(func() {
		l.stopping.Store(true)
		l.cancel()
		l.mu.Lock()
		started := l.started
		if l.ln != nil {
			_ = l.ln.Close()
		}
		if l.active != nil {
			_ = l.active.Close()
		}
		l.mu.Unlock()
		if started {
			<-l.done
		}
		l.logger.Info().Uint64("served", l.served.Load()).Msg("listener.Listener.Stop stopped")
	})
}

func (l *Listener) acceptLoop(ln net.Listener) {
	defer close(l.done)
	tcp, _ := ln.(*net.TCPListener)
	for !l.stopping.Load() {
		if tcp != nil {
			_ = tcp.SetDeadline(time.Now().Add(l.cfg.PollInterval))
		}
		conn, err := ln.Accept()
		if err != nil {
			if l.stopping.Load() {
				return
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			l.logger.Error().Err(err).Msg("listener.Listener accept failed")
			l.mu.Lock()
			l.err = fmt.Errorf("listener: accept: %w", err)
			l.mu.Unlock()
			return
		}
		l.serve(conn)
	}
}

// serve handles one client inline; others wait in the kernel backlog.
func (l *Listener) serve(conn net.Conn) {
	l.mu.Lock()
	if l.stopping.Load() {
		l.mu.Unlock()
		_ = conn.Close()
		return
	}
	l.active = conn
	l.mu.Unlock()

	l.served.Add(1)
	observability.SetActiveClients(1)
	remote := conn.RemoteAddr().String()
	l.logger.Info().Str("remote", remote).Msg("listener.Listener client connected")

	result := l.session(conn)

	l.mu.Lock()
	l.active = nil
	l.mu.Unlock()
	_ = conn.Close()
	observability.SetActiveClients(0)
	observability.RecordConnection(result)
	l.logger.Info().Str("remote", remote).Str("result", result).Msg("listener.Listener client disconnected")
}

// session runs the request/response loop and reports how it ended.
func (l *Listener) session(conn net.Conn) string {
	br := bufio.NewReader(conn)
	for {
		if result, ok := l.awaitRequest(conn, br); !ok {
			return result
		}

		_ = conn.SetReadDeadline(time.Now().Add(l.cfg.IdleTimeout))
		body, err := frame.ReadMessage(br, l.cfg.Limits)
		if err != nil {
			return l.rejectFrame(conn, err)
		}

		resp := l.disp.Dispatch(l.ctx, body)
		if err := l.writeResponse(conn, resp); err != nil {
			l.logger.Warn().Err(err).Msg("listener.Listener write failed")
			return "write_error"
		}
	}
}

// awaitRequest waits for a full header in poll-sized slices so that Stop
// is noticed while the client is idle.
func (l *Listener) awaitRequest(conn net.Conn, br *bufio.Reader) (string, bool) {
	idleUntil := time.Now().Add(l.cfg.IdleTimeout)
	for {
		if l.stopping.Load() {
			return "stopped", false
		}
		slice := time.Now().Add(l.cfg.PollInterval)
		if slice.After(idleUntil) {
			slice = idleUntil
		}
		_ = conn.SetReadDeadline(slice)
		_, err := br.Peek(frame.HeaderLen)
		if err == nil {
			return "", true
		}
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			if !time.Now().Before(idleUntil) {
				l.logger.Info().Dur("idle_timeout", l.cfg.IdleTimeout).Msg("listener.Listener client idle")
				return "idle", false
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			if br.Buffered() > 0 {
				observability.RecordFrameRejected("short_header")
				return "protocol_error", false
			}
			return "closed", false
		}
		if l.stopping.Load() {
			return "stopped", false
		}
		return "read_error", false
	}
}

func (l *Listener) rejectFrame(conn net.Conn, err error) string {
	switch {
	case errors.Is(err, frame.ErrEmptyMessage):
		observability.RecordFrameRejected("empty")
		l.replyAndClose(conn, "Invalid frame: zero-length message")
		return "protocol_error"
	case errors.Is(err, frame.ErrMessageTooLarge):
		observability.RecordFrameRejected("too_large")
		l.replyAndClose(conn, fmt.Sprintf("Invalid frame: message exceeds maximum of %d bytes", l.cfg.Limits.MaxMessageBytes))
		return "protocol_error"
	case errors.Is(err, frame.ErrTruncated), errors.Is(err, frame.ErrShortHeader):
		observability.RecordFrameRejected("truncated")
		return "protocol_error"
	default:
		l.logger.Warn().Err(err).Msg("listener.Listener read failed")
		return "read_error"
	}
}

func (l *Listener) replyAndClose(conn net.Conn, msg string) {
	l.logger.Warn().Str("reason", msg).Msg("listener.Listener rejecting frame")
	resp := protocol.Failf(protocol.KindProtocol, "%s", msg)
	if err := l.writeResponse(conn, resp); err != nil {
		l.logger.Debug().Err(err).Msg("listener.Listener protocol reply not delivered")
	}
}

func (l *Listener) writeResponse(conn net.Conn, resp protocol.Response) error {
	body, err := resp.Encode()
	if err != nil {
		body, err = protocol.Failf(protocol.KindHost, "Failed to encode response: %v", err).Stamp(resp.Action).Encode()
		if err != nil {
			return err
		}
	}
	if uint64(len(body)) > uint64(l.cfg.Limits.MaxMessageBytes) {
		observability.RecordFrameRejected("response_too_large")
		body, err = protocol.Failf(protocol.KindProtocol, "Response size %d exceeds maximum %d",
			len(body), l.cfg.Limits.MaxMessageBytes).Stamp(resp.Action).Encode()
		if err != nil {
			return err
		}
	}
	_ = conn.SetWriteDeadline(time.Now().Add(l.cfg.IdleTimeout))
	return frame.WriteMessage(conn, body, l.cfg.Limits)
}
