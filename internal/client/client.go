// Package client is a small framed-JSON client for the bridge. The bridge
// serves one request at a time, so a Client serializes its calls.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"sync"
	"time"

	"github.com/danmuck/graphctl/internal/protocol"
	"github.com/danmuck/graphctl/internal/protocol/frame"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var ErrClosed = errors.New("client: closed")

type Options struct {
	ConnectTimeout time.Duration
	// ResponseTimeout bounds the wait for one response. It should exceed the
	// bridge's dispatch timeout.
	ResponseTimeout time.Duration
	WriteTimeout    time.Duration
	Attempts        int
	Backoff         BackoffConfig
	Limits          frame.Limits
	Logger          *zerolog.Logger
}

func DefaultOptions() Options {
	return Options{
		ConnectTimeout:  5 * time.Second,
		ResponseTimeout: protocol.DefaultHandoffTimeout + 5*time.Second,
		WriteTimeout:    15 * time.Second,
		Attempts:        1,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
		Limits: frame.DefaultLimits(),
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.ConnectTimeout <= 0 {
		o.ConnectTimeout = def.ConnectTimeout
	}
	if o.ResponseTimeout <= 0 {
		o.ResponseTimeout = def.ResponseTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	if o.Attempts <= 0 {
		o.Attempts = def.Attempts
	}
	if o.Backoff == (BackoffConfig{}) {
		o.Backoff = def.Backoff
	}
	o.Limits = o.Limits.WithDefaults()
	return o
}

type Client struct {
	opts   Options
	logger zerolog.Logger

	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to addr, retrying with backoff up to opts.Attempts times.
func Dial(ctx context.Context, addr string, opts Options) (*Client, error) {
	opts = opts.withDefaults()
	l := log.Logger
	if opts.Logger != nil {
		l = *opts.Logger
	}
	logger := l.With().Str("component", "client").Str("addr", addr).Logger()
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))

	var lastErr error
	for attempt := 1; attempt <= opts.Attempts; attempt++ {
		if attempt > 1 {
			delay := opts.Backoff.Delay(attempt-1, rng)
			logger.Debug().Int("attempt", attempt).Dur("delay", delay).Err(lastErr).Msg("client.Dial retrying")
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
		d := net.Dialer{Timeout: opts.ConnectTimeout}
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			logger.Debug().Int("attempt", attempt).Msg("client.Dial connected")
			return &Client{opts: opts, logger: logger, conn: conn}, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("client: dial %s after %d attempts: %w", addr, opts.Attempts, lastErr)
}

// Send issues one action with params and waits for its response.
func (c *Client) Send(ctx context.Context, action string, params map[string]any) (protocol.Response, error) {
	msg := make(map[string]any, len(params)+1)
	for k, v := range params {
		msg[k] = v
	}
	msg["action"] = action
	body, err := json.Marshal(msg)
	if err != nil {
		return protocol.Response{}, err
	}
	return c.SendRaw(ctx, body)
}

// SendRaw writes body as one frame and decodes the reply.
func (c *Client) SendRaw(ctx context.Context, body []byte) (protocol.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return protocol.Response{}, ErrClosed
	}

	writeBy := time.Now().Add(c.opts.WriteTimeout)
	readBy := time.Now().Add(c.opts.ResponseTimeout)
	if dl, ok := ctx.Deadline(); ok {
		if dl.Before(writeBy) {
			writeBy = dl
		}
		if dl.Before(readBy) {
			readBy = dl
		}
	}

	_ = c.conn.SetWriteDeadline(writeBy)
	if err := frame.WriteMessage(c.conn, body, c.opts.Limits); err != nil {
		return protocol.Response{}, fmt.Errorf("client: write: %w", err)
	}
	_ = c.conn.SetReadDeadline(readBy)
	raw, err := frame.ReadMessage(c.conn, c.opts.Limits)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("client: read: %w", err)
	}
	var resp protocol.Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return protocol.Response{}, fmt.Errorf("client: decode response: %w", err)
	}
	return resp, nil
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
