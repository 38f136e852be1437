package listener

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/graphctl/internal/protocol"
	"github.com/danmuck/graphctl/internal/protocol/frame"
	"github.com/danmuck/graphctl/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

// echoDispatcher answers every request with its action and body size.
type echoDispatcher struct {
	calls atomic.Int32
	pad   int
}

func (d *echoDispatcher) Dispatch(_ context.Context, body []byte) protocol.Response {
	d.calls.Add(1)
	cmd, err := protocol.DecodeCommand(body)
	if err != nil {
		return protocol.Fail(err)
	}
	resp := protocol.OK("echo").With("bytes", len(body)).Stamp(cmd.Action())
	if d.pad > 0 {
		resp = resp.With("pad", strings.Repeat("x", d.pad))
	}
	return resp
}

func startListener(t *testing.T, cfg Config, disp Dispatcher) *Listener {
	t.Helper()
	testlog.Start(t)
	cfg.Addr = "127.0.0.1:0"
	l := New(cfg, disp)
	require.NoError(t, l.Start())
	t.Cleanup(l.Stop)
	return l
}

func dial(t *testing.T, l *Listener) net.Conn {
	t.Helper()
	conn, err := net.DialTimeout("tcp", l.Addr().String(), time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn net.Conn, body string) protocol.Response {
	t.Helper()
	require.NoError(t, frame.WriteMessage(conn, []byte(body), frame.Limits{}))
	return readResponse(t, conn)
}

func readResponse(t *testing.T, conn net.Conn) protocol.Response {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	raw, err := frame.ReadMessage(conn, frame.Limits{})
	require.NoError(t, err)
	var resp protocol.Response
	require.NoError(t, json.Unmarshal(raw, &resp))
	return resp
}

func requireClosed(t *testing.T, conn net.Conn) {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, err := conn.Read(make([]byte, 1))
	require.Error(t, err)
	var ne net.Error
	if errors.As(err, &ne) {
		require.False(t, ne.Timeout(), "connection was not closed")
	}
}

func TestCheckLoopback(t *testing.T) {
	testlog.Start(t)
	for _, addr := range []string{"127.0.0.1:9877", "localhost:9877", "[::1]:9877", "127.0.0.2:1"} {
		require.NoError(t, CheckLoopback(addr), addr)
	}
	for _, addr := range []string{"0.0.0.0:9877", "10.0.0.1:9877", ":9877", "example.com:80", "nonsense"} {
		require.ErrorIs(t, CheckLoopback(addr), ErrNotLoopback, addr)
	}
}

func TestStartRejectsNonLoopback(t *testing.T) {
	testlog.Start(t)
	l := New(Config{Addr: "0.0.0.0:0"}, &echoDispatcher{})
	require.ErrorIs(t, l.Start(), ErrNotLoopback)
	l.Stop()
}

func TestServesSequentialRequests(t *testing.T) {
	disp := &echoDispatcher{}
	l := startListener(t, Config{}, disp)
	conn := dial(t, l)

	for i := range 3 {
		resp := roundTrip(t, conn, `{"action":"ping"}`)
		require.True(t, resp.IsOK(), "request %d", i)
		require.Equal(t, "ping", resp.Action)
	}
	require.EqualValues(t, 3, disp.calls.Load())
}

func TestZeroLengthFrameRepliesThenCloses(t *testing.T) {
	disp := &echoDispatcher{}
	l := startListener(t, Config{}, disp)
	conn := dial(t, l)

	_, err := conn.Write(frame.EncodeHeader(0))
	require.NoError(t, err)
	resp := readResponse(t, conn)
	require.False(t, resp.IsOK())
	require.Equal(t, protocol.KindProtocol, resp.Kind)
	requireClosed(t, conn)
	require.Zero(t, disp.calls.Load())
}

func TestOversizeFrameRepliesThenCloses(t *testing.T) {
	disp := &echoDispatcher{}
	l := startListener(t, Config{Limits: frame.Limits{MaxMessageBytes: 1024}}, disp)
	conn := dial(t, l)

	_, err := conn.Write(frame.EncodeHeader(1 << 20))
	require.NoError(t, err)
	resp := readResponse(t, conn)
	require.Equal(t, protocol.KindProtocol, resp.Kind)
	require.Contains(t, resp.Message, "exceeds maximum of 1024 bytes")
	requireClosed(t, conn)
	require.Zero(t, disp.calls.Load())
}

func TestOversizeResponseIsReplaced(t *testing.T) {
	disp := &echoDispatcher{pad: 512}
	l := startListener(t, Config{Limits: frame.Limits{MaxMessageBytes: 256}}, disp)
	conn := dial(t, l)

	resp := roundTrip(t, conn, `{"action":"big"}`)
	require.False(t, resp.IsOK())
	require.Equal(t, "big", resp.Action)
	require.True(t, strings.HasPrefix(resp.Message, "Response size "), resp.Message)
	require.Contains(t, resp.Message, "exceeds maximum 256")

	disp.pad = 0
	resp = roundTrip(t, conn, `{"action":"small"}`)
	require.True(t, resp.IsOK(), "connection stays usable after an oversize response")
}

func TestDisconnectedClientDoesNotBlockNext(t *testing.T) {
	disp := &echoDispatcher{}
	l := startListener(t, Config{IdleTimeout: 5 * time.Second, PollInterval: 20 * time.Millisecond}, disp)

	a := dial(t, l)
	require.True(t, roundTrip(t, a, `{"action":"create_builder"}`).IsOK())
	require.NoError(t, a.Close())

	b := dial(t, l)
	resp := roundTrip(t, b, `{"action":"add_node"}`)
	require.True(t, resp.IsOK())
	require.Equal(t, "add_node", resp.Action)
	require.EqualValues(t, 2, l.Served())
}

func TestIdleClientIsDropped(t *testing.T) {
	disp := &echoDispatcher{}
	l := startListener(t, Config{IdleTimeout: 150 * time.Millisecond, PollInterval: 20 * time.Millisecond}, disp)

	idle := dial(t, l)
	require.True(t, roundTrip(t, idle, `{"action":"ping"}`).IsOK())

	waiting := dial(t, l)
	start := time.Now()
	resp := roundTrip(t, waiting, `{"action":"ping"}`)
	require.True(t, resp.IsOK())
	require.Less(t, time.Since(start), 2*time.Second)
	requireClosed(t, idle)
}

func TestPartialHeaderSurvivesPollSlices(t *testing.T) {
	disp := &echoDispatcher{}
	l := startListener(t, Config{IdleTimeout: 2 * time.Second, PollInterval: 10 * time.Millisecond}, disp)
	conn := dial(t, l)

	body := []byte(`{"action":"slow_writer"}`)
	msg := append(frame.EncodeHeader(uint32(len(body))), body...)
	for _, chunk := range [][]byte{msg[:2], msg[2:3], msg[3:]} {
		_, err := conn.Write(chunk)
		require.NoError(t, err)
		time.Sleep(30 * time.Millisecond)
	}
	resp := readResponse(t, conn)
	require.True(t, resp.IsOK())
	require.Equal(t, "slow_writer", resp.Action)
}

func TestStopClosesActiveClient(t *testing.T) {
	disp := &echoDispatcher{}
	l := startListener(t, Config{IdleTimeout: 10 * time.Second, PollInterval: 20 * time.Millisecond}, disp)
	conn := dial(t, l)
	require.True(t, roundTrip(t, conn, `{"action":"ping"}`).IsOK())

	done := make(chan struct{})
	go func() {
		l.Stop()
		l.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatalf("stop did not return")
	}
	requireClosed(t, conn)
	require.ErrorIs(t, l.Start(), ErrStopped)

	_, err := net.DialTimeout("tcp", l.Addr().String(), 200*time.Millisecond)
	if err == nil {
		t.Fatalf("expected listening socket to be closed")
	}
}

func TestTruncatedBodyClosesQuietly(t *testing.T) {
	disp := &echoDispatcher{}
	l := startListener(t, Config{}, disp)
	conn := dial(t, l)

	_, err := conn.Write(append(frame.EncodeHeader(100), []byte("short")...))
	require.NoError(t, err)
	require.NoError(t, conn.(*net.TCPConn).CloseWrite())

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, err = io.ReadAll(conn)
	require.NoError(t, err)
	require.Zero(t, disp.calls.Load())
}

func TestAcceptFailureIsReported(t *testing.T) {
	l := startListener(t, Config{PollInterval: 20 * time.Millisecond}, &echoDispatcher{})

	l.mu.Lock()
	_ = l.ln.Close()
	l.mu.Unlock()

	select {
	case <-l.Done():
	case <-time.After(3 * time.Second):
		t.Fatalf("accept loop kept running after its socket closed")
	}
	require.ErrorIs(t, l.Err(), net.ErrClosed)
}

func TestCleanStopLeavesNoError(t *testing.T) {
	l := startListener(t, Config{PollInterval: 20 * time.Millisecond}, &echoDispatcher{})
	l.Stop()
	select {
	case <-l.Done():
	default:
		t.Fatalf("Done not closed after Stop")
	}
	require.NoError(t, l.Err())
}
