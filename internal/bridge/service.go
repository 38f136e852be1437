// Package bridge wires the listener, dispatcher and command table into one
// service. The host context is supplied by the caller and is never started
// or stopped here.
package bridge

import (
	"context"
	"errors"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/danmuck/graphctl/internal/commands"
	"github.com/danmuck/graphctl/internal/dispatch"
	"github.com/danmuck/graphctl/internal/graphhost"
	"github.com/danmuck/graphctl/internal/hostloop"
	"github.com/danmuck/graphctl/internal/listener"
	"github.com/danmuck/graphctl/internal/observability"
	"github.com/danmuck/graphctl/internal/protocol"
	"github.com/danmuck/graphctl/internal/registry"
	"github.com/danmuck/graphctl/internal/session"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

var (
	ErrInvalidHeartbeatInterval = errors.New("bridge: invalid heartbeat interval")
	ErrNilExecutor              = errors.New("bridge: executor is required")
	ErrNilHost                  = errors.New("bridge: host is required")
)

// ServiceConfig configures one bridge instance.
type ServiceConfig struct {
	Name              string
	Listener          listener.Config
	Dispatch          dispatch.Config
	ContentRoot       string
	AliasFile         string
	WatchAliases      bool
	StatusAddr        string
	CorsOrigins       []string
	HeartbeatInterval time.Duration
	ShutdownGrace     time.Duration
}

func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		Name:              "graphctl",
		Listener:          listener.DefaultConfig(),
		Dispatch:          dispatch.DefaultConfig(),
		ContentRoot:       protocol.DefaultContentRoot,
		HeartbeatInterval: 30 * time.Second,
		ShutdownGrace:     2 * time.Second,
	}
}

type Service struct {
	cfg    ServiceConfig
	exec   hostloop.Executor
	host   graphhost.Host
	reg    *registry.Registry
	state  *commands.State
	disp   *dispatch.Dispatcher[*commands.State]
	lst    *listener.Listener
	logger zerolog.Logger

	startedAt time.Time
	ready     atomic.Bool
}

// NewService builds the bridge. A nil registry uses the builtin alias table.
func NewService(cfg ServiceConfig, exec hostloop.Executor, host graphhost.Host, reg *registry.Registry) (*Service, error) {
	if exec == nil {
		return nil, ErrNilExecutor
	}
	if host == nil {
		return nil, ErrNilHost
	}
	if cfg.HeartbeatInterval <= 0 {
		return nil, ErrInvalidHeartbeatInterval
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = DefaultServiceConfig().Name
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = DefaultServiceConfig().ShutdownGrace
	}
	if reg == nil {
		src := registry.BuiltinSource
		if strings.TrimSpace(cfg.AliasFile) != "" {
			src = registry.FileSource{Path: cfg.AliasFile, Overlay: true}
		}
		reg = registry.New(src)
	}

	l := log.Logger.With().Str("service", cfg.Name).Logger()
	if cfg.Listener.Logger == nil {
		cfg.Listener.Logger = &l
	}
	if cfg.Dispatch.Logger == nil {
		cfg.Dispatch.Logger = &l
	}

	state := commands.NewState(host, reg, session.Config{ContentRoot: cfg.ContentRoot, Logger: &l})
	disp := dispatch.New(exec, state, cfg.Dispatch)
	commands.Register(disp)

	return &Service{
		cfg:    cfg,
		exec:   exec,
		host:   host,
		reg:    reg,
		state:  state,
		disp:   disp,
		lst:    listener.New(cfg.Listener, disp),
		logger: l.With().Str("component", "bridge").Logger(),
	}, nil
}

func (s *Service) Dispatcher() *dispatch.Dispatcher[*commands.State] { return s.disp }

func (s *Service) Registry() *registry.Registry { return s.reg }

// Addr is the bound listener address once Serve has started.
func (s *Service) Addr() net.Addr { return s.lst.Addr() }

func (s *Service) Ready() bool { return s.ready.Load() && !s.disp.ShuttingDown() }

// Serve binds the listener and blocks until ctx is cancelled or a
// supervised component fails. Shutdown runs before it returns.
func (s *Service) Serve(ctx context.Context) error {
	if err := s.lst.Start(); err != nil {
		return err
	}
	s.startedAt = time.Now()
	s.ready.Store(true)
	info := s.host.Info()
	s.logger.Info().
		Str("addr", s.lst.Addr().String()).
		Str("host", info.Name).
		Str("host_version", info.Version).
		Int("actions", len(s.disp.Actions())).
		Int("node_types", s.reg.Len()).
		Msg("bridge.Service.Serve ready")

	g, gctx := errgroup.WithContext(ctx)
	if strings.TrimSpace(s.cfg.StatusAddr) != "" {
		g.Go(func() error { return s.serveStatus(gctx, s.cfg.StatusAddr) })
	}
	if s.cfg.WatchAliases && strings.TrimSpace(s.cfg.AliasFile) != "" {
		w := registry.NewWatcher(s.reg, s.cfg.AliasFile, s.logger)
		g.Go(func() error { return w.Run(gctx) })
	}
	g.Go(func() error {
		select {
		case <-s.lst.Done():
			if err := s.lst.Err(); err != nil {
				s.logger.Error().Err(err).Msg("bridge.Service.Serve listener failed")
				return err
			}
			return nil
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error { return s.heartbeat(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		s.shutdown()
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// shutdown stops new work first, then the socket, then releases the
// session on the host context.
func (s *Service) shutdown() {
	s.ready.Store(false)
	s.disp.SignalShutdown()
	s.lst.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()
	_, err := hostloop.Call(ctx, s.exec, func() struct{} {
		s.state.Session.Close()
		return struct{}{}
	})
	if err != nil {
		s.logger.Warn().Err(err).Msg("bridge.Service.shutdown session release skipped")
	}
	s.logger.Info().Dur("uptime", time.Since(s.startedAt)).Msg("bridge.Service.shutdown complete")
}

type pendingCounter interface {
	Pending() int
}

func (s *Service) heartbeat(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			ev := s.logger.Info().
				Uint64("clients_served", s.lst.Served()).
				Dur("uptime", time.Since(s.startedAt))
			if pc, ok := s.exec.(pendingCounter); ok {
				n := pc.Pending()
				observability.SetHostloopPending(n)
				ev = ev.Int("pending", n)
			}
			ev.Msg("bridge.Service heartbeat")
		}
	}
}
