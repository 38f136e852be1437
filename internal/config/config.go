// Package config loads the graphctl service file. Keys absent from the file
// keep their defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/danmuck/graphctl/internal/bridge"
	"github.com/danmuck/graphctl/internal/hostloop"
	"github.com/danmuck/graphctl/internal/listener"
)

var ErrInvalidConfig = errors.New("config: invalid")

const (
	StoreMemory = "memory"
	StoreBadger = "badger"
)

// Config is the full runtime configuration for `graphctl serve`.
type Config struct {
	Service    bridge.ServiceConfig
	QueueDepth int
	AssetStore string
	DataDir    string
}

func Default() Config {
	return Config{
		Service:    bridge.DefaultServiceConfig(),
		QueueDepth: hostloop.DefaultQueueSize,
		AssetStore: StoreMemory,
		DataDir:    "data/assets",
	}
}

type fileConfig struct {
	Name      string `toml:"name"`
	Heartbeat string `toml:"heartbeat"`

	Listener struct {
		Addr            string `toml:"addr"`
		IdleTimeout     string `toml:"idle_timeout"`
		PollInterval    string `toml:"poll_interval"`
		MaxMessageBytes uint32 `toml:"max_message_bytes"`
	} `toml:"listener"`

	Dispatch struct {
		Timeout      string `toml:"timeout"`
		PollInterval string `toml:"poll_interval"`
		QueueDepth   int    `toml:"queue_depth"`
	} `toml:"dispatch"`

	Registry struct {
		AliasFile string `toml:"alias_file"`
		Watch     bool   `toml:"watch"`
	} `toml:"registry"`

	Host struct {
		ContentRoot string `toml:"content_root"`
		AssetStore  string `toml:"asset_store"`
		DataDir     string `toml:"data_dir"`
	} `toml:"host"`

	Status struct {
		Addr        string   `toml:"addr"`
		CorsOrigins []string `toml:"cors_origins"`
	} `toml:"status"`
}

// Load reads path over Default. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) == "" {
		return cfg, nil
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("%w: unknown key %q in %s", ErrInvalidConfig, undecoded[0].String(), path)
	}

	svc := &cfg.Service
	if meta.IsDefined("name") {
		svc.Name = strings.TrimSpace(raw.Name)
	}
	if err := setDuration(meta, "heartbeat", raw.Heartbeat, &svc.HeartbeatInterval); err != nil {
		return Config{}, err
	}

	if meta.IsDefined("listener", "addr") {
		svc.Listener.Addr = strings.TrimSpace(raw.Listener.Addr)
	}
	if err := setDuration(meta, "listener.idle_timeout", raw.Listener.IdleTimeout, &svc.Listener.IdleTimeout); err != nil {
		return Config{}, err
	}
	if err := setDuration(meta, "listener.poll_interval", raw.Listener.PollInterval, &svc.Listener.PollInterval); err != nil {
		return Config{}, err
	}
	if meta.IsDefined("listener", "max_message_bytes") {
		svc.Listener.Limits.MaxMessageBytes = raw.Listener.MaxMessageBytes
	}

	if err := setDuration(meta, "dispatch.timeout", raw.Dispatch.Timeout, &svc.Dispatch.Timeout); err != nil {
		return Config{}, err
	}
	if err := setDuration(meta, "dispatch.poll_interval", raw.Dispatch.PollInterval, &svc.Dispatch.PollInterval); err != nil {
		return Config{}, err
	}
	if meta.IsDefined("dispatch", "queue_depth") {
		cfg.QueueDepth = raw.Dispatch.QueueDepth
	}

	if meta.IsDefined("registry", "alias_file") {
		svc.AliasFile = strings.TrimSpace(raw.Registry.AliasFile)
	}
	if meta.IsDefined("registry", "watch") {
		svc.WatchAliases = raw.Registry.Watch
	}

	if meta.IsDefined("host", "content_root") {
		svc.ContentRoot = strings.TrimSpace(raw.Host.ContentRoot)
	}
	if meta.IsDefined("host", "asset_store") {
		cfg.AssetStore = strings.ToLower(strings.TrimSpace(raw.Host.AssetStore))
	}
	if meta.IsDefined("host", "data_dir") {
		cfg.DataDir = strings.TrimSpace(raw.Host.DataDir)
	}

	if meta.IsDefined("status", "addr") {
		svc.StatusAddr = strings.TrimSpace(raw.Status.Addr)
	}
	if meta.IsDefined("status", "cors_origins") {
		svc.CorsOrigins = raw.Status.CorsOrigins
	}

	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDuration(meta toml.MetaData, key, raw string, dst *time.Duration) error {
	if !meta.IsDefined(strings.Split(key, ".")...) {
		return nil
	}
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalidConfig, key, err)
	}
	*dst = d
	return nil
}

func Validate(cfg Config) error {
	svc := cfg.Service
	if strings.TrimSpace(svc.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	if err := listener.CheckLoopback(svc.Listener.Addr); err != nil {
		return fmt.Errorf("%w: listener.addr: %v", ErrInvalidConfig, err)
	}
	if svc.StatusAddr != "" {
		if err := listener.CheckLoopback(svc.StatusAddr); err != nil {
			return fmt.Errorf("%w: status.addr: %v", ErrInvalidConfig, err)
		}
	}
	if svc.HeartbeatInterval <= 0 {
		return fmt.Errorf("%w: heartbeat must be positive", ErrInvalidConfig)
	}
	if svc.Dispatch.Timeout <= 0 || svc.Dispatch.PollInterval <= 0 {
		return fmt.Errorf("%w: dispatch durations must be positive", ErrInvalidConfig)
	}
	if svc.Dispatch.PollInterval > svc.Dispatch.Timeout {
		return fmt.Errorf("%w: dispatch.poll_interval exceeds dispatch.timeout", ErrInvalidConfig)
	}
	if svc.Listener.IdleTimeout <= 0 || svc.Listener.PollInterval <= 0 {
		return fmt.Errorf("%w: listener durations must be positive", ErrInvalidConfig)
	}
	if !strings.HasPrefix(svc.ContentRoot, "/") {
		return fmt.Errorf("%w: host.content_root must be absolute", ErrInvalidConfig)
	}
	if cfg.QueueDepth <= 0 {
		return fmt.Errorf("%w: dispatch.queue_depth must be positive", ErrInvalidConfig)
	}
	switch cfg.AssetStore {
	case StoreMemory:
	case StoreBadger:
		if strings.TrimSpace(cfg.DataDir) == "" {
			return fmt.Errorf("%w: host.data_dir is required for the badger store", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: host.asset_store must be %q or %q", ErrInvalidConfig, StoreMemory, StoreBadger)
	}
	return nil
}
