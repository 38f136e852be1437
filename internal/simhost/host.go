// Package simhost is an in-process graph host. It keeps graph documents in
// memory, persists built assets to an AssetStore and tracks live playbacks.
package simhost

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/danmuck/graphctl/internal/graphhost"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	HostName    = "graphctl-simhost"
	HostVersion = "0.1.0"
)

var ErrEmptyBuilderName = errors.New("simhost: builder name is required")

// Options configures a Host. Zero fields take defaults.
type Options struct {
	Catalog *Catalog
	Store   AssetStore
	Logger  *zerolog.Logger
}

// Host implements graphhost.Host.
type Host struct {
	catalog *Catalog
	store   AssetStore
	logger  zerolog.Logger

	mu        sync.Mutex
	playbacks map[string]*Playback
	builders  int
}

var (
	_ graphhost.Host        = (*Host)(nil)
	_ graphhost.AssetLister = (*Host)(nil)
)

func New(opts Options) *Host {
	if opts.Catalog == nil {
		opts.Catalog = DefaultCatalog()
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Host{
		catalog:   opts.Catalog,
		store:     opts.Store,
		logger:    logger.With().Str("component", "simhost").Logger(),
		playbacks: make(map[string]*Playback),
	}
}

func (h *Host) Info() graphhost.Info {
	return graphhost.Info{
		Name:     HostName,
		Version:  HostVersion,
		Features: []string{"builder", "interfaces", "variables", "presets", "audition", "live_updates"},
	}
}

func (h *Host) CreateBuilder(kind graphhost.AssetKind, name string) (graphhost.Builder, error) {
	if strings.TrimSpace(name) == "" {
		return nil, ErrEmptyBuilderName
	}
	switch kind {
	case graphhost.KindSource, graphhost.KindPatch, graphhost.KindPreset:
	default:
		return nil, fmt.Errorf("%w: %d", graphhost.ErrUnknownAssetKind, kind)
	}

	h.mu.Lock()
	h.builders++
	h.mu.Unlock()

	h.logger.Debug().Str("kind", kind.String()).Str("name", name).Msg("simhost.Host.CreateBuilder")
	return newBuilder(h, kind, name), nil
}

func (h *Host) Catalog() *Catalog { return h.catalog }

func (h *Host) Store() AssetStore { return h.store }

// ListAssets returns the object paths of built assets under prefix, sorted.
func (h *Host) ListAssets(prefix string) ([]string, error) {
	return h.store.List(prefix)
}

// ActivePlaybacks counts auditions that have not been stopped.
func (h *Host) ActivePlaybacks() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.playbacks)
}

// BuildersCreated counts CreateBuilder calls.
func (h *Host) BuildersCreated() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.builders
}

// Close stops every live playback and closes the store.
func (h *Host) Close() error {
	h.mu.Lock()
	live := make([]*Playback, 0, len(h.playbacks))
	for _, p := range h.playbacks {
		live = append(live, p)
	}
	h.mu.Unlock()
	for _, p := range live {
		_ = p.Stop()
	}
	return h.store.Close()
}

func (h *Host) startPlayback(doc Document) *Playback {
	p := &Playback{id: uuid.NewString(), host: h, asset: doc.Name, playing: true}
	h.mu.Lock()
	h.playbacks[p.id] = p
	h.mu.Unlock()
	h.logger.Debug().Str("playback_id", p.id).Str("asset", doc.Name).Msg("simhost.Host.startPlayback")
	return p
}

func (h *Host) releasePlayback(id string) {
	h.mu.Lock()
	delete(h.playbacks, id)
	h.mu.Unlock()
	h.logger.Debug().Str("playback_id", id).Msg("simhost.Host.releasePlayback")
}

// Playback is a live audition of one builder's document.
type Playback struct {
	id    string
	host  *Host
	asset string

	mu      sync.Mutex
	playing bool
}

var _ graphhost.Playback = (*Playback)(nil)

func (p *Playback) ID() string { return p.id }

func (p *Playback) Playing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playing
}

func (p *Playback) Stop() error {
	p.mu.Lock()
	wasPlaying := p.playing
	p.playing = false
	p.mu.Unlock()
	if wasPlaying {
		p.host.releasePlayback(p.id)
	}
	return nil
}
