package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vesteltv/vestel-go/pkg/config"
	"github.com/vesteltv/vestel-go/pkg/device"
	"github.com/vesteltv/vestel-go/pkg/dial"
	"github.com/vesteltv/vestel-go/pkg/discovery"
	"github.com/vesteltv/vestel-go/pkg/persistence"
	"github.com/vesteltv/vestel-go/pkg/telemetry"
	"github.com/vesteltv/vestel-go/pkg/trace"
	"github.com/vesteltv/vestel-go/pkg/tv"
)

// ErrUnknownDevice is returned when no known television matches a key.
var ErrUnknownDevice = errors.New("unknown device")

// Registry holds the televisions known to the process: the ones listed in the
// config file and the ones found by discovery.
type Registry struct {
	tvConfig tv.Config
	engine   *discovery.Engine
	logger   *slog.Logger

	store  *persistence.DeviceCacheStore
	maxAge time.Duration

	mu      sync.RWMutex
	devices map[string]*tv.TV
}

// NewRegistry builds a TV for every configured device.
func NewRegistry(cfg *config.Config, tvConfig tv.Config, engine *discovery.Engine, logger *slog.Logger) (*Registry, error) {
	r := &Registry{
		tvConfig: tvConfig,
		engine:   engine,
		logger:   logger,
		devices:  make(map[string]*tv.TV),
	}
	for _, dc := range cfg.Devices {
		t, err := tv.New(dc, tvConfig)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("device %s: %w", dc.UUID, err)
		}
		r.devices[dc.UUID] = t
	}
	return r, nil
}

// UseCache loads the devices cached by earlier discoveries and saves every
// later discovery to store. Configured devices take precedence.
func (r *Registry) UseCache(store *persistence.DeviceCacheStore, maxAge time.Duration) error {
	r.store = store
	r.maxAge = maxAge

	cache, err := store.Load()
	if err != nil {
		return fmt.Errorf("load device cache: %w", err)
	}
	if maxAge > 0 {
		cache.Prune(time.Now().Add(-maxAge))
	}

	for _, dc := range cache.Contexts() {
		r.mu.RLock()
		_, known := r.devices[dc.UUID]
		r.mu.RUnlock()
		if known {
			continue
		}
		t, err := tv.New(dc, r.tvConfig)
		if err != nil {
			r.logWarn("skipping cached device", "uuid", dc.UUID, "error", err)
			continue
		}
		r.mu.Lock()
		r.devices[dc.UUID] = t
		r.mu.Unlock()
	}
	return nil
}

// TVConfig builds the facade configuration from the config file.
func TVConfig(cfg *config.Config, logger *slog.Logger, tl trace.Logger) (tv.Config, error) {
	policy, err := cfg.DropPolicy()
	if err != nil {
		return tv.Config{}, err
	}

	tc := tv.DefaultConfig()
	tc.Dial.HTTPClient = telemetry.HTTPClient(cfg.Dial.Timeout)
	tc.Dial.QueueSize = cfg.Dial.QueueSize
	tc.Dial.DropPolicy = policy
	tc.Dial.LegacyFirstProbe = cfg.Dial.LegacyFirstProbe
	tc.Logger = logger
	tc.Trace = tl
	return tc, nil
}

// DiscoveryConfig builds the engine configuration from the config file.
func DiscoveryConfig(cfg *config.Config, tvConfig tv.Config, logger *slog.Logger) discovery.Config {
	return discovery.Config{
		Searcher: discovery.NewSSDPSearcher(discovery.SSDPSearcherConfig{
			Interface: cfg.Discovery.Interface,
			MX:        cfg.Discovery.MX,
			Attempts:  cfg.Discovery.Attempts,
			Window:    cfg.Discovery.Timeout,
			Logger:    logger,
		}),
		Fetcher:                discovery.NewHTTPFetcher(telemetry.HTTPClient(dial.DefaultHTTPTimeout), logger),
		TV:                     tvConfig,
		DialFromApplicationURL: cfg.Discovery.DialFromApplicationURL,
		Logger:                 logger,
	}
}

// Discover runs one discovery subscription and adds every new television.
// Already known devices keep their existing TV. It returns the contexts found
// in this run and the number of responders that failed.
func (r *Registry) Discover(ctx context.Context) ([]device.Context, int, error) {
	if r.engine == nil {
		return nil, 0, errors.New("discovery is not configured")
	}
	results, err := r.engine.Search(ctx)
	if err != nil {
		return nil, 0, err
	}

	var found []device.Context
	failed := 0
	for res := range results {
		if res.Err != nil {
			failed++
			continue
		}
		found = append(found, res.Context)
		r.add(res.TV)
	}

	if r.store != nil && len(found) > 0 {
		if err := r.saveCache(found); err != nil {
			r.logWarn("saving device cache failed", "path", r.store.Path(), "error", err)
		}
	}
	return found, failed, nil
}

func (r *Registry) saveCache(found []device.Context) error {
	cache, err := r.store.Load()
	if err != nil {
		return err
	}
	now := time.Now()
	for _, dc := range found {
		cache.Upsert(dc, now)
	}
	if r.maxAge > 0 {
		cache.Prune(now.Add(-r.maxAge))
	}
	return r.store.Save(cache)
}

func (r *Registry) logWarn(msg string, args ...any) {
	if r.logger != nil {
		r.logger.Warn(msg, args...)
	}
}

func (r *Registry) add(t *tv.TV) {
	r.mu.Lock()
	if _, ok := r.devices[t.UUID()]; ok {
		r.mu.Unlock()
		_ = t.Close()
		return
	}
	r.devices[t.UUID()] = t
	r.mu.Unlock()

	if r.logger != nil {
		c := t.Context()
		r.logger.Info("device added", "uuid", c.UUID, "name", c.Name(), "host", c.Host)
	}
}

// Lookup finds a television by UUID, display name or host, case-insensitively.
func (r *Registry) Lookup(key string) (*tv.TV, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if t, ok := r.devices[key]; ok {
		return t, nil
	}
	for _, t := range r.devices {
		c := t.Context()
		if strings.EqualFold(c.UUID, key) || strings.EqualFold(c.Name(), key) || c.Host == key {
			return t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, key)
}

// Devices returns the current snapshots sorted by name.
func (r *Registry) Devices() []device.Context {
	r.mu.RLock()
	out := make([]device.Context, 0, len(r.devices))
	for _, t := range r.devices {
		out = append(out, t.Context())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Name() != out[j].Name() {
			return out[i].Name() < out[j].Name()
		}
		return out[i].UUID < out[j].UUID
	})
	return out
}

// Flush waits for the queued remote keys of every television.
func (r *Registry) Flush(ctx context.Context) error {
	r.mu.RLock()
	devices := make([]*tv.TV, 0, len(r.devices))
	for _, t := range r.devices {
		devices = append(devices, t)
	}
	r.mu.RUnlock()

	for _, t := range devices {
		if err := t.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every television.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, t := range r.devices {
		_ = t.Close()
		delete(r.devices, id)
	}
}
