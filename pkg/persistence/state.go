package persistence

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vesteltv/vestel-go/pkg/device"
)

// CacheVersion is the current version of the cache file format.
const CacheVersion = 1

// DeviceCache is the content of the cache file.
type DeviceCache struct {
	// Version is the cache file format version.
	Version int `yaml:"version"`

	// SavedAt is when the cache was last saved.
	SavedAt time.Time `yaml:"saved_at"`

	// Devices holds one entry per UUID.
	Devices []CachedDevice `yaml:"devices,omitempty"`
}

// CachedDevice is one discovered television.
type CachedDevice struct {
	Context device.Context `yaml:",inline"`

	// LastSeenAt is when discovery last reported the device.
	LastSeenAt time.Time `yaml:"last_seen_at"`
}

// Upsert records dc as seen at the given time, replacing any entry with the
// same UUID. The SmartCenter capability is reset so it is probed again.
func (c *DeviceCache) Upsert(dc device.Context, seen time.Time) {
	dc.SmartCenter = device.SupportUnknown
	for i := range c.Devices {
		if c.Devices[i].Context.UUID == dc.UUID {
			if dc.MAC == "" {
				dc.MAC = c.Devices[i].Context.MAC
			}
			c.Devices[i] = CachedDevice{Context: dc, LastSeenAt: seen}
			return
		}
	}
	c.Devices = append(c.Devices, CachedDevice{Context: dc, LastSeenAt: seen})
}

// Prune removes entries not seen since cutoff.
func (c *DeviceCache) Prune(cutoff time.Time) {
	kept := c.Devices[:0]
	for _, d := range c.Devices {
		if !d.LastSeenAt.Before(cutoff) {
			kept = append(kept, d)
		}
	}
	c.Devices = kept
}

// Contexts returns the cached contexts, most recently seen first.
func (c *DeviceCache) Contexts() []device.Context {
	devices := append([]CachedDevice(nil), c.Devices...)
	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].LastSeenAt.After(devices[j].LastSeenAt)
	})
	out := make([]device.Context, 0, len(devices))
	for _, d := range devices {
		out = append(out, d.Context)
	}
	return out
}

// DeviceCacheStore manages the cache file.
type DeviceCacheStore struct {
	mu   sync.Mutex
	path string
}

// NewDeviceCacheStore creates a store for the file at path.
func NewDeviceCacheStore(path string) *DeviceCacheStore {
	return &DeviceCacheStore{path: path}
}

// DefaultCachePath returns the per-user cache file location.
func DefaultCachePath() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "vestel-tv", "devices.yaml"), nil
}

// Path returns the cache file path.
func (s *DeviceCacheStore) Path() string {
	return s.path
}

// Save writes the cache. The file is replaced atomically.
func (s *DeviceCacheStore) Save(cache *DeviceCache) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	cache.Version = CacheVersion
	cache.SavedAt = time.Now()

	data, err := yaml.Marshal(cache)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".devices-*.yaml")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}

// Load reads the cache.
// Returns an empty cache if the file doesn't exist.
func (s *DeviceCacheStore) Load() (*DeviceCache, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return &DeviceCache{Version: CacheVersion}, nil
	}
	if err != nil {
		return nil, err
	}

	cache := &DeviceCache{}
	if err := yaml.Unmarshal(data, cache); err != nil {
		return nil, err
	}
	return cache, nil
}

// Clear removes the cache file.
func (s *DeviceCacheStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
