package persistence

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/vesteltv/vestel-go/pkg/device"
)

func TestDeviceCacheStore(t *testing.T) {
	t.Run("LoadNonExistent", func(t *testing.T) {
		store := NewDeviceCacheStore(filepath.Join(t.TempDir(), "devices.yaml"))

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if len(got.Devices) != 0 {
			t.Errorf("Devices = %v, want empty", got.Devices)
		}
	})

	t.Run("SaveAndLoad", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "devices.yaml")
		store := NewDeviceCacheStore(path)

		seen := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
		cache := &DeviceCache{}
		cache.Upsert(device.Context{
			UUID:             "1234-abcd",
			Host:             "10.0.0.5",
			MAC:              "aa:bb:cc:dd:ee:ff",
			DisplayName:      "Living Room",
			IsDial:           true,
			IsWakeOnLAN:      true,
			WakeOnLANTimeout: 15 * time.Second,
			SmartCenter:      device.SupportYes,
		}, seen)

		if err := store.Save(cache); err != nil {
			t.Fatalf("Save() error = %v", err)
		}

		got, err := store.Load()
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Version != CacheVersion {
			t.Errorf("Version = %d, want %d", got.Version, CacheVersion)
		}
		if len(got.Devices) != 1 {
			t.Fatalf("len(Devices) = %d, want 1", len(got.Devices))
		}

		d := got.Devices[0]
		if d.Context.UUID != "1234-abcd" || d.Context.Host != "10.0.0.5" || d.Context.DisplayName != "Living Room" {
			t.Errorf("Context = %+v", d.Context)
		}
		if d.Context.WakeOnLANTimeout != 15*time.Second {
			t.Errorf("WakeOnLANTimeout = %v, want 15s", d.Context.WakeOnLANTimeout)
		}
		if d.Context.SmartCenter != device.SupportUnknown {
			t.Errorf("SmartCenter = %v, want UNKNOWN", d.Context.SmartCenter)
		}
		if !d.LastSeenAt.Equal(seen) {
			t.Errorf("LastSeenAt = %v, want %v", d.LastSeenAt, seen)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "devices.yaml")
		store := NewDeviceCacheStore(path)

		if err := store.Save(&DeviceCache{}); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("cache file still exists: %v", err)
		}
		if err := store.Clear(); err != nil {
			t.Errorf("Clear() on missing file error = %v", err)
		}
	})
}

func TestUpsertReplacesByUUID(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	cache := &DeviceCache{}
	cache.Upsert(device.Context{UUID: "a", Host: "10.0.0.5", MAC: "aa:bb:cc:dd:ee:ff"}, t0)
	cache.Upsert(device.Context{UUID: "b", Host: "10.0.0.6"}, t0)
	cache.Upsert(device.Context{UUID: "a", Host: "10.0.0.9"}, t0.Add(time.Hour))

	if len(cache.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(cache.Devices))
	}
	a := cache.Devices[0]
	if a.Context.Host != "10.0.0.9" {
		t.Errorf("Host = %q, want updated host", a.Context.Host)
	}
	if a.Context.MAC != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("MAC = %q, want the previously known address kept", a.Context.MAC)
	}

	got := cache.Contexts()
	if got[0].UUID != "a" || got[1].UUID != "b" {
		t.Errorf("Contexts order = %s, %s; want most recent first", got[0].UUID, got[1].UUID)
	}
}

func TestPrune(t *testing.T) {
	t0 := time.Date(2026, 3, 14, 20, 0, 0, 0, time.UTC)
	cache := &DeviceCache{}
	cache.Upsert(device.Context{UUID: "old"}, t0)
	cache.Upsert(device.Context{UUID: "new"}, t0.Add(48*time.Hour))

	cache.Prune(t0.Add(24 * time.Hour))

	if len(cache.Devices) != 1 || cache.Devices[0].Context.UUID != "new" {
		t.Errorf("Devices = %+v, want only the recent entry", cache.Devices)
	}
}
