package tv

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/vesteltv/vestel-go/pkg/device"
	"github.com/vesteltv/vestel-go/pkg/dial"
	"github.com/vesteltv/vestel-go/pkg/remote"
	"github.com/vesteltv/vestel-go/pkg/trace"
)

// TV is one television and the transports its capabilities enable.
type TV struct {
	config Config
	trace  trace.Logger

	dial          *dial.Client
	followTV      *remote.FollowTV
	networkRemote *remote.NetworkRemote

	mu        sync.RWMutex
	snapshot  device.Context
	listeners map[int]func(device.Context)
	nextID    int

	smartCenterResolved chan struct{}
	ready               chan struct{}
	cancel              context.CancelFunc
	closeOnce           sync.Once
}

// New creates a TV for dc. It fails with ErrInvalidConfiguration before any
// I/O when the context has no UUID or an unusable DIAL URL.
//
// Hardware address lookup and SmartCenter detection start in the background.
func New(dc device.Context, config Config) (*TV, error) {
	if err := dc.Validate(); err != nil {
		return nil, opError("new", ErrInvalidConfiguration, err.Error())
	}
	dc = dc.WithDefaults()
	config = config.forDevice(dc.UUID)

	t := &TV{
		config:              config,
		trace:               trace.OrNoop(config.Trace),
		snapshot:            dc,
		listeners:           make(map[int]func(device.Context)),
		smartCenterResolved: make(chan struct{}),
		ready:               make(chan struct{}),
	}

	if dc.IsDial && dc.DialApplicationURL != "" {
		client, err := dial.NewClient(dc.DialApplicationURL, config.Dial)
		if err != nil {
			return nil, opError("new", ErrInvalidConfiguration, err.Error())
		}
		t.dial = client
	}
	if dc.IsFollowTV {
		t.followTV = remote.NewFollowTV(dc.Host, dc.FollowTVPort, config.Socket)
	}
	if dc.IsNetworkRemote {
		t.networkRemote = remote.NewNetworkRemote(dc.Host, dc.NetworkRemotePort, config.Socket)
	}

	bg, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	var g errgroup.Group
	g.Go(func() error {
		defer close(t.smartCenterResolved)
		t.resolveSmartCenter(bg)
		return nil
	})
	if dc.MAC == "" && dc.Host != "" && config.MACResolver != nil {
		g.Go(func() error {
			t.resolveMAC(bg)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		close(t.ready)
	}()

	return t, nil
}

// Context returns the current snapshot.
func (t *TV) Context() device.Context {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot
}

// UUID returns the device identifier.
func (t *TV) UUID() string {
	return t.Context().UUID
}

// OnContextChange registers fn to receive every new snapshot. The returned
// function removes the registration.
func (t *TV) OnContextChange(fn func(device.Context)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Ready blocks until background capability resolution has finished or ctx
// ends.
func (t *TV) Ready(ctx context.Context) error {
	select {
	case <-t.ready:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SmartCenterResolved is closed once SmartCenter detection has finished.
func (t *TV) SmartCenterResolved() <-chan struct{} {
	return t.smartCenterResolved
}

// Flush waits until every key queued through the SmartCenter app has been
// submitted, or until ctx is done. Call it before Close when queued keys must
// reach the television.
func (t *TV) Flush(ctx context.Context) error {
	if t.dial == nil {
		return nil
	}
	return t.dial.Flush(ctx)
}

// Close stops background work and the SmartCenter queue.
func (t *TV) Close() error {
	t.closeOnce.Do(func() {
		t.cancel()
		<-t.ready
		if t.dial != nil {
			_ = t.dial.Close()
		}
	})
	return nil
}

func (t *TV) resolveSmartCenter(ctx context.Context) {
	if t.Context().SmartCenter.Known() {
		return
	}
	if t.dial == nil {
		t.update("smart_center", "no DIAL endpoint", func(c device.Context) device.Context {
			return c.WithSmartCenter(false)
		})
		return
	}

	present := t.dial.CheckForApp(ctx, device.SmartCenterApp)
	if ctx.Err() != nil {
		return
	}
	t.update("smart_center", "probe", func(c device.Context) device.Context {
		return c.WithSmartCenter(present)
	})
}

func (t *TV) resolveMAC(ctx context.Context) {
	host := t.Context().Host
	mac, err := t.config.MACResolver.ResolveMAC(ctx, host)
	if err != nil {
		t.debugLog("mac resolution failed", "host", host, "error", err)
		return
	}
	t.update("mac", "arp", func(c device.Context) device.Context {
		if c.MAC != "" {
			return c
		}
		return c.WithMAC(mac)
	})
}

// update applies fn to the snapshot and notifies listeners when it changed.
func (t *TV) update(field, reason string, fn func(device.Context) device.Context) {
	t.mu.Lock()
	old := t.snapshot
	next := fn(old)
	if next == old {
		t.mu.Unlock()
		return
	}
	t.snapshot = next
	listeners := make([]func(device.Context), 0, len(t.listeners))
	for _, l := range t.listeners {
		listeners = append(listeners, l)
	}
	t.mu.Unlock()

	oldState, newState := capabilityState(field, old), capabilityState(field, next)
	t.debugLog("context updated", "field", field, "old", oldState, "new", newState)
	t.trace.Log(trace.Event{
		Timestamp: time.Now(),
		SessionID: next.UUID,
		Layer:     trace.LayerHTTP,
		Category:  trace.CategoryState,
		DeviceID:  next.UUID,
		StateChange: &trace.StateChangeEvent{
			Entity:   trace.StateEntityCapability,
			OldState: oldState,
			NewState: newState,
			Reason:   field + ": " + reason,
		},
	})

	for _, l := range listeners {
		l(next)
	}
}

func capabilityState(field string, c device.Context) string {
	switch field {
	case "smart_center":
		return c.SmartCenter.String()
	case "mac":
		return c.MAC
	default:
		return ""
	}
}

func (t *TV) debugLog(msg string, args ...any) {
	if t.config.Logger != nil {
		t.config.Logger.Debug(msg, append([]any{"device", t.UUID()}, args...)...)
	}
}
