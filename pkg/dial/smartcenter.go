package dial

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vesteltv/vestel-go/pkg/telemetry"
	"github.com/vesteltv/vestel-go/pkg/trace"
)

const flushPollInterval = 10 * time.Millisecond

// DropPolicy selects which key is discarded when the queue is full.
type DropPolicy uint8

const (
	// DropOldest discards the head of the queue to make room.
	DropOldest DropPolicy = iota
	// DropNewest discards the incoming key.
	DropNewest
)

// String returns the policy name.
func (p DropPolicy) String() string {
	switch p {
	case DropOldest:
		return "DROP_OLDEST"
	case DropNewest:
		return "DROP_NEWEST"
	default:
		return "UNKNOWN"
	}
}

// QueueStats is a snapshot of the SmartCenter queue counters.
type QueueStats struct {
	Pending int
	Sent    uint64
	Failed  uint64
	Dropped uint64
}

// SmartCenterApp is the SmartCenter remote control application.
type SmartCenterApp struct {
	*GenericApp

	interval  time.Duration
	size      int
	policy    DropPolicy
	sessionID string

	mu       sync.Mutex
	pending  []KeyCode
	inflight bool
	stats    QueueStats
	closed   bool

	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

func newSmartCenterApp(c *Client, name, url string) *SmartCenterApp {
	ctx, cancel := context.WithCancel(context.Background())
	a := &SmartCenterApp{
		GenericApp: &GenericApp{name: name, url: url, client: c},
		interval:   c.config.QueueInterval,
		size:       c.config.QueueSize,
		policy:     c.config.DropPolicy,
		sessionID:  uuid.New().String(),
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	go a.dispatch(ctx)
	return a
}

// Remote appends key codes to the queue and returns immediately. Keys are
// submitted in order, one per tick.
func (a *SmartCenterApp) Remote(codes ...KeyCode) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrQueueClosed
	}

	for _, code := range codes {
		if len(a.pending) >= a.size {
			a.stats.Dropped++
			telemetry.RemoteKeys.WithLabelValues("dropped").Inc()
			if a.policy == DropNewest {
				a.client.debugLog("remote queue full, dropping key", "code", code)
				continue
			}
			a.client.debugLog("remote queue full, dropping key", "code", a.pending[0])
			a.pending = a.pending[1:]
		}
		a.pending = append(a.pending, code)
	}
	return nil
}

// Stats returns a snapshot of the queue counters.
func (a *SmartCenterApp) Stats() QueueStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	s := a.stats
	s.Pending = len(a.pending)
	return s
}

// Flush waits until every queued key has been submitted, or until ctx is
// done. It returns nil at once when the queue is closed.
func (a *SmartCenterApp) Flush(ctx context.Context) error {
	poll := time.NewTicker(flushPollInterval)
	defer poll.Stop()

	for !a.idle() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-a.done:
			return nil
		case <-poll.C:
		}
	}
	return nil
}

func (a *SmartCenterApp) idle() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending) == 0 && !a.inflight
}

// Close stops the dispatcher and discards pending keys. It waits for an
// in-flight submission to finish.
func (a *SmartCenterApp) Close() {
	a.closeOnce.Do(func() {
		a.mu.Lock()
		a.closed = true
		a.pending = nil
		a.mu.Unlock()

		a.cancel()
		<-a.done
	})
}

func (a *SmartCenterApp) dispatch(ctx context.Context) {
	defer close(a.done)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			code, ok := a.next()
			if !ok {
				continue
			}
			a.submit(ctx, code)
		}
	}
}

func (a *SmartCenterApp) next() (KeyCode, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.pending) == 0 {
		return 0, false
	}
	code := a.pending[0]
	a.pending = a.pending[1:]
	a.inflight = true
	return code, true
}

// submit sends one key. Failures are counted and logged, never retried.
func (a *SmartCenterApp) submit(ctx context.Context, code KeyCode) {
	err := a.Launch(ctx, remotePayload(code))

	a.mu.Lock()
	a.inflight = false
	if err != nil {
		a.stats.Failed++
	} else {
		a.stats.Sent++
	}
	a.mu.Unlock()

	if err != nil {
		telemetry.RemoteKeys.WithLabelValues("failed").Inc()
		a.client.debugLog("remote key failed", "code", code, "error", err)
		a.client.trace.Log(trace.Event{
			Timestamp:  time.Now(),
			SessionID:  a.sessionID,
			Layer:      trace.LayerQueue,
			Category:   trace.CategoryError,
			RemoteAddr: a.url,
			DeviceID:   a.client.config.DeviceID,
			Error:      &trace.ErrorEventData{Layer: trace.LayerQueue, Message: err.Error(), Context: "key " + code.String()},
		})
		return
	}

	telemetry.RemoteKeys.WithLabelValues("sent").Inc()
	a.client.debugLog("remote key sent", "code", code)
}
