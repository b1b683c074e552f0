package dial

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/vesteltv/vestel-go/pkg/device"
	"github.com/vesteltv/vestel-go/pkg/telemetry"
	"github.com/vesteltv/vestel-go/pkg/trace"
)

// Client errors.
var (
	ErrInvalidURL   = errors.New("invalid DIAL application URL")
	ErrLaunchFailed = errors.New("application launch failed")
	ErrQueueClosed  = errors.New("queue closed")
)

// Default client settings.
const (
	DefaultHTTPTimeout = 5 * time.Second
	DefaultQueueSize   = 64
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// HTTPClient performs probe and launch requests.
	// Default: telemetry.HTTPClient(DefaultHTTPTimeout).
	HTTPClient *http.Client

	// QueueInterval is the SmartCenter dispatch interval.
	// Default: device.QueueInterval.
	QueueInterval time.Duration

	// QueueSize bounds the SmartCenter pending queue. Default: DefaultQueueSize.
	QueueSize int

	// DropPolicy selects what is discarded when the queue is full.
	DropPolicy DropPolicy

	// LegacyFirstProbe makes the probe that first resolves an application
	// report false even when the application is present. Later calls report
	// the cached classification.
	LegacyFirstProbe bool

	// DeviceID tags trace events.
	DeviceID string

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// Trace receives protocol events. Nil disables tracing.
	Trace trace.Logger
}

// DefaultClientConfig returns a ClientConfig with default values.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HTTPClient:    telemetry.HTTPClient(DefaultHTTPTimeout),
		QueueInterval: device.QueueInterval,
		QueueSize:     DefaultQueueSize,
		DropPolicy:    DropOldest,
	}
}

// Client probes and caches the applications of one DIAL endpoint.
type Client struct {
	baseURL *url.URL
	config  ClientConfig
	trace   trace.Logger

	group singleflight.Group

	mu     sync.Mutex
	apps   map[string]App // nil value: probed and absent
	closed bool
}

// NewClient creates a Client for the DIAL application base URL.
func NewClient(baseURL string, config ClientConfig) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidURL, baseURL)
	}

	defaults := DefaultClientConfig()
	if config.HTTPClient == nil {
		config.HTTPClient = defaults.HTTPClient
	}
	if config.QueueInterval <= 0 {
		config.QueueInterval = defaults.QueueInterval
	}
	if config.QueueSize <= 0 {
		config.QueueSize = defaults.QueueSize
	}

	return &Client{
		baseURL: u,
		config:  config,
		trace:   trace.OrNoop(config.Trace),
		apps:    make(map[string]App),
	}, nil
}

// BaseURL returns the DIAL application base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

type probeOutcome struct {
	app    App
	fresh  bool
	cached bool
}

// CheckForApp reports whether the named application is present.
//
// The first call for a name issues one GET to <base>/<name>; status 200
// classifies the application as present, anything else (including transport
// errors) as absent. The classification is cached and never re-probed. A
// probe cut short by ctx is not cached. Concurrent first callers share one
// request; a caller whose shared probe was cut short by another caller's ctx
// probes again under its own.
func (c *Client) CheckForApp(ctx context.Context, name string) bool {
	for {
		if app, ok := c.lookup(name); ok {
			return app != nil
		}

		v, _, _ := c.group.Do(name, func() (any, error) {
			if app, ok := c.lookup(name); ok {
				return probeOutcome{app: app, cached: true}, nil
			}
			app, cacheable := c.probe(ctx, name)
			if cacheable {
				app = c.store(name, app)
			}
			return probeOutcome{app: app, fresh: true, cached: cacheable}, nil
		})

		out := v.(probeOutcome)
		if !out.cached && ctx.Err() == nil {
			continue
		}
		if out.fresh && c.config.LegacyFirstProbe {
			return false
		}
		return out.app != nil
	}
}

// App returns the cached application. The boolean is false when the name was
// never probed or the application is absent.
func (c *Client) App(name string) (App, bool) {
	app, ok := c.lookup(name)
	if !ok || app == nil {
		return nil, false
	}
	return app, true
}

// SmartCenter returns the cached SmartCenter application, if present.
func (c *Client) SmartCenter() (*SmartCenterApp, bool) {
	app, ok := c.App(device.SmartCenterApp)
	if !ok {
		return nil, false
	}
	sc, ok := app.(*SmartCenterApp)
	return sc, ok
}

// Close stops every SmartCenter dispatcher. Subsequent probes report absent.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	apps := make([]App, 0, len(c.apps))
	for _, app := range c.apps {
		if app != nil {
			apps = append(apps, app)
		}
	}
	c.mu.Unlock()

	for _, app := range apps {
		if sc, ok := app.(*SmartCenterApp); ok {
			sc.Close()
		}
	}
	return nil
}

// Flush waits until the SmartCenter queues have submitted every pending key,
// or until ctx is done.
func (c *Client) Flush(ctx context.Context) error {
	c.mu.Lock()
	var queues []*SmartCenterApp
	for _, app := range c.apps {
		if sc, ok := app.(*SmartCenterApp); ok {
			queues = append(queues, sc)
		}
	}
	c.mu.Unlock()

	for _, sc := range queues {
		if err := sc.Flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) lookup(name string) (App, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, true
	}
	app, ok := c.apps[name]
	return app, ok
}

// store records the classification unless one already exists, and returns
// the stored value.
func (c *Client) store(name string, app App) App {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.apps[name]; ok || c.closed {
		if sc, isSC := app.(*SmartCenterApp); isSC {
			sc.Close()
		}
		if c.closed {
			return nil
		}
		return existing
	}
	c.apps[name] = app
	return app
}

func (c *Client) appURL(name string) string {
	return c.baseURL.JoinPath(name).String()
}

// probe issues the GET and builds the application on success. The boolean
// reports whether the outcome may be cached.
func (c *Client) probe(ctx context.Context, name string) (App, bool) {
	target := c.appURL(name)
	sessionID := uuid.New().String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		c.probeFailed(sessionID, target, name, err)
		return nil, true
	}
	req.Header.Set("User-Agent", device.UserAgent)
	c.traceRequest(sessionID, target, nil)

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			c.debugLog("app probe canceled", "app", name, "error", err)
			return nil, false
		}
		c.probeFailed(sessionID, target, name, err)
		return nil, true
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, trace.MaxPayloadSize))
	_ = resp.Body.Close()
	c.traceResponse(sessionID, target, resp.StatusCode, body)

	if resp.StatusCode != http.StatusOK {
		c.debugLog("app not present", "app", name, "status", resp.StatusCode)
		telemetry.AppProbes.WithLabelValues(name, "absent").Inc()
		c.traceState(sessionID, target, name, "ABSENT")
		return nil, true
	}

	var app App
	if name == device.SmartCenterApp {
		app = newSmartCenterApp(c, name, target)
	} else {
		app = &GenericApp{name: name, url: target, client: c}
	}

	c.debugLog("app present", "app", name, "url", target)
	telemetry.AppProbes.WithLabelValues(name, "present").Inc()
	c.traceState(sessionID, target, name, "PRESENT")
	return app, true
}

func (c *Client) probeFailed(sessionID, target, name string, err error) {
	c.debugLog("app probe failed", "app", name, "error", err)
	telemetry.AppProbes.WithLabelValues(name, "error").Inc()
	c.trace.Log(trace.Event{
		Timestamp:  time.Now(),
		SessionID:  sessionID,
		Layer:      trace.LayerHTTP,
		Category:   trace.CategoryError,
		RemoteAddr: target,
		DeviceID:   c.config.DeviceID,
		Error:      &trace.ErrorEventData{Layer: trace.LayerHTTP, Message: err.Error(), Context: "probe " + name},
	})
	c.traceState(sessionID, target, name, "ABSENT")
}

func (c *Client) traceRequest(sessionID, target string, body []byte) {
	c.trace.Log(trace.Event{
		Timestamp:  time.Now(),
		SessionID:  sessionID,
		Direction:  trace.DirectionOut,
		Layer:      trace.LayerHTTP,
		Category:   trace.CategoryMessage,
		RemoteAddr: target,
		DeviceID:   c.config.DeviceID,
		Payload:    trace.NewPayload(body),
	})
}

func (c *Client) traceResponse(sessionID, target string, status int, body []byte) {
	p := trace.NewPayload(body)
	p.Status = status
	c.trace.Log(trace.Event{
		Timestamp:  time.Now(),
		SessionID:  sessionID,
		Direction:  trace.DirectionIn,
		Layer:      trace.LayerHTTP,
		Category:   trace.CategoryMessage,
		RemoteAddr: target,
		DeviceID:   c.config.DeviceID,
		Payload:    p,
	})
}

func (c *Client) traceState(sessionID, target, name, state string) {
	c.trace.Log(trace.Event{
		Timestamp:  time.Now(),
		SessionID:  sessionID,
		Layer:      trace.LayerHTTP,
		Category:   trace.CategoryState,
		RemoteAddr: target,
		DeviceID:   c.config.DeviceID,
		StateChange: &trace.StateChangeEvent{
			Entity:   trace.StateEntityApp,
			NewState: state,
			Reason:   name,
		},
	})
}

func (c *Client) debugLog(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, args...)
	}
}
