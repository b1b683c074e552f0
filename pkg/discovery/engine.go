package discovery

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vesteltv/vestel-go/pkg/device"
	"github.com/vesteltv/vestel-go/pkg/telemetry"
	"github.com/vesteltv/vestel-go/pkg/tv"
)

// Discovery errors.
var (
	// ErrDiscoveryFailed is reported for a responder whose description could
	// not be retrieved or decoded. Detail is logged only.
	ErrDiscoveryFailed = errors.New("discovery failed")

	// ErrDiscoveryParse marks a malformed description document.
	ErrDiscoveryParse = errors.New("malformed description")
)

// Header names read from SSDP and description responses.
const (
	HeaderWakeup         = "Wakeup"
	HeaderApplicationURL = "Application-Url"
)

// Result is one discovered television, or a per-responder failure.
type Result struct {
	Context device.Context
	TV      *tv.TV
	Err     error
}

// Config configures an Engine.
type Config struct {
	// Searcher sends the discovery request. Default: NewSSDPSearcher.
	Searcher Searcher

	// Fetcher retrieves description documents. Default: NewHTTPFetcher.
	Fetcher Fetcher

	// Target is the search target. Default: device.DialURN.
	Target string

	// TV configures the facade built for each discovered television. When
	// both MACResolver and Waker are nil they default to those of
	// tv.DefaultConfig.
	TV tv.Config

	// DialFromApplicationURL marks televisions that advertise an
	// Application-URL header as DIAL capable. By default such televisions
	// only record the URL.
	DialFromApplicationURL bool

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Engine runs discovery subscriptions.
type Engine struct {
	config Config
}

// NewEngine creates an Engine. Zero fields take defaults.
func NewEngine(config Config) *Engine {
	if config.Searcher == nil {
		config.Searcher = NewSSDPSearcher(SSDPSearcherConfig{Logger: config.Logger})
	}
	if config.Fetcher == nil {
		config.Fetcher = NewHTTPFetcher(nil, config.Logger)
	}
	if config.Target == "" {
		config.Target = device.DialURN
	}
	if config.TV.MACResolver == nil && config.TV.Waker == nil {
		defaults := tv.DefaultConfig()
		config.TV.MACResolver = defaults.MACResolver
		config.TV.Waker = defaults.Waker
	}
	return &Engine{config: config}
}

// Search starts a subscription. The returned channel yields one Result per
// newly seen responder that is a television, or one failure Result per
// responder whose description could not be read. It is closed once the
// search window ends and every in-flight responder has been handled, or when
// ctx is done.
//
// The receiver owns every Result.TV and must Close it.
func (e *Engine) Search(ctx context.Context) (<-chan Result, error) {
	responses, err := e.config.Searcher.Search(ctx, e.config.Target)
	if err != nil {
		return nil, err
	}

	out := make(chan Result)
	go func() {
		defer close(out)

		seen := make(map[string]struct{})
		var wg sync.WaitGroup
		defer wg.Wait()

		for resp := range responses {
			host := sourceHost(resp.Addr)
			if _, dup := seen[host]; dup {
				telemetry.DiscoveryResponses.WithLabelValues("duplicate").Inc()
				continue
			}
			seen[host] = struct{}{}

			wg.Add(1)
			go func(resp Response, host string) {
				defer wg.Done()
				e.handle(ctx, resp, host, out)
			}(resp, host)
		}
	}()
	return out, nil
}

func (e *Engine) handle(ctx context.Context, resp Response, host string, out chan<- Result) {
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Location") == "" {
		telemetry.DiscoveryResponses.WithLabelValues("ignored").Inc()
		return
	}
	location := resp.Header.Get("Location")

	desc, header, err := e.config.Fetcher.Fetch(ctx, location)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.debugLog("description fetch failed", "host", host, "location", location, "error", err)
		telemetry.DiscoveryResponses.WithLabelValues("error").Inc()
		e.emit(ctx, out, Result{Err: ErrDiscoveryFailed})
		return
	}

	dc, ok := e.buildContext(resp, desc, header, host)
	if !ok {
		telemetry.DiscoveryResponses.WithLabelValues("mismatch").Inc()
		return
	}

	t, err := tv.New(dc, e.config.TV)
	if err != nil {
		e.debugLog("tv construction failed", "host", host, "error", err)
		telemetry.DiscoveryResponses.WithLabelValues("error").Inc()
		e.emit(ctx, out, Result{Err: ErrDiscoveryFailed})
		return
	}

	telemetry.DiscoveryResponses.WithLabelValues("device").Inc()
	telemetry.DevicesDiscovered.Inc()
	e.debugLog("television discovered", "host", host, "uuid", dc.UUID, "name", dc.Name())

	if !e.emit(ctx, out, Result{Context: t.Context(), TV: t}) {
		_ = t.Close()
	}
}

func (e *Engine) buildContext(resp Response, desc *Description, header http.Header, host string) (device.Context, bool) {
	d := desc.Device
	if d.DeviceType == "" || d.UDN == "" || d.DeviceType != device.TVDeviceURN {
		return device.Context{}, false
	}

	id := DeviceID(d.UDN)
	if id == "" {
		return device.Context{}, false
	}

	dc := device.Context{
		UUID:         id,
		Host:         host,
		IsDial:       true,
		DisplayName:  strings.TrimSpace(d.FriendlyName),
		Manufacturer: strings.TrimSpace(d.Manufacturer),
		Model:        strings.TrimSpace(d.ModelName),
		SerialNumber: strings.TrimSpace(d.SerialNumber),
	}

	if wakeup := resp.Header.Get(HeaderWakeup); wakeup != "" {
		mac, timeout := ParseWakeup(wakeup)
		dc.IsWakeOnLAN = true
		dc.MAC = mac
		dc.WakeOnLANTimeout = timeout
	}

	if appURL := header.Get(HeaderApplicationURL); appURL != "" {
		if _, err := url.Parse(appURL); err == nil {
			dc.IsDial = e.config.DialFromApplicationURL
			dc.DialApplicationURL = appURL
		} else {
			e.debugLog("ignoring invalid application url", "host", host, "url", appURL)
		}
	}

	return dc, true
}

func (e *Engine) emit(ctx context.Context, out chan<- Result, r Result) bool {
	select {
	case out <- r:
		return true
	case <-ctx.Done():
		return false
	}
}

func (e *Engine) debugLog(msg string, args ...any) {
	if e.config.Logger != nil {
		e.config.Logger.Debug(msg, args...)
	}
}

// DeviceID derives the device identifier from a UDN: the optional "uuid:"
// scheme is removed and the first colon-delimited segment is kept.
func DeviceID(udn string) string {
	udn = strings.TrimSpace(udn)
	if len(udn) >= 5 && strings.EqualFold(udn[:5], "uuid:") {
		udn = udn[5:]
	}
	id, _, _ := strings.Cut(udn, ":")
	return strings.TrimSpace(id)
}

// ParseWakeup parses a WAKEUP header such as "MAC=AA:BB:CC:DD:EE:FF;Timeout=15".
// The timeout is in seconds; a missing or unparsable value yields
// device.DefaultWakeOnLANTimeout.
func ParseWakeup(v string) (mac string, timeout time.Duration) {
	timeout = device.DefaultWakeOnLANTimeout
	for _, field := range strings.Split(v, ";") {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		switch {
		case strings.EqualFold(key, "MAC"):
			mac = value
		case strings.EqualFold(key, "Timeout"):
			if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
				timeout = time.Duration(secs) * time.Second
			}
		}
	}
	return mac, timeout
}

func sourceHost(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	if udp, ok := addr.(*net.UDPAddr); ok {
		return udp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}
