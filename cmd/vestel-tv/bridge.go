package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/vesteltv/vestel-go/pkg/device"
	"github.com/vesteltv/vestel-go/pkg/tv"
)

// Bridge exposes the registry over HTTP.
type Bridge struct {
	registry *Registry
	timeout  time.Duration
	logger   *slog.Logger
	router   *mux.Router
}

// DeviceView is the JSON form of a device context.
type DeviceView struct {
	UUID              string `json:"uuid"`
	Name              string `json:"name"`
	Host              string `json:"host"`
	MAC               string `json:"mac,omitempty"`
	Manufacturer      string `json:"manufacturer,omitempty"`
	Model             string `json:"model,omitempty"`
	SerialNumber      string `json:"serial,omitempty"`
	Dial              bool   `json:"dial"`
	DialURL           string `json:"dialUrl,omitempty"`
	SmartCenter       string `json:"smartCenter"`
	FollowTV          bool   `json:"followTv"`
	NetworkRemote     bool   `json:"networkRemote"`
	WakeOnLAN         bool   `json:"wakeOnLan"`
	WakeOnLANTimeoutS int    `json:"wakeOnLanTimeoutSeconds,omitempty"`
}

func newDeviceView(c device.Context) DeviceView {
	return DeviceView{
		UUID:              c.UUID,
		Name:              c.Name(),
		Host:              c.Host,
		MAC:               c.MAC,
		Manufacturer:      c.Manufacturer,
		Model:             c.Model,
		SerialNumber:      c.SerialNumber,
		Dial:              c.IsDial,
		DialURL:           c.DialApplicationURL,
		SmartCenter:       c.SmartCenter.String(),
		FollowTV:          c.IsFollowTV,
		NetworkRemote:     c.IsNetworkRemote,
		WakeOnLAN:         c.IsWakeOnLAN,
		WakeOnLANTimeoutS: int(c.WakeOnLANTimeout / time.Second),
	}
}

// NewBridge creates a Bridge. Each request runs with the given timeout.
func NewBridge(registry *Registry, timeout time.Duration, logger *slog.Logger) *Bridge {
	b := &Bridge{
		registry: registry,
		timeout:  timeout,
		logger:   logger,
		router:   mux.NewRouter(),
	}
	b.routes()
	return b
}

func (b *Bridge) routes() {
	r := b.router
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", b.handleHealth).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/devices", b.handleList).Methods(http.MethodGet)
	api.HandleFunc("/discover", b.handleDiscover).Methods(http.MethodPost)
	api.HandleFunc("/devices/{id}", b.handleShow).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}/active", b.handleGetActive).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}/active", b.handleSetActive).Methods(http.MethodPut, http.MethodPost)
	api.HandleFunc("/devices/{id}/active", b.handleSetInactive).Methods(http.MethodDelete)
	api.HandleFunc("/devices/{id}/volume", b.handleGetVolume).Methods(http.MethodGet)
	api.HandleFunc("/devices/{id}/volume/up", b.handleVolumeUp).Methods(http.MethodPost)
	api.HandleFunc("/devices/{id}/volume/down", b.handleVolumeDown).Methods(http.MethodPost)
	api.HandleFunc("/devices/{id}/input/{identifier:[0-9]+}", b.handleInput).Methods(http.MethodPost)
}

// Handler returns the instrumented HTTP handler.
func (b *Bridge) Handler() http.Handler {
	return otelhttp.NewHandler(b.router, "vestel-tv-bridge")
}

// Run serves on addr until ctx is done.
func (b *Bridge) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           b.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			b.logWarn("bridge shutdown", "error", err)
		}
	}()

	if b.logger != nil {
		b.logger.Info("bridge listening", "addr", addr)
	}
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (b *Bridge) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (b *Bridge) handleList(w http.ResponseWriter, _ *http.Request) {
	devices := b.registry.Devices()
	views := make([]DeviceView, 0, len(devices))
	for _, c := range devices {
		views = append(views, newDeviceView(c))
	}
	writeJSON(w, http.StatusOK, views)
}

func (b *Bridge) handleDiscover(w http.ResponseWriter, r *http.Request) {
	found, failed, err := b.registry.Discover(r.Context())
	if err != nil {
		b.writeError(w, err)
		return
	}
	views := make([]DeviceView, 0, len(found))
	for _, c := range found {
		views = append(views, newDeviceView(c))
	}
	writeJSON(w, http.StatusOK, map[string]any{"devices": views, "failed": failed})
}

func (b *Bridge) handleShow(w http.ResponseWriter, r *http.Request) {
	t, ok := b.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newDeviceView(t.Context()))
}

func (b *Bridge) handleGetActive(w http.ResponseWriter, r *http.Request) {
	t, ok := b.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := b.opContext(r)
	defer cancel()

	active, err := t.GetActive(ctx)
	if err != nil {
		b.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"active": active})
}

func (b *Bridge) handleSetActive(w http.ResponseWriter, r *http.Request) {
	t, ok := b.lookup(w, r)
	if !ok {
		return
	}
	force, _ := strconv.ParseBool(r.URL.Query().Get("force"))

	ctx, cancel := b.opContext(r)
	defer cancel()
	b.writeAccepted(w, t.SetActive(ctx, force))
}

func (b *Bridge) handleSetInactive(w http.ResponseWriter, r *http.Request) {
	t, ok := b.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := b.opContext(r)
	defer cancel()
	b.writeAccepted(w, t.SetInactive(ctx))
}

func (b *Bridge) handleGetVolume(w http.ResponseWriter, r *http.Request) {
	t, ok := b.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := b.opContext(r)
	defer cancel()

	level, err := t.GetVolume(ctx)
	if err != nil {
		b.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"level": level})
}

func (b *Bridge) handleVolumeUp(w http.ResponseWriter, r *http.Request) {
	t, ok := b.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := b.opContext(r)
	defer cancel()
	b.writeAccepted(w, t.SetVolumeSelectorIncrement(ctx))
}

func (b *Bridge) handleVolumeDown(w http.ResponseWriter, r *http.Request) {
	t, ok := b.lookup(w, r)
	if !ok {
		return
	}
	ctx, cancel := b.opContext(r)
	defer cancel()
	b.writeAccepted(w, t.SetVolumeSelectorDecrement(ctx))
}

func (b *Bridge) handleInput(w http.ResponseWriter, r *http.Request) {
	t, ok := b.lookup(w, r)
	if !ok {
		return
	}
	id, err := strconv.Atoi(mux.Vars(r)["identifier"])
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid identifier"})
		return
	}
	ctx, cancel := b.opContext(r)
	defer cancel()
	b.writeAccepted(w, t.SetActiveIdentifier(ctx, id))
}

func (b *Bridge) lookup(w http.ResponseWriter, r *http.Request) (*tv.TV, bool) {
	t, err := b.registry.Lookup(mux.Vars(r)["id"])
	if err != nil {
		b.writeError(w, err)
		return nil, false
	}
	return t, true
}

func (b *Bridge) opContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), b.timeout)
}

func (b *Bridge) writeAccepted(w http.ResponseWriter, err error) {
	if err != nil {
		b.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (b *Bridge) writeError(w http.ResponseWriter, err error) {
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		b.logWarn("operation failed", "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// errorStatus maps a facade error to an HTTP status code.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, ErrUnknownDevice):
		return http.StatusNotFound
	case errors.Is(err, tv.ErrCapabilityNotEnabled):
		return http.StatusConflict
	case errors.Is(err, tv.ErrCapabilityNotInitialized):
		return http.StatusServiceUnavailable
	case errors.Is(err, tv.ErrTransportUnavailable), errors.Is(err, tv.ErrTransportOperationFailed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (b *Bridge) logWarn(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Warn(msg, args...)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
