package remote

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vesteltv/vestel-go/pkg/device"
	"github.com/vesteltv/vestel-go/pkg/telemetry"
	"github.com/vesteltv/vestel-go/pkg/trace"
)

// Channel errors.
var (
	ErrConnect           = errors.New("connection failed")
	ErrConnectTimeout    = errors.New("connection timeout")
	ErrWrite             = errors.New("write failed")
	ErrRead              = errors.New("read failed")
	ErrResponseTimeout   = errors.New("response timeout")
	ErrMalformedResponse = errors.New("malformed response")
)

// Dialer opens network connections. *net.Dialer implements it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// ChannelConfig configures a Channel.
type ChannelConfig struct {
	// Timeout bounds the connect phase and every idle read.
	// Default: device.SocketTimeout.
	Timeout time.Duration

	// PingTimeout bounds the connect-only reachability check.
	// Default: device.ActiveCheckTimeout.
	PingTimeout time.Duration

	// Dialer opens connections. Default: &net.Dialer{}.
	Dialer Dialer

	// DeviceID tags trace events.
	DeviceID string

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// Trace receives protocol events. Nil disables tracing.
	Trace trace.Logger
}

// DefaultChannelConfig returns a ChannelConfig with the protocol defaults.
func DefaultChannelConfig() ChannelConfig {
	return ChannelConfig{
		Timeout:     device.SocketTimeout,
		PingTimeout: device.ActiveCheckTimeout,
		Dialer:      &net.Dialer{},
	}
}

// Channel sends textual commands to one host:port.
// A Channel holds no connection between calls and is safe for concurrent use.
type Channel struct {
	address string
	port    string
	config  ChannelConfig
	trace   trace.Logger
}

// NewChannel creates a Channel. Zero config fields take their defaults.
func NewChannel(host string, port int, config ChannelConfig) *Channel {
	defaults := DefaultChannelConfig()
	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}
	if config.PingTimeout <= 0 {
		config.PingTimeout = defaults.PingTimeout
	}
	if config.Dialer == nil {
		config.Dialer = defaults.Dialer
	}

	return &Channel{
		address: net.JoinHostPort(host, strconv.Itoa(port)),
		port:    strconv.Itoa(port),
		config:  config,
		trace:   trace.OrNoop(config.Trace),
	}
}

// Address returns the host:port the channel connects to.
func (c *Channel) Address() string {
	return c.address
}

// Send writes commands in order and returns everything the device sends
// back before closing the connection.
func (c *Channel) Send(ctx context.Context, commands ...string) (string, error) {
	return c.run(ctx, false, commands)
}

// SendFollow is Send, but closes the write side after the final command so
// the device knows the request is complete.
func (c *Channel) SendFollow(ctx context.Context, commands ...string) (string, error) {
	return c.run(ctx, true, commands)
}

// Ping reports whether a connection can be established within PingTimeout.
// Errors are never surfaced.
func (c *Channel) Ping(ctx context.Context) bool {
	s := c.newSession()
	conn, err := s.connect(ctx, c.config.PingTimeout)
	if err != nil {
		c.debugLog("ping failed", "address", c.address, "error", err)
		return false
	}
	s.close(conn, "ping")
	c.count("ok")
	return true
}

func (c *Channel) run(ctx context.Context, halfClose bool, commands []string) (string, error) {
	s := c.newSession()

	conn, err := s.connect(ctx, c.config.Timeout)
	if err != nil {
		return "", err
	}
	defer s.close(conn, "done")

	// Closing the connection unblocks pending I/O when ctx ends.
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	s.state("CONNECTED", "WRITING", "")
	for _, cmd := range commands {
		line := strings.TrimSpace(cmd) + "\n"
		_ = conn.SetWriteDeadline(time.Now().Add(c.config.Timeout))
		if _, err := io.WriteString(conn, line); err != nil {
			return "", s.fail("write_error", ctxErr(ctx, fmt.Errorf("%w: %w", ErrWrite, err)), "write "+strings.TrimSpace(cmd))
		}
		s.payload(trace.DirectionOut, []byte(line))
	}

	if halfClose {
		if cw, ok := conn.(interface{ CloseWrite() error }); ok {
			if err := cw.CloseWrite(); err != nil {
				c.debugLog("half close failed", "address", c.address, "error", err)
			}
		}
	}

	s.state("WRITING", "AWAITING_RESPONSE", "")
	var buf bytes.Buffer
	chunk := make([]byte, 4096)
	for {
		_ = conn.SetReadDeadline(time.Now().Add(c.config.Timeout))
		n, err := conn.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
			s.payload(trace.DirectionIn, chunk[:n])
		}
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return "", s.fail("timeout", ctxErr(ctx, ErrResponseTimeout), "read")
		}
		return "", s.fail("read_error", ctxErr(ctx, fmt.Errorf("%w: %w", ErrRead, err)), "read")
	}

	c.count("ok")
	return buf.String(), nil
}

func (c *Channel) count(result string) {
	telemetry.SocketSessions.WithLabelValues(c.port, result).Inc()
}

func (c *Channel) debugLog(msg string, args ...any) {
	if c.config.Logger != nil {
		c.config.Logger.Debug(msg, args...)
	}
}

func (c *Channel) newSession() *session {
	return &session{id: uuid.New().String(), ch: c}
}

// ctxErr prefers the context error when the context ended first.
func ctxErr(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// session is one connection lifetime.
type session struct {
	id        string
	ch        *Channel
	closeOnce sync.Once
}

func (s *session) connect(ctx context.Context, timeout time.Duration) (net.Conn, error) {
	c := s.ch
	s.state("IDLE", "CONNECTING", "")

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := c.config.Dialer.DialContext(dialCtx, "tcp", c.address)
	if err != nil {
		if ctx.Err() != nil {
			return nil, s.fail("connect_error", ctx.Err(), "connect")
		}
		var ne net.Error
		if errors.Is(dialCtx.Err(), context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
			return nil, s.fail("timeout", fmt.Errorf("%w: %s", ErrConnectTimeout, c.address), "connect")
		}
		return nil, s.fail("connect_error", fmt.Errorf("%w: %w", ErrConnect, err), "connect")
	}

	s.state("CONNECTING", "CONNECTED", "")
	return conn, nil
}

func (s *session) close(conn net.Conn, reason string) {
	s.closeOnce.Do(func() {
		_ = conn.Close()
		s.state("", "CLOSED", reason)
	})
}

func (s *session) fail(result string, err error, op string) error {
	s.ch.count(result)
	s.ch.debugLog("socket session failed", "address", s.ch.address, "op", op, "error", err)
	s.ch.trace.Log(trace.Event{
		Timestamp:  time.Now(),
		SessionID:  s.id,
		Layer:      trace.LayerSocket,
		Category:   trace.CategoryError,
		RemoteAddr: s.ch.address,
		DeviceID:   s.ch.config.DeviceID,
		Error: &trace.ErrorEventData{
			Layer:   trace.LayerSocket,
			Message: err.Error(),
			Context: op,
		},
	})
	return err
}

func (s *session) state(from, to, reason string) {
	s.ch.trace.Log(trace.Event{
		Timestamp:  time.Now(),
		SessionID:  s.id,
		Layer:      trace.LayerSocket,
		Category:   trace.CategoryState,
		RemoteAddr: s.ch.address,
		DeviceID:   s.ch.config.DeviceID,
		StateChange: &trace.StateChangeEvent{
			Entity:   trace.StateEntitySession,
			OldState: from,
			NewState: to,
			Reason:   reason,
		},
	})
}

func (s *session) payload(dir trace.Direction, data []byte) {
	s.ch.trace.Log(trace.Event{
		Timestamp:  time.Now(),
		SessionID:  s.id,
		Direction:  dir,
		Layer:      trace.LayerSocket,
		Category:   trace.CategoryMessage,
		RemoteAddr: s.ch.address,
		DeviceID:   s.ch.config.DeviceID,
		Payload:    trace.NewPayload(data),
	})
}
