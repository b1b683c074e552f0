package remote_test

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesteltv/vestel-go/pkg/remote"
	"github.com/vesteltv/vestel-go/pkg/trace"
)

// fakeDevice accepts connections and answers each with handle.
type fakeDevice struct {
	ln   net.Listener
	host string
	port int
}

func newFakeDevice(t *testing.T, handle func(net.Conn)) *fakeDevice {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				handle(conn)
			}()
		}
	}()

	host, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return &fakeDevice{ln: ln, host: host, port: port}
}

// closedPort returns a local port with nothing listening on it.
func closedPort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

type blockingDialer struct{}

func (blockingDialer) DialContext(ctx context.Context, _, _ string) (net.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type recordingTrace struct {
	mu     sync.Mutex
	events []trace.Event
}

func (r *recordingTrace) Log(e trace.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingTrace) snapshot() []trace.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]trace.Event(nil), r.events...)
}

func TestSendFollowWritesCommandsInOrder(t *testing.T) {
	received := make(chan string, 1)
	dev := newFakeDevice(t, func(c net.Conn) {
		data, _ := io.ReadAll(c)
		received <- string(data)
		_, _ = c.Write([]byte("OK"))
	})

	ch := remote.NewChannel(dev.host, dev.port, remote.ChannelConfig{})
	resp, err := ch.SendFollow(context.Background(), "FIRST", "  SECOND \n")
	require.NoError(t, err)

	assert.Equal(t, "OK", resp)
	assert.Equal(t, "FIRST\nSECOND\n", <-received)
}

func TestSendWithoutHalfClose(t *testing.T) {
	dev := newFakeDevice(t, func(c net.Conn) {
		buf := make([]byte, 64)
		n, _ := c.Read(buf)
		_, _ = c.Write([]byte("ECHO " + string(buf[:n])))
	})

	ch := remote.NewChannel(dev.host, dev.port, remote.ChannelConfig{})
	resp, err := ch.Send(context.Background(), "PING")
	require.NoError(t, err)
	assert.Equal(t, "ECHO PING\n", resp)
}

func TestConnectTimeoutRejectsOnce(t *testing.T) {
	ch := remote.NewChannel("192.0.2.1", 1986, remote.ChannelConfig{
		Timeout: 50 * time.Millisecond,
		Dialer:  blockingDialer{},
	})

	start := time.Now()
	_, err := ch.SendFollow(context.Background(), remote.CommandGetVolume)
	if !errors.Is(err, remote.ErrConnectTimeout) {
		t.Fatalf("expected ErrConnectTimeout, got %v", err)
	}
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestConnectRefused(t *testing.T) {
	ch := remote.NewChannel("127.0.0.1", closedPort(t), remote.ChannelConfig{Timeout: time.Second})

	_, err := ch.SendFollow(context.Background(), "X")
	if !errors.Is(err, remote.ErrConnect) {
		t.Fatalf("expected ErrConnect, got %v", err)
	}
}

func TestResponseTimeout(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	dev := newFakeDevice(t, func(c net.Conn) {
		<-release
	})

	ch := remote.NewChannel(dev.host, dev.port, remote.ChannelConfig{Timeout: 50 * time.Millisecond})
	_, err := ch.SendFollow(context.Background(), "X")
	if !errors.Is(err, remote.ErrResponseTimeout) {
		t.Fatalf("expected ErrResponseTimeout, got %v", err)
	}
}

func TestCancelWhileAwaitingResponse(t *testing.T) {
	release := make(chan struct{})
	t.Cleanup(func() { close(release) })

	dev := newFakeDevice(t, func(c net.Conn) {
		<-release
	})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	ch := remote.NewChannel(dev.host, dev.port, remote.ChannelConfig{Timeout: 5 * time.Second})
	_, err := ch.SendFollow(ctx, "X")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPing(t *testing.T) {
	dev := newFakeDevice(t, func(c net.Conn) {})

	up := remote.NewNetworkRemote(dev.host, dev.port, remote.ChannelConfig{})
	assert.True(t, up.IsActive(context.Background()))

	down := remote.NewNetworkRemote("127.0.0.1", closedPort(t), remote.ChannelConfig{PingTimeout: 200 * time.Millisecond})
	assert.False(t, down.IsActive(context.Background()))

	blocked := remote.NewNetworkRemote("192.0.2.1", 0, remote.ChannelConfig{
		PingTimeout: 50 * time.Millisecond,
		Dialer:      blockingDialer{},
	})
	assert.False(t, blocked.IsActive(context.Background()))
}

func TestDefaultPorts(t *testing.T) {
	assert.Equal(t, "10.0.0.5:1986", remote.NewFollowTV("10.0.0.5", 0, remote.ChannelConfig{}).Address())
	assert.Equal(t, "10.0.0.5:4660", remote.NewNetworkRemote("10.0.0.5", 0, remote.ChannelConfig{}).Address())
}

func TestSessionIsTraced(t *testing.T) {
	dev := newFakeDevice(t, func(c net.Conn) {
		_, _ = io.ReadAll(c)
		_, _ = c.Write([]byte(`<volume level="7"/>`))
	})

	rec := &recordingTrace{}
	ft := remote.NewFollowTV(dev.host, dev.port, remote.ChannelConfig{Trace: rec, DeviceID: "tv-1"})
	_, err := ft.GetVolume(context.Background())
	require.NoError(t, err)

	events := rec.snapshot()
	require.NotEmpty(t, events)

	sessionID := events[0].SessionID
	var sawOut, sawIn, sawClosed bool
	for _, e := range events {
		assert.Equal(t, sessionID, e.SessionID)
		assert.Equal(t, "tv-1", e.DeviceID)
		switch {
		case e.Payload != nil && e.Direction == trace.DirectionOut:
			sawOut = string(e.Payload.Data) == "GETINFO VOLUME\n"
		case e.Payload != nil && e.Direction == trace.DirectionIn:
			sawIn = true
		case e.StateChange != nil && e.StateChange.NewState == "CLOSED":
			sawClosed = true
		}
	}
	assert.True(t, sawOut, "outgoing command traced")
	assert.True(t, sawIn, "response traced")
	assert.True(t, sawClosed, "close traced")
}
