package tv

import (
	"log/slog"

	"github.com/vesteltv/vestel-go/pkg/dial"
	"github.com/vesteltv/vestel-go/pkg/lan"
	"github.com/vesteltv/vestel-go/pkg/remote"
	"github.com/vesteltv/vestel-go/pkg/trace"
)

// Config configures a TV.
type Config struct {
	// Dial configures the DIAL client.
	Dial dial.ClientConfig

	// Socket configures the FollowTV and network remote channels.
	Socket remote.ChannelConfig

	// MACResolver looks up the hardware address when the context has none.
	// If nil, hardware address resolution is disabled.
	MACResolver lan.MACResolver

	// Waker sends wake-on-LAN packets. If nil, SetActive fails.
	Waker lan.Waker

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled. Propagated to transports without a logger.
	Logger *slog.Logger

	// Trace receives protocol events. Propagated to transports without one.
	Trace trace.Logger
}

// DefaultConfig returns a Config using the host ARP table and UDP broadcast
// magic packets.
func DefaultConfig() Config {
	return Config{
		Dial:        dial.DefaultClientConfig(),
		Socket:      remote.DefaultChannelConfig(),
		MACResolver: lan.NewARPResolver(lan.DefaultARPResolverConfig()),
		Waker:       lan.NewMagicPacketWaker(lan.DefaultMagicPacketWakerConfig()),
	}
}

func (c Config) forDevice(uuid string) Config {
	if c.Dial.Logger == nil {
		c.Dial.Logger = c.Logger
	}
	if c.Dial.Trace == nil {
		c.Dial.Trace = c.Trace
	}
	if c.Dial.DeviceID == "" {
		c.Dial.DeviceID = uuid
	}
	if c.Socket.Logger == nil {
		c.Socket.Logger = c.Logger
	}
	if c.Socket.Trace == nil {
		c.Socket.Trace = c.Trace
	}
	if c.Socket.DeviceID == "" {
		c.Socket.DeviceID = uuid
	}
	return c
}
