package lan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

// ErrInvalidMAC is returned for addresses that are not 48-bit MACs.
var ErrInvalidMAC = errors.New("invalid mac address")

// Waker sends wake-on-LAN requests.
type Waker interface {
	Wake(ctx context.Context, mac string) error
}

// MagicPacketWakerConfig configures a MagicPacketWaker.
type MagicPacketWakerConfig struct {
	// Address is the UDP destination. Default: 255.255.255.255:9.
	Address string

	// Count is the number of packets sent. Default: 3.
	Count int

	// Interval separates consecutive packets. Default: 100ms.
	Interval time.Duration

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultMagicPacketWakerConfig returns the default configuration.
func DefaultMagicPacketWakerConfig() MagicPacketWakerConfig {
	return MagicPacketWakerConfig{
		Address:  "255.255.255.255:9",
		Count:    3,
		Interval: 100 * time.Millisecond,
	}
}

// MagicPacketWaker broadcasts wake-on-LAN magic packets over UDP.
type MagicPacketWaker struct {
	config MagicPacketWakerConfig
}

// NewMagicPacketWaker creates a MagicPacketWaker. Zero fields take defaults.
func NewMagicPacketWaker(config MagicPacketWakerConfig) *MagicPacketWaker {
	d := DefaultMagicPacketWakerConfig()
	if config.Address == "" {
		config.Address = d.Address
	}
	if config.Count <= 0 {
		config.Count = d.Count
	}
	if config.Interval <= 0 {
		config.Interval = d.Interval
	}
	return &MagicPacketWaker{config: config}
}

// Wake sends the magic packet for mac.
func (w *MagicPacketWaker) Wake(ctx context.Context, mac string) error {
	packet, err := MagicPacket(mac)
	if err != nil {
		return err
	}

	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp4", w.config.Address)
	if err != nil {
		return fmt.Errorf("dial %s: %w", w.config.Address, err)
	}
	defer conn.Close()

	for i := 0; i < w.config.Count; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.config.Interval):
			}
		}
		if _, err := conn.Write(packet); err != nil {
			return fmt.Errorf("send magic packet: %w", err)
		}
	}

	if w.config.Logger != nil {
		w.config.Logger.Debug("magic packet sent", "mac", mac, "address", w.config.Address, "count", w.config.Count)
	}
	return nil
}

// MagicPacket builds the 102-byte wake-on-LAN payload: six 0xFF bytes
// followed by the MAC repeated sixteen times.
func MagicPacket(mac string) ([]byte, error) {
	hw, err := net.ParseMAC(mac)
	if err != nil || len(hw) != 6 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMAC, mac)
	}

	var buf bytes.Buffer
	buf.Grow(102)
	buf.Write(bytes.Repeat([]byte{0xFF}, 6))
	for i := 0; i < 16; i++ {
		buf.Write(hw)
	}
	return buf.Bytes(), nil
}
