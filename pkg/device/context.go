package device

import (
	"net"
	"strconv"
	"time"
)

// Context is the identity and capability snapshot of one television.
//
// A Context is created by discovery from a description document, or supplied
// directly by a caller who already knows the device. Copies are independent.
type Context struct {
	// UUID identifies the device. It is stable across discoveries and must
	// not be empty.
	UUID string `yaml:"uuid"`

	// Host is the IP address or hostname of the device.
	Host string `yaml:"host"`

	// MAC is the hardware address, if known.
	MAC string `yaml:"mac,omitempty"`

	DisplayName  string `yaml:"name,omitempty"`
	Manufacturer string `yaml:"manufacturer,omitempty"`
	Model        string `yaml:"model,omitempty"`
	SerialNumber string `yaml:"serial,omitempty"`

	// IsDial marks the DIAL application endpoint as usable right away.
	IsDial bool `yaml:"dial,omitempty"`

	// DialApplicationURL is the DIAL application base URL.
	DialApplicationURL string `yaml:"dial_url,omitempty"`

	// SmartCenter tells whether the SmartCenter DIAL app is available.
	// Resolved once by probing; stays SupportUnknown until then.
	SmartCenter Support `yaml:"smart_center,omitempty"`

	// IsFollowTV enables the FollowTV protocol.
	IsFollowTV bool `yaml:"follow_tv,omitempty"`

	// FollowTVPort defaults to DefaultFollowTVPort.
	FollowTVPort int `yaml:"follow_tv_port,omitempty"`

	// IsNetworkRemote enables the network remote protocol.
	IsNetworkRemote bool `yaml:"network_remote,omitempty"`

	// NetworkRemotePort defaults to DefaultNetworkRemotePort.
	NetworkRemotePort int `yaml:"network_remote_port,omitempty"`

	// IsWakeOnLAN enables power on via wake-on-LAN.
	IsWakeOnLAN bool `yaml:"wake_on_lan,omitempty"`

	// WakeOnLANTimeout is the time the device needs to come up after a wake
	// packet. Defaults to DefaultWakeOnLANTimeout. In YAML it takes a unit,
	// for example "15s"; a bare integer is rejected by the decoder.
	WakeOnLANTimeout time.Duration `yaml:"wake_on_lan_timeout,omitempty"`
}

// Validate checks the invariants a Context must hold before use.
func (c Context) Validate() error {
	if c.UUID == "" {
		return ErrEmptyUUID
	}
	return nil
}

// WithDefaults returns a copy where every enabled capability carries the
// port or timeout it depends on.
func (c Context) WithDefaults() Context {
	if c.IsFollowTV && c.FollowTVPort == 0 {
		c.FollowTVPort = DefaultFollowTVPort
	}
	if c.IsNetworkRemote && c.NetworkRemotePort == 0 {
		c.NetworkRemotePort = DefaultNetworkRemotePort
	}
	if c.IsWakeOnLAN && c.WakeOnLANTimeout <= 0 {
		c.WakeOnLANTimeout = DefaultWakeOnLANTimeout
	}
	return c
}

// WithMAC returns a copy carrying the resolved hardware address.
func (c Context) WithMAC(mac string) Context {
	c.MAC = mac
	return c
}

// WithSmartCenter returns a copy with the SmartCenter capability resolved.
// Once resolved, the capability is stable: later calls return c unchanged.
func (c Context) WithSmartCenter(available bool) Context {
	if c.SmartCenter.Known() {
		return c
	}
	c.SmartCenter = SupportFromBool(available)
	return c
}

// FollowTVAddress returns host:port of the FollowTV listener.
func (c Context) FollowTVAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.FollowTVPort))
}

// NetworkRemoteAddress returns host:port of the network remote listener.
func (c Context) NetworkRemoteAddress() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.NetworkRemotePort))
}

// Name returns the display name, falling back to the model and then the host.
func (c Context) Name() string {
	switch {
	case c.DisplayName != "":
		return c.DisplayName
	case c.Model != "":
		return c.Model
	default:
		return c.Host
	}
}
