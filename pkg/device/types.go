package device

import (
	"errors"
	"time"
)

// UserAgent is sent with every HTTP request made to a device.
const UserAgent = "Vestel TV API"

// Protocol identifiers.
const (
	// DialURN is the SSDP search target for DIAL capable devices.
	DialURN = "urn:dial-multiscreen-org:service:dial:1"

	// TVDeviceURN is the UPnP device type a description must carry.
	TVDeviceURN = "urn:schemas-upnp-org:device:tvdevice:1"

	// SmartCenterApp is the DIAL application name of the remote-control app.
	SmartCenterApp = "SmartCenter"
)

// Defaults applied when a capability is enabled without its parameter.
const (
	// DefaultWakeOnLANTimeout is the wake timeout used when none is advertised.
	DefaultWakeOnLANTimeout = 2 * time.Second

	// DefaultFollowTVPort is the FollowTV command listener port.
	DefaultFollowTVPort = 1986

	// DefaultNetworkRemotePort is the network remote command listener port.
	DefaultNetworkRemotePort = 4660
)

// Timing constants.
const (
	// QueueInterval is the SmartCenter key dispatch period.
	QueueInterval = 100 * time.Millisecond

	// SocketTimeout bounds connect and idle read on command sockets.
	SocketTimeout = 5 * time.Second

	// ActiveCheckTimeout bounds the reachability check used by GetActive.
	ActiveCheckTimeout = 2 * time.Second
)

// Context errors.
var (
	ErrEmptyUUID = errors.New("uuid must be set")
)

// Support is a tri-state capability flag. The zero value is SupportUnknown.
type Support uint8

const (
	// SupportUnknown - capability not resolved yet.
	SupportUnknown Support = iota

	// SupportYes - capability resolved as available.
	SupportYes

	// SupportNo - capability resolved as unavailable.
	SupportNo
)

// String returns the support state name.
func (s Support) String() string {
	switch s {
	case SupportUnknown:
		return "UNKNOWN"
	case SupportYes:
		return "YES"
	case SupportNo:
		return "NO"
	default:
		return "INVALID"
	}
}

// Known reports whether the capability has been resolved.
func (s Support) Known() bool {
	return s == SupportYes || s == SupportNo
}

// Supported reports whether the capability resolved as available.
// Callers must check Known first; an unknown capability is not "false".
func (s Support) Supported() bool {
	return s == SupportYes
}

// SupportFromBool converts a resolved boolean into a Support value.
func SupportFromBool(b bool) Support {
	if b {
		return SupportYes
	}
	return SupportNo
}

// MarshalYAML encodes unknown as null and resolved states as booleans.
func (s Support) MarshalYAML() (any, error) {
	if !s.Known() {
		return nil, nil
	}
	return s.Supported(), nil
}

// UnmarshalYAML accepts a boolean, or null for unknown.
func (s *Support) UnmarshalYAML(unmarshal func(any) error) error {
	var b *bool
	if err := unmarshal(&b); err != nil {
		return err
	}
	if b == nil {
		*s = SupportUnknown
		return nil
	}
	*s = SupportFromBool(*b)
	return nil
}
