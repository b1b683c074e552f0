package remote

import (
	"context"

	"github.com/vesteltv/vestel-go/pkg/device"
)

// NetworkRemote is the network remote protocol client.
type NetworkRemote struct {
	*Channel
}

// NewNetworkRemote creates a NetworkRemote client. Port 0 selects the
// default port.
func NewNetworkRemote(host string, port int, config ChannelConfig) *NetworkRemote {
	if port == 0 {
		port = device.DefaultNetworkRemotePort
	}
	return &NetworkRemote{Channel: NewChannel(host, port, config)}
}

// IsActive reports whether the listener accepts connections. The device
// only accepts while powered on.
func (n *NetworkRemote) IsActive(ctx context.Context) bool {
	return n.Ping(ctx)
}
