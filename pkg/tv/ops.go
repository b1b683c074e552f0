package tv

import (
	"context"
	"errors"

	"github.com/vesteltv/vestel-go/pkg/device"
	"github.com/vesteltv/vestel-go/pkg/dial"
	"github.com/vesteltv/vestel-go/pkg/remote"
)

// GetActive reports whether the television is powered on, judged by whether
// its network remote listener accepts a connection within the reachability
// timeout. Transport failures report false, never an error.
func (t *TV) GetActive(ctx context.Context) (bool, error) {
	const op = "get active"

	if !t.Context().IsNetworkRemote {
		return false, opError(op, ErrCapabilityNotEnabled, "network remote is not enabled")
	}
	if t.networkRemote == nil {
		return false, opError(op, ErrCapabilityNotInitialized, "network remote not initiated")
	}
	return t.networkRemote.IsActive(ctx), nil
}

// SetActive powers the television on with a wake-on-LAN packet. With
// forceTry the packet is sent even when the context does not advertise
// wake-on-LAN. An unknown hardware address is resolved first.
func (t *TV) SetActive(ctx context.Context, forceTry bool) error {
	const op = "set active"

	dc := t.Context()
	if !dc.IsWakeOnLAN && !forceTry {
		return opError(op, ErrCapabilityNotEnabled, "wake on LAN is not enabled")
	}
	if t.config.Waker == nil {
		return opError(op, ErrCapabilityNotInitialized, "wake on LAN not initiated")
	}

	mac := dc.MAC
	if mac == "" {
		if t.config.MACResolver == nil {
			return opError(op, ErrTransportUnavailable, "error finding MAC address")
		}
		resolved, err := t.config.MACResolver.ResolveMAC(ctx, dc.Host)
		if err != nil {
			t.debugLog("mac resolution failed", "host", dc.Host, "error", err)
			return opError(op, ErrTransportUnavailable, "error finding MAC address")
		}
		mac = resolved
		t.update("mac", "on demand", func(c device.Context) device.Context {
			if c.MAC != "" {
				return c
			}
			return c.WithMAC(mac)
		})
	}

	if err := t.config.Waker.Wake(ctx, mac); err != nil {
		t.debugLog("wake failed", "mac", mac, "error", err)
		return opError(op, ErrTransportOperationFailed, "error waking TV")
	}
	return nil
}

// SetInactive sends the standby key through the SmartCenter app.
func (t *TV) SetInactive(ctx context.Context) error {
	return t.sendKeys(ctx, "set inactive", dial.KeyActive)
}

// SetActiveIdentifier selects an input or channel by identifier through the
// SmartCenter app.
func (t *TV) SetActiveIdentifier(ctx context.Context, identifier int) error {
	return t.sendKeys(ctx, "set active identifier", dial.KeyActiveIdentifier, dial.KeyCode(identifier))
}

// SetVolumeSelectorIncrement raises the volume by one step.
func (t *TV) SetVolumeSelectorIncrement(ctx context.Context) error {
	return t.sendKeys(ctx, "set volume selector increment", dial.KeyVolumeSelectorIncrement)
}

// SetVolumeSelectorDecrement lowers the volume by one step.
func (t *TV) SetVolumeSelectorDecrement(ctx context.Context) error {
	return t.sendKeys(ctx, "set volume selector decrement", dial.KeyVolumeSelectorDecrement)
}

// GetVolume queries the volume level over FollowTV.
func (t *TV) GetVolume(ctx context.Context) (int, error) {
	const op = "get volume"

	if !t.Context().IsFollowTV {
		return 0, opError(op, ErrCapabilityNotEnabled, "follow TV is not enabled")
	}
	if t.followTV == nil {
		return 0, opError(op, ErrCapabilityNotInitialized, "follow TV not initiated")
	}

	level, err := t.followTV.GetVolume(ctx)
	if err != nil {
		t.debugLog("get volume failed", "address", t.followTV.Address(), "error", err)
		if errors.Is(err, remote.ErrConnect) || errors.Is(err, remote.ErrConnectTimeout) {
			return 0, opError(op, ErrTransportUnavailable, "error getting volume")
		}
		return 0, opError(op, ErrTransportOperationFailed, "error getting volume")
	}
	return level, nil
}

// sendKeys waits for SmartCenter detection, checks the app is usable and
// queues codes.
func (t *TV) sendKeys(ctx context.Context, op string, codes ...dial.KeyCode) error {
	select {
	case <-t.smartCenterResolved:
	case <-ctx.Done():
	}

	switch support := t.Context().SmartCenter; {
	case support == device.SupportNo:
		return opError(op, ErrCapabilityNotEnabled, "DIAL smart center app is not enabled")
	case !support.Known():
		return opError(op, ErrCapabilityNotInitialized, "DIAL smart center app detection not complete")
	}
	if t.dial == nil {
		return opError(op, ErrCapabilityNotInitialized, "DIAL not initiated")
	}
	if !t.dial.CheckForApp(ctx, device.SmartCenterApp) {
		return opError(op, ErrTransportUnavailable, "DIAL smart center app not available")
	}
	app, ok := t.dial.SmartCenter()
	if !ok {
		return opError(op, ErrCapabilityNotInitialized, "DIAL smart center app not initialised")
	}

	if err := app.Remote(codes...); err != nil {
		t.debugLog("queue remote keys failed", "codes", codes, "error", err)
		return opError(op, ErrTransportOperationFailed, "error sending remote key code")
	}
	return nil
}
