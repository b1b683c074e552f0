package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vesteltv/vestel-go/pkg/device"
	"github.com/vesteltv/vestel-go/pkg/tv"
)

// ErrUsage reports a malformed command line.
var ErrUsage = errors.New("usage")

// Commander executes device commands against a Registry.
type Commander struct {
	registry *Registry
	out      io.Writer
}

// NewCommander creates a Commander writing results to out.
func NewCommander(registry *Registry, out io.Writer) *Commander {
	return &Commander{registry: registry, out: out}
}

// Run executes one command. args[0] is the command name.
func (c *Commander) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: no command", ErrUsage)
	}

	cmd := strings.ToLower(args[0])
	args = args[1:]

	switch cmd {
	case "discover":
		return c.discover(ctx)
	case "list", "ls":
		c.list()
		return nil
	}

	if len(args) < 1 {
		return fmt.Errorf("%w: %s <device>", ErrUsage, cmd)
	}
	t, err := c.registry.Lookup(args[0])
	if err != nil {
		return err
	}
	args = args[1:]

	switch cmd {
	case "show", "info":
		printContext(c.out, t.Context())
		return nil

	case "active", "status":
		active, err := t.GetActive(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "active: %t\n", active)
		return nil

	case "on", "wake":
		force := len(args) > 0 && args[0] == "force"
		if err := t.SetActive(ctx, force); err != nil {
			return err
		}
		fmt.Fprintln(c.out, "wake sent")
		return nil

	case "off", "standby":
		return c.queued(t.SetInactive(ctx))

	case "input":
		if len(args) < 1 {
			return fmt.Errorf("%w: input <device> <identifier>", ErrUsage)
		}
		id, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("%w: invalid identifier %q", ErrUsage, args[0])
		}
		return c.queued(t.SetActiveIdentifier(ctx, id))

	case "volume", "vol":
		level, err := t.GetVolume(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(c.out, "volume: %d\n", level)
		return nil

	case "volume-up", "vol+":
		return c.queued(t.SetVolumeSelectorIncrement(ctx))

	case "volume-down", "vol-":
		return c.queued(t.SetVolumeSelectorDecrement(ctx))

	default:
		return fmt.Errorf("%w: unknown command %q", ErrUsage, cmd)
	}
}

// RunOnce executes one command and waits until queued remote keys have been
// submitted. One-shot invocations use it so the process does not exit with
// keys still in the queue.
func (c *Commander) RunOnce(ctx context.Context, args []string) error {
	if err := c.Run(ctx, args); err != nil {
		return err
	}
	if err := c.registry.Flush(ctx); err != nil {
		return fmt.Errorf("delivering remote keys: %w", err)
	}
	return nil
}

func (c *Commander) queued(err error) error {
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, "queued")
	return nil
}

func (c *Commander) discover(ctx context.Context) error {
	fmt.Fprintln(c.out, "Searching for televisions...")
	found, failed, err := c.registry.Discover(ctx)
	if err != nil {
		return err
	}
	if len(found) == 0 {
		fmt.Fprintln(c.out, "No televisions found.")
	}
	for _, dc := range found {
		fmt.Fprintf(c.out, "  %-36s  %-15s  %s\n", dc.UUID, dc.Host, dc.Name())
	}
	if failed > 0 {
		fmt.Fprintf(c.out, "%d responder(s) could not be read\n", failed)
	}
	return nil
}

func (c *Commander) list() {
	devices := c.registry.Devices()
	if len(devices) == 0 {
		fmt.Fprintln(c.out, "No devices. Run 'discover' or add devices to the config file.")
		return
	}
	for _, dc := range devices {
		fmt.Fprintf(c.out, "  %-36s  %-15s  %s\n", dc.UUID, dc.Host, dc.Name())
	}
}

func printContext(w io.Writer, c device.Context) {
	fmt.Fprintf(w, "UUID:           %s\n", c.UUID)
	fmt.Fprintf(w, "Name:           %s\n", c.Name())
	fmt.Fprintf(w, "Host:           %s\n", c.Host)
	if c.MAC != "" {
		fmt.Fprintf(w, "MAC:            %s\n", c.MAC)
	}
	if c.Manufacturer != "" || c.Model != "" {
		fmt.Fprintf(w, "Model:          %s %s\n", c.Manufacturer, c.Model)
	}
	if c.SerialNumber != "" {
		fmt.Fprintf(w, "Serial:         %s\n", c.SerialNumber)
	}
	fmt.Fprintf(w, "DIAL:           %t %s\n", c.IsDial, c.DialApplicationURL)
	fmt.Fprintf(w, "SmartCenter:    %s\n", c.SmartCenter)
	fmt.Fprintf(w, "FollowTV:       %t\n", c.IsFollowTV)
	fmt.Fprintf(w, "Network remote: %t\n", c.IsNetworkRemote)
	fmt.Fprintf(w, "Wake-on-LAN:    %t (%s)\n", c.IsWakeOnLAN, c.WakeOnLANTimeout)
}

// exitCode maps an operation error to a process exit status.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage):
		return 2
	case errors.Is(err, tv.ErrCapabilityNotEnabled), errors.Is(err, tv.ErrCapabilityNotInitialized):
		return 3
	default:
		return 1
	}
}
