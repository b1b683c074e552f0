package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/vesteltv/vestel-go/pkg/device"
)

// Shell is the interactive command loop.
type Shell struct {
	registry *Registry
	timeout  time.Duration
	rl       *readline.Instance
}

// NewShell creates a Shell. Each command runs with the given timeout.
func NewShell(registry *Registry, timeout time.Duration) (*Shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "tv> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Shell{registry: registry, timeout: timeout, rl: rl}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use this for log output.
func (s *Shell) Stdout() io.Writer {
	return s.rl.Stdout()
}

// Watch prints capability changes of every known television.
func (s *Shell) Watch() func() {
	var cancels []func()
	for _, dc := range s.registry.Devices() {
		t, err := s.registry.Lookup(dc.UUID)
		if err != nil {
			continue
		}
		cancels = append(cancels, t.OnContextChange(func(c device.Context) {
			fmt.Fprintf(s.rl.Stdout(), "[%s] smartcenter=%s mac=%s\n", c.Name(), c.SmartCenter, c.MAC)
		}))
	}
	return func() {
		for _, cancel := range cancels {
			cancel()
		}
	}
}

// Run starts the interactive command loop.
func (s *Shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()

	s.printHelp()
	commander := NewCommander(s.registry, s.rl.Stdout())

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				continue
			}
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}

		switch strings.ToLower(parts[0]) {
		case "help", "?":
			s.printHelp()
			continue
		case "quit", "exit", "q":
			fmt.Fprintln(s.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		cmdCtx, cmdCancel := context.WithTimeout(ctx, s.timeout)
		if err := commander.Run(cmdCtx, parts); err != nil {
			fmt.Fprintf(s.rl.Stdout(), "Error: %v\n", err)
		}
		cmdCancel()
	}
}

func (s *Shell) printHelp() {
	fmt.Fprint(s.rl.Stdout(), `
Commands:
  discover                  Search the network for televisions
  list                      List known televisions
  show <device>             Show the device context
  active <device>           Query whether the television is on
  on <device> [force]       Send wake-on-LAN
  off <device>              Send the standby key
  input <device> <id>       Select an input source
  volume <device>           Read the volume level
  volume-up <device>        Raise the volume
  volume-down <device>      Lower the volume
  help                      Show this help
  quit                      Exit

A device is named by UUID, display name or host.
`)
}
