package lan

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strings"
)

// ErrMACNotFound is returned when no ARP entry exists for the host.
var ErrMACNotFound = errors.New("mac address not found")

// MACResolver looks up the hardware address of a host on the local network.
type MACResolver interface {
	ResolveMAC(ctx context.Context, host string) (string, error)
}

// ARPResolverConfig configures an ARPResolver.
type ARPResolverConfig struct {
	// TablePath is the kernel ARP table. Default: /proc/net/arp.
	TablePath string

	// Command is run when the table cannot be read. Default: arp -an.
	// An empty slice disables the fallback.
	Command []string

	// Prime sends one UDP datagram to the host before the lookup so the
	// kernel populates its neighbor cache.
	Prime bool

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// DefaultARPResolverConfig returns the default configuration.
func DefaultARPResolverConfig() ARPResolverConfig {
	return ARPResolverConfig{
		TablePath: "/proc/net/arp",
		Command:   []string{"arp", "-an"},
		Prime:     true,
	}
}

// ARPResolver resolves hardware addresses from the host ARP cache.
type ARPResolver struct {
	config ARPResolverConfig
}

// NewARPResolver creates an ARPResolver.
func NewARPResolver(config ARPResolverConfig) *ARPResolver {
	return &ARPResolver{config: config}
}

// ResolveMAC returns the hardware address of host in aa:bb:cc:dd:ee:ff form.
func (r *ARPResolver) ResolveMAC(ctx context.Context, host string) (string, error) {
	ip, err := r.resolveIP(ctx, host)
	if err != nil {
		return "", err
	}

	if r.config.Prime {
		r.prime(ctx, ip)
	}

	table, err := r.readTable(ctx)
	if err != nil {
		return "", err
	}

	mac, ok := table[ip.String()]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrMACNotFound, ip)
	}
	r.debugLog("mac resolved", "host", host, "mac", mac)
	return mac, nil
}

func (r *ARPResolver) resolveIP(ctx context.Context, host string) (net.IP, error) {
	if ip := net.ParseIP(host); ip != nil {
		return ip, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", host, err)
	}
	for _, a := range addrs {
		if v4 := a.IP.To4(); v4 != nil {
			return v4, nil
		}
	}
	return nil, fmt.Errorf("%w: no IPv4 address for %s", ErrMACNotFound, host)
}

// prime triggers neighbor resolution. Errors are irrelevant.
func (r *ARPResolver) prime(ctx context.Context, ip net.IP) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", net.JoinHostPort(ip.String(), "9"))
	if err != nil {
		return
	}
	_, _ = conn.Write([]byte{0})
	_ = conn.Close()
}

func (r *ARPResolver) readTable(ctx context.Context) (map[string]string, error) {
	if r.config.TablePath != "" {
		f, err := os.Open(r.config.TablePath)
		if err == nil {
			defer f.Close()
			return ParseProcARP(f)
		}
		r.debugLog("arp table unavailable", "path", r.config.TablePath, "error", err)
	}

	if len(r.config.Command) == 0 {
		return nil, fmt.Errorf("%w: no arp source", ErrMACNotFound)
	}
	out, err := exec.CommandContext(ctx, r.config.Command[0], r.config.Command[1:]...).Output()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", r.config.Command[0], err)
	}
	return ParseARPCommand(bytes.NewReader(out))
}

func (r *ARPResolver) debugLog(msg string, args ...any) {
	if r.config.Logger != nil {
		r.config.Logger.Debug(msg, args...)
	}
}

// ParseProcARP parses the Linux /proc/net/arp format into an IP to MAC map.
// Incomplete entries are skipped.
func ParseProcARP(rd io.Reader) (map[string]string, error) {
	table := make(map[string]string)
	sc := bufio.NewScanner(rd)
	first := true
	for sc.Scan() {
		if first {
			first = false
			continue
		}
		fields := strings.Fields(sc.Text())
		if len(fields) < 4 || fields[2] == "0x0" {
			continue
		}
		if mac, ok := NormalizeMAC(fields[3]); ok {
			table[fields[0]] = mac
		}
	}
	return table, sc.Err()
}

// ParseARPCommand parses `arp -an` output of Linux and BSD systems:
//
//	? (192.168.1.20) at a4:d:5e:1:2:3 on en0 ifscope [ethernet]
func ParseARPCommand(rd io.Reader) (map[string]string, error) {
	table := make(map[string]string)
	sc := bufio.NewScanner(rd)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		for i := 0; i+2 < len(fields); i++ {
			if fields[i+1] != "at" {
				continue
			}
			ip := strings.Trim(fields[i], "()")
			if net.ParseIP(ip) == nil {
				break
			}
			if mac, ok := NormalizeMAC(fields[i+2]); ok {
				table[ip] = mac
			}
			break
		}
	}
	return table, sc.Err()
}

// NormalizeMAC returns mac as six lower-case, zero-padded octets separated by
// colons. All-zero and malformed addresses are rejected.
func NormalizeMAC(mac string) (string, bool) {
	parts := strings.FieldsFunc(mac, func(r rune) bool { return r == ':' || r == '-' })
	if len(parts) != 6 {
		return "", false
	}
	for i, p := range parts {
		if len(p) == 1 {
			parts[i] = "0" + p
		}
	}
	hw, err := net.ParseMAC(strings.Join(parts, ":"))
	if err != nil || len(hw) != 6 {
		return "", false
	}
	if bytes.Equal(hw, make(net.HardwareAddr, 6)) {
		return "", false
	}
	return hw.String(), true
}
