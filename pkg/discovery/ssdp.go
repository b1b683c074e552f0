package discovery

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"golang.org/x/net/ipv4"

	"github.com/vesteltv/vestel-go/pkg/device"
)

// SSDP defaults.
const (
	DefaultMulticastAddress = "239.255.255.250:1900"
	DefaultMX               = 2
	DefaultAttempts         = 2
	DefaultListenWindow     = 5 * time.Second
)

// Response is one reply to an M-SEARCH request.
type Response struct {
	StatusCode int
	Header     http.Header

	// Addr is the responder's UDP address.
	Addr net.Addr
}

// Searcher sends discovery requests and streams the replies. The channel is
// closed when the listen window ends or ctx is done.
type Searcher interface {
	Search(ctx context.Context, target string) (<-chan Response, error)
}

// SSDPSearcherConfig configures an SSDPSearcher.
type SSDPSearcherConfig struct {
	// Address is the multicast group. Default: DefaultMulticastAddress.
	Address string

	// Interface selects the outgoing multicast interface by name.
	// Empty uses the system default.
	Interface string

	// MX is the maximum response delay requested from devices, in seconds.
	MX int

	// Attempts is the number of M-SEARCH requests sent.
	Attempts int

	// Window is how long replies are collected. Default: DefaultListenWindow.
	Window time.Duration

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// SSDPSearcher is the default Searcher.
type SSDPSearcher struct {
	config SSDPSearcherConfig
}

// NewSSDPSearcher creates an SSDPSearcher. Zero fields take defaults.
func NewSSDPSearcher(config SSDPSearcherConfig) *SSDPSearcher {
	if config.Address == "" {
		config.Address = DefaultMulticastAddress
	}
	if config.MX <= 0 {
		config.MX = DefaultMX
	}
	if config.Attempts <= 0 {
		config.Attempts = DefaultAttempts
	}
	if config.Window <= 0 {
		config.Window = DefaultListenWindow
	}
	return &SSDPSearcher{config: config}
}

// Search sends M-SEARCH for target and streams the unicast replies.
func (s *SSDPSearcher) Search(ctx context.Context, target string) (<-chan Response, error) {
	dst, err := net.ResolveUDPAddr("udp4", s.config.Address)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", s.config.Address, err)
	}

	conn, err := net.ListenPacket("udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	pc := ipv4.NewPacketConn(conn)
	if err := pc.SetMulticastTTL(2); err != nil {
		s.debugLog("set multicast ttl", "error", err)
	}
	if s.config.Interface != "" {
		ifi, err := net.InterfaceByName(s.config.Interface)
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("interface %s: %w", s.config.Interface, err)
		}
		if err := pc.SetMulticastInterface(ifi); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("set multicast interface: %w", err)
		}
	}
	if err := pc.SetMulticastLoopback(true); err != nil {
		s.debugLog("set multicast loopback", "error", err)
	}

	msg := MSearch(s.config.Address, target, s.config.MX)
	out := make(chan Response)

	searchCtx, cancel := context.WithTimeout(ctx, s.config.Window)
	stop := context.AfterFunc(searchCtx, func() { _ = conn.Close() })

	go func() {
		for i := 0; i < s.config.Attempts; i++ {
			if i > 0 {
				select {
				case <-searchCtx.Done():
					return
				case <-time.After(500 * time.Millisecond):
				}
			}
			if _, err := pc.WriteTo(msg, nil, dst); err != nil {
				s.debugLog("m-search send failed", "attempt", i+1, "error", err)
				continue
			}
			s.debugLog("m-search sent", "target", target, "attempt", i+1)
		}
	}()

	go func() {
		defer close(out)
		defer cancel()
		defer stop()
		defer conn.Close()

		buf := make([]byte, 8192)
		for {
			n, _, src, err := pc.ReadFrom(buf)
			if err != nil {
				if searchCtx.Err() == nil && !errors.Is(err, net.ErrClosed) && !errors.Is(err, os.ErrDeadlineExceeded) {
					s.debugLog("ssdp read failed", "error", err)
				}
				return
			}

			resp, err := ParseResponse(buf[:n])
			if err != nil {
				s.debugLog("ignoring malformed ssdp reply", "from", src, "error", err)
				continue
			}
			resp.Addr = src

			select {
			case out <- resp:
			case <-searchCtx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (s *SSDPSearcher) debugLog(msg string, args ...any) {
	if s.config.Logger != nil {
		s.config.Logger.Debug(msg, args...)
	}
}

// MSearch builds an M-SEARCH request.
func MSearch(host, target string, mx int) []byte {
	var b bytes.Buffer
	b.WriteString("M-SEARCH * HTTP/1.1\r\n")
	b.WriteString("HOST: " + host + "\r\n")
	b.WriteString("MAN: \"ssdp:discover\"\r\n")
	b.WriteString("MX: " + strconv.Itoa(mx) + "\r\n")
	b.WriteString("ST: " + target + "\r\n")
	b.WriteString("USER-AGENT: " + device.UserAgent + "\r\n")
	b.WriteString("\r\n")
	return b.Bytes()
}

// ParseResponse parses an SSDP reply datagram. Header names are
// canonicalized, so LOCATION is read as Header.Get("Location").
func ParseResponse(data []byte) (Response, error) {
	resp, err := http.ReadResponse(bufio.NewReader(bytes.NewReader(data)), nil)
	if err != nil {
		return Response{}, err
	}
	_ = resp.Body.Close()
	return Response{StatusCode: resp.StatusCode, Header: resp.Header}, nil
}
