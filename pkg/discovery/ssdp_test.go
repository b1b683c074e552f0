package discovery_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesteltv/vestel-go/pkg/device"
	"github.com/vesteltv/vestel-go/pkg/discovery"
)

func TestMSearch(t *testing.T) {
	msg := string(discovery.MSearch(discovery.DefaultMulticastAddress, device.DialURN, 3))

	assert.True(t, strings.HasPrefix(msg, "M-SEARCH * HTTP/1.1\r\n"))
	assert.Contains(t, msg, "HOST: 239.255.255.250:1900\r\n")
	assert.Contains(t, msg, "MAN: \"ssdp:discover\"\r\n")
	assert.Contains(t, msg, "MX: 3\r\n")
	assert.Contains(t, msg, "ST: urn:dial-multiscreen-org:service:dial:1\r\n")
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\n"))
}

func TestParseResponse(t *testing.T) {
	data := "HTTP/1.1 200 OK\r\n" +
		"CACHE-CONTROL: max-age=1800\r\n" +
		"LOCATION: http://10.0.0.5:8008/ssdp/device-desc.xml\r\n" +
		"ST: urn:dial-multiscreen-org:service:dial:1\r\n" +
		"WAKEUP: MAC=AA:BB:CC:DD:EE:FF;Timeout=10\r\n" +
		"\r\n"

	resp, err := discovery.ParseResponse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "http://10.0.0.5:8008/ssdp/device-desc.xml", resp.Header.Get("Location"))
	assert.Equal(t, "MAC=AA:BB:CC:DD:EE:FF;Timeout=10", resp.Header.Get(discovery.HeaderWakeup))

	_, err = discovery.ParseResponse([]byte("NOTIFY garbage"))
	assert.Error(t, err)
}

const descriptionXML = `<?xml version="1.0"?>
<root xmlns="urn:schemas-upnp-org:device-1-0">
  <specVersion><major>1</major><minor>0</minor></specVersion>
  <device>
    <deviceType>urn:schemas-upnp-org:device:tvdevice:1</deviceType>
    <friendlyName>Bedroom TV</friendlyName>
    <manufacturer>Vestel</manufacturer>
    <modelName>MB110</modelName>
    <UDN>uuid:feed-beef</UDN>
  </device>
</root>`

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, device.UserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Application-URL", "http://10.0.0.5:8008/apps/")
		_, _ = w.Write([]byte(descriptionXML))
	}))
	defer srv.Close()

	desc, header, err := discovery.NewHTTPFetcher(srv.Client(), nil).Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Equal(t, device.TVDeviceURN, desc.Device.DeviceType)
	assert.Equal(t, "Bedroom TV", desc.Device.FriendlyName)
	assert.Equal(t, "uuid:feed-beef", desc.Device.UDN)
	assert.Equal(t, "http://10.0.0.5:8008/apps/", header.Get(discovery.HeaderApplicationURL))
}

func TestHTTPFetcherMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<root><device>"))
	}))
	defer srv.Close()

	_, _, err := discovery.NewHTTPFetcher(srv.Client(), nil).Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, discovery.ErrDiscoveryParse)
}

// fakeResponder answers every M-SEARCH datagram with an SSDP reply.
func fakeResponder(t *testing.T, location string) (*net.UDPConn, chan string) {
	t.Helper()
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	requests := make(chan string, 8)
	go func() {
		buf := make([]byte, 2048)
		for {
			n, src, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}
			requests <- string(buf[:n])
			reply := fmt.Sprintf("HTTP/1.1 200 OK\r\nLOCATION: %s\r\nST: %s\r\n\r\n", location, device.DialURN)
			_, _ = conn.WriteToUDP([]byte(reply), src)
		}
	}()
	return conn, requests
}

func TestSSDPSearcherEndToEnd(t *testing.T) {
	descSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(descriptionXML))
	}))
	defer descSrv.Close()

	responder, requests := fakeResponder(t, descSrv.URL)

	searcher := discovery.NewSSDPSearcher(discovery.SSDPSearcherConfig{
		Address:  responder.LocalAddr().String(),
		Attempts: 2,
		Window:   time.Second,
	})
	e := discovery.NewEngine(discovery.Config{
		Searcher: searcher,
		Fetcher:  discovery.NewHTTPFetcher(descSrv.Client(), nil),
	})

	ch, err := e.Search(context.Background())
	require.NoError(t, err)
	results := collect(t, ch)

	require.Len(t, results, 1, "two attempts, one device")
	assert.Equal(t, "feed-beef", results[0].Context.UUID)
	assert.Equal(t, "127.0.0.1", results[0].Context.Host)
	assert.Equal(t, "Bedroom TV", results[0].Context.Name())

	req := <-requests
	assert.Contains(t, req, "ST: "+device.DialURN)
}
