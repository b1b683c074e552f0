package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/vesteltv/vestel-go/pkg/device"
	"github.com/vesteltv/vestel-go/pkg/telemetry"
)

// maxDescriptionSize bounds the description document read.
const maxDescriptionSize = 1 << 20

// Description is the subset of a UPnP device description used here.
type Description struct {
	XMLName xml.Name          `xml:"root"`
	Device  DescriptionDevice `xml:"device"`
}

// DescriptionDevice is the <device> element of a description document.
type DescriptionDevice struct {
	DeviceType   string `xml:"deviceType"`
	FriendlyName string `xml:"friendlyName"`
	Manufacturer string `xml:"manufacturer"`
	ModelName    string `xml:"modelName"`
	SerialNumber string `xml:"serialNumber"`
	UDN          string `xml:"UDN"`
}

// Fetcher retrieves a description document and the headers it was served
// with.
type Fetcher interface {
	Fetch(ctx context.Context, location string) (*Description, http.Header, error)
}

// HTTPFetcher is the default Fetcher.
type HTTPFetcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTPFetcher creates an HTTPFetcher. A nil client uses an instrumented
// client with a five second timeout.
func NewHTTPFetcher(client *http.Client, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = telemetry.HTTPClient(5 * time.Second)
	}
	return &HTTPFetcher{client: client, logger: logger}
}

// Fetch GETs location and decodes the description document.
func (f *HTTPFetcher) Fetch(ctx context.Context, location string) (*Description, http.Header, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", device.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("get %s: %w", location, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, resp.Header, fmt.Errorf("get %s: status %d", location, resp.StatusCode)
	}

	var desc Description
	if err := xml.NewDecoder(io.LimitReader(resp.Body, maxDescriptionSize)).Decode(&desc); err != nil {
		return nil, resp.Header, fmt.Errorf("%w: %w", ErrDiscoveryParse, err)
	}

	if f.logger != nil {
		f.logger.Debug("description fetched", "location", location, "type", desc.Device.DeviceType)
	}
	return &desc, resp.Header, nil
}
