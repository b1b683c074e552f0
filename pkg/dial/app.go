package dial

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/vesteltv/vestel-go/pkg/device"
	"github.com/vesteltv/vestel-go/pkg/trace"
)

// App is a DIAL application known to be present.
type App interface {
	// Name returns the application name.
	Name() string

	// URL returns the application URL.
	URL() string

	// Launch POSTs body to the application URL.
	Launch(ctx context.Context, body string) error
}

// GenericApp is any present application without specialized behavior.
type GenericApp struct {
	name   string
	url    string
	client *Client
}

// Name returns the application name.
func (a *GenericApp) Name() string { return a.name }

// URL returns the application URL.
func (a *GenericApp) URL() string { return a.url }

// Launch POSTs body to the application URL. Any 2xx status is success.
func (a *GenericApp) Launch(ctx context.Context, body string) error {
	c := a.client
	sessionID := uuid.New().String()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.url, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	req.Header.Set("User-Agent", device.UserAgent)
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	c.traceRequest(sessionID, a.url, []byte(body))

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrLaunchFailed, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, trace.MaxPayloadSize))
	c.traceResponse(sessionID, a.url, resp.StatusCode, respBody)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrLaunchFailed, resp.StatusCode)
	}
	return nil
}
