package remote

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/vesteltv/vestel-go/pkg/device"
)

// CommandGetVolume asks a FollowTV listener for the current volume level.
const CommandGetVolume = "GETINFO VOLUME"

// FollowTV is the FollowTV protocol client.
type FollowTV struct {
	*Channel
}

// NewFollowTV creates a FollowTV client. Port 0 selects the default port.
func NewFollowTV(host string, port int, config ChannelConfig) *FollowTV {
	if port == 0 {
		port = device.DefaultFollowTVPort
	}
	return &FollowTV{Channel: NewChannel(host, port, config)}
}

// GetVolume queries the current volume level.
func (f *FollowTV) GetVolume(ctx context.Context) (int, error) {
	resp, err := f.SendFollow(ctx, CommandGetVolume)
	if err != nil {
		return 0, err
	}
	return ParseVolume(resp)
}

// ParseVolume extracts the level attribute of the first <volume> element.
// Text surrounding the element is ignored.
func ParseVolume(resp string) (int, error) {
	d := xml.NewDecoder(strings.NewReader(resp))
	d.Strict = false

	for {
		tok, err := d.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return 0, fmt.Errorf("%w: no volume element", ErrMalformedResponse)
			}
			return 0, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || !strings.EqualFold(start.Name.Local, "volume") {
			continue
		}
		for _, attr := range start.Attr {
			if attr.Name.Local != "level" {
				continue
			}
			level, err := strconv.Atoi(strings.TrimSpace(attr.Value))
			if err != nil {
				return 0, fmt.Errorf("%w: level %q", ErrMalformedResponse, attr.Value)
			}
			return level, nil
		}
		return 0, fmt.Errorf("%w: volume without level", ErrMalformedResponse)
	}
}
