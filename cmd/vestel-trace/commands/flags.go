// Package commands implements the vestel-trace CLI commands.
package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/vesteltv/vestel-go/pkg/trace"
)

// FilterOptions holds the filter flags shared by the commands.
type FilterOptions struct {
	SessionID string
	DeviceID  string
	TimeStart string
	TimeEnd   string
	Layer     string
	Direction string
	Category  string
}

// Filter converts the flag values to a trace.Filter.
func (o FilterOptions) Filter() (trace.Filter, error) {
	filter := trace.Filter{
		SessionID: o.SessionID,
		DeviceID:  o.DeviceID,
	}

	if o.TimeStart != "" {
		t, err := time.Parse(time.RFC3339, o.TimeStart)
		if err != nil {
			return trace.Filter{}, fmt.Errorf("invalid time-start format: %w", err)
		}
		filter.TimeStart = &t
	}
	if o.TimeEnd != "" {
		t, err := time.Parse(time.RFC3339, o.TimeEnd)
		if err != nil {
			return trace.Filter{}, fmt.Errorf("invalid time-end format: %w", err)
		}
		filter.TimeEnd = &t
	}
	if o.Layer != "" {
		l, ok := trace.ParseLayer(o.Layer)
		if !ok {
			return trace.Filter{}, fmt.Errorf("invalid layer: %s (must be socket, http, or queue)", o.Layer)
		}
		filter.Layer = &l
	}
	if o.Direction != "" {
		d, err := parseDirection(o.Direction)
		if err != nil {
			return trace.Filter{}, err
		}
		filter.Direction = &d
	}
	if o.Category != "" {
		c, err := parseCategory(o.Category)
		if err != nil {
			return trace.Filter{}, err
		}
		filter.Category = &c
	}
	return filter, nil
}

func parseDirection(s string) (trace.Direction, error) {
	switch strings.ToLower(s) {
	case "in":
		return trace.DirectionIn, nil
	case "out":
		return trace.DirectionOut, nil
	default:
		return 0, fmt.Errorf("invalid direction: %s (must be in or out)", s)
	}
}

func parseCategory(s string) (trace.Category, error) {
	switch strings.ToLower(s) {
	case "message":
		return trace.CategoryMessage, nil
	case "state":
		return trace.CategoryState, nil
	case "error":
		return trace.CategoryError, nil
	default:
		return 0, fmt.Errorf("invalid category: %s (must be message, state, or error)", s)
	}
}

// eventType labels an event by its payload.
func eventType(event trace.Event) string {
	switch {
	case event.Payload != nil:
		return "payload"
	case event.StateChange != nil:
		return "state"
	case event.Error != nil:
		return "error"
	default:
		return "unknown"
	}
}

func shortID(id string) string {
	if len(id) >= 8 {
		return id[:8]
	}
	return id
}
