package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/vesteltv/vestel-go/pkg/trace"
)

// RunExport writes the events matching filter as JSONL or CSV.
func RunExport(path, format string, filter trace.Filter, w io.Writer) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}

	reader, err := trace.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open trace file: %w", err)
	}
	defer reader.Close()

	if format == "csv" {
		return exportCSV(reader, w)
	}
	return exportJSONL(reader, w)
}

// jsonEvent is the JSONL form of an event. Payload data is kept as text.
type jsonEvent struct {
	Timestamp  string `json:"timestamp"`
	SessionID  string `json:"sessionId"`
	Direction  string `json:"direction"`
	Layer      string `json:"layer"`
	Category   string `json:"category"`
	RemoteAddr string `json:"remoteAddr,omitempty"`
	DeviceID   string `json:"deviceId,omitempty"`
	Size       int    `json:"size,omitempty"`
	Status     int    `json:"status,omitempty"`
	Data       string `json:"data,omitempty"`
	Truncated  bool   `json:"truncated,omitempty"`
	Entity     string `json:"entity,omitempty"`
	OldState   string `json:"oldState,omitempty"`
	NewState   string `json:"newState,omitempty"`
	Reason     string `json:"reason,omitempty"`
	Error      string `json:"error,omitempty"`
	Context    string `json:"context,omitempty"`
}

func toJSONEvent(event trace.Event) jsonEvent {
	je := jsonEvent{
		Timestamp:  event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
		SessionID:  event.SessionID,
		Direction:  event.Direction.String(),
		Layer:      event.Layer.String(),
		Category:   event.Category.String(),
		RemoteAddr: event.RemoteAddr,
		DeviceID:   event.DeviceID,
	}
	switch {
	case event.Payload != nil:
		je.Size = event.Payload.Size
		je.Status = event.Payload.Status
		je.Data = string(event.Payload.Data)
		je.Truncated = event.Payload.Truncated
	case event.StateChange != nil:
		je.Entity = event.StateChange.Entity.String()
		je.OldState = event.StateChange.OldState
		je.NewState = event.StateChange.NewState
		je.Reason = event.StateChange.Reason
	case event.Error != nil:
		je.Error = event.Error.Message
		je.Context = event.Error.Context
	}
	return je
}

func exportJSONL(reader *trace.Reader, w io.Writer) error {
	encoder := json.NewEncoder(w)
	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := encoder.Encode(toJSONEvent(event)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
	}
}

func exportCSV(reader *trace.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	header := []string{"timestamp", "session_id", "direction", "layer", "category", "remote_addr", "device_id", "type", "size"}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for {
		event, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}

		size := ""
		if event.Payload != nil {
			size = strconv.Itoa(event.Payload.Size)
		}
		row := []string{
			event.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			event.SessionID,
			event.Direction.String(),
			event.Layer.String(),
			event.Category.String(),
			event.RemoteAddr,
			event.DeviceID,
			eventType(event),
			size,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
	}
}
