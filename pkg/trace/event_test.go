package trace

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestNewPayloadTruncates(t *testing.T) {
	data := []byte(strings.Repeat("x", MaxPayloadSize+10))
	p := NewPayload(data)

	if p.Size != MaxPayloadSize+10 {
		t.Errorf("Size = %d, want %d", p.Size, MaxPayloadSize+10)
	}
	if len(p.Data) != MaxPayloadSize {
		t.Errorf("len(Data) = %d, want %d", len(p.Data), MaxPayloadSize)
	}
	if !p.Truncated {
		t.Error("expected Truncated")
	}

	data[0] = 'y'
	if p.Data[0] != 'x' {
		t.Error("payload must not alias the caller's buffer")
	}
}

func TestEventRoundTripKeepsStateChange(t *testing.T) {
	in := Event{
		Timestamp: time.Now(),
		SessionID: "s1",
		Layer:     LayerHTTP,
		Category:  CategoryState,
		StateChange: &StateChangeEvent{
			Entity:   StateEntityApp,
			OldState: "UNKNOWN",
			NewState: "SPECIALIZED",
		},
	}
	data, err := EncodeEvent(in)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	out, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if out.StateChange == nil || out.StateChange.NewState != "SPECIALIZED" {
		t.Fatalf("StateChange lost: %+v", out.StateChange)
	}
	if !out.Timestamp.Equal(in.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", out.Timestamp, in.Timestamp)
	}
}

func TestParseLayer(t *testing.T) {
	for name, want := range map[string]Layer{"socket": LayerSocket, "HTTP": LayerHTTP, "Queue": LayerQueue} {
		got, ok := ParseLayer(name)
		if !ok || got != want {
			t.Errorf("ParseLayer(%q) = %v, %v", name, got, ok)
		}
	}
	if _, ok := ParseLayer("wire"); ok {
		t.Error("ParseLayer(wire) should fail")
	}
}

func TestSlogAdapterLogsPayload(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	NewSlogAdapter(logger).Log(Event{
		SessionID:  "s1",
		Direction:  DirectionIn,
		Layer:      LayerSocket,
		RemoteAddr: "10.0.0.5:1986",
		Payload:    &PayloadEvent{Size: 3, Data: []byte("abc")},
	})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v", err)
	}
	if entry["session"] != "s1" {
		t.Errorf("session: got %v", entry["session"])
	}
	if entry["layer"] != "SOCKET" {
		t.Errorf("layer: got %v", entry["layer"])
	}
	if entry["data"] != "abc" {
		t.Errorf("data: got %v", entry["data"])
	}
	if entry["remote"] != "10.0.0.5:1986" {
		t.Errorf("remote: got %v", entry["remote"])
	}
}

type recordingLogger struct {
	events []Event
}

func (r *recordingLogger) Log(e Event) { r.events = append(r.events, e) }

func TestMultiLoggerCallsAll(t *testing.T) {
	a, b := &recordingLogger{}, &recordingLogger{}
	m := NewMultiLogger(a, nil, b)

	m.Log(Event{SessionID: "s1"})

	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("got %d and %d events, want 1 each", len(a.events), len(b.events))
	}
}

func TestOrNoop(t *testing.T) {
	if _, ok := OrNoop(nil).(NoopLogger); !ok {
		t.Error("OrNoop(nil) should return NoopLogger")
	}
	r := &recordingLogger{}
	if OrNoop(r) != Logger(r) {
		t.Error("OrNoop should return the given logger")
	}
}
