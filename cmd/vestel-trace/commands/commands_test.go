package commands

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vesteltv/vestel-go/pkg/trace"
)

var t0 = time.Date(2026, 3, 14, 20, 15, 32, 123456000, time.UTC)

func sampleEvents() []trace.Event {
	return []trace.Event{
		{
			Timestamp:  t0,
			SessionID:  "abc12345-6789-0123-4567-890abcdef012",
			Direction:  trace.DirectionOut,
			Layer:      trace.LayerSocket,
			Category:   trace.CategoryMessage,
			RemoteAddr: "10.0.0.5:1986",
			DeviceID:   "tv-1",
			Payload:    trace.NewPayload([]byte("GETINFO VOLUME\n")),
		},
		{
			Timestamp:  t0.Add(20 * time.Millisecond),
			SessionID:  "abc12345-6789-0123-4567-890abcdef012",
			Direction:  trace.DirectionIn,
			Layer:      trace.LayerSocket,
			Category:   trace.CategoryMessage,
			RemoteAddr: "10.0.0.5:1986",
			DeviceID:   "tv-1",
			Payload:    trace.NewPayload([]byte(`<volume level="23"/>`)),
		},
		{
			Timestamp: t0.Add(time.Second),
			SessionID: "def67890",
			Direction: trace.DirectionIn,
			Layer:     trace.LayerHTTP,
			Category:  trace.CategoryState,
			DeviceID:  "tv-1",
			StateChange: &trace.StateChangeEvent{
				Entity:   trace.StateEntityApp,
				NewState: "present",
				Reason:   "probe",
			},
		},
		{
			Timestamp:  t0.Add(2 * time.Second),
			SessionID:  "0123abcd",
			Direction:  trace.DirectionOut,
			Layer:      trace.LayerSocket,
			Category:   trace.CategoryError,
			RemoteAddr: "10.0.0.7:4660",
			DeviceID:   "tv-2",
			Error: &trace.ErrorEventData{
				Layer:   trace.LayerSocket,
				Message: "connection refused",
				Context: "connect",
			},
		},
	}
}

func writeTrace(t *testing.T, events []trace.Event) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.vtrace")
	logger, err := trace.NewFileLogger(path)
	require.NoError(t, err)
	for _, e := range events {
		logger.Log(e)
	}
	require.NoError(t, logger.Close())
	return path
}

func TestFormatPayloadEvent(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, sampleEvents()[0])
	output := buf.String()

	for _, want := range []string{
		"2026-03-14T20:15:32.123456Z",
		"[session:abc12345]",
		"OUT SOCKET MESSAGE",
		"Remote: 10.0.0.5:1986",
		"Size: 15 bytes",
		`Data: "GETINFO VOLUME\n"`,
	} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %q in output, got:\n%s", want, output)
		}
	}
}

func TestFormatBinaryPayload(t *testing.T) {
	var buf bytes.Buffer
	formatEvent(&buf, trace.Event{Timestamp: t0, Payload: trace.NewPayload([]byte{0xff, 0xfe})})
	assert.Contains(t, buf.String(), "Data: fffe")
}

func TestFormatStateAndError(t *testing.T) {
	var buf bytes.Buffer
	events := sampleEvents()
	formatEvent(&buf, events[2])
	formatEvent(&buf, events[3])
	output := buf.String()

	assert.Contains(t, output, "Entity: APP")
	assert.Contains(t, output, "-> present")
	assert.Contains(t, output, "Reason: probe")
	assert.Contains(t, output, "Message: connection refused")
	assert.Contains(t, output, "Context: connect")
}

func TestRunViewFilters(t *testing.T) {
	path := writeTrace(t, sampleEvents())

	filter, err := FilterOptions{Layer: "http"}.Filter()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RunView(path, filter, &buf))
	assert.Equal(t, 1, strings.Count(buf.String(), "[session:"))
	assert.Contains(t, buf.String(), "HTTP STATE")
}

func TestFilterOptions(t *testing.T) {
	filter, err := FilterOptions{
		DeviceID:  "tv-1",
		Direction: "IN",
		Category:  "message",
		TimeStart: "2026-03-14T20:15:00Z",
	}.Filter()
	require.NoError(t, err)
	assert.Equal(t, "tv-1", filter.DeviceID)
	require.NotNil(t, filter.Direction)
	assert.Equal(t, trace.DirectionIn, *filter.Direction)
	require.NotNil(t, filter.TimeStart)

	bad := []FilterOptions{
		{Layer: "wire"},
		{Direction: "sideways"},
		{Category: "snapshot"},
		{TimeStart: "yesterday"},
		{TimeEnd: "tomorrow"},
	}
	for _, o := range bad {
		if _, err := o.Filter(); err == nil {
			t.Errorf("Filter(%+v) should fail", o)
		}
	}
}

func TestRunFilterWritesMatchingEvents(t *testing.T) {
	path := writeTrace(t, sampleEvents())
	out := filepath.Join(t.TempDir(), "out.vtrace")

	filter, err := FilterOptions{DeviceID: "tv-1"}.Filter()
	require.NoError(t, err)

	count, err := RunFilter(path, out, filter)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	stats, err := CollectStats(out)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalEvents)
	assert.Equal(t, map[string]int{"tv-1": 3}, stats.Devices)
}

func TestRunExportJSONL(t *testing.T) {
	path := writeTrace(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, "jsonl", trace.Filter{}, &buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 4)

	var first map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "OUT", first["direction"])
	assert.Equal(t, "SOCKET", first["layer"])
	assert.Equal(t, "GETINFO VOLUME\n", first["data"])
}

func TestRunExportCSV(t *testing.T) {
	path := writeTrace(t, sampleEvents())

	var buf bytes.Buffer
	require.NoError(t, RunExport(path, "csv", trace.Filter{}, &buf))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 5)
	assert.Equal(t, "session_id", records[0][1])
	assert.Equal(t, []string{"payload", "15"}, records[1][7:])
	assert.Equal(t, "error", records[4][7])
}

func TestRunExportUnknownFormat(t *testing.T) {
	err := RunExport("unused", "xml", trace.Filter{}, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "unknown format") {
		t.Fatalf("expected unknown format error, got %v", err)
	}
}

func TestCollectStats(t *testing.T) {
	stats, err := CollectStats(writeTrace(t, sampleEvents()))
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalEvents)
	assert.Equal(t, 3, stats.EventsByLayer[trace.LayerSocket])
	assert.Equal(t, 1, stats.EventsByLayer[trace.LayerHTTP])
	assert.Equal(t, 15, stats.BytesOut)
	assert.Equal(t, 20, stats.BytesIn)
	assert.Equal(t, 1, stats.Errors)
	assert.Len(t, stats.Sessions, 3)
	assert.Equal(t, 2, stats.Sessions["abc12345-6789-0123-4567-890abcdef012"].Events)
	assert.Equal(t, 2*time.Second, stats.TimeRange.End.Sub(stats.TimeRange.Start))
}

func TestRunStatsOutput(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RunStats(writeTrace(t, sampleEvents()), &buf))
	output := buf.String()

	assert.Contains(t, output, "Total Events: 4")
	assert.Contains(t, output, "SOCKET:")
	assert.Contains(t, output, "Sessions: 3")
	assert.Contains(t, output, "[abc12345] SOCKET 2 events")
	assert.Contains(t, output, "Errors: 1")
}
