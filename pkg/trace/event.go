package trace

import (
	"strings"
	"time"
)

// MaxPayloadSize is the largest payload kept verbatim in an event.
const MaxPayloadSize = 4096

// Event is a protocol trace event. CBOR encoding uses integer keys.
type Event struct {
	// Timestamp when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID identifies one socket session, HTTP exchange or queue (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Direction of the data flow.
	Direction Direction `cbor:"3,keyasint"`

	// Layer is the transport that produced the event.
	Layer Layer `cbor:"4,keyasint"`

	// Category classifies the event.
	Category Category `cbor:"5,keyasint"`

	// RemoteAddr is the peer address (host:port or URL).
	RemoteAddr string `cbor:"6,keyasint,omitempty"`

	// DeviceID is the UUID of the television, when known.
	DeviceID string `cbor:"7,keyasint,omitempty"`

	// Exactly one of these is set.
	Payload     *PayloadEvent     `cbor:"10,keyasint,omitempty"`
	StateChange *StateChangeEvent `cbor:"11,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"12,keyasint,omitempty"`
}

// Direction indicates the direction of data flow.
type Direction uint8

const (
	// DirectionIn is data received from the device.
	DirectionIn Direction = 0
	// DirectionOut is data sent to the device.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which transport produced the event.
type Layer uint8

const (
	// LayerSocket is a raw TCP command session (FollowTV, network remote).
	LayerSocket Layer = 0
	// LayerHTTP is a DIAL or description request.
	LayerHTTP Layer = 1
	// LayerQueue is the SmartCenter key dispatch queue.
	LayerQueue Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerSocket:
		return "SOCKET"
	case LayerHTTP:
		return "HTTP"
	case LayerQueue:
		return "QUEUE"
	default:
		return "UNKNOWN"
	}
}

// ParseLayer parses a layer name, case-insensitively.
func ParseLayer(s string) (Layer, bool) {
	switch strings.ToLower(s) {
	case "socket":
		return LayerSocket, true
	case "http":
		return LayerHTTP, true
	case "queue":
		return LayerQueue, true
	}
	return 0, false
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage is data exchanged with the device.
	CategoryMessage Category = 0
	// CategoryState is a lifecycle change.
	CategoryState Category = 1
	// CategoryError is a failure.
	CategoryError Category = 2
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// PayloadEvent carries the bytes of a command, request or response.
type PayloadEvent struct {
	// Size is the full payload size in bytes.
	Size int `cbor:"1,keyasint"`

	// Data is the payload, truncated to MaxPayloadSize.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated is set when Data is shorter than Size.
	Truncated bool `cbor:"3,keyasint,omitempty"`

	// Status is the HTTP status code for HTTP responses.
	Status int `cbor:"4,keyasint,omitempty"`
}

// NewPayload builds a PayloadEvent, copying at most MaxPayloadSize bytes.
func NewPayload(data []byte) *PayloadEvent {
	p := &PayloadEvent{Size: len(data)}
	n := len(data)
	if n > MaxPayloadSize {
		n = MaxPayloadSize
		p.Truncated = true
	}
	if n > 0 {
		p.Data = append([]byte(nil), data[:n]...)
	}
	return p
}

// StateChangeEvent captures a lifecycle change.
type StateChangeEvent struct {
	// Entity being changed.
	Entity StateEntity `cbor:"1,keyasint"`

	// OldState may be empty.
	OldState string `cbor:"2,keyasint,omitempty"`

	// NewState is the state entered.
	NewState string `cbor:"3,keyasint"`

	// Reason for the change, if any.
	Reason string `cbor:"4,keyasint,omitempty"`
}

// StateEntity indicates what changed state.
type StateEntity uint8

const (
	// StateEntitySession is a socket session.
	StateEntitySession StateEntity = 0
	// StateEntityApp is a DIAL application probe.
	StateEntityApp StateEntity = 1
	// StateEntityCapability is a device capability resolution.
	StateEntityCapability StateEntity = 2
)

// String returns the entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntitySession:
		return "SESSION"
	case StateEntityApp:
		return "APP"
	case StateEntityCapability:
		return "CAPABILITY"
	default:
		return "UNKNOWN"
	}
}

// ErrorEventData captures a failure.
type ErrorEventData struct {
	// Layer where the error occurred.
	Layer Layer `cbor:"1,keyasint"`

	// Message is the error text.
	Message string `cbor:"2,keyasint"`

	// Context describes the operation being performed.
	Context string `cbor:"3,keyasint,omitempty"`
}
