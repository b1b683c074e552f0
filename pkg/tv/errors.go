package tv

import "errors"

// Error kinds. Use errors.Is on an *OpError to test for them.
var (
	ErrInvalidConfiguration     = errors.New("invalid configuration")
	ErrCapabilityNotEnabled     = errors.New("capability not enabled")
	ErrCapabilityNotInitialized = errors.New("capability not initialized")
	ErrTransportUnavailable     = errors.New("transport unavailable")
	ErrTransportOperationFailed = errors.New("transport operation failed")
)

// OpError is the error returned by every TV operation.
type OpError struct {
	Op   string
	Kind error
	Msg  string
}

func (e *OpError) Error() string {
	return e.Op + ": " + e.Msg
}

// Unwrap returns the error kind.
func (e *OpError) Unwrap() error {
	return e.Kind
}

func opError(op string, kind error, msg string) *OpError {
	return &OpError{Op: op, Kind: kind, Msg: msg}
}
