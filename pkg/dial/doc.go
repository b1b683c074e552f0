// Package dial talks to the DIAL application endpoint of a television.
//
// A Client probes application names under the DIAL base URL and caches the
// outcome for its lifetime: a name is probed at most once, and concurrent
// first probes for the same name share one request. Present applications are
// returned as a GenericApp, or as a SmartCenterApp for the SmartCenter remote
// control application.
//
// SmartCenterApp serializes key codes through a bounded FIFO queue drained by
// a single dispatcher at a fixed interval (100ms by default). Exactly one key
// is submitted per tick and at most one submission is in flight.
package dial
