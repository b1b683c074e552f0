// Package tv is the device facade: it composes a device.Context with the
// transports the context enables and exposes the unified operations.
//
// Capability resolution (hardware address lookup, SmartCenter detection)
// runs in the background from New. Ready waits for it; OnContextChange
// reports every new snapshot. Operations that depend on SmartCenter wait for
// its detection, bounded by the caller's context.
//
// Every operation failure is an *OpError whose Kind is one of the sentinel
// errors below. Transport detail is logged, not returned.
package tv
