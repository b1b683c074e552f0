// Package device describes a single Vestel television on the local network.
//
// A Context is an identity and capability snapshot: who the device is (UUID,
// host, MAC, model data) and which remote-control transports it exposes:
//
//   - DIAL: a REST application endpoint, probed for the SmartCenter app
//   - FollowTV: line-based TCP protocol on port 1986 (volume queries)
//   - Network remote: TCP listener on port 4660 (reachability checks)
//   - Wake-on-LAN: power on via magic packet to the device MAC
//
// Context is a value type. Resolution of unknown capabilities never mutates
// a snapshot that has been handed out; the With* helpers return a new one.
package device
