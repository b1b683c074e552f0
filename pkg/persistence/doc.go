// Package persistence stores the televisions found by discovery so later
// runs can address them without searching the network again.
//
// The cache is a YAML file of device contexts. Capabilities that are probed
// at runtime, such as SmartCenter availability, are not stored.
package persistence
