// Package lan provides the link-layer helpers used to power a television on:
// hardware address lookup through the host ARP table and wake-on-LAN magic
// packets.
package lan
