// Package discovery finds televisions on the local network.
//
// An Engine multicasts an SSDP search for the DIAL service, fetches the UPnP
// description document of every responder and turns each television into a
// device.Context and a tv.TV. Each call to Search is an independent
// subscription with its own de-duplication set and result stream.
package discovery
