package rnet

import (
	"fmt"

	"github.com/grandcat/zeroconf"
)

// Service is the DNS-SD type the panel registers as.
const Service = "_http._tcp"

// Advertise registers the panel's HTTP port via mDNS. Shutdown the returned
// server to withdraw it.
func Advertise(instance string, port int, txt []string) (*zeroconf.Server, error) {
	srv, err := zeroconf.Register(instance, Service, "local.", port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register %s: %w", instance, err)
	}
	return srv, nil
}
