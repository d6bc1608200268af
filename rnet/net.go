// Package rnet announces the device on the LAN. Controllers ping the
// discovery group; the device answers and keeps sending its latest snapshot to
// every controller that pinged in the last ten minutes.
package rnet

import (
	"fmt"
	"net"
	"strings"

	"gitlab.com/lologarithm/panel/panel"
)

// Default multicast groups.
const (
	MessagesAddr  = "225.1.2.3:8765" // devices to controllers
	DiscoveryAddr = "225.1.2.3:8766" // controllers to devices
)

// Announcement is what is sent to listeners.
type Announcement struct {
	Name     string
	Addr     string // address of the panel's HTTP listener
	Snapshot panel.Snapshot
}

// Msg is what is sent over the network; one field is set.
type Msg struct {
	Ping         *Ping         `json:",omitempty"`
	Announcement *Announcement `json:",omitempty"`
}

// Ping is a request for discovery of devices.
type Ping struct {
	From string `json:",omitempty"`
}

// MyIPs lists the IPv4 addresses of the multicast capable interfaces that are up.
func MyIPs() (mine []string, err error) {
	itfs, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get network interfaces: %w", err)
	}

	for _, itf := range itfs {
		switch {
		case itf.Flags&net.FlagUp != net.FlagUp:
			continue // skip down interfaces
		case itf.Flags&net.FlagLoopback == net.FlagLoopback:
			continue // skip loopbacks
		case itf.HardwareAddr == nil:
			continue // not real network hardware
		case strings.Contains(itf.Name, "docker"):
			continue // ignore docker network
		}
		if multi, err := itf.MulticastAddrs(); err != nil || len(multi) == 0 {
			continue // no multicast
		}

		addrs, err := itf.Addrs()
		if err != nil {
			return nil, fmt.Errorf("failed to get addrs of %s: %w", itf.Name, err)
		}
		for _, addr := range addrs {
			ip, _, err := net.ParseCIDR(addr.String())
			if err != nil {
				continue
			}
			if ipv4 := ip.To4(); ipv4 != nil {
				mine = append(mine, ipv4.String())
			}
		}
	}
	return mine, nil
}
