package rnet

import (
	"encoding/json"
	"net"
	"time"
)

// ListenerTimeout drops listeners that stopped pinging.
const ListenerTimeout = 10 * time.Minute

// Listener is a controller that pinged us.
type Listener struct {
	Addr     *net.UDPAddr
	AddrStr  string
	LastPing time.Time
}

// BroadcastAndTimeout will send msg to every listener via conn.
// Any listeners idle for over ListenerTimeout are removed.
func BroadcastAndTimeout(conn *net.UDPConn, msg []byte, listeners []Listener, now time.Time) []Listener {
	toremove := []int{}
	for i, l := range listeners {
		if now.Sub(l.LastPing) > ListenerTimeout {
			toremove = append(toremove, i)
			continue
		}
		conn.WriteToUDP(msg, l.Addr)
	}
	// remove the dead listeners
	for i := len(toremove) - 1; i > -1; i-- {
		idx := toremove[i]
		copy(listeners[idx:], listeners[idx+1:])
		listeners = listeners[:len(listeners)-1]
	}
	return listeners
}

// UpdateListeners refreshes addr or adds it as a new listener.
func UpdateListeners(listeners []Listener, addr *net.UDPAddr, now time.Time) []Listener {
	addrStr := addr.String()
	for i := range listeners {
		if listeners[i].AddrStr == addrStr {
			listeners[i].LastPing = now
			return listeners
		}
	}
	return append(listeners, Listener{Addr: addr, LastPing: now, AddrStr: addrStr})
}

// ReadPing will attempt to read a ping from conn, waiting at most wait.
// A nil address means nothing valid arrived.
func ReadPing(conn *net.UDPConn, b []byte, wait time.Duration) (Ping, *net.UDPAddr) {
	conn.SetReadDeadline(time.Now().Add(wait))
	n, remoteAddr, _ := conn.ReadFromUDP(b)
	if n > 0 {
		var m Msg
		if err := json.Unmarshal(b[:n], &m); err == nil && m.Ping != nil {
			return *m.Ping, remoteAddr
		}
	}
	return Ping{}, nil
}
