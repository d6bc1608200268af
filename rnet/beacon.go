package rnet

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"gitlab.com/lologarithm/panel/panel"
)

// Beacon answers discovery pings and sends snapshots to listeners. Poll is
// meant to run from the server loop; Observe may be called from anywhere.
type Beacon struct {
	Name string
	Addr string
	// Refresh resends the latest snapshot even when nothing changed.
	Refresh time.Duration

	pings *net.UDPConn
	out   *net.UDPConn
	buf   []byte

	listeners []Listener
	lastSent  time.Time

	mu    sync.Mutex
	last  panel.Snapshot
	dirty bool
}

// ListenDiscovery joins the discovery group on every interface and opens a
// socket for sending.
func ListenDiscovery(group string) (pings, out *net.UDPConn, err error) {
	gaddr, err := net.ResolveUDPAddr("udp", group)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve %s: %w", group, err)
	}
	pings, err = net.ListenMulticastUDP("udp", nil, gaddr)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to join %s: %w", group, err)
	}
	out, err = net.ListenUDP("udp", nil)
	if err != nil {
		pings.Close()
		return nil, nil, fmt.Errorf("failed to open send socket: %w", err)
	}
	return pings, out, nil
}

// NewBeacon announces name, reachable at addr, over the given sockets.
func NewBeacon(name, addr string, pings, out *net.UDPConn) *Beacon {
	return &Beacon{
		Name:    name,
		Addr:    addr,
		Refresh: 30 * time.Second,
		pings:   pings,
		out:     out,
		buf:     make([]byte, 2048),
	}
}

// Observe records s as the snapshot to send on the next Poll.
func (b *Beacon) Observe(s panel.Snapshot) {
	b.mu.Lock()
	b.last = s
	b.dirty = true
	b.mu.Unlock()
}

// Listeners is the number of live listeners.
func (b *Beacon) Listeners() int { return len(b.listeners) }

// Poll handles waiting pings, then sends the snapshot if it changed or the
// refresh period passed.
func (b *Beacon) Poll(ctx context.Context) {
	log := logr.FromContextOrDiscard(ctx)
	now := time.Now()
	for {
		_, addr := ReadPing(b.pings, b.buf, time.Millisecond)
		if addr == nil {
			break
		}
		log.V(1).Info("Discovery ping", "from", addr.String())
		b.listeners = UpdateListeners(b.listeners, addr, now)
		if msg, err := b.message(); err == nil {
			b.out.WriteToUDP(msg, addr)
		}
	}

	b.mu.Lock()
	dirty := b.dirty
	b.dirty = false
	b.mu.Unlock()
	if len(b.listeners) == 0 || (!dirty && now.Sub(b.lastSent) < b.Refresh) {
		return
	}
	msg, err := b.message()
	if err != nil {
		log.Error(err, "Failed to marshal announcement")
		return
	}
	b.listeners = BroadcastAndTimeout(b.out, msg, b.listeners, now)
	b.lastSent = now
}

func (b *Beacon) message() ([]byte, error) {
	b.mu.Lock()
	s := b.last
	b.mu.Unlock()
	return json.Marshal(Msg{Announcement: &Announcement{Name: b.Name, Addr: b.Addr, Snapshot: s}})
}

// Close releases both sockets.
func (b *Beacon) Close() error {
	b.out.Close()
	return b.pings.Close()
}
