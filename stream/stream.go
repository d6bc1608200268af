// Package stream pushes request snapshots to websocket clients and queues
// requests sent back by them for the main loop.
package stream

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"

	"gitlab.com/lologarithm/panel/command"
	"gitlab.com/lologarithm/panel/panel"
)

// Request is sent by a client to run a request target, e.g. "/lamp?level=high".
type Request struct {
	Request string
}

const (
	updateBuffer  = 16
	requestBuffer = 8
	writeTimeout  = time.Second
)

// Hub fans snapshots out to every connected client.
type Hub struct {
	// ReadOnly drops client requests.
	ReadOnly bool

	log      logr.Logger
	upgrader websocket.Upgrader
	updates  chan panel.Snapshot
	requests chan string

	clientslock sync.Mutex
	clients     []*websocket.Conn
	last        *panel.Snapshot
}

// NewHub returns an idle hub; call Run to start pushing.
func NewHub(log logr.Logger) *Hub {
	return &Hub{
		log:      log,
		updates:  make(chan panel.Snapshot, updateBuffer),
		requests: make(chan string, requestBuffer),
	}
}

// Observe queues s for the clients, dropping it if the hub is behind.
func (h *Hub) Observe(s panel.Snapshot) {
	select {
	case h.updates <- s:
	default:
		h.log.V(1).Info("Stream behind, dropping snapshot")
	}
}

// Run pushes queued snapshots until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.clientslock.Lock()
			for _, c := range h.clients {
				c.Close()
			}
			h.clients = nil
			h.clientslock.Unlock()
			return
		case s := <-h.updates:
			h.push(s)
		}
	}
}

func (h *Hub) push(s panel.Snapshot) {
	h.clientslock.Lock()
	defer h.clientslock.Unlock()
	h.last = &s

	deadstreams := []int{}
	for i, c := range h.clients {
		c.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := c.WriteJSON(s); err != nil {
			h.log.V(1).Info("Dropping stream client", "remote", c.RemoteAddr().String(), "err", err.Error())
			c.Close()
			deadstreams = append(deadstreams, i)
		}
	}
	for i := len(deadstreams) - 1; i > -1; i-- {
		idx := deadstreams[i]
		h.clients = append(h.clients[:idx], h.clients[idx+1:]...)
	}
}

// Clients is the number of connected clients.
func (h *Hub) Clients() int {
	h.clientslock.Lock()
	defer h.clientslock.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades to a websocket, sends the latest snapshot and then reads
// requests from the client until it disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error(err, "Upgrade failed", "remote", r.RemoteAddr)
		return
	}
	h.clientslock.Lock()
	if h.last != nil {
		c.SetWriteDeadline(time.Now().Add(writeTimeout))
		c.WriteJSON(h.last)
	}
	h.clients = append(h.clients, c)
	h.clientslock.Unlock()

	go h.read(c)
}

func (h *Hub) read(c *websocket.Conn) {
	for {
		v := Request{}
		if err := c.ReadJSON(&v); err != nil {
			h.log.V(1).Info("Stream client gone", "remote", c.RemoteAddr().String(), "err", err.Error())
			break
		}
		if h.ReadOnly {
			continue
		}
		if !strings.HasPrefix(v.Request, "/") || len(v.Request) > command.MaxRequestLine {
			h.log.Info("Ignoring malformed stream request", "request", v.Request)
			continue
		}
		select {
		case h.requests <- v.Request:
		default:
			h.log.Info("Request queue full, dropping", "request", v.Request)
		}
	}
	c.Close()
}

// Drain runs every queued request through handle as a GET. It never blocks
// waiting for requests and is meant to be called from the server poll loop.
func (h *Hub) Drain(ctx context.Context, handle func(context.Context, []byte) []byte) int {
	n := 0
	for {
		select {
		case target := <-h.requests:
			handle(ctx, []byte("GET "+target+" HTTP/1.1\r\n\r\n"))
			n++
		default:
			return n
		}
	}
}

// Handler routes /stream to the hub.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/stream", h)
	return mux
}

// ListenAndServe serves the hub on addr until ctx is done.
func (h *Hub) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: h.Handler()}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	h.log.Info("Streaming", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
