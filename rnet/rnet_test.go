package rnet

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"gitlab.com/lologarithm/panel/panel"
)

func loopback(t *testing.T) *net.UDPConn {
	t.Helper()
	c, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestUpdateListeners(t *testing.T) {
	a := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 1), Port: 9000}
	b := &net.UDPAddr{IP: net.IPv4(10, 0, 0, 2), Port: 9000}
	t0 := time.Unix(1000, 0)

	ls := UpdateListeners(nil, a, t0)
	ls = UpdateListeners(ls, b, t0)
	ls = UpdateListeners(ls, a, t0.Add(time.Minute))
	if len(ls) != 2 {
		t.Fatalf("expected 2 listeners, got %d", len(ls))
	}
	if !ls[0].LastPing.Equal(t0.Add(time.Minute)) {
		t.Errorf("expected repeated ping to refresh the listener")
	}

	conn := loopback(t)
	ls = BroadcastAndTimeout(conn, []byte("{}"), ls, t0.Add(ListenerTimeout+30*time.Second))
	if len(ls) != 1 || ls[0].AddrStr != a.String() {
		t.Errorf("expected only the refreshed listener to survive, got %+v", ls)
	}
}

func TestBeaconAnswersPing(t *testing.T) {
	pings, out, controller := loopback(t), loopback(t), loopback(t)
	b := NewBeacon("greenhouse", "10.0.0.5:80", pings, out)
	b.Observe(panel.Snapshot{Name: "greenhouse", Level: panel.LevelHigh, Humidity: 41})

	ping, _ := json.Marshal(Msg{Ping: &Ping{From: "test"}})
	if _, err := controller.WriteToUDP(ping, pings.LocalAddr().(*net.UDPAddr)); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(time.Second)
	for b.Listeners() == 0 && time.Now().Before(deadline) {
		b.Poll(context.Background())
	}
	if b.Listeners() != 1 {
		t.Fatalf("expected the controller to be registered")
	}

	controller.SetReadDeadline(time.Now().Add(time.Second))
	buf := make([]byte, 2048)
	n, _, err := controller.ReadFromUDP(buf)
	if err != nil {
		t.Fatal(err)
	}
	var m Msg
	if err := json.Unmarshal(buf[:n], &m); err != nil {
		t.Fatal(err)
	}
	if m.Announcement == nil || m.Announcement.Addr != "10.0.0.5:80" || m.Announcement.Snapshot.Level != panel.LevelHigh {
		t.Errorf("unexpected announcement %s", buf[:n])
	}
}

func TestReadPingIgnoresGarbage(t *testing.T) {
	pings, sender := loopback(t), loopback(t)
	sender.WriteToUDP([]byte("not json"), pings.LocalAddr().(*net.UDPAddr))
	if _, addr := ReadPing(pings, make([]byte, 64), 50*time.Millisecond); addr != nil {
		t.Errorf("expected garbage to be ignored")
	}
}
