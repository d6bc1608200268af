package actuator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"

	"gitlab.com/lologarithm/panel/grid"
	"gitlab.com/lologarithm/panel/panel"
)

func newTestDriver(t *testing.T) (*Driver, *FakeBoard, context.Context) {
	log := testr.New(t)
	b := NewFakeBoard(log, nil)
	d := NewDriver(b, b)
	d.BuzzDwell = 5 * time.Millisecond
	return d, b, logr.NewContext(context.Background(), log)
}

func TestLightScalesWithLevel(t *testing.T) {
	d, b, ctx := newTestDriver(t)
	f, err := d.Apply(ctx, panel.Command{Action: panel.ActionLight, Level: panel.LevelHigh, Scaled: true})
	if err != nil {
		t.Fatal(err)
	}
	// 0.01 * 10 = 0.1 -> 25 on every lane
	want := grid.Pack(grid.Color{Red: 0.1, Green: 0.1, Blue: 0.1})
	for i, w := range f {
		if w != want {
			t.Fatalf("cell %d: got %08x, want %08x", i, w, want)
		}
	}
	last, ok := b.LastFrame()
	if !ok || last != f {
		t.Errorf("expected the returned frame to be latched")
	}

	f, _ = d.Apply(ctx, panel.Command{Action: panel.ActionLight, Level: panel.LevelOff})
	if f != (grid.Frame{}) {
		t.Errorf("expected level none to be dark")
	}
}

func TestWaterOnOff(t *testing.T) {
	d, _, ctx := newTestDriver(t)
	on, err := d.Apply(ctx, panel.Command{Action: panel.ActionWater, On: true, Signal: 1})
	if err != nil {
		t.Fatal(err)
	}
	if on != grid.Render(grid.Droplet(grid.WaterColor)) {
		t.Errorf("expected the droplet sketch")
	}
	if on[0] != 0 || on[1] == 0 {
		t.Errorf("expected droplet corners dark and top edge lit, got %08x %08x", on[0], on[1])
	}

	off, err := d.Apply(ctx, panel.Command{Action: panel.ActionWater, Signal: -1})
	if err != nil {
		t.Fatal(err)
	}
	if off != (grid.Frame{}) {
		t.Errorf("expected water off to clear the grid")
	}
}

func TestBuzzPulse(t *testing.T) {
	d, b, ctx := newTestDriver(t)
	start := time.Now()
	if _, err := d.Apply(ctx, panel.Command{Action: panel.ActionBuzz, Duty: 0.5, Dwell: 20 * time.Millisecond}); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) < 20*time.Millisecond {
		t.Errorf("expected Apply to block for the dwell")
	}
	want := []DutyChange{{BuzzerA, 0.5}, {BuzzerB, 0.5}, {BuzzerA, 0}, {BuzzerB, 0}}
	got := b.DutyLog()
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("transition %d: got %v, want %v", i, got[i], want[i])
		}
	}
}

func TestBuzzScaledAndClamped(t *testing.T) {
	d, b, ctx := newTestDriver(t)
	d.Apply(ctx, panel.Command{Action: panel.ActionBuzz, Level: panel.LevelMedium, Scaled: true})
	if got := b.DutyLog()[0].Duty; got != 0.5 {
		t.Errorf("expected 0.1*5 duty, got %f", got)
	}

	d, b, ctx = newTestDriver(t)
	d.BuzzGain = 1
	d.Apply(ctx, panel.Command{Action: panel.ActionBuzz, Level: panel.LevelHigh, Scaled: true})
	if got := b.DutyLog()[0].Duty; got != 1 {
		t.Errorf("expected duty clamped to 1, got %f", got)
	}
}

func TestBuzzAsync(t *testing.T) {
	d, b, ctx := newTestDriver(t)
	d.Async = true
	start := time.Now()
	if err := d.Buzz(ctx, 0.3, 30*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 20*time.Millisecond {
		t.Errorf("expected async buzz to return immediately")
	}
	if n := len(b.DutyLog()); n != 2 {
		t.Fatalf("expected only the start transitions so far, got %d", n)
	}
	deadline := time.Now().Add(time.Second)
	for len(b.DutyLog()) < 4 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	log := b.DutyLog()
	if len(log) != 4 || log[3].Duty != 0 {
		t.Errorf("expected the timer to silence both channels, got %v", log)
	}
}

func TestBuzzAsyncRetrigger(t *testing.T) {
	for i := 0; i < 20; i++ {
		d, b, ctx := newTestDriver(t)
		d.Async = true
		d.Buzz(ctx, 0.3, 0)
		if err := d.Buzz(ctx, 0.6, time.Second); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
		log := b.DutyLog()
		if last := log[len(log)-1]; last.Duty != 0.6 {
			t.Fatalf("expected the earlier pulse's timer to leave the new pulse on, got %v", log)
		}
		d.Close()
	}
}

func TestTransmitError(t *testing.T) {
	d, b, ctx := newTestDriver(t)
	boom := errors.New("sequencer stalled")
	b.PutErr = boom
	if _, err := d.Apply(ctx, panel.Command{Action: panel.ActionLight, Level: panel.LevelLow}); !errors.Is(err, boom) {
		t.Errorf("expected wrapped transmit error, got %v", err)
	}
}

func TestFailedFrameDoesNotPoisonNext(t *testing.T) {
	d, b, ctx := newTestDriver(t)
	b.Put(1)
	b.Put(2)
	b.PutErr = errors.New("sequencer stalled")
	if err := b.Put(3); err == nil {
		t.Fatal("expected put error")
	}
	b.PutErr = nil
	f, err := d.Apply(ctx, panel.Command{Action: panel.ActionLight, Level: panel.LevelHigh})
	if err != nil {
		t.Fatalf("expected the next frame to latch, got %v", err)
	}
	if got, _ := b.LastFrame(); got != f {
		t.Errorf("expected latched frame to match the drawn one")
	}
}

func TestPinsValidate(t *testing.T) {
	if err := DefaultPins.Validate(); err != nil {
		t.Fatalf("default wiring rejected: %v", err)
	}
	shared := DefaultPins
	shared.LEDGate = shared.Red
	if shared.Validate() == nil {
		t.Errorf("expected a gate sharing the red pin to be rejected")
	}
	onMOSI := DefaultPins
	onMOSI.LEDGate = 10
	if onMOSI.Validate() == nil {
		t.Errorf("expected a gate on SPI0 MOSI to be rejected")
	}
	sameChip := DefaultPins
	sameChip.LEDChip = sameChip.ADCChip
	if sameChip.Validate() == nil {
		t.Errorf("expected the LED chain and ADC on one chip select to be rejected")
	}
}

func TestEncodeWord(t *testing.T) {
	zero := encodeWord(0)
	want := [wordBytes]byte{0x92, 0x49, 0x24, 0x92, 0x49, 0x24, 0x92, 0x49, 0x24}
	if zero != want {
		t.Errorf("zero word: got % x, want % x", zero, want)
	}
	// low byte is never sent
	if encodeWord(0xFF) != want {
		t.Errorf("expected bits 7..0 to be ignored")
	}
	ones := encodeWord(0xFFFFFF00)
	want = [wordBytes]byte{0xDB, 0x6D, 0xB6, 0xDB, 0x6D, 0xB6, 0xDB, 0x6D, 0xB6}
	if ones != want {
		t.Errorf("ones word: got % x, want % x", ones, want)
	}
}
