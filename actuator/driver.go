// Package actuator drives the device outputs: the LED grid through a timed
// bitstream sequencer and the two buzzer PWM channels.
package actuator

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/go-logr/logr"

	"gitlab.com/lologarithm/panel/grid"
	"gitlab.com/lologarithm/panel/panel"
)

// Buzzer channels
const (
	BuzzerA = 0
	BuzzerB = 1
)

// Driver defaults
const (
	DefaultLightGain = 0.01 // lamp channel intensity per level ordinal
	DefaultBuzzGain  = 0.1  // buzzer duty per level ordinal
	DefaultBuzzDuty  = 0.5
	DefaultBuzzDwell = 500 * time.Millisecond
)

// ErrNotReady is returned by hardware that was not (or no longer) initialized.
var ErrNotReady = errors.New("output not ready")

// Sequencer shifts packed grid words out to the LED chain. Put blocks until the
// word is accepted; Latch ends the frame.
type Sequencer interface {
	Put(word uint32) error
	Latch() error
}

// PWM sets the duty cycle of an output channel, duty in [0, 1].
type PWM interface {
	SetDuty(channel int, duty float64) error
}

// Driver turns commands into output state.
type Driver struct {
	Grid   Sequencer
	Buzzer PWM

	LightGain float64
	BuzzGain  float64
	BuzzDuty  float64
	BuzzDwell time.Duration

	// Async holds the buzzer on a timer instead of blocking Apply for the dwell.
	Async bool

	pwmMu   sync.Mutex
	buzzMu  sync.Mutex // serializes async pulses and Close
	timerMu sync.Mutex
	pending *time.Timer
	gen     uint64 // a timer whose generation is stale must not silence a newer pulse
}

// NewDriver returns a driver with default gains.
func NewDriver(seq Sequencer, pwm PWM) *Driver {
	return &Driver{
		Grid:      seq,
		Buzzer:    pwm,
		LightGain: DefaultLightGain,
		BuzzGain:  DefaultBuzzGain,
		BuzzDuty:  DefaultBuzzDuty,
		BuzzDwell: DefaultBuzzDwell,
	}
}

// Apply performs one command. cmd.Level must already be resolved; LevelUnknown
// renders dark. The returned frame is what was sent to the grid, if anything.
func (d *Driver) Apply(ctx context.Context, cmd panel.Command) (grid.Frame, error) {
	log := logr.FromContextOrDiscard(ctx)
	ord := float64(cmd.Level.Ordinal())

	switch cmd.Action {
	case panel.ActionLight:
		return d.Draw(grid.Full(grid.White.Scale(d.LightGain * ord)))

	case panel.ActionWater:
		if !cmd.On {
			return d.Draw(grid.Off())
		}
		c := grid.WaterColor
		if cmd.Scaled {
			c = c.Scale(ord)
		}
		return d.Draw(grid.Droplet(c))

	case panel.ActionBuzz:
		duty := cmd.Duty
		if cmd.Scaled {
			duty = d.BuzzGain * ord
		} else if duty == 0 {
			duty = d.BuzzDuty
		}
		dwell := cmd.Dwell
		if dwell == 0 {
			dwell = d.BuzzDwell
		}
		log.V(1).Info("Buzzing", "duty", duty, "dwell", dwell, "async", d.Async)
		return grid.Frame{}, d.Buzz(ctx, duty, dwell)
	}
	return grid.Frame{}, fmt.Errorf("unsupported action %s", cmd.Action)
}

// Draw renders s and pushes it cell by cell.
func (d *Driver) Draw(s grid.Sketch) (grid.Frame, error) {
	f := grid.Render(s)
	for i, w := range f {
		if err := d.Grid.Put(w); err != nil {
			return f, fmt.Errorf("failed to send cell %d of %s: %w", i, s.Name, err)
		}
	}
	if err := d.Grid.Latch(); err != nil {
		return f, fmt.Errorf("failed to latch %s: %w", s.Name, err)
	}
	return f, nil
}

// Buzz drives both buzzer channels at duty for dwell, then silences them.
func (d *Driver) Buzz(ctx context.Context, duty float64, dwell time.Duration) error {
	p := Pulse{
		Start:    func() error { return d.setBuzzers(duty) },
		Stop:     func() error { return d.setBuzzers(0) },
		Duration: dwell,
	}
	if !d.Async {
		return p.Run()
	}

	log := logr.FromContextOrDiscard(ctx)
	d.buzzMu.Lock()
	defer d.buzzMu.Unlock()
	gen := d.cancelPending()

	p.Stop = func() error {
		d.timerMu.Lock()
		defer d.timerMu.Unlock()
		if gen != d.gen {
			return nil
		}
		d.pending = nil
		return d.setBuzzers(0)
	}
	t, err := p.Schedule(func(err error) {
		if err != nil {
			log.Error(err, "Failed to silence buzzer")
		}
	})
	if err != nil {
		return err
	}
	d.timerMu.Lock()
	if gen == d.gen {
		d.pending = t
	}
	d.timerMu.Unlock()
	return nil
}

// cancelPending stops any scheduled stop and starts a new generation.
func (d *Driver) cancelPending() uint64 {
	d.timerMu.Lock()
	defer d.timerMu.Unlock()
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	d.gen++
	return d.gen
}

// Close silences the buzzer, cancelling any scheduled stop.
func (d *Driver) Close() error {
	d.buzzMu.Lock()
	defer d.buzzMu.Unlock()
	d.cancelPending()
	return d.setBuzzers(0)
}

func (d *Driver) setBuzzers(duty float64) error {
	duty = clampDuty(duty)
	d.pwmMu.Lock()
	defer d.pwmMu.Unlock()
	errA := d.Buzzer.SetDuty(BuzzerA, duty)
	errB := d.Buzzer.SetDuty(BuzzerB, duty)
	return errors.Join(errA, errB)
}

func clampDuty(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
