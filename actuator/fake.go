package actuator

import (
	"fmt"
	"sync"

	"github.com/go-logr/logr"

	"gitlab.com/lologarithm/panel/grid"
)

// DutyChange is one recorded buzzer transition.
type DutyChange struct {
	Channel int
	Duty    float64
}

// FakeBoard stands in for the Pi when GPIO is unavailable. It records every
// frame and buzzer change and serves fixed ADC counts.
type FakeBoard struct {
	mu      sync.Mutex
	log     logr.Logger
	pending []uint32
	frames  []grid.Frame
	duty    []DutyChange
	adc     map[int]uint16
	status  Status

	// PutErr, when set, is returned by every Put.
	PutErr error
	// ReadErr, when set, is returned by every Read.
	ReadErr error
}

// NewFakeBoard returns a fake with the given ADC channel counts.
func NewFakeBoard(log logr.Logger, adc map[int]uint16) *FakeBoard {
	if adc == nil {
		adc = map[int]uint16{}
	}
	return &FakeBoard{log: log, adc: adc}
}

func (f *FakeBoard) Put(word uint32) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.PutErr != nil {
		f.pending = f.pending[:0]
		return f.PutErr
	}
	f.pending = append(f.pending, word)
	return nil
}

func (f *FakeBoard) Latch() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.pending) != grid.Cells {
		n := len(f.pending)
		f.pending = f.pending[:0]
		return fmt.Errorf("latched %d words, want %d", n, grid.Cells)
	}
	var fr grid.Frame
	copy(fr[:], f.pending)
	f.pending = f.pending[:0]
	f.frames = append(f.frames, fr)
	f.log.V(2).Info("Frame latched", "frame", len(f.frames))
	return nil
}

func (f *FakeBoard) SetDuty(channel int, duty float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.duty = append(f.duty, DutyChange{Channel: channel, Duty: duty})
	return nil
}

func (f *FakeBoard) Read(channel int) (uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ReadErr != nil {
		return 0, f.ReadErr
	}
	return f.adc[channel], nil
}

// SetADC changes the count served for channel.
func (f *FakeBoard) SetADC(channel int, v uint16) {
	f.mu.Lock()
	f.adc[channel] = v
	f.mu.Unlock()
}

func (f *FakeBoard) SetStatus(s Status) error {
	f.mu.Lock()
	f.status = s
	f.mu.Unlock()
	f.log.Info("Status indicator", "status", s.String())
	return nil
}

// FullScale mimics the MCP3008.
func (f *FakeBoard) FullScale() uint16 { return adcMax }

func (f *FakeBoard) Close() error { return nil }

// Frames returns a copy of every latched frame.
func (f *FakeBoard) Frames() []grid.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]grid.Frame(nil), f.frames...)
}

// LastFrame returns the most recent frame and whether there was one.
func (f *FakeBoard) LastFrame() (grid.Frame, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return grid.Frame{}, false
	}
	return f.frames[len(f.frames)-1], true
}

// DutyLog returns a copy of every buzzer transition.
func (f *FakeBoard) DutyLog() []DutyChange {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DutyChange(nil), f.duty...)
}

// Status is the indicator state last set.
func (f *FakeBoard) Status() Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status
}
