package sensor

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
)

type countingADC struct {
	values map[int]uint16
	reads  int
	err    error
}

func (a *countingADC) Read(ch int) (uint16, error) {
	a.reads++
	if a.err != nil {
		return 0, a.err
	}
	return a.values[ch], nil
}

func TestSampleConverts(t *testing.T) {
	ctx := logr.NewContext(context.Background(), testr.New(t))
	adc := &countingADC{values: map[int]uint16{1: 4095, 0: 2047}}
	s := NewSampler(adc, AnalogTemp(1, 4095), AnalogHumidity(0, 4095))

	r, err := s.Sample(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(r.Temp-50) > 1e-9 {
		t.Errorf("expected 50°C at full scale, got %f", r.Temp)
	}
	if r.Humidity != 49 {
		t.Errorf("expected humidity truncated to 49%%, got %d", r.Humidity)
	}
	if r.Time.IsZero() {
		t.Errorf("expected sample time to be set")
	}
}

func TestSampleIsFresh(t *testing.T) {
	adc := &countingADC{values: map[int]uint16{0: 100, 1: 100}}
	s := NewSampler(adc, AnalogTemp(1, 1023), AnalogHumidity(0, 1023))
	first, _ := s.Sample(context.Background())
	adc.values[1] = 500
	second, _ := s.Sample(context.Background())
	if adc.reads != 4 {
		t.Errorf("expected both channels read on every sample, got %d reads", adc.reads)
	}
	if first.Temp == second.Temp {
		t.Errorf("expected the second sample to see the new value")
	}
}

func TestSampleError(t *testing.T) {
	boom := errors.New("spi busy")
	s := NewSampler(&countingADC{err: boom}, AnalogTemp(1, 1023), AnalogHumidity(0, 1023))
	if _, err := s.Sample(context.Background()); !errors.Is(err, boom) {
		t.Errorf("expected wrapped ADC error, got %v", err)
	}
}

func TestOnDieTemp(t *testing.T) {
	c := OnDieTemp(4, 12)
	// 0.706V is 27°C
	raw := uint16(math.Round(0.706 / (3.3 / 4096)))
	if got := c.Convert(raw); math.Abs(got-27) > 0.5 {
		t.Errorf("expected about 27°C, got %f", got)
	}
}
