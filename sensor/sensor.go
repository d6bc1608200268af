// Package sensor samples the analog temperature and humidity channels.
package sensor

import (
	"context"
	"fmt"
	"time"

	"github.com/go-logr/logr"
)

// Reading holds one sample of both channels in engineering units.
type Reading struct {
	Temp     float64   // °C
	Humidity int       // percent
	Time     time.Time // when it was sampled
}

// ADC reads the raw count of an analog input.
type ADC interface {
	Read(channel int) (uint16, error)
}

// Channel is an ADC input and the linear transform to its unit.
type Channel struct {
	Index  int     `mapstructure:"index"`
	Gain   float64 `mapstructure:"gain"`
	Offset float64 `mapstructure:"offset"`
}

// Convert applies raw*Gain + Offset.
func (c Channel) Convert(raw uint16) float64 {
	return float64(raw)*c.Gain + c.Offset
}

// AnalogTemp maps 0..full counts to 0..50°C.
func AnalogTemp(index int, full uint16) Channel {
	return Channel{Index: index, Gain: 50 / float64(full)}
}

// AnalogHumidity maps 0..full counts to 0..100%.
func AnalogHumidity(index int, full uint16) Channel {
	return Channel{Index: index, Gain: 100 / float64(full)}
}

// OnDieTemp is the RP2040 internal sensor: 27°C at 0.706V, -1.721mV/°C,
// for a 3.3V reference and an ADC of the given resolution.
func OnDieTemp(index int, bits uint) Channel {
	volts := 3.3 / float64(uint(1)<<bits)
	return Channel{
		Index:  index,
		Gain:   -volts / 0.001721,
		Offset: 27 + 0.706/0.001721,
	}
}

// Sampler reads a fresh Reading on every call. Nothing is cached.
type Sampler struct {
	ADC      ADC
	Temp     Channel
	Humidity Channel

	now func() time.Time
}

// NewSampler builds a sampler over adc.
func NewSampler(adc ADC, temp, humidity Channel) *Sampler {
	return &Sampler{ADC: adc, Temp: temp, Humidity: humidity, now: time.Now}
}

// Sample reads both channels.
func (s *Sampler) Sample(ctx context.Context) (Reading, error) {
	log := logr.FromContextOrDiscard(ctx)
	now := time.Now
	if s.now != nil {
		now = s.now
	}
	r := Reading{Time: now()}

	raw, err := s.ADC.Read(s.Temp.Index)
	if err != nil {
		return r, fmt.Errorf("failed to read temperature channel %d: %w", s.Temp.Index, err)
	}
	r.Temp = s.Temp.Convert(raw)

	raw2, err := s.ADC.Read(s.Humidity.Index)
	if err != nil {
		return r, fmt.Errorf("failed to read humidity channel %d: %w", s.Humidity.Index, err)
	}
	r.Humidity = int(s.Humidity.Convert(raw2))

	log.V(1).Info("Sampled", "temp_raw", raw, "humidity_raw", raw2, "temp", r.Temp, "humidity", r.Humidity)
	return r, nil
}
