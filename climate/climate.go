package climate

import (
	"gitlab.com/lologarithm/panel/panel"
	"gitlab.com/lologarithm/panel/sensor"
)

// Bounds is an open interval: both ends are excluded.
type Bounds struct {
	Low  float64 `mapstructure:"low"`
	High float64 `mapstructure:"high"`
}

// Contains reports whether Low < v < High.
func (b Bounds) Contains(v float64) bool {
	return v > b.Low && v < b.High
}

// Bias is added to a reading while the water is open, modelling its effect
// before the next reading catches up.
type Bias struct {
	Temp     float64 `mapstructure:"temp"`
	Humidity int     `mapstructure:"humidity"`
}

// Settings are the growing-condition thresholds.
type Settings struct {
	Temp     Bounds `mapstructure:"temp"`
	Humidity Bounds `mapstructure:"humidity"`
	Bias     Bias   `mapstructure:"bias"`
}

// Defaults: 20-30°C, 30-50% humidity, watering reads 1°C cooler and 5% wetter.
var Defaults = Settings{
	Temp:     Bounds{Low: 20, High: 30},
	Humidity: Bounds{Low: 30, High: 50},
	Bias:     Bias{Temp: -1, Humidity: 5},
}

// Adjust applies the watering bias to a reading.
func (s Settings) Adjust(r sensor.Reading, watering bool) sensor.Reading {
	if watering {
		r.Temp += s.Bias.Temp
		r.Humidity += s.Bias.Humidity
	}
	return r
}

// Classify is favorable only when both temperature and humidity are strictly
// inside their bounds.
func (s Settings) Classify(r sensor.Reading) panel.Condition {
	if s.Humidity.Contains(float64(r.Humidity)) && s.Temp.Contains(r.Temp) {
		return panel.Favorable
	}
	return panel.Unfavorable
}
