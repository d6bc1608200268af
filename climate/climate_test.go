package climate

import (
	"testing"

	"gitlab.com/lologarithm/panel/panel"
	"gitlab.com/lologarithm/panel/sensor"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		temp float64
		hum  int
		want panel.Condition
	}{
		{25, 40, panel.Favorable},
		{35, 40, panel.Unfavorable},
		{25, 20, panel.Unfavorable},
		{20, 40, panel.Unfavorable}, // bounds are exclusive
		{30, 40, panel.Unfavorable},
		{25, 30, panel.Unfavorable},
		{25, 50, panel.Unfavorable},
		{20.01, 31, panel.Favorable},
	}
	for _, tt := range tests {
		got := Defaults.Classify(sensor.Reading{Temp: tt.temp, Humidity: tt.hum})
		if got != tt.want {
			t.Errorf("Classify(%.2f, %d) = %s, want %s", tt.temp, tt.hum, got, tt.want)
		}
	}
}

func TestAdjust(t *testing.T) {
	r := sensor.Reading{Temp: 30.5, Humidity: 27}
	if got := Defaults.Adjust(r, false); got != r {
		t.Errorf("expected reading untouched without watering, got %+v", got)
	}
	got := Defaults.Adjust(r, true)
	if got.Temp != 29.5 || got.Humidity != 32 {
		t.Errorf("expected 29.5°C/32%%, got %+v", got)
	}
	// the bias is what tips this reading into range
	if Defaults.Classify(r) != panel.Unfavorable || Defaults.Classify(got) != panel.Favorable {
		t.Errorf("expected watering bias to change the verdict")
	}
}
