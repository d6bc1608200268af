package grid

import (
	"errors"
	"math"
	"testing"
)

func TestPackLanes(t *testing.T) {
	tests := []struct {
		name string
		c    Color
		want uint32
	}{
		{"black", Color{}, 0},
		{"green", Color{Green: 1}, 0xFF000000},
		{"red", Color{Red: 1}, 0x00FF0000},
		{"blue", Color{Blue: 1}, 0x0000FF00},
		{"white", White, 0xFFFFFF00},
		{"truncates", Color{Red: 0.5, Green: 0.1, Blue: 0.01}, 0x197F0200},
		{"clamps high", Color{Red: 7, Green: 1.5, Blue: 1}, 0xFFFFFF00},
		{"clamps low", Color{Red: -1, Green: math.NaN(), Blue: -0.2}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Pack(tt.c); got != tt.want {
				t.Errorf("Pack(%+v) = %#08x, want %#08x", tt.c, got, tt.want)
			}
		})
	}
}

func TestPackIndependentLanes(t *testing.T) {
	r, g, b := Unpack(Pack(Color{Red: 1, Green: 0, Blue: 1}))
	if r != 255 || g != 0 || b != 255 {
		t.Errorf("expected 255/0/255, got %d/%d/%d", r, g, b)
	}
	if Pack(Color{Red: 1})&0xFF != 0 {
		t.Errorf("low lane must stay unused")
	}
}

func TestRenderMaskedCellsAreZero(t *testing.T) {
	s := Droplet(WaterColor.Scale(10))
	f := Render(s)
	word := Pack(s.Color)
	for i, on := range s.Mask {
		if on && f[i] != word {
			t.Errorf("cell %d: expected %#08x, got %#08x", i, word, f[i])
		}
		if !on && f[i] != 0 {
			t.Errorf("cell %d: masked cell packed to %#08x", i, f[i])
		}
	}
	if f != Render(s) {
		t.Errorf("render is not deterministic")
	}
}

func TestRenderOffIsDark(t *testing.T) {
	if f := Render(Off()); f != (Frame{}) {
		t.Errorf("expected dark frame, got %v", f)
	}
}

func TestParseMask(t *testing.T) {
	m, err := ParseMask("01110/11111/11111/01110/00100")
	if err != nil {
		t.Fatal(err)
	}
	if m != DropletMask {
		t.Errorf("expected droplet mask, got %s", m)
	}
	if got := m.String(); got != "01110/11111/11111/01110/00100" {
		t.Errorf("unexpected String(): %s", got)
	}
	if _, err := ParseMask("0101"); !errors.Is(err, ErrMaskSize) {
		t.Errorf("expected ErrMaskSize, got %v", err)
	}
	if _, err := ParseMask("0101x"); err == nil {
		t.Errorf("expected error on invalid character")
	}
}

func TestNamed(t *testing.T) {
	c := Color{Blue: 0.5}
	for _, name := range []string{"full", "droplet", "off"} {
		s, ok := Named(name, c)
		if !ok || s.Name != name {
			t.Errorf("expected builtin %s, got %+v %v", name, s, ok)
		}
	}
	if s, _ := Named("droplet", c); Render(s) != Render(Droplet(c)) {
		t.Errorf("expected named droplet to match Droplet")
	}
	if _, ok := Named("spiral", c); ok {
		t.Errorf("expected unknown sketch to be rejected")
	}
}
