package grid

// Built-in masks.
var (
	FullMask = mustMask("11111/11111/11111/11111/11111")

	DropletMask = mustMask(`
		01110
		11111
		11111
		01110
		00100`)
)

// White is the lamp base color; lamp intensity scales it.
var White = Color{Red: 1, Green: 1, Blue: 1}

// WaterColor is the droplet base color.
var WaterColor = Color{Red: 0.01, Green: 0.01, Blue: 0.05}

// Full lights every cell with c.
func Full(c Color) Sketch {
	return Sketch{Name: "full", Mask: FullMask, Color: c}
}

// Droplet draws the water glyph with c.
func Droplet(c Color) Sketch {
	return Sketch{Name: "droplet", Mask: DropletMask, Color: c}
}

// Off is the all-dark frame sent when the water is closed.
func Off() Sketch {
	return Sketch{Name: "off", Mask: FullMask}
}

// Named returns a built-in sketch by name.
func Named(name string, c Color) (Sketch, bool) {
	switch name {
	case "full":
		return Full(c), true
	case "droplet":
		return Droplet(c), true
	case "off":
		return Off(), true
	}
	return Sketch{}, false
}
