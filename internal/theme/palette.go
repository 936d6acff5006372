// Package theme resolves terminal colors to concrete RGB values and
// converts decoded styles for tcell-based hosts.
package theme

import (
	colorful "github.com/lucasb-eyer/go-colorful"
)

// cubeLevels are the channel intensities of the 6x6x6 color cube.
var cubeLevels = [6]uint8{0, 95, 135, 175, 215, 255}

// Xterm256 returns the RGB value of 256-color palette entry i for the
// cube and grayscale ranges. Entries below 16 use the xterm defaults.
func Xterm256(i uint8) colorful.Color {
	switch {
	case i < 16:
		return xtermBase[i]
	case i < 232:
		n := int(i) - 16
		return rgb(cubeLevels[n/36], cubeLevels[(n/6)%6], cubeLevels[n%6])
	default:
		g := 8 + 10*(i-232)
		return rgb(g, g, g)
	}
}

// xtermBase is the stock xterm palette for the 16 standard colors.
var xtermBase = [16]colorful.Color{
	rgb(0, 0, 0),
	rgb(205, 0, 0),
	rgb(0, 205, 0),
	rgb(205, 205, 0),
	rgb(0, 0, 238),
	rgb(205, 0, 205),
	rgb(0, 205, 205),
	rgb(229, 229, 229),
	rgb(127, 127, 127),
	rgb(255, 0, 0),
	rgb(0, 255, 0),
	rgb(255, 255, 0),
	rgb(92, 92, 255),
	rgb(255, 0, 255),
	rgb(0, 255, 255),
	rgb(255, 255, 255),
}

func rgb(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// mustHex parses a literal hex color from a built-in table.
func mustHex(s string) colorful.Color {
	c, err := colorful.Hex(s)
	if err != nil {
		panic("theme: bad built-in color " + s)
	}
	return c
}

func mustPalette(hex ...string) [16]colorful.Color {
	var p [16]colorful.Color
	for i, h := range hex {
		p[i] = mustHex(h)
	}
	return p
}
