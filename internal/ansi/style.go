package ansi

import "fmt"

// ColorKind tags the Color variant.
type ColorKind uint8

const (
	// ColorDefault is the terminal's default foreground or background.
	ColorDefault ColorKind = iota
	// ColorNamed is one of the 16 standard colors (0-7 normal, 8-15 bright).
	ColorNamed
	// ColorIndexed is a 256-color palette entry.
	ColorIndexed
	// ColorRGB is a 24-bit true color.
	ColorRGB
)

// Color is a terminal color.
type Color struct {
	Kind  ColorKind `json:"kind"`
	Index uint8     `json:"index,omitempty"`
	R     uint8     `json:"r,omitempty"`
	G     uint8     `json:"g,omitempty"`
	B     uint8     `json:"b,omitempty"`
}

// Standard color indices.
const (
	Black uint8 = iota
	Red
	Green
	Yellow
	Blue
	Magenta
	Cyan
	White
	BrightBlack
	BrightRed
	BrightGreen
	BrightYellow
	BrightBlue
	BrightMagenta
	BrightCyan
	BrightWhite
)

// DefaultColor returns the default color.
func DefaultColor() Color { return Color{} }

// Named returns standard color i (0-15).
func Named(i uint8) Color { return Color{Kind: ColorNamed, Index: i & 0x0F} }

// Indexed returns 256-color palette entry i.
func Indexed(i uint8) Color { return Color{Kind: ColorIndexed, Index: i} }

// RGB returns a true color.
func RGB(r, g, b uint8) Color { return Color{Kind: ColorRGB, R: r, G: g, B: b} }

// IsDefault reports whether c is the default color.
func (c Color) IsDefault() bool { return c.Kind == ColorDefault }

// PaletteIndex returns the 256-color index for named and indexed colors.
func (c Color) PaletteIndex() (uint8, bool) {
	switch c.Kind {
	case ColorNamed, ColorIndexed:
		return c.Index, true
	default:
		return 0, false
	}
}

func (c Color) String() string {
	switch c.Kind {
	case ColorNamed:
		return fmt.Sprintf("named(%d)", c.Index)
	case ColorIndexed:
		return fmt.Sprintf("indexed(%d)", c.Index)
	case ColorRGB:
		return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	default:
		return "default"
	}
}

// Attr is a text attribute bitset.
type Attr uint16

const (
	AttrBold Attr = 1 << iota
	AttrDim
	AttrItalic
	AttrUnderline
	AttrBlink
	AttrInverse
	AttrHidden
	AttrStrikethrough
)

// Style is the rendition applied to a run of text.
type Style struct {
	Fg    Color `json:"fg"`
	Bg    Color `json:"bg"`
	Attrs Attr  `json:"attrs,omitempty"`
}

// Has reports whether every attribute in a is set.
func (s Style) Has(a Attr) bool { return s.Attrs&a == a }

// With returns s with a set.
func (s Style) With(a Attr) Style {
	s.Attrs |= a
	return s
}

// Without returns s with a cleared.
func (s Style) Without(a Attr) Style {
	s.Attrs &^= a
	return s
}

// IsDefault reports whether s is the reset style.
func (s Style) IsDefault() bool { return s == Style{} }

// Bold reports whether the bold attribute is set.
func (s Style) Bold() bool { return s.Has(AttrBold) }

// applySGR applies a Select Graphic Rendition parameter list to st.
// An empty list is a reset. Unknown parameters are ignored. sub marks the
// parameters that followed a colon; a colon group belongs to the
// parameter that opens it and is consumed with it.
func applySGR(st Style, params []int, sub []bool) Style {
	if len(params) == 0 {
		return Style{}
	}

	for i := 0; i < len(params); i++ {
		p := params[i]
		end := i
		for end+1 < len(params) && end+1 < len(sub) && sub[end+1] {
			end++
		}
		switch {
		case p == 0:
			st = Style{}
		case p == 1:
			st = st.With(AttrBold)
		case p == 2:
			st = st.With(AttrDim)
		case p == 3:
			st = st.With(AttrItalic)
		case p == 4 && end > i && params[i+1] == 0:
			st = st.Without(AttrUnderline)
		case p == 4, p == 21:
			st = st.With(AttrUnderline)
		case p == 5, p == 6:
			st = st.With(AttrBlink)
		case p == 7:
			st = st.With(AttrInverse)
		case p == 8:
			st = st.With(AttrHidden)
		case p == 9:
			st = st.With(AttrStrikethrough)
		case p == 22:
			st = st.Without(AttrBold | AttrDim)
		case p == 23:
			st = st.Without(AttrItalic)
		case p == 24:
			st = st.Without(AttrUnderline)
		case p == 25:
			st = st.Without(AttrBlink)
		case p == 27:
			st = st.Without(AttrInverse)
		case p == 28:
			st = st.Without(AttrHidden)
		case p == 29:
			st = st.Without(AttrStrikethrough)
		case p >= 30 && p <= 37:
			st.Fg = Named(uint8(p - 30))
		case p == 38 && end > i:
			if c := groupColor(params[i+1 : end+1]); c.Kind != ColorDefault {
				st.Fg = c
			}
		case p == 38:
			var c Color
			if c, i = extendedColor(params, i); c.Kind != ColorDefault {
				st.Fg = c
			}
		case p == 39:
			st.Fg = DefaultColor()
		case p >= 40 && p <= 47:
			st.Bg = Named(uint8(p - 40))
		case p == 48 && end > i:
			if c := groupColor(params[i+1 : end+1]); c.Kind != ColorDefault {
				st.Bg = c
			}
		case p == 48:
			var c Color
			if c, i = extendedColor(params, i); c.Kind != ColorDefault {
				st.Bg = c
			}
		case p == 49:
			st.Bg = DefaultColor()
		case p >= 90 && p <= 97:
			st.Fg = Named(uint8(p-90) + 8)
		case p >= 100 && p <= 107:
			st.Bg = Named(uint8(p-100) + 8)
		}
		if end > i {
			i = end
		}
	}
	return st
}

// extendedColor decodes "38;5;n" or "38;2;r;g;b" starting at params[i].
// It returns the color and the index of the last parameter consumed.
func extendedColor(params []int, i int) (Color, int) {
	if i+1 >= len(params) {
		return Color{}, i
	}

	switch params[i+1] {
	case 5:
		if i+2 >= len(params) {
			return Color{}, len(params) - 1
		}
		return Indexed(clamp(params[i+2])), i + 2
	case 2:
		if i+4 >= len(params) {
			return Color{}, len(params) - 1
		}
		return RGB(clamp(params[i+2]), clamp(params[i+3]), clamp(params[i+4])), i + 4
	default:
		return Color{}, i + 1
	}
}

// groupColor decodes the colon form "38:5:n", "38:2:cs:r:g:b" or the
// common "38:2:r:g:b" from the parameters after the 38 or 48. The color
// space id is ignored.
func groupColor(g []int) Color {
	switch {
	case g[0] == 5 && len(g) >= 2:
		return Indexed(clamp(g[1]))
	case g[0] == 2 && len(g) >= 5:
		return RGB(clamp(g[2]), clamp(g[3]), clamp(g[4]))
	case g[0] == 2 && len(g) == 4:
		return RGB(clamp(g[1]), clamp(g[2]), clamp(g[3]))
	default:
		return Color{}
	}
}

func clamp(v int) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(v)
	}
}
