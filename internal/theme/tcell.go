package theme

import (
	"github.com/gdamore/tcell/v2"

	"github.com/dshills/termcore/internal/ansi"
)

// TcellStyle converts st to a tcell style that defers named and indexed
// colors to the host terminal palette.
func TcellStyle(st ansi.Style) tcell.Style {
	style := tcell.StyleDefault.
		Foreground(tcellColor(st.Fg)).
		Background(tcellColor(st.Bg))
	return withAttrs(style, st)
}

// TcellStyle converts st to a true-color tcell style using the theme's
// colors. Dim, inverse and hidden are already applied to the colors.
func (t *Theme) TcellStyle(st ansi.Style) tcell.Style {
	fg, bg := t.Resolve(st)
	fr, fgG, fb := fg.RGB255()
	br, bgG, bb := bg.RGB255()

	style := tcell.StyleDefault.
		Foreground(tcell.NewRGBColor(int32(fr), int32(fgG), int32(fb))).
		Background(tcell.NewRGBColor(int32(br), int32(bgG), int32(bb)))
	return withAttrs(style, st.Without(ansi.AttrDim|ansi.AttrInverse))
}

func tcellColor(c ansi.Color) tcell.Color {
	switch c.Kind {
	case ansi.ColorNamed, ansi.ColorIndexed:
		return tcell.PaletteColor(int(c.Index))
	case ansi.ColorRGB:
		return tcell.NewRGBColor(int32(c.R), int32(c.G), int32(c.B))
	default:
		return tcell.ColorDefault
	}
}

func withAttrs(style tcell.Style, st ansi.Style) tcell.Style {
	if st.Has(ansi.AttrBold) {
		style = style.Bold(true)
	}
	if st.Has(ansi.AttrDim) {
		style = style.Dim(true)
	}
	if st.Has(ansi.AttrItalic) {
		style = style.Italic(true)
	}
	if st.Has(ansi.AttrUnderline) {
		style = style.Underline(true)
	}
	if st.Has(ansi.AttrBlink) {
		style = style.Blink(true)
	}
	if st.Has(ansi.AttrInverse) {
		style = style.Reverse(true)
	}
	if st.Has(ansi.AttrStrikethrough) {
		style = style.StrikeThrough(true)
	}
	return style
}
