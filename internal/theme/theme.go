package theme

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	colorful "github.com/lucasb-eyer/go-colorful"
	"github.com/pelletier/go-toml/v2"

	"github.com/dshills/termcore/internal/ansi"
)

// ErrUnknownTheme is returned by Lookup for an unregistered name.
var ErrUnknownTheme = errors.New("unknown theme")

// DefaultName is the theme used when none is configured.
const DefaultName = "default"

// dimBlend is how far a dim foreground moves toward the background.
const dimBlend = 0.4

// Theme maps terminal colors to RGB.
type Theme struct {
	Name       string
	Foreground colorful.Color
	Background colorful.Color
	Cursor     colorful.Color
	Selection  colorful.Color

	// Palette holds the 16 standard colors. Indexed colors from 16 up
	// always use the xterm cube and grayscale ramp.
	Palette [16]colorful.Color

	// BoldIsBright renders bold text in colors 0-7 with their bright
	// counterpart.
	BoldIsBright bool
}

// Color resolves c. Default resolves to the theme foreground or
// background depending on fg.
func (t *Theme) Color(c ansi.Color, fg bool) colorful.Color {
	switch c.Kind {
	case ansi.ColorNamed:
		return t.Palette[c.Index&0x0F]
	case ansi.ColorIndexed:
		if c.Index < 16 {
			return t.Palette[c.Index]
		}
		return Xterm256(c.Index)
	case ansi.ColorRGB:
		return rgb(c.R, c.G, c.B)
	default:
		if fg {
			return t.Foreground
		}
		return t.Background
	}
}

// Resolve returns the effective foreground and background of st,
// applying bold brightening, dim, inverse and hidden.
func (t *Theme) Resolve(st ansi.Style) (fg, bg colorful.Color) {
	fgColor := st.Fg
	if t.BoldIsBright && st.Has(ansi.AttrBold) && fgColor.Kind == ansi.ColorNamed && fgColor.Index < 8 {
		fgColor = ansi.Named(fgColor.Index + 8)
	}

	fg = t.Color(fgColor, true)
	bg = t.Color(st.Bg, false)

	if st.Has(ansi.AttrDim) {
		fg = fg.BlendLab(bg, dimBlend).Clamped()
	}
	if st.Has(ansi.AttrInverse) {
		fg, bg = bg, fg
	}
	if st.Has(ansi.AttrHidden) {
		fg = bg
	}
	return fg, bg
}

// Hex returns the effective foreground and background of st as
// "#rrggbb" strings.
func (t *Theme) Hex(st ansi.Style) (fg, bg string) {
	f, b := t.Resolve(st)
	return f.Hex(), b.Hex()
}

// themeFile is the TOML form of a theme.
type themeFile struct {
	Name         string   `toml:"name"`
	Foreground   string   `toml:"foreground"`
	Background   string   `toml:"background"`
	Cursor       string   `toml:"cursor"`
	Selection    string   `toml:"selection"`
	Palette      []string `toml:"palette"`
	BoldIsBright *bool    `toml:"bold_is_bright"`
}

// Parse decodes a TOML theme. Unset colors inherit from the default theme.
func Parse(data []byte) (*Theme, error) {
	var f themeFile
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse theme: %w", err)
	}
	if f.Name == "" {
		return nil, errors.New("parse theme: name is required")
	}
	if len(f.Palette) > 16 {
		return nil, fmt.Errorf("parse theme %s: palette has %d entries, max 16", f.Name, len(f.Palette))
	}

	t := *Default()
	t.Name = f.Name

	fields := []struct {
		hex string
		dst *colorful.Color
	}{
		{f.Foreground, &t.Foreground},
		{f.Background, &t.Background},
		{f.Cursor, &t.Cursor},
		{f.Selection, &t.Selection},
	}
	for _, fld := range fields {
		if fld.hex == "" {
			continue
		}
		c, err := colorful.Hex(fld.hex)
		if err != nil {
			return nil, fmt.Errorf("parse theme %s: %w", f.Name, err)
		}
		*fld.dst = c
	}
	for i, h := range f.Palette {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("parse theme %s: palette[%d]: %w", f.Name, i, err)
		}
		t.Palette[i] = c
	}
	if f.BoldIsBright != nil {
		t.BoldIsBright = *f.BoldIsBright
	}
	return &t, nil
}

// LoadFile reads a theme from a TOML file.
func LoadFile(path string) (*Theme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read theme: %w", err)
	}
	return Parse(data)
}

var (
	mu       sync.RWMutex
	builtins = map[string]*Theme{
		DefaultName: {
			Name:         DefaultName,
			Foreground:   rgb(229, 229, 229),
			Background:   rgb(0, 0, 0),
			Cursor:       rgb(255, 255, 255),
			Selection:    rgb(68, 68, 68),
			Palette:      xtermBase,
			BoldIsBright: true,
		},
		"solarized-dark": {
			Name:       "solarized-dark",
			Foreground: mustHex("#839496"),
			Background: mustHex("#002b36"),
			Cursor:     mustHex("#93a1a1"),
			Selection:  mustHex("#073642"),
			Palette: mustPalette(
				"#073642", "#dc322f", "#859900", "#b58900",
				"#268bd2", "#d33682", "#2aa198", "#eee8d5",
				"#002b36", "#cb4b16", "#586e75", "#657b83",
				"#839496", "#6c71c4", "#93a1a1", "#fdf6e3",
			),
		},
		"gruvbox": {
			Name:         "gruvbox",
			Foreground:   mustHex("#ebdbb2"),
			Background:   mustHex("#282828"),
			Cursor:       mustHex("#ebdbb2"),
			Selection:    mustHex("#504945"),
			BoldIsBright: true,
			Palette: mustPalette(
				"#282828", "#cc241d", "#98971a", "#d79921",
				"#458588", "#b16286", "#689d6a", "#a89984",
				"#928374", "#fb4934", "#b8bb26", "#fabd2f",
				"#83a598", "#d3869b", "#8ec07c", "#ebdbb2",
			),
		},
	}
)

// Register adds or replaces a named theme.
func Register(t *Theme) {
	mu.Lock()
	defer mu.Unlock()
	builtins[t.Name] = t
}

// Lookup returns the theme registered under name.
func Lookup(name string) (*Theme, error) {
	mu.RLock()
	defer mu.RUnlock()
	t, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTheme, name)
	}
	return t, nil
}

// Default returns the default theme.
func Default() *Theme {
	t, _ := Lookup(DefaultName)
	return t
}

// Names returns registered theme names in sorted order.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
