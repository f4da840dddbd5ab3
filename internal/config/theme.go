package config

import (
	"fmt"

	"github.com/lucasb-eyer/go-colorful"
)

// ThemeConfig is the color theme. Colors are "#rrggbb".
type ThemeConfig struct {
	Name        string   `toml:"name" yaml:"name" json:"name"`
	Foreground  string   `toml:"foreground" yaml:"foreground" json:"foreground"`
	Background  string   `toml:"background" yaml:"background" json:"background"`
	Cursor      string   `toml:"cursor" yaml:"cursor" json:"cursor"`
	SelectionBg string   `toml:"selection_bg" yaml:"selection_bg" json:"selection_bg"`
	SelectionFg string   `toml:"selection_fg" yaml:"selection_fg" json:"selection_fg"`
	ANSI        []string `toml:"ansi" yaml:"ansi" json:"ansi"`
}

// Palette is a theme decoded into colors.
type Palette struct {
	Foreground  colorful.Color
	Background  colorful.Color
	Cursor      colorful.Color
	SelectionBg colorful.Color
	SelectionFg colorful.Color
	ANSI        [16]colorful.Color
}

// DefaultTheme returns the built-in dark theme.
func DefaultTheme() ThemeConfig {
	return ThemeConfig{
		Name:        "default-dark",
		Foreground:  "#eff0ea",
		Background:  "#272935",
		Cursor:      "#e9e9e9",
		SelectionBg: "#92bbd0",
		SelectionFg: "#000000",
		ANSI: []string{
			"#000000", "#ff5b56", "#5af78d", "#f3f99c",
			"#57c7fe", "#ff69c0", "#9aecfe", "#f1f1f0",
			"#686767", "#ff5b56", "#5af78d", "#f3f99c",
			"#57c7fe", "#ff69c0", "#9aecfe", "#f1f1f0",
		},
	}
}

// Palette decodes the theme. Empty entries fall back to the default theme;
// a short ansi list keeps the defaults for the missing indices.
func (t ThemeConfig) Palette() (Palette, error) {
	def := DefaultTheme()
	var p Palette
	var err error

	fields := []struct {
		name string
		val  string
		def  string
		dst  *colorful.Color
	}{
		{"theme.foreground", t.Foreground, def.Foreground, &p.Foreground},
		{"theme.background", t.Background, def.Background, &p.Background},
		{"theme.cursor", t.Cursor, def.Cursor, &p.Cursor},
		{"theme.selection_bg", t.SelectionBg, def.SelectionBg, &p.SelectionBg},
		{"theme.selection_fg", t.SelectionFg, def.SelectionFg, &p.SelectionFg},
	}
	for _, f := range fields {
		if *f.dst, err = parseColor(f.name, f.val, f.def); err != nil {
			return Palette{}, err
		}
	}

	if len(t.ANSI) > 16 {
		return Palette{}, &ValidationError{Path: "theme.ansi", Message: "at most 16 colors", Value: len(t.ANSI)}
	}
	for i := range p.ANSI {
		val := ""
		if i < len(t.ANSI) {
			val = t.ANSI[i]
		}
		if p.ANSI[i], err = parseColor(fmt.Sprintf("theme.ansi[%d]", i), val, def.ANSI[i]); err != nil {
			return Palette{}, err
		}
	}
	return p, nil
}

func parseColor(name, val, def string) (colorful.Color, error) {
	if val == "" {
		val = def
	}
	c, err := colorful.Hex(val)
	if err != nil {
		return colorful.Color{}, fmt.Errorf("%s: %w: %q", name, ErrInvalidColor, val)
	}
	return c, nil
}

// Indexed returns the color for a 256-color palette index: the theme's 16
// ANSI colors, the 6x6x6 cube, then the grayscale ramp.
func (p Palette) Indexed(i uint8) colorful.Color {
	switch {
	case i < 16:
		return p.ANSI[i]
	case i < 232:
		i -= 16
		levels := [6]uint8{0, 95, 135, 175, 215, 255}
		return rgb8(levels[i/36], levels[(i/6)%6], levels[i%6])
	default:
		v := 8 + (i-232)*10
		return rgb8(v, v, v)
	}
}

func rgb8(r, g, b uint8) colorful.Color {
	return colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
}

// RGBA returns c as four float32 components with full alpha.
func RGBA(c colorful.Color) [4]float32 {
	r, g, b := c.Clamped().RGB255()
	return [4]float32{float32(r) / 255, float32(g) / 255, float32(b) / 255, 1}
}
