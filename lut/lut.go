/*
	Package lut implements the color lookup table owned by a volume's display
	attributes: a 256-entry RGBA ramp with window bounds, built either from a
	named preset or from explicit entries.
*/
package lut

import (
	"github.com/neurimage/xvol/xvol"
)

// Type describes how a lookup table was produced.
type Type string

const (
	Internal Type = "internal" // built-in named preset
	Custom   Type = "custom"   // explicit entries set by the caller
)

// Names of the built-in presets.
const (
	Gray        = "gray"
	InverseGray = "inversegray"
	Rainbow     = "rainbow"
	HotIron     = "hotiron"
	GEColor     = "gecolor"
)

// RGBA is one lookup table entry.
type RGBA struct {
	R, G, B, A uint8
}

// Lut is a 256-entry color table plus the scalar window it spans.
type Lut struct {
	typ     Type
	name    string
	entries [256]RGBA
	winMin  float64
	winMax  float64
}

// New returns the default grayscale lookup table over [0,255].
func New() *Lut {
	l := &Lut{winMin: 0, winMax: 255}
	l.SetPreset(Gray)
	return l
}

// Typ returns whether the table is a preset or custom.
func (l *Lut) Typ() Type { return l.typ }

// Name returns the preset name, or "custom" for explicit tables.
func (l *Lut) Name() string { return l.name }

// Window returns the scalar window spanned by the table.
func (l *Lut) Window() (min, max float64) { return l.winMin, l.winMax }

// SetWindow records the scalar window spanned by the table.
func (l *Lut) SetWindow(min, max float64) {
	l.winMin, l.winMax = min, max
}

// At returns the color for scalar value v given the current window.
func (l *Lut) At(v float64) RGBA {
	if l.winMax <= l.winMin {
		return l.entries[0]
	}
	frac := (v - l.winMin) / (l.winMax - l.winMin)
	if frac < 0 {
		frac = 0
	}
	if frac > 1 {
		frac = 1
	}
	return l.entries[int(frac*255+0.5)]
}

// Entry returns the i-th raw table entry.
func (l *Lut) Entry(i int) RGBA { return l.entries[i&0xff] }

// SetEntries installs an explicit 256-entry table, marking the LUT custom.
func (l *Lut) SetEntries(entries [256]RGBA) {
	l.entries = entries
	l.typ = Custom
	l.name = "custom"
}

// SetPreset installs a named built-in table.
func (l *Lut) SetPreset(name string) error {
	gen, found := presets[name]
	if !found {
		return xvol.DomainErrorf("unknown lookup table %q", name)
	}
	for i := 0; i < 256; i++ {
		l.entries[i] = gen(uint8(i))
	}
	l.typ = Internal
	l.name = name
	return nil
}

// Copy returns a deep copy of the lookup table.
func (l *Lut) Copy() *Lut {
	dup := *l
	return &dup
}

// IsPreset reports whether a preset with the given name exists.
func IsPreset(name string) bool {
	_, found := presets[name]
	return found
}

var presets = map[string]func(uint8) RGBA{
	Gray: func(i uint8) RGBA {
		return RGBA{i, i, i, 255}
	},
	InverseGray: func(i uint8) RGBA {
		v := 255 - i
		return RGBA{v, v, v, 255}
	},
	Rainbow: func(i uint8) RGBA {
		// Blue to red through green.
		switch {
		case i < 64:
			return RGBA{0, uint8(int(i) * 4), 255, 255}
		case i < 128:
			return RGBA{0, 255, uint8(255 - (int(i)-64)*4), 255}
		case i < 192:
			return RGBA{uint8((int(i) - 128) * 4), 255, 0, 255}
		default:
			return RGBA{255, uint8(255 - (int(i)-192)*4), 0, 255}
		}
	},
	HotIron: func(i uint8) RGBA {
		r := int(i) * 3
		if r > 255 {
			r = 255
		}
		g := (int(i) - 85) * 3
		if g < 0 {
			g = 0
		}
		if g > 255 {
			g = 255
		}
		b := (int(i) - 170) * 3
		if b < 0 {
			b = 0
		}
		if b > 255 {
			b = 255
		}
		return RGBA{uint8(r), uint8(g), uint8(b), 255}
	},
	GEColor: func(i uint8) RGBA {
		// Quadrant ramp used by GE workstations.
		switch {
		case i < 64:
			return RGBA{0, 0, uint8(int(i) * 4), 255}
		case i < 128:
			return RGBA{0, uint8((int(i) - 64) * 4), 255, 255}
		case i < 192:
			return RGBA{uint8((int(i) - 128) * 4), 255, uint8(255 - (int(i)-128)*4), 255}
		default:
			return RGBA{255, 255, uint8((int(i) - 192) * 4), 255}
		}
	},
}
