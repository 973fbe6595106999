/*
	This file implements the display state of a volume: scalar range, window,
	and the owned lookup table. The window is clamped inside the range on every
	mutation of either, and every change is pushed into the lookup table since
	the table is what is ultimately rendered.
*/

package attr

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/neurimage/xvol/lut"
	"github.com/neurimage/xvol/xvol"
)

// DisplayExt is the extension of a standalone display file.
const DisplayExt = ".xdisplay"

// CT window presets in Hounsfield units, applied as (center, width).
const (
	ctBrainCenter, ctBrainWidth = 40.0, 80.0
	ctBoneCenter, ctBoneWidth   = 500.0, 2000.0
	ctMetalCenter, ctMetalWidth = 500.0, 8000.0
)

// Display holds the visualization state of a volume.
type Display struct {
	rangeMin, rangeMax float64
	winMin, winMax     float64
	table              *lut.Lut
	parent             Parent
}

// NewDisplay returns display state over the default [0,255] range with a
// grayscale lookup table.
func NewDisplay() *Display {
	d := &Display{rangeMin: 0, rangeMax: 255, winMin: 0, winMax: 255, table: lut.New()}
	d.updateLut()
	return d
}

// SetParent installs the non-owning back-reference to the owning volume.
func (d *Display) SetParent(p Parent) { d.parent = p }

// Parent returns the back-reference, which may be nil.
func (d *Display) Parent() Parent { return d.parent }

// Range returns the scalar data extent.
func (d *Display) Range() (min, max float64) { return d.rangeMin, d.rangeMax }

// Window returns the visualization window.
func (d *Display) Window() (min, max float64) { return d.winMin, d.winMax }

// Lut returns the owned lookup table.
func (d *Display) Lut() *lut.Lut { return d.table }

// SetRange records the scalar data extent and clamps the window inside it.
// The volume-level recompute resets the window to the new range when the
// range actually changed; SetRange itself only clamps.
func (d *Display) SetRange(min, max float64) error {
	if max < min {
		return xvol.DomainErrorf("range max %g < min %g", max, min)
	}
	d.rangeMin, d.rangeMax = min, max
	d.clampWindow()
	d.updateLut()
	return nil
}

// SetWindow records the visualization window, clamped to the current range
// on both ends.
func (d *Display) SetWindow(min, max float64) error {
	if max < min {
		return xvol.DomainErrorf("window max %g < min %g", max, min)
	}
	d.winMin, d.winMax = min, max
	d.clampWindow()
	d.updateLut()
	return nil
}

// SetCenterWidthWindow sets the window from a center and width.
func (d *Display) SetCenterWidthWindow(center, width float64) error {
	if width < 0 {
		return xvol.DomainErrorf("window width %g is negative", width)
	}
	return d.SetWindow(center-width/2, center+width/2)
}

// SetDefaultWindow resets the window to the full range.
func (d *Display) SetDefaultWindow() {
	d.winMin, d.winMax = d.rangeMin, d.rangeMax
	d.updateLut()
}

// AutoWindow computes the window from scalar quantiles of the parent volume,
// e.g. AutoWindow(0.01, 0.99) for a robust window. Requires a parent.
func (d *Display) AutoWindow(qmin, qmax float64) error {
	if d.parent == nil {
		return xvol.PreconditionErrorf("auto-window requires a parent volume")
	}
	if qmin < 0 || qmax > 1 || qmin >= qmax {
		return xvol.DomainErrorf("bad quantiles (%g, %g)", qmin, qmax)
	}
	return d.SetWindow(d.parent.ScalarQuantile(qmin), d.parent.ScalarQuantile(qmax))
}

// SetCTBrainWindow applies the CT brain preset. It is a no-op unless the
// parent's modality is CT; a parent is required to know the modality.
func (d *Display) SetCTBrainWindow() error {
	return d.setCTWindow(ctBrainCenter, ctBrainWidth)
}

// SetCTBoneWindow applies the CT bone preset, no-op outside CT.
func (d *Display) SetCTBoneWindow() error {
	return d.setCTWindow(ctBoneCenter, ctBoneWidth)
}

// SetCTMetalWindow applies the CT metal preset, no-op outside CT.
func (d *Display) SetCTMetalWindow() error {
	return d.setCTWindow(ctMetalCenter, ctMetalWidth)
}

func (d *Display) setCTWindow(center, width float64) error {
	if d.parent == nil {
		return xvol.PreconditionErrorf("CT window presets require a parent volume")
	}
	if d.parent.Acquisition().Modality() != MCT {
		return nil
	}
	return d.SetCenterWidthWindow(center, width)
}

// SetSymmetricWindow clamps the window to ±min(|low|,|high|). Only meaningful
// for images holding negative values.
func (d *Display) SetSymmetricWindow() error {
	if !d.HasNegativeValues() {
		return xvol.DomainErrorf("symmetric window requires negative values, range is [%g,%g]",
			d.rangeMin, d.rangeMax)
	}
	m := math.Min(math.Abs(d.rangeMin), math.Abs(d.rangeMax))
	return d.SetWindow(-m, m)
}

// SetLutPreset installs a named built-in lookup table, keeping the current
// window.
func (d *Display) SetLutPreset(name string) error {
	if err := d.table.SetPreset(name); err != nil {
		return err
	}
	d.updateLut()
	return nil
}

// SetLut installs an explicit lookup table object and re-derives the window
// from the table's own windowing state, clamped to the range. Assigned tables
// carry windowing of their own; ignoring it leaves the rendered image out of
// sync with the display state.
func (d *Display) SetLut(l *lut.Lut) error {
	if l == nil {
		return xvol.TypeMismatchf("nil lookup table")
	}
	d.table = l
	min, max := l.Window()
	if max < min {
		return xvol.DomainErrorf("lookup table window max %g < min %g", max, min)
	}
	d.winMin, d.winMax = min, max
	d.clampWindow()
	d.updateLut()
	return nil
}

// HasZeroOneRange returns true for probability-like [0,1] data.
func (d *Display) HasZeroOneRange() bool {
	return d.rangeMin == 0 && d.rangeMax == 1
}

// HasNegativeValues returns true if the range extends below zero.
func (d *Display) HasNegativeValues() bool { return d.rangeMin < 0 }

// IsDefaultWindow returns true iff the window spans the whole range.
func (d *Display) IsDefaultWindow() bool {
	return d.winMin == d.rangeMin && d.winMax == d.rangeMax
}

func (d *Display) clampWindow() {
	if d.winMin < d.rangeMin {
		d.winMin = d.rangeMin
	}
	if d.winMax > d.rangeMax {
		d.winMax = d.rangeMax
	}
	if d.winMin > d.winMax {
		d.winMin = d.winMax
	}
}

// updateLut pushes the current window into the owned lookup table.
func (d *Display) updateLut() {
	d.table.SetWindow(d.winMin, d.winMax)
}

// Equal compares range, window, and lookup table identity (type and name).
func (d *Display) Equal(other *Display) bool {
	if other == nil {
		return false
	}
	return d.rangeMin == other.rangeMin && d.rangeMax == other.rangeMax &&
		d.winMin == other.winMin && d.winMax == other.winMax &&
		d.table.Typ() == other.table.Typ() && d.table.Name() == other.table.Name()
}

// CopyFrom deep-copies another display state except the parent back-reference.
func (d *Display) CopyFrom(other *Display) {
	if other == nil {
		return
	}
	d.rangeMin, d.rangeMax = other.rangeMin, other.rangeMax
	d.winMin, d.winMax = other.winMin, other.winMax
	d.table = other.table.Copy()
	d.updateLut()
}

// Copy returns a deep copy without the parent back-reference.
func (d *Display) Copy() *Display {
	dup := NewDisplay()
	dup.CopyFrom(d)
	return dup
}

// --- persistence ---

type xmlDisplay struct {
	XMLName   xml.Name `xml:"display"`
	RangeMin  float64  `xml:"rangemin"`
	RangeMax  float64  `xml:"rangemax"`
	WindowMin float64  `xml:"windowmin"`
	WindowMax float64  `xml:"windowmax"`
	LutType   string   `xml:"luttype"`
	LutName   string   `xml:"lutname"`
}

func (d *Display) xmlBlock() xmlDisplay {
	return xmlDisplay{
		RangeMin:  d.rangeMin,
		RangeMax:  d.rangeMax,
		WindowMin: d.winMin,
		WindowMax: d.winMax,
		LutType:   string(d.table.Typ()),
		LutName:   d.table.Name(),
	}
}

func (d *Display) fromXMLBlock(x xmlDisplay) error {
	if x.RangeMax < x.RangeMin {
		return xvol.DomainErrorf("range max %g < min %g", x.RangeMax, x.RangeMin)
	}
	if x.WindowMax < x.WindowMin {
		return xvol.DomainErrorf("window max %g < min %g", x.WindowMax, x.WindowMin)
	}
	d.rangeMin, d.rangeMax = x.RangeMin, x.RangeMax
	d.winMin, d.winMax = x.WindowMin, x.WindowMax
	d.clampWindow()
	if lut.Type(x.LutType) == lut.Internal && lut.IsPreset(x.LutName) {
		if err := d.table.SetPreset(x.LutName); err != nil {
			return err
		}
	}
	d.updateLut()
	return nil
}

// MarshalXML serializes the display block.
func (d *Display) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.Encode(d.xmlBlock())
}

// UnmarshalXML restores the display block. The XML decoder allocates bare
// receivers, so the lookup table is initialized here when absent.
func (d *Display) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
	if d.table == nil {
		d.table = lut.New()
	}
	var x xmlDisplay
	if err := dec.DecodeElement(&x, &start); err != nil {
		return err
	}
	return d.fromXMLBlock(x)
}

// Save writes a standalone .xdisplay file.
func (d *Display) Save(path string) error {
	if filepath.Ext(path) != DisplayExt {
		return xvol.FormatErrorf(path, "display files use the %s extension", DisplayExt)
	}
	data, err := xml.MarshalIndent(d.xmlBlock(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append([]byte(xml.Header), data...), 0644); err != nil {
		return fmt.Errorf("cannot write display %s: %w", path, err)
	}
	return nil
}

// Load reads a standalone .xdisplay file.
func (d *Display) Load(path string) error {
	if filepath.Ext(path) != DisplayExt {
		return xvol.FormatErrorf(path, "display files use the %s extension", DisplayExt)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read display %s: %w", path, err)
	}
	var x xmlDisplay
	if err := xml.Unmarshal(data, &x); err != nil {
		return xvol.FormatErrorf(path, "bad display XML: %v", err)
	}
	return d.fromXMLBlock(x)
}
