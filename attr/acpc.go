/*
	This file implements the AC-PC stereotactic frame: the anterior and
	posterior commissure points and the rigid transform to an AC-PC-aligned
	reference frame derived from them.

	The x- and z-axis rotations are recomputed from the AC-PC vector whenever
	either point is set; the y-axis rotation (roll around the AC-PC axis,
	which two points cannot determine) is settable independently and preserved
	across AC/PC updates. The center of rotation is always the AC-PC midpoint.
*/

package attr

import (
	"encoding/xml"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/neurimage/xvol/trf"
	"github.com/neurimage/xvol/xvol"
)

// ACPCExt is the extension of a standalone AC-PC file.
const ACPCExt = ".xacpc"

// ACPC is the stereotactic frame attached to a volume. A zero AC or PC point
// means "undefined"; the aligned-space conversions are only valid once both
// are defined and report ok=false otherwise.
type ACPC struct {
	ac        xvol.Vector3
	pc        xvol.Vector3
	yRotation float64 // radians, independent of AC/PC
	forward   *trf.Transform
	inverse   *trf.Transform
	parent    Parent
}

// NewACPC returns an undefined frame with the identity transform.
func NewACPC() *ACPC {
	f := &ACPC{}
	f.recompute()
	return f
}

// SetParent installs the non-owning back-reference to the owning volume.
func (f *ACPC) SetParent(p Parent) { f.parent = p }

// Parent returns the back-reference, which may be nil.
func (f *ACPC) Parent() Parent { return f.parent }

// AC returns the anterior commissure point.
func (f *ACPC) AC() xvol.Vector3 { return f.ac }

// PC returns the posterior commissure point.
func (f *ACPC) PC() xvol.Vector3 { return f.pc }

// SetAC records the anterior commissure and re-derives the frame rotations.
func (f *ACPC) SetAC(p xvol.Vector3) {
	f.ac = p
	f.recompute()
}

// SetPC records the posterior commissure and re-derives the frame rotations.
func (f *ACPC) SetPC(p xvol.Vector3) {
	f.pc = p
	f.recompute()
}

// HasAC returns true if the anterior commissure is defined.
func (f *ACPC) HasAC() bool { return !f.ac.IsZero() }

// HasPC returns true if the posterior commissure is defined.
func (f *ACPC) HasPC() bool { return !f.pc.IsZero() }

// HasACPC returns true iff both commissures are defined.
func (f *ACPC) HasACPC() bool { return f.HasAC() && f.HasPC() }

// MidACPC returns the midpoint between AC and PC. When only PC is defined the
// midpoint is PC itself; an AC-only frame falls through the general formula
// with PC at the origin.
func (f *ACPC) MidACPC() xvol.Vector3 {
	if f.HasPC() && !f.HasAC() {
		return f.pc
	}
	return f.ac.Mid(f.pc)
}

// ACPCDistance returns the Euclidean AC-PC distance.
func (f *ACPC) ACPCDistance() float64 {
	return f.ac.Distance(f.pc)
}

// YRotation returns the roll around the AC-PC axis in radians.
func (f *ACPC) YRotation() float64 { return f.yRotation }

// SetYRotation records the roll around the AC-PC axis in radians.
func (f *ACPC) SetYRotation(radians float64) {
	f.yRotation = radians
	f.recompute()
}

// Rotations returns the frame's (x, y, z) Euler rotations in radians.
func (f *ACPC) Rotations() xvol.Vector3 {
	rx, rz := f.derivedRotations()
	return xvol.Vector3{rx, f.yRotation, rz}
}

// Transform returns the rigid transform mapping AC-PC-aligned coordinates to
// native coordinates, centered on the AC-PC midpoint.
func (f *ACPC) Transform() *trf.Transform { return f.forward }

// derivedRotations computes the x and z rotations from the AC-PC vector via
// arctangent of its components. The anterior-pointing vector AC-PC lies along
// +y in the aligned frame.
func (f *ACPC) derivedRotations() (rx, rz float64) {
	if !f.HasACPC() {
		return 0, 0
	}
	v := f.ac.Sub(f.pc)
	if v[1] == 0 && v[2] == 0 && v[0] == 0 {
		return 0, 0
	}
	rx = math.Atan2(v[2], v[1])
	rz = -math.Atan2(v[0], v[1])
	return
}

func (f *ACPC) recompute() {
	rx, rz := f.derivedRotations()
	f.forward = trf.NewRigid(xvol.Vector3{rx, f.yRotation, rz}, f.MidACPC(), xvol.Vector3{})
	inv, err := f.forward.Inverse()
	if err != nil {
		// Rigid transforms are always invertible.
		inv = trf.Identity()
	}
	f.inverse = inv
}

// toAligned maps a native point into the AC-PC-aligned space.
func (f *ACPC) toAligned(p xvol.Vector3) xvol.Vector3 { return f.inverse.Apply(p) }

// fromAligned maps an aligned point back into native space.
func (f *ACPC) fromAligned(p xvol.Vector3) xvol.Vector3 { return f.forward.Apply(p) }

// relativeDistanceFrom returns p - ref measured in the aligned frame.
func (f *ACPC) relativeDistanceFrom(ref, p xvol.Vector3) (xvol.Vector3, bool) {
	if !f.HasACPC() {
		return xvol.Vector3{}, false
	}
	return f.toAligned(p).Sub(f.toAligned(ref)), true
}

// pointFromRelativeDistance returns the native point at aligned offset d from
// the reference point.
func (f *ACPC) pointFromRelativeDistance(ref, d xvol.Vector3) (xvol.Vector3, bool) {
	if !f.HasACPC() {
		return xvol.Vector3{}, false
	}
	return f.fromAligned(f.toAligned(ref).Add(d)), true
}

// RelativeDistanceFromAC returns the aligned-frame offset of p from AC.
// ok is false while AC or PC is undefined.
func (f *ACPC) RelativeDistanceFromAC(p xvol.Vector3) (xvol.Vector3, bool) {
	return f.relativeDistanceFrom(f.ac, p)
}

// RelativeDistanceFromPC returns the aligned-frame offset of p from PC.
func (f *ACPC) RelativeDistanceFromPC(p xvol.Vector3) (xvol.Vector3, bool) {
	return f.relativeDistanceFrom(f.pc, p)
}

// RelativeDistanceFromMidACPC returns the aligned-frame offset of p from the
// AC-PC midpoint.
func (f *ACPC) RelativeDistanceFromMidACPC(p xvol.Vector3) (xvol.Vector3, bool) {
	return f.relativeDistanceFrom(f.MidACPC(), p)
}

// RelativeDistanceFromReference returns the aligned-frame offset of p from an
// arbitrary native reference point.
func (f *ACPC) RelativeDistanceFromReference(ref, p xvol.Vector3) (xvol.Vector3, bool) {
	return f.relativeDistanceFrom(ref, p)
}

// PointFromRelativeDistanceToAC returns the native point at aligned offset d
// from AC.
func (f *ACPC) PointFromRelativeDistanceToAC(d xvol.Vector3) (xvol.Vector3, bool) {
	return f.pointFromRelativeDistance(f.ac, d)
}

// PointFromRelativeDistanceToPC returns the native point at aligned offset d
// from PC.
func (f *ACPC) PointFromRelativeDistanceToPC(d xvol.Vector3) (xvol.Vector3, bool) {
	return f.pointFromRelativeDistance(f.pc, d)
}

// PointFromRelativeDistanceToMidACPC returns the native point at aligned
// offset d from the AC-PC midpoint.
func (f *ACPC) PointFromRelativeDistanceToMidACPC(d xvol.Vector3) (xvol.Vector3, bool) {
	return f.pointFromRelativeDistance(f.MidACPC(), d)
}

// PointFromRelativeDistanceToReference returns the native point at aligned
// offset d from an arbitrary native reference point.
func (f *ACPC) PointFromRelativeDistanceToReference(ref, d xvol.Vector3) (xvol.Vector3, bool) {
	return f.pointFromRelativeDistance(ref, d)
}

// EquivalentVolumeCenteredTransform returns the frame transform re-expressed
// with its center of rotation moved from the AC-PC midpoint to the parent
// volume's field-of-view center. The overall point mapping is unchanged: the
// residual translation (C - C') - R*(C - C') is folded in. Requires a parent.
func (f *ACPC) EquivalentVolumeCenteredTransform() (*trf.Transform, error) {
	if f.parent == nil {
		return nil, xvol.PreconditionErrorf("volume-centered transform requires a parent volume")
	}
	rx, rz := f.derivedRotations()
	rot := xvol.Vector3{rx, f.yRotation, rz}
	center := f.MidACPC()
	vcenter := f.parent.FieldOfViewCenter()
	delta := center.Sub(vcenter)
	rotOnly := trf.NewRigid(rot, xvol.Vector3{}, xvol.Vector3{})
	residual := delta.Sub(rotOnly.Apply(delta))
	return trf.NewRigid(rot, vcenter, residual), nil
}

// Equal compares AC, PC, and the y rotation.
func (f *ACPC) Equal(other *ACPC) bool {
	if other == nil {
		return false
	}
	return f.ac.NearlyEquals(other.ac) && f.pc.NearlyEquals(other.pc) &&
		math.Abs(f.yRotation-other.yRotation) < 1e-9
}

// CopyFrom deep-copies another frame except the parent back-reference.
func (f *ACPC) CopyFrom(other *ACPC) {
	if other == nil {
		return
	}
	f.ac = other.ac
	f.pc = other.pc
	f.yRotation = other.yRotation
	f.recompute()
}

// Copy returns a deep copy without the parent back-reference.
func (f *ACPC) Copy() *ACPC {
	dup := NewACPC()
	dup.CopyFrom(f)
	return dup
}

// --- persistence ---

type xmlACPC struct {
	XMLName  xml.Name `xml:"ACPC"`
	AC       string   `xml:"AC"`
	PC       string   `xml:"PC"`
	Rotation float64  `xml:"Rotation"` // y-axis rotation in degrees
}

func (f *ACPC) xmlBlock() xmlACPC {
	return xmlACPC{
		AC:       f.ac.String(),
		PC:       f.pc.String(),
		Rotation: f.yRotation * 180 / math.Pi,
	}
}

func (f *ACPC) fromXMLBlock(x xmlACPC) error {
	ac, err := xvol.ParseVector3(x.AC)
	if err != nil {
		return err
	}
	pc, err := xvol.ParseVector3(x.PC)
	if err != nil {
		return err
	}
	f.ac = ac
	f.pc = pc
	f.yRotation = x.Rotation * math.Pi / 180
	f.recompute()
	return nil
}

// MarshalXML serializes the ACPC block.
func (f *ACPC) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.Encode(f.xmlBlock())
}

// UnmarshalXML restores the ACPC block.
func (f *ACPC) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var x xmlACPC
	if err := d.DecodeElement(&x, &start); err != nil {
		return err
	}
	return f.fromXMLBlock(x)
}

// Save writes a standalone .xacpc file.
func (f *ACPC) Save(path string) error {
	if filepath.Ext(path) != ACPCExt {
		return xvol.FormatErrorf(path, "ACPC files use the %s extension", ACPCExt)
	}
	data, err := xml.MarshalIndent(f.xmlBlock(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append([]byte(xml.Header), data...), 0644); err != nil {
		return fmt.Errorf("cannot write ACPC %s: %w", path, err)
	}
	return nil
}

// Load reads a standalone .xacpc file.
func (f *ACPC) Load(path string) error {
	if filepath.Ext(path) != ACPCExt {
		return xvol.FormatErrorf(path, "ACPC files use the %s extension", ACPCExt)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read ACPC %s: %w", path, err)
	}
	var x xmlACPC
	if err := xml.Unmarshal(data, &x); err != nil {
		return xvol.FormatErrorf(path, "bad ACPC XML: %v", err)
	}
	return f.fromXMLBlock(x)
}
