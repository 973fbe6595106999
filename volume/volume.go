/*
	Package volume implements the central volume entity: an image buffer
	composed with patient identity, acquisition, display, and AC-PC frame
	attributes, a dual identifier scheme, an associated transform collection,
	and the hybrid XML/binary persistence format.

	A volume carries two identifiers. The array ID is the content hash of the
	voxel buffer, recomputed whenever the buffer changes and never editable.
	The space ID is the logical coordinate-space identifier shared by every
	volume occupying the same physical space; it defaults to the array ID and
	can diverge once set explicitly. The space ID keys the transform
	collection.
*/
package volume

import (
	"math"
	"path/filepath"
	"strings"

	"github.com/twinj/uuid"

	"github.com/neurimage/xvol/attr"
	"github.com/neurimage/xvol/imagebuf"
	"github.com/neurimage/xvol/trf"
	"github.com/neurimage/xvol/xvol"
)

// Orientation is the anatomical orientation classified from the direction
// cosines.
type Orientation int

const (
	Unspecified Orientation = iota
	Axial
	Coronal
	Sagittal
)

func (o Orientation) String() string {
	switch o {
	case Axial:
		return "axial"
	case Coronal:
		return "coronal"
	case Sagittal:
		return "sagittal"
	}
	return "unspecified"
}

// OrientationFromString parses an orientation name.
func OrientationFromString(s string) Orientation {
	switch s {
	case "axial":
		return Axial
	case "coronal":
		return Coronal
	case "sagittal":
		return Sagittal
	}
	return Unspecified
}

// Volume is the aggregate image entity.
type Volume struct {
	buf         *imagebuf.Buffer
	arrayID     string // content hash, never user-editable
	spaceID     string // empty until explicitly set; falls back to arrayID
	path        string
	compressed  bool
	slope       float64
	intercept   float64
	orientation Orientation

	identity    *attr.Identity
	acquisition *attr.Acquisition
	display     *attr.Display
	acpc        *attr.ACPC
	transforms  *trf.Collection
}

// New returns an empty volume with default attributes and no buffer.
func New() *Volume {
	v := &Volume{
		slope:       1,
		identity:    attr.NewIdentity(),
		acquisition: attr.NewAcquisition(),
		display:     attr.NewDisplay(),
		acpc:        attr.NewACPC(),
		transforms:  trf.NewCollection(),
	}
	v.identity.SetParent(v)
	v.acquisition.SetParent(v)
	v.display.SetParent(v)
	v.acpc.SetParent(v)
	return v
}

// NewFromBuffer wraps an image buffer in a volume and derives its state.
func NewFromBuffer(buf *imagebuf.Buffer) *Volume {
	v := New()
	v.buf = buf
	v.recompute()
	return v
}

// Copy returns a deep copy: buffer, attributes, space ID, and transforms.
func (v *Volume) Copy() *Volume {
	dup := New()
	if v.buf != nil {
		dup.buf = v.buf.Copy()
	}
	dup.recompute()
	dup.CopyAttributesFrom(v, CopyAll)
	dup.path = v.path
	dup.compressed = v.compressed
	dup.slope = v.slope
	dup.intercept = v.intercept
	return dup
}

// HasBuffer returns true once the volume holds voxel data.
func (v *Volume) HasBuffer() bool { return v.buf != nil }

// Buffer returns the underlying image buffer, which may be nil.
func (v *Volume) Buffer() *imagebuf.Buffer { return v.buf }

// SetBuffer replaces the voxel buffer and re-derives array ID, orientation,
// and display range.
func (v *Volume) SetBuffer(buf *imagebuf.Buffer) {
	v.buf = buf
	v.recompute()
}

// MutatedBuffer must be called after in-place writes to the buffer so the
// derived state tracks the new content.
func (v *Volume) MutatedBuffer() { v.recompute() }

// recompute re-derives everything that depends on buffer content or geometry:
// array ID, orientation, and the display range (window resets with the range).
func (v *Volume) recompute() {
	if v.buf == nil {
		v.arrayID = ""
		v.orientation = Unspecified
		return
	}
	v.arrayID = v.buf.Hash()
	v.orientation = classifyOrientation(v.buf.Directions())
	min, max := v.buf.MinMax()
	oldMin, oldMax := v.display.Range()
	if min != oldMin || max != oldMax {
		// Errors are impossible here since max >= min by construction.
		v.display.SetRange(min, max)
		v.display.SetDefaultWindow()
	}
}

// classifyOrientation maps the dominant axis of each direction-cosine vector
// to an anatomical orientation: axial is (x,y,z) order, coronal (x,z,y),
// sagittal (y,z,x).
func classifyOrientation(d [9]float64) Orientation {
	var dom [3]int
	for i := 0; i < 3; i++ {
		best := 0
		for j := 1; j < 3; j++ {
			if math.Abs(d[i*3+j]) > math.Abs(d[i*3+best]) {
				best = j
			}
		}
		dom[i] = best
	}
	switch dom {
	case [3]int{0, 1, 2}:
		return Axial
	case [3]int{0, 2, 1}:
		return Coronal
	case [3]int{1, 2, 0}:
		return Sagittal
	}
	return Unspecified
}

// --- identifiers ---

// ArrayID returns the content hash of the voxel buffer, or xvol.UnknownID if
// the volume has no buffer.
func (v *Volume) ArrayID() string {
	if v.arrayID == "" {
		return xvol.UnknownID
	}
	return v.arrayID
}

// SpaceID returns the logical coordinate-space identifier: the explicitly
// assigned ID if any, else the array ID, else xvol.UnknownID.
func (v *Volume) SpaceID() string {
	if v.spaceID != "" {
		return v.spaceID
	}
	return v.ArrayID()
}

// SetSpaceID assigns the coordinate-space identifier and propagates it into
// the owned transform collection's reference field.
func (v *Volume) SetSpaceID(id string) {
	v.spaceID = id
	v.transforms.SetReferenceID(v.SpaceID())
}

// NewSpaceID mints a fresh space identifier, used when a result volume
// occupies a brand-new space that no other volume shares yet.
func (v *Volume) NewSpaceID() string {
	id := uuid.NewV4().String()
	v.SetSpaceID(id)
	return id
}

// --- attribute sub-objects ---

func (v *Volume) Identity() *attr.Identity       { return v.identity }
func (v *Volume) Acquisition() *attr.Acquisition { return v.acquisition }
func (v *Volume) Display() *attr.Display         { return v.display }
func (v *Volume) ACPC() *attr.ACPC               { return v.acpc }

// Transforms returns the owned transform collection.
func (v *Volume) Transforms() *trf.Collection { return v.transforms }

// SetTransforms replaces the transform collection. Unless force is set, the
// collection's reference ID must agree with the volume's space ID.
func (v *Volume) SetTransforms(c *trf.Collection, force bool) error {
	if !force && c.ReferenceID() != v.SpaceID() {
		return xvol.DomainErrorf("transform collection reference %q disagrees with volume space %q",
			c.ReferenceID(), v.SpaceID())
	}
	v.transforms = c
	v.transforms.SetReferenceID(v.SpaceID())
	return nil
}

// --- attr.Parent implementation ---

// DataType returns the voxel datatype, or uint8 for a bufferless volume.
func (v *Volume) DataType() xvol.DataType {
	if v.buf == nil {
		return xvol.T_uint8
	}
	return v.buf.DataType()
}

// Components returns the number of values per voxel.
func (v *Volume) Components() int {
	if v.buf == nil {
		return 1
	}
	return v.buf.Components()
}

// ScalarRange returns the buffer's scalar extent.
func (v *Volume) ScalarRange() (float64, float64) {
	if v.buf == nil {
		return 0, 0
	}
	return v.buf.MinMax()
}

// ScalarQuantile returns the scalar value at cumulative fraction q.
func (v *Volume) ScalarQuantile(q float64) float64 {
	if v.buf == nil {
		return 0
	}
	return v.buf.Quantile(q)
}

// FieldOfViewCenter returns the world coordinate of the volume center.
func (v *Volume) FieldOfViewCenter() xvol.Vector3 {
	if v.buf == nil {
		return xvol.Vector3{}
	}
	return v.buf.FieldOfViewCenter()
}

// BasePath returns the file path without extension, or "" if never saved or
// loaded.
func (v *Volume) BasePath() string {
	if v.path == "" {
		return ""
	}
	return strings.TrimSuffix(v.path, filepath.Ext(v.path))
}

// --- file-path bookkeeping ---

// Filename returns the volume's file path, or "" if never saved or loaded.
func (v *Volume) Filename() string { return v.path }

// SetFilename records the file path used by the next Save.
func (v *Volume) SetFilename(path string) { v.path = path }

// Compressed returns whether Save compresses the array payload.
func (v *Volume) Compressed() bool { return v.compressed }

// SetCompressed selects zlib compression of the array payload on Save.
func (v *Volume) SetCompressed(compressed bool) { v.compressed = compressed }

// Slope returns the rescale slope applied by consumers of the raw values.
func (v *Volume) Slope() float64 { return v.slope }

// Intercept returns the rescale intercept.
func (v *Volume) Intercept() float64 { return v.intercept }

// SetRescale records the slope/intercept pair mapping stored values to
// physical values.
func (v *Volume) SetRescale(slope, intercept float64) error {
	if slope == 0 {
		return xvol.DomainErrorf("rescale slope must be non-zero")
	}
	v.slope = slope
	v.intercept = intercept
	return nil
}

// OrientationKind returns the cached orientation classification.
func (v *Volume) OrientationKind() Orientation { return v.orientation }

// prefixedPath derives an output path by prefixing this volume's basename,
// the naming convention of every derived-image factory.
func (v *Volume) prefixedPath(prefix string) string {
	if v.path == "" {
		return ""
	}
	dir := filepath.Dir(v.path)
	base := filepath.Base(v.path)
	return filepath.Join(dir, prefix+"_"+base)
}

// --- attribute copying ---

// CopyFlags selects which attribute groups CopyAttributesFrom transfers.
type CopyFlags uint8

const (
	CopyIdentity CopyFlags = 1 << iota
	CopyAcquisition
	CopyDisplay
	CopyACPC
	CopySpaceID
	CopyTransforms

	// CopyAll transfers every group.
	CopyAll = CopyIdentity | CopyAcquisition | CopyDisplay | CopyACPC | CopySpaceID | CopyTransforms

	// CopyProperties transfers everything except the space ID and transform
	// collection, used when a result occupies a different space than its
	// input.
	CopyProperties = CopyIdentity | CopyAcquisition | CopyDisplay | CopyACPC
)

// CopyAttributesFrom copies the selected attribute groups from another
// volume. This is the mechanism by which algorithm results inherit provenance
// from their inputs.
func (v *Volume) CopyAttributesFrom(other *Volume, flags CopyFlags) {
	if other == nil {
		return
	}
	if flags&CopyIdentity != 0 {
		v.identity.CopyFrom(other.identity)
	}
	if flags&CopyAcquisition != 0 {
		v.acquisition.CopyFrom(other.acquisition)
	}
	if flags&CopyDisplay != 0 {
		v.display.CopyFrom(other.display)
	}
	if flags&CopyACPC != 0 {
		v.acpc.CopyFrom(other.acpc)
	}
	if flags&CopySpaceID != 0 {
		v.spaceID = other.spaceID
		v.transforms.SetReferenceID(v.SpaceID())
	}
	if flags&CopyTransforms != 0 {
		v.transforms = other.transforms.Copy()
		v.transforms.SetReferenceID(v.SpaceID())
	}
}

// CopyAttributesTo is the mirror of CopyAttributesFrom.
func (v *Volume) CopyAttributesTo(other *Volume, flags CopyFlags) {
	if other != nil {
		other.CopyAttributesFrom(v, flags)
	}
}

// CopyPropertiesFrom copies identity, acquisition, display, and ACPC but not
// the space ID or transform collection.
func (v *Volume) CopyPropertiesFrom(other *Volume) {
	v.CopyAttributesFrom(other, CopyProperties)
}

// CopyPropertiesTo is the mirror of CopyPropertiesFrom.
func (v *Volume) CopyPropertiesTo(other *Volume) {
	if other != nil {
		other.CopyPropertiesFrom(v)
	}
}

// --- transform accessors ---

// HasTransform reports whether a transform to the given space exists.
func (v *Volume) HasTransform(spaceID string) bool {
	return v.transforms.Has(spaceID)
}

// TransformFromID looks up the transform to the given space.
func (v *Volume) TransformFromID(spaceID string) (*trf.Transform, error) {
	return v.transforms.Get(spaceID)
}

// ICBM152Transform returns the transform to the ICBM152 template space. A
// volume already in that space maps to it by the identity transform, which is
// synthesized rather than required to be stored.
func (v *Volume) ICBM152Transform() (*trf.Transform, error) {
	if v.SpaceID() == xvol.ICBM152ID {
		return trf.Identity(), nil
	}
	return v.transforms.Get(xvol.ICBM152ID)
}

// LeksellTransform returns the transform to the Leksell frame space.
func (v *Volume) LeksellTransform() (*trf.Transform, error) {
	return v.transforms.Get(xvol.LeksellID)
}

// --- arithmetic operators ---

// wrapDerived finishes an algebra result: the new volume keeps the left
// operand's identity, acquisition context, and ACPC frame, then the sequence
// is forced to algebra-map (which drags modality and unit along), so scan
// date, frame, and DOF survive while the clinical measurement semantics do
// not. Display state is not carried.
func (v *Volume) wrapDerived(buf *imagebuf.Buffer) *Volume {
	out := NewFromBuffer(buf)
	out.CopyAttributesFrom(v, CopyIdentity|CopyAcquisition|CopyACPC)
	// A derived image is not a measurement.
	out.acquisition.SetSequence(attr.SeqAlgebraMap)
	out.path = v.prefixedPath("algebra")
	return out
}

func (v *Volume) binaryOp(other *Volume, op imagebuf.ArithOp) (*Volume, error) {
	if v.buf == nil || other == nil || other.buf == nil {
		return nil, xvol.PreconditionErrorf("arithmetic requires buffers on both operands")
	}
	buf, err := v.buf.Arith(other.buf, op)
	if err != nil {
		return nil, err
	}
	return v.wrapDerived(buf), nil
}

// Add returns the voxelwise sum as a new derived volume.
func (v *Volume) Add(other *Volume) (*Volume, error) { return v.binaryOp(other, imagebuf.OpAdd) }

// Sub returns the voxelwise difference as a new derived volume.
func (v *Volume) Sub(other *Volume) (*Volume, error) { return v.binaryOp(other, imagebuf.OpSub) }

// Mul returns the voxelwise product as a new derived volume.
func (v *Volume) Mul(other *Volume) (*Volume, error) { return v.binaryOp(other, imagebuf.OpMul) }

// Div returns the voxelwise quotient as a new derived volume, with division
// by zero yielding zero.
func (v *Volume) Div(other *Volume) (*Volume, error) { return v.binaryOp(other, imagebuf.OpDiv) }

// AddScalar returns the volume plus a scalar as a new derived volume.
func (v *Volume) AddScalar(s float64) (*Volume, error) { return v.scalarOp(s, imagebuf.OpAdd) }

// SubScalar returns the volume minus a scalar as a new derived volume.
func (v *Volume) SubScalar(s float64) (*Volume, error) { return v.scalarOp(s, imagebuf.OpSub) }

// MulScalar returns the volume scaled by s as a new derived volume.
func (v *Volume) MulScalar(s float64) (*Volume, error) { return v.scalarOp(s, imagebuf.OpMul) }

// DivScalar returns the volume divided by s as a new derived volume.
func (v *Volume) DivScalar(s float64) (*Volume, error) { return v.scalarOp(s, imagebuf.OpDiv) }

func (v *Volume) scalarOp(s float64, op imagebuf.ArithOp) (*Volume, error) {
	if v.buf == nil {
		return nil, xvol.PreconditionErrorf("arithmetic requires a buffer")
	}
	return v.wrapDerived(v.buf.ArithScalar(s, op, false)), nil
}

// Neg returns the voxelwise negation as a new derived volume.
func (v *Volume) Neg() (*Volume, error) {
	if v.buf == nil {
		return nil, xvol.PreconditionErrorf("arithmetic requires a buffer")
	}
	return v.wrapDerived(v.buf.Neg()), nil
}

// Compare returns the voxelwise relational mask of two volumes as a new
// derived volume of 0/1 uint8 values.
func (v *Volume) Compare(other *Volume, op imagebuf.RelOp) (*Volume, error) {
	if v.buf == nil || other == nil || other.buf == nil {
		return nil, xvol.PreconditionErrorf("comparison requires buffers on both operands")
	}
	buf, err := v.buf.Rel(other.buf, op)
	if err != nil {
		return nil, err
	}
	return v.wrapDerived(buf), nil
}

// CompareScalar returns the voxelwise relational mask against a scalar.
func (v *Volume) CompareScalar(s float64, op imagebuf.RelOp) (*Volume, error) {
	if v.buf == nil {
		return nil, xvol.PreconditionErrorf("comparison requires a buffer")
	}
	return v.wrapDerived(v.buf.RelScalar(s, op)), nil
}

// Cast returns the volume converted to another datatype. The result occupies
// the same space, so every attribute group including the space ID and
// transforms is carried over.
func (v *Volume) Cast(dtype xvol.DataType) (*Volume, error) {
	if v.buf == nil {
		return nil, xvol.PreconditionErrorf("cast requires a buffer")
	}
	out := NewFromBuffer(v.buf.Cast(dtype))
	out.CopyAttributesFrom(v, CopyAll)
	out.path = v.path
	return out, nil
}
