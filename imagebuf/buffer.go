/*
	Package imagebuf implements the n-dimensional voxel buffer underlying a
	volume: typed scalar storage with geometry (spacing, origin, direction
	cosines), content hashing, scalar statistics, and voxelwise math.

	The in-memory layout interleaves components with x varying fastest:
	element index = ((z*ny + y)*nx + x)*nc + c. File serialization uses
	component-major (component, z, y, x) order; see FileOrderBytes.
*/
package imagebuf

import (
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"

	"github.com/minio/blake2b-simd"
	"gonum.org/v1/gonum/stat"

	"github.com/neurimage/xvol/xvol"
)

// IdentityDirections is the direction-cosine matrix of an axially oriented
// volume, stored row-major as the x, y, z direction vectors.
var IdentityDirections = [9]float64{1, 0, 0, 0, 1, 0, 0, 0, 1}

// Buffer holds the voxel data and geometry of one image volume.
type Buffer struct {
	size       [3]int // voxels along x, y, z
	components int
	dtype      xvol.DataType
	spacing    xvol.Vector3 // mm per voxel along x, y, z
	origin     xvol.Vector3
	directions [9]float64
	data       []byte // little-endian, component-interleaved, x fastest
}

// New returns a zero-filled buffer of the given shape.
func New(size [3]int, components int, dtype xvol.DataType) *Buffer {
	if components < 1 {
		components = 1
	}
	n := size[0] * size[1] * size[2] * components * int(xvol.DataTypeBytes(dtype))
	return &Buffer{
		size:       size,
		components: components,
		dtype:      dtype,
		spacing:    xvol.Vector3{1, 1, 1},
		directions: IdentityDirections,
		data:       make([]byte, n),
	}
}

// NewFromBytes wraps raw little-endian voxel bytes in a buffer.
func NewFromBytes(size [3]int, components int, dtype xvol.DataType, data []byte) (*Buffer, error) {
	buf := New(size, components, dtype)
	if len(data) != len(buf.data) {
		return nil, xvol.DomainErrorf("voxel payload is %d bytes, want %d for %dx%dx%d %s x%d",
			len(data), len(buf.data), size[0], size[1], size[2], dtype, components)
	}
	copy(buf.data, data)
	return buf, nil
}

func (b *Buffer) Size() [3]int            { return b.size }
func (b *Buffer) Components() int         { return b.components }
func (b *Buffer) DataType() xvol.DataType { return b.dtype }
func (b *Buffer) Spacing() xvol.Vector3   { return b.spacing }
func (b *Buffer) Origin() xvol.Vector3    { return b.origin }
func (b *Buffer) Directions() [9]float64  { return b.directions }

// NumVoxels returns the number of voxels, not counting components.
func (b *Buffer) NumVoxels() int {
	return b.size[0] * b.size[1] * b.size[2]
}

// NumElements returns the number of scalar values including components.
func (b *Buffer) NumElements() int {
	return b.NumVoxels() * b.components
}

func (b *Buffer) SetSpacing(s xvol.Vector3) { b.spacing = s }
func (b *Buffer) SetOrigin(o xvol.Vector3)  { b.origin = o }

func (b *Buffer) SetDirections(d [9]float64) { b.directions = d }

// Bytes returns the native-order voxel bytes. The slice aliases the buffer.
func (b *Buffer) Bytes() []byte { return b.data }

// SetBytes replaces the voxel bytes, which must match the buffer size.
func (b *Buffer) SetBytes(data []byte) error {
	if len(data) != len(b.data) {
		return xvol.DomainErrorf("voxel payload is %d bytes, want %d", len(data), len(b.data))
	}
	copy(b.data, data)
	return nil
}

// Copy returns a deep copy of the buffer.
func (b *Buffer) Copy() *Buffer {
	dup := *b
	dup.data = make([]byte, len(b.data))
	copy(dup.data, b.data)
	return &dup
}

// SameFOV returns true if two buffers share field of view: same voxel counts
// and same spacing.
func (b *Buffer) SameFOV(other *Buffer) bool {
	return b.size == other.size && b.spacing == other.spacing
}

// elementIndex computes the scalar index for voxel (x,y,z) component c.
func (b *Buffer) elementIndex(x, y, z, c int) int {
	return ((z*b.size[1]+y)*b.size[0]+x)*b.components + c
}

// ValueAt returns the scalar at voxel (x,y,z) component c as a float64.
func (b *Buffer) ValueAt(x, y, z, c int) float64 {
	return b.value(b.elementIndex(x, y, z, c))
}

// SetValueAt stores a scalar at voxel (x,y,z) component c, clamping and
// rounding as needed for integer datatypes.
func (b *Buffer) SetValueAt(x, y, z, c int, v float64) {
	b.setValue(b.elementIndex(x, y, z, c), v)
}

func (b *Buffer) value(i int) float64 {
	off := i * int(xvol.DataTypeBytes(b.dtype))
	switch b.dtype {
	case xvol.T_uint8:
		return float64(b.data[off])
	case xvol.T_int8:
		return float64(int8(b.data[off]))
	case xvol.T_uint16:
		return float64(binary.LittleEndian.Uint16(b.data[off:]))
	case xvol.T_int16:
		return float64(int16(binary.LittleEndian.Uint16(b.data[off:])))
	case xvol.T_uint32:
		return float64(binary.LittleEndian.Uint32(b.data[off:]))
	case xvol.T_int32:
		return float64(int32(binary.LittleEndian.Uint32(b.data[off:])))
	case xvol.T_uint64:
		return float64(binary.LittleEndian.Uint64(b.data[off:]))
	case xvol.T_int64:
		return float64(int64(binary.LittleEndian.Uint64(b.data[off:])))
	case xvol.T_float32:
		return float64(math.Float32frombits(binary.LittleEndian.Uint32(b.data[off:])))
	case xvol.T_float64:
		return math.Float64frombits(binary.LittleEndian.Uint64(b.data[off:]))
	}
	return 0
}

func (b *Buffer) setValue(i int, v float64) {
	off := i * int(xvol.DataTypeBytes(b.dtype))
	switch b.dtype {
	case xvol.T_uint8:
		b.data[off] = uint8(clamp(v, 0, math.MaxUint8))
	case xvol.T_int8:
		b.data[off] = uint8(int8(clamp(v, math.MinInt8, math.MaxInt8)))
	case xvol.T_uint16:
		binary.LittleEndian.PutUint16(b.data[off:], uint16(clamp(v, 0, math.MaxUint16)))
	case xvol.T_int16:
		binary.LittleEndian.PutUint16(b.data[off:], uint16(int16(clamp(v, math.MinInt16, math.MaxInt16))))
	case xvol.T_uint32:
		binary.LittleEndian.PutUint32(b.data[off:], uint32(clamp(v, 0, math.MaxUint32)))
	case xvol.T_int32:
		binary.LittleEndian.PutUint32(b.data[off:], uint32(int32(clamp(v, math.MinInt32, math.MaxInt32))))
	case xvol.T_uint64:
		binary.LittleEndian.PutUint64(b.data[off:], uint64(clamp(v, 0, math.MaxUint64)))
	case xvol.T_int64:
		binary.LittleEndian.PutUint64(b.data[off:], uint64(int64(clamp(v, math.MinInt64, math.MaxInt64))))
	case xvol.T_float32:
		binary.LittleEndian.PutUint32(b.data[off:], math.Float32bits(float32(v)))
	case xvol.T_float64:
		binary.LittleEndian.PutUint64(b.data[off:], math.Float64bits(v))
	}
}

func clamp(v, lo, hi float64) float64 {
	v = math.Round(v)
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Floats returns every scalar value as float64 in native order.
func (b *Buffer) Floats() []float64 {
	n := b.NumElements()
	vals := make([]float64, n)
	for i := 0; i < n; i++ {
		vals[i] = b.value(i)
	}
	return vals
}

// MinMax scans the buffer for its scalar extent.
func (b *Buffer) MinMax() (min, max float64) {
	n := b.NumElements()
	if n == 0 {
		return 0, 0
	}
	min = b.value(0)
	max = min
	for i := 1; i < n; i++ {
		v := b.value(i)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return
}

// Quantile returns the scalar value at cumulative fraction q in [0,1].
func (b *Buffer) Quantile(q float64) float64 {
	vals := b.Floats()
	sort.Float64s(vals)
	return stat.Quantile(q, stat.Empirical, vals, nil)
}

// Hash returns the blake2b-256 digest of the voxel bytes in hex. Two buffers
// with identical content always hash identically regardless of geometry.
func (b *Buffer) Hash() string {
	h, err := blake2b.New(&blake2b.Config{Size: 32})
	if err != nil {
		// Config is static so this cannot fail at runtime.
		panic(err)
	}
	h.Write(b.data)
	return hex.EncodeToString(h.Sum(nil))
}

// Cast returns a new buffer converted to another datatype, clamping integer
// targets to their representable range.
func (b *Buffer) Cast(dtype xvol.DataType) *Buffer {
	out := New(b.size, b.components, dtype)
	out.spacing = b.spacing
	out.origin = b.origin
	out.directions = b.directions
	n := b.NumElements()
	for i := 0; i < n; i++ {
		out.setValue(i, b.value(i))
	}
	return out
}

// FileOrderBytes returns the voxel bytes reordered to (component, z, y, x)
// with x varying fastest inside each component plane, the order used by the
// volume file format. Single-component buffers are returned as is.
func (b *Buffer) FileOrderBytes() []byte {
	if b.components == 1 {
		return b.data
	}
	width := int(xvol.DataTypeBytes(b.dtype))
	out := make([]byte, len(b.data))
	nvox := b.NumVoxels()
	for c := 0; c < b.components; c++ {
		for i := 0; i < nvox; i++ {
			src := (i*b.components + c) * width
			dst := (c*nvox + i) * width
			copy(out[dst:dst+width], b.data[src:src+width])
		}
	}
	return out
}

// SetFileOrderBytes fills the buffer from (component, z, y, x)-ordered bytes.
func (b *Buffer) SetFileOrderBytes(data []byte) error {
	if len(data) != len(b.data) {
		return xvol.DomainErrorf("voxel payload is %d bytes, want %d", len(data), len(b.data))
	}
	if b.components == 1 {
		copy(b.data, data)
		return nil
	}
	width := int(xvol.DataTypeBytes(b.dtype))
	nvox := b.NumVoxels()
	for c := 0; c < b.components; c++ {
		for i := 0; i < nvox; i++ {
			src := (c*nvox + i) * width
			dst := (i*b.components + c) * width
			copy(b.data[dst:dst+width], data[src:src+width])
		}
	}
	return nil
}

// FieldOfViewCenter returns the world coordinate of the volume center.
func (b *Buffer) FieldOfViewCenter() xvol.Vector3 {
	return xvol.Vector3{
		b.origin[0] + float64(b.size[0]-1)*b.spacing[0]/2,
		b.origin[1] + float64(b.size[1]-1)*b.spacing[1]/2,
		b.origin[2] + float64(b.size[2]-1)*b.spacing[2]/2,
	}
}
