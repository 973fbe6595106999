/*
	This file implements voxelwise math between buffers: arithmetic, relational
	and logical operations, plus the geometric algorithms (crop, flip,
	projection, component reductions) backing derived volumes.
*/

package imagebuf

import (
	"math"

	"github.com/neurimage/xvol/xvol"
)

// ArithOp identifies a voxelwise arithmetic operation.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
)

// RelOp identifies a voxelwise relational or logical operation.
type RelOp int

const (
	OpEq RelOp = iota
	OpNe
	OpGt
	OpGe
	OpLt
	OpLe
	OpAnd
	OpOr
)

// checkCongruent verifies two buffers can be combined voxelwise.
func (b *Buffer) checkCongruent(other *Buffer) error {
	if b.size != other.size || b.components != other.components {
		return xvol.DomainErrorf("buffers %dx%dx%d x%d and %dx%dx%d x%d are not congruent",
			b.size[0], b.size[1], b.size[2], b.components,
			other.size[0], other.size[1], other.size[2], other.components)
	}
	return nil
}

// newResult allocates a result buffer carrying this buffer's geometry.
func (b *Buffer) newResult(dtype xvol.DataType) *Buffer {
	out := New(b.size, b.components, dtype)
	out.spacing = b.spacing
	out.origin = b.origin
	out.directions = b.directions
	return out
}

// Arith combines two congruent buffers voxelwise. The result is float64 so no
// integer operand range is ever exceeded; callers cast if they need otherwise.
// Division by zero yields zero rather than Inf, matching image-algebra
// conventions for masked regions.
func (b *Buffer) Arith(other *Buffer, op ArithOp) (*Buffer, error) {
	if err := b.checkCongruent(other); err != nil {
		return nil, err
	}
	out := b.newResult(xvol.T_float64)
	n := b.NumElements()
	for i := 0; i < n; i++ {
		out.setValue(i, arith(b.value(i), other.value(i), op))
	}
	return out, nil
}

// ArithScalar combines a buffer with a scalar voxelwise.
func (b *Buffer) ArithScalar(s float64, op ArithOp, scalarLeft bool) *Buffer {
	out := b.newResult(xvol.T_float64)
	n := b.NumElements()
	for i := 0; i < n; i++ {
		if scalarLeft {
			out.setValue(i, arith(s, b.value(i), op))
		} else {
			out.setValue(i, arith(b.value(i), s, op))
		}
	}
	return out
}

func arith(a, b float64, op ArithOp) float64 {
	switch op {
	case OpAdd:
		return a + b
	case OpSub:
		return a - b
	case OpMul:
		return a * b
	case OpDiv:
		if b == 0 {
			return 0
		}
		return a / b
	}
	return 0
}

// Neg returns the voxelwise negation as float64.
func (b *Buffer) Neg() *Buffer {
	out := b.newResult(xvol.T_float64)
	n := b.NumElements()
	for i := 0; i < n; i++ {
		out.setValue(i, -b.value(i))
	}
	return out
}

// Rel compares two congruent buffers voxelwise, producing a uint8 mask of
// 0/1 values.
func (b *Buffer) Rel(other *Buffer, op RelOp) (*Buffer, error) {
	if err := b.checkCongruent(other); err != nil {
		return nil, err
	}
	out := b.newResult(xvol.T_uint8)
	n := b.NumElements()
	for i := 0; i < n; i++ {
		if rel(b.value(i), other.value(i), op) {
			out.data[i] = 1
		}
	}
	return out, nil
}

// RelScalar compares a buffer with a scalar voxelwise, producing a uint8 mask.
func (b *Buffer) RelScalar(s float64, op RelOp) *Buffer {
	out := b.newResult(xvol.T_uint8)
	n := b.NumElements()
	for i := 0; i < n; i++ {
		if rel(b.value(i), s, op) {
			out.data[i] = 1
		}
	}
	return out
}

func rel(a, b float64, op RelOp) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpAnd:
		return a != 0 && b != 0
	case OpOr:
		return a != 0 || b != 0
	}
	return false
}

// Mask zeroes every voxel where the uint8 mask is zero. Mask buffers must be
// single-component and share the voxel grid.
func (b *Buffer) Mask(mask *Buffer) (*Buffer, error) {
	if mask.size != b.size || mask.components != 1 {
		return nil, xvol.DomainErrorf("mask %dx%dx%d x%d does not match buffer grid %dx%dx%d",
			mask.size[0], mask.size[1], mask.size[2], mask.components,
			b.size[0], b.size[1], b.size[2])
	}
	out := b.Copy()
	for z := 0; z < b.size[2]; z++ {
		for y := 0; y < b.size[1]; y++ {
			for x := 0; x < b.size[0]; x++ {
				if mask.ValueAt(x, y, z, 0) == 0 {
					for c := 0; c < b.components; c++ {
						out.SetValueAt(x, y, z, c, 0)
					}
				}
			}
		}
	}
	return out, nil
}

// Crop returns the subvolume [min, max] inclusive on each axis, shifting the
// origin so world coordinates are preserved.
func (b *Buffer) Crop(min, max [3]int) (*Buffer, error) {
	for d := 0; d < 3; d++ {
		if min[d] < 0 || max[d] >= b.size[d] || min[d] > max[d] {
			return nil, xvol.DomainErrorf("crop bounds [%v %v] outside volume %dx%dx%d",
				min, max, b.size[0], b.size[1], b.size[2])
		}
	}
	size := [3]int{max[0] - min[0] + 1, max[1] - min[1] + 1, max[2] - min[2] + 1}
	out := New(size, b.components, b.dtype)
	out.spacing = b.spacing
	out.directions = b.directions
	out.origin = xvol.Vector3{
		b.origin[0] + float64(min[0])*b.spacing[0],
		b.origin[1] + float64(min[1])*b.spacing[1],
		b.origin[2] + float64(min[2])*b.spacing[2],
	}
	for z := 0; z < size[2]; z++ {
		for y := 0; y < size[1]; y++ {
			for x := 0; x < size[0]; x++ {
				for c := 0; c < b.components; c++ {
					out.SetValueAt(x, y, z, c, b.ValueAt(x+min[0], y+min[1], z+min[2], c))
				}
			}
		}
	}
	return out, nil
}

// Flip mirrors the buffer along the given axis (0=x, 1=y, 2=z).
func (b *Buffer) Flip(axis int) (*Buffer, error) {
	if axis < 0 || axis > 2 {
		return nil, xvol.DomainErrorf("flip axis %d outside [0,2]", axis)
	}
	out := b.Copy()
	n := b.size
	for z := 0; z < n[2]; z++ {
		for y := 0; y < n[1]; y++ {
			for x := 0; x < n[0]; x++ {
				src := [3]int{x, y, z}
				src[axis] = n[axis] - 1 - src[axis]
				for c := 0; c < b.components; c++ {
					out.SetValueAt(x, y, z, c, b.ValueAt(src[0], src[1], src[2], c))
				}
			}
		}
	}
	return out, nil
}

// ProjectionKind selects the reduction used along a projection axis.
type ProjectionKind int

const (
	MaxProjection ProjectionKind = iota
	MeanProjection
)

// Project collapses the buffer to a single slice along the given axis using
// the requested reduction. The result keeps three dimensions with extent 1 on
// the projected axis so it remains a regular volume.
func (b *Buffer) Project(axis int, kind ProjectionKind) (*Buffer, error) {
	if axis < 0 || axis > 2 {
		return nil, xvol.DomainErrorf("projection axis %d outside [0,2]", axis)
	}
	if b.components != 1 {
		return nil, xvol.DomainErrorf("projection requires a single-component buffer, got %d components", b.components)
	}
	size := b.size
	size[axis] = 1
	out := New(size, 1, xvol.T_float64)
	out.spacing = b.spacing
	out.origin = b.origin
	out.directions = b.directions
	depth := b.size[axis]
	for z := 0; z < size[2]; z++ {
		for y := 0; y < size[1]; y++ {
			for x := 0; x < size[0]; x++ {
				acc := math.Inf(-1)
				var sum float64
				for i := 0; i < depth; i++ {
					pt := [3]int{x, y, z}
					pt[axis] = i
					v := b.ValueAt(pt[0], pt[1], pt[2], 0)
					if v > acc {
						acc = v
					}
					sum += v
				}
				switch kind {
				case MaxProjection:
					out.SetValueAt(x, y, z, 0, acc)
				case MeanProjection:
					out.SetValueAt(x, y, z, 0, sum/float64(depth))
				}
			}
		}
	}
	return out, nil
}

// ComponentReduction selects the per-voxel reduction across components.
type ComponentReduction int

const (
	ComponentMean ComponentReduction = iota
	ComponentMax
	ComponentMin
	ComponentNorm
)

// ReduceComponents collapses a multi-component buffer to one component.
func (b *Buffer) ReduceComponents(kind ComponentReduction) (*Buffer, error) {
	if b.components < 2 {
		return nil, xvol.DomainErrorf("component reduction requires multi-component data, got %d", b.components)
	}
	out := New(b.size, 1, xvol.T_float64)
	out.spacing = b.spacing
	out.origin = b.origin
	out.directions = b.directions
	nvox := b.NumVoxels()
	for i := 0; i < nvox; i++ {
		first := b.value(i * b.components)
		min, max, sum, sq := first, first, first, first*first
		for c := 1; c < b.components; c++ {
			v := b.value(i*b.components + c)
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
			sum += v
			sq += v * v
		}
		var v float64
		switch kind {
		case ComponentMean:
			v = sum / float64(b.components)
		case ComponentMax:
			v = max
		case ComponentMin:
			v = min
		case ComponentNorm:
			v = math.Sqrt(sq)
		}
		out.setValue(i, v)
	}
	return out, nil
}

// ExtractComponent returns one component of a multi-component buffer.
func (b *Buffer) ExtractComponent(c int) (*Buffer, error) {
	if c < 0 || c >= b.components {
		return nil, xvol.DomainErrorf("component %d outside [0,%d]", c, b.components-1)
	}
	out := New(b.size, 1, b.dtype)
	out.spacing = b.spacing
	out.origin = b.origin
	out.directions = b.directions
	nvox := b.NumVoxels()
	for i := 0; i < nvox; i++ {
		out.setValue(i, b.value(i*b.components+c))
	}
	return out, nil
}

// RemoveBottomSlices drops n slices from the bottom of the z axis, the usual
// way of clearing neck anatomy from a head acquisition.
func (b *Buffer) RemoveBottomSlices(n int) (*Buffer, error) {
	if n < 0 || n >= b.size[2] {
		return nil, xvol.DomainErrorf("cannot remove %d slices from a %d-slice volume", n, b.size[2])
	}
	return b.Crop([3]int{0, 0, n}, [3]int{b.size[0] - 1, b.size[1] - 1, b.size[2] - 1})
}
