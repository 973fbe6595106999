/*
	Package trf implements the geometric transforms associated with volumes:
	rigid and affine maps between coordinate spaces, and the keyed collection
	persisted alongside a volume file.
*/
package trf

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/neurimage/xvol/xvol"
)

// Kind describes the class of a transform.
type Kind string

const (
	Rigid  Kind = "rigid"
	Affine Kind = "affine"
)

// Transform is a 3d homogeneous transform. It is built from rigid parameters
// or raw matrix coefficients and applied to world-coordinate points.
type Transform struct {
	kind Kind
	m    *mat.Dense // 4x4 homogeneous, row-major
}

// Identity returns the identity rigid transform.
func Identity() *Transform {
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		m.Set(i, i, 1)
	}
	return &Transform{kind: Rigid, m: m}
}

// NewRigid builds a rigid transform from Euler rotations (radians, applied
// as Rz*Ry*Rx), a center of rotation, and a translation:
//
//	p' = R*(p - center) + center + translation
func NewRigid(rotations, center, translation xvol.Vector3) *Transform {
	r := rotationMatrix(rotations)
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			m.Set(i, j, r[i][j])
		}
	}
	// Column 3 holds center + translation - R*center.
	for i := 0; i < 3; i++ {
		t := center[i] + translation[i]
		for j := 0; j < 3; j++ {
			t -= r[i][j] * center[j]
		}
		m.Set(i, 3, t)
	}
	m.Set(3, 3, 1)
	return &Transform{kind: Rigid, m: m}
}

// NewAffine wraps 16 row-major coefficients in an affine transform.
func NewAffine(coeffs []float64) (*Transform, error) {
	if len(coeffs) != 16 {
		return nil, xvol.DomainErrorf("affine transform needs 16 coefficients, got %d", len(coeffs))
	}
	m := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			m.Set(i, j, coeffs[i*4+j])
		}
	}
	return &Transform{kind: Affine, m: m}, nil
}

func rotationMatrix(rot xvol.Vector3) [3][3]float64 {
	cx, sx := math.Cos(rot[0]), math.Sin(rot[0])
	cy, sy := math.Cos(rot[1]), math.Sin(rot[1])
	cz, sz := math.Cos(rot[2]), math.Sin(rot[2])
	// R = Rz * Ry * Rx
	return [3][3]float64{
		{cz * cy, cz*sy*sx - sz*cx, cz*sy*cx + sz*sx},
		{sz * cy, sz*sy*sx + cz*cx, sz*sy*cx - cz*sx},
		{-sy, cy * sx, cy * cx},
	}
}

// Kind returns whether the transform is rigid or affine.
func (t *Transform) Kind() Kind { return t.kind }

// Coefficients returns the 16 row-major matrix coefficients.
func (t *Transform) Coefficients() []float64 {
	out := make([]float64, 16)
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			out[i*4+j] = t.m.At(i, j)
		}
	}
	return out
}

// Apply maps a point through the transform.
func (t *Transform) Apply(p xvol.Vector3) xvol.Vector3 {
	var out xvol.Vector3
	for i := 0; i < 3; i++ {
		out[i] = t.m.At(i, 0)*p[0] + t.m.At(i, 1)*p[1] + t.m.At(i, 2)*p[2] + t.m.At(i, 3)
	}
	return out
}

// Inverse returns the inverse transform.
func (t *Transform) Inverse() (*Transform, error) {
	var inv mat.Dense
	if err := inv.Inverse(t.m); err != nil {
		return nil, xvol.DomainErrorf("transform is singular: %v", err)
	}
	return &Transform{kind: t.kind, m: &inv}, nil
}

// Compose returns the transform applying other first, then t.
func (t *Transform) Compose(other *Transform) *Transform {
	var m mat.Dense
	m.Mul(t.m, other.m)
	kind := Rigid
	if t.kind == Affine || other.kind == Affine {
		kind = Affine
	}
	return &Transform{kind: kind, m: &m}
}

// Copy returns a deep copy.
func (t *Transform) Copy() *Transform {
	return &Transform{kind: t.kind, m: mat.DenseCopyOf(t.m)}
}

// Equals compares coefficients within a small tolerance.
func (t *Transform) Equals(other *Transform) bool {
	const eps = 1e-9
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			if math.Abs(t.m.At(i, j)-other.m.At(i, j)) > eps {
				return false
			}
		}
	}
	return true
}

// IsIdentity returns true if the transform is the identity within tolerance.
func (t *Transform) IsIdentity() bool {
	return t.Equals(Identity())
}
