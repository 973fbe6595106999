/*
	This file supports 3d points and vectors in world (millimeter) coordinates,
	including the space-separated triplet form used by the XML file formats.
*/

package xvol

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Vector3 is a 3d vector or point in world coordinates.
type Vector3 [3]float64

// Add returns the component-wise sum of two vectors.
func (v Vector3) Add(v2 Vector3) Vector3 {
	return Vector3{v[0] + v2[0], v[1] + v2[1], v[2] + v2[2]}
}

// Sub returns the component-wise difference of two vectors.
func (v Vector3) Sub(v2 Vector3) Vector3 {
	return Vector3{v[0] - v2[0], v[1] - v2[1], v[2] - v2[2]}
}

// Scale returns the vector scaled by s.
func (v Vector3) Scale(s float64) Vector3 {
	return Vector3{v[0] * s, v[1] * s, v[2] * s}
}

// Mid returns the midpoint between two points.
func (v Vector3) Mid(v2 Vector3) Vector3 {
	return Vector3{(v[0] + v2[0]) / 2, (v[1] + v2[1]) / 2, (v[2] + v2[2]) / 2}
}

// Norm returns the Euclidean length of the vector.
func (v Vector3) Norm() float64 {
	return math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
}

// Distance returns the Euclidean distance between two points.
func (v Vector3) Distance(v2 Vector3) float64 {
	return v.Sub(v2).Norm()
}

// IsZero returns true if every component is exactly zero.
func (v Vector3) IsZero() bool {
	return v[0] == 0 && v[1] == 0 && v[2] == 0
}

// NearlyEquals checks equality within a small absolute tolerance, useful after
// round-tripping through decimal text.
func (v Vector3) NearlyEquals(v2 Vector3) bool {
	const eps = 1e-9
	return math.Abs(v[0]-v2[0]) < eps && math.Abs(v[1]-v2[1]) < eps && math.Abs(v[2]-v2[2]) < eps
}

// String returns the space-separated triplet form used in the XML formats.
func (v Vector3) String() string {
	return fmt.Sprintf("%g %g %g", v[0], v[1], v[2])
}

// ParseVector3 parses a space-separated triplet like "10 20.5 30".
func ParseVector3(s string) (Vector3, error) {
	var v Vector3
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return v, DomainErrorf("expected 3 components in triplet %q, got %d", s, len(fields))
	}
	for i, f := range fields {
		val, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return v, DomainErrorf("bad component %q in triplet %q", f, s)
		}
		v[i] = val
	}
	return v, nil
}

// FormatFloats returns the space-separated form of an arbitrary float slice,
// used for the 9-component direction cosines.
func FormatFloats(vals []float64) string {
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(strs, " ")
}

// ParseFloats parses a space-separated float list, checking for n components.
func ParseFloats(s string, n int) ([]float64, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, DomainErrorf("expected %d components in %q, got %d", n, s, len(fields))
	}
	vals := make([]float64, n)
	for i, f := range fields {
		val, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, DomainErrorf("bad component %q in %q", f, s)
		}
		vals[i] = val
	}
	return vals, nil
}

// FormatInts returns the space-separated form of an int slice, used for sizes.
func FormatInts(vals []int) string {
	strs := make([]string, len(vals))
	for i, v := range vals {
		strs[i] = strconv.Itoa(v)
	}
	return strings.Join(strs, " ")
}

// ParseInts parses a space-separated int list, checking for n components.
func ParseInts(s string, n int) ([]int, error) {
	fields := strings.Fields(s)
	if len(fields) != n {
		return nil, DomainErrorf("expected %d components in %q, got %d", n, s, len(fields))
	}
	vals := make([]int, n)
	for i, f := range fields {
		val, err := strconv.Atoi(f)
		if err != nil {
			return nil, DomainErrorf("bad component %q in %q", f, s)
		}
		vals[i] = val
	}
	return vals, nil
}
