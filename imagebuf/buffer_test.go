package imagebuf

import (
	"bytes"
	"testing"

	"github.com/neurimage/xvol/xvol"
)

func TestValueRoundTrip(t *testing.T) {
	for _, dtype := range []xvol.DataType{
		xvol.T_uint8, xvol.T_int8, xvol.T_uint16, xvol.T_int16,
		xvol.T_uint32, xvol.T_int32, xvol.T_float32, xvol.T_float64,
	} {
		b := New([3]int{4, 3, 2}, 1, dtype)
		b.SetValueAt(2, 1, 1, 0, 42)
		if got := b.ValueAt(2, 1, 1, 0); got != 42 {
			t.Errorf("%s: got %g, want 42", dtype, got)
		}
		if got := b.ValueAt(0, 0, 0, 0); got != 0 {
			t.Errorf("%s: untouched voxel got %g", dtype, got)
		}
	}
}

func TestIntegerClamping(t *testing.T) {
	b := New([3]int{2, 1, 1}, 1, xvol.T_uint8)
	b.SetValueAt(0, 0, 0, 0, 300)
	b.SetValueAt(1, 0, 0, 0, -5)
	if got := b.ValueAt(0, 0, 0, 0); got != 255 {
		t.Errorf("overflow: got %g, want 255", got)
	}
	if got := b.ValueAt(1, 0, 0, 0); got != 0 {
		t.Errorf("underflow: got %g, want 0", got)
	}

	s := New([3]int{1, 1, 1}, 1, xvol.T_int16)
	s.SetValueAt(0, 0, 0, 0, 12.7)
	if got := s.ValueAt(0, 0, 0, 0); got != 13 {
		t.Errorf("rounding: got %g, want 13", got)
	}
}

func TestMinMaxQuantile(t *testing.T) {
	b := New([3]int{10, 1, 1}, 1, xvol.T_float32)
	for i := 0; i < 10; i++ {
		b.SetValueAt(i, 0, 0, 0, float64(i))
	}
	min, max := b.MinMax()
	if min != 0 || max != 9 {
		t.Errorf("MinMax: got [%g,%g], want [0,9]", min, max)
	}
	if got := b.Quantile(0); got != 0 {
		t.Errorf("Quantile(0): got %g", got)
	}
	if got := b.Quantile(1); got != 9 {
		t.Errorf("Quantile(1): got %g", got)
	}
	mid := b.Quantile(0.5)
	if mid < 4 || mid > 5 {
		t.Errorf("Quantile(0.5): got %g, want within [4,5]", mid)
	}
}

func TestHashDeterminism(t *testing.T) {
	a := New([3]int{4, 4, 4}, 1, xvol.T_uint16)
	b := New([3]int{4, 4, 4}, 1, xvol.T_uint16)
	for z := 0; z < 4; z++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				v := float64(x + 10*y + 100*z)
				a.SetValueAt(x, y, z, 0, v)
				b.SetValueAt(x, y, z, 0, v)
			}
		}
	}
	if a.Hash() != b.Hash() {
		t.Error("identical content must hash equal")
	}
	b.SetValueAt(3, 3, 3, 0, 9999)
	if a.Hash() == b.Hash() {
		t.Error("single-voxel change must change the hash")
	}
	if len(a.Hash()) != 64 {
		t.Errorf("hash length %d, want 64 hex chars", len(a.Hash()))
	}
}

func TestSameFOV(t *testing.T) {
	a := New([3]int{4, 4, 4}, 1, xvol.T_uint8)
	b := New([3]int{4, 4, 4}, 1, xvol.T_float32)
	if !a.SameFOV(b) {
		t.Error("same size and spacing should share FOV regardless of datatype")
	}
	b.SetSpacing(xvol.Vector3{2, 1, 1})
	if a.SameFOV(b) {
		t.Error("different spacing must break FOV equality")
	}
	c := New([3]int{4, 4, 5}, 1, xvol.T_uint8)
	if a.SameFOV(c) {
		t.Error("different size must break FOV equality")
	}
}

func TestFileOrderRoundTrip(t *testing.T) {
	b := New([3]int{3, 2, 2}, 2, xvol.T_int16)
	n := 0
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 3; x++ {
				for c := 0; c < 2; c++ {
					b.SetValueAt(x, y, z, c, float64(n))
					n++
				}
			}
		}
	}
	file := b.FileOrderBytes()
	if len(file) != len(b.Bytes()) {
		t.Fatalf("file order payload is %d bytes, want %d", len(file), len(b.Bytes()))
	}

	back := New([3]int{3, 2, 2}, 2, xvol.T_int16)
	if err := back.SetFileOrderBytes(file); err != nil {
		t.Fatalf("SetFileOrderBytes: %v", err)
	}
	if !bytes.Equal(back.Bytes(), b.Bytes()) {
		t.Error("native layout changed across file order round trip")
	}
	if err := back.SetFileOrderBytes(file[:len(file)-1]); err == nil {
		t.Error("expected error on truncated payload")
	}
}

func TestCast(t *testing.T) {
	b := New([3]int{2, 1, 1}, 1, xvol.T_float32)
	b.SetValueAt(0, 0, 0, 0, 3.6)
	b.SetValueAt(1, 0, 0, 0, -1)
	b.SetOrigin(xvol.Vector3{5, 6, 7})

	c := b.Cast(xvol.T_uint8)
	if c.DataType() != xvol.T_uint8 {
		t.Fatalf("cast datatype %s", c.DataType())
	}
	if got := c.ValueAt(0, 0, 0, 0); got != 4 {
		t.Errorf("cast value: got %g, want 4", got)
	}
	if got := c.ValueAt(1, 0, 0, 0); got != 0 {
		t.Errorf("cast clamp: got %g, want 0", got)
	}
	if c.Origin() != b.Origin() {
		t.Error("cast must keep geometry")
	}
}

func TestFieldOfViewCenter(t *testing.T) {
	b := New([3]int{10, 20, 5}, 1, xvol.T_uint8)
	b.SetSpacing(xvol.Vector3{1, 1, 2})
	b.SetOrigin(xvol.Vector3{0, 0, 0})
	got := b.FieldOfViewCenter()
	want := xvol.Vector3{4.5, 9.5, 4}
	if !got.NearlyEquals(want) {
		t.Errorf("FieldOfViewCenter: got %v, want %v", got, want)
	}
}
