package imagebuf

import (
	"math"
	"testing"

	"github.com/neurimage/xvol/xvol"
)

func seq(size [3]int, dtype xvol.DataType) *Buffer {
	b := New(size, 1, dtype)
	n := 0
	for z := 0; z < size[2]; z++ {
		for y := 0; y < size[1]; y++ {
			for x := 0; x < size[0]; x++ {
				b.SetValueAt(x, y, z, 0, float64(n))
				n++
			}
		}
	}
	return b
}

func TestArith(t *testing.T) {
	a := seq([3]int{2, 2, 1}, xvol.T_int16)
	b := seq([3]int{2, 2, 1}, xvol.T_int16)

	sum, err := a.Arith(b, OpAdd)
	if err != nil {
		t.Fatalf("Arith: %v", err)
	}
	if sum.DataType() != xvol.T_float64 {
		t.Errorf("arithmetic result is %s, want float64", sum.DataType())
	}
	if got := sum.ValueAt(1, 1, 0, 0); got != 6 {
		t.Errorf("3+3: got %g", got)
	}

	diff, _ := a.Arith(b, OpSub)
	min, max := diff.MinMax()
	if min != 0 || max != 0 {
		t.Errorf("self difference: range [%g,%g]", min, max)
	}
}

func TestDivisionByZero(t *testing.T) {
	a := seq([3]int{4, 1, 1}, xvol.T_float32)
	zero := New([3]int{4, 1, 1}, 1, xvol.T_float32)
	q, err := a.Arith(zero, OpDiv)
	if err != nil {
		t.Fatalf("Arith: %v", err)
	}
	for x := 0; x < 4; x++ {
		if got := q.ValueAt(x, 0, 0, 0); got != 0 {
			t.Errorf("x/0 at %d: got %g, want 0", x, got)
		}
	}
	if got := a.ArithScalar(0, OpDiv, false).ValueAt(3, 0, 0, 0); got != 0 {
		t.Errorf("scalar x/0: got %g, want 0", got)
	}
}

func TestArithIncongruent(t *testing.T) {
	a := New([3]int{2, 2, 2}, 1, xvol.T_uint8)
	b := New([3]int{2, 2, 3}, 1, xvol.T_uint8)
	if _, err := a.Arith(b, OpAdd); err == nil {
		t.Error("expected congruence error")
	}
}

func TestRelMask(t *testing.T) {
	a := seq([3]int{4, 1, 1}, xvol.T_float32)
	m := a.RelScalar(2, OpGe)
	if m.DataType() != xvol.T_uint8 {
		t.Fatalf("mask datatype %s", m.DataType())
	}
	want := []float64{0, 0, 1, 1}
	for x, w := range want {
		if got := m.ValueAt(x, 0, 0, 0); got != w {
			t.Errorf("mask[%d]: got %g, want %g", x, got, w)
		}
	}

	b := seq([3]int{4, 1, 1}, xvol.T_float32)
	eq, err := a.Rel(b, OpEq)
	if err != nil {
		t.Fatalf("Rel: %v", err)
	}
	if min, max := eq.MinMax(); min != 1 || max != 1 {
		t.Errorf("self equality mask range [%g,%g]", min, max)
	}
}

func TestLogicalOps(t *testing.T) {
	a := New([3]int{2, 1, 1}, 1, xvol.T_uint8)
	b := New([3]int{2, 1, 1}, 1, xvol.T_uint8)
	a.SetValueAt(0, 0, 0, 0, 1)
	b.SetValueAt(1, 0, 0, 0, 1)

	and, _ := a.Rel(b, OpAnd)
	or, _ := a.Rel(b, OpOr)
	if got := and.ValueAt(0, 0, 0, 0); got != 0 {
		t.Errorf("1 and 0: got %g", got)
	}
	if got := or.ValueAt(0, 0, 0, 0); got != 1 {
		t.Errorf("1 or 0: got %g", got)
	}
	if got := or.ValueAt(1, 0, 0, 0); got != 1 {
		t.Errorf("0 or 1: got %g", got)
	}
}

func TestMask(t *testing.T) {
	a := seq([3]int{2, 2, 1}, xvol.T_float32)
	mask := New([3]int{2, 2, 1}, 1, xvol.T_uint8)
	mask.SetValueAt(1, 0, 0, 0, 1)

	out, err := a.Mask(mask)
	if err != nil {
		t.Fatalf("Mask: %v", err)
	}
	if got := out.ValueAt(1, 0, 0, 0); got != 1 {
		t.Errorf("kept voxel: got %g, want 1", got)
	}
	if got := out.ValueAt(1, 1, 0, 0); got != 0 {
		t.Errorf("masked voxel: got %g, want 0", got)
	}
	if got := out.DataType(); got != xvol.T_float32 {
		t.Errorf("mask result datatype %s", got)
	}
}

func TestCropShiftsOrigin(t *testing.T) {
	b := seq([3]int{4, 4, 4}, xvol.T_uint16)
	b.SetSpacing(xvol.Vector3{1, 2, 3})
	b.SetOrigin(xvol.Vector3{10, 10, 10})

	out, err := b.Crop([3]int{1, 1, 1}, [3]int{2, 3, 3})
	if err != nil {
		t.Fatalf("Crop: %v", err)
	}
	if out.Size() != [3]int{2, 3, 3} {
		t.Errorf("crop size %v", out.Size())
	}
	if want := (xvol.Vector3{11, 12, 13}); !out.Origin().NearlyEquals(want) {
		t.Errorf("crop origin %v, want %v", out.Origin(), want)
	}
	if got, want := out.ValueAt(0, 0, 0, 0), b.ValueAt(1, 1, 1, 0); got != want {
		t.Errorf("crop content: got %g, want %g", got, want)
	}

	if _, err := b.Crop([3]int{0, 0, 0}, [3]int{4, 0, 0}); err == nil {
		t.Error("expected out-of-bounds error")
	}
	if _, err := b.Crop([3]int{2, 0, 0}, [3]int{1, 0, 0}); err == nil {
		t.Error("expected inverted-bounds error")
	}
}

func TestFlip(t *testing.T) {
	b := seq([3]int{3, 1, 1}, xvol.T_uint8)
	out, err := b.Flip(0)
	if err != nil {
		t.Fatalf("Flip: %v", err)
	}
	want := []float64{2, 1, 0}
	for x, w := range want {
		if got := out.ValueAt(x, 0, 0, 0); got != w {
			t.Errorf("flip[%d]: got %g, want %g", x, got, w)
		}
	}

	back, _ := out.Flip(0)
	for x := 0; x < 3; x++ {
		if back.ValueAt(x, 0, 0, 0) != b.ValueAt(x, 0, 0, 0) {
			t.Error("double flip must be the identity")
		}
	}
	if _, err := b.Flip(3); err == nil {
		t.Error("expected bad-axis error")
	}
}

func TestProject(t *testing.T) {
	b := seq([3]int{2, 1, 3}, xvol.T_float32)
	// Columns along z: (0,2,4) at x=0, (1,3,5) at x=1.

	max, err := b.Project(2, MaxProjection)
	if err != nil {
		t.Fatalf("Project: %v", err)
	}
	if max.Size() != [3]int{2, 1, 1} {
		t.Errorf("projection size %v", max.Size())
	}
	if got := max.ValueAt(0, 0, 0, 0); got != 4 {
		t.Errorf("max projection: got %g, want 4", got)
	}

	mean, _ := b.Project(2, MeanProjection)
	if got := mean.ValueAt(1, 0, 0, 0); got != 3 {
		t.Errorf("mean projection: got %g, want 3", got)
	}
}

func TestReduceComponents(t *testing.T) {
	b := New([3]int{1, 1, 1}, 3, xvol.T_float32)
	b.SetValueAt(0, 0, 0, 0, 3)
	b.SetValueAt(0, 0, 0, 1, 4)
	b.SetValueAt(0, 0, 0, 2, 0)

	cases := []struct {
		kind ComponentReduction
		want float64
	}{
		{ComponentMean, 7.0 / 3},
		{ComponentMax, 4},
		{ComponentMin, 0},
		{ComponentNorm, 5},
	}
	for _, tc := range cases {
		out, err := b.ReduceComponents(tc.kind)
		if err != nil {
			t.Fatalf("ReduceComponents(%d): %v", tc.kind, err)
		}
		if got := out.ValueAt(0, 0, 0, 0); math.Abs(got-tc.want) > 1e-12 {
			t.Errorf("reduction %d: got %g, want %g", tc.kind, got, tc.want)
		}
	}

	single := New([3]int{1, 1, 1}, 1, xvol.T_float32)
	if _, err := single.ReduceComponents(ComponentMean); err == nil {
		t.Error("expected error for single-component input")
	}
}

func TestExtractComponent(t *testing.T) {
	b := New([3]int{2, 1, 1}, 2, xvol.T_int16)
	b.SetValueAt(0, 0, 0, 1, 7)
	b.SetValueAt(1, 0, 0, 1, 8)

	out, err := b.ExtractComponent(1)
	if err != nil {
		t.Fatalf("ExtractComponent: %v", err)
	}
	if out.Components() != 1 {
		t.Errorf("components %d", out.Components())
	}
	if got := out.ValueAt(1, 0, 0, 0); got != 8 {
		t.Errorf("extracted value: got %g", got)
	}
	if _, err := b.ExtractComponent(2); err == nil {
		t.Error("expected bad-component error")
	}
}

func TestRemoveBottomSlices(t *testing.T) {
	b := seq([3]int{2, 2, 4}, xvol.T_uint16)
	b.SetSpacing(xvol.Vector3{1, 1, 2})

	out, err := b.RemoveBottomSlices(2)
	if err != nil {
		t.Fatalf("RemoveBottomSlices: %v", err)
	}
	if out.Size() != [3]int{2, 2, 2} {
		t.Errorf("size %v", out.Size())
	}
	if got, want := out.ValueAt(0, 0, 0, 0), b.ValueAt(0, 0, 2, 0); got != want {
		t.Errorf("slice content: got %g, want %g", got, want)
	}
	if got := out.Origin()[2]; got != 4 {
		t.Errorf("origin z: got %g, want 4", got)
	}
	if _, err := b.RemoveBottomSlices(4); err == nil {
		t.Error("expected error removing every slice")
	}
}
