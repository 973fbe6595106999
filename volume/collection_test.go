package volume

import (
	"math"
	"testing"

	"github.com/neurimage/xvol/attr"
	"github.com/neurimage/xvol/imagebuf"
	"github.com/neurimage/xvol/xvol"
)

// valueVolume wraps a 2x2x1 buffer holding the given four voxel values.
func valueVolume(t *testing.T, dtype xvol.DataType, vals [4]float64) *Volume {
	t.Helper()
	b := imagebuf.New([3]int{2, 2, 1}, 1, dtype)
	for i, x := range vals {
		b.SetValueAt(i%2, i/2, 0, 0, x)
	}
	return NewFromBuffer(b)
}

// labelVolume is a uint8 valueVolume switched to Label modality.
func labelVolume(t *testing.T, vals [4]float64) *Volume {
	t.Helper()
	v := valueVolume(t, xvol.T_uint8, vals)
	if err := v.Acquisition().SetModalityToLB(); err != nil {
		t.Fatal(err)
	}
	return v
}

func valueAt(t *testing.T, v *Volume, i int) float64 {
	t.Helper()
	return v.Buffer().ValueAt(i%2, i/2, 0, 0)
}

func TestCollectionMembership(t *testing.T) {
	a := NewFromBuffer(testBuffer([3]int{2, 2, 2}, xvol.T_uint8, 0))
	b := NewFromBuffer(testBuffer([3]int{2, 2, 2}, xvol.T_uint8, 1))
	d := NewFromBuffer(testBuffer([3]int{2, 2, 2}, xvol.T_uint8, 2))

	c := NewCollection()
	if c.Count() != 0 || !c.IsHomogeneous() {
		t.Fatal("empty collection must be homogeneous")
	}
	if err := c.Append(a); err != nil {
		t.Fatal(err)
	}
	if err := c.Append(b); err != nil {
		t.Fatal(err)
	}
	if err := c.Append(a); err == nil {
		t.Error("duplicate array ID accepted")
	}
	if err := c.Append(nil); err == nil {
		t.Error("nil volume accepted")
	}

	if got, _ := c.At(-1); got != b {
		t.Error("negative index must count from the end")
	}
	if _, err := c.At(5); err == nil {
		t.Error("out-of-range index accepted")
	}
	if got, err := c.ByID(a.ArrayID()); err != nil || got != a {
		t.Errorf("ByID: %v, %v", got, err)
	}
	if c.IndexOf(b.ArrayID()) != 1 || c.IndexOf("nope") != -1 {
		t.Error("IndexOf positions wrong")
	}

	if err := c.Replace(1, a); err == nil {
		t.Error("replace introducing a duplicate ID accepted")
	}
	if err := c.Replace(1, d); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	ids := c.IDs()
	if len(ids) != 2 || ids[0] != a.ArrayID() || ids[1] != d.ArrayID() {
		t.Errorf("IDs after replace: %v", ids)
	}

	sub, err := c.Slice(1, 0)
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if sub.Count() != 2 || sub.IDs()[0] != d.ArrayID() {
		t.Error("slice order must follow the index arguments")
	}

	if err := c.RemoveByID(d.ArrayID()); err != nil {
		t.Fatalf("RemoveByID: %v", err)
	}
	if err := c.RemoveByID(d.ArrayID()); err == nil {
		t.Error("removing an absent member must fail")
	}
	if c.Count() != 1 {
		t.Errorf("count %d after removal", c.Count())
	}
	// The removed member still lives in the other collection.
	if !sub.Contains(d.ArrayID()) {
		t.Error("shared reference lost on removal from one alias")
	}

	c.Clear()
	if c.Count() != 0 || !c.IsHomogeneous() {
		t.Error("cleared collection must be empty and homogeneous")
	}
}

func TestHomogeneityTracking(t *testing.T) {
	c := NewCollection()
	c.Append(NewFromBuffer(testBuffer([3]int{2, 2, 2}, xvol.T_uint8, 0)))
	c.Append(NewFromBuffer(testBuffer([3]int{2, 2, 2}, xvol.T_uint8, 1)))
	if !c.IsHomogeneous() {
		t.Fatal("same FOV and datatype must be homogeneous")
	}

	odd := NewFromBuffer(testBuffer([3]int{2, 2, 2}, xvol.T_float32, 2))
	c.Append(odd)
	if c.IsHomogeneous() {
		t.Error("datatype mismatch must break homogeneity")
	}
	c.RemoveByID(odd.ArrayID())
	if !c.IsHomogeneous() {
		t.Error("homogeneity must recover after removal")
	}

	wide := NewFromBuffer(testBuffer([3]int{3, 2, 2}, xvol.T_uint8, 3))
	c.Append(wide)
	if c.IsHomogeneous() {
		t.Error("size mismatch must break homogeneity")
	}
	if err := c.Replace(-1, NewFromBuffer(testBuffer([3]int{2, 2, 2}, xvol.T_uint8, 4))); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	if !c.IsHomogeneous() {
		t.Error("homogeneity must recover after replace")
	}

	spaced := NewFromBuffer(testBuffer([3]int{2, 2, 2}, xvol.T_uint8, 5))
	spaced.Buffer().SetSpacing(xvol.Vector3{2, 2, 2})
	spaced.MutatedBuffer()
	c.Append(spaced)
	if c.IsHomogeneous() {
		t.Error("spacing mismatch must break homogeneity")
	}
}

func TestBatchDispatch(t *testing.T) {
	c := NewCollection()
	v1 := NewFromBuffer(testBuffer([3]int{2, 2, 2}, xvol.T_uint8, 0))
	v2 := NewFromBuffer(testBuffer([3]int{2, 2, 2}, xvol.T_uint8, 1))
	c.Append(v1)
	c.Append(v2)

	if err := c.SetAll("Lastname", "van der berg"); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	names, err := c.GetAll("Lastname")
	if err != nil {
		t.Fatalf("GetAll: %v", err)
	}
	for i, n := range names {
		if n != "Van Der Berg" {
			t.Errorf("member %d lastname %v", i, n)
		}
	}

	if err := c.SetEach("Firstname", []interface{}{"Ann", "Ben"}); err != nil {
		t.Fatalf("SetEach: %v", err)
	}
	if v2.Identity().Firstname() != "Ben" {
		t.Errorf("per-member firstname %q", v2.Identity().Firstname())
	}
	if err := c.SetEach("Firstname", []interface{}{"Ann"}); err == nil {
		t.Error("value count mismatch accepted")
	}

	if err := c.SetAll("DOF", "twelve"); err == nil {
		t.Error("wrong argument type accepted")
	}
	if _, err := c.GetAll("NoSuchField"); err == nil {
		t.Error("unknown getter accepted")
	}
	if err := c.SetAll("NoSuchField", 1); err == nil {
		t.Error("unknown setter accepted")
	}
	if err := c.SetAll("ArrayID", "x"); err == nil {
		t.Error("content hash must not be batch-settable")
	}

	if err := c.SetAll("Window", [2]float64{1, 5}); err != nil {
		t.Fatalf("SetAll window: %v", err)
	}
	wins, _ := c.GetAll("Window")
	if w := wins[0].([2]float64); w[0] != 1 || w[1] != 5 {
		t.Errorf("window read back %v", w)
	}

	if err := c.SetAll("SpaceID", "study-space"); err != nil {
		t.Fatalf("SetAll space: %v", err)
	}
	if v1.SpaceID() != "study-space" || v2.SpaceID() != "study-space" {
		t.Error("space ID broadcast failed")
	}

	c.AnonymizeAll()
	if !v1.Identity().IsAnonymized() || !v2.Identity().IsAnonymized() {
		t.Error("identities survive AnonymizeAll")
	}
}

// reductionFixture stacks constant volumes 1, 2 and 6 so every voxel sees the
// same member tuple.
func reductionFixture(t *testing.T) (*Collection, *Volume) {
	t.Helper()
	c := NewCollection()
	first := valueVolume(t, xvol.T_float32, [4]float64{1, 1, 1, 1})
	first.SetFilename("/data/a.xvol")
	first.Identity().SetLastname("Doe")
	for _, v := range []*Volume{
		first,
		valueVolume(t, xvol.T_float32, [4]float64{2, 2, 2, 2}),
		valueVolume(t, xvol.T_float32, [4]float64{6, 6, 6, 6}),
	} {
		if err := c.Append(v); err != nil {
			t.Fatal(err)
		}
	}
	return c, first
}

func TestReductions(t *testing.T) {
	c, first := reductionFixture(t)

	mean, err := c.Mean()
	if err != nil {
		t.Fatalf("Mean: %v", err)
	}
	if got := valueAt(t, mean, 0); got != 3 {
		t.Errorf("mean %g, want 3", got)
	}
	if mean.DataType() != xvol.T_float64 {
		t.Errorf("mean datatype %s", mean.DataType())
	}
	if mean.Acquisition().Sequence() != attr.SeqMeanMap {
		t.Errorf("mean sequence %q", mean.Acquisition().Sequence())
	}
	if mean.Filename() != "/data/mean-map_a.xvol" {
		t.Errorf("mean path %q", mean.Filename())
	}
	if !mean.Identity().Equal(first.Identity()) {
		t.Error("reduction must inherit the first member's identity")
	}
	// Members hold different content, so no shared space carries over.
	if mean.SpaceID() == first.SpaceID() {
		t.Error("unshared space leaked into the reduction")
	}

	std, err := c.Std()
	if err != nil {
		t.Fatal(err)
	}
	if got := valueAt(t, std, 1); math.Abs(got-math.Sqrt(7)) > 1e-12 {
		t.Errorf("std %g, want sqrt(7)", got)
	}

	median, err := c.Median()
	if err != nil {
		t.Fatal(err)
	}
	if got := valueAt(t, median, 2); got != 2 {
		t.Errorf("median %g, want 2", got)
	}

	if min, _ := c.Min(); valueAt(t, min, 0) != 1 {
		t.Error("min wrong")
	}
	if max, _ := c.Max(); valueAt(t, max, 0) != 6 {
		t.Error("max wrong")
	}

	argmax, err := c.ArgMax()
	if err != nil {
		t.Fatal(err)
	}
	if got := valueAt(t, argmax, 3); got != 2 {
		t.Errorf("argmax %g, want member index 2", got)
	}
	if argmax.DataType() != xvol.T_uint16 {
		t.Errorf("argmax datatype %s", argmax.DataType())
	}
	if argmin, _ := c.ArgMin(); valueAt(t, argmin, 0) != 0 {
		t.Error("argmin wrong")
	}

	p, err := c.Percentile(1)
	if err != nil {
		t.Fatal(err)
	}
	if got := valueAt(t, p, 0); got != 6 {
		t.Errorf("percentile(1) %g, want 6", got)
	}
	if _, err := c.Percentile(1.5); err == nil {
		t.Error("quantile outside [0,1] accepted")
	}

	// Subset reduction over the first two members only.
	sub, err := c.Mean(0, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got := valueAt(t, sub, 0); got != 1.5 {
		t.Errorf("subset mean %g, want 1.5", got)
	}
}

func TestReductionSharedSpace(t *testing.T) {
	c, _ := reductionFixture(t)
	if err := c.SetAll("SpaceID", "study-space"); err != nil {
		t.Fatal(err)
	}
	mean, err := c.Mean()
	if err != nil {
		t.Fatal(err)
	}
	if mean.SpaceID() != "study-space" {
		t.Errorf("shared space not carried, got %q", mean.SpaceID())
	}
}

func TestReductionPreconditions(t *testing.T) {
	if _, err := NewCollection().Mean(); err == nil {
		t.Error("reduction over an empty collection accepted")
	}

	c := NewCollection()
	c.Append(NewFromBuffer(testBuffer([3]int{2, 2, 2}, xvol.T_uint8, 0)))
	c.Append(NewFromBuffer(testBuffer([3]int{2, 2, 2}, xvol.T_float32, 1)))
	if _, err := c.Mean(); err == nil {
		t.Error("reduction over a heterogeneous collection accepted")
	}
}

func TestToLabelVolume(t *testing.T) {
	c := NewCollection()
	c.Append(valueVolume(t, xvol.T_float32, [4]float64{0.9, 0.2, 0.4, 0}))
	c.Append(valueVolume(t, xvol.T_float32, [4]float64{0.3, 0.8, 0.45, 0}))

	out, err := c.ToLabelVolume(0.5)
	if err != nil {
		t.Fatalf("ToLabelVolume: %v", err)
	}
	want := [4]float64{1, 2, 0, 0}
	for i, w := range want {
		if got := valueAt(t, out, i); got != w {
			t.Errorf("voxel %d label %g, want %g", i, got, w)
		}
	}
	if out.DataType() != xvol.T_uint8 {
		t.Errorf("label datatype %s", out.DataType())
	}
	if out.Acquisition().Modality() != attr.MLabel {
		t.Errorf("label modality %s", out.Acquisition().Modality())
	}

	if _, err := c.ToLabelVolume(2); err == nil {
		t.Error("threshold outside [0,1] accepted")
	}

	bad := NewCollection()
	bad.Append(valueVolume(t, xvol.T_float32, [4]float64{0.5, 0, 0, 0}))
	bad.Append(valueVolume(t, xvol.T_float32, [4]float64{1.5, 0, 0, 0}))
	if _, err := bad.ToLabelVolume(0.5); err == nil {
		t.Error("probability outside [0,1] accepted")
	}
}

func TestLabelVoting(t *testing.T) {
	c := NewCollection()
	c.Append(labelVolume(t, [4]float64{1, 2, 0, 1}))
	c.Append(labelVolume(t, [4]float64{1, 3, 0, 2}))
	c.Append(labelVolume(t, [4]float64{2, 3, 0, 3}))

	out, err := c.LabelVoting()
	if err != nil {
		t.Fatalf("LabelVoting: %v", err)
	}
	want := [4]float64{1, 3, 0, 1}
	for i, w := range want {
		if got := valueAt(t, out, i); got != w {
			t.Errorf("voxel %d vote %g, want %g", i, got, w)
		}
	}
	if out.Acquisition().Modality() != attr.MLabel {
		t.Errorf("voting result modality %s", out.Acquisition().Modality())
	}

	mixed := NewCollection()
	mixed.Append(labelVolume(t, [4]float64{1, 0, 0, 0}))
	mixed.Append(valueVolume(t, xvol.T_uint8, [4]float64{0, 1, 0, 0}))
	if _, err := mixed.LabelVoting(); err == nil {
		t.Error("non-label member accepted")
	}
}

func TestStaple(t *testing.T) {
	c := NewCollection()
	first := labelVolume(t, [4]float64{1, 1, 1, 0})
	first.SetFilename("/data/seg.xvol")
	c.Append(first)
	c.Append(labelVolume(t, [4]float64{1, 1, 0, 0}))
	c.Append(labelVolume(t, [4]float64{1, 0, 0, 0}))

	out, err := c.Staple()
	if err != nil {
		t.Fatalf("Staple: %v", err)
	}
	if out.DataType() != xvol.T_float64 {
		t.Errorf("consensus datatype %s", out.DataType())
	}
	if out.Acquisition().Sequence() != attr.SeqMask {
		t.Errorf("consensus sequence %q", out.Acquisition().Sequence())
	}
	if out.Filename() != "/data/staple_seg.xvol" {
		t.Errorf("consensus path %q", out.Filename())
	}

	var w [4]float64
	for i := range w {
		w[i] = valueAt(t, out, i)
		if w[i] < 0 || w[i] > 1 {
			t.Fatalf("voxel %d weight %g outside [0,1]", i, w[i])
		}
	}
	if w[0] <= 0.5 {
		t.Errorf("unanimous foreground weight %g", w[0])
	}
	if w[3] >= 0.5 {
		t.Errorf("unanimous background weight %g", w[3])
	}
	if w[1] <= w[2] {
		t.Errorf("2/3 agreement %g must outweigh 1/3 agreement %g", w[1], w[2])
	}

	binary := NewCollection()
	binary.Append(labelVolume(t, [4]float64{1, 0, 0, 0}))
	binary.Append(labelVolume(t, [4]float64{2, 0, 0, 0}))
	if _, err := binary.Staple(); err == nil {
		t.Error("multi-label member accepted by binary STAPLE")
	}
}
