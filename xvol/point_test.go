package xvol

import (
	"math"
	"testing"
)

func TestVector3Arithmetic(t *testing.T) {
	a := Vector3{1, 2, 3}
	b := Vector3{4, -2, 1}

	if got := a.Add(b); got != (Vector3{5, 0, 4}) {
		t.Errorf("Add: got %v", got)
	}
	if got := a.Sub(b); got != (Vector3{-3, 4, 2}) {
		t.Errorf("Sub: got %v", got)
	}
	if got := a.Scale(2); got != (Vector3{2, 4, 6}) {
		t.Errorf("Scale: got %v", got)
	}
	if got := a.Mid(b); got != (Vector3{2.5, 0, 2}) {
		t.Errorf("Mid: got %v", got)
	}
}

func TestVector3Distance(t *testing.T) {
	a := Vector3{10, 20, 30}
	b := Vector3{10, -10, 30}
	if got := a.Distance(b); got != 30 {
		t.Errorf("Distance: got %g, want 30", got)
	}
	if got := (Vector3{3, 4, 0}).Norm(); got != 5 {
		t.Errorf("Norm: got %g, want 5", got)
	}
}

func TestVector3Predicates(t *testing.T) {
	if !(Vector3{}).IsZero() {
		t.Error("zero vector should be zero")
	}
	if (Vector3{0, 0, 1e-3}).IsZero() {
		t.Error("non-zero vector reported zero")
	}
	a := Vector3{1, 2, 3}
	if !a.NearlyEquals(Vector3{1, 2, 3 + 1e-12}) {
		t.Error("NearlyEquals too strict")
	}
	if a.NearlyEquals(Vector3{1, 2, 3.1}) {
		t.Error("NearlyEquals too loose")
	}
}

func TestParseVector3(t *testing.T) {
	v, err := ParseVector3("1.5 -2 30")
	if err != nil {
		t.Fatalf("ParseVector3: %v", err)
	}
	if v != (Vector3{1.5, -2, 30}) {
		t.Errorf("got %v", v)
	}
	back, err := ParseVector3(v.String())
	if err != nil {
		t.Fatalf("reparse: %v", err)
	}
	if back != v {
		t.Errorf("string round trip: got %v, want %v", back, v)
	}

	if _, err := ParseVector3("1 2"); err == nil {
		t.Error("expected error for 2 fields")
	}
	if _, err := ParseVector3("a b c"); err == nil {
		t.Error("expected error for non-numeric fields")
	}
}

func TestFormatParseFloats(t *testing.T) {
	vals := []float64{1, -0.5, math.Pi, 0}
	s := FormatFloats(vals)
	got, err := ParseFloats(s, len(vals))
	if err != nil {
		t.Fatalf("ParseFloats: %v", err)
	}
	for i := range vals {
		if got[i] != vals[i] {
			t.Errorf("value %d: got %g, want %g", i, got[i], vals[i])
		}
	}
	if _, err := ParseFloats(s, 3); err == nil {
		t.Error("expected count mismatch error")
	}
}

func TestFormatParseInts(t *testing.T) {
	vals := []int{256, 0, -3}
	got, err := ParseInts(FormatInts(vals), len(vals))
	if err != nil {
		t.Fatalf("ParseInts: %v", err)
	}
	for i := range vals {
		if got[i] != vals[i] {
			t.Errorf("value %d: got %d, want %d", i, got[i], vals[i])
		}
	}
}
