package volume

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/neurimage/xvol/attr"
	"github.com/neurimage/xvol/trf"
	"github.com/neurimage/xvol/xvol"
)

// fullVolume builds a volume with every attribute group populated.
func fullVolume(t *testing.T) *Volume {
	t.Helper()
	buf := testBuffer([3]int{5, 4, 3}, xvol.T_int16, 11)
	buf.SetSpacing(xvol.Vector3{1, 1, 2})
	buf.SetOrigin(xvol.Vector3{-10, -20, 5})
	v := NewFromBuffer(buf)

	v.Identity().SetLastname("Doe")
	v.Identity().SetFirstname("Jane")
	v.Identity().SetGender(attr.GenderFemale)
	if err := v.Identity().SetBirthdateFromString("1984-06-15"); err != nil {
		t.Fatal(err)
	}

	if err := v.Acquisition().SetModalityToMR(); err != nil {
		t.Fatal(err)
	}
	if err := v.Acquisition().SetSequence(attr.SeqFLAIR); err != nil {
		t.Fatal(err)
	}
	v.Acquisition().SetDOF(8)

	if err := v.Display().SetWindow(10, 90); err != nil {
		t.Fatal(err)
	}

	v.ACPC().SetAC(xvol.Vector3{10, 20, 30})
	v.ACPC().SetPC(xvol.Vector3{10, -10, 30})

	v.SetSpaceID("space-test")
	v.Transforms().Set(xvol.ICBM152ID, trf.NewRigid(
		xvol.Vector3{0.1, 0, 0.2}, xvol.Vector3{1, 2, 3}, xvol.Vector3{4, 5, 6}))
	return v
}

func checkEqual(t *testing.T, got, want *Volume) {
	t.Helper()
	if !bytes.Equal(got.Buffer().Bytes(), want.Buffer().Bytes()) {
		t.Error("voxel bytes changed across round trip")
	}
	if got.Buffer().DataType() != want.Buffer().DataType() {
		t.Errorf("datatype %s, want %s", got.Buffer().DataType(), want.Buffer().DataType())
	}
	if !got.Buffer().Spacing().NearlyEquals(want.Buffer().Spacing()) {
		t.Errorf("spacing %v, want %v", got.Buffer().Spacing(), want.Buffer().Spacing())
	}
	if !got.Buffer().Origin().NearlyEquals(want.Buffer().Origin()) {
		t.Errorf("origin %v, want %v", got.Buffer().Origin(), want.Buffer().Origin())
	}
	if !got.Identity().Equal(want.Identity()) {
		t.Error("identity changed")
	}
	if !got.Acquisition().Equal(want.Acquisition()) {
		t.Error("acquisition changed")
	}
	if !got.Display().Equal(want.Display()) {
		t.Error("display changed")
	}
	if !got.ACPC().Equal(want.ACPC()) {
		t.Error("ACPC changed")
	}
	if got.ArrayID() != want.ArrayID() {
		t.Error("array ID changed")
	}
	if got.SpaceID() != want.SpaceID() {
		t.Errorf("space ID %q, want %q", got.SpaceID(), want.SpaceID())
	}
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name       string
		twoFile    bool
		compressed bool
	}{
		{"single", false, false},
		{"single-compressed", false, true},
		{"twofile", true, false},
		{"twofile-compressed", true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := fullVolume(t)
			v.SetCompressed(tc.compressed)
			path := filepath.Join(t.TempDir(), "scan"+FileExt)

			var err error
			if tc.twoFile {
				err = v.SaveTwoFile(path)
			} else {
				err = v.Save(path)
			}
			if err != nil {
				t.Fatalf("save: %v", err)
			}

			if tc.twoFile {
				if _, err := os.Stat(strings.TrimSuffix(path, FileExt) + RawExt); err != nil {
					t.Fatalf("missing raw sibling: %v", err)
				}
			}

			back := New()
			if err := back.Load(path); err != nil {
				t.Fatalf("load: %v", err)
			}
			checkEqual(t, back, v)
			if back.Compressed() != tc.compressed {
				t.Error("compression flag lost")
			}

			got, err := back.TransformFromID(xvol.ICBM152ID)
			if err != nil {
				t.Fatalf("transform sibling: %v", err)
			}
			want, _ := v.TransformFromID(xvol.ICBM152ID)
			if !got.Equals(want) {
				t.Error("transform changed across round trip")
			}
			if back.Transforms().ReferenceID() != v.SpaceID() {
				t.Errorf("transform reference %q", back.Transforms().ReferenceID())
			}
		})
	}
}

func TestDefaultSpaceIDRoundTrip(t *testing.T) {
	// A volume that never got an explicit space ID must keep tracking its
	// array ID after a round trip.
	v := NewFromBuffer(testBuffer([3]int{3, 3, 3}, xvol.T_uint8, 0))
	path := filepath.Join(t.TempDir(), "anon"+FileExt)
	if err := v.Save(path); err != nil {
		t.Fatal(err)
	}

	back := New()
	if err := back.Load(path); err != nil {
		t.Fatal(err)
	}
	if back.SpaceID() != back.ArrayID() {
		t.Error("space ID no longer tracks the array ID")
	}
	back.Buffer().SetValueAt(0, 0, 0, 0, 123)
	back.MutatedBuffer()
	if back.SpaceID() != back.ArrayID() {
		t.Error("space ID must follow the array ID after mutation")
	}
}

func TestLabelSiblingRoundTrip(t *testing.T) {
	v := NewFromBuffer(testBuffer([3]int{2, 2, 2}, xvol.T_uint8, 0))
	if err := v.Acquisition().SetModalityToLB(); err != nil {
		t.Fatal(err)
	}
	v.Acquisition().SetLabel(1, "thalamus")
	v.Acquisition().SetLabel(2, "putamen")

	dir := t.TempDir()
	path := filepath.Join(dir, "seg"+FileExt)
	if err := v.Save(path); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "seg"+attr.LabelsExt)); err != nil {
		t.Fatalf("missing label sibling: %v", err)
	}

	back := New()
	if err := back.Load(path); err != nil {
		t.Fatal(err)
	}
	if name, err := back.Acquisition().Label(2); err != nil || name != "putamen" {
		t.Errorf("label 2: %q, %v", name, err)
	}
}

func TestVersionGate(t *testing.T) {
	v := fullVolume(t)
	path := filepath.Join(t.TempDir(), "scan"+FileExt)
	if err := v.Save(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}

	// Legacy 1.0 files read fine.
	legacy := bytes.Replace(data, []byte(`version="1.1"`), []byte(`version="1.0"`), 1)
	legacyPath := filepath.Join(t.TempDir(), "legacy"+FileExt)
	if err := os.WriteFile(legacyPath, legacy, 0644); err != nil {
		t.Fatal(err)
	}
	if err := New().Load(legacyPath); err != nil {
		t.Errorf("legacy 1.0 load: %v", err)
	}

	// Future versions are rejected.
	future := bytes.Replace(data, []byte(`version="1.1"`), []byte(`version="2.0"`), 1)
	futurePath := filepath.Join(t.TempDir(), "future"+FileExt)
	if err := os.WriteFile(futurePath, future, 0644); err != nil {
		t.Fatal(err)
	}
	if err := New().Load(futurePath); err == nil {
		t.Error("expected error loading a 2.0 file")
	}
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	if err := New().Load(filepath.Join(dir, "missing"+FileExt)); err == nil {
		t.Error("expected error for missing file")
	}
	if err := New().Load(filepath.Join(dir, "scan.nii")); err == nil {
		t.Error("expected extension error")
	}

	bad := filepath.Join(dir, "bad"+FileExt)
	if err := os.WriteFile(bad, []byte("<xvol>truncated"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := New().Load(bad); err == nil {
		t.Error("expected error for a header without closing tag")
	}

	if err := New().Save(filepath.Join(dir, "out"+FileExt)); err == nil {
		t.Error("expected precondition error saving without a buffer")
	}
}

func TestHeaderIsInspectable(t *testing.T) {
	// The XML header must stay readable in front of the payload.
	v := fullVolume(t)
	path := filepath.Join(t.TempDir(), "scan"+FileExt)
	if err := v.Save(path); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	head := string(data[:bytes.Index(data, []byte("</xvol>"))])
	for _, want := range []string{"<xvol", `version="1.1"`, "<identity>", "<acquisition>",
		"<display>", "<ACPC>", "<array>self</array>", "<ID>space-test</ID>"} {
		if !strings.Contains(head, want) {
			t.Errorf("header missing %s", want)
		}
	}
}
