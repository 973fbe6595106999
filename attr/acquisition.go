/*
	This file implements acquisition metadata: modality, sequence, scalar unit,
	scan date, stereotactic frame, label table, and the statistical-map fields.

	Sequence, modality, and unit are not independent: every standard sequence
	has one congruent unit and a set of compatible modalities. A single static
	table drives SetSequence so the coupling lives in one place.
*/

package attr

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/neurimage/xvol/xvol"
)

// AcquisitionExt is the extension of a standalone acquisition file.
const AcquisitionExt = ".xacq"

// LabelsExt is the extension of a label table file.
const LabelsExt = ".xlabels"

// Modality is the two-letter acquisition modality code.
type Modality string

const (
	MOther      Modality = "OT"
	MMR         Modality = "MR"
	MCT         Modality = "CT"
	MPT         Modality = "PT"
	MNM         Modality = "NM"
	MLabel      Modality = "LB"
	MTemplate   Modality = "TP"
	MProjection Modality = "PJ"
)

var modalities = []Modality{MOther, MMR, MCT, MPT, MNM, MLabel, MTemplate, MProjection}

// ModalityFromString parses a case-insensitive modality code.
func ModalityFromString(s string) (Modality, error) {
	code := Modality(strings.ToUpper(strings.TrimSpace(s)))
	for _, m := range modalities {
		if m == code {
			return m, nil
		}
	}
	return "", xvol.DomainErrorf("unknown modality %q", s)
}

// Unit is the scalar unit of the voxel values.
type Unit string

const (
	NoUnit      Unit = "No"
	UnitPercent Unit = "%"
	UnitRatio   Unit = "ratio"
	UnitSecond  Unit = "s"
	UnitMM      Unit = "mm"
	UnitCount   Unit = "count"
	UnitBq      Unit = "Bq"
	UnitBqMl    Unit = "Bq/ml"
	UnitSUV     Unit = "SUV"
	UnitADC     Unit = "mm2/s"
	UnitHU      Unit = "HU"
	UnitGy      Unit = "Gy"
	UnitTValue  Unit = "t-value"
	UnitZScore  Unit = "z-score"
	UnitPValue  Unit = "p-value"
	UnitCorr    Unit = "correlation"
)

var units = []Unit{
	NoUnit, UnitPercent, UnitRatio, UnitSecond, UnitMM, UnitCount, UnitBq,
	UnitBqMl, UnitSUV, UnitADC, UnitHU, UnitGy, UnitTValue, UnitZScore,
	UnitPValue, UnitCorr,
}

// IsStandardUnit tests membership in the unit vocabulary.
func IsStandardUnit(u Unit) bool {
	for _, known := range units {
		if known == u {
			return true
		}
	}
	return false
}

// Frame is the stereotactic frame used during acquisition.
type Frame int

const (
	FrameUnknown Frame = iota
	FrameNone
	FrameLeksell
)

func (f Frame) String() string {
	switch f {
	case FrameNone:
		return "NoFrame"
	case FrameLeksell:
		return "Leksell"
	}
	return "Unknown"
}

// AcqType is the 2D/3D acquisition type.
type AcqType string

const (
	Acq2D AcqType = "2D"
	Acq3D AcqType = "3D"
)

// Standard sequence tags. MR sequences.
const (
	SeqT1      = "T1"
	SeqT2      = "T2"
	SeqT2Star  = "T2*"
	SeqPD      = "PD"
	SeqFLAIR   = "FLAIR"
	SeqCET1    = "CET1"
	SeqCET2    = "CET2"
	SeqCEFLAIR = "CEFLAIR"
	SeqEPI     = "EPI"
	SeqB0      = "B0"
	SeqDWI     = "DWI"
	SeqADC     = "ADC"
	SeqFA      = "FA"
	SeqPWI     = "PWI"
	SeqCBF     = "CBF"
	SeqCBV     = "CBV"
	SeqMTT     = "MTT"
	SeqTTP     = "TTP"
	SeqTOF     = "TOF"
	SeqSWI     = "SWI"
)

// CT, PET, and nuclear medicine sequences.
const (
	SeqCT      = "CT"
	SeqCECT    = "CECT"
	SeqCTA     = "CTA"
	SeqFDG     = "FDG"
	SeqAmyloid = "AMYLOID"
	SeqTau     = "TAU"
	SeqHMPAO   = "HMPAO"
	SeqECD     = "ECD"
	SeqDatscan = "DATSCAN"
)

// Derived (Other-modality) sequences. The first three are the statistical
// maps; the tissue maps are probability maps; the rest are algorithm results.
const (
	SeqTMap              = "t-map"
	SeqZMap              = "z-map"
	SeqCorrelationMap    = "correlation-map"
	SeqAlgebraMap        = "algebra-map"
	SeqMask              = "mask"
	SeqDistanceMap       = "distance-map"
	SeqDisplacementField = "displacement-field"
	SeqMeanMap           = "mean-map"
	SeqMedianMap         = "median-map"
	SeqStdMap            = "std-map"
	SeqMinMap            = "min-map"
	SeqMaxMap            = "max-map"
	SeqBiasField         = "bias-field"
	SeqDoseMap           = "dose-map"
	SeqGreyMatterMap     = "gm-map"
	SeqWhiteMatterMap    = "wm-map"
	SeqCSFMap            = "csf-map"
	SeqLabels            = "labels"
	SeqProjection        = "projection"
)

// seqSpec captures everything a standard sequence implies: the modality
// forced when the current one is incompatible, the set of compatible
// modalities, the congruent unit, and any extra precondition on the parent.
type seqSpec struct {
	modality Modality
	compat   []Modality
	unit     Unit
	precond  func(Parent) error
}

func mrSeq(unit Unit) seqSpec {
	return seqSpec{modality: MMR, compat: []Modality{MMR}, unit: unit}
}

func otSeq(unit Unit) seqSpec {
	return seqSpec{modality: MOther, compat: []Modality{MOther}, unit: unit}
}

var sequenceTable = map[string]seqSpec{
	SeqT1:      mrSeq(NoUnit),
	SeqT2:      mrSeq(NoUnit),
	SeqT2Star:  mrSeq(NoUnit),
	SeqPD:      mrSeq(NoUnit),
	SeqFLAIR:   mrSeq(NoUnit),
	SeqCET1:    mrSeq(NoUnit),
	SeqCET2:    mrSeq(NoUnit),
	SeqCEFLAIR: mrSeq(NoUnit),
	SeqEPI:     mrSeq(NoUnit),
	SeqB0:      mrSeq(NoUnit),
	SeqDWI:     mrSeq(NoUnit),
	SeqADC:     mrSeq(UnitADC),
	SeqFA:      mrSeq(UnitRatio),
	SeqPWI:     mrSeq(NoUnit),
	SeqCBF:     mrSeq(UnitRatio),
	SeqCBV:     mrSeq(UnitRatio),
	SeqMTT:     mrSeq(UnitSecond),
	SeqTTP:     mrSeq(UnitSecond),
	SeqTOF:     mrSeq(NoUnit),
	SeqSWI:     mrSeq(NoUnit),

	SeqCT:   {modality: MCT, compat: []Modality{MCT}, unit: UnitHU},
	SeqCECT: {modality: MCT, compat: []Modality{MCT}, unit: UnitHU},
	SeqCTA:  {modality: MCT, compat: []Modality{MCT}, unit: UnitHU},

	SeqFDG:     {modality: MPT, compat: []Modality{MPT}, unit: UnitSUV},
	SeqAmyloid: {modality: MPT, compat: []Modality{MPT}, unit: UnitSUV},
	SeqTau:     {modality: MPT, compat: []Modality{MPT}, unit: UnitSUV},

	SeqHMPAO:   {modality: MNM, compat: []Modality{MNM}, unit: UnitCount},
	SeqECD:     {modality: MNM, compat: []Modality{MNM}, unit: UnitCount},
	SeqDatscan: {modality: MNM, compat: []Modality{MNM}, unit: UnitCount},

	SeqTMap:           otSeq(UnitTValue),
	SeqZMap:           otSeq(UnitZScore),
	SeqCorrelationMap: otSeq(UnitCorr),
	SeqAlgebraMap:     otSeq(NoUnit),
	SeqMask:           otSeq(NoUnit),
	SeqDistanceMap:    otSeq(UnitMM),
	SeqDisplacementField: {
		modality: MOther,
		compat:   []Modality{MOther},
		unit:     UnitMM,
		precond:  requireDisplacementField,
	},
	SeqMeanMap:        otSeq(NoUnit),
	SeqMedianMap:      otSeq(NoUnit),
	SeqStdMap:         otSeq(NoUnit),
	SeqMinMap:         otSeq(NoUnit),
	SeqMaxMap:         otSeq(NoUnit),
	SeqBiasField:      otSeq(NoUnit),
	SeqDoseMap:        otSeq(UnitGy),
	SeqGreyMatterMap:  otSeq(UnitPercent),
	SeqWhiteMatterMap: otSeq(UnitPercent),
	SeqCSFMap:         otSeq(UnitPercent),

	SeqLabels:     {modality: MLabel, compat: []Modality{MLabel}, unit: NoUnit, precond: requireUint8},
	SeqProjection: {modality: MProjection, compat: []Modality{MProjection}, unit: NoUnit},
}

// statisticalSequences are the only sequences treated as statistical maps.
var statisticalSequences = map[string]bool{
	SeqTMap:           true,
	SeqZMap:           true,
	SeqCorrelationMap: true,
}

func requireUint8(p Parent) error {
	if p == nil {
		return xvol.PreconditionErrorf("label-map sequence requires a parent volume")
	}
	if p.DataType() != xvol.T_uint8 {
		return xvol.TypeMismatchf("label maps require uint8 voxels, parent has %s", p.DataType())
	}
	return nil
}

func requireDisplacementField(p Parent) error {
	if p == nil {
		return xvol.PreconditionErrorf("displacement-field sequence requires a parent volume")
	}
	if p.Components() != 3 || !p.DataType().IsFloat() {
		return xvol.TypeMismatchf("displacement fields require 3 float components per voxel, parent has %d %s",
			p.Components(), p.DataType())
	}
	return nil
}

// StandardSequences returns the sorted standard sequence tags for a modality.
// The Template modality is compatible with every standard sequence.
func StandardSequences(m Modality) []string {
	var out []string
	for tag, spec := range sequenceTable {
		if m == MTemplate {
			out = append(out, tag)
			continue
		}
		for _, compat := range spec.compat {
			if compat == m {
				out = append(out, tag)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// IsStandardSequence tests whether a tag belongs to the modality's vocabulary.
func IsStandardSequence(m Modality, tag string) bool {
	spec, found := sequenceTable[tag]
	if !found {
		return false
	}
	if m == MTemplate {
		return true
	}
	for _, compat := range spec.compat {
		if compat == m {
			return true
		}
	}
	return false
}

// Acquisition carries modality, sequence, and scan metadata for one volume.
type Acquisition struct {
	modality Modality
	sequence string
	typ      AcqType
	scandate time.Time
	frame    Frame
	unit     Unit
	labels   map[uint8]string
	dof      int
	autocorr [3]float64
	contrast []float64
	parent   Parent
}

// NewAcquisition returns acquisition metadata with Other modality, 3D type,
// unknown frame, and no unit.
func NewAcquisition() *Acquisition {
	return &Acquisition{
		modality: MOther,
		typ:      Acq3D,
		unit:     NoUnit,
		labels:   make(map[uint8]string),
	}
}

// SetParent installs the non-owning back-reference to the owning volume.
func (a *Acquisition) SetParent(p Parent) { a.parent = p }

// Parent returns the back-reference, which may be nil.
func (a *Acquisition) Parent() Parent { return a.parent }

func (a *Acquisition) Modality() Modality  { return a.modality }
func (a *Acquisition) Sequence() string    { return a.sequence }
func (a *Acquisition) Type() AcqType       { return a.typ }
func (a *Acquisition) ScanDate() time.Time { return a.scandate }
func (a *Acquisition) Frame() Frame        { return a.frame }
func (a *Acquisition) Unit() Unit          { return a.unit }
func (a *Acquisition) DOF() int            { return a.dof }

// SetModality switches the modality. Switching to the Label modality requires
// the parent's voxel datatype be uint8; use the shortcut helpers to also get
// the modality's default unit.
func (a *Acquisition) SetModality(m Modality) error {
	if _, err := ModalityFromString(string(m)); err != nil {
		return err
	}
	if m == MLabel {
		if err := requireUint8(a.parent); err != nil {
			return err
		}
	}
	a.modality = m
	return nil
}

// SetModalityFromString accepts a case-insensitive modality code.
func (a *Acquisition) SetModalityFromString(s string) error {
	m, err := ModalityFromString(s)
	if err != nil {
		return err
	}
	return a.SetModality(m)
}

// SetModalityToMR switches to MR without touching the unit.
func (a *Acquisition) SetModalityToMR() error { return a.SetModality(MMR) }

// SetModalityToOT switches to Other without touching the unit.
func (a *Acquisition) SetModalityToOT() error { return a.SetModality(MOther) }

// SetModalityToCT switches to CT and forces Hounsfield units.
func (a *Acquisition) SetModalityToCT() error {
	if err := a.SetModality(MCT); err != nil {
		return err
	}
	a.unit = UnitHU
	return nil
}

// SetModalityToPT switches to PET and forces Bq/ml units.
func (a *Acquisition) SetModalityToPT() error {
	if err := a.SetModality(MPT); err != nil {
		return err
	}
	a.unit = UnitBqMl
	return nil
}

// SetModalityToNM switches to nuclear medicine and forces count units.
func (a *Acquisition) SetModalityToNM() error {
	if err := a.SetModality(MNM); err != nil {
		return err
	}
	a.unit = UnitCount
	return nil
}

// SetModalityToLB switches to the Label modality. The parent's voxel datatype
// must be uint8. The sequence and unit are forced and, if the parent has a
// file path, a sibling label file is loaded when present.
func (a *Acquisition) SetModalityToLB() error {
	if err := requireUint8(a.parent); err != nil {
		return err
	}
	a.modality = MLabel
	a.sequence = SeqLabels
	a.unit = NoUnit
	if base := a.parent.BasePath(); base != "" {
		path := base + LabelsExt
		if _, err := os.Stat(path); err == nil {
			if err := a.LoadLabels(path); err != nil {
				return err
			}
		}
	}
	return nil
}

// SetSequence is the single entry point for sequence changes. A standard tag
// forces a compatible modality (unless the current modality is already
// compatible or Template) and the congruent unit, after checking any
// parent-dependent precondition. A non-standard string is stored verbatim and
// leaves modality and unit alone.
func (a *Acquisition) SetSequence(tag string) error {
	spec, found := sequenceTable[tag]
	if !found {
		a.sequence = tag
		return nil
	}
	if spec.precond != nil {
		if err := spec.precond(a.parent); err != nil {
			return err
		}
	}
	if !IsStandardSequence(a.modality, tag) && a.modality != MTemplate {
		a.modality = spec.modality
	}
	a.sequence = tag
	a.unit = spec.unit
	return nil
}

// IsStatisticalMap returns true iff the sequence is one of the three
// statistical maps (t-map, z-map, correlation-map).
func (a *Acquisition) IsStatisticalMap() bool {
	return statisticalSequences[a.sequence]
}

// SetType records the 2D/3D acquisition type.
func (a *Acquisition) SetType(t AcqType) error {
	if t != Acq2D && t != Acq3D {
		return xvol.DomainErrorf("acquisition type %q is not 2D or 3D", t)
	}
	a.typ = t
	return nil
}

// SetScanDate records the acquisition date, truncated to the day.
func (a *Acquisition) SetScanDate(t time.Time) {
	a.scandate = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SetFrame records the stereotactic frame code.
func (a *Acquisition) SetFrame(f Frame) error {
	if f < FrameUnknown || f > FrameLeksell {
		return xvol.DomainErrorf("frame code %d outside [0,2]", int(f))
	}
	a.frame = f
	return nil
}

// SetUnit records the scalar unit. Non-standard units are rejected.
func (a *Acquisition) SetUnit(u Unit) error {
	if !IsStandardUnit(u) {
		return xvol.DomainErrorf("unknown unit %q", u)
	}
	a.unit = u
	return nil
}

// SetDOF records the degrees of freedom of a statistical map.
func (a *Acquisition) SetDOF(dof int) error {
	if dof < 0 {
		return xvol.DomainErrorf("degrees of freedom %d is negative", dof)
	}
	a.dof = dof
	return nil
}

// Autocorrelations returns the 3-axis spatial autocorrelation vector.
func (a *Acquisition) Autocorrelations() [3]float64 { return a.autocorr }

// SetAutocorrelations records the 3-axis spatial autocorrelation vector of a
// statistical map.
func (a *Acquisition) SetAutocorrelations(v [3]float64) { a.autocorr = v }

// Contrast returns the contrast vector of a statistical map, or nil.
func (a *Acquisition) Contrast() []float64 {
	if a.contrast == nil {
		return nil
	}
	out := make([]float64, len(a.contrast))
	copy(out, a.contrast)
	return out
}

// SetContrast records the contrast vector of a statistical map.
func (a *Acquisition) SetContrast(v []float64) {
	if len(v) == 0 {
		a.contrast = nil
		return
	}
	a.contrast = make([]float64, len(v))
	copy(a.contrast, v)
}

// HasContrast returns true if a contrast vector is present.
func (a *Acquisition) HasContrast() bool { return len(a.contrast) > 0 }

// --- label table ---

// Label returns the name for a label index.
func (a *Acquisition) Label(index int) (string, error) {
	if err := a.checkLabelAccess(index); err != nil {
		return "", err
	}
	return a.labels[uint8(index)], nil
}

// SetLabel names a label index. The modality must be Label and the index must
// fit in [0,255].
func (a *Acquisition) SetLabel(index int, name string) error {
	if err := a.checkLabelAccess(index); err != nil {
		return err
	}
	if name == "" {
		delete(a.labels, uint8(index))
	} else {
		a.labels[uint8(index)] = name
	}
	return nil
}

// Labels returns a copy of the populated label table.
func (a *Acquisition) Labels() (map[uint8]string, error) {
	if a.modality != MLabel {
		return nil, xvol.DomainErrorf("label table requires Label modality, have %s", a.modality)
	}
	out := make(map[uint8]string, len(a.labels))
	for k, v := range a.labels {
		out[k] = v
	}
	return out, nil
}

func (a *Acquisition) checkLabelAccess(index int) error {
	if a.modality != MLabel {
		return xvol.DomainErrorf("label table requires Label modality, have %s", a.modality)
	}
	if index < 0 || index > 255 {
		return xvol.DomainErrorf("label index %d outside [0,255]", index)
	}
	return nil
}

type xmlLabels struct {
	XMLName xml.Name   `xml:"labels"`
	Labels  []xmlLabel `xml:"label"`
}

type xmlLabel struct {
	Value int    `xml:"value,attr"`
	Name  string `xml:",chardata"`
}

// SaveLabels writes the label table to a .xlabels file.
func (a *Acquisition) SaveLabels(path string) error {
	if filepath.Ext(path) != LabelsExt {
		return xvol.FormatErrorf(path, "label files use the %s extension", LabelsExt)
	}
	if a.modality != MLabel {
		return xvol.DomainErrorf("label table requires Label modality, have %s", a.modality)
	}
	var doc xmlLabels
	indices := make([]int, 0, len(a.labels))
	for k := range a.labels {
		indices = append(indices, int(k))
	}
	sort.Ints(indices)
	for _, i := range indices {
		doc.Labels = append(doc.Labels, xmlLabel{Value: i, Name: a.labels[uint8(i)]})
	}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append([]byte(xml.Header), data...), 0644); err != nil {
		return fmt.Errorf("cannot write labels %s: %w", path, err)
	}
	return nil
}

// LoadLabels replaces the label table from a .xlabels file.
func (a *Acquisition) LoadLabels(path string) error {
	if filepath.Ext(path) != LabelsExt {
		return xvol.FormatErrorf(path, "label files use the %s extension", LabelsExt)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read labels %s: %w", path, err)
	}
	var doc xmlLabels
	if err := xml.Unmarshal(data, &doc); err != nil {
		return xvol.FormatErrorf(path, "bad labels XML: %v", err)
	}
	labels := make(map[uint8]string)
	for _, l := range doc.Labels {
		if l.Value < 0 || l.Value > 255 {
			return xvol.DomainErrorf("label index %d outside [0,255] in %s", l.Value, path)
		}
		name := strings.TrimSpace(l.Name)
		if name != "" {
			labels[uint8(l.Value)] = name
		}
	}
	a.labels = labels
	return nil
}

// --- template space identity ---

// InTemplateSpace compares the parent's space ID to a template tag. The test
// is independent of modality.
func (a *Acquisition) InTemplateSpace(tag string) (bool, error) {
	if a.parent == nil {
		return false, xvol.PreconditionErrorf("template-space test requires a parent volume")
	}
	return a.parent.SpaceID() == tag, nil
}

// IsICBM152 tests whether the parent occupies the ICBM152 template space.
func (a *Acquisition) IsICBM152() (bool, error) { return a.InTemplateSpace(xvol.ICBM152ID) }

// IsICBM452 tests whether the parent occupies the ICBM452 template space.
func (a *Acquisition) IsICBM452() (bool, error) { return a.InTemplateSpace(xvol.ICBM452ID) }

// IsATROPOS tests whether the parent occupies the ATROPOS template space.
func (a *Acquisition) IsATROPOS() (bool, error) { return a.InTemplateSpace(xvol.ATROPOSID) }

// IsSRI24 tests whether the parent occupies the SRI24 template space.
func (a *Acquisition) IsSRI24() (bool, error) { return a.InTemplateSpace(xvol.SRI24ID) }

// --- comparison and copy ---

// Equal compares every acquisition field, contrast and label table included,
// except the parent back-reference.
func (a *Acquisition) Equal(other *Acquisition) bool {
	if other == nil {
		return false
	}
	if len(a.contrast) != len(other.contrast) {
		return false
	}
	for i := range a.contrast {
		if a.contrast[i] != other.contrast[i] {
			return false
		}
	}
	if len(a.labels) != len(other.labels) {
		return false
	}
	for k, name := range a.labels {
		if other.labels[k] != name {
			return false
		}
	}
	return a.modality == other.modality &&
		a.sequence == other.sequence &&
		a.typ == other.typ &&
		a.scandate.Equal(other.scandate) &&
		a.frame == other.frame &&
		a.unit == other.unit &&
		a.dof == other.dof &&
		a.autocorr == other.autocorr
}

// CopyFrom deep-copies every field of another acquisition except the parent
// back-reference.
func (a *Acquisition) CopyFrom(other *Acquisition) {
	if other == nil {
		return
	}
	a.modality = other.modality
	a.sequence = other.sequence
	a.typ = other.typ
	a.scandate = other.scandate
	a.frame = other.frame
	a.unit = other.unit
	a.dof = other.dof
	a.autocorr = other.autocorr
	a.contrast = nil
	if len(other.contrast) > 0 {
		a.contrast = make([]float64, len(other.contrast))
		copy(a.contrast, other.contrast)
	}
	a.labels = make(map[uint8]string, len(other.labels))
	for k, v := range other.labels {
		a.labels[k] = v
	}
}

// Copy returns a deep copy without the parent back-reference.
func (a *Acquisition) Copy() *Acquisition {
	dup := NewAcquisition()
	dup.CopyFrom(a)
	return dup
}

// --- persistence ---

type xmlAcquisition struct {
	XMLName  xml.Name `xml:"acquisition"`
	Modality string   `xml:"modality"`
	Type     string   `xml:"type"`
	Sequence string   `xml:"sequence"`
	Unit     string   `xml:"unit"`
	Frame    int      `xml:"frame"`
	ScanDate string   `xml:"dateofscan"`
	DOF      int      `xml:"dof"`
	Autocorr string   `xml:"autocorrelations"`
	Contrast string   `xml:"contrast,omitempty"`
}

func (a *Acquisition) xmlBlock() xmlAcquisition {
	x := xmlAcquisition{
		Modality: string(a.modality),
		Type:     string(a.typ),
		Sequence: a.sequence,
		Unit:     string(a.unit),
		Frame:    int(a.frame),
		DOF:      a.dof,
		Autocorr: xvol.FormatFloats(a.autocorr[:]),
	}
	if !a.scandate.IsZero() {
		x.ScanDate = a.scandate.Format(DateFormat)
	}
	if len(a.contrast) > 0 {
		x.Contrast = xvol.FormatFloats(a.contrast)
	}
	return x
}

func (a *Acquisition) fromXMLBlock(x xmlAcquisition) error {
	m, err := ModalityFromString(x.Modality)
	if err != nil {
		return err
	}
	a.modality = m
	if x.Type != "" {
		if err := a.SetType(AcqType(x.Type)); err != nil {
			return err
		}
	}
	a.sequence = x.Sequence
	if x.Unit != "" {
		if err := a.SetUnit(Unit(x.Unit)); err != nil {
			return err
		}
	}
	if err := a.SetFrame(Frame(x.Frame)); err != nil {
		return err
	}
	a.scandate = time.Time{}
	if x.ScanDate != "" {
		t, err := time.Parse(DateFormat, x.ScanDate)
		if err != nil {
			return xvol.DomainErrorf("bad scan date %q, want layout %s", x.ScanDate, DateFormat)
		}
		a.scandate = t
	}
	if err := a.SetDOF(x.DOF); err != nil {
		return err
	}
	if x.Autocorr != "" {
		vals, err := xvol.ParseFloats(x.Autocorr, 3)
		if err != nil {
			return err
		}
		copy(a.autocorr[:], vals)
	}
	a.contrast = nil
	if x.Contrast != "" {
		fields := strings.Fields(x.Contrast)
		vals, err := xvol.ParseFloats(x.Contrast, len(fields))
		if err != nil {
			return err
		}
		a.contrast = vals
	}
	return nil
}

// MarshalXML serializes the acquisition block.
func (a *Acquisition) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.Encode(a.xmlBlock())
}

// UnmarshalXML restores the acquisition block. The XML decoder allocates bare
// receivers, so the label table is initialized here when absent.
func (a *Acquisition) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	if a.labels == nil {
		a.labels = make(map[uint8]string)
	}
	var x xmlAcquisition
	if err := d.DecodeElement(&x, &start); err != nil {
		return err
	}
	return a.fromXMLBlock(x)
}

// Save writes a standalone .xacq file.
func (a *Acquisition) Save(path string) error {
	if filepath.Ext(path) != AcquisitionExt {
		return xvol.FormatErrorf(path, "acquisition files use the %s extension", AcquisitionExt)
	}
	data, err := xml.MarshalIndent(a.xmlBlock(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append([]byte(xml.Header), data...), 0644); err != nil {
		return fmt.Errorf("cannot write acquisition %s: %w", path, err)
	}
	return nil
}

// Load reads a standalone .xacq file.
func (a *Acquisition) Load(path string) error {
	if filepath.Ext(path) != AcquisitionExt {
		return xvol.FormatErrorf(path, "acquisition files use the %s extension", AcquisitionExt)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read acquisition %s: %w", path, err)
	}
	var x xmlAcquisition
	if err := xml.Unmarshal(data, &x); err != nil {
		return xvol.FormatErrorf(path, "bad acquisition XML: %v", err)
	}
	return a.fromXMLBlock(x)
}
