package attr

import "github.com/neurimage/xvol/xvol"

// fakeParent stands in for the owning volume in attribute tests.
type fakeParent struct {
	dtype    xvol.DataType
	comps    int
	spaceID  string
	min, max float64
	center   xvol.Vector3
	base     string
	acq      *Acquisition
}

func newFakeParent(dtype xvol.DataType, comps int) *fakeParent {
	p := &fakeParent{
		dtype:   dtype,
		comps:   comps,
		spaceID: "fake-space",
		min:     0,
		max:     100,
		center:  xvol.Vector3{10, 10, 10},
		acq:     NewAcquisition(),
	}
	p.acq.SetParent(p)
	return p
}

func (p *fakeParent) DataType() xvol.DataType     { return p.dtype }
func (p *fakeParent) Components() int             { return p.comps }
func (p *fakeParent) SpaceID() string             { return p.spaceID }
func (p *fakeParent) ScalarRange() (float64, float64) {
	return p.min, p.max
}
func (p *fakeParent) ScalarQuantile(q float64) float64 {
	return p.min + q*(p.max-p.min)
}
func (p *fakeParent) FieldOfViewCenter() xvol.Vector3 { return p.center }
func (p *fakeParent) BasePath() string                { return p.base }
func (p *fakeParent) Acquisition() *Acquisition       { return p.acq }
