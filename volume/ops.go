/*
	This file implements the derived-image factories of a volume: geometry
	operations (crop, flip, slice removal), masking, projections, component
	reductions, and region-of-interest extraction from a label volume. Each
	factory computes a new buffer, wraps it in a new volume, inherits the
	appropriate attribute groups from the input, and derives its file path by
	prefixing the input's basename.
*/

package volume

import (
	"github.com/neurimage/xvol/attr"
	"github.com/neurimage/xvol/imagebuf"
	"github.com/neurimage/xvol/xvol"
)

// wrapSameSpace finishes an operation whose result still occupies the
// input's coordinate space: all attribute groups carry over, transforms and
// space ID included.
func (v *Volume) wrapSameSpace(buf *imagebuf.Buffer, prefix string) *Volume {
	out := NewFromBuffer(buf)
	out.CopyAttributesFrom(v, CopyAll)
	out.path = v.prefixedPath(prefix)
	return out
}

// wrapNewSpace finishes an operation whose result occupies a different
// space: properties carry over but the space ID and transforms do not.
func (v *Volume) wrapNewSpace(buf *imagebuf.Buffer, prefix string) *Volume {
	out := NewFromBuffer(buf)
	out.CopyPropertiesFrom(v)
	out.path = v.prefixedPath(prefix)
	return out
}

// Masked zeroes every voxel where the mask volume is zero. The mask must
// share the buffer geometry. Values are unchanged where kept, so the result
// stays in the input's space with its acquisition semantics intact.
func (v *Volume) Masked(mask *Volume) (*Volume, error) {
	if v.buf == nil || mask == nil || mask.buf == nil {
		return nil, xvol.PreconditionErrorf("masking requires buffers on both volumes")
	}
	buf, err := v.buf.Mask(mask.buf)
	if err != nil {
		return nil, err
	}
	return v.wrapSameSpace(buf, "masked"), nil
}

// Cropped extracts the voxel box [min,max] (inclusive). The origin shifts so
// world coordinates are preserved, keeping the result in the input's space.
func (v *Volume) Cropped(min, max [3]int) (*Volume, error) {
	if v.buf == nil {
		return nil, xvol.PreconditionErrorf("crop requires a buffer")
	}
	buf, err := v.buf.Crop(min, max)
	if err != nil {
		return nil, err
	}
	return v.wrapSameSpace(buf, "crop"), nil
}

// Flipped mirrors the volume along a world axis. Mirroring changes the
// anatomy-to-grid mapping, so the result gets a fresh space.
func (v *Volume) Flipped(axis int) (*Volume, error) {
	if v.buf == nil {
		return nil, xvol.PreconditionErrorf("flip requires a buffer")
	}
	buf, err := v.buf.Flip(axis)
	if err != nil {
		return nil, err
	}
	return v.wrapNewSpace(buf, "flip"), nil
}

// RemoveNeckSlices drops the bottom n axial slices, the usual cleanup of
// head acquisitions that extend into the neck. The origin shifts so the
// remaining slices keep their world coordinates.
func (v *Volume) RemoveNeckSlices(n int) (*Volume, error) {
	if v.buf == nil {
		return nil, xvol.PreconditionErrorf("slice removal requires a buffer")
	}
	buf, err := v.buf.RemoveBottomSlices(n)
	if err != nil {
		return nil, err
	}
	return v.wrapSameSpace(buf, "crop"), nil
}

// Projected collapses the volume to a single slice along the given axis by
// maximum or mean intensity. The result is a 2D projection image, so its
// acquisition is forced to the projection sequence and it gets a fresh space.
func (v *Volume) Projected(axis int, kind imagebuf.ProjectionKind) (*Volume, error) {
	if v.buf == nil {
		return nil, xvol.PreconditionErrorf("projection requires a buffer")
	}
	buf, err := v.buf.Project(axis, kind)
	if err != nil {
		return nil, err
	}
	out := NewFromBuffer(buf)
	out.CopyAttributesFrom(v, CopyIdentity|CopyAcquisition|CopyACPC)
	out.acquisition.SetSequence(attr.SeqProjection)
	out.acquisition.SetType(attr.Acq2D)
	out.path = v.prefixedPath("proj")
	return out, nil
}

// ReducedComponents collapses a multi-component volume to one component by
// the given reduction. The grid is unchanged, so the result keeps the
// input's space.
func (v *Volume) ReducedComponents(kind imagebuf.ComponentReduction) (*Volume, error) {
	if v.buf == nil {
		return nil, xvol.PreconditionErrorf("component reduction requires a buffer")
	}
	buf, err := v.buf.ReduceComponents(kind)
	if err != nil {
		return nil, err
	}
	return v.wrapSameSpace(buf, "reduce"), nil
}

// Component extracts a single component of a multi-component volume.
func (v *Volume) Component(c int) (*Volume, error) {
	if v.buf == nil {
		return nil, xvol.PreconditionErrorf("component extraction requires a buffer")
	}
	buf, err := v.buf.ExtractComponent(c)
	if err != nil {
		return nil, err
	}
	return v.wrapSameSpace(buf, "comp"), nil
}

// ROIFromLabel extracts the binary mask of one label of a label volume: 1
// where the voxel equals the label index, 0 elsewhere. The volume's modality
// must be Label and the index must fit in [0,255]. The result is a uint8
// mask in the input's space.
func (v *Volume) ROIFromLabel(label int) (*Volume, error) {
	if v.buf == nil {
		return nil, xvol.PreconditionErrorf("ROI extraction requires a buffer")
	}
	if v.acquisition.Modality() != attr.MLabel {
		return nil, xvol.DomainErrorf("ROI extraction requires Label modality, have %s",
			v.acquisition.Modality())
	}
	if label < 0 || label > 255 {
		return nil, xvol.DomainErrorf("label index %d outside [0,255]", label)
	}
	buf := v.buf.RelScalar(float64(label), imagebuf.OpEq)
	out := NewFromBuffer(buf)
	out.CopyAttributesFrom(v, CopyIdentity|CopyACPC|CopySpaceID|CopyTransforms)
	out.acquisition.SetSequence(attr.SeqMask)
	if name, err := v.acquisition.Label(label); err == nil && name != "" {
		out.path = v.prefixedPath(name)
	} else {
		out.path = v.prefixedPath("roi")
	}
	return out, nil
}
