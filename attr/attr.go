/*
	Package attr implements the attribute sub-objects composed into a volume:
	patient identity, acquisition metadata, display state, and the AC-PC
	stereotactic frame. Each holds a non-owning back-reference to its parent
	volume, resolved at call time; operations that need parent context fail
	with xvol.ErrPrecondition when the back-reference is unset.
*/
package attr

import (
	"time"

	"github.com/neurimage/xvol/xvol"
)

// Parent is the non-owning handle an attribute sub-object holds to its
// volume. It exposes the read-time context used for cross-cutting validation
// and never implies ownership.
type Parent interface {
	// DataType returns the voxel datatype of the parent's buffer.
	DataType() xvol.DataType

	// Components returns the number of values per voxel.
	Components() int

	// SpaceID returns the parent's logical coordinate-space identifier.
	SpaceID() string

	// ScalarRange returns the parent's scalar data extent.
	ScalarRange() (min, max float64)

	// ScalarQuantile returns the scalar value at cumulative fraction q.
	ScalarQuantile(q float64) float64

	// FieldOfViewCenter returns the world coordinate of the volume center.
	FieldOfViewCenter() xvol.Vector3

	// BasePath returns the parent's file path without extension, or "" if the
	// parent has never been saved or loaded.
	BasePath() string

	// Acquisition returns the parent's acquisition attributes.
	Acquisition() *Acquisition
}

// DateFormat is the layout used when parsing and printing dates in the text
// and XML attribute formats.
var DateFormat = "2006-01-02"

// DefaultBirthdate is the date of birth of a fresh or anonymized identity.
var DefaultBirthdate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
