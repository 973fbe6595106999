/*
	This file implements imports from foreign image formats. Only NIfTI-1 is
	wired in; the imported buffer gets a fresh volume whose acquisition is
	left at its defaults for the caller to fill in.
*/

package volume

import (
	"path/filepath"
	"strings"

	"github.com/neurimage/xvol/imagebuf"
	"github.com/neurimage/xvol/xvol"
)

// ImportNIfTI reads a .nii or .nii.gz file into a new volume. The scan
// geometry comes from the NIfTI header; attributes start at their defaults.
func ImportNIfTI(path string) (*Volume, error) {
	buf, err := imagebuf.LoadNIfTI(path)
	if err != nil {
		return nil, err
	}
	v := NewFromBuffer(buf)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".nii")
	v.path = filepath.Join(filepath.Dir(path), base+FileExt)
	xvol.Infof("imported NIfTI %s (%v voxels)", path, buf.NumVoxels())
	return v, nil
}
