/*
	This file bridges NIfTI-1 files into buffers. Only import is supported:
	the reader library exposes voxel access but no writer.
*/

package imagebuf

import (
	"fmt"
	"os"

	"github.com/henghuang/nifti"

	"github.com/neurimage/xvol/xvol"
)

// LoadNIfTI reads the first time point of a .nii or .nii.gz file into a
// float32 buffer with the header's voxel spacing.
func LoadNIfTI(path string) (*Buffer, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("cannot read NIfTI file %s: %w", path, err)
	}

	var img nifti.Nifti1Image
	img.LoadImage(path, true)

	var hdr nifti.Nifti1Header
	hdr.LoadHeader(path)

	dims := img.GetDims()
	nx, ny, nz := dims[0], dims[1], dims[2]
	if nx == 0 || ny == 0 || nz == 0 {
		return nil, xvol.FormatErrorf(path, "NIfTI volume has empty dimensions %v", dims)
	}

	buf := New([3]int{nx, ny, nz}, 1, xvol.T_float32)
	buf.SetSpacing(xvol.Vector3{
		float64(hdr.Pixdim[1]),
		float64(hdr.Pixdim[2]),
		float64(hdr.Pixdim[3]),
	})
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				buf.SetValueAt(x, y, z, 0, float64(img.GetAt(x, y, z, 0)))
			}
		}
	}
	return buf, nil
}
