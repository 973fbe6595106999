/*
	This file implements the .xvol volume file format, version 1.1.

	A volume file is an XML header followed, in single-file mode, by the raw
	array bytes concatenated after the root element's closing tag. The header
	is located on read by scanning for the literal closing tag: XML escaping
	guarantees the tag text cannot occur inside any element content, so the
	scan is unambiguous. In two-file mode the <array> element names a sibling
	.raw file instead of holding the sentinel "self". The array payload is
	optionally zlib-compressed and is laid out in (component, z, y, x) order.

	Sibling files round-trip with the volume: the transform collection under
	.xtrfs and, for label volumes, the label table under .xlabels.
*/

package volume

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/blang/semver"

	"github.com/neurimage/xvol/attr"
	"github.com/neurimage/xvol/imagebuf"
	"github.com/neurimage/xvol/trf"
	"github.com/neurimage/xvol/xvol"
)

// FileExt is the volume file extension. The root element name is the
// extension without the leading dot.
const FileExt = ".xvol"

// RawExt is the extension of the sibling array file in two-file mode.
const RawExt = ".raw"

// FileVersion is the format version written by Save. Version 1.0 files are
// read-compatible.
const FileVersion = "1.1"

// arraySelf is the <array> sentinel marking single-file mode.
const arraySelf = "self"

var closeTag = []byte("</xvol>")

type xmlVolume struct {
	XMLName     xml.Name          `xml:"xvol"`
	Version     string            `xml:"version,attr"`
	ID          string            `xml:"ID"`
	Compressed  bool              `xml:"compressed"`
	Attributes  xmlAttributes     `xml:"attributes"`
	Identity    *attr.Identity    `xml:"identity"`
	Acquisition *attr.Acquisition `xml:"acquisition"`
	Display     *attr.Display     `xml:"display"`
	ACPC        *attr.ACPC        `xml:"ACPC"`
	Array       string            `xml:"array"`
}

type xmlAttributes struct {
	Size        string  `xml:"size"`
	Components  int     `xml:"components"`
	Spacing     string  `xml:"spacing"`
	Origin      string  `xml:"origin"`
	Orientation string  `xml:"orientation"`
	DataType    string  `xml:"datatype"`
	Directions  string  `xml:"directions"`
	Slope       float64 `xml:"slope"`
	Intercept   float64 `xml:"intercept"`
}

// Save writes the volume in single-file mode: the XML header with the array
// payload appended after the closing tag. Sibling .xtrfs and .xlabels files
// are written alongside when the volume carries transforms or labels.
func (v *Volume) Save(path string) error {
	return v.save(path, true)
}

// SaveTwoFile writes the legacy two-file layout: the XML header alone in the
// .xvol file and the array payload in a sibling .raw file.
func (v *Volume) SaveTwoFile(path string) error {
	return v.save(path, false)
}

func (v *Volume) save(path string, single bool) error {
	if filepath.Ext(path) != FileExt {
		return xvol.FormatErrorf(path, "volume files use the %s extension", FileExt)
	}
	if v.buf == nil {
		return xvol.PreconditionErrorf("cannot save a volume without a buffer")
	}

	payload := v.buf.FileOrderBytes()
	if v.compressed {
		var err error
		payload, err = xvol.CompressPayload(payload)
		if err != nil {
			return fmt.Errorf("cannot compress array for %s: %w", path, err)
		}
	}

	size := v.buf.Size()
	doc := xmlVolume{
		Version:    FileVersion,
		ID:         v.SpaceID(),
		Compressed: v.compressed,
		Attributes: xmlAttributes{
			Size:        xvol.FormatInts(size[:]),
			Components:  v.buf.Components(),
			Spacing:     v.buf.Spacing().String(),
			Origin:      v.buf.Origin().String(),
			Orientation: v.orientation.String(),
			DataType:    v.buf.DataType().String(),
			Directions:  xvol.FormatFloats(directionsSlice(v.buf.Directions())),
			Slope:       v.slope,
			Intercept:   v.intercept,
		},
		Identity:    v.identity,
		Acquisition: v.acquisition,
		Display:     v.display,
		ACPC:        v.acpc,
		Array:       arraySelf,
	}
	if !single {
		doc.Array = strings.TrimSuffix(filepath.Base(path), FileExt) + RawExt
	}

	header, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot serialize header for %s: %w", path, err)
	}

	if single {
		// The payload starts immediately after the closing tag.
		if err := os.WriteFile(path, append(header, payload...), 0644); err != nil {
			return fmt.Errorf("cannot write volume %s: %w", path, err)
		}
	} else {
		if err := os.WriteFile(path, header, 0644); err != nil {
			return fmt.Errorf("cannot write volume %s: %w", path, err)
		}
		rawPath := filepath.Join(filepath.Dir(path), doc.Array)
		if err := os.WriteFile(rawPath, payload, 0644); err != nil {
			return fmt.Errorf("cannot write array %s: %w", rawPath, err)
		}
	}
	v.path = path

	if err := v.saveSiblings(path); err != nil {
		return err
	}
	xvol.Infof("saved volume %s (%s, %v voxels)", path, v.buf.DataType(), v.buf.NumVoxels())
	return nil
}

// saveSiblings writes the .xtrfs and .xlabels companions when populated.
func (v *Volume) saveSiblings(path string) error {
	base := strings.TrimSuffix(path, FileExt)
	if v.transforms.Count() > 0 {
		v.transforms.SetReferenceID(v.SpaceID())
		if err := v.transforms.Save(base + trf.FileExt); err != nil {
			return err
		}
	}
	if v.acquisition.Modality() == attr.MLabel {
		labels, err := v.acquisition.Labels()
		if err == nil && len(labels) > 0 {
			if err := v.acquisition.SaveLabels(base + attr.LabelsExt); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads a .xvol file in either mode and replaces the volume's entire
// state, sibling transform and label files included.
func (v *Volume) Load(path string) error {
	if filepath.Ext(path) != FileExt {
		return xvol.FormatErrorf(path, "volume files use the %s extension", FileExt)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read volume %s: %w", path, err)
	}

	idx := bytes.Index(data, closeTag)
	if idx < 0 {
		return xvol.FormatErrorf(path, "missing %s closing tag", closeTag)
	}
	boundary := idx + len(closeTag)
	header := data[:boundary]

	var doc xmlVolume
	if err := xml.Unmarshal(header, &doc); err != nil {
		return xvol.FormatErrorf(path, "bad volume header: %v", err)
	}
	if err := checkVersion(path, doc.Version); err != nil {
		return err
	}

	var payload []byte
	if doc.Array == arraySelf {
		payload = data[boundary:]
	} else {
		rawPath := filepath.Join(filepath.Dir(path), doc.Array)
		payload, err = os.ReadFile(rawPath)
		if err != nil {
			return fmt.Errorf("cannot read array %s: %w", rawPath, err)
		}
	}
	if doc.Compressed {
		payload, err = xvol.DecompressPayload(payload)
		if err != nil {
			return xvol.FormatErrorf(path, "cannot decompress array: %v", err)
		}
	}

	buf, err := bufferFromAttributes(path, doc.Attributes, payload)
	if err != nil {
		return err
	}

	v.path = path
	v.compressed = doc.Compressed
	v.slope = doc.Attributes.Slope
	if v.slope == 0 {
		v.slope = 1
	}
	v.intercept = doc.Attributes.Intercept
	if doc.Identity != nil {
		v.identity = doc.Identity
	} else {
		v.identity = attr.NewIdentity()
	}
	if doc.Acquisition != nil {
		v.acquisition = doc.Acquisition
	} else {
		v.acquisition = attr.NewAcquisition()
	}
	if doc.ACPC != nil {
		v.acpc = doc.ACPC
	} else {
		v.acpc = attr.NewACPC()
	}
	display := doc.Display
	if display == nil {
		display = attr.NewDisplay()
	}
	v.identity.SetParent(v)
	v.acquisition.SetParent(v)
	v.acpc.SetParent(v)
	display.SetParent(v)

	v.buf = buf
	v.spaceID = ""
	v.display = attr.NewDisplay()
	v.display.SetParent(v)
	v.recompute()
	// The stored window survives the recompute-driven reset.
	v.display.CopyFrom(display)
	v.display.SetParent(v)

	// The stored ID is authoritative only when it diverges from the content
	// hash; otherwise the space ID keeps tracking the array ID.
	if doc.ID != "" && doc.ID != xvol.UnknownID && doc.ID != v.arrayID {
		v.SetSpaceID(doc.ID)
	}

	if err := v.loadSiblings(path); err != nil {
		return err
	}
	xvol.Infof("loaded volume %s (%s, %v voxels)", path, buf.DataType(), buf.NumVoxels())
	return nil
}

// loadSiblings picks up the .xtrfs and .xlabels companions when present.
func (v *Volume) loadSiblings(path string) error {
	base := strings.TrimSuffix(path, FileExt)

	trfPath := base + trf.FileExt
	if _, err := os.Stat(trfPath); err == nil {
		c := trf.NewCollection()
		if err := c.Load(trfPath); err != nil {
			return err
		}
		c.SetReferenceID(v.SpaceID())
		v.transforms = c
	} else {
		v.transforms = trf.NewCollection()
		v.transforms.SetReferenceID(v.SpaceID())
	}

	if v.acquisition.Modality() == attr.MLabel {
		labelsPath := base + attr.LabelsExt
		if _, err := os.Stat(labelsPath); err == nil {
			if err := v.acquisition.LoadLabels(labelsPath); err != nil {
				return err
			}
		}
	}
	return nil
}

// checkVersion accepts the current version and every earlier 1.x release.
func checkVersion(path, version string) error {
	have, err := semver.ParseTolerant(version)
	if err != nil {
		return xvol.FormatErrorf(path, "bad version %q: %v", version, err)
	}
	current, _ := semver.ParseTolerant(FileVersion)
	if have.Major != current.Major || have.GT(current) {
		return xvol.FormatErrorf(path, "unsupported volume version %q, current is %s",
			version, FileVersion)
	}
	return nil
}

func bufferFromAttributes(path string, a xmlAttributes, payload []byte) (*imagebuf.Buffer, error) {
	sizeVals, err := xvol.ParseInts(a.Size, 3)
	if err != nil {
		return nil, xvol.FormatErrorf(path, "bad size: %v", err)
	}
	var size [3]int
	copy(size[:], sizeVals)
	dtype, err := xvol.DataTypeByName(a.DataType)
	if err != nil {
		return nil, xvol.FormatErrorf(path, "bad datatype: %v", err)
	}
	components := a.Components
	if components == 0 {
		components = 1
	}
	buf := imagebuf.New(size, components, dtype)
	if a.Spacing != "" {
		spacing, err := xvol.ParseVector3(a.Spacing)
		if err != nil {
			return nil, xvol.FormatErrorf(path, "bad spacing: %v", err)
		}
		buf.SetSpacing(spacing)
	}
	if a.Origin != "" {
		origin, err := xvol.ParseVector3(a.Origin)
		if err != nil {
			return nil, xvol.FormatErrorf(path, "bad origin: %v", err)
		}
		buf.SetOrigin(origin)
	}
	if a.Directions != "" {
		vals, err := xvol.ParseFloats(a.Directions, 9)
		if err != nil {
			return nil, xvol.FormatErrorf(path, "bad directions: %v", err)
		}
		var d [9]float64
		copy(d[:], vals)
		buf.SetDirections(d)
	}
	if err := buf.SetFileOrderBytes(payload); err != nil {
		return nil, xvol.FormatErrorf(path, "array payload: %v", err)
	}
	return buf, nil
}

func directionsSlice(d [9]float64) []float64 {
	out := make([]float64, 9)
	copy(out, d[:])
	return out
}
