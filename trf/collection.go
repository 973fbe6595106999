/*
	This file implements the transform collection persisted next to a volume
	file under the .xtrfs extension. Entries are keyed by the destination
	space ID; the reference field always holds the owning volume's space ID.
*/

package trf

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/neurimage/xvol/xvol"
)

// FileExt is the extension of a transform collection file.
const FileExt = ".xtrfs"

// FileVersion is the current format version written by Save.
const FileVersion = "1.0"

// Collection is an ordered set of transforms keyed by destination space ID.
type Collection struct {
	referenceID string
	ids         []string
	transforms  map[string]*Transform
}

// NewCollection returns an empty collection with no reference space.
func NewCollection() *Collection {
	return &Collection{
		referenceID: xvol.UnknownID,
		transforms:  make(map[string]*Transform),
	}
}

// ReferenceID returns the space ID of the owning volume.
func (c *Collection) ReferenceID() string { return c.referenceID }

// SetReferenceID records the space ID of the owning volume.
func (c *Collection) SetReferenceID(id string) { c.referenceID = id }

// Count returns the number of transforms.
func (c *Collection) Count() int { return len(c.ids) }

// IDs returns the destination space IDs in insertion order.
func (c *Collection) IDs() []string {
	out := make([]string, len(c.ids))
	copy(out, c.ids)
	return out
}

// Has reports whether a transform to the given space exists.
func (c *Collection) Has(id string) bool {
	_, found := c.transforms[id]
	return found
}

// Get returns the transform to the given space.
func (c *Collection) Get(id string) (*Transform, error) {
	t, found := c.transforms[id]
	if !found {
		return nil, xvol.DomainErrorf("no transform to space %q", id)
	}
	return t, nil
}

// Set stores a transform to the given destination space, replacing any
// previous entry for that space.
func (c *Collection) Set(id string, t *Transform) {
	if _, found := c.transforms[id]; !found {
		c.ids = append(c.ids, id)
	}
	c.transforms[id] = t
}

// Remove deletes the transform to the given space if present.
func (c *Collection) Remove(id string) {
	if _, found := c.transforms[id]; !found {
		return
	}
	delete(c.transforms, id)
	for i, existing := range c.ids {
		if existing == id {
			c.ids = append(c.ids[:i], c.ids[i+1:]...)
			break
		}
	}
}

// Clear removes every transform but keeps the reference ID.
func (c *Collection) Clear() {
	c.ids = nil
	c.transforms = make(map[string]*Transform)
}

// Copy returns a deep copy of the collection.
func (c *Collection) Copy() *Collection {
	dup := NewCollection()
	dup.referenceID = c.referenceID
	for _, id := range c.ids {
		dup.Set(id, c.transforms[id].Copy())
	}
	return dup
}

// --- persistence ---

type xmlCollection struct {
	XMLName    xml.Name       `xml:"xtrfs"`
	Version    string         `xml:"version,attr"`
	Reference  string         `xml:"reference"`
	Transforms []xmlTransform `xml:"transform"`
}

type xmlTransform struct {
	ID     string `xml:"ID,attr"`
	Kind   string `xml:"kind,attr"`
	Coeffs string `xml:",chardata"`
}

// Save writes the collection under the .xtrfs extension.
func (c *Collection) Save(path string) error {
	if filepath.Ext(path) != FileExt {
		return xvol.FormatErrorf(path, "transform collection files use the %s extension", FileExt)
	}
	doc := xmlCollection{
		Version:   FileVersion,
		Reference: c.referenceID,
	}
	for _, id := range c.ids {
		t := c.transforms[id]
		doc.Transforms = append(doc.Transforms, xmlTransform{
			ID:     id,
			Kind:   string(t.Kind()),
			Coeffs: xvol.FormatFloats(t.Coefficients()),
		})
	}
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append([]byte(xml.Header), data...), 0644); err != nil {
		return fmt.Errorf("cannot write transform collection %s: %w", path, err)
	}
	return nil
}

// Load reads a .xtrfs file, replacing the collection contents.
func (c *Collection) Load(path string) error {
	if filepath.Ext(path) != FileExt {
		return xvol.FormatErrorf(path, "transform collection files use the %s extension", FileExt)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read transform collection %s: %w", path, err)
	}
	var doc xmlCollection
	if err := xml.Unmarshal(data, &doc); err != nil {
		return xvol.FormatErrorf(path, "bad transform collection XML: %v", err)
	}
	if doc.Version != FileVersion {
		return xvol.FormatErrorf(path, "unsupported transform collection version %q", doc.Version)
	}
	c.Clear()
	c.referenceID = doc.Reference
	for _, xt := range doc.Transforms {
		coeffs, err := xvol.ParseFloats(strings.TrimSpace(xt.Coeffs), 16)
		if err != nil {
			return xvol.FormatErrorf(path, "bad transform %q: %v", xt.ID, err)
		}
		t, err := NewAffine(coeffs)
		if err != nil {
			return xvol.FormatErrorf(path, "bad transform %q: %v", xt.ID, err)
		}
		if Kind(xt.Kind) == Rigid {
			t.kind = Rigid
		}
		c.Set(xt.ID, t)
	}
	return nil
}
