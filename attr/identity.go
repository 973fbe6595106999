/*
	This file implements the patient demographic record attached to a volume.
*/

package attr

import (
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/neurimage/xvol/xvol"
)

// IdentityExt is the extension of a standalone identity file.
const IdentityExt = ".xidentity"

// Gender is the coded patient gender.
type Gender int

const (
	GenderUnknown Gender = iota
	GenderMale
	GenderFemale
)

func (g Gender) String() string {
	switch g {
	case GenderMale:
		return "Male"
	case GenderFemale:
		return "Female"
	}
	return "Unknown"
}

// GenderFromString parses a case-insensitive gender name.
func GenderFromString(s string) (Gender, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "unknown", "":
		return GenderUnknown, nil
	case "male", "m":
		return GenderMale, nil
	case "female", "f":
		return GenderFemale, nil
	}
	return GenderUnknown, xvol.DomainErrorf("unknown gender %q", s)
}

// Identity is the patient demographic record. Name fields are normalized to
// title case on set.
type Identity struct {
	lastname  string
	firstname string
	gender    Gender
	birthdate time.Time
	parent    Parent
}

// NewIdentity returns an anonymized identity.
func NewIdentity() *Identity {
	return &Identity{birthdate: DefaultBirthdate}
}

// SetParent installs the non-owning back-reference to the owning volume.
func (id *Identity) SetParent(p Parent) { id.parent = p }

// Parent returns the back-reference, which may be nil.
func (id *Identity) Parent() Parent { return id.parent }

func (id *Identity) Lastname() string     { return id.lastname }
func (id *Identity) Firstname() string    { return id.firstname }
func (id *Identity) Gender() Gender       { return id.gender }
func (id *Identity) Birthdate() time.Time { return id.birthdate }

// SetLastname stores the last name normalized to title case.
func (id *Identity) SetLastname(name string) { id.lastname = titleCase(name) }

// SetFirstname stores the first name normalized to title case.
func (id *Identity) SetFirstname(name string) { id.firstname = titleCase(name) }

// SetGender validates the code against the three-entry enum.
func (id *Identity) SetGender(g Gender) error {
	if g < GenderUnknown || g > GenderFemale {
		return xvol.DomainErrorf("gender code %d outside [0,2]", int(g))
	}
	id.gender = g
	return nil
}

// SetGenderFromString accepts a case-insensitive gender name.
func (id *Identity) SetGenderFromString(s string) error {
	g, err := GenderFromString(s)
	if err != nil {
		return err
	}
	id.gender = g
	return nil
}

// SetBirthdate stores the date of birth, truncated to the day.
func (id *Identity) SetBirthdate(t time.Time) {
	id.birthdate = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// SetBirthdateFromString parses a date in the configured DateFormat.
func (id *Identity) SetBirthdateFromString(s string) error {
	t, err := time.Parse(DateFormat, strings.TrimSpace(s))
	if err != nil {
		return xvol.DomainErrorf("bad birthdate %q, want layout %s", s, DateFormat)
	}
	id.birthdate = t
	return nil
}

// Anonymize resets every field to its default.
func (id *Identity) Anonymize() {
	id.lastname = ""
	id.firstname = ""
	id.gender = GenderUnknown
	id.birthdate = DefaultBirthdate
}

// IsAnonymized returns true iff every field equals its default.
func (id *Identity) IsAnonymized() bool {
	return id.lastname == "" && id.firstname == "" &&
		id.gender == GenderUnknown && id.birthdate.Equal(DefaultBirthdate)
}

// compareKey concatenates the ordering fields.
func (id *Identity) compareKey() string {
	return fmt.Sprintf("%s|%s|%s|%d",
		id.lastname, id.firstname, id.birthdate.Format("20060102"), id.gender)
}

// Equal compares all demographic fields.
func (id *Identity) Equal(other *Identity) bool {
	return other != nil && id.compareKey() == other.compareKey()
}

// Less orders identities by lastname, firstname, birthdate, then gender.
func (id *Identity) Less(other *Identity) bool {
	return id.compareKey() < other.compareKey()
}

// CopyFrom deep-copies the demographic fields of another identity. The parent
// back-reference is not copied.
func (id *Identity) CopyFrom(other *Identity) {
	if other == nil {
		return
	}
	id.lastname = other.lastname
	id.firstname = other.firstname
	id.gender = other.gender
	id.birthdate = other.birthdate
}

// Copy returns a deep copy without the parent back-reference.
func (id *Identity) Copy() *Identity {
	dup := NewIdentity()
	dup.CopyFrom(id)
	return dup
}

// Age returns the patient's age in whole years at the given date.
func (id *Identity) Age(at time.Time) int {
	years := at.Year() - id.birthdate.Year()
	anniversary := id.birthdate.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}

// AgeToday returns the patient's current age in whole years.
func (id *Identity) AgeToday() int {
	return id.Age(time.Now())
}

// SetAge back-solves the birthdate from a desired age at the given scan date
// and pushes the scan date into the parent's acquisition. It requires a
// parent back-reference.
func (id *Identity) SetAge(years int, scan time.Time) error {
	if id.parent == nil {
		return xvol.PreconditionErrorf("cannot set age without a parent volume")
	}
	if years < 0 {
		return xvol.DomainErrorf("age %d is negative", years)
	}
	id.SetBirthdate(scan.AddDate(-years, 0, 0))
	id.parent.Acquisition().SetScanDate(scan)
	return nil
}

// titleCase normalizes a name: first letter of each word upper, rest lower.
func titleCase(s string) string {
	words := strings.Fields(strings.TrimSpace(s))
	for i, w := range words {
		lower := strings.ToLower(w)
		_, n := utf8.DecodeRuneInString(lower)
		words[i] = strings.ToUpper(lower[:n]) + lower[n:]
	}
	return strings.Join(words, " ")
}

// --- persistence ---

type xmlIdentity struct {
	XMLName   xml.Name `xml:"identity"`
	Lastname  string   `xml:"lastname"`
	Firstname string   `xml:"firstname"`
	Birthdate string   `xml:"dateofbirthday"`
	Gender    int      `xml:"gender"`
}

// xmlBlock returns the serializable form used both standalone and inside a
// volume header.
func (id *Identity) xmlBlock() xmlIdentity {
	return xmlIdentity{
		Lastname:  id.lastname,
		Firstname: id.firstname,
		Birthdate: id.birthdate.Format(DateFormat),
		Gender:    int(id.gender),
	}
}

func (id *Identity) fromXMLBlock(x xmlIdentity) error {
	id.lastname = titleCase(x.Lastname)
	id.firstname = titleCase(x.Firstname)
	if g := Gender(x.Gender); g < GenderUnknown || g > GenderFemale {
		return xvol.DomainErrorf("gender code %d outside [0,2]", x.Gender)
	} else {
		id.gender = g
	}
	if x.Birthdate == "" {
		id.birthdate = DefaultBirthdate
		return nil
	}
	return id.SetBirthdateFromString(x.Birthdate)
}

// MarshalXML serializes the identity block.
func (id *Identity) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	return e.Encode(id.xmlBlock())
}

// UnmarshalXML restores the identity block.
func (id *Identity) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var x xmlIdentity
	if err := d.DecodeElement(&x, &start); err != nil {
		return err
	}
	return id.fromXMLBlock(x)
}

// Save writes a standalone .xidentity file.
func (id *Identity) Save(path string) error {
	if filepath.Ext(path) != IdentityExt {
		return xvol.FormatErrorf(path, "identity files use the %s extension", IdentityExt)
	}
	data, err := xml.MarshalIndent(id.xmlBlock(), "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, append([]byte(xml.Header), data...), 0644); err != nil {
		return fmt.Errorf("cannot write identity %s: %w", path, err)
	}
	return nil
}

// Load reads a standalone .xidentity file.
func (id *Identity) Load(path string) error {
	if filepath.Ext(path) != IdentityExt {
		return xvol.FormatErrorf(path, "identity files use the %s extension", IdentityExt)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read identity %s: %w", path, err)
	}
	var x xmlIdentity
	if err := xml.Unmarshal(data, &x); err != nil {
		return xvol.FormatErrorf(path, "bad identity XML: %v", err)
	}
	return id.fromXMLBlock(x)
}

// SaveToTxt writes the plain-text fallback: four newline-separated fields
// (lastname, firstname, date, gender name).
func (id *Identity) SaveToTxt(path string) error {
	text := fmt.Sprintf("%s\n%s\n%s\n%s\n",
		id.lastname, id.firstname, id.birthdate.Format(DateFormat), id.gender)
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return fmt.Errorf("cannot write identity text %s: %w", path, err)
	}
	return nil
}

// LoadFromTxt reads the plain-text fallback.
func (id *Identity) LoadFromTxt(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read identity text %s: %w", path, err)
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	if len(lines) < 4 {
		return xvol.FormatErrorf(path, "identity text needs 4 lines, got %d", len(lines))
	}
	id.SetLastname(lines[0])
	id.SetFirstname(lines[1])
	if err := id.SetBirthdateFromString(lines[2]); err != nil {
		return err
	}
	return id.SetGenderFromString(lines[3])
}
