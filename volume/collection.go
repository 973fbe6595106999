/*
	This file implements the volume collection: an ordered container keyed by
	array ID with homogeneity tracking, batch attribute access through a typed
	dispatch table, voxelwise aggregate reductions over the member stack, and
	label-volume combination (threshold conversion, majority voting, binary
	STAPLE).

	The collection holds shared references: the same volume may appear in
	several collections and mutations through one alias are visible through
	all. Homogeneity (same field of view and datatype as the first member) is
	re-derived on every insert, remove, and replace; the aggregate reductions
	refuse heterogeneous collections.
*/

package volume

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/neurimage/xvol/attr"
	"github.com/neurimage/xvol/imagebuf"
	"github.com/neurimage/xvol/xvol"
)

// Collection is an ordered set of volumes keyed by array ID.
type Collection struct {
	members     []*Volume
	homogeneous bool
}

// NewCollection returns an empty collection. An empty collection counts as
// homogeneous.
func NewCollection() *Collection {
	return &Collection{homogeneous: true}
}

// Count returns the number of members.
func (c *Collection) Count() int { return len(c.members) }

// IsHomogeneous reports whether every member shares the first member's field
// of view and voxel datatype.
func (c *Collection) IsHomogeneous() bool { return c.homogeneous }

func (c *Collection) updateHomogeneity() {
	c.homogeneous = true
	if len(c.members) == 0 {
		return
	}
	first := c.members[0].buf
	for _, v := range c.members[1:] {
		if first == nil || v.buf == nil ||
			!first.SameFOV(v.buf) || first.DataType() != v.buf.DataType() {
			c.homogeneous = false
			return
		}
	}
}

// Append adds a volume. A member with the same array ID is rejected.
func (c *Collection) Append(v *Volume) error {
	if v == nil {
		return xvol.TypeMismatchf("nil volume")
	}
	if c.Contains(v.ArrayID()) {
		return xvol.DomainErrorf("duplicate array ID %s", v.ArrayID())
	}
	c.members = append(c.members, v)
	c.updateHomogeneity()
	return nil
}

// At returns the member at an index; negative indices count from the end.
func (c *Collection) At(i int) (*Volume, error) {
	i, err := c.resolve(i)
	if err != nil {
		return nil, err
	}
	return c.members[i], nil
}

// ByID returns the member with the given array ID.
func (c *Collection) ByID(arrayID string) (*Volume, error) {
	for _, v := range c.members {
		if v.ArrayID() == arrayID {
			return v, nil
		}
	}
	return nil, xvol.DomainErrorf("no member with array ID %s", arrayID)
}

// Contains reports whether a member with the given array ID exists.
func (c *Collection) Contains(arrayID string) bool {
	_, err := c.ByID(arrayID)
	return err == nil
}

// IndexOf returns the position of the member with the given array ID, or -1.
func (c *Collection) IndexOf(arrayID string) int {
	for i, v := range c.members {
		if v.ArrayID() == arrayID {
			return i
		}
	}
	return -1
}

// RemoveAt deletes the member at an index.
func (c *Collection) RemoveAt(i int) error {
	i, err := c.resolve(i)
	if err != nil {
		return err
	}
	c.members = append(c.members[:i], c.members[i+1:]...)
	c.updateHomogeneity()
	return nil
}

// RemoveByID deletes the member with the given array ID.
func (c *Collection) RemoveByID(arrayID string) error {
	i := c.IndexOf(arrayID)
	if i < 0 {
		return xvol.DomainErrorf("no member with array ID %s", arrayID)
	}
	return c.RemoveAt(i)
}

// Replace swaps the member at an index for another volume.
func (c *Collection) Replace(i int, v *Volume) error {
	i, err := c.resolve(i)
	if err != nil {
		return err
	}
	if v == nil {
		return xvol.TypeMismatchf("nil volume")
	}
	if j := c.IndexOf(v.ArrayID()); j >= 0 && j != i {
		return xvol.DomainErrorf("duplicate array ID %s", v.ArrayID())
	}
	c.members[i] = v
	c.updateHomogeneity()
	return nil
}

// Clear removes every member.
func (c *Collection) Clear() {
	c.members = nil
	c.homogeneous = true
}

// IDs returns the member array IDs in order.
func (c *Collection) IDs() []string {
	out := make([]string, len(c.members))
	for i, v := range c.members {
		out[i] = v.ArrayID()
	}
	return out
}

// Slice returns the members at the given positions as a new collection.
func (c *Collection) Slice(indices ...int) (*Collection, error) {
	out := NewCollection()
	for _, i := range indices {
		v, err := c.At(i)
		if err != nil {
			return nil, err
		}
		if err := out.Append(v); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Collection) resolve(i int) (int, error) {
	if i < 0 {
		i += len(c.members)
	}
	if i < 0 || i >= len(c.members) {
		return 0, xvol.DomainErrorf("index %d outside collection of %d", i, len(c.members))
	}
	return i, nil
}

// --- batch attribute dispatch ---

// Getter reads one attribute of a volume for batch access.
type Getter func(*Volume) interface{}

// Setter writes one attribute of a volume for batch access.
type Setter func(*Volume, interface{}) error

// The dispatch tables enumerate the batch-forwardable accessors once, so
// cohort-wide metadata edits stay statically typed instead of resolving
// method names at run time.
var getters = map[string]Getter{
	"Lastname":  func(v *Volume) interface{} { return v.Identity().Lastname() },
	"Firstname": func(v *Volume) interface{} { return v.Identity().Firstname() },
	"Gender":    func(v *Volume) interface{} { return v.Identity().Gender() },
	"Birthdate": func(v *Volume) interface{} { return v.Identity().Birthdate() },
	"Modality":  func(v *Volume) interface{} { return v.Acquisition().Modality() },
	"Sequence":  func(v *Volume) interface{} { return v.Acquisition().Sequence() },
	"Unit":      func(v *Volume) interface{} { return v.Acquisition().Unit() },
	"ScanDate":  func(v *Volume) interface{} { return v.Acquisition().ScanDate() },
	"DOF":       func(v *Volume) interface{} { return v.Acquisition().DOF() },
	"SpaceID":   func(v *Volume) interface{} { return v.SpaceID() },
	"ArrayID":   func(v *Volume) interface{} { return v.ArrayID() },
	"Filename":  func(v *Volume) interface{} { return v.Filename() },
	"AC":        func(v *Volume) interface{} { return v.ACPC().AC() },
	"PC":        func(v *Volume) interface{} { return v.ACPC().PC() },
	"Window": func(v *Volume) interface{} {
		min, max := v.Display().Window()
		return [2]float64{min, max}
	},
}

var setters = map[string]Setter{
	"Lastname": func(v *Volume, arg interface{}) error {
		s, ok := arg.(string)
		if !ok {
			return xvol.TypeMismatchf("Lastname wants string, got %T", arg)
		}
		v.Identity().SetLastname(s)
		return nil
	},
	"Firstname": func(v *Volume, arg interface{}) error {
		s, ok := arg.(string)
		if !ok {
			return xvol.TypeMismatchf("Firstname wants string, got %T", arg)
		}
		v.Identity().SetFirstname(s)
		return nil
	},
	"Gender": func(v *Volume, arg interface{}) error {
		s, ok := arg.(string)
		if !ok {
			return xvol.TypeMismatchf("Gender wants string, got %T", arg)
		}
		return v.Identity().SetGenderFromString(s)
	},
	"Birthdate": func(v *Volume, arg interface{}) error {
		s, ok := arg.(string)
		if !ok {
			return xvol.TypeMismatchf("Birthdate wants string, got %T", arg)
		}
		return v.Identity().SetBirthdateFromString(s)
	},
	"Sequence": func(v *Volume, arg interface{}) error {
		s, ok := arg.(string)
		if !ok {
			return xvol.TypeMismatchf("Sequence wants string, got %T", arg)
		}
		return v.Acquisition().SetSequence(s)
	},
	"DOF": func(v *Volume, arg interface{}) error {
		n, ok := arg.(int)
		if !ok {
			return xvol.TypeMismatchf("DOF wants int, got %T", arg)
		}
		return v.Acquisition().SetDOF(n)
	},
	"Window": func(v *Volume, arg interface{}) error {
		w, ok := arg.([2]float64)
		if !ok {
			return xvol.TypeMismatchf("Window wants [2]float64, got %T", arg)
		}
		return v.Display().SetWindow(w[0], w[1])
	},
	"LutPreset": func(v *Volume, arg interface{}) error {
		s, ok := arg.(string)
		if !ok {
			return xvol.TypeMismatchf("LutPreset wants string, got %T", arg)
		}
		return v.Display().SetLutPreset(s)
	},
	"SpaceID": func(v *Volume, arg interface{}) error {
		s, ok := arg.(string)
		if !ok {
			return xvol.TypeMismatchf("SpaceID wants string, got %T", arg)
		}
		v.SetSpaceID(s)
		return nil
	},
}

// GetAll reads a named attribute from every member in order.
func (c *Collection) GetAll(name string) ([]interface{}, error) {
	get, found := getters[name]
	if !found {
		return nil, xvol.DomainErrorf("no batch getter %q", name)
	}
	out := make([]interface{}, len(c.members))
	for i, v := range c.members {
		out[i] = get(v)
	}
	return out, nil
}

// SetAll broadcasts one value for a named attribute to every member.
func (c *Collection) SetAll(name string, arg interface{}) error {
	set, found := setters[name]
	if !found {
		return xvol.DomainErrorf("no batch setter %q", name)
	}
	for _, v := range c.members {
		if err := set(v, arg); err != nil {
			return err
		}
	}
	return nil
}

// SetEach writes one value per member for a named attribute.
func (c *Collection) SetEach(name string, args []interface{}) error {
	set, found := setters[name]
	if !found {
		return xvol.DomainErrorf("no batch setter %q", name)
	}
	if len(args) != len(c.members) {
		return xvol.DomainErrorf("%d values for %d members", len(args), len(c.members))
	}
	for i, v := range c.members {
		if err := set(v, args[i]); err != nil {
			return err
		}
	}
	return nil
}

// AnonymizeAll strips the identity of every member.
func (c *Collection) AnonymizeAll() {
	for _, v := range c.members {
		v.Identity().Anonymize()
	}
}

// --- aggregate reductions ---

// stack validates the reduction preconditions and returns the members to
// reduce: the whole collection or the given index subset.
func (c *Collection) stack(subset []int) ([]*Volume, error) {
	if len(c.members) == 0 {
		return nil, xvol.PreconditionErrorf("reduction over an empty collection")
	}
	if !c.homogeneous {
		return nil, xvol.PreconditionErrorf("reduction requires a homogeneous collection")
	}
	members := c.members
	if len(subset) > 0 {
		members = make([]*Volume, len(subset))
		for i, idx := range subset {
			v, err := c.At(idx)
			if err != nil {
				return nil, err
			}
			members[i] = v
		}
	}
	if members[0].buf.Components() != 1 {
		return nil, xvol.PreconditionErrorf("reduction requires single-component members")
	}
	return members, nil
}

// reduce computes one output value per voxel from the stacked member values.
func (c *Collection) reduce(subset []int, sequence string, dtype xvol.DataType,
	fn func(vals []float64) float64) (*Volume, error) {

	members, err := c.stack(subset)
	if err != nil {
		return nil, err
	}
	first := members[0].buf
	out := imagebuf.New(first.Size(), 1, dtype)
	out.SetSpacing(first.Spacing())
	out.SetOrigin(first.Origin())
	out.SetDirections(first.Directions())

	floats := make([][]float64, len(members))
	for i, v := range members {
		floats[i] = v.buf.Floats()
	}
	vals := make([]float64, len(members))
	size := first.Size()
	n := size[0] * size[1] * size[2]
	for i := 0; i < n; i++ {
		for j := range floats {
			vals[j] = floats[j][i]
		}
		out.SetValueAt(i%size[0], (i/size[0])%size[1], i/(size[0]*size[1]), 0, fn(vals))
	}
	return c.wrapReduction(members[0], out, sequence), nil
}

// wrapReduction finishes an aggregate result: identity and ACPC come from
// the first reduced member, the sequence marks the reduction kind, and the
// space carries over only when every member shares it.
func (c *Collection) wrapReduction(first *Volume, buf *imagebuf.Buffer, sequence string) *Volume {
	out := NewFromBuffer(buf)
	out.CopyAttributesFrom(first, CopyIdentity|CopyACPC)
	out.acquisition.SetSequence(sequence)
	shared := true
	for _, v := range c.members {
		if v.SpaceID() != first.SpaceID() {
			shared = false
			break
		}
	}
	if shared {
		out.CopyAttributesFrom(first, CopySpaceID|CopyTransforms)
	}
	out.path = first.prefixedPath(sequence)
	return out
}

// Mean returns the voxelwise mean volume, optionally over an index subset.
func (c *Collection) Mean(subset ...int) (*Volume, error) {
	return c.reduce(subset, attr.SeqMeanMap, xvol.T_float64, func(vals []float64) float64 {
		return stat.Mean(vals, nil)
	})
}

// Std returns the voxelwise sample standard deviation volume.
func (c *Collection) Std(subset ...int) (*Volume, error) {
	return c.reduce(subset, attr.SeqStdMap, xvol.T_float64, func(vals []float64) float64 {
		if len(vals) < 2 {
			return 0
		}
		return stat.StdDev(vals, nil)
	})
}

// Median returns the voxelwise median volume.
func (c *Collection) Median(subset ...int) (*Volume, error) {
	return c.reduce(subset, attr.SeqMedianMap, xvol.T_float64, func(vals []float64) float64 {
		sort.Float64s(vals)
		return stat.Quantile(0.5, stat.Empirical, vals, nil)
	})
}

// Percentile returns the voxelwise q-quantile volume for q in [0,1].
func (c *Collection) Percentile(q float64, subset ...int) (*Volume, error) {
	if q < 0 || q > 1 {
		return nil, xvol.DomainErrorf("quantile %g outside [0,1]", q)
	}
	return c.reduce(subset, attr.SeqAlgebraMap, xvol.T_float64, func(vals []float64) float64 {
		sort.Float64s(vals)
		return stat.Quantile(q, stat.Empirical, vals, nil)
	})
}

// Min returns the voxelwise minimum volume.
func (c *Collection) Min(subset ...int) (*Volume, error) {
	return c.reduce(subset, attr.SeqMinMap, xvol.T_float64, func(vals []float64) float64 {
		min := vals[0]
		for _, x := range vals[1:] {
			if x < min {
				min = x
			}
		}
		return min
	})
}

// Max returns the voxelwise maximum volume.
func (c *Collection) Max(subset ...int) (*Volume, error) {
	return c.reduce(subset, attr.SeqMaxMap, xvol.T_float64, func(vals []float64) float64 {
		max := vals[0]
		for _, x := range vals[1:] {
			if x > max {
				max = x
			}
		}
		return max
	})
}

// ArgMin returns the voxelwise index of the minimum member as a uint16
// volume.
func (c *Collection) ArgMin(subset ...int) (*Volume, error) {
	return c.reduce(subset, attr.SeqAlgebraMap, xvol.T_uint16, func(vals []float64) float64 {
		best := 0
		for i, x := range vals[1:] {
			if x < vals[best] {
				best = i + 1
			}
		}
		return float64(best)
	})
}

// ArgMax returns the voxelwise index of the maximum member as a uint16
// volume.
func (c *Collection) ArgMax(subset ...int) (*Volume, error) {
	return c.reduce(subset, attr.SeqAlgebraMap, xvol.T_uint16, func(vals []float64) float64 {
		best := 0
		for i, x := range vals[1:] {
			if x > vals[best] {
				best = i + 1
			}
		}
		return float64(best)
	})
}

// --- label combination ---

// requireLabelMembers validates the combination preconditions over label
// volumes.
func (c *Collection) requireLabelMembers() ([]*Volume, error) {
	members, err := c.stack(nil)
	if err != nil {
		return nil, err
	}
	for i, v := range members {
		if v.acquisition.Modality() != attr.MLabel {
			return nil, xvol.PreconditionErrorf("member %d is %s, combination requires Label modality",
				i, v.acquisition.Modality())
		}
	}
	return members, nil
}

// finishLabelResult wraps a combination result as a uint8 label volume.
func (c *Collection) finishLabelResult(first *Volume, buf *imagebuf.Buffer, prefix string) (*Volume, error) {
	out := c.wrapReduction(first, buf, attr.SeqLabels)
	if err := out.acquisition.SetModalityToLB(); err != nil {
		return nil, err
	}
	out.path = first.prefixedPath(prefix)
	return out, nil
}

// ToLabelVolume converts a stack of probability maps into one label volume:
// each voxel takes 1 + the index of the member with the highest probability,
// or 0 when no member reaches the threshold. Every member must hold values
// within [0,1].
func (c *Collection) ToLabelVolume(threshold float64) (*Volume, error) {
	members, err := c.stack(nil)
	if err != nil {
		return nil, err
	}
	if threshold < 0 || threshold > 1 {
		return nil, xvol.DomainErrorf("threshold %g outside [0,1]", threshold)
	}
	if len(members) > 255 {
		return nil, xvol.DomainErrorf("%d members exceed the 255 label indices", len(members))
	}
	for i, v := range members {
		min, max := v.buf.MinMax()
		if min < 0 || max > 1 {
			return nil, xvol.PreconditionErrorf("member %d range [%g,%g] outside [0,1]", i, min, max)
		}
	}

	first := members[0].buf
	buf, err := c.combine(members, func(vals []float64) float64 {
		best, bestVal := -1, threshold
		for j, x := range vals {
			if x > bestVal {
				best, bestVal = j, x
			}
		}
		if best < 0 {
			return 0
		}
		return float64(best + 1)
	}, first)
	if err != nil {
		return nil, err
	}
	return c.finishLabelResult(members[0], buf, "labels")
}

// LabelVoting combines label volumes by voxelwise majority vote, ties going
// to the lowest label. Every member must have Label modality.
func (c *Collection) LabelVoting() (*Volume, error) {
	members, err := c.requireLabelMembers()
	if err != nil {
		return nil, err
	}
	first := members[0].buf
	var counts [256]int
	buf, err := c.combine(members, func(vals []float64) float64 {
		for i := range counts {
			counts[i] = 0
		}
		for _, x := range vals {
			counts[int(x)&0xff]++
		}
		best := 0
		for i, n := range counts {
			if n > counts[best] {
				best = i
			}
		}
		return float64(best)
	}, first)
	if err != nil {
		return nil, err
	}
	return c.finishLabelResult(members[0], buf, "voting")
}

// combine evaluates fn over the stacked values of every voxel into a uint8
// buffer with the first member's geometry.
func (c *Collection) combine(members []*Volume, fn func([]float64) float64,
	first *imagebuf.Buffer) (*imagebuf.Buffer, error) {

	out := imagebuf.New(first.Size(), 1, xvol.T_uint8)
	out.SetSpacing(first.Spacing())
	out.SetOrigin(first.Origin())
	out.SetDirections(first.Directions())

	floats := make([][]float64, len(members))
	for i, v := range members {
		floats[i] = v.buf.Floats()
	}
	vals := make([]float64, len(members))
	size := first.Size()
	n := size[0] * size[1] * size[2]
	for i := 0; i < n; i++ {
		for j := range floats {
			vals[j] = floats[j][i]
		}
		out.SetValueAt(i%size[0], (i/size[0])%size[1], i/(size[0]*size[1]), 0, fn(vals))
	}
	return out, nil
}

// stapleIterations bounds the EM loop; convergence is usually much faster.
const stapleIterations = 50

// Staple combines binary label volumes with the STAPLE algorithm: an EM
// estimate of the latent true segmentation together with a per-rater
// sensitivity and specificity. Members must be Label volumes holding 0/1
// values. The result is the consensus probability map; threshold at 0.5 for
// a crisp mask.
func (c *Collection) Staple() (*Volume, error) {
	members, err := c.requireLabelMembers()
	if err != nil {
		return nil, err
	}
	for i, v := range members {
		_, max := v.buf.MinMax()
		if max > 1 {
			return nil, xvol.PreconditionErrorf("member %d holds labels above 1, STAPLE is binary", i)
		}
	}

	raters := make([][]float64, len(members))
	for i, v := range members {
		raters[i] = v.buf.Floats()
	}
	n := len(raters[0])

	// Prior from the mean rater decision, EM on sensitivity p and
	// specificity q per rater.
	prior := 0.0
	for _, d := range raters {
		for _, x := range d {
			prior += x
		}
	}
	prior /= float64(n * len(raters))
	if prior <= 0 || prior >= 1 {
		return nil, xvol.PreconditionErrorf("degenerate STAPLE input, foreground fraction %g", prior)
	}

	p := make([]float64, len(raters))
	q := make([]float64, len(raters))
	for j := range raters {
		p[j], q[j] = 0.9, 0.9
	}
	w := make([]float64, n)

	for iter := 0; iter < stapleIterations; iter++ {
		// E step: posterior probability of true foreground per voxel.
		for i := 0; i < n; i++ {
			a, b := prior, 1-prior
			for j, d := range raters {
				if d[i] != 0 {
					a *= p[j]
					b *= 1 - q[j]
				} else {
					a *= 1 - p[j]
					b *= q[j]
				}
			}
			if a+b == 0 {
				w[i] = 0
			} else {
				w[i] = a / (a + b)
			}
		}
		// M step: re-estimate rater performance.
		sumW := 0.0
		for _, x := range w {
			sumW += x
		}
		if sumW == 0 || sumW == float64(n) {
			break
		}
		maxDelta := 0.0
		for j, d := range raters {
			tp, tn := 0.0, 0.0
			for i, x := range w {
				if d[i] != 0 {
					tp += x
				} else {
					tn += 1 - x
				}
			}
			np := tp / sumW
			nq := tn / (float64(n) - sumW)
			maxDelta = math.Max(maxDelta, math.Max(math.Abs(np-p[j]), math.Abs(nq-q[j])))
			p[j], q[j] = np, nq
		}
		if maxDelta < 1e-6 {
			break
		}
	}

	first := members[0].buf
	out := imagebuf.New(first.Size(), 1, xvol.T_float64)
	out.SetSpacing(first.Spacing())
	out.SetOrigin(first.Origin())
	out.SetDirections(first.Directions())
	size := first.Size()
	for i := 0; i < n; i++ {
		out.SetValueAt(i%size[0], (i/size[0])%size[1], i/(size[0]*size[1]), 0, w[i])
	}
	result := c.wrapReduction(members[0], out, attr.SeqMask)
	result.path = members[0].prefixedPath("staple")
	return result, nil
}
