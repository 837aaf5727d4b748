package trajectory

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

var ErrShapeMismatch = errors.New("trajectory shape mismatch")

// Trajectory is one person-day episode: a row per trip, ordered by origin time.
type Trajectory struct {
	Key     string     // person-day key
	States  *mat.Dense // steps x features, normalized
	Actions *mat.Dense // steps x modes, one-hot
	Rewards []float64
}

func (t *Trajectory) Len() int { return len(t.Rewards) }

// State returns a copy of the state row at step i.
func (t *Trajectory) State(i int) []float64 {
	return mat.Row(nil, i, t.States)
}

// RecordedAction returns the argmax of the one-hot action row at step i.
func (t *Trajectory) RecordedAction(i int) int {
	return Argmax(t.Actions.RawRowView(i))
}

func (t *Trajectory) validate(features, modes int) error {
	sr, sc := t.States.Dims()
	ar, ac := t.Actions.Dims()
	if sr != ar || sr != len(t.Rewards) {
		return fmt.Errorf("%w: %s has %d states, %d actions, %d rewards", ErrShapeMismatch, t.Key, sr, ar, len(t.Rewards))
	}
	if sc != features || ac != modes {
		return fmt.Errorf("%w: %s is %dx%d/%d, want %d features and %d modes", ErrShapeMismatch, t.Key, sr, sc, ac, features, modes)
	}
	return nil
}

// Norm holds the z-score parameters shared by every trajectory of a dataset.
type Norm struct {
	Mean []float64
	Std  []float64
}

// Degenerate returns the indices of features whose normalization divides by
// zero or produced non-finite parameters.
func (n Norm) Degenerate() []int {
	var out []int
	for i, s := range n.Std {
		if s == 0 || math.IsNaN(s) || math.IsInf(s, 0) || math.IsNaN(n.Mean[i]) {
			out = append(out, i)
		}
	}
	return out
}

// Dataset is a trajectory collection plus the metadata needed to feed new
// trips through the same normalization.
type Dataset struct {
	Features     []string
	Modes        []string
	Norm         Norm
	Trajectories []Trajectory
}

func (d *Dataset) Validate() error {
	if len(d.Norm.Mean) != len(d.Features) || len(d.Norm.Std) != len(d.Features) {
		return fmt.Errorf("%w: %d features but %d/%d normalization values", ErrShapeMismatch, len(d.Features), len(d.Norm.Mean), len(d.Norm.Std))
	}
	for i := range d.Trajectories {
		if err := d.Trajectories[i].validate(len(d.Features), len(d.Modes)); err != nil {
			return err
		}
	}
	return nil
}

// Split partitions the dataset by trajectory order: the first int(n*fraction)
// trajectories go to train, the rest to test.
func Split(d *Dataset, fraction float64) (train, test *Dataset) {
	cutoff := int(float64(len(d.Trajectories)) * fraction)
	if cutoff < 0 {
		cutoff = 0
	}
	if cutoff > len(d.Trajectories) {
		cutoff = len(d.Trajectories)
	}
	train = &Dataset{Features: d.Features, Modes: d.Modes, Norm: d.Norm, Trajectories: d.Trajectories[:cutoff]}
	test = &Dataset{Features: d.Features, Modes: d.Modes, Norm: d.Norm, Trajectories: d.Trajectories[cutoff:]}
	return train, test
}

// Argmax returns the first index of the largest value; -1 for an empty slice.
func Argmax(v []float64) int {
	best := -1
	for i, x := range v {
		if best < 0 || x > v[best] {
			best = i
		}
	}
	return best
}
