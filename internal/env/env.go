// Package env replays recorded person-day trajectories as episodes. The
// Environment is read-only after construction; everything that moves during
// an episode lives in a caller-held Session.
package env

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/stat"

	"modechoice-env/internal/trajectory"
)

var (
	ErrNoTrajectories = errors.New("no trajectories to replay")
	ErrNotReset       = errors.New("session has not been reset")
)

type Environment struct {
	dataset  *trajectory.Dataset
	trajs    []trajectory.Trajectory
	order    []int
	features int
	actions  int

	labelCounts []int
	entropy     float64
}

// New fixes a random replay order over the dataset's trajectories.
func New(ds *trajectory.Dataset, rng *rand.Rand) (*Environment, error) {
	if ds == nil || len(ds.Trajectories) == 0 {
		return nil, ErrNoTrajectories
	}
	first := ds.Trajectories[0]
	_, nf := first.States.Dims()
	_, na := first.Actions.Dims()
	e := &Environment{
		dataset:  ds,
		trajs:    ds.Trajectories,
		order:    rng.Perm(len(ds.Trajectories)),
		features: nf,
		actions:  na,
	}
	for i := range e.trajs {
		tr := &e.trajs[i]
		if _, c := tr.States.Dims(); c != nf {
			return nil, fmt.Errorf("%w: trajectory %d has %d features, want %d", trajectory.ErrShapeMismatch, i, c, nf)
		}
		if _, c := tr.Actions.Dims(); c != na {
			return nil, fmt.Errorf("%w: trajectory %d has %d actions, want %d", trajectory.ErrShapeMismatch, i, c, na)
		}
	}
	e.computeEntropy()
	return e, nil
}

func (e *Environment) NumFeatures() int     { return e.features }
func (e *Environment) NumActions() int      { return e.actions }
func (e *Environment) NumTrajectories() int { return len(e.trajs) }

func (e *Environment) Dataset() *trajectory.Dataset { return e.dataset }

// Order returns a copy of the replay permutation.
func (e *Environment) Order() []int {
	return append([]int(nil), e.order...)
}

func (e *Environment) Trajectory(i int) *trajectory.Trajectory { return &e.trajs[i] }

// LabelCounts returns how often each action index is the recorded mode.
func (e *Environment) LabelCounts() []int {
	return append([]int(nil), e.labelCounts...)
}

// Entropy is the Shannon entropy (nats) of the recorded mode distribution.
func (e *Environment) Entropy() float64 { return e.entropy }

func (e *Environment) computeEntropy() {
	e.labelCounts = make([]int, e.actions)
	total := 0
	for i := range e.trajs {
		tr := &e.trajs[i]
		for s := 0; s < tr.Len(); s++ {
			if a := tr.RecordedAction(s); a >= 0 {
				e.labelCounts[a]++
				total++
			}
		}
	}
	probs := make([]float64, len(e.labelCounts))
	for i, c := range e.labelCounts {
		probs[i] = float64(c) / float64(total)
	}
	e.entropy = stat.Entropy(probs)
}

// MajorityAction is the most frequently recorded action index.
func (e *Environment) MajorityAction() int {
	best := 0
	for i, c := range e.labelCounts {
		if c > e.labelCounts[best] {
			best = i
		}
	}
	return best
}
