package rollout

import (
	"fmt"
	"math/rand"
	"strings"

	"modechoice-env/internal/env"
)

// Policy picks an action index for the session's current step.
type Policy interface {
	Name() string
	Act(e *env.Environment, s *env.Session) int
}

type majorityPolicy struct{ action int }

func (p majorityPolicy) Name() string { return "majority" }
func (p majorityPolicy) Act(*env.Environment, *env.Session) int {
	return p.action
}

type uniformPolicy struct{ rng *rand.Rand }

func (p uniformPolicy) Name() string { return "uniform" }
func (p uniformPolicy) Act(e *env.Environment, _ *env.Session) int {
	return p.rng.Intn(e.NumActions())
}

// oraclePolicy reads the recorded mode; its accuracy is 1 by construction.
type oraclePolicy struct{}

func (oraclePolicy) Name() string { return "oracle" }
func (oraclePolicy) Act(e *env.Environment, s *env.Session) int {
	return e.Trajectory(e.TrajectoryIndex(s)).RecordedAction(s.Step)
}

// NewPolicy builds a baseline policy by name.
func NewPolicy(name string, e *env.Environment, seed int64) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "majority":
		return majorityPolicy{action: e.MajorityAction()}, nil
	case "uniform", "random":
		return uniformPolicy{rng: rand.New(rand.NewSource(seed))}, nil
	case "oracle":
		return oraclePolicy{}, nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}
