package env

type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
)

func (p Phase) String() string {
	if p == PhaseRunning {
		return "running"
	}
	return "idle"
}

// Session is the mutable replay position of one caller. It must not be
// shared between goroutines without external locking.
type Session struct {
	Cursor int       // position in the environment's replay order
	Step   int       // step within the current trajectory
	State  []float64 // last state handed to the caller
	Phase  Phase

	started bool
}

// StepResult mirrors the (state, reward, done, info) tuple of gym-style
// environments.
type StepResult struct {
	State  []float64
	Reward float64
	Done   bool
	Info   map[string]any
}

// NewSession starts before the first trajectory of the replay order, so the
// first Reset lands on order position 1.
func (e *Environment) NewSession() *Session {
	return &Session{}
}

// TrajectoryIndex is the dataset index of the session's current trajectory.
func (e *Environment) TrajectoryIndex(s *Session) int {
	return e.order[s.Cursor]
}

// Reset advances to the next trajectory in the replay order, wrapping
// around, and returns its first state.
func (e *Environment) Reset(s *Session) []float64 {
	s.Cursor = (s.Cursor + 1) % len(e.order)
	s.Step = 0
	s.State = e.trajs[e.order[s.Cursor]].State(0)
	s.Phase = PhaseRunning
	s.started = true
	return s.State
}

// Step scores action against the recorded mode at the current step. On the
// final step done is true and the step counter rewinds to 0, but the state
// is left as it was: callers must Reset to obtain a fresh first state.
// Stepping on without a Reset replays the same trajectory.
func (e *Environment) Step(s *Session, action int) (StepResult, error) {
	if !s.started {
		return StepResult{}, ErrNotReset
	}
	tr := &e.trajs[e.order[s.Cursor]]
	reward := 0.0
	if tr.RecordedAction(s.Step) == action {
		reward = 1
	}

	done := false
	if s.Step == tr.Len()-1 {
		done = true
		s.Step = 0
		s.Phase = PhaseIdle
	} else {
		s.Step++
		s.State = tr.State(s.Step)
		s.Phase = PhaseRunning
	}
	return StepResult{State: s.State, Reward: reward, Done: done, Info: map[string]any{}}, nil
}
