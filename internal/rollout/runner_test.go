package rollout

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/mat"

	"modechoice-env/internal/env"
	"modechoice-env/internal/metrics"
	"modechoice-env/internal/publisher"
	"modechoice-env/internal/trajectory"
)

type recordingPublisher struct {
	msgs []publisher.StepMessage
}

func (p *recordingPublisher) PublishStep(msg publisher.StepMessage) error {
	p.msgs = append(p.msgs, msg)
	return nil
}

// labels: [0 0 1] and [0 1] -> 3 of 5 recorded modes are 0.
func testEnv(t *testing.T) *env.Environment {
	t.Helper()
	mk := func(key string, labels []int) trajectory.Trajectory {
		n := len(labels)
		actions := make([]float64, n*2)
		rewards := make([]float64, n)
		for i, l := range labels {
			actions[i*2+l] = 1
			rewards[i] = 1
		}
		return trajectory.Trajectory{
			Key:     key,
			States:  mat.NewDense(n, 1, make([]float64, n)),
			Actions: mat.NewDense(n, 2, actions),
			Rewards: rewards,
		}
	}
	ds := &trajectory.Dataset{
		Features:     []string{"feat_x"},
		Modes:        []string{"Mode::Car", "Mode::Walk"},
		Norm:         trajectory.Norm{Mean: []float64{0}, Std: []float64{1}},
		Trajectories: []trajectory.Trajectory{mk("a", []int{0, 0, 1}), mk("b", []int{0, 1})},
	}
	e, err := env.New(ds, rand.New(rand.NewSource(3)))
	if err != nil {
		t.Fatalf("env.New: %v", err)
	}
	return e
}

func TestMajorityRolloutOnePass(t *testing.T) {
	e := testEnv(t)
	pub := &recordingPublisher{}
	m := metrics.NewCollector(e.NumTrajectories(), e.NumFeatures(), e.NumActions(), e.Entropy())
	p, err := NewPolicy("majority", e, 1)
	if err != nil {
		t.Fatalf("NewPolicy: %v", err)
	}
	sum, err := NewRunner(e, pub, m).Run(context.Background(), p, 2)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Episodes != 2 || sum.Steps != 5 || sum.Correct != 3 {
		t.Fatalf("unexpected summary %+v", sum)
	}
	if sum.Accuracy != 0.6 {
		t.Fatalf("expected accuracy 0.6, got %v", sum.Accuracy)
	}
	if len(pub.msgs) != 5 {
		t.Fatalf("expected 5 published steps, got %d", len(pub.msgs))
	}
	dones := 0
	for _, msg := range pub.msgs {
		if msg.Done {
			dones++
		}
		if msg.Session != "eval-majority" {
			t.Fatalf("unexpected session name %q", msg.Session)
		}
	}
	if dones != 2 {
		t.Fatalf("expected 2 terminal messages, got %d", dones)
	}
}

func TestOracleIsPerfect(t *testing.T) {
	e := testEnv(t)
	p, _ := NewPolicy("oracle", e, 1)
	sum, err := NewRunner(e, nil, nil).Run(context.Background(), p, 7)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Accuracy != 1 {
		t.Fatalf("oracle accuracy should be 1, got %v", sum.Accuracy)
	}
}

func TestUniformStaysInRange(t *testing.T) {
	e := testEnv(t)
	p, _ := NewPolicy("uniform", e, 9)
	s := e.NewSession()
	e.Reset(s)
	for i := 0; i < 50; i++ {
		if a := p.Act(e, s); a < 0 || a >= e.NumActions() {
			t.Fatalf("action %d out of range", a)
		}
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	e := testEnv(t)
	p, _ := NewPolicy("majority", e, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := NewRunner(e, nil, nil).Run(ctx, p, 10)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sum.Episodes != 0 {
		t.Fatalf("expected no episodes, got %d", sum.Episodes)
	}
}

func TestUnknownPolicy(t *testing.T) {
	if _, err := NewPolicy("greedy", testEnv(t), 1); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
