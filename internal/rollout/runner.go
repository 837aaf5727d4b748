package rollout

import (
	"context"
	"errors"
	"log"
	"time"

	"modechoice-env/internal/env"
	"modechoice-env/internal/metrics"
	"modechoice-env/internal/publisher"
)

type StepPublisher interface {
	PublishStep(msg publisher.StepMessage) error
}

type Summary struct {
	Policy   string  `json:"policy"`
	Episodes int     `json:"episodes"`
	Steps    int     `json:"steps"`
	Correct  int     `json:"correct"`
	Accuracy float64 `json:"accuracy"`
}

type Runner struct {
	env     *env.Environment
	pub     StepPublisher
	metrics *metrics.Collector
}

// NewRunner accepts a nil publisher and a nil collector.
func NewRunner(e *env.Environment, pub StepPublisher, m *metrics.Collector) *Runner {
	return &Runner{env: e, pub: pub, metrics: m}
}

// Run plays episodes with a fresh session. A cancelled context stops the
// rollout between episodes and returns the partial summary with ctx.Err().
func (r *Runner) Run(ctx context.Context, p Policy, episodes int) (Summary, error) {
	if episodes <= 0 {
		return Summary{Policy: p.Name()}, errors.New("episodes must be positive")
	}
	if r.metrics != nil {
		r.metrics.Evaluations.WithLabelValues(p.Name()).Inc()
	}
	sum := Summary{Policy: p.Name()}
	s := r.env.NewSession()
	sessionName := "eval-" + p.Name()
	logEvery := episodes / 10
	if logEvery == 0 {
		logEvery = 1
	}

	for ep := 0; ep < episodes; ep++ {
		select {
		case <-ctx.Done():
			sum.finish()
			return sum, ctx.Err()
		default:
		}
		r.env.Reset(s)
		r.metrics.ObserveReset()
		tr := r.env.Trajectory(r.env.TrajectoryIndex(s))
		correct, steps := 0, 0
		for {
			step := s.Step
			action := p.Act(r.env, s)
			start := time.Now()
			res, err := r.env.Step(s, action)
			if err != nil {
				return sum, err
			}
			r.metrics.ObserveStep(res.Reward, time.Since(start).Seconds())
			steps++
			if res.Reward > 0 {
				correct++
			}
			if r.pub != nil {
				msg := publisher.StepMessage{
					Session:        sessionName,
					Trajectory:     tr.Key,
					Step:           step,
					Action:         action,
					RecordedAction: tr.RecordedAction(step),
					Reward:         res.Reward,
					Done:           res.Done,
					Timestamp:      time.Now(),
				}
				if err := r.pub.PublishStep(msg); err != nil {
					log.Printf("publish error for %s: %v", sessionName, err)
				}
			}
			if res.Done {
				break
			}
		}
		r.metrics.ObserveEpisode(correct, steps)
		sum.Episodes++
		sum.Steps += steps
		sum.Correct += correct
		if (ep+1)%logEvery == 0 {
			log.Printf("rollout %s: %d/%d episodes, accuracy so far %.3f", p.Name(), ep+1, episodes, float64(sum.Correct)/float64(sum.Steps))
		}
	}
	sum.finish()
	return sum, nil
}

func (s *Summary) finish() {
	if s.Steps > 0 {
		s.Accuracy = float64(s.Correct) / float64(s.Steps)
	}
}
