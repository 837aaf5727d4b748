package metrics

import (
	"log"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Trajectories prometheus.Gauge
	Features     prometheus.Gauge
	Actions      prometheus.Gauge
	LabelEntropy prometheus.Gauge

	SessionsActive  prometheus.Gauge
	EpisodesStarted prometheus.Counter
	Steps           prometheus.Counter
	CorrectSteps    prometheus.Counter

	EpisodeAccuracy prometheus.Histogram
	StepDuration    prometheus.Histogram

	Evaluations *prometheus.CounterVec // policy label

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge
	PublishDuration prometheus.Histogram
}

func NewCollector(trajectories, features, actions int, entropy float64) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Trajectories: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "modeenv_trajectories",
			Help: "Number of person-day trajectories loaded.",
		}),
		Features: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "modeenv_state_features",
			Help: "Width of the state vector.",
		}),
		Actions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "modeenv_actions",
			Help: "Number of mode classes.",
		}),
		LabelEntropy: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "modeenv_label_entropy_nats",
			Help: "Shannon entropy of the recorded mode distribution.",
		}),
		SessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "modeenv_sessions_active",
			Help: "Number of open replay sessions.",
		}),
		EpisodesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modeenv_episodes_started_total",
			Help: "Total resets.",
		}),
		Steps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modeenv_steps_total",
			Help: "Total steps taken.",
		}),
		CorrectSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modeenv_correct_steps_total",
			Help: "Total steps whose action matched the recorded mode.",
		}),
		EpisodeAccuracy: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "modeenv_episode_accuracy",
			Help:    "Share of correct steps per finished episode.",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		}),
		StepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "modeenv_step_duration_seconds",
			Help:    "Duration of a step call.",
			Buckets: prometheus.ExponentialBuckets(0.000001, 4, 12),
		}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "modeenv_evaluations_total",
			Help: "Baseline rollouts run.",
		}, []string{"policy"}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modeenv_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "modeenv_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "modeenv_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "modeenv_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
	}

	reg.MustRegister(
		c.Trajectories, c.Features, c.Actions, c.LabelEntropy,
		c.SessionsActive, c.EpisodesStarted, c.Steps, c.CorrectSteps,
		c.EpisodeAccuracy, c.StepDuration, c.Evaluations,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected, c.PublishDuration,
	)

	c.Trajectories.Set(float64(trajectories))
	c.Features.Set(float64(features))
	c.Actions.Set(float64(actions))
	c.LabelEntropy.Set(entropy)

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}

// ObserveStep records one transition. Safe on a nil collector.
func (c *Collector) ObserveStep(reward float64, seconds float64) {
	if c == nil {
		return
	}
	c.Steps.Inc()
	if reward > 0 {
		c.CorrectSteps.Inc()
	}
	c.StepDuration.Observe(seconds)
}

func (c *Collector) ObserveReset() {
	if c == nil {
		return
	}
	c.EpisodesStarted.Inc()
}

func (c *Collector) ObserveEpisode(correct, steps int) {
	if c == nil || steps == 0 {
		return
	}
	c.EpisodeAccuracy.Observe(float64(correct) / float64(steps))
}
