package main

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"modechoice-env/internal/config"
	"modechoice-env/internal/env"
	"modechoice-env/internal/metrics"
	"modechoice-env/internal/publisher"
	"modechoice-env/internal/rollout"
	"modechoice-env/internal/server"
	"modechoice-env/internal/trajectory"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ds, err := trajectory.Load(cfg.TrajPath)
	if err != nil {
		log.Fatalf("load trajectories: %v", err)
	}
	log.Printf("loaded %d trajectories from %s", len(ds.Trajectories), cfg.TrajPath)

	e, err := env.New(ds, rand.New(rand.NewSource(cfg.Seed)))
	if err != nil {
		log.Fatalf("environment: %v", err)
	}
	log.Printf("environment: %d features, %d actions, label counts %v, entropy %.4f",
		e.NumFeatures(), e.NumActions(), e.LabelCounts(), e.Entropy())

	var mcol *metrics.Collector
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(e.NumTrajectories(), e.NumFeatures(), e.NumActions(), e.Entropy())
		msrv := mcol.Serve(cfg.MetricsAddr)
		defer shutdown(msrv)
	}

	var pub rollout.StepPublisher
	if cfg.NATSURL != "" {
		np, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol))
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer np.Close()
		pub = np
	}

	if cfg.EvalEpisodes > 0 {
		p, err := rollout.NewPolicy(cfg.EvalPolicy, e, cfg.Seed)
		if err != nil {
			log.Fatalf("evaluation policy: %v", err)
		}
		sum, err := rollout.NewRunner(e, pub, mcol).Run(ctx, p, cfg.EvalEpisodes)
		if err != nil && !errors.Is(err, context.Canceled) {
			log.Fatalf("evaluation: %v", err)
		}
		log.Printf("baseline %s: %d episodes, %d steps, accuracy %.4f", sum.Policy, sum.Episodes, sum.Steps, sum.Accuracy)
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.New(e, pub, mcol, cfg.Seed).Router(),
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
			cancel()
		}
	}()
	log.Printf("environment listening on %s", cfg.HTTPAddr)

	// Block until context cancelled
	<-ctx.Done()
	shutdown(srv)
	log.Println("shutdown complete")
}

func shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}
