package server

import (
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"modechoice-env/internal/env"
	"modechoice-env/internal/metrics"
	"modechoice-env/internal/middleware"
	"modechoice-env/internal/publisher"
	"modechoice-env/internal/rollout"
	"modechoice-env/pkg/response"
)

// Server exposes the environment over HTTP. Each remote caller owns a
// session; requests on one session are serialized.
type Server struct {
	env     *env.Environment
	pub     rollout.StepPublisher
	metrics *metrics.Collector
	runner  *rollout.Runner
	seed    int64

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

type sessionEntry struct {
	mu sync.Mutex
	s  *env.Session
}

// New accepts a nil publisher and a nil collector.
func New(e *env.Environment, pub rollout.StepPublisher, m *metrics.Collector, seed int64) *Server {
	return &Server{
		env:      e,
		pub:      pub,
		metrics:  m,
		runner:   rollout.NewRunner(e, pub, m),
		seed:     seed,
		sessions: make(map[string]*sessionEntry),
	}
}

func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(), gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"message": "mode choice environment is running",
		})
	})

	api := r.Group("/api/v1")
	{
		api.GET("/env", s.info)
		api.POST("/evaluate", s.evaluate)

		sessions := api.Group("/sessions")
		{
			sessions.POST("", s.createSession)
			sessions.DELETE("/:id", s.deleteSession)
			sessions.POST("/:id/reset", s.reset)
			sessions.POST("/:id/step", s.step)
		}
	}
	return r
}

type envInfo struct {
	Features     []string `json:"features"`
	Modes        []string `json:"modes"`
	NumFeatures  int      `json:"numFeatures"`
	NumActions   int      `json:"numActions"`
	Trajectories int      `json:"trajectories"`
	Entropy      float64  `json:"entropy"`
	LabelCounts  []int    `json:"labelCounts"`
}

func (s *Server) info(c *gin.Context) {
	ds := s.env.Dataset()
	response.Success(c, envInfo{
		Features:     ds.Features,
		Modes:        ds.Modes,
		NumFeatures:  s.env.NumFeatures(),
		NumActions:   s.env.NumActions(),
		Trajectories: s.env.NumTrajectories(),
		Entropy:      s.env.Entropy(),
		LabelCounts:  s.env.LabelCounts(),
	})
}

func (s *Server) createSession(c *gin.Context) {
	id := uuid.NewString()
	s.mu.Lock()
	s.sessions[id] = &sessionEntry{s: s.env.NewSession()}
	n := len(s.sessions)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(n))
	}
	response.Created(c, gin.H{"id": id})
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()
	if !ok {
		response.NotFound(c, "session not found")
		return
	}
	if s.metrics != nil {
		s.metrics.SessionsActive.Set(float64(n))
	}
	response.Success(c, gin.H{"id": id})
}

func (s *Server) lookup(c *gin.Context) (*sessionEntry, bool) {
	s.mu.Lock()
	entry, ok := s.sessions[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		response.NotFound(c, "session not found")
	}
	return entry, ok
}

type resetResponse struct {
	State Vector `json:"state"`
	Phase string `json:"phase"`
}

func (s *Server) reset(c *gin.Context) {
	entry, ok := s.lookup(c)
	if !ok {
		return
	}
	entry.mu.Lock()
	state := s.env.Reset(entry.s)
	phase := entry.s.Phase.String()
	entry.mu.Unlock()
	s.metrics.ObserveReset()
	response.Success(c, resetResponse{State: state, Phase: phase})
}

type stepRequest struct {
	Action *int `json:"action" binding:"required"`
}

type stepResponse struct {
	State  Vector         `json:"state"`
	Reward float64        `json:"reward"`
	Done   bool           `json:"done"`
	Info   map[string]any `json:"info"`
}

func (s *Server) step(c *gin.Context) {
	var req stepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "body must be {\"action\": <int>}")
		return
	}
	entry, ok := s.lookup(c)
	if !ok {
		return
	}

	entry.mu.Lock()
	stepIdx := entry.s.Step
	var key string
	var recorded int
	start := time.Now()
	res, err := s.env.Step(entry.s, *req.Action)
	elapsed := time.Since(start)
	if err == nil {
		tr := s.env.Trajectory(s.env.TrajectoryIndex(entry.s))
		key, recorded = tr.Key, tr.RecordedAction(stepIdx)
	}
	entry.mu.Unlock()

	if errors.Is(err, env.ErrNotReset) {
		response.Conflict(c, "reset the session before stepping")
		return
	}
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	s.metrics.ObserveStep(res.Reward, elapsed.Seconds())
	if s.pub != nil {
		err := s.pub.PublishStep(publisher.StepMessage{
			Session:        c.Param("id"),
			Trajectory:     key,
			Step:           stepIdx,
			Action:         *req.Action,
			RecordedAction: recorded,
			Reward:         res.Reward,
			Done:           res.Done,
			Timestamp:      time.Now(),
		})
		if err != nil {
			log.Printf("publish error for session %s: %v", c.Param("id"), err)
		}
	}
	response.Success(c, stepResponse{State: res.State, Reward: res.Reward, Done: res.Done, Info: res.Info})
}

type evaluateRequest struct {
	Policy   string `json:"policy"`
	Episodes int    `json:"episodes" binding:"required,min=1"`
}

func (s *Server) evaluate(c *gin.Context) {
	var req evaluateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "body must be {\"policy\": <name>, \"episodes\": <n>}")
		return
	}
	p, err := rollout.NewPolicy(req.Policy, s.env, s.seed)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	sum, err := s.runner.Run(c.Request.Context(), p, req.Episodes)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Success(c, sum)
}
