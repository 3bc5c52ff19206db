package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/copyleftdev/planeopt/internal/config"
	apperrors "github.com/copyleftdev/planeopt/internal/errors"
	"github.com/copyleftdev/planeopt/internal/expression"
	"github.com/copyleftdev/planeopt/internal/logging"
	"github.com/copyleftdev/planeopt/internal/optimization"
	"github.com/copyleftdev/planeopt/internal/problem"
	"github.com/copyleftdev/planeopt/internal/surface"
)

// Logger defines the logging interface used by the server
// This allows us to be flexible with our logging implementation
type Logger interface {
	Debug(msg string, fields ...map[string]interface{})
	Info(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Fatal(msg string, fields ...map[string]interface{})
	WithFields(fields map[string]interface{}) *logging.Logger
}

// Job states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

var (
	// ErrNotFound is returned for an unknown optimization ID.
	ErrNotFound = errors.New("optimization not found")
	// ErrFinished is returned when cancelling a job that already ended.
	ErrFinished = errors.New("optimization already finished")
	// ErrNotReady is returned when a finished job is required.
	ErrNotReady = errors.New("optimization has not completed")
	// ErrBadRequest marks malformed input.
	ErrBadRequest = errors.New("bad request")
)

// OptimizationState represents the state of an asynchronous solve.
// Fields are guarded by the server's optimizations lock.
type OptimizationState struct {
	ID          string
	Status      string
	Method      string
	StartTime   time.Time
	EndTime     *time.Time
	Result      *SolveResponse
	Error       string
	CancelFunc  context.CancelFunc
	LastUpdated time.Time

	problem *problem.Problem
}

// StatusResponse is the client view of an OptimizationState.
type StatusResponse struct {
	ID         string         `json:"optimization_id"`
	Status     string         `json:"status"`
	Method     string         `json:"method"`
	StartTime  string         `json:"start_time"`
	LastUpdate string         `json:"last_update"`
	EndTime    string         `json:"end_time,omitempty"`
	Error      string         `json:"error,omitempty"`
	Result     *SolveResponse `json:"result,omitempty"`
}

// Server implements the HTTP and JSON-RPC server for the optimization service.
// It runs synchronous solves, manages asynchronous jobs and samples surfaces.
type Server struct {
	cfg          *config.Config
	logger       Logger
	engineLogger *zap.Logger
	cache        *surface.Cache
	metrics      *metrics

	// Optimization state management
	optimizations   map[string]*OptimizationState
	optimizationsMu sync.RWMutex // Protects the optimizations map
}

// NewServer creates a new server instance with the given config and logger
// The logger parameter accepts any type that implements the Logger interface
func NewServer(cfg *config.Config, logger Logger) (*Server, error) {
	cache, err := surface.NewCache(cfg.Surface.CacheSize, cfg.Surface.MaxResolution)
	if err != nil {
		return nil, fmt.Errorf("failed to create surface cache: %w", err)
	}

	return &Server{
		cfg:           cfg,
		logger:        logger,
		engineLogger:  logging.NewZapLogger(logger.WithFields(map[string]interface{}{"component": "engine"})),
		cache:         cache,
		metrics:       newMetrics(),
		optimizations: make(map[string]*OptimizationState),
	}, nil
}

func (s *Server) RegisterRoutes(r chi.Router) {
	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/solve", s.handleSolve)
		r.Post("/optimize", s.handleOptimize)
		r.Get("/status/{id}", s.handleStatus)
		r.Delete("/optimization/{id}", s.handleCancel)
		r.Post("/surface", s.handleSurface)
		r.Post("/validate", s.handleValidate)
		r.Get("/methods", s.handleMethods)
	})

	// JSON-RPC 2.0 endpoint
	r.Post("/rpc", s.handleJSONRPC)
}

// MetricsHandler serves the server's Prometheus registry.
func (s *Server) MetricsHandler() http.Handler {
	return s.metrics.handler()
}

func (s *Server) defaults() problem.Defaults {
	return problem.Defaults{
		Settings: s.cfg.Settings(s.engineLogger),
		Method:   s.cfg.Optimization.DefaultMethod,
		Penalty:  s.cfg.Penalty(s.cfg.Optimization.DefaultPenalty),
	}
}

func (s *Server) build(spec problem.Spec) (*problem.Problem, error) {
	p, err := problem.Build(spec, s.defaults())
	if err != nil {
		return nil, err
	}
	if !p.Solvable() {
		return nil, optimization.InvalidArgumentf("method %q has no solver", p.Method).
			WithComponent("server").WithOperation("build")
	}
	return p, nil
}

// solve builds spec and runs it synchronously within the configured timeout.
func (s *Server) solve(ctx context.Context, spec problem.Spec) (*SolveResponse, error) {
	p, err := s.build(spec)
	if err != nil {
		return nil, err
	}

	if timeout := s.cfg.Optimization.SolveTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	started := time.Now()
	out, err := p.Solve(ctx)
	if err != nil {
		s.metrics.observeFailure(p.Method.String(), time.Since(started))
		return nil, err
	}
	s.metrics.observeSolve(out)

	s.logger.Debug("Solve finished", map[string]interface{}{
		"method":     out.Method.String(),
		"status":     out.Result.Status.String(),
		"iterations": out.Result.Iterations,
		"k":          out.K,
	})
	return newSolveResponse(out, p.Constrained()), nil
}

// start builds spec and launches it in the background. Build errors are
// reported immediately.
func (s *Server) start(spec problem.Spec) (*StatusResponse, error) {
	p, err := s.build(spec)
	if err != nil {
		return nil, err
	}

	// Create a cancellable context
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if timeout := s.cfg.Optimization.SolveTimeout; timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}

	now := time.Now()
	state := &OptimizationState{
		ID:          uuid.NewString(),
		Status:      StatusPending,
		Method:      p.Method.String(),
		StartTime:   now,
		CancelFunc:  cancel,
		LastUpdated: now,
		problem:     p,
	}

	s.optimizationsMu.Lock()
	s.optimizations[state.ID] = state
	resp := state.response()
	s.optimizationsMu.Unlock()

	go s.runOptimization(ctx, state)

	s.logger.Info("Optimization started", map[string]interface{}{
		"optimization_id": state.ID,
		"method":          state.Method,
	})
	return resp, nil
}

// runOptimization executes the solve in a goroutine
func (s *Server) runOptimization(ctx context.Context, state *OptimizationState) {
	defer state.CancelFunc()

	s.optimizationsMu.Lock()
	if state.Status == StatusCancelled {
		s.optimizationsMu.Unlock()
		return
	}
	state.Status = StatusRunning
	state.LastUpdated = time.Now()
	s.optimizationsMu.Unlock()

	s.metrics.jobsInProgress.Inc()
	defer s.metrics.jobsInProgress.Dec()

	started := time.Now()
	out, err := state.problem.Solve(ctx)

	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()

	now := time.Now()
	state.LastUpdated = now
	if state.Status == StatusCancelled {
		return
	}
	state.EndTime = &now

	if err != nil {
		s.metrics.observeFailure(state.Method, time.Since(started))
		failure := apperrors.Wrapf(err, "optimization %s failed", state.ID).
			WithComponent("server").WithOperation("optimize")
		s.logger.Error("Optimization failed", map[string]interface{}{
			"optimization_id": state.ID,
			"error":           failure.Error(),
			"stack":           failure.StackTrace(),
		})
		state.Status = StatusFailed
		state.Error = err.Error()
		return
	}

	s.metrics.observeSolve(out)
	state.Status = StatusCompleted
	state.Result = newSolveResponse(out, state.problem.Constrained())
}

// status returns a snapshot of job id.
func (s *Server) status(id string) (*StatusResponse, error) {
	s.optimizationsMu.RLock()
	defer s.optimizationsMu.RUnlock()

	state, exists := s.optimizations[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return state.response(), nil
}

// cancel stops job id unless it already reached a terminal state.
func (s *Server) cancel(id string) error {
	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()

	state, exists := s.optimizations[id]
	if !exists {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	switch state.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return fmt.Errorf("%w: status %s", ErrFinished, state.Status)
	}

	if state.CancelFunc != nil {
		state.CancelFunc()
	}

	state.Status = StatusCancelled
	now := time.Now()
	state.EndTime = &now
	state.LastUpdated = now

	s.logger.Info("Optimization cancelled", map[string]interface{}{
		"optimization_id": id,
	})
	return nil
}

// SurfaceRequest selects a sampled surface. With OptimizationID set, the
// completed job's problem is sampled and Iteration picks the penalty scale of
// that outer iteration; otherwise the embedded Spec is compiled and K scales
// the penalties (0 means the raw objective).
type SurfaceRequest struct {
	problem.Spec
	OptimizationID string         `json:"optimization_id,omitempty"`
	Region         surface.Bounds `json:"region"`
	Resolution     int            `json:"resolution,omitempty"`
	K              float64        `json:"k,omitempty"`
	Iteration      *int           `json:"iteration,omitempty"`
}

const defaultResolution = 64

func (s *Server) sampleSurface(ctx context.Context, req SurfaceRequest) (*SurfaceResponse, error) {
	if req.Resolution == 0 {
		req.Resolution = defaultResolution
	}

	p, k, err := s.surfaceProblem(req)
	if err != nil {
		return nil, err
	}

	g, hit, err := s.cache.Get(ctx, p.SurfaceKey(req.Region, req.Resolution, k), p.Augmented(k))
	if err != nil {
		return nil, err
	}
	s.metrics.observeSurface(hit)
	return newSurfaceResponse(g, k, hit), nil
}

func (s *Server) surfaceProblem(req SurfaceRequest) (*problem.Problem, float64, error) {
	if req.OptimizationID == "" {
		if req.Iteration != nil {
			return nil, 0, fmt.Errorf("%w: iteration requires optimization_id", ErrBadRequest)
		}
		p, err := problem.Build(req.Spec, s.defaults())
		if err != nil {
			return nil, 0, err
		}
		return p, req.K, nil
	}

	s.optimizationsMu.RLock()
	state, exists := s.optimizations[req.OptimizationID]
	var status string
	if exists {
		status = state.Status
	}
	s.optimizationsMu.RUnlock()

	if !exists {
		return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, req.OptimizationID)
	}
	if status != StatusCompleted {
		return nil, 0, fmt.Errorf("%w: status %s", ErrNotReady, status)
	}

	k := req.K
	if req.Iteration != nil {
		var err error
		if k, err = state.problem.KOfIteration(*req.Iteration); err != nil {
			return nil, 0, err
		}
	}
	return state.problem, k, nil
}

// ValidationResult reports whether one expression compiles.
type ValidationResult struct {
	Expression string `json:"expression"`
	Valid      bool   `json:"valid"`
	Error      string `json:"error,omitempty"`
}

func validateAll(sources []string) []ValidationResult {
	results := make([]ValidationResult, len(sources))
	for i, src := range sources {
		results[i] = ValidationResult{Expression: src, Valid: true}
		if err := expression.Validate(src); err != nil {
			results[i].Valid = false
			results[i].Error = err.Error()
		}
	}
	return results
}

// Close cleans up resources
func (s *Server) Close() error {
	// Cancel all running optimizations
	s.optimizationsMu.Lock()
	defer s.optimizationsMu.Unlock()

	for _, opt := range s.optimizations {
		if opt.CancelFunc != nil {
			opt.CancelFunc()
		}
	}
	s.cache.Invalidate()
	return nil
}

func (st *OptimizationState) response() *StatusResponse {
	resp := &StatusResponse{
		ID:         st.ID,
		Status:     st.Status,
		Method:     st.Method,
		StartTime:  st.StartTime.Format(time.RFC3339),
		LastUpdate: st.LastUpdated.Format(time.RFC3339),
		Error:      st.Error,
		Result:     st.Result,
	}
	if st.EndTime != nil {
		resp.EndTime = st.EndTime.Format(time.RFC3339)
	}
	return resp
}

// httpStatus maps an error to the HTTP status reported to clients.
func httpStatus(err error) int {
	switch {
	case apperrors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, ErrFinished), apperrors.Is(err, ErrNotReady):
		return http.StatusConflict
	case apperrors.Is(err, ErrBadRequest),
		apperrors.Is(err, optimization.ErrInvalidArgument),
		apperrors.Is(err, optimization.ErrUnknownMethod),
		apperrors.Is(err, optimization.ErrNoObjective),
		apperrors.Is(err, expression.ErrSyntax):
		return http.StatusBadRequest
	case apperrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case apperrors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := httpStatus(err)
	if status >= http.StatusInternalServerError {
		failure := apperrors.Wrap(err, "request failed").WithComponent("server")
		s.logger.Error("Request failed", map[string]interface{}{
			"status": status,
			"error":  failure.Error(),
			"stack":  failure.StackTrace(),
		})
	}
	writeJSON(w, status, map[string]interface{}{
		"error": err.Error(),
	})
}
