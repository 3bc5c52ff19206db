package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/planeopt/internal/config"
	"github.com/copyleftdev/planeopt/internal/logging"
	"github.com/copyleftdev/planeopt/internal/optimization/methods"
	"github.com/copyleftdev/planeopt/internal/optimization/penalty"
	"github.com/copyleftdev/planeopt/internal/problem"
	"github.com/copyleftdev/planeopt/internal/surface"
)

// testConfig creates a test configuration with default values
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{
		Environment: "test",
	}

	// Set up HTTP config
	cfg.HTTP.Port = 8080
	cfg.HTTP.ReadTimeout = 30 * time.Second
	cfg.HTTP.WriteTimeout = 30 * time.Second
	cfg.HTTP.IdleTimeout = 120 * time.Second
	cfg.HTTP.ShutdownTimeout = 30 * time.Second

	// Set up logging
	cfg.Logging.Level = "debug"
	cfg.Logging.Format = "text"
	cfg.Logging.Output = "stdout"

	// Set up optimization
	cfg.Optimization.Epsilon = 1e-3
	cfg.Optimization.GradientRate = 0.25
	cfg.Optimization.SimplexStep = 1
	cfg.Optimization.PenaltyGrowth = 10
	cfg.Optimization.PenaltyMaxIterations = 20
	cfg.Optimization.DefaultMethod = methods.GaussSeidel
	cfg.Optimization.DefaultPenalty = penalty.Quadratic
	cfg.Optimization.SolveTimeout = 10 * time.Second

	// Set up surfaces
	cfg.Surface.MaxResolution = 100
	cfg.Surface.CacheSize = 4

	return cfg
}

// testLogger creates a test logger
func testLogger(t *testing.T) *logging.Logger {
	t.Helper()
	return logging.NewWithFormat(logging.DebugLevel, logging.TextFormat, io.Discard)
}

func newTestServer(t *testing.T) (*Server, chi.Router) {
	t.Helper()
	srv, err := NewServer(testConfig(t), testLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	r := chi.NewRouter()
	srv.RegisterRoutes(r)
	r.Handle("/metrics", srv.MetricsHandler())
	return srv, r
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func TestNewServer(t *testing.T) {
	srv, err := NewServer(testConfig(t), testLogger(t))
	require.NoError(t, err)
	assert.NotNil(t, srv, "Server should be created")

	cfg := testConfig(t)
	cfg.Surface.CacheSize = 0
	_, err = NewServer(cfg, testLogger(t))
	assert.Error(t, err, "a zero-sized cache is rejected")
}

func TestRegisterRoutes(t *testing.T) {
	_, r := newTestServer(t)

	// Test if routes are registered
	tests := []struct {
		method      string
		path        string
		shouldExist bool
	}{
		{"POST", "/api/v1/solve", true},
		{"POST", "/api/v1/optimize", true},
		{"GET", "/api/v1/status/123", true},
		{"DELETE", "/api/v1/optimization/123", true},
		{"POST", "/api/v1/surface", true},
		{"POST", "/api/v1/validate", true},
		{"GET", "/api/v1/methods", true},
		{"POST", "/rpc", true},
		{"GET", "/healthz", false}, // Not registered by server package
		{"GET", "/nonexistent", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			rr := httptest.NewRecorder()
			r.ServeHTTP(rr, req)

			// chi answers 404 for unknown routes; handlers answer 404 only
			// with a JSON error body
			routed := rr.Code != http.StatusNotFound ||
				rr.Header().Get("Content-Type") == "application/json"
			assert.Equal(t, tt.shouldExist, routed)
		})
	}
}

func TestSolveEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	rr := do(t, r, http.MethodPost, "/api/v1/solve", problem.Spec{
		Function: "(x - 2)^2 + (y + 3)^2",
		Method:   "powell",
		StartX:   "5",
		StartY:   "5",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[SolveResponse](t, rr)
	assert.Equal(t, "powell", resp.Method)
	assert.Equal(t, "converged", resp.Status)
	assert.InDelta(t, 2.0, float64(resp.Solution.X), 0.01)
	assert.InDelta(t, -3.0, float64(resp.Solution.Y), 0.01)
	assert.NotEmpty(t, resp.Log)
	assert.NotEmpty(t, resp.Segments)
	assert.Empty(t, resp.History, "unconstrained solves carry no penalty history")
	assert.Equal(t, 1.0, float64(resp.K))
}

func TestSolveEndpointConstrained(t *testing.T) {
	_, r := newTestServer(t)

	rr := do(t, r, http.MethodPost, "/api/v1/solve", problem.Spec{
		Function: "x^2 + y^2",
		Bounds:   []string{"x - 5"},
		StartX:   "6",
		StartY:   "1",
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[SolveResponse](t, rr)
	assert.Equal(t, "gauss-seidel", resp.Method, "the configured default method is used")
	assert.InDelta(t, 5.0, float64(resp.Solution.X), 0.05)
	assert.InDelta(t, 0.0, float64(resp.Solution.Y), 0.05)
	assert.Greater(t, float64(resp.K), 1.0)
	require.NotEmpty(t, resp.History)
	assert.Equal(t, 1.0, float64(resp.History[0].K))
}

func TestSolveEndpointRejectsBadInput(t *testing.T) {
	_, r := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
	}{
		{"malformed body", "{"},
		{"syntax error", problem.Spec{Function: "x +"}},
		{"unknown method", problem.Spec{Function: "x", Method: "newton"}},
		{"method without solver", problem.Spec{Function: "x", Method: "none"}},
		{"unknown shape", problem.Spec{Function: "x", Bounds: []string{"x"}, BoundShape: "cubic"}},
		{"mismatched start", problem.Spec{Function: "x", StartX: "1;2", StartY: "3"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, r, http.MethodPost, "/api/v1/solve", tt.body)
			assert.Equal(t, http.StatusBadRequest, rr.Code)
			body := decode[map[string]interface{}](t, rr)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestOptimizeLifecycle(t *testing.T) {
	_, r := newTestServer(t)

	rr := do(t, r, http.MethodPost, "/api/v1/optimize", problem.Spec{
		Function: "x^2 + y^2",
		Bounds:   []string{"x - 5"},
		StartX:   "6",
		StartY:   "1",
	})
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())
	started := decode[StatusResponse](t, rr)
	require.NotEmpty(t, started.ID)
	assert.Equal(t, "gauss-seidel", started.Method)

	var status StatusResponse
	require.Eventually(t, func() bool {
		rr := do(t, r, http.MethodGet, "/api/v1/status/"+started.ID, nil)
		if rr.Code != http.StatusOK {
			return false
		}
		return json.NewDecoder(rr.Body).Decode(&status) == nil && status.Status == StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)

	require.NotNil(t, status.Result)
	assert.InDelta(t, 5.0, float64(status.Result.Solution.X), 0.05)
	assert.NotEmpty(t, status.EndTime)

	// the surface of the first outer iteration is the k = 1 penalty surface
	iteration := 0
	rr = do(t, r, http.MethodPost, "/api/v1/surface", SurfaceRequest{
		OptimizationID: started.ID,
		Region:         surfaceRegion,
		Resolution:     5,
		Iteration:      &iteration,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	grid := decode[SurfaceResponse](t, rr)
	assert.Equal(t, 1.0, float64(grid.K))
	// (x, y) = (0, 0): x^2 + y^2 + 1*(0-5)^2
	assert.Equal(t, 25.0, float64(grid.Values[2][2]))

	rr = do(t, r, http.MethodDelete, "/api/v1/optimization/"+started.ID, nil)
	assert.Equal(t, http.StatusConflict, rr.Code, "finished jobs cannot be cancelled")
}

func TestStatusUnknownJob(t *testing.T) {
	_, r := newTestServer(t)

	rr := do(t, r, http.MethodGet, "/api/v1/status/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = do(t, r, http.MethodDelete, "/api/v1/optimization/missing", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestCancelPendingJob(t *testing.T) {
	srv, _ := newTestServer(t)

	p, err := srv.build(problem.Spec{Function: "x^2 + y^2"})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	state := &OptimizationState{
		ID:          "job",
		Status:      StatusPending,
		Method:      p.Method.String(),
		StartTime:   time.Now(),
		CancelFunc:  cancel,
		LastUpdated: time.Now(),
		problem:     p,
	}
	srv.optimizations[state.ID] = state

	require.NoError(t, srv.cancel("job"))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	// a cancelled job is never picked up
	srv.runOptimization(ctx, state)
	got, err := srv.status("job")
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Nil(t, got.Result)

	assert.ErrorIs(t, srv.cancel("job"), ErrFinished)
}

var surfaceRegion = surface.Bounds{MinX: -2, MaxX: 2, MinY: -2, MaxY: 2}

func TestSurfaceEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	req := SurfaceRequest{
		Spec:       problem.Spec{Function: "x^2 + y^2"},
		Region:     surfaceRegion,
		Resolution: 5,
	}

	rr := do(t, r, http.MethodPost, "/api/v1/surface", req)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	first := decode[SurfaceResponse](t, rr)
	assert.False(t, first.Cached)
	require.Len(t, first.Values, 5)
	assert.Equal(t, []Number{4, 1, 0, 1, 4}, first.Values[2])
	assert.Equal(t, 0.0, float64(first.Min))
	assert.Equal(t, 8.0, float64(first.Max))

	rr = do(t, r, http.MethodPost, "/api/v1/surface", req)
	require.Equal(t, http.StatusOK, rr.Code)
	second := decode[SurfaceResponse](t, rr)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Values, second.Values)

	rr = do(t, r, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "planeopt_surface_cache_hits_total 1")
	assert.Contains(t, rr.Body.String(), "planeopt_surface_cache_misses_total 1")
}

func TestSurfaceEndpointPenalized(t *testing.T) {
	_, r := newTestServer(t)

	rr := do(t, r, http.MethodPost, "/api/v1/surface", SurfaceRequest{
		Spec:       problem.Spec{Function: "x^2 + y^2", Bounds: []string{"x - 5"}},
		Region:     surfaceRegion,
		Resolution: 5,
		K:          10,
	})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	grid := decode[SurfaceResponse](t, rr)
	assert.Equal(t, 10.0, float64(grid.K))
	assert.Equal(t, 250.0, float64(grid.Values[2][2]))
}

func TestSurfaceEndpointRejectsBadInput(t *testing.T) {
	_, r := newTestServer(t)
	iteration := 1

	tests := []struct {
		name string
		req  SurfaceRequest
		code int
	}{
		{"empty region", SurfaceRequest{Spec: problem.Spec{Function: "x"}, Resolution: 5}, http.StatusBadRequest},
		{"resolution too large", SurfaceRequest{Spec: problem.Spec{Function: "x"}, Region: surfaceRegion, Resolution: 1000}, http.StatusBadRequest},
		{"iteration without job", SurfaceRequest{Spec: problem.Spec{Function: "x"}, Region: surfaceRegion, Iteration: &iteration}, http.StatusBadRequest},
		{"unknown job", SurfaceRequest{OptimizationID: "missing", Region: surfaceRegion}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, r, http.MethodPost, "/api/v1/surface", tt.req)
			assert.Equal(t, tt.code, rr.Code, rr.Body.String())
		})
	}
}

func TestValidateEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	rr := do(t, r, http.MethodPost, "/api/v1/validate", map[string]interface{}{
		"expressions": []string{"sin(x) + y", "x +"},
	})
	require.Equal(t, http.StatusOK, rr.Code)

	body := decode[struct {
		Results []ValidationResult `json:"results"`
	}](t, rr)
	require.Len(t, body.Results, 2)
	assert.True(t, body.Results[0].Valid)
	assert.False(t, body.Results[1].Valid)
	assert.NotEmpty(t, body.Results[1].Error)
}

func TestMethodsEndpoint(t *testing.T) {
	_, r := newTestServer(t)

	rr := do(t, r, http.MethodGet, "/api/v1/methods", nil)
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[MethodsResponse](t, rr)
	assert.Equal(t, "gauss-seidel", resp.Default)
	require.Len(t, resp.Methods, len(methods.All()))
	assert.Equal(t, MethodInfo{Name: "none", MaxSeeds: 0, Solvable: false}, resp.Methods[0])
	assert.Contains(t, resp.Methods, MethodInfo{Name: "simplex", MaxSeeds: 3, Solvable: true})
	assert.Equal(t, []string{"inverse", "logarithmic", "quadratic", "equality"}, resp.Shapes)
}

func TestJSONRPC(t *testing.T) {
	_, r := newTestServer(t)

	tests := []struct {
		name      string
		body      string
		wantError int
	}{
		{"parse error", `{`, codeParseError},
		{"wrong version", `{"jsonrpc":"1.0","id":1,"method":"optimization.methods"}`, codeInvalidRequest},
		{"unknown method", `{"jsonrpc":"2.0","id":1,"method":"optimization.nope"}`, codeMethodNotFound},
		{"missing params", `{"jsonrpc":"2.0","id":1,"method":"optimization.solve"}`, codeInvalidParams},
		{"empty params", `{"jsonrpc":"2.0","id":1,"method":"optimization.status","params":[]}`, codeInvalidParams},
		{"missing id", `{"jsonrpc":"2.0","id":1,"method":"optimization.status","params":{}}`, codeInvalidParams},
		{"unknown job", `{"jsonrpc":"2.0","id":1,"method":"optimization.status","params":{"optimization_id":"x"}}`, codeServerError},
		{"bad expression", `{"jsonrpc":"2.0","id":1,"method":"optimization.solve","params":[{"function":"x +"}]}`, codeInvalidParams},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := do(t, r, http.MethodPost, "/rpc", tt.body)
			assert.Equal(t, http.StatusOK, rr.Code)

			resp := decode[map[string]interface{}](t, rr)
			errObj, ok := resp["error"].(map[string]interface{})
			require.True(t, ok, "response should contain error object")
			assert.Equal(t, float64(tt.wantError), errObj["code"])
		})
	}
}

func TestJSONRPCSolve(t *testing.T) {
	_, r := newTestServer(t)

	for _, params := range []string{
		`[{"function":"(x - 1)^2 + (y - 2)^2","method":"simplex"}]`,
		`{"function":"(x - 1)^2 + (y - 2)^2","method":"simplex"}`,
	} {
		rr := do(t, r, http.MethodPost, "/rpc",
			`{"jsonrpc":"2.0","id":"a","method":"optimization.solve","params":`+params+`}`)
		require.Equal(t, http.StatusOK, rr.Code)

		resp := decode[struct {
			ID     string         `json:"id"`
			Result *SolveResponse `json:"result"`
		}](t, rr)
		assert.Equal(t, "a", resp.ID)
		require.NotNil(t, resp.Result, rr.Body.String())
		assert.Equal(t, "simplex", resp.Result.Method)
		assert.InDelta(t, 1.0, float64(resp.Result.Solution.X), 0.05)
		assert.InDelta(t, 2.0, float64(resp.Result.Solution.Y), 0.05)
	}
}

func TestJSONRPCStartAndStatus(t *testing.T) {
	_, r := newTestServer(t)

	rr := do(t, r, http.MethodPost, "/rpc",
		`{"jsonrpc":"2.0","id":1,"method":"optimization.start","params":{"function":"x^2 + y^2","method":"chain-gradient","start_x":"3","start_y":"4"}}`)
	require.Equal(t, http.StatusOK, rr.Code)
	started := decode[struct {
		Result StatusResponse `json:"result"`
	}](t, rr)
	require.NotEmpty(t, started.Result.ID)

	require.Eventually(t, func() bool {
		rr := do(t, r, http.MethodPost, "/rpc",
			`{"jsonrpc":"2.0","id":2,"method":"optimization.status","params":[{"optimization_id":"`+started.Result.ID+`"}]}`)
		var resp struct {
			Result StatusResponse `json:"result"`
		}
		return json.NewDecoder(rr.Body).Decode(&resp) == nil && resp.Result.Status == StatusCompleted
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRespondWithError(t *testing.T) {
	srv, _ := newTestServer(t)

	tests := []struct {
		name       string
		code       int
		message    string
		id         interface{}
		data       interface{}
		expectedID interface{}
	}{
		{
			name:       "valid error response",
			code:       codeInvalidParams,
			message:    "Invalid params",
			id:         "123",
			data:       "bad request: optimization_id is required",
			expectedID: "123",
		},
		{
			name:       "nil id",
			code:       codeServerError,
			message:    "Server error",
			id:         nil,
			expectedID: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			srv.respondWithError(rr, tt.code, tt.message, tt.id, tt.data)

			// errors travel in the body of a 200 response
			assert.Equal(t, http.StatusOK, rr.Code, "status code should match")

			response := decode[map[string]interface{}](t, rr)
			errObj, ok := response["error"].(map[string]interface{})
			require.True(t, ok, "response should contain error object")
			assert.Equal(t, float64(tt.code), errObj["code"], "error code should match")
			assert.Equal(t, tt.message, errObj["message"], "error message should match")
			assert.Equal(t, tt.data, errObj["data"])
			assert.Equal(t, tt.expectedID, response["id"], "response ID should match")
		})
	}
}

func TestWriteErrorLogsStackForServerFailures(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		status    int
		wantStack bool
	}{
		{"internal failure", errors.New("surface cache unavailable"), http.StatusInternalServerError, true},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, true},
		{"unknown job", ErrNotFound, http.StatusNotFound, false},
		{"bad input", ErrBadRequest, http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			srv, err := NewServer(testConfig(t), logging.New(logging.DebugLevel, &buf))
			require.NoError(t, err)
			t.Cleanup(func() { srv.Close() })

			rr := httptest.NewRecorder()
			srv.writeError(rr, tt.err)
			assert.Equal(t, tt.status, rr.Code)

			// the client sees the bare error, the log carries the context
			body := decode[map[string]string](t, rr)
			assert.Equal(t, tt.err.Error(), body["error"])

			if !tt.wantStack {
				assert.Empty(t, buf.String())
				return
			}

			var entry struct {
				Message string   `json:"message"`
				Error   string   `json:"error"`
				Stack   []string `json:"stack"`
			}
			require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
			assert.Equal(t, "Request failed", entry.Message)
			assert.Equal(t, "request failed: component=server: "+tt.err.Error(), entry.Error)
			require.NotEmpty(t, entry.Stack)
			assert.True(t, strings.Contains(entry.Stack[0], "writeError"), entry.Stack[0])
		})
	}
}

func TestNumberJSON(t *testing.T) {
	data, err := json.Marshal([]Number{1.5, Number(math.NaN()), Number(math.Inf(-1))})
	require.NoError(t, err)
	assert.Equal(t, "[1.5,null,null]", string(data))

	var back []Number
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, Number(1.5), back[0])
	assert.True(t, math.IsNaN(float64(back[1])))
}

func TestClose(t *testing.T) {
	srv, err := NewServer(testConfig(t), testLogger(t))
	require.NoError(t, err)
	assert.NoError(t, srv.Close(), "Close should not return an error")
}
