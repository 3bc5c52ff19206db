package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/copyleftdev/planeopt/internal/optimization/methods"
	"github.com/copyleftdev/planeopt/internal/optimization/penalty"
	"github.com/copyleftdev/planeopt/internal/problem"
)

// MethodInfo describes one selectable method.
type MethodInfo struct {
	Name     string `json:"name"`
	MaxSeeds int    `json:"max_seeds"`
	Solvable bool   `json:"solvable"`
}

// MethodsResponse lists the selectable methods and penalty shapes.
type MethodsResponse struct {
	Methods []MethodInfo `json:"methods"`
	Shapes  []string     `json:"shapes"`
	Default string       `json:"default"`
}

func (s *Server) methodsResponse() *MethodsResponse {
	resp := &MethodsResponse{Default: s.cfg.Optimization.DefaultMethod.String()}
	for _, m := range methods.All() {
		resp.Methods = append(resp.Methods, MethodInfo{
			Name:     m.String(),
			MaxSeeds: m.MaxSeeds(),
			Solvable: m != methods.None,
		})
	}
	for _, sh := range penalty.Shapes() {
		resp.Shapes = append(resp.Shapes, sh.String())
	}
	return resp
}

func decodeBody(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", ErrBadRequest, err)
	}
	return nil
}

// handleSolve handles POST /solve, running the solve synchronously
func (s *Server) handleSolve(w http.ResponseWriter, r *http.Request) {
	var spec problem.Spec
	if err := decodeBody(r, &spec); err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.solve(r.Context(), spec)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleOptimize handles POST /optimize, starting a background solve
func (s *Server) handleOptimize(w http.ResponseWriter, r *http.Request) {
	var spec problem.Spec
	if err := decodeBody(r, &spec); err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.start(spec)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, resp)
}

// handleStatus handles GET /status/{id}
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp, err := s.status(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCancel handles DELETE /optimization/{id}
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	if err := s.cancel(chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "cancellation requested",
	})
}

// handleSurface handles POST /surface
func (s *Server) handleSurface(w http.ResponseWriter, r *http.Request) {
	var req SurfaceRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}

	resp, err := s.sampleSurface(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleValidate handles POST /validate. The body is {"expressions": [...]}.
func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Expressions []string `json:"expressions"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"results": validateAll(req.Expressions),
	})
}

// handleMethods handles GET /methods
func (s *Server) handleMethods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.methodsResponse())
}
