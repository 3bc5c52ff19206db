package server

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/copyleftdev/planeopt/internal/optimization"
	"github.com/copyleftdev/planeopt/internal/problem"
	"github.com/copyleftdev/planeopt/internal/surface"
)

// Number is a float64 that encodes NaN and infinities as null.
type Number float64

// MarshalJSON implements json.Marshaler.
func (n Number) MarshalJSON() ([]byte, error) {
	v := float64(n)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// UnmarshalJSON implements json.Unmarshaler; null decodes to NaN.
func (n *Number) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*n = Number(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = Number(v)
	return nil
}

// PointResponse is a point with null-safe coordinates.
type PointResponse struct {
	X Number `json:"x"`
	Y Number `json:"y"`
}

// SegmentResponse is a segment of the trajectory.
type SegmentResponse struct {
	A PointResponse `json:"a"`
	B PointResponse `json:"b"`
}

// IterationResponse is one outer step of the penalty loop.
type IterationResponse struct {
	Index    int           `json:"index"`
	K        Number        `json:"k"`
	Start    PointResponse `json:"start"`
	Solution PointResponse `json:"solution"`
	Value    Number        `json:"value"`
}

// SolveResponse is the record of a solve as returned to clients.
type SolveResponse struct {
	Method     string              `json:"method"`
	Solution   PointResponse       `json:"solution"`
	Value      Number              `json:"value"`
	Status     string              `json:"status"`
	Iterations int                 `json:"iterations"`
	Points     []PointResponse     `json:"points"`
	Segments   []SegmentResponse   `json:"segments"`
	Log        []string            `json:"log"`
	K          Number              `json:"k"`
	History    []IterationResponse `json:"history,omitempty"`
	DurationMS float64             `json:"duration_ms"`
}

// SurfaceResponse is a sampled grid.
type SurfaceResponse struct {
	Bounds     surface.Bounds `json:"bounds"`
	Resolution int            `json:"resolution"`
	K          Number         `json:"k"`
	Min        Number         `json:"min"`
	Max        Number         `json:"max"`
	Values     [][]Number     `json:"values"`
	Cached     bool           `json:"cached"`
}

func toPoint(p optimization.Point) PointResponse {
	return PointResponse{X: Number(p.X), Y: Number(p.Y)}
}

func newSolveResponse(out *problem.Outcome, constrained bool) *SolveResponse {
	res := out.Result
	resp := &SolveResponse{
		Method:     out.Method.String(),
		Solution:   toPoint(res.Solution),
		Value:      Number(res.Value),
		Status:     res.Status.String(),
		Iterations: res.Iterations,
		Points:     make([]PointResponse, len(res.Points)),
		Segments:   make([]SegmentResponse, len(res.Segments)),
		Log:        out.Log(),
		K:          Number(out.K),
		DurationMS: float64(out.Duration.Microseconds()) / 1000.0,
	}
	for i, p := range res.Points {
		resp.Points[i] = toPoint(p)
	}
	for i, s := range res.Segments {
		resp.Segments[i] = SegmentResponse{A: toPoint(s.A), B: toPoint(s.B)}
	}
	if constrained {
		resp.History = make([]IterationResponse, len(out.History))
		for i, it := range out.History {
			resp.History[i] = IterationResponse{
				Index:    it.Index,
				K:        Number(it.K),
				Start:    toPoint(it.Start),
				Solution: toPoint(it.Solution),
				Value:    Number(it.Value),
			}
		}
	}
	return resp
}

func newSurfaceResponse(g *surface.Grid, k float64, cached bool) *SurfaceResponse {
	rows := g.Rows()
	values := make([][]Number, len(rows))
	for i, row := range rows {
		values[i] = make([]Number, len(row))
		for j, v := range row {
			values[i][j] = Number(v)
		}
	}
	return &SurfaceResponse{
		Bounds:     g.Bounds,
		Resolution: g.Resolution,
		K:          Number(k),
		Min:        Number(g.Min),
		Max:        Number(g.Max),
		Values:     values,
		Cached:     cached,
	}
}
