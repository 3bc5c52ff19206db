package direct

import (
	"context"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/copyleftdev/planeopt/internal/optimization"
)

const simplexMaxIterations = 1024

// Simplex implements the Nelder-Mead method on a triangle.
type Simplex struct {
	optimization.Base

	Reflection  float64 // α
	Expansion   float64 // β
	Contraction float64 // γ
	Shrink      float64
}

// NewSimplex creates a Nelder-Mead solver with the standard coefficients.
func NewSimplex(settings optimization.Settings) *Simplex {
	return &Simplex{
		Base:        optimization.NewBase("simplex", settings),
		Reflection:  1,
		Expansion:   2,
		Contraction: 0.5,
		Shrink:      0.5,
	}
}

// LogBatchSize implements optimization.Solver. Every iteration logs the
// vertices and the move taken.
func (s *Simplex) LogBatchSize() int {
	return 2
}

// initialSimplex builds the starting triangle. Missing vertices are placed
// one step along X from the first seed, then one step along Y from there.
func (s *Simplex) initialSimplex(seeds []optimization.Point) [3]optimization.Point {
	step := s.Settings().InitialStep
	var v [3]optimization.Point
	switch len(seeds) {
	case 1:
		v[0] = seeds[0]
		v[1] = v[0].Add(optimization.Pt(step, 0))
		v[2] = v[1].Add(optimization.Pt(0, step))
	case 2:
		v[0], v[1] = seeds[0], seeds[1]
		v[2] = v[1].Add(optimization.Pt(0, step))
	default:
		v[0], v[1], v[2] = seeds[0], seeds[1], seeds[2]
	}
	return v
}

// spread is the RMS deviation of the vertex values from their mean.
func spread(values []float64) float64 {
	_, variance := stat.PopMeanVariance(values, nil)
	return math.Sqrt(variance)
}

// rank orders the vertex indices from best to worst; NaN ranks last.
func rank(values []float64) (best, second, worst int) {
	order := []int{0, 1, 2}
	sort.SliceStable(order, func(i, j int) bool {
		return optimization.Less(values[order[i]], values[order[j]])
	})
	return order[0], order[1], order[2]
}

// Solve runs Nelder-Mead from one to three seed points.
func (s *Simplex) Solve(ctx context.Context, start ...optimization.Point) (*optimization.Result, error) {
	trace, err := s.Begin(ctx, start)
	if err != nil {
		return nil, err
	}

	eps := s.Epsilon()
	limit := s.Settings().Iterations(simplexMaxIterations)
	verts := s.initialSimplex(start)
	values := make([]float64, len(verts))

	status := optimization.StatusIterationLimit
	iterations := limit
	for it := 1; it <= limit; it++ {
		if err := s.Interrupted(ctx); err != nil {
			return nil, err
		}

		for i, v := range verts {
			values[i] = s.Eval(v)
		}
		trace.AddPoint(verts[:]...)
		trace.AddSegment(verts[0], verts[1])
		trace.AddSegment(verts[1], verts[2])
		trace.AddSegment(verts[2], verts[0])
		trace.Logf("%d) p1 = %v; p2 = %v; p3 = %v", it, verts[0], verts[1], verts[2])

		if spread(values) < eps {
			trace.Logf("Simplex converged")
			status, iterations = optimization.StatusConverged, it
			break
		}

		l, g, h := rank(values)
		centroid := verts[l].Add(verts[g]).Scale(0.5)

		reflected := centroid.Add(centroid.Sub(verts[h]).Scale(s.Reflection))
		fr := s.Eval(reflected)
		trace.AddPoint(reflected)

		switch {
		case optimization.Less(fr, values[l]):
			expanded := centroid.Add(reflected.Sub(centroid).Scale(s.Expansion))
			trace.AddPoint(expanded)
			if optimization.Less(s.Eval(expanded), fr) {
				verts[h] = expanded
				trace.Logf("Simplex expanded")
			} else {
				verts[h] = reflected
				trace.Logf("Simplex reflected")
			}
		case optimization.Less(fr, values[g]):
			verts[h] = reflected
			trace.Logf("Simplex reflected")
		default:
			// contract from whichever of the worst vertex and its reflection is lower
			from := verts[h]
			if optimization.Less(fr, values[h]) {
				from = reflected
			}
			contracted := centroid.Add(from.Sub(centroid).Scale(s.Contraction))
			trace.AddPoint(contracted)
			if optimization.Less(s.Eval(contracted), values[h]) {
				verts[h] = contracted
				trace.Logf("Simplex contracted")
				continue
			}
			for i := range verts {
				if i != l {
					verts[i] = verts[l].Add(verts[i].Sub(verts[l]).Scale(s.Shrink))
				}
			}
			trace.Logf("Simplex shrunk")
		}
	}

	for i, v := range verts {
		values[i] = s.Eval(v)
	}
	best, _, _ := rank(values)
	return s.Finish(trace, verts[best], status, iterations, s.LogBatchSize()), nil
}
