package surface

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// MatrixPool provides a pool of reusable grid matrices to reduce allocations
type MatrixPool struct {
	mu    sync.Mutex
	dense []*mat.Dense
}

// NewMatrixPool creates a new MatrixPool
func NewMatrixPool() *MatrixPool {
	return &MatrixPool{
		dense: make([]*mat.Dense, 0, 10),
	}
}

// GetDense returns a zeroed r×c matrix from the pool or creates a new one
func (p *MatrixPool) GetDense(r, c int) *mat.Dense {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i := len(p.dense) - 1; i >= 0; i-- {
		m := p.dense[i]
		if mr, mc := m.Dims(); mr == r && mc == c {
			p.dense = append(p.dense[:i], p.dense[i+1:]...)
			m.Zero()
			return m
		}
	}
	return mat.NewDense(r, c, nil)
}

// PutDense returns a matrix to the pool
func (p *MatrixPool) PutDense(m *mat.Dense) {
	if m == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dense = append(p.dense, m)
}

// Len returns the number of pooled matrices
func (p *MatrixPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.dense)
}
