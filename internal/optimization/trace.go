package optimization

import "fmt"

// Trace accumulates the trajectory of one solve call. A nil *Trace discards
// everything, so helpers can record unconditionally.
type Trace struct {
	points   []Point
	segments []Segment
	log      []string
}

// NewTrace returns an empty trace.
func NewTrace() *Trace {
	return &Trace{
		points:   make([]Point, 0, 64),
		segments: make([]Segment, 0, 32),
		log:      make([]string, 0, 32),
	}
}

// AddPoint records visited points.
func (t *Trace) AddPoint(points ...Point) {
	if t == nil {
		return
	}
	t.points = append(t.points, points...)
}

// AddSegment records a line from a to b.
func (t *Trace) AddSegment(a, b Point) {
	if t == nil {
		return
	}
	t.segments = append(t.segments, Segment{A: a, B: b})
}

// Logf appends a formatted log line.
func (t *Trace) Logf(format string, args ...interface{}) {
	if t == nil {
		return
	}
	t.log = append(t.log, fmt.Sprintf(format, args...))
}

// Append copies the trajectory of r into t.
func (t *Trace) Append(r *Result) {
	if t == nil || r == nil {
		return
	}
	t.points = append(t.points, r.Points...)
	t.segments = append(t.segments, r.Segments...)
	t.log = append(t.log, r.Log...)
}

// Points returns the recorded points.
func (t *Trace) Points() []Point {
	if t == nil {
		return nil
	}
	return t.points
}

// Segments returns the recorded segments.
func (t *Trace) Segments() []Segment {
	if t == nil {
		return nil
	}
	return t.segments
}

// Lines returns the raw log lines.
func (t *Trace) Lines() []string {
	if t == nil {
		return nil
	}
	return t.log
}
