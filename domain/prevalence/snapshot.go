package prevalence

import "heartprev/internal/frame"

// Snapshot is the per-board dataset: the display table indexed by region code with geometry
// removed, plus the WKT geometry of each row in index order.
type Snapshot struct {
	Table    *frame.Frame
	Geometry []string
}

// HasGeometry reports whether every table row has a geometry
func (s *Snapshot) HasGeometry() bool {
	return len(s.Geometry) > 0 && len(s.Geometry) == s.Table.Len()
}
