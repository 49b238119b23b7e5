// Package field loads scalar field snapshots from simulation output.
//
// Snapshots are stored as NumPy .npz archives: one flat float64 dataset per
// variable plus shared grid metadata. Layout of an archive:
//
//	<var>.npy     flat row-major samples, one entry per variable
//	shape.npy     int64 dims, shared by all variables
//	spacing.npy   float64 grid spacing per axis
//	time.npy      [1]float64 simulation time
//	step.npy      [1]int64 output step index
package field

import (
	"fmt"
	"math"
)

// Snapshot is one scalar field at one output time. Immutable once loaded.
type Snapshot struct {
	Values  []float64 // row-major samples
	Shape   []int     // dims, product must equal len(Values)
	Spacing []float64 // grid spacing per axis, len == len(Shape)
	Time    float64   // simulation time
	Step    int       // output step index
	Source  string    // file the snapshot was loaded from
}

// Len returns the number of samples.
func (s *Snapshot) Len() int { return len(s.Values) }

// CellVolume returns the volume element dV = prod(spacing).
func (s *Snapshot) CellVolume() float64 {
	dv := 1.0
	for _, d := range s.Spacing {
		dv *= d
	}
	return dv
}

// Validate checks structural consistency: shape matches sample count,
// spacing covers every axis, and every spacing is positive and finite.
func (s *Snapshot) Validate() error {
	n := 1
	for _, d := range s.Shape {
		if d <= 0 {
			return fmt.Errorf("snapshot %s: non-positive dim %d in shape %v", s.Source, d, s.Shape)
		}
		n *= d
	}
	if n != len(s.Values) {
		return fmt.Errorf("snapshot %s: shape %v implies %d samples, have %d", s.Source, s.Shape, n, len(s.Values))
	}
	if len(s.Spacing) != len(s.Shape) {
		return fmt.Errorf("snapshot %s: %d spacing entries for %d axes", s.Source, len(s.Spacing), len(s.Shape))
	}
	for i, d := range s.Spacing {
		if !(d > 0) || math.IsInf(d, 0) {
			return fmt.Errorf("snapshot %s: invalid spacing %g on axis %d", s.Source, d, i)
		}
	}
	return nil
}

// SameGrid reports whether two snapshots share shape and spacing exactly.
// Norm computations require this; a mismatch is a hard error there.
func (s *Snapshot) SameGrid(o *Snapshot) bool {
	if len(s.Shape) != len(o.Shape) {
		return false
	}
	for i := range s.Shape {
		if s.Shape[i] != o.Shape[i] {
			return false
		}
	}
	for i := range s.Spacing {
		if s.Spacing[i] != o.Spacing[i] {
			return false
		}
	}
	return true
}
