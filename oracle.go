package prm

import (
	"gonum.org/v1/gonum/floats"
)

// DefaultSegmentSteps is the number of sub-steps a DiscretizedOracle uses per segment.
const DefaultSegmentSteps = 40

// CollisionOracle answers collision queries over a configuration space of fixed
// dimensionality. Planning never mutates the oracle.
type CollisionOracle interface {
	// Dimension returns the number of coordinates of a configuration.
	Dimension() int
	// Limits returns the [min, max] interval of every dimension.
	Limits() [][2]float64
	PointInCollision(q []float64) bool
	SegmentInCollision(a, b []float64) bool
}

// PointCheck reports whether a single configuration collides.
type PointCheck func(q []float64) bool

// DiscretizedOracle turns a point predicate into a CollisionOracle. Segments are
// tested at Steps+1 evenly spaced samples including both endpoints, so obstacles
// thinner than one step can be missed.
type DiscretizedOracle struct {
	Check  PointCheck
	Bounds [][2]float64
	Steps  int
}

// NewDiscretizedOracle returns an oracle using DefaultSegmentSteps.
func NewDiscretizedOracle(check PointCheck, bounds [][2]float64) *DiscretizedOracle {
	return &DiscretizedOracle{Check: check, Bounds: bounds, Steps: DefaultSegmentSteps}
}

func (o *DiscretizedOracle) Dimension() int { return len(o.Bounds) }

func (o *DiscretizedOracle) Limits() [][2]float64 { return o.Bounds }

func (o *DiscretizedOracle) PointInCollision(q []float64) bool {
	return o.Check(q)
}

func (o *DiscretizedOracle) SegmentInCollision(a, b []float64) bool {
	steps := o.Steps
	if steps <= 0 {
		steps = DefaultSegmentSteps
	}
	q := make([]float64, len(a))
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		for d := range a {
			q[d] = a[d] + t*(b[d]-a[d])
		}
		if o.Check(q) {
			return true
		}
	}
	return false
}

// Distance returns the Euclidean distance between two configurations.
func Distance(a, b []float64) float64 {
	return floats.Distance(a, b, 2)
}

// withinLimits reports whether q has the oracle's dimension and lies inside its limits.
func withinLimits(q []float64, limits [][2]float64) bool {
	if len(q) != len(limits) {
		return false
	}
	for i, lim := range limits {
		if q[i] < lim[0] || q[i] > lim[1] {
			return false
		}
	}
	return true
}
