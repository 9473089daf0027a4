package prm

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// PlanarScene is a 2-D collision backend made of polygonal obstacles inside a
// rectangular workspace. Segment queries are exact, not discretized.
type PlanarScene struct {
	bound     orb.Bound
	obstacles []orb.Polygon
	index     *ObstacleIndex
}

// NewPlanarScene builds a scene. Obstacles fully contained in another obstacle are
// dropped since they never change a query result.
func NewPlanarScene(bound orb.Bound, obstacles []orb.Polygon) *PlanarScene {
	kept := removeContainedPolygons(obstacles)
	return &PlanarScene{
		bound:     bound,
		obstacles: kept,
		index:     NewObstacleIndex(kept),
	}
}

// Obstacles returns the obstacles the scene checks against.
func (s *PlanarScene) Obstacles() []orb.Polygon { return s.obstacles }

func (s *PlanarScene) Dimension() int { return 2 }

func (s *PlanarScene) Limits() [][2]float64 {
	return [][2]float64{
		{s.bound.Min[0], s.bound.Max[0]},
		{s.bound.Min[1], s.bound.Max[1]},
	}
}

// PointInCollision treats everything outside the workspace as occupied.
func (s *PlanarScene) PointInCollision(q []float64) bool {
	p := orb.Point{q[0], q[1]}
	if !s.bound.Contains(p) {
		return true
	}
	for _, i := range s.index.Query(orb.Bound{Min: p, Max: p}) {
		if planar.PolygonContains(s.obstacles[i], p) {
			return true
		}
	}
	return false
}

func (s *PlanarScene) SegmentInCollision(a, b []float64) bool {
	if s.PointInCollision(a) || s.PointInCollision(b) {
		return true
	}
	p1, p2 := orb.Point{a[0], a[1]}, orb.Point{b[0], b[1]}
	mid := orb.Point{(p1[0] + p2[0]) / 2, (p1[1] + p2[1]) / 2}
	for _, i := range s.index.Query(segmentBound(p1, p2, 0)) {
		poly := s.obstacles[i]
		if segmentIntersectsPolygon(p1, p2, poly) {
			return true
		}
		// catches a segment lying inside a hole-free obstacle without touching its rings
		if planar.PolygonContains(poly, mid) {
			return true
		}
	}
	return false
}

// segmentBound returns the bounding box of a segment grown by margin.
func segmentBound(a, b orb.Point, margin float64) orb.Bound {
	return orb.Bound{
		Min: orb.Point{math.Min(a[0], b[0]) - margin, math.Min(a[1], b[1]) - margin},
		Max: orb.Point{math.Max(a[0], b[0]) + margin, math.Max(a[1], b[1]) + margin},
	}
}

// segmentIntersectsPolygon checks the segment against every ring edge, holes included.
func segmentIntersectsPolygon(a, b orb.Point, poly orb.Polygon) bool {
	for _, ring := range poly {
		n := len(ring)
		for i := 0; i < n; i++ {
			if segmentsIntersect(a, b, ring[i], ring[(i+1)%n]) {
				return true
			}
		}
	}
	return false
}

// segmentsIntersect reports whether p1p2 and p3p4 share at least one point.
func segmentsIntersect(p1, p2, p3, p4 orb.Point) bool {
	d1 := direction(p3, p4, p1)
	d2 := direction(p3, p4, p2)
	d3 := direction(p1, p2, p3)
	d4 := direction(p1, p2, p4)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) &&
		((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		return true
	}

	// collinear and touching cases
	if d1 == 0 && onSegment(p3, p4, p1) {
		return true
	}
	if d2 == 0 && onSegment(p3, p4, p2) {
		return true
	}
	if d3 == 0 && onSegment(p1, p2, p3) {
		return true
	}
	if d4 == 0 && onSegment(p1, p2, p4) {
		return true
	}
	return false
}

// direction is the cross product telling on which side of p1p2 the point p3 lies.
func direction(p1, p2, p3 orb.Point) float64 {
	return (p3[0]-p1[0])*(p2[1]-p1[1]) - (p2[0]-p1[0])*(p3[1]-p1[1])
}

// onSegment checks if q lies within the bounding box of pr.
func onSegment(p, r, q orb.Point) bool {
	return q[0] <= math.Max(p[0], r[0]) && q[0] >= math.Min(p[0], r[0]) &&
		q[1] <= math.Max(p[1], r[1]) && q[1] >= math.Min(p[1], r[1])
}

// Rectangle returns an axis-aligned rectangular obstacle.
func Rectangle(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}}
}
