package prm

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// removeContainedPolygons removes polygons that are fully contained within other polygons.
// Of two identical polygons the later one is kept.
func removeContainedPolygons(polygons []orb.Polygon) []orb.Polygon {
	if len(polygons) <= 1 {
		return polygons
	}

	contained := make([]bool, len(polygons))
	for i := 0; i < len(polygons); i++ {
		if contained[i] {
			continue
		}
		for j := 0; j < len(polygons); j++ {
			if i == j || contained[j] {
				continue
			}
			if isPolygonContainedIn(polygons[i], polygons[j]) {
				contained[i] = true
				break
			}
			if isPolygonContainedIn(polygons[j], polygons[i]) {
				contained[j] = true
			}
		}
	}

	result := make([]orb.Polygon, 0, len(polygons))
	for i, poly := range polygons {
		if !contained[i] {
			result = append(result, poly)
		}
	}
	return result
}

// isPolygonContainedIn checks if polygon a is fully contained within polygon b.
// Only the outer ring of a matters; a vertex of a inside a hole of b fails the test.
func isPolygonContainedIn(a, b orb.Polygon) bool {
	if len(a) == 0 || len(b) == 0 || len(a[0]) == 0 || len(b[0]) == 0 {
		return false
	}

	ab, bb := a.Bound(), b.Bound()
	if !bb.Contains(ab.Min) || !bb.Contains(ab.Max) {
		return false
	}

	for _, vertex := range a[0] {
		if !planar.PolygonContains(b, vertex) {
			return false
		}
	}
	// an edge of a may still cross a hole of b
	for _, hole := range b[1:] {
		for i := range hole {
			if planar.PolygonContains(a, hole[i]) {
				return false
			}
		}
	}
	return true
}
