package prm

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// R-tree node fan-out, same for obstacle and configuration trees.
const (
	rtreeMinChildren = 25
	rtreeMaxChildren = 50
)

// pointTolerance is the half-width of the box a configuration occupies in the R-tree.
const pointTolerance = 1e-9

// NeighborIndex answers nearest-neighbour queries over a batch of configurations.
// It is rebuilt from scratch whenever the batch changes.
type NeighborIndex interface {
	Build(points [][]float64)
	// KNearest returns up to k indices into the last built batch, ordered by
	// ascending Euclidean distance to q. Equal distances are ordered by index.
	KNearest(q []float64, k int) []int
}

// pointEntry wraps a configuration for R-tree storage.
type pointEntry struct {
	idx  int
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (p *pointEntry) Bounds() rtreego.Rect {
	return p.rect
}

// RTreeIndex is a NeighborIndex backed by an R-tree.
type RTreeIndex struct {
	tree   *rtreego.Rtree
	points [][]float64
}

// NewRTreeIndex creates an empty R-tree index.
func NewRTreeIndex() *RTreeIndex {
	return &RTreeIndex{}
}

func (ri *RTreeIndex) Build(points [][]float64) {
	ri.points = points
	ri.tree = nil
	if len(points) == 0 {
		return
	}
	ri.tree = rtreego.NewTree(len(points[0]), rtreeMinChildren, rtreeMaxChildren)
	for i, p := range points {
		ri.tree.Insert(&pointEntry{idx: i, rect: rtreego.Point(p).ToRect(pointTolerance)})
	}
}

func (ri *RTreeIndex) KNearest(q []float64, k int) []int {
	if ri.tree == nil || k <= 0 {
		return nil
	}
	found := ri.tree.NearestNeighbors(k, rtreego.Point(q))
	result := make([]int, 0, len(found))
	for _, item := range found {
		if item == nil {
			continue
		}
		result = append(result, item.(*pointEntry).idx)
	}
	// the tree ranks by box distance; re-rank on exact distance
	sortByDistance(result, ri.points, q)
	return result
}

// BruteForceIndex is a NeighborIndex doing a linear scan. Fine for small roadmaps.
type BruteForceIndex struct {
	points [][]float64
}

func (bi *BruteForceIndex) Build(points [][]float64) {
	bi.points = points
}

func (bi *BruteForceIndex) KNearest(q []float64, k int) []int {
	if k <= 0 {
		return nil
	}
	all := make([]int, len(bi.points))
	for i := range all {
		all[i] = i
	}
	sortByDistance(all, bi.points, q)
	if k < len(all) {
		all = all[:k]
	}
	return all
}

func sortByDistance(idx []int, points [][]float64, q []float64) {
	dist := make(map[int]float64, len(idx))
	for _, i := range idx {
		dist[i] = Distance(points[i], q)
	}
	sort.SliceStable(idx, func(a, b int) bool {
		da, db := dist[idx[a]], dist[idx[b]]
		if da != db {
			return da < db
		}
		return idx[a] < idx[b]
	})
}

// obstacleEntry wraps an obstacle's bounding box for R-tree storage
type obstacleEntry struct {
	idx  int
	bbox rtreego.Rect
}

// Bounds implements rtreego.Spatial interface
func (o *obstacleEntry) Bounds() rtreego.Rect {
	return o.bbox
}

// ObstacleIndex manages polygon bounding box queries
type ObstacleIndex struct {
	tree *rtreego.Rtree
}

// NewObstacleIndex indexes the bounding boxes of polygons by their slice position.
func NewObstacleIndex(polygons []orb.Polygon) *ObstacleIndex {
	tree := rtreego.NewTree(2, rtreeMinChildren, rtreeMaxChildren)
	for i, polygon := range polygons {
		if len(polygon) == 0 || len(polygon[0]) == 0 {
			continue
		}
		bbox, err := boundToRect(polygon.Bound())
		if err == nil {
			tree.Insert(&obstacleEntry{idx: i, bbox: bbox})
		}
	}
	return &ObstacleIndex{tree: tree}
}

// Query returns, in ascending order, the positions of polygons whose bounding box
// intersects b.
func (oi *ObstacleIndex) Query(b orb.Bound) []int {
	rect, err := boundToRect(b)
	if err != nil {
		return nil
	}
	results := oi.tree.SearchIntersect(rect)
	idx := make([]int, 0, len(results))
	for _, item := range results {
		idx = append(idx, item.(*obstacleEntry).idx)
	}
	sort.Ints(idx)
	return idx
}

// boundToRect converts an orb bound into an R-tree rectangle grown by pointTolerance
// on every side, since rtreego rejects zero lengths.
func boundToRect(b orb.Bound) (rtreego.Rect, error) {
	origin := rtreego.Point{b.Min[0] - pointTolerance, b.Min[1] - pointTolerance}
	lengths := []float64{
		math.Abs(b.Max[0]-b.Min[0]) + 2*pointTolerance,
		math.Abs(b.Max[1]-b.Min[1]) + 2*pointTolerance,
	}
	return rtreego.NewRect(origin, lengths)
}
