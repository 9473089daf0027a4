package prm

import (
	"math/rand"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Builder names accepted by BuilderByName.
const (
	UniformRadiusName   = "uniform"
	LazyKNNName         = "lazy"
	VisibilityGuardName = "visibility"
)

// errNoFreeSample is returned when the sampler gives up looking for free space.
var errNoFreeSample = errors.New("no collision-free sample found")

// RoadmapBuilder is a roadmap sampling strategy. The planner inserts the start,
// interim and goal nodes before calling Build, and calls Grow whenever a query or a
// lazy validation fails.
type RoadmapBuilder interface {
	Name() string
	// Lazy reports whether edges are inserted unvalidated, leaving collision checks
	// to the planner while it follows a candidate path.
	Lazy() bool
	Build(rm *Roadmap, env *BuildEnv) error
	Grow(rm *Roadmap, env *BuildEnv) error
}

// BuildEnv carries what a builder needs from the running plan.
type BuildEnv struct {
	Oracle  CollisionOracle
	Sampler *Sampler
	Config  Config
	Logger  *zap.Logger
}

// BuilderByName returns a fresh builder for one of the registered names.
func BuilderByName(name string) (RoadmapBuilder, error) {
	switch strings.ToLower(name) {
	case UniformRadiusName, "basic", "uniform-radius":
		return NewUniformRadius(), nil
	case LazyKNNName, "lazy-knn":
		return NewLazyKNN(), nil
	case VisibilityGuardName, "visibility-guard":
		return NewVisibilityGuard(), nil
	default:
		return nil, errors.Errorf("unknown roadmap builder %q", name)
	}
}

// Sampler draws uniform configurations inside the oracle limits.
type Sampler struct {
	rng    *rand.Rand
	limits [][2]float64
}

// NewSampler returns a sampler over limits using rng.
func NewSampler(rng *rand.Rand, limits [][2]float64) *Sampler {
	return &Sampler{rng: rng, limits: limits}
}

// Random returns a uniform configuration without any collision check.
func (s *Sampler) Random() []float64 {
	q := make([]float64, len(s.limits))
	for i, lim := range s.limits {
		q[i] = lim[0] + s.rng.Float64()*(lim[1]-lim[0])
	}
	return q
}

// RandomFree returns a uniform collision-free configuration, trying at most
// attempts samples.
func (s *Sampler) RandomFree(oracle CollisionOracle, attempts int) ([]float64, error) {
	for i := 0; i < attempts; i++ {
		q := s.Random()
		if !oracle.PointInCollision(q) {
			return q, nil
		}
	}
	return nil, errors.Wrapf(errNoFreeSample, "after %d attempts", attempts)
}

// nodesWithin returns the ids of nodes accepted by keep that lie within radius of q,
// by ascending distance. Brute force scan.
func nodesWithin(rm *Roadmap, q []float64, radius float64, keep func(*Node) bool) []NodeID {
	type candidate struct {
		id   NodeID
		dist float64
	}
	var found []candidate
	for _, id := range rm.Nodes() {
		n, _ := rm.Node(id)
		if !keep(n) {
			continue
		}
		if d := Distance(n.Q, q); d <= radius {
			found = append(found, candidate{id, d})
		}
	}
	// stable: equal distances stay in id order
	sort.SliceStable(found, func(i, j int) bool { return found[i].dist < found[j].dist })
	ids := make([]NodeID, len(found))
	for i, c := range found {
		ids[i] = c.id
	}
	return ids
}

// terminals returns the ids of start, interim and goal nodes in ascending order.
func terminals(rm *Roadmap) []NodeID {
	var ids []NodeID
	for _, id := range rm.Nodes() {
		if n, _ := rm.Node(id); n.Role.IsTerminal() {
			ids = append(ids, id)
		}
	}
	return ids
}
