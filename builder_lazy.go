package prm

import (
	"time"

	"go.uber.org/zap"
)

// LazyKNN inserts batches of unchecked samples and connects each new node to its
// k nearest neighbours without validating anything. The planner checks nodes and
// edges as it walks a candidate path.
type LazyKNN struct {
	index NeighborIndex
}

// NewLazyKNN returns a Lazy-kNN builder backed by an R-tree.
func NewLazyKNN() *LazyKNN {
	return &LazyKNN{index: NewRTreeIndex()}
}

// NewLazyKNNWithIndex returns a Lazy-kNN builder using index for neighbour queries.
func NewLazyKNNWithIndex(index NeighborIndex) *LazyKNN {
	return &LazyKNN{index: index}
}

func (b *LazyKNN) Name() string { return LazyKNNName }

func (b *LazyKNN) Lazy() bool { return true }

// Build adds Config.InitialRoadmapSize samples. The terminals already in the
// roadmap count as new nodes of the first batch.
func (b *LazyKNN) Build(rm *Roadmap, env *BuildEnv) error {
	return b.addBatch(rm, env, env.Config.InitialRoadmapSize, terminals(rm))
}

// Grow adds Config.UpdateRoadmapSize samples.
func (b *LazyKNN) Grow(rm *Roadmap, env *BuildEnv) error {
	return b.addBatch(rm, env, env.Config.UpdateRoadmapSize, nil)
}

func (b *LazyKNN) addBatch(rm *Roadmap, env *BuildEnv, numSamples int, fresh []NodeID) error {
	startTime := time.Now()

	for i := 0; i < numSamples; i++ {
		id, err := rm.AddNode(env.Sampler.Random(), Meta{Role: RoleSample})
		if err != nil {
			return err
		}
		fresh = append(fresh, id)
	}

	ids := rm.Nodes()
	points := make([][]float64, len(ids))
	for i, id := range ids {
		points[i] = rm.Config(id)
	}
	b.index.Build(points)

	edges, skipped := 0, 0
	for _, id := range fresh {
		// one extra: the node finds itself first
		for _, j := range b.index.KNearest(rm.Config(id), env.Config.KNearest+1) {
			nb := ids[j]
			if nb == id {
				continue
			}
			if rm.IsColliding(id, nb) {
				skipped++
				continue
			}
			if rm.HasEdge(id, nb) {
				continue
			}
			if err := rm.AddEdge(id, nb); err != nil {
				return err
			}
			edges++
		}
	}

	env.Logger.Debug("grew lazy roadmap",
		zap.Int("samples", numSamples),
		zap.Int("edges", edges),
		zap.Int("skippedColliding", skipped),
		zap.Stringer("roadmap", rm),
		zap.Duration("elapsed", time.Since(startTime)))
	return nil
}
