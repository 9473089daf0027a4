package prm

import (
	"time"

	"go.uber.org/zap"
)

// UniformRadius samples collision-free configurations and connects each new sample
// to every sample within Config.Radius that is not yet in its connected component,
// validating the connecting segment eagerly. The result is a forest.
type UniformRadius struct{}

// NewUniformRadius returns a Uniform-Radius builder.
func NewUniformRadius() *UniformRadius {
	return &UniformRadius{}
}

func (b *UniformRadius) Name() string { return UniformRadiusName }

func (b *UniformRadius) Lazy() bool { return false }

// Build samples Config.NumNodes nodes, then attaches every terminal to its nearest
// visible sample within the radius.
func (b *UniformRadius) Build(rm *Roadmap, env *BuildEnv) error {
	return b.grow(rm, env, env.Config.NumNodes)
}

// Grow adds Config.UpdateRoadmapSize samples and retries isolated terminals.
func (b *UniformRadius) Grow(rm *Roadmap, env *BuildEnv) error {
	return b.grow(rm, env, env.Config.UpdateRoadmapSize)
}

func (b *UniformRadius) grow(rm *Roadmap, env *BuildEnv, numSamples int) error {
	startTime := time.Now()
	radius := env.Config.Radius

	added, edges, rejected := 0, 0, 0
	for added < numSamples {
		q, err := env.Sampler.RandomFree(env.Oracle, env.Config.SampleAttempts)
		if err != nil {
			env.Logger.Warn("stopped sampling early", zap.Int("added", added),
				zap.Int("requested", numSamples), zap.Error(err))
			break
		}
		id, err := rm.AddNode(q, Meta{Role: RoleSample})
		if err != nil {
			return err
		}
		added++

		comp := rm.componentOf(id)
		for _, nb := range nodesWithin(rm, q, radius, isSample) {
			if comp[nb] {
				continue
			}
			if env.Oracle.SegmentInCollision(q, rm.Config(nb)) {
				rejected++
				continue
			}
			if err := rm.AddEdge(id, nb); err != nil {
				return err
			}
			edges++
			for k := range rm.componentOf(nb) {
				comp[k] = true
			}
		}
	}

	connected := connectTerminalsWithin(rm, env.Oracle, radius)

	env.Logger.Debug("grew uniform roadmap",
		zap.Int("samples", added),
		zap.Int("edges", edges),
		zap.Int("rejectedEdges", rejected),
		zap.Int("terminalsConnected", connected),
		zap.Stringer("roadmap", rm),
		zap.Duration("elapsed", time.Since(startTime)))
	return nil
}

// connectTerminalsWithin links each isolated terminal to its nearest sample within
// radius whose segment is collision-free. It returns how many terminals got linked.
func connectTerminalsWithin(rm *Roadmap, oracle CollisionOracle, radius float64) int {
	connected := 0
	for _, t := range terminals(rm) {
		if rm.Degree(t) > 0 {
			continue
		}
		q := rm.Config(t)
		for _, nb := range nodesWithin(rm, q, radius, isSample) {
			if oracle.SegmentInCollision(q, rm.Config(nb)) {
				continue
			}
			if err := rm.AddEdge(t, nb); err == nil {
				connected++
				break
			}
		}
	}
	return connected
}

func isSample(n *Node) bool { return n.Role == RoleSample }
