package prm

import (
	"time"

	"go.uber.org/zap"
)

// VisibilityGuard keeps one guard per connected component and only inserts samples
// that either see no guard (a new guard) or see guards of two components (a
// connection node joining them). Start, interim and goal nodes act as guards.
//
// Components are tested in order of their smallest id and guards within a
// component in ascending id order; the first visible guard represents its
// component. When more than two components are visible, the first two are merged.
type VisibilityGuard struct{}

// NewVisibilityGuard returns a Visibility-Guard builder.
func NewVisibilityGuard() *VisibilityGuard {
	return &VisibilityGuard{}
}

func (b *VisibilityGuard) Name() string { return VisibilityGuardName }

func (b *VisibilityGuard) Lazy() bool { return false }

// Build joins mutually visible terminals, then runs one sampling phase.
func (b *VisibilityGuard) Build(rm *Roadmap, env *BuildEnv) error {
	ts := terminals(rm)
	for i := 0; i < len(ts); i++ {
		for j := i + 1; j < len(ts); j++ {
			if env.Oracle.SegmentInCollision(rm.Config(ts[i]), rm.Config(ts[j])) {
				continue
			}
			if err := rm.AddEdge(ts[i], ts[j]); err != nil {
				return err
			}
		}
	}
	return b.learn(rm, env)
}

// Grow runs another sampling phase with a fresh stagnation counter.
func (b *VisibilityGuard) Grow(rm *Roadmap, env *BuildEnv) error {
	return b.learn(rm, env)
}

func (b *VisibilityGuard) learn(rm *Roadmap, env *BuildEnv) error {
	startTime := time.Now()
	cfg := env.Config

	currTry, samples, guards, connections := 0, 0, 0, 0
	for currTry < cfg.NTry && samples < cfg.MaxSamples {
		if cfg.StopWhenConnected && rm.IsConnected() {
			break
		}
		q, err := env.Sampler.RandomFree(env.Oracle, cfg.SampleAttempts)
		if err != nil {
			env.Logger.Warn("stopped visibility phase early", zap.Int("samples", samples), zap.Error(err))
			break
		}
		samples++

		visible := visibleGuards(rm, env.Oracle, q, 2)
		switch len(visible) {
		case 0:
			if _, err := rm.AddNode(q, Meta{Role: RoleGuard}); err != nil {
				return err
			}
			guards++
			currTry = 0
			continue
		case 2:
			id, err := rm.AddNode(q, Meta{Role: RoleConnection})
			if err != nil {
				return err
			}
			for _, g := range visible {
				if err := rm.AddEdge(id, g); err != nil {
					return err
				}
			}
			connections++
		}
		currTry++
	}

	env.Logger.Debug("visibility phase done",
		zap.Int("samples", samples),
		zap.Int("guards", guards),
		zap.Int("connections", connections),
		zap.Bool("stagnated", currTry >= cfg.NTry),
		zap.Stringer("roadmap", rm),
		zap.Duration("elapsed", time.Since(startTime)))
	return nil
}

// visibleGuards returns, for at most limit components, the first guard of each
// component that q can see.
func visibleGuards(rm *Roadmap, oracle CollisionOracle, q []float64, limit int) []NodeID {
	var visible []NodeID
	for _, comp := range rm.ConnectedComponents() {
		for _, id := range comp {
			n, _ := rm.Node(id)
			if !isGuard(n) {
				continue
			}
			if !oracle.SegmentInCollision(q, n.Q) {
				visible = append(visible, id)
				break
			}
		}
		if len(visible) == limit {
			break
		}
	}
	return visible
}

func isGuard(n *Node) bool { return n.Role == RoleGuard || n.Role.IsTerminal() }
