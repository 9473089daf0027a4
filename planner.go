package prm

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Option configures a Planner.
type Option func(*options)

type options struct {
	logger *zap.Logger
	rand   func() *rand.Rand
}

// WithLogger sets the logger used for planning progress. Defaults to a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRandSource makes every run draw samples from a generator returned by newRand
// instead of one seeded with Config.Seed.
func WithRandSource(newRand func() *rand.Rand) Option {
	return func(o *options) {
		o.rand = newRand
	}
}

// Planner finds collision-free paths through a set of waypoints on a roadmap it
// rebuilds for every run. Sampling is random: a failed run does not prove that no
// path exists.
type Planner struct {
	oracle  CollisionOracle
	builder RoadmapBuilder
	cfg     Config
	logger  *zap.Logger
	newRand func() *rand.Rand
}

// NewPlanner returns a planner using builder to sample the roadmap.
func NewPlanner(oracle CollisionOracle, builder RoadmapBuilder, cfg Config, opts ...Option) (*Planner, error) {
	if oracle == nil {
		return nil, errors.New("collision oracle is required")
	}
	if builder == nil {
		return nil, errors.New("roadmap builder is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid planner config")
	}
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rand == nil {
		seed := cfg.Seed
		o.rand = func() *rand.Rand { return rand.New(rand.NewSource(seed)) }
	}
	return &Planner{
		oracle:  oracle,
		builder: builder,
		cfg:     cfg,
		logger:  o.logger,
		newRand: o.rand,
	}, nil
}

// Config returns the options the planner runs with.
func (p *Planner) Config() Config { return p.cfg }

// Builder returns the roadmap builder of the planner.
func (p *Planner) Builder() RoadmapBuilder { return p.builder }

// Result is the outcome of one run.
type Result struct {
	// Path is empty when no path was found.
	Path    []NodeID
	Roadmap *Roadmap
	Retries int
	Replans int
	// Err tells why Path is empty.
	Err error
}

// Found reports whether the run produced a path.
func (r *Result) Found() bool { return len(r.Path) > 0 }

// Labels returns the path as node labels, such as "start", "interim0", "12", "goal".
func (r *Result) Labels() []string {
	return lo.Map(r.Path, func(id NodeID, _ int) string {
		n, ok := r.Roadmap.Node(id)
		if !ok {
			return fmt.Sprint(id)
		}
		return n.Label()
	})
}

// Configs returns the configuration of every path node.
func (r *Result) Configs() [][]float64 {
	return lo.Map(r.Path, func(id NodeID, _ int) []float64 { return r.Roadmap.Config(id) })
}

// Plan searches a path from the first valid start through every valid interim to the
// first valid goal. An error is returned only for invalid input; a run that finds no
// path returns a Result with an empty Path and Err set.
func (p *Planner) Plan(starts, interims, goals [][]float64) (*Result, error) {
	startTime := time.Now()
	in, err := p.prevalidate(starts, interims, goals)
	if err != nil {
		return nil, err
	}

	rm := NewRoadmap(p.oracle.Dimension())
	startID, err := rm.AddNode(in.start, Meta{Tag: "start", Role: RoleStart})
	if err != nil {
		return nil, err
	}
	waypoints := make([]Waypoint, 0, len(in.interims))
	for i, q := range in.interims {
		id, err := rm.AddNode(q, Meta{Tag: fmt.Sprintf("interim%d", i), Role: RoleInterim})
		if err != nil {
			return nil, err
		}
		waypoints = append(waypoints, Waypoint{Q: q, Node: id})
	}
	goalID, err := rm.AddNode(in.goal, Meta{Tag: "goal", Role: RoleGoal})
	if err != nil {
		return nil, err
	}

	env := &BuildEnv{
		Oracle:  p.oracle,
		Sampler: NewSampler(p.newRand(), p.oracle.Limits()),
		Config:  p.cfg,
		Logger:  p.logger,
	}
	p.logger.Info("planning",
		zap.String("builder", p.builder.Name()),
		zap.Int("interims", len(waypoints)))
	if err := p.builder.Build(rm, env); err != nil {
		return nil, errors.Wrapf(err, "error building %s roadmap", p.builder.Name())
	}

	w := &walk{
		rm:   rm,
		seq:  NewSequencer(waypoints, Waypoint{Q: in.goal, Node: goalID}),
		path: []NodeID{startID},
	}
	w.current = startID
	res := &Result{Roadmap: rm}
	if err := p.follow(w, env); err != nil {
		res.Err = err
		p.logger.Info("no path found",
			zap.Error(err),
			zap.Int("retries", w.retries),
			zap.Int("replans", w.replans),
			zap.Stringer("roadmap", rm),
			zap.Duration("elapsed", time.Since(startTime)))
	} else {
		res.Path = w.path
		p.logger.Info("path found",
			zap.Int("length", len(w.path)),
			zap.Int("retries", w.retries),
			zap.Int("replans", w.replans),
			zap.Stringer("roadmap", rm),
			zap.Duration("elapsed", time.Since(startTime)))
	}
	res.Retries = w.retries
	res.Replans = w.replans
	return res, nil
}

// walk is the state of one run: where the path stands, which waypoint it heads for
// and which waypoints are left.
type walk struct {
	rm      *Roadmap
	seq     *Sequencer
	current NodeID
	target  Waypoint
	// path holds the accepted nodes; path[lastReached] is the last waypoint reached,
	// or the start.
	path        []NodeID
	lastReached int

	retries int
	replans int
}

// follow walks candidate paths until the goal is reached or a budget runs out.
func (p *Planner) follow(w *walk, env *BuildEnv) error {
	w.target, _, _ = w.seq.Nearest(w.rm.Config(w.current))
	candidate, err := p.replan(w)

	for {
		if err != nil {
			if !errors.Is(err, ErrNoPath) {
				return err
			}
			if err := p.repair(w, env, err); err != nil {
				return err
			}
			candidate, err = p.replan(w)
			continue
		}

		candidate, err = p.advance(w, env, candidate)
		if err == nil && candidate == nil {
			return nil
		}
	}
}

// advance steps along candidate, whose first node is the current one. It returns the
// next candidate to follow, or nil with a nil error once the goal is reached.
func (p *Planner) advance(w *walk, env *BuildEnv, candidate []NodeID) ([]NodeID, error) {
	for i := 1; i < len(candidate); i++ {
		step := candidate[i]

		if p.builder.Lazy() {
			if cerr := p.validate(w.rm, w.current, step); cerr != nil {
				p.logger.Debug("lazy validation failed", zap.Error(cerr))
				if err := p.repair(w, env, cerr); err != nil {
					return nil, err
				}
				return p.replan(w)
			}
		}

		w.path = append(w.path, step)
		w.current = step

		if w.seq.Reach(step) {
			w.excise()
			if w.seq.Done() {
				return nil, nil
			}
			w.target, _, _ = w.seq.Nearest(w.rm.Config(step))
			p.logger.Debug("waypoint reached",
				zap.Int64("node", int64(step)),
				zap.Int("remaining", len(w.seq.Remaining())))
			return p.replan(w)
		}

		next, _, _ := w.seq.Nearest(w.rm.Config(step))
		if next.Node == w.target.Node {
			continue
		}
		previous := w.target
		w.target = next
		switched, err := p.replan(w)
		if err != nil {
			return nil, err
		}
		if oscillates(w.path, switched) {
			p.logger.Debug("suppressed target switch",
				zap.Int64("from", int64(previous.Node)),
				zap.Int64("to", int64(next.Node)))
			w.target = previous
			// the rest of candidate is still a shortest path to previous
			continue
		}
		return switched, nil
	}
	// candidate ended before the target
	return p.replan(w)
}

// validate checks the node step and the edge leading to it. Collisions are removed
// from the roadmap and remembered.
func (p *Planner) validate(rm *Roadmap, from, step NodeID) error {
	if p.oracle.PointInCollision(rm.Config(step)) {
		rm.RemoveNode(step)
		return &CollisionDetectedError{From: step, To: step}
	}
	if p.oracle.SegmentInCollision(rm.Config(from), rm.Config(step)) {
		rm.MarkColliding(from, step)
		return &CollisionDetectedError{From: from, To: step}
	}
	return nil
}

// replan requests a shortest path from the current node to the pursued waypoint.
func (p *Planner) replan(w *walk) ([]NodeID, error) {
	w.replans++
	if w.replans > p.cfg.MaxReplans {
		return nil, errors.Wrapf(ErrPlanningFailed, "replan budget of %d exhausted", p.cfg.MaxReplans)
	}
	return w.rm.ShortestPath(w.current, w.target.Node)
}

// repair grows the roadmap after cause, or fails once the retry budget is spent.
func (p *Planner) repair(w *walk, env *BuildEnv, cause error) error {
	w.retries++
	if w.retries > p.cfg.MaxRetries {
		return errors.Wrapf(ErrPlanningFailed, "retry budget of %d exhausted, last failure: %v",
			p.cfg.MaxRetries, cause)
	}
	if err := p.builder.Grow(w.rm, env); err != nil {
		return errors.Wrapf(err, "error growing %s roadmap", p.builder.Name())
	}
	return nil
}

// oscillates reports whether following switched would step straight back into a
// back-and-forth between the last two nodes.
func oscillates(path, switched []NodeID) bool {
	n := len(path)
	if n < 3 || len(switched) < 2 {
		return false
	}
	return path[n-1] == path[n-3] && switched[1] == path[n-2]
}

// excise drops cyclic detours from the part of the path walked since the previous
// waypoint and marks the current node as the last waypoint reached.
func (w *walk) excise() {
	w.path = append(w.path[:w.lastReached], removeCycles(w.path[w.lastReached:])...)
	w.lastReached = len(w.path) - 1
}

// removeCycles keeps the first visit of every node and resumes after its last visit.
// Consecutive nodes stay adjacent, so the result is still a walk over roadmap edges.
func removeCycles(seg []NodeID) []NodeID {
	last := make(map[NodeID]int, len(seg))
	for i, id := range seg {
		last[id] = i
	}
	out := make([]NodeID, 0, len(seg))
	for i := 0; i < len(seg); i = last[seg[i]] + 1 {
		out = append(out, seg[i])
	}
	return out
}

type validatedInput struct {
	start    []float64
	interims [][]float64
	goal     []float64
}

// prevalidate filters every category down to candidates with the oracle's dimension,
// inside its limits and collision-free. Interims equal to the start, the goal or an
// earlier interim are dropped.
func (p *Planner) prevalidate(starts, interims, goals [][]float64) (*validatedInput, error) {
	validStarts, reasons := p.filter(starts)
	if len(validStarts) == 0 {
		return nil, &InvalidInputError{Category: "start", Reasons: reasons, cause: ErrNoValidStart}
	}
	validGoals, reasons := p.filter(goals)
	if len(validGoals) == 0 {
		return nil, &InvalidInputError{Category: "goal", Reasons: reasons, cause: ErrNoValidWaypoint}
	}
	validInterims, reasons := p.filter(interims)
	if len(interims) > 0 && len(validInterims) == 0 {
		return nil, &InvalidInputError{Category: "interim", Reasons: reasons, cause: ErrNoValidWaypoint}
	}
	if reasons != nil {
		p.logger.Warn("dropped interim candidates", zap.Error(reasons))
	}

	in := &validatedInput{start: validStarts[0], goal: validGoals[0]}
	seen := map[string]bool{configKey(in.start): true, configKey(in.goal): true}
	for _, q := range validInterims {
		key := configKey(q)
		if seen[key] {
			p.logger.Debug("dropped duplicate interim", zap.Float64s("q", q))
			continue
		}
		seen[key] = true
		in.interims = append(in.interims, q)
	}
	return in, nil
}

func (p *Planner) filter(qs [][]float64) ([][]float64, error) {
	var valid [][]float64
	var reasons error
	for i, q := range qs {
		if err := p.check(q); err != nil {
			reasons = multierr.Append(reasons, errors.Wrapf(err, "candidate %d", i))
			continue
		}
		valid = append(valid, q)
	}
	return valid, reasons
}

func (p *Planner) check(q []float64) error {
	if len(q) != p.oracle.Dimension() {
		return errors.Errorf("has dimension %d, want %d", len(q), p.oracle.Dimension())
	}
	if !withinLimits(q, p.oracle.Limits()) {
		return errors.Errorf("%v is outside the limits", q)
	}
	if p.oracle.PointInCollision(q) {
		return errors.Errorf("%v is in collision", q)
	}
	return nil
}
