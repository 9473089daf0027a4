package prm

import (
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"go.uber.org/zap/zaptest"
)

var (
	startQ   = []float64{0, 0}
	interimQ = []float64{10, 0}
	goalQ    = []float64{10, 10}
)

func newTestPlanner(t *testing.T, oracle CollisionOracle, builder RoadmapBuilder, cfg Config) *Planner {
	t.Helper()
	p, err := NewPlanner(oracle, builder, cfg, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return p
}

// assertValidPath checks the path runs from start to goal over roadmap edges that
// are free of collisions, and visits every waypoint.
func assertValidPath(t *testing.T, res *Result, oracle CollisionOracle, waypoints ...[]float64) {
	t.Helper()
	require.True(t, res.Found(), "no path: %v", res.Err)
	require.NoError(t, res.Err)

	labels := res.Labels()
	assert.Equal(t, "start", labels[0])
	assert.Equal(t, "goal", labels[len(labels)-1])

	for i := 1; i < len(res.Path); i++ {
		a, b := res.Path[i-1], res.Path[i]
		require.True(t, res.Roadmap.HasEdge(a, b), "no edge %d-%d", a, b)
		assert.False(t, oracle.SegmentInCollision(res.Roadmap.Config(a), res.Roadmap.Config(b)),
			"edge %d-%d collides", a, b)
	}

	configs := res.Configs()
	for _, wp := range waypoints {
		assert.Contains(t, configs, wp)
	}
}

func TestPlanAroundWall(t *testing.T) {
	scene := wallScene()
	cfg := DefaultConfig()
	cfg.Radius = 5
	cfg.NumNodes = 200
	p := newTestPlanner(t, scene, NewUniformRadius(), cfg)

	res, err := p.Plan([][]float64{startQ}, [][]float64{interimQ}, [][]float64{goalQ})
	require.NoError(t, err)
	assertValidPath(t, res, scene, startQ, interimQ, goalQ)
	assert.Contains(t, res.Labels(), "interim0")

	t.Run("segments stay clear of the wall polygon", func(t *testing.T) {
		wall := Rectangle(4, -3, 6, 7)
		for _, q := range res.Configs() {
			assert.False(t, planar.PolygonContains(wall, orb.Point{q[0], q[1]}), "node %v inside the wall", q)
		}
	})
}

func TestPlanAllBuilders(t *testing.T) {
	// the block sits above the straight line from start to interim
	scene := NewPlanarScene(workspace, []orb.Polygon{Rectangle(4, 3, 6, 7)})
	cfg := DefaultConfig()
	cfg.MaxRetries = 100

	for _, name := range []string{UniformRadiusName, LazyKNNName, VisibilityGuardName} {
		t.Run(name, func(t *testing.T) {
			b, err := BuilderByName(name)
			require.NoError(t, err)
			p := newTestPlanner(t, scene, b, cfg)

			res, err := p.Plan([][]float64{startQ}, [][]float64{interimQ}, [][]float64{goalQ})
			require.NoError(t, err)
			assertValidPath(t, res, scene, startQ, interimQ, goalQ)
		})
	}
}

func TestPlanDeterministic(t *testing.T) {
	scene := wallScene()
	cfg := DefaultConfig()
	cfg.Seed = 11

	for _, name := range []string{UniformRadiusName, LazyKNNName, VisibilityGuardName} {
		t.Run(name, func(t *testing.T) {
			b, err := BuilderByName(name)
			require.NoError(t, err)
			p := newTestPlanner(t, scene, b, cfg)

			first, err := p.Plan([][]float64{startQ}, [][]float64{interimQ}, [][]float64{goalQ})
			require.NoError(t, err)
			second, err := p.Plan([][]float64{startQ}, [][]float64{interimQ}, [][]float64{goalQ})
			require.NoError(t, err)

			assert.Equal(t, first.Path, second.Path)
			assert.Equal(t, first.Retries, second.Retries)
			assert.Equal(t, first.Roadmap.Edges(), second.Roadmap.Edges())
		})
	}
}

func TestPlanRandSource(t *testing.T) {
	scene := wallScene()
	calls := 0
	p, err := NewPlanner(scene, NewUniformRadius(), DefaultConfig(), WithRandSource(func() *rand.Rand {
		calls++
		return rand.New(rand.NewSource(5))
	}))
	require.NoError(t, err)

	res, err := p.Plan([][]float64{startQ}, nil, [][]float64{goalQ})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assertValidPath(t, res, scene, startQ, goalQ)
}

func TestPlanUnsolvable(t *testing.T) {
	scene := ringScene()
	cfg := DefaultConfig()
	cfg.NumNodes = 100
	cfg.InitialRoadmapSize = 40
	cfg.UpdateRoadmapSize = 10
	cfg.NTry = 10
	cfg.MaxRetries = 5

	for _, name := range []string{UniformRadiusName, LazyKNNName, VisibilityGuardName} {
		t.Run(name, func(t *testing.T) {
			b, err := BuilderByName(name)
			require.NoError(t, err)
			p := newTestPlanner(t, scene, b, cfg)

			res, err := p.Plan([][]float64{startQ}, [][]float64{{10, 10}}, [][]float64{{0, 10}})
			require.NoError(t, err)
			assert.False(t, res.Found())
			assert.Empty(t, res.Path)
			assert.True(t, errors.Is(res.Err, ErrPlanningFailed), "got %v", res.Err)
			assert.LessOrEqual(t, res.Retries, cfg.MaxRetries+1)
			assert.LessOrEqual(t, res.Replans, cfg.MaxReplans)
		})
	}
}

func TestPlanReplanBudget(t *testing.T) {
	scene := ringScene()
	cfg := DefaultConfig()
	cfg.MaxRetries = 1000
	cfg.MaxReplans = 3
	cfg.UpdateRoadmapSize = 5
	cfg.NumNodes = 20
	p := newTestPlanner(t, scene, NewUniformRadius(), cfg)

	res, err := p.Plan([][]float64{startQ}, [][]float64{{10, 10}}, [][]float64{{0, 10}})
	require.NoError(t, err)
	assert.False(t, res.Found())
	assert.ErrorIs(t, res.Err, ErrPlanningFailed)
	assert.Equal(t, cfg.MaxReplans+1, res.Replans)
}

func TestPlanCollidingEdgesStayRemoved(t *testing.T) {
	scene := wallScene()
	cfg := DefaultConfig()
	cfg.MaxRetries = 30
	p := newTestPlanner(t, scene, NewLazyKNN(), cfg)

	res, err := p.Plan([][]float64{startQ}, [][]float64{interimQ}, [][]float64{goalQ})
	require.NoError(t, err)
	colliding := res.Roadmap.CollidingEdges()
	assert.NotEmpty(t, colliding)
	for _, e := range colliding {
		assert.False(t, res.Roadmap.HasEdge(e[0], e[1]), "edge %v was re-inserted", e)
	}
	if res.Found() {
		assertValidPath(t, res, scene, startQ, interimQ, goalQ)
	}
}

func TestPlanTwoNearbyInterims(t *testing.T) {
	scene := NewPlanarScene(workspace, nil)
	cfg := DefaultConfig()
	cfg.NumNodes = 100
	left, right := []float64{-3, 0}, []float64{3, 0}
	top := []float64{0, 5}

	for _, name := range []string{UniformRadiusName, LazyKNNName, VisibilityGuardName} {
		t.Run(name, func(t *testing.T) {
			b, err := BuilderByName(name)
			require.NoError(t, err)
			p := newTestPlanner(t, scene, b, cfg)

			res, err := p.Plan([][]float64{{0, 0}}, [][]float64{left, right}, [][]float64{top})
			require.NoError(t, err)
			assertValidPath(t, res, scene, left, right, top)
			assert.LessOrEqual(t, res.Replans, cfg.MaxReplans)
		})
	}
}

func TestPlanWithoutInterims(t *testing.T) {
	scene := wallScene()
	p := newTestPlanner(t, scene, NewUniformRadius(), DefaultConfig())

	res, err := p.Plan([][]float64{startQ}, nil, [][]float64{goalQ})
	require.NoError(t, err)
	assertValidPath(t, res, scene, startQ, goalQ)
}

func TestPlanRoundTrip(t *testing.T) {
	scene := wallScene()
	p := newTestPlanner(t, scene, NewVisibilityGuard(), DefaultConfig())

	res, err := p.Plan([][]float64{startQ}, [][]float64{interimQ}, [][]float64{startQ})
	require.NoError(t, err)
	assertValidPath(t, res, scene, startQ, interimQ)
	configs := res.Configs()
	assert.Equal(t, startQ, configs[len(configs)-1])
}

func TestPrevalidation(t *testing.T) {
	scene := wallScene()
	p := newTestPlanner(t, scene, NewUniformRadius(), DefaultConfig())
	inWall := []float64{5, 0}
	outside := []float64{20, 0}

	t.Run("no valid start", func(t *testing.T) {
		_, err := p.Plan([][]float64{inWall, outside, {1}}, nil, [][]float64{goalQ})
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNoValidStart))

		var invalid *InvalidInputError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, "start", invalid.Category)
		assert.Len(t, multierr.Errors(invalid.Reasons), 3)
	})

	t.Run("no valid goal", func(t *testing.T) {
		_, err := p.Plan([][]float64{startQ}, nil, [][]float64{inWall})
		assert.True(t, errors.Is(err, ErrNoValidWaypoint))
	})

	t.Run("no valid interim", func(t *testing.T) {
		_, err := p.Plan([][]float64{startQ}, [][]float64{inWall, outside}, [][]float64{goalQ})
		assert.True(t, errors.Is(err, ErrNoValidWaypoint))
		var invalid *InvalidInputError
		require.True(t, errors.As(err, &invalid))
		assert.Equal(t, "interim", invalid.Category)
	})

	t.Run("first valid candidates win", func(t *testing.T) {
		res, err := p.Plan(
			[][]float64{inWall, startQ, {1, 1}},
			[][]float64{outside, interimQ, interimQ, startQ},
			[][]float64{inWall, goalQ, {9, 9}},
		)
		require.NoError(t, err)
		require.True(t, res.Found())

		labels := res.Labels()
		assert.Contains(t, labels, "interim0")
		assert.NotContains(t, labels, "interim1", "duplicates are dropped")
		configs := res.Configs()
		assert.Equal(t, startQ, configs[0])
		assert.Equal(t, goalQ, configs[len(configs)-1])
	})
}

func TestNewPlannerErrors(t *testing.T) {
	_, err := NewPlanner(nil, NewUniformRadius(), DefaultConfig())
	assert.Error(t, err)
	_, err = NewPlanner(wallScene(), nil, DefaultConfig())
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.KNearest = 0
	_, err = NewPlanner(wallScene(), NewLazyKNN(), cfg)
	assert.ErrorContains(t, err, "kNearest")
}

func TestOscillates(t *testing.T) {
	assert.True(t, oscillates([]NodeID{1, 2, 1}, []NodeID{1, 2, 7}))
	assert.False(t, oscillates([]NodeID{1, 2, 1}, []NodeID{1, 3}))
	assert.False(t, oscillates([]NodeID{1, 2, 3}, []NodeID{3, 2}))
	assert.False(t, oscillates([]NodeID{2, 1}, []NodeID{1, 2}))
	assert.False(t, oscillates([]NodeID{1, 2, 1}, []NodeID{1}))
}

func TestRemoveCycles(t *testing.T) {
	cases := []struct {
		name string
		in   []NodeID
		want []NodeID
	}{
		{"no cycle", []NodeID{1, 2, 3}, []NodeID{1, 2, 3}},
		{"back and forth", []NodeID{1, 2, 3, 2, 4}, []NodeID{1, 2, 4}},
		{"loop through start", []NodeID{1, 2, 3, 1, 5}, []NodeID{1, 5}},
		{"nested", []NodeID{1, 2, 3, 4, 3, 2, 5, 2, 6}, []NodeID{1, 2, 6}},
		{"single", []NodeID{4}, []NodeID{4}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, removeCycles(tc.in))
		})
	}
}

func TestExciseKeepsEarlierWaypoints(t *testing.T) {
	w := &walk{path: []NodeID{0, 4, 5, 4, 9, 6, 9, 3}, lastReached: 4}
	w.excise()
	assert.Equal(t, []NodeID{0, 4, 5, 4, 9, 3}, w.path)
	assert.Equal(t, 5, w.lastReached)
}

