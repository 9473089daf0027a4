package prm

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// chain adds n nodes on the x axis and returns their ids.
func chain(t *testing.T, rm *Roadmap, n int) []NodeID {
	t.Helper()
	ids := make([]NodeID, n)
	for i := range ids {
		id, err := rm.AddNode([]float64{float64(i), 0}, Meta{})
		require.NoError(t, err)
		ids[i] = id
	}
	return ids
}

func TestRoadmapNodes(t *testing.T) {
	rm := NewRoadmap(2)

	start, err := rm.AddNode([]float64{0, 0}, Meta{Tag: "start", Role: RoleStart})
	require.NoError(t, err)
	sample, err := rm.AddNode([]float64{1, 2}, Meta{})
	require.NoError(t, err)

	_, err = rm.AddNode([]float64{1}, Meta{})
	assert.Error(t, err)

	assert.Equal(t, 2, rm.Len())
	assert.Equal(t, []NodeID{start, sample}, rm.Nodes())

	n, ok := rm.Node(start)
	require.True(t, ok)
	assert.Equal(t, "start", n.Label())
	assert.Equal(t, "lawngreen", n.Color)

	n, _ = rm.Node(sample)
	assert.Equal(t, "1", n.Label())
	assert.Equal(t, "yellow", n.Color)

	id, ok := rm.Lookup([]float64{1, 2})
	assert.True(t, ok)
	assert.Equal(t, sample, id)
	_, ok = rm.Lookup([]float64{1, 2.0000001})
	assert.False(t, ok)

	t.Run("input is copied", func(t *testing.T) {
		q := []float64{7, 7}
		id, err := rm.AddNode(q, Meta{})
		require.NoError(t, err)
		q[0] = 8
		assert.Equal(t, []float64{7, 7}, rm.Config(id))
	})
}

func TestRoadmapRemoveNode(t *testing.T) {
	rm := NewRoadmap(2)
	ids := chain(t, rm, 3)
	require.NoError(t, rm.AddEdge(ids[0], ids[1]))
	require.NoError(t, rm.AddEdge(ids[1], ids[2]))

	rm.RemoveNode(ids[1])
	assert.Equal(t, []NodeID{ids[0], ids[2]}, rm.Nodes())
	assert.Empty(t, rm.Edges())
	assert.Nil(t, rm.Config(ids[1]))
	_, ok := rm.Lookup([]float64{1, 0})
	assert.False(t, ok)

	// ids are never handed out twice
	id, err := rm.AddNode([]float64{1, 0}, Meta{})
	require.NoError(t, err)
	assert.Greater(t, int64(id), int64(ids[2]))
}

func TestRoadmapEdges(t *testing.T) {
	rm := NewRoadmap(2)
	ids := chain(t, rm, 3)

	require.NoError(t, rm.AddEdge(ids[1], ids[0]))
	require.NoError(t, rm.AddEdge(ids[1], ids[0]), "adding twice is a no-op")
	assert.True(t, rm.HasEdge(ids[0], ids[1]))
	assert.Equal(t, [][2]NodeID{{ids[0], ids[1]}}, rm.Edges())
	assert.Equal(t, 1, rm.Degree(ids[0]))

	assert.Error(t, rm.AddEdge(ids[0], ids[0]))
	err := rm.AddEdge(ids[0], 99)
	assert.True(t, errors.Is(err, ErrUnknownNode))

	rm.RemoveEdge(ids[0], ids[1])
	assert.False(t, rm.HasEdge(ids[0], ids[1]))
}

func TestRoadmapCollidingMemory(t *testing.T) {
	rm := NewRoadmap(2)
	ids := chain(t, rm, 2)
	require.NoError(t, rm.AddEdge(ids[0], ids[1]))

	rm.MarkColliding(ids[1], ids[0])
	assert.False(t, rm.HasEdge(ids[0], ids[1]))
	assert.True(t, rm.IsColliding(ids[0], ids[1]))
	assert.Equal(t, [][2]NodeID{{ids[0], ids[1]}}, rm.CollidingEdges())

	err := rm.AddEdge(ids[0], ids[1])
	assert.True(t, errors.Is(err, ErrCollisionDetected))
	assert.False(t, rm.HasEdge(ids[0], ids[1]))
}

func TestRoadmapComponents(t *testing.T) {
	rm := NewRoadmap(2)
	ids := chain(t, rm, 5)
	require.NoError(t, rm.AddEdge(ids[3], ids[4]))
	require.NoError(t, rm.AddEdge(ids[0], ids[2]))

	assert.Equal(t, [][]NodeID{{ids[0], ids[2]}, {ids[1]}, {ids[3], ids[4]}}, rm.ConnectedComponents())
	assert.True(t, rm.SameComponent(ids[2], ids[0]))
	assert.True(t, rm.SameComponent(ids[1], ids[1]))
	assert.False(t, rm.SameComponent(ids[0], ids[3]))
	assert.False(t, rm.SameComponent(ids[0], 42))
	assert.False(t, rm.IsConnected())

	assert.Equal(t, map[NodeID]bool{ids[3]: true, ids[4]: true}, rm.componentOf(ids[4]))

	require.NoError(t, rm.AddEdge(ids[2], ids[1]))
	require.NoError(t, rm.AddEdge(ids[1], ids[3]))
	assert.True(t, rm.IsConnected())
}

func TestShortestPath(t *testing.T) {
	rm := NewRoadmap(2)
	ids := chain(t, rm, 6)
	// diamond 0-1-3, 0-2-3, and a long way 0-4-5-3
	for _, e := range [][2]int{{0, 1}, {1, 3}, {0, 2}, {2, 3}, {0, 4}, {4, 5}, {5, 3}} {
		require.NoError(t, rm.AddEdge(ids[e[0]], ids[e[1]]))
	}

	path, err := rm.ShortestPath(ids[0], ids[3])
	require.NoError(t, err)
	assert.Equal(t, []NodeID{ids[0], ids[1], ids[3]}, path)

	path, err = rm.ShortestPath(ids[4], ids[4])
	require.NoError(t, err)
	assert.Equal(t, []NodeID{ids[4]}, path)

	t.Run("disconnected", func(t *testing.T) {
		lone, err := rm.AddNode([]float64{9, 9}, Meta{})
		require.NoError(t, err)
		_, err = rm.ShortestPath(ids[0], lone)
		assert.True(t, errors.Is(err, ErrNoPath))
		var noPath *NoPathError
		require.True(t, errors.As(err, &noPath))
		assert.Equal(t, lone, noPath.To)
	})
	t.Run("unknown node", func(t *testing.T) {
		_, err := rm.ShortestPath(ids[0], 99)
		assert.True(t, errors.Is(err, ErrNoPath))
	})
}

func TestSnapshotAndLines(t *testing.T) {
	rm := NewRoadmap(2)
	ids := chain(t, rm, 3)
	require.NoError(t, rm.AddEdge(ids[0], ids[1]))
	rm.MarkColliding(ids[1], ids[2])

	s := rm.Snapshot()
	assert.Equal(t, 2, s.Dimension)
	require.Len(t, s.Nodes, 3)
	assert.Equal(t, []NodeID{ids[1]}, s.Nodes[0].Edges)
	assert.Equal(t, []NodeID{}, s.Nodes[2].Edges)
	assert.Equal(t, "sample", s.Nodes[0].Role)
	assert.Equal(t, [][2]NodeID{{ids[1], ids[2]}}, s.Colliding)

	assert.Equal(t, [][2][]float64{{{0, 0}, {1, 0}}}, rm.Lines())
}

func TestSaveLoadSnapshot(t *testing.T) {
	rm := NewRoadmap(2)
	ids := chain(t, rm, 2)
	require.NoError(t, rm.AddEdge(ids[0], ids[1]))

	file := t.TempDir() + "/roadmap.json"
	require.NoError(t, SaveSnapshot(rm.Snapshot(), file, zaptest.NewLogger(t)))

	loaded, err := LoadSnapshot(file)
	require.NoError(t, err)
	assert.Equal(t, rm.Snapshot(), loaded)

	_, err = LoadSnapshot(file + ".missing")
	assert.Error(t, err)
}
