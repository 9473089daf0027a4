package prm

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/graph/traverse"
)

// NodeID identifies a roadmap node. Ids are handed out in increasing order and are
// never reused within one roadmap.
type NodeID int64

// Role classifies a roadmap node.
type Role int

const (
	RoleSample Role = iota
	RoleStart
	RoleGoal
	RoleInterim
	RoleGuard
	RoleConnection
)

func (r Role) String() string {
	switch r {
	case RoleStart:
		return "start"
	case RoleGoal:
		return "goal"
	case RoleInterim:
		return "interim"
	case RoleGuard:
		return "guard"
	case RoleConnection:
		return "connection"
	default:
		return "sample"
	}
}

// IsTerminal reports whether the role belongs to a start, interim or goal node.
func (r Role) IsTerminal() bool {
	return r == RoleStart || r == RoleGoal || r == RoleInterim
}

// defaultColors are the display colors used when Meta.Color is empty.
var defaultColors = map[Role]string{
	RoleSample:     "yellow",
	RoleStart:      "lawngreen",
	RoleGoal:       "coral",
	RoleInterim:    "dodgerblue",
	RoleGuard:      "red",
	RoleConnection: "lightblue",
}

// Meta is the per-node metadata. Color only matters to visualization.
type Meta struct {
	Tag   string `json:"tag,omitempty"`
	Role  Role   `json:"role"`
	Color string `json:"color,omitempty"`
}

// Node represents a node in the roadmap
type Node struct {
	ID NodeID    `json:"id"`
	Q  []float64 `json:"q"`
	Meta
}

// Label returns the tag of a node, or its id for untagged nodes.
func (n *Node) Label() string {
	if n.Tag != "" {
		return n.Tag
	}
	return strconv.FormatInt(int64(n.ID), 10)
}

type edgeKey struct{ a, b NodeID }

func newEdgeKey(a, b NodeID) edgeKey {
	if a > b {
		a, b = b, a
	}
	return edgeKey{a, b}
}

// Roadmap is an undirected graph of configurations. It remembers edges that were
// confirmed to collide so that later growth never proposes them again.
type Roadmap struct {
	dim       int
	g         *simple.UndirectedGraph
	nodes     map[NodeID]*Node
	byKey     map[string]NodeID
	colliding map[edgeKey]struct{}
	nextID    NodeID
}

// NewRoadmap returns an empty roadmap for configurations of dimension dim.
func NewRoadmap(dim int) *Roadmap {
	return &Roadmap{
		dim:       dim,
		g:         simple.NewUndirectedGraph(),
		nodes:     make(map[NodeID]*Node),
		byKey:     make(map[string]NodeID),
		colliding: make(map[edgeKey]struct{}),
	}
}

// Dimension returns the configuration dimension of the roadmap.
func (rm *Roadmap) Dimension() int { return rm.dim }

// Len returns the number of nodes.
func (rm *Roadmap) Len() int { return len(rm.nodes) }

// AddNode inserts a configuration and returns its id. The configuration is copied.
func (rm *Roadmap) AddNode(q []float64, meta Meta) (NodeID, error) {
	if len(q) != rm.dim {
		return 0, errors.Errorf("configuration has dimension %d, roadmap has %d", len(q), rm.dim)
	}
	if meta.Color == "" {
		meta.Color = defaultColors[meta.Role]
	}
	id := rm.nextID
	rm.nextID++
	rm.g.AddNode(simple.Node(id))
	rm.nodes[id] = &Node{ID: id, Q: append([]float64(nil), q...), Meta: meta}
	key := configKey(q)
	if _, ok := rm.byKey[key]; !ok {
		rm.byKey[key] = id
	}
	return id, nil
}

// Node returns the node with the given id.
func (rm *Roadmap) Node(id NodeID) (*Node, bool) {
	n, ok := rm.nodes[id]
	return n, ok
}

// Config returns the configuration of a node, nil when unknown.
func (rm *Roadmap) Config(id NodeID) []float64 {
	if n, ok := rm.nodes[id]; ok {
		return n.Q
	}
	return nil
}

// Lookup maps a configuration back to the first node inserted at exactly that
// position. It reads the map built by AddNode instead of comparing coordinates.
func (rm *Roadmap) Lookup(q []float64) (NodeID, bool) {
	id, ok := rm.byKey[configKey(q)]
	return id, ok
}

// AddEdge connects a and b. Adding an existing edge is a no-op; adding an edge that
// was marked colliding fails with ErrCollisionDetected.
func (rm *Roadmap) AddEdge(a, b NodeID) error {
	if _, ok := rm.nodes[a]; !ok {
		return errors.Wrapf(ErrUnknownNode, "node %d", a)
	}
	if _, ok := rm.nodes[b]; !ok {
		return errors.Wrapf(ErrUnknownNode, "node %d", b)
	}
	if a == b {
		return errors.Errorf("self loop on node %d", a)
	}
	if rm.IsColliding(a, b) {
		return errors.Wrapf(ErrCollisionDetected, "edge %d-%d", a, b)
	}
	rm.g.SetEdge(simple.Edge{F: simple.Node(a), T: simple.Node(b)})
	return nil
}

// HasEdge reports whether a and b are adjacent.
func (rm *Roadmap) HasEdge(a, b NodeID) bool {
	return rm.g.HasEdgeBetween(int64(a), int64(b))
}

// RemoveEdge deletes the edge between a and b if present.
func (rm *Roadmap) RemoveEdge(a, b NodeID) {
	rm.g.RemoveEdge(int64(a), int64(b))
}

// RemoveNode deletes a node together with its incident edges.
func (rm *Roadmap) RemoveNode(id NodeID) {
	n, ok := rm.nodes[id]
	if !ok {
		return
	}
	rm.g.RemoveNode(int64(id))
	delete(rm.nodes, id)
	key := configKey(n.Q)
	if rm.byKey[key] == id {
		delete(rm.byKey, key)
	}
}

// MarkColliding records the pair as colliding and removes the edge if present.
func (rm *Roadmap) MarkColliding(a, b NodeID) {
	rm.colliding[newEdgeKey(a, b)] = struct{}{}
	rm.RemoveEdge(a, b)
}

// IsColliding reports whether the unordered pair was marked colliding.
func (rm *Roadmap) IsColliding(a, b NodeID) bool {
	_, ok := rm.colliding[newEdgeKey(a, b)]
	return ok
}

// CollidingEdges returns the recorded colliding pairs, sorted.
func (rm *Roadmap) CollidingEdges() [][2]NodeID {
	out := make([][2]NodeID, 0, len(rm.colliding))
	for k := range rm.colliding {
		out = append(out, [2]NodeID{k.a, k.b})
	}
	sortPairs(out)
	return out
}

// Nodes returns all node ids in ascending order.
func (rm *Roadmap) Nodes() []NodeID {
	ids := make([]NodeID, 0, len(rm.nodes))
	for id := range rm.nodes {
		ids = append(ids, id)
	}
	sortIDs(ids)
	return ids
}

// Neighbors returns the ids adjacent to id in ascending order.
func (rm *Roadmap) Neighbors(id NodeID) []NodeID {
	if _, ok := rm.nodes[id]; !ok {
		return nil
	}
	return sortedIDs(rm.g.From(int64(id)))
}

// Degree returns the number of edges incident to id.
func (rm *Roadmap) Degree(id NodeID) int {
	return len(rm.Neighbors(id))
}

// Edges returns every edge once as (smaller id, larger id), sorted.
func (rm *Roadmap) Edges() [][2]NodeID {
	var out [][2]NodeID
	for _, id := range rm.Nodes() {
		for _, nb := range rm.Neighbors(id) {
			if id < nb {
				out = append(out, [2]NodeID{id, nb})
			}
		}
	}
	return out
}

// ConnectedComponents returns every component with its ids ascending. Components
// are ordered by their smallest id.
func (rm *Roadmap) ConnectedComponents() [][]NodeID {
	comps := topo.ConnectedComponents(rm.g)
	out := make([][]NodeID, 0, len(comps))
	for _, comp := range comps {
		ids := make([]NodeID, 0, len(comp))
		for _, n := range comp {
			ids = append(ids, NodeID(n.ID()))
		}
		sortIDs(ids)
		out = append(out, ids)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// SameComponent reports whether a path joins a and b.
func (rm *Roadmap) SameComponent(a, b NodeID) bool {
	if _, ok := rm.nodes[a]; !ok {
		return false
	}
	if _, ok := rm.nodes[b]; !ok {
		return false
	}
	if a == b {
		return true
	}
	return topo.PathExistsIn(rm.g, simple.Node(a), simple.Node(b))
}

// IsConnected reports whether the roadmap consists of a single component.
func (rm *Roadmap) IsConnected() bool {
	return len(rm.nodes) > 0 && len(topo.ConnectedComponents(rm.g)) == 1
}

// componentOf returns the set of ids reachable from id.
func (rm *Roadmap) componentOf(id NodeID) map[NodeID]bool {
	comp := make(map[NodeID]bool)
	if _, ok := rm.nodes[id]; !ok {
		return comp
	}
	bf := traverse.BreadthFirst{
		Visit: func(n graph.Node) { comp[NodeID(n.ID())] = true },
	}
	bf.Walk(rm.g, simple.Node(id), nil)
	return comp
}

// String summarizes the roadmap size.
func (rm *Roadmap) String() string {
	return fmt.Sprintf("roadmap(%d nodes, %d edges, %d colliding)",
		len(rm.nodes), len(rm.Edges()), len(rm.colliding))
}

func configKey(q []float64) string {
	parts := make([]string, len(q))
	for i, v := range q {
		parts[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(parts, ",")
}

func sortedIDs(it graph.Nodes) []NodeID {
	var ids []NodeID
	for it.Next() {
		ids = append(ids, NodeID(it.Node().ID()))
	}
	sortIDs(ids)
	return ids
}

func sortIDs(ids []NodeID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

func sortPairs(pairs [][2]NodeID) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
}
