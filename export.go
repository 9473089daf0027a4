package prm

import (
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SnapshotNode is a node of a serialized roadmap.
type SnapshotNode struct {
	ID    NodeID    `json:"id"`
	Q     []float64 `json:"q"`
	Tag   string    `json:"tag,omitempty"`
	Role  string    `json:"role"`
	Color string    `json:"color,omitempty"`
	Edges []NodeID  `json:"edges"`
}

// Snapshot is a serializable copy of a roadmap for visualization.
type Snapshot struct {
	Dimension int            `json:"dimension"`
	Nodes     []SnapshotNode `json:"nodes"`
	Colliding [][2]NodeID    `json:"colliding,omitempty"`
	Path      []NodeID       `json:"path,omitempty"`
}

// Snapshot copies the roadmap, nodes in ascending id order.
func (rm *Roadmap) Snapshot() *Snapshot {
	nodes := lo.Map(rm.Nodes(), func(id NodeID, _ int) SnapshotNode {
		n := rm.nodes[id]
		edges := rm.Neighbors(id)
		if edges == nil {
			edges = []NodeID{}
		}
		return SnapshotNode{
			ID:    id,
			Q:     n.Q,
			Tag:   n.Tag,
			Role:  n.Role.String(),
			Color: n.Color,
			Edges: edges,
		}
	})
	s := &Snapshot{Dimension: rm.dim, Nodes: nodes}
	if colliding := rm.CollidingEdges(); len(colliding) > 0 {
		s.Colliding = colliding
	}
	return s
}

// Snapshot copies the roadmap of the run together with its path.
func (r *Result) Snapshot() *Snapshot {
	s := r.Roadmap.Snapshot()
	s.Path = r.Path
	return s
}

// Lines returns every edge once as a pair of endpoint configurations.
func (rm *Roadmap) Lines() [][2][]float64 {
	return lo.Map(rm.Edges(), func(e [2]NodeID, _ int) [2][]float64 {
		return [2][]float64{rm.Config(e[0]), rm.Config(e[1])}
	})
}

// SaveSnapshot serializes and saves a snapshot to a JSON file.
func SaveSnapshot(s *Snapshot, filename string, logger *zap.Logger) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal roadmap")
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write roadmap")
	}
	logger.Info("saved roadmap", zap.String("file", filename),
		zap.Int("nodes", len(s.Nodes)), zap.Int("bytes", len(data)))
	return nil
}

// LoadSnapshot reads a snapshot written by SaveSnapshot.
func LoadSnapshot(filename string) (*Snapshot, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read roadmap")
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal roadmap")
	}
	return &s, nil
}
