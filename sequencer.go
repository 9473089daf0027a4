package prm

import (
	"github.com/samber/lo"
)

// Waypoint is a configuration the path has to visit, owned by a roadmap node.
type Waypoint struct {
	Q    []float64
	Node NodeID
	// Final marks the goal, which only becomes eligible once it is the last
	// waypoint left.
	Final bool
}

// Sequencer keeps the set of waypoints not reached yet and picks the nearest one.
// The set only shrinks.
type Sequencer struct {
	remaining []Waypoint
}

// NewSequencer returns a sequencer over interims followed by goal.
func NewSequencer(interims []Waypoint, goal Waypoint) *Sequencer {
	remaining := make([]Waypoint, 0, len(interims)+1)
	remaining = append(remaining, interims...)
	goal.Final = true
	return &Sequencer{remaining: append(remaining, goal)}
}

type rankedWaypoint struct {
	wp   Waypoint
	dist float64
}

// Nearest returns the eligible waypoint closest to q and its distance. Ties go to
// the waypoint listed first. ok is false once every waypoint was reached.
func (s *Sequencer) Nearest(q []float64) (wp Waypoint, dist float64, ok bool) {
	eligible := s.eligible()
	if len(eligible) == 0 {
		return Waypoint{}, 0, false
	}
	ranked := lo.Map(eligible, func(w Waypoint, _ int) rankedWaypoint {
		return rankedWaypoint{wp: w, dist: Distance(q, w.Q)}
	})
	best := lo.MinBy(ranked, func(a, b rankedWaypoint) bool { return a.dist < b.dist })
	return best.wp, best.dist, true
}

// Reach removes the eligible waypoint owned by node id. It reports whether there
// was one.
func (s *Sequencer) Reach(id NodeID) bool {
	for _, w := range s.eligible() {
		if w.Node != id {
			continue
		}
		s.remaining = lo.Reject(s.remaining, func(r Waypoint, _ int) bool { return r.Node == id })
		return true
	}
	return false
}

// Remaining returns the waypoints not reached yet.
func (s *Sequencer) Remaining() []Waypoint {
	return append([]Waypoint(nil), s.remaining...)
}

// Done reports whether every waypoint, the goal included, was reached.
func (s *Sequencer) Done() bool { return len(s.remaining) == 0 }

func (s *Sequencer) eligible() []Waypoint {
	if len(s.remaining) == 1 {
		return s.remaining
	}
	return lo.Filter(s.remaining, func(w Waypoint, _ int) bool { return !w.Final })
}
