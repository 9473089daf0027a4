package prm

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoValidStart is returned when no start candidate survives pre-validation.
	ErrNoValidStart = errors.New("no valid start")
	// ErrNoValidWaypoint is returned when an interim or goal category becomes empty.
	ErrNoValidWaypoint = errors.New("no valid waypoint")
	// ErrNoPath is matched by every *NoPathError.
	ErrNoPath = errors.New("no path in roadmap")
	// ErrCollisionDetected is matched by every *CollisionDetectedError.
	ErrCollisionDetected = errors.New("collision detected")
	// ErrPlanningFailed marks an exhausted retry or replan budget.
	ErrPlanningFailed = errors.New("motion planner failed to find path")
	// ErrUnknownNode is returned for operations on ids the roadmap does not hold.
	ErrUnknownNode = errors.New("unknown node")
)

// InvalidInputError reports that a category of input configurations was empty
// after filtering out candidates with the wrong dimension, outside the limits, or
// in collision.
//
// Unwrap yields ErrNoValidStart or ErrNoValidWaypoint; Reasons lists why each
// candidate of the category was rejected.
type InvalidInputError struct {
	Category string
	Reasons  error
	cause    error
}

func (e *InvalidInputError) Error() string {
	if e.Reasons == nil {
		return fmt.Sprintf("%s: %v", e.Category, e.cause)
	}
	return fmt.Sprintf("%s: %v: %v", e.Category, e.cause, e.Reasons)
}

func (e *InvalidInputError) Unwrap() error { return e.cause }

// NoPathError reports that two roadmap nodes are not connected.
type NoPathError struct {
	From, To NodeID
}

func (e *NoPathError) Error() string {
	return fmt.Sprintf("no path between node %d and node %d", e.From, e.To)
}

func (e *NoPathError) Is(target error) bool { return target == ErrNoPath }

// CollisionDetectedError reports a lazily validated node or edge found in collision.
// For a node collision From and To are equal.
type CollisionDetectedError struct {
	From, To NodeID
}

func (e *CollisionDetectedError) Error() string {
	if e.From == e.To {
		return fmt.Sprintf("node %d in collision", e.From)
	}
	return fmt.Sprintf("edge %d-%d in collision", e.From, e.To)
}

func (e *CollisionDetectedError) Is(target error) bool { return target == ErrCollisionDetected }
