package card

import "fmt"

// Status defines card lifecycle states
type Status string

const (
	StatusPending Status = "PENDING"
	StatusActive  Status = "ACTIVE"
	StatusFrozen  Status = "FROZEN"
	StatusClosed  Status = "CLOSED"
)

type edge struct {
	from Status
	to   Status
}

// legalTransitions is the complete lifecycle graph. CLOSED has no outgoing edge.
var legalTransitions = map[edge]string{
	{StatusPending, StatusActive}: "card.activated",
	{StatusActive, StatusFrozen}:  "card.frozen",
	{StatusFrozen, StatusActive}:  "card.unfrozen",
	{StatusActive, StatusClosed}:  "card.closed",
	{StatusFrozen, StatusClosed}:  "card.closed",
}

// ParseStatus validates a raw status string
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	switch s {
	case StatusPending, StatusActive, StatusFrozen, StatusClosed:
		return s, nil
	}
	return "", fmt.Errorf("unknown card status %q", raw)
}

// Transition returns requested if (current, requested) is a legal edge
func Transition(current, requested Status) (Status, error) {
	if _, ok := legalTransitions[edge{current, requested}]; !ok {
		return current, ErrInvalidStateTransition{From: current, To: requested}
	}
	return requested, nil
}

// EventTypeFor names the domain event raised by a legal transition
func EventTypeFor(from, to Status) (string, bool) {
	name, ok := legalTransitions[edge{from, to}]
	return name, ok
}

// ErrInvalidStateTransition indicates an edge outside the lifecycle graph
type ErrInvalidStateTransition struct {
	From Status
	To   Status
}

func (e ErrInvalidStateTransition) Error() string {
	return fmt.Sprintf("invalid card state transition: %s -> %s", e.From, e.To)
}

// Is implements the errors.Is interface for ErrInvalidStateTransition
func (e ErrInvalidStateTransition) Is(target error) bool {
	t, ok := target.(ErrInvalidStateTransition)
	if !ok {
		return false
	}
	if t.From == "" && t.To == "" {
		return true
	}
	return e.From == t.From && e.To == t.To
}
