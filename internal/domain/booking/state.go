package booking

import (
	"fmt"
	"strings"
)

type BookingState string

const (
	StatePending   BookingState = "PENDING"
	StateConfirmed BookingState = "CONFIRMED"
	StateCancelled BookingState = "CANCELLED"
	StateCompleted BookingState = "COMPLETED"
)

// ActiveStates hold their date range against new bookings.
var ActiveStates = []BookingState{StatePending, StateConfirmed}

var validTransitions = map[BookingState][]BookingState{
	StatePending:   {StateConfirmed, StateCancelled},
	StateConfirmed: {StateCancelled, StateCompleted},
}

func (s BookingState) CanTransitionTo(next BookingState) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingState) IsTerminal() bool {
	return len(validTransitions[s]) == 0
}

func (s BookingState) IsActive() bool {
	return s == StatePending || s == StateConfirmed
}

func (s BookingState) String() string { return string(s) }

func ParseState(raw string) (BookingState, error) {
	switch st := BookingState(strings.ToUpper(strings.TrimSpace(raw))); st {
	case StatePending, StateConfirmed, StateCancelled, StateCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("booking: unknown state %q", raw)
	}
}

// ActorKind identifies who drives a transition.
type ActorKind string

const (
	ActorGuest   ActorKind = "guest"
	ActorGateway ActorKind = "gateway"
	ActorSystem  ActorKind = "system"
)

type Actor struct {
	Kind ActorKind
	ID   string
}

func GuestActor(id string) Actor { return Actor{Kind: ActorGuest, ID: id} }

func SystemActor() Actor { return Actor{Kind: ActorSystem} }

func GatewayActor() Actor { return Actor{Kind: ActorGateway} }
