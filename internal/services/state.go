package services

import (
	"fmt"

	"go.uber.org/zap"
)

// State is a sponsorship attempt's position in the two-phase protocol.
type State string

const (
	StateRequested             State = "requested"
	StateQuotaChecked          State = "quota_checked"
	StateAssembled             State = "assembled"
	StateAwaitingUserSignature State = "awaiting_user_signature"
	StateSubmitted             State = "submitted"
	StateConfirmed             State = "confirmed"
	StateReverted              State = "reverted"
	StateDenied                State = "denied"
	StateAbandoned             State = "abandoned"
)

var transitions = map[State][]State{
	StateRequested:             {StateQuotaChecked, StateDenied},
	StateQuotaChecked:          {StateAssembled, StateAbandoned},
	StateAssembled:             {StateAwaitingUserSignature, StateAbandoned},
	StateAwaitingUserSignature: {StateSubmitted, StateAbandoned},
	StateSubmitted:             {StateConfirmed, StateReverted, StateAbandoned},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	_, ok := transitions[s]
	return !ok
}

// CanTransition reports whether to is a legal successor of s.
func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// attempt tracks one request's progress through the protocol. Attempts are
// per-request values and never shared across goroutines.
type attempt struct {
	id     string
	state  State
	logger *zap.Logger
}

func newAttempt(id string, start State, logger *zap.Logger) *attempt {
	return &attempt{id: id, state: start, logger: logger}
}

func (a *attempt) advance(to State) error {
	if !a.state.CanTransition(to) {
		return fmt.Errorf("illegal sponsorship transition %s -> %s", a.state, to)
	}
	a.logger.Debug("sponsorship state changed",
		zap.String("sponsorship_id", a.id),
		zap.String("from", string(a.state)),
		zap.String("to", string(to)))
	a.state = to
	return nil
}
