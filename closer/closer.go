// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package closer drives DSR ticket close-out: a resolver state machine
// that takes one subtask from "mark resolved" through verified removal
// with bounded retries, and an orchestrator that walks a ticket's
// subtask list, stops at the first failure and raises notifications.
package closer

import (
	"context"

	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("dsrworker.closer")

// State is a position in the subtask resolution state machine.
type State string

const (
	// StateSubmitted is the initial state: the update request is being
	// sent, or resent after a transient failure.
	StateSubmitted State = "submitted"

	// StateAccepted means the platform acknowledged the update and
	// removal is pending.
	StateAccepted State = "accepted"

	// StateVerifying means removal is being polled for.
	StateVerifying State = "verifying"

	// StateRemoved is the terminal success state: the platform
	// confirmed removal.
	StateRemoved State = "removed"

	// StateRejected is terminal: the platform refused the update, so
	// retrying is pointless.
	StateRejected State = "rejected"

	// StateVerificationExhausted is terminal: every verification poll
	// missed.
	StateVerificationExhausted State = "verification-exhausted"

	// StateTransportError is terminal: the request layer failed in a
	// way retrying won't fix, or timed out on every attempt.
	StateTransportError State = "transport-error"
)

// Terminal reports whether the state ends a subtask's resolution.
func (s State) Terminal() bool {
	switch s {
	case StateRemoved, StateRejected, StateVerificationExhausted, StateTransportError:
		return true
	}
	return false
}

// Updater marks a subtask resolved on the platform, returning the
// body-level acknowledgement status. Zero means accepted.
type Updater interface {
	MarkResolved(ctx context.Context, subtaskID string) (int, error)
}

// SubtaskCounter reports how many subtasks the platform still records
// against a task of a ticket.
type SubtaskCounter interface {
	TotalSubtasks(ctx context.Context, ticketID, taskID string) (int, error)
}
