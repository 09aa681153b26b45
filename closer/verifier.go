// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package closer

import (
	"context"

	"github.com/juju/errors"
)

// Verifier issues one read-only removal check per call. Retry policy
// belongs to the Resolver, never here.
type Verifier struct {
	counter SubtaskCounter
}

// NewVerifier returns a Verifier reading counts from the given source.
func NewVerifier(counter SubtaskCounter) (*Verifier, error) {
	if counter == nil {
		return nil, errors.New("nil SubtaskCounter not valid")
	}
	return &Verifier{counter: counter}, nil
}

// WasRemoved reports whether the subtask under verification is gone
// from the platform. The platform offers no direct existence check, so
// removal is inferred from the task's remaining subtask count: exactly
// one left means the subtask being verified is the last one standing
// and is about to be cleared. Any other count is a miss. Transport
// errors are returned for the caller to classify.
func (v *Verifier) WasRemoved(ctx context.Context, ticketID, taskID string) (bool, error) {
	total, err := v.counter.TotalSubtasks(ctx, ticketID, taskID)
	if err != nil {
		return false, errors.Trace(err)
	}
	if total == 1 {
		return true, nil
	}
	logger.Debugf("ticket %s task %s: %d subtasks remain", ticketID, taskID, total)
	return false, nil
}
