// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package closer

import (
	"context"
	"fmt"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/retry"

	"github.com/canonical/dsr-worker/core/audit"
	"github.com/canonical/dsr-worker/core/dsr"
	"github.com/canonical/dsr-worker/platform"
)

const (
	// DefaultRetries bounds both update attempts and verification
	// polls.
	DefaultRetries = 3

	// DefaultVerifyDelay separates consecutive verification polls.
	// Fixed, no backoff growth: the platform clears subtasks on a
	// roughly constant schedule, so growing delays only slow the
	// worker down.
	DefaultVerifyDelay = 5 * time.Second

	// DefaultCallTimeout bounds each individual platform call.
	DefaultCallTimeout = 30 * time.Second
)

// Failure details are part of the notification contract; operators
// grep for these strings.
const (
	detailProcessingTimeout = "Processing timeout"
	detailNotRemoved        = "Subtask not removed after retries."
	detailCancelled         = "Processing cancelled"
)

// errNotRemoved marks a verification poll that came back with the
// subtask still present.
const errNotRemoved = errors.ConstError("subtask not removed")

// RemovalVerifier reports whether the subtask under verification has
// disappeared from the platform.
type RemovalVerifier interface {
	WasRemoved(ctx context.Context, ticketID, taskID string) (bool, error)
}

// ResolverConfig holds the dependencies and tuning for a Resolver.
type ResolverConfig struct {
	// Updater marks subtasks resolved.
	Updater Updater

	// Verifier checks for removal after an accepted update.
	Verifier RemovalVerifier

	// Clock paces the verification polls.
	Clock clock.Clock

	// Metrics collects close-out counters.
	Metrics *Collector

	// Retries bounds update attempts and verification polls alike.
	Retries int

	// VerifyDelay is the fixed pause between verification polls.
	VerifyDelay time.Duration

	// CallTimeout bounds each platform call.
	CallTimeout time.Duration
}

// Validate returns an error if the config is not complete.
func (config ResolverConfig) Validate() error {
	if config.Updater == nil {
		return errors.New("updater not provided")
	}
	if config.Verifier == nil {
		return errors.New("verifier not provided")
	}
	if config.Clock == nil {
		return errors.New("clock not provided")
	}
	if config.Metrics == nil {
		return errors.New("metrics not provided")
	}
	if config.Retries < 1 {
		return errors.New("retries must be positive")
	}
	if config.VerifyDelay <= 0 {
		return errors.New("verify delay must be positive")
	}
	if config.CallTimeout <= 0 {
		return errors.New("call timeout must be positive")
	}
	return nil
}

// Resolver drives a single subtask from "mark resolved" to a confirmed
// terminal state. It holds no per-subtask state; every Resolve call is
// independent.
type Resolver struct {
	config ResolverConfig
}

// NewResolver returns a Resolver built from the supplied config. Zero
// tuning values fall back to the package defaults.
func NewResolver(config ResolverConfig) (*Resolver, error) {
	if config.Retries == 0 {
		config.Retries = DefaultRetries
	}
	if config.VerifyDelay == 0 {
		config.VerifyDelay = DefaultVerifyDelay
	}
	if config.CallTimeout == 0 {
		config.CallTimeout = DefaultCallTimeout
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Resolver{config: config}, nil
}

// Resolve drives one subtask to a terminal state and returns the
// outcome. The update is attempted up to Retries times when the
// request layer reports a timeout or a non-2xx status; any other
// transport failure ends the subtask after a single attempt. An
// accepted update with a non-zero body status is a rejection and is
// never retried. Once accepted, removal is polled up to Retries times
// with a fixed delay between polls; a poll that times out abandons the
// round and re-enters the update loop while update attempts remain.
func (r *Resolver) Resolve(ctx context.Context, rec audit.Recorder, ticketID string, sub dsr.Subtask) dsr.Outcome {
	rec = rec.WithSubtask(sub.TaskID, sub.ID, sub.Title)
	start := r.config.Clock.Now()
	outcome, state := r.resolve(ctx, rec, ticketID, sub)
	r.config.Metrics.subtasksProcessed.WithLabelValues(string(state)).Inc()
	r.config.Metrics.resolveDuration.Observe(r.config.Clock.Now().Sub(start).Seconds())
	return outcome
}

func (r *Resolver) resolve(ctx context.Context, rec audit.Recorder, ticketID string, sub dsr.Subtask) (dsr.Outcome, State) {
	for attempt := 1; attempt <= r.config.Retries; attempt++ {
		r.transition(rec, StateSubmitted, attempt, "")
		status, err := r.markResolved(ctx, sub.ID)
		switch {
		case err == nil && status == 0:
			// Accepted, fall through to verification.
		case err == nil:
			detail := fmt.Sprintf("API returned unexpected status: %d", status)
			r.transition(rec, StateRejected, attempt, detail)
			return dsr.Outcome{Detail: detail}, StateRejected
		case errors.Is(err, platform.ErrTimeout), platform.IsStatusError(err):
			logger.Debugf("update attempt %d for subtask %s: %v", attempt, sub.ID, err)
			continue
		default:
			r.transition(rec, StateTransportError, attempt, err.Error())
			return dsr.Outcome{Detail: err.Error()}, StateTransportError
		}

		r.transition(rec, StateAccepted, attempt, "")
		outcome, state, retryUpdate := r.verify(ctx, rec, ticketID, sub)
		if !retryUpdate {
			return outcome, state
		}
	}
	r.transition(rec, StateTransportError, r.config.Retries, detailProcessingTimeout)
	return dsr.Outcome{Detail: detailProcessingTimeout}, StateTransportError
}

// verify polls for removal of the subtask. The returned bool asks the
// caller to re-enter the update loop, which happens only when a poll
// timed out.
func (r *Resolver) verify(ctx context.Context, rec audit.Recorder, ticketID string, sub dsr.Subtask) (dsr.Outcome, State, bool) {
	var polls int
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			polls++
			r.config.Metrics.verificationPolls.Inc()
			r.transition(rec, StateVerifying, polls, "")
			removed, err := r.wasRemoved(ctx, ticketID, sub.TaskID)
			if err != nil {
				return errors.Trace(err)
			}
			if !removed {
				return errNotRemoved
			}
			return nil
		},
		IsFatalError: func(err error) bool {
			// A count mismatch or an HTTP error is a plain miss worth
			// another poll; anything else ends the round.
			return !errors.Is(err, errNotRemoved) && !platform.IsStatusError(err)
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("verification poll %d for subtask %s: %v", attempt, sub.ID, err)
		},
		Attempts: r.config.Retries,
		Delay:    r.config.VerifyDelay,
		Clock:    r.config.Clock,
		Stop:     ctx.Done(),
	})
	switch {
	case err == nil:
		r.transition(rec, StateRemoved, polls, "")
		return dsr.Outcome{Success: true}, StateRemoved, false
	case retry.IsAttemptsExceeded(err):
		r.transition(rec, StateVerificationExhausted, polls, detailNotRemoved)
		return dsr.Outcome{Detail: detailNotRemoved}, StateVerificationExhausted, false
	case retry.IsRetryStopped(err):
		r.transition(rec, StateTransportError, polls, detailCancelled)
		return dsr.Outcome{Detail: detailCancelled}, StateTransportError, false
	case errors.Is(err, platform.ErrTimeout):
		logger.Debugf("verification for subtask %s timed out, re-sending update", sub.ID)
		return dsr.Outcome{}, StateVerifying, true
	default:
		r.transition(rec, StateTransportError, polls, err.Error())
		return dsr.Outcome{Detail: err.Error()}, StateTransportError, false
	}
}

func (r *Resolver) markResolved(ctx context.Context, subtaskID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.CallTimeout)
	defer cancel()
	return r.config.Updater.MarkResolved(ctx, subtaskID)
}

func (r *Resolver) wasRemoved(ctx context.Context, ticketID, taskID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.CallTimeout)
	defer cancel()
	return r.config.Verifier.WasRemoved(ctx, ticketID, taskID)
}

// transition records a state change on the debug log and the audit
// trail. A failing audit sink is logged and otherwise ignored; it must
// not change close-out behaviour.
func (r *Resolver) transition(rec audit.Recorder, state State, attempt int, detail string) {
	msg := fmt.Sprintf("attempt %d", attempt)
	if detail != "" {
		msg += ": " + detail
	}
	logger.Debugf("subtask -> %s (%s)", state, msg)
	if err := rec.AddEvent(audit.EventSubtaskState, string(state), msg); err != nil {
		logger.Errorf("recording %s transition: %v", state, err)
	}
}
