// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package closer

import (
	"context"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"

	"github.com/canonical/dsr-worker/core/audit"
	"github.com/canonical/dsr-worker/core/dsr"
	"github.com/canonical/dsr-worker/notify"
	"github.com/canonical/dsr-worker/platform"
)

// RunnerConfig holds the per-process dependencies for a Runner.
type RunnerConfig struct {
	// PlatformURL is the base URL of the privacy platform API.
	PlatformURL string

	// TicketBaseURL is the console host for ticket deep links in
	// notifications. Left empty, the notify default is used.
	TicketBaseURL string

	// Transport overrides the HTTP transport for platform and webhook
	// calls. Left nil, each run builds default clients.
	Transport platform.Transport

	// Clock paces verification polls.
	Clock clock.Clock

	// Metrics collects close-out counters across runs.
	Metrics *Collector

	// WorkerName identifies this worker in audit records and
	// notifications.
	WorkerName string

	// Logger is handed to the platform client and the channels.
	Logger platform.Logger

	// Retries, VerifyDelay and CallTimeout tune the resolver. Zero
	// values fall back to the package defaults.
	Retries     int
	VerifyDelay time.Duration
	CallTimeout time.Duration
}

// Validate returns an error if the config is not complete.
func (config RunnerConfig) Validate() error {
	if config.PlatformURL == "" {
		return errors.New("platform URL not provided")
	}
	if config.Clock == nil {
		return errors.New("clock not provided")
	}
	if config.Metrics == nil {
		return errors.New("metrics not provided")
	}
	if config.WorkerName == "" {
		return errors.New("worker name not provided")
	}
	if config.Logger == nil {
		return errors.New("logger not provided")
	}
	return nil
}

// Runner assembles the close-out pipeline for each ticket and runs it.
// Platform credentials and webhook URLs arrive with the ticket, so the
// client and notification sink are built per run, not at startup.
type Runner struct {
	config RunnerConfig
}

// NewRunner returns a Runner built from the supplied config.
func NewRunner(config RunnerConfig) (*Runner, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Runner{config: config}, nil
}

// Run processes the ticket's subtasks and reports whether every one
// resolved. Pipeline assembly failures fail the ticket the same way a
// subtask failure does.
func (r *Runner) Run(ctx context.Context, rec audit.Recorder, ticket *dsr.Ticket) bool {
	orchestrator, err := r.assemble(ticket)
	if err != nil {
		logger.Errorf("assembling pipeline for ticket %s: %v", ticket.ID, err)
		r.config.Metrics.ticketsProcessed.WithLabelValues("failure").Inc()
		if err := rec.AddEvent(audit.EventTicketClosed, audit.StatusFailed, err.Error()); err != nil {
			logger.Errorf("recording %s event: %v", audit.EventTicketClosed, err)
		}
		return false
	}
	return orchestrator.ProcessSubtasks(ctx, rec, ticket)
}

func (r *Runner) assemble(ticket *dsr.Ticket) (*Orchestrator, error) {
	client, err := platform.NewClient(platform.Config{
		URL:         r.config.PlatformURL,
		Credentials: ticket.Credentials,
		Transport:   r.config.Transport,
		Logger:      r.config.Logger,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	verifier, err := NewVerifier(client)
	if err != nil {
		return nil, errors.Trace(err)
	}
	resolver, err := NewResolver(ResolverConfig{
		Updater:     client,
		Verifier:    verifier,
		Clock:       r.config.Clock,
		Metrics:     r.config.Metrics,
		Retries:     r.config.Retries,
		VerifyDelay: r.config.VerifyDelay,
		CallTimeout: r.config.CallTimeout,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	sink, err := notify.NewForTicket(ticket.Channels.Teams, ticket.Channels.GoogleChat, notify.ChannelConfig{
		TicketBaseURL: r.config.TicketBaseURL,
		Transport:     r.config.Transport,
		Logger:        r.config.Logger,
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	orchestrator, err := NewOrchestrator(OrchestratorConfig{
		Resolver:   resolver,
		Sink:       sink,
		Metrics:    r.config.Metrics,
		WorkerName: r.config.WorkerName,
	})
	return orchestrator, errors.Trace(err)
}
