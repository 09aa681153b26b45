// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package closer

import (
	"context"
	"fmt"

	"github.com/juju/errors"

	"github.com/canonical/dsr-worker/core/audit"
	"github.com/canonical/dsr-worker/core/dsr"
	"github.com/canonical/dsr-worker/notify"
)

// SubtaskResolver drives one subtask to a terminal state.
type SubtaskResolver interface {
	Resolve(ctx context.Context, rec audit.Recorder, ticketID string, sub dsr.Subtask) dsr.Outcome
}

// NotificationSink receives failure records for delivery to the chat
// channels.
type NotificationSink interface {
	Notify(ctx context.Context, r notify.Record) error
}

// OrchestratorConfig holds the dependencies for an Orchestrator.
type OrchestratorConfig struct {
	// Resolver resolves individual subtasks.
	Resolver SubtaskResolver

	// Sink delivers failure notifications.
	Sink NotificationSink

	// Metrics collects close-out counters.
	Metrics *Collector

	// WorkerName identifies this worker in notifications.
	WorkerName string
}

// Validate returns an error if the config is not complete.
func (config OrchestratorConfig) Validate() error {
	if config.Resolver == nil {
		return errors.New("resolver not provided")
	}
	if config.Sink == nil {
		return errors.New("notification sink not provided")
	}
	if config.Metrics == nil {
		return errors.New("metrics not provided")
	}
	if config.WorkerName == "" {
		return errors.New("worker name not provided")
	}
	return nil
}

// Orchestrator walks a ticket's subtask list in order and stops at the
// first failure. Subtasks resolved before the failure stay resolved;
// the platform already reflects them and nothing is rolled back.
type Orchestrator struct {
	config OrchestratorConfig
}

// NewOrchestrator returns an Orchestrator built from the supplied
// config.
func NewOrchestrator(config OrchestratorConfig) (*Orchestrator, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &Orchestrator{config: config}, nil
}

// ProcessSubtasks resolves the ticket's subtasks left to right and
// reports whether every one of them succeeded. The first failure stops
// processing, raises one notification dispatch across the configured
// channels, and fails the ticket; later subtasks are never attempted.
// Notification failures are logged and counted, never escalated.
func (o *Orchestrator) ProcessSubtasks(ctx context.Context, rec audit.Recorder, ticket *dsr.Ticket) bool {
	for _, sub := range ticket.Subtasks {
		subRec := rec.WithSubtask(sub.TaskID, sub.ID, sub.Title)
		outcome := o.config.Resolver.Resolve(ctx, rec, ticket.ID, sub)
		if outcome.Success {
			logger.Infof("ticket %s subtask %s resolved", ticket.ID, sub.ID)
			o.audit(subRec, audit.EventSubtaskResolved, audit.StatusOK, "")
			continue
		}

		logger.Errorf("ticket %s subtask %s failed: %s", ticket.ID, sub.ID, outcome.Detail)
		o.audit(subRec, audit.EventSubtaskFailed, audit.StatusFailed, outcome.Detail)
		o.notifyFailure(ctx, subRec, ticket, sub, outcome.Detail)

		o.config.Metrics.ticketsProcessed.WithLabelValues("failure").Inc()
		o.audit(rec, audit.EventTicketClosed, audit.StatusFailed, fmt.Sprintf("stopped at subtask %s", sub.ID))
		return false
	}

	o.config.Metrics.ticketsProcessed.WithLabelValues("success").Inc()
	o.audit(rec, audit.EventTicketClosed, audit.StatusOK, fmt.Sprintf("%d subtasks resolved", len(ticket.Subtasks)))
	return true
}

// notifyFailure snapshots the failing subtask into a record and hands
// it to the sink. The audit event for the failure has already been
// written by the time this runs.
func (o *Orchestrator) notifyFailure(ctx context.Context, rec audit.Recorder, ticket *dsr.Ticket, sub dsr.Subtask, detail string) {
	record := notify.Record{
		Worker:      o.config.WorkerName,
		Environment: ticket.Environment,
		FormTitle:   ticket.FormTitle,
		TicketID:    ticket.ID,
		TaskID:      sub.TaskID,
		SubtaskID:   sub.ID,
		Subtask:     sub.Title,
		Message:     detail,
	}
	if err := o.config.Sink.Notify(ctx, record); err != nil {
		logger.Errorf("ticket %s subtask %s: %v", ticket.ID, sub.ID, err)
		o.config.Metrics.notificationFailures.Inc()
		o.audit(rec, audit.EventNotification, audit.StatusFailed, err.Error())
		return
	}
	o.audit(rec, audit.EventNotification, audit.StatusOK, "")
}

func (o *Orchestrator) audit(rec audit.Recorder, event, status, message string) {
	if err := rec.AddEvent(event, status, message); err != nil {
		logger.Errorf("recording %s event: %v", event, err)
	}
}
