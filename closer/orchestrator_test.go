// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package closer_test

import (
	"context"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/dsr-worker/closer"
	"github.com/canonical/dsr-worker/core/audit"
	"github.com/canonical/dsr-worker/core/dsr"
	"github.com/canonical/dsr-worker/notify"
)

type orchestratorSuite struct {
	testing.IsolationSuite

	stub     *testing.Stub
	resolver *stubResolver
	sink     *stubSink
	log      *recordingLog
	clk      *testclock.Clock
}

var _ = gc.Suite(&orchestratorSuite{})

func (s *orchestratorSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.stub = &testing.Stub{}
	s.resolver = &stubResolver{stub: s.stub}
	s.sink = &stubSink{stub: s.stub}
	s.log = &recordingLog{}
	s.clk = testclock.NewClock(time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC))
}

func (s *orchestratorSuite) newOrchestrator(c *gc.C) *closer.Orchestrator {
	orchestrator, err := closer.NewOrchestrator(closer.OrchestratorConfig{
		Resolver:   s.resolver,
		Sink:       s.sink,
		Metrics:    closer.NewMetricsCollector(),
		WorkerName: "dsr-worker",
	})
	c.Assert(err, jc.ErrorIsNil)
	return orchestrator
}

func (s *orchestratorSuite) recorder() audit.Recorder {
	return audit.NewRecorder(s.log, s.clk, audit.RunArgs{
		Worker:      "dsr-worker",
		Environment: "PROD",
		TicketID:    "4821",
		FormTitle:   "Exclusão de dados",
	})
}

func (s *orchestratorSuite) ticket() *dsr.Ticket {
	return &dsr.Ticket{
		ID:          "4821",
		Environment: "PROD",
		FormTitle:   "Exclusão de dados",
		Subtasks: []dsr.Subtask{
			{ID: "90214", TaskID: "7", Title: "Erase mailbox"},
			{ID: "90215", TaskID: "8", Title: "Erase CRM profile"},
			{ID: "90216", TaskID: "9", Title: "Erase analytics"},
		},
	}
}

// eventSummary projects the audit fields the orchestrator is
// responsible for; timestamps are the recorder's business.
type eventSummary struct {
	Event     string
	Status    string
	SubtaskID string
	Message   string
}

func (s *orchestratorSuite) events() []eventSummary {
	var out []eventSummary
	for _, event := range s.log.events {
		out = append(out, eventSummary{event.Event, event.Status, event.SubtaskID, event.Message})
	}
	return out
}

func (s *orchestratorSuite) TestAllSubtasksResolve(c *gc.C) {
	s.resolver.outcomes = []dsr.Outcome{
		{Success: true}, {Success: true}, {Success: true},
	}
	ok := s.newOrchestrator(c).ProcessSubtasks(context.Background(), s.recorder(), s.ticket())
	c.Assert(ok, jc.IsTrue)
	s.stub.CheckCallNames(c, "Resolve", "Resolve", "Resolve")
	s.stub.CheckCall(c, 0, "Resolve", "4821", "90214")
	s.stub.CheckCall(c, 1, "Resolve", "4821", "90215")
	s.stub.CheckCall(c, 2, "Resolve", "4821", "90216")
	c.Assert(s.events(), jc.DeepEquals, []eventSummary{
		{audit.EventSubtaskResolved, audit.StatusOK, "90214", ""},
		{audit.EventSubtaskResolved, audit.StatusOK, "90215", ""},
		{audit.EventSubtaskResolved, audit.StatusOK, "90216", ""},
		{audit.EventTicketClosed, audit.StatusOK, "", "3 subtasks resolved"},
	})
}

func (s *orchestratorSuite) TestStopsAtFirstFailure(c *gc.C) {
	s.resolver.outcomes = []dsr.Outcome{
		{Success: true},
		{Detail: "Subtask not removed after retries."},
	}
	ok := s.newOrchestrator(c).ProcessSubtasks(context.Background(), s.recorder(), s.ticket())
	c.Assert(ok, jc.IsFalse)
	s.stub.CheckCallNames(c, "Resolve", "Resolve", "Notify")
	s.stub.CheckCall(c, 2, "Notify", notify.Record{
		Worker:      "dsr-worker",
		Environment: "PROD",
		FormTitle:   "Exclusão de dados",
		TicketID:    "4821",
		TaskID:      "8",
		SubtaskID:   "90215",
		Subtask:     "Erase CRM profile",
		Message:     "Subtask not removed after retries.",
	})
	c.Assert(s.events(), jc.DeepEquals, []eventSummary{
		{audit.EventSubtaskResolved, audit.StatusOK, "90214", ""},
		{audit.EventSubtaskFailed, audit.StatusFailed, "90215", "Subtask not removed after retries."},
		{audit.EventNotification, audit.StatusOK, "90215", ""},
		{audit.EventTicketClosed, audit.StatusFailed, "", "stopped at subtask 90215"},
	})
}

func (s *orchestratorSuite) TestResolvedSubtasksStayResolved(c *gc.C) {
	// The first subtask fails: the other two must never be touched.
	s.resolver.outcomes = []dsr.Outcome{
		{Detail: "API returned unexpected status: 7"},
	}
	ok := s.newOrchestrator(c).ProcessSubtasks(context.Background(), s.recorder(), s.ticket())
	c.Assert(ok, jc.IsFalse)
	s.stub.CheckCallNames(c, "Resolve", "Notify")
	s.stub.CheckCall(c, 0, "Resolve", "4821", "90214")
}

func (s *orchestratorSuite) TestNotificationFailureNotEscalated(c *gc.C) {
	s.resolver.outcomes = []dsr.Outcome{
		{Detail: "Processing timeout"},
	}
	// Only the sink consults the error queue.
	s.stub.SetErrors(errors.New("notification failed for teams"))
	ok := s.newOrchestrator(c).ProcessSubtasks(context.Background(), s.recorder(), s.ticket())
	c.Assert(ok, jc.IsFalse)
	s.stub.CheckCallNames(c, "Resolve", "Notify")
	c.Assert(s.events(), jc.DeepEquals, []eventSummary{
		{audit.EventSubtaskFailed, audit.StatusFailed, "90214", "Processing timeout"},
		{audit.EventNotification, audit.StatusFailed, "90214", "notification failed for teams"},
		{audit.EventTicketClosed, audit.StatusFailed, "", "stopped at subtask 90214"},
	})
}

func (s *orchestratorSuite) TestEmptyTicket(c *gc.C) {
	ticket := s.ticket()
	ticket.Subtasks = nil
	ok := s.newOrchestrator(c).ProcessSubtasks(context.Background(), s.recorder(), ticket)
	c.Assert(ok, jc.IsTrue)
	s.stub.CheckCallNames(c)
	c.Assert(s.events(), jc.DeepEquals, []eventSummary{
		{audit.EventTicketClosed, audit.StatusOK, "", "0 subtasks resolved"},
	})
}

func (s *orchestratorSuite) TestValidateConfig(c *gc.C) {
	s.testValidateConfig(c, func(config *closer.OrchestratorConfig) {
		config.Resolver = nil
	}, "resolver not provided")
	s.testValidateConfig(c, func(config *closer.OrchestratorConfig) {
		config.Sink = nil
	}, "notification sink not provided")
	s.testValidateConfig(c, func(config *closer.OrchestratorConfig) {
		config.Metrics = nil
	}, "metrics not provided")
	s.testValidateConfig(c, func(config *closer.OrchestratorConfig) {
		config.WorkerName = ""
	}, "worker name not provided")
}

func (s *orchestratorSuite) testValidateConfig(c *gc.C, broken func(*closer.OrchestratorConfig), expect string) {
	config := closer.OrchestratorConfig{
		Resolver:   s.resolver,
		Sink:       s.sink,
		Metrics:    closer.NewMetricsCollector(),
		WorkerName: "dsr-worker",
	}
	broken(&config)
	_, err := closer.NewOrchestrator(config)
	c.Check(err, gc.ErrorMatches, expect)
}

// stubResolver returns canned outcomes in order. Anything beyond the
// canned list succeeds.
type stubResolver struct {
	stub     *testing.Stub
	outcomes []dsr.Outcome
}

func (r *stubResolver) Resolve(ctx context.Context, rec audit.Recorder, ticketID string, sub dsr.Subtask) dsr.Outcome {
	r.stub.AddCall("Resolve", ticketID, sub.ID)
	if len(r.outcomes) == 0 {
		return dsr.Outcome{Success: true}
	}
	outcome := r.outcomes[0]
	r.outcomes = r.outcomes[1:]
	return outcome
}

type stubSink struct {
	stub *testing.Stub
}

func (s *stubSink) Notify(ctx context.Context, record notify.Record) error {
	s.stub.AddCall("Notify", record)
	return s.stub.NextErr()
}
