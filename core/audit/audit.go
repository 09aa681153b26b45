// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package audit records the close-out trail for each DSR ticket: every
// subtask resolution, every notification, and the final disposition.
// The records are the durable account of what the worker did to a
// ticket, kept separate from the debug log.
package audit

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/lumberjack/v2"
)

var logger = loggo.GetLogger("dsrworker.audit")

// Event is a single audit record. One is written per notable step in a
// ticket's close-out; the worker, environment and ticket fields carry
// the context that identifies the run it belongs to.
type Event struct {
	When        string `json:"when"` // ISO 8601 to second precision
	Event       string `json:"event"`
	Status      string `json:"status,omitempty"`
	Worker      string `json:"worker"`
	Environment string `json:"environment"`
	TicketID    string `json:"ticket-id"`
	FormTitle   string `json:"form-title,omitempty"`
	TaskID      string `json:"task-id,omitempty"`
	SubtaskID   string `json:"subtask-id,omitempty"`
	Subtask     string `json:"subtask,omitempty"` // display title
	Message     string `json:"message,omitempty"`
}

// Event names written by the worker.
const (
	EventTicketReceived  = "ticket-received"
	EventSecrets         = "collecting-secrets"
	EventSubtaskState    = "subtask-state"
	EventSubtaskResolved = "subtask-resolved"
	EventSubtaskFailed   = "subtask-failed"
	EventNotification    = "notification"
	EventTicketClosed    = "ticket-closed"
)

// Statuses an event can carry.
const (
	StatusOK     = "ok"
	StatusFailed = "failed"
)

// Log represents something that can store audit events somewhere.
type Log interface {
	AddEvent(e Event) error
}

// RunArgs identifies the ticket run a Recorder belongs to.
type RunArgs struct {
	Worker      string
	Environment string
	TicketID    string
	FormTitle   string
}

// Recorder stamps events with the context of one ticket run. It is a
// value: deriving a per-subtask recorder with WithSubtask copies it, so
// recorders for different subtasks never share mutable state.
type Recorder struct {
	log   Log
	clock clock.Clock

	worker      string
	environment string
	ticketID    string
	formTitle   string

	taskID    string
	subtaskID string
	subtask   string
}

// NewRecorder creates a Recorder for the ticket run described.
func NewRecorder(log Log, clk clock.Clock, run RunArgs) Recorder {
	return Recorder{
		log:         log,
		clock:       clk,
		worker:      run.Worker,
		environment: run.Environment,
		ticketID:    run.TicketID,
		formTitle:   run.FormTitle,
	}
}

// WithSubtask returns a copy of the recorder that stamps subsequent
// events with the given subtask's identifiers.
func (r Recorder) WithSubtask(taskID, subtaskID, title string) Recorder {
	r.taskID = taskID
	r.subtaskID = subtaskID
	r.subtask = title
	return r
}

// AddEvent records a single step with its status and message.
func (r Recorder) AddEvent(event, status, message string) error {
	return errors.Trace(r.log.AddEvent(Event{
		When:        r.clock.Now().UTC().Format(time.RFC3339),
		Event:       event,
		Status:      status,
		Worker:      r.worker,
		Environment: r.environment,
		TicketID:    r.ticketID,
		FormTitle:   r.formTitle,
		TaskID:      r.taskID,
		SubtaskID:   r.subtaskID,
		Subtask:     r.subtask,
		Message:     message,
	}))
}

// LogFile stores audit events in a size-rotated file.
type LogFile struct {
	fileLogger io.WriteCloser
}

// NewLogFile returns an audit event sink which writes to an audit.log
// file in the specified directory.
func NewLogFile(logDir string) *LogFile {
	logPath := filepath.Join(logDir, "audit.log")
	if err := primeLogFile(logPath); err != nil {
		// This isn't a fatal error so log and continue if priming
		// fails.
		logger.Errorf("unable to prime %s (proceeding anyway): %v", logPath, err)
	}

	return &LogFile{
		fileLogger: &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    300, // MB
			MaxBackups: 10,
			Compress:   true,
		},
	}
}

// AddEvent implements Log.
func (a *LogFile) AddEvent(e Event) error {
	bytes, err := json.Marshal(e)
	if err != nil {
		return errors.Trace(err)
	}
	// Append the newline before writing so the record lands in one
	// write and lumberjack can't roll the file mid-line.
	withNewline := make([]byte, 0, len(bytes)+1)
	withNewline = append(withNewline, bytes...)
	withNewline = append(withNewline, '\n')
	_, err = a.fileLogger.Write(withNewline)
	return errors.Trace(err)
}

// Close closes the underlying file.
func (a *LogFile) Close() error {
	return errors.Trace(a.fileLogger.Close())
}

// primeLogFile ensures the audit log file is created with the correct
// mode before lumberjack gets to it.
func primeLogFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(f.Close())
}

// Tee returns a Log that forwards each event to every sink in order,
// stopping at the first error.
func Tee(sinks ...Log) Log {
	return teeLog(sinks)
}

type teeLog []Log

// AddEvent implements Log.
func (t teeLog) AddEvent(e Event) error {
	for _, sink := range t {
		if err := sink.AddEvent(e); err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}

// NewLoggoSink returns a Log that emits each event on the package
// logger at INFO, so the audit trail is visible in the debug log even
// when the file sink is the source of record.
func NewLoggoSink() Log {
	return loggoSink{}
}

type loggoSink struct{}

// AddEvent implements Log.
func (loggoSink) AddEvent(e Event) error {
	logger.Infof("[%s] [%s] %s ticket=%s task=%s subtask=%s status=%s %s",
		e.Environment, e.Worker, e.Event, e.TicketID, e.TaskID, e.SubtaskID, e.Status, e.Message)
	return nil
}
