// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package dsr

import (
	"encoding/json"
	"strings"

	"github.com/juju/errors"
)

// ticketDoc is the wire form of the inbound ticket payload. Field names
// are fixed by the platform's webhook schema.
type ticketDoc struct {
	TicketID       flexID       `json:"ticketId"`
	SecretTemplate string       `json:"sm"`
	FormTitle      string       `json:"dsp_form_title"`
	Subtasks       []subtaskDoc `json:"task_subtask"`
}

type subtaskDoc struct {
	SubtaskID flexID `json:"subtask_id"`
	TaskID    flexID `json:"task_id"`
	Title     string `json:"title"`
}

// flexID is an identifier that the platform serialises sometimes as a
// JSON string and sometimes as a bare number.
type flexID string

// UnmarshalJSON implements json.Unmarshaler.
func (v *flexID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = flexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*v = flexID(n.String())
	return nil
}

// ParseTicketData builds a Ticket from the raw payload string delivered
// by the platform webhook. The payload is nominally JSON, but the
// platform is known to deliver it single-quote delimited; a payload
// that fails to parse as-is is retried with quotes normalised. Errors
// satisfy errors.NotValid.
func ParseTicketData(data string) (*Ticket, error) {
	var doc ticketDoc
	if err := json.Unmarshal([]byte(data), &doc); err != nil {
		if err := json.Unmarshal([]byte(normalizeQuotes(data)), &doc); err != nil {
			return nil, errors.NewNotValid(err, "deserializing ticket payload")
		}
	}
	if doc.TicketID == "" {
		return nil, errors.NotValidf("ticket payload without a ticket id")
	}
	if doc.SecretTemplate == "" {
		return nil, errors.NotValidf("ticket payload without a secret path template")
	}

	ticket := &Ticket{
		ID:             string(doc.TicketID),
		Environment:    environmentFor(doc.SecretTemplate),
		FormTitle:      doc.FormTitle,
		SecretTemplate: doc.SecretTemplate,
		Subtasks:       make([]Subtask, len(doc.Subtasks)),
	}
	for i, sub := range doc.Subtasks {
		ticket.Subtasks[i] = Subtask{
			ID:     string(sub.SubtaskID),
			TaskID: string(sub.TaskID),
			Title:  sub.Title,
		}
	}
	return ticket, nil
}

// normalizeQuotes rewrites a single-quote delimited payload into valid
// JSON. The replacement is unconditional, matching the platform's own
// tooling; it is only applied to payloads that did not already parse.
func normalizeQuotes(data string) string {
	return strings.ReplaceAll(data, "'", `"`)
}
