// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package transport holds the wire types for the privacy platform's
// DSR admin and reporting APIs. Field names and values follow the
// platform's schema and are not ours to change.
package transport

// StatusResolved is the response status code the platform assigns to a
// subtask that has been actioned.
const StatusResolved = 5

type UpdateRequest struct {
	Status int `json:"status"`
}

type UpdateResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
}

type QueryRequest struct {
	Source         string         `json:"source"`
	ResponseConfig ResponseConfig `json:"response_config"`
	Fields         []Field        `json:"fields"`
	OrderBy        []string       `json:"order_by"`
	Filter         Filter         `json:"filter"`
}

type ResponseConfig struct {
	Format int `json:"format"`
}

type Field struct {
	Name string `json:"name"`
}

type Filter struct {
	Op    string      `json:"op"`
	Field string      `json:"field,omitempty"`
	Value interface{} `json:"value"`
}

type QueryResponse struct {
	Data []TaskRow `json:"data"`
}

type TaskRow struct {
	TotalSubtasks int `json:"total_subtasks"`
}

// NewTaskQuery builds the reporting query that returns the number of
// subtasks still recorded against one task of one ticket.
func NewTaskQuery(ticketID, taskID string) QueryRequest {
	return QueryRequest{
		Source:         "dsr_ticket",
		ResponseConfig: ResponseConfig{Format: 1},
		Fields: []Field{
			{Name: "task_id"},
			{Name: "total_subtasks"},
		},
		OrderBy: []string{"datastore_name"},
		Filter: Filter{
			Op: "and",
			Value: []Filter{
				{Op: "eq", Field: "id", Value: ticketID},
				{Op: "eq", Field: "task_id", Value: taskID},
			},
		},
	}
}
