// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package notify

import (
	"fmt"
	"strings"
)

// TicketURL returns the console deep link to a ticket's worklist.
func TicketURL(base, ticketID string) string {
	return fmt.Sprintf("%s/#/ticket-details/%s?tab=WORKLIST", strings.TrimSuffix(base, "/"), ticketID)
}

// Teams wire types. The card layout and its Portuguese labels are what
// the operations channel expects; do not reword them casually.

type teamsMessage struct {
	Type        string            `json:"type"`
	Attachments []teamsAttachment `json:"attachments"`
}

type teamsAttachment struct {
	ContentType string       `json:"contentType"`
	Content     adaptiveCard `json:"content"`
}

type adaptiveCard struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []textBlock  `json:"body"`
	Actions []cardAction `json:"actions"`
}

type textBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Wrap     bool   `json:"wrap"`
	FontType string `json:"fontType"`
}

type cardAction struct {
	Type  string `json:"type"`
	Title string `json:"title"`
	URL   string `json:"url"`
}

func teamsCard(base string) formatter {
	return func(r Record) interface{} {
		lines := []string{
			fmt.Sprintf("**Worker:** %s", r.Worker),
			fmt.Sprintf("**Ambiente:** %s", r.Environment),
			fmt.Sprintf("**Formulário:** %s", r.FormTitle),
			fmt.Sprintf("**Ticket ID:** %s", r.TicketID),
			fmt.Sprintf("**Tarefa ID:** %s", r.TaskID),
			fmt.Sprintf("**Subtask ID:** %s", r.SubtaskID),
			fmt.Sprintf("**Nome da Subtarefa:** %s", r.Subtask),
			fmt.Sprintf("**Mensagem:** %s", r.Message),
		}
		body := make([]textBlock, len(lines))
		for i, line := range lines {
			body[i] = textBlock{
				Type:     "TextBlock",
				Text:     line,
				Wrap:     true,
				FontType: "Monospace",
			}
		}
		return teamsMessage{
			Type: "message",
			Attachments: []teamsAttachment{{
				ContentType: "application/vnd.microsoft.card.adaptive",
				Content: adaptiveCard{
					Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
					Type:    "AdaptiveCard",
					Version: "1.0",
					Body:    body,
					Actions: []cardAction{{
						Type:  "Action.OpenUrl",
						Title: "Visualizar na Securiti",
						URL:   TicketURL(base, r.TicketID),
					}},
				},
			}},
		}
	}
}

// Google Chat wire types.

type chatMessage struct {
	Cards []chatCard `json:"cards"`
}

type chatCard struct {
	Header   chatHeader    `json:"header"`
	Sections []chatSection `json:"sections"`
}

type chatHeader struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
}

type chatSection struct {
	Widgets []chatWidget `json:"widgets"`
}

type chatWidget struct {
	TextParagraph chatText `json:"textParagraph"`
}

type chatText struct {
	Text string `json:"text"`
}

func googleChatCard(base string) formatter {
	return func(r Record) interface{} {
		url := TicketURL(base, r.TicketID)
		text := fmt.Sprintf(
			"<b>Worker:</b> %s<br>"+
				"<b>Ambiente:</b> %s<br>"+
				"<b>Formulário:</b> %s<br>"+
				"<b>Tarefa ID:</b> %s<br>"+
				"<b>Subtarefa ID:</b> %s<br>"+
				"<b>Nome da Subtarefa:</b> %s<br>"+
				"<b>Mensagem:</b> %s<br>"+
				"<b>Link para o Ticket:</b> <a href='%s'>Visualizar na Securiti</a>",
			r.Worker, r.Environment, r.FormTitle, r.TaskID, r.SubtaskID, r.Subtask, r.Message, url)
		return chatMessage{
			Cards: []chatCard{{
				Header: chatHeader{
					Title:    "Subtask Update",
					Subtitle: fmt.Sprintf("Ticket ID: %s | Subtask ID: %s", r.TicketID, r.SubtaskID),
				},
				Sections: []chatSection{{
					Widgets: []chatWidget{{
						TextParagraph: chatText{Text: text},
					}},
				}},
			}},
		}
	}
}
