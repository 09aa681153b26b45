// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package apiserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/juju/errors"
	"github.com/juju/utils/v4"

	"github.com/canonical/dsr-worker/apiserver/params"
	"github.com/canonical/dsr-worker/core/audit"
	"github.com/canonical/dsr-worker/core/dsr"
)

// maxTicketPayload caps the size of an inbound close-out request body.
const maxTicketPayload = 1 << 20

// closeHandler handles close-out requests. One request is one ticket,
// processed synchronously; the response reports the overall outcome.
type closeHandler struct {
	config Config
}

// ServeHTTP implements http.Handler.
func (h *closeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := utils.MustNewUUID().String()

	var request params.CloseRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTicketPayload))
	if err == nil {
		err = json.Unmarshal(body, &request)
	}
	if err == nil && request.Data == "" {
		err = errors.New("no ticket data in request")
	}
	if err != nil {
		logger.Errorf("request %s: rejecting request: %v", requestID, err)
		h.sendJSON(w, http.StatusBadRequest, params.CloseResponse{
			Message: "Invalid input data",
			Error:   err.Error(),
		})
		return
	}

	ticket, err := dsr.ParseTicketData(request.Data)
	if err != nil {
		logger.Errorf("request %s: rejecting ticket payload: %v", requestID, err)
		h.sendJSON(w, http.StatusBadRequest, params.CloseResponse{
			Message: "Invalid input data",
			Error:   err.Error(),
		})
		return
	}
	logger.Infof("request %s: ticket %s (%s) with %d subtasks",
		requestID, ticket.ID, ticket.Environment, len(ticket.Subtasks))

	rec := audit.NewRecorder(h.config.AuditLog, h.config.Clock, audit.RunArgs{
		Worker:      h.config.WorkerName,
		Environment: ticket.Environment,
		TicketID:    ticket.ID,
		FormTitle:   ticket.FormTitle,
	})
	h.record(rec, audit.EventTicketReceived, audit.StatusOK,
		fmt.Sprintf("%d subtasks", len(ticket.Subtasks)))

	ctx := r.Context()
	if err := h.collectSecrets(ctx, ticket); err != nil {
		logger.Errorf("request %s: ticket %s: %v", requestID, ticket.ID, err)
		h.record(rec, audit.EventSecrets, audit.StatusFailed, err.Error())
		h.sendJSON(w, http.StatusUnauthorized, params.CloseResponse{
			Message: err.Error(),
		})
		return
	}
	h.record(rec, audit.EventSecrets, audit.StatusOK, "credentials and channels loaded")

	if h.config.Runner.Run(ctx, rec, ticket) {
		h.sendJSON(w, http.StatusOK, params.CloseResponse{
			Message: "All subtasks processed with notifications sent for failures.",
			DSRID:   ticket.ID,
		})
		return
	}
	h.sendJSON(w, http.StatusInternalServerError, params.CloseResponse{
		Message: "Failed to process the DSR. Notifications sent.",
		DSRID:   ticket.ID,
	})
}

// collectSecrets loads the ticket's webhook endpoints and platform
// credentials, channel secret first, matching the provisioning order
// the secret paths are created in.
func (h *closeHandler) collectSecrets(ctx context.Context, ticket *dsr.Ticket) error {
	channels, err := h.config.Store.Channels(ctx, ticket.ChannelSecretPath())
	if err != nil {
		return errors.Trace(err)
	}
	credentials, err := h.config.Store.Credentials(ctx, ticket.TokenSecretPath())
	if err != nil {
		return errors.Trace(err)
	}
	ticket.Channels = channels
	ticket.Credentials = credentials
	return nil
}

func (h *closeHandler) record(rec audit.Recorder, event, status, message string) {
	if err := rec.AddEvent(event, status, message); err != nil {
		logger.Errorf("recording %s event: %v", event, err)
	}
}

func (h *closeHandler) sendJSON(w http.ResponseWriter, statusCode int, response interface{}) {
	if err := sendStatusAndJSON(w, statusCode, response); err != nil {
		logger.Errorf("%v", err)
	}
}
