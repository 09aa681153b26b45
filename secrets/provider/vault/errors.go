// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package vault

import (
	"net/http"
	"strings"

	"github.com/hashicorp/vault/api"
	"github.com/juju/errors"

	"github.com/canonical/dsr-worker/secrets"
)

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *api.ResponseError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	// Sadly we can just get a string from the api. The wording moved
	// from "no secret found" to "secret not found" across client
	// releases, so match both.
	msg := err.Error()
	return strings.Contains(msg, "no secret found") || strings.Contains(msg, "secret not found")
}

func maybePermissionDenied(err error) error {
	var apiErr *api.ResponseError
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusForbidden {
			return errors.WithType(err, secrets.PermissionDenied)
		}
	}
	return err
}
