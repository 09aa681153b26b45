// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package platform

import (
	"fmt"

	"github.com/juju/errors"
)

// ErrTimeout is returned when a platform request exceeds the client
// timeout. Callers use it to tell transient stalls apart from broken
// transports.
const ErrTimeout = errors.ConstError("platform request timed out")

// StatusError describes a non-2xx platform response. The body is
// retained, truncated, for failure details and logs.
type StatusError struct {
	Code int
	Body string
}

// Error implements error.
func (e *StatusError) Error() string {
	return fmt.Sprintf("platform responded with status %d", e.Code)
}

// IsStatusError reports whether err carries a *StatusError.
func IsStatusError(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr)
}
