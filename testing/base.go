// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package testing

import (
	jujutesting "github.com/juju/testing"
)

// BaseSuite provides required functionality for all test suites when
// embedded in a gocheck suite type:
// - logger redirect
// - scrubbing of env vars
// - cleanup callbacks
//
// The environment scrub removes the worker's own tuning variables, so
// suites exercising those must set them with PatchEnvironment.
type BaseSuite struct {
	jujutesting.IsolationSuite
}
