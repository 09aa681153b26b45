// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package all registers every secret source provider.
package all

import (
	_ "github.com/canonical/dsr-worker/secrets/provider/aws"
	_ "github.com/canonical/dsr-worker/secrets/provider/vault"
)
