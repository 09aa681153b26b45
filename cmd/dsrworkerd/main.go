// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// dsrworkerd is the DSR ticket close-out worker daemon.
package main

import (
	"fmt"
	"os"

	"github.com/juju/cmd/v3"
)

func main() {
	ctx, err := cmd.DefaultContext()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	os.Exit(cmd.Main(NewWorkerCommand(), ctx, os.Args[1:]))
}
