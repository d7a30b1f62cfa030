// Package main implements the main entry point for the decompiled routine
// verifier
package main

import (
	"context"
	"errors"
	"os"

	"github.com/retroenv/decompverify/internal/cli"
	"github.com/retroenv/decompverify/internal/config"
	"github.com/retroenv/decompverify/internal/memory"
	"github.com/retroenv/decompverify/internal/scenario"
	"github.com/retroenv/retrogolib/app"
)

var (
	version = "dev"
	commit  = ""
	date    = ""
)

func main() {
	ctx := app.Context()

	// Decompiled routines are registered here to make them available to
	// scenario files.
	registry := scenario.NewRegistry()
	if err := registry.Register("noop", scenario.RoutineFunc(func(memory.Bus) {})); err != nil {
		config.CreateLogger(false, false).Fatal(err.Error())
	}

	build := cli.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	if err := cli.Execute(ctx, os.Args[1:], build, registry); err != nil {
		logger := config.CreateLogger(false, false)
		// Handle context cancellation (Ctrl+C) gracefully
		if errors.Is(err, context.Canceled) {
			logger.Info("Operation cancelled")
			return
		}
		logger.Fatal(err.Error())
	}
}
