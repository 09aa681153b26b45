// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/juju/clock"
	"github.com/juju/cmd/v3"
	"github.com/juju/errors"
	"github.com/juju/gnuflag"
	"github.com/juju/loggo"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/canonical/dsr-worker/apiserver"
	"github.com/canonical/dsr-worker/closer"
	"github.com/canonical/dsr-worker/core/audit"
	"github.com/canonical/dsr-worker/secrets"
	_ "github.com/canonical/dsr-worker/secrets/provider/all"
	"github.com/canonical/dsr-worker/worker/httpserver"
)

var logger = loggo.GetLogger("dsrworker.cmd")

var workerDoc = `
dsrworkerd runs the DSR ticket close-out worker: an HTTP endpoint that
receives ticket payloads from the privacy platform's webhook
automation, marks each subtask resolved, verifies removal, and
notifies the configured chat channels about failures.
`

// NewWorkerCommand returns the command that runs the worker daemon.
func NewWorkerCommand() cmd.Command {
	return &workerCommand{}
}

type workerCommand struct {
	cmd.CommandBase

	configPath    string
	listenAddr    string
	loggingConfig string
	auditLogDir   string
}

// Info implements cmd.Command.
func (c *workerCommand) Info() *cmd.Info {
	return &cmd.Info{
		Name:    "dsrworkerd",
		Purpose: "run the DSR close-out worker",
		Doc:     workerDoc,
	}
}

// SetFlags implements cmd.Command.
func (c *workerCommand) SetFlags(f *gnuflag.FlagSet) {
	f.StringVar(&c.configPath, "config", "", "path to the worker configuration file")
	f.StringVar(&c.listenAddr, "addr", "", "listen address, overriding the configuration file")
	f.StringVar(&c.loggingConfig, "logging-config", "", "initial loggo logging configuration")
	f.StringVar(&c.auditLogDir, "audit-log-dir", "", "audit log directory, overriding the configuration file")
}

// Init implements cmd.Command.
func (c *workerCommand) Init(args []string) error {
	if c.configPath == "" {
		return errors.New("--config option must be set")
	}
	return cmd.CheckEmpty(args)
}

// Run implements cmd.Command.
func (c *workerCommand) Run(ctx *cmd.Context) error {
	config, err := ReadConfig(c.configPath)
	if err != nil {
		return errors.Trace(err)
	}
	if c.listenAddr != "" {
		config.ListenAddr = c.listenAddr
	}
	if c.auditLogDir != "" {
		config.AuditLogDir = c.auditLogDir
	}
	if c.loggingConfig != "" {
		config.LoggingConfig = c.loggingConfig
	}
	if config.LoggingConfig != "" {
		if err := loggo.ConfigureLoggers(config.LoggingConfig); err != nil {
			return errors.Annotate(err, "configuring loggers")
		}
	}

	source, err := secrets.NewSource(&secrets.BackendConfig{
		BackendType: config.SecretBackend.Type,
		Config:      config.SecretBackend.Config,
	})
	if err != nil {
		return errors.Trace(err)
	}
	store, err := secrets.NewStore(source)
	if err != nil {
		return errors.Trace(err)
	}

	metrics := closer.NewMetricsCollector()
	registry := prometheus.NewRegistry()
	if err := registry.Register(metrics); err != nil {
		return errors.Annotate(err, "registering metrics")
	}

	auditLog := audit.NewLoggoSink()
	if config.AuditLogDir != "" {
		logFile := audit.NewLogFile(config.AuditLogDir)
		defer func() { _ = logFile.Close() }()
		auditLog = audit.Tee(logFile, auditLog)
	}

	runner, err := closer.NewRunner(closer.RunnerConfig{
		PlatformURL:   config.PlatformURL,
		TicketBaseURL: config.TicketBaseURL,
		Clock:         clock.WallClock,
		Metrics:       metrics,
		WorkerName:    config.WorkerName,
		Logger:        loggo.GetLogger("dsrworker.platform"),
		Retries:       config.Retries,
		CallTimeout:   config.CallTimeout,
	})
	if err != nil {
		return errors.Trace(err)
	}
	handler, err := apiserver.NewHandler(apiserver.Config{
		Store:      store,
		Runner:     runner,
		AuditLog:   auditLog,
		Clock:      clock.WallClock,
		WorkerName: config.WorkerName,
		Gatherer:   registry,
	})
	if err != nil {
		return errors.Trace(err)
	}
	server, err := httpserver.NewWorker(httpserver.Config{
		ListenAddr: config.ListenAddr,
		Handler:    handler,
	})
	if err != nil {
		return errors.Trace(err)
	}
	logger.Infof("%s serving on %s", config.WorkerName, config.ListenAddr)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sig)

	done := make(chan error, 1)
	go func() { done <- server.Wait() }()
	select {
	case s := <-sig:
		logger.Infof("caught %v, stopping worker", s)
		server.Kill()
		return errors.Trace(server.Wait())
	case err := <-done:
		return errors.Trace(err)
	}
}
