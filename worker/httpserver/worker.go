// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package httpserver runs the worker's HTTP API as a worker.Worker so
// the command can supervise it and tear it down cleanly.
package httpserver

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/worker/v4/catacomb"
)

var logger = loggo.GetLogger("dsrworker.httpserver")

// DefaultShutdownTimeout bounds how long outstanding requests are
// given when the worker is killed. A close-out invocation can ride out
// several verification waits, so this errs on the long side.
const DefaultShutdownTimeout = 3 * time.Minute

// Config holds the ingredients for running the HTTP server.
type Config struct {
	// ListenAddr is the host:port to listen on.
	ListenAddr string

	// Handler is the root handler to serve.
	Handler http.Handler

	// ShutdownTimeout bounds how long outstanding requests are given
	// on shutdown. Left zero, DefaultShutdownTimeout applies.
	ShutdownTimeout time.Duration
}

// Validate returns an error if the config is not complete.
func (config Config) Validate() error {
	if config.ListenAddr == "" {
		return errors.New("listen address not provided")
	}
	if config.Handler == nil {
		return errors.New("handler not provided")
	}
	return nil
}

// Worker serves HTTP until killed.
type Worker struct {
	catacomb catacomb.Catacomb
	config   Config
	listener net.Listener
	url      chan string
}

// NewWorker opens the listen socket and starts serving on it.
func NewWorker(config Config) (*Worker, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = DefaultShutdownTimeout
	}
	listener, err := net.Listen("tcp", config.ListenAddr)
	if err != nil {
		return nil, errors.Annotate(err, "opening listen socket")
	}
	w := &Worker{
		config:   config,
		listener: listener,
		url:      make(chan string),
	}
	if err := catacomb.Invoke(catacomb.Plan{
		Site: &w.catacomb,
		Work: w.loop,
	}); err != nil {
		_ = listener.Close()
		return nil, errors.Trace(err)
	}
	return w, nil
}

// Kill is part of the worker.Worker interface.
func (w *Worker) Kill() {
	w.catacomb.Kill(nil)
}

// Wait is part of the worker.Worker interface.
func (w *Worker) Wait() error {
	return w.catacomb.Wait()
}

// URL returns the base URL the server is reachable on. It returns the
// empty string if the worker is dying.
func (w *Worker) URL() string {
	select {
	case <-w.catacomb.Dying():
		return ""
	case url := <-w.url:
		return url
	}
}

func (w *Worker) loop() error {
	server := &http.Server{Handler: w.config.Handler}
	served := make(chan error, 1)
	go func() {
		err := server.Serve(w.listener)
		if err == http.ErrServerClosed {
			err = nil
		}
		served <- err
	}()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), w.config.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.Errorf("shutting down HTTP server: %v", err)
			_ = server.Close()
		}
	}()

	logger.Infof("listening on %q", w.listener.Addr())
	url := fmt.Sprintf("http://%s", w.listener.Addr())
	for {
		select {
		case <-w.catacomb.Dying():
			return w.catacomb.ErrDying()
		case err := <-served:
			return errors.Annotate(err, "http server")
		case w.url <- url:
		}
	}
}
