// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"strconv"
	"time"

	"github.com/juju/errors"
	"gopkg.in/yaml.v2"
)

const (
	// DefaultListenAddr is where the HTTP API listens when the
	// configuration does not say otherwise.
	DefaultListenAddr = ":8080"

	// DefaultWorkerName identifies this worker when the configuration
	// does not name it.
	DefaultWorkerName = "dsr-worker"
)

// Config is the worker's on-disk configuration.
type Config struct {
	// PlatformURL is the privacy platform API root.
	PlatformURL string `yaml:"platform-url"`

	// TicketBaseURL is the console host used in notification deep
	// links. Left empty, the notify package default applies.
	TicketBaseURL string `yaml:"ticket-base-url,omitempty"`

	// ListenAddr is the host:port the HTTP API listens on.
	ListenAddr string `yaml:"listen-addr,omitempty"`

	// WorkerName identifies this worker in audit records and
	// notifications.
	WorkerName string `yaml:"worker-name,omitempty"`

	// AuditLogDir is the directory the audit log is written to. Left
	// empty, audit events only go to the debug log.
	AuditLogDir string `yaml:"audit-log-dir,omitempty"`

	// LoggingConfig is a loggo specification applied at startup.
	LoggingConfig string `yaml:"logging-config,omitempty"`

	// SecretBackend selects and configures the credential store.
	SecretBackend SecretBackendConfig `yaml:"secret-backend"`

	// Retries and CallTimeout tune the resolver. They are set from the
	// TIMEOUT and RETRIES environment variables; left unset, the
	// closer package defaults apply.
	Retries     int           `yaml:"-"`
	CallTimeout time.Duration `yaml:"-"`
}

// SecretBackendConfig names a registered secret source provider and
// carries its settings.
type SecretBackendConfig struct {
	Type   string                 `yaml:"type"`
	Config map[string]interface{} `yaml:"config,omitempty"`
}

// Validate returns an error if the config cannot run the worker.
func (c *Config) Validate() error {
	if c.PlatformURL == "" {
		return errors.New("platform-url not set")
	}
	if c.SecretBackend.Type == "" {
		return errors.New("secret-backend.type not set")
	}
	return nil
}

// ReadConfig loads the worker configuration from path, applies the
// environment overrides and fills in defaults.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Annotate(err, "reading config file")
	}
	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.Annotate(err, "parsing config file")
	}
	if err := config.applyEnvironment(); err != nil {
		return nil, errors.Trace(err)
	}
	if config.ListenAddr == "" {
		config.ListenAddr = DefaultListenAddr
	}
	if config.WorkerName == "" {
		config.WorkerName = DefaultWorkerName
	}
	if err := config.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &config, nil
}

// applyEnvironment honours the TIMEOUT and RETRIES variables the
// platform tooling has always been deployed with. TIMEOUT is in
// seconds.
func (c *Config) applyEnvironment() error {
	if v := os.Getenv("TIMEOUT"); v != "" {
		seconds, err := strconv.Atoi(v)
		if err != nil {
			return errors.Annotate(err, "parsing TIMEOUT")
		}
		c.CallTimeout = time.Duration(seconds) * time.Second
	}
	if v := os.Getenv("RETRIES"); v != "" {
		retries, err := strconv.Atoi(v)
		if err != nil {
			return errors.Annotate(err, "parsing RETRIES")
		}
		c.Retries = retries
	}
	return nil
}
