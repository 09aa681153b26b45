// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package main

import (
	"os"
	"path/filepath"
	"time"

	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	coretesting "github.com/canonical/dsr-worker/testing"
)

type configSuite struct {
	coretesting.BaseSuite
}

var _ = gc.Suite(&configSuite{})

const sampleConfig = `
platform-url: https://app.securiti.example.com
ticket-base-url: https://console.securiti.example.com
listen-addr: 127.0.0.1:9090
worker-name: dsr-worker-prod
audit-log-dir: /var/log/dsrworker
secret-backend:
  type: vault
  config:
    endpoint: http://vault.example.com:8200
    token: sekrit
    mount: kv
`

func (s *configSuite) writeConfig(c *gc.C, content string) string {
	path := filepath.Join(c.MkDir(), "config.yaml")
	err := os.WriteFile(path, []byte(content), 0644)
	c.Assert(err, jc.ErrorIsNil)
	return path
}

func (s *configSuite) TestReadConfig(c *gc.C) {
	config, err := ReadConfig(s.writeConfig(c, sampleConfig))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(config, jc.DeepEquals, &Config{
		PlatformURL:   "https://app.securiti.example.com",
		TicketBaseURL: "https://console.securiti.example.com",
		ListenAddr:    "127.0.0.1:9090",
		WorkerName:    "dsr-worker-prod",
		AuditLogDir:   "/var/log/dsrworker",
		SecretBackend: SecretBackendConfig{
			Type: "vault",
			Config: map[string]interface{}{
				"endpoint": "http://vault.example.com:8200",
				"token":    "sekrit",
				"mount":    "kv",
			},
		},
	})
}

func (s *configSuite) TestDefaults(c *gc.C) {
	config, err := ReadConfig(s.writeConfig(c, `
platform-url: https://app.securiti.example.com
secret-backend:
  type: aws
`))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(config.ListenAddr, gc.Equals, DefaultListenAddr)
	c.Assert(config.WorkerName, gc.Equals, DefaultWorkerName)
	c.Assert(config.Retries, gc.Equals, 0)
	c.Assert(config.CallTimeout, gc.Equals, time.Duration(0))
}

func (s *configSuite) TestEnvironmentOverrides(c *gc.C) {
	s.PatchEnvironment("TIMEOUT", "60")
	s.PatchEnvironment("RETRIES", "5")
	config, err := ReadConfig(s.writeConfig(c, sampleConfig))
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(config.CallTimeout, gc.Equals, 60*time.Second)
	c.Assert(config.Retries, gc.Equals, 5)
}

func (s *configSuite) TestBadTimeout(c *gc.C) {
	s.PatchEnvironment("TIMEOUT", "soon")
	_, err := ReadConfig(s.writeConfig(c, sampleConfig))
	c.Assert(err, gc.ErrorMatches, "parsing TIMEOUT: .*")
}

func (s *configSuite) TestBadRetries(c *gc.C) {
	s.PatchEnvironment("RETRIES", "many")
	_, err := ReadConfig(s.writeConfig(c, sampleConfig))
	c.Assert(err, gc.ErrorMatches, "parsing RETRIES: .*")
}

func (s *configSuite) TestMissingFile(c *gc.C) {
	_, err := ReadConfig(filepath.Join(c.MkDir(), "nope.yaml"))
	c.Assert(err, gc.ErrorMatches, "reading config file: .*")
}

func (s *configSuite) TestUnparseable(c *gc.C) {
	_, err := ReadConfig(s.writeConfig(c, "\tplatform-url: x"))
	c.Assert(err, gc.ErrorMatches, "parsing config file: .*")
}

func (s *configSuite) TestValidate(c *gc.C) {
	_, err := ReadConfig(s.writeConfig(c, "secret-backend:\n  type: vault\n"))
	c.Assert(err, gc.ErrorMatches, "platform-url not set")

	_, err = ReadConfig(s.writeConfig(c, "platform-url: https://app.securiti.example.com\n"))
	c.Assert(err, gc.ErrorMatches, "secret-backend.type not set")
}
