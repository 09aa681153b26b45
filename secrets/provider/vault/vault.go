// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package vault implements a secret source backed by a Hashicorp
// Vault KV v2 mount.
package vault

import (
	"context"

	"github.com/hashicorp/vault/api"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/mitchellh/mapstructure"

	"github.com/canonical/dsr-worker/secrets"
)

var logger = loggo.GetLogger("dsrworker.secrets.vault")

// BackendType is the name this provider registers under.
const BackendType = "vault"

// defaultMount is the KV v2 mount used when the config names none.
const defaultMount = "secret"

func init() {
	secrets.Register(vaultProvider{})
}

type vaultProvider struct{}

// Type implements SourceProvider.
func (vaultProvider) Type() string {
	return BackendType
}

type backendConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Token    string `mapstructure:"token"`
	Mount    string `mapstructure:"mount"`
}

func newBackendConfig(cfg secrets.ProviderConfig) (*backendConfig, error) {
	var valid backendConfig
	if err := mapstructure.Decode(cfg, &valid); err != nil {
		return nil, errors.NewNotValid(err, "decoding vault config")
	}
	if valid.Endpoint == "" {
		return nil, errors.NotValidf("vault config without an endpoint")
	}
	if valid.Token == "" {
		return nil, errors.NotValidf("vault config without a token")
	}
	if valid.Mount == "" {
		valid.Mount = defaultMount
	}
	return &valid, nil
}

// NewSource implements SourceProvider.
func (p vaultProvider) NewSource(cfg *secrets.BackendConfig) (secrets.Source, error) {
	valid, err := newBackendConfig(cfg.Config)
	if err != nil {
		return nil, errors.Trace(err)
	}
	apiCfg := api.DefaultConfig()
	apiCfg.Address = valid.Endpoint
	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, errors.Trace(err)
	}
	client.SetToken(valid.Token)
	logger.Debugf("vault source at %s, mount %q", valid.Endpoint, valid.Mount)
	return &vaultBackend{mount: valid.Mount, client: client}, nil
}

type vaultBackend struct {
	mount  string
	client *api.Client
}

// Get implements Source. Values are expected to be strings; the
// worker's secrets carry header values and webhook URLs, nothing
// structured.
func (b *vaultBackend) Get(ctx context.Context, name string) (map[string]string, error) {
	secret, err := b.client.KVv2(b.mount).Get(ctx, name)
	if err != nil {
		if isNotFound(err) {
			return nil, errors.NotFoundf("secret %q", name)
		}
		return nil, maybePermissionDenied(err)
	}
	out := make(map[string]string, len(secret.Data))
	for k, v := range secret.Data {
		val, ok := v.(string)
		if !ok {
			return nil, errors.NotValidf("secret %q key %q with non-string value", name, k)
		}
		out[k] = val
	}
	return out, nil
}
