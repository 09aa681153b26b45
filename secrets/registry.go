// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package secrets

import (
	"fmt"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
)

// ProviderConfig holds backend-specific settings as loaded from the
// worker configuration file.
type ProviderConfig map[string]interface{}

// BackendConfig selects and configures a secret backend.
type BackendConfig struct {
	BackendType string
	Config      ProviderConfig
}

// SourceProvider instances create secret sources of one backend type.
type SourceProvider interface {
	// Type is the unique name the provider registers under.
	Type() string

	// NewSource returns a Source reading secrets from the backend
	// described by cfg.
	NewSource(cfg *BackendConfig) (Source, error)
}

type sourceRegistry struct {
	providers map[string]SourceProvider
}

var globalProviders = &sourceRegistry{
	providers: map[string]SourceProvider{},
}

func (r *sourceRegistry) register(p SourceProvider) error {
	if _, ok := r.providers[p.Type()]; ok {
		return errors.Errorf("duplicate provider name %q", p.Type())
	}
	r.providers[p.Type()] = p
	return nil
}

func (r *sourceRegistry) provider(backendType string) (SourceProvider, error) {
	p, ok := r.providers[backendType]
	if !ok {
		return nil, errors.NotFoundf("provider for backend %q", backendType)
	}
	return p, nil
}

// Register registers a new secret source provider. It is meant to be
// called from provider package init functions and panics on duplicate
// registration.
func Register(p SourceProvider) {
	if err := globalProviders.register(p); err != nil {
		panic(fmt.Errorf("secrets: %v", err))
	}
}

// Provider returns the previously registered provider with the given
// backend type.
func Provider(backendType string) (SourceProvider, error) {
	return globalProviders.provider(backendType)
}

// RegisteredProviders enumerates the registered backend types in
// sorted order.
func RegisteredProviders() []string {
	names := set.NewStrings()
	for name := range globalProviders.providers {
		names.Add(name)
	}
	return names.SortedValues()
}

// NewSource builds a Source for the given backend config using the
// registered provider of that type.
func NewSource(cfg *BackendConfig) (Source, error) {
	p, err := Provider(cfg.BackendType)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return p.NewSource(cfg)
}
