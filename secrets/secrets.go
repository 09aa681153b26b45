// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package secrets retrieves the worker's two operating secrets — the
// platform credential headers and the chat webhook URLs — from a
// pluggable backend selected at startup. Backends register themselves
// with the provider registry; the worker only ever sees the Source
// interface.
package secrets

import (
	"context"

	"github.com/juju/collections/set"
	"github.com/juju/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/canonical/dsr-worker/core/dsr"
)

// PermissionDenied is returned when a backend refuses access to a
// secret.
const PermissionDenied = errors.ConstError("permission denied")

// ErrRetrieval marks any failure to fetch or decode ticket secrets.
// No subtask is touched until both secrets are in hand, so callers
// treat this as an authorisation failure for the whole invocation.
const ErrRetrieval = errors.ConstError("secret retrieval failed")

// Source reads a named secret as a flat key/value map.
type Source interface {
	Get(ctx context.Context, name string) (map[string]string, error)
}

// Store decodes the worker's secrets out of a Source.
type Store struct {
	source Source
}

// NewStore returns a Store reading from the given source.
func NewStore(source Source) (*Store, error) {
	if source == nil {
		return nil, errors.New("nil Source not valid")
	}
	return &Store{source: source}, nil
}

var (
	credentialKeys = set.NewStrings("X-API-KEY", "X-API-SECRET", "X-TIDENT")
	channelKeys    = set.NewStrings("microsoftTeams", "googleChat")
)

// Credentials fetches and decodes the platform credential triplet
// stored at path. Any failure is typed ErrRetrieval.
func (s *Store) Credentials(ctx context.Context, path string) (dsr.Credentials, error) {
	var creds dsr.Credentials
	if err := s.fetch(ctx, path, credentialKeys, &creds); err != nil {
		return dsr.Credentials{}, errors.Trace(err)
	}
	return creds, nil
}

// Channels fetches and decodes the chat webhook URLs stored at path.
// Any failure is typed ErrRetrieval.
func (s *Store) Channels(ctx context.Context, path string) (dsr.Channels, error) {
	var channels dsr.Channels
	if err := s.fetch(ctx, path, channelKeys, &channels); err != nil {
		return dsr.Channels{}, errors.Trace(err)
	}
	return channels, nil
}

func (s *Store) fetch(ctx context.Context, path string, required set.Strings, out interface{}) error {
	data, err := s.source.Get(ctx, path)
	if err != nil {
		return errors.WithType(errors.Annotatef(err, "reading secret %q", path), ErrRetrieval)
	}
	keys := set.NewStrings()
	for k := range data {
		keys.Add(k)
	}
	if missing := required.Difference(keys); !missing.IsEmpty() {
		return errors.WithType(
			errors.Errorf("secret %q missing keys %v", path, missing.SortedValues()), ErrRetrieval)
	}
	if err := mapstructure.Decode(data, out); err != nil {
		return errors.WithType(errors.Annotatef(err, "decoding secret %q", path), ErrRetrieval)
	}
	return nil
}
