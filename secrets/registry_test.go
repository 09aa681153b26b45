// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package secrets_test

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/dsr-worker/secrets"
)

type registrySuite struct {
	testing.IsolationSuite
}

var _ = gc.Suite(&registrySuite{})

type fakeProvider struct {
	name string
}

func (p fakeProvider) Type() string {
	return p.name
}

func (p fakeProvider) NewSource(cfg *secrets.BackendConfig) (secrets.Source, error) {
	return sourceFunc(func(ctx context.Context, name string) (map[string]string, error) {
		return map[string]string{"provider": p.name}, nil
	}), nil
}

type sourceFunc func(ctx context.Context, name string) (map[string]string, error)

func (f sourceFunc) Get(ctx context.Context, name string) (map[string]string, error) {
	return f(ctx, name)
}

// The registry is process-global, so one test exercises its whole
// surface with names nothing else registers.
func (s *registrySuite) TestRegistry(c *gc.C) {
	secrets.Register(fakeProvider{name: "test-zeta"})
	secrets.Register(fakeProvider{name: "test-alpha"})

	p, err := secrets.Provider("test-zeta")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(p.Type(), gc.Equals, "test-zeta")

	_, err = secrets.Provider("test-unknown")
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
	c.Assert(err, gc.ErrorMatches, `provider for backend "test-unknown" not found`)

	registered := secrets.RegisteredProviders()
	c.Assert(registered, jc.DeepEquals, []string{"test-alpha", "test-zeta"})

	c.Assert(func() {
		secrets.Register(fakeProvider{name: "test-zeta"})
	}, gc.PanicMatches, `secrets: duplicate provider name "test-zeta"`)

	source, err := secrets.NewSource(&secrets.BackendConfig{BackendType: "test-alpha"})
	c.Assert(err, jc.ErrorIsNil)
	data, err := source.Get(context.Background(), "anything")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(data, jc.DeepEquals, map[string]string{"provider": "test-alpha"})

	_, err = secrets.NewSource(&secrets.BackendConfig{BackendType: "test-unknown"})
	c.Assert(err, jc.Satisfies, errors.IsNotFound)
}
