// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package secrets_test

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/testing"
	jc "github.com/juju/testing/checkers"
	gc "gopkg.in/check.v1"

	"github.com/canonical/dsr-worker/core/dsr"
	"github.com/canonical/dsr-worker/secrets"
)

type storeSuite struct {
	testing.IsolationSuite

	source *fakeSource
}

var _ = gc.Suite(&storeSuite{})

func (s *storeSuite) SetUpTest(c *gc.C) {
	s.IsolationSuite.SetUpTest(c)
	s.source = &fakeSource{data: map[string]map[string]string{}}
}

func (s *storeSuite) newStore(c *gc.C) *secrets.Store {
	store, err := secrets.NewStore(s.source)
	c.Assert(err, jc.ErrorIsNil)
	return store
}

func (s *storeSuite) TestNilSource(c *gc.C) {
	_, err := secrets.NewStore(nil)
	c.Assert(err, gc.ErrorMatches, "nil Source not valid")
}

func (s *storeSuite) TestCredentials(c *gc.C) {
	s.source.data["prod/privacy/dsr/token"] = map[string]string{
		"X-API-KEY":    "key",
		"X-API-SECRET": "shh",
		"X-TIDENT":     "tenant",
	}
	creds, err := s.newStore(c).Credentials(context.Background(), "prod/privacy/dsr/token")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(creds, jc.DeepEquals, dsr.Credentials{
		APIKey:    "key",
		APISecret: "shh",
		Tenant:    "tenant",
	})
	c.Assert(s.source.gets, jc.DeepEquals, []string{"prod/privacy/dsr/token"})
}

func (s *storeSuite) TestCredentialsMissingKey(c *gc.C) {
	s.source.data["prod/privacy/dsr/token"] = map[string]string{
		"X-API-KEY":    "key",
		"X-API-SECRET": "shh",
	}
	_, err := s.newStore(c).Credentials(context.Background(), "prod/privacy/dsr/token")
	c.Assert(err, jc.ErrorIs, secrets.ErrRetrieval)
	c.Assert(err, gc.ErrorMatches, `secret "prod/privacy/dsr/token" missing keys \[X-TIDENT\]`)
}

func (s *storeSuite) TestChannels(c *gc.C) {
	s.source.data["prod/privacy/global/channel"] = map[string]string{
		"microsoftTeams": "https://teams.example.com/hook",
		"googleChat":     "https://chat.example.com/hook",
	}
	channels, err := s.newStore(c).Channels(context.Background(), "prod/privacy/global/channel")
	c.Assert(err, jc.ErrorIsNil)
	c.Assert(channels, jc.DeepEquals, dsr.Channels{
		Teams:      "https://teams.example.com/hook",
		GoogleChat: "https://chat.example.com/hook",
	})
}

func (s *storeSuite) TestChannelsMissingKeys(c *gc.C) {
	s.source.data["prod/privacy/global/channel"] = map[string]string{}
	_, err := s.newStore(c).Channels(context.Background(), "prod/privacy/global/channel")
	c.Assert(err, jc.ErrorIs, secrets.ErrRetrieval)
	c.Assert(err, gc.ErrorMatches, `secret "prod/privacy/global/channel" missing keys \[googleChat microsoftTeams\]`)
}

func (s *storeSuite) TestSourceErrorTyped(c *gc.C) {
	s.source.err = errors.New("vault sealed")
	_, err := s.newStore(c).Credentials(context.Background(), "prod/privacy/dsr/token")
	c.Assert(err, jc.ErrorIs, secrets.ErrRetrieval)
	c.Assert(err, gc.ErrorMatches, `reading secret "prod/privacy/dsr/token": vault sealed`)
}

func (s *storeSuite) TestPermissionDeniedStillTyped(c *gc.C) {
	s.source.err = errors.WithType(errors.New("403"), secrets.PermissionDenied)
	_, err := s.newStore(c).Credentials(context.Background(), "prod/privacy/dsr/token")
	c.Assert(err, jc.ErrorIs, secrets.ErrRetrieval)
	c.Assert(err, jc.ErrorIs, secrets.PermissionDenied)
}

type fakeSource struct {
	data map[string]map[string]string
	err  error
	gets []string
}

func (f *fakeSource) Get(ctx context.Context, name string) (map[string]string, error) {
	f.gets = append(f.gets, name)
	if f.err != nil {
		return nil, f.err
	}
	secret, ok := f.data[name]
	if !ok {
		return nil, errors.NotFoundf("secret %q", name)
	}
	return secret, nil
}
