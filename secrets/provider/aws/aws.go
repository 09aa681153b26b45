// Copyright 2025 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package aws implements a secret source backed by AWS Secrets
// Manager. Secrets are stored as JSON objects in the secret string.
package aws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/mitchellh/mapstructure"

	"github.com/canonical/dsr-worker/secrets"
)

var logger = loggo.GetLogger("dsrworker.secrets.aws")

// BackendType is the name this provider registers under.
const BackendType = "aws"

func init() {
	secrets.Register(awsProvider{})
}

type awsProvider struct{}

// Type implements SourceProvider.
func (awsProvider) Type() string {
	return BackendType
}

type backendConfig struct {
	Region string `mapstructure:"region"`
}

// NewSource implements SourceProvider. Credentials come from the
// default chain (environment, shared config, instance role).
func (p awsProvider) NewSource(cfg *secrets.BackendConfig) (secrets.Source, error) {
	var valid backendConfig
	if err := mapstructure.Decode(cfg.Config, &valid); err != nil {
		return nil, errors.NewNotValid(err, "decoding aws config")
	}
	var opts []func(*config.LoadOptions) error
	if valid.Region != "" {
		opts = append(opts, config.WithRegion(valid.Region))
	}
	awsCfg, err := config.LoadDefaultConfig(context.TODO(), opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	logger.Debugf("secrets manager source in region %q", awsCfg.Region)
	return &awsBackend{client: secretsmanager.NewFromConfig(awsCfg)}, nil
}

// Client is the part of the Secrets Manager API the backend uses.
type Client interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

type awsBackend struct {
	client Client
}

// Get implements Source.
func (b *awsBackend) Get(ctx context.Context, name string) (map[string]string, error) {
	out, err := b.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return nil, classify(err, name)
	}
	if out.SecretString == nil {
		return nil, errors.NotValidf("secret %q without a string payload", name)
	}
	var data map[string]string
	if err := json.Unmarshal([]byte(*out.SecretString), &data); err != nil {
		return nil, errors.NewNotValid(err, fmt.Sprintf("decoding secret %q", name))
	}
	return data, nil
}

func classify(err error, name string) error {
	var notFound *types.ResourceNotFoundException
	if errors.As(err, &notFound) {
		return errors.NotFoundf("secret %q", name)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "AccessDeniedException" {
		return errors.WithType(err, secrets.PermissionDenied)
	}
	return errors.Trace(err)
}
