package secrets

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"

	"github.com/credstack/rotor/internal/secure"
)

// secretsManagerAPI is the subset of the Secrets Manager client the store
// uses. Defined as an interface so tests can inject a fake.
type secretsManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
	PutSecretValue(ctx context.Context, params *secretsmanager.PutSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.PutSecretValueOutput, error)
	CreateSecret(ctx context.Context, params *secretsmanager.CreateSecretInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.CreateSecretOutput, error)
}

// AWSConfig holds settings for the Secrets Manager backend.
type AWSConfig struct {
	Region string

	// Prefix is prepended to every secret path, e.g. "prod/rotor".
	Prefix string
}

// AWSStore implements Store against AWS Secrets Manager.
type AWSStore struct {
	client secretsManagerAPI
	prefix string
}

// NewAWSStore creates a store using the default AWS credential chain.
func NewAWSStore(ctx context.Context, cfg AWSConfig) (*AWSStore, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &AWSStore{
		client: secretsmanager.NewFromConfig(awsCfg),
		prefix: cfg.Prefix,
	}, nil
}

// newAWSStoreWithClient is used by tests to inject a fake client.
func newAWSStoreWithClient(client secretsManagerAPI, prefix string) *AWSStore {
	return &AWSStore{client: client, prefix: prefix}
}

// Get retrieves the AWSCURRENT value of a secret.
func (s *AWSStore) Get(ctx context.Context, path string) (*secure.Buffer, Version, error) {
	name := s.qualify(path)
	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: &name,
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return nil, Version{}, fmt.Errorf("aws get %s: %w", path, ErrNotFound)
		}
		return nil, Version{}, fmt.Errorf("aws get %s: %w", path, err)
	}

	var raw string
	switch {
	case out.SecretString != nil:
		raw = *out.SecretString
	case out.SecretBinary != nil:
		raw = string(out.SecretBinary)
	default:
		return nil, Version{}, fmt.Errorf("aws secret %s has no value", path)
	}

	version := Version{Ref: "unknown", CreatedAt: time.Now().UTC()}
	if out.VersionId != nil {
		version.Ref = *out.VersionId
	}
	if out.CreatedDate != nil {
		version.CreatedAt = *out.CreatedDate
	}

	return secure.NewBufferFromString(raw), version, nil
}

// Put writes a new version, creating the secret on first write.
func (s *AWSStore) Put(ctx context.Context, path string, value *secure.Buffer, description string) (Version, error) {
	name := s.qualify(path)

	var raw string
	if err := value.With(func(v []byte) error {
		raw = string(v)
		return nil
	}); err != nil {
		return Version{}, err
	}

	out, err := s.client.PutSecretValue(ctx, &secretsmanager.PutSecretValueInput{
		SecretId:     &name,
		SecretString: &raw,
	})
	if err == nil {
		version := Version{Ref: "unknown", CreatedAt: time.Now().UTC()}
		if out.VersionId != nil {
			version.Ref = *out.VersionId
		}
		return version, nil
	}

	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return Version{}, fmt.Errorf("aws put %s: %w", path, err)
	}

	created, err := s.client.CreateSecret(ctx, &secretsmanager.CreateSecretInput{
		Name:         &name,
		SecretString: &raw,
		Description:  &description,
	})
	if err != nil {
		return Version{}, fmt.Errorf("aws create %s: %w", path, err)
	}

	version := Version{Ref: "unknown", CreatedAt: time.Now().UTC()}
	if created.VersionId != nil {
		version.Ref = *created.VersionId
	}
	return version, nil
}

func (s *AWSStore) qualify(path string) string {
	if s.prefix == "" {
		return path
	}
	return s.prefix + "/" + path
}
