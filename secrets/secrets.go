// Package secrets resolves credentials (the Pinata JWT, the signer key) at
// startup so they never appear in source or config files.
package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/smithy-go"
)

var (
	ErrSecretNotFound = errors.New("secret not found")
	ErrSecretEmpty    = errors.New("secret value is empty")
	ErrAccessDenied   = errors.New("access denied to secret")
)

const (
	resourceNotFoundException = "ResourceNotFoundException"
	accessDeniedException     = "AccessDeniedException"
)

// Source looks up a secret by name. A name of the form "id#field" selects
// one field of a JSON secret.
type Source interface {
	Secret(ctx context.Context, name string) (string, error)
}

// EnvSource reads secrets from environment variables named after them.
type EnvSource struct {
	lookup func(string) (string, bool)
}

func NewEnvSource() *EnvSource { return &EnvSource{lookup: os.LookupEnv} }

func (s *EnvSource) Secret(_ context.Context, name string) (string, error) {
	id, field := splitName(name)
	raw, ok := s.lookup(id)
	if !ok {
		return "", fmt.Errorf("%s: %w", id, ErrSecretNotFound)
	}
	return selectField(id, raw, field)
}

// ManagerAPI is the part of the Secrets Manager client used here.
type ManagerAPI interface {
	GetSecretValue(ctx context.Context, params *secretsmanager.GetSecretValueInput, optFns ...func(*secretsmanager.Options)) (*secretsmanager.GetSecretValueOutput, error)
}

// AWSSource reads secrets from AWS Secrets Manager and caches them for the
// life of the process.
type AWSSource struct {
	api ManagerAPI

	mu    sync.Mutex
	cache map[string]string
}

// NewAWSSource loads the default AWS config chain. region may be empty.
func NewAWSSource(ctx context.Context, region string) (*AWSSource, error) {
	var opts []func(*config.LoadOptions) error
	if region != "" {
		opts = append(opts, config.WithRegion(region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewAWSSourceFromAPI(secretsmanager.NewFromConfig(cfg)), nil
}

func NewAWSSourceFromAPI(api ManagerAPI) *AWSSource {
	return &AWSSource{api: api, cache: make(map[string]string)}
}

func (s *AWSSource) Secret(ctx context.Context, name string) (string, error) {
	id, field := splitName(name)
	raw, err := s.fetch(ctx, id)
	if err != nil {
		return "", err
	}
	return selectField(id, raw, field)
}

func (s *AWSSource) fetch(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	if v, ok := s.cache[id]; ok {
		s.mu.Unlock()
		return v, nil
	}
	s.mu.Unlock()

	out, err := s.api.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: aws.String(id)})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			switch apiErr.ErrorCode() {
			case resourceNotFoundException:
				return "", fmt.Errorf("%s: %w", id, ErrSecretNotFound)
			case accessDeniedException:
				return "", fmt.Errorf("%s: %w", id, ErrAccessDenied)
			}
			return "", fmt.Errorf("get secret %s: %s", id, apiErr.ErrorCode())
		}
		return "", fmt.Errorf("get secret %s: %w", id, err)
	}

	var value string
	switch {
	case out.SecretString != nil:
		value = *out.SecretString
	case out.SecretBinary != nil:
		value = string(out.SecretBinary)
	}

	s.mu.Lock()
	s.cache[id] = value
	s.mu.Unlock()
	return value, nil
}

// New picks a source by provider name: "env" (default) or "aws".
func New(ctx context.Context, provider, region string) (Source, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "env":
		return NewEnvSource(), nil
	case "aws":
		return NewAWSSource(ctx, region)
	default:
		return nil, fmt.Errorf("unknown secrets provider %q", provider)
	}
}

func splitName(name string) (id, field string) {
	name = strings.TrimSpace(name)
	if i := strings.LastIndexByte(name, '#'); i >= 0 {
		return name[:i], name[i+1:]
	}
	return name, ""
}

func selectField(id, raw, field string) (string, error) {
	if field == "" {
		if strings.TrimSpace(raw) == "" {
			return "", fmt.Errorf("%s: %w", id, ErrSecretEmpty)
		}
		return strings.TrimSpace(raw), nil
	}
	var fields map[string]any
	if err := json.Unmarshal([]byte(raw), &fields); err != nil {
		return "", fmt.Errorf("%s: secret is not a JSON object", id)
	}
	v, ok := fields[field]
	if !ok {
		return "", fmt.Errorf("%s#%s: %w", id, field, ErrSecretNotFound)
	}
	s, _ := v.(string)
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("%s#%s: %w", id, field, ErrSecretEmpty)
	}
	return strings.TrimSpace(s), nil
}
