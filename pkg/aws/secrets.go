package aws

import (
	"context"
	"fmt"
	"sync"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Secrets Manager names under the hub-service prefix. Values held here
// override the corresponding environment variables at startup.
const (
	SecretHubEventsTopicARN = "hub/HUB_EVENTS_TOPIC_ARN"
	SecretAccountAPIURL     = "hub/ACCOUNT_API_URL"
)

// SecretsClient reads hub-service configuration from Secrets Manager.
// Values are cached for the life of the process; the service only reads
// secrets at startup, so rotation requires a restart.
type SecretsClient struct {
	client *secretsmanager.Client
	cache  map[string]string
	mu     sync.RWMutex
}

func NewSecretsClient(cfg sdkaws.Config) *SecretsClient {
	return &SecretsClient{
		client: secretsmanager.NewFromConfig(cfg),
		cache:  make(map[string]string),
	}
}

// GetSecret returns the string value of a secret, hitting Secrets Manager
// only on the first read of each name.
func (s *SecretsClient) GetSecret(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	if v, ok := s.cache[name]; ok {
		s.mu.RUnlock()
		return v, nil
	}
	s.mu.RUnlock()

	out, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{SecretId: &name})
	if err != nil {
		return "", fmt.Errorf("failed to get secret %s: %w", name, err)
	}
	if out.SecretString == nil {
		return "", fmt.Errorf("secret %s has no string value", name)
	}

	s.mu.Lock()
	s.cache[name] = *out.SecretString
	s.mu.Unlock()

	return *out.SecretString, nil
}

// GetSecretOr returns the secret's value, or fallback when the secret is
// missing or empty. Used at startup where the environment already supplies
// a usable default.
func (s *SecretsClient) GetSecretOr(ctx context.Context, name, fallback string) string {
	v, err := s.GetSecret(ctx, name)
	if err != nil || v == "" {
		return fallback
	}
	return v
}
