package secrets

import (
	"context"
	"os"
)

// EnvProvider retrieves secrets from environment variables.
type EnvProvider struct {
	lookup func(string) (string, bool)
}

// NewEnvProvider creates a new environment variable provider.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{lookup: os.LookupEnv}
}

// Name returns the provider name.
func (e *EnvProvider) Name() string {
	return "env"
}

// Get returns the variable named key. An unset or empty variable is not found.
func (e *EnvProvider) Get(ctx context.Context, key string) (string, error) {
	value, ok := e.lookup(key)
	if !ok || value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}
