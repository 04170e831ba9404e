// Package secrets resolves secret references in configuration values.
//
// A value of the form "env:NAME" is read from the environment and
// "file:/path" is read from disk, which covers Docker and Kubernetes
// mounted secrets. Any other value is returned unchanged.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSecretNotFound is returned when a reference names no secret.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrEmptyRef is returned for a reference with a scheme but no key.
	ErrEmptyRef = errors.New("empty secret reference")
)

// Provider retrieves secrets by key.
type Provider interface {
	// Name is the reference scheme the provider serves.
	Name() string
	Get(ctx context.Context, key string) (string, error)
}

// Resolver dispatches references to providers by scheme.
type Resolver struct {
	providers map[string]Provider
}

// NewResolver returns a Resolver serving the given providers.
func NewResolver(providers ...Provider) *Resolver {
	r := &Resolver{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// DefaultResolver serves the env and file schemes.
func DefaultResolver() *Resolver {
	return NewResolver(NewEnvProvider(), NewFileProvider())
}

// IsRef reports whether value uses a scheme r can resolve.
func (r *Resolver) IsRef(value string) bool {
	scheme, _, ok := strings.Cut(value, ":")
	if !ok {
		return false
	}
	_, known := r.providers[scheme]
	return known
}

// Resolve returns the secret behind value, or value itself when it is not
// a reference.
func (r *Resolver) Resolve(ctx context.Context, value string) (string, error) {
	scheme, key, ok := strings.Cut(value, ":")
	if !ok {
		return value, nil
	}
	p, known := r.providers[scheme]
	if !known {
		return value, nil
	}
	if strings.TrimSpace(key) == "" {
		return "", fmt.Errorf("%s: %w", scheme, ErrEmptyRef)
	}
	secret, err := p.Get(ctx, key)
	if err != nil {
		return "", fmt.Errorf("%s secret %q: %w", scheme, key, err)
	}
	return secret, nil
}
