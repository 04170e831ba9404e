package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// FileProvider retrieves secrets from files on disk, one secret per file.
type FileProvider struct{}

// NewFileProvider creates a new file-based secret provider.
func NewFileProvider() *FileProvider {
	return &FileProvider{}
}

// Name returns the provider name.
func (f *FileProvider) Name() string {
	return "file"
}

// Get reads the file at path key.
func (f *FileProvider) Get(ctx context.Context, key string) (string, error) {
	data, err := os.ReadFile(key)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("failed to read secret file: %w", err)
	}

	// Trim trailing newline (common in Docker/K8s secrets)
	value := strings.TrimRight(string(data), "\n\r")
	if value == "" {
		return "", ErrSecretNotFound
	}
	return value, nil
}
