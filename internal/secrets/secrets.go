package secrets

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Well-known secret keys.
const (
	SlackWebhook  = "slack_webhook"
	AlchemyAPIKey = "alchemy_api_key"
)

// ErrNotFound indicates a secret that is absent or empty.
var ErrNotFound = errors.New("secret not found")

// Store resolves named secrets.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
}

// Map is a Store over a fixed set of values, typically the config "secrets" section.
// Keys are matched case-insensitively.
type Map map[string]string

// Get returns the secret for key or ErrNotFound.
func (m Map) Get(_ context.Context, key string) (string, error) {
	for k, v := range m {
		if strings.EqualFold(k, key) && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, key)
}

var _ Store = Map(nil)
