package settings

import (
	"context"
	"errors"
)

var ErrSettingNotFound = errors.New("setting not found")

// Settings is operator configuration (event channel ids, payment
// requisites), not money state.
type Settings interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
