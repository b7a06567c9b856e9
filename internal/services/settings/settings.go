// Package settings serves operator configuration (event channel ids,
// payment requisites, support links) with a short-TTL advisory cache. Money
// state never lives here.
package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/stakehaus/bankroll/internal/repos/settings"
	pgsettings "github.com/stakehaus/bankroll/internal/repos/settings/postgres"
)

// Well-known keys.
const (
	KeyDuelLogChannel = "duel_log_channel"
	KeyGameLogChannel = "game_log_channel"
	KeySupportURL     = "support_url"
	KeyCryptoBot      = "crypto_bot"
	KeyRocketBot      = "rocket_bot"
)

const cacheTTL = 5 * time.Minute

type Service struct {
	repo  settings.Settings
	cache *gocache.Cache
}

func New(db *sql.DB) *Service {
	return &Service{
		repo:  pgsettings.New(db),
		cache: gocache.New(cacheTTL, 10*time.Minute),
	}
}

// Get returns the stored value, or fallback when the key is unset.
func (s *Service) Get(ctx context.Context, key, fallback string) (string, error) {
	if v, ok := s.cache.Get(key); ok {
		return v.(string), nil
	}

	v, err := s.repo.Get(ctx, key)
	if err != nil {
		if errors.Is(err, settings.ErrSettingNotFound) {
			return fallback, nil
		}

		return "", fmt.Errorf("get setting %q: %w", key, err)
	}

	s.cache.SetDefault(key, v)
	return v, nil
}

func (s *Service) Set(ctx context.Context, key, value string) error {
	err := s.repo.Set(ctx, key, value)
	if err != nil {
		return fmt.Errorf("set setting %q: %w", key, err)
	}

	s.cache.SetDefault(key, value)
	return nil
}
