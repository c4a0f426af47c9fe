package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pixelcraft/concierge/internal/availability"
	"github.com/pixelcraft/concierge/pkg/logging"
)

const settingsCacheTTL = 5 * time.Minute

// CachedSettingsStore is a Redis read-through cache in front of a
// SettingsStore. Settings change rarely but are read on every
// availability request, so misses hit the database and hits skip it.
// Cache failures degrade to the underlying store, never to an error.
type CachedSettingsStore struct {
	inner  SettingsStore
	redis  *redis.Client
	logger *logging.Logger
}

// NewCachedSettingsStore wraps inner with a Redis cache.
func NewCachedSettingsStore(inner SettingsStore, client *redis.Client, logger *logging.Logger) *CachedSettingsStore {
	if inner == nil {
		panic("schedule: inner settings store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CachedSettingsStore{inner: inner, redis: client, logger: logger}
}

// Get returns cached settings, falling back to the inner store on a miss.
func (s *CachedSettingsStore) Get(ctx context.Context, businessID string) (*availability.Settings, error) {
	if s.redis != nil {
		data, err := s.redis.Get(ctx, settingsKey(businessID)).Bytes()
		if err == nil {
			var settings availability.Settings
			if err := json.Unmarshal(data, &settings); err == nil {
				return &settings, nil
			}
			// Corrupt entry; drop it and fall through.
			_ = s.redis.Del(ctx, settingsKey(businessID)).Err()
		} else if err != redis.Nil {
			s.logger.Warn("settings cache read failed", "error", err, "business_id", businessID)
		}
	}

	settings, err := s.inner.Get(ctx, businessID)
	if err != nil {
		return nil, err
	}

	if s.redis != nil {
		if data, err := json.Marshal(settings); err == nil {
			if err := s.redis.Set(ctx, settingsKey(businessID), data, settingsCacheTTL).Err(); err != nil {
				s.logger.Warn("settings cache write failed", "error", err, "business_id", businessID)
			}
		}
	}
	return settings, nil
}

// Upsert writes through to the inner store and invalidates the cache.
func (s *CachedSettingsStore) Upsert(ctx context.Context, settings availability.Settings) error {
	if err := s.inner.Upsert(ctx, settings); err != nil {
		return err
	}
	if s.redis != nil {
		if err := s.redis.Del(ctx, settingsKey(settings.BusinessID)).Err(); err != nil {
			s.logger.Warn("settings cache invalidate failed", "error", err, "business_id", settings.BusinessID)
		}
	}
	return nil
}

func settingsKey(businessID string) string {
	return fmt.Sprintf("appointment_settings:%s", businessID)
}

var _ SettingsStore = (*CachedSettingsStore)(nil)
