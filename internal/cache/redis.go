package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/clinicore/scheduling/internal/domain"
)

// RedisCache keeps a short-lived JSON snapshot of a professional's
// bookings for a calendar day. It is a read cache only; slot
// exclusivity is never derived from it.
type RedisCache struct {
	client      *redis.Client
	scheduleTTL time.Duration
}

func NewRedisCache(client *redis.Client, scheduleTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, scheduleTTL: scheduleTTL}
}

func (c *RedisCache) GetDaySchedule(ctx context.Context, tenantID, professionalID uuid.UUID, day string) ([]domain.Booking, error) {
	data, err := c.client.Get(ctx, dayScheduleKey(tenantID, professionalID, day)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var bookings []domain.Booking
	if err := json.Unmarshal(data, &bookings); err != nil {
		return nil, err
	}
	return bookings, nil
}

func (c *RedisCache) SetDaySchedule(ctx context.Context, tenantID, professionalID uuid.UUID, day string, bookings []domain.Booking) error {
	payload, err := json.Marshal(bookings)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, dayScheduleKey(tenantID, professionalID, day), payload, c.scheduleTTL).Err()
}

// InvalidateDaySchedule drops the cached days touched by a booking
// mutation.
func (c *RedisCache) InvalidateDaySchedule(ctx context.Context, tenantID, professionalID uuid.UUID, days ...string) error {
	keys := make([]string, 0, len(days))
	for _, day := range days {
		keys = append(keys, dayScheduleKey(tenantID, professionalID, day))
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func dayScheduleKey(tenantID, professionalID uuid.UUID, day string) string {
	return fmt.Sprintf("schedule:%s:%s:%s", tenantID, professionalID, day)
}
