package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/examguard-api/internal/dto"
)

const defaultSeatingCacheTTL = 5 * time.Minute

// SeatingPlanCache stores rendered seating plans keyed by exam.
type SeatingPlanCache interface {
	Get(ctx context.Context, examID uint) (dto.SeatingPlanResponse, bool)
	Set(ctx context.Context, examID uint, plan dto.SeatingPlanResponse)
	Invalidate(ctx context.Context, examID uint)
}

type redisSeatingPlanCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// NewSeatingPlanCache returns a Redis backed cache, or a no-op cache when
// client is nil.
func NewSeatingPlanCache(client *redis.Client, ttl time.Duration, logger zerolog.Logger) SeatingPlanCache {
	if client == nil {
		return noopSeatingPlanCache{}
	}
	if ttl <= 0 {
		ttl = defaultSeatingCacheTTL
	}
	return &redisSeatingPlanCache{
		client: client,
		ttl:    ttl,
		logger: logger.With().Str("component", "seating_plan_cache").Logger(),
	}
}

func seatingCacheKey(examID uint) string {
	return fmt.Sprintf("seating:plan:exam:%d", examID)
}

func (c *redisSeatingPlanCache) Get(ctx context.Context, examID uint) (dto.SeatingPlanResponse, bool) {
	cached, err := c.client.Get(ctx, seatingCacheKey(examID)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn().Err(err).Uint("exam_id", examID).Msg("failed to read seating plan cache")
		}
		return dto.SeatingPlanResponse{}, false
	}

	var plan dto.SeatingPlanResponse
	if err := json.Unmarshal([]byte(cached), &plan); err != nil {
		c.logger.Warn().Err(err).Uint("exam_id", examID).Msg("discarding corrupt seating plan cache entry")
		return dto.SeatingPlanResponse{}, false
	}
	return plan, true
}

func (c *redisSeatingPlanCache) Set(ctx context.Context, examID uint, plan dto.SeatingPlanResponse) {
	payload, err := json.Marshal(plan)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, seatingCacheKey(examID), payload, c.ttl).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("exam_id", examID).Msg("failed to store seating plan cache")
	}
}

func (c *redisSeatingPlanCache) Invalidate(ctx context.Context, examID uint) {
	if err := c.client.Del(ctx, seatingCacheKey(examID)).Err(); err != nil {
		c.logger.Warn().Err(err).Uint("exam_id", examID).Msg("failed to invalidate seating plan cache")
	}
}

type noopSeatingPlanCache struct{}

func (noopSeatingPlanCache) Get(context.Context, uint) (dto.SeatingPlanResponse, bool) {
	return dto.SeatingPlanResponse{}, false
}

func (noopSeatingPlanCache) Set(context.Context, uint, dto.SeatingPlanResponse) {}

func (noopSeatingPlanCache) Invalidate(context.Context, uint) {}
