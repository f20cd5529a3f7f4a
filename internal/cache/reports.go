// Package cache keeps computed position reports in Redis so repeated
// report requests skip the ledger replay.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/trogers1052/trade-ledger/internal/accounting"
	"github.com/trogers1052/trade-ledger/internal/models"
)

const keyPrefix = "ledger:report:"

// ReportCache stores PositionReports keyed by cost policy and instrument.
// Reads only see reports computed under the cache's policy.
type ReportCache struct {
	client *redis.Client
	ttl    time.Duration
	policy accounting.CostPolicy
	log    zerolog.Logger
}

// New connects to Redis at addr and verifies the connection
func New(ctx context.Context, addr, password string, db int, ttl time.Duration, policy accounting.CostPolicy, log zerolog.Logger) (*ReportCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewWithClient(client, ttl, policy, log), nil
}

// NewWithClient wraps an existing client
func NewWithClient(client *redis.Client, ttl time.Duration, policy accounting.CostPolicy, log zerolog.Logger) *ReportCache {
	return &ReportCache{
		client: client,
		ttl:    ttl,
		policy: policy,
		log:    log.With().Str("component", "cache").Str("policy", policy.String()).Logger(),
	}
}

// Key returns the Redis key for an instrument's report under a policy
func Key(policy, instrument string) string {
	return keyPrefix + policy + ":" + instrument
}

// Get returns the cached report, or nil on a miss
func (c *ReportCache) Get(ctx context.Context, instrument string) (*models.PositionReport, error) {
	data, err := c.client.Get(ctx, Key(c.policy.String(), instrument)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cached report: %w", err)
	}

	var report models.PositionReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("failed to decode cached report: %w", err)
	}
	return &report, nil
}

// Set stores a report under the policy it was computed with
func (c *ReportCache) Set(ctx context.Context, report *models.PositionReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}
	if err := c.client.Set(ctx, Key(report.Policy, report.Instrument), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache report: %w", err)
	}
	c.log.Debug().Str("instrument", report.Instrument).Dur("ttl", c.ttl).Msg("Cached report")
	return nil
}

// Invalidate drops the cached reports of an instrument under every policy
func (c *ReportCache) Invalidate(ctx context.Context, instrument string) error {
	keys := make([]string, 0, len(accounting.Policies))
	for _, p := range accounting.Policies {
		keys = append(keys, Key(p.String(), instrument))
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to invalidate report: %w", err)
	}
	return nil
}

// Ping checks that Redis is reachable
func (c *ReportCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (c *ReportCache) Close() error {
	return c.client.Close()
}
