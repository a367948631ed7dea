package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Vodeneev/raceodds/internal/oddsstore"
	"github.com/Vodeneev/raceodds/internal/pkg/config"
)

// RedisSink writes one key per race holding its latest cross-source odds.
// Keys expire after the configured TTL so races dropped from the store
// disappear on their own.
type RedisSink struct {
	client *redis.Client
	ttl    time.Duration
}

// RacePayload is the JSON value stored under RaceKey.
type RacePayload struct {
	RaceKey   string             `json:"race_key"`
	UpdatedAt time.Time          `json:"updated_at"`
	Runners   oddsstore.RaceOdds `json:"runners"`
}

// RaceKey is the redis key of a race.
func RaceKey(raceKey string) string {
	return "odds:" + raceKey
}

func NewRedisSink(cfg *config.RedisConfig) (*RedisSink, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Check connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisSink{client: client, ttl: cfg.TTL}, nil
}

func (r *RedisSink) Name() string { return "redis" }

// Publish sets every race key in a single pipeline.
func (r *RedisSink) Publish(ctx context.Context, odds *oddsstore.Odds) error {
	payloads, err := EncodeRaces(odds)
	if err != nil {
		return err
	}
	if len(payloads) == 0 {
		return nil
	}

	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, data := range payloads {
			pipe.Set(ctx, RaceKey(key), data, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis pipeline: %w", err)
	}
	return nil
}

// EncodeRaces renders the JSON payload of every race keyed by race key.
func EncodeRaces(odds *oddsstore.Odds) (map[string][]byte, error) {
	out := make(map[string][]byte, len(odds.Races))
	for key, race := range odds.Races {
		data, err := json.Marshal(RacePayload{RaceKey: key, UpdatedAt: odds.UpdatedAt, Runners: race})
		if err != nil {
			return nil, fmt.Errorf("failed to marshal race %s: %w", key, err)
		}
		out[key] = data
	}
	return out, nil
}

// Close closes connection with Redis
func (r *RedisSink) Close() error {
	return r.client.Close()
}
