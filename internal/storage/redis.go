package storage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"

	"amora/server/internal/config"
	"amora/server/internal/models"
)

// RedisStore keeps the authoritative intra-day usage counters. Counters live
// in a per-user hash keyed by the current UTC date and expire shortly after
// the next UTC midnight, so a new day starts from zero without a reset job.
// MySQL only holds best-effort snapshots of these values.
type RedisStore struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisStore(cfg config.RedisConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisStore{client: client, now: time.Now}, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

const (
	usageFieldMessages   = "messages_sent"
	usageFieldScenes     = "scenes_used"
	usageCharacterSetTTL = 48 * time.Hour
)

func (s *RedisStore) usageKey(userID string, day time.Time) string {
	return fmt.Sprintf("usage:%s:%s", userID, day.Format(models.DateLayout))
}

func (s *RedisStore) charactersKey(userID string, day time.Time) string {
	return fmt.Sprintf("usage:%s:%s:characters", userID, day.Format(models.DateLayout))
}

// Counters reads today's usage. Missing keys read as zero, which is exactly
// a fresh day.
func (s *RedisStore) Counters(ctx context.Context, userID string) (models.UsageCounters, error) {
	today := s.now().UTC()
	usage := models.UsageCounters{
		UserID:    userID,
		ResetDate: today.Format(models.DateLayout),
	}

	fields, err := s.client.HGetAll(ctx, s.usageKey(userID, today)).Result()
	if err != nil {
		return usage, fmt.Errorf("read usage hash: %w", err)
	}
	if v, ok := fields[usageFieldMessages]; ok {
		usage.MessagesSentToday, _ = strconv.Atoi(v)
	}
	if v, ok := fields[usageFieldScenes]; ok {
		usage.ScenesUsedToday, _ = strconv.Atoi(v)
	}

	characters, err := s.client.SCard(ctx, s.charactersKey(userID, today)).Result()
	if err != nil {
		return usage, fmt.Errorf("read character set: %w", err)
	}
	usage.CharactersUsed = int(characters)

	return usage, nil
}

// IncrementMessages charges one message and returns the updated counters.
func (s *RedisStore) IncrementMessages(ctx context.Context, userID string) (models.UsageCounters, error) {
	return s.increment(ctx, userID, usageFieldMessages)
}

// IncrementScenes charges one story scene and returns the updated counters.
func (s *RedisStore) IncrementScenes(ctx context.Context, userID string) (models.UsageCounters, error) {
	return s.increment(ctx, userID, usageFieldScenes)
}

func (s *RedisStore) increment(ctx context.Context, userID, field string) (models.UsageCounters, error) {
	today := s.now().UTC()
	key := s.usageKey(userID, today)

	pipe := s.client.TxPipeline()
	pipe.HIncrBy(ctx, key, field, 1)
	pipe.ExpireAt(ctx, key, nextMidnight(today).Add(time.Hour))
	if _, err := pipe.Exec(ctx); err != nil {
		return models.UsageCounters{}, fmt.Errorf("increment %s: %w", field, err)
	}

	return s.Counters(ctx, userID)
}

// CharacterUsed reports whether the character already counts against today's
// distinct-character slot.
func (s *RedisStore) CharacterUsed(ctx context.Context, userID, characterID string) (bool, error) {
	used, err := s.client.SIsMember(ctx, s.charactersKey(userID, s.now().UTC()), characterID).Result()
	if err != nil {
		return false, fmt.Errorf("check character set: %w", err)
	}
	return used, nil
}

// MarkCharacterUsed records a distinct character for today. Re-selecting the
// same character does not consume another slot.
func (s *RedisStore) MarkCharacterUsed(ctx context.Context, userID, characterID string) (models.UsageCounters, error) {
	today := s.now().UTC()
	key := s.charactersKey(userID, today)

	pipe := s.client.TxPipeline()
	pipe.SAdd(ctx, key, characterID)
	pipe.Expire(ctx, key, usageCharacterSetTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return models.UsageCounters{}, fmt.Errorf("mark character used: %w", err)
	}

	return s.Counters(ctx, userID)
}

func nextMidnight(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, time.UTC)
}
