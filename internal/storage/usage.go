package storage

import (
	"context"

	"amora/server/internal/models"
)

// counterSource is the live intra-day counter backend (Redis).
type counterSource interface {
	Counters(ctx context.Context, userID string) (models.UsageCounters, error)
	IncrementMessages(ctx context.Context, userID string) (models.UsageCounters, error)
	IncrementScenes(ctx context.Context, userID string) (models.UsageCounters, error)
	MarkCharacterUsed(ctx context.Context, userID, characterID string) (models.UsageCounters, error)
	CharacterUsed(ctx context.Context, userID, characterID string) (bool, error)
}

// snapshotSource serves the last persisted counter snapshot (MySQL).
type snapshotSource interface {
	UsageSnapshot(ctx context.Context, userID string) (models.UsageCounters, error)
}

// UsageService reads counters from the live backend and falls back to the
// persisted snapshot when that read fails. The snapshot may be stale; the
// gate treats a non-today ResetDate as zero, so a stale fallback degrades to
// "fresh day", never to a wrong denial. Writes never fall back: an increment
// that cannot be recorded must fail, or a success would go uncharged.
type UsageService struct {
	live      counterSource
	snapshots snapshotSource
}

func NewUsageService(live *RedisStore, snapshots *MySQLStore) *UsageService {
	return &UsageService{live: live, snapshots: snapshots}
}

func (s *UsageService) Counters(ctx context.Context, userID string) (models.UsageCounters, error) {
	counters, err := s.live.Counters(ctx, userID)
	if err != nil {
		return s.snapshots.UsageSnapshot(ctx, userID)
	}
	return counters, nil
}

func (s *UsageService) IncrementMessages(ctx context.Context, userID string) (models.UsageCounters, error) {
	return s.live.IncrementMessages(ctx, userID)
}

func (s *UsageService) IncrementScenes(ctx context.Context, userID string) (models.UsageCounters, error) {
	return s.live.IncrementScenes(ctx, userID)
}

func (s *UsageService) MarkCharacterUsed(ctx context.Context, userID, characterID string) (models.UsageCounters, error) {
	return s.live.MarkCharacterUsed(ctx, userID, characterID)
}

func (s *UsageService) CharacterUsed(ctx context.Context, userID, characterID string) (bool, error) {
	return s.live.CharacterUsed(ctx, userID, characterID)
}
