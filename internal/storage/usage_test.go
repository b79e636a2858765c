package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"amora/server/internal/models"
)

type fakeCounters struct {
	counters models.UsageCounters
	err      error
}

func (f *fakeCounters) Counters(context.Context, string) (models.UsageCounters, error) {
	return f.counters, f.err
}

func (f *fakeCounters) IncrementMessages(context.Context, string) (models.UsageCounters, error) {
	if f.err != nil {
		return models.UsageCounters{}, f.err
	}
	f.counters.MessagesSentToday++
	return f.counters, nil
}

func (f *fakeCounters) IncrementScenes(context.Context, string) (models.UsageCounters, error) {
	if f.err != nil {
		return models.UsageCounters{}, f.err
	}
	f.counters.ScenesUsedToday++
	return f.counters, nil
}

func (f *fakeCounters) MarkCharacterUsed(context.Context, string, string) (models.UsageCounters, error) {
	return f.counters, f.err
}

func (f *fakeCounters) CharacterUsed(context.Context, string, string) (bool, error) {
	return false, f.err
}

type fakeSnapshots struct {
	snapshot models.UsageCounters
	reads    int
}

func (f *fakeSnapshots) UsageSnapshot(context.Context, string) (models.UsageCounters, error) {
	f.reads++
	return f.snapshot, nil
}

func TestUsageServicePrefersLiveCounters(t *testing.T) {
	live := &fakeCounters{counters: models.UsageCounters{
		MessagesSentToday: 7,
		ResetDate:         time.Now().UTC().Format(models.DateLayout),
	}}
	snapshots := &fakeSnapshots{}
	svc := &UsageService{live: live, snapshots: snapshots}

	counters, err := svc.Counters(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 7, counters.MessagesSentToday)
	assert.Zero(t, snapshots.reads)
}

func TestUsageServiceFallsBackToSnapshot(t *testing.T) {
	live := &fakeCounters{err: errors.New("connection refused")}
	snapshots := &fakeSnapshots{snapshot: models.UsageCounters{
		UserID:            "u-1",
		MessagesSentToday: 12,
		ResetDate:         "2025-06-14",
	}}
	svc := &UsageService{live: live, snapshots: snapshots}

	counters, err := svc.Counters(context.Background(), "u-1")
	require.NoError(t, err)
	assert.Equal(t, 12, counters.MessagesSentToday)
	assert.Equal(t, 1, snapshots.reads)
}

func TestUsageServiceWritesNeverFallBack(t *testing.T) {
	live := &fakeCounters{err: errors.New("connection refused")}
	snapshots := &fakeSnapshots{}
	svc := &UsageService{live: live, snapshots: snapshots}

	_, err := svc.IncrementMessages(context.Background(), "u-1")
	assert.Error(t, err, "an unrecorded increment must fail, not fall back")
	assert.Zero(t, snapshots.reads)
}
