package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"trends-backend/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestRelevanceRepositoryLoadCurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewRelevanceRepository(openTestDB(t))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, []models.CountryRelevanceScore{
		{VideoID: "a", Country: "DE", Score: 0.2, AnalyzedAt: now.Add(-30 * time.Hour)},
		{VideoID: "a", Country: "DE", Score: 0.4, AnalyzedAt: now.Add(-5 * time.Hour)},
		{VideoID: "a", Country: "DE", Score: 0.7, AnalyzedAt: now.Add(-time.Hour)},
		{VideoID: "a", Country: "FR", Score: 0.9, AnalyzedAt: now.Add(-time.Hour)},
		{VideoID: "b", Country: "DE", Score: 0.5, AnalyzedAt: now.Add(-48 * time.Hour)},
		{VideoID: "c", Country: "DE", Score: 0.3, AnalyzedAt: now.Add(-2 * time.Hour)},
	}))

	current, err := repo.LoadCurrent(ctx, "DE", []string{"a", "b", "c", "missing"}, now.Add(-24*time.Hour))
	require.NoError(t, err)

	assert.Len(t, current, 2)
	assert.Equal(t, 0.7, current["a"].Score, "newest row wins")
	assert.Equal(t, 0.3, current["c"].Score)
	_, stale := current["b"]
	assert.False(t, stale, "rows outside the validity window are ignored")
}

func TestFeedRepositoryRecentEntries(t *testing.T) {
	ctx := context.Background()
	repo := NewFeedRepository(openTestDB(t))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.AppendEntries(ctx, []models.TrendingFeedEntry{
		{VideoID: "old", Country: "US", Rank: 1, CapturedAt: now.Add(-10 * time.Hour)},
		{VideoID: "x", Country: "US", Rank: 4, CapturedAt: now.Add(-3 * time.Hour)},
		{VideoID: "x", Country: "US", Rank: 2, CapturedAt: now.Add(-time.Hour)},
		{VideoID: "y", Country: "US", Rank: 1, CapturedAt: now.Add(-time.Hour)},
		{VideoID: "z", Country: "JP", Rank: 1, CapturedAt: now.Add(-time.Hour)},
	}))

	entries, err := repo.RecentEntries(ctx, "US", now.Add(-4*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "y", entries[0].VideoID)
	assert.Equal(t, "x", entries[1].VideoID)
	assert.Equal(t, 2, entries[1].Rank, "latest capture is kept")
}

func TestFeedRepositoryUpsertVideos(t *testing.T) {
	ctx := context.Background()
	repo := NewFeedRepository(openTestDB(t))
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	v := models.VideoRecord{ID: "v1", Title: "first", Views: 10, Tags: []string{"a", "b"}, ObservedAt: now}
	require.NoError(t, repo.UpsertVideos(ctx, []models.VideoRecord{v}))

	v.Views = 99
	v.Title = "second"
	require.NoError(t, repo.UpsertVideos(ctx, []models.VideoRecord{v}))

	got, err := repo.Video(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, int64(99), got.Views)
	assert.Equal(t, "second", got.Title)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
}

func TestUsageRepositorySpendSince(t *testing.T) {
	ctx := context.Background()
	repo := NewUsageRepository(openTestDB(t))
	monthStart := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, &models.LLMUsageLog{RequestID: "1", CostEUR: 1.5, CreatedAt: monthStart.Add(-time.Hour)}))
	require.NoError(t, repo.Append(ctx, &models.LLMUsageLog{RequestID: "2", CostEUR: 0.25, CreatedAt: monthStart.Add(time.Hour)}))
	require.NoError(t, repo.Append(ctx, &models.LLMUsageLog{RequestID: "3", CostEUR: 0.5, CreatedAt: monthStart.Add(48 * time.Hour)}))

	spent, err := repo.SpendSince(ctx, monthStart)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, spent, 1e-9)

	empty, err := NewUsageRepository(openTestDB(t)).SpendSince(ctx, monthStart)
	require.NoError(t, err)
	assert.Zero(t, empty)
}
