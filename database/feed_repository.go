package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"trends-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FeedRepository stores trending feed captures and video snapshots
type FeedRepository struct {
	db *gorm.DB
}

func NewFeedRepository(db *gorm.DB) *FeedRepository {
	return &FeedRepository{db: db}
}

// AppendEntries records one feed pull
func (r *FeedRepository) AppendEntries(ctx context.Context, entries []models.TrendingFeedEntry) error {
	if len(entries) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(entries, 100).Error; err != nil {
		return fmt.Errorf("append feed entries: %w", err)
	}
	return nil
}

// RecentEntries returns the latest capture of each video for country newer
// than since, ordered by rank
func (r *FeedRepository) RecentEntries(ctx context.Context, country string, since time.Time) ([]models.TrendingFeedEntry, error) {
	var rows []models.TrendingFeedEntry
	err := r.db.WithContext(ctx).
		Where("country = ? AND captured_at >= ?", country, since).
		Order("captured_at DESC, rank ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load feed entries: %w", err)
	}

	seen := make(map[string]bool, len(rows))
	latest := rows[:0]
	for _, row := range rows {
		if seen[row.VideoID] {
			continue
		}
		seen[row.VideoID] = true
		latest = append(latest, row)
	}
	sort.SliceStable(latest, func(i, j int) bool {
		return latest[i].Rank < latest[j].Rank
	})
	return latest, nil
}

// UpsertVideos writes the latest snapshot of each video
func (r *FeedRepository) UpsertVideos(ctx context.Context, videos []models.VideoRecord) error {
	if len(videos) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{UpdateAll: true}).
		CreateInBatches(videos, 100).Error
	if err != nil {
		return fmt.Errorf("upsert videos: %w", err)
	}
	return nil
}

// Video loads one stored snapshot
func (r *FeedRepository) Video(ctx context.Context, id string) (*models.VideoRecord, error) {
	var v models.VideoRecord
	if err := r.db.WithContext(ctx).First(&v, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("load video %s: %w", id, err)
	}
	return &v, nil
}
