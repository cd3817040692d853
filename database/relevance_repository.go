package database

import (
	"context"
	"fmt"
	"time"

	"trends-backend/models"

	"gorm.io/gorm"
)

// sqlite caps bound parameters; IN lists are chunked below this
const maxInParams = 500

// RelevanceRepository stores append-only relevance judgments
type RelevanceRepository struct {
	db *gorm.DB
}

func NewRelevanceRepository(db *gorm.DB) *RelevanceRepository {
	return &RelevanceRepository{db: db}
}

// LoadCurrent returns the newest score per video for country analyzed at or after since
func (r *RelevanceRepository) LoadCurrent(ctx context.Context, country string, videoIDs []string, since time.Time) (map[string]models.CountryRelevanceScore, error) {
	current := make(map[string]models.CountryRelevanceScore, len(videoIDs))
	for start := 0; start < len(videoIDs); start += maxInParams {
		end := min(start+maxInParams, len(videoIDs))

		var rows []models.CountryRelevanceScore
		err := r.db.WithContext(ctx).
			Where("country = ? AND video_id IN ? AND analyzed_at >= ?", country, videoIDs[start:end], since).
			Order("analyzed_at ASC, id ASC").
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("load relevance scores: %w", err)
		}
		for _, row := range rows {
			current[row.VideoID] = row // later rows win
		}
	}
	return current, nil
}

// Append inserts new judgments; existing rows are never updated
func (r *RelevanceRepository) Append(ctx context.Context, scores []models.CountryRelevanceScore) error {
	if len(scores) == 0 {
		return nil
	}
	if err := r.db.WithContext(ctx).CreateInBatches(scores, 100).Error; err != nil {
		return fmt.Errorf("append relevance scores: %w", err)
	}
	return nil
}
