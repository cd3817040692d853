package database

import (
	"context"
	"fmt"
	"time"

	"trends-backend/models"

	"gorm.io/gorm"
)

// UsageRepository stores the LLM usage log
type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(db *gorm.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) Append(ctx context.Context, entry *models.LLMUsageLog) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append llm usage: %w", err)
	}
	return nil
}

// SpendSince sums the cost of every call made at or after since
func (r *UsageRepository) SpendSince(ctx context.Context, since time.Time) (float64, error) {
	var total float64
	err := r.db.WithContext(ctx).
		Model(&models.LLMUsageLog{}).
		Where("created_at >= ?", since).
		Select("COALESCE(SUM(cost_eur), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("sum llm spend: %w", err)
	}
	return total, nil
}
