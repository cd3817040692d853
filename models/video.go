package models

import (
	"strings"
	"time"
)

// VideoSource records where a candidate video was observed
type VideoSource string

const (
	SourceSearch       VideoSource = "search"
	SourceTrendingFeed VideoSource = "trending_feed"
)

// VideoRecord is a single video as observed from the provider.
// The row in the videos table is the latest snapshot; Sources and TrendingRank
// describe the current collection run only.
type VideoRecord struct {
	ID             string        `gorm:"primaryKey;size:32" json:"video_id"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	ChannelID      string        `gorm:"index:idx_video_channel" json:"channel_id"`
	ChannelName    string        `json:"channel_name"`
	ChannelCountry string        `gorm:"size:8" json:"channel_country,omitempty"`
	Views          int64         `json:"views"`
	Likes          int64         `json:"likes"`
	Comments       int64         `json:"comments"`
	PublishedAt    time.Time     `gorm:"index:idx_video_published_at" json:"published_at"`
	Duration       time.Duration `json:"duration"`
	Tags           []string      `gorm:"serializer:json" json:"tags,omitempty"`
	CategoryID     string        `json:"category_id,omitempty"`
	ThumbnailURL   string        `json:"thumbnail_url,omitempty"`
	ObservedAt     time.Time     `json:"observed_at"` // zero when statistics were never observed
	Sources        []VideoSource `gorm:"-" json:"sources,omitempty"`
	TrendingRank   int           `gorm:"-" json:"trending_rank,omitempty"`
}

// TableName pins the snapshot table name
func (VideoRecord) TableName() string {
	return "videos"
}

// URL returns the public watch URL
func (v VideoRecord) URL() string {
	return "https://youtube.com/watch?v=" + v.ID
}

// HasSource reports whether the video was observed through src
func (v VideoRecord) HasSource(src VideoSource) bool {
	for _, s := range v.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// AddSource records src once
func (v *VideoRecord) AddSource(src VideoSource) {
	if !v.HasSource(src) {
		v.Sources = append(v.Sources, src)
	}
}

// InTrendingFeed reports membership in the official trending feed
func (v VideoRecord) InTrendingFeed() bool {
	return v.HasSource(SourceTrendingFeed)
}

// Merge folds another observation of the same video into v.
// Counts come from whichever observation is more recent, empty metadata
// fields are filled, sources are unioned and the best trending rank is kept.
func (v *VideoRecord) Merge(other VideoRecord) {
	if other.ObservedAt.After(v.ObservedAt) {
		v.Views = other.Views
		v.Likes = other.Likes
		v.Comments = other.Comments
		v.ObservedAt = other.ObservedAt
		if !other.PublishedAt.IsZero() {
			v.PublishedAt = other.PublishedAt
		}
		if other.Duration > 0 {
			v.Duration = other.Duration
		}
	}

	fillString(&v.Title, other.Title)
	fillString(&v.Description, other.Description)
	fillString(&v.ChannelID, other.ChannelID)
	fillString(&v.ChannelName, other.ChannelName)
	fillString(&v.ChannelCountry, other.ChannelCountry)
	fillString(&v.CategoryID, other.CategoryID)
	fillString(&v.ThumbnailURL, other.ThumbnailURL)
	if len(v.Tags) == 0 {
		v.Tags = other.Tags
	}
	if v.PublishedAt.IsZero() {
		v.PublishedAt = other.PublishedAt
	}

	for _, s := range other.Sources {
		v.AddSource(s)
	}
	if other.TrendingRank > 0 && (v.TrendingRank == 0 || other.TrendingRank < v.TrendingRank) {
		v.TrendingRank = other.TrendingRank
	}
}

func fillString(dst *string, src string) {
	if strings.TrimSpace(*dst) == "" && src != "" {
		*dst = src
	}
}

// TrendingFeedEntry is one row of the official trending feed for a country
type TrendingFeedEntry struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	VideoID    string    `gorm:"size:32;index:idx_feed_video" json:"video_id"`
	Country    string    `gorm:"size:2;index:idx_feed_country_captured,priority:1" json:"country"`
	Rank       int       `json:"rank"`
	Category   string    `json:"category,omitempty"`
	CapturedAt time.Time `gorm:"index:idx_feed_country_captured,priority:2" json:"captured_at"`
}

// TrendingVideo pairs a feed entry with the video it points to
type TrendingVideo struct {
	Entry TrendingFeedEntry `json:"entry"`
	Video VideoRecord       `json:"video"`
}
