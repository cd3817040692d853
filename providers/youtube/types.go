package youtube

import (
	"strconv"
	"strings"
	"time"

	"trends-backend/models"
)

type thumbnail struct {
	URL string `json:"url"`
}

type snippet struct {
	PublishedAt          time.Time            `json:"publishedAt"`
	ChannelID            string               `json:"channelId"`
	Title                string               `json:"title"`
	Description          string               `json:"description"`
	ChannelTitle         string               `json:"channelTitle"`
	Thumbnails           map[string]thumbnail `json:"thumbnails"`
	Tags                 []string             `json:"tags"`
	CategoryID           string               `json:"categoryId"`
	DefaultLanguage      string               `json:"defaultLanguage"`
	DefaultAudioLanguage string               `json:"defaultAudioLanguage"`
}

type searchListResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID struct {
			VideoID string `json:"videoId"`
		} `json:"id"`
		Snippet snippet `json:"snippet"`
	} `json:"items"`
}

type statistics struct {
	ViewCount    string `json:"viewCount"`
	LikeCount    string `json:"likeCount"`
	CommentCount string `json:"commentCount"`
}

type videoItem struct {
	ID             string     `json:"id"`
	Snippet        snippet    `json:"snippet"`
	Statistics     statistics `json:"statistics"`
	ContentDetails struct {
		Duration string `json:"duration"`
	} `json:"contentDetails"`
}

type videoListResponse struct {
	NextPageToken string      `json:"nextPageToken"`
	Items         []videoItem `json:"items"`
}

type apiErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
		} `json:"errors"`
	} `json:"error"`
}

func (s snippet) toRecord(id string) models.VideoRecord {
	return models.VideoRecord{
		ID:             id,
		Title:          s.Title,
		Description:    s.Description,
		ChannelID:      s.ChannelID,
		ChannelName:    s.ChannelTitle,
		ChannelCountry: languageCountry(s.DefaultAudioLanguage, s.DefaultLanguage),
		PublishedAt:    s.PublishedAt.UTC(),
		Tags:           s.Tags,
		CategoryID:     s.CategoryID,
		ThumbnailURL:   bestThumbnail(s.Thumbnails),
	}
}

func (v videoItem) toRecord(observedAt time.Time) models.VideoRecord {
	rec := v.Snippet.toRecord(v.ID)
	rec.Views = parseCount(v.Statistics.ViewCount)
	rec.Likes = parseCount(v.Statistics.LikeCount)
	rec.Comments = parseCount(v.Statistics.CommentCount)
	rec.Duration = parseISODuration(v.ContentDetails.Duration)
	rec.ObservedAt = observedAt
	return rec
}

func parseCount(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func bestThumbnail(thumbs map[string]thumbnail) string {
	for _, size := range []string{"high", "medium", "default"} {
		if t, ok := thumbs[size]; ok && t.URL != "" {
			return t.URL
		}
	}
	return ""
}

var languageCountries = map[string]string{
	"de": "DE",
	"fr": "FR",
	"ja": "JP",
}

// languageCountry derives a country from a BCP-47 tag: the region subtag when
// present, otherwise a known single-country language.
func languageCountry(tags ...string) string {
	for _, tag := range tags {
		if tag == "" {
			continue
		}
		parts := strings.FieldsFunc(tag, func(r rune) bool { return r == '-' || r == '_' })
		if len(parts) > 1 && len(parts[1]) == 2 {
			return strings.ToUpper(parts[1])
		}
		if cc, ok := languageCountries[strings.ToLower(parts[0])]; ok {
			return cc
		}
	}
	return ""
}

// parseISODuration handles the PnDTnHnMnS subset the API returns
func parseISODuration(s string) time.Duration {
	if !strings.HasPrefix(s, "P") {
		return 0
	}
	var total time.Duration
	var num int64
	inTime := false
	for _, r := range s[1:] {
		switch {
		case r >= '0' && r <= '9':
			num = num*10 + int64(r-'0')
			continue
		case r == 'T':
			inTime = true
		case r == 'W':
			total += time.Duration(num) * 7 * 24 * time.Hour
		case r == 'D':
			total += time.Duration(num) * 24 * time.Hour
		case r == 'H' && inTime:
			total += time.Duration(num) * time.Hour
		case r == 'M' && inTime:
			total += time.Duration(num) * time.Minute
		case r == 'S' && inTime:
			total += time.Duration(num) * time.Second
		default:
			return 0
		}
		num = 0
	}
	return total
}
