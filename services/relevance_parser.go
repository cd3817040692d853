package services

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"trends-backend/models"
)

const maxRationaleRunes = 300

var validate = validator.New(validator.WithRequiredStructEnabled())

// ErrMalformedReply is returned when the scoring reply is not the expected object
var ErrMalformedReply = errors.New("malformed relevance reply")

type relevanceEntry struct {
	VideoID    string   `json:"video_id" validate:"required,max=32"`
	Score      *float64 `json:"score" validate:"required,gte=0,lte=1"`
	Confidence *float64 `json:"confidence" validate:"required,gte=0,lte=1"`
	Rationale  string   `json:"rationale"`
	Origin     string   `json:"origin"`
}

type relevanceReply struct {
	Results *[]json.RawMessage `json:"results"`
}

type parsedRelevance struct {
	Score      float64
	Confidence float64
	Rationale  string
	Origin     string
}

// parseRelevanceReply decodes a scoring reply. Entries that fail validation,
// name an id that was not in the batch, or repeat an id are dropped and counted.
// A reply that is not an object with a results array fails as a whole.
func parseRelevanceReply(content string, batchIDs map[string]bool) (map[string]parsedRelevance, int, error) {
	var reply relevanceReply
	if err := json.Unmarshal([]byte(cleanJSONContent(content)), &reply); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}
	if reply.Results == nil {
		return nil, 0, fmt.Errorf("%w: missing results array", ErrMalformedReply)
	}

	out := make(map[string]parsedRelevance, len(*reply.Results))
	rejected := 0
	for _, raw := range *reply.Results {
		var e relevanceEntry
		if err := json.Unmarshal(raw, &e); err != nil {
			rejected++
			continue
		}
		e.VideoID = strings.TrimSpace(e.VideoID)
		if err := validate.Struct(e); err != nil {
			rejected++
			continue
		}
		if !batchIDs[e.VideoID] {
			rejected++
			continue
		}
		if _, dup := out[e.VideoID]; dup {
			rejected++
			continue
		}
		out[e.VideoID] = parsedRelevance{
			Score:      *e.Score,
			Confidence: *e.Confidence,
			Rationale:  truncateRationale(strings.TrimSpace(e.Rationale)),
			Origin:     normalizeOrigin(e.Origin),
		}
	}
	return out, rejected, nil
}

// normalizeOrigin accepts two-letter codes only
func normalizeOrigin(origin string) string {
	origin = strings.ToUpper(strings.TrimSpace(origin))
	if len(origin) != 2 {
		return models.OriginUnknown
	}
	for _, r := range origin {
		if r < 'A' || r > 'Z' {
			return models.OriginUnknown
		}
	}
	return origin
}

func truncateRationale(s string) string {
	if utf8.RuneCountInString(s) <= maxRationaleRunes {
		return s
	}
	return string([]rune(s)[:maxRationaleRunes])
}
