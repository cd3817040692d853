package prompts

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"trends-backend/config"
	"trends-backend/models"
)

// RelevanceScoringPrompt is the system prompt for country relevance scoring
const RelevanceScoringPrompt = `You are an expert in YouTube audiences and regional culture.
You judge how relevant each video is for viewers in one specific country.
Return ONLY a valid JSON object with no additional text, no markdown.

Output schema:
{
  "results": [
    {
      "video_id": "<id exactly as given>",
      "score": <number between 0.0 and 1.0>,
      "confidence": <number between 0.0 and 1.0>,
      "rationale": "<one short sentence>",
      "origin": "<ISO 3166-1 alpha-2 country the video most likely comes from, or UNKNOWN>"
    }
  ]
}

Rules:
1. Include exactly one entry per video listed, using the given video_id
2. score 0.0 means irrelevant for the country, 1.0 means made for its audience
3. Judge language, creator, cultural references and topic together
4. Keep each rationale under 200 characters`

// TermExpansionPrompt is the system prompt for localized search-term expansion
const TermExpansionPrompt = `You generate YouTube search queries that local viewers in a given country would type.
Return ONLY a valid JSON object with no additional text, no markdown:
{"terms": ["<query>", "..."]}

Rules:
1. Write queries in the country's language and script where natural
2. Keep each query under 60 characters
3. Do not repeat the original topic verbatim
4. Prefer terms that surface recent, popular uploads`

const maxDescriptionRunes = 200

// BuildRelevancePrompt renders the user message for one scoring batch
func BuildRelevancePrompt(country config.CountryProfile, videos []models.VideoRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Country: %s (%s)\n", country.Name, country.Code)
	fmt.Fprintf(&b, "Prime time: %s %s\n\n", country.PrimeTime(), country.Timezone)

	b.WriteString("Relevance criteria:\n")
	for _, c := range country.RelevanceCriteria {
		fmt.Fprintf(&b, "- %s\n", c)
	}
	if len(country.CulturalKeywords) > 0 {
		fmt.Fprintf(&b, "Cultural keywords: %s\n", strings.Join(country.CulturalKeywords, ", "))
	}

	fmt.Fprintf(&b, "\nVideos (%d):\n", len(videos))
	for i, v := range videos {
		fmt.Fprintf(&b, "%d. video_id: %s\n", i+1, v.ID)
		fmt.Fprintf(&b, "   title: %s\n", oneLine(v.Title))
		fmt.Fprintf(&b, "   channel: %s\n", oneLine(v.ChannelName))
		if d := truncateRunes(oneLine(v.Description), maxDescriptionRunes); d != "" {
			fmt.Fprintf(&b, "   description: %s\n", d)
		}
		fmt.Fprintf(&b, "   views: %d\n", v.Views)
		if !v.PublishedAt.IsZero() {
			fmt.Fprintf(&b, "   uploaded: %s\n", v.PublishedAt.UTC().Format("2006-01-02 15:04 MST"))
		}
	}
	return b.String()
}

// BuildExpansionPrompt renders the user message for term expansion
func BuildExpansionPrompt(topic string, country config.CountryProfile, window models.Window, max int) string {
	return fmt.Sprintf("Topic: %s\nCountry: %s (%s), language: %s\nTime window: last %s\nReturn up to %d search queries.",
		topic, country.Name, country.Code, country.Language, window, max)
}

// EstimateTokens approximates the token count of text at four characters per token
func EstimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}
