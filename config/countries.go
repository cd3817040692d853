package config

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// CountryProfile describes everything country-specific the pipeline needs
type CountryProfile struct {
	Code     string
	Name     string
	Language string // ISO 639-1, used as relevanceLanguage for searches
	Timezone string

	PrimeTimeStart int
	PrimeTimeEnd   int

	// VariantTemplates always apply; ExtraTemplates only when the topic is not a
	// stop word and, if ExtraSingleWordOnly is set, is a single word.
	VariantTemplates    []string
	ExtraTemplates      []string
	ExtraSingleWordOnly bool
	StopWords           []string

	RelevanceCriteria  []string
	LanguageIndicators []string
	CulturalKeywords   []string

	// CategoryTerms are localized tier 2 terms per category
	CategoryTerms map[string][]string
	// TrendingTerms are generic tier 3 terms
	TrendingTerms []string
}

// CountryTable maps upper-case ISO codes to profiles
type CountryTable map[string]CountryProfile

// Lookup finds a profile by code, case-insensitively
func (t CountryTable) Lookup(code string) (CountryProfile, bool) {
	p, ok := t[strings.ToUpper(strings.TrimSpace(code))]
	return p, ok
}

// Codes returns the supported codes sorted
func (t CountryTable) Codes() []string {
	codes := make([]string, 0, len(t))
	for c := range t {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

// Location returns the profile's time zone, UTC when unknown
func (p CountryProfile) Location() *time.Location {
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// PrimeTime renders the prime-time window, e.g. "19:00-22:00"
func (p CountryProfile) PrimeTime() string {
	return fmt.Sprintf("%02d:00-%02d:00", p.PrimeTimeStart, p.PrimeTimeEnd)
}

// LocalVariants renders the static search variants for topic, excluding the
// topic itself, in template order and capped at max (max <= 0 means no cap).
func (p CountryProfile) LocalVariants(topic string, max int) []string {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil
	}

	templates := append([]string(nil), p.VariantTemplates...)
	lower := strings.ToLower(topic)
	if !containsFold(p.StopWords, lower) && (!p.ExtraSingleWordOnly || len(strings.Fields(topic)) == 1) {
		templates = append(templates, p.ExtraTemplates...)
	}

	seen := map[string]bool{lower: true}
	var out []string
	for _, tpl := range templates {
		v := fmt.Sprintf(tpl, topic)
		key := strings.ToLower(v)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out
}

// CategoriesFor infers the categories a topic belongs to, sorted by name
func (p CountryProfile) CategoriesFor(topic string) []string {
	lower := strings.ToLower(topic)
	tokens := strings.Fields(lower)

	var cats []string
	for cat, keywords := range categoryKeywords {
		if _, ok := p.CategoryTerms[cat]; !ok {
			continue
		}
		if matchesAny(lower, tokens, keywords) || matchesAny(lower, tokens, p.CategoryTerms[cat]) {
			cats = append(cats, cat)
		}
	}
	sort.Strings(cats)
	return cats
}

// CategoryTermsFor returns the tier 2 terms for topic
func (p CountryProfile) CategoryTermsFor(topic string) []string {
	var terms []string
	for _, cat := range p.CategoriesFor(topic) {
		terms = append(terms, p.CategoryTerms[cat]...)
	}
	return terms
}

func matchesAny(lower string, tokens, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		if strings.Contains(kw, " ") {
			if strings.Contains(lower, kw) {
				return true
			}
			continue
		}
		for _, t := range tokens {
			if t == kw {
				return true
			}
		}
	}
	return false
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// categoryKeywords are language-neutral hints used to infer a topic's category
var categoryKeywords = map[string][]string{
	"gaming": {"gaming", "game", "games", "gameplay", "esports", "minecraft", "fortnite", "nintendo", "playstation", "xbox", "lets play", "speedrun"},
	"music":  {"music", "song", "songs", "album", "concert", "rap", "pop", "jpop", "kpop", "lyrics", "singer"},
	"sports": {"football", "soccer", "basketball", "baseball", "nfl", "nba", "mlb", "bundesliga", "ligue 1", "sumo", "tennis", "f1", "formula 1"},
	"news":   {"news", "politics", "election", "breaking", "war", "economy"},
	"comedy": {"comedy", "funny", "prank", "sketch", "standup", "meme", "memes"},
	"food":   {"food", "recipe", "cooking", "ramen", "sushi", "baking", "restaurant"},
	"tech":   {"tech", "technology", "iphone", "android", "ai", "smartphone", "review", "unboxing", "laptop"},
	"travel": {"travel", "vlog", "trip", "tour", "hotel"},
	"anime":  {"anime", "manga", "cosplay", "vtuber"},
}

// DefaultCountries returns the built-in country table
func DefaultCountries() CountryTable {
	return CountryTable{
		"DE": {
			Code:           "DE",
			Name:           "Germany",
			Language:       "de",
			Timezone:       "Europe/Berlin",
			PrimeTimeStart: 19,
			PrimeTimeEnd:   22,
			VariantTemplates: []string{
				"%s deutsch", "deutsche %s", "%s germany", "%s deutschland",
			},
			ExtraTemplates: []string{"deutsches %s", "%s auf deutsch", "%s german"},
			StopWords:      []string{"der", "die", "das", "und", "oder"},
			RelevanceCriteria: []string{
				"German language content (Deutsch) or German subtitles",
				"German YouTubers or Germany-focused content",
				"Discussion in German communities (German comments)",
				"Topics relevant for a German audience (culture, news, entertainment)",
				"Views and engagement during German prime time (19-22 Uhr MEZ/MESZ)",
				"German cultural references, humor and context",
				"Content about German cities, events or personalities",
			},
			LanguageIndicators: []string{"deutsch", "german", "germany", "deutschland", "berlin", "münchen", "hamburg", "köln", "frankfurt", "bayern"},
			CulturalKeywords:   []string{"bundesliga", "oktoberfest", "bratwurst", "bier", "autobahn", "currywurst", "döner"},
			CategoryTerms: map[string][]string{
				"gaming": {"gaming deutsch", "lets play deutsch"},
				"music":  {"deutsche musik", "deutschrap"},
				"sports": {"fußball", "bundesliga highlights"},
				"news":   {"nachrichten", "politik deutschland"},
				"comedy": {"comedy deutsch"},
				"food":   {"rezept deutsch", "kochen"},
				"tech":   {"technik deutsch", "test deutsch"},
				"travel": {"reise vlog deutsch"},
				"anime":  {"anime deutsch"},
			},
			TrendingTerms: []string{"trends deutschland", "aktuell", "viral deutschland"},
		},
		"US": {
			Code:           "US",
			Name:           "USA",
			Language:       "en",
			Timezone:       "America/New_York",
			PrimeTimeStart: 20,
			PrimeTimeEnd:   23,
			VariantTemplates: []string{
				"%s america", "american %s", "%s usa", "%s us",
			},
			ExtraTemplates:      []string{"%s united states", "%s american style", "us %s"},
			ExtraSingleWordOnly: true,
			RelevanceCriteria: []string{
				"English language content (American English)",
				"American creators or US-focused content",
				"Discussion patterns typical for a US audience",
				"Topics relevant for American viewers (culture, politics, sports)",
				"Views and engagement during US prime time (EST/PST)",
				"American cultural references and humor",
				"Content about US cities, states or American personalities",
			},
			LanguageIndicators: []string{"america", "american", "usa", "united states", "new york", "california", "texas", "florida"},
			CulturalKeywords:   []string{"nfl", "nba", "mlb", "super bowl", "thanksgiving", "fourth of july", "halloween", "black friday"},
			CategoryTerms: map[string][]string{
				"gaming": {"gaming", "gameplay walkthrough"},
				"music":  {"new music", "billboard hot 100"},
				"sports": {"nfl highlights", "nba highlights"},
				"news":   {"us news", "politics today"},
				"comedy": {"stand up comedy", "funny videos"},
				"food":   {"american food", "recipe"},
				"tech":   {"tech review", "unboxing"},
				"travel": {"usa travel vlog"},
				"anime":  {"anime review"},
			},
			TrendingTerms: []string{"trending usa", "viral videos", "trending now"},
		},
		"FR": {
			Code:           "FR",
			Name:           "France",
			Language:       "fr",
			Timezone:       "Europe/Paris",
			PrimeTimeStart: 20,
			PrimeTimeEnd:   22,
			VariantTemplates: []string{
				"%s français", "%s france", "français %s", "%s francais",
			},
			ExtraTemplates: []string{"%s en français", "french %s", "%s french"},
			StopWords:      []string{"le", "la", "les", "et", "ou"},
			RelevanceCriteria: []string{
				"French language content (Français) or French subtitles",
				"French creators or France-focused content",
				"French cultural references and discussions",
				"Topics relevant for a French audience (culture, politics, entertainment)",
				"Views and engagement during French prime time (20-22h CET)",
				"French humor, cultural nuances and references",
				"Content about French cities, regions or personalities",
			},
			LanguageIndicators: []string{"france", "french", "français", "paris", "lyon", "marseille", "toulouse", "bordeaux"},
			CulturalKeywords:   []string{"baguette", "croissant", "champagne", "tour de france", "cannes", "louvre", "versailles"},
			CategoryTerms: map[string][]string{
				"gaming": {"gaming français", "jeux vidéo"},
				"music":  {"musique française", "rap français"},
				"sports": {"football", "ligue 1 résumé"},
				"news":   {"actualités", "politique france"},
				"comedy": {"humour", "comédie"},
				"food":   {"cuisine française", "recette"},
				"tech":   {"test tech", "high-tech"},
				"travel": {"voyage vlog"},
				"anime":  {"anime vf"},
			},
			TrendingTerms: []string{"tendances france", "buzz", "viral france"},
		},
		"JP": {
			Code:           "JP",
			Name:           "Japan",
			Language:       "ja",
			Timezone:       "Asia/Tokyo",
			PrimeTimeStart: 19,
			PrimeTimeEnd:   22,
			VariantTemplates: []string{
				"%s 日本", "%s japan", "japanese %s", "%s にほん",
			},
			ExtraTemplates:      []string{"%s 日本語", "日本の%s", "%s jpn"},
			ExtraSingleWordOnly: true,
			RelevanceCriteria: []string{
				"Japanese language content (hiragana, katakana, kanji) or Japanese subtitles",
				"Japanese creators or Japan-focused content",
				"Japanese cultural context and references",
				"Topics relevant for a Japanese audience (culture, anime, J-pop)",
				"Views and engagement during Japanese prime time (19-22h JST)",
				"Japanese humor, cultural nuances and references",
				"Content about Japanese cities, culture or personalities",
			},
			LanguageIndicators: []string{"japan", "japanese", "nihon", "nippon", "tokyo", "osaka", "kyoto", "日本"},
			CulturalKeywords:   []string{"anime", "manga", "jpop", "sushi", "ramen", "pokemon", "nintendo", "sakura"},
			CategoryTerms: map[string][]string{
				"gaming": {"ゲーム実況", "ゲーム"},
				"music":  {"jpop", "歌ってみた"},
				"sports": {"野球", "サッカー"},
				"news":   {"ニュース"},
				"comedy": {"お笑い"},
				"food":   {"料理", "グルメ"},
				"tech":   {"ガジェット", "レビュー"},
				"travel": {"旅行 vlog"},
				"anime":  {"アニメ", "manga"},
			},
			TrendingTerms: []string{"急上昇", "話題", "バズ"},
		},
	}
}
