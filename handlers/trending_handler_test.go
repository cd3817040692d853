package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trends-backend/logging"
	"trends-backend/models"
)

type stubAnalyzer struct {
	lastQuery      models.TrendingQuery
	lastInvalidate models.InvalidateRequest
	trendingErr    error
	feedErr        error
	removed        int
}

func (s *stubAnalyzer) GetTrending(_ context.Context, q models.TrendingQuery) (*models.TrendingResponse, error) {
	s.lastQuery = q
	if s.trendingErr != nil {
		return nil, s.trendingErr
	}
	return &models.TrendingResponse{
		Success: true,
		Query:   q.Topic,
		Country: strings.ToUpper(q.Country),
		Window:  models.Window24h,
		Results: []models.VideoResult{{Rank: 1, VideoID: "abc", Title: "t"}},
		Metadata: models.ResponseMetadata{
			TotalCandidates: 1,
			Count:           1,
		},
	}, nil
}

func (s *stubAnalyzer) SearchTerms(_ context.Context, q models.TrendingQuery) (*models.SearchPlan, error) {
	if q.Country == "XX" {
		return nil, &models.InputError{Field: "country", Reason: "unsupported"}
	}
	return &models.SearchPlan{Topic: q.Topic, Country: q.Country, Tiers: [][]string{{q.Topic, q.Topic + " deutsch"}, {}, {"aktuell"}}, Source: "static"}, nil
}

func (s *stubAnalyzer) TrendingFeed(_ context.Context, country string) ([]models.TrendingVideo, error) {
	if s.feedErr != nil {
		return nil, s.feedErr
	}
	return []models.TrendingVideo{{Entry: models.TrendingFeedEntry{VideoID: "v1", Country: country, Rank: 1}}}, nil
}

func (s *stubAnalyzer) InvalidateCache(_ context.Context, req models.InvalidateRequest) (int, error) {
	s.lastInvalidate = req
	return s.removed, nil
}

func (s *stubAnalyzer) BudgetStatus() models.BudgetStatus {
	return models.BudgetStatus{Month: "2025-06", Budget: 500, Spent: 12.5, Remaining: 487.5, PercentUsed: 2.5}
}

func setupRouter(stub *stubAnalyzer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return NewRouter(NewTrendingHandler(stub))
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestGetTrending(t *testing.T) {
	stub := &stubAnalyzer{}
	r := setupRouter(stub)

	w := doRequest(r, http.MethodGet, "/api/v1/trending?query=gaming&country=de&timeframe=24h&limit=5", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp models.TrendingResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "DE", resp.Country)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "abc", resp.Results[0].VideoID)

	assert.Equal(t, "gaming", stub.lastQuery.Topic)
	assert.Equal(t, "24h", stub.lastQuery.Window)
	assert.Equal(t, 5, stub.lastQuery.Limit)
	assert.NotEmpty(t, w.Header().Get(logging.RequestIDHeader))
}

func TestGetTrendingWindowAlias(t *testing.T) {
	stub := &stubAnalyzer{}
	r := setupRouter(stub)

	w := doRequest(r, http.MethodGet, "/api/v1/trending?query=gaming&country=DE&window=week", "")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "week", stub.lastQuery.RawWindow())
}

func TestGetTrendingBindingErrors(t *testing.T) {
	r := setupRouter(&stubAnalyzer{})

	for _, path := range []string{
		"/api/v1/trending?query=gaming&country=DE&timeframe=24h&limit=abc",
		"/api/v1/trending?query=gaming&country=DE&timeframe=24h&limit=51",
		"/api/v1/trending?query=gaming&country=DE&timeframe=24h&limit=-1",
	} {
		w := doRequest(r, http.MethodGet, path, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}

func TestGetTrendingInputErrorIs400(t *testing.T) {
	stub := &stubAnalyzer{trendingErr: &models.InputError{Field: "country", Reason: "unsupported country \"GB\""}}
	r := setupRouter(stub)

	w := doRequest(r, http.MethodGet, "/api/v1/trending?query=gaming&country=GB&timeframe=24h", "")

	require.Equal(t, http.StatusBadRequest, w.Code)
	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Contains(t, resp.Message, "country")
}

func TestGetTrendingUnexpectedErrorIs500(t *testing.T) {
	stub := &stubAnalyzer{trendingErr: assert.AnError}
	r := setupRouter(stub)

	w := doRequest(r, http.MethodGet, "/api/v1/trending?query=gaming&country=DE&timeframe=24h", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestGetSearchTerms(t *testing.T) {
	r := setupRouter(&stubAnalyzer{})

	w := doRequest(r, http.MethodGet, "/api/v1/trending/search-terms?query=gaming&country=DE&timeframe=24h", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool     `json:"success"`
		Terms   []string `json:"terms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"gaming", "gaming deutsch", "aktuell"}, body.Terms)

	w = doRequest(r, http.MethodGet, "/api/v1/trending/search-terms?query=gaming&country=XX&timeframe=24h", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetTrendingFeed(t *testing.T) {
	stub := &stubAnalyzer{}
	r := setupRouter(stub)

	w := doRequest(r, http.MethodGet, "/api/v1/trending/feeds/jp", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"country":"JP"`)

	stub.feedErr = &models.ProviderError{Provider: "youtube", Op: "trending_feed", StatusCode: 403, Quota: true, Err: assert.AnError}
	w = doRequest(r, http.MethodGet, "/api/v1/trending/feeds/jp", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestInvalidateCache(t *testing.T) {
	stub := &stubAnalyzer{removed: 3}
	r := setupRouter(stub)

	w := doRequest(r, http.MethodPost, "/api/v1/trending/cache/invalidate", `{"country":"de","query":"gaming"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"removed":3`)
	assert.Equal(t, "DE", stub.lastInvalidate.Country)
	assert.Equal(t, "gaming", stub.lastInvalidate.Query)

	w = doRequest(r, http.MethodPost, "/api/v1/trending/cache/invalidate", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "", stub.lastInvalidate.Country)

	w = doRequest(r, http.MethodPost, "/api/v1/trending/cache/invalidate", `{"country":"DEU"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBudget(t *testing.T) {
	r := setupRouter(&stubAnalyzer{})

	w := doRequest(r, http.MethodGet, "/api/v1/trending/budget", "")
	require.Equal(t, http.StatusOK, w.Code)

	var status models.BudgetStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "2025-06", status.Month)
	assert.Equal(t, 12.5, status.Spent)
}

func TestHealthAndRequestIDPropagation(t *testing.T) {
	r := setupRouter(&stubAnalyzer{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(logging.RequestIDHeader, "req-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(logging.RequestIDHeader))
}
