package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"trends-backend/models"
	"trends-backend/services"
)

type TrendingHandler struct {
	trendingService services.TrendingAnalyzer
}

// NewTrendingHandler creates a new trending handler
func NewTrendingHandler(trendingService services.TrendingAnalyzer) *TrendingHandler {
	return &TrendingHandler{
		trendingService: trendingService,
	}
}

// GetTrending analyzes trending videos for a topic in a country
// GET /api/v1/trending?query=gaming&country=DE&timeframe=24h&limit=10
func (h *TrendingHandler) GetTrending(c *gin.Context) {
	var req models.TrendingQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	resp, err := h.trendingService.GetTrending(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetSearchTerms returns the tiered search terms used for a query
// GET /api/v1/trending/search-terms?query=gaming&country=DE&timeframe=24h
func (h *TrendingHandler) GetSearchTerms(c *gin.Context) {
	var req models.TrendingQuery
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	plan, err := h.trendingService.SearchTerms(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"plan":    plan,
		"terms":   plan.Terms(),
	})
}

// GetTrendingFeed returns the official trending feed of a country
// GET /api/v1/trending/feeds/:country
func (h *TrendingHandler) GetTrendingFeed(c *gin.Context) {
	country := strings.ToUpper(c.Param("country"))

	videos, err := h.trendingService.TrendingFeed(c.Request.Context(), country)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"country": country,
		"count":   len(videos),
		"videos":  videos,
	})
}

// InvalidateCache drops cached trending results
// POST /api/v1/trending/cache/invalidate
// Body: {"country": "DE", "query": "gaming"} (both optional)
func (h *TrendingHandler) InvalidateCache(c *gin.Context) {
	var req models.InvalidateRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, err.Error())
			return
		}
	}
	req.Country = strings.ToUpper(strings.TrimSpace(req.Country))

	removed, err := h.trendingService.InvalidateCache(c.Request.Context(), req)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"message": "Trending cache invalidated",
		"removed": removed,
	})
}

// GetBudget reports the monthly LLM budget
// GET /api/v1/trending/budget
func (h *TrendingHandler) GetBudget(c *gin.Context) {
	c.JSON(http.StatusOK, h.trendingService.BudgetStatus())
}

// Health is the liveness check
// GET /health
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
