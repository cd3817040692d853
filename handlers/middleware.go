package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"trends-backend/logging"
	"trends-backend/metrics"
)

// RequestID propagates or assigns an X-Request-ID and stores it in the request context
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(logging.RequestIDHeader)
		if id == "" || len(id) > 64 {
			id = logging.GenerateRequestID()
		}
		c.Request = c.Request.WithContext(logging.ContextWithRequestID(c.Request.Context(), id))
		c.Header(logging.RequestIDHeader, id)
		c.Next()
	}
}

// AccessLog writes one structured line per request and records request metrics
func AccessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		elapsed := time.Since(start)
		metrics.RecordAPIRequest(c.Request.Method, route, status, elapsed)

		log := logging.Ctx(c.Request.Context())
		event := log.Info()
		switch {
		case status >= 500:
			event = log.Error()
		case status >= 400:
			event = log.Warn()
		}
		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", elapsed).
			Str("client_ip", c.ClientIP()).
			Msg("http request")
	}
}

// NewRouter builds the gin engine with every API route
func NewRouter(h *TrendingHandler, extra ...func(*gin.Engine)) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog())

	r.GET("/health", Health)

	v1 := r.Group("/api/v1")
	{
		trending := v1.Group("/trending")
		trending.GET("", h.GetTrending)
		trending.GET("/search-terms", h.GetSearchTerms)
		trending.GET("/feeds/:country", h.GetTrendingFeed)
		trending.GET("/budget", h.GetBudget)
		trending.POST("/cache/invalidate", h.InvalidateCache)
	}

	for _, fn := range extra {
		fn(r)
	}
	return r
}
