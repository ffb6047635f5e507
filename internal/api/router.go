// Package api exposes the tracks engine over HTTP.
package api

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/valter-silva-au/tracks/internal/core"
)

// RouterOptions configures NewRouter.
type RouterOptions struct {
	// Gatherer backs GET /metrics. Nil means prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

// NewRouter builds the HTTP routes for engine.
func NewRouter(engine *core.Engine, opts RouterOptions) *gin.Engine {
	if opts.Gatherer == nil {
		opts.Gatherer = prometheus.DefaultGatherer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger.With(slog.String("component", "api"))))

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	h := NewHandler(engine)
	r.GET("/health", h.Health)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))

	v1 := r.Group("/api/v1")
	{
		v1.GET("/schema", h.GetSchema)

		months := v1.Group("/months")
		{
			months.GET("", h.ListMonths)
			months.GET("/:month/summary", h.GetMonthSummary)
		}

		v1.GET("/best-month", h.GetBestMonth)
		v1.GET("/personal-bests", h.GetPersonalBests)
		v1.PUT("/personal-bests", h.SetPersonalBests)
		v1.POST("/sessions", h.AddSession)
	}

	return r
}
