package handler

import (
	"github.com/Harishith4529/shortlink/internal/middleware"
	"github.com/Harishith4529/shortlink/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func NewRouter(
	linkService service.LinkService,
	clickProcessor service.ClickProcessor,
	rateLimiter *middleware.RateLimiter,
	identity *middleware.Identity,
	metrics *middleware.Metrics,
	baseURL string,
	logger *zap.Logger,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	if logger != nil {
		router.Use(func(c *gin.Context) {
			logger.Info("Request",
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String("ip", c.ClientIP()),
			)
			c.Next()
		})
	}

	router.Use(metrics.Middleware())
	router.Use(rateLimiter.Middleware())

	linkHandler := NewLinkHandler(linkService, clickProcessor, metrics, baseURL, logger)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", HealthCheck)

		authed := v1.Group("")
		authed.Use(identity.Middleware())

		authed.POST("/links", linkHandler.CreateLink)
		authed.GET("/links", linkHandler.ListLinks)
		authed.PATCH("/links/:code", linkHandler.EditLink)
		authed.DELETE("/links/:code", linkHandler.DeleteLink)
		authed.GET("/links/:code/stats", linkHandler.GetStats)
		authed.GET("/links/:code/stats/daily", linkHandler.GetDailyStats)
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})))

	// Redirects live at the root path and need no identity.
	router.GET("/:code", linkHandler.Redirect)

	return router
}
