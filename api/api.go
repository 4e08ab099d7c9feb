package api

import (
	"fmt"
	"time"

	"sectorscan/internal/logger"
	l1_service "sectorscan/internal/service/l1"
	l3_service "sectorscan/internal/service/l3"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ApiHandler struct {
	ScanService      l3_service.ScanService
	UniverseResolver l1_service.UniverseResolver
	PaperTradeLedger l3_service.PaperTradeLedger
	// Gatherer backs /metrics; nil serves the default registry.
	Gatherer prometheus.Gatherer
	// Closers run on shutdown.
	Closers []func() error
}

func (m ApiHandler) InitializeRouterEngine() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.Default())
	router.Use(m.logRequestMiddleware)

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(200, map[string]string{"message": "welcome to sectorscan"})
	})
	router.POST("/scan", m.scan)
	router.GET("/universe/:sector", m.getUniverse)
	router.GET("/trades", m.getTrades)
	router.POST("/trades", m.bookTrade)
	router.POST("/trades/:id/close", m.closeTrade)

	metricsHandler := promhttp.Handler()
	if m.Gatherer != nil {
		metricsHandler = promhttp.HandlerFor(m.Gatherer, promhttp.HandlerOpts{})
	}
	router.GET("/metrics", gin.WrapH(metricsHandler))

	return router
}

func (m ApiHandler) StartApi(port int) error {
	router := m.InitializeRouterEngine()
	return router.Run(fmt.Sprintf(":%d", port))
}

func returnErrorJson(err error, c *gin.Context) {
	returnErrorJsonCode(err, c, 500)
}

func returnErrorJsonCode(err error, c *gin.Context, code int) {
	logger.FromContext(c.Request.Context()).Errorw("request failed", "status", code, "error", err)
	c.AbortWithStatusJSON(code, gin.H{
		"error": err.Error(),
	})
}

// logRequestMiddleware tags the request context with a request id so service
// logs for one call can be grouped.
func (m ApiHandler) logRequestMiddleware(c *gin.Context) {
	requestID := uuid.New().String()
	ctx := logger.With(c.Request.Context(), "requestID", requestID)
	c.Request = c.Request.WithContext(ctx)

	start := time.Now().UTC()
	c.Next()

	logger.FromContext(ctx).Infow("handled request",
		"method", c.Request.Method,
		"route", c.FullPath(),
		"status", c.Writer.Status(),
		"durationMs", time.Since(start).Milliseconds(),
		"responseBytes", c.Writer.Size(),
	)
}
