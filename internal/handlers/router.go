package handlers

import (
	"log"
	"time"

	"classreminder/internal/utils"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the ops endpoints onto a gin engine
func NewRouter(h *OpsHandler, gatherer prometheus.Gatherer, logger *log.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), utils.RequestLogger(logger))

	// Configure trusted proxies
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
		MaxAge:          12 * time.Hour,
	}))

	router.GET("/health", h.HealthHandler)
	router.GET("/runs", h.ListRuns)
	router.POST("/runs", h.TriggerRun)
	router.GET("/reminders", h.ListReminders)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return router
}
