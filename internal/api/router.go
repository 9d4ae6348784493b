package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/timmy/layoffwatch/internal/api/handler"
	"github.com/timmy/layoffwatch/internal/api/middleware"
	"github.com/timmy/layoffwatch/internal/logger"
)

// SetupRouter configures the Gin router with all routes.
// records and metricsHandler may be nil, in which case their routes are not served.
func SetupRouter(
	orchestrator handler.Orchestrator,
	records handler.RecordReader,
	metricsHandler http.Handler,
	log *logger.Logger,
	mode string,
) *gin.Engine {
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger(log))

	healthHandler := handler.NewHealthHandler()
	adminHandler := handler.NewAdminHandler(orchestrator)

	r.GET("/health", healthHandler.Health)
	if metricsHandler != nil {
		r.GET("/metrics", gin.WrapH(metricsHandler))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/sources", adminHandler.ListSources)

		v1.POST("/runs", adminHandler.RunAll)
		v1.GET("/runs/last", adminHandler.LastRuns)
		v1.POST("/runs/:source", adminHandler.RunSource)

		if records != nil {
			recordHandler := handler.NewRecordHandler(records)
			v1.GET("/records", recordHandler.ListRecords)
			v1.GET("/records/counts", recordHandler.CountRecords)
			v1.GET("/records/:key", recordHandler.GetRecord)
		}
	}

	return r
}
