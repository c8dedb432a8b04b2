// internal/api/router.go
package api

import (
	"context"
	"net/http"

	"github.com/bartek5186/storesync/internal/catalog"
	"github.com/bartek5186/storesync/internal/metrics"
	"github.com/bartek5186/storesync/internal/progress"
	"github.com/bartek5186/storesync/internal/syncer"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// SyncService - wyzwalanie przebiegów i odczyt postępu (syncer.Reconciler).
type SyncService interface {
	Trigger(ctx context.Context, source string, opts syncer.TriggerOptions) (syncer.Started, error)
	Run(ctx context.Context, source string, opts syncer.TriggerOptions) (syncer.Result, error)
	Progress(ctx context.Context, operationID string) (progress.Snapshot, bool, error)
}

type VersionLister interface {
	ListVersions(ctx context.Context, f catalog.VersionFilter) ([]catalog.VersionEntry, error)
}

type ScheduleLister interface {
	Schedules() []syncer.Schedule
}

type Deps struct {
	Log       zerolog.Logger
	Sync      SyncService
	Versions  VersionLister
	Schedules ScheduleLister
	JWTSecret string
}

type handler struct {
	log       zerolog.Logger
	sync      SyncService
	versions  VersionLister
	schedules ScheduleLister
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(d.Log), recordMetrics())

	h := &handler{log: d.Log, sync: d.Sync, versions: d.Versions, schedules: d.Schedules}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	admin := r.Group("/api/admin", RequireAdmin([]byte(d.JWTSecret)))
	{
		admin.POST("/sync/:source", h.triggerSync)
		admin.GET("/sync/progress/:operationId", h.getProgress)
		admin.GET("/versions", h.listVersions)
		admin.GET("/sources", h.listSources)
	}
	return r
}
