// internal/api/handlers.go
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/bartek5186/storesync/internal/catalog"
	"github.com/bartek5186/storesync/internal/syncer"
	"github.com/gin-gonic/gin"
)

type triggerRequest struct {
	Limit  int  `form:"limit" json:"limit"`
	DryRun bool `form:"dryRun" json:"dryRun"`
	Wait   bool `form:"wait" json:"wait"`
}

// POST /api/admin/sync/:source
func (h *handler) triggerSync(c *gin.Context) {
	var req triggerRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	source := c.Param("source")
	opts := syncer.TriggerOptions{Limit: req.Limit, DryRun: req.DryRun}

	if !req.Wait {
		started, err := h.sync.Trigger(c.Request.Context(), source, opts)
		if err != nil {
			c.JSON(triggerStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusAccepted, started)
		return
	}

	// wait=true: przebieg w żądaniu, błąd pobrania widoczny od razu
	res, err := h.sync.Run(context.WithoutCancel(c.Request.Context()), source, opts)
	if err != nil {
		body := gin.H{"error": err.Error()}
		if res.OperationID != "" {
			body["operationId"] = res.OperationID
		}
		c.JSON(triggerStatus(err), body)
		return
	}
	c.JSON(http.StatusOK, res)
}

func triggerStatus(err error) int {
	switch {
	case errors.Is(err, syncer.ErrUnknownSource):
		return http.StatusNotFound
	case errors.Is(err, syncer.ErrRunInProgress):
		return http.StatusConflict
	case errors.Is(err, syncer.ErrFetch) && errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, syncer.ErrFetch):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// GET /api/admin/sync/progress/:operationId
func (h *handler) getProgress(c *gin.Context) {
	snap, ok, err := h.sync.Progress(c.Request.Context(), c.Param("operationId"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "operation not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"current": snap.Current,
		"total":   snap.Total,
		"status":  snap.Status,
	})
}

type versionsQuery struct {
	ProductID   string     `form:"productId"`
	Source      string     `form:"source"`
	ExternalID  string     `form:"externalId"`
	OperationID string     `form:"operationId"`
	Action      string     `form:"action" binding:"omitempty,oneof=created updated unchanged error"`
	From        *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To          *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit       int        `form:"limit" binding:"omitempty,min=1"`
}

// GET /api/admin/versions
func (h *handler) listVersions(c *gin.Context) {
	var q versionsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	items, err := h.versions.ListVersions(c.Request.Context(), catalog.VersionFilter{
		ProductID:   q.ProductID,
		Source:      q.Source,
		ExternalID:  q.ExternalID,
		OperationID: q.OperationID,
		Action:      catalog.Action(q.Action),
		From:        q.From,
		To:          q.To,
		Limit:       q.Limit,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("list versions")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "cannot list versions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "count": len(items)})
}

// GET /api/admin/sources
func (h *handler) listSources(c *gin.Context) {
	scheds := h.schedules.Schedules()
	if scheds == nil {
		scheds = []syncer.Schedule{}
	}
	c.JSON(http.StatusOK, gin.H{"sources": scheds})
}
