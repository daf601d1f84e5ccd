package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/codecurser/park-vision-control-system/internal/dashboard"
	"github.com/codecurser/park-vision-control-system/internal/domain"
	"github.com/codecurser/park-vision-control-system/internal/service"
)

type EntryHandler struct {
	entryService *service.EntryService
	now          func() time.Time
}

func NewEntryHandler(es *service.EntryService) *EntryHandler {
	return &EntryHandler{entryService: es, now: time.Now}
}

func (h *EntryHandler) filtered(c *gin.Context) ([]domain.ParkingEntry, time.Time, bool) {
	var dto domain.EntryFilterDTO
	if err := c.ShouldBindQuery(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query", "details": err.Error()})
		return nil, time.Time{}, false
	}
	filter, err := dashboard.ParseFilter(dto)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid filter", "details": err.Error()})
		return nil, time.Time{}, false
	}
	now := h.now()
	return dashboard.Apply(h.entryService.Entries(), filter, now), now, true
}

// GET /api/v1/entries?search=&type=&range=
func (h *EntryHandler) List(c *gin.Context) {
	entries, _, ok := h.filtered(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, entries)
}

// GET /api/v1/entries/summary
func (h *EntryHandler) Summary(c *gin.Context) {
	c.JSON(http.StatusOK, dashboard.Summarize(h.entryService.Entries(), h.now()))
}

// GET /api/v1/entries/export?search=&type=&range=
func (h *EntryHandler) Export(c *gin.Context) {
	entries, now, ok := h.filtered(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := dashboard.ExportCSV(&buf, entries); err != nil {
		log.Error().Err(err).Str("component", "HTTP").Msg("csv export failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Export failed", "details": err.Error()})
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, dashboard.ExportFilename(now)))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
}

// POST /api/v1/entries/refresh
func (h *EntryHandler) Refresh(c *gin.Context) {
	if err := h.entryService.Refresh(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Log store unavailable", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": h.entryService.Log().Len()})
}
