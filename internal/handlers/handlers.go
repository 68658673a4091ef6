package handlers

import (
	"context"
	"log"
	"net/http"
	"strconv"

	"classreminder/internal/models"
	"classreminder/internal/runlog"
	"classreminder/internal/services"

	"github.com/gin-gonic/gin"
)

// RecordLister lists the most recently written reminder records
type RecordLister interface {
	Recent(ctx context.Context, limit int) ([]models.ReminderRecord, error)
}

// Trigger starts a reminder run without waiting for it
type Trigger interface {
	TriggerAsync(trigger string) bool
	Guard() *services.OverlapGuard
}

// OpsHandler serves the operational endpoints of the reminder service
type OpsHandler struct {
	history *runlog.History
	records RecordLister
	worker  Trigger
	logger  *log.Logger
}

// NewOpsHandler creates the handler set
func NewOpsHandler(history *runlog.History, records RecordLister, worker Trigger, logger *log.Logger) *OpsHandler {
	return &OpsHandler{history: history, records: records, worker: worker, logger: logger}
}

const (
	defaultRecordLimit = 50
	maxRecordLimit     = 500
)

// handleError provides a consistent way to handle and log errors
func (h *OpsHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.Printf("Error: %v", err)
	c.JSON(status, gin.H{"error": message})
}

// HealthHandler is a simple health check endpoint
func (h *OpsHandler) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"running": h.worker.Guard().Running(),
	})
}

// ListRuns returns the most recent run outcomes, newest first
func (h *OpsHandler) ListRuns(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"runs": h.history.Recent()})
}

// TriggerRun starts a manual reminder pass
func (h *OpsHandler) TriggerRun(c *gin.Context) {
	if !h.worker.TriggerAsync(services.TriggerManual) {
		c.JSON(http.StatusConflict, gin.H{"error": "A reminder run is already in progress"})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}

// ListReminders returns recently recorded reminders
func (h *OpsHandler) ListReminders(c *gin.Context) {
	limit := defaultRecordLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = min(n, maxRecordLimit)
	}

	records, err := h.records.Recent(c.Request.Context(), limit)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to load reminder records", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"reminders": records})
}
