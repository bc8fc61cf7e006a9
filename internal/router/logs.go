package router

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/mycoool/imonitor/internal/database"
	"github.com/mycoool/imonitor/internal/registry"
)

// LogRouter serves the node audit trail
type LogRouter struct {
	registry     *registry.Service
	eventService *database.EventService
}

// NewLogRouter creates the audit routes
func NewLogRouter(svc *registry.Service, events *database.EventService) *LogRouter {
	return &LogRouter{registry: svc, eventService: events}
}

// RegisterLogRoutes registers audit routes on an admin-only group
func (lr *LogRouter) RegisterLogRoutes(rg *gin.RouterGroup) {
	eventsGroup := rg.Group("/events")
	{
		eventsGroup.GET("", lr.GetEvents)
		eventsGroup.DELETE("/cleanup", lr.CleanupEvents)
	}
}

// GetEvents lists audit events newest first, optionally filtered by ?action=
func (lr *LogRouter) GetEvents(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid limit parameter"})
			return
		}
		limit = n
	}

	events, err := lr.registry.Events(c.Request.Context(), c.Query("action"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

// CleanupEvents removes events older than ?days= (default 30)
func (lr *LogRouter) CleanupEvents(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	if days <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid days parameter"})
		return
	}

	removed, err := lr.eventService.CleanOldEvents(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "removed": removed})
}
