package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mycoool/imonitor/internal/config"
)

// SystemRouter exposes the running configuration
type SystemRouter struct {
	holder *config.Holder
}

// NewSystemRouter create system config router instance
func NewSystemRouter(holder *config.Holder) *SystemRouter {
	return &SystemRouter{holder: holder}
}

// RegisterSystemRoutes registers config routes on an admin-only group
func (sr *SystemRouter) RegisterSystemRoutes(rg *gin.RouterGroup) {
	systemGroup := rg.Group("/system")
	{
		systemGroup.GET("/config", sr.GetSystemConfig)
		systemGroup.POST("/reload", sr.ReloadSystemConfig)
	}
}

// GetSystemConfig returns the active config; secrets are excluded by the json tags
func (sr *SystemRouter) GetSystemConfig(c *gin.Context) {
	cfg := sr.holder.Current()
	c.JSON(http.StatusOK, gin.H{
		"config":               cfg,
		"auth_enabled":         cfg.AuthEnabled(),
		"reconcile_duplicates": cfg.ReconcileEnabled(),
	})
}

// ReloadSystemConfig re-reads app.yaml without waiting for the file watcher
func (sr *SystemRouter) ReloadSystemConfig(c *gin.Context) {
	if err := sr.holder.Reload(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reload config failed: " + err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reloaded"})
}
