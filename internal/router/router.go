package router

import (
	"net/http"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/mycoool/imonitor/internal/auth"
	"github.com/mycoool/imonitor/internal/config"
	"github.com/mycoool/imonitor/internal/database"
	"github.com/mycoool/imonitor/internal/middleware"
	"github.com/mycoool/imonitor/internal/registry"
	"github.com/mycoool/imonitor/internal/stream"
)

// Deps are the components the HTTP surface is wired to
type Deps struct {
	Config   *config.Holder
	Auth     *auth.Authenticator
	Registry *registry.Service
	Events   *database.EventService
	Stream   *stream.StreamManager
	// Quiet suppresses access logs for high frequency report posts
	Quiet bool
}

func InitRouter(deps Deps) *gin.Engine {
	// engine without default middleware
	g := gin.New()

	// access log that skips requests flagged "disable_log"
	g.Use(middleware.AccessLogger())
	g.Use(gin.Recovery())
	g.Use(middleware.IPMiddleware())
	g.Use(middleware.CORS())

	g.HandleMethodNotAllowed = true

	g.GET("/ping", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	var publisher registry.Publisher
	if deps.Stream != nil {
		publisher = deps.Stream
	}
	nodes := registry.NewHandler(deps.Registry, publisher)

	api := g.Group("/api")
	{
		// websocket must not be wrapped by gzip
		if deps.Stream != nil {
			api.GET("/stream", middleware.DisableLogMiddleware(), deps.Stream.HandleWebSocket)
		}

		compressed := api.Group("")
		compressed.Use(gzip.Gzip(gzip.DefaultCompression))
		{
			compressed.GET("/nodes", deps.Auth.OptionalAdmin(), nodes.HandleListNodes)

			// agents authenticate with the token inside the body
			report := []gin.HandlerFunc{}
			if deps.Quiet {
				report = append(report, middleware.DisableLogMiddleware())
			}
			report = append(report, nodes.HandleReport)
			compressed.POST("/report", report...)

			compressed.POST("/login", deps.Auth.HandleLogin)

			admin := compressed.Group("")
			admin.Use(deps.Auth.RequireAdmin())
			{
				admin.POST("/nodes/reserve", nodes.HandleReserve)
				admin.PATCH("/nodes/:token", nodes.HandleRename)
				admin.DELETE("/nodes/:token", nodes.HandleDelete)

				NewLogRouter(deps.Registry, deps.Events).RegisterLogRoutes(admin)
				if deps.Config != nil {
					NewSystemRouter(deps.Config).RegisterSystemRoutes(admin)
				}
			}
		}
	}

	return g
}
