// Package http is the transport surface of the bridge: the participant
// API, the operator endpoints, and the remote gateway client consumed by
// the polling binary.
package http

import (
	"chat-bridge/auth"
	"chat-bridge/domain"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterValidators installs the roomcode binding rule. Call once at
// startup, before the router serves requests.
func RegisterValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("roomcode", func(fl validator.FieldLevel) bool {
			return domain.ValidRoomCode(fl.Field().String())
		})
	}
}

// NewRouter wires the HTTP surface. The metrics registry is injected so
// tests can build routers without duplicate-registration panics.
func NewRouter(handler *Handler, tokens *auth.TokenManager, registry *prometheus.Registry) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), MetricsMiddleware())

	api := router.Group("/api/rooms")
	{
		api.POST("", handler.Allocate)
		api.POST("/join", handler.Join)
		api.GET("/:code/status", handler.Status)
		api.GET("/:code/messages", handler.Messages)
		api.POST("/:code/messages", handler.Send)
		api.POST("/:code/dispatch", handler.Dispatch)
	}

	admin := router.Group("/admin")
	{
		admin.POST("/rooms/:code/end", OperatorAuth(tokens, ScopeRoomsEnd), handler.AdminEnd)
		admin.GET("/search", OperatorAuth(tokens, ScopeRoomsRead), handler.AdminSearch)
	}

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	router.GET("/debug/stats", handler.DebugStats)

	return router
}
