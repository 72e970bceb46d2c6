// Package api exposes the learning engine over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/abhisek/speakquest/internal/analytics"
	"github.com/abhisek/speakquest/internal/conversation"
	"github.com/abhisek/speakquest/internal/practice"
	"github.com/abhisek/speakquest/internal/progression"
	"github.com/abhisek/speakquest/internal/store"
)

// HealthChecker reports model reachability. *gateway.Gateway implements it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) bool
}

// Deps are the services behind the HTTP surface.
type Deps struct {
	Store        *store.Store
	Conversation *conversation.Service
	Progression  *progression.Service
	Analyzer     *analytics.Analyzer
	Practice     *practice.Service
	Health       HealthChecker
	JWTSecret    []byte
	CORSOrigins  []string
	Log          *zap.Logger
}

type handler struct {
	Deps
}

// NewRouter builds the gin engine with all routes.
func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	h := &handler{Deps: d}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(d.Log.Named("http")), CORS(d.CORSOrigins))

	r.GET("/healthz", h.health)

	api := r.Group("/api", RequireStudent(d.JWTSecret))
	{
		api.POST("/conversation/start", h.startConversation)
		api.POST("/conversation/message", h.sendMessage)
		api.POST("/conversation/:id/end", h.endConversation)
		api.GET("/conversation/:id", h.getConversation)

		api.GET("/personalized/analysis", h.analysis)
		api.POST("/personalized/generate", h.generate)
		api.GET("/personalized/recommendations", h.recommendations)

		api.POST("/activities/:id/complete", h.completeActivity)
		api.GET("/students/me", h.me)
	}
	return r
}

func (h *handler) health(c *gin.Context) {
	llmOK := h.Health != nil && h.Health.HealthCheck(c.Request.Context())
	status := "ok"
	if !llmOK {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{"status": status, "llm": llmOK})
}
