package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yoockh/intervyu/internal/api/handlers"
	"github.com/yoockh/intervyu/internal/api/middleware"
)

type Deps struct {
	JWT middleware.JWTConfig

	Generate  *handlers.GenerateHandler
	Feedback  *handlers.FeedbackHandler
	Interview *handlers.InterviewHandler
	Call      *handlers.CallHandler
	Profile   *handlers.ProfileHandler
	Covers    *handlers.CoversHandler

	// Gatherer backs /metrics; nil disables the endpoint.
	Gatherer prometheus.Gatherer
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	// The voice workflow calls generate without a user token; the body carries userid.
	vapi := r.Group("/api/vapi")
	vapi.Use(middleware.OptionalJWTAuth(d.JWT))
	vapi.GET("/generate", d.Generate.Health)
	vapi.POST("/generate", d.Generate.FromConfig)
	vapi.POST("/generate/transcript", d.Generate.FromTranscript)

	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.JWT))

	auth.POST("/api/feedback", d.Feedback.Create)

	auth.GET("/api/interviews", d.Interview.ListMine)
	auth.GET("/api/interviews/latest", d.Interview.Latest)
	auth.GET("/api/interviews/:id", d.Interview.Get)
	auth.GET("/api/interviews/:id/feedback", d.Interview.Feedback)
	auth.GET("/api/dashboard", d.Interview.Dashboard)

	auth.POST("/api/calls", d.Call.Create)
	auth.GET("/api/calls/history", d.Call.History)
	auth.GET("/api/calls/:id", d.Call.Get)
	auth.POST("/api/calls/:id/start", d.Call.Start)
	auth.POST("/api/calls/:id/stop", d.Call.Stop)

	// WebSocket
	auth.GET("/ws/calls/:id", d.Call.Relay)

	auth.GET("/profile/me", d.Profile.Me)
	auth.PUT("/profile/update", d.Profile.Update)

	admin := auth.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/covers", d.Covers.List)
	admin.POST("/covers", d.Covers.Upload)
}
