package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/yoockh/scholarchat/internal/api/handlers"
	"github.com/yoockh/scholarchat/internal/api/middleware"
)

type Deps struct {
	Auth         middleware.JWTOptions
	Chat         *handlers.ChatHandler
	Conversation *handlers.ConversationHandler
	Research     *handlers.ResearchHandler
	Runs         *handlers.RunHandler
	WS           *handlers.WSHandler
}

func RegisterRoutes(r *gin.Engine, d Deps) {
	// Health-ish
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})

	// Protected routes (JWT)
	auth := r.Group("/")
	auth.Use(middleware.JWTAuth(d.Auth))

	api := auth.Group("/api")
	api.POST("/chat", d.Chat.Stream)

	api.GET("/conversations", d.Conversation.List)
	api.GET("/conversations/:id", d.Conversation.Get)
	api.POST("/conversations/search", d.Conversation.Search)

	api.POST("/research", d.Research.Research)
	api.GET("/papers/:paper_id", d.Research.Paper)
	api.POST("/papers/batch", d.Research.Papers)

	api.GET("/runs", d.Runs.Mine)

	admin := api.Group("/admin")
	admin.Use(middleware.RequireAdmin())
	admin.GET("/users/:user_id/runs", d.Runs.ByUser)

	// WebSocket
	auth.GET("/ws/chat", d.WS.ChatWS)
}
