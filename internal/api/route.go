package api

import (
	"Tutorlink/internal/api/middleware"
	"Tutorlink/internal/pkg/logger"
	"net/http"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.CORSMiddleware())
	logger.SetupGin(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/ping", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"Code":    200,
				"Message": "pong",
				"Data":    nil,
			})
		})

		// 实时通道在握手阶段自行鉴权
		imGroup := apiGroup.Group("/im")
		{
			imGroup.GET("", group.WSHandler.Connect)
		}

		convGroup := apiGroup.Group("/conversations")
		convGroup.Use(middleware.AuthMiddleware())
		{
			convGroup.POST("", group.ChatHandler.StartConversation)
			convGroup.GET("", group.ChatHandler.GetConversations)
			convGroup.GET("/unread", group.ChatHandler.GetUnreadCounts)

			convGroup.PUT("/:id/archive", group.ChatHandler.ArchiveConversation)
			convGroup.PUT("/:id/unarchive", group.ChatHandler.UnarchiveConversation)
			convGroup.PUT("/:id/read", group.ChatHandler.MarkAsRead)

			convGroup.GET("/:id/messages", group.ChatHandler.GetMessages)
			convGroup.POST("/:id/messages", group.ChatHandler.SendMessage)
			convGroup.PATCH("/:id/messages/:messageId", group.ChatHandler.EditMessage)
			convGroup.DELETE("/:id/messages/:messageId", group.ChatHandler.DeleteMessage)
		}
	}

	return r
}
