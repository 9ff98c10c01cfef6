package router

import (
	"github.com/gin-gonic/gin"

	"scribehq.app/scribe/internal/http/handler"
)

func SetupRoutes(router *gin.Engine, runHandler *handler.RunHandler) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		RunRouter(v1.Group("/runs"), runHandler)
	}
}
