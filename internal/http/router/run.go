package router

import (
	"github.com/gin-gonic/gin"

	"scribehq.app/scribe/internal/http/handler"
)

func RunRouter(router *gin.RouterGroup, handler *handler.RunHandler) {
	router.POST("", handler.Generate)
	router.GET("/:id", handler.Get)
	router.GET("", handler.RequireAdminAPIKey(), handler.List)
}
