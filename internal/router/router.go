package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"Circle_Social/internal/handler"
	"Circle_Social/internal/middleware"
	"Circle_Social/internal/service"
)

type Deps struct {
	Circles  *service.CircleService
	Messages *service.MessageService
	// Sessions 为 nil 时不做单点登录校验
	Sessions middleware.SessionChecker
	Log      *zap.Logger
}

func InitRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Logger(d.Log), gin.Recovery())

	circle := handler.NewCircleHandler(d.Circles)
	message := handler.NewMessageHandler(d.Messages)

	auth := middleware.Auth(d.Sessions)
	optional := middleware.OptionalAuth(d.Sessions)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 社区相关接口
	circleGroup := r.Group("/api/circles")
	{
		circleGroup.GET("", optional, circle.List)
		circleGroup.GET("/:id", optional, circle.Get)
		circleGroup.POST("", auth, circle.Create)
		circleGroup.DELETE("/:id", auth, circle.Delete)
		circleGroup.POST("/:id/join", auth, circle.Join)
		circleGroup.POST("/:id/leave", auth, circle.Leave)
		circleGroup.POST("/:id/members/:userID/approve", auth, circle.Approve)
	}

	// 消息相关接口
	messageGroup := r.Group("/api/messages")
	{
		messageGroup.GET("", optional, message.List)
		messageGroup.GET("/:id", optional, message.Get)
		messageGroup.GET("/:id/reactions", message.Reactions)
		messageGroup.POST("", auth, message.Create)
		messageGroup.PATCH("/:id", auth, message.Patch)
		messageGroup.DELETE("/:id", auth, message.Delete)
		messageGroup.PUT("/:id/reaction", auth, message.SetReaction)
		messageGroup.POST("/:id/favorite", auth, message.ToggleFavorite)
	}

	return r
}
