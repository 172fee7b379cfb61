package router

import (
	"net/http"

	"Campus_Hub/internal/gateway"
	"Campus_Hub/internal/handler"
	"Campus_Hub/internal/middleware"
	"Campus_Hub/internal/service"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Services 路由用到的全部服务
type Services struct {
	Access      *service.AccessService
	Users       *service.UserService
	Email       *service.EmailService
	Communities *service.CommunityService
	Members     *service.MembershipService
	Channels    *service.ChannelService
	Messages    *service.MessageService
	Threads     *service.ThreadService
	Degrees     *service.DegreeService
}

type Options struct {
	CORSOrigins []string
	Logger      logrus.FieldLogger
}

func InitRouter(opts Options, svcs Services, gw *gateway.Gateway) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if opts.Logger != nil {
		r.Use(middleware.Logger(opts.Logger))
	}
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins:     opts.CORSOrigins,
			AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
			AllowCredentials: true,
		}))
	}

	var notifier handler.Notifier
	if gw != nil {
		notifier = gw
	}

	user := handler.NewUserHandler(svcs.Users)
	email := handler.NewEmailHandler(svcs.Email)
	community := handler.NewCommunityHandler(svcs.Communities, svcs.Members)
	channel := handler.NewChannelHandler(svcs.Channels)
	message := handler.NewMessageHandler(svcs.Access, svcs.Messages, notifier)
	thread := handler.NewThreadHandler(message, svcs.Threads)
	degree := handler.NewDegreeHandler(svcs.Degrees)
	auth := middleware.AuthMiddleware(svcs.Users)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"msg": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if gw != nil {
		r.GET("/ws/messages", gin.WrapH(gw))
	}

	api := r.Group("/api")

	// 邮件相关接口
	emailGroup := api.Group("/email")
	{
		emailGroup.POST("/:scope/code", email.SendCode)
	}

	// 用户相关接口
	userGroup := api.Group("/user")
	{
		userGroup.POST("/register", user.Register)
		userGroup.POST("/login", user.Login)
		userGroup.POST("/logout", auth, user.Logout)
		userGroup.POST("/reset", user.ResetPassword)
	}

	// token相关接口
	tokenGroup := api.Group("/token")
	{
		tokenGroup.POST("/refresh", user.TokenRefresh)
	}

	// 登录态接口
	authGroup := api.Group("/auth")
	authGroup.Use(auth)
	{
		authGroup.POST("/change-password", user.ChangePassword)
		authGroup.GET("/me", user.Me)
	}

	// 学位目录
	degreeGroup := api.Group("/degrees")
	{
		degreeGroup.GET("", degree.List)
		degreeGroup.GET("/:slug", degree.Get)
		degreeGroup.GET("/:slug/modules", degree.Modules)
	}

	// 社区相关接口
	communityGroup := api.Group("/communities")
	communityGroup.Use(auth)
	{
		communityGroup.POST("", community.Create)
		communityGroup.GET("", community.List)
		communityGroup.GET("/:communityId", community.Get)
		communityGroup.PATCH("/:communityId", community.Update)
		communityGroup.DELETE("/:communityId", community.Delete)
		communityGroup.POST("/:communityId/join", community.Join)
		communityGroup.POST("/:communityId/leave", community.Leave)
		communityGroup.GET("/:communityId/members", community.ListMembers)
		communityGroup.POST("/:communityId/members", community.AddMember)
		communityGroup.PATCH("/:communityId/members/:userId", community.UpdateMember)
	}

	// 频道、授权与消息
	channelGroup := communityGroup.Group("/:communityId/channels")
	{
		channelGroup.POST("", channel.Create)
		channelGroup.GET("", channel.List)
		channelGroup.PATCH("/:channelId", channel.Update)
		channelGroup.DELETE("/:channelId", channel.Delete)
		channelGroup.POST("/:channelId/access", channel.Grant)
		channelGroup.DELETE("/:channelId/access/:userId", channel.Revoke)

		channelGroup.POST("/:channelId/messages", message.Create)
		channelGroup.GET("/:channelId/messages", message.List)
		channelGroup.PATCH("/:channelId/messages/:messageId", message.Edit)

		channelGroup.POST("/:channelId/threads", thread.Create)
		channelGroup.GET("/:channelId/threads", thread.List)
		channelGroup.GET("/:channelId/threads/:threadId", thread.Get)
		channelGroup.POST("/:channelId/threads/:threadId/messages", thread.CreateMessage)
		channelGroup.GET("/:channelId/threads/:threadId/messages", thread.ListMessages)
		channelGroup.POST("/:channelId/threads/:threadId/accept", thread.Accept)
	}

	return r
}
