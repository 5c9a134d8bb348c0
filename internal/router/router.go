package router

import (
	"net/http"

	"discussable/internal/handlers"
	"discussable/internal/logger"
	"discussable/internal/middleware"
	"discussable/internal/services"

	"github.com/gin-gonic/gin"
)

type Config struct {
	JWTSecret      string
	RateLimitRPS   float64
	RateLimitBurst int
}

// New builds the gin engine with every route registered.
func New(svc *services.Services, log *logger.Logger, cfg Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(log.With("component", "http")))
	RegisterRoutes(r, svc, cfg)
	return r
}

func RegisterRoutes(r *gin.Engine, svc *services.Services, cfg Config) {
	auth := middleware.NewAuthenticator(cfg.JWTSecret, svc.Users)
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)

	discussionHandler := handlers.NewDiscussionHandler(svc.Discussions)
	voteHandler := handlers.NewVoteHandler(svc.Votes, svc.Ranking)
	preferenceHandler := handlers.NewPreferenceHandler(svc.Preferences)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	api.Use(auth.LoadUser())

	// 公共路由，匿名用户只读
	api.GET("/discussions", discussionHandler.List)       // 讨论列表
	api.GET("/discussions/:id", discussionHandler.Detail) // 讨论详情 + 评论树

	// 受保护路由
	authorized := api.Group("")
	authorized.Use(middleware.AuthRequired(), limiter.Middleware())
	{
		authorized.POST("/discussions", discussionHandler.Create)                     // 发起讨论
		authorized.DELETE("/discussions/:id", discussionHandler.Delete)               // 删除讨论
		authorized.POST("/discussions/:id/comments", discussionHandler.CreateComment) // 发表评论
		authorized.POST("/vote/:type/:id", voteHandler.Vote)                          // 投票
		authorized.POST("/stats/:type/:id/refresh", voteHandler.Refresh)              // 异步重算统计
		authorized.POST("/preferences/:type/:id", preferenceHandler.Set)              // 显示/隐藏偏好
		authorized.POST("/users/:id/hide", preferenceHandler.HideAuthor)              // 隐藏某用户的全部评论
	}
}
