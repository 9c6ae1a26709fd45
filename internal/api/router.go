package api

import (
	"publisher-service/internal/api/handlers"
	"publisher-service/internal/api/middleware"
	"publisher-service/internal/config"
	"publisher-service/internal/services"

	"github.com/gin-gonic/gin"
)

// NewRouter 创建路由
func NewRouter(cfg *config.Config, publishService *services.PublishService) *gin.Engine {
	router := gin.Default()

	// 添加中间件
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())

	// 健康检查路由
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
		})
	})

	// 初始化处理程序
	publishHandler := handlers.NewPublishHandler(publishService)

	// API路由组 - 公共路由
	apiV1 := router.Group("/api/v1")
	{
		// 测试路由
		apiV1.GET("/ping", func(c *gin.Context) {
			c.JSON(200, gin.H{
				"message": "pong",
			})
		})
	}

	// API路由组 - 受保护路由
	protectedAPI := router.Group("/api/v1")
	protectedAPI.Use(middleware.AuthMiddleware(cfg.JWT.Secret))
	{
		// 发布相关路由
		publish := protectedAPI.Group("/publish")
		publish.Use(middleware.TenantAuthMiddleware(cfg.JWT.Secret))
		{
			// 创建发布任务
			publish.POST("/jobs", publishHandler.CreateJob)

			// 获取发布任务列表
			publish.GET("/jobs", publishHandler.ListJobs)

			// 获取单个发布任务
			publish.GET("/jobs/:id", publishHandler.GetJob)

			// 获取平台发布状态
			publish.GET("/status/:channel/:platform_id", publishHandler.GetPublishStatus)
		}
	}

	return router
}
