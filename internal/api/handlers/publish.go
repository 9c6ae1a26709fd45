package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"publisher-service/internal/domain/entities"
	"publisher-service/internal/services"
)

// PublishHandler 发布处理器
type PublishHandler struct {
	publishService *services.PublishService
}

// NewPublishHandler 创建发布处理器
func NewPublishHandler(publishService *services.PublishService) *PublishHandler {
	return &PublishHandler{
		publishService: publishService,
	}
}

// CreateJobRequest 创建发布任务请求
type CreateJobRequest struct {
	VideoID     string                 `json:"videoId" binding:"required,uuid"`
	SessionName string                 `json:"sessionName" binding:"required"`
	Channel     string                 `json:"channel" binding:"required,oneof=tiktok"`
	Params      map[string]interface{} `json:"params"`
}

// CreateJob 创建发布任务
func (h *PublishHandler) CreateJob(c *gin.Context) {
	var req CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 将字符串ID转换为UUID
	videoID, err := uuid.Parse(req.VideoID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的视频ID"})
		return
	}

	tenantID := currentTenantID(c)

	// 创建任务
	job := entities.NewPublishJob(tenantID, videoID, req.SessionName, req.Channel)
	if req.Params != nil {
		job.Params = req.Params
	}

	// 保存任务
	err = h.publishService.CreateJob(c.Request.Context(), job)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, job)
}

// ListJobs 获取发布任务列表
func (h *PublishHandler) ListJobs(c *gin.Context) {
	// 解析查询参数
	status := c.Query("status")
	videoID := c.Query("videoId")
	sessionName := c.Query("sessionName")
	channel := c.Query("channel")

	tenantID := currentTenantID(c)

	// 查询任务
	jobs, err := h.publishService.ListJobs(c.Request.Context(), tenantID, status, videoID, sessionName, channel)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"data": jobs,
		"meta": gin.H{
			"total": len(jobs),
		},
	})
}

// GetJob 获取单个发布任务
func (h *PublishHandler) GetJob(c *gin.Context) {
	id := c.Param("id")
	jobID, err := uuid.Parse(id)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "无效的任务ID"})
		return
	}

	tenantID := currentTenantID(c)

	// 查询任务
	job, err := h.publishService.GetJob(c.Request.Context(), tenantID, jobID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "任务不存在"})
		return
	}

	c.JSON(http.StatusOK, job)
}

// GetPublishStatus 获取平台发布状态
func (h *PublishHandler) GetPublishStatus(c *gin.Context) {
	channel := c.Param("channel")
	platformID := c.Param("platform_id")

	// 检查参数
	if channel == "" || platformID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "缺少必要参数"})
		return
	}

	// 查询平台状态
	status, err := h.publishService.GetPlatformStatus(c.Request.Context(), channel, platformID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, status)
}

// currentTenantID 从认证中间件注入的上下文取租户ID
func currentTenantID(c *gin.Context) uuid.UUID {
	if v, ok := c.Get("tenantID"); ok {
		if id, ok := v.(uuid.UUID); ok {
			return id
		}
		if s, ok := v.(string); ok {
			if id, err := uuid.Parse(s); err == nil {
				return id
			}
		}
	}
	// 未启用多租户时的默认租户
	return uuid.MustParse("00000000-0000-0000-0000-000000000001")
}
