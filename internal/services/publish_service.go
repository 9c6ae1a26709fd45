package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"publisher-service/internal/adapters/tiktok"
	"publisher-service/internal/config"
	"publisher-service/internal/domain/entities"
	"publisher-service/internal/domain/repositories"
	"publisher-service/internal/logger"
	"publisher-service/internal/metadata"
	"publisher-service/internal/storage"
)

// KafkaProducer Kafka生产者接口
type KafkaProducer interface {
	// SendMessage 发送消息到指定主题
	SendMessage(topic string, messageType string, data interface{}) error
}

// PlatformAdapter 平台适配器接口
type PlatformAdapter interface {
	// UploadVideo 上传视频到平台
	UploadVideo(ctx context.Context, video *entities.Video, job *entities.PublishJob) error

	// GetPublishStatus 获取平台发布状态
	GetPublishStatus(ctx context.Context, platformID string) (map[string]interface{}, error)
}

// PublishService 发布服务
type PublishService struct {
	jobRepository   repositories.JobRepository
	videoRepository repositories.VideoRepository
	tiktokAdapter   PlatformAdapter
	kafkaProducer   KafkaProducer
	storageService  storage.StorageService
	metaGenerator   metadata.Generator
	log             logger.Logger
}

// NewPublishService 创建发布服务
func NewPublishService(
	jobRepo repositories.JobRepository,
	videoRepo repositories.VideoRepository,
	cfg *config.Config,
	kafkaProducer KafkaProducer,
	storageService storage.StorageService,
	appLog logger.Logger,
) (*PublishService, error) {
	if appLog == nil {
		appLog = logger.NewNop()
	}

	// 创建适配器
	tiktokAdapter, err := tiktok.NewAdapter(cfg.Platforms.TikTok, cfg.Platforms.TempDir, logger.NewStdLogger(appLog))
	if err != nil {
		return nil, fmt.Errorf("创建TikTok适配器失败: %w", err)
	}

	return &PublishService{
		jobRepository:   jobRepo,
		videoRepository: videoRepo,
		tiktokAdapter:   tiktokAdapter,
		kafkaProducer:   kafkaProducer,
		storageService:  storageService,
		metaGenerator:   metadata.NewChatGenerator(cfg.Metadata, logger.NewStdLogger(appLog)),
		log:             appLog,
	}, nil
}

// SetKafkaProducer 设置Kafka生产者
func (s *PublishService) SetKafkaProducer(producer KafkaProducer) {
	s.kafkaProducer = producer
}

// CreateJob 创建发布任务
func (s *PublishService) CreateJob(ctx context.Context, job *entities.PublishJob) error {
	// 保存任务
	if err := s.jobRepository.Create(ctx, job); err != nil {
		return fmt.Errorf("保存任务失败: %w", err)
	}

	// 发送任务创建事件
	if s.kafkaProducer != nil {
		// 添加重试相关字段
		jobData := map[string]interface{}{
			"id":          job.ID.String(),
			"tenantId":    job.TenantID.String(),
			"videoId":     job.VideoID.String(),
			"sessionName": job.SessionName,
			"channel":     job.Channel,
			"status":      job.Status,
			"params":      job.Params,
			"retryCount":  0,
			"maxRetries":  3,
			"createdAt":   job.CreatedAt,
			"updatedAt":   job.UpdatedAt,
		}

		if err := s.kafkaProducer.SendMessage("publish-events", "publish_job.created", jobData); err != nil {
			s.log.WithError(err).Warn("发送任务创建事件失败")
		}
	}

	// 异步处理任务
	go s.processJob(job)

	return nil
}

// ListJobs 获取发布任务列表
func (s *PublishService) ListJobs(ctx context.Context, tenantID uuid.UUID, status, videoID, sessionName, channel string) ([]*entities.PublishJob, error) {
	return s.jobRepository.Find(ctx, tenantID, status, videoID, sessionName, channel)
}

// GetJob 获取单个发布任务
func (s *PublishService) GetJob(ctx context.Context, tenantID, jobID uuid.UUID) (*entities.PublishJob, error) {
	return s.jobRepository.FindByID(ctx, tenantID, jobID)
}

// GetPlatformStatus 获取平台发布状态
func (s *PublishService) GetPlatformStatus(ctx context.Context, channel, platformID string) (map[string]interface{}, error) {
	if channel != "tiktok" {
		return nil, fmt.Errorf("不支持的渠道: %s", channel)
	}

	// 查询平台状态
	return s.tiktokAdapter.GetPublishStatus(ctx, platformID)
}

// UpdateJobStatus 更新任务状态
func (s *PublishService) UpdateJobStatus(ctx context.Context, job *entities.PublishJob, status, errorMsg string) error {
	job.Status = status
	job.ErrorMsg = errorMsg
	job.UpdatedAt = time.Now()

	// 如果任务完成，设置完成时间
	if status == "completed" || status == "failed" {
		job.CompletedAt = time.Now()
	}

	// 更新任务状态
	if err := s.jobRepository.Update(ctx, job); err != nil {
		return fmt.Errorf("更新任务状态失败: %w", err)
	}

	// 发送任务更新事件
	if s.kafkaProducer != nil {
		jobData := map[string]interface{}{
			"id":          job.ID.String(),
			"tenantId":    job.TenantID.String(),
			"videoId":     job.VideoID.String(),
			"sessionName": job.SessionName,
			"channel":     job.Channel,
			"status":      status,
			"errorMsg":    errorMsg,
			"result":      job.Result,
			"updatedAt":   job.UpdatedAt,
			"completedAt": job.CompletedAt,
		}

		if err := s.kafkaProducer.SendMessage("publish-events", "publish_job.updated", jobData); err != nil {
			s.log.WithError(err).Warn("发送任务更新事件失败")
		}

		// 如果任务完成或失败，还要发送任务完成事件
		if status == "completed" || status == "failed" {
			if err := s.kafkaProducer.SendMessage("publish-events", "publish_job.completed", jobData); err != nil {
				s.log.WithError(err).Warn("发送任务完成事件失败")
			}
		}
	}

	return nil
}

// processJob 处理发布任务
func (s *PublishService) processJob(job *entities.PublishJob) {
	ctx := context.Background()
	jobLog := s.log.WithField("jobId", job.ID.String())

	// 更新任务状态为处理中
	if err := s.UpdateJobStatus(ctx, job, "processing", ""); err != nil {
		jobLog.WithError(err).Error("更新任务状态失败")
		return
	}

	// 查询视频信息
	video, err := s.videoRepository.FindByID(ctx, job.TenantID, job.VideoID)
	if err != nil {
		jobLog.WithError(err).Error("查询视频信息失败")
		s.UpdateJobStatus(ctx, job, "failed", fmt.Sprintf("查询视频信息失败: %v", err))
		return
	}

	// 视频没有发布文案时自动生成
	if video.Title == "" && s.metaGenerator != nil {
		hint, _ := job.Params["metadataHint"].(string)
		meta, err := s.metaGenerator.Generate(ctx, video.FileName, hint)
		if err != nil {
			jobLog.WithError(err).Warn("生成文案失败")
		} else {
			video.Title = meta.Title
			video.Description = meta.Description
			video.Keywords = meta.Keywords
		}
	}

	// 如果存储服务可用，下载视频到临时目录
	if s.storageService != nil && video.StoragePath != "" {
		tempFilePath, err := s.storageService.DownloadFile(ctx, video.StoragePath)
		if err != nil {
			jobLog.WithError(err).Error("下载视频失败")
			s.UpdateJobStatus(ctx, job, "failed", fmt.Sprintf("下载视频失败: %v", err))
			return
		}

		// 更新视频的临时存储路径
		video.StoragePath = tempFilePath

		// 任务完成后清理临时文件
		defer func() {
			if err := s.storageService.CleanupTempFiles(); err != nil {
				jobLog.WithError(err).Warn("清理临时文件失败")
			}
		}()
	}

	// 根据渠道选择适配器
	if job.Channel != "tiktok" {
		s.UpdateJobStatus(ctx, job, "failed", fmt.Sprintf("不支持的渠道: %s", job.Channel))
		return
	}

	// 上传视频到平台
	err = s.tiktokAdapter.UploadVideo(ctx, video, job)
	if err != nil {
		jobLog.WithError(err).Error("上传视频到%s失败", job.Channel)
		s.UpdateJobStatus(ctx, job, "failed", fmt.Sprintf("上传视频失败: %v", err))
		return
	}

	// 更新任务状态为已完成
	s.UpdateJobStatus(ctx, job, "completed", "")
}

// GetVideo 获取视频信息
func (s *PublishService) GetVideo(ctx context.Context, tenantID, videoID uuid.UUID) (*entities.Video, error) {
	return s.videoRepository.FindByID(ctx, tenantID, videoID)
}

// PublishToTikTok 发布到TikTok
func (s *PublishService) PublishToTikTok(ctx context.Context, job *entities.PublishJob, video *entities.Video) error {
	if s.tiktokAdapter == nil {
		return fmt.Errorf("TikTok适配器未配置")
	}

	// 上传视频到平台
	return s.tiktokAdapter.UploadVideo(ctx, video, job)
}
