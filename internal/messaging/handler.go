package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"publisher-service/internal/config"
	"publisher-service/internal/domain/entities"
	"publisher-service/internal/logger"
)

// MessageTypes 消息类型常量
const (
	MessageTypeVideoCreated        = "video.created"
	MessageTypeVideoUpdated        = "video.updated"
	MessageTypePublishJobCreated   = "publish_job.created"
	MessageTypePublishJobUpdated   = "publish_job.updated"
	MessageTypePublishJobCompleted = "publish_job.completed"
)

// Topics 主题常量
const (
	TopicVideoEvents   = "video-events"
	TopicPublishEvents = "publish-events"
	TopicAccountEvents = "account-events"
)

// JobCreator 创建发布任务的能力，由发布服务实现
type JobCreator interface {
	CreateJob(ctx context.Context, job *entities.PublishJob) error
}

// MessageProcessor 消息处理器。消费视频事件自动创建发布任务，
// 消费本服务自己发出的发布事件仅做记录。
type MessageProcessor struct {
	jobs   JobCreator
	config *config.Config
	log    logger.Logger
}

// NewMessageProcessor 创建消息处理器
func NewMessageProcessor(jobs JobCreator, cfg *config.Config, appLog logger.Logger) *MessageProcessor {
	if appLog == nil {
		appLog = logger.NewNop()
	}
	return &MessageProcessor{
		jobs:   jobs,
		config: cfg,
		log:    appLog,
	}
}

// SetJobCreator 设置任务创建服务（发布服务在消费者之后创建时使用）
func (mp *MessageProcessor) SetJobCreator(jobs JobCreator) {
	mp.jobs = jobs
}

// HandleMessage 处理接收到的消息
func (mp *MessageProcessor) HandleMessage(topic string, payload *MessagePayload) error {
	mp.log.WithFields(map[string]interface{}{"topic": topic, "type": payload.Type}).Debug("收到消息")

	switch topic {
	case TopicVideoEvents:
		return mp.handleVideoEvents(payload)
	case TopicPublishEvents:
		return mp.handlePublishEvents(payload)
	case TopicAccountEvents:
		return mp.handleAccountEvents(payload)
	default:
		return fmt.Errorf("未知主题: %s", topic)
	}
}

// handleVideoEvents 处理视频相关事件
func (mp *MessageProcessor) handleVideoEvents(payload *MessagePayload) error {
	switch payload.Type {
	case MessageTypeVideoCreated:
		return mp.handleVideoCreated(payload.Data)
	case MessageTypeVideoUpdated:
		return mp.handleVideoUpdated(payload.Data)
	default:
		return fmt.Errorf("未知的视频事件类型: %s", payload.Type)
	}
}

// handlePublishEvents 处理发布相关事件。这些事件由本服务自己发出，
// 任务已在创建时开始异步处理，这里只做记录，避免重复入库。
func (mp *MessageProcessor) handlePublishEvents(payload *MessagePayload) error {
	switch payload.Type {
	case MessageTypePublishJobCreated, MessageTypePublishJobUpdated:
		mp.log.WithField("type", payload.Type).Debug("收到发布任务事件")
		return nil
	default:
		return fmt.Errorf("未知的发布事件类型: %s", payload.Type)
	}
}

// handleAccountEvents 处理发布账号相关事件
func (mp *MessageProcessor) handleAccountEvents(payload *MessagePayload) error {
	// 账号会话更新等事件，当前仅记录
	mp.log.WithField("type", payload.Type).Info("处理账号事件")
	return nil
}

// handleVideoCreated 处理视频创建事件：为新视频自动创建发布任务
func (mp *MessageProcessor) handleVideoCreated(data interface{}) error {
	video, err := decodeVideo(data)
	if err != nil {
		return err
	}

	if video.ID == uuid.Nil {
		return fmt.Errorf("视频创建事件缺少视频ID")
	}
	if video.StoragePath == "" {
		mp.log.WithField("videoId", video.ID.String()).Warn("视频创建事件没有存储路径，跳过自动发布")
		return nil
	}
	if mp.jobs == nil {
		return fmt.Errorf("发布服务未就绪，无法自动创建任务")
	}

	// 使用配置的默认会话发布到TikTok
	sessionName := mp.config.Platforms.TikTok.SessionName
	job := entities.NewPublishJob(video.TenantID, video.ID, sessionName, "tiktok")

	mp.log.WithFields(map[string]interface{}{
		"videoId": video.ID.String(),
		"jobId":   job.ID.String(),
	}).Info("视频创建事件触发自动发布任务")

	return mp.jobs.CreateJob(context.Background(), job)
}

// handleVideoUpdated 处理视频更新事件
func (mp *MessageProcessor) handleVideoUpdated(data interface{}) error {
	video, err := decodeVideo(data)
	if err != nil {
		return err
	}

	// 更新事件不触发重新发布，已入队的任务使用入队时的视频快照
	mp.log.WithField("videoId", video.ID.String()).Debug("收到视频更新事件")
	return nil
}

// decodeVideo 把消息载荷中的泛型数据还原为视频实体
func decodeVideo(data interface{}) (*entities.Video, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("序列化视频数据失败: %w", err)
	}

	var video entities.Video
	if err := json.Unmarshal(jsonData, &video); err != nil {
		return nil, fmt.Errorf("反序列化视频数据失败: %w", err)
	}

	return &video, nil
}
