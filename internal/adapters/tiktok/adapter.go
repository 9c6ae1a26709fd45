package tiktok

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"publisher-service/internal/config"
	"publisher-service/internal/domain/entities"
)

// Adapter TikTok适配器，把发布任务映射到会话客户端
type Adapter struct {
	client  *Client
	tempDir string
	logger  *log.Logger
}

// NewAdapter 创建TikTok适配器
func NewAdapter(cfg config.TikTokConfig, tempDir string, logger *log.Logger) (*Adapter, error) {
	if logger == nil {
		logger = log.Default()
	}

	client, err := NewClient(cfg, &ScriptSigner{ScriptPath: cfg.SignerScript}, logger)
	if err != nil {
		return nil, err
	}

	return &Adapter{
		client:  client,
		tempDir: tempDir,
		logger:  logger,
	}, nil
}

// UploadVideo 上传并发布视频到TikTok
func (a *Adapter) UploadVideo(ctx context.Context, video *entities.Video, job *entities.PublishJob) error {
	// 下载视频到临时目录
	videoPath, downloaded, err := a.downloadVideo(video.StoragePath)
	if err != nil {
		return fmt.Errorf("下载视频失败: %w", err)
	}
	// 只清理本适配器自己下载的临时文件，外部传入的路径不动
	if downloaded {
		defer os.Remove(videoPath)
	}

	job.Status = "processing"
	job.UpdatedAt = time.Now()

	params := &UploadParams{
		SessionName:    job.SessionName,
		VideoPath:      videoPath,
		Title:          video.Title,
		Description:    video.Description,
		Keywords:       video.Keywords,
		ScheduleOffset: paramInt64(job.Params, "scheduleOffset"),
		AllowComment:   paramInt(job.Params, "allowComment", 1),
		AllowDuet:      paramInt(job.Params, "allowDuet", 0),
		AllowStitch:    paramInt(job.Params, "allowStitch", 0),
		VisibilityType: paramInt(job.Params, "visibilityType", 0),
		AILabel:        paramInt(job.Params, "aiLabel", 0),
	}

	result, err := a.client.Publish(ctx, params)
	if err != nil {
		return fmt.Errorf("发布视频到TikTok失败: %w", err)
	}

	// 更新任务状态
	job.Status = "completed"
	job.CompletedAt = time.Now()
	job.UpdatedAt = time.Now()
	job.Result = map[string]interface{}{
		"platformId": result.VideoID,
		"creationId": result.CreationID,
		"projectId":  result.ProjectID,
		"scheduled":  result.Scheduled,
	}
	if result.Scheduled {
		job.Result["scheduleTime"] = result.ScheduleTime
	}

	a.logger.Printf("成功发布视频到TikTok, 平台ID: %s", result.VideoID)

	return nil
}

// GetPublishStatus 获取发布状态。私有Web接口没有公开的状态查询端点，
// 只能返回任务本地记录的信息。
func (a *Adapter) GetPublishStatus(ctx context.Context, platformID string) (map[string]interface{}, error) {
	return map[string]interface{}{
		"platformId": platformID,
		"status":     "unknown",
		"message":    "平台未提供状态查询接口",
	}, nil
}

// downloadVideo 把视频取到本地临时文件。本地路径原样返回，
// 第二个返回值标记文件是否由本方法下载（需要调用方清理）。
func (a *Adapter) downloadVideo(storagePath string) (string, bool, error) {
	// 检查storagePath是否已经是本地临时文件
	if strings.HasPrefix(filepath.Base(storagePath), "s3_") ||
		strings.HasPrefix(filepath.Base(storagePath), "url_") {
		a.logger.Printf("使用已下载的临时文件: %s", storagePath)
		return storagePath, false, nil
	}

	if !strings.HasPrefix(storagePath, "http://") && !strings.HasPrefix(storagePath, "https://") {
		// 本地路径直接使用
		return storagePath, false, nil
	}

	// 创建临时文件
	tempID := uuid.New().String()
	tempFile := filepath.Join(a.tempDir, fmt.Sprintf("tiktok_%s.mp4", tempID))

	client := &http.Client{Timeout: 5 * time.Minute}
	resp, err := client.Get(storagePath)
	if err != nil {
		return "", false, fmt.Errorf("下载视频失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", false, fmt.Errorf("下载视频失败，状态码: %d", resp.StatusCode)
	}

	out, err := os.Create(tempFile)
	if err != nil {
		return "", false, fmt.Errorf("创建临时文件失败: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, resp.Body); err != nil {
		os.Remove(tempFile)
		return "", false, fmt.Errorf("写入临时文件失败: %w", err)
	}

	return tempFile, true, nil
}

// paramInt 从任务参数读取整数，JSON反序列化后的数字是float64
func paramInt(params map[string]interface{}, key string, def int) int {
	if params == nil {
		return def
	}
	switch v := params[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return def
	}
}

// paramInt64 同paramInt，用于定时偏移等大数值
func paramInt64(params map[string]interface{}, key string) int64 {
	if params == nil {
		return 0
	}
	switch v := params[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}
