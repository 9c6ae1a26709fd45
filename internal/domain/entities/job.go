package entities

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// JSONMap JSONB列的map映射
type JSONMap map[string]interface{}

// Value 实现driver.Valuer，序列化为JSON写库
func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan 实现sql.Scanner，从JSONB列读取
func (m *JSONMap) Scan(src interface{}) error {
	if src == nil {
		*m = nil
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return fmt.Errorf("无法将 %T 扫描为JSONMap", src)
	}
}

// PublishJob 发布任务实体
type PublishJob struct {
	ID          uuid.UUID              `json:"id" db:"id"`
	TenantID    uuid.UUID              `json:"tenantId" db:"tenant_id"`
	VideoID     uuid.UUID              `json:"videoId" db:"video_id"`
	SessionName string                 `json:"sessionName" db:"session_name"` // 发布账号的会话名
	Channel     string                 `json:"channel" db:"channel"`          // 'tiktok'
	Status      string                 `json:"status" db:"status"`            // 'pending', 'processing', 'completed', 'failed', 'retrying'
	Result      JSONMap                `json:"result" db:"result"`
	Params      map[string]interface{} `json:"params,omitempty" db:"-"` // 发布参数，如定时时间、可见性等
	ErrorMsg    string                 `json:"errorMsg" db:"error_msg"`
	CreatedAt   time.Time              `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time              `json:"updatedAt" db:"updated_at"`
	CompletedAt time.Time              `json:"completedAt,omitempty" db:"completed_at"`
	// 重试相关字段
	RetryCount  int        `json:"retryCount" db:"retry_count"`    // 当前重试次数
	MaxRetries  int        `json:"maxRetries" db:"max_retries"`    // 最大重试次数
	NextRetryAt *time.Time `json:"nextRetryAt" db:"next_retry_at"` // 下次重试时间
	LastError   string     `json:"lastError" db:"last_error"`      // 最后一次错误
}

// NewPublishJob 创建新的发布任务
func NewPublishJob(tenantID, videoID uuid.UUID, sessionName, channel string) *PublishJob {
	now := time.Now()
	return &PublishJob{
		ID:          uuid.New(),
		TenantID:    tenantID,
		VideoID:     videoID,
		SessionName: sessionName,
		Channel:     channel,
		Status:      "pending",
		Result:      make(map[string]interface{}),
		Params:      make(map[string]interface{}),
		CreatedAt:   now,
		UpdatedAt:   now,
		RetryCount:  0,
		MaxRetries:  3,
	}
}
