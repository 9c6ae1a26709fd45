package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"publisher-service/internal/config"
	"publisher-service/internal/domain/entities"
)

type fakeJobCreator struct {
	jobs []*entities.PublishJob
	err  error
}

func (f *fakeJobCreator) CreateJob(_ context.Context, job *entities.PublishJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Platforms.TikTok.SessionName = "creator"
	return cfg
}

func videoPayload(video map[string]interface{}) *MessagePayload {
	return &MessagePayload{
		Type: MessageTypeVideoCreated,
		Data: video,
	}
}

func TestVideoCreatedAutoCreatesJob(t *testing.T) {
	creator := &fakeJobCreator{}
	mp := NewMessageProcessor(creator, testConfig(), nil)

	tenantID := uuid.New()
	videoID := uuid.New()
	payload := videoPayload(map[string]interface{}{
		"id":          videoID.String(),
		"tenantId":    tenantID.String(),
		"title":       "新视频",
		"storagePath": "videos/demo.mp4",
	})

	if err := mp.HandleMessage(TopicVideoEvents, payload); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}

	if len(creator.jobs) != 1 {
		t.Fatalf("期望创建1个任务, 实际 %d", len(creator.jobs))
	}
	job := creator.jobs[0]
	if job.VideoID != videoID {
		t.Errorf("VideoID = %s, 期望 %s", job.VideoID, videoID)
	}
	if job.TenantID != tenantID {
		t.Errorf("TenantID = %s, 期望 %s", job.TenantID, tenantID)
	}
	if job.SessionName != "creator" {
		t.Errorf("SessionName = %q, 期望 creator", job.SessionName)
	}
	if job.Channel != "tiktok" {
		t.Errorf("Channel = %q, 期望 tiktok", job.Channel)
	}
	if job.Status != "pending" {
		t.Errorf("Status = %q, 期望 pending", job.Status)
	}
}

func TestVideoCreatedWithoutStoragePathSkipped(t *testing.T) {
	creator := &fakeJobCreator{}
	mp := NewMessageProcessor(creator, testConfig(), nil)

	payload := videoPayload(map[string]interface{}{
		"id":       uuid.New().String(),
		"tenantId": uuid.New().String(),
		"title":    "未上传完成的视频",
	})

	if err := mp.HandleMessage(TopicVideoEvents, payload); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(creator.jobs) != 0 {
		t.Fatalf("没有存储路径不应创建任务, 实际 %d", len(creator.jobs))
	}
}

func TestVideoCreatedMissingID(t *testing.T) {
	creator := &fakeJobCreator{}
	mp := NewMessageProcessor(creator, testConfig(), nil)

	payload := videoPayload(map[string]interface{}{
		"title":       "缺ID",
		"storagePath": "videos/x.mp4",
	})

	if err := mp.HandleMessage(TopicVideoEvents, payload); err == nil {
		t.Fatal("缺少视频ID应返回错误")
	}
	if len(creator.jobs) != 0 {
		t.Fatalf("不应创建任务, 实际 %d", len(creator.jobs))
	}
}

func TestVideoCreatedCreateJobError(t *testing.T) {
	creator := &fakeJobCreator{err: errors.New("数据库不可用")}
	mp := NewMessageProcessor(creator, testConfig(), nil)

	payload := videoPayload(map[string]interface{}{
		"id":          uuid.New().String(),
		"tenantId":    uuid.New().String(),
		"storagePath": "videos/demo.mp4",
	})

	if err := mp.HandleMessage(TopicVideoEvents, payload); err == nil {
		t.Fatal("创建任务失败应向上返回错误")
	}
}

func TestVideoUpdatedDoesNotCreateJob(t *testing.T) {
	creator := &fakeJobCreator{}
	mp := NewMessageProcessor(creator, testConfig(), nil)

	payload := &MessagePayload{
		Type: MessageTypeVideoUpdated,
		Data: map[string]interface{}{
			"id":          uuid.New().String(),
			"storagePath": "videos/demo.mp4",
		},
	}

	if err := mp.HandleMessage(TopicVideoEvents, payload); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(creator.jobs) != 0 {
		t.Fatalf("更新事件不应创建任务, 实际 %d", len(creator.jobs))
	}
}

func TestPublishEventsLoggedOnly(t *testing.T) {
	creator := &fakeJobCreator{}
	mp := NewMessageProcessor(creator, testConfig(), nil)

	payload := &MessagePayload{
		Type: MessageTypePublishJobCreated,
		Data: map[string]interface{}{"id": uuid.New().String()},
	}

	if err := mp.HandleMessage(TopicPublishEvents, payload); err != nil {
		t.Fatalf("HandleMessage: %v", err)
	}
	if len(creator.jobs) != 0 {
		t.Fatalf("发布事件不应重复创建任务, 实际 %d", len(creator.jobs))
	}
}

func TestUnknownTopicRejected(t *testing.T) {
	mp := NewMessageProcessor(&fakeJobCreator{}, testConfig(), nil)
	if err := mp.HandleMessage("unknown-topic", &MessagePayload{Type: "x"}); err == nil {
		t.Fatal("未知主题应返回错误")
	}
}
