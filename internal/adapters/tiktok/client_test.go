package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"
	"time"

	"publisher-service/internal/config"
)

// stubSigner 返回固定签名的替身
type stubSigner struct {
	err error
}

func (s *stubSigner) Sign(ctx context.Context, targetURL, userAgent string) (*Signature, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &Signature{XBogus: "bogus-value", Signature: "sig-value"}, nil
}

// fakePlatform 模拟平台各端点的测试服务器
type fakePlatform struct {
	mu sync.Mutex

	requestCount int
	chunkParts   []int
	chunkCRCs    []string
	chunkFail    bool
	chunkTries   int
	finishBody   string
	finishCalled bool
	commitCalled bool
	postPayloads []projectPostRequest
	postQueries  []url.Values
	// 每次发布尝试按顺序返回的status_code，用尽后重复最后一个
	postStatus []int
}

func (f *fakePlatform) handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/web/project/create/", func(w http.ResponseWriter, r *http.Request) {
		f.count()
		fmt.Fprint(w, `{"project":{"project_id":"proj-1"},"status_code":0}`)
	})

	mux.HandleFunc("/api/v1/video/upload/auth/", func(w http.ResponseWriter, r *http.Request) {
		f.count()
		fmt.Fprint(w, `{"video_token_v5":{"access_key_id":"AKID","secret_acess_key":"SECRET","session_token":"TOKEN"}}`)
	})

	mux.HandleFunc("/top/v1", func(w http.ResponseWriter, r *http.Request) {
		f.count()
		action := r.URL.Query().Get("Action")
		switch action {
		case "ApplyUploadInner":
			if r.Header.Get("Authorization") == "" {
				http.Error(w, "missing signature", http.StatusForbidden)
				return
			}
			resp := fmt.Sprintf(`{"Result":{"InnerUploadAddress":{"UploadNodes":[
				{"Vid":"v0900001","StoreInfos":[{"StoreUri":"store/obj-1","Auth":"store-auth"}],"UploadHost":"%s","SessionKey":"sess-key"}
			]}}}`, r.Host)
			fmt.Fprint(w, resp)
		case "CommitUploadInner":
			f.mu.Lock()
			f.commitCalled = true
			f.mu.Unlock()
			fmt.Fprint(w, `{}`)
		default:
			http.Error(w, "unknown action", http.StatusBadRequest)
		}
	})

	mux.HandleFunc("/store/obj-1", func(w http.ResponseWriter, r *http.Request) {
		f.count()
		switch r.URL.Query().Get("phase") {
		case "transfer":
			f.mu.Lock()
			f.chunkTries++
			fail := f.chunkFail
			f.mu.Unlock()
			if fail {
				http.Error(w, "storage error", http.StatusInternalServerError)
				return
			}
			part, _ := strconv.Atoi(r.URL.Query().Get("partNumber"))
			f.mu.Lock()
			f.chunkParts = append(f.chunkParts, part)
			f.chunkCRCs = append(f.chunkCRCs, r.Header.Get("Content-Crc32"))
			f.mu.Unlock()
			fmt.Fprint(w, `{}`)
		case "finish":
			body, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.finishCalled = true
			f.finishBody = string(body)
			f.mu.Unlock()
			fmt.Fprint(w, `{}`)
		default:
			http.Error(w, "unknown phase", http.StatusBadRequest)
		}
	})

	mux.HandleFunc("/tiktok/web/project/post/v1/", func(w http.ResponseWriter, r *http.Request) {
		f.count()
		var payload projectPostRequest
		json.NewDecoder(r.Body).Decode(&payload)

		f.mu.Lock()
		f.postPayloads = append(f.postPayloads, payload)
		f.postQueries = append(f.postQueries, r.URL.Query())
		idx := len(f.postPayloads) - 1
		if idx >= len(f.postStatus) {
			idx = len(f.postStatus) - 1
		}
		status := 0
		if len(f.postStatus) > 0 {
			status = f.postStatus[idx]
		}
		f.mu.Unlock()

		fmt.Fprintf(w, `{"status_code":%d,"status_msg":"msg"}`, status)
	})

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		f.count()
		// 会话刷新：下发反自动化令牌
		http.SetCookie(w, &http.Cookie{Name: "msToken", Value: "ms-token-1", Path: "/"})
	})

	return mux
}

func (f *fakePlatform) count() {
	f.mu.Lock()
	f.requestCount++
	f.mu.Unlock()
}

// newTestClient 构造指向测试服务器的客户端
func newTestClient(t *testing.T, serverURL string) (*Client, string) {
	t.Helper()

	sessionDir := t.TempDir()
	cookies := []Cookie{
		{Name: "sessionid", Value: "sid-123", Domain: ".tiktok.com"},
		{Name: "tt-target-idc", Value: "useast2a", Domain: ".tiktok.com"},
	}
	if err := SaveCookies(sessionDir, "creator", cookies); err != nil {
		t.Fatalf("保存会话失败: %v", err)
	}

	client, err := NewClient(config.TikTokConfig{
		APIHost:    serverURL,
		SessionDir: sessionDir,
	}, &stubSigner{}, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("创建客户端失败: %v", err)
	}

	client.uploadScheme = "http"
	client.sleep = func(time.Duration) {}
	client.now = func() time.Time { return time.Unix(1700000000, 0) }

	return client, sessionDir
}

// writeTestVideo 生成指定大小的测试视频文件
func writeTestVideo(t *testing.T, size int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "video.mp4")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, size), 0644); err != nil {
		t.Fatalf("写测试视频失败: %v", err)
	}
	return path
}

func TestPublishImmediate(t *testing.T) {
	platform := &fakePlatform{postStatus: []int{0}}
	server := httptest.NewServer(platform.handler())
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	videoPath := writeTestVideo(t, chunkSize+1000) // 两个分片

	result, err := client.Publish(context.Background(), &UploadParams{
		SessionName:  "creator",
		VideoPath:    videoPath,
		Title:        "我的视频",
		Description:  "描述内容",
		Keywords:     "#测试",
		AllowComment: 1,
	})
	if err != nil {
		t.Fatalf("Publish() = %v", err)
	}

	if result.VideoID != "v0900001" {
		t.Errorf("VideoID = %q", result.VideoID)
	}
	if result.ProjectID != "proj-1" {
		t.Errorf("ProjectID = %q", result.ProjectID)
	}
	if result.Scheduled {
		t.Error("未请求定时的任务不应标记为定时")
	}
	if len(result.CreationID) != 21 {
		t.Errorf("CreationID长度 = %d, 期望 21", len(result.CreationID))
	}

	// 分片按1..N顺序传输
	if len(platform.chunkParts) != 2 || platform.chunkParts[0] != 1 || platform.chunkParts[1] != 2 {
		t.Errorf("分片序号 = %v, 期望 [1 2]", platform.chunkParts)
	}

	// 结束清单与分片校验和一一对应
	wantManifest := fmt.Sprintf("1:%s,2:%s", platform.chunkCRCs[0], platform.chunkCRCs[1])
	if platform.finishBody != wantManifest {
		t.Errorf("结束清单 = %q, 期望 %q", platform.finishBody, wantManifest)
	}
	if !platform.commitCalled {
		t.Error("未提交上传元数据")
	}

	// 发布请求携带签名与令牌
	q := platform.postQueries[0]
	if q.Get("X-Bogus") != "bogus-value" || q.Get("_signature") != "sig-value" {
		t.Errorf("发布请求缺少签名参数: %v", q)
	}
	if q.Get("msToken") != "ms-token-1" {
		t.Errorf("msToken = %q", q.Get("msToken"))
	}
	if q.Get("aid") != "1988" {
		t.Errorf("aid = %q", q.Get("aid"))
	}

	// 发布载荷
	payload := platform.postPayloads[0]
	if payload.SinglePostReqList[0].VideoID != "v0900001" {
		t.Errorf("载荷video_id = %q", payload.SinglePostReqList[0].VideoID)
	}
	wantText := "我的视频 描述内容 #测试"
	if payload.SinglePostReqList[0].SinglePostFeatureInfo.Text != wantText {
		t.Errorf("载荷文案 = %q, 期望 %q", payload.SinglePostReqList[0].SinglePostFeatureInfo.Text, wantText)
	}
	if payload.FeatureCommonInfoList[0].ScheduleTime != 0 {
		t.Error("立即发布不应携带定时字段")
	}
	if payload.FeatureCommonInfoList[0].PrivacySettingInfo.AllowComment != 1 {
		t.Error("载荷缺少互动开关")
	}
}

func TestPublishScheduled(t *testing.T) {
	platform := &fakePlatform{postStatus: []int{0}}
	server := httptest.NewServer(platform.handler())
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	videoPath := writeTestVideo(t, 1024)

	result, err := client.Publish(context.Background(), &UploadParams{
		SessionName:    "creator",
		VideoPath:      videoPath,
		Title:          "定时视频",
		ScheduleOffset: 3600,
	})
	if err != nil {
		t.Fatalf("Publish() = %v", err)
	}

	if !result.Scheduled {
		t.Fatal("应标记为定时发布")
	}
	wantTime := int64(1700000000 + 3600)
	if result.ScheduleTime != wantTime {
		t.Errorf("ScheduleTime = %d, 期望 %d", result.ScheduleTime, wantTime)
	}
	if platform.postPayloads[0].FeatureCommonInfoList[0].ScheduleTime != wantTime {
		t.Errorf("载荷schedule_time = %d", platform.postPayloads[0].FeatureCommonInfoList[0].ScheduleTime)
	}
}

func TestPublishScheduleStrippedOnInvalidParams(t *testing.T) {
	// 首次带定时被拒（status_code 5），剥离定时后第二次成功
	platform := &fakePlatform{postStatus: []int{5, 0}}
	server := httptest.NewServer(platform.handler())
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	videoPath := writeTestVideo(t, 1024)

	result, err := client.Publish(context.Background(), &UploadParams{
		SessionName:    "creator",
		VideoPath:      videoPath,
		Title:          "定时视频",
		ScheduleOffset: 3600,
	})
	if err != nil {
		t.Fatalf("Publish() = %v", err)
	}

	if len(platform.postPayloads) != 2 {
		t.Fatalf("发布尝试次数 = %d, 期望 2", len(platform.postPayloads))
	}
	if platform.postPayloads[0].FeatureCommonInfoList[0].ScheduleTime == 0 {
		t.Error("第一次尝试应携带定时字段")
	}
	if platform.postPayloads[1].FeatureCommonInfoList[0].ScheduleTime != 0 {
		t.Error("第二次尝试应剥离定时字段")
	}
	if result.Scheduled {
		t.Error("定时被剥离后结果不应标记为定时")
	}
}

func TestPublishRejectedAfterRetries(t *testing.T) {
	platform := &fakePlatform{postStatus: []int{3}}
	server := httptest.NewServer(platform.handler())
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	videoPath := writeTestVideo(t, 1024)

	_, err := client.Publish(context.Background(), &UploadParams{
		SessionName: "creator",
		VideoPath:   videoPath,
		Title:       "视频",
	})
	if !errors.Is(err, ErrRemoteRejected) {
		t.Fatalf("期望 ErrRemoteRejected, 得到 %v", err)
	}

	if len(platform.postPayloads) != maxPublishAttempts {
		t.Errorf("发布尝试次数 = %d, 期望 %d", len(platform.postPayloads), maxPublishAttempts)
	}
}

func TestPublishMissingSession(t *testing.T) {
	platform := &fakePlatform{}
	server := httptest.NewServer(platform.handler())
	defer server.Close()

	client, sessionDir := newTestClient(t, server.URL)

	// 覆盖会话文件为缺少sessionid的内容
	if err := SaveCookies(sessionDir, "creator", []Cookie{
		{Name: "tt-target-idc", Value: "useast2a"},
	}); err != nil {
		t.Fatal(err)
	}

	_, err := client.Publish(context.Background(), &UploadParams{
		SessionName: "creator",
		VideoPath:   "unused.mp4",
		Title:       "视频",
	})
	if !errors.Is(err, ErrNoSession) {
		t.Fatalf("期望 ErrNoSession, 得到 %v", err)
	}

	// 前置条件失败必须发生在任何网络调用之前
	if platform.requestCount != 0 {
		t.Errorf("发出了 %d 个请求, 期望 0", platform.requestCount)
	}
}

func TestPublishChunkUploadExhausted(t *testing.T) {
	platform := &fakePlatform{chunkFail: true}
	server := httptest.NewServer(platform.handler())
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	videoPath := writeTestVideo(t, 1024)

	var sleeps []time.Duration
	client.sleep = func(d time.Duration) { sleeps = append(sleeps, d) }

	_, err := client.Publish(context.Background(), &UploadParams{
		SessionName: "creator",
		VideoPath:   videoPath,
		Title:       "视频",
	})
	if !errors.Is(err, ErrChunkUpload) {
		t.Fatalf("期望 ErrChunkUpload, 得到 %v", err)
	}

	if platform.chunkTries != maxChunkRetries {
		t.Errorf("分片尝试次数 = %d, 期望 %d", platform.chunkTries, maxChunkRetries)
	}
	if platform.finishCalled {
		t.Error("分片失败后不应结束上传")
	}
	if platform.commitCalled {
		t.Error("分片失败后不应提交元数据")
	}

	// 指数退避：2s, 4s, 8s, 16s
	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("退避次数 = %d, 期望 %d", len(sleeps), len(want))
	}
	for i, d := range want {
		if sleeps[i] != d {
			t.Errorf("第%d次退避 = %v, 期望 %v", i+1, sleeps[i], d)
		}
	}
}

func TestPublishSignerFailure(t *testing.T) {
	platform := &fakePlatform{}
	server := httptest.NewServer(platform.handler())
	defer server.Close()

	client, _ := newTestClient(t, server.URL)
	client.signer = &stubSigner{err: fmt.Errorf("%w: 脚本退出码1", ErrSignature)}
	videoPath := writeTestVideo(t, 1024)

	_, err := client.Publish(context.Background(), &UploadParams{
		SessionName: "creator",
		VideoPath:   videoPath,
		Title:       "视频",
	})
	if !errors.Is(err, ErrRemoteRejected) {
		t.Fatalf("期望签名失败耗尽重试后返回 ErrRemoteRejected, 得到 %v", err)
	}
	if len(platform.postPayloads) != 0 {
		t.Error("签名失败时不应发出发布请求")
	}
}

func TestNewCreationID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := newCreationID()
		if len(id) != 21 {
			t.Fatalf("创建ID长度 = %d, 期望 21", len(id))
		}
		for _, r := range id {
			if !((r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')) {
				t.Fatalf("创建ID包含非法字符: %q", id)
			}
		}
		seen[id] = true
	}
	if len(seen) < 90 {
		t.Error("创建ID重复率过高")
	}
}
