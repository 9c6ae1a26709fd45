package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"

	"publisher-service/internal/config"
)

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    VideoMetadata
		wantErr bool
	}{
		{
			name:    "纯JSON",
			content: `{"title":"标题","description":"描述","keywords":"#a #b"}`,
			want:    VideoMetadata{Title: "标题", Description: "描述", Keywords: "#a #b"},
		},
		{
			name:    "json代码块包裹",
			content: "```json\n{\"title\":\"标题\",\"keywords\":\"#a\"}\n```",
			want:    VideoMetadata{Title: "标题", Keywords: "#a"},
		},
		{
			name:    "裸代码块包裹",
			content: "```\n{\"title\":\"标题\"}\n```",
			want:    VideoMetadata{Title: "标题"},
		},
		{
			name:    "非JSON输出",
			content: "这不是JSON",
			wantErr: true,
		},
		{
			name:    "缺少标题",
			content: `{"description":"只有描述"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMetadata(tt.content)
			if tt.wantErr {
				if err == nil {
					t.Fatal("期望错误, 得到 nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("parseMetadata() = %v", err)
			}
			if *got != tt.want {
				t.Errorf("parseMetadata() = %+v, 期望 %+v", *got, tt.want)
			}
		})
	}
}

func TestFallbackMetadata(t *testing.T) {
	tests := []struct {
		fileName  string
		wantTitle string
	}{
		{"my_cool-video.mp4", "my cool video"},
		{"视频.mov", "视频"},
		{"noext", "noext"},
		{"", "新视频"},
	}

	for _, tt := range tests {
		meta := fallbackMetadata(tt.fileName)
		if meta.Title != tt.wantTitle {
			t.Errorf("fallbackMetadata(%q).Title = %q, 期望 %q", tt.fileName, meta.Title, tt.wantTitle)
		}
		if meta.Keywords == "" {
			t.Errorf("fallbackMetadata(%q) 缺少默认话题", tt.fileName)
		}
	}
}

func TestGenerateDisabledUsesFallback(t *testing.T) {
	g := NewChatGenerator(config.MetadataConfig{Enable: false}, log.New(io.Discard, "", 0))

	meta, err := g.Generate(context.Background(), "dance_clip.mp4", "")
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}
	if meta.Title != "dance clip" {
		t.Errorf("Title = %q", meta.Title)
	}
}

func TestGenerateFromChatAPI(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}
		var req chatRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Model != "gpt-4o-mini" {
			t.Errorf("model = %q", req.Model)
		}

		fmt.Fprint(w, `{"choices":[{"message":{"content":"{\"title\":\"生成标题\",\"description\":\"生成描述\",\"keywords\":\"#dance\"}"}}]}`)
	}))
	defer server.Close()

	g := NewChatGenerator(config.MetadataConfig{
		Enable:  true,
		BaseURL: server.URL,
		APIKey:  "test-key",
		Model:   "gpt-4o-mini",
	}, log.New(io.Discard, "", 0))

	meta, err := g.Generate(context.Background(), "dance.mp4", "舞蹈视频")
	if err != nil {
		t.Fatalf("Generate() = %v", err)
	}
	if meta.Title != "生成标题" || meta.Keywords != "#dance" {
		t.Errorf("Generate() = %+v", meta)
	}
}

func TestGenerateAPIFailureFallsBack(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	g := NewChatGenerator(config.MetadataConfig{
		Enable:  true,
		BaseURL: server.URL,
		APIKey:  "test-key",
	}, log.New(io.Discard, "", 0))

	meta, err := g.Generate(context.Background(), "clip.mp4", "")
	if err != nil {
		t.Fatalf("接口失败应回退而不是报错, 得到 %v", err)
	}
	if meta.Title != "clip" {
		t.Errorf("回退文案Title = %q", meta.Title)
	}
}
