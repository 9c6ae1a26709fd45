// Package metadata 基于大模型接口为视频生成标题、描述和话题标签。
package metadata

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"publisher-service/internal/config"
)

// VideoMetadata 生成的发布文案
type VideoMetadata struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Keywords    string `json:"keywords"`
}

// Generator 文案生成器接口
type Generator interface {
	// Generate 根据文件名和提示词生成发布文案
	Generate(ctx context.Context, fileName, hint string) (*VideoMetadata, error)
}

// ChatGenerator 调用chat completions接口的实现
type ChatGenerator struct {
	cfg    config.MetadataConfig
	client *http.Client
	logger *log.Logger
}

// NewChatGenerator 创建文案生成器
func NewChatGenerator(cfg config.MetadataConfig, logger *log.Logger) *ChatGenerator {
	if logger == nil {
		logger = log.Default()
	}
	return &ChatGenerator{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		logger: logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

const systemPrompt = `你是短视频发布助手。根据视频文件名和提示生成发布文案，` +
	`只输出JSON对象，字段为title、description、keywords（空格分隔的话题，带#前缀）。`

// Generate 根据文件名和提示词生成发布文案。接口不可用时回退到
// 基于文件名的默认文案，发布流程不因生成失败而中断。
func (g *ChatGenerator) Generate(ctx context.Context, fileName, hint string) (*VideoMetadata, error) {
	if !g.cfg.Enable || g.cfg.APIKey == "" {
		return fallbackMetadata(fileName), nil
	}

	meta, err := g.generate(ctx, fileName, hint)
	if err != nil {
		g.logger.Printf("生成文案失败，使用默认文案: %v", err)
		return fallbackMetadata(fileName), nil
	}
	return meta, nil
}

func (g *ChatGenerator) generate(ctx context.Context, fileName, hint string) (*VideoMetadata, error) {
	userPrompt := fmt.Sprintf("文件名: %s", fileName)
	if hint != "" {
		userPrompt += fmt.Sprintf("\n提示: %s", hint)
	}

	reqBody := chatRequest{
		Model: g.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt},
		},
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.cfg.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("接口返回状态码 %d", resp.StatusCode)
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("解析响应失败: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("响应没有choices")
	}

	return parseMetadata(chatResp.Choices[0].Message.Content)
}

// parseMetadata 从模型输出中提取JSON文案，容忍markdown代码块包裹
func parseMetadata(content string) (*VideoMetadata, error) {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var meta VideoMetadata
	if err := json.Unmarshal([]byte(content), &meta); err != nil {
		return nil, fmt.Errorf("解析文案JSON失败: %w", err)
	}
	if meta.Title == "" {
		return nil, fmt.Errorf("文案缺少标题")
	}

	return &meta, nil
}

// fallbackMetadata 接口不可用时的默认文案
func fallbackMetadata(fileName string) *VideoMetadata {
	name := fileName
	if idx := strings.LastIndex(name, "."); idx > 0 {
		name = name[:idx]
	}
	name = strings.ReplaceAll(name, "_", " ")
	name = strings.ReplaceAll(name, "-", " ")
	if name == "" {
		name = "新视频"
	}
	return &VideoMetadata{
		Title:    name,
		Keywords: "#fyp #viral",
	}
}
