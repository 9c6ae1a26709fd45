package tiktok

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Cookie 会话Cookie记录，由外部登录流程写入文件
type Cookie struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Domain string `json:"domain"`
}

// sessionFileName 按会话名拼接持久化文件名
func sessionFileName(sessionName string) string {
	return fmt.Sprintf("tiktok_session-%s.json", sessionName)
}

// LoadCookies 从会话目录加载指定会话的Cookie列表。
// 文件不存在视为空会话，返回空列表而不是错误。
func LoadCookies(dir, sessionName string) ([]Cookie, error) {
	path := filepath.Join(dir, sessionFileName(sessionName))

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("读取会话文件失败: %w", err)
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("解析会话文件失败: %w", err)
	}

	return cookies, nil
}

// SaveCookies 将Cookie列表持久化到会话目录
func SaveCookies(dir, sessionName string, cookies []Cookie) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("创建会话目录失败: %w", err)
	}

	data, err := json.MarshalIndent(cookies, "", "  ")
	if err != nil {
		return fmt.Errorf("序列化会话失败: %w", err)
	}

	path := filepath.Join(dir, sessionFileName(sessionName))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("写入会话文件失败: %w", err)
	}

	return nil
}

// cookieValue 按名称取Cookie值，不存在时返回空字符串
func cookieValue(cookies []Cookie, name string) string {
	for _, c := range cookies {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}
