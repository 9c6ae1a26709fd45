package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/google/uuid"

	"publisher-service/internal/config"
)

const (
	// 平台Web接口基础URL
	defaultAPIHost = "https://www.tiktok.com"

	// 会话缺少tt-target-idc时回退的默认数据中心
	defaultIDC = "useast2a"

	// 默认User-Agent，配置未指定时使用
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/68.0.3440.106 Safari/537.36"

	// 元数据类短请求的超时；分片传输走单独的长超时客户端
	apiTimeout = 30 * time.Second

	// 分片传输客户端超时，大文件传输需要分钟级的读超时
	uploadTimeout = 5 * time.Minute
)

// Client TikTok私有Web接口客户端。一个Client服务一个会话，
// 同一会话名的并发任务需要由调用方串行化。
type Client struct {
	apiHost      string
	uploadScheme string
	sessionDir   string
	userAgent    string
	fallbackIDC  string
	signer       Signer
	logger       *log.Logger
	jar          *cookiejar.Jar
	httpClient   *http.Client
	uploadClient *http.Client

	// 测试缝隙：重试等待与时间来源
	sleep func(time.Duration)
	now   func() time.Time
}

// NewClient 创建TikTok客户端
func NewClient(cfg config.TikTokConfig, signer Signer, logger *log.Logger) (*Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("创建CookieJar失败: %w", err)
	}

	apiHost := cfg.APIHost
	if apiHost == "" {
		apiHost = defaultAPIHost
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	fallbackIDC := cfg.DefaultIDC
	if fallbackIDC == "" {
		fallbackIDC = defaultIDC
	}

	var transport http.RoundTripper
	if cfg.Proxy != "" {
		proxyURL, err := url.Parse(cfg.Proxy)
		if err != nil {
			return nil, fmt.Errorf("解析代理地址失败: %w", err)
		}
		transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}

	return &Client{
		apiHost:      apiHost,
		uploadScheme: "https",
		sessionDir:   cfg.SessionDir,
		userAgent:    userAgent,
		fallbackIDC:  fallbackIDC,
		signer:       signer,
		logger:       logger,
		jar:          jar,
		httpClient:   &http.Client{Jar: jar, Timeout: apiTimeout, Transport: transport},
		uploadClient: &http.Client{Jar: jar, Timeout: uploadTimeout, Transport: transport},
		sleep:        time.Sleep,
		now:          time.Now,
	}, nil
}

// seedSession 将持久化的会话Cookie装入CookieJar
func (c *Client) seedSession(sessionID, idc string) error {
	u, err := url.Parse(c.apiHost)
	if err != nil {
		return fmt.Errorf("解析API地址失败: %w", err)
	}

	c.jar.SetCookies(u, []*http.Cookie{
		{Name: "sessionid", Value: sessionID, Path: "/"},
		{Name: "tt-target-idc", Value: idc, Path: "/"},
	})

	return nil
}

// sessionCookie 从CookieJar中按名称取Cookie值
func (c *Client) sessionCookie(name string) string {
	u, err := url.Parse(c.apiHost)
	if err != nil {
		return ""
	}
	for _, ck := range c.jar.Cookies(u) {
		if ck.Name == name {
			return ck.Value
		}
	}
	return ""
}

// getJSON 发送GET请求并解析JSON响应
func (c *Client) getJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return fmt.Errorf("创建请求失败: %w", err)
	}
	return c.doJSON(req, out)
}

// doJSON 执行请求并解析JSON响应，非200状态码视为错误
func (c *Client) doJSON(req *http.Request, out any) error {
	req.Header.Set("User-Agent", c.userAgent)
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, text/plain, */*")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("发送请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP状态码 %d", resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析响应失败: %w", err)
	}

	return nil
}

// refreshSession 对站点发一次HEAD请求，促使服务端通过Set-Cookie
// 下发msToken等反自动化令牌
func (c *Client) refreshSession(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.apiHost, nil)
	if err != nil {
		return fmt.Errorf("创建刷新会话请求失败: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("刷新会话失败: %w", err)
	}
	resp.Body.Close()

	return nil
}

// newUploadID 为一次任务的全部分片生成共享的传输ID
func (c *Client) newUploadID() string {
	return uuid.New().String()
}

// creationIDCharset 创建项目用的随机ID字符集
const creationIDCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// newCreationID 生成21位随机创建ID
func newCreationID() string {
	b := make([]byte, 21)
	for i := range b {
		b[i] = creationIDCharset[rand.Intn(len(creationIDCharset))]
	}
	return string(b)
}
