package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
	"unicode/utf8"
)

const (
	// 标题+描述+关键词的总长度上限（字符数）
	maxCombinedText = 2200

	// 截断时额外保留的安全余量
	truncateBuffer = 10

	// 定时发布偏移的合法区间：20分钟到10天（秒）
	minScheduleOffset = 900
	maxScheduleOffset = 864000

	// 发布阶段的最大尝试次数
	maxPublishAttempts = 3

	// 发布重试之间的固定等待
	publishRetryPause = 2 * time.Second

	// 发布接口返回的"参数无效"状态码，触发载荷修复后重试
	statusInvalidParams = 5
)

// UploadParams 一次视频发布任务的全部输入。
// 文案和定时字段在重试过程中可能被渐进截断或去定时化。
type UploadParams struct {
	SessionName string
	VideoPath   string
	Title       string
	Description string
	Keywords    string

	// ScheduleOffset 期望的定时发布偏移（距现在的秒数），0表示立即发布
	ScheduleOffset int64

	AllowComment   int
	AllowDuet      int
	AllowStitch    int
	VisibilityType int

	BrandOrganicType   int
	BrandedContentType int
	AILabel            int
}

// Validate 构造期校验。区间外的定时偏移被强制归零（立即发布），
// 标题超长和私密定时属于硬错误。
func (p *UploadParams) Validate() error {
	if p.ScheduleOffset != 0 && (p.ScheduleOffset < minScheduleOffset || p.ScheduleOffset > maxScheduleOffset) {
		p.ScheduleOffset = 0
	}
	if utf8.RuneCountInString(p.Title) > maxCombinedText {
		return fmt.Errorf("%w: 标题超过%d字符", ErrValidation, maxCombinedText)
	}
	if p.ScheduleOffset != 0 && p.VisibilityType == 1 {
		return fmt.Errorf("%w: 私密视频不能定时发布", ErrValidation)
	}
	return nil
}

// PublishResult 发布成功的最终结果
type PublishResult struct {
	// Scheduled 是否真正定时发布。即使调用方请求了定时，
	// 重试过程中定时字段被剥离后这里也会是false。
	Scheduled    bool
	ScheduleTime int64
	VideoID      string
	CreationID   string
	ProjectID    string
}

// Publish 执行完整的发布状态机：
// 加载会话 -> 创建项目 -> 分片上传 -> 提交元数据 -> 带签名的发布请求（最多3次尝试）。
func (c *Client) Publish(ctx context.Context, params *UploadParams) (*PublishResult, error) {
	// 加载会话Cookie。缺少sessionid是致命前置条件，在发起任何
	// 网络调用之前就中止。
	cookies, err := LoadCookies(c.sessionDir, params.SessionName)
	if err != nil {
		return nil, err
	}

	sessionID := cookieValue(cookies, "sessionid")
	if sessionID == "" {
		return nil, ErrNoSession
	}

	idc := cookieValue(cookies, "tt-target-idc")
	if idc == "" {
		c.logger.Printf("[警告] 会话缺少tt-target-idc，回退到默认数据中心 %s", c.fallbackIDC)
		idc = c.fallbackIDC
	}
	c.logger.Printf("会话加载成功，数据中心: %s", idc)

	if err := params.Validate(); err != nil {
		return nil, err
	}

	if err := c.seedSession(sessionID, idc); err != nil {
		return nil, err
	}

	// 创建项目
	creationID := newCreationID()
	projectID, err := c.createProject(ctx, creationID)
	if err != nil {
		return nil, fmt.Errorf("创建项目失败: %w", err)
	}

	// 分片上传视频
	upload, err := c.uploadVideo(ctx, params.VideoPath)
	if err != nil {
		return nil, err
	}

	// 结束上传并提交元数据，二者都是不可重发的状态转换
	if err := c.finishUpload(ctx, upload); err != nil {
		return nil, err
	}
	if err := c.commitUpload(ctx, upload); err != nil {
		return nil, err
	}

	// 预热会话，促使服务端下发msToken
	if err := c.refreshSession(ctx); err != nil {
		return nil, err
	}

	return c.publishProject(ctx, params, creationID, projectID, upload.VideoID)
}

// createProject 创建发布项目
func (c *Client) createProject(ctx context.Context, creationID string) (string, error) {
	reqURL := fmt.Sprintf("%s/api/v1/web/project/create/?creation_id=%s&type=1&aid=1988", c.apiHost, creationID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, nil)
	if err != nil {
		return "", fmt.Errorf("创建请求失败: %w", err)
	}

	var result projectCreateResponse
	if err := c.doJSON(req, &result); err != nil {
		return "", err
	}
	if result.Project.ProjectID == "" {
		return "", fmt.Errorf("响应缺少project_id: %s", result.StatusMsg)
	}

	return result.Project.ProjectID, nil
}

// publishProject 发布阶段的尝试循环。每次尝试取新鲜的msToken和签名；
// status_code==5时先做确定性的载荷修复再重试。
func (c *Client) publishProject(ctx context.Context, params *UploadParams, creationID, projectID, videoID string) (*PublishResult, error) {
	// 提交前先把文案压进长度预算
	title, description, keywords := truncateText(params.Title, params.Description, params.Keywords)

	payload := c.buildPayload(params, creationID, videoID, title, description, keywords)

	// 定时字段：附加前再做一次区间防御检查
	scheduled := false
	var scheduleTime int64
	if params.ScheduleOffset >= minScheduleOffset && params.ScheduleOffset <= maxScheduleOffset {
		scheduleTime = c.now().Unix() + params.ScheduleOffset
		payload.FeatureCommonInfoList[0].ScheduleTime = scheduleTime
		scheduled = true
		c.logger.Printf("视频将定时发布于 %s (%d秒后)", time.Unix(scheduleTime, 0).Format("2006-01-02 15:04:05"), params.ScheduleOffset)
	}

	var lastErr error
	for attempt := 1; attempt <= maxPublishAttempts; attempt++ {
		if attempt > 1 {
			c.sleep(publishRetryPause)
		}

		resp, err := c.postProject(ctx, payload)
		if err != nil {
			lastErr = err
			c.logger.Printf("发布请求失败: %v (第%d/%d次尝试)", err, attempt, maxPublishAttempts)
			continue
		}

		switch {
		case resp.StatusCode == 0:
			if scheduled {
				c.logger.Printf("发布成功 | 定时于 %s", time.Unix(scheduleTime, 0).Format("2006-01-02 15:04:05"))
			} else {
				c.logger.Printf("发布成功 | 立即发布")
			}
			return &PublishResult{
				Scheduled:    scheduled,
				ScheduleTime: scheduleTime,
				VideoID:      videoID,
				CreationID:   creationID,
				ProjectID:    projectID,
			}, nil

		case resp.StatusCode == statusInvalidParams:
			c.logger.Printf("参数无效: %s", resp.StatusMsg)
			lastErr = fmt.Errorf("status_code %d: %s", resp.StatusCode, resp.StatusMsg)

			// 修复一：文案超长则按关键词->描述的顺序截断后重建文案
			if utf8.RuneCountInString(combinedText(title, description, keywords)) > maxCombinedText {
				title, description, keywords = truncateText(title, description, keywords)
				text := combinedText(title, description, keywords)
				payload.SinglePostReqList[0].SinglePostFeatureInfo.Text = text
				payload.SinglePostReqList[0].SinglePostFeatureInfo.MarkupText = text
				c.logger.Printf("文案超长，已截断后重试")
			}

			// 修复二：定时参数疑似是该错误的常见诱因（未经服务端证实的
			// 启发式）。首次尝试带定时失败时剥离定时字段重试。
			if scheduled && attempt == 1 {
				payload.FeatureCommonInfoList[0].ScheduleTime = 0
				scheduled = false
				c.logger.Printf("剥离定时字段后重试")
			}

		default:
			lastErr = fmt.Errorf("status_code %d: %s", resp.StatusCode, resp.StatusMsg)
			c.logger.Printf("发布失败: %v (第%d/%d次尝试)", lastErr, attempt, maxPublishAttempts)
		}
	}

	return nil, fmt.Errorf("%w: 重试%d次后仍失败: %v", ErrRemoteRejected, maxPublishAttempts, lastErr)
}

// postProject 执行单次发布尝试：获取msToken、计算签名、提交发布请求
func (c *Client) postProject(ctx context.Context, payload *projectPostRequest) (*projectPostResponse, error) {
	// 获取反自动化令牌，缺失时轻量刷新会话再取一次
	msToken := c.sessionCookie("msToken")
	if msToken == "" {
		c.logger.Printf("Cookie中没有msToken，刷新会话...")
		if err := c.refreshSession(ctx); err != nil {
			return nil, err
		}
		msToken = c.sessionCookie("msToken")
		if msToken == "" {
			return nil, fmt.Errorf("刷新会话后仍未获取到msToken")
		}
	}

	// 签名必须针对签名专用端点变体计算；实际发布调用的是另一个路径。
	// 这是平台要求的不对称性，改掉会导致发布被拒绝。
	sigURL := fmt.Sprintf("%s/api/v1/web/project/post/?app_name=tiktok_web&channel=tiktok_web&device_platform=web&aid=1988&msToken=%s",
		c.apiHost, msToken)
	sig, err := c.signer.Sign(ctx, sigURL, c.userAgent)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化发布请求体失败: %w", err)
	}

	query := url.Values{}
	query.Set("app_name", "tiktok_web")
	query.Set("channel", "tiktok_web")
	query.Set("device_platform", "web")
	query.Set("aid", "1988")
	query.Set("msToken", msToken)
	query.Set("X-Bogus", sig.XBogus)
	query.Set("_signature", sig.Signature)

	postURL := fmt.Sprintf("%s/tiktok/web/project/post/v1/?%s", c.apiHost, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, postURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建发布请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp := &projectPostResponse{StatusCode: -1}
	if err := c.doJSON(req, resp); err != nil {
		return nil, err
	}

	return resp, nil
}

// buildPayload 从任务参数构造发布请求体
func (c *Client) buildPayload(params *UploadParams, creationID, videoID, title, description, keywords string) *projectPostRequest {
	text := combinedText(title, description, keywords)

	feature := featureCommonInfo{
		GeofencingRegions:  []string{},
		TCMParams:          `{"commerce_toggle_info":{}}`,
		Anchors:            []any{},
		VeditCommonInfo:    veditCommonInfo{VideoID: videoID},
		PrivacySettingInfo: privacySettingInfo{
			VisibilityType: params.VisibilityType,
			AllowDuet:      params.AllowDuet,
			AllowStitch:    params.AllowStitch,
			AllowComment:   params.AllowComment,
		},
	}
	if params.AILabel != 0 {
		feature.AigcInfo = &aigcInfo{AigcLabelType: params.AILabel}
	}

	return &projectPostRequest{
		PostCommonInfo: postCommonInfo{
			CreationID:        creationID,
			EnterPostPageFrom: 1,
			PostType:          3,
		},
		FeatureCommonInfoList: []featureCommonInfo{feature},
		SinglePostReqList: []singlePostReq{
			{
				VideoID: videoID,
				SinglePostFeatureInfo: singlePostFeatureInfo{
					Text:       text,
					TextExtra:  []any{},
					MarkupText: text,
				},
			},
		},
	}
}

// combinedText 拼接最终提交的文案
func combinedText(title, description, keywords string) string {
	return title + " " + description + " " + keywords
}

// truncateText 将文案压进长度预算。截断顺序固定：先关键词、再描述、
// 最后标题，每次多留10字符余量。已合规的文案原样返回。
func truncateText(title, description, keywords string) (string, string, string) {
	excess := utf8.RuneCountInString(combinedText(title, description, keywords)) - maxCombinedText
	if excess <= 0 {
		return title, description, keywords
	}

	if utf8.RuneCountInString(keywords) > excess {
		keywords = cutRunes(keywords, utf8.RuneCountInString(keywords)-excess-truncateBuffer)
		return title, description, keywords
	}
	excess -= utf8.RuneCountInString(keywords)
	keywords = ""
	if excess <= 0 {
		return title, description, keywords
	}

	if utf8.RuneCountInString(description) > excess {
		description = cutRunes(description, utf8.RuneCountInString(description)-excess-truncateBuffer)
		return title, description, keywords
	}
	excess -= utf8.RuneCountInString(description)
	description = ""
	if excess <= 0 {
		return title, description, keywords
	}

	if utf8.RuneCountInString(title) > excess {
		title = cutRunes(title, utf8.RuneCountInString(title)-excess-truncateBuffer)
	}
	return title, description, keywords
}

// cutRunes 按字符数截断字符串，n为负时返回空串
func cutRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
