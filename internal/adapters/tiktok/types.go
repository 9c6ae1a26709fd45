package tiktok

// 各端点的请求/响应结构。字段名与平台私有Web接口保持逐字一致，
// 包括接口自身的拼写错误（secret_acess_key）。

// projectCreateResponse 创建项目接口响应
type projectCreateResponse struct {
	Project struct {
		ProjectID string `json:"project_id"`
	} `json:"project"`
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}

// uploadAuthResponse 上传授权接口响应，返回对象存储的临时凭证
type uploadAuthResponse struct {
	VideoTokenV5 struct {
		AccessKeyID     string `json:"access_key_id"`
		SecretAccessKey string `json:"secret_acess_key"`
		SessionToken    string `json:"session_token"`
	} `json:"video_token_v5"`
}

// applyUploadResponse 申请上传空间接口响应，返回存储节点描述
type applyUploadResponse struct {
	Result struct {
		InnerUploadAddress struct {
			UploadNodes []uploadNode `json:"UploadNodes"`
		} `json:"InnerUploadAddress"`
	} `json:"Result"`
}

// uploadNode 存储节点：视频ID、存储URI、分片鉴权、上传主机和会话键
type uploadNode struct {
	Vid        string      `json:"Vid"`
	StoreInfos []storeInfo `json:"StoreInfos"`
	UploadHost string      `json:"UploadHost"`
	SessionKey string      `json:"SessionKey"`
}

// storeInfo 存储位置信息
type storeInfo struct {
	StoreURI string `json:"StoreUri"`
	Auth     string `json:"Auth"`
}

// commitUploadRequest 提交上传元数据请求体
type commitUploadRequest struct {
	SessionKey string           `json:"SessionKey"`
	Functions  []commitFunction `json:"Functions"`
}

// commitFunction 提交阶段执行的服务端函数
type commitFunction struct {
	Name string `json:"name"`
}

// 发布请求体，结构与Web端上传页面提交的JSON完全一致。

// postCommonInfo 发布公共信息
type postCommonInfo struct {
	CreationID        string `json:"creation_id"`
	EnterPostPageFrom int    `json:"enter_post_page_from"`
	PostType          int    `json:"post_type"`
}

// veditCommonInfo 视频编辑信息
type veditCommonInfo struct {
	Draft   string `json:"draft"`
	VideoID string `json:"video_id"`
}

// privacySettingInfo 可见性与互动开关
type privacySettingInfo struct {
	VisibilityType int `json:"visibility_type"`
	AllowDuet      int `json:"allow_duet"`
	AllowStitch    int `json:"allow_stitch"`
	AllowComment   int `json:"allow_comment"`
}

// aigcInfo AI生成内容标注
type aigcInfo struct {
	AigcLabelType int `json:"aigc_label_type"`
}

// featureCommonInfo 发布特性信息。schedule_time是可选字段，
// 重试过程中可能被整体移除。
type featureCommonInfo struct {
	GeofencingRegions  []string           `json:"geofencing_regions"`
	PlaylistName       string             `json:"playlist_name"`
	PlaylistID         string             `json:"playlist_id"`
	TCMParams          string             `json:"tcm_params"`
	SoundExemption     int                `json:"sound_exemption"`
	Anchors            []any              `json:"anchors"`
	VeditCommonInfo    veditCommonInfo    `json:"vedit_common_info"`
	PrivacySettingInfo privacySettingInfo `json:"privacy_setting_info"`
	ScheduleTime       int64              `json:"schedule_time,omitempty"`
	AigcInfo           *aigcInfo          `json:"aigc_info,omitempty"`
}

// singlePostFeatureInfo 单条发布的文案信息
type singlePostFeatureInfo struct {
	Text        string   `json:"text"`
	TextExtra   []any    `json:"text_extra"`
	MarkupText  string   `json:"markup_text"`
	MusicInfo   struct{} `json:"music_info"`
	PosterDelay int      `json:"poster_delay"`
}

// singlePostReq 单条发布请求
type singlePostReq struct {
	BatchIndex            int                   `json:"batch_index"`
	VideoID               string                `json:"video_id"`
	IsLongVideo           int                   `json:"is_long_video"`
	SinglePostFeatureInfo singlePostFeatureInfo `json:"single_post_feature_info"`
}

// projectPostRequest 发布接口请求体
type projectPostRequest struct {
	PostCommonInfo        postCommonInfo      `json:"post_common_info"`
	FeatureCommonInfoList []featureCommonInfo `json:"feature_common_info_list"`
	SinglePostReqList     []singlePostReq     `json:"single_post_req_list"`
}

// projectPostResponse 发布接口响应
type projectPostResponse struct {
	StatusCode int    `json:"status_code"`
	StatusMsg  string `json:"status_msg"`
}
