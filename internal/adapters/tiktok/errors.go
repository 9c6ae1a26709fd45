package tiktok

import (
	"errors"
)

// 错误分类：调用方根据错误类型区分"任务彻底失败，不要重试"
// 和"瞬时故障，稍后可整体重试"。
var (
	// ErrNoSession 会话文件中没有sessionid，前置条件不满足，不可重试
	ErrNoSession = errors.New("会话中缺少sessionid，请先登录保存会话")

	// ErrValidation 参数校验失败（标题过长、私密视频带定时等），不可重试
	ErrValidation = errors.New("发布参数校验失败")

	// ErrChunkUpload 分片上传重试耗尽，任务中止
	ErrChunkUpload = errors.New("分片上传失败")

	// ErrSignature 签名脚本调用失败（退出码非零、输出不是JSON、缺少字段）
	ErrSignature = errors.New("生成请求签名失败")

	// ErrRemoteRejected 发布接口返回非零status_code，重试耗尽后仍失败
	ErrRemoteRejected = errors.New("平台拒绝发布请求")
)

// Retryable 判断错误是否属于"稍后可整体重试"的瞬时类故障。
// 前置条件和参数校验类错误重试也不会成功，返回false。
func Retryable(err error) bool {
	if errors.Is(err, ErrNoSession) || errors.Is(err, ErrValidation) {
		return false
	}
	return true
}
