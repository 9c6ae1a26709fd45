package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"
)

// 签名脚本调用超时。脚本内部跑一个无头JS引擎，正常几秒内返回。
const signTimeout = 30 * time.Second

// Signature 签名脚本的计算结果。签名与URL、User-Agent和时间绑定，
// 对一个URL算出的签名用在另一个URL上是无效的。
type Signature struct {
	XBogus    string `json:"x-bogus"`
	Signature string `json:"signature"`
	SignedURL string `json:"signed_url"`
}

// Signer 请求签名器。对实现方式不做任何假设，测试中可以用固定值替身。
type Signer interface {
	// Sign 为目标URL和User-Agent计算平台签名
	Sign(ctx context.Context, targetURL, userAgent string) (*Signature, error)
}

// ScriptSigner 通过外部Node脚本计算签名的实现。
// 脚本是带版本的黑盒，输出格式可能变化，缺字段一律按签名失败处理。
type ScriptSigner struct {
	// ScriptPath 签名脚本路径（tiktok-signature的browser.js）
	ScriptPath string
}

// NewScriptSigner 创建基于外部脚本的签名器
func NewScriptSigner(scriptPath string) *ScriptSigner {
	return &ScriptSigner{ScriptPath: scriptPath}
}

// signOutput 脚本标准输出的JSON结构
type signOutput struct {
	Status int        `json:"status"`
	Data   *Signature `json:"data"`
}

// Sign 调用Node脚本计算签名
func (s *ScriptSigner) Sign(ctx context.Context, targetURL, userAgent string) (*Signature, error) {
	ctx, cancel := context.WithTimeout(ctx, signTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "node", s.ScriptPath, targetURL, userAgent)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("%w: 执行签名脚本失败: %v", ErrSignature, err)
	}

	var result signOutput
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, fmt.Errorf("%w: 解析签名脚本输出失败: %v", ErrSignature, err)
	}

	// 脚本输出缺少关键字段时同样按签名失败处理
	if result.Data == nil || result.Data.XBogus == "" || result.Data.Signature == "" {
		return nil, fmt.Errorf("%w: 签名脚本输出缺少x-bogus或signature字段", ErrSignature)
	}

	return result.Data, nil
}
