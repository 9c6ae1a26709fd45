package tiktok

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws/credentials"
	v4 "github.com/aws/aws-sdk-go/aws/signer/v4"
)

const (
	// 分片大小 - 5MB，超出平台单次传输限制会被拒绝
	chunkSize = 5 * 1024 * 1024

	// 对象存储接口使用AWS SigV4签名的服务名和区域
	vodService = "vod"
	vodRegion  = "ap-singapore-1"

	// 单个分片的最大上传尝试次数
	maxChunkRetries = 5

	// 分片重试退避上限
	maxChunkBackoff = 30 * time.Second
)

// uploadResult 分片上传引擎的产物。各字段对发布环节是不透明令牌，
// 引擎本身不解释它们的含义。
type uploadResult struct {
	VideoID    string
	SessionKey string
	UploadID   string
	CRCs       []string
	UploadHost string
	StoreURI   string
	VideoAuth  string
	Creds      *credentials.Credentials
}

// uploadVideo 将视频文件整体传输到平台对象存储：
// 获取上传授权 -> 申请上传空间 -> 顺序上传分片 -> 返回发布所需的标识。
func (c *Client) uploadVideo(ctx context.Context, videoPath string) (*uploadResult, error) {
	// 获取上传授权（本层失败不重试，调用方可整体重试任务）
	creds, err := c.uploadAuth(ctx)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(videoPath)
	if err != nil {
		return nil, fmt.Errorf("读取视频文件失败: %w", err)
	}

	// 按文件精确大小申请上传空间
	node, err := c.applyUpload(ctx, creds, len(content))
	if err != nil {
		return nil, err
	}
	if len(node.StoreInfos) == 0 {
		return nil, fmt.Errorf("申请上传空间响应缺少存储信息")
	}

	result := &uploadResult{
		VideoID:    node.Vid,
		SessionKey: node.SessionKey,
		UploadID:   c.newUploadID(),
		UploadHost: node.UploadHost,
		StoreURI:   node.StoreInfos[0].StoreURI,
		VideoAuth:  node.StoreInfos[0].Auth,
		Creds:      creds,
	}

	// 严格按1..N顺序上传分片；只要有一个分片重试耗尽，整个任务中止，
	// 已上传的分片不保留任何部分成功状态。
	chunks := splitChunks(content, chunkSize)
	for i, chunk := range chunks {
		crc := crcHex(chunk)
		result.CRCs = append(result.CRCs, crc)

		if err := c.uploadChunk(ctx, result, i+1, chunk, crc); err != nil {
			return nil, err
		}
		c.logger.Printf("已上传分片 %d/%d", i+1, len(chunks))
	}

	return result, nil
}

// uploadAuth 获取对象存储临时凭证
func (c *Client) uploadAuth(ctx context.Context) (*credentials.Credentials, error) {
	url := c.apiHost + "/api/v1/video/upload/auth/?aid=1988"

	var result uploadAuthResponse
	if err := c.getJSON(ctx, url, &result); err != nil {
		return nil, fmt.Errorf("获取上传授权失败: %w", err)
	}

	token := result.VideoTokenV5
	if token.AccessKeyID == "" || token.SecretAccessKey == "" {
		return nil, fmt.Errorf("上传授权响应缺少存储凭证")
	}

	return credentials.NewStaticCredentials(token.AccessKeyID, token.SecretAccessKey, token.SessionToken), nil
}

// applyUpload 申请上传空间，返回存储节点描述
func (c *Client) applyUpload(ctx context.Context, creds *credentials.Credentials, fileSize int) (*uploadNode, error) {
	url := fmt.Sprintf("%s/top/v1?Action=ApplyUploadInner&Version=2020-11-19&SpaceName=tiktok&FileType=video&IsInner=1&FileSize=%d&s=g158iqx8434",
		c.apiHost, fileSize)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建申请上传请求失败: %w", err)
	}

	// 对象存储接口要求SigV4签名
	signer := v4.NewSigner(creds)
	if _, err := signer.Sign(req, nil, vodService, vodRegion, time.Now()); err != nil {
		return nil, fmt.Errorf("签名申请上传请求失败: %w", err)
	}

	var result applyUploadResponse
	if err := c.doJSON(req, &result); err != nil {
		return nil, fmt.Errorf("申请上传空间失败: %w", err)
	}

	nodes := result.Result.InnerUploadAddress.UploadNodes
	if len(nodes) == 0 {
		return nil, fmt.Errorf("申请上传空间响应缺少存储节点")
	}

	return &nodes[0], nil
}

// uploadChunk 上传单个分片。传输层错误或非200响应时指数退避重试
// 同一个分片，重试耗尽则整个任务按分片上传失败中止。
func (c *Client) uploadChunk(ctx context.Context, res *uploadResult, partNumber int, chunk []byte, crc string) error {
	url := fmt.Sprintf("%s://%s/%s?partNumber=%d&uploadID=%s&phase=transfer",
		c.uploadScheme, res.UploadHost, res.StoreURI, partNumber, res.UploadID)

	var lastErr error
	for attempt := 1; attempt <= maxChunkRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(chunk))
		if err != nil {
			return fmt.Errorf("创建分片上传请求失败: %w", err)
		}
		req.Header.Set("Authorization", res.VideoAuth)
		req.Header.Set("Content-Type", "application/octet-stream")
		req.Header.Set("Content-Disposition", `attachment; filename="undefined"`)
		req.Header.Set("Content-Crc32", crc)

		resp, err := c.uploadClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("HTTP状态码 %d", resp.StatusCode)
		}

		if attempt < maxChunkRetries {
			wait := chunkBackoff(attempt)
			c.logger.Printf("分片 %d 上传失败: %v, %v后重试 (第%d/%d次)", partNumber, lastErr, wait, attempt+1, maxChunkRetries)
			c.sleep(wait)
		}
	}

	return fmt.Errorf("%w: 分片 %d 重试%d次后仍失败: %v", ErrChunkUpload, partNumber, maxChunkRetries, lastErr)
}

// finishUpload 结束分片上传。这是不可盲目重发的服务端状态转换，
// 失败即任务失败。
func (c *Client) finishUpload(ctx context.Context, res *uploadResult) error {
	url := fmt.Sprintf("%s://%s/%s?uploadID=%s&phase=finish&uploadmode=part",
		c.uploadScheme, res.UploadHost, res.StoreURI, res.UploadID)

	manifest := buildCRCManifest(res.CRCs)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(manifest))
	if err != nil {
		return fmt.Errorf("创建结束上传请求失败: %w", err)
	}
	req.Header.Set("Authorization", res.VideoAuth)
	req.Header.Set("Content-Type", "text/plain;charset=UTF-8")

	resp, err := c.uploadClient.Do(req)
	if err != nil {
		return fmt.Errorf("结束上传请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("结束上传失败，HTTP状态码: %d", resp.StatusCode)
	}

	return nil
}

// commitUpload 提交上传元数据，同样失败即任务失败
func (c *Client) commitUpload(ctx context.Context, res *uploadResult) error {
	url := c.apiHost + "/top/v1?Action=CommitUploadInner&Version=2020-11-19&SpaceName=tiktok"

	body, err := json.Marshal(commitUploadRequest{
		SessionKey: res.SessionKey,
		Functions:  []commitFunction{{Name: "GetMeta"}},
	})
	if err != nil {
		return fmt.Errorf("序列化提交上传请求体失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建提交上传请求失败: %w", err)
	}

	signer := v4.NewSigner(res.Creds)
	if _, err := signer.Sign(req, bytes.NewReader(body), vodService, vodRegion, time.Now()); err != nil {
		return fmt.Errorf("签名提交上传请求失败: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("提交上传请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("提交上传失败，HTTP状态码: %d", resp.StatusCode)
	}

	return nil
}

// splitChunks 将数据切成固定大小的分片，最后一片可以更短
func splitChunks(data []byte, size int) [][]byte {
	var chunks [][]byte
	for i := 0; i < len(data); i += size {
		end := i + size
		if end > len(data) {
			end = len(data)
		}
		chunks = append(chunks, data[i:end])
	}
	return chunks
}

// crcHex 计算分片的CRC32校验和（IEEE多项式，小写十六进制）
func crcHex(data []byte) string {
	return strconv.FormatUint(uint64(crc32.ChecksumIEEE(data)), 16)
}

// buildCRCManifest 构造结束上传用的校验和清单："1:crc1,2:crc2,..."
// 序号从1开始、升序、无空洞。
func buildCRCManifest(crcs []string) string {
	parts := make([]string, len(crcs))
	for i, crc := range crcs {
		parts[i] = fmt.Sprintf("%d:%s", i+1, crc)
	}
	return strings.Join(parts, ",")
}

// chunkBackoff 分片重试的指数退避：2^n秒，上限30秒
func chunkBackoff(attempt int) time.Duration {
	wait := time.Duration(1<<uint(attempt)) * time.Second
	if wait > maxChunkBackoff {
		wait = maxChunkBackoff
	}
	return wait
}
