package tiktok

import (
	"bytes"
	"strings"
	"testing"
	"time"
)

func TestSplitChunks(t *testing.T) {
	tests := []struct {
		name      string
		dataLen   int
		size      int
		wantLens  []int
	}{
		{"空数据", 0, 5, nil},
		{"不足一片", 3, 5, []int{3}},
		{"整除", 10, 5, []int{5, 5}},
		{"带尾片", 12, 5, []int{5, 5, 2}},
		{"恰好一片", 5, 5, []int{5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := bytes.Repeat([]byte{0xAB}, tt.dataLen)
			chunks := splitChunks(data, tt.size)

			if len(chunks) != len(tt.wantLens) {
				t.Fatalf("分片数 = %d, 期望 %d", len(chunks), len(tt.wantLens))
			}
			total := 0
			for i, chunk := range chunks {
				if len(chunk) != tt.wantLens[i] {
					t.Errorf("分片%d长度 = %d, 期望 %d", i, len(chunk), tt.wantLens[i])
				}
				total += len(chunk)
			}
			if total != tt.dataLen {
				t.Errorf("分片总长 = %d, 期望 %d", total, tt.dataLen)
			}
		})
	}
}

func TestCrcHex(t *testing.T) {
	// IEEE多项式下 "123456789" 的标准校验值是 0xCBF43926
	got := crcHex([]byte("123456789"))
	if got != "cbf43926" {
		t.Errorf("crcHex = %q, 期望 %q", got, "cbf43926")
	}

	// 十六进制必须是小写且无前导0x
	if strings.ContainsAny(got, "ABCDEF") || strings.HasPrefix(got, "0x") {
		t.Errorf("校验和格式错误: %q", got)
	}
}

func TestBuildCRCManifest(t *testing.T) {
	tests := []struct {
		name string
		crcs []string
		want string
	}{
		{"单片", []string{"aa"}, "1:aa"},
		{"多片升序", []string{"aa", "bb", "cc"}, "1:aa,2:bb,3:cc"},
		{"空", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := buildCRCManifest(tt.crcs); got != tt.want {
				t.Errorf("buildCRCManifest = %q, 期望 %q", got, tt.want)
			}
		})
	}
}

func TestChunkBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second}, // 2^5=32秒，被上限截断
		{10, 30 * time.Second},
	}

	for _, tt := range tests {
		if got := chunkBackoff(tt.attempt); got != tt.want {
			t.Errorf("chunkBackoff(%d) = %v, 期望 %v", tt.attempt, got, tt.want)
		}
	}
}
