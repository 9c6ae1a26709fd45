package tiktok

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestValidateScheduleCoercion(t *testing.T) {
	tests := []struct {
		name       string
		offset     int64
		wantOffset int64
	}{
		{"零保持不变", 0, 0},
		{"低于20分钟归零", 600, 0},
		{"下边界保留", 900, 900},
		{"区间内保留", 3600, 3600},
		{"上边界保留", 864000, 864000},
		{"超过10天归零", 900000, 0},
		{"负值归零", -100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &UploadParams{Title: "测试", ScheduleOffset: tt.offset}
			if err := p.Validate(); err != nil {
				t.Fatalf("Validate() = %v", err)
			}
			if p.ScheduleOffset != tt.wantOffset {
				t.Errorf("ScheduleOffset = %d, 期望 %d", p.ScheduleOffset, tt.wantOffset)
			}
		})
	}
}

func TestValidateTitleTooLong(t *testing.T) {
	p := &UploadParams{Title: strings.Repeat("字", 2201)}
	err := p.Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("期望 ErrValidation, 得到 %v", err)
	}
}

func TestValidatePrivateWithSchedule(t *testing.T) {
	p := &UploadParams{Title: "测试", ScheduleOffset: 3600, VisibilityType: 1}
	err := p.Validate()
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("期望 ErrValidation, 得到 %v", err)
	}

	// 私密但不定时是合法的
	p = &UploadParams{Title: "测试", VisibilityType: 1}
	if err := p.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}
}

func TestTruncateTextNoopUnderLimit(t *testing.T) {
	title, desc, kw := truncateText("标题", "描述", "#话题")
	if title != "标题" || desc != "描述" || kw != "#话题" {
		t.Errorf("合规文案不应被修改: %q %q %q", title, desc, kw)
	}
}

func TestTruncateTextTrimsKeywordsFirst(t *testing.T) {
	title := strings.Repeat("t", 1000)
	desc := strings.Repeat("d", 1000)
	kw := strings.Repeat("k", 500)

	gotTitle, gotDesc, gotKw := truncateText(title, desc, kw)

	if gotTitle != title {
		t.Error("标题不应被截断")
	}
	if gotDesc != desc {
		t.Error("描述不应被截断")
	}
	if utf8.RuneCountInString(gotKw) >= 500 {
		t.Errorf("关键词应被截断, 剩余 %d", utf8.RuneCountInString(gotKw))
	}
	if n := utf8.RuneCountInString(combinedText(gotTitle, gotDesc, gotKw)); n > maxCombinedText {
		t.Errorf("截断后总长 %d 仍超 %d", n, maxCombinedText)
	}
}

func TestTruncateTextCascadesToDescription(t *testing.T) {
	// 关键词全部丢弃也不够，继续截描述
	title := strings.Repeat("t", 1500)
	desc := strings.Repeat("d", 1500)
	kw := strings.Repeat("k", 100)

	gotTitle, gotDesc, gotKw := truncateText(title, desc, kw)

	if gotKw != "" {
		t.Errorf("关键词应被整体丢弃, 得到 %q", gotKw)
	}
	if gotTitle != title {
		t.Error("标题不应被截断")
	}
	if utf8.RuneCountInString(gotDesc) >= 1500 {
		t.Error("描述应被截断")
	}
	if n := utf8.RuneCountInString(combinedText(gotTitle, gotDesc, gotKw)); n > maxCombinedText {
		t.Errorf("截断后总长 %d 仍超 %d", n, maxCombinedText)
	}
}

func TestTruncateTextTitleOnly(t *testing.T) {
	// 只有标题超长时（status_code 5修复路径会遇到），标题被截
	title := strings.Repeat("字", 2500)

	gotTitle, gotDesc, gotKw := truncateText(title, "", "")

	if gotDesc != "" || gotKw != "" {
		t.Errorf("空字段应保持为空: %q %q", gotDesc, gotKw)
	}
	if n := utf8.RuneCountInString(combinedText(gotTitle, gotDesc, gotKw)); n > maxCombinedText {
		t.Errorf("截断后总长 %d 仍超 %d", n, maxCombinedText)
	}
}

func TestTruncateTextIdempotent(t *testing.T) {
	title := strings.Repeat("t", 2000)
	desc := strings.Repeat("d", 1000)
	kw := strings.Repeat("k", 300)

	t1, d1, k1 := truncateText(title, desc, kw)
	t2, d2, k2 := truncateText(t1, d1, k1)

	if t1 != t2 || d1 != d2 || k1 != k2 {
		t.Error("再次截断已合规的文案不应有任何改动")
	}
}

func TestTruncateTextMultibyte(t *testing.T) {
	// 截断按字符数计算，并且不能把多字节字符切成半截
	title := strings.Repeat("视", 1200)
	desc := strings.Repeat("频", 1200)

	gotTitle, gotDesc, _ := truncateText(title, desc, "")

	if !utf8.ValidString(gotTitle) || !utf8.ValidString(gotDesc) {
		t.Fatal("截断产生了非法UTF-8")
	}
	if n := utf8.RuneCountInString(combinedText(gotTitle, gotDesc, "")); n > maxCombinedText {
		t.Errorf("截断后总长 %d 仍超 %d", n, maxCombinedText)
	}
}

func TestCutRunes(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"hello", 3, "hel"},
		{"hello", 10, "hello"},
		{"hello", 0, ""},
		{"hello", -5, ""},
		{"视频发布", 2, "视频"},
	}

	for _, tt := range tests {
		if got := cutRunes(tt.s, tt.n); got != tt.want {
			t.Errorf("cutRunes(%q, %d) = %q, 期望 %q", tt.s, tt.n, got, tt.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrNoSession, false},
		{ErrValidation, false},
		{ErrChunkUpload, true},
		{ErrSignature, true},
		{ErrRemoteRejected, true},
		{errors.New("网络错误"), true},
	}

	for _, tt := range tests {
		if got := Retryable(tt.err); got != tt.want {
			t.Errorf("Retryable(%v) = %v, 期望 %v", tt.err, got, tt.want)
		}
	}
}
