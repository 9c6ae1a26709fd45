package logger

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newFileLogger(t *testing.T, level string) (Logger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "logs", "publisher.log")
	log, err := NewLogger(Config{
		Level:         level,
		ServiceName:   "publisher-service",
		FilePath:      logPath,
		ConsoleOutput: false,
		JSONFormat:    true,
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	return log, logPath
}

func readEntries(t *testing.T, logPath string) []map[string]interface{} {
	t.Helper()
	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("读取日志文件: %v", err)
	}
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("日志行不是JSON: %q: %v", line, err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLoggerWritesJSONWithServiceField(t *testing.T) {
	log, logPath := newFileLogger(t, LevelInfo)

	log.Info("服务启动，端口: %s", "8080")

	entries := readEntries(t, logPath)
	if len(entries) != 1 {
		t.Fatalf("期望1条日志, 实际 %d", len(entries))
	}
	entry := entries[0]
	if entry["service"] != "publisher-service" {
		t.Errorf("service = %v, 期望 publisher-service", entry["service"])
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, 期望 info", entry["level"])
	}
	if entry["message"] != "服务启动，端口: 8080" {
		t.Errorf("message = %v", entry["message"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	log, logPath := newFileLogger(t, LevelWarn)

	log.Debug("调试信息")
	log.Info("普通信息")
	log.Warn("警告信息")
	log.Error("错误信息")

	entries := readEntries(t, logPath)
	if len(entries) != 2 {
		t.Fatalf("warn级别应只输出2条, 实际 %d", len(entries))
	}
	if entries[0]["level"] != "warning" || entries[1]["level"] != "error" {
		t.Errorf("级别不符: %v, %v", entries[0]["level"], entries[1]["level"])
	}
}

func TestWithFieldsAttachedToEntry(t *testing.T) {
	log, logPath := newFileLogger(t, LevelInfo)

	log.WithField("jobId", "job-1").Info("任务开始")
	log.WithFields(map[string]interface{}{"jobId": "job-2", "channel": "tiktok"}).Warn("任务重试")
	log.WithError(errors.New("连接超时")).Error("发送失败")

	entries := readEntries(t, logPath)
	if len(entries) != 3 {
		t.Fatalf("期望3条日志, 实际 %d", len(entries))
	}
	if entries[0]["jobId"] != "job-1" {
		t.Errorf("jobId = %v, 期望 job-1", entries[0]["jobId"])
	}
	if entries[1]["jobId"] != "job-2" || entries[1]["channel"] != "tiktok" {
		t.Errorf("字段缺失: %v", entries[1])
	}
	if entries[2]["error"] != "连接超时" {
		t.Errorf("error = %v, 期望 连接超时", entries[2]["error"])
	}
	// 派生日志器不影响父级字段
	for _, entry := range entries {
		if entry["service"] != "publisher-service" {
			t.Errorf("派生日志器丢失service字段: %v", entry)
		}
	}
}

func TestDerivedLoggerDoesNotMutateParent(t *testing.T) {
	log, logPath := newFileLogger(t, LevelInfo)

	derived := log.WithField("jobId", "job-1")
	derived.Info("带字段")
	log.Info("不带字段")

	entries := readEntries(t, logPath)
	if len(entries) != 2 {
		t.Fatalf("期望2条日志, 实际 %d", len(entries))
	}
	if entries[0]["jobId"] != "job-1" {
		t.Errorf("派生日志器缺少字段: %v", entries[0])
	}
	if _, ok := entries[1]["jobId"]; ok {
		t.Errorf("父级日志器不应携带派生字段: %v", entries[1])
	}
}

func TestInvalidLevelFallsBackToInfo(t *testing.T) {
	log, logPath := newFileLogger(t, "verbose")

	log.Debug("调试信息")
	log.Info("普通信息")

	entries := readEntries(t, logPath)
	if len(entries) != 1 {
		t.Fatalf("非法级别应回退到info, 实际输出 %d 条", len(entries))
	}
}

func TestNewLoggerCreatesLogDirectory(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "a", "b", "app.log")
	log, err := NewLogger(Config{Level: LevelInfo, ServiceName: "svc", FilePath: logPath})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	log.Info("初始化")
	if _, err := os.Stat(logPath); err != nil {
		t.Fatalf("日志文件未创建: %v", err)
	}
}

func TestStdLoggerBridge(t *testing.T) {
	log, logPath := newFileLogger(t, LevelInfo)

	std := NewStdLogger(log)
	std.Printf("分片 %d 上传完成", 3)

	entries := readEntries(t, logPath)
	if len(entries) != 1 {
		t.Fatalf("期望1条日志, 实际 %d", len(entries))
	}
	if entries[0]["message"] != "分片 3 上传完成" {
		t.Errorf("message = %v", entries[0]["message"])
	}
	if entries[0]["level"] != "info" {
		t.Errorf("level = %v, 期望 info", entries[0]["level"])
	}
}

func TestNopLoggerSilent(t *testing.T) {
	log := NewNop()
	log.Debug("x")
	log.WithField("k", "v").Info("y")
	log.WithError(errors.New("e")).Error("z")
}
