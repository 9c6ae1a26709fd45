package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config 应用程序配置
type Config struct {
	Server         ServerConfig
	Database       DatabaseConfig
	Kafka          KafkaConfig
	Platforms      PlatformsConfig
	TaskProcessing TaskProcessingConfig
	JWT            JWTConfig
	Nacos          NacosConfig
	Metadata       MetadataConfig
	Storage        StorageConfig
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port                string `yaml:"port"`
	ReadTimeoutSeconds  int    `yaml:"readTimeoutSeconds"`
	WriteTimeoutSeconds int    `yaml:"writeTimeoutSeconds"`
	IdleTimeoutSeconds  int    `yaml:"idleTimeoutSeconds"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// KafkaConfig Kafka配置
type KafkaConfig struct {
	Brokers        []string `yaml:"brokers"`
	Topic          string   `yaml:"topic"`
	ConsumerGroup  string   `yaml:"consumerGroup"`
	ConsumerTopics []string `yaml:"consumerTopics"`
	ProducerTopics []string `yaml:"producerTopics"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret      string `yaml:"secret"`
	ExpiryHours int    `yaml:"expiryHours"`
}

// NacosConfig Nacos配置
type NacosConfig struct {
	ServerAddr  string            `yaml:"server_addr"`  // Nacos服务地址
	NamespaceID string            `yaml:"namespace_id"` // 命名空间ID
	Group       string            `yaml:"group"`        // 分组
	ServiceName string            `yaml:"service_name"` // 服务名称
	Enable      bool              `yaml:"enable"`       // 是否启用服务发现
	Weight      int               `yaml:"weight"`       // 服务权重
	Metadata    map[string]string `yaml:"metadata"`     // 服务元数据
	LogDir      string            `yaml:"log_dir"`      // 日志目录
	CacheDir    string            `yaml:"cache_dir"`    // 缓存目录
}

// PlatformsConfig 平台配置
type PlatformsConfig struct {
	TikTok  TikTokConfig
	TempDir string
}

// TikTokConfig TikTok平台配置
type TikTokConfig struct {
	APIHost      string `yaml:"apiHost"`      // 接口主机，默认 https://www.tiktok.com
	SessionDir   string `yaml:"sessionDir"`   // 会话Cookie文件目录
	SessionName  string `yaml:"sessionName"`  // 默认会话名
	SignerScript string `yaml:"signerScript"` // 签名脚本路径（node）
	UserAgent    string `yaml:"userAgent"`    // 请求User-Agent
	DefaultIDC   string `yaml:"defaultIdc"`   // 会话缺失时的回退数据中心
	Proxy        string `yaml:"proxy"`        // 可选的HTTP代理
}

// MetadataConfig 元数据生成配置（大模型接口）
type MetadataConfig struct {
	BaseURL string `yaml:"baseUrl"`
	APIKey  string `yaml:"apiKey"`
	Model   string `yaml:"model"`
	Enable  bool   `yaml:"enable"`
}

// TaskProcessingConfig 任务处理配置
type TaskProcessingConfig struct {
	RetryIntervalMinutes int  `yaml:"retryIntervalMinutes"`
	MaxRetries           int  `yaml:"maxRetries"`
	EnableDeadLetter     bool `yaml:"enableDeadLetter"`
	TaskTimeoutSeconds   int  `yaml:"taskTimeoutSeconds"`
}

// StorageConfig 存储配置
type StorageConfig struct {
	Type        string `yaml:"type"` // s3, local
	S3Bucket    string `yaml:"s3Bucket"`
	S3Region    string `yaml:"s3Region"`
	S3AccessKey string `yaml:"s3AccessKey"`
	S3SecretKey string `yaml:"s3SecretKey"`
	S3Endpoint  string `yaml:"s3Endpoint"`
	LocalDir    string `yaml:"localDir"`
}

// Load 从默认路径加载配置
func Load() (*Config, error) {
	return LoadConfig(getConfigPath())
}

// LoadConfig 从文件加载配置并填充默认值
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	// 设置默认值
	if config.Server.Port == "" {
		config.Server.Port = "8082"
	}
	if config.Server.ReadTimeoutSeconds == 0 {
		config.Server.ReadTimeoutSeconds = 10
	}
	if config.Server.WriteTimeoutSeconds == 0 {
		config.Server.WriteTimeoutSeconds = 10
	}
	if config.Server.IdleTimeoutSeconds == 0 {
		config.Server.IdleTimeoutSeconds = 60
	}

	// 设置Kafka默认值
	if len(config.Kafka.Brokers) == 0 {
		config.Kafka.Brokers = []string{"kafka:9092"}
	}
	if config.Kafka.ConsumerGroup == "" {
		config.Kafka.ConsumerGroup = "publisher-service"
	}

	// 设置任务处理默认值
	if config.TaskProcessing.MaxRetries == 0 {
		config.TaskProcessing.MaxRetries = 3
	}
	if config.TaskProcessing.RetryIntervalMinutes == 0 {
		config.TaskProcessing.RetryIntervalMinutes = 5
	}

	// 设置JWT默认值
	if config.JWT.Secret == "" {
		config.JWT.Secret = "default-jwt-secret-key"
	}
	if config.JWT.ExpiryHours == 0 {
		config.JWT.ExpiryHours = 24
	}

	// 设置TikTok默认值
	if config.Platforms.TikTok.SessionDir == "" {
		config.Platforms.TikTok.SessionDir = "sessions"
	}
	if config.Platforms.TikTok.SessionName == "" {
		config.Platforms.TikTok.SessionName = "default"
	}
	if config.Platforms.TempDir == "" {
		config.Platforms.TempDir = os.TempDir()
	}

	return &config, nil
}

// getConfigPath 获取配置文件路径
func getConfigPath() string {
	// 优先使用环境变量
	configPath := os.Getenv("CONFIG_PATH")
	if configPath != "" {
		return configPath
	}

	// 默认配置文件路径
	return "config.yaml"
}
