// Package discovery 基于Nacos的服务注册与发现。
package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nacos-group/nacos-sdk-go/v2/clients"
	"github.com/nacos-group/nacos-sdk-go/v2/clients/naming_client"
	"github.com/nacos-group/nacos-sdk-go/v2/common/constant"
	"github.com/nacos-group/nacos-sdk-go/v2/vo"

	"publisher-service/internal/config"
	"publisher-service/internal/logger"
)

// Client Nacos客户端
type Client struct {
	config       config.NacosConfig
	namingClient naming_client.INamingClient
	log          logger.Logger
}

// NewClient 创建一个新的Nacos客户端
func NewClient(cfg config.NacosConfig, appLog logger.Logger) (*Client, error) {
	if appLog == nil {
		appLog = logger.NewNop()
	}
	// 设置默认值
	if cfg.NamespaceID == "" {
		cfg.NamespaceID = "public"
	}
	if cfg.Group == "" {
		cfg.Group = "DEFAULT_GROUP"
	}
	if cfg.LogDir == "" {
		cfg.LogDir = "/tmp/nacos/log"
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "/tmp/nacos/cache"
	}

	// 解析服务器地址
	serverAddrs := strings.Split(cfg.ServerAddr, ",")
	serverConfigs := make([]constant.ServerConfig, 0, len(serverAddrs))

	for _, addr := range serverAddrs {
		parts := strings.Split(addr, ":")
		if len(parts) != 2 {
			return nil, fmt.Errorf("无效的服务器地址格式: %s", addr)
		}

		port, err := strconv.Atoi(parts[1])
		if err != nil {
			return nil, fmt.Errorf("无效的端口号: %s", parts[1])
		}

		serverConfigs = append(serverConfigs, constant.ServerConfig{
			IpAddr: parts[0],
			Port:   uint64(port),
		})
	}

	// 创建客户端配置
	clientConfig := constant.ClientConfig{
		NamespaceId:         cfg.NamespaceID,
		TimeoutMs:           5000,
		NotLoadCacheAtStart: true,
		LogDir:              cfg.LogDir,
		CacheDir:            cfg.CacheDir,
		LogLevel:            "info",
	}

	// 创建命名服务客户端
	namingClient, err := clients.NewNamingClient(
		vo.NacosClientParam{
			ClientConfig:  &clientConfig,
			ServerConfigs: serverConfigs,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("创建Nacos命名服务客户端失败: %w", err)
	}

	return &Client{
		config:       cfg,
		namingClient: namingClient,
		log:          appLog,
	}, nil
}

// RegisterService 注册服务实例
func (c *Client) RegisterService(serviceName, ip string, port int, metadata map[string]string) (bool, error) {
	// 如果未指定IP，则尝试获取本机IP
	if ip == "" {
		localIP, err := getLocalIP()
		if err != nil {
			return false, fmt.Errorf("无法获取本机IP: %w", err)
		}
		ip = localIP
	}

	weight := float64(c.config.Weight)
	if weight <= 0 {
		weight = 10
	}

	// 注册服务实例
	success, err := c.namingClient.RegisterInstance(vo.RegisterInstanceParam{
		Ip:          ip,
		Port:        uint64(port),
		ServiceName: serviceName,
		Weight:      weight,
		Enable:      true,
		Healthy:     true,
		Ephemeral:   true,
		Metadata:    metadata,
		GroupName:   c.config.Group,
	})

	if err != nil {
		return false, fmt.Errorf("注册服务实例失败: %w", err)
	}

	return success, nil
}

// DeregisterService 注销服务实例
func (c *Client) DeregisterService(serviceName, ip string, port int) (bool, error) {
	if ip == "" {
		localIP, err := getLocalIP()
		if err != nil {
			return false, fmt.Errorf("无法获取本机IP: %w", err)
		}
		ip = localIP
	}

	success, err := c.namingClient.DeregisterInstance(vo.DeregisterInstanceParam{
		Ip:          ip,
		Port:        uint64(port),
		ServiceName: serviceName,
		Ephemeral:   true,
		GroupName:   c.config.Group,
	})

	if err != nil {
		return false, fmt.Errorf("注销服务实例失败: %w", err)
	}

	return success, nil
}

// StartHealthCheck 周期性上报实例健康状态
func (c *Client) StartHealthCheck(serviceName, ip string, port int, checkInterval time.Duration) {
	if ip == "" {
		localIP, err := getLocalIP()
		if err != nil {
			c.log.WithError(err).Warn("无法获取本机IP，跳过健康检查")
			return
		}
		ip = localIP
	}

	go func() {
		ticker := time.NewTicker(checkInterval)
		defer ticker.Stop()

		for range ticker.C {
			_, err := c.namingClient.UpdateInstance(vo.UpdateInstanceParam{
				Ip:          ip,
				Port:        uint64(port),
				ServiceName: serviceName,
				Weight:      10,
				Enable:      true,
				Healthy:     true,
				Ephemeral:   true,
				GroupName:   c.config.Group,
			})

			if err != nil {
				c.log.WithError(err).Warn("更新服务实例状态失败")
			}
		}
	}()
}

// getLocalIP 获取本机非回环IP
func getLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}

	for _, addr := range addrs {
		if ipNet, ok := addr.(*net.IPNet); ok && !ipNet.IP.IsLoopback() {
			if ipNet.IP.To4() != nil {
				return ipNet.IP.String(), nil
			}
		}
	}

	return "", fmt.Errorf("没有找到可用的本机IP")
}
