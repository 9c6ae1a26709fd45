package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"publisher-service/internal/api"
	"publisher-service/internal/config"
	"publisher-service/internal/discovery"
	"publisher-service/internal/domain/repositories"
	"publisher-service/internal/logger"
	"publisher-service/internal/messaging"
	"publisher-service/internal/services"
	"publisher-service/internal/storage"
)

func main() {
	fmt.Println("发布服务启动中...")

	// 初始化日志
	appLog, err := logger.NewLogger(logger.DefaultConfig())
	if err != nil {
		fmt.Printf("初始化日志失败: %v\n", err)
		os.Exit(1)
	}

	// 获取配置文件路径
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	// 加载配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		appLog.Fatal("加载配置失败: %v", err)
	}

	// 获取服务端口
	serverPort := os.Getenv("SERVER_PORT")
	if serverPort == "" {
		serverPort = cfg.Server.Port
	}

	// 初始化数据库
	db, err := storage.NewDBConnection(cfg.Database)
	if err != nil {
		appLog.Fatal("连接数据库失败: %v", err)
	}
	defer db.Close()

	// 创建所需的存储库
	jobRepo := repositories.NewJobRepository(db)
	videoRepo := repositories.NewVideoRepository(db)

	// 创建存储服务
	storageService, err := storage.NewStorageService(cfg.Storage, cfg.Platforms.TempDir)
	if err != nil {
		appLog.Fatal("创建存储服务失败: %v", err)
	}

	// 消息处理器在发布服务之后才能拿到服务实例，先创建空处理器
	messageProcessor := messaging.NewMessageProcessor(nil, cfg, appLog)

	// 创建Kafka客户端，失败时以无消息队列模式运行
	kafkaClient, err := messaging.NewKafkaClient(&cfg.Kafka, messageProcessor, appLog)
	if err != nil {
		appLog.Warn("连接Kafka失败: %v, 将以无消息队列模式运行", err)
		kafkaClient = nil
	}

	// 创建发布服务
	publishService, err := services.NewPublishService(jobRepo, videoRepo, cfg, kafkaClient, storageService, appLog)
	if err != nil {
		appLog.Fatal("创建发布服务失败: %v", err)
	}
	messageProcessor.SetJobCreator(publishService)

	// 启动事件消费者
	consumerCtx, stopConsumer := context.WithCancel(context.Background())
	defer stopConsumer()
	if kafkaClient != nil {
		go func() {
			if err := kafkaClient.StartConsumer(consumerCtx); err != nil {
				appLog.Warn("Kafka消费者退出: %v", err)
			}
		}()
	}

	// 启动任务队列处理器
	taskProcessor, err := messaging.NewTaskProcessor(cfg, publishService, appLog)
	if err != nil {
		appLog.Warn("创建任务处理器失败: %v, 任务队列不可用", err)
	} else {
		if err := taskProcessor.Start(consumerCtx); err != nil {
			appLog.Warn("启动任务处理器失败: %v", err)
		}
		defer taskProcessor.Stop()
	}

	// 初始化API路由
	router := api.NewRouter(cfg, publishService)

	// 创建HTTP服务器
	server := &http.Server{
		Addr:    ":" + serverPort,
		Handler: router,
	}

	// 初始化并注册Nacos服务
	var nacosClient *discovery.Client
	if cfg.Nacos.Enable {
		appLog.Info("Nacos配置: ServerAddr=%s, NamespaceID=%s, Group=%s, ServiceName=%s",
			cfg.Nacos.ServerAddr, cfg.Nacos.NamespaceID, cfg.Nacos.Group, cfg.Nacos.ServiceName)

		nacosClient, err = discovery.NewClient(cfg.Nacos, appLog)
		if err != nil {
			appLog.Warn("初始化Nacos客户端失败: %v", err)
		} else {
			// 获取本机IP并注册服务
			port, _ := strconv.Atoi(serverPort)
			metadata := map[string]string{
				"version": "1.0.0",
				"env":     "dev",
			}
			if cfg.Nacos.Metadata != nil {
				metadata = cfg.Nacos.Metadata
			}
			success, err := nacosClient.RegisterService(
				cfg.Nacos.ServiceName,
				"", // 空字符串表示自动获取本机IP
				port,
				metadata,
			)
			if err != nil {
				appLog.Warn("注册服务到Nacos失败: %v", err)
			} else if success {
				appLog.Info("已成功注册到Nacos，服务名: %s, 端口: %d", cfg.Nacos.ServiceName, port)

				// 启动健康检查
				nacosClient.StartHealthCheck(cfg.Nacos.ServiceName, "", port, 5*time.Second)
			}
		}
	}

	// 在goroutine中启动服务器，以便不阻塞信号处理
	go func() {
		appLog.Info("发布服务已启动，端口: %s", serverPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLog.Fatal("监听错误: %v", err)
		}
	}()

	// 等待中断信号优雅关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLog.Info("正在关闭发布服务...")

	// 从Nacos注销服务
	if cfg.Nacos.Enable && nacosClient != nil {
		port, _ := strconv.Atoi(serverPort)
		_, err := nacosClient.DeregisterService(cfg.Nacos.ServiceName, "", port)
		if err != nil {
			appLog.Warn("从Nacos注销服务失败: %v", err)
		} else {
			appLog.Info("已从Nacos注销服务")
		}
	}

	// 创建一个5秒的超时上下文，用于优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := server.Shutdown(ctx); err != nil {
		appLog.Fatal("服务器关闭错误: %v", err)
	}

	appLog.Info("发布服务已关闭")
}
