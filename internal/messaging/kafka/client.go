package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"

	"publisher-service/internal/logger"
)

// Client Kafka客户端
type Client struct {
	producer sarama.SyncProducer
	config   *Config
}

// Config Kafka配置
type Config struct {
	Brokers        []string
	ConsumerGroup  string
	ConsumerTopics []string
	ProducerTopics map[string]string
	ServiceName    string
}

// NewClient 创建新的Kafka客户端
func NewClient(config *Config) (*Client, error) {
	// 创建Kafka配置
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Producer.RequiredAcks = sarama.WaitForAll
	kafkaConfig.Producer.Retry.Max = 5
	kafkaConfig.Producer.Return.Successes = true

	// 创建生产者
	producer, err := sarama.NewSyncProducer(config.Brokers, kafkaConfig)
	if err != nil {
		return nil, err
	}

	return &Client{
		producer: producer,
		config:   config,
	}, nil
}

// TaskMessage 任务消息
type TaskMessage struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	RetryCount int             `json:"retryCount"`
}

// TaskQueueConfig 任务队列配置
type TaskQueueConfig struct {
	TaskTopic       string
	RetryTopic      string
	DeadLetterTopic string
	RetryInterval   time.Duration
	MaxRetries      int
}

// TaskProcessor 任务处理器
type TaskProcessor struct {
	client      *Client
	config      *TaskQueueConfig
	handlers    map[string]TaskHandler
	serviceName string
	consumer    sarama.ConsumerGroup
	log         logger.Logger
}

// TaskHandler 任务处理接口
type TaskHandler interface {
	HandleTask(ctx context.Context, task *TaskMessage) error
	GetTaskType() string
}

// NewTaskProcessor 创建任务处理器
func NewTaskProcessor(client *Client, config *TaskQueueConfig, serviceName string, appLog logger.Logger) *TaskProcessor {
	if appLog == nil {
		appLog = logger.NewNop()
	}
	return &TaskProcessor{
		client:      client,
		config:      config,
		handlers:    make(map[string]TaskHandler),
		serviceName: serviceName,
		log:         appLog,
	}
}

// RegisterHandler 注册任务处理器
func (p *TaskProcessor) RegisterHandler(handler TaskHandler) {
	taskType := handler.GetTaskType()
	p.handlers[taskType] = handler
	p.log.WithField("taskType", taskType).Info("已注册任务处理器")
}

// EnqueueTask 将任务加入队列
func (p *TaskProcessor) EnqueueTask(taskType string, payload interface{}, id string) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化任务载荷失败: %w", err)
	}

	task := TaskMessage{
		ID:      id,
		Type:    taskType,
		Payload: data,
	}

	taskData, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("序列化任务消息失败: %w", err)
	}

	msg := &sarama.ProducerMessage{
		Topic: p.config.TaskTopic,
		Key:   sarama.StringEncoder(id),
		Value: sarama.ByteEncoder(taskData),
	}

	partition, offset, err := p.client.producer.SendMessage(msg)
	if err != nil {
		return fmt.Errorf("发送任务消息失败: %w", err)
	}

	p.log.WithFields(map[string]interface{}{
		"taskType":  taskType,
		"taskId":    id,
		"partition": partition,
		"offset":    offset,
	}).Debug("任务已入队")
	return nil
}

// Start 启动任务处理器，消费任务主题并分发给已注册的处理器
func (p *TaskProcessor) Start(ctx context.Context) error {
	kafkaConfig := sarama.NewConfig()
	kafkaConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	kafkaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest

	consumer, err := sarama.NewConsumerGroup(p.client.config.Brokers, p.client.config.ConsumerGroup, kafkaConfig)
	if err != nil {
		return fmt.Errorf("创建任务消费者组失败: %w", err)
	}
	p.consumer = consumer

	go func() {
		topics := []string{p.config.TaskTopic, p.config.RetryTopic}
		for {
			if err := consumer.Consume(ctx, topics, &taskConsumerHandler{processor: p}); err != nil {
				p.log.WithError(err).Error("任务消费者错误")
				return
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	return nil
}

// Stop 停止任务处理器
func (p *TaskProcessor) Stop() {
	if p.consumer != nil {
		if err := p.consumer.Close(); err != nil {
			p.log.WithError(err).Warn("关闭任务消费者失败")
		}
	}
}

// taskConsumerHandler 任务消费回调
type taskConsumerHandler struct {
	processor *TaskProcessor
}

func (h *taskConsumerHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *taskConsumerHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

// ConsumeClaim 消费任务消息并交给对应类型的处理器
func (h *taskConsumerHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		var task TaskMessage
		if err := json.Unmarshal(message.Value, &task); err != nil {
			h.processor.log.WithError(err).Error("解析任务消息失败")
			session.MarkMessage(message, "")
			continue
		}

		handler, ok := h.processor.handlers[task.Type]
		if !ok {
			h.processor.log.WithField("taskType", task.Type).Warn("没有注册的任务处理器")
			session.MarkMessage(message, "")
			continue
		}

		if err := handler.HandleTask(session.Context(), &task); err != nil {
			h.processor.log.WithError(err).WithFields(map[string]interface{}{
				"taskType": task.Type,
				"taskId":   task.ID,
			}).Error("处理任务失败")
			h.processor.retryTask(&task, err)
		}

		session.MarkMessage(message, "")
	}
	return nil
}

// retryTask 任务失败后投递到重试或死信主题
func (p *TaskProcessor) retryTask(task *TaskMessage, cause error) {
	task.RetryCount++

	topic := p.config.RetryTopic
	if task.RetryCount > p.config.MaxRetries {
		topic = p.config.DeadLetterTopic
		p.log.WithError(cause).WithFields(map[string]interface{}{
			"taskId":     task.ID,
			"maxRetries": p.config.MaxRetries,
		}).Error("任务超过最大重试次数，进入死信队列")
	}

	data, err := json.Marshal(task)
	if err != nil {
		p.log.WithError(err).Error("序列化重试任务失败")
		return
	}

	msg := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(task.ID),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := p.client.producer.SendMessage(msg); err != nil {
		p.log.WithError(err).Error("投递重试任务失败")
	}
}

// Close 关闭Kafka连接
func (c *Client) Close() error {
	return c.producer.Close()
}
