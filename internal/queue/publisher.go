// Package queue 向 RabbitMQ 发布领域事件。
// 发布失败只返回错误，由调用方决定是否忽略，不影响主流程。
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/config"
)

// AllocationCompletedEvent 批量分配/重平衡完成事件
type AllocationCompletedEvent struct {
	RunID       string    `json:"run_id"`
	Kind        string    `json:"kind"`
	Allocated   int       `json:"allocated"`
	Moved       int       `json:"moved"`
	Unallocated int       `json:"unallocated"`
	FinishedAt  time.Time `json:"finished_at"`
}

// Publisher 事件发布接口
type Publisher interface {
	PublishAllocationCompleted(ctx context.Context, ev AllocationCompletedEvent) error
}

// NopPublisher 未启用消息队列时使用
type NopPublisher struct{}

func (NopPublisher) PublishAllocationCompleted(context.Context, AllocationCompletedEvent) error {
	return nil
}

// AMQPPublisher 每次发布建立独立连接；批量运行频率低，无需常驻连接
type AMQPPublisher struct {
	url    string
	queue  string
	logger *zap.Logger
}

// NewPublisher 按配置创建发布器，未启用时返回 NopPublisher
func NewPublisher(cfg *config.AMQPConfig, logger *zap.Logger) Publisher {
	if !cfg.Enabled {
		return NopPublisher{}
	}
	return &AMQPPublisher{url: cfg.URL, queue: cfg.Queue, logger: logger}
}

func (p *AMQPPublisher) PublishAllocationCompleted(ctx context.Context, ev AllocationCompletedEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("序列化事件失败: %w", err)
	}
	return p.publish(ctx, body)
}

func (p *AMQPPublisher) publish(ctx context.Context, body []byte) error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		p.logger.Warn("RabbitMQ 连接失败", zap.Error(err))
		return err
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Warn("RabbitMQ 打开 channel 失败", zap.Error(err))
		return err
	}
	defer func() { _ = ch.Close() }()

	// 幂等声明，durable 保证 broker 重启后队列仍在
	if _, err := ch.QueueDeclare(p.queue, true, false, false, false, nil); err != nil {
		p.logger.Warn("RabbitMQ 声明队列失败", zap.String("queue", p.queue), zap.Error(err))
		return err
	}

	msg := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		p.logger.Warn("RabbitMQ 发布失败", zap.String("queue", p.queue), zap.Error(err))
		return err
	}
	return nil
}
