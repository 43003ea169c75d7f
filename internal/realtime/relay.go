package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Somye55/seatplanner-sub002/pkg/redis"
)

type relayEnvelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisRelay 经 Redis pub/sub 在多个实例之间转发事件
// 每个实例只向本地 Hub 投递来自其他实例的事件
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	logger  *zap.Logger
}

// NewRedisRelay 创建转发器
func NewRedisRelay(client *redis.Client, channel string, logger *zap.Logger) *RedisRelay {
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		logger:  logger,
	}
}

// Forward 发布事件；失败只记录日志，不影响已提交的写入
func (r *RedisRelay) Forward(ev Event) {
	body, err := json.Marshal(relayEnvelope{Origin: r.origin, Event: ev})
	if err != nil {
		r.logger.Error("序列化转发事件失败", zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, body); err != nil {
		r.logger.Warn("转发事件到 Redis 失败", zap.String("type", ev.Type), zap.Error(err))
	}
}

// Start 订阅频道并投递到本地 Hub，ctx 结束时退出
func (r *RedisRelay) Start(ctx context.Context, hub *Hub) {
	msgs := r.client.Subscribe(ctx, r.channel)
	go func() {
		for raw := range msgs {
			var env relayEnvelope
			if err := json.Unmarshal(raw, &env); err != nil {
				r.logger.Warn("解析转发事件失败", zap.Error(err))
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			hub.publishLocal(env.Event)
		}
	}()
}
