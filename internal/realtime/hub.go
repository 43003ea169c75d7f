package realtime

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// Forwarder 将本实例事件转发给其他实例
type Forwarder interface {
	Forward(ev Event)
}

type directMessage struct {
	client *Client
	event  Event
}

// Hub 订阅会话中心。所有客户端状态只在 Run 所在的 goroutine 中访问
type Hub struct {
	register   chan *Client
	unregister chan *Client
	broadcast  chan Event
	direct     chan directMessage
	done       chan struct{}

	clients    map[*Client]struct{}
	forwarder  Forwarder
	sendBuffer int
	logger     *zap.Logger
}

// NewHub 创建 Hub，sendBuffer 为每个客户端的发送队列长度
func NewHub(sendBuffer int, logger *zap.Logger) *Hub {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan Event, 1024),
		direct:     make(chan directMessage, 64),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
		sendBuffer: sendBuffer,
		logger:     logger,
	}
}

// SetForwarder 设置跨实例转发器，需在 Run 之前调用
func (h *Hub) SetForwarder(f Forwarder) {
	h.forwarder = f
}

// Run 事件循环，ctx 结束时关闭所有客户端
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		case client := <-h.register:
			h.clients[client] = struct{}{}
		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.drop(client)
			}
		case msg := <-h.direct:
			if _, ok := h.clients[msg.client]; ok {
				h.deliver(msg.client, msg.event)
			}
		case ev := <-h.broadcast:
			for client := range h.clients {
				if client.scope == ev.Scope {
					h.deliver(client, ev)
				}
			}
		}
	}
}

// Publish 发布事件到本实例并转发到其他实例
// 由提交回调在持有键锁时调用，因此同一键的事件按提交顺序入队
func (h *Hub) Publish(ev Event) {
	h.publishLocal(ev)
	if h.forwarder != nil {
		h.forwarder.Forward(ev)
	}
}

func (h *Hub) publishLocal(ev Event) {
	select {
	case h.broadcast <- ev:
	case <-h.done:
	}
}

// Register 注册客户端
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

// Unregister 注销客户端
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Deliver 仅向单个客户端发送事件（用于 resync），同样经过版本过滤
func (h *Hub) Deliver(c *Client, ev Event) {
	select {
	case h.direct <- directMessage{client: c, event: ev}:
	case <-h.done:
	}
}

// deliver 过滤客户端已见过的版本后入队；队列已满则断开该客户端，由其重新订阅并 resync
func (h *Hub) deliver(c *Client, ev Event) {
	if len(ev.Items) > 0 {
		fresh := make([]Item, 0, len(ev.Items))
		for _, it := range ev.Items {
			if seen, ok := c.lastSeen[it.Key]; ok && it.Version <= seen {
				continue
			}
			fresh = append(fresh, it)
		}
		if len(fresh) == 0 && ev.Type != EventResync {
			return
		}
		ev.Items = fresh
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("序列化推送事件失败", zap.String("type", ev.Type), zap.Error(err))
		return
	}

	select {
	case c.send <- payload:
		for _, it := range ev.Items {
			c.lastSeen[it.Key] = it.Version
		}
	default:
		h.logger.Warn("客户端发送队列已满，断开连接", zap.String("scope", c.scope))
		h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	delete(h.clients, c)
	close(c.send)
	if c.conn != nil {
		c.conn.Close()
	}
}
