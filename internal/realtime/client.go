package realtime

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

// NewUpgrader 来源策略与 CORS 一致：未配置来源时放行所有来源，
// 否则只接受列表内的 Origin。没有 Origin 头的非浏览器客户端直接放行，鉴权由路由中间件完成
func NewUpgrader(allowOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]struct{}, len(allowOrigins))
	for _, o := range allowOrigins {
		if o = normalizeOrigin(o); o != "" {
			allowed[o] = struct{}{}
		}
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if len(allowed) == 0 || origin == "" {
				return true
			}
			_, ok := allowed[normalizeOrigin(origin)]
			return ok
		},
	}
}

func normalizeOrigin(o string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(o), "/"))
}

// Client 一个订阅会话
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	scope    string
	send     chan []byte
	lastSeen map[string]int // 仅在 Hub.Run 中访问
}

// NewClient 创建订阅会话；conn 为 nil 时仅用于进程内订阅
func NewClient(hub *Hub, conn *websocket.Conn, scope string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		scope:    scope,
		send:     make(chan []byte, hub.sendBuffer),
		lastSeen: make(map[string]int),
	}
}

// Scope 订阅作用域
func (c *Client) Scope() string { return c.scope }

// Messages 进程内订阅者读取推送
func (c *Client) Messages() <-chan []byte { return c.send }

// Serve 启动读写循环，阻塞直到连接关闭
func (c *Client) Serve() {
	go c.writePump()
	c.readPump()
}

// readPump 只处理 pong 与关闭，客户端不通过 websocket 写入数据
func (c *Client) readPump() {
	defer c.hub.Unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
