package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Salojohn/temp-mail-api/internal/domain"
)

// MessageType 定义WebSocket消息类型
type MessageType string

const (
	MessageTypeNewMail MessageType = "new_mail"
	MessageTypePing    MessageType = "ping"
)

// Message 定义WebSocket消息结构
type Message struct {
	Type      MessageType     `json:"type"`
	Local     string          `json:"local,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// upgraderFactory 创建带有 Origin 验证的 WebSocket 升级器
func upgraderFactory(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			for _, origin := range allowedOrigins {
				if origin == "*" {
					return true
				}
			}

			requestOrigin := r.Header.Get("Origin")
			if requestOrigin == "" {
				// 没有 Origin 视作同源请求
				return true
			}

			for _, origin := range allowedOrigins {
				if requestOrigin == origin {
					return true
				}
			}
			return false
		},
	}
}

// Client 代表一个订阅单个邮箱的 WebSocket 连接
type Client struct {
	conn  *websocket.Conn
	send  chan []byte
	local string
}

// Hub 管理按邮箱前缀分组的 WebSocket 订阅。
//
// 订阅不需要认证（邮箱令牌本身就是访问凭证），一个连接只订阅
// 一个邮箱。邮箱过期后连接不会被主动断开，只是再也收不到推送。
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*Client]bool
	register    chan *Client
	unregister  chan *Client
	broadcast   chan *Message
	done        chan struct{}
	upgrader    websocket.Upgrader
	log         *zap.Logger
}

// NewHub 创建WebSocket Hub
func NewHub(allowedOrigins []string, log *zap.Logger) *Hub {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	return &Hub{
		subscribers: make(map[string]map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		done:        make(chan struct{}),
		upgrader:    upgraderFactory(allowedOrigins),
		log:         log,
	}
}

// Run 启动 Hub 的调度循环，ctx 取消时关闭所有连接。
//
// 退出时关闭 done，此后对 register/unregister 的投递都会立即
// 返回而不是永久阻塞在无人消费的通道上。
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			h.log.Info("websocket hub stopped")
			h.closeAllClients()
			return

		case client := <-h.register:
			h.mu.Lock()
			if h.subscribers[client.local] == nil {
				h.subscribers[client.local] = make(map[*Client]bool)
			}
			h.subscribers[client.local][client] = true
			h.mu.Unlock()
			h.log.Info("websocket client subscribed", zap.String("local", client.local))

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.subscribers[client.local]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.send)
					if len(clients) == 0 {
						delete(h.subscribers, client.local)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.deliver(msg)

		case <-ticker.C:
			h.pingAllClients()
		}
	}
}

// NotifyNewMail 向邮箱的所有订阅者推送新邮件摘要。
func (h *Hub) NotifyNewMail(local string, summary domain.MessageSummary) {
	data, err := json.Marshal(summary)
	if err != nil {
		h.log.Error("marshal new mail notification", zap.Error(err))
		return
	}

	msg := &Message{
		Type:      MessageTypeNewMail,
		Local:     local,
		Data:      data,
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- msg:
	default:
		// 广播队列满时丢弃通知，收件箱轮询兜底
		h.log.Warn("notification dropped, broadcast queue full",
			zap.String("local", local),
		)
	}
}

// deliver 把消息投递给目标邮箱的全部订阅者。
func (h *Hub) deliver(msg *Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.log.Error("marshal websocket message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.subscribers[msg.Local] {
		select {
		case client.send <- payload:
		default:
			// 写缓冲已满的慢客户端直接跳过
		}
	}
}

// pingAllClients 定期向所有客户端发送应用层 ping。
func (h *Hub) pingAllClients() {
	payload, err := json.Marshal(&Message{
		Type:      MessageTypePing,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, clients := range h.subscribers {
		for client := range clients {
			select {
			case client.send <- payload:
			default:
			}
		}
	}
}

// closeAllClients 关闭全部连接并清空订阅表。
func (h *Hub) closeAllClients() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for local, clients := range h.subscribers {
		for client := range clients {
			close(client.send)
			client.conn.Close()
		}
		delete(h.subscribers, local)
	}
}

// HandleWebSocket 处理邮箱订阅的 WebSocket 升级请求。
func HandleWebSocket(hub *Hub) gin.HandlerFunc {
	return func(c *gin.Context) {
		local := c.Param("local")
		if local == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing mailbox local part"})
			return
		}

		conn, err := hub.upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			hub.log.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := &Client{
			conn:  conn,
			send:  make(chan []byte, 64),
			local: local,
		}

		select {
		case hub.register <- client:
		case <-hub.done:
			conn.Close()
			return
		}

		go client.writePump()
		go client.readPump(hub)
	}
}

// readPump 消费客户端入站帧。订阅连接只读不写，入站内容被
// 丢弃，读错误触发注销。
func (c *Client) readPump(hub *Hub) {
	defer func() {
		select {
		case hub.unregister <- c:
		case <-hub.done:
			// Hub 已停机，closeAllClients 接管清理
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
		c.conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	}
}

// writePump 把出站消息写到连接上。
func (c *Client) writePump() {
	ticker := time.NewTicker(45 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
