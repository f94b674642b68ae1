package ws

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// 写超时
	writeWait = 10 * time.Second
	// Pong等待时间
	pongWait = 60 * time.Second
	// Ping周期（必须小于pongWait）
	pingPeriod = 30 * time.Second
	// 最大消息大小
	maxMessageSize = 64 * 1024
	// 每个连接的发送缓冲区大小
	sendBufferSize = 256
)

// Client 单个 WebSocket 连接的封装，实现 realtime.Conn。
// 所有出站写入都走 send 通道，由 writePump 串行落到底层连接。
// send 通道永远不关闭：注册表的广播方随时可能和拆连并发调用
// SendText，关停只通过 done 通道和 closed 标志传达
type Client struct {
	id     string
	userID uint64
	conn   *websocket.Conn
	send   chan []byte
	done   chan struct{}
	closed int32
	logger *zap.Logger
}

func NewClient(conn *websocket.Conn, userID uint64, logger *zap.Logger) *Client {
	return &Client{
		id:     uuid.NewString(),
		userID: userID,
		conn:   conn,
		send:   make(chan []byte, sendBufferSize),
		done:   make(chan struct{}),
		logger: logger,
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) UserID() uint64 {
	return c.userID
}

// SendText 非阻塞入队，缓冲区满时报错而不是拖慢广播方。
// 与 Close 并发调用是安全的
func (c *Client) SendText(data []byte) error {
	if atomic.LoadInt32(&c.closed) == 1 {
		return fmt.Errorf("connection closed")
	}

	select {
	case <-c.done:
		return fmt.Errorf("connection closed")
	case c.send <- data:
		return nil
	default:
		return fmt.Errorf("send buffer full")
	}
}

// Close 幂等关闭，重复调用返回 nil。
// 只关闭 done 和底层连接，send 保持打开，滞留的入队方不会 panic
func (c *Client) Close() error {
	if !atomic.CompareAndSwapInt32(&c.closed, 0, 1) {
		return nil
	}

	close(c.done)
	return c.conn.Close()
}

// writePump 把 send 通道里的帧写到连接上，并周期性发 ping
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Warn("websocket write error",
					zap.Uint64("user_id", c.userID),
					zap.Error(err))
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump 只做存活检测：客户端不通过本连接发指令，收到的文本帧直接丢弃
func (c *Client) readPump(onClose func()) {
	defer onClose()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error",
					zap.Uint64("user_id", c.userID),
					zap.Error(err))
			}
			return
		}
	}
}
