package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	canvasID string
	ownerID  string
	send     chan []byte // 用于向此客户端发送消息的缓冲通道
	room     *room       // 注册成功后由 Hub 设置

	sendMu     sync.Mutex // 保护 send 的关闭
	sendClosed bool
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, ownerID, canvasID string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		canvasID: canvasID,
		ownerID:  ownerID,
		send:     make(chan []byte, 256),
	}
}

// Run 启动客户端的读写 goroutine，由 Hub 在注册成功后调用
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

func (c *Client) log() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"owner_id": c.ownerID, "canvas_id": c.canvasID})
}

// trySend 非阻塞地向客户端发送消息，通道满或已关闭时丢弃
func (c *Client) trySend(message []byte) {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.sendClosed {
		return
	}
	select {
	case c.send <- message:
	default:
		c.log().Warn("Client send channel full, message dropped")
	}
}

// closeSend 关闭 send 通道，WritePump 随后发送关闭帧并退出。可重复调用。
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if !c.sendClosed {
		c.sendClosed = true
		close(c.send)
	}
}

// ReadPump 读取客户端命令并交给 Hub 同步处理。
// 它在自己的 goroutine 中运行。
func (c *Client) ReadPump() {
	defer func() {
		select {
		case c.hub.messageChan <- HubMessage{Type: "unregister", Client: c}:
		case <-time.After(1 * time.Second):
			c.log().Warn("Timeout sending unregister message to Hub channel")
		}
		c.conn.Close()
		c.log().Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log().WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.log().Debug("WebSocket connection closed normally or read error")
			}
			break
		}
		if messageType != websocket.TextMessage {
			c.log().Debugf("Received non-text message type: %d", messageType)
			continue
		}
		c.hub.handleClientMessage(c, message)
	}
}

// WritePump 将消息从 send 通道写入 WebSocket 连接。
// 它在自己的 goroutine 中运行。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.log().Debug("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭了
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log().WithError(err).Warn("Failed to write message to websocket")
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log().WithError(err).Warn("Failed to send ping message")
				return
			}
		}
	}
}

func (c *Client) CanvasID() string { return c.canvasID }
func (c *Client) OwnerID() string  { return c.ownerID }
func (c *Client) CloseConn()       { c.conn.Close() }
