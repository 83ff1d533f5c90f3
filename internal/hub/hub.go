package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"pixeldraw/internal/domain"
	"pixeldraw/internal/service"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024

	loadTimeout = 10 * time.Second
)

// CanvasLoader 读取画布及其已保存的模型，由 service.CanvasService 实现
type CanvasLoader interface {
	LoadModel(ctx context.Context, ownerID, canvasID string) (*domain.Canvas, domain.CanvasModel, error)
}

// HubMessage 定义了在 Hub 内部通道传递的消息类型
type HubMessage struct {
	Type   string // "register", "unregister"
	Client *Client
}

// room 是一张打开的画布：一个会话加上连接到它的客户端。
// room 实现 engine.Observer，作为会话的 sink 把通知广播给客户端。
type room struct {
	canvasID string
	session  *service.Session

	mu         sync.Mutex // 只保护 clients/emptySince/closed，持有期间不调用会话
	clients    map[*Client]bool
	emptySince time.Time
	closed     bool // 画布已删除
}

func (r *room) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// openResult 是后台加载画布模型的结果，交回 Run 循环处理
type openResult struct {
	ownerID  string
	canvasID string
	canvas   *domain.Canvas
	model    domain.CanvasModel
	err      error
}

func (r *room) PixelChanged(p domain.PixelState) { r.broadcast(encodePixel(p)) }
func (r *room) Cleared()                         { r.broadcast(encodeClear()) }

// broadcast 在会话锁内被调用，只做非阻塞发送
func (r *room) broadcast(message []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for client := range r.clients {
		client.trySend(message)
	}
}

// Hub 维护打开的画布会话和连接的客户端
type Hub struct {
	messageChan chan HubMessage
	done        chan struct{}
	stopOnce    sync.Once

	// map[canvasID]*room，只在 Run 循环中加入
	rooms   map[string]*room
	roomsMu sync.RWMutex

	// 正在加载的画布及等待它的客户端，只在 Run 循环中访问
	opening map[string][]*Client
	opened  chan openResult

	canvases  CanvasLoader
	persister service.Persister
}

// NewHub 创建并返回一个新的 Hub 实例。persister 为 nil 时会话修改不会被保存。
func NewHub(canvases CanvasLoader, persister service.Persister) *Hub {
	if canvases == nil {
		panic("CanvasLoader cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan HubMessage, 512),
		done:        make(chan struct{}),
		rooms:       make(map[string]*room),
		opening:     make(map[string][]*Client),
		opened:      make(chan openResult),
		canvases:    canvases,
		persister:   persister,
	}
}

// Run 启动 Hub 的主事件处理循环。
// 它应该在一个单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for {
		select {
		case msg := <-h.messageChan:
			switch msg.Type {
			case "register":
				h.registerClient(msg.Client)
			case "unregister":
				h.unregisterClient(msg.Client)
			default:
				log.Warnf("Hub: Received unknown message type: %s", msg.Type)
			}
		case res := <-h.opened:
			h.finishOpen(res)
		case <-h.done:
			log.Info("Hub is shutting down...")
			return
		}
	}
}

// Stop 结束 Run 循环，并提交所有会话中未结束的手势
func (h *Hub) Stop(ctx context.Context) {
	h.stopOnce.Do(func() { close(h.done) })
	for _, session := range h.ActiveSessions() {
		if err := session.Commit(ctx); err != nil {
			logrus.WithField("canvas_id", session.CanvasID()).WithError(err).Warn("Failed to commit pending stroke on shutdown")
		}
	}
}

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。
// 返回 true 如果消息成功入队，false 如果队列已满。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		fields := logrus.Fields{"message_type": msg.Type}
		if msg.Client != nil {
			fields["canvas_id"] = msg.Client.canvasID
			fields["owner_id"] = msg.Client.ownerID
		}
		logrus.WithFields(fields).Warn("Hub message channel full, dropping message")
		return false
	}
}

// ActiveSessions 返回所有打开的会话，包括暂时没有客户端的
func (h *Hub) ActiveSessions() []*service.Session {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	sessions := make([]*service.Session, 0, len(h.rooms))
	for _, r := range h.rooms {
		sessions = append(sessions, r.session)
	}
	return sessions
}

// LiveBoard 返回打开中会话的可见状态，包括未提交的手势
func (h *Hub) LiveBoard(canvasID string) (domain.BoardState, bool) {
	h.roomsMu.RLock()
	r, ok := h.rooms[canvasID]
	h.roomsMu.RUnlock()
	if !ok {
		return nil, false
	}
	return r.session.Snapshot(), true
}

// NotifyPalette 把调色板变更推送给该所有者的全部客户端
func (h *Hub) NotifyPalette(ownerID string, colors []domain.Color) {
	h.broadcastToOwner(ownerID, encodePalette(colors))
}

// NotifyCanvasList 把画布列表变更推送给该所有者的全部客户端
func (h *Hub) NotifyCanvasList(ownerID string, canvases []domain.Canvas) {
	h.broadcastToOwner(ownerID, encodeCanvasList(canvases))
}

func (h *Hub) broadcastToOwner(ownerID string, message []byte) {
	h.roomsMu.RLock()
	rooms := make([]*room, 0, len(h.rooms))
	for _, r := range h.rooms {
		rooms = append(rooms, r)
	}
	h.roomsMu.RUnlock()

	for _, r := range rooms {
		r.mu.Lock()
		for client := range r.clients {
			if client.ownerID == ownerID {
				client.trySend(message)
			}
		}
		r.mu.Unlock()
	}
}

// Evict 关闭一个空闲会话：没有客户端、空闲至少 idleFor，且 revision 仍等于
// 调用方已写入存储的值。关闭后下一次加入会重新从存储加载。
func (h *Hub) Evict(canvasID string, revision uint, idleFor time.Duration) bool {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	r, ok := h.rooms[canvasID]
	if !ok {
		return false
	}
	r.mu.Lock()
	idle := len(r.clients) == 0 && !r.emptySince.IsZero() && time.Since(r.emptySince) >= idleFor
	r.mu.Unlock()
	if !idle || r.session.Revision() != revision {
		return false
	}
	delete(h.rooms, canvasID)
	logrus.WithFields(logrus.Fields{"canvas_id": canvasID, "revision": revision}).Info("Idle canvas session closed")
	return true
}

// CloseCanvas 关闭已删除画布的会话：断开所有客户端，之后的修改不再保存
func (h *Hub) CloseCanvas(canvasID string) {
	h.roomsMu.Lock()
	r, ok := h.rooms[canvasID]
	delete(h.rooms, canvasID)
	h.roomsMu.Unlock()
	if !ok {
		return
	}
	r.session.SetSink(nil)

	r.mu.Lock()
	r.closed = true
	message := encodeError("Canvas deleted")
	for client := range r.clients {
		client.trySend(message)
		client.closeSend()
		delete(r.clients, client)
	}
	r.mu.Unlock()
	logrus.WithField("canvas_id", canvasID).Info("Deleted canvas session closed")
}

// registerClient 处理客户端注册。房间已打开时直接加入；
// 否则在后台加载模型，同一画布只加载一次，加载期间的客户端排队等待。
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}

	h.roomsMu.Lock()
	r, ok := h.rooms[client.canvasID]
	if ok {
		h.joinLocked(r, client)
	}
	h.roomsMu.Unlock()
	if ok {
		return
	}

	if waiting, loading := h.opening[client.canvasID]; loading {
		h.opening[client.canvasID] = append(waiting, client)
		return
	}
	h.opening[client.canvasID] = []*Client{client}
	go h.loadRoom(client.ownerID, client.canvasID)
}

// loadRoom 在 Run 循环之外读取模型，结果交回循环
func (h *Hub) loadRoom(ownerID, canvasID string) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	canvas, model, err := h.canvases.LoadModel(ctx, ownerID, canvasID)
	select {
	case h.opened <- openResult{ownerID: ownerID, canvasID: canvasID, canvas: canvas, model: model, err: err}:
	case <-h.done:
	}
}

// finishOpen 在 Run 循环中安装新房间，并让等待的客户端加入
func (h *Hub) finishOpen(res openResult) {
	waiting := h.opening[res.canvasID]
	delete(h.opening, res.canvasID)

	if res.err != nil {
		logrus.WithFields(logrus.Fields{"canvas_id": res.canvasID, "owner_id": res.ownerID}).
			WithError(res.err).Error("Failed to open canvas session")
		for _, client := range waiting {
			if client.ownerID != res.ownerID {
				// 加载结果只对发起加载的所有者有效，其他所有者重新注册
				h.registerClient(client)
				continue
			}
			rejectClient(client, res.err)
		}
		return
	}

	r := &room{
		canvasID: res.canvasID,
		session:  service.NewSession(*res.canvas, res.model, h.persister),
		clients:  make(map[*Client]bool),
	}
	r.session.SetSink(r)

	h.roomsMu.Lock()
	h.rooms[res.canvasID] = r
	for _, client := range waiting {
		h.joinLocked(r, client)
	}
	h.roomsMu.Unlock()
	logrus.WithFields(logrus.Fields{"canvas_id": res.canvasID, "revision": res.canvas.Revision}).Info("Canvas session opened")
}

// joinLocked 把客户端加入房间并启动读写泵，调用时持有 roomsMu，房间不会在此期间被关闭
func (h *Hub) joinLocked(r *room, client *Client) {
	if r.session.Canvas().OwnerID != client.ownerID {
		rejectClient(client, service.ErrCanvasNotFound)
		return
	}
	// 在会话锁内加入客户端并放入快照，之后的像素通知一定排在快照之后
	r.session.ViewBoard(func(board domain.BoardState) {
		r.mu.Lock()
		r.clients[client] = true
		r.emptySince = time.Time{}
		r.mu.Unlock()
		client.trySend(encodeSnapshot(r.canvasID, board))
	})
	client.room = r
	logrus.WithFields(logrus.Fields{"canvas_id": client.canvasID, "owner_id": client.ownerID}).Info("Client registered to Hub")
	client.Run()
}

// rejectClient 发送错误后关闭连接
func rejectClient(client *Client, err error) {
	message := "Failed to load canvas"
	if errors.Is(err, service.ErrCanvasNotFound) {
		message = "Canvas not found"
	}
	client.trySend(encodeError(message))
	client.closeSend()
	go client.WritePump()
}

// unregisterClient 处理客户端注销逻辑。最后一个客户端离开时提交未结束的手势，
// 会话保留到空闲超时后由周期任务关闭。
func (h *Hub) unregisterClient(client *Client) {
	if client == nil || client.room == nil {
		return
	}
	r := client.room
	logCtx := logrus.WithFields(logrus.Fields{
		"canvas_id": client.canvasID,
		"owner_id":  client.ownerID,
		"action":    "unregisterClient",
	})

	r.mu.Lock()
	if _, ok := r.clients[client]; !ok {
		closed := r.closed
		r.mu.Unlock()
		if !closed {
			logCtx.Warn("Client not found in room during unregister")
		}
		return
	}
	delete(r.clients, client)
	client.closeSend()
	empty := len(r.clients) == 0
	if empty {
		r.emptySince = time.Now()
	}
	r.mu.Unlock()
	logCtx.Info("Client unregistered from Hub")

	if empty {
		if err := r.session.Commit(context.Background()); err != nil {
			logCtx.WithError(err).Warn("Failed to commit pending stroke after last client left")
		}
	}
}

// handleClientMessage 在客户端的读 goroutine 中同步执行，保证同一客户端的命令按序到达会话
func (h *Hub) handleClientMessage(client *Client, raw []byte) {
	logCtx := logrus.WithFields(logrus.Fields{
		"canvas_id": client.canvasID,
		"owner_id":  client.ownerID,
		"operation": "handleClientMessage",
	})

	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		logCtx.WithError(err).Debug("Invalid client message")
		client.trySend(encodeError(service.ErrInvalidAction.Error()))
		return
	}

	if client.room.isClosed() {
		logCtx.Debug("Command for a deleted canvas ignored")
		return
	}
	session := client.room.session
	ctx := context.Background()
	var err error
	switch msg.Type {
	case MsgPaint:
		color, parseErr := domain.ParseColor(msg.Color)
		if parseErr != nil {
			err = service.ErrInvalidColor
			break
		}
		err = session.Paint(msg.X, msg.Y, color)
	case MsgCommit:
		err = session.Commit(ctx)
	case MsgUndo:
		err = session.Undo(ctx)
	case MsgRedo:
		err = session.Redo(ctx)
	case MsgClear:
		err = session.Clear(ctx)
	default:
		err = service.ErrInvalidAction
	}
	if err != nil {
		logCtx.WithField("message_type", msg.Type).WithError(err).Debug("Client command rejected")
		client.trySend(encodeError(err.Error()))
	}
}
