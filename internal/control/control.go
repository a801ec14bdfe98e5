package control

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// 控制通道消息类型。
// 仪表盘 → 引擎: request_update / override
// 引擎 → 仪表盘: connected / connection_error
const (
	TypeRequestUpdate   = "request_update"
	TypeOverride        = "override"
	TypeConnected       = "connected"
	TypeConnectionError = "connection_error"
)

// Message 控制通道消息，逐条有序投递，语义为至少一次
type Message struct {
	Type         string `json:"type"`
	OverrideText string `json:"override_text,omitempty"`
}

const (
	dialRetryInterval = time.Second
	writeTimeout      = 5 * time.Second
	inboxSize         = 64
)

// Endpoint 控制通道的一端，每个进程生命周期内独占一条连接。
// 读取在后台进行，Poll 永不阻塞调用方的定时循环。
type Endpoint struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	inbox   chan Message
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
}

func newEndpoint(conn *websocket.Conn) *Endpoint {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Endpoint{
		conn:   conn,
		inbox:  make(chan Message, inboxSize),
		ctx:    ctx,
		cancel: cancel,
	}
	go e.readLoop()
	return e
}

// Dial 引擎侧建立连接。仪表盘未就绪时按固定间隔重试，
// 超过timeout仍未建立则启动失败，交由进程监督重启。
func Dial(ctx context.Context, addr string, timeout time.Duration) (*Endpoint, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: "/ws"}
	deadline := time.Now().Add(timeout)

	var lastErr error
	for {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
		if err == nil {
			zap.L().Info("✅ 控制通道连接建立成功", zap.String("addr", addr))
			return newEndpoint(conn), nil
		}
		lastErr = err

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("控制通道握手超时 (%v): %v", timeout, lastErr)
		}

		zap.L().Warn("⚠️ 控制通道连接失败，等待仪表盘就绪", zap.Error(err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(dialRetryInterval):
		}
	}
}

// readLoop 后台读取循环，消息进入有界缓冲
func (e *Endpoint) readLoop() {
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("控制通道读取panic", zap.Any("error", r))
		}
	}()

	for {
		var msg Message
		if err := e.conn.ReadJSON(&msg); err != nil {
			select {
			case <-e.ctx.Done():
			default:
				zap.L().Warn("控制通道读取结束", zap.Error(err))
			}
			return
		}

		select {
		case e.inbox <- msg:
		default:
			zap.L().Warn("控制通道缓冲已满，丢弃消息", zap.String("type", msg.Type))
		}
	}
}

// Poll 非阻塞地取一条待处理消息，没有则返回false
func (e *Endpoint) Poll() (Message, bool) {
	select {
	case msg := <-e.inbox:
		return msg, true
	default:
		return Message{}, false
	}
}

// Send 发送一条消息，带写超时，不会长时间阻塞定时循环
func (e *Endpoint) Send(msg Message) error {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()

	_ = e.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return e.conn.WriteJSON(msg)
}

// NotifyConnected 上报上游可达，幂等，用于清除错误状态
func (e *Endpoint) NotifyConnected() {
	if err := e.Send(Message{Type: TypeConnected}); err != nil {
		zap.L().Warn("发送connected状态失败", zap.Error(err))
	}
}

// NotifyConnectionError 上报上游不可达
func (e *Endpoint) NotifyConnectionError() {
	if err := e.Send(Message{Type: TypeConnectionError}); err != nil {
		zap.L().Warn("发送connection_error状态失败", zap.Error(err))
	}
}

// RequestUpdate 仪表盘侧：要求引擎立即刷新
func (e *Endpoint) RequestUpdate() error {
	return e.Send(Message{Type: TypeRequestUpdate})
}

// SendOverride 仪表盘侧：下一次播报使用给定文本
func (e *Endpoint) SendOverride(text string) error {
	return e.Send(Message{Type: TypeOverride, OverrideText: text})
}

// Close 关闭连接
func (e *Endpoint) Close() error {
	var err error
	e.once.Do(func() {
		e.cancel()
		err = e.conn.Close()
	})
	return err
}

// Listener 仪表盘侧监听器，接受引擎的唯一一条连接
type Listener struct {
	srv      *http.Server
	addr     string
	accepted chan *Endpoint
}

var upgrader = websocket.Upgrader{
	// 回环信任边界，不做来源校验
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Listen 在addr上开始监听
func Listen(addr string) (*Listener, error) {
	l := &Listener{
		accepted: make(chan *Endpoint, 1),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			zap.L().Warn("控制通道升级失败", zap.Error(err))
			return
		}

		select {
		case l.accepted <- newEndpoint(conn):
		default:
			// 只允许一条连接
			zap.L().Warn("已有控制通道连接，拒绝新连接")
			_ = conn.Close()
		}
	})

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("控制通道监听失败: %v", err)
	}

	l.addr = ln.Addr().String()
	l.srv = &http.Server{Handler: mux}
	go func() {
		if err := l.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			zap.L().Error("控制通道服务异常退出", zap.Error(err))
		}
	}()

	return l, nil
}

// Accept 等待引擎连接
func (l *Listener) Accept(ctx context.Context) (*Endpoint, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case ep := <-l.accepted:
		return ep, nil
	}
}

// Addr 实际监听地址（addr传":0"时用于测试）
func (l *Listener) Addr() string {
	return l.addr
}

// Close 停止监听
func (l *Listener) Close() error {
	return l.srv.Close()
}
