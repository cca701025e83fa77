package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"doggos/pkg/protocol"
	"doggos/pkg/transport"
)

var (
	ErrNotConnected  = errors.New("未连接")
	ErrSendQueueFull = errors.New("发送队列满")
	ErrJoinTimeout   = errors.New("等待加入确认超时")
)

// ClientConfig 网络客户端配置
type ClientConfig struct {
	Addr        string
	Proto       string // tcp / kcp / ws
	Name        string
	Ticket      string // 非空时凭证重连
	DialTimeout time.Duration
	JoinTimeout time.Duration
	ReadTimeout time.Duration // 超过该时长收不到任何消息（包括心跳）视为断线
	Logger      *log.Logger
}

// readTimeout 与服务器心跳超时一致，服务器每 5 秒发送一次 Ping
const readTimeout = 15 * time.Second

// NetworkClient 网络客户端
type NetworkClient struct {
	cfg    ClientConfig
	logger *log.Logger
	conn   net.Conn

	connected atomic.Bool
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	handler    func(protocol.Envelope)
	acceptedCh chan protocol.JoinAccepted
	sendChan   chan []byte
	errChan    chan error
	warn       *rate.Limiter
}

// NewNetworkClient 创建网络客户端
func NewNetworkClient(cfg ClientConfig) *NetworkClient {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.JoinTimeout == 0 {
		cfg.JoinTimeout = 10 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = readTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &NetworkClient{
		cfg:        cfg,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		acceptedCh: make(chan protocol.JoinAccepted, 1),
		sendChan:   make(chan []byte, 256),
		errChan:    make(chan error, 1),
		warn:       rate.NewLimiter(rate.Every(time.Second), 3),
	}
}

// Connect 连接服务器并完成加入握手
// handler 在接收 goroutine 中处理除握手和心跳之外的所有消息
func (nc *NetworkClient) Connect(handler func(protocol.Envelope)) (protocol.JoinAccepted, error) {
	nc.logger.Printf("连接到服务器: %s (%s)", nc.cfg.Addr, nc.cfg.Proto)

	conn, err := transport.Dial(nc.cfg.Proto, nc.cfg.Addr, nc.cfg.DialTimeout)
	if err != nil {
		return protocol.JoinAccepted{}, fmt.Errorf("连接服务器失败: %w", err)
	}

	nc.conn = conn
	nc.handler = handler
	nc.connected.Store(true)

	nc.logger.Printf("已连接到服务器: %s", conn.RemoteAddr())

	// 启动接收循环
	nc.wg.Add(1)
	go nc.receiveLoop()

	// 启动发送循环
	nc.wg.Add(1)
	go nc.sendLoop()

	// 发送加入请求
	join := protocol.Join{Name: nc.cfg.Name, Ticket: nc.cfg.Ticket}
	if err := nc.SendEnvelope(protocol.NewJoin(join)); err != nil {
		nc.Close()
		return protocol.JoinAccepted{}, fmt.Errorf("发送加入请求失败: %w", err)
	}

	// 等待加入确认
	select {
	case accepted := <-nc.acceptedCh:
		nc.logger.Printf("角色 ID: %d", accepted.ActorID)
		return accepted, nil

	case err := <-nc.errChan:
		nc.Close()
		return protocol.JoinAccepted{}, fmt.Errorf("加入失败: %w", err)

	case <-time.After(nc.cfg.JoinTimeout):
		nc.Close()
		return protocol.JoinAccepted{}, ErrJoinTimeout
	}
}

// Close 关闭连接
func (nc *NetworkClient) Close() {
	nc.closeOnce.Do(func() {
		nc.connected.Store(false)
		nc.cancel()

		// 关闭网络连接
		if nc.conn != nil {
			nc.conn.Close()
		}

		// 等待所有 goroutine 结束
		nc.wg.Wait()

		nc.logger.Printf("网络客户端已关闭")
	})
}

// IsConnected 检查是否已连接
func (nc *NetworkClient) IsConnected() bool {
	return nc.connected.Load()
}

// Done 连接断开或关闭后关闭
func (nc *NetworkClient) Done() <-chan struct{} {
	return nc.ctx.Done()
}

// ========== 消息接收 ==========

// receiveLoop 接收循环
func (nc *NetworkClient) receiveLoop() {
	defer nc.wg.Done()

	for {
		_ = nc.conn.SetReadDeadline(time.Now().Add(nc.cfg.ReadTimeout))
		data, err := protocol.ReadFrame(nc.conn)
		if err != nil {
			var netErr net.Error
			select {
			case <-nc.ctx.Done():
			default:
				if errors.As(err, &netErr) && netErr.Timeout() {
					nc.logger.Printf("%v 内未收到服务器消息，断开连接", nc.cfg.ReadTimeout)
					nc.fail(fmt.Errorf("读取超时: %w", err))
				} else {
					nc.fail(fmt.Errorf("读取失败: %w", err))
				}
			}
			return
		}
		if len(data) == 0 {
			continue
		}

		if err := nc.handleMessage(data); err != nil && nc.warn.Allow() {
			nc.logger.Printf("处理消息失败: %v", err)
		}
	}
}

// fail 记录第一个错误并断开
func (nc *NetworkClient) fail(err error) {
	nc.connected.Store(false)
	select {
	case nc.errChan <- err:
	default:
	}
	nc.cancel()
}

// handleMessage 处理接收到的消息
func (nc *NetworkClient) handleMessage(data []byte) error {
	env, err := protocol.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("反序列化失败: %w", err)
	}
	if !protocol.FromAuthority(env.Kind) {
		return fmt.Errorf("服务器不应发送 %s", env.Kind)
	}

	switch env.Kind {
	case protocol.KindJoinAccepted:
		accepted, err := protocol.ParseJoinAccepted(env)
		if err != nil {
			return err
		}
		select {
		case nc.acceptedCh <- accepted:
		default:
		}

	case protocol.KindPing:
		ts, err := protocol.ParseHeartbeat(env)
		if err != nil {
			return err
		}
		return nc.SendEnvelope(protocol.NewPong(ts))

	default:
		if nc.handler != nil {
			nc.handler(env)
		}
	}

	return nil
}

// ========== 消息发送 ==========

// sendLoop 发送循环
func (nc *NetworkClient) sendLoop() {
	defer nc.wg.Done()

	for {
		select {
		case <-nc.ctx.Done():
			return

		case data := <-nc.sendChan:
			if err := protocol.WriteFrame(nc.conn, data); err != nil {
				nc.fail(fmt.Errorf("发送失败: %w", err))
				return
			}
		}
	}
}

// SendEnvelope 发送消息（异步），队列满时丢弃
func (nc *NetworkClient) SendEnvelope(env protocol.Envelope) error {
	if !nc.connected.Load() {
		return ErrNotConnected
	}

	select {
	case nc.sendChan <- protocol.Marshal(env):
		return nil
	default:
		return ErrSendQueueFull
	}
}
