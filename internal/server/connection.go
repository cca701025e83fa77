package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"doggos/pkg/protocol"
)

const (
	readTimeout  = 5 * time.Second // 读取超时
	writeTimeout = 1 * time.Second // 写入超时
)

var (
	ErrSendQueueFull    = errors.New("发送队列满")
	ErrConnectionClosed = errors.New("连接已关闭")
)

// Connection 表示一个客户端连接
type Connection struct {
	id      string
	conn    net.Conn
	server  *GameServer
	logger  *log.Logger
	actorID atomic.Uint32 // 0 表示未分配

	// 发送队列
	sendChan chan []byte
	closeCh  chan struct{}
	closed   bool
	closeMu  sync.Mutex

	lastRecvTime atomic.Value
	rtt          atomic.Int64
	warn         *rate.Limiter
}

// NewConnection 创建新连接，连接到服务器上
func NewConnection(conn net.Conn, server *GameServer) *Connection {
	c := &Connection{
		id:       uuid.NewString()[:8],
		conn:     conn,
		server:   server,
		logger:   server.logger,
		sendChan: make(chan []byte, 256), // 发送队列缓冲区
		closeCh:  make(chan struct{}),
		warn:     rate.NewLimiter(rate.Every(time.Second), 3),
	}
	c.lastRecvTime.Store(time.Now())
	return c
}

// Handle 处理连接
func (c *Connection) Handle(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	c.logger.Printf("%s: 连接处理开始", c)

	wg.Add(1)
	go c.startHeartbeat(ctx, wg)

	// 启动发送循环
	wg.Add(1)
	go c.sendLoop(ctx, wg)

	// 启动接收循环
	wg.Add(1)
	go c.receiveLoop(ctx, wg)

	// 等待上下文取消或连接关闭
	select {
	case <-ctx.Done():
	case <-c.closeCh:
	}

	c.Close()
}

// Close 关闭连接
func (c *Connection) Close() {
	c.closeWithNotify(true)
}

// CloseWithoutNotify 关闭连接但不触发离开逻辑（重连顶替时使用）
func (c *Connection) CloseWithoutNotify() {
	c.closeWithNotify(false)
}

func (c *Connection) closeWithNotify(notify bool) {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return
	}

	c.closed = true
	close(c.closeCh)

	// 关闭网络连接
	if c.conn != nil {
		c.conn.Close()
	}

	// 关闭发送通道
	close(c.sendChan)
	c.closeMu.Unlock()

	// 通知房间（不持锁，房间循环可能正在调用 Send）
	if notify {
		if id := c.ActorID(); id != 0 {
			c.server.removeActor(c, id)
		}
	}

	c.logger.Printf("%s: 连接已关闭", c)
}

// Send 发送消息（异步）
func (c *Connection) Send(env protocol.Envelope) error {
	return c.sendRaw(protocol.Marshal(env))
}

func (c *Connection) sendRaw(data []byte) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()

	if c.closed {
		return ErrConnectionClosed
	}

	select {
	case c.sendChan <- data:
		return nil
	default:
		return ErrSendQueueFull
	}
}

// sendLoop 发送循环
func (c *Connection) sendLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case data, ok := <-c.sendChan:
			if !ok {
				// 通道已关闭
				return
			}

			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := protocol.WriteFrame(c.conn, data); err != nil {
				c.logger.Printf("%s: 发送数据失败: %v", c, err)
				c.Close()
				return
			}
		}
	}
}

// receiveLoop 接收循环
func (c *Connection) receiveLoop(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = c.conn.SetReadDeadline(time.Now().Add(readTimeout))
		data, err := protocol.ReadFrame(c.conn)
		if err != nil {
			var netErr net.Error
			switch {
			case errors.As(err, &netErr) && netErr.Timeout():
				c.logger.Printf("%s: 读取超时", c)
			case errors.Is(err, io.EOF), errors.Is(err, net.ErrClosed):
			default:
				c.logger.Printf("%s: 读取失败: %v", c, err)
			}
			c.Close()
			return
		}

		c.lastRecvTime.Store(time.Now())
		if len(data) == 0 {
			continue
		}

		if err := c.handleMessage(data); err != nil && c.warn.Allow() {
			c.logger.Printf("%s: 处理消息失败: %v", c, err)
		}
	}
}

// handleMessage 处理接收到的消息
func (c *Connection) handleMessage(data []byte) error {
	env, err := protocol.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("反序列化失败: %w", err)
	}
	if protocol.RouteOf(env.Kind) != protocol.RouteToAuthority {
		return fmt.Errorf("客户端不应发送 %s", env.Kind)
	}

	switch env.Kind {
	case protocol.KindJoin:
		if c.ActorID() != 0 {
			return fmt.Errorf("重复加入请求")
		}
		join, err := protocol.ParseJoin(env)
		if err != nil {
			return err
		}
		if err := c.server.handleJoin(c, join); err != nil {
			// 加入失败直接断开，客户端握手会超时或读到 EOF
			c.logger.Printf("%s: 加入失败: %v", c, err)
			c.CloseWithoutNotify()
			return nil
		}

	case protocol.KindInputBatch:
		id := c.ActorID()
		if id == 0 || env.ActorID != id {
			return fmt.Errorf("角色 %d 的输入不属于本连接", env.ActorID)
		}
		batch, err := protocol.ParseInputBatch(env)
		if err != nil {
			return err
		}
		c.server.handleInput(c, id, batch)

	case protocol.KindPong:
		ts, err := protocol.ParseHeartbeat(env)
		if err != nil {
			return err
		}
		c.handlePong(ts)
	}

	return nil
}

// String 返回连接的字符串表示
func (c *Connection) String() string {
	if id := c.ActorID(); id != 0 {
		return fmt.Sprintf("角色 %d [%s]", id, c.id)
	}
	return fmt.Sprintf("连接 %s [%s]", c.conn.RemoteAddr(), c.id)
}

func (c *Connection) ActorID() uint32 {
	return c.actorID.Load()
}

func (c *Connection) SetActorID(id uint32) {
	c.actorID.Store(id)
}

// RTT 最近一次心跳往返时间
func (c *Connection) RTT() time.Duration {
	return time.Duration(c.rtt.Load()) * time.Millisecond
}

const (
	heartbeatInterval = 5 * time.Second
	heartbeatTimeout  = 15 * time.Second
)

func (c *Connection) startHeartbeat(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		case <-ticker.C:
			lastRecv, _ := c.lastRecvTime.Load().(time.Time)
			if !lastRecv.IsZero() && time.Since(lastRecv) > heartbeatTimeout {
				c.logger.Printf("%s: 心跳超时", c)
				c.Close()
				return
			}
			_ = c.Send(protocol.NewPing(time.Now().UnixMilli()))
		}
	}
}

func (c *Connection) handlePong(sentAt int64) {
	if sentAt <= 0 {
		return
	}
	c.rtt.Store(time.Now().UnixMilli() - sentAt)
}
