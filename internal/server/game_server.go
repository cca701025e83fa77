package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"

	"doggos/internal/config"
	"doggos/internal/journal"
	"doggos/pkg/core"
	"doggos/pkg/protocol"
)

// ServerConfig 服务器配置
type ServerConfig struct {
	Addr    string
	Proto   string // tcp / kcp / ws
	Config  config.Config
	Tickets *TicketIssuer
	Journal *journal.Writer
	Logger  *log.Logger
}

// GameServer 游戏服务器
type GameServer struct {
	cfg    ServerConfig
	logger *log.Logger
	room   *Room

	// 网络
	listener ServerListener
	ready    chan struct{}

	// 控制
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	shutdown chan struct{}
	stopOnce sync.Once
}

// NewGameServer 创建新的游戏服务器
func NewGameServer(cfg ServerConfig) *GameServer {
	ctx, cancel := context.WithCancel(context.Background())

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &GameServer{
		cfg:      cfg,
		logger:   logger,
		ready:    make(chan struct{}),
		ctx:      ctx,                 // 上下文
		cancel:   cancel,              // 取消函数
		shutdown: make(chan struct{}), // 关闭信号
	}
}

// Start 启动服务器，阻塞直到 Shutdown
func (s *GameServer) Start() error {
	s.logger.Printf("启动游戏服务器: %s (%s)", s.cfg.Addr, s.cfg.Proto)

	listener, err := newListener(s.cfg.Proto, s.cfg.Addr, s.logger)
	if err != nil {
		return fmt.Errorf("监听失败: %w", err)
	}
	s.listener = listener

	s.logger.Printf("服务器监听中: %s", listener.Addr())

	s.room = NewRoom(s.ctx, RoomConfig{
		Config:  s.cfg.Config,
		Tickets: s.cfg.Tickets,
		Journal: s.cfg.Journal,
		Logger:  s.logger,
	})

	// 启动房间循环
	s.wg.Add(1)
	go s.room.Run(&s.wg)

	// 启动连接接受循环
	s.wg.Add(1)
	go s.acceptLoop()

	close(s.ready)

	// 等待关闭信号
	<-s.shutdown

	s.logger.Println("服务器正在关闭...")
	return nil
}

// Ready 监听建立后关闭
func (s *GameServer) Ready() <-chan struct{} {
	return s.ready
}

// Addr 实际监听地址（Ready 之后有效）
func (s *GameServer) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Shutdown 优雅关闭服务器
func (s *GameServer) Shutdown() {
	s.stopOnce.Do(func() {
		s.logger.Println("正在关闭服务器...")

		// 取消上下文
		s.cancel()

		if s.room != nil {
			s.room.Shutdown()
		}

		// 关闭监听器
		if s.listener != nil {
			s.listener.Close()
		}

		// 关闭 shutdown 通道
		close(s.shutdown)

		// 等待所有 goroutine 结束
		s.wg.Wait()

		s.logger.Println("服务器已关闭")
	})
}

// acceptLoop 接受客户端连接
func (s *GameServer) acceptLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			s.logger.Println("停止接受新连接")
			return
		default:
		}

		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
				s.logger.Printf("接受连接失败: %v", err)
				continue
			}
		}

		s.logger.Printf("新连接来自: %s", conn.RemoteAddr())

		// 创建连接对象
		connection := NewConnection(conn, s)

		// 启动连接处理
		s.wg.Add(1)
		go connection.Handle(s.ctx, &s.wg)
	}
}

// handleJoin 处理加入请求
func (s *GameServer) handleJoin(session Session, join protocol.Join) error {
	if s.room == nil {
		return ErrRoomClosed
	}
	return s.room.Join(session, join)
}

// handleInput 处理客户端输入
func (s *GameServer) handleInput(session Session, actorID uint32, batch []core.InputSample) {
	if s.room == nil {
		return
	}
	s.room.EnqueueInput(session, actorID, batch)
}

// removeActor 连接断开
func (s *GameServer) removeActor(session Session, actorID uint32) {
	if s.room == nil {
		return
	}
	s.room.Leave(session, actorID)
}
