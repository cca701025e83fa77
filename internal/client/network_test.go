package client

import (
	"io"
	"log"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"doggos/internal/config"
	"doggos/internal/server"
	"doggos/pkg/core"
	"doggos/pkg/protocol"
)

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func startServer(t *testing.T, proto string) string {
	t.Helper()
	srv := server.NewGameServer(server.ServerConfig{
		Addr:    "127.0.0.1:0",
		Proto:   proto,
		Config:  config.Default(),
		Tickets: server.NewTicketIssuer("network-test"),
		Logger:  quietLogger(),
	})

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()
	select {
	case <-srv.Ready():
	case err := <-errCh:
		t.Fatalf("服务器启动失败: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("服务器启动超时")
	}
	t.Cleanup(srv.Shutdown)
	return srv.Addr().String()
}

type player struct {
	net     *NetworkClient
	session *Session
	src     *scriptedSource
}

func joinPlayer(t *testing.T, proto, addr, name string) *player {
	t.Helper()
	src := &scriptedSource{axis: core.Vec2{1, 0}}
	session := NewSession(SessionConfig{Config: config.Default(), Source: src, Logger: quietLogger()})
	nc := NewNetworkClient(ClientConfig{Addr: addr, Proto: proto, Name: name, Logger: quietLogger()})

	accepted, err := nc.Connect(session.HandleEnvelope)
	require.NoError(t, err)
	t.Cleanup(nc.Close)
	require.NotEmpty(t, accepted.Ticket)

	session.Attach(nc, accepted)
	return &player{net: nc, session: session, src: src}
}

// pump 在测试 goroutine 中按真实时间推进所有会话，直到条件满足
func pump(t *testing.T, players []*player, cond func() bool) {
	t.Helper()
	last := time.Now()
	deadline := last.Add(5 * time.Second)
	for time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
		now := time.Now()
		for _, p := range players {
			p.session.Frame(now.Sub(last))
		}
		last = now
		if cond() {
			return
		}
	}
	t.Fatal("条件未在期限内满足")
}

func TestNetwork_OwnerAndSpectator(t *testing.T) {
	for _, proto := range []string{"tcp", "ws", "kcp"} {
		t.Run(proto, func(t *testing.T) {
			addr := startServer(t, proto)
			p1 := joinPlayer(t, proto, addr, "rex")
			p2 := joinPlayer(t, proto, addr, "fido")
			players := []*player{p1, p2}

			pump(t, players, func() bool {
				_, ok1 := p1.session.predictor.LastApplied().Get()
				_, ok2 := p2.session.predictor.LastApplied().Get()
				return ok1 && ok2
			})

			pump(t, players, func() bool {
				return len(p1.session.Snapshot().Remotes) == 1 && len(p2.session.Snapshot().Remotes) == 1
			})

			s1, s2 := p1.session.Snapshot(), p2.session.Snapshot()
			assert.NotEqual(t, s1.ActorID, s2.ActorID)
			assert.Contains(t, s1.Remotes, s2.ActorID)
			assert.Contains(t, s2.Remotes, s1.ActorID)
			assert.True(t, p1.net.IsConnected())
		})
	}
}

func TestNetwork_CloseStopsClient(t *testing.T) {
	addr := startServer(t, "tcp")
	p1 := joinPlayer(t, "tcp", addr, "rex")
	p2 := joinPlayer(t, "tcp", addr, "fido")

	pump(t, []*player{p1, p2}, func() bool {
		return len(p1.session.Snapshot().Remotes) == 1
	})

	p2.net.Close()
	assert.False(t, p2.net.IsConnected())
	select {
	case <-p2.net.Done():
	default:
		t.Fatal("关闭后 Done 应已关闭")
	}
	assert.ErrorIs(t, p2.net.SendEnvelope(protocol.NewPing(0)), ErrNotConnected)
}

func TestNetwork_ReconnectWithTicket(t *testing.T) {
	addr := startServer(t, "tcp")
	src := &scriptedSource{}

	first := NewNetworkClient(ClientConfig{Addr: addr, Proto: "tcp", Name: "rex", Logger: quietLogger()})
	accepted, err := first.Connect(func(protocol.Envelope) {})
	require.NoError(t, err)
	first.Close()

	session := NewSession(SessionConfig{Config: config.Default(), Source: src, Logger: quietLogger()})
	second := NewNetworkClient(ClientConfig{
		Addr: addr, Proto: "tcp", Name: "rex", Ticket: accepted.Ticket, Logger: quietLogger(),
	})
	again, err := second.Connect(session.HandleEnvelope)
	require.NoError(t, err)
	t.Cleanup(second.Close)

	assert.Equal(t, accepted.ActorID, again.ActorID)
	assert.NotEmpty(t, again.Ticket)
}

func TestNetwork_BadTicketRejected(t *testing.T) {
	addr := startServer(t, "tcp")
	nc := NewNetworkClient(ClientConfig{
		Addr: addr, Proto: "tcp", Ticket: "not-a-ticket", Logger: quietLogger(), JoinTimeout: 3 * time.Second,
	})
	_, err := nc.Connect(nil)
	require.Error(t, err)
	assert.False(t, nc.IsConnected())
}

func TestNetwork_DialFailure(t *testing.T) {
	nc := NewNetworkClient(ClientConfig{Addr: "127.0.0.1:1", Proto: "tcp", Logger: quietLogger(), DialTimeout: time.Second})
	_, err := nc.Connect(nil)
	assert.Error(t, err)
}

// silentServer 完成加入握手后不再发送任何消息（包括心跳）
func silentServer(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		if _, err := protocol.ReadFrame(conn); err != nil {
			return
		}
		accepted := protocol.NewJoinAccepted(protocol.JoinAccepted{ActorID: 1, Ticket: "t", StepSeconds: 0.02})
		if err := protocol.WriteFrame(conn, protocol.Marshal(accepted)); err != nil {
			return
		}
		// 读到连接被客户端关闭为止
		_, _ = io.Copy(io.Discard, conn)
	}()
	return ln.Addr().String()
}

func TestNetwork_SilentServerTimesOut(t *testing.T) {
	addr := silentServer(t)
	nc := NewNetworkClient(ClientConfig{
		Addr:        addr,
		Proto:       "tcp",
		ReadTimeout: 200 * time.Millisecond,
		Logger:      quietLogger(),
	})
	t.Cleanup(nc.Close)

	accepted, err := nc.Connect(func(protocol.Envelope) {})
	require.NoError(t, err)
	assert.Equal(t, uint32(1), accepted.ActorID)

	select {
	case <-nc.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("服务器静默后客户端没有断开")
	}
	assert.False(t, nc.IsConnected())
	assert.ErrorIs(t, nc.SendEnvelope(protocol.NewPong(0)), ErrNotConnected)
}

func TestNetwork_DefaultReadTimeoutMatchesServerHeartbeat(t *testing.T) {
	nc := NewNetworkClient(ClientConfig{Logger: quietLogger()})
	assert.Equal(t, 15*time.Second, nc.cfg.ReadTimeout)
}
