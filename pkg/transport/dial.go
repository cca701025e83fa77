package transport

import (
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	kcp "github.com/xtaci/kcp-go/v5"
)

// Protocols 支持的传输协议
var Protocols = []string{"tcp", "kcp", "ws"}

// Dial 按协议连接服务器
func Dial(proto, addr string, timeout time.Duration) (net.Conn, error) {
	switch proto {
	case "", "tcp":
		conn, err := net.DialTimeout("tcp", addr, timeout)
		if err != nil {
			return nil, err
		}
		// 开启 TCP_NODELAY，禁用 Nagle 算法以减少延迟
		if tcpConn, ok := conn.(*net.TCPConn); ok {
			_ = tcpConn.SetNoDelay(true)
		}
		return conn, nil
	case "kcp":
		session, err := kcp.DialWithOptions(addr, nil, 0, 0)
		if err != nil {
			return nil, err
		}
		session.SetStreamMode(true)
		session.SetNoDelay(1, 10, 2, 1)
		return session, nil
	case "ws":
		u := url.URL{Scheme: "ws", Host: addr, Path: WSPath}
		dialer := websocket.Dialer{HandshakeTimeout: timeout}
		ws, _, err := dialer.Dial(u.String(), nil)
		if err != nil {
			return nil, err
		}
		return NewWSConn(ws), nil
	default:
		return nil, fmt.Errorf("不支持的协议: %s", proto)
	}
}
