package server

import "doggos/pkg/protocol"

// Session 房间看到的一个客户端连接
type Session interface {
	ActorID() uint32
	SetActorID(id uint32)
	Send(env protocol.Envelope) error
	Close()
	CloseWithoutNotify()
}
