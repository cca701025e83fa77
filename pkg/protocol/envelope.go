package protocol

import (
	"errors"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

var (
	ErrMalformed   = errors.New("消息格式错误")
	ErrUnknownKind = errors.New("未知消息类型")
)

// Kind 消息类型
type Kind uint8

const (
	KindUnknown Kind = iota
	KindJoin
	KindJoinAccepted
	KindInputBatch
	KindAuthoritativeState
	KindTimingOnly
	KindSpectatorState
	KindActorSpawned
	KindActorRemoved
	KindPing
	KindPong
)

func (k Kind) String() string {
	switch k {
	case KindJoin:
		return "Join"
	case KindJoinAccepted:
		return "JoinAccepted"
	case KindInputBatch:
		return "InputBatch"
	case KindAuthoritativeState:
		return "AuthoritativeState"
	case KindTimingOnly:
		return "TimingOnly"
	case KindSpectatorState:
		return "SpectatorState"
	case KindActorSpawned:
		return "ActorSpawned"
	case KindActorRemoved:
		return "ActorRemoved"
	case KindPing:
		return "Ping"
	case KindPong:
		return "Pong"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Route 消息的投递方向
type Route int

const (
	RouteUnknown      Route = iota
	RouteToAuthority        // 拥有者 → 权威端
	RouteToOwner            // 权威端 → 单个连接
	RouteToSpectators       // 权威端 → 除拥有者外的所有连接
	RouteToAll              // 权威端 → 所有连接
)

// routes 路由表：每种消息只有一个合法方向
var routes = map[Kind]Route{
	KindJoin:               RouteToAuthority,
	KindInputBatch:         RouteToAuthority,
	KindPong:               RouteToAuthority,
	KindJoinAccepted:       RouteToOwner,
	KindAuthoritativeState: RouteToOwner,
	KindTimingOnly:         RouteToOwner,
	KindPing:               RouteToOwner,
	KindSpectatorState:     RouteToSpectators,
	KindActorSpawned:       RouteToAll,
	KindActorRemoved:       RouteToAll,
}

// RouteOf 查询消息类型的投递方向
func RouteOf(k Kind) Route {
	return routes[k]
}

// FromAuthority 该类型是否由权威端发出
func FromAuthority(k Kind) bool {
	switch RouteOf(k) {
	case RouteToOwner, RouteToSpectators, RouteToAll:
		return true
	default:
		return false
	}
}

// Envelope 统一的消息信封
type Envelope struct {
	Kind    Kind
	ActorID uint32
	Payload []byte
}

const (
	envKindField    protowire.Number = 1
	envActorField   protowire.Number = 2
	envPayloadField protowire.Number = 3
)

// Marshal 序列化信封
func Marshal(env Envelope) []byte {
	b := make([]byte, 0, 8+len(env.Payload))
	b = protowire.AppendTag(b, envKindField, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(env.Kind))
	if env.ActorID != 0 {
		b = protowire.AppendTag(b, envActorField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(env.ActorID))
	}
	if len(env.Payload) > 0 {
		b = protowire.AppendTag(b, envPayloadField, protowire.BytesType)
		b = protowire.AppendBytes(b, env.Payload)
	}
	return b
}

// Unmarshal 解析信封，不认识的类型返回 ErrUnknownKind
func Unmarshal(data []byte) (Envelope, error) {
	var env Envelope
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case envKindField:
			var v uint64
			n := consumeVarint(num, typ, b, &v)
			env.Kind = Kind(v)
			return n
		case envActorField:
			var v uint64
			n := consumeVarint(num, typ, b, &v)
			env.ActorID = uint32(v)
			return n
		case envPayloadField:
			return consumeBytes(num, typ, b, &env.Payload)
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
	if err != nil {
		return Envelope{}, err
	}
	if RouteOf(env.Kind) == RouteUnknown {
		return env, fmt.Errorf("%w: %d", ErrUnknownKind, env.Kind)
	}
	return env, nil
}

// decodeFields 逐字段解析，fn 负责消费字段值并返回消费的字节数（负数表示错误）
func decodeFields(data []byte, fn func(num protowire.Number, typ protowire.Type, b []byte) int) error {
	b := data
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(n))
		}
		b = b[n:]

		m := fn(num, typ, b)
		if m < 0 {
			return fmt.Errorf("%w: %v", ErrMalformed, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}

func consumeVarint(num protowire.Number, typ protowire.Type, b []byte, dst *uint64) int {
	if typ != protowire.VarintType {
		return protowire.ConsumeFieldValue(num, typ, b)
	}
	v, n := protowire.ConsumeVarint(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func consumeDouble(num protowire.Number, typ protowire.Type, b []byte, dst *float64) int {
	if typ != protowire.Fixed64Type {
		return protowire.ConsumeFieldValue(num, typ, b)
	}
	v, n := protowire.ConsumeFixed64(b)
	if n >= 0 {
		*dst = float64frombits(v)
	}
	return n
}

func consumeBytes(num protowire.Number, typ protowire.Type, b []byte, dst *[]byte) int {
	if typ != protowire.BytesType {
		return protowire.ConsumeFieldValue(num, typ, b)
	}
	v, n := protowire.ConsumeBytes(b)
	if n >= 0 {
		*dst = v
	}
	return n
}

func consumeString(num protowire.Number, typ protowire.Type, b []byte, dst *string) int {
	if typ != protowire.BytesType {
		return protowire.ConsumeFieldValue(num, typ, b)
	}
	v, n := protowire.ConsumeString(b)
	if n >= 0 {
		*dst = v
	}
	return n
}
