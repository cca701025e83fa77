package protocol

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"doggos/pkg/core"
	"doggos/pkg/tick"
)

func float64bits(v float64) uint64     { return math.Float64bits(v) }
func float64frombits(v uint64) float64 { return math.Float64frombits(v) }

// ========== 刚体状态 ==========

func appendDouble(b []byte, num protowire.Number, v float64) []byte {
	b = protowire.AppendTag(b, num, protowire.Fixed64Type)
	return protowire.AppendFixed64(b, float64bits(v))
}

// 浮点数按 fixed64 编码，保证逐位还原
func appendBodyState(b []byte, s core.BodyState) []byte {
	b = appendDouble(b, 1, s.Position[0])
	b = appendDouble(b, 2, s.Position[1])
	b = appendDouble(b, 3, s.Rotation)
	b = appendDouble(b, 4, s.LinearVelocity[0])
	b = appendDouble(b, 5, s.LinearVelocity[1])
	b = appendDouble(b, 6, s.AngularVelocity)
	if s.Vitals.Fatigue != 0 {
		b = appendDouble(b, 7, s.Vitals.Fatigue)
	}
	if s.Vitals.BarkTimer != 0 {
		b = appendDouble(b, 8, s.Vitals.BarkTimer)
	}
	return b
}

func parseBodyState(data []byte) (core.BodyState, error) {
	var s core.BodyState
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeDouble(num, typ, b, &s.Position[0])
		case 2:
			return consumeDouble(num, typ, b, &s.Position[1])
		case 3:
			return consumeDouble(num, typ, b, &s.Rotation)
		case 4:
			return consumeDouble(num, typ, b, &s.LinearVelocity[0])
		case 5:
			return consumeDouble(num, typ, b, &s.LinearVelocity[1])
		case 6:
			return consumeDouble(num, typ, b, &s.AngularVelocity)
		case 7:
			return consumeDouble(num, typ, b, &s.Vitals.Fatigue)
		case 8:
			return consumeDouble(num, typ, b, &s.Vitals.BarkTimer)
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
	return s, err
}

func appendNestedState(b []byte, num protowire.Number, s core.BodyState) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, appendBodyState(nil, s))
}

func consumeNestedState(num protowire.Number, typ protowire.Type, b []byte, dst *core.BodyState, errp *error) int {
	var raw []byte
	n := consumeBytes(num, typ, b, &raw)
	if n < 0 {
		return n
	}
	s, err := parseBodyState(raw)
	if err != nil {
		*errp = err
		return n
	}
	*dst = s
	return n
}

func expect(env Envelope, kind Kind) error {
	if env.Kind != kind {
		return fmt.Errorf("%w: 期望 %s，实际 %s", ErrMalformed, kind, env.Kind)
	}
	return nil
}

// ========== 加入 ==========

// Join 加入请求；Ticket 非空表示携带所有权凭证重连
type Join struct {
	Name   string
	Ticket string
}

// NewJoin 构造加入请求
func NewJoin(join Join) Envelope {
	var b []byte
	if join.Name != "" {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendString(b, join.Name)
	}
	if join.Ticket != "" {
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendString(b, join.Ticket)
	}
	return Envelope{Kind: KindJoin, Payload: b}
}

// ParseJoin 解析加入请求
func ParseJoin(env Envelope) (Join, error) {
	var join Join
	if err := expect(env, KindJoin); err != nil {
		return join, err
	}
	err := decodeFields(env.Payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(num, typ, b, &join.Name)
		case 2:
			return consumeString(num, typ, b, &join.Ticket)
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
	return join, err
}

// JoinAccepted 加入成功，告知拥有的角色
type JoinAccepted struct {
	ActorID     uint32
	Ticket      string
	StepSeconds float64 // 权威端物理步长，拥有者必须一致
	State       core.BodyState
}

// NewJoinAccepted 构造加入成功消息
func NewJoinAccepted(msg JoinAccepted) Envelope {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.BytesType)
	b = protowire.AppendString(b, msg.Ticket)
	b = appendDouble(b, 2, msg.StepSeconds)
	b = appendNestedState(b, 3, msg.State)
	return Envelope{Kind: KindJoinAccepted, ActorID: msg.ActorID, Payload: b}
}

// ParseJoinAccepted 解析加入成功消息
func ParseJoinAccepted(env Envelope) (JoinAccepted, error) {
	msg := JoinAccepted{ActorID: env.ActorID}
	if err := expect(env, KindJoinAccepted); err != nil {
		return msg, err
	}
	var nestedErr error
	err := decodeFields(env.Payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeString(num, typ, b, &msg.Ticket)
		case 2:
			return consumeDouble(num, typ, b, &msg.StepSeconds)
		case 3:
			return consumeNestedState(num, typ, b, &msg.State, &nestedErr)
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
	if err == nil {
		err = nestedErr
	}
	return msg, err
}

// ========== 输入 ==========

func appendInputSample(b []byte, in core.InputSample) []byte {
	b = appendDouble(b, 1, in.Horizontal)
	b = appendDouble(b, 2, in.Vertical)
	b = protowire.AppendTag(b, 3, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(in.Tick))
	if in.Flags != 0 {
		b = protowire.AppendTag(b, 4, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(in.Flags))
	}
	return b
}

func parseInputSample(data []byte) (core.InputSample, error) {
	var in core.InputSample
	err := decodeFields(data, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeDouble(num, typ, b, &in.Horizontal)
		case 2:
			return consumeDouble(num, typ, b, &in.Vertical)
		case 3:
			var v uint64
			n := consumeVarint(num, typ, b, &v)
			in.Tick = tick.Number(v)
			return n
		case 4:
			var v uint64
			n := consumeVarint(num, typ, b, &v)
			in.Flags = core.ActionFlags(v)
			return n
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
	if err == nil && !in.Finite() {
		err = fmt.Errorf("%w: tick %d 的移动输入不是有限值", ErrMalformed, in.Tick)
	}
	return in, err
}

// NewInputBatch 构造输入批次（拥有者发送最近的若干个输入，冗余抗丢包）
func NewInputBatch(actorID uint32, inputs []core.InputSample) Envelope {
	var b []byte
	for _, in := range inputs {
		b = protowire.AppendTag(b, 1, protowire.BytesType)
		b = protowire.AppendBytes(b, appendInputSample(nil, in))
	}
	return Envelope{Kind: KindInputBatch, ActorID: actorID, Payload: b}
}

// ParseInputBatch 解析输入批次，空批次返回空切片
// 任一输入无法解析或含 NaN、无穷大时整批作废
func ParseInputBatch(env Envelope) ([]core.InputSample, error) {
	if err := expect(env, KindInputBatch); err != nil {
		return nil, err
	}
	inputs := make([]core.InputSample, 0, 8)
	var itemErr error
	err := decodeFields(env.Payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num != 1 {
			return protowire.ConsumeFieldValue(num, typ, b)
		}
		var raw []byte
		n := consumeBytes(num, typ, b, &raw)
		if n < 0 {
			return n
		}
		in, err := parseInputSample(raw)
		if err != nil {
			itemErr = err
			return n
		}
		inputs = append(inputs, in)
		return n
	})
	if err == nil {
		err = itemErr
	}
	if err != nil {
		return nil, err
	}
	return inputs, nil
}

// ========== 权威状态 ==========

// AuthoritativeState 权威端在应用某个输入并步进后的状态
type AuthoritativeState struct {
	Tick       tick.Number // 已应用的输入 tick
	State      core.BodyState
	TimingHint int8
}

func appendHint(b []byte, num protowire.Number, hint int8) []byte {
	if hint == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeZigZag(int64(hint)))
}

func consumeHint(num protowire.Number, typ protowire.Type, b []byte, dst *int8) int {
	var v uint64
	n := consumeVarint(num, typ, b, &v)
	if n >= 0 {
		*dst = clampHint(protowire.DecodeZigZag(v))
	}
	return n
}

func clampHint(v int64) int8 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	default:
		return 0
	}
}

// NewAuthoritativeState 构造权威状态（定向发送给拥有者）
func NewAuthoritativeState(actorID uint32, msg AuthoritativeState) Envelope {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(msg.Tick))
	b = appendNestedState(b, 2, msg.State)
	b = appendHint(b, 3, msg.TimingHint)
	return Envelope{Kind: KindAuthoritativeState, ActorID: actorID, Payload: b}
}

// ParseAuthoritativeState 解析权威状态
func ParseAuthoritativeState(env Envelope) (AuthoritativeState, error) {
	var msg AuthoritativeState
	if err := expect(env, KindAuthoritativeState); err != nil {
		return msg, err
	}
	var nestedErr error
	err := decodeFields(env.Payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			var v uint64
			n := consumeVarint(num, typ, b, &v)
			msg.Tick = tick.Number(v)
			return n
		case 2:
			return consumeNestedState(num, typ, b, &msg.State, &nestedErr)
		case 3:
			return consumeHint(num, typ, b, &msg.TimingHint)
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
	if err == nil {
		err = nestedErr
	}
	return msg, err
}

// NewTimingOnly 构造仅含节奏提示的轻量消息
func NewTimingOnly(actorID uint32, hint int8) Envelope {
	return Envelope{Kind: KindTimingOnly, ActorID: actorID, Payload: appendHint(nil, 1, hint)}
}

// ParseTimingOnly 解析节奏提示
func ParseTimingOnly(env Envelope) (int8, error) {
	if err := expect(env, KindTimingOnly); err != nil {
		return 0, err
	}
	var hint int8
	err := decodeFields(env.Payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeHint(num, typ, b, &hint)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
	return hint, err
}

// ========== 旁观 ==========

// SpectatorState 旁观广播（无 tick，无节奏提示）
// Damping 为权威端该角色当前的线性阻尼，旁观者据此推进刚体
type SpectatorState struct {
	State   core.BodyState
	Damping float64
}

// NewSpectatorState 构造旁观广播
func NewSpectatorState(actorID uint32, msg SpectatorState) Envelope {
	b := appendNestedState(nil, 1, msg.State)
	if msg.Damping != 0 {
		b = appendDouble(b, 2, msg.Damping)
	}
	return Envelope{Kind: KindSpectatorState, ActorID: actorID, Payload: b}
}

// ParseSpectatorState 解析旁观广播
func ParseSpectatorState(env Envelope) (SpectatorState, error) {
	var msg SpectatorState
	if err := expect(env, KindSpectatorState); err != nil {
		return msg, err
	}
	var nestedErr error
	err := decodeFields(env.Payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		switch num {
		case 1:
			return consumeNestedState(num, typ, b, &msg.State, &nestedErr)
		case 2:
			return consumeDouble(num, typ, b, &msg.Damping)
		default:
			return protowire.ConsumeFieldValue(num, typ, b)
		}
	})
	if err == nil {
		err = nestedErr
	}
	return msg, err
}

// NewActorSpawned 构造角色出生消息
func NewActorSpawned(actorID uint32, state core.BodyState) Envelope {
	return Envelope{Kind: KindActorSpawned, ActorID: actorID, Payload: appendBodyState(nil, state)}
}

// ParseActorSpawned 解析角色出生消息
func ParseActorSpawned(env Envelope) (core.BodyState, error) {
	if err := expect(env, KindActorSpawned); err != nil {
		return core.BodyState{}, err
	}
	return parseBodyState(env.Payload)
}

// NewActorRemoved 构造角色移除消息
func NewActorRemoved(actorID uint32) Envelope {
	return Envelope{Kind: KindActorRemoved, ActorID: actorID}
}

// ========== 心跳 ==========

// NewPing 构造心跳
func NewPing(serverTime int64) Envelope {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(serverTime))
	return Envelope{Kind: KindPing, Payload: b}
}

// NewPong 回应心跳，原样带回对端时间
func NewPong(serverTime int64) Envelope {
	env := NewPing(serverTime)
	env.Kind = KindPong
	return env
}

// ParseHeartbeat 解析 Ping/Pong 中的时间戳（毫秒）
func ParseHeartbeat(env Envelope) (int64, error) {
	if env.Kind != KindPing && env.Kind != KindPong {
		return 0, fmt.Errorf("%w: 期望心跳，实际 %s", ErrMalformed, env.Kind)
	}
	var v uint64
	err := decodeFields(env.Payload, func(num protowire.Number, typ protowire.Type, b []byte) int {
		if num == 1 {
			return consumeVarint(num, typ, b, &v)
		}
		return protowire.ConsumeFieldValue(num, typ, b)
	})
	return int64(v), err
}
