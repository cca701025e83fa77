package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"doggos/internal/config"
	"doggos/internal/journal"
	"doggos/pkg/core"
	"doggos/pkg/physics"
	"doggos/pkg/protocol"
	"doggos/pkg/tick"
)

// DefaultReconnectGrace 拥有者断线后角色保留的时长
const DefaultReconnectGrace = 10 * time.Second

var (
	ErrRoomClosed = errors.New("房间已关闭")
	ErrRoomFull   = errors.New("房间已满")
)

// RoomConfig 房间配置
type RoomConfig struct {
	Config         config.Config
	Tickets        *TicketIssuer
	Journal        *journal.Writer // 可选
	Logger         *log.Logger
	ReconnectGrace time.Duration // 0 取默认值，小于 0 时断线立即移除
}

// actor 权威端的一个角色
type actor struct {
	id         uint32
	body       *physics.Body
	reconciler *Reconciler
	owner      Session // 断线等待重连时为 nil
	orphanedAt time.Time
}

// Room 权威模拟：单个 goroutine 持有时钟、物理世界和全部角色
type Room struct {
	ctx    context.Context
	cancel context.CancelFunc

	cfg     config.Config
	logger  *log.Logger
	tickets *TicketIssuer
	journal *journal.Writer
	grace   time.Duration
	now     func() time.Time

	clock       *tick.Clock
	world       *physics.World
	actors      map[uint32]*actor
	order       []uint32 // 出生顺序，保证遍历确定
	nextActorID uint32

	spectate *rate.Limiter
	warn     *rate.Limiter

	joinCh  chan joinRequest
	inputCh chan inputEvent
	leaveCh chan leaveEvent
}

type joinRequest struct {
	session Session
	join    protocol.Join
	respCh  chan error
}

type inputEvent struct {
	session Session
	actorID uint32
	batch   []core.InputSample
}

type leaveEvent struct {
	session Session
	actorID uint32
}

// NewRoom 创建房间
func NewRoom(parent context.Context, cfg RoomConfig) *Room {
	ctx, cancel := context.WithCancel(parent)

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	tickets := cfg.Tickets
	if tickets == nil {
		tickets = NewTicketIssuer("")
	}
	grace := cfg.ReconnectGrace
	if grace == 0 {
		grace = DefaultReconnectGrace
	}

	world := physics.NewWorld()
	r := &Room{
		ctx:         ctx,
		cancel:      cancel,
		cfg:         cfg.Config,
		logger:      logger,
		tickets:     tickets,
		journal:     cfg.Journal,
		grace:       grace,
		now:         time.Now,
		clock:       tick.NewClock(cfg.Config.Tick.Clock(), world),
		world:       world,
		actors:      make(map[uint32]*actor),
		nextActorID: 1,
		spectate:    rate.NewLimiter(rate.Limit(cfg.Config.Netcode.SpectatorRateHz), 2),
		warn:        rate.NewLimiter(rate.Every(time.Second), 1),
		joinCh:      make(chan joinRequest),
		inputCh:     make(chan inputEvent, 256),
		leaveCh:     make(chan leaveEvent, 256),
	}

	r.clock.OnPreUpdate(r.expireOrphans)
	r.clock.OnUpdate(r.updateActors)
	r.clock.OnPostUpdate(r.publish)
	return r
}

// Run 房间主循环
func (r *Room) Run(wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(r.clock.Interval())
	defer ticker.Stop()

	r.logger.Printf("房间循环启动: tick %v", r.clock.Interval())
	last := time.Now()

	for {
		select {
		case <-r.ctx.Done():
			r.closeAllConnections()
			r.flushJournal()
			r.logger.Println("房间循环停止")
			return

		case req := <-r.joinCh:
			req.respCh <- r.join(req.session, req.join)

		case ev := <-r.inputCh:
			r.handleInput(ev)

		case ev := <-r.leaveCh:
			r.handleLeave(ev)

		case now := <-ticker.C:
			r.clock.Advance(now.Sub(last))
			last = now
		}
	}
}

func (r *Room) Shutdown() {
	r.cancel()
}

// Join 加入或凭凭证重连（阻塞直到房间处理完）
func (r *Room) Join(session Session, join protocol.Join) error {
	respCh := make(chan error, 1)

	select {
	case <-r.ctx.Done():
		return ErrRoomClosed
	case r.joinCh <- joinRequest{session: session, join: join, respCh: respCh}:
	}

	select {
	case <-r.ctx.Done():
		return ErrRoomClosed
	case err := <-respCh:
		return err
	}
}

// EnqueueInput 投递输入批次
func (r *Room) EnqueueInput(session Session, actorID uint32, batch []core.InputSample) {
	select {
	case <-r.ctx.Done():
		return
	case r.inputCh <- inputEvent{session: session, actorID: actorID, batch: batch}:
	}
}

// Leave 连接断开
func (r *Room) Leave(session Session, actorID uint32) {
	select {
	case <-r.ctx.Done():
		return
	case r.leaveCh <- leaveEvent{session: session, actorID: actorID}:
	}
}

func (r *Room) join(session Session, join protocol.Join) error {
	if join.Ticket != "" {
		return r.rebind(session, join.Ticket)
	}

	if len(r.actors) >= r.cfg.Netcode.MaxPlayers {
		return fmt.Errorf("%w (%d/%d)", ErrRoomFull, len(r.actors), r.cfg.Netcode.MaxPlayers)
	}

	// 分配角色 ID
	id := r.nextActorID
	r.nextActorID++

	ticket, err := r.tickets.Issue(id)
	if err != nil {
		return fmt.Errorf("签发凭证失败: %w", err)
	}

	state := core.BodyState{Position: spawnPosition(id)}
	body := physics.NewBody(r.cfg.Body, state)
	a := &actor{
		id:         id,
		body:       body,
		reconciler: r.newReconciler(id, body),
		owner:      session,
	}

	session.SetActorID(id)
	if err := session.Send(r.accepted(a, ticket)); err != nil {
		session.SetActorID(0)
		return fmt.Errorf("发送加入确认失败: %w", err)
	}

	r.world.Add(body)
	r.actors[id] = a
	r.order = append(r.order, id)

	r.sendExisting(session, id)
	r.broadcastExcept(id, protocol.NewActorSpawned(id, state))
	r.record(journal.Record{Kind: journal.RecordSpawn, Tick: r.clock.Number(), ActorID: id, State: state})

	r.logger.Printf("角色 %d 加入（%s），出生点: (%.1f, %.1f)，当前角色数: %d",
		id, join.Name, state.Position.X(), state.Position.Y(), len(r.actors))
	return nil
}

// rebind 凭证有效且角色仍在时，把角色重新绑定到新连接
func (r *Room) rebind(session Session, ticket string) error {
	id, err := r.tickets.Verify(ticket)
	if err != nil {
		return err
	}
	a, ok := r.actors[id]
	if !ok {
		return fmt.Errorf("%w: 角色 %d 已不存在", ErrInvalidTicket, id)
	}

	if old := a.owner; old != nil && old != session {
		old.SetActorID(0)
		old.CloseWithoutNotify()
	}

	fresh, err := r.tickets.Issue(id)
	if err != nil {
		return fmt.Errorf("签发凭证失败: %w", err)
	}

	session.SetActorID(id)
	if err := session.Send(r.accepted(a, fresh)); err != nil {
		session.SetActorID(0)
		return fmt.Errorf("发送加入确认失败: %w", err)
	}

	// 新客户端的 tick 编号与旧连接无关，去重水位重新开始
	a.owner = session
	a.orphanedAt = time.Time{}
	a.reconciler = r.newReconciler(id, a.body)

	r.sendExisting(session, id)
	r.logger.Printf("角色 %d 重连成功", id)
	return nil
}

func (r *Room) newReconciler(id uint32, body *physics.Body) *Reconciler {
	return NewReconciler(id, body, r.cfg.Movement, r.clock.StepSeconds(), r.cfg.Netcode.QueueCapacity)
}

func (r *Room) accepted(a *actor, ticket string) protocol.Envelope {
	return protocol.NewJoinAccepted(protocol.JoinAccepted{
		ActorID:     a.id,
		Ticket:      ticket,
		StepSeconds: r.clock.StepSeconds(),
		State:       a.body.State(),
	})
}

// sendExisting 把其他已有角色告知新连接
func (r *Room) sendExisting(session Session, self uint32) {
	for _, id := range r.order {
		if id == self {
			continue
		}
		r.send(session, protocol.NewActorSpawned(id, r.actors[id].body.State()))
	}
}

func (r *Room) handleInput(ev inputEvent) {
	a, ok := r.actors[ev.actorID]
	if !ok || a.owner != ev.session {
		return
	}
	a.reconciler.Ingest(ev.batch)
}

func (r *Room) handleLeave(ev leaveEvent) {
	a, ok := r.actors[ev.actorID]
	if !ok || a.owner != ev.session {
		return
	}

	a.owner = nil
	a.orphanedAt = r.now()
	if r.grace < 0 {
		r.removeActor(a.id)
		return
	}
	r.logger.Printf("角色 %d 的连接断开，保留 %v 等待重连", a.id, r.grace)
}

// expireOrphans 移除超过保留时长仍未重连的角色
func (r *Room) expireOrphans() {
	now := r.now()
	for _, id := range append([]uint32(nil), r.order...) {
		a := r.actors[id]
		if a.owner == nil && now.Sub(a.orphanedAt) >= r.grace {
			r.removeActor(id)
		}
	}
}

func (r *Room) removeActor(id uint32) {
	a, ok := r.actors[id]
	if !ok {
		return
	}

	r.world.Remove(a.body)
	delete(r.actors, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	r.broadcastExcept(id, protocol.NewActorRemoved(id))
	r.record(journal.Record{Kind: journal.RecordRemove, Tick: r.clock.Number(), ActorID: id})
	r.logger.Printf("角色 %d 离开，当前角色数: %d", id, len(r.actors))
}

// updateActors 每个有拥有者的角色消费至多一个输入并应用移动规则
func (r *Room) updateActors() {
	for _, id := range r.order {
		if a := r.actors[id]; a.owner != nil {
			a.reconciler.Update()
		}
	}
}

// publish 物理步进之后：定向发送权威状态，广播旁观状态，写日志
func (r *Room) publish() {
	number := r.clock.Number()
	spectate := len(r.actors) > 1 && r.spectate.Allow()

	for _, id := range r.order {
		a := r.actors[id]
		applied := core.None[core.InputSample]()

		if a.owner != nil {
			applied = a.reconciler.Applied()
			if env, ok := a.reconciler.Outbound(); ok {
				r.send(a.owner, env)
			}
		}

		state := a.body.State()
		if spectate {
			r.broadcastExcept(id, protocol.NewSpectatorState(id, protocol.SpectatorState{
				State:   state,
				Damping: a.body.Damping(),
			}))
		}

		in, ok := applied.Get()
		r.record(journal.Record{
			Kind:    journal.RecordTick,
			Tick:    number,
			ActorID: id,
			Applied: ok,
			Input:   in,
			State:   state,
		})
	}
}

func (r *Room) send(session Session, env protocol.Envelope) {
	if err := session.Send(env); err != nil && r.warn.Allow() {
		r.logger.Printf("角色 %d: 发送 %s 失败: %v", session.ActorID(), env.Kind, err)
	}
}

// broadcastExcept 发送给除 owner 之外的所有在线连接
func (r *Room) broadcastExcept(owner uint32, env protocol.Envelope) {
	for _, id := range r.order {
		if id == owner {
			continue
		}
		if a := r.actors[id]; a.owner != nil {
			r.send(a.owner, env)
		}
	}
}

func (r *Room) record(rec journal.Record) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Write(rec); err != nil && r.warn.Allow() {
		r.logger.Printf("写入日志失败: %v", err)
	}
}

func (r *Room) flushJournal() {
	if r.journal == nil {
		return
	}
	if err := r.journal.Flush(); err != nil {
		r.logger.Printf("刷新日志失败: %v", err)
	}
}

func (r *Room) closeAllConnections() {
	for _, a := range r.actors {
		if a.owner != nil {
			a.owner.CloseWithoutNotify()
		}
	}
}

// spawnPosition 出生点均匀分布在半径 5 的圆上
func spawnPosition(id uint32) core.Vec2 {
	const slots = 8
	angle := 2 * math.Pi * float64((id-1)%slots) / slots
	return core.Vec2{5 * math.Cos(angle), 5 * math.Sin(angle)}
}
