package rollback

// Manager 回滚通知
// 在任何回滚重模拟之前调用 Start，结束后调用 End；
// 订阅者（例如旁观预测器）借此把非本地拥有的刚体对齐到最近的权威状态
// 与时钟在同一模拟线程使用，非并发安全
type Manager struct {
	onStart []func()
	onEnd   []func()
	active  bool
}

// NewManager 创建回滚管理器，进程内只需一个实例，通过依赖注入传递
func NewManager() *Manager {
	return &Manager{}
}

// OnStart 注册回滚开始回调
func (m *Manager) OnStart(fn func()) {
	m.onStart = append(m.onStart, fn)
}

// OnEnd 注册回滚结束回调
func (m *Manager) OnEnd(fn func()) {
	m.onEnd = append(m.onEnd, fn)
}

// Active 是否处于回滚区间内
func (m *Manager) Active() bool {
	return m.active
}

// Start 开始回滚，已在区间内时忽略
func (m *Manager) Start() {
	if m.active {
		return
	}
	m.active = true
	for _, fn := range m.onStart {
		fn()
	}
}

// End 结束回滚，不在区间内时忽略
func (m *Manager) End() {
	if !m.active {
		return
	}
	m.active = false
	for _, fn := range m.onEnd {
		fn()
	}
}

// Bracket 在回滚区间内执行 fn
func (m *Manager) Bracket(fn func()) {
	m.Start()
	defer m.End()
	fn()
}
