// Package client mirrors server documents in memory and applies interaction
// changes optimistically. Every local change is tagged with a monotonically
// increasing version so that late responses can be recognised as stale.
package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"Circle_Social/internal/engine"
	"Circle_Social/internal/model"
)

type messageEntry struct {
	msg *model.Message
	tag uint64
}

type circleEntry struct {
	circle *model.Circle
	tag    uint64
}

type Manager struct {
	t    Transport
	user uint64
	log  *zap.Logger
	now  func() time.Time

	// onChange 在状态变化后调用（不持有锁），用于触发重新渲染
	onChange func()

	mu       sync.Mutex
	version  uint64
	loadTag  uint64
	order    []string
	messages map[string]*messageEntry
	circles  map[string]*circleEntry
}

func NewManager(t Transport, user uint64, log *zap.Logger, onChange func()) *Manager {
	if onChange == nil {
		onChange = func() {}
	}
	return &Manager{
		t:        t,
		user:     user,
		log:      log,
		now:      time.Now,
		onChange: onChange,
		messages: make(map[string]*messageEntry),
		circles:  make(map[string]*circleEntry),
	}
}

// bump 需持有 mu
func (m *Manager) bump() uint64 {
	m.version++
	return m.version
}

// Load 全量拉取消息流。所有文档换上新的 tag，进行中的请求返回后都会被视为过期
func (m *Manager) Load(ctx context.Context, circle string) error {
	list, err := m.t.ListMessages(ctx, circle)
	if err != nil {
		return err
	}
	m.mu.Lock()
	tag := m.bump()
	m.loadTag = tag
	m.order = make([]string, 0, len(list))
	m.messages = make(map[string]*messageEntry, len(list))
	for i := range list {
		msg := list[i]
		m.order = append(m.order, msg.ID)
		m.messages[msg.ID] = &messageEntry{msg: msg.Clone(), tag: tag}
	}
	m.mu.Unlock()
	m.onChange()
	return nil
}

// Reload 重新拉取单个文档；服务端已删除时从本地移除。
// 拉取期间本地又有新的修改时不覆盖，由那次修改自己的结果处理
func (m *Manager) Reload(ctx context.Context, id string) error {
	m.mu.Lock()
	var since uint64
	if e, ok := m.messages[id]; ok {
		since = e.tag
	}
	m.mu.Unlock()

	msg, err := m.t.GetMessage(ctx, id)
	if err != nil && !IsNotFound(err) {
		return err
	}
	m.mu.Lock()
	if e, ok := m.messages[id]; ok && e.tag != since {
		m.mu.Unlock()
		return nil
	}
	if err != nil {
		m.removeLocked(id)
	} else {
		m.putLocked(msg, m.bump())
	}
	m.mu.Unlock()
	m.onChange()
	return nil
}

func (m *Manager) putLocked(msg *model.Message, tag uint64) {
	if e, ok := m.messages[msg.ID]; ok {
		e.msg, e.tag = msg.Clone(), tag
		return
	}
	m.messages[msg.ID] = &messageEntry{msg: msg.Clone(), tag: tag}
	m.order = append([]string{msg.ID}, m.order...)
}

func (m *Manager) removeLocked(id string) int {
	delete(m.messages, id)
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return i
		}
	}
	return -1
}

// Message returns a copy of the local message.
func (m *Manager) Message(id string) (*model.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.messages[id]
	if !ok {
		return nil, false
	}
	return e.msg.Clone(), true
}

// Messages 按本地顺序返回副本
func (m *Manager) Messages() []model.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.Message, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, *m.messages[id].msg.Clone())
	}
	return out
}

// ToggleReaction 本地立即切换，再把完整的 reactions 数组发给服务端。
// 文档不在本地时什么也不做，返回 false
func (m *Manager) ToggleReaction(ctx context.Context, id string, typ model.ReactionType) (bool, error) {
	m.mu.Lock()
	e, ok := m.messages[id]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	prev := e.msg.Reactions
	next, err := engine.SetReaction(prev, m.user, typ, m.now())
	if err != nil {
		m.mu.Unlock()
		return false, err
	}
	tag := m.bump()
	cp := e.msg.Clone()
	cp.Reactions = next
	e.msg, e.tag = cp, tag
	m.mu.Unlock()
	m.onChange()

	resp, err := m.t.PatchMessage(ctx, id, Patch{Reactions: &next})
	m.settle(ctx, id, tag, resp, err, func(msg *model.Message) { msg.Reactions = prev })
	return true, err
}

func (m *Manager) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	e, ok := m.messages[id]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	prev := e.msg.Favorites
	next, err := engine.SetFavorite(prev, m.user, m.now())
	if err != nil {
		m.mu.Unlock()
		return false, err
	}
	tag := m.bump()
	cp := e.msg.Clone()
	cp.Favorites = next
	e.msg, e.tag = cp, tag
	m.mu.Unlock()
	m.onChange()

	resp, err := m.t.PatchMessage(ctx, id, Patch{Favorites: &next})
	m.settle(ctx, id, tag, resp, err, func(msg *model.Message) { msg.Favorites = prev })
	return true, err
}

// settle 处理请求结果：
// 成功且 tag 未变，以服务端返回为准；tag 已变说明响应过期，直接丢弃。
// 失败且 tag 未变，先精确回滚该字段，再回源拉取文档；
// 本地缓存缺少别人的条目时服务端会拒绝整体替换，不回源的话后续请求会一直失败
func (m *Manager) settle(ctx context.Context, id string, tag uint64, resp *model.Message, err error, revert func(*model.Message)) {
	m.mu.Lock()
	e, ok := m.messages[id]
	current := ok && e.tag == tag
	if err == nil {
		if current && resp != nil {
			e.msg = resp.Clone()
		}
		m.mu.Unlock()
		if current {
			m.onChange()
		}
		return
	}

	if current {
		if IsNotFound(err) {
			m.removeLocked(id)
			m.mu.Unlock()
			m.onChange()
			return
		}
		cp := e.msg.Clone()
		revert(cp)
		e.msg, e.tag = cp, m.bump()
		m.mu.Unlock()
		m.onChange()
	} else {
		m.mu.Unlock()
		m.log.Debug("stale failure, reloading", zap.String("message", id), zap.Error(err))
	}

	if rerr := m.Reload(ctx, id); rerr != nil {
		m.log.Warn("reload after failed mutation", zap.String("message", id), zap.Error(rerr))
	}
}

// CreateMessage 服务端创建成功后插入本地列表头部
func (m *Manager) CreateMessage(ctx context.Context, in NewMessage) (*model.Message, error) {
	msg, err := m.t.CreateMessage(ctx, in)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.putLocked(msg, m.bump())
	m.mu.Unlock()
	m.onChange()
	return msg.Clone(), nil
}

// DeleteMessage 先从本地移除；失败时若期间没有全量刷新，放回原位置
func (m *Manager) DeleteMessage(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	e, ok := m.messages[id]
	if !ok {
		m.mu.Unlock()
		return false, nil
	}
	removed := e.msg
	pos := m.removeLocked(id)
	tag := m.bump()
	m.mu.Unlock()
	m.onChange()

	err := m.t.DeleteMessage(ctx, id)
	if err == nil || IsNotFound(err) {
		return true, nil
	}

	m.mu.Lock()
	_, back := m.messages[id]
	if back || m.loadTag > tag {
		m.mu.Unlock()
		if rerr := m.Reload(ctx, id); rerr != nil {
			m.log.Warn("reload after failed delete", zap.String("message", id), zap.Error(rerr))
		}
		return true, err
	}
	if pos < 0 || pos > len(m.order) {
		pos = len(m.order)
	}
	m.order = append(m.order[:pos], append([]string{id}, m.order[pos:]...)...)
	m.messages[id] = &messageEntry{msg: removed, tag: m.bump()}
	m.mu.Unlock()
	m.onChange()
	return true, err
}

// LoadCircle 拉取社区文档放入本地
func (m *Manager) LoadCircle(ctx context.Context, id string) error {
	c, err := m.t.GetCircle(ctx, id)
	if err != nil {
		if IsNotFound(err) {
			m.mu.Lock()
			delete(m.circles, id)
			m.mu.Unlock()
			m.onChange()
		}
		return err
	}
	m.mu.Lock()
	m.circles[id] = &circleEntry{circle: c.Clone(), tag: m.bump()}
	m.mu.Unlock()
	m.onChange()
	return nil
}

func (m *Manager) Circle(id string) (*model.Circle, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.circles[id]
	if !ok {
		return nil, false
	}
	return e.circle.Clone(), true
}

// JoinCircle 本地先追加成员记录；已是成员或已申请时直接返回对应错误，不发请求。
// 社区不在本地时返回空状态
func (m *Manager) JoinCircle(ctx context.Context, id string) (model.MemberStatus, error) {
	m.mu.Lock()
	e, ok := m.circles[id]
	if !ok {
		m.mu.Unlock()
		return "", nil
	}
	prev := e.circle.Members
	_, next, err := engine.RequestJoin(e.circle, m.user, m.now())
	if err != nil {
		m.mu.Unlock()
		return "", err
	}
	tag := m.bump()
	cp := e.circle.Clone()
	cp.Members = next
	e.circle, e.tag = cp, tag
	m.mu.Unlock()
	m.onChange()

	status, err := m.t.JoinCircle(ctx, id)

	m.mu.Lock()
	e, ok = m.circles[id]
	current := ok && e.tag == tag
	switch {
	case err == nil && current:
		// 以服务端给出的状态为准
		cp := e.circle.Clone()
		if i := engine.FindMembership(cp.Members, m.user); i >= 0 {
			cp.Members[i].Status = status
		}
		e.circle = cp
	case err != nil && current:
		cp := e.circle.Clone()
		cp.Members = prev
		e.circle, e.tag = cp, m.bump()
	}
	m.mu.Unlock()

	if err != nil && !current {
		if rerr := m.LoadCircle(ctx, id); rerr != nil && !IsNotFound(rerr) {
			m.log.Warn("reload circle after failed join", zap.String("circle", id), zap.Error(rerr))
		}
		return "", err
	}
	if current {
		m.onChange()
	}
	return status, err
}
