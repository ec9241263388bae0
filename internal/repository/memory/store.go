// Package memory is an in-process document store used for local runs and
// tests. A single mutex serializes every read-modify-write.
package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"Circle_Social/internal/engine"
	"Circle_Social/internal/model"
	"Circle_Social/internal/repository"
)

type Store struct {
	mu       sync.Mutex
	circles  map[string]*model.Circle
	messages map[string]*model.Message
	outbox   []model.InteractionOutbox
	now      func() time.Time

	// FailWrites 为 true 时所有写操作返回 error，用于模拟持久化失败
	FailWrites bool
}

func NewStore() *Store {
	return &Store{
		circles:  make(map[string]*model.Circle),
		messages: make(map[string]*model.Message),
		now:      time.Now,
	}
}

var errWriteFailed = errors.New("memory store: write failed")

func (s *Store) appendOutbox(events []model.Event, now time.Time) error {
	rows, err := repository.OutboxRows(events, now)
	if err != nil {
		return err
	}
	s.outbox = append(s.outbox, rows...)
	return nil
}

func (s *Store) CreateCircle(ctx context.Context, c *model.Circle, events []model.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errWriteFailed
	}
	if _, ok := s.circles[c.ID]; ok {
		return repository.ErrConflict
	}
	c.Version = 1
	s.circles[c.ID] = c.Clone()
	return s.appendOutbox(events, s.now())
}

func (s *Store) GetCircle(ctx context.Context, id string) (*model.Circle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.circles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return c.Clone(), nil
}

func (s *Store) ListCircles(ctx context.Context, offset, limit int) ([]model.Circle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]model.Circle, 0, len(s.circles))
	for _, c := range s.circles {
		list = append(list, *c.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	if offset >= len(list) {
		return []model.Circle{}, nil
	}
	list = list[offset:]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *Store) DeleteCircle(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errWriteFailed
	}
	delete(s.circles, id)
	return nil
}

func (s *Store) MutateCircle(ctx context.Context, id string, fn repository.CircleMutation) (*model.Circle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.circles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	next := cur.Clone()
	events, err := fn(next)
	if err != nil {
		return nil, err
	}
	if s.FailWrites {
		return nil, errWriteFailed
	}
	now := s.now()
	next.Version = cur.Version + 1
	next.UpdatedAt = now
	s.circles[id] = next
	if err := s.appendOutbox(events, now); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (s *Store) CirclesWithMember(ctx context.Context, user uint64) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id, c := range s.circles {
		if engine.FindMembership(c.Members, user) >= 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) CreateMessage(ctx context.Context, m *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errWriteFailed
	}
	if _, ok := s.messages[m.ID]; ok {
		return repository.ErrConflict
	}
	m.Version = 1
	s.messages[m.ID] = m.Clone()
	return nil
}

func (s *Store) GetMessage(ctx context.Context, id string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return m.Clone(), nil
}

// ListMessages 按 (created_at DESC, id DESC) 游标分页，circle 为空时查全部
func (s *Store) ListMessages(ctx context.Context, circle, lastID string, lastCreatedAt time.Time, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := make([]model.Message, 0)
	for _, m := range s.messages {
		if circle != "" && m.Circle != circle {
			continue
		}
		if !lastCreatedAt.IsZero() {
			if m.CreatedAt.After(lastCreatedAt) || (m.CreatedAt.Equal(lastCreatedAt) && m.ID >= lastID) {
				continue
			}
		}
		list = append(list, *m.Clone())
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.After(list[j].CreatedAt)
		}
		return list[i].ID > list[j].ID
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

func (s *Store) DeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return errWriteFailed
	}
	delete(s.messages, id)
	return nil
}

func (s *Store) MutateMessage(ctx context.Context, id string, fn repository.MessageMutation) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	next := cur.Clone()
	events, err := fn(next)
	if err != nil {
		return nil, err
	}
	if s.FailWrites {
		return nil, errWriteFailed
	}
	now := s.now()
	next.Version = cur.Version + 1
	next.UpdatedAt = now
	s.messages[id] = next
	if err := s.appendOutbox(events, now); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

func (s *Store) ListPending(ctx context.Context, batchSize int) ([]model.InteractionOutbox, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var list []model.InteractionOutbox
	for _, ob := range s.outbox {
		if ob.Status == model.OutboxSent || ob.Retry >= model.OutboxMaxRetry {
			continue
		}
		list = append(list, ob)
		if batchSize > 0 && len(list) == batchSize {
			break
		}
	}
	return list, nil
}

func (s *Store) MarkSent(ctx context.Context, id string) error {
	return s.setOutboxStatus(id, model.OutboxSent)
}

func (s *Store) MarkFailed(ctx context.Context, id string) error {
	return s.setOutboxStatus(id, model.OutboxFailed)
}

func (s *Store) setOutboxStatus(id string, status int8) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.outbox {
		if s.outbox[i].ID == id {
			s.outbox[i].Status = status
			if status == model.OutboxFailed {
				s.outbox[i].Retry++
			}
			s.outbox[i].UpdatedAt = s.now()
			return nil
		}
	}
	return repository.ErrNotFound
}

// Outbox returns a copy of every outbox row, in insertion order.
func (s *Store) Outbox() []model.InteractionOutbox {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.InteractionOutbox(nil), s.outbox...)
}
