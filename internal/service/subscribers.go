package service

import "sync"

// subscribers 保存按 owner 分发的回调，回调在锁外同步调用。
type subscribers[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(ownerID string, value T)
}

func (s *subscribers[T]) add(fn func(ownerID string, value T)) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fns == nil {
		s.fns = make(map[int]func(string, T))
	}
	id := s.next
	s.next++
	s.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.fns, id)
			s.mu.Unlock()
		})
	}
}

func (s *subscribers[T]) notify(ownerID string, value T) {
	s.mu.Lock()
	fns := make([]func(string, T), 0, len(s.fns))
	for _, fn := range s.fns {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(ownerID, value)
	}
}
