package event

import "sync"

type subscriber struct {
	periodID string
	ch       chan Event
	mu       sync.Mutex
	closed   bool
}

// trySend 非阻塞投递；通道已关闭或缓冲已满时返回 false
func (s *subscriber) trySend(e Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- e:
		return true
	default:
		return false
	}
}

func (s *subscriber) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}
