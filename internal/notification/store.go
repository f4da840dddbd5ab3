// Package notification keeps the session's notification list. Entries come
// from control requests and from terminal bell and OSC notify sequences.
package notification

import (
	"sync"
	"time"
)

// DefaultCapacity bounds the store; the oldest entries are dropped first.
const DefaultCapacity = 500

// Notification is one stored entry.
type Notification struct {
	ID          uint64 `json:"id"`
	Title       string `json:"title"`
	Body        string `json:"body"`
	Source      string `json:"source,omitempty"`
	CreatedAtMs int64  `json:"created_at_ms"`
	Read        bool   `json:"read"`
}

// Store is a concurrency-safe notification list.
type Store struct {
	mu       sync.Mutex
	nextID   uint64
	items    []Notification
	capacity int
	now      func() time.Time
	onPush   []func(Notification)
}

// NewStore creates a store. A capacity below one uses DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		capacity = DefaultCapacity
	}
	return &Store{nextID: 1, capacity: capacity, now: time.Now}
}

// OnPush registers a callback run after each push, outside the store lock.
func (s *Store) OnPush(fn func(Notification)) {
	s.mu.Lock()
	s.onPush = append(s.onPush, fn)
	s.mu.Unlock()
}

// Push adds an unread notification and returns it.
func (s *Store) Push(title, body, source string) Notification {
	s.mu.Lock()
	n := Notification{
		ID:          s.nextID,
		Title:       title,
		Body:        body,
		Source:      source,
		CreatedAtMs: s.now().UnixMilli(),
	}
	s.nextID++
	s.items = append(s.items, n)
	if over := len(s.items) - s.capacity; over > 0 {
		s.items = append(s.items[:0], s.items[over:]...)
	}
	handlers := append([]func(Notification){}, s.onPush...)
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(n)
	}
	return n
}

// List returns the notifications oldest first.
func (s *Store) List() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.items...)
}

// Clear removes every notification. Ids keep increasing.
func (s *Store) Clear() {
	s.mu.Lock()
	s.items = nil
	s.mu.Unlock()
}

// MarkAllRead marks every notification read.
func (s *Store) MarkAllRead() {
	s.mu.Lock()
	for i := range s.items {
		s.items[i].Read = true
	}
	s.mu.Unlock()
}

// UnreadCount returns the number of unread notifications.
func (s *Store) UnreadCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, item := range s.items {
		if !item.Read {
			n++
		}
	}
	return n
}

// Len returns the number of stored notifications.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
