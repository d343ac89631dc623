package memory

import (
	"context"
	"sync"

	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/repository"
)

// Store is an in-memory broadcast store. It backs tests and dev runs that
// want lifecycle semantics without a BoltDB file or a Redis instance.
type Store struct {
	mu     sync.Mutex
	data   map[string][]byte
	subs   map[int]repository.ChangeHandler
	nextID int
}

func New() *Store {
	return &Store{
		data: make(map[string][]byte),
		subs: make(map[int]repository.ChangeHandler),
	}
}

func (s *Store) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.data[key]
	if !ok {
		return nil, domain.ErrKeyNotFound
	}
	return append([]byte(nil), value...), nil
}

func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.data[key] = append([]byte(nil), value...)
	handlers := s.handlers()
	s.mu.Unlock()

	for _, h := range handlers {
		h(repository.Change{Key: key, Value: append([]byte(nil), value...)})
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.data, key)
	handlers := s.handlers()
	s.mu.Unlock()

	for _, h := range handlers {
		h(repository.Change{Key: key})
	}
	return nil
}

func (s *Store) Subscribe(handler repository.ChangeHandler) func() {
	if handler == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = handler
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Store) Len() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data), nil
}

func (s *Store) Close() error {
	return nil
}

// handlers must be called with s.mu held.
func (s *Store) handlers() []repository.ChangeHandler {
	out := make([]repository.ChangeHandler, 0, len(s.subs))
	for _, h := range s.subs {
		out = append(out, h)
	}
	return out
}

var _ repository.KeyValueBroadcastStore = (*Store)(nil)
