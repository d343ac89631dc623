package redis

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	redislib "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/adms/sessiond/domain"
	"github.com/adms/sessiond/repository"
)

const changeChannel = "sessiond:changes"

// envelope is the Pub/Sub wire format for change notifications. Origin lets
// a subscriber skip its own writes so only external changes are delivered.
type envelope struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
	Value  []byte `json:"value,omitempty"`
}

// Store is the Redis-backed broadcast store: plain SET/GET for durability
// and a Pub/Sub channel as the cross-instance notification wire. It is the
// store of choice when several sessiond instances serve the same user
// origin and a logout in one must be observed by the others.
type Store struct {
	client *redislib.Client
	prefix string
	origin string
	logger *zap.Logger

	mu     sync.Mutex
	subs   map[int]repository.ChangeHandler
	nextID int

	pubsub *redislib.PubSub
	cancel context.CancelFunc
	done   chan struct{}
}

// NewStore creates the store and starts its notification listener.
func NewStore(client *redislib.Client, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())

	s := &Store{
		client: client,
		prefix: "sessiond:kv:",
		origin: uuid.NewString(),
		logger: logger,
		subs:   make(map[int]repository.ChangeHandler),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	s.pubsub = client.Subscribe(ctx, changeChannel)
	if _, err := s.pubsub.Receive(ctx); err != nil {
		cancel()
		return nil, err
	}
	go s.listen()

	return s, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	result, err := s.client.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if err == redislib.Nil {
			return nil, domain.ErrKeyNotFound
		}
		return nil, err
	}
	return result, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		return err
	}
	return s.publish(ctx, key, value)
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.prefix+key).Err(); err != nil {
		return err
	}
	return s.publish(ctx, key, nil)
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

// Close stops the listener. The Redis client itself stays open; its owner
// closes it during shutdown.
func (s *Store) Close() error {
	s.cancel()
	err := s.pubsub.Close()
	<-s.done
	return err
}

func (s *Store) publish(ctx context.Context, key string, value []byte) error {
	payload, err := json.Marshal(envelope{Origin: s.origin, Key: key, Value: value})
	if err != nil {
		return err
	}
	return s.client.Publish(ctx, changeChannel, payload).Err()
}

func (s *Store) listen() {
	defer close(s.done)
	for msg := range s.pubsub.Channel() {
		var env envelope
		if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
			s.logger.Warn("discarding malformed change notification", zap.Error(err))
			continue
		}
		if env.Origin == s.origin {
			continue
		}

		s.mu.Lock()
		handlers := make([]repository.ChangeHandler, 0, len(s.subs))
		for _, h := range s.subs {
			handlers = append(handlers, h)
		}
		s.mu.Unlock()

		for _, h := range handlers {
			h(repository.Change{Key: env.Key, Value: env.Value})
		}
	}
}

var _ repository.KeyValueBroadcastStore = (*Store)(nil)
