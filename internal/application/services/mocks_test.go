package services_test

import (
	"context"
	"path"
	"sync"

	"github.com/zatekoja/coveragecompare/internal/domain/entities"
	"github.com/zatekoja/coveragecompare/internal/domain/providers"
)

// MockCacheProvider for testing
type MockCacheProvider struct {
	mu      sync.RWMutex
	data    map[string][]byte
	deleted []string
}

func NewMockCacheProvider() *MockCacheProvider {
	return &MockCacheProvider{
		data:    make(map[string][]byte),
		deleted: make([]string, 0),
	}
}

func (m *MockCacheProvider) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if val, ok := m.data[key]; ok {
		return val, nil
	}
	return nil, providers.ErrCacheMiss
}

func (m *MockCacheProvider) Set(ctx context.Context, key string, value []byte, expirationSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MockCacheProvider) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	m.deleted = append(m.deleted, key)
	return nil
}

func (m *MockCacheProvider) DeletePattern(ctx context.Context, pattern string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.data, key)
			m.deleted = append(m.deleted, key)
		}
	}
	return nil
}

func (m *MockCacheProvider) Exists(ctx context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok, nil
}

func (m *MockCacheProvider) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys
}

func (m *MockCacheProvider) DeletedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.deleted)
}

// MockEventBus for testing
type MockEventBus struct {
	mu          sync.Mutex
	subscribers map[string][]chan *entities.CanonEvent
	published   map[string][]*entities.CanonEvent
}

func NewMockEventBus() *MockEventBus {
	return &MockEventBus{
		subscribers: make(map[string][]chan *entities.CanonEvent),
		published:   make(map[string][]*entities.CanonEvent),
	}
}

func (m *MockEventBus) Publish(ctx context.Context, channel string, event *entities.CanonEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[channel] = append(m.published[channel], event)
	for _, ch := range m.subscribers[channel] {
		select {
		case ch <- event:
		default:
		}
	}
	return nil
}

func (m *MockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.CanonEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan *entities.CanonEvent, 10)
	m.subscribers[channel] = append(m.subscribers[channel], ch)
	return ch, nil
}

func (m *MockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subscribers[channel] {
		close(ch)
	}
	delete(m.subscribers, channel)
	return nil
}

func (m *MockEventBus) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, channels := range m.subscribers {
		for _, ch := range channels {
			close(ch)
		}
	}
	m.subscribers = make(map[string][]chan *entities.CanonEvent)
	return nil
}

func (m *MockEventBus) Published(channel string) []*entities.CanonEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*entities.CanonEvent(nil), m.published[channel]...)
}

func (m *MockEventBus) SubscriberCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, chs := range m.subscribers {
		n += len(chs)
	}
	return n
}
