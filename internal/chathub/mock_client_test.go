package chathub_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"pairup/backend/internal/chathub"
	"pairup/backend/internal/models"
)

type emitted struct {
	Event   string
	Payload any
}

// MockClient records every emitted event in order.
type MockClient struct {
	userID string

	mu     sync.Mutex
	events []emitted
	closed bool
	// broken makes every Emit fail like a dropped socket.
	broken bool
}

func newMockClient(userID string) *MockClient {
	return &MockClient{userID: userID}
}

func (c *MockClient) GetUserID() string {
	return c.userID
}

func (c *MockClient) Emit(event string, payload any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.broken {
		return chathub.ErrSendBufferFull
	}
	c.events = append(c.events, emitted{Event: event, Payload: payload})
	return nil
}

func (c *MockClient) Run() {
	// Not needed for testing
}

func (c *MockClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *MockClient) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Named returns the payloads of every event called name.
func (c *MockClient) Named(name string) []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []any
	for _, e := range c.events {
		if e.Event == name {
			out = append(out, e.Payload)
		}
	}
	return out
}

// EventNames returns the emitted event names in order.
func (c *MockClient) EventNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Event)
	}
	return out
}

func (c *MockClient) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = nil
}

// MockPresence is a testify mock of storage.Presence. Calls made from the
// hub's background goroutines are also counted for polling assertions.
type MockPresence struct {
	mock.Mock

	countMu sync.Mutex
	counts  map[string]int
}

func (m *MockPresence) record(method string) {
	m.countMu.Lock()
	defer m.countMu.Unlock()
	if m.counts == nil {
		m.counts = make(map[string]int)
	}
	m.counts[method]++
}

func (m *MockPresence) callCount(method string) int {
	m.countMu.Lock()
	defer m.countMu.Unlock()
	return m.counts[method]
}

func (m *MockPresence) Up(ctx context.Context, id string, meta models.Meta) error {
	m.record("Up")
	args := m.Called(ctx, id, meta)
	return args.Error(0)
}

func (m *MockPresence) Heartbeat(ctx context.Context, ids []string) error {
	m.record("Heartbeat")
	args := m.Called(ctx, ids)
	return args.Error(0)
}

func (m *MockPresence) Down(ctx context.Context, id string) error {
	m.record("Down")
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPresence) Count(ctx context.Context) (int64, error) {
	m.record("Count")
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockPresence) Online(ctx context.Context) ([]string, error) {
	m.record("Online")
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}
