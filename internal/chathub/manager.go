package chathub

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"pairup/backend/internal/clock"
	"pairup/backend/internal/config"
	"pairup/backend/internal/localization"
	"pairup/backend/internal/metrics"
	"pairup/backend/internal/models"
	"pairup/backend/internal/storage"
)

const presenceTimeout = 2 * time.Second

// Options configures a ManagerService. Zero values take defaults.
type Options struct {
	QueueTimeout      time.Duration
	HistoryCap        int
	MaxMessageLen     int
	HeartbeatInterval time.Duration

	Presence  storage.Presence
	Metrics   *metrics.Metrics
	Localizer *localization.Localizer
	Clock     clock.Clock
	Logger    *slog.Logger
}

// Registration is a new connection together with its handshake data.
type Registration struct {
	Client Client
	Name   string
	Meta   models.Meta
	// ChatRoom, when set, is joined right after registration.
	ChatRoom string
}

// Inbound is one event read from a connection.
type Inbound struct {
	Client   Client
	Envelope models.Envelope
}

// ManagerService is the hub: it serializes connection events from every
// transport client and dispatches them to the registry, the matcher, the
// room ledger and the chat relay.
type ManagerService struct {
	Registry *Registry
	Rooms    *RoomLedger
	Chat     *ChatRelay
	Matcher  *MatcherService

	// Channels
	RegisterCh   chan Registration
	UnregisterCh chan Client
	IncomingCh   chan Inbound

	handlers      map[string]HandlerFunc
	presence      storage.Presence
	heartbeat     time.Duration
	heartbeatBusy atomic.Bool
	logger        *slog.Logger
	done          chan struct{}
}

// NewManagerService wires the core components together.
func NewManagerService(opts Options) *ManagerService {
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Localizer == nil {
		opts.Localizer = localization.Default()
	}
	if opts.Presence == nil {
		opts.Presence = storage.NopPresence{}
	}
	if opts.HeartbeatInterval <= 0 {
		opts.HeartbeatInterval = config.DefaultHeartbeatInterval
	}

	registry := NewRegistry(opts.Clock, opts.Metrics)
	rooms := NewRoomLedger(registry, opts.Clock, opts.Logger, opts.Metrics)
	chat := NewChatRelay(ChatOptions{
		HistoryCap:    opts.HistoryCap,
		MaxMessageLen: opts.MaxMessageLen,
		Clock:         opts.Clock,
		Logger:        opts.Logger,
		Metrics:       opts.Metrics,
		Localizer:     opts.Localizer,
	})
	matcher := NewMatcherService(registry, rooms, MatcherOptions{
		QueueTimeout: opts.QueueTimeout,
		Clock:        opts.Clock,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
		Localizer:    opts.Localizer,
		Notifier:     chat,
	})

	m := &ManagerService{
		Registry:     registry,
		Rooms:        rooms,
		Chat:         chat,
		Matcher:      matcher,
		RegisterCh:   make(chan Registration),
		UnregisterCh: make(chan Client),
		IncomingCh:   make(chan Inbound, 64),
		handlers:     make(map[string]HandlerFunc),
		presence:     opts.Presence,
		heartbeat:    opts.HeartbeatInterval,
		logger:       opts.Logger,
		done:         make(chan struct{}),
	}
	m.registerDefaultHandlers()
	return m
}

// On installs handler for event, replacing any previous one.
func (m *ManagerService) On(event string, handler HandlerFunc) {
	m.handlers[event] = handler
}

// Run processes connection events until ctx is canceled. On return every
// queue timer is stopped, every room torn down and every client closed.
func (m *ManagerService) Run(ctx context.Context) {
	ticker := time.NewTicker(m.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case reg := <-m.RegisterCh:
			if err := m.Connect(reg); err != nil {
				m.logger.Warn("registration rejected", "err", err)
				reg.Client.Close()
			}

		case client := <-m.UnregisterCh:
			m.Disconnect(client)

		case in := <-m.IncomingCh:
			if err := m.Dispatch(in.Client, in.Envelope); err != nil {
				m.logger.Debug("event dropped", "participant", in.Client.GetUserID(), "event", in.Envelope.Event, "err", err)
			}

		case <-ticker.C:
			m.heartbeatAsync(ctx)

		case <-ctx.Done():
			m.shutdown()
			return
		}
	}
}

// Register hands a new connection to the Run loop. It returns false when the
// hub has stopped.
func (m *ManagerService) Register(reg Registration) bool {
	select {
	case m.RegisterCh <- reg:
		return true
	case <-m.done:
		return false
	}
}

// Unregister hands a closed connection to the Run loop.
func (m *ManagerService) Unregister(c Client) {
	select {
	case m.UnregisterCh <- c:
	case <-m.done:
	}
}

// Deliver hands an inbound event to the Run loop.
func (m *ManagerService) Deliver(c Client, env models.Envelope) bool {
	select {
	case m.IncomingCh <- Inbound{Client: c, Envelope: env}:
		return true
	case <-m.done:
		return false
	}
}

// Connect registers a participant and puts it in the queue straight away.
func (m *ManagerService) Connect(reg Registration) error {
	p, err := m.Registry.Register(reg.Name, reg.Client, reg.Meta)
	if err != nil {
		return fmt.Errorf("register %s: %w", reg.Client.GetUserID(), err)
	}
	m.logger.Info("participant connected", "participant", p.ID, "name", p.Name)

	m.presenceAsync(func(ctx context.Context) error { return m.presence.Up(ctx, p.ID, p.Meta) })

	emitBestEffort(reg.Client, models.EventLobby, struct{}{})
	if reg.ChatRoom != "" {
		m.Chat.Join(reg.Client, reg.ChatRoom, p.Name)
	}
	if m.Matcher.Enqueue(p.ID) {
		m.Matcher.TryMatchAll()
	}
	return nil
}

// Disconnect ends every activity of client and forgets it. Unknown clients
// are ignored, so a repeated disconnect is harmless.
func (m *ManagerService) Disconnect(client Client) {
	id := client.GetUserID()
	if _, ok := m.Registry.Lookup(id); !ok {
		return
	}

	m.Chat.Disconnecting(client)
	m.Matcher.Disconnect(id)
	m.Registry.Unregister(id)
	m.presenceAsync(func(ctx context.Context) error { return m.presence.Down(ctx, id) })
	client.Close()
	m.logger.Info("participant disconnected", "participant", id)
}

// Dispatch runs the handler registered for env.Event.
func (m *ManagerService) Dispatch(client Client, env models.Envelope) error {
	handler, ok := m.handlers[env.Event]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownEvent, env.Event)
	}
	if _, ok := m.Registry.Lookup(client.GetUserID()); !ok {
		return nil
	}
	return handler(client, env.Data)
}

// OnlineCount returns the sidecar count, or the local registry size when the
// sidecar is disabled or failing.
func (m *ManagerService) OnlineCount(ctx context.Context) int64 {
	n, err := m.presence.Count(ctx)
	if err != nil {
		m.logger.Warn("presence count failed", "err", err)
		n = -1
	}
	if n < 0 {
		return int64(m.Registry.Count())
	}
	return n
}

func (m *ManagerService) shutdown() {
	close(m.done)
	m.Matcher.Close()
	for _, id := range m.Registry.IDs() {
		if client, ok := m.Registry.Client(id); ok {
			client.Close()
		}
	}
	m.logger.Info("hub stopped")
}

// presenceAsync runs a sidecar call off the event loop. Failures are logged
// and never affect matchmaking.
func (m *ManagerService) presenceAsync(call func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		defer cancel()
		if err := call(ctx); err != nil {
			m.logger.Warn("presence update failed", "err", err)
		}
	}()
}
