package chathub

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"pairup/backend/internal/clock"
	"pairup/backend/internal/config"
	"pairup/backend/internal/metrics"
	"pairup/backend/internal/models"
)

// Registry tracks every connected participant. It never notifies anyone;
// lookups on unknown ids report not-found because disconnect races are routine.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*registryEntry

	clock   clock.Clock
	metrics *metrics.Metrics
}

type registryEntry struct {
	participant models.Participant
	client      Client
}

// NewRegistry creates an empty registry.
func NewRegistry(c clock.Clock, m *metrics.Metrics) *Registry {
	if c == nil {
		c = clock.Real()
	}
	return &Registry{
		entries: make(map[string]*registryEntry),
		clock:   c,
		metrics: m,
	}
}

// Register adds the connection under its own id. An empty name becomes the
// default display name and long names are cut to config.MaxDisplayNameLen.
func (r *Registry) Register(name string, client Client, meta models.Meta) (models.Participant, error) {
	id := client.GetUserID()
	if id == "" {
		return models.Participant{}, fmt.Errorf("%w: empty connection id", ErrInvalidPayload)
	}

	name = truncateRunes(strings.TrimSpace(name), config.MaxDisplayNameLen)
	if name == "" {
		name = config.DefaultDisplayName
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; ok {
		return models.Participant{}, fmt.Errorf("%w: %s", ErrDuplicateClient, id)
	}

	p := models.Participant{
		ID:       id,
		Name:     name,
		Meta:     meta.Normalize(),
		JoinedAt: r.clock.Now(),
		Online:   true,
	}
	r.entries[id] = &registryEntry{participant: p, client: client}
	r.metrics.SetConnected(len(r.entries))
	return p, nil
}

// Unregister removes the participant. Unknown ids are ignored.
func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
	r.metrics.SetConnected(len(r.entries))
}

// Lookup returns a snapshot of the participant.
func (r *Registry) Lookup(id string) (models.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return models.Participant{}, false
	}
	return e.participant, true
}

// Client returns the connection handle of a participant.
func (r *Registry) Client(id string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	return e.client, true
}

// IsOnline reports whether the participant is registered and not marked offline.
func (r *Registry) IsOnline(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return ok && e.participant.Online
}

// MarkOffline flags a participant that is disconnecting but not yet removed.
func (r *Registry) MarkOffline(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.participant.Online = false
	}
}

// SetRoom records the current match room; an empty roomID clears it.
func (r *Registry) SetRoom(id, roomID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[id]; ok {
		e.participant.RoomID = roomID
	}
}

// GetRoom returns the current match room, if any.
func (r *Registry) GetRoom(id string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok || e.participant.RoomID == "" {
		return "", false
	}
	return e.participant.RoomID, true
}

// Count returns the number of registered participants.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// IDs returns the registered ids in sorted order.
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}
