package chathub

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"pairup/backend/internal/clock"
	"pairup/backend/internal/config"
	"pairup/backend/internal/localization"
	"pairup/backend/internal/metrics"
	"pairup/backend/internal/models"
)

// RoomNotifier posts a system notice into the chat room of a match room.
type RoomNotifier interface {
	System(roomToken, text string)
}

// MatcherOptions configures a MatcherService. Zero values take defaults.
type MatcherOptions struct {
	QueueTimeout time.Duration
	Clock        clock.Clock
	Logger       *slog.Logger
	Metrics      *metrics.Metrics
	Localizer    *localization.Localizer
	Notifier     RoomNotifier
}

// MatcherService owns the waiting queue, the ban relation and the partner
// links. Every operation runs under one mutex together with the Room Ledger
// calls it makes, so queue, partner, room-assignment and room state change as
// one transaction.
type MatcherService struct {
	mu sync.Mutex

	registry *Registry
	rooms    *RoomLedger

	// queue holds ids in enqueue order; waiting holds their timeout state.
	queue   []string
	waiting map[string]*waitEntry

	bans      map[string]map[string]struct{}
	partnerOf map[string]string

	timerSeq uint64

	timeout   time.Duration
	clock     clock.Clock
	logger    *slog.Logger
	metrics   *metrics.Metrics
	localizer *localization.Localizer
	notifier  RoomNotifier
}

type waitEntry struct {
	enqueuedAt time.Time
	timer      clock.Timer
	// token identifies the live timer; a callback carrying an older token is stale.
	token uint64
}

// NewMatcherService creates a new Matcher.
func NewMatcherService(registry *Registry, rooms *RoomLedger, opts MatcherOptions) *MatcherService {
	if opts.QueueTimeout <= 0 {
		opts.QueueTimeout = config.DefaultQueueTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Localizer == nil {
		opts.Localizer = localization.Default()
	}
	return &MatcherService{
		registry:  registry,
		rooms:     rooms,
		waiting:   make(map[string]*waitEntry),
		bans:      make(map[string]map[string]struct{}),
		partnerOf: make(map[string]string),
		timeout:   opts.QueueTimeout,
		clock:     opts.Clock,
		logger:    opts.Logger,
		metrics:   opts.Metrics,
		localizer: opts.Localizer,
		notifier:  opts.Notifier,
	}
}

// Enqueue adds id to the waiting queue and arms its timeout. It is a no-op
// (returning false) when id is offline, already queued or currently paired.
func (m *MatcherService) Enqueue(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enqueueLocked(id)
}

// TryMatchAll commits compatible pairs until none is left and returns how
// many pairs were made.
func (m *MatcherService) TryMatchAll() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tryMatchAllLocked()
}

// Leave removes id from the queue and ends its pairing, if any. The partner
// is banned from rematching id, told why, and requeued. id itself is not
// requeued.
func (m *MatcherService) Leave(id, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(id, reason)
}

// Next skips the current partner: the pair is banned, the room torn down, and
// both sides requeued. An unpaired caller is simply (re)queued.
func (m *MatcherService) Next(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	partner, paired := m.partnerOf[id]
	if !paired {
		m.enqueueLocked(id)
		m.tryMatchAllLocked()
		return
	}

	roomID, _ := m.registry.GetRoom(id)
	if roomID != "" && m.notifier != nil {
		m.notifier.System(roomID, m.localizer.GetString(config.DefaultLocale, localization.KeyPeerLeft))
	}

	m.banLocked(id, partner)
	if roomID != "" {
		m.rooms.TeardownForParticipant(roomID, id, config.ReasonNext)
	}
	m.unlinkLocked(id, partner)
	m.metrics.IncPartnerLeft(config.ReasonNext)
	m.logger.Info("pair skipped", "participant", id, "partner", partner, "room", roomID)

	m.enqueueLocked(id)
	m.enqueueLocked(partner)
	m.tryMatchAllLocked()
}

// Disconnect is Leave with reason "disconnect" that also marks id offline.
func (m *MatcherService) Disconnect(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(id, config.ReasonDisconnect)
	m.registry.MarkOffline(id)
}

// Close cancels every queue timer and tears down every room.
func (m *MatcherService) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, id := range slices.Clone(m.queue) {
		m.dequeueLocked(id)
	}
	for _, roomID := range m.rooms.RoomIDs() {
		room, _ := m.rooms.Room(roomID)
		m.rooms.TeardownRoom(roomID, config.ReasonShutdown)
		m.unlinkLocked(room.User1ID, room.User2ID)
	}
}

func (m *MatcherService) enqueueLocked(id string) bool {
	if !m.registry.IsOnline(id) {
		return false
	}
	if _, queued := m.waiting[id]; queued {
		return false
	}
	if _, paired := m.partnerOf[id]; paired {
		return false
	}

	m.timerSeq++
	token := m.timerSeq
	entry := &waitEntry{enqueuedAt: m.clock.Now(), token: token}
	entry.timer = m.clock.AfterFunc(m.timeout, func() { m.handleQueueTimeout(id, token) })

	m.queue = append(m.queue, id)
	m.waiting[id] = entry
	m.metrics.SetQueueDepth(len(m.queue))
	m.logger.Debug("queued", "participant", id, "depth", len(m.queue))
	return true
}

// dequeueLocked removes id from the queue and cancels its timer.
func (m *MatcherService) dequeueLocked(id string) bool {
	entry, ok := m.waiting[id]
	if !ok {
		return false
	}
	entry.timer.Stop()
	delete(m.waiting, id)
	m.queue = slices.DeleteFunc(m.queue, func(q string) bool { return q == id })
	m.metrics.SetQueueDepth(len(m.queue))
	return true
}

func (m *MatcherService) handleQueueTimeout(id string, token uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.waiting[id]
	if !ok || entry.token != token {
		return
	}
	waited := m.clock.Now().Sub(entry.enqueuedAt)
	m.dequeueLocked(id)
	m.metrics.IncQueueTimeouts()

	p, ok := m.registry.Lookup(id)
	if !ok || !p.Online {
		return
	}
	m.logger.Info("queue timeout", "participant", id, "waited", waited)

	client, ok := m.registry.Client(id)
	if !ok {
		return
	}
	lang := p.Meta.Locale
	if lang == "" {
		lang = config.DefaultLocale
	}
	if err := client.Emit(models.EventQueueTimeout, models.QueueTimeoutPayload{
		Message:  m.localizer.GetString(lang, localization.KeyQueueTimeout),
		WaitTime: waited.Milliseconds(),
	}); err != nil {
		m.logger.Debug("emit failed", "participant", id, "event", models.EventQueueTimeout, "err", err)
	}
}

func (m *MatcherService) tryMatchAllLocked() int {
	matched := 0
	for {
		a, b, ok := m.findPairLocked()
		if !ok {
			return matched
		}
		m.commitPairLocked(a, b)
		matched++
	}
}

// candidate is a queued participant that is still connected.
type candidate struct {
	id   string
	meta models.Meta
}

// bucketLevels go from the narrowest attribute bucket to the global pool. A
// key of "" means the participant does not take part in that level.
var bucketLevels = []func(models.Meta) string{
	func(m models.Meta) string {
		if m.Language == "" || m.Industry == "" || m.SkillBucket == "" {
			return ""
		}
		return m.Language + "|" + m.Industry + "|" + m.SkillBucket
	},
	func(m models.Meta) string { return m.Language },
	func(m models.Meta) string { return m.Industry },
	func(models.Meta) string { return "*" },
}

// findPairLocked evicts disconnected ids, then returns the first compatible
// pair (i < j in queue order) at the narrowest bucket level that has one.
func (m *MatcherService) findPairLocked() (string, string, bool) {
	var live []candidate
	for _, id := range slices.Clone(m.queue) {
		p, ok := m.registry.Lookup(id)
		if !ok || !p.Online {
			m.dequeueLocked(id)
			m.logger.Debug("evicted stale queue entry", "participant", id)
			continue
		}
		live = append(live, candidate{id: id, meta: p.Meta})
	}
	if len(live) < 2 {
		return "", "", false
	}

	anyAttributes := slices.ContainsFunc(live, func(c candidate) bool { return c.meta.HasMatchingAttributes() })
	levels := bucketLevels
	if !anyAttributes {
		levels = bucketLevels[len(bucketLevels)-1:]
	}

	for _, key := range levels {
		for i := 0; i < len(live); i++ {
			ki := key(live[i].meta)
			if ki == "" {
				continue
			}
			for j := i + 1; j < len(live); j++ {
				if key(live[j].meta) != ki || m.bannedLocked(live[i].id, live[j].id) {
					continue
				}
				return live[i].id, live[j].id, true
			}
		}
	}
	return "", "", false
}

func (m *MatcherService) commitPairLocked(a, b string) {
	m.dequeueLocked(a)
	m.dequeueLocked(b)

	roomID := m.rooms.CreateRoom(a, b)
	m.partnerOf[a] = b
	m.partnerOf[b] = a
	m.registry.SetRoom(a, roomID)
	m.registry.SetRoom(b, roomID)

	m.metrics.IncMatches()
	m.logger.Info("match found", "user1", a, "user2", b, "room", roomID)
}

func (m *MatcherService) leaveLocked(id, reason string) {
	m.dequeueLocked(id)

	partner, paired := m.partnerOf[id]
	if roomID, ok := m.registry.GetRoom(id); ok {
		m.rooms.TeardownForParticipant(roomID, id, reason)
	}
	if !paired {
		m.registry.SetRoom(id, "")
		return
	}

	m.banLocked(id, partner)
	m.unlinkLocked(id, partner)
	m.metrics.IncPartnerLeft(reason)
	m.logger.Info("partner left", "participant", id, "partner", partner, "reason", reason)

	if m.enqueueLocked(partner) {
		m.tryMatchAllLocked()
	}
}

func (m *MatcherService) unlinkLocked(a, b string) {
	delete(m.partnerOf, a)
	delete(m.partnerOf, b)
	m.registry.SetRoom(a, "")
	m.registry.SetRoom(b, "")
}

func (m *MatcherService) banLocked(a, b string) {
	if m.bans[a] == nil {
		m.bans[a] = make(map[string]struct{})
	}
	if m.bans[b] == nil {
		m.bans[b] = make(map[string]struct{})
	}
	m.bans[a][b] = struct{}{}
	m.bans[b][a] = struct{}{}
}

func (m *MatcherService) bannedLocked(a, b string) bool {
	if _, ok := m.bans[a][b]; ok {
		return true
	}
	_, ok := m.bans[b][a]
	return ok
}

// IsBanned reports whether a and b may never be rematched.
func (m *MatcherService) IsBanned(a, b string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bannedLocked(a, b)
}

// State returns the matchmaking state of id.
func (m *MatcherService) State(id string) models.ParticipantState {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.waiting[id]; ok {
		return models.StateQueued
	}
	if _, ok := m.partnerOf[id]; ok {
		return models.StatePaired
	}
	return models.StateUnqueued
}

// Partner returns the current partner of id.
func (m *MatcherService) Partner(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.partnerOf[id]
	return p, ok
}

// Queue returns the queued ids in enqueue order.
func (m *MatcherService) Queue() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.queue)
}

// QueueLen returns the queue depth.
func (m *MatcherService) QueueLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// CheckInvariants verifies that queue, partner links, room assignments, the
// room ledger and bans agree with each other. Any violation is a bug.
func (m *MatcherService) CheckInvariants() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error

	seen := make(map[string]bool, len(m.queue))
	for _, id := range m.queue {
		if seen[id] {
			errs = append(errs, fmt.Errorf("%s queued twice", id))
		}
		seen[id] = true
		if _, ok := m.waiting[id]; !ok {
			errs = append(errs, fmt.Errorf("%s queued without timeout", id))
		}
		if _, ok := m.partnerOf[id]; ok {
			errs = append(errs, fmt.Errorf("%s both queued and paired", id))
		}
	}
	if len(m.waiting) != len(seen) {
		errs = append(errs, fmt.Errorf("%d timeouts for %d queued ids", len(m.waiting), len(seen)))
	}

	for a, b := range m.partnerOf {
		if m.partnerOf[b] != a {
			errs = append(errs, fmt.Errorf("partner link %s->%s is not symmetric", a, b))
			continue
		}
		roomA, okA := m.registry.GetRoom(a)
		roomB, okB := m.registry.GetRoom(b)
		if m.registry.IsOnline(a) && m.registry.IsOnline(b) && (!okA || !okB || roomA != roomB) {
			errs = append(errs, fmt.Errorf("partners %s and %s in rooms %q and %q", a, b, roomA, roomB))
			continue
		}
		if room, ok := m.rooms.Room(roomA); okA && (!ok || !room.Has(a) || !room.Has(b)) {
			errs = append(errs, fmt.Errorf("room %s does not hold partners %s and %s", roomA, a, b))
		}
	}

	for _, roomID := range m.rooms.RoomIDs() {
		room, _ := m.rooms.Room(roomID)
		if m.partnerOf[room.User1ID] != room.User2ID {
			errs = append(errs, fmt.Errorf("room %s members %s and %s are not partners", roomID, room.User1ID, room.User2ID))
		}
	}

	for a, banned := range m.bans {
		for b := range banned {
			if _, ok := m.bans[b][a]; !ok {
				errs = append(errs, fmt.Errorf("ban %s->%s is not symmetric", a, b))
			}
		}
	}

	return errors.Join(errs...)
}
