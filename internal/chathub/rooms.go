package chathub

import (
	"encoding/json"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"pairup/backend/internal/clock"
	"pairup/backend/internal/metrics"
	"pairup/backend/internal/models"
)

// Directory resolves participant ids to their connections.
type Directory interface {
	Client(id string) (Client, bool)
}

// RoomLedger maps room ids to the two participants occupying them and relays
// signaling payloads between the members. Lifecycle calls (CreateRoom and the
// teardowns) are made by the MatcherService inside its critical section.
type RoomLedger struct {
	mu     sync.RWMutex
	rooms  map[string]models.ChatRoom
	lastID uint64

	dir     Directory
	clock   clock.Clock
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewRoomLedger creates an empty ledger.
func NewRoomLedger(dir Directory, c clock.Clock, logger *slog.Logger, m *metrics.Metrics) *RoomLedger {
	if c == nil {
		c = clock.Real()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RoomLedger{
		rooms:   make(map[string]models.ChatRoom),
		dir:     dir,
		clock:   c,
		logger:  logger,
		metrics: m,
	}
}

// CreateRoom allocates a fresh room for a and b and tells both members to
// begin signaling. Both sides are asked to send an offer; whichever offer is
// processed first makes that side the offerer.
func (l *RoomLedger) CreateRoom(a, b string) string {
	l.mu.Lock()
	l.lastID++
	roomID := strconv.FormatUint(l.lastID, 10)
	l.rooms[roomID] = models.ChatRoom{
		RoomID:    roomID,
		User1ID:   a,
		User2ID:   b,
		StartedAt: l.clock.Now(),
	}
	l.metrics.SetActiveRooms(len(l.rooms))
	l.mu.Unlock()

	payload := models.RoomPayload{RoomID: roomID}
	l.emitTo(a, models.EventSendOffer, payload)
	l.emitTo(b, models.EventSendOffer, payload)

	l.logger.Info("room created", "room", roomID, "user1", a, "user2", b)
	return roomID
}

// Room returns a snapshot of the room.
func (l *RoomLedger) Room(roomID string) (models.ChatRoom, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	room, ok := l.rooms[roomID]
	return room, ok
}

// Len returns the number of live rooms.
func (l *RoomLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.rooms)
}

// RoomIDs returns the live room ids in issue order.
func (l *RoomLedger) RoomIDs() []string {
	l.mu.RLock()
	ids := make([]string, 0, len(l.rooms))
	for id := range l.rooms {
		ids = append(ids, id)
	}
	l.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.ParseUint(ids[i], 10, 64)
		b, _ := strconv.ParseUint(ids[j], 10, 64)
		return a < b
	})
	return ids
}

// RelayOffer forwards an offer verbatim to the other member.
func (l *RoomLedger) RelayOffer(roomID, senderID string, sdp json.RawMessage) bool {
	return l.RelayToPeer(roomID, senderID, models.EventOffer, models.SDPPayload{SDP: sdp, RoomID: roomID})
}

// RelayAnswer forwards an answer verbatim to the other member.
func (l *RoomLedger) RelayAnswer(roomID, senderID string, sdp json.RawMessage) bool {
	return l.RelayToPeer(roomID, senderID, models.EventAnswer, models.SDPPayload{SDP: sdp, RoomID: roomID})
}

// RelayICECandidate forwards a candidate verbatim to the other member.
func (l *RoomLedger) RelayICECandidate(roomID, senderID string, candidate json.RawMessage, role string) bool {
	return l.RelayToPeer(roomID, senderID, models.EventICECandidate, models.ICECandidatePayload{
		Candidate: candidate,
		RoomID:    roomID,
		Role:      role,
		Type:      role,
	})
}

// RelayToPeer emits event to the member of roomID that is not senderID. It is
// a no-op when the room is gone or the sender is not a member.
func (l *RoomLedger) RelayToPeer(roomID, senderID, event string, payload any) bool {
	l.mu.RLock()
	room, ok := l.rooms[roomID]
	l.mu.RUnlock()
	if !ok {
		return false
	}

	other, ok := room.Other(senderID)
	if !ok {
		return false
	}
	l.emitTo(other, event, payload)
	return true
}

// TeardownRoom removes the room and notifies both members, each best-effort.
func (l *RoomLedger) TeardownRoom(roomID, reason string) bool {
	room, ok := l.remove(roomID)
	if !ok {
		return false
	}

	payload := models.PartnerLeftPayload{Reason: reason}
	l.emitTo(room.User1ID, models.EventPartnerLeft, payload)
	l.emitTo(room.User2ID, models.EventPartnerLeft, payload)

	l.logger.Info("room torn down", "room", roomID, "reason", reason)
	return true
}

// TeardownForParticipant removes the room on behalf of participantID and
// notifies only the other member.
func (l *RoomLedger) TeardownForParticipant(roomID, participantID, reason string) bool {
	l.mu.Lock()
	room, ok := l.rooms[roomID]
	if !ok || !room.Has(participantID) {
		l.mu.Unlock()
		return false
	}
	delete(l.rooms, roomID)
	l.metrics.SetActiveRooms(len(l.rooms))
	l.mu.Unlock()

	other, _ := room.Other(participantID)
	l.emitTo(other, models.EventPartnerLeft, models.PartnerLeftPayload{Reason: reason})

	l.logger.Info("room torn down", "room", roomID, "by", participantID, "reason", reason)
	return true
}

func (l *RoomLedger) remove(roomID string) (models.ChatRoom, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	room, ok := l.rooms[roomID]
	if ok {
		delete(l.rooms, roomID)
		l.metrics.SetActiveRooms(len(l.rooms))
	}
	return room, ok
}

func (l *RoomLedger) emitTo(id, event string, payload any) {
	client, ok := l.dir.Client(id)
	if !ok {
		return
	}
	if err := client.Emit(event, payload); err != nil {
		l.logger.Debug("emit failed", "participant", id, "event", event, "err", err)
	}
}
