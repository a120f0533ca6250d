package chathub

import (
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"pairup/backend/internal/clock"
	"pairup/backend/internal/config"
	"pairup/backend/internal/localization"
	"pairup/backend/internal/metrics"
	"pairup/backend/internal/models"
)

// ChatOptions configures a ChatRelay. Zero values take defaults.
type ChatOptions struct {
	HistoryCap    int
	MaxMessageLen int
	// Locale selects the language of join/leave notices.
	Locale    string
	Clock     clock.Clock
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Localizer *localization.Localizer
}

// ChatRelay broadcasts chat messages, typing indicators and join/leave notices
// to the members of a chat room and keeps a bounded history per room.
// Membership and history are owned by the relay alone.
type ChatRelay struct {
	mu    sync.Mutex
	rooms map[string]*chatRoom
	// joined lists the rooms each connection belongs to.
	joined map[string]map[string]struct{}
	// left marks rooms a connection explicitly left, so that a later
	// disconnect does not announce it twice.
	left map[string]map[string]struct{}

	historyCap    int
	maxMessageLen int
	locale        string
	clock         clock.Clock
	logger        *slog.Logger
	metrics       *metrics.Metrics
	localizer     *localization.Localizer
}

type chatMember struct {
	client Client
	name   string
}

type chatRoom struct {
	members map[string]chatMember
	// order keeps broadcast order stable.
	order   []string
	history *historyRing
}

// NewChatRelay creates an empty relay.
func NewChatRelay(opts ChatOptions) *ChatRelay {
	if opts.HistoryCap <= 0 {
		opts.HistoryCap = config.DefaultHistoryCap
	}
	if opts.MaxMessageLen <= 0 {
		opts.MaxMessageLen = config.DefaultMaxMessageLen
	}
	if opts.Locale == "" {
		opts.Locale = config.DefaultLocale
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
	return &ChatRelay{
		rooms:         make(map[string]*chatRoom),
		joined:        make(map[string]map[string]struct{}),
		left:          make(map[string]map[string]struct{}),
		historyCap:    opts.HistoryCap,
		maxMessageLen: opts.MaxMessageLen,
		locale:        opts.Locale,
		clock:         opts.Clock,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		localizer:     opts.Localizer,
	}
}

// Join adds client to the room. The first join of a connection announces it
// to the whole room and then replays the history to the joiner alone.
// Joining a room the connection is already in does nothing.
func (r *ChatRelay) Join(client Client, roomToken, name string) bool {
	roomToken = strings.TrimSpace(roomToken)
	if client == nil || roomToken == "" {
		return false
	}
	id := client.GetUserID()
	name = r.displayName(name, "")

	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomToken]
	if room == nil {
		room = &chatRoom{members: make(map[string]chatMember), history: newHistoryRing(r.historyCap)}
		r.rooms[roomToken] = room
	}
	if _, ok := room.members[id]; ok {
		return false
	}

	room.members[id] = chatMember{client: client, name: name}
	room.order = append(room.order, id)
	addTo(r.joined, id, roomToken)
	removeFrom(r.left, id, roomToken)

	// The replay is taken before the notice so the joiner sees it only live.
	replay := room.history.Entries()

	text := r.localizer.Format(r.locale, localization.KeyChatJoined, name)
	r.systemLocked(roomToken, room, text)

	emitBestEffort(client, models.EventChatHistory, models.ChatHistoryPayload{
		RoomID:   roomToken,
		Messages: replay,
	})
	r.logger.Debug("chat joined", "participant", id, "room", roomToken)
	return true
}

// Message broadcasts text to the whole room, sender included, and stores it.
// Empty text, a missing room or a sender outside the room drops the message;
// text longer than the configured maximum is cut to that many characters.
func (r *ChatRelay) Message(roomToken, text, senderName, senderID string, ts *int64) bool {
	roomToken = strings.TrimSpace(roomToken)
	text = strings.TrimSpace(text)
	if roomToken == "" || text == "" {
		return false
	}
	text = truncateRunes(text, r.maxMessageLen)

	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomToken]
	if room == nil {
		return false
	}
	member, ok := room.members[senderID]
	if !ok {
		return false
	}
	from := r.displayName(senderName, member.name)

	sent := r.clock.Now().UnixMilli()
	if ts != nil && *ts > 0 {
		sent = *ts
	}

	r.broadcastLocked(room, "", models.EventChatMessage, models.ChatMessagePayload{
		RoomID:   roomToken,
		Text:     text,
		From:     from,
		SenderID: senderID,
		TS:       sent,
	})
	room.history.Push(models.ChatHistory{
		Kind:     models.KindUser,
		Text:     text,
		From:     from,
		SenderID: senderID,
		TS:       sent,
	})
	r.metrics.IncChatMessages()
	return true
}

// Typing tells everyone in the room except the sender. Only members may
// signal typing. Nothing is stored.
func (r *ChatRelay) Typing(client Client, roomToken, name string, typing bool) bool {
	roomToken = strings.TrimSpace(roomToken)
	if client == nil || roomToken == "" {
		return false
	}
	id := client.GetUserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomToken]
	if room == nil {
		return false
	}
	member, ok := room.members[id]
	if !ok {
		return false
	}
	r.broadcastLocked(room, id, models.EventChatTyping, models.ChatTypingPayload{
		RoomID: roomToken,
		From:   r.displayName(name, member.name),
		Typing: typing,
	})
	return true
}

// Leave announces the departure to the whole room, the leaver included, and
// then removes the membership. A connection that is not a member is ignored.
func (r *ChatRelay) Leave(client Client, roomToken, name string) bool {
	roomToken = strings.TrimSpace(roomToken)
	if client == nil || roomToken == "" {
		return false
	}
	id := client.GetUserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	room := r.rooms[roomToken]
	if room == nil {
		return false
	}
	member, ok := room.members[id]
	if !ok {
		return false
	}

	r.announceLeftLocked(roomToken, room, r.displayName(name, member.name))
	r.removeMemberLocked(roomToken, room, id)
	addTo(r.left, id, roomToken)
	r.logger.Debug("chat left", "participant", id, "room", roomToken)
	return true
}

// Disconnecting announces the departure of client in every room it still
// belongs to and has not explicitly left, once per room.
func (r *ChatRelay) Disconnecting(client Client) int {
	if client == nil {
		return 0
	}
	id := client.GetUserID()

	r.mu.Lock()
	defer r.mu.Unlock()

	announced := 0
	for roomToken := range r.joined[id] {
		if _, explicit := r.left[id][roomToken]; explicit {
			continue
		}
		room := r.rooms[roomToken]
		if room == nil {
			continue
		}
		member, ok := room.members[id]
		if !ok {
			continue
		}
		r.announceLeftLocked(roomToken, room, r.displayName("", member.name))
		r.removeMemberLocked(roomToken, room, id)
		announced++
	}
	delete(r.joined, id)
	delete(r.left, id)
	return announced
}

// System posts a server notice into the room and its history. Rooms without
// members are ignored.
func (r *ChatRelay) System(roomToken, text string) {
	text = strings.TrimSpace(text)
	if roomToken == "" || text == "" {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if room := r.rooms[roomToken]; room != nil {
		r.systemLocked(roomToken, room, text)
	}
}

// History returns a copy of the room history, oldest first.
func (r *ChatRelay) History(roomToken string) []models.ChatHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[roomToken]
	if room == nil {
		return nil
	}
	return room.history.Entries()
}

// Members returns the connection ids in the room in join order.
func (r *ChatRelay) Members(roomToken string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	room := r.rooms[roomToken]
	if room == nil {
		return nil
	}
	return append([]string(nil), room.order...)
}

func (r *ChatRelay) announceLeftLocked(roomToken string, room *chatRoom, name string) {
	text := r.localizer.Format(r.locale, localization.KeyChatLeft, name)
	r.systemLocked(roomToken, room, text)
}

func (r *ChatRelay) systemLocked(roomToken string, room *chatRoom, text string) {
	now := r.clock.Now().UnixMilli()
	r.broadcastLocked(room, "", models.EventChatSystem, models.ChatSystemPayload{
		RoomID: roomToken,
		Text:   text,
		TS:     now,
	})
	room.history.Push(models.ChatHistory{Kind: models.KindSystem, Text: text, TS: now})
}

// broadcastLocked emits to every member except excludeID. A failed delivery
// never stops the others.
func (r *ChatRelay) broadcastLocked(room *chatRoom, excludeID, event string, payload any) {
	for _, id := range room.order {
		if id == excludeID {
			continue
		}
		if err := room.members[id].client.Emit(event, payload); err != nil {
			r.logger.Debug("emit failed", "participant", id, "event", event, "err", err)
		}
	}
}

func (r *ChatRelay) removeMemberLocked(roomToken string, room *chatRoom, id string) {
	delete(room.members, id)
	for i, m := range room.order {
		if m == id {
			room.order = append(room.order[:i], room.order[i+1:]...)
			break
		}
	}
	removeFrom(r.joined, id, roomToken)
	if len(room.members) == 0 {
		delete(r.rooms, roomToken)
	}
}

// displayName picks the given name, then the remembered one, then a
// localized placeholder. Names are capped at config.MaxDisplayNameLen.
func (r *ChatRelay) displayName(name, remembered string) string {
	if name = strings.TrimSpace(name); name != "" {
		return truncateRunes(name, config.MaxDisplayNameLen)
	}
	if remembered != "" {
		return remembered
	}
	return r.localizer.GetString(r.locale, localization.KeyUnknownUser)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func addTo(set map[string]map[string]struct{}, id, room string) {
	if set[id] == nil {
		set[id] = make(map[string]struct{})
	}
	set[id][room] = struct{}{}
}

func removeFrom(set map[string]map[string]struct{}, id, room string) {
	delete(set[id], room)
	if len(set[id]) == 0 {
		delete(set, id)
	}
}

// historyRing is a fixed-capacity FIFO; pushing onto a full ring evicts the
// oldest entry.
type historyRing struct {
	buf   []models.ChatHistory
	start int
	size  int
}

func newHistoryRing(capacity int) *historyRing {
	return &historyRing{buf: make([]models.ChatHistory, capacity)}
}

func (h *historyRing) Push(e models.ChatHistory) {
	if h.size < len(h.buf) {
		h.buf[(h.start+h.size)%len(h.buf)] = e
		h.size++
		return
	}
	h.buf[h.start] = e
	h.start = (h.start + 1) % len(h.buf)
}

// Entries returns the entries oldest first.
func (h *historyRing) Entries() []models.ChatHistory {
	out := make([]models.ChatHistory, h.size)
	for i := 0; i < h.size; i++ {
		out[i] = h.buf[(h.start+i)%len(h.buf)]
	}
	return out
}
