package chathub_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairup/backend/internal/chathub"
	"pairup/backend/internal/models"
)

func setupLedger(t *testing.T, ids ...string) (*chathub.RoomLedger, map[string]*MockClient) {
	t.Helper()
	reg := chathub.NewRegistry(nil, nil)
	clients := make(map[string]*MockClient, len(ids))
	for _, id := range ids {
		c := newMockClient(id)
		_, err := reg.Register(id, c, models.Meta{})
		require.NoError(t, err)
		clients[id] = c
	}
	return chathub.NewRoomLedger(reg, nil, nil, nil), clients
}

func TestRoomLedger_CreateRoomNotifiesBoth(t *testing.T) {
	ledger, clients := setupLedger(t, "a", "b")

	roomID := ledger.CreateRoom("a", "b")

	room, ok := ledger.Room(roomID)
	require.True(t, ok)
	assert.True(t, room.Has("a"))
	assert.True(t, room.Has("b"))

	for _, id := range []string{"a", "b"} {
		offers := clients[id].Named(models.EventSendOffer)
		require.Len(t, offers, 1, id)
		assert.Equal(t, models.RoomPayload{RoomID: roomID}, offers[0])
	}
}

func TestRoomLedger_IDsAreNeverReused(t *testing.T) {
	ledger, _ := setupLedger(t, "a", "b")

	first := ledger.CreateRoom("a", "b")
	require.True(t, ledger.TeardownRoom(first, "test"))
	second := ledger.CreateRoom("a", "b")

	assert.NotEqual(t, first, second)
	assert.Equal(t, []string{second}, ledger.RoomIDs())
}

func TestRoomLedger_RelayGoesToOtherMemberOnly(t *testing.T) {
	ledger, clients := setupLedger(t, "a", "b", "c")
	roomID := ledger.CreateRoom("a", "b")
	sdp := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)

	assert.True(t, ledger.RelayOffer(roomID, "a", sdp))
	assert.True(t, ledger.RelayAnswer(roomID, "b", sdp))
	assert.True(t, ledger.RelayICECandidate(roomID, "a", json.RawMessage(`{"candidate":"x"}`), "caller"))

	assert.Equal(t, []any{models.SDPPayload{SDP: sdp, RoomID: roomID}}, clients["b"].Named(models.EventOffer))
	assert.Equal(t, []any{models.SDPPayload{SDP: sdp, RoomID: roomID}}, clients["a"].Named(models.EventAnswer))
	assert.Empty(t, clients["a"].Named(models.EventOffer))

	ice := clients["b"].Named(models.EventICECandidate)
	require.Len(t, ice, 1)
	payload := ice[0].(models.ICECandidatePayload)
	assert.Equal(t, "caller", payload.Role)
	assert.Equal(t, "caller", payload.Type)

	assert.Empty(t, clients["c"].EventNames())
}

func TestRoomLedger_RelayToMissingRoomOrStranger(t *testing.T) {
	ledger, clients := setupLedger(t, "a", "b", "c")
	roomID := ledger.CreateRoom("a", "b")
	clients["a"].Reset()
	clients["b"].Reset()

	assert.False(t, ledger.RelayOffer("999", "a", json.RawMessage(`{}`)))
	assert.False(t, ledger.RelayOffer(roomID, "c", json.RawMessage(`{}`)))

	assert.Empty(t, clients["a"].EventNames())
	assert.Empty(t, clients["b"].EventNames())
}

func TestRoomLedger_TeardownForParticipantNotifiesOther(t *testing.T) {
	ledger, clients := setupLedger(t, "a", "b")
	roomID := ledger.CreateRoom("a", "b")

	assert.False(t, ledger.TeardownForParticipant(roomID, "c", "next"))
	assert.True(t, ledger.TeardownForParticipant(roomID, "a", "next"))

	assert.Empty(t, clients["a"].Named(models.EventPartnerLeft))
	assert.Equal(t, []any{models.PartnerLeftPayload{Reason: "next"}}, clients["b"].Named(models.EventPartnerLeft))
	assert.Equal(t, 0, ledger.Len())

	assert.False(t, ledger.TeardownForParticipant(roomID, "a", "next"))
}

func TestRoomLedger_TeardownRoomIsBestEffort(t *testing.T) {
	ledger, clients := setupLedger(t, "a", "b")
	roomID := ledger.CreateRoom("a", "b")
	clients["a"].broken = true

	assert.True(t, ledger.TeardownRoom(roomID, "shutdown"))

	assert.Equal(t, []any{models.PartnerLeftPayload{Reason: "shutdown"}}, clients["b"].Named(models.EventPartnerLeft))
	_, ok := ledger.Room(roomID)
	assert.False(t, ok)
}
