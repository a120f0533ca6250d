package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pairup/backend/internal/api/handler"
	"pairup/backend/internal/chathub"
	"pairup/backend/internal/config"
	"pairup/backend/internal/metrics"
	"pairup/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupServer(t *testing.T, cfg *config.Config) (*httptest.Server, *chathub.ManagerService) {
	t.Helper()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	hub := chathub.NewManagerService(chathub.Options{Metrics: m})

	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	h := handler.NewHandler(hub, cfg, m, reg, nil)
	srv := httptest.NewServer(h.Router())
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?" + query
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil reads frames until one named event arrives.
func readUntil(t *testing.T, conn *websocket.Conn, event string) models.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		var env models.Envelope
		require.NoError(t, conn.ReadJSON(&env), "waiting for %s", event)
		if env.Event == event {
			return env
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(models.Envelope{Event: event, Data: data}))
}

func TestWebSocket_MatchAndSignal(t *testing.T) {
	srv, _ := setupServer(t, nil)

	alice := dial(t, srv, "name=Alice")
	readUntil(t, alice, models.EventLobby)
	bob := dial(t, srv, "name=Bob")

	var room models.RoomPayload
	require.NoError(t, json.Unmarshal(readUntil(t, alice, models.EventSendOffer).Data, &room))
	readUntil(t, bob, models.EventSendOffer)
	require.NotEmpty(t, room.RoomID)

	send(t, alice, models.EventOffer, map[string]any{"roomId": room.RoomID, "sdp": map[string]string{"type": "offer"}})
	var offer models.SDPPayload
	require.NoError(t, json.Unmarshal(readUntil(t, bob, models.EventOffer).Data, &offer))
	assert.JSONEq(t, `{"type":"offer"}`, string(offer.SDP))

	send(t, bob, models.EventQueueNext, nil)
	var left models.PartnerLeftPayload
	require.NoError(t, json.Unmarshal(readUntil(t, alice, models.EventPartnerLeft).Data, &left))
	assert.Equal(t, "next", left.Reason)
}

func TestWebSocket_DisconnectNotifiesPartner(t *testing.T) {
	srv, hub := setupServer(t, nil)

	alice := dial(t, srv, "name=Alice")
	bob := dial(t, srv, "name=Bob")
	readUntil(t, alice, models.EventSendOffer)
	readUntil(t, bob, models.EventSendOffer)

	require.NoError(t, bob.Close())

	var left models.PartnerLeftPayload
	require.NoError(t, json.Unmarshal(readUntil(t, alice, models.EventPartnerLeft).Data, &left))
	assert.Equal(t, "disconnect", left.Reason)
	assert.Eventually(t, func() bool { return hub.Registry.Count() == 1 }, 2*time.Second, 20*time.Millisecond)
}

func TestWebSocket_HandshakeChatRoom(t *testing.T) {
	srv, _ := setupServer(t, nil)

	alice := dial(t, srv, "name=Alice&roomId=study-group")

	var notice models.ChatSystemPayload
	require.NoError(t, json.Unmarshal(readUntil(t, alice, models.EventChatSystem).Data, &notice))
	assert.Equal(t, "study-group", notice.RoomID)
	assert.Equal(t, "Alice joined the chat", notice.Text)
	readUntil(t, alice, models.EventChatHistory)
}

func TestWebSocket_OriginCheck(t *testing.T) {
	srv, _ := setupServer(t, &config.Config{AllowedOrigins: []string{"https://pairup.example"}})
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"

	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	resp.Body.Close()

	conn, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://pairup.example"}})
	require.NoError(t, err)
	resp.Body.Close()
	conn.Close()
}

func TestHealth(t *testing.T) {
	srv, _ := setupServer(t, nil)
	alice := dial(t, srv, "name=Alice")
	readUntil(t, alice, models.EventLobby)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		OK     bool  `json:"ok"`
		Online int64 `json:"online"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.True(t, body.OK)
	assert.Equal(t, int64(1), body.Online)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := setupServer(t, nil)
	alice := dial(t, srv, "name=Alice")
	readUntil(t, alice, models.EventLobby)

	scrape := func() string {
		resp, err := http.Get(srv.URL + "/metrics")
		if err != nil {
			return ""
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return string(body)
	}

	assert.Eventually(t, func() bool {
		body := scrape()
		return strings.Contains(body, "pairup_connected_participants 1") &&
			strings.Contains(body, "pairup_queue_depth 1")
	}, 2*time.Second, 20*time.Millisecond)
}

func TestNotFound(t *testing.T) {
	srv, _ := setupServer(t, nil)

	resp, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, `{"error":"not found"}`, string(body))
}
