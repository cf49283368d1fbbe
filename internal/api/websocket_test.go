package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shvydak/homelab-dashboard/internal/audit"
	"github.com/shvydak/homelab-dashboard/internal/auth"
)

func TestWebSocket_TicketRequired(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, http.MethodGet, "/api/v1/ws", nil, "")
	requireError(t, w, http.StatusUnauthorized, "ticket query parameter is required")

	w = env.do(t, http.MethodGet, "/api/v1/ws?ticket=bogus", nil, "")
	requireError(t, w, http.StatusUnauthorized, "Invalid or expired ticket")
}

func TestWebSocket_NonAdminTicketRejected(t *testing.T) {
	env := newTestEnv(t)

	ticket, err := env.srv.tickets.issue("usr-1", auth.RoleUser)
	require.NoError(t, err)

	w := env.do(t, http.MethodGet, "/api/v1/ws?ticket="+ticket, nil, "")
	requireError(t, w, http.StatusForbidden, auth.MsgInsufficientRole)
}

// dialEventStream connects an admin to the event stream of a live server.
func dialEventStream(t *testing.T, env *testEnv) *websocket.Conn {
	t.Helper()

	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)

	admin := env.createUser(t, "admin@example.com", auth.RoleAdmin)
	w := env.do(t, http.MethodPost, "/api/auth/ws-ticket", nil, env.tokenFor(t, admin))
	require.Equal(t, http.StatusOK, w.Code)
	var data struct {
		Ticket string `json:"ticket"`
	}
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &data))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + data.Ticket
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck // upgrade response
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return env.srv.hub.ClientCount() == 1 },
		time.Second, 10*time.Millisecond)
	return conn
}

func readWSMessage(t *testing.T, conn *websocket.Conn) WSMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_PingPong(t *testing.T) {
	env := newTestEnv(t)
	conn := dialEventStream(t, env)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p1"}))

	msg := readWSMessage(t, conn)
	assert.Equal(t, WSTypePong, msg.Type)
	assert.Equal(t, "p1", msg.ID)
}

func TestWebSocket_AuditEvents(t *testing.T) {
	env := newTestEnv(t)
	conn := dialEventStream(t, env)

	env.srv.processAudit(&audit.AuditLog{
		Action:     audit.ActionUserDelete,
		EntityType: audit.EntityUser,
		EntityID:   "usr-42",
		Source:     "api",
		CreatedAt:  time.Now().UTC(),
	})

	msg := readWSMessage(t, conn)
	assert.Equal(t, WSTypeEvent, msg.Type)
	assert.Equal(t, channelAudit, msg.EventType)

	payload, ok := msg.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, audit.ActionUserDelete, payload["action"])
	assert.Equal(t, "usr-42", payload["entityId"])

	// The entry was also persisted.
	result, err := env.audit.List(t.Context(), audit.Filter{EntityID: "usr-42"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)
}

func TestWebSocket_Subscriptions(t *testing.T) {
	env := newTestEnv(t)
	conn := dialEventStream(t, env)

	require.NoError(t, conn.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "s1",
		Payload: WSSubscribePayload{Channels: []string{"devices"}},
	}))
	msg := readWSMessage(t, conn)
	assert.Equal(t, WSTypeError, msg.Type)
	assert.Equal(t, map[string]any{"message": "unknown channel: devices"}, msg.Payload)

	require.NoError(t, conn.WriteJSON(WSMessage{
		Type:    WSTypeUnsubscribe,
		ID:      "u1",
		Payload: WSSubscribePayload{Channels: []string{channelAudit}},
	}))
	msg = readWSMessage(t, conn)
	assert.Equal(t, WSTypeResponse, msg.Type)
	assert.Equal(t, "u1", msg.ID)

	// Unsubscribed: the broadcast is skipped and the next frame is the pong.
	env.srv.hub.Broadcast(channelAudit, map[string]string{"action": "ignored"})
	require.NoError(t, conn.WriteJSON(WSMessage{Type: WSTypePing, ID: "p2"}))
	msg = readWSMessage(t, conn)
	assert.Equal(t, WSTypePong, msg.Type)
	assert.Equal(t, "p2", msg.ID)
}

func TestWebSocket_TicketIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.router)
	t.Cleanup(ts.Close)

	ticket, err := env.srv.tickets.issue("usr-admin", auth.RoleAdmin)
	require.NoError(t, err)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws?ticket=" + ticket

	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close() //nolint:errcheck // upgrade response
	conn.Close()

	_, resp, err = websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestAuditTopic(t *testing.T) {
	tests := []struct {
		action string
		want   string
	}{
		{audit.ActionLogin, "homelab/auth/events/login"},
		{audit.ActionLoginFailed, "homelab/auth/events/login_failed"},
		{audit.ActionUserDelete, "homelab/audit/user/user.delete"},
	}
	for _, tt := range tests {
		t.Run(tt.action, func(t *testing.T) {
			got := auditTopic(&audit.AuditLog{Action: tt.action, EntityType: audit.EntityUser})
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAuditLog_DropsWhenQueueFull(t *testing.T) {
	env := newTestEnv(t)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	for range auditChanSize + 5 {
		env.srv.auditLog(req, audit.ActionLogin, "usr-1", "usr-1", nil)
	}
	assert.Len(t, env.srv.auditCh, auditChanSize)
}
