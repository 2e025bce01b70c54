package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// headerResolver trusts X-Test-Role / X-Test-User, enough to drive the manager
type headerResolver struct{}

func (headerResolver) ResolveIdentity(r *http.Request) models.Identity {
	role := r.Header.Get("X-Test-Role")
	if role == "" {
		return models.Identity{}
	}
	return models.Identity{UserID: r.Header.Get("X-Test-User"), Role: models.Role(role), Authenticated: true}
}

type stubSnapshots struct {
	fail bool
}

func (s stubSnapshots) DispatcherSnapshot(context.Context) (*models.DispatcherSnapshot, error) {
	if s.fail {
		return nil, errors.New("db down")
	}
	return &models.DispatcherSnapshot{
		Emergencies: []models.EmergencyCall{{ID: "E55"}},
		Ambulances:  []models.Ambulance{{ID: "A101"}},
		Hospitals:   []models.Hospital{},
	}, nil
}

func (s stubSnapshots) ParamedicSnapshot(_ context.Context, id string) (*models.ParamedicSnapshot, error) {
	return &models.ParamedicSnapshot{ActiveCall: &models.EmergencyCall{ID: "call-for-" + id}}, nil
}

func testServer(t *testing.T, snaps SnapshotProvider) (*httptest.Server, *Hub) {
	t.Helper()
	hub := NewHub()
	m := NewManager(hub, headerResolver{}, snaps, nil, 0)
	mux := http.NewServeMux()
	mux.HandleFunc("/ws/dispatcher", m.DispatcherHandler)
	mux.HandleFunc("/ws/paramedic", m.ParamedicHandler)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, hub
}

func dial(t *testing.T, srv *httptest.Server, path, role, user string) *websocket.Conn {
	t.Helper()
	h := http.Header{}
	if role != "" {
		h.Set("X-Test-Role", role)
		h.Set("X-Test-User", user)
	}
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	conn, _, err := websocket.DefaultDialer.Dial(url, h)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) models.Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var env models.Envelope
	require.NoError(t, json.Unmarshal(raw, &env))
	return env
}

func TestManager_DispatcherReceivesInitialData(t *testing.T) {
	srv, hub := testServer(t, stubSnapshots{})
	conn := dial(t, srv, "/ws/dispatcher", "dispatcher", "d1")

	env := readEnvelope(t, conn)
	assert.Equal(t, models.MessageInitialData, env.Type)
	data := env.Data.(map[string]interface{})
	assert.Len(t, data["emergencies"], 1)
	assert.Len(t, data["ambulances"], 1)

	assert.Eventually(t, func() bool { return hub.Count(DispatcherGroup) == 1 }, time.Second, 10*time.Millisecond)

	// broadcasts reach the session
	hub.SendToGroup(DispatcherGroup, []byte(`{"type":"emergency_update","event":"NEW_EMERGENCY"}`))
	env = readEnvelope(t, conn)
	assert.Equal(t, models.MessageEmergencyUpdate, env.Type)
	assert.Equal(t, "NEW_EMERGENCY", env.Event)
}

func TestManager_PingAndRefresh(t *testing.T) {
	srv, _ := testServer(t, stubSnapshots{})
	conn := dial(t, srv, "/ws/dispatcher", "dispatcher", "d1")
	readEnvelope(t, conn)

	require.NoError(t, conn.WriteJSON(models.ClientMessage{Type: models.ClientPing}))
	assert.Equal(t, models.MessagePong, readEnvelope(t, conn).Type)

	require.NoError(t, conn.WriteJSON(models.ClientMessage{Type: models.ClientGetInitialData}))
	assert.Equal(t, models.MessageInitialData, readEnvelope(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{nope")))
	env := readEnvelope(t, conn)
	assert.Equal(t, models.MessageTypeError, env.Type)
	assert.Equal(t, "invalid JSON", env.Message)
}

func TestManager_ParamedicJoinsOwnGroupOnly(t *testing.T) {
	srv, hub := testServer(t, stubSnapshots{})
	conn := dial(t, srv, "/ws/paramedic", "paramedic", "P")

	env := readEnvelope(t, conn)
	assert.Equal(t, models.MessageInitialData, env.Type)
	data := env.Data.(map[string]interface{})
	assert.Equal(t, "call-for-P", data["active_call"].(map[string]interface{})["_id"])

	assert.Eventually(t, func() bool { return hub.Count(ParamedicGroup("P")) == 1 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0, hub.Count(DispatcherGroup))
}

func TestManager_RejectsWithCloseCode(t *testing.T) {
	tests := []struct {
		name string
		path string
		role string
	}{
		{"anonymous dispatcher", "/ws/dispatcher", ""},
		{"paramedic on dispatcher socket", "/ws/dispatcher", "paramedic"},
		{"dispatcher on paramedic socket", "/ws/paramedic", "dispatcher"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, hub := testServer(t, stubSnapshots{})
			conn := dial(t, srv, tt.path, tt.role, "u1")

			require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
			_, _, err := conn.ReadMessage()

			var closeErr *websocket.CloseError
			require.ErrorAs(t, err, &closeErr)
			assert.Equal(t, CloseUnauthorized, closeErr.Code)
			assert.Equal(t, 0, hub.Count(DispatcherGroup))
			assert.Equal(t, 0, hub.Count(ParamedicGroup("u1")))
		})
	}
}

func TestManager_DisconnectLeavesGroups(t *testing.T) {
	srv, hub := testServer(t, stubSnapshots{})
	conn := dial(t, srv, "/ws/dispatcher", "dispatcher", "d1")
	readEnvelope(t, conn)
	require.Eventually(t, func() bool { return hub.Count(DispatcherGroup) == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()

	assert.Eventually(t, func() bool { return hub.Count(DispatcherGroup) == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestManager_SnapshotFailureSendsError(t *testing.T) {
	srv, _ := testServer(t, stubSnapshots{fail: true})
	conn := dial(t, srv, "/ws/dispatcher", "dispatcher", "d1")

	env := readEnvelope(t, conn)
	assert.Equal(t, models.MessageTypeError, env.Type)
}
