package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/linesmerrill/ambulance-dispatch-api/metrics"
	"github.com/linesmerrill/ambulance-dispatch-api/models"
)

// CloseUnauthorized is sent to connections without the right credentials
const CloseUnauthorized = 4001

const defaultSnapshotTimeout = 10 * time.Second

// IdentityResolver resolves the caller of an upgrade request. An
// unauthenticated identity is returned when no credentials are present.
type IdentityResolver interface {
	ResolveIdentity(r *http.Request) models.Identity
}

// SnapshotProvider builds the initial_data payloads
type SnapshotProvider interface {
	DispatcherSnapshot(ctx context.Context) (*models.DispatcherSnapshot, error)
	ParamedicSnapshot(ctx context.Context, paramedicID string) (*models.ParamedicSnapshot, error)
}

// Manager accepts websocket connections and keeps their group memberships
type Manager struct {
	hub       *Hub
	auth      IdentityResolver
	snapshots SnapshotProvider
	metrics   *metrics.Recorder
	upgrader  websocket.Upgrader
	// bound on the reads behind initial_data
	snapshotTimeout time.Duration
}

// NewManager returns a Manager registering sessions on hub. A non-positive
// snapshotTimeout uses the default of ten seconds.
func NewManager(hub *Hub, auth IdentityResolver, snapshots SnapshotProvider, rec *metrics.Recorder, snapshotTimeout time.Duration) *Manager {
	if snapshotTimeout <= 0 {
		snapshotTimeout = defaultSnapshotTimeout
	}
	return &Manager{
		hub:             hub,
		auth:            auth,
		snapshots:       snapshots,
		metrics:         rec,
		snapshotTimeout: snapshotTimeout,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// DispatcherHandler is the /ws/dispatcher entry point
func (m *Manager) DispatcherHandler(w http.ResponseWriter, r *http.Request) {
	m.serve(w, r, models.RoleDispatcher)
}

// ParamedicHandler is the /ws/paramedic entry point
func (m *Manager) ParamedicHandler(w http.ResponseWriter, r *http.Request) {
	m.serve(w, r, models.RoleParamedic)
}

func (m *Manager) serve(w http.ResponseWriter, r *http.Request, role models.Role) {
	identity := m.auth.ResolveIdentity(r)

	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Warnw("websocket upgrade failed", "path", r.URL.Path, "error", err)
		return
	}

	if !identity.Authenticated || identity.Role != role {
		zap.S().Infow("rejecting realtime connection", "path", r.URL.Path, "role", identity.Role, "authenticated", identity.Authenticated)
		reject(conn, "unauthorized")
		return
	}

	s := newSession(conn, identity)
	group := DispatcherGroup
	if role == models.RoleParamedic {
		group = ParamedicGroup(identity.UserID)
	}
	m.hub.Join(group, s)
	m.metrics.SessionOpened(string(role))
	zap.S().Infow("realtime session opened", "sessionId", s.ID(), "userId", identity.UserID, "group", group)

	go s.writeLoop()
	m.sendSnapshot(s)

	s.readLoop(func(msg []byte) { m.handleMessage(s, msg) })

	m.hub.LeaveAll(s)
	s.close()
	m.metrics.SessionClosed(string(role))
	zap.S().Infow("realtime session closed", "sessionId", s.ID(), "userId", identity.UserID)
}

func reject(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(CloseUnauthorized, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	_ = conn.Close()
}

func (m *Manager) handleMessage(s *Session, raw []byte) {
	var msg models.ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		sendEnvelope(s, models.Envelope{Type: models.MessageTypeError, Message: "invalid JSON"})
		return
	}
	switch msg.Type {
	case models.ClientPing:
		sendEnvelope(s, models.Envelope{Type: models.MessagePong})
	case models.ClientGetInitialData:
		m.sendSnapshot(s)
	default:
		sendEnvelope(s, models.Envelope{Type: models.MessageTypeError, Message: "unknown message type: " + msg.Type})
	}
}

func (m *Manager) sendSnapshot(s *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), m.snapshotTimeout)
	defer cancel()

	var (
		data interface{}
		err  error
	)
	switch s.identity.Role {
	case models.RoleDispatcher:
		data, err = m.snapshots.DispatcherSnapshot(ctx)
	case models.RoleParamedic:
		data, err = m.snapshots.ParamedicSnapshot(ctx, s.identity.UserID)
	default:
		return
	}
	if err != nil {
		zap.S().Errorw("failed to build initial data", "sessionId", s.ID(), "error", err)
		sendEnvelope(s, models.Envelope{Type: models.MessageTypeError, Message: "failed to load initial data"})
		return
	}
	sendEnvelope(s, models.Envelope{Type: models.MessageInitialData, Data: data})
}

func sendEnvelope(s *Session, env models.Envelope) {
	msg, err := json.Marshal(env)
	if err != nil {
		zap.S().Errorw("failed to encode message", "type", env.Type, "error", err)
		return
	}
	s.Send(msg)
}
