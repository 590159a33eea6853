package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/MeKo-Tech/geomeasure/internal/elevation"
	"github.com/MeKo-Tech/geomeasure/internal/scene"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb/geojson"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsMaxMessage   = 1 << 20
)

// WebSocket upgrader. Origin checks follow the configured CORS origin.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// Session message types sent by the client.
const (
	msgPutArrow   = "put_arrow"
	msgPutPolygon = "put_polygon"
	msgRemove     = "remove"
	msgAssign     = "assign"
	msgClear      = "clear"
	msgOverride   = "override"
	msgRecompute  = "recompute"
	msgExport     = "export"
	msgLoad       = "load"
)

// SessionRequest is one client message on /ws/session. Which fields are
// read depends on Type.
type SessionRequest struct {
	Type    string             `json:"type"`
	ID      string             `json:"id,omitempty"`
	Role    string             `json:"role,omitempty"`
	Arrow   *elevation.Arrow   `json:"arrow,omitempty"`
	Polygon *elevation.Polygon `json:"polygon,omitempty"`
	Value   *float64           `json:"value,omitempty"`
	Scene   json.RawMessage    `json:"scene,omitempty"`
}

// SessionResponse is one server message on /ws/session.
type SessionResponse struct {
	Type        string                     `json:"type"` // "outcome", "scene" or "error"
	SessionID   string                     `json:"session_id,omitempty"`
	Explicit    bool                       `json:"explicit,omitempty"`
	Outcome     *elevation.Outcome         `json:"outcome,omitempty"`
	Assignments []elevation.Assignment     `json:"assignments,omitempty"`
	Scene       *geojson.FeatureCollection `json:"scene,omitempty"`
	Error       string                     `json:"error,omitempty"`
	ErrorType   string                     `json:"error_type,omitempty"`
}

// WebSocketConnWriter is an interface for writing WebSocket messages.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// liveSession is the per-connection state. It is only touched by the
// connection's read loop.
type liveSession struct {
	id   string
	sess *elevation.Session
}

func newLiveSession() *liveSession {
	return &liveSession{id: uuid.NewString(), sess: elevation.NewSession()}
}

// sessionWebSocketHandler upgrades to a WebSocket that owns one Session.
func (s *Server) sessionWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	up := upgrader
	up.CheckOrigin = s.checkOrigin
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	live := newLiveSession()
	s.logger.Info("WebSocket session established",
		"remote_addr", r.RemoteAddr, "session_id", live.id, "request_id", requestID(r.Context()))

	s.handleWebSocketConnection(conn, live)
	s.logger.Info("WebSocket session closed", "session_id", live.id)
}

// checkOrigin accepts same-host requests, requests without Origin and the
// configured CORS origin ("*" accepts all).
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.corsOrigin == "*" || origin == s.corsOrigin {
		return true
	}
	return origin == "http://"+r.Host || origin == "https://"+r.Host
}

// handleWebSocketConnection runs the read loop until the client goes away.
func (s *Server) handleWebSocketConnection(conn *websocket.Conn, live *liveSession) {
	conn.SetReadLimit(wsMaxMessage)
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Error("WebSocket error", "error", err, "session_id", live.id)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		websocketMessagesTotal.WithLabelValues("received").Inc()

		if messageType == websocket.TextMessage {
			s.handleSessionMessage(conn, live, data)
		}
	}
}

// handleSessionMessage applies one client message to the session and
// replies. Mutations are followed by an automatic recompute; "recompute" is
// the explicit one that carries warnings.
func (s *Server) handleSessionMessage(conn WebSocketConnWriter, live *liveSession, data []byte) {
	var req SessionRequest
	if err := json.Unmarshal(data, &req); err != nil {
		s.sendWebSocketError(conn, "invalid_request", fmt.Sprintf("failed to parse message: %v", err))
		return
	}

	start := time.Now()
	explicit, err := s.applySessionMessage(live, req)
	recordComputation("session", err, time.Since(start).Seconds())
	if err != nil {
		s.sendWebSocketError(conn, errorKind(err), err.Error())
		return
	}

	if req.Type == msgExport {
		fc := scene.Build(live.sess)
		out := live.sess.Recompute(s.calc, true)
		scene.Annotate(fc, live.sess.Input(), out)
		s.sendWebSocketResponse(conn, SessionResponse{Type: "scene", SessionID: live.id, Scene: fc})
		return
	}

	out := live.sess.Recompute(s.calc, explicit)
	if out.Result != nil {
		elevationAngle.Observe(out.Result.AngleDegrees)
	}
	s.sendWebSocketResponse(conn, SessionResponse{
		Type:        "outcome",
		SessionID:   live.id,
		Explicit:    explicit,
		Outcome:     &out,
		Assignments: live.sess.Assignments(),
	})
}

var errMissingField = errors.New("missing field")

// applySessionMessage mutates the session and reports whether the following
// recompute is explicit.
func (s *Server) applySessionMessage(live *liveSession, req SessionRequest) (bool, error) {
	sess := live.sess
	id := elevation.ShapeID(req.ID)

	switch req.Type {
	case msgPutArrow:
		if req.Arrow == nil {
			return false, fmt.Errorf("%w: arrow", errMissingField)
		}
		return false, sess.PutArrow(id, *req.Arrow)
	case msgPutPolygon:
		if req.Polygon == nil {
			return false, fmt.Errorf("%w: polygon", errMissingField)
		}
		return false, sess.PutPolygon(id, *req.Polygon)
	case msgRemove:
		if !sess.Remove(id) {
			return false, fmt.Errorf("%w: %q", elevation.ErrUnknownShape, req.ID)
		}
		return false, nil
	case msgAssign:
		role, err := elevation.ParseRole(req.Role)
		if err != nil {
			return false, err
		}
		return false, sess.Assign(role, id)
	case msgClear:
		role, err := elevation.ParseRole(req.Role)
		if err != nil {
			return false, err
		}
		sess.Clear(role)
		return false, nil
	case msgOverride:
		v := 0.0
		if req.Value != nil {
			v = *req.Value
		}
		sess.SetOverrideHeight(v)
		return false, nil
	case msgRecompute, msgExport:
		return true, nil
	case msgLoad:
		if len(req.Scene) == 0 {
			return false, fmt.Errorf("%w: scene", errMissingField)
		}
		sc, err := scene.Parse(req.Scene)
		if err != nil {
			return false, err
		}
		live.sess = sc.Session
		return false, nil
	default:
		return false, fmt.Errorf("unsupported message type %q", req.Type)
	}
}

// sendWebSocketResponse sends a response message over WebSocket.
func (s *Server) sendWebSocketResponse(conn WebSocketConnWriter, response SessionResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		s.logger.Error("Failed to marshal WebSocket response", "error", err)
		data, _ = json.Marshal(SessionResponse{
			Type:      "error",
			SessionID: response.SessionID,
			Error:     fmt.Sprintf("%v: %v", errUnencodable, err),
			ErrorType: "non_finite",
		})
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		s.logger.Error("Failed to send WebSocket message", "error", err)
		return
	}

	websocketMessagesTotal.WithLabelValues("sent").Inc()
}

// sendWebSocketError sends an error message over WebSocket. The session is
// left as it was before the failed message.
func (s *Server) sendWebSocketError(conn WebSocketConnWriter, errorType, message string) {
	s.sendWebSocketResponse(conn, SessionResponse{
		Type:      "error",
		Error:     message,
		ErrorType: errorType,
	})
}
