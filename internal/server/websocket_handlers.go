package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MeKo-Tech/barcodekit/internal/barcode"
	"github.com/MeKo-Tech/barcodekit/internal/camera"
	"github.com/MeKo-Tech/barcodekit/internal/capture"
	"github.com/MeKo-Tech/barcodekit/internal/render"
	"github.com/MeKo-Tech/barcodekit/internal/utils"
)

const (
	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 30 * time.Second
	wsWriteTimeout = 10 * time.Second
)

// Server message types.
const (
	MessageSession = "session"
	MessageDecoded = "decoded"
	MessageError   = "error"
	MessageTorch   = "torch"
)

// ScanMessage is sent from server to client.
type ScanMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"session_id"`
	Result    *ResultJSON `json:"result,omitempty"`
	// Thumbnail is a PNG of the decoded frame, base64 encoded in JSON.
	Thumbnail []byte  `json:"thumbnail,omitempty"`
	Scale     float64 `json:"scale,omitempty"`
	Torch     *bool   `json:"torch,omitempty"`
	Error     string  `json:"error,omitempty"`
	ErrorType string  `json:"error_type,omitempty"`
}

// ScanControl is a text message from client to server.
type ScanControl struct {
	Type    string `json:"type"` // "restart", "torch" or "stop"
	DelayMS int    `json:"delay_ms,omitempty"`
	On      *bool  `json:"on,omitempty"`
}

// WebSocketConnWriter is the write side of a WebSocket connection.
type WebSocketConnWriter interface {
	WriteMessage(messageType int, data []byte) error
}

// scanSession ties one WebSocket connection to one capture Coordinator.
type scanSession struct {
	id    string
	src   *camera.StreamSource
	coord *capture.Coordinator

	writeMu sync.Mutex
	conn    WebSocketConnWriter

	closeOnce sync.Once
	done      chan struct{}
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if s.corsOrigin == "" || s.corsOrigin == "*" || origin == "" {
		return true
	}
	for _, allowed := range strings.Split(s.corsOrigin, ",") {
		if strings.EqualFold(strings.TrimSpace(allowed), origin) {
			return true
		}
	}
	return false
}

// scanWebSocketHandler upgrades the connection and runs a live-scan session.
func (s *Server) scanWebSocketHandler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return
	}
	defer func() { _ = conn.Close() }()

	websocketConnections.Inc()
	defer websocketConnections.Dec()

	sess, err := s.openSession(r.Context(), conn)
	if err != nil {
		s.sendRaw(conn, ScanMessage{Type: MessageError, ErrorType: "session_failed", Error: err.Error()})
		return
	}
	defer func() {
		sess.close()
		s.removeSession(sess.id)
	}()

	slog.Info("Scan session established", "session_id", sess.id, "remote_addr", r.RemoteAddr)
	sess.send(ScanMessage{Type: MessageSession})
	s.serveSession(conn, sess)
	slog.Info("Scan session closed", "session_id", sess.id, "dropped_frames", sess.src.Dropped())
}

// openSession registers a session and starts its coordinator.
func (s *Server) openSession(ctx context.Context, conn WebSocketConnWriter) (*scanSession, error) {
	sess := &scanSession{
		id:   uuid.NewString(),
		conn: conn,
		done: make(chan struct{}),
	}
	sess.src = camera.NewStreamSource("ws:"+sess.id, s.cameraCfg)
	sess.coord = capture.New(s.captureCfg, sess)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, errors.New("server is shutting down")
	}
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	if err := sess.coord.Start(ctx, sess.src, s.dec); err != nil {
		s.removeSession(sess.id)
		return nil, err
	}
	return sess, nil
}

func (s *Server) removeSession(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// serveSession reads frames and control messages until the client leaves.
func (s *Server) serveSession(conn *websocket.Conn, sess *scanSession) {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	})

	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-sess.done:
				return
			case <-ticker.C:
				sess.writeMu.Lock()
				err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteTimeout))
				sess.writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("WebSocket read error", "session_id", sess.id, "error", err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		switch messageType {
		case websocket.BinaryMessage:
			websocketMessagesTotal.WithLabelValues("received", "frame").Inc()
			sess.handleFrame(data)
		case websocket.TextMessage:
			websocketMessagesTotal.WithLabelValues("received", "control").Inc()
			if stop := sess.handleControl(data); stop {
				return
			}
		}
	}
}

// handleFrame decodes an uploaded frame and pushes it to the stream source.
func (sess *scanSession) handleFrame(data []byte) {
	img, _, err := utils.DecodeImage(bytes.NewReader(data))
	if err != nil {
		sess.send(ScanMessage{Type: MessageError, ErrorType: "invalid_frame", Error: err.Error()})
		return
	}
	if err := sess.src.Push(img); err != nil {
		sess.send(ScanMessage{Type: MessageError, ErrorType: "session_closed", Error: err.Error()})
	}
}

// handleControl applies a control message and reports whether to stop.
func (sess *scanSession) handleControl(data []byte) bool {
	var ctl ScanControl
	if err := json.Unmarshal(data, &ctl); err != nil {
		sess.send(ScanMessage{Type: MessageError, ErrorType: "invalid_request", Error: fmt.Sprintf("Failed to parse control message: %v", err)})
		return false
	}

	switch ctl.Type {
	case "restart":
		if ctl.DelayMS < 0 {
			sess.send(ScanMessage{Type: MessageError, ErrorType: "invalid_request", Error: "delay_ms must not be negative"})
			return false
		}
		sess.coord.RestartAfterDelay(time.Duration(ctl.DelayMS) * time.Millisecond)
	case "torch":
		want := !sess.src.Torch()
		if ctl.On != nil {
			want = *ctl.On
		}
		on := sess.src.Torch()
		if want != on {
			var err error
			if on, err = sess.coord.ToggleTorch(); err != nil {
				sess.send(ScanMessage{Type: MessageError, ErrorType: "torch_failed", Error: err.Error()})
				return false
			}
		}
		sess.send(ScanMessage{Type: MessageTorch, Torch: &on})
	case "stop":
		return true
	default:
		sess.send(ScanMessage{Type: MessageError, ErrorType: "invalid_request", Error: "Unsupported control type: " + ctl.Type})
	}
	return false
}

// OnDecoded implements capture.Listener.
func (sess *scanSession) OnDecoded(result barcode.Result, thumbnail image.Image, scale float64) {
	res := resultToJSON(result)
	msg := ScanMessage{Type: MessageDecoded, Result: &res, Scale: scale}
	if thumbnail != nil {
		var buf bytes.Buffer
		if err := render.Encode(&buf, thumbnail, render.PNG); err == nil {
			msg.Thumbnail = buf.Bytes()
		}
	}
	sess.send(msg)
}

// OnFatalError implements capture.Listener.
func (sess *scanSession) OnFatalError(err error) {
	sess.send(ScanMessage{Type: MessageError, ErrorType: "camera_failed", Error: err.Error()})
}

func (sess *scanSession) send(msg ScanMessage) {
	msg.SessionID = sess.id
	sess.writeMu.Lock()
	defer sess.writeMu.Unlock()
	if wc, ok := sess.conn.(*websocket.Conn); ok {
		_ = wc.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	}
	writeScanMessage(sess.conn, msg)
}

func (s *Server) sendRaw(conn WebSocketConnWriter, msg ScanMessage) {
	writeScanMessage(conn, msg)
}

func writeScanMessage(conn WebSocketConnWriter, msg ScanMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("Failed to marshal WebSocket message", "error", err)
		return
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		slog.Debug("Failed to send WebSocket message", "error", err)
		return
	}
	websocketMessagesTotal.WithLabelValues("sent", msg.Type).Inc()
}

// close stops the coordinator and drops the connection. It must not run on
// the coordinator's loop.
func (sess *scanSession) close() {
	sess.closeOnce.Do(func() {
		close(sess.done)
		sess.coord.Stop()
		if c, ok := sess.conn.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	})
}
