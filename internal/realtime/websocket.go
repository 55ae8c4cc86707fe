package realtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// Handler upgrades requests to WebSocket connections that stream changes
// matching the "table" and "filter" query parameters.
type Handler struct {
	broker   Broker
	upgrader websocket.Upgrader
}

// NewHandler creates a change-stream handler backed by broker.
// allowedOrigins restricts browser origins; empty allows any origin.
func NewHandler(broker Broker, allowedOrigins ...string) *Handler {
	h := &Handler{
		broker: broker,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	if len(allowedOrigins) > 0 {
		allowed := make(map[string]bool, len(allowedOrigins))
		for _, o := range allowedOrigins {
			allowed[o] = true
		}
		h.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}
	} else {
		h.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f, err := ParseFilter(r.URL.Query().Get("table"), r.URL.Query().Get("filter"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("realtime upgrade failed", "err", err)
		return
	}

	sub, err := h.broker.Subscribe(r.Context(), f)
	if err != nil {
		slog.Error("realtime subscribe failed", "err", err)
		if cerr := conn.Close(); cerr != nil {
			slog.Warn("closing websocket", "err", cerr)
		}
		return
	}

	closed := make(chan struct{})
	go readPump(conn, closed)
	writePump(conn, sub, closed)
}

// readPump drains client frames so control messages are processed, and
// signals closed when the peer goes away.
func readPump(conn *websocket.Conn, closed chan<- struct{}) {
	defer close(closed)

	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("realtime read error", "err", err)
			}
			return
		}
	}
}

// writePump forwards subscription events to the connection until either side
// closes. It owns the subscription and the connection.
func writePump(conn *websocket.Conn, sub *Subscription, closed <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := sub.Close(); err != nil {
			slog.Warn("closing subscription", "err", err)
		}
		if err := conn.Close(); err != nil {
			slog.Debug("closing websocket", "err", err)
		}
	}()

	for {
		select {
		case c, ok := <-sub.Events():
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(c); err != nil {
				slog.Debug("realtime write error", "id", sub.ID, "err", err)
				return
			}

		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-closed:
			return
		}
	}
}

// RemoteStream is a change stream received over a WebSocket connection.
type RemoteStream struct {
	conn    *websocket.Conn
	events  chan Change
	once    sync.Once
	closing chan struct{}
	done    chan struct{}
}

// Dial opens a change stream at endpoint (a ws:// or wss:// URL) for f.
func Dial(ctx context.Context, endpoint string, f Filter, header http.Header) (*RemoteStream, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing realtime endpoint: %w", err)
	}
	q := u.Query()
	q.Set("table", f.Table)
	if p := f.Predicate(); p != "" {
		q.Set("filter", p)
	}
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dialing realtime endpoint: %w (status %s)", err, resp.Status)
		}
		return nil, fmt.Errorf("dialing realtime endpoint: %w", err)
	}

	s := &RemoteStream{
		conn:    conn,
		events:  make(chan Change, defaultBuffer),
		closing: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go s.read()

	return s, nil
}

// Events implements Stream.
func (s *RemoteStream) Events() <-chan Change {
	return s.events
}

// Close implements Stream.
func (s *RemoteStream) Close() error {
	var err error
	s.once.Do(func() {
		close(s.closing)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
		err = s.conn.Close()
		<-s.done
	})
	return err
}

func (s *RemoteStream) read() {
	defer close(s.done)
	defer close(s.events)

	for {
		var c Change
		if err := s.conn.ReadJSON(&c); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				slog.Debug("realtime stream ended", "err", err)
			}
			return
		}
		select {
		case s.events <- c:
		case <-s.closing:
			return
		}
	}
}
