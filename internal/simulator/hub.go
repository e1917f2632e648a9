package simulator

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// hub fans inventory frames out to every connected feed subscriber. Writes to
// a single connection are serialized; a failed write drops the subscriber.
type hub struct {
	logger *slog.Logger

	mu    sync.Mutex
	conns map[*subscriber]struct{}
}

type subscriber struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func newHub(logger *slog.Logger) *hub {
	return &hub{logger: logger, conns: make(map[*subscriber]struct{})}
}

func (h *hub) add(conn *websocket.Conn) *subscriber {
	sub := &subscriber{conn: conn}
	h.mu.Lock()
	h.conns[sub] = struct{}{}
	h.mu.Unlock()
	return sub
}

func (h *hub) remove(sub *subscriber) {
	h.mu.Lock()
	delete(h.conns, sub)
	h.mu.Unlock()
	_ = sub.conn.Close()
}

// broadcast sends one frame to every subscriber.
func (h *hub) broadcast(frame any) {
	data, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("encoding inventory frame failed", "error", err)
		return
	}

	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.conns))
	for sub := range h.conns {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.send(data); err != nil {
			h.logger.Debug("dropping feed subscriber", "error", err)
			h.remove(sub)
		}
	}
}

// sendTo delivers a frame to a single subscriber.
func (h *hub) sendTo(sub *subscriber, frame any) error {
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	return sub.send(data)
}

func (s *subscriber) send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

func (h *hub) closeAll() {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.conns))
	for sub := range h.conns {
		subs = append(subs, sub)
	}
	h.conns = make(map[*subscriber]struct{})
	h.mu.Unlock()

	for _, sub := range subs {
		_ = sub.conn.Close()
	}
}
