package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/domain"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/observer"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/report"
	"github.com/hochfrequenz/claude-batch-pipeline/internal/statestore"
)

const (
	writeWait    = 10 * time.Second
	pingInterval = 30 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// streamBatchHandler upgrades to a websocket and pushes a BatchView
// snapshot on connect and after every persisted state transition
func (s *Server) streamBatchHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		batchID := strings.TrimPrefix(r.URL.Path, "/ws/batches/")
		if !statestore.ValidID(batchID) || strings.Contains(batchID, "/") {
			writeError(w, http.StatusNotFound, "unknown batch")
			return
		}

		initial, err := s.store.Load(batchID)
		if err != nil {
			writeError(w, http.StatusNotFound, "unknown batch")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		updates := make(chan *domain.BatchState, 8)
		watcher, err := observer.NewStateWatcher(s.store, batchID, func(state *domain.BatchState) {
			select {
			case updates <- state:
			default:
				// Slow client: drop the intermediate snapshot, the
				// next one carries the full state anyway
			}
		})
		if err != nil {
			conn.Close()
			return
		}
		// The request context ends when this handler returns; the
		// watcher lives until the write pump stops it.
		watcher.Start(context.Background())

		go s.writePump(conn, initial, updates, watcher)
		go s.readPump(conn)
	}
}

// readPump drains client frames so pings get answered and closes are seen
func (s *Server) readPump(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			conn.Close()
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, initial *domain.BatchState, updates <-chan *domain.BatchState, watcher *observer.StateWatcher) {
	defer func() {
		watcher.Stop()
		conn.Close()
	}()

	if err := writeView(conn, initial); err != nil {
		return
	}

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case state, ok := <-updates:
			if !ok {
				return
			}
			if err := writeView(conn, state); err != nil {
				return
			}
			if state.IsTerminal() {
				// Final snapshot delivered, nothing more will come
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "batch finished"),
					time.Now().Add(writeWait))
				return
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func writeView(conn *websocket.Conn, state *domain.BatchState) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(BatchView{State: state, Summary: report.Summarize(state)})
}
