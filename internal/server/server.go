// Package server is the HTTP entry point: a gorilla/mux router exposing the
// duplex judging connection and a couple of small status endpoints, mirroring
// the teacher's serve/main.go router wiring.
package server

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/judgyse/judgyse-go/internal/sessionmgr"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// New builds the router. A single Manager is shared across requests: this
// process judges one submission at a time (spec.md §5).
func New(mgr *sessionmgr.Manager) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/session", sessionHandler(mgr))
	r.HandleFunc("/status", statusHandler(mgr)).Methods("GET")
	r.HandleFunc("/is-judging", isJudgingHandler(mgr)).Methods("GET")
	return r
}

// sessionHandler upgrades to a websocket and hands the connection to the
// Manager. A second concurrent connection is refused with close code 1013
// ("try again later"), matching the singleton rule of spec.md §4.F.
func sessionHandler(mgr *sessionmgr.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Printf("server: upgrade: %v", err)
			return
		}

		if mgr.Busy() {
			closeBusy(conn)
			return
		}

		id := uuid.New()
		log.Printf("server: session %s connected", id)
		mgr.Connect(conn)
		log.Printf("server: session %s disconnected", id)
	}
}

func closeBusy(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(1013, "busy")
	_ = conn.WriteMessage(websocket.CloseMessage, msg)
	_ = conn.Close()
}

// statusHandler answers GET /status with the current SessionStatus as JSON:
// 200 when idle or busy, 503 when no connection is open (disconnect).
func statusHandler(mgr *sessionmgr.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		current := mgr.Status()
		w.Header().Set("Content-Type", "application/json")
		if current == sessionmgr.StatusDisconnect {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": string(current)})
	}
}

// isJudgingHandler is a narrower boolean probe for load balancers: it
// reports true while the Manager is busy, from command.start until the
// judge run finishes.
func isJudgingHandler(mgr *sessionmgr.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"judging": mgr.Status() == sessionmgr.StatusBusy})
	}
}
