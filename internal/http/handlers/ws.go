package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// WS upgrades the connection and attaches it to the hub. The client
// receives job_update events and may push completion signals back over the
// same connection.
func (a *App) WS(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     a.originAllowed,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Warn().Err(err).Msg("ws: upgrade failed")
		return
	}
	a.Hub.ServeConn(r.Context(), conn, a.Reconciler)
}

func (a *App) originAllowed(r *http.Request) bool {
	if a.Cfg == nil || len(a.Cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range a.Cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
