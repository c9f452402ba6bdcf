package http

import "net/http"

// NewRouter mounts the socket endpoint, the control plane and the health probe.
func NewRouter(ws *WSHandler, control *ControlHandler) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /ws", ws.ServeWS)
	mux.HandleFunc("POST /api/quizzes/{quizId}/start", control.Start)
	mux.HandleFunc("POST /api/quizzes/{quizId}/next", control.Next)
	mux.HandleFunc("POST /api/quizzes/{quizId}/end", control.End)
	mux.HandleFunc("GET /api/quizzes/{quizId}/state", control.State)
	return mux
}
