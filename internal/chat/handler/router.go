package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"gochat/internal/common"
	"gochat/internal/fanout"
	"gochat/internal/media"
)

// NewRouter assembles the public HTTP surface. Everything under /api/v1
// except the health check requires a bearer token. media and hub may be nil.
func NewRouter(chat *ChatHandler, mediaServer *media.HTTPServer, hub *fanout.Hub, tokens *common.TokenManager) *mux.Router {
	root := mux.NewRouter()
	root.Use(common.RequestLogging, common.CORS)

	api := root.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/health", health).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	authed.Use(common.HTTPAuth(tokens))
	chat.RegisterRoutes(authed)
	if mediaServer != nil {
		mediaServer.RegisterRoutes(authed)
	}
	if hub != nil {
		authed.HandleFunc("/ws", hub.ServeWS).Methods(http.MethodGet)
	}

	root.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		common.WriteAppError(r.Context(), w, common.ErrNotFound)
	})
	return root
}

func health(w http.ResponseWriter, _ *http.Request) {
	common.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
