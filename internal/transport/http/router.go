package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"trivia-battle-service/internal/app"
	"trivia-battle-service/internal/domain"
)

// NewRouter exposes the read-only browse surface next to the websocket
// gateway: clients list rooms over plain HTTP before holding a socket.
func NewRouter(service *app.GameService, ws *WSHandler) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Get("/rooms", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, service.ListRooms())
	})

	r.Get("/rooms/{roomID}", func(w http.ResponseWriter, r *http.Request) {
		roomID, err := strconv.Atoi(chi.URLParam(r, "roomID"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid room id"})
			return
		}
		state, err := service.GetRoomState(roomID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, domain.ErrRoomNotFound) {
				status = http.StatusNotFound
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, state)
	})

	r.Get("/rooms/{roomID}/players", func(w http.ResponseWriter, r *http.Request) {
		roomID, err := strconv.Atoi(chi.URLParam(r, "roomID"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid room id"})
			return
		}
		players, err := service.GetPlayers(roomID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, domain.ErrRoomNotFound) {
				status = http.StatusNotFound
			}
			writeJSON(w, status, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, players)
	})

	r.Get("/ws", ws.ServeWS)

	return r
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
