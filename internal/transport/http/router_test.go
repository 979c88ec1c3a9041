package http

import (
	"encoding/json"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"trivia-battle-service/internal/app"
	"trivia-battle-service/internal/domain"
	"trivia-battle-service/internal/infra/memory"
)

func TestRoomBrowseEndpoints(t *testing.T) {
	bank := memory.NewQuestionBankWithRand(
		memory.NewStaticQuestionLoader(gatewayQuestions()), time.Minute, rand.New(rand.NewSource(1)))
	service := app.NewGameServiceWithOptions(bank, nil, rand.New(rand.NewSource(1)), 5*time.Millisecond)
	server := httptest.NewServer(NewRouter(service, NewWSHandler(service)))
	defer server.Close()

	leader, _ := service.CreatePlayer("Alice")
	state, err := service.CreateRoom([]domain.Level{domain.LevelEasy}, 3, leader.ID)
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if err := service.Join(state.ID, leader); err != nil {
		t.Fatalf("join: %v", err)
	}

	resp, err := http.Get(server.URL + "/rooms")
	if err != nil {
		t.Fatalf("list rooms: %v", err)
	}
	defer resp.Body.Close()
	var rooms []domain.RoomSummary
	if err := json.NewDecoder(resp.Body).Decode(&rooms); err != nil {
		t.Fatalf("decode rooms: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != state.ID || rooms[0].PlayerCount != 1 {
		t.Fatalf("unexpected rooms %+v", rooms)
	}

	resp2, err := http.Get(server.URL + "/rooms/" + strconv.Itoa(state.ID))
	if err != nil {
		t.Fatalf("room state: %v", err)
	}
	defer resp2.Body.Close()
	var full domain.RoomState
	if err := json.NewDecoder(resp2.Body).Decode(&full); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if full.LeaderID != leader.ID || len(full.Players) != 1 {
		t.Fatalf("unexpected state %+v", full)
	}

	resp3, err := http.Get(server.URL + "/rooms/999999")
	if err != nil {
		t.Fatalf("missing room: %v", err)
	}
	defer resp3.Body.Close()
	if resp3.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 for missing room, got %d", resp3.StatusCode)
	}
}
