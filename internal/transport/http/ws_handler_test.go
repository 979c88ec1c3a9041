package http

import (
	"math/rand"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"trivia-battle-service/internal/app"
	"trivia-battle-service/internal/domain"
	"trivia-battle-service/internal/infra/memory"
)

func TestWebSocketMatchFlow(t *testing.T) {
	server := newGatewayServer(t)
	defer server.Close()

	alice := dial(t, server)
	defer alice.Close()

	// Alice creates the room and joins it with the player she minted.
	writeMessage(t, alice, "createRoom", map[string]any{
		"name":       "Alice",
		"levels":     []string{"easy"},
		"maxPlayers": 2,
	})
	created := readUntil(t, alice, "roomCreated")
	roomID := int(created["roomId"].(float64))
	aliceID := int(created["playerId"].(float64))
	if roomID == 0 || aliceID == 0 {
		t.Fatalf("unexpected creation payload %v", created)
	}

	writeMessage(t, alice, "joinRoom", map[string]any{"roomId": roomID})
	readUntil(t, alice, "joined")

	bob := dial(t, server)
	defer bob.Close()
	writeMessage(t, bob, "joinRoom", map[string]any{"roomId": roomID, "name": "Bob"})
	joined := readUntil(t, bob, "joined")
	bobID := int(joined["playerId"].(float64))

	writeMessage(t, alice, "startMatch", map[string]any{"roomId": roomID})
	readUntil(t, alice, "matchStarted")

	question := readUntil(t, alice, "newQuestion")
	if int(question["currentPlayerId"].(float64)) != aliceID {
		t.Fatalf("expected Alice to hold the first turn, got %v", question["currentPlayerId"])
	}
	if _, reveals := question["correctIndex"]; reveals {
		t.Fatalf("new question must not reveal the correct index")
	}

	// Correct option in the fixture is 1; Alice answers 0 and takes damage.
	writeMessage(t, alice, "answer", map[string]any{
		"roomId":      roomID,
		"playerId":    aliceID,
		"optionIndex": 0,
	})
	outcome := readUntil(t, alice, "answerOutcome")
	if outcome["correct"].(bool) {
		t.Fatalf("expected incorrect answer, got %v", outcome)
	}
	if int(outcome["remainingHealth"].(float64)) != 90 {
		t.Fatalf("expected health 90, got %v", outcome["remainingHealth"])
	}

	// Bob observes the revealed result and then receives his own question.
	result := readUntil(t, bob, "answerResult")
	if int(result["correctIndex"].(float64)) != 1 {
		t.Fatalf("answer result must reveal the correct index, got %v", result)
	}
	next := readUntil(t, bob, "newQuestion")
	if int(next["currentPlayerId"].(float64)) != bobID {
		t.Fatalf("expected the turn to pass to Bob, got %v", next["currentPlayerId"])
	}
}

func TestWebSocketRejectsOutOfTurnAnswer(t *testing.T) {
	server := newGatewayServer(t)
	defer server.Close()

	alice := dial(t, server)
	defer alice.Close()
	writeMessage(t, alice, "createRoom", map[string]any{
		"name":       "Alice",
		"levels":     []string{"easy"},
		"maxPlayers": 2,
	})
	created := readUntil(t, alice, "roomCreated")
	roomID := int(created["roomId"].(float64))
	writeMessage(t, alice, "joinRoom", map[string]any{"roomId": roomID})
	readUntil(t, alice, "joined")

	bob := dial(t, server)
	defer bob.Close()
	writeMessage(t, bob, "joinRoom", map[string]any{"roomId": roomID, "name": "Bob"})
	joined := readUntil(t, bob, "joined")
	bobID := int(joined["playerId"].(float64))

	writeMessage(t, alice, "startMatch", map[string]any{"roomId": roomID})
	readUntil(t, bob, "newQuestion")

	writeMessage(t, bob, "answer", map[string]any{
		"roomId":      roomID,
		"playerId":    bobID,
		"optionIndex": 1,
	})
	errMsg := readUntil(t, bob, "error")
	if errMsg["message"] == "" {
		t.Fatalf("expected an error message for an out-of-turn answer")
	}
}

func newGatewayServer(t *testing.T) *httptest.Server {
	t.Helper()
	bank := memory.NewQuestionBankWithRand(
		memory.NewStaticQuestionLoader(gatewayQuestions()), time.Minute, rand.New(rand.NewSource(1)))
	service := app.NewGameServiceWithOptions(bank, nil, rand.New(rand.NewSource(1)), 5*time.Millisecond)
	return httptest.NewServer(NewRouter(service, NewWSHandler(service)))
}

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func writeMessage(t *testing.T, conn *websocket.Conn, messageType string, payload any) {
	t.Helper()
	if err := conn.WriteJSON(map[string]any{"type": messageType, "payload": payload}); err != nil {
		t.Fatalf("write %s: %v", messageType, err)
	}
}

// readUntil drains the socket until a message of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, messageType string) map[string]any {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var msg struct {
			Type    string         `json:"type"`
			Payload map[string]any `json:"payload"`
		}
		_ = conn.SetReadDeadline(deadline)
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read while waiting for %s: %v", messageType, err)
		}
		if msg.Type == messageType {
			return msg.Payload
		}
	}
	t.Fatalf("timed out waiting for %s", messageType)
	return nil
}

func gatewayQuestions() []domain.Question {
	return []domain.Question{
		{ID: 1, Text: "What is 2 + 2?", Options: []string{"3", "4", "5", "6"}, CorrectIndex: 1, Level: domain.LevelEasy},
		{ID: 2, Text: "Capital of France?", Options: []string{"Lyon", "Paris", "Nice", "Lille"}, CorrectIndex: 1, Level: domain.LevelEasy},
		{ID: 3, Text: "Largest ocean?", Options: []string{"Atlantic", "Pacific", "Indian", "Arctic"}, CorrectIndex: 1, Level: domain.LevelEasy},
	}
}
