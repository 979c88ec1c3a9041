package http

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/websocket"
	"trivia-battle-service/internal/app"
	"trivia-battle-service/internal/domain"
)

// WSHandler is the command gateway: it translates inbound socket messages into
// game service calls and pipes the room's push events back out.
type WSHandler struct {
	service  *app.GameService
	upgrader websocket.Upgrader
}

func NewWSHandler(service *app.GameService) *WSHandler {
	return &WSHandler{
		service: service,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type createRoomPayload struct {
	Name       string   `json:"name"`
	Levels     []string `json:"levels"`
	MaxPlayers int      `json:"maxPlayers"`
}

type roomCreatedPayload struct {
	RoomID     int            `json:"roomId"`
	LeaderID   int            `json:"leaderId"`
	PlayerID   int            `json:"playerId"`
	MinPlayers int            `json:"minPlayers"`
	MaxPlayers int            `json:"maxPlayers"`
	Levels     []domain.Level `json:"levels"`
}

type joinRoomPayload struct {
	RoomID int    `json:"roomId"`
	Name   string `json:"name"`
}

type joinedPayload struct {
	RoomID   int    `json:"roomId"`
	PlayerID int    `json:"playerId"`
	Name     string `json:"name"`
}

type roomPayload struct {
	RoomID int `json:"roomId"`
}

type answerPayload struct {
	RoomID      int `json:"roomId"`
	PlayerID    int `json:"playerId"`
	OptionIndex int `json:"optionIndex"`
}

type powerUpPayload struct {
	RoomID   int    `json:"roomId"`
	PlayerID int    `json:"playerId"`
	PowerUp  string `json:"powerUp"`
	TargetID int    `json:"targetId"`
}

type leaveRoomPayload struct {
	RoomID   int `json:"roomId"`
	PlayerID int `json:"playerId"`
}

type leftPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and wires them into the room
// commands. One socket serves one player.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	session := &wsSession{
		handler: h,
		conn:    conn,
		send:    make(chan outboundMessage[any], 16),
	}
	session.run(r.Context())
}

// wsSession tracks per-connection state: the player this socket speaks for and
// the room subscription feeding it events.
type wsSession struct {
	handler *WSHandler
	conn    *websocket.Conn
	send    chan outboundMessage[any]

	playerID      int
	playerName    string
	roomID        int
	unsubscribe   func()
	closeSignals  chan struct{}
	forwarderDone chan struct{}
}

func (s *wsSession) run(ctx context.Context) {
	s.closeSignals = make(chan struct{})
	writerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range s.send {
			if err := s.conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error: %v", err)
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := s.conn.ReadJSON(&inbound); err != nil {
			break
		}
		s.dispatch(ctx, inbound)
	}

	close(s.closeSignals)
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	if s.forwarderDone != nil {
		<-s.forwarderDone
	}

	// Dropping the socket counts as leaving the room.
	if s.roomID != 0 && s.playerID != 0 {
		if _, err := s.handler.service.Leave(context.Background(), s.roomID, s.playerID); err != nil {
			log.Printf("ws leave on close: %v", err)
		}
	}

	close(s.send)
	<-writerDone
}

func (s *wsSession) dispatch(ctx context.Context, inbound inboundMessage) {
	switch inbound.Type {
	case "createRoom":
		s.handleCreateRoom(inbound.Payload)
	case "joinRoom":
		s.handleJoinRoom(inbound.Payload)
	case "startMatch":
		s.handleStart(ctx, inbound.Payload)
	case "answer":
		s.handleAnswer(ctx, inbound.Payload)
	case "powerUp":
		s.handlePowerUp(ctx, inbound.Payload)
	case "leaveRoom":
		s.handleLeave(ctx, inbound.Payload)
	case "listRooms":
		s.reply("rooms", s.handler.service.ListRooms())
	case "roomState":
		var payload roomPayload
		if !s.decode(inbound.Payload, &payload) {
			return
		}
		state, err := s.handler.service.GetRoomState(payload.RoomID)
		if err != nil {
			s.replyError(err)
			return
		}
		s.reply("roomState", state)
	default:
		s.reply("error", errorPayload{Message: "unsupported message type"})
	}
}

func (s *wsSession) handleCreateRoom(raw json.RawMessage) {
	var payload createRoomPayload
	if !s.decode(raw, &payload) {
		return
	}

	levels := make([]domain.Level, 0, len(payload.Levels))
	for _, rawLevel := range payload.Levels {
		level, err := domain.ParseLevel(rawLevel)
		if err != nil {
			s.replyError(err)
			return
		}
		levels = append(levels, level)
	}

	player, err := s.handler.service.CreatePlayer(payload.Name)
	if err != nil {
		s.replyError(err)
		return
	}
	state, err := s.handler.service.CreateRoom(levels, payload.MaxPlayers, player.ID)
	if err != nil {
		s.replyError(err)
		return
	}

	s.playerID = player.ID
	s.playerName = player.Name

	s.reply("roomCreated", roomCreatedPayload{
		RoomID:     state.ID,
		LeaderID:   state.LeaderID,
		PlayerID:   player.ID,
		MinPlayers: state.MinPlayers,
		MaxPlayers: state.MaxPlayers,
		Levels:     state.AllowedLevels,
	})
}

func (s *wsSession) handleJoinRoom(raw json.RawMessage) {
	var payload joinRoomPayload
	if !s.decode(raw, &payload) {
		return
	}

	// A socket that just created a room joins as the player it minted;
	// everyone else gets a fresh identity.
	playerID, playerName := s.playerID, s.playerName
	if playerID == 0 {
		player, err := s.handler.service.CreatePlayer(payload.Name)
		if err != nil {
			s.replyError(err)
			return
		}
		playerID, playerName = player.ID, player.Name
	}

	if err := s.handler.service.Join(payload.RoomID, domain.PlayerSnapshot{ID: playerID, Name: playerName}); err != nil {
		s.replyError(err)
		return
	}

	events, cancel, err := s.handler.service.Subscribe(payload.RoomID)
	if err != nil {
		s.replyError(err)
		return
	}

	s.playerID = playerID
	s.playerName = playerName
	s.roomID = payload.RoomID
	s.unsubscribe = cancel
	s.forwarderDone = make(chan struct{})

	go func() {
		defer close(s.forwarderDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				select {
				case s.send <- outboundMessage[any]{Type: event.EventType(), Payload: event}:
				case <-s.closeSignals:
					return
				}
			case <-s.closeSignals:
				return
			}
		}
	}()

	s.reply("joined", joinedPayload{RoomID: payload.RoomID, PlayerID: playerID, Name: playerName})
}

func (s *wsSession) handleStart(ctx context.Context, raw json.RawMessage) {
	var payload roomPayload
	if !s.decode(raw, &payload) {
		return
	}
	if err := s.handler.service.Start(ctx, payload.RoomID); err != nil {
		s.replyError(err)
		return
	}
	s.reply("startAccepted", roomPayload{RoomID: payload.RoomID})
}

func (s *wsSession) handleAnswer(ctx context.Context, raw json.RawMessage) {
	var payload answerPayload
	if !s.decode(raw, &payload) {
		return
	}
	outcome, err := s.handler.service.Answer(ctx, payload.RoomID, payload.PlayerID, payload.OptionIndex)
	if err != nil {
		s.replyError(err)
		return
	}
	s.reply("answerOutcome", outcome)
}

func (s *wsSession) handlePowerUp(ctx context.Context, raw json.RawMessage) {
	var payload powerUpPayload
	if !s.decode(raw, &payload) {
		return
	}
	err := s.handler.service.ApplyPowerUp(ctx, payload.RoomID, payload.PlayerID, domain.PowerUp(payload.PowerUp), payload.TargetID)
	if err != nil {
		s.replyError(err)
		return
	}
	s.reply("powerUpAccepted", roomPayload{RoomID: payload.RoomID})
}

func (s *wsSession) handleLeave(ctx context.Context, raw json.RawMessage) {
	var payload leaveRoomPayload
	if !s.decode(raw, &payload) {
		return
	}
	message, err := s.handler.service.Leave(ctx, payload.RoomID, payload.PlayerID)
	if err != nil {
		s.replyError(err)
		return
	}
	if s.roomID == payload.RoomID && s.playerID == payload.PlayerID {
		if s.unsubscribe != nil {
			s.unsubscribe()
			s.unsubscribe = nil
		}
		s.roomID = 0
	}
	s.reply("left", leftPayload{Message: message})
}

func (s *wsSession) decode(raw json.RawMessage, into any) bool {
	if err := json.Unmarshal(raw, into); err != nil {
		s.reply("error", errorPayload{Message: "invalid payload"})
		return false
	}
	return true
}

func (s *wsSession) reply(messageType string, payload any) {
	s.send <- outboundMessage[any]{Type: messageType, Payload: payload}
}

func (s *wsSession) replyError(err error) {
	s.reply("error", errorPayload{Message: err.Error()})
}
