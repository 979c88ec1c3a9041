package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"trivia-battle-service/internal/domain"
)

// QuestionBank supplies one unused question matching the allowed levels
// (from cache/backing store). Returns domain.ErrNoQuestionAvailable when the
// pool is exhausted for the given exclusions.
type QuestionBank interface {
	PickQuestion(ctx context.Context, levels []domain.Level, usedIDs map[int]struct{}) (domain.Question, error)
}

// Presence marks room liveness in an external store (Redis, etc). Calls are
// best-effort; failures never affect room state.
type Presence interface {
	RoomOpened(roomID int)
	RoomClosed(roomID int)
}

// NoopPresence is used when no external presence store is configured.
type NoopPresence struct{}

func (NoopPresence) RoomOpened(int) {}
func (NoopPresence) RoomClosed(int) {}

const firstRoomID = 1000

// GameService owns the room registry and the per-room match state machines.
type GameService struct {
	bank      QuestionBank
	presence  Presence
	turnDelay time.Duration

	roomSeq   atomic.Int64
	playerSeq atomic.Int64

	rndMu sync.Mutex
	rnd   *rand.Rand

	mu    sync.RWMutex
	rooms map[int]*Room
}

func NewGameService(bank QuestionBank, presence Presence) *GameService {
	return NewGameServiceWithOptions(bank, presence,
		rand.New(rand.NewSource(time.Now().UnixNano())), 2*time.Second)
}

// NewGameServiceWithOptions allows deterministic randomness and a short turn
// delay in tests.
func NewGameServiceWithOptions(bank QuestionBank, presence Presence, rnd *rand.Rand, turnDelay time.Duration) *GameService {
	if presence == nil {
		presence = NoopPresence{}
	}
	s := &GameService{
		bank:      bank,
		presence:  presence,
		turnDelay: turnDelay,
		rnd:       rnd,
		rooms:     make(map[int]*Room),
	}
	s.roomSeq.Store(firstRoomID - 1)
	return s
}

// CreatePlayer mints a fresh player. Ids are global, not per-room; rejoining
// always issues a new identity.
func (s *GameService) CreatePlayer(name string) (domain.PlayerSnapshot, error) {
	if name == "" {
		return domain.PlayerSnapshot{}, fmt.Errorf("%w: player name must not be empty", domain.ErrInvalidArgument)
	}
	return domain.PlayerSnapshot{
		ID:     int(s.playerSeq.Add(1)),
		Name:   name,
		Health: startingHealth,
		Alive:  true,
	}, nil
}

// CreateRoom registers an empty room led by leaderID. The leader joins like
// any other player afterwards.
func (s *GameService) CreateRoom(levels []domain.Level, maxPlayers, leaderID int) (domain.RoomState, error) {
	if maxPlayers < 2 || maxPlayers > 5 {
		return domain.RoomState{}, fmt.Errorf("%w: max players must be between 2 and 5", domain.ErrInvalidArgument)
	}
	if len(levels) == 0 {
		return domain.RoomState{}, fmt.Errorf("%w: at least one difficulty level is required", domain.ErrInvalidArgument)
	}

	room := newRoom(int(s.roomSeq.Add(1)), maxPlayers, leaderID, levels)

	s.mu.Lock()
	s.rooms[room.id] = room
	s.mu.Unlock()

	s.presence.RoomOpened(room.id)

	room.mu.Lock()
	defer room.mu.Unlock()
	return room.stateLocked(), nil
}

func (s *GameService) getRoom(roomID int) (*Room, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[roomID]
	return room, ok
}

func (s *GameService) removeRoom(roomID int) {
	s.mu.Lock()
	delete(s.rooms, roomID)
	s.mu.Unlock()
	s.presence.RoomClosed(roomID)
}

// Join appends a player to the room and pushes the updated roster.
func (s *GameService) Join(roomID int, player domain.PlayerSnapshot) error {
	room, ok := s.getRoom(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if room.isFullLocked() {
		return domain.ErrRoomFull
	}

	room.players = append(room.players, &playerState{
		id:     player.ID,
		name:   player.Name,
		health: startingHealth,
		alive:  true,
	})
	room.broadcastLocked(room.rosterLocked())
	return nil
}

// Leave removes a player, handling leadership transfer, forfeit wins, room
// teardown, and mid-turn departures. Returns a human-readable message.
func (s *GameService) Leave(ctx context.Context, roomID, playerID int) (string, error) {
	room, ok := s.getRoom(roomID)
	if !ok {
		return "", domain.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	leaving := room.findPlayerLocked(playerID)
	if leaving == nil {
		return "", domain.ErrPlayerNotFound
	}

	for i, p := range room.players {
		if p.id == playerID {
			room.players = append(room.players[:i], room.players[i+1:]...)
			break
		}
	}
	if room.leaderID == playerID && len(room.players) > 0 {
		room.leaderID = room.players[0].id
	}

	room.broadcastLocked(domain.PlayerLeft{PlayerID: playerID})

	if len(room.players) == 0 {
		room.inProgress = false
		room.turnEpoch++
		room.closeSubscribersLocked()
		s.removeRoom(roomID)
		return "room closed - all players left", nil
	}

	if room.inProgress && len(room.players) == 1 {
		winner := room.players[0]
		room.inProgress = false
		room.currentQuestion = nil
		room.turnEpoch++
		room.broadcastLocked(domain.GameOver{
			WinnerID:   winner.id,
			WinnerName: winner.name,
			Reason:     "opponents left",
		})
		return fmt.Sprintf("%s wins - opponents left", winner.name), nil
	}

	room.broadcastLocked(room.rosterLocked())

	// If the departing player held the turn, hand it to the next living
	// player immediately; the scheduled question for the old turn is stale.
	if room.inProgress && room.currentPlayerID == playerID {
		room.turnEpoch++
		living := room.livingPlayersLocked()
		if len(living) > 0 {
			room.currentPlayerID = living[0].id
			if err := s.issueQuestionLocked(ctx, room); err != nil {
				log.Printf("room %d: issue question after departure: %v", room.id, err)
			}
		}
	}
	return "left room", nil
}

// Start transitions the room into play and poses the first question to the
// first joined player.
func (s *GameService) Start(ctx context.Context, roomID int) error {
	room, ok := s.getRoom(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.canStartLocked() {
		return domain.ErrNotEnoughPlayers
	}

	room.inProgress = true
	room.round = 1
	room.currentPlayerID = room.players[0].id
	room.turnEpoch++

	room.broadcastLocked(domain.MatchStarted{
		RoomID:          room.id,
		Round:           room.round,
		CurrentPlayerID: room.currentPlayerID,
	})
	room.broadcastLocked(room.rosterLocked())

	if err := s.issueQuestionLocked(ctx, room); err != nil {
		log.Printf("room %d: issue first question: %v", room.id, err)
	}
	return nil
}

// issueQuestionLocked asks the bank for an unused question, records it, and
// pushes it to the room. Pool exhaustion leaves the room in progress with no
// pending question; the leader can abandon by leaving.
func (s *GameService) issueQuestionLocked(ctx context.Context, room *Room) error {
	if !room.inProgress {
		return nil
	}

	question, err := s.bank.PickQuestion(ctx, room.allowedLevels, room.usedQuestionIDs)
	if err != nil {
		room.currentQuestion = nil
		if errors.Is(err, domain.ErrNoQuestionAvailable) {
			return fmt.Errorf("room %d stalled: %w", room.id, err)
		}
		return err
	}

	room.currentQuestion = &question
	room.usedQuestionIDs[question.ID] = struct{}{}

	room.broadcastLocked(domain.NewQuestion{
		QuestionID:      question.ID,
		Text:            question.Text,
		Options:         question.Options,
		Level:           question.Level,
		CurrentPlayerID: room.currentPlayerID,
	})
	return nil
}

func (s *GameService) drawPowerUp() domain.PowerUp {
	s.rndMu.Lock()
	defer s.rndMu.Unlock()
	return domain.PowerUps[s.rnd.Intn(len(domain.PowerUps))]
}

// Answer resolves the current turn's answer. optionIndex -1 is the timeout
// sentinel and always counts as incorrect.
func (s *GameService) Answer(ctx context.Context, roomID, playerID, optionIndex int) (domain.AnswerOutcome, error) {
	room, ok := s.getRoom(roomID)
	if !ok {
		return domain.AnswerOutcome{}, domain.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.inProgress {
		return domain.AnswerOutcome{}, domain.ErrMatchNotInProgress
	}
	player := room.findPlayerLocked(playerID)
	if player == nil {
		return domain.AnswerOutcome{}, domain.ErrPlayerNotFound
	}
	if !player.alive {
		return domain.AnswerOutcome{}, domain.ErrPlayerDead
	}
	if room.currentPlayerID != playerID {
		return domain.AnswerOutcome{}, domain.ErrNotYourTurn
	}
	if room.currentQuestion == nil {
		return domain.AnswerOutcome{}, domain.ErrNoActiveQuestion
	}

	question := room.currentQuestion
	room.currentQuestion = nil

	outcome := domain.AnswerOutcome{
		Correct: optionIndex >= 0 && optionIndex == question.CorrectIndex,
	}
	if outcome.Correct {
		granted := s.drawPowerUp()
		player.activePowerUp = &granted
		outcome.GrantedPowerUp = &granted
	} else {
		outcome.Died = room.applyDamageLocked(player, wrongAnswerDamage)
	}
	outcome.RemainingHealth = player.health

	room.broadcastLocked(domain.AnswerResult{
		PlayerID:        player.id,
		PlayerName:      player.name,
		Correct:         outcome.Correct,
		CorrectIndex:    question.CorrectIndex,
		RemainingHealth: player.health,
		Died:            outcome.Died,
		GrantedPowerUp:  outcome.GrantedPowerUp,
	})
	room.broadcastLocked(room.rosterLocked())

	if s.finishIfDecidedLocked(room) {
		outcome.MatchOver = true
	} else if !outcome.Correct {
		// A correct answer keeps the turn until the power-up is applied.
		s.advanceTurnLocked(room)
	}
	return outcome, nil
}

// ApplyPowerUp resolves the held power-up, consumes it, and passes the turn.
// This is the only path that advances the turn after a correct answer.
func (s *GameService) ApplyPowerUp(ctx context.Context, roomID, playerID int, powerUp domain.PowerUp, targetID int) error {
	room, ok := s.getRoom(roomID)
	if !ok {
		return domain.ErrRoomNotFound
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if !room.inProgress {
		return domain.ErrMatchNotInProgress
	}
	player := room.findPlayerLocked(playerID)
	if player == nil {
		return domain.ErrPlayerNotFound
	}
	if !player.alive {
		return domain.ErrPlayerDead
	}
	if player.activePowerUp == nil {
		return domain.ErrNoPowerUpHeld
	}
	if *player.activePowerUp != powerUp {
		return domain.ErrInvalidPowerUp
	}

	action := s.resolvePowerUpLocked(room, player, powerUp, targetID)
	player.activePowerUp = nil

	room.broadcastLocked(action)
	room.broadcastLocked(room.rosterLocked())

	if !s.finishIfDecidedLocked(room) {
		s.advanceTurnLocked(room)
	}
	return nil
}

func (s *GameService) resolvePowerUpLocked(room *Room, player *playerState, powerUp domain.PowerUp, targetID int) domain.PowerUpAction {
	action := domain.PowerUpAction{
		OriginID:   player.id,
		OriginName: player.name,
		PowerUp:    powerUp,
	}

	switch powerUp {
	case domain.PowerUpAttack:
		target := room.findPlayerLocked(targetID)
		if target == nil || !target.alive {
			// Invalid target: the power-up is still consumed.
			return action
		}
		shieldBefore := target.activeShield
		died := room.applyDamageLocked(target, attackDamage)
		switch {
		case shieldBefore >= attackDamage:
			action.Message = fmt.Sprintf("%s attacked %s, but the shield absorbed %d damage!", player.name, target.name, attackDamage)
		case shieldBefore > 0:
			action.Message = fmt.Sprintf("%s attacked %s. The shield absorbed %d and %d damage went through!", player.name, target.name, shieldBefore, attackDamage-shieldBefore)
		default:
			action.Message = fmt.Sprintf("%s attacked %s and dealt %d damage!", player.name, target.name, attackDamage)
		}
		if died {
			action.Message += fmt.Sprintf(" %s was defeated!", target.name)
		}
		id := target.id
		action.TargetID = &id
		action.TargetName = target.name
		action.Value = attackDamage

	case domain.PowerUpShield:
		player.activeShield += shieldValue
		action.Message = fmt.Sprintf("%s raised a shield worth %d protection!", player.name, shieldValue)
		action.Value = shieldValue

	case domain.PowerUpHeal:
		target := room.findPlayerLocked(targetID)
		if target == nil || !target.alive {
			return action
		}
		before := target.health
		target.health = before + healValue
		if target.health > maxHealth {
			target.health = maxHealth
		}
		healed := target.health - before
		if target.id == player.id {
			action.Message = fmt.Sprintf("%s healed and recovered %d health!", player.name, healed)
		} else {
			action.Message = fmt.Sprintf("%s healed %s and restored %d health!", player.name, target.name, healed)
		}
		id := target.id
		action.TargetID = &id
		action.TargetName = target.name
		action.Value = healed
	}
	return action
}

// finishIfDecidedLocked ends the match when at most one player is left alive.
func (s *GameService) finishIfDecidedLocked(room *Room) bool {
	living := room.livingPlayersLocked()
	if len(living) > 1 {
		return false
	}

	room.inProgress = false
	room.currentQuestion = nil
	room.turnEpoch++

	if len(living) == 0 {
		log.Printf("room %d: match ended with no survivors", room.id)
		return true
	}
	room.broadcastLocked(domain.GameOver{
		WinnerID:   living[0].id,
		WinnerName: living[0].name,
	})
	return true
}

// advanceTurnLocked rotates the turn among living players in join order and
// schedules the next question after the presentation delay. The delay runs off
// a timer so the room lock is never held while waiting; the epoch snapshot
// discards the issue if the turn has moved on or the match ended meanwhile.
func (s *GameService) advanceTurnLocked(room *Room) {
	living := room.livingPlayersLocked()
	if len(living) <= 1 {
		return
	}

	current := -1
	for i, p := range living {
		if p.id == room.currentPlayerID {
			current = i
			break
		}
	}
	next := (current + 1) % len(living)
	if next == 0 {
		room.round++
	}
	room.currentPlayerID = living[next].id
	room.turnEpoch++

	epoch := room.turnEpoch
	time.AfterFunc(s.turnDelay, func() {
		s.issueScheduledQuestion(room, epoch)
	})
}

func (s *GameService) issueScheduledQuestion(room *Room, epoch uint64) {
	room.mu.Lock()
	defer room.mu.Unlock()
	if !room.inProgress || room.turnEpoch != epoch {
		return
	}
	if err := s.issueQuestionLocked(context.Background(), room); err != nil {
		log.Printf("room %d: issue scheduled question: %v", room.id, err)
	}
}

// ListRooms snapshots every live room for the room browser.
func (s *GameService) ListRooms() []domain.RoomSummary {
	s.mu.RLock()
	rooms := make([]*Room, 0, len(s.rooms))
	for _, room := range s.rooms {
		rooms = append(rooms, room)
	}
	s.mu.RUnlock()

	summaries := make([]domain.RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		room.mu.Lock()
		summaries = append(summaries, room.summaryLocked())
		room.mu.Unlock()
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].ID < summaries[j].ID })
	return summaries
}

// GetPlayers returns the room's roster in join order.
func (s *GameService) GetPlayers(roomID int) ([]domain.PlayerSnapshot, error) {
	room, ok := s.getRoom(roomID)
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.snapshotPlayersLocked(), nil
}

// GetRoomState returns the full room snapshot.
func (s *GameService) GetRoomState(roomID int) (domain.RoomState, error) {
	room, ok := s.getRoom(roomID)
	if !ok {
		return domain.RoomState{}, domain.ErrRoomNotFound
	}
	room.mu.Lock()
	defer room.mu.Unlock()
	return room.stateLocked(), nil
}

// Subscribe returns a channel receiving the room's push events, starting with
// a roster snapshot. The caller must invoke the cancel function.
func (s *GameService) Subscribe(roomID int) (<-chan domain.Event, func(), error) {
	room, ok := s.getRoom(roomID)
	if !ok {
		return nil, nil, domain.ErrRoomNotFound
	}
	ch, cancel := room.subscribe()
	return ch, cancel, nil
}
