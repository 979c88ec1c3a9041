package domain

import "errors"

var (
	// ErrInvalidArgument is returned for malformed creation input (bad room size, empty name or levels).
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrRoomNotFound is returned when a room id does not reference a live room.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPlayerNotFound is returned when a player id is not in the room.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrRoomFull is returned when a join would exceed the room's player limit.
	ErrRoomFull = errors.New("room is full")
	// ErrNotEnoughPlayers is returned when a start is attempted below the minimum.
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	// ErrMatchNotInProgress is returned when a turn action hits a room that is not playing.
	ErrMatchNotInProgress = errors.New("match not in progress")
	// ErrPlayerDead is returned when a dead player tries to act.
	ErrPlayerDead = errors.New("player is dead")
	// ErrNotYourTurn is returned when a player answers out of turn.
	ErrNotYourTurn = errors.New("not your turn to answer")
	// ErrNoActiveQuestion is returned when an answer arrives with no question pending.
	ErrNoActiveQuestion = errors.New("no active question")
	// ErrNoPowerUpHeld is returned when a player applies a power-up without holding one.
	ErrNoPowerUpHeld = errors.New("no power-up to use")
	// ErrInvalidPowerUp is returned when the supplied power-up does not match the held one.
	ErrInvalidPowerUp = errors.New("power-up does not match the one held")
	// ErrNoQuestionAvailable indicates the bank has no unused question for the allowed levels.
	ErrNoQuestionAvailable = errors.New("no question available")
	// ErrUnknownLevel indicates a difficulty level outside Easy/Medium/Hard.
	ErrUnknownLevel = errors.New("unknown difficulty level")
)
