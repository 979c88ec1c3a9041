package domain

import "strings"

// Level is a question difficulty bucket.
type Level string

const (
	LevelEasy   Level = "easy"
	LevelMedium Level = "medium"
	LevelHard   Level = "hard"
)

// ParseLevel normalizes a user-supplied level string.
func ParseLevel(raw string) (Level, error) {
	switch Level(strings.ToLower(strings.TrimSpace(raw))) {
	case LevelEasy:
		return LevelEasy, nil
	case LevelMedium:
		return LevelMedium, nil
	case LevelHard:
		return LevelHard, nil
	}
	return "", ErrUnknownLevel
}

// PowerUp is a one-shot special action granted for a correct answer.
type PowerUp string

const (
	PowerUpAttack PowerUp = "attack"
	PowerUpShield PowerUp = "shield"
	PowerUpHeal   PowerUp = "heal"
)

// PowerUps lists every grantable power-up; the draw indexes into it.
var PowerUps = []PowerUp{PowerUpAttack, PowerUpShield, PowerUpHeal}

// Question models an MCQ question with exactly one correct option.
// CorrectIndex never leaves the server; push payloads carry only the options.
type Question struct {
	ID           int      `json:"id"`
	Text         string   `json:"text"`
	Options      []string `json:"options"`
	CorrectIndex int      `json:"correctIndex"`
	Level        Level    `json:"level"`
}

// PlayerSnapshot is a broadcast-friendly view of a player.
type PlayerSnapshot struct {
	ID            int      `json:"id"`
	Name          string   `json:"name"`
	Health        int      `json:"health"`
	Alive         bool     `json:"alive"`
	ActivePowerUp *PowerUp `json:"activePowerUp,omitempty"`
	ActiveShield  int      `json:"activeShield"`
}

// RoomSummary is the room-browser row: enough to decide whether to join.
type RoomSummary struct {
	ID          int  `json:"id"`
	PlayerCount int  `json:"playerCount"`
	InProgress  bool `json:"inProgress"`
	IsFull      bool `json:"isFull"`
}

// RoomState is the full snapshot returned by state queries.
type RoomState struct {
	ID                int              `json:"id"`
	MinPlayers        int              `json:"minPlayers"`
	MaxPlayers        int              `json:"maxPlayers"`
	AllowedLevels     []Level          `json:"allowedLevels"`
	LeaderID          int              `json:"leaderId"`
	InProgress        bool             `json:"inProgress"`
	Round             int              `json:"round"`
	CurrentPlayerID   *int             `json:"currentPlayerId,omitempty"`
	CurrentQuestionID *int             `json:"currentQuestionId,omitempty"`
	Players           []PlayerSnapshot `json:"players"`
}

// AnswerOutcome summarizes an answer for the acting caller.
type AnswerOutcome struct {
	Correct         bool     `json:"correct"`
	Died            bool     `json:"died"`
	MatchOver       bool     `json:"matchOver"`
	RemainingHealth int      `json:"remainingHealth"`
	GrantedPowerUp  *PowerUp `json:"grantedPowerUp,omitempty"`
}
