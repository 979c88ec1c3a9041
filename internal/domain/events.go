package domain

// Event is a room-scoped push message. One concrete struct per event name;
// the transport wraps each in a {type, payload} envelope keyed by EventType.
type Event interface {
	EventType() string
}

// RosterUpdated carries the full roster after any membership or health change.
type RosterUpdated struct {
	Players    []PlayerSnapshot `json:"players"`
	LeaderID   int              `json:"leaderId"`
	MaxPlayers int              `json:"maxPlayers"`
}

func (RosterUpdated) EventType() string { return "rosterUpdated" }

// PlayerLeft announces a departure before the updated roster follows.
type PlayerLeft struct {
	PlayerID int `json:"playerId"`
}

func (PlayerLeft) EventType() string { return "playerLeft" }

// MatchStarted announces the transition into play.
type MatchStarted struct {
	RoomID          int `json:"roomId"`
	Round           int `json:"round"`
	CurrentPlayerID int `json:"currentPlayerId"`
}

func (MatchStarted) EventType() string { return "matchStarted" }

// NewQuestion poses a question to the room. The correct index is withheld.
type NewQuestion struct {
	QuestionID      int      `json:"questionId"`
	Text            string   `json:"text"`
	Options         []string `json:"options"`
	Level           Level    `json:"level"`
	CurrentPlayerID int      `json:"currentPlayerId"`
}

func (NewQuestion) EventType() string { return "newQuestion" }

// AnswerResult reveals the outcome of the current turn's answer, including the
// correct index now that the question is settled.
type AnswerResult struct {
	PlayerID        int      `json:"playerId"`
	PlayerName      string   `json:"playerName"`
	Correct         bool     `json:"correct"`
	CorrectIndex    int      `json:"correctIndex"`
	RemainingHealth int      `json:"remainingHealth"`
	Died            bool     `json:"died"`
	GrantedPowerUp  *PowerUp `json:"grantedPowerUp,omitempty"`
}

func (AnswerResult) EventType() string { return "answerResult" }

// PowerUpAction describes a resolved power-up effect.
type PowerUpAction struct {
	OriginID   int     `json:"originId"`
	OriginName string  `json:"originName"`
	TargetID   *int    `json:"targetId,omitempty"`
	TargetName string  `json:"targetName,omitempty"`
	PowerUp    PowerUp `json:"powerUp"`
	Value      int     `json:"value"`
	Message    string  `json:"message"`
}

func (PowerUpAction) EventType() string { return "powerUpAction" }

// GameOver announces the winner. Reason is set on forfeit wins.
type GameOver struct {
	WinnerID   int    `json:"winnerId"`
	WinnerName string `json:"winnerName"`
	Reason     string `json:"reason,omitempty"`
}

func (GameOver) EventType() string { return "gameOver" }
