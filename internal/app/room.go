package app

import (
	"sync"

	"trivia-battle-service/internal/domain"
)

const (
	minPlayers        = 2
	startingHealth    = 100
	maxHealth         = 100
	wrongAnswerDamage = 10
	attackDamage      = 10
	shieldValue       = 10
	healValue         = 15
)

// playerState is the mutable in-room representation of a player. All access
// goes through the owning room's mutex.
type playerState struct {
	id            int
	name          string
	health        int
	alive         bool
	activePowerUp *domain.PowerUp
	activeShield  int
}

// Room owns one match: roster, turn state, pending question, and the
// subscriber channels its events fan out to. Every mutating operation runs
// under mu so multi-step transitions appear atomic to concurrent commands.
type Room struct {
	id            int
	maxPlayers    int
	allowedLevels []domain.Level

	mu              sync.Mutex
	leaderID        int
	players         []*playerState
	inProgress      bool
	round           int
	currentPlayerID int
	currentQuestion *domain.Question
	usedQuestionIDs map[int]struct{}

	// turnEpoch invalidates scheduled question issues: any turn change or
	// match end bumps it, and a stale timer callback discards itself.
	turnEpoch uint64

	subscribers map[chan domain.Event]struct{}
}

func newRoom(id, maxPlayers, leaderID int, levels []domain.Level) *Room {
	return &Room{
		id:              id,
		maxPlayers:      maxPlayers,
		allowedLevels:   levels,
		leaderID:        leaderID,
		round:           1,
		usedQuestionIDs: make(map[int]struct{}),
		subscribers:     make(map[chan domain.Event]struct{}),
	}
}

// ID returns the room's immutable id.
func (r *Room) ID() int { return r.id }

func (r *Room) findPlayerLocked(playerID int) *playerState {
	for _, p := range r.players {
		if p.id == playerID {
			return p
		}
	}
	return nil
}

func (r *Room) livingPlayersLocked() []*playerState {
	living := make([]*playerState, 0, len(r.players))
	for _, p := range r.players {
		if p.alive {
			living = append(living, p)
		}
	}
	return living
}

func (r *Room) isFullLocked() bool   { return len(r.players) >= r.maxPlayers }
func (r *Room) canStartLocked() bool { return len(r.players) >= minPlayers }

// applyDamageLocked routes damage through the shield first and floors health
// at zero. The alive flag is cleared exactly once and never set back; later
// heals on a dead player are rejected upstream.
func (r *Room) applyDamageLocked(p *playerState, damage int) (died bool) {
	if p.activeShield >= damage {
		p.activeShield -= damage
		return false
	}
	damage -= p.activeShield
	p.activeShield = 0
	p.health -= damage
	if p.health <= 0 {
		p.health = 0
		if p.alive {
			p.alive = false
			died = true
		}
	}
	return died
}

func (r *Room) snapshotPlayersLocked() []domain.PlayerSnapshot {
	players := make([]domain.PlayerSnapshot, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, domain.PlayerSnapshot{
			ID:            p.id,
			Name:          p.name,
			Health:        p.health,
			Alive:         p.alive,
			ActivePowerUp: p.activePowerUp,
			ActiveShield:  p.activeShield,
		})
	}
	return players
}

func (r *Room) rosterLocked() domain.RosterUpdated {
	return domain.RosterUpdated{
		Players:    r.snapshotPlayersLocked(),
		LeaderID:   r.leaderID,
		MaxPlayers: r.maxPlayers,
	}
}

func (r *Room) stateLocked() domain.RoomState {
	state := domain.RoomState{
		ID:            r.id,
		MinPlayers:    minPlayers,
		MaxPlayers:    r.maxPlayers,
		AllowedLevels: append([]domain.Level(nil), r.allowedLevels...),
		LeaderID:      r.leaderID,
		InProgress:    r.inProgress,
		Round:         r.round,
		Players:       r.snapshotPlayersLocked(),
	}
	if r.inProgress && r.currentPlayerID != 0 {
		id := r.currentPlayerID
		state.CurrentPlayerID = &id
	}
	if r.currentQuestion != nil {
		id := r.currentQuestion.ID
		state.CurrentQuestionID = &id
	}
	return state
}

func (r *Room) summaryLocked() domain.RoomSummary {
	return domain.RoomSummary{
		ID:          r.id,
		PlayerCount: len(r.players),
		InProgress:  r.inProgress,
		IsFull:      r.isFullLocked(),
	}
}

// subscribe registers an event channel for this room. The caller must invoke
// the returned cancel function to avoid leaks; the channel is also closed when
// the room is torn down.
func (r *Room) subscribe() (<-chan domain.Event, func()) {
	ch := make(chan domain.Event, 32)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	initial := r.rosterLocked()
	r.mu.Unlock()

	ch <- initial

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// broadcastLocked fans an event out to every subscriber. Per-room ordering is
// preserved because all broadcasts happen under the room mutex; a full channel
// drops its oldest entry rather than blocking the state machine.
func (r *Room) broadcastLocked(event domain.Event) {
	for ch := range r.subscribers {
		select {
		case ch <- event:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}

func (r *Room) closeSubscribersLocked() {
	for ch := range r.subscribers {
		delete(r.subscribers, ch)
		close(ch)
	}
}
