package models

import "time"

// ========================= Fighters =========================

type FighterState string

const (
	StateIdle      FighterState = "idle"
	StateWalking   FighterState = "walking"
	StateAttacking FighterState = "attacking"
	StateHurt      FighterState = "hurt"
	StateKnockout  FighterState = "knockout"
)

type Facing string

const (
	FacingLeft  Facing = "left"
	FacingRight Facing = "right"
)

// Fighter is one combatant's full in-match state. Speed is the attack cooldown in ticks.
type Fighter struct {
	Handle         string       `json:"handle"`
	Reputation     int          `json:"reputation"`
	HP             int          `json:"hp"`
	MaxHP          int          `json:"maxHp"`
	Attack         int          `json:"attack"`
	Defense        int          `json:"defense"`
	Speed          int          `json:"speed"`
	X              float64      `json:"x"`
	Y              float64      `json:"y"`
	State          FighterState `json:"state"`
	Facing         Facing       `json:"facing"`
	LastAttackTick int64        `json:"lastAttackTick"`
	LastHurtTick   int64        `json:"lastHurtTick"`
	Sprite         int          `json:"sprite"`
}

// ========================= Matches =========================

type MatchStatus string

const (
	StatusWaiting   MatchStatus = "waiting"
	StatusActive    MatchStatus = "active"
	StatusCompleted MatchStatus = "completed"
	StatusCancelled MatchStatus = "cancelled"
)

// Terminal reports whether no further mutation may happen.
func (s MatchStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

type EventKind string

const (
	EventDamage     EventKind = "damage"
	EventKO         EventKind = "ko"
	EventMove       EventKind = "move"
	EventMatchStart EventKind = "match_start"
	EventMatchEnd   EventKind = "match_end"
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CombatEvent is an immutable log line. Optional fields are omitted when empty.
type CombatEvent struct {
	Tick     int64     `json:"tick"`
	Kind     EventKind `json:"kind"`
	Attacker string    `json:"attacker,omitempty"`
	Defender string    `json:"defender,omitempty"`
	Damage   int       `json:"damage,omitempty"`
	Position *Position `json:"position,omitempty"`
	Message  string    `json:"message,omitempty"`
}

// Match is one two-fighter contest. The live value is owned by the arena goroutine;
// everything else sees copies from Snapshot.
type Match struct {
	ID        int64         `json:"id"`
	Status    MatchStatus   `json:"status"`
	Tick      int64         `json:"tick"`
	Fighters  [2]Fighter    `json:"fighters"`
	Events    []CombatEvent `json:"events"`
	Winner    string        `json:"winner,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	EndedAt   *time.Time    `json:"endedAt,omitempty"`
}

// Snapshot deep-copies the match so it can cross goroutines.
func (m *Match) Snapshot() Match {
	out := *m
	out.Events = append([]CombatEvent(nil), m.Events...)
	if m.EndedAt != nil {
		t := *m.EndedAt
		out.EndedAt = &t
	}
	return out
}

// Opponent returns the index of the other fighter.
func Opponent(i int) int { return 1 - i }

// ========================= Queue =========================

// QueueEntry is the public view of one waiting player.
type QueueEntry struct {
	Position   int    `json:"position"`
	Handle     string `json:"handle"`
	Reputation int    `json:"reputation"`
}

// QueueStatus is personalised per connection: Position is 1-based, 0 when not queued.
type QueueStatus struct {
	Position int          `json:"position"`
	Size     int          `json:"size"`
	Queue    []QueueEntry `json:"queue,omitempty"`
}

// ========================= Wire =========================

const (
	MsgConnected   = "connected"
	MsgQueueStatus = "queue_status"
	MsgMatchStart  = "match_start"
	MsgMatchUpdate = "match_update"
	MsgMatchEnd    = "match_end"
	MsgError       = "error"

	MsgJoinQueue  = "join_queue"
	MsgLeaveQueue = "leave_queue"
)

// WsMsg is the envelope for every frame in both directions.
type WsMsg struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

type ErrorData struct {
	Error string `json:"error"`
}
