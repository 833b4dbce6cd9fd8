package game

import (
	"fmt"
	"math"
	"time"

	"github.com/AIEngineerX/BagsWorld-sub012/internal/engine"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/models"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/stats"
)

// Entrant is what the queue hands over when two players are paired.
type Entrant struct {
	Handle     string
	Reputation int
}

// Outcome reports what a single Step produced.
type Outcome struct {
	Hits     []models.CombatEvent // damage events appended this tick
	Finished bool                 // the match went terminal this tick
}

// NewMatch builds an active match with both fighters at their spawn points.
func NewMatch(id int64, a, b Entrant, now time.Time) *models.Match {
	m := &models.Match{
		ID:        id,
		Status:    models.StatusWaiting,
		StartedAt: now,
	}
	m.Fighters[0] = newFighter(a, SpawnLeftX, models.FacingRight)
	m.Fighters[1] = newFighter(b, SpawnRightX, models.FacingLeft)
	m.Events = append(m.Events, models.CombatEvent{
		Tick:    0,
		Kind:    models.EventMatchStart,
		Message: fmt.Sprintf("%s vs %s", a.Handle, b.Handle),
	})
	m.Status = models.StatusActive
	return m
}

func newFighter(e Entrant, x float64, facing models.Facing) models.Fighter {
	s := stats.FromReputation(e.Reputation)
	return models.Fighter{
		Handle:     e.Handle,
		Reputation: e.Reputation,
		HP:         s.HP,
		MaxHP:      s.MaxHP,
		Attack:     s.Attack,
		Defense:    s.Defense,
		Speed:      s.Speed,
		X:          x,
		Y:          SpawnY,
		State:      models.StateIdle,
		Facing:     facing,
		Sprite:     stats.SpriteVariant(e.Handle),
	}
}

// Step advances an active match by one tick. Terminal matches are left untouched.
// maxTicks > 0 cancels the match once its tick counter reaches the limit.
func Step(m *models.Match, r engine.Source, now time.Time, maxTicks int64) Outcome {
	var out Outcome
	if m.Status != models.StatusActive {
		return out
	}
	mustBeWellFormed(m)

	tick := m.Tick
	for i := range m.Fighters {
		f := &m.Fighters[i]
		o := &m.Fighters[models.Opponent(i)]

		dir := 1.0
		if o.X < f.X {
			dir = -1
		}
		if dir > 0 {
			f.Facing = models.FacingRight
		} else {
			f.Facing = models.FacingLeft
		}

		dist := math.Abs(o.X - f.X)
		if dist > AttackRange {
			f.X += dir * math.Min(MoveStep, dist-AttackRange)
			if f.State != models.StateWalking {
				m.Events = append(m.Events, models.CombatEvent{
					Tick:     tick,
					Kind:     models.EventMove,
					Attacker: f.Handle,
					Position: &models.Position{X: f.X, Y: f.Y},
				})
			}
			f.State = models.StateWalking
			continue
		}

		if tick-f.LastAttackTick < int64(f.Speed) {
			settle(f, tick)
			continue
		}

		f.State = models.StateAttacking
		f.LastAttackTick = tick
		dmg := stats.DamageFromStats(r, f.Attack, o.Defense)
		o.HP = max(o.HP-dmg, 0)
		o.State = models.StateHurt
		o.LastHurtTick = tick
		hit := models.CombatEvent{
			Tick:     tick,
			Kind:     models.EventDamage,
			Attacker: f.Handle,
			Defender: o.Handle,
			Damage:   dmg,
			Position: &models.Position{X: o.X, Y: o.Y},
		}
		m.Events = append(m.Events, hit)
		out.Hits = append(out.Hits, hit)

		if o.HP == 0 {
			o.State = models.StateKnockout
			m.Winner = f.Handle
			m.Events = append(m.Events,
				models.CombatEvent{Tick: tick, Kind: models.EventKO, Attacker: f.Handle, Defender: o.Handle},
				models.CombatEvent{Tick: tick, Kind: models.EventMatchEnd, Message: fmt.Sprintf("%s wins", f.Handle)},
			)
			m.Status = models.StatusCompleted
			end := now
			m.EndedAt = &end
			out.Finished = true
			break
		}
	}

	m.Tick++
	if !out.Finished && maxTicks > 0 && m.Tick >= maxTicks {
		out.Finished = Cancel(m, now, "tick limit reached")
	}
	return out
}

// settle drops a fighter that is in range but cooling down back to idle once its
// attack or hurt pose has played out.
func settle(f *models.Fighter, tick int64) {
	switch f.State {
	case models.StateWalking:
		f.State = models.StateIdle
	case models.StateAttacking:
		if tick-f.LastAttackTick >= AttackAnimTicks {
			f.State = models.StateIdle
		}
	case models.StateHurt:
		if tick-f.LastHurtTick >= HurtTicks {
			f.State = models.StateIdle
		}
	}
}

// Cancel moves an active match to cancelled. It reports false if the match was already terminal.
func Cancel(m *models.Match, now time.Time, reason string) bool {
	if m.Status.Terminal() {
		return false
	}
	m.Status = models.StatusCancelled
	m.Events = append(m.Events, models.CombatEvent{Tick: m.Tick, Kind: models.EventMatchEnd, Message: reason})
	end := now
	m.EndedAt = &end
	return true
}

func mustBeWellFormed(m *models.Match) {
	for i, f := range m.Fighters {
		if f.Handle == "" || f.MaxHP <= 0 || f.Speed <= 0 {
			panic(fmt.Sprintf("game: match %d has malformed fighter %d: %+v", m.ID, i, f))
		}
	}
}
