package stats

import (
	"sync"
	"time"
)

// Record is the in-memory tally for one handle. It lives only as long as the process.
type Record struct {
	Handle  string `json:"handle"`
	Wins    int    `json:"wins"`
	Losses  int    `json:"losses"`
	BestHit int    `json:"bestHit"`
}

// TopHit is the largest single hit landed on a given UTC day.
type TopHit struct {
	Date     string `json:"date"`
	Damage   int    `json:"damage"`
	Attacker string `json:"attacker,omitempty"`
	Defender string `json:"defender,omitempty"`
	MatchID  int64  `json:"matchId,omitempty"`
	Time     int64  `json:"time,omitempty"`
}

// Records keeps per-handle results and the daily top hit.
type Records struct {
	mu       sync.Mutex
	byHandle map[string]*Record
	daily    TopHit
}

func NewRecords() *Records {
	return &Records{byHandle: make(map[string]*Record)}
}

func (r *Records) entryLocked(handle string) *Record {
	rec, ok := r.byHandle[handle]
	if !ok {
		rec = &Record{Handle: handle}
		r.byHandle[handle] = rec
	}
	return rec
}

// SaveResult credits a win and a loss.
func (r *Records) SaveResult(winner, loser string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entryLocked(winner).Wins++
	r.entryLocked(loser).Losses++
}

// SaveHit updates the attacker's best hit and the day's top hit if dmg beats them.
func (r *Records) SaveHit(matchID int64, attacker, defender string, dmg int, at time.Time) {
	if dmg <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.entryLocked(attacker)
	if dmg > rec.BestHit {
		rec.BestHit = dmg
	}
	today := at.UTC().Format("2006-01-02")
	if r.daily.Date != today {
		r.daily = TopHit{Date: today}
	}
	if dmg > r.daily.Damage {
		r.daily = TopHit{Date: today, Damage: dmg, Attacker: attacker, Defender: defender, MatchID: matchID, Time: at.Unix()}
	}
}

// Get returns a copy of the record for handle; unknown handles get a zero record.
func (r *Records) Get(handle string) Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.byHandle[handle]; ok {
		return *rec
	}
	return Record{Handle: handle}
}

// TopHitOn returns the top hit for the UTC day containing now.
func (r *Records) TopHitOn(now time.Time) TopHit {
	r.mu.Lock()
	defer r.mu.Unlock()
	today := now.UTC().Format("2006-01-02")
	if r.daily.Date != today {
		return TopHit{Date: today}
	}
	return r.daily
}

// ResetDaily clears the daily top hit. Scheduled at UTC midnight.
func (r *Records) ResetDaily() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.daily = TopHit{}
}
