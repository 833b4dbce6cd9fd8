// Package arena runs the matchmaking queue, the match registry and the tick loop
// on a single goroutine. Everything else talks to it through Inbox and hears
// back through the Hub.
package arena

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AIEngineerX/BagsWorld-sub012/internal/engine"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/game"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/models"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/protocol"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/queue"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/stats"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	ErrMatchOver     = errors.New("match already finished")
	ErrStopped       = errors.New("arena stopped")
)

const CancelReasonOperator = "cancelled by operator"

// Commands accepted on Inbox.
type (
	Connect    struct{ ConnID string }
	Disconnect struct{ ConnID string }
	Join       struct {
		ConnID     string
		Handle     string
		Reputation int
	}
	Leave  struct{ ConnID string }
	Cancel struct {
		MatchID int64
		Reply   chan error
	}
	Sweep       struct{}
	ListMatches struct{ Reply chan []models.Match }
	LookupMatch struct {
		MatchID int64
		Reply   chan LookupResult
	}
	QueueSnapshot struct{ Reply chan []models.QueueEntry }
)

type LookupResult struct {
	Match models.Match
	Found bool
}

type Options struct {
	TickInterval time.Duration
	Grace        time.Duration
	MaxTicks     int64
	Greeting     string
	InboxSize    int
}

type Arena struct {
	Inbox chan any

	opts    Options
	clock   clockwork.Clock
	rng     engine.Source
	queue   *queue.Queue
	reg     *Registry
	out     chan<- Update
	records *stats.Records
	nextID  int64
	done    chan struct{}
	quit    <-chan struct{}

	queued       atomic.Int64
	activeCount  atomic.Int64
	totalMatches atomic.Int64
	ticks        atomic.Int64
}

func New(opts Options, hub *Hub, records *stats.Records, clock clockwork.Clock, rng engine.Source) *Arena {
	if opts.TickInterval <= 0 {
		opts.TickInterval = 100 * time.Millisecond
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 256
	}
	if opts.Greeting == "" {
		opts.Greeting = "welcome to the arena"
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if rng == nil {
		rng = engine.NewRNG(0)
	}
	if records == nil {
		records = stats.NewRecords()
	}
	return &Arena{
		Inbox:   make(chan any, opts.InboxSize),
		opts:    opts,
		clock:   clock,
		rng:     rng,
		queue:   queue.New(),
		reg:     NewRegistry(),
		out:     hub.Updates(),
		records: records,
		done:    make(chan struct{}),
	}
}

// Run owns all arena state until ctx is done.
func (a *Arena) Run(ctx context.Context) {
	defer close(a.done)
	a.quit = ctx.Done()
	ticker := a.clock.NewTicker(a.opts.TickInterval)
	defer ticker.Stop()
	log.Printf("arena: running tick=%s grace=%s maxTicks=%d", a.opts.TickInterval, a.opts.Grace, a.opts.MaxTicks)
	for {
		select {
		case <-ctx.Done():
			log.Printf("arena: stopped")
			return
		case cmd := <-a.Inbox:
			a.handle(cmd)
		case <-ticker.Chan():
			a.tick()
		}
	}
}

// Post hands cmd to the arena. It reports false once the arena has stopped.
func (a *Arena) Post(cmd any) bool {
	select {
	case <-a.done:
		return false
	default:
	}
	select {
	case a.Inbox <- cmd:
		return true
	case <-a.done:
		return false
	}
}

func (a *Arena) handle(cmd any) {
	switch c := cmd.(type) {
	case Connect:
		a.publish(Update{Direct: &Direct{ConnID: c.ConnID, Msg: protocol.Connected(a.opts.Greeting)}})
		a.publish(Update{Direct: &Direct{ConnID: c.ConnID, Msg: protocol.QueueStatus(a.statusFor(c.ConnID))}})
	case Join:
		a.join(c)
	case Leave:
		if _, err := a.queue.Leave(c.ConnID); err != nil {
			a.replyError(c.ConnID, err)
			return
		}
		a.publish(Update{Watch: &WatchChange{ConnID: c.ConnID, Set: Unwatched}})
		a.publishQueue()
		a.publish(Update{Direct: &Direct{ConnID: c.ConnID, Msg: protocol.QueueStatus(a.statusFor(c.ConnID))}})
	case Disconnect:
		if handle, err := a.queue.Leave(c.ConnID); err == nil {
			log.Printf("arena: %s left the queue on disconnect", handle)
			a.publishQueue()
		}
	case Cancel:
		c.Reply <- a.cancel(c.MatchID, CancelReasonOperator)
	case Sweep:
		a.sweep()
	case ListMatches:
		c.Reply <- a.reg.Snapshots()
	case LookupMatch:
		var res LookupResult
		if m, ok := a.reg.Get(c.MatchID); ok {
			res = LookupResult{Match: m.Snapshot(), Found: true}
		}
		c.Reply <- res
	case QueueSnapshot:
		c.Reply <- a.queue.Snapshot()
	default:
		log.Printf("arena: unknown command %T", cmd)
	}
}

func (a *Arena) join(c Join) {
	if a.queue.Position(c.ConnID) > 0 {
		a.replyError(c.ConnID, queue.ErrAlreadyQueued)
		return
	}
	if _, err := a.queue.Join(c.Handle, c.Reputation, c.ConnID, a.clock.Now()); err != nil {
		a.replyError(c.ConnID, err)
		return
	}
	log.Printf("arena: %s joined the queue rep=%d", c.Handle, c.Reputation)
	a.publish(Update{Watch: &WatchChange{ConnID: c.ConnID, Set: WatchingQueue()}})
	a.publishQueue()
	a.pair()
}

// pair starts matches while two or more players are waiting.
func (a *Arena) pair() {
	for {
		x, y, ok := a.queue.TryPair()
		if !ok {
			break
		}
		a.nextID++
		m := game.NewMatch(a.nextID,
			game.Entrant{Handle: x.Handle, Reputation: x.Reputation},
			game.Entrant{Handle: y.Handle, Reputation: y.Reputation},
			a.clock.Now())
		a.reg.Add(m)
		a.totalMatches.Add(1)
		log.Printf("arena: match %d started %s vs %s", m.ID, x.Handle, y.Handle)
		a.publish(Update{Watch: &WatchChange{ConnID: x.ConnID, Set: WatchingMatch(m.ID)}})
		a.publish(Update{Watch: &WatchChange{ConnID: y.ConnID, Set: WatchingMatch(m.ID)}})
		a.publishQueue()
		a.publishMatch(m)
	}
	a.refreshCounters()
}

// tick advances every active match by one step and broadcasts the result.
func (a *Arena) tick() {
	now := a.clock.Now()
	a.ticks.Add(1)
	for _, m := range a.reg.Active() {
		out := game.Step(m, a.rng, now, a.opts.MaxTicks)
		for _, h := range out.Hits {
			a.records.SaveHit(m.ID, h.Attacker, h.Defender, h.Damage, now)
		}
		if out.Finished {
			a.finished(m)
		}
		a.publishMatch(m)
	}
	a.refreshCounters()
}

func (a *Arena) finished(m *models.Match) {
	if m.Status != models.StatusCompleted {
		log.Printf("arena: match %d %s at tick %d", m.ID, m.Status, m.Tick)
		return
	}
	loser := m.Fighters[0].Handle
	if loser == m.Winner {
		loser = m.Fighters[1].Handle
	}
	a.records.SaveResult(m.Winner, loser)
	log.Printf("arena: match %d won by %s at tick %d", m.ID, m.Winner, m.Tick)
}

func (a *Arena) cancel(id int64, reason string) error {
	m, ok := a.reg.Get(id)
	if !ok {
		return ErrMatchNotFound
	}
	if !game.Cancel(m, a.clock.Now(), reason) {
		return ErrMatchOver
	}
	log.Printf("arena: match %d cancelled: %s", id, reason)
	a.publishMatch(m)
	a.refreshCounters()
	return nil
}

// sweep evicts terminal matches past their grace period.
func (a *Arena) sweep() {
	for _, id := range a.reg.Evict(a.clock.Now(), a.opts.Grace) {
		log.Printf("arena: match %d evicted", id)
		a.publish(Update{Release: id})
	}
}

func (a *Arena) statusFor(connID string) models.QueueStatus {
	return models.QueueStatus{
		Position: a.queue.Position(connID),
		Size:     a.queue.Len(),
		Queue:    a.queue.Snapshot(),
	}
}

func (a *Arena) publishQueue() {
	a.publish(Update{Queue: &QueueUpdate{Entries: a.queue.Snapshot(), Positions: a.queue.Positions()}})
	a.refreshCounters()
}

func (a *Arena) publishMatch(m *models.Match) {
	snap := m.Snapshot()
	a.publish(Update{Match: &snap})
}

func (a *Arena) replyError(connID string, err error) {
	a.publish(Update{Direct: &Direct{ConnID: connID, Msg: protocol.Error(err)}})
}

// publish only waits while the hub is behind; it gives up once the arena is stopping.
func (a *Arena) publish(u Update) {
	select {
	case a.out <- u:
	case <-a.quit:
	}
}

func (a *Arena) refreshCounters() {
	a.queued.Store(int64(a.queue.Len()))
	a.activeCount.Store(int64(len(a.reg.Active())))
}

// ========================= Queries from other goroutines =========================

type Counters struct {
	Queued        int64 `json:"queued"`
	ActiveMatches int64 `json:"activeMatches"`
	TotalMatches  int64 `json:"totalMatches"`
	Ticks         int64 `json:"ticks"`
}

func (a *Arena) Counters() Counters {
	return Counters{
		Queued:        a.queued.Load(),
		ActiveMatches: a.activeCount.Load(),
		TotalMatches:  a.totalMatches.Load(),
		Ticks:         a.ticks.Load(),
	}
}

func (a *Arena) Matches(ctx context.Context) ([]models.Match, error) {
	reply := make(chan []models.Match, 1)
	if err := a.ask(ctx, ListMatches{Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, a.done, reply)
}

func (a *Arena) Match(ctx context.Context, id int64) (models.Match, error) {
	reply := make(chan LookupResult, 1)
	if err := a.ask(ctx, LookupMatch{MatchID: id, Reply: reply}); err != nil {
		return models.Match{}, err
	}
	res, err := await(ctx, a.done, reply)
	if err != nil {
		return models.Match{}, err
	}
	if !res.Found {
		return models.Match{}, fmt.Errorf("match %d: %w", id, ErrMatchNotFound)
	}
	return res.Match, nil
}

func (a *Arena) Queue(ctx context.Context) ([]models.QueueEntry, error) {
	reply := make(chan []models.QueueEntry, 1)
	if err := a.ask(ctx, QueueSnapshot{Reply: reply}); err != nil {
		return nil, err
	}
	return await(ctx, a.done, reply)
}

// CancelMatch ends an active match on behalf of an operator.
func (a *Arena) CancelMatch(ctx context.Context, id int64) error {
	reply := make(chan error, 1)
	if err := a.ask(ctx, Cancel{MatchID: id, Reply: reply}); err != nil {
		return err
	}
	err, werr := await(ctx, a.done, reply)
	if werr != nil {
		return werr
	}
	return err
}

func (a *Arena) ask(ctx context.Context, cmd any) error {
	select {
	case <-a.done:
		return ErrStopped
	default:
	}
	select {
	case a.Inbox <- cmd:
		return nil
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func await[T any](ctx context.Context, done <-chan struct{}, ch <-chan T) (T, error) {
	var zero T
	select {
	case v := <-ch:
		return v, nil
	case <-done:
		return zero, ErrStopped
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
