package arena

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/AIEngineerX/BagsWorld-sub012/internal/engine"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/models"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/protocol"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/stats"
)

type fakeConn struct {
	id    string
	codec protocol.Codec

	mu      sync.Mutex
	frames  [][]byte
	closed  bool
	pings   int
	pingErr error
	sendErr error
}

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id, codec: protocol.JSON} }

func (f *fakeConn) ID() string            { return f.id }
func (f *fakeConn) Codec() protocol.Codec { return f.codec }

func (f *fakeConn) Send(b []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return f.sendErr
	}
	f.frames = append(f.frames, b)
	return nil
}

func (f *fakeConn) Open() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeConn) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return f.pingErr
}

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type rawMsg struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func (f *fakeConn) msgs(t *testing.T) []rawMsg {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]rawMsg, 0, len(f.frames))
	for _, b := range f.frames {
		var m rawMsg
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("bad frame %q: %v", b, err)
		}
		out = append(out, m)
	}
	return out
}

func (f *fakeConn) last(t *testing.T) rawMsg {
	t.Helper()
	ms := f.msgs(t)
	if len(ms) == 0 {
		t.Fatalf("conn %s received nothing", f.id)
	}
	return ms[len(ms)-1]
}

func (f *fakeConn) reset() {
	f.mu.Lock()
	f.frames = nil
	f.mu.Unlock()
}

func typesOf(ms []rawMsg) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.Type
	}
	return out
}

func countType(ms []rawMsg, typ string) int {
	n := 0
	for _, m := range ms {
		if m.Type == typ {
			n++
		}
	}
	return n
}

func queueStatusOf(t *testing.T, m rawMsg) models.QueueStatus {
	t.Helper()
	if m.Type != models.MsgQueueStatus {
		t.Fatalf("want queue_status, got %s", m.Type)
	}
	var qs models.QueueStatus
	if err := json.Unmarshal(m.Data, &qs); err != nil {
		t.Fatal(err)
	}
	return qs
}

func matchOf(t *testing.T, m rawMsg) models.Match {
	t.Helper()
	var mt models.Match
	if err := json.Unmarshal(m.Data, &mt); err != nil {
		t.Fatal(err)
	}
	return mt
}

type harness struct {
	arena   *Arena
	hub     *Hub
	clock   *clockwork.FakeClock
	records *stats.Records
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	if opts.Grace == 0 {
		opts.Grace = 5 * time.Second
	}
	hub := NewHub(8192)
	fc := clockwork.NewFakeClockAt(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC))
	rec := stats.NewRecords()
	a := New(opts, hub, rec, fc, engine.NewFixed(0.5))
	return &harness{arena: a, hub: hub, clock: fc, records: rec}
}

// do runs a command on the test goroutine and flushes the hub.
func (h *harness) do(cmd any) {
	h.arena.handle(cmd)
	h.hub.Drain()
}

func (h *harness) tick() {
	h.clock.Advance(100 * time.Millisecond)
	h.arena.tick()
	h.hub.Drain()
}

func (h *harness) connect(id string) *fakeConn {
	c := newFakeConn(id)
	h.hub.Register(c)
	h.do(Connect{ConnID: id})
	return c
}

func TestConnectSendsWelcomeThenQueueStatus(t *testing.T) {
	h := newHarness(t, Options{})
	c := h.connect("c1")
	ms := c.msgs(t)
	if len(ms) != 2 || ms[0].Type != models.MsgConnected || ms[1].Type != models.MsgQueueStatus {
		t.Fatalf("got %v", typesOf(ms))
	}
	if qs := queueStatusOf(t, ms[1]); qs.Position != 0 || qs.Size != 0 {
		t.Fatalf("initial status %+v", qs)
	}
}

func TestJoinReportsPosition(t *testing.T) {
	h := newHarness(t, Options{})
	c := h.connect("c1")
	c.reset()
	h.do(Join{ConnID: "c1", Handle: "alice", Reputation: 100})

	qs := queueStatusOf(t, c.last(t))
	if qs.Position != 1 || qs.Size != 1 || len(qs.Queue) != 1 || qs.Queue[0].Handle != "alice" {
		t.Fatalf("status %+v", qs)
	}
	if w, _ := h.hub.WatchOf("c1"); w != WatchingQueue() {
		t.Fatalf("watch %v", w)
	}
	if got := h.arena.Counters().Queued; got != 1 {
		t.Fatalf("queued counter %d", got)
	}
}

func TestDuplicateHandleGetsErrorReply(t *testing.T) {
	h := newHarness(t, Options{})
	h.connect("c1")
	c2 := h.connect("c2")
	h.do(Join{ConnID: "c1", Handle: "alice", Reputation: 100})
	c2.reset()
	h.do(Join{ConnID: "c2", Handle: "alice", Reputation: 100})

	last := c2.last(t)
	if last.Type != models.MsgError {
		t.Fatalf("want error, got %s", last.Type)
	}
	var e models.ErrorData
	_ = json.Unmarshal(last.Data, &e)
	if e.Error != "already queued" {
		t.Fatalf("error %q", e.Error)
	}
	if h.arena.queue.Len() != 1 {
		t.Fatalf("queue len %d", h.arena.queue.Len())
	}
}

func TestSameConnectionCannotQueueTwice(t *testing.T) {
	h := newHarness(t, Options{})
	c := h.connect("c1")
	h.do(Join{ConnID: "c1", Handle: "alice", Reputation: 100})
	c.reset()
	h.do(Join{ConnID: "c1", Handle: "bob", Reputation: 100})
	if c.last(t).Type != models.MsgError || h.arena.queue.Len() != 1 {
		t.Fatalf("second join accepted: %v", typesOf(c.msgs(t)))
	}
}

func TestPairingStartsMatchForEveryone(t *testing.T) {
	h := newHarness(t, Options{})
	c1 := h.connect("c1")
	c2 := h.connect("c2")
	spectator := h.connect("c3")
	h.do(Join{ConnID: "c1", Handle: "alice", Reputation: 100})
	spectator.reset()
	h.do(Join{ConnID: "c2", Handle: "bob", Reputation: 300})

	for _, c := range []*fakeConn{c1, c2, spectator} {
		last := c.last(t)
		if last.Type != models.MsgMatchStart {
			t.Fatalf("%s last message %s", c.id, last.Type)
		}
		m := matchOf(t, last)
		if m.ID != 1 || m.Status != models.StatusActive || m.Fighters[0].Handle != "alice" || m.Fighters[1].Handle != "bob" {
			t.Fatalf("%s got %+v", c.id, m)
		}
	}
	if countType(spectator.msgs(t), models.MsgQueueStatus) != 0 {
		t.Fatalf("spectator got queue_status: %v", typesOf(spectator.msgs(t)))
	}
	// c2 saw itself at position 2 before the pair was taken.
	var sawTwo bool
	for _, m := range c2.msgs(t) {
		if m.Type == models.MsgQueueStatus && queueStatusOf(t, m).Position == 2 {
			sawTwo = true
		}
	}
	if !sawTwo {
		t.Fatalf("c2 never saw position 2: %v", typesOf(c2.msgs(t)))
	}
	if w, _ := h.hub.WatchOf("c1"); w != WatchingMatch(1) {
		t.Fatalf("c1 watch %v", w)
	}
	if h.arena.queue.Len() != 0 {
		t.Fatal("queue not drained")
	}
	cs := h.arena.Counters()
	if cs.ActiveMatches != 1 || cs.TotalMatches != 1 {
		t.Fatalf("counters %+v", cs)
	}
}

func TestSpectatorReceivesEveryTick(t *testing.T) {
	h := newHarness(t, Options{})
	h.connect("c1")
	h.connect("c2")
	h.do(Join{ConnID: "c1", Handle: "alice", Reputation: 100})
	h.do(Join{ConnID: "c2", Handle: "bob", Reputation: 100})
	spectator := h.connect("c3")
	spectator.reset()

	for i := 0; i < 3; i++ {
		h.tick()
	}
	ms := spectator.msgs(t)
	if len(ms) != 3 || countType(ms, models.MsgMatchUpdate) != 3 {
		t.Fatalf("spectator got %v", typesOf(ms))
	}
	if tick := matchOf(t, ms[2]).Tick; tick != 3 {
		t.Fatalf("tick %d", tick)
	}
}

func TestMatchRunsToCompletionAndIsEvictedAfterGrace(t *testing.T) {
	h := newHarness(t, Options{Grace: 5 * time.Second})
	c1 := h.connect("c1")
	h.connect("c2")
	h.do(Join{ConnID: "c1", Handle: "alice", Reputation: 0})
	h.do(Join{ConnID: "c2", Handle: "bob", Reputation: 900})

	for i := 0; i < 2000 && h.arena.Counters().ActiveMatches > 0; i++ {
		h.tick()
	}
	if h.arena.Counters().ActiveMatches != 0 {
		t.Fatal("match never finished")
	}
	end := c1.last(t)
	if end.Type != models.MsgMatchEnd {
		t.Fatalf("last message %s", end.Type)
	}
	m := matchOf(t, end)
	if m.Status != models.StatusCompleted || m.Winner != "bob" {
		t.Fatalf("end state %+v", m)
	}
	if r := h.records.Get("bob"); r.Wins != 1 || r.BestHit == 0 {
		t.Fatalf("bob record %+v", r)
	}
	if r := h.records.Get("alice"); r.Losses != 1 {
		t.Fatalf("alice record %+v", r)
	}

	// Terminal matches stay untouched by later ticks.
	before := len(c1.msgs(t))
	h.tick()
	if len(c1.msgs(t)) != before {
		t.Fatal("terminal match was broadcast again")
	}

	h.do(Sweep{})
	if _, ok := h.arena.reg.Get(1); !ok {
		t.Fatal("evicted inside grace period")
	}
	h.clock.Advance(5 * time.Second)
	h.do(Sweep{})
	if _, ok := h.arena.reg.Get(1); ok {
		t.Fatal("not evicted after grace period")
	}
	if w, _ := h.hub.WatchOf("c1"); w != Unwatched {
		t.Fatalf("watch not released: %v", w)
	}
}

func TestLeaveAcknowledgesWithPositionZero(t *testing.T) {
	h := newHarness(t, Options{})
	c := h.connect("c1")
	h.do(Join{ConnID: "c1", Handle: "alice", Reputation: 100})
	c.reset()
	h.do(Leave{ConnID: "c1"})

	ms := c.msgs(t)
	if len(ms) != 1 {
		t.Fatalf("got %v", typesOf(ms))
	}
	if qs := queueStatusOf(t, ms[0]); qs.Position != 0 || qs.Size != 0 {
		t.Fatalf("ack %+v", qs)
	}
	if w, _ := h.hub.WatchOf("c1"); w != Unwatched {
		t.Fatalf("watch %v", w)
	}
}

func TestLeaveWhenNotQueued(t *testing.T) {
	h := newHarness(t, Options{})
	c := h.connect("c1")
	c.reset()
	h.do(Leave{ConnID: "c1"})
	if c.last(t).Type != models.MsgError {
		t.Fatalf("got %v", typesOf(c.msgs(t)))
	}
}

func TestDisconnectFromQueueBroadcastsOnce(t *testing.T) {
	h := newHarness(t, Options{})
	h.connect("c1")
	h.do(Join{ConnID: "c1", Handle: "alice", Reputation: 100})

	h.hub.Unregister("c1")
	h.arena.handle(Disconnect{ConnID: "c1"})

	var queueUpdates []*QueueUpdate
	for {
		select {
		case u := <-h.hub.updates:
			if u.Queue != nil {
				queueUpdates = append(queueUpdates, u.Queue)
			}
			continue
		default:
		}
		break
	}
	if len(queueUpdates) != 1 {
		t.Fatalf("want one queue broadcast, got %d", len(queueUpdates))
	}
	if len(queueUpdates[0].Entries) != 0 || h.arena.queue.Len() != 0 {
		t.Fatalf("queue not emptied: %+v", queueUpdates[0])
	}

	// A connection that was never queued produces no broadcast.
	h.arena.handle(Disconnect{ConnID: "ghost"})
	select {
	case u := <-h.hub.updates:
		t.Fatalf("unexpected update %+v", u)
	default:
	}
}

func TestDisconnectDoesNotStopMatch(t *testing.T) {
	h := newHarness(t, Options{})
	h.connect("c1")
	h.connect("c2")
	spectator := h.connect("c3")
	h.do(Join{ConnID: "c1", Handle: "alice", Reputation: 100})
	h.do(Join{ConnID: "c2", Handle: "bob", Reputation: 100})
	for _, id := range []string{"c1", "c2"} {
		h.hub.Unregister(id)
		h.do(Disconnect{ConnID: id})
	}
	spectator.reset()
	h.tick()
	if spectator.last(t).Type != models.MsgMatchUpdate {
		t.Fatalf("got %v", typesOf(spectator.msgs(t)))
	}
}

func TestOperatorCancel(t *testing.T) {
	h := newHarness(t, Options{})
	c := h.connect("c1")
	h.connect("c2")
	h.do(Join{ConnID: "c1", Handle: "alice", Reputation: 100})
	h.do(Join{ConnID: "c2", Handle: "bob", Reputation: 100})

	reply := make(chan error, 1)
	h.do(Cancel{MatchID: 1, Reply: reply})
	if err := <-reply; err != nil {
		t.Fatal(err)
	}
	m := matchOf(t, c.last(t))
	if c.last(t).Type != models.MsgMatchEnd || m.Status != models.StatusCancelled || m.Winner != "" {
		t.Fatalf("after cancel %+v", m)
	}
	if got := m.Events[len(m.Events)-1].Message; got != CancelReasonOperator {
		t.Fatalf("reason %q", got)
	}

	h.do(Cancel{MatchID: 1, Reply: reply})
	if err := <-reply; !errors.Is(err, ErrMatchOver) {
		t.Fatalf("second cancel: %v", err)
	}
	h.do(Cancel{MatchID: 42, Reply: reply})
	if err := <-reply; !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("unknown match: %v", err)
	}
	if r := h.records.Get("alice"); r.Wins != 0 || r.Losses != 0 {
		t.Fatalf("cancel recorded a result: %+v", r)
	}
}

func TestTickLimitCancels(t *testing.T) {
	h := newHarness(t, Options{MaxTicks: 5})
	c := h.connect("c1")
	h.connect("c2")
	h.do(Join{ConnID: "c1", Handle: "alice", Reputation: 100})
	h.do(Join{ConnID: "c2", Handle: "bob", Reputation: 100})
	for i := 0; i < 10; i++ {
		h.tick()
	}
	m := matchOf(t, c.last(t))
	if m.Status != models.StatusCancelled || m.Tick != 5 {
		t.Fatalf("status %s tick %d", m.Status, m.Tick)
	}
}

func TestRunProcessesCommandsAndTicks(t *testing.T) {
	hub := NewHub(0)
	fc := clockwork.NewFakeClock()
	a := New(Options{TickInterval: 100 * time.Millisecond}, hub, nil, fc, engine.NewFixed(0.5))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	go hub.Run(ctx)
	go a.Run(ctx)

	c1, c2 := newFakeConn("c1"), newFakeConn("c2")
	hub.Register(c1)
	hub.Register(c2)
	a.Post(Join{ConnID: "c1", Handle: "alice", Reputation: 100})
	a.Post(Join{ConnID: "c2", Handle: "bob", Reputation: 100})

	if err := fc.BlockUntilContext(ctx, 1); err != nil {
		t.Fatal(err)
	}
	for {
		fc.Advance(100 * time.Millisecond)
		ms, err := a.Matches(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if len(ms) == 1 && ms[0].Tick > 0 {
			break
		}
		time.Sleep(time.Millisecond)
	}

	m, err := a.Match(ctx, 1)
	if err != nil || m.Fighters[1].Handle != "bob" {
		t.Fatalf("lookup: %+v %v", m, err)
	}
	if _, err := a.Match(ctx, 99); !errors.Is(err, ErrMatchNotFound) {
		t.Fatalf("missing lookup: %v", err)
	}
	if q, err := a.Queue(ctx); err != nil || len(q) != 0 {
		t.Fatalf("queue %v %v", q, err)
	}
	if err := a.CancelMatch(ctx, 1); err != nil {
		t.Fatal(err)
	}

	cancel()
	<-a.done
	if a.Post(Sweep{}) {
		t.Fatal("post accepted after stop")
	}
	if _, err := a.Matches(context.Background()); !errors.Is(err, ErrStopped) {
		t.Fatalf("query after stop: %v", err)
	}
}
