package arena

import (
	"context"
	"log"
	"sync"

	"github.com/AIEngineerX/BagsWorld-sub012/internal/models"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/protocol"
)

// Conn is the hub's view of one client connection. Send must not block: it
// enqueues the frame or fails.
type Conn interface {
	ID() string
	Codec() protocol.Codec
	Send(frame []byte) error
	Open() bool
	Ping() error
	Close() error
}

// Update is one item on the arena -> hub channel. Exactly one field is set.
type Update struct {
	Match   *models.Match // snapshot to broadcast
	Queue   *QueueUpdate  // queue changed
	Watch   *WatchChange  // re-tag a connection
	Direct  *Direct       // reply to a single connection
	Release int64         // match evicted; drop its watchers' tags
}

type QueueUpdate struct {
	Entries   []models.QueueEntry
	Positions map[string]int // connID -> 1-based position
}

type WatchChange struct {
	ConnID string
	Set    WatchSet
}

type Direct struct {
	ConnID string
	Msg    models.WsMsg
}

type subscriber struct {
	conn  Conn
	watch WatchSet
}

// Hub fans arena output out to connections. The subscriber table is guarded by a
// short mutex; sends happen outside it.
type Hub struct {
	mu   sync.Mutex
	subs map[string]*subscriber

	updates chan Update
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Hub{subs: make(map[string]*subscriber), updates: make(chan Update, buffer)}
}

// Updates is the channel the arena publishes on.
func (h *Hub) Updates() chan<- Update { return h.updates }

func (h *Hub) Register(c Conn) {
	h.mu.Lock()
	h.subs[c.ID()] = &subscriber{conn: c}
	h.mu.Unlock()
}

func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	delete(h.subs, id)
	h.mu.Unlock()
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// WatchOf returns the current tag for a connection.
func (h *Hub) WatchOf(id string) (WatchSet, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.subs[id]
	if !ok {
		return Unwatched, false
	}
	return s.watch, true
}

// Run applies updates in publish order until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-h.updates:
			h.apply(u)
		}
	}
}

// Drain applies whatever is already buffered without waiting.
func (h *Hub) Drain() {
	for {
		select {
		case u := <-h.updates:
			h.apply(u)
		default:
			return
		}
	}
}

func (h *Hub) apply(u Update) {
	switch {
	case u.Watch != nil:
		h.setWatch(u.Watch.ConnID, u.Watch.Set)
	case u.Direct != nil:
		h.SendTo(u.Direct.ConnID, u.Direct.Msg)
	case u.Queue != nil:
		h.broadcastQueue(u.Queue)
	case u.Match != nil:
		h.broadcastMatch(*u.Match)
	case u.Release != 0:
		h.release(u.Release)
	}
}

func (h *Hub) setWatch(id string, ws WatchSet) {
	h.mu.Lock()
	if s, ok := h.subs[id]; ok {
		s.watch = ws
	}
	h.mu.Unlock()
}

func (h *Hub) release(matchID int64) {
	h.mu.Lock()
	for _, s := range h.subs {
		if s.watch.Kind == WatchMatch && s.watch.MatchID == matchID {
			s.watch = Unwatched
		}
	}
	h.mu.Unlock()
}

type target struct {
	conn  Conn
	watch WatchSet
}

func (h *Hub) targets() []target {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]target, 0, len(h.subs))
	for _, s := range h.subs {
		out = append(out, target{conn: s.conn, watch: s.watch})
	}
	return out
}

// broadcastMatch sends one snapshot to every open connection, encoding it at most
// once per codec.
func (h *Hub) broadcastMatch(m models.Match) {
	frame := protocol.NewFrame(protocol.MatchMessage(m))
	for _, t := range h.targets() {
		deliver(t.conn, frame)
	}
}

// broadcastQueue sends each queued connection its own position.
func (h *Hub) broadcastQueue(q *QueueUpdate) {
	for _, t := range h.targets() {
		if t.watch.Kind != WatchQueue {
			continue
		}
		msg := protocol.QueueStatus(models.QueueStatus{
			Position: q.Positions[t.conn.ID()],
			Size:     len(q.Entries),
			Queue:    q.Entries,
		})
		deliver(t.conn, protocol.NewFrame(msg))
	}
}

// SendTo delivers msg to a single connection if it is still registered.
func (h *Hub) SendTo(id string, msg models.WsMsg) {
	h.mu.Lock()
	s, ok := h.subs[id]
	h.mu.Unlock()
	if !ok {
		return
	}
	deliver(s.conn, protocol.NewFrame(msg))
}

// Probe pings every connection; a failed ping closes it, which ends its read
// loop and runs the normal disconnect path.
func (h *Hub) Probe() {
	for _, t := range h.targets() {
		if !t.conn.Open() {
			continue
		}
		if err := t.conn.Ping(); err != nil {
			log.Printf("hub: ping failed conn=%s: %v", t.conn.ID(), err)
			_ = t.conn.Close()
		}
	}
}

func deliver(c Conn, f *protocol.Frame) {
	if !c.Open() {
		return
	}
	b, err := f.Bytes(c.Codec())
	if err != nil {
		log.Printf("hub: encode %s failed: %v", c.Codec().Name(), err)
		return
	}
	if err := c.Send(b); err != nil {
		log.Printf("hub: dropped frame conn=%s: %v", c.ID(), err)
	}
}
