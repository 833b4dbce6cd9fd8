// Package gateway accepts websocket connections, decodes client commands and
// forwards them to the arena.
package gateway

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AIEngineerX/BagsWorld-sub012/internal/arena"
	"github.com/AIEngineerX/BagsWorld-sub012/internal/protocol"
)

// ReputationSource resolves a handle's reputation when the client omits it.
type ReputationSource interface {
	Reputation(ctx context.Context, handle string) (int, error)
}

type Options struct {
	DefaultReputation int
	SendBuffer        int
	Keepalive         time.Duration // pong deadline is twice this
	WriteWait         time.Duration
	LookupTimeout     time.Duration
	MaxMessageBytes   int64
}

type Gateway struct {
	arena *arena.Arena
	hub   *arena.Hub
	rep   ReputationSource
	opts  Options

	upgrader websocket.Upgrader
}

func New(a *arena.Arena, h *arena.Hub, rep ReputationSource, opts Options) *Gateway {
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = 64
	}
	if opts.Keepalive <= 0 {
		opts.Keepalive = 30 * time.Second
	}
	if opts.WriteWait <= 0 {
		opts.WriteWait = 10 * time.Second
	}
	if opts.LookupTimeout <= 0 {
		opts.LookupTimeout = 3 * time.Second
	}
	if opts.MaxMessageBytes <= 0 {
		opts.MaxMessageBytes = 4096
	}
	return &Gateway{
		arena: a,
		hub:   h,
		rep:   rep,
		opts:  opts,
		// Spectating is public; any origin may connect.
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: upgrade failed from=%s: %v", r.RemoteAddr, err)
		return
	}
	codec := protocol.ByName(r.URL.Query().Get("codec"))
	c := newClient(uuid.NewString(), ws, codec, g.opts.SendBuffer, g.opts.WriteWait)
	log.Printf("ws: connect id=%s codec=%s from=%s", c.id, codec.Name(), r.RemoteAddr)

	g.hub.Register(c)
	go c.writePump()
	if !g.arena.Post(arena.Connect{ConnID: c.id}) {
		g.hub.Unregister(c.id)
		_ = c.Close()
		return
	}
	g.readLoop(r.Context(), c)
}

func (g *Gateway) readLoop(ctx context.Context, c *client) {
	defer func() {
		g.hub.Unregister(c.id)
		g.arena.Post(arena.Disconnect{ConnID: c.id})
		_ = c.Close()
		log.Printf("ws: closed id=%s", c.id)
	}()

	pongWait := 2 * g.opts.Keepalive
	c.ws.SetReadLimit(g.opts.MaxMessageBytes)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		frameType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("ws: read error id=%s: %v", c.id, err)
			}
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))

		cmd, err := protocol.ForFrame(frameType).Decode(data)
		if err != nil {
			g.reject(c, err)
			continue
		}
		switch cmd := cmd.(type) {
		case protocol.JoinQueue:
			rep := g.resolveReputation(ctx, cmd)
			g.arena.Post(arena.Join{ConnID: c.id, Handle: cmd.Handle, Reputation: rep})
		case protocol.LeaveQueue:
			g.arena.Post(arena.Leave{ConnID: c.id})
		}
	}
}

// resolveReputation runs on the connection's own goroutine so a slow lookup only
// delays this client.
func (g *Gateway) resolveReputation(ctx context.Context, cmd protocol.JoinQueue) int {
	if cmd.Reputation != nil {
		return *cmd.Reputation
	}
	if g.rep == nil {
		return g.opts.DefaultReputation
	}
	ctx, cancel := context.WithTimeout(ctx, g.opts.LookupTimeout)
	defer cancel()
	rep, err := g.rep.Reputation(ctx, cmd.Handle)
	if err != nil {
		log.Printf("ws: reputation lookup for %q failed, using default: %v", cmd.Handle, err)
		return g.opts.DefaultReputation
	}
	return rep
}

func (g *Gateway) reject(c *client, err error) {
	b, encErr := c.codec.Encode(protocol.Error(err))
	if encErr != nil {
		log.Printf("ws: encode error reply id=%s: %v", c.id, encErr)
		return
	}
	if sendErr := c.Send(b); sendErr != nil {
		log.Printf("ws: error reply dropped id=%s: %v", c.id, sendErr)
	}
}
