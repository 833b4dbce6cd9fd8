package gateway

import (
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AIEngineerX/BagsWorld-sub012/internal/protocol"
)

var (
	ErrClosed   = errors.New("connection closed")
	ErrSlowPeer = errors.New("send buffer full")
)

// client is one websocket peer. Writes go through a single writer goroutine fed
// by a bounded buffer, so Send never blocks the caller.
type client struct {
	id        string
	ws        *websocket.Conn
	codec     protocol.Codec
	writeWait time.Duration

	send      chan []byte
	done      chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

func newClient(id string, ws *websocket.Conn, codec protocol.Codec, buffer int, writeWait time.Duration) *client {
	return &client{
		id:        id,
		ws:        ws,
		codec:     codec,
		writeWait: writeWait,
		send:      make(chan []byte, buffer),
		done:      make(chan struct{}),
	}
}

func (c *client) ID() string            { return c.id }
func (c *client) Codec() protocol.Codec { return c.codec }
func (c *client) Open() bool            { return !c.closed.Load() }

func (c *client) Send(frame []byte) error {
	if c.closed.Load() {
		return ErrClosed
	}
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrSlowPeer
	}
}

// Ping writes a control frame directly; gorilla allows WriteControl concurrently
// with the writer goroutine.
func (c *client) Ping() error {
	if c.closed.Load() {
		return ErrClosed
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

func (c *client) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *client) writePump() {
	for {
		select {
		case <-c.done:
			return
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := c.ws.WriteMessage(c.codec.FrameType(), frame); err != nil {
				log.Printf("ws: write error conn=%s: %v", c.id, err)
				_ = c.Close()
				return
			}
		}
	}
}
