package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/AIEngineerX/BagsWorld-sub012/internal/models"
)

// Codec turns envelopes into websocket frames and back.
type Codec interface {
	Name() string
	FrameType() int
	Encode(msg models.WsMsg) ([]byte, error)
	Decode(b []byte) (Command, error)
}

var (
	JSON    Codec = jsonCodec{}
	MsgPack Codec = msgpackCodec{}
)

// ByName resolves the ?codec= query value. Anything unknown falls back to JSON.
func ByName(name string) Codec {
	if strings.EqualFold(strings.TrimSpace(name), MsgPack.Name()) {
		return MsgPack
	}
	return JSON
}

// ForFrame picks the decoder for an inbound frame: binary frames are msgpack, the rest JSON.
func ForFrame(frameType int) Codec {
	if frameType == websocket.BinaryMessage {
		return MsgPack
	}
	return JSON
}

type jsonCodec struct{}

func (jsonCodec) Name() string   { return "json" }
func (jsonCodec) FrameType() int { return websocket.TextMessage }

func (jsonCodec) Encode(msg models.WsMsg) ([]byte, error) {
	if msg.Type == "" {
		return nil, fmt.Errorf("protocol: encode envelope with empty type")
	}
	return json.Marshal(msg)
}

func (jsonCodec) Decode(b []byte) (Command, error) {
	if len(bytes.TrimSpace(b)) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	var env struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	data := env.Data
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		data = nil
	}
	return buildCommand(env.Type, data, json.Unmarshal)
}

// msgpackCodec reuses the json struct tags so both wire formats share one schema.
type msgpackCodec struct{}

func (msgpackCodec) Name() string   { return "msgpack" }
func (msgpackCodec) FrameType() int { return websocket.BinaryMessage }

func (msgpackCodec) Encode(msg models.WsMsg) ([]byte, error) {
	if msg.Type == "" {
		return nil, fmt.Errorf("protocol: encode envelope with empty type")
	}
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	if err := enc.Encode(msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (msgpackCodec) Decode(b []byte) (Command, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty frame", ErrMalformed)
	}
	var env struct {
		Type string             `json:"type"`
		Data msgpack.RawMessage `json:"data"`
	}
	if err := msgpackUnmarshal(b, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	data := []byte(env.Data)
	if len(data) == 1 && data[0] == 0xc0 { // nil
		data = nil
	}
	return buildCommand(env.Type, data, msgpackUnmarshal)
}

func msgpackUnmarshal(b []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// Frame caches the encoded form of one outbound message per codec, so a fan-out
// marshals each message at most once per wire format. Not safe for concurrent use.
type Frame struct {
	Msg  models.WsMsg
	bufs map[string][]byte
}

func NewFrame(msg models.WsMsg) *Frame {
	return &Frame{Msg: msg}
}

func (f *Frame) Bytes(c Codec) ([]byte, error) {
	if b, ok := f.bufs[c.Name()]; ok {
		return b, nil
	}
	b, err := c.Encode(f.Msg)
	if err != nil {
		return nil, err
	}
	if f.bufs == nil {
		f.bufs = make(map[string][]byte, 2)
	}
	f.bufs[c.Name()] = b
	return b, nil
}
