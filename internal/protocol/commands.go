package protocol

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/AIEngineerX/BagsWorld-sub012/internal/models"
)

const MaxHandleLen = 32

var (
	ErrMalformed     = errors.New("malformed message")
	ErrUnknownType   = errors.New("unknown message type")
	ErrInvalidHandle = errors.New("handle must be 1-32 characters")
)

// Command is a decoded client intent. The set is closed: JoinQueue and LeaveQueue.
type Command interface {
	isCommand()
}

// JoinQueue asks to enqueue Handle. Reputation is nil when the client omitted it.
type JoinQueue struct {
	Handle     string
	Reputation *int
}

type LeaveQueue struct{}

func (JoinQueue) isCommand()  {}
func (LeaveQueue) isCommand() {}

type joinPayload struct {
	Handle     string   `json:"handle"`
	Reputation *float64 `json:"reputation"`
}

// decodeFunc unmarshals a payload into v using the codec's wire format.
type decodeFunc func(data []byte, v any) error

func buildCommand(typ string, data []byte, unmarshal decodeFunc) (Command, error) {
	switch typ {
	case models.MsgJoinQueue:
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: join_queue needs a handle", ErrMalformed)
		}
		var p joinPayload
		if err := unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		handle := strings.TrimSpace(p.Handle)
		if handle == "" || utf8.RuneCountInString(handle) > MaxHandleLen {
			return nil, ErrInvalidHandle
		}
		cmd := JoinQueue{Handle: handle}
		if p.Reputation != nil {
			rep := clampReputation(*p.Reputation)
			cmd.Reputation = &rep
		}
		return cmd, nil
	case models.MsgLeaveQueue:
		return LeaveQueue{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
	}
}

const maxReputation = 1_000_000_000

func clampReputation(v float64) int {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Floor(v)
	if v > maxReputation {
		return maxReputation
	}
	if v < -maxReputation {
		return -maxReputation
	}
	return int(v)
}
