package arena

import "fmt"

type WatchKind int

const (
	WatchNone  WatchKind = iota
	WatchQueue           // waiting in the queue; receives personalised queue_status
	WatchMatch           // participant in MatchID until the match is evicted
)

// WatchSet is a connection's subscription tag. Match broadcasts reach every open
// connection regardless; the tag decides queue_status delivery and lets the hub
// drop participant bookkeeping when a match is evicted.
type WatchSet struct {
	Kind    WatchKind
	MatchID int64
}

var Unwatched = WatchSet{}

func WatchingQueue() WatchSet { return WatchSet{Kind: WatchQueue} }

func WatchingMatch(id int64) WatchSet { return WatchSet{Kind: WatchMatch, MatchID: id} }

func (w WatchSet) String() string {
	switch w.Kind {
	case WatchQueue:
		return "queue"
	case WatchMatch:
		return fmt.Sprintf("match:%d", w.MatchID)
	default:
		return "none"
	}
}
