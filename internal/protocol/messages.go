package protocol

import "github.com/AIEngineerX/BagsWorld-sub012/internal/models"

func Connected(greeting string) models.WsMsg {
	return models.WsMsg{Type: models.MsgConnected, Data: greeting}
}

func QueueStatus(qs models.QueueStatus) models.WsMsg {
	return models.WsMsg{Type: models.MsgQueueStatus, Data: qs}
}

func Error(err error) models.WsMsg {
	return models.WsMsg{Type: models.MsgError, Data: models.ErrorData{Error: err.Error()}}
}

// MatchMessage picks match_start, match_update or match_end for a snapshot.
func MatchMessage(m models.Match) models.WsMsg {
	typ := models.MsgMatchUpdate
	switch {
	case m.Status.Terminal():
		typ = models.MsgMatchEnd
	case m.Tick == 0:
		typ = models.MsgMatchStart
	}
	return models.WsMsg{Type: typ, Data: m}
}
