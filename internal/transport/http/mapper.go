package http

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/causalchat/server/internal/core"
	"github.com/causalchat/server/internal/proto"
)

// inboundToCommand decodes a wire frame into the command the hub should
// execute. A malformed frame or an unrecognized type is a protocol error:
// the caller logs it and drops the frame, leaving the session open — there
// is no reply on this path.
func inboundToCommand(in proto.Inbound) (*core.Command, error) {
	switch in.Type {
	case proto.TypeJoin:
		var data proto.JoinData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return nil, errors.New("malformed join frame")
		}
		return &core.Command{Kind: core.CommandJoin, DisplayName: data.Username, RoomID: data.RoomID}, nil

	case proto.TypeChat:
		var data proto.ChatData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return nil, errors.New("malformed chat frame")
		}
		cmd := &core.Command{Kind: core.CommandChat, Text: data.Text}
		if data.Metadata != nil {
			cmd.Metadata = core.Metadata{
				SimulateDelay: data.Metadata.SimulateDelay,
				DelayMS:       data.Metadata.DelayMS,
			}
		}
		return cmd, nil

	case proto.TypeTyping:
		var data proto.TypingData
		if err := json.Unmarshal(in.Data, &data); err != nil {
			return nil, errors.New("malformed typing frame")
		}
		return &core.Command{Kind: core.CommandTyping, IsTyping: data.IsTyping}, nil

	case proto.TypeRequestHistory:
		return &core.Command{Kind: core.CommandRequestHistory}, nil

	case proto.TypeGetUsers:
		return &core.Command{Kind: core.CommandGetUsers}, nil

	case proto.TypePing:
		return &core.Command{Kind: core.CommandPing}, nil

	default:
		return nil, errors.New("unrecognized frame type: " + in.Type)
	}
}

// outboundFromEvent translates a hub event into the wire frame a session
// should receive. Every case here mirrors one core.EventKind (internal/core
// event.go) to exactly one proto frame struct (internal/proto frames.go).
func outboundFromEvent(ev *core.Event) any {
	switch ev.Kind {
	case core.EventInit:
		return proto.InitFrame{
			Type:        proto.TypeInit,
			ClientID:    ev.ClientID,
			ServerTime:  ev.ServerTime.UnixMilli(),
			DefaultRoom: ev.DefaultRoom,
		}

	case core.EventJoinSuccess:
		return proto.JoinSuccessFrame{
			Type:         proto.TypeJoinSuccess,
			Room:         ev.Room,
			Users:        userEntries(ev.Users),
			MessageCount: ev.MessageCount,
		}

	case core.EventUserList:
		return proto.UserListFrame{
			Type:      proto.TypeUserList,
			Users:     userEntries(ev.Users),
			Timestamp: time.Now().UnixMilli(),
		}

	case core.EventChat:
		return chatFrame(ev.Message)

	case core.EventSystem:
		return proto.SystemFrame{
			Type:      proto.TypeSystem,
			Message:   ev.SystemText,
			Timestamp: time.Now().UnixMilli(),
			UserID:    ev.SystemUserID,
		}

	case core.EventHistory:
		messages := make([]proto.ChatFrame, 0, len(ev.Messages))
		for _, m := range ev.Messages {
			messages = append(messages, chatFrame(m))
		}
		return proto.HistoryFrame{Type: proto.TypeHistory, Messages: messages, Total: len(messages)}

	case core.EventUserTyping:
		return proto.UserTypingFrame{
			Type:     proto.TypeUserTyping,
			UserID:   ev.TypingUserID,
			Username: ev.TypingUsername,
			IsTyping: ev.IsTyping,
		}

	case core.EventMessageDelivered:
		return proto.MessageDeliveredFrame{
			Type:      proto.TypeMessageDelivered,
			MessageID: ev.Message.ID,
			Timestamp: ev.Timestamp.UnixMilli(),
		}

	case core.EventPong:
		return proto.PongFrame{Type: proto.TypePong}

	default:
		return proto.SystemFrame{
			Type:      proto.TypeSystem,
			Message:   "unmapped event",
			Timestamp: time.Now().UnixMilli(),
		}
	}
}

func chatFrame(m core.Message) proto.ChatFrame {
	return proto.ChatFrame{
		Type:        proto.TypeOutboundChat,
		ID:          m.ID,
		UserID:      m.SenderID,
		Username:    m.SenderName,
		Text:        m.Text,
		VectorClock: proto.EncodeClock(m.SentClock),
		Timestamp:   m.WallTime.UnixMilli(),
		RoomID:      m.RoomID,
		Metadata: proto.MetadataData{
			SimulateDelay: m.Metadata.SimulateDelay,
			DelayMS:       m.Metadata.DelayMS,
		},
	}
}

func userEntries(users []core.UserInfo) []proto.UserEntry {
	out := make([]proto.UserEntry, 0, len(users))
	for _, u := range users {
		out = append(out, proto.UserEntry{
			ID:          u.ID,
			Username:    u.Username,
			JoinedAt:    u.JoinedAt.UnixMilli(),
			VectorClock: proto.EncodeClock(u.VectorClock),
		})
	}
	return out
}
