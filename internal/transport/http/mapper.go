package http

import (
	"encoding/json"

	"github.com/nexuschat/nexus-relay/internal/core"
	"github.com/nexuschat/nexus-relay/internal/proto"
)

func roomKey(ref proto.RoomRef) (core.RoomKey, *proto.Error) {
	if ref.GroupID == "" || ref.ChatID == "" {
		return core.RoomKey{}, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "group_id and chat_id are required"}
	}
	return core.RoomKey{GroupID: ref.GroupID, ChatID: ref.ChatID}, nil
}

func inboundToCommand(inbound proto.Inbound) (*core.Command, *proto.Error, error) {
	switch inbound.Type {
	case proto.InboundTypeJoinRoom, proto.InboundTypeLeaveRoom:
		var ref proto.RoomRef
		if err := json.Unmarshal(inbound.Data, &ref); err != nil {
			return nil, nil, err
		}
		key, protoErr := roomKey(ref)
		if protoErr != nil {
			return nil, protoErr, nil
		}
		kind := core.CommandJoinRoom
		if inbound.Type == proto.InboundTypeLeaveRoom {
			kind = core.CommandLeaveRoom
		}
		return &core.Command{Kind: kind, Room: key}, nil, nil

	case proto.InboundTypeSendMessage:
		var send proto.SendData
		if err := json.Unmarshal(inbound.Data, &send); err != nil {
			return nil, nil, err
		}
		key, protoErr := roomKey(send.RoomRef)
		if protoErr != nil {
			return nil, protoErr, nil
		}
		return &core.Command{
			Kind:          core.CommandSendMessage,
			Room:          key,
			Content:       send.Content,
			ReplyTo:       send.ReplyTo,
			Ref:           send.Ref,
			DisableAssist: send.DisableAI,
		}, nil, nil

	case proto.InboundTypeEditMessage:
		var edit proto.EditData
		if err := json.Unmarshal(inbound.Data, &edit); err != nil {
			return nil, nil, err
		}
		key, protoErr := roomKey(edit.RoomRef)
		if protoErr != nil {
			return nil, protoErr, nil
		}
		if edit.ID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "message id is required"}, nil
		}
		return &core.Command{Kind: core.CommandEditMessage, Room: key, MessageID: edit.ID, Content: edit.Content}, nil, nil

	case proto.InboundTypeDeleteMessage:
		var del proto.DeleteData
		if err := json.Unmarshal(inbound.Data, &del); err != nil {
			return nil, nil, err
		}
		key, protoErr := roomKey(del.RoomRef)
		if protoErr != nil {
			return nil, protoErr, nil
		}
		if del.ID == 0 {
			return nil, &proto.Error{Code: core.ErrCodeBadRequest, Msg: "message id is required"}, nil
		}
		return &core.Command{Kind: core.CommandDeleteMessage, Room: key, MessageID: del.ID}, nil, nil

	case proto.InboundTypeTypingStart, proto.InboundTypeTypingStop:
		var ref proto.RoomRef
		if err := json.Unmarshal(inbound.Data, &ref); err != nil {
			return nil, nil, err
		}
		key, protoErr := roomKey(ref)
		if protoErr != nil {
			return nil, protoErr, nil
		}
		kind := core.CommandTypingStart
		if inbound.Type == proto.InboundTypeTypingStop {
			kind = core.CommandTypingStop
		}
		return &core.Command{Kind: kind, Room: key}, nil, nil

	default:
		return nil, &proto.Error{Code: "invalid_message", Msg: "unknown message type"}, nil
	}
}

func messagePayload(key core.RoomKey, env *core.Envelope) proto.MessagePayload {
	// Edit events carry no timestamp; only emit ts when one exists.
	var ts int64
	if !env.CreatedAt.IsZero() {
		ts = env.CreatedAt.Unix()
	}
	return proto.MessagePayload{
		ID:      env.ID,
		GroupID: key.GroupID,
		ChatID:  key.ChatID,
		Role:    string(env.Role),
		Sender:  env.Author,
		Content: env.Content,
		ReplyTo: env.ReplyTo,
		Ref:     env.Ref,
		Sources: env.Sources,
		Failure: env.Failure,
		TS:      ts,
	}
}

func outboundFromEvent(event *core.Event) proto.Outbound {
	switch event.Kind {
	case core.EventNewMessage:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventNewMessage,
			Data:  messagePayload(event.Room, event.Message),
		}

	case core.EventMessageEdited:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageEdited,
			Data:  messagePayload(event.Room, event.Message),
		}

	case core.EventMessageDeleted:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventMessageDeleted,
			Data: proto.DeletedPayload{
				GroupID: event.Room.GroupID,
				ChatID:  event.Room.ChatID,
				ID:      event.Message.ID,
			},
		}

	case core.EventUserJoined, core.EventUserLeft:
		name := proto.EventUserJoined
		if event.Kind == core.EventUserLeft {
			name = proto.EventUserLeft
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: name,
			Data: proto.PresencePayload{
				GroupID: event.Room.GroupID,
				ChatID:  event.Room.ChatID,
				User:    event.User,
			},
		}

	case core.EventUserTyping:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventUserTyping,
			Data: proto.TypingPayload{
				GroupID:  event.Room.GroupID,
				ChatID:   event.Room.ChatID,
				User:     event.User,
				IsTyping: event.Typing,
			},
		}

	case core.EventRoomJoined:
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventRoomJoined,
			Data: proto.RoomJoinedPayload{
				GroupID: event.Room.GroupID,
				ChatID:  event.Room.ChatID,
				Members: event.Members,
			},
		}

	case core.EventHistory:
		messages := make([]proto.MessagePayload, 0, len(event.Messages))
		for _, env := range event.Messages {
			messages = append(messages, messagePayload(event.Room, env))
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeEvent,
			Event: proto.EventHistory,
			Data: proto.HistoryPayload{
				GroupID:  event.Room.GroupID,
				ChatID:   event.Room.ChatID,
				Messages: messages,
			},
		}

	case core.EventError:
		if event.Error == nil {
			return proto.Outbound{Type: proto.OutboundTypeError, Error: &proto.Error{Code: "unknown", Msg: "unknown error"}}
		}
		return proto.Outbound{
			Type:  proto.OutboundTypeError,
			Error: &proto.Error{Code: event.Error.Code, Msg: event.Error.Message},
		}

	default:
		return proto.Outbound{Type: proto.OutboundTypeEvent}
	}
}
