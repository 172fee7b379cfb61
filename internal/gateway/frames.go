package gateway

import (
	"encoding/json"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/service"
)

// 客户端 -> 服务端
const (
	EventChannelJoin   = "channel:join"
	EventChannelLeave  = "channel:leave"
	EventMessageCreate = "message:create"
)

// 服务端 -> 客户端
const (
	EventChannelJoined  = "channel:joined"
	EventChannelLeft    = "channel:left"
	EventMessageCreated = "message:created"
	EventMessageUpdated = "message:updated"
	EventMessageAck     = "message:ack"
	EventException      = "exception"
)

// Frame 每个 websocket 文本帧承载一个 Frame
type Frame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type channelTarget struct {
	CommunityID string `json:"communityId"`
	ChannelID   string `json:"channelId"`
}

type createPayload struct {
	CommunityID string             `json:"communityId"`
	ChannelID   string             `json:"channelId"`
	Content     string             `json:"content"`
	AuthorName  string             `json:"authorName,omitempty"`
	Attachments []model.Attachment `json:"attachments,omitempty"`
	Mentions    []model.Mention    `json:"mentions,omitempty"`
}

type ErrorBody struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// Ack message:create 的回执
type Ack struct {
	Success bool                 `json:"success"`
	Message *service.MessageView `json:"message,omitempty"`
	Error   *ErrorBody           `json:"error,omitempty"`
}

// parseTarget 两个 id 都必须是合法的十进制 id
func parseTarget(communityID, channelID string) (uint64, uint64, error) {
	com, ok := pkg.ParseID(communityID)
	if !ok {
		return 0, 0, pkg.Validation("invalid community id")
	}
	ch, ok := pkg.ParseID(channelID)
	if !ok {
		return 0, 0, pkg.Validation("invalid channel id")
	}
	return com, ch, nil
}

func errorBody(err error) *ErrorBody {
	code := pkg.Code(err)
	msg := err.Error()
	if code == "INTERNAL" {
		msg = "internal error"
	}
	return &ErrorBody{Code: code, Message: msg}
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
