package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/repository/mysql"

	"gorm.io/gorm"
)

const (
	DefaultMessagePageSize = 50
	MaxMessagePageSize     = 100
	MaxAuthorNameRunes     = 200
)

// MessageView 对外的消息结构，时间为 ISO-8601
type MessageView struct {
	ID          string             `json:"id"`
	ChannelID   string             `json:"channelId,omitempty"`
	ThreadID    string             `json:"threadId,omitempty"`
	AuthorID    string             `json:"authorId"`
	AuthorName  string             `json:"authorName"`
	Content     string             `json:"content"`
	Attachments []model.Attachment `json:"attachments"`
	Mentions    []model.Mention    `json:"mentions"`
	EditedAt    string             `json:"editedAt,omitempty"`
	CreatedAt   string             `json:"createdAt"`
	UpdatedAt   string             `json:"updatedAt"`
}

type MessagePage struct {
	Items    []MessageView `json:"items"`
	Total    int64         `json:"total"`
	Page     int           `json:"page"`
	PageSize int           `json:"pageSize"`
	HasMore  bool          `json:"hasMore"`
}

// CreateMessageInput SessionName 优先于客户端传入的 AuthorName
type CreateMessageInput struct {
	CommunityID uint64
	ChannelID   uint64
	ThreadID    uint64
	AuthorID    uint64
	SessionName string
	AuthorName  string
	Content     string
	Attachments []model.Attachment
	Mentions    []model.Mention
}

type EditMessageInput struct {
	ChannelID uint64
	MessageID uint64
	AuthorID  uint64
	Content   string
}

// MessageService 不做鉴权，调用方先过 AccessService
type MessageService struct {
	messages *mysql.MessageRepository
	channels *mysql.ChannelRepository
	threads  *mysql.ThreadRepository
}

func NewMessageService(db *gorm.DB) *MessageService {
	return &MessageService{
		messages: &mysql.MessageRepository{DB: db},
		channels: &mysql.ChannelRepository{DB: db},
		threads:  &mysql.ThreadRepository{DB: db},
	}
}

// CreateMessage 写入频道消息
func (s *MessageService) CreateMessage(ctx context.Context, in CreateMessageInput) (*MessageView, error) {
	name, err := authorName(in)
	if err != nil {
		return nil, err
	}
	ch, err := s.channelInCommunity(ctx, in.CommunityID, in.ChannelID)
	if err != nil {
		return nil, err
	}
	msg, err := buildMessage(in, name)
	if err != nil {
		return nil, err
	}
	msg.ChannelID = &ch.ID
	return s.create(ctx, msg)
}

// CreateThreadMessage 写入帖子回复，帖子必须属于 ChannelID
func (s *MessageService) CreateThreadMessage(ctx context.Context, in CreateMessageInput) (*MessageView, error) {
	name, err := authorName(in)
	if err != nil {
		return nil, err
	}
	th, err := s.threadInChannel(ctx, in.ChannelID, in.ThreadID)
	if err != nil {
		return nil, err
	}
	msg, err := buildMessage(in, name)
	if err != nil {
		return nil, err
	}
	msg.ThreadID = &th.ID
	return s.create(ctx, msg)
}

func (s *MessageService) create(ctx context.Context, msg *model.Message) (*MessageView, error) {
	if err := s.messages.Create(ctx, msg); err != nil {
		if errors.Is(err, model.ErrMessageScope) || errors.Is(err, model.ErrContentTooLong) {
			return nil, pkg.Validation("%s", err.Error())
		}
		return nil, err
	}
	v := ToMessageView(msg)
	return &v, nil
}

// ListMessages 存储层按新到旧分页，返回前反转为旧到新
func (s *MessageService) ListMessages(ctx context.Context, communityID, channelID uint64, page, pageSize int) (*MessagePage, error) {
	ch, err := s.channelInCommunity(ctx, communityID, channelID)
	if err != nil {
		return nil, err
	}
	page, pageSize = pkg.ClampPage(page, pageSize, DefaultMessagePageSize, MaxMessagePageSize)
	list, total, err := s.messages.ListByChannel(ctx, ch.ID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	return newMessagePage(list, total, page, pageSize), nil
}

func (s *MessageService) ListThreadMessages(ctx context.Context, channelID, threadID uint64, page, pageSize int) (*MessagePage, error) {
	th, err := s.threadInChannel(ctx, channelID, threadID)
	if err != nil {
		return nil, err
	}
	page, pageSize = pkg.ClampPage(page, pageSize, DefaultMessagePageSize, MaxMessagePageSize)
	list, total, err := s.messages.ListByThread(ctx, th.ID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	return newMessagePage(list, total, page, pageSize), nil
}

func (s *MessageService) GetMessage(ctx context.Context, messageID uint64) (*MessageView, error) {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return nil, notFound(err, "message not found")
	}
	v := ToMessageView(msg)
	return &v, nil
}

// EditMessage 只有作者能改，保留原创建时间并记录编辑时间
func (s *MessageService) EditMessage(ctx context.Context, in EditMessageInput) (*MessageView, error) {
	if in.AuthorID == 0 {
		return nil, pkg.Unauthenticated("unauthenticated")
	}
	msg, err := s.messages.FindByID(ctx, in.MessageID)
	if err != nil {
		return nil, notFound(err, "message not found")
	}
	if err := s.messageInChannel(ctx, msg, in.ChannelID); err != nil {
		return nil, err
	}
	if msg.AuthorID != in.AuthorID {
		return nil, pkg.Forbidden("only the author can edit this message")
	}
	content, err := normalizeContent(in.Content)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	if err := s.messages.UpdateContent(ctx, msg, content, now); err != nil {
		return nil, err
	}
	msg.Content = content
	msg.EditedAt = &now
	v := ToMessageView(msg)
	return &v, nil
}

// channelInCommunity id 非法和跨社区都报 channel not found
func (s *MessageService) channelInCommunity(ctx context.Context, communityID, channelID uint64) (*model.Channel, error) {
	if communityID == 0 || channelID == 0 {
		return nil, pkg.NotFound("channel not found")
	}
	ch, err := s.channels.FindByID(ctx, channelID)
	if err != nil {
		return nil, notFound(err, "channel not found")
	}
	if ch.CommunityID != communityID {
		return nil, pkg.NotFound("channel not found")
	}
	return ch, nil
}

func (s *MessageService) threadInChannel(ctx context.Context, channelID, threadID uint64) (*model.Thread, error) {
	if channelID == 0 || threadID == 0 {
		return nil, pkg.NotFound("thread not found")
	}
	th, err := s.threads.FindByID(ctx, threadID)
	if err != nil {
		return nil, notFound(err, "thread not found")
	}
	if th.ChannelID != channelID {
		return nil, pkg.NotFound("thread not found")
	}
	return th, nil
}

func (s *MessageService) messageInChannel(ctx context.Context, msg *model.Message, channelID uint64) error {
	switch {
	case msg.ChannelID != nil:
		if *msg.ChannelID != channelID {
			return pkg.NotFound("message not found")
		}
	case msg.ThreadID != nil:
		if _, err := s.threadInChannel(ctx, channelID, *msg.ThreadID); err != nil {
			return pkg.NotFound("message not found")
		}
	}
	return nil
}

func authorName(in CreateMessageInput) (string, error) {
	if in.AuthorID == 0 {
		return "", pkg.Unauthenticated("unauthenticated")
	}
	name := strings.TrimSpace(in.SessionName)
	if name == "" {
		name = strings.TrimSpace(in.AuthorName)
	}
	if name == "" {
		return "", pkg.Unauthenticated("author name unavailable")
	}
	if utf8.RuneCountInString(name) > MaxAuthorNameRunes {
		return "", pkg.Validation("author name must be at most %d characters", MaxAuthorNameRunes)
	}
	return name, nil
}

func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", pkg.Validation("content is required")
	}
	if utf8.RuneCountInString(content) > model.MaxContentRunes {
		return "", pkg.Validation("content must be at most %d characters", model.MaxContentRunes)
	}
	return content, nil
}

func buildMessage(in CreateMessageInput, name string) (*model.Message, error) {
	content, err := normalizeContent(in.Content)
	if err != nil {
		return nil, err
	}
	attachments := make([]model.Attachment, 0, len(in.Attachments))
	for _, a := range in.Attachments {
		a.URL = strings.TrimSpace(a.URL)
		if a.URL == "" {
			return nil, pkg.Validation("attachment url is required")
		}
		attachments = append(attachments, a)
	}
	mentions := make([]model.Mention, 0, len(in.Mentions))
	for _, m := range in.Mentions {
		if m.UserID == 0 {
			return nil, pkg.Validation("mention userId is required")
		}
		mentions = append(mentions, m)
	}
	return &model.Message{
		AuthorID:    in.AuthorID,
		AuthorName:  name,
		Content:     content,
		Attachments: attachments,
		Mentions:    mentions,
	}, nil
}

func newMessagePage(list []model.Message, total int64, page, pageSize int) *MessagePage {
	items := make([]MessageView, len(list))
	for i := range list {
		items[len(list)-1-i] = ToMessageView(&list[i])
	}
	return &MessagePage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  int64(page*pageSize) < total,
	}
}

func ToMessageView(m *model.Message) MessageView {
	v := MessageView{
		ID:          pkg.FormatID(m.ID),
		AuthorID:    pkg.FormatID(m.AuthorID),
		AuthorName:  m.AuthorName,
		Content:     m.Content,
		Attachments: m.Attachments,
		Mentions:    m.Mentions,
		CreatedAt:   pkg.FormatTime(m.CreatedAt),
		UpdatedAt:   pkg.FormatTime(m.UpdatedAt),
	}
	if m.ChannelID != nil {
		v.ChannelID = pkg.FormatID(*m.ChannelID)
	}
	if m.ThreadID != nil {
		v.ThreadID = pkg.FormatID(*m.ThreadID)
	}
	if m.EditedAt != nil {
		v.EditedAt = pkg.FormatTime(*m.EditedAt)
	}
	if v.Attachments == nil {
		v.Attachments = []model.Attachment{}
	}
	if v.Mentions == nil {
		v.Mentions = []model.Mention{}
	}
	return v
}
