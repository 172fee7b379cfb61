package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/repository/mysql"

	"gorm.io/gorm"
)

const (
	MaxThreadTitleRunes   = 200
	DefaultThreadPageSize = 20
	MaxThreadPageSize     = 100
)

type ThreadView struct {
	ID                string `json:"id"`
	ChannelID         string `json:"channelId"`
	CreatedBy         string `json:"createdBy"`
	Title             string `json:"title"`
	Status            string `json:"status"`
	AcceptedMessageID string `json:"acceptedMessageId,omitempty"`
	CreatedAt         string `json:"createdAt"`
	UpdatedAt         string `json:"updatedAt"`
}

type ThreadPage struct {
	Items    []ThreadView `json:"items"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
	HasMore  bool         `json:"hasMore"`
}

// AcceptAnswerInput CanManage 由调用方根据频道管理权限给出
type AcceptAnswerInput struct {
	ChannelID uint64
	ThreadID  uint64
	MessageID uint64
	UserID    uint64
	CanManage bool
}

type ThreadService struct {
	threads  *mysql.ThreadRepository
	messages *mysql.MessageRepository
}

func NewThreadService(db *gorm.DB) *ThreadService {
	return &ThreadService{
		threads:  &mysql.ThreadRepository{DB: db},
		messages: &mysql.MessageRepository{DB: db},
	}
}

// CreateThread 只允许在 qa 频道发帖
func (s *ThreadService) CreateThread(ctx context.Context, ch *model.Channel, userID uint64, title string) (*ThreadView, error) {
	if userID == 0 {
		return nil, pkg.Unauthenticated("unauthenticated")
	}
	if ch.Kind != model.ChannelQA {
		return nil, pkg.Validation("threads are only available in q&a channels")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, pkg.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > MaxThreadTitleRunes {
		return nil, pkg.Validation("title must be at most %d characters", MaxThreadTitleRunes)
	}

	th := &model.Thread{
		ChannelID: ch.ID,
		CreatedBy: userID,
		Title:     title,
		Status:    model.ThreadOpen,
	}
	if err := s.threads.Create(ctx, th); err != nil {
		return nil, err
	}
	v := ToThreadView(th)
	return &v, nil
}

func (s *ThreadService) ListThreads(ctx context.Context, channelID uint64, page, pageSize int) (*ThreadPage, error) {
	page, pageSize = pkg.ClampPage(page, pageSize, DefaultThreadPageSize, MaxThreadPageSize)
	list, total, err := s.threads.ListByChannel(ctx, channelID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	items := make([]ThreadView, 0, len(list))
	for i := range list {
		items = append(items, ToThreadView(&list[i]))
	}
	return &ThreadPage{
		Items:    items,
		Total:    total,
		Page:     page,
		PageSize: pageSize,
		HasMore:  int64(page*pageSize) < total,
	}, nil
}

func (s *ThreadService) GetThread(ctx context.Context, channelID, threadID uint64) (*ThreadView, error) {
	th, err := s.find(ctx, channelID, threadID)
	if err != nil {
		return nil, err
	}
	v := ToThreadView(th)
	return &v, nil
}

// AcceptAnswer 发帖人或频道管理者可以采纳，消息必须是该帖子的回复
func (s *ThreadService) AcceptAnswer(ctx context.Context, in AcceptAnswerInput) (*ThreadView, error) {
	th, err := s.find(ctx, in.ChannelID, in.ThreadID)
	if err != nil {
		return nil, err
	}
	if th.CreatedBy != in.UserID && !in.CanManage {
		return nil, pkg.Forbidden("only the thread author or a channel manager can accept an answer")
	}
	msg, err := s.messages.FindByID(ctx, in.MessageID)
	if err != nil {
		return nil, notFound(err, "message not found")
	}
	if msg.ThreadID == nil || *msg.ThreadID != th.ID {
		return nil, pkg.Validation("message does not belong to this thread")
	}
	if err := s.threads.Accept(ctx, th, msg.ID); err != nil {
		return nil, err
	}
	th.AcceptedMessageID = &msg.ID
	th.Status = model.ThreadAnswered
	v := ToThreadView(th)
	return &v, nil
}

func (s *ThreadService) find(ctx context.Context, channelID, threadID uint64) (*model.Thread, error) {
	th, err := s.threads.FindByID(ctx, threadID)
	if err != nil {
		return nil, notFound(err, "thread not found")
	}
	if th.ChannelID != channelID {
		return nil, pkg.NotFound("thread not found")
	}
	return th, nil
}

func ToThreadView(t *model.Thread) ThreadView {
	v := ThreadView{
		ID:        pkg.FormatID(t.ID),
		ChannelID: pkg.FormatID(t.ChannelID),
		CreatedBy: pkg.FormatID(t.CreatedBy),
		Title:     t.Title,
		Status:    string(t.Status),
		CreatedAt: pkg.FormatTime(t.CreatedAt),
		UpdatedAt: pkg.FormatTime(t.UpdatedAt),
	}
	if t.AcceptedMessageID != nil {
		v.AcceptedMessageID = pkg.FormatID(*t.AcceptedMessageID)
	}
	return v
}
