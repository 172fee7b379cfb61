package mysql

import (
	"context"
	"time"

	"Campus_Hub/internal/model"

	"gorm.io/gorm"
)

type MessageRepository struct {
	DB *gorm.DB
}

func (r *MessageRepository) Create(ctx context.Context, m *model.Message) error {
	return r.DB.WithContext(ctx).Create(m).Error
}

func (r *MessageRepository) FindByID(ctx context.Context, id uint64) (*model.Message, error) {
	var m model.Message
	err := r.DB.WithContext(ctx).First(&m, id).Error
	return &m, err
}

// ListByChannel 新到旧返回一页，调用方负责反转
func (r *MessageRepository) ListByChannel(ctx context.Context, channelID uint64, offset, limit int) ([]model.Message, int64, error) {
	return r.page(r.DB.WithContext(ctx).Model(&model.Message{}).Where("channel_id = ?", channelID), offset, limit)
}

func (r *MessageRepository) ListByThread(ctx context.Context, threadID uint64, offset, limit int) ([]model.Message, int64, error) {
	return r.page(r.DB.WithContext(ctx).Model(&model.Message{}).Where("thread_id = ?", threadID), offset, limit)
}

func (r *MessageRepository) page(q *gorm.DB, offset, limit int) ([]model.Message, int64, error) {
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Message
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

func (r *MessageRepository) UpdateContent(ctx context.Context, m *model.Message, content string, editedAt time.Time) error {
	return r.DB.WithContext(ctx).Model(m).Updates(map[string]any{
		"content":   content,
		"edited_at": editedAt,
	}).Error
}
