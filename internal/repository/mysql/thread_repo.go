package mysql

import (
	"context"

	"Campus_Hub/internal/model"

	"gorm.io/gorm"
)

type ThreadRepository struct {
	DB *gorm.DB
}

func (r *ThreadRepository) Create(ctx context.Context, t *model.Thread) error {
	return r.DB.WithContext(ctx).Create(t).Error
}

func (r *ThreadRepository) FindByID(ctx context.Context, id uint64) (*model.Thread, error) {
	var t model.Thread
	err := r.DB.WithContext(ctx).First(&t, id).Error
	return &t, err
}

// ListByChannel 最新的帖子在前
func (r *ThreadRepository) ListByChannel(ctx context.Context, channelID uint64, offset, limit int) ([]model.Thread, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Thread{}).Where("channel_id = ?", channelID)
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Thread
	err := q.Order("created_at DESC, id DESC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

func (r *ThreadRepository) Accept(ctx context.Context, t *model.Thread, messageID uint64) error {
	return r.DB.WithContext(ctx).Model(t).Updates(map[string]any{
		"accepted_message_id": messageID,
		"status":              model.ThreadAnswered,
	}).Error
}
