package mysql

import (
	"context"

	"Campus_Hub/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChannelAccessRepository struct {
	DB *gorm.DB
}

// GrantMany 同一条语句写入，已存在时只刷新授权人
func (r *ChannelAccessRepository) GrantMany(ctx context.Context, list []model.ChannelAccess) error {
	if len(list) == 0 {
		return nil
	}
	return r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"granted_by", "updated_at"}),
	}).Create(&list).Error
}

// Revoke 返回实际删除的行数
func (r *ChannelAccessRepository) Revoke(ctx context.Context, channelID, userID uint64) (int64, error) {
	tx := r.DB.WithContext(ctx).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Delete(&model.ChannelAccess{})
	return tx.RowsAffected, tx.Error
}

func (r *ChannelAccessRepository) Exists(ctx context.Context, channelID, userID uint64) (bool, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.ChannelAccess{}).
		Where("channel_id = ? AND user_id = ?", channelID, userID).
		Count(&n).Error
	return n > 0, err
}

func (r *ChannelAccessRepository) ListByChannel(ctx context.Context, channelID uint64) ([]model.ChannelAccess, error) {
	var list []model.ChannelAccess
	err := r.DB.WithContext(ctx).Where("channel_id = ?", channelID).Order("id ASC").Find(&list).Error
	return list, err
}
