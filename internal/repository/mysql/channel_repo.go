package mysql

import (
	"context"

	"Campus_Hub/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ChannelRepository struct {
	DB *gorm.DB
}

// Create 写入频道，hidden 频道可同时写入初始授权
func (r *ChannelRepository) Create(ctx context.Context, ch *model.Channel, grants []model.ChannelAccess) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(ch).Error; err != nil {
			return err
		}
		for i := range grants {
			grants[i].ChannelID = ch.ID
		}
		if len(grants) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "channel_id"}, {Name: "user_id"}},
			DoNothing: true,
		}).Create(&grants).Error
	})
}

func (r *ChannelRepository) FindByID(ctx context.Context, id uint64) (*model.Channel, error) {
	var ch model.Channel
	err := r.DB.WithContext(ctx).First(&ch, id).Error
	return &ch, err
}

func (r *ChannelRepository) ListByCommunity(ctx context.Context, communityID uint64) ([]model.Channel, error) {
	var list []model.Channel
	err := r.DB.WithContext(ctx).
		Where("community_id = ?", communityID).
		Order("position ASC, id ASC").
		Find(&list).Error
	return list, err
}

// ListVisible public 频道加上用户有授权的 hidden 频道
func (r *ChannelRepository) ListVisible(ctx context.Context, communityID, userID uint64) ([]model.Channel, error) {
	granted := r.DB.Model(&model.ChannelAccess{}).Select("channel_id").Where("user_id = ?", userID)
	var list []model.Channel
	err := r.DB.WithContext(ctx).
		Where("community_id = ?", communityID).
		Where(r.DB.Where("privacy = ?", model.PrivacyPublic).Or("id IN (?)", granted)).
		Order("position ASC, id ASC").
		Find(&list).Error
	return list, err
}

func (r *ChannelRepository) Update(ctx context.Context, id uint64, fields map[string]any) error {
	return r.DB.WithContext(ctx).Model(&model.Channel{}).Where("id = ?", id).Updates(fields).Error
}

func (r *ChannelRepository) Delete(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteChannels(tx, []uint64{id})
	})
}

// deleteChannels 删除频道及其授权、帖子和消息，必须在事务内调用
func deleteChannels(tx *gorm.DB, channelIDs []uint64) error {
	if len(channelIDs) == 0 {
		return nil
	}
	var threadIDs []uint64
	if err := tx.Model(&model.Thread{}).Where("channel_id IN ?", channelIDs).Pluck("id", &threadIDs).Error; err != nil {
		return err
	}
	if len(threadIDs) > 0 {
		if err := tx.Where("thread_id IN ?", threadIDs).Delete(&model.Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("id IN ?", threadIDs).Delete(&model.Thread{}).Error; err != nil {
			return err
		}
	}
	if err := tx.Where("channel_id IN ?", channelIDs).Delete(&model.Message{}).Error; err != nil {
		return err
	}
	if err := tx.Where("channel_id IN ?", channelIDs).Delete(&model.ChannelAccess{}).Error; err != nil {
		return err
	}
	return tx.Where("id IN ?", channelIDs).Delete(&model.Channel{}).Error
}

// EnsureDefaults 按 (community, name) 幂等插入，返回新增数量
func (r *ChannelRepository) EnsureDefaults(ctx context.Context, communityID uint64, channels []model.Channel) (int64, error) {
	if len(channels) == 0 {
		return 0, nil
	}
	for i := range channels {
		channels[i].CommunityID = communityID
	}
	tx := r.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "community_id"}, {Name: "name"}},
		DoNothing: true,
	}).Create(&channels)
	return tx.RowsAffected, tx.Error
}
