package mysql

import (
	"context"

	"Campus_Hub/internal/model"

	"gorm.io/gorm"
)

type MembershipRepository struct {
	DB *gorm.DB
}

func (r *MembershipRepository) Create(ctx context.Context, m *model.Membership) error {
	return r.DB.WithContext(ctx).Create(m).Error
}

func (r *MembershipRepository) Find(ctx context.Context, communityID, userID uint64) (*model.Membership, error) {
	var m model.Membership
	err := r.DB.WithContext(ctx).
		Where("community_id = ? AND user_id = ?", communityID, userID).
		First(&m).Error
	return &m, err
}

// Update 只更新给出的字段
func (r *MembershipRepository) Update(ctx context.Context, m *model.Membership, fields map[string]any) error {
	return r.DB.WithContext(ctx).Model(m).Updates(fields).Error
}

// ListActive 按加入时间列出 active 成员
func (r *MembershipRepository) ListActive(ctx context.Context, communityID uint64, offset, limit int) ([]model.Membership, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Membership{}).
		Where("community_id = ? AND status = ?", communityID, model.StatusActive)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Membership
	err := q.Order("joined_at ASC, id ASC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

// CountActiveOwners roles 以 JSON 数组存储
func (r *MembershipRepository) CountActiveOwners(ctx context.Context, communityID uint64) (int64, error) {
	var n int64
	err := r.DB.WithContext(ctx).Model(&model.Membership{}).
		Where("community_id = ? AND status = ? AND roles LIKE ?", communityID, model.StatusActive, `%"owner"%`).
		Count(&n).Error
	return n, err
}
