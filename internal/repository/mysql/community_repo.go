package mysql

import (
	"context"

	"Campus_Hub/internal/model"

	"gorm.io/gorm"
)

type CommunityRepository struct {
	DB *gorm.DB
}

// CommunityFilter 列表查询条件
type CommunityFilter struct {
	Kind  model.CommunityKind
	Query string
	// ScopeModules 为 true 时只返回 DegreeModuleIDs 里的社区
	ScopeModules    bool
	DegreeModuleIDs []uint64
}

// Create 同一事务内写入社区、创建者成员关系和默认频道
func (r *CommunityRepository) Create(ctx context.Context, c *model.Community, owner *model.Membership, channels []model.Channel) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(c).Error; err != nil {
			return err
		}
		if owner != nil {
			owner.CommunityID = c.ID
			if err := tx.Create(owner).Error; err != nil {
				return err
			}
		}
		for i := range channels {
			channels[i].CommunityID = c.ID
		}
		if len(channels) > 0 {
			if err := tx.Create(&channels).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *CommunityRepository) FindByID(ctx context.Context, id uint64) (*model.Community, error) {
	var community model.Community
	err := r.DB.WithContext(ctx).First(&community, id).Error
	return &community, err
}

func (r *CommunityRepository) FindBySlug(ctx context.Context, slug string) (*model.Community, error) {
	var community model.Community
	err := r.DB.WithContext(ctx).Where("slug = ?", slug).First(&community).Error
	return &community, err
}

func (r *CommunityRepository) List(ctx context.Context, f CommunityFilter, offset, limit int) ([]model.Community, int64, error) {
	q := r.DB.WithContext(ctx).Model(&model.Community{})
	if f.Kind != "" {
		q = q.Where("kind = ?", f.Kind)
	}
	if f.Query != "" {
		q = q.Where("LOWER(name) LIKE ?", "%"+f.Query+"%")
	}
	if f.ScopeModules {
		if len(f.DegreeModuleIDs) == 0 {
			return []model.Community{}, 0, nil
		}
		q = q.Where("degree_module_id IN ?", f.DegreeModuleIDs)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var list []model.Community
	err := q.Order("name ASC, id ASC").Offset(offset).Limit(limit).Find(&list).Error
	return list, total, err
}

// ListByKind 按类型列出全部社区，seed 使用
func (r *CommunityRepository) ListByKind(ctx context.Context, kind model.CommunityKind) ([]model.Community, error) {
	var list []model.Community
	err := r.DB.WithContext(ctx).Where("kind = ?", kind).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *CommunityRepository) Update(ctx context.Context, id uint64, fields map[string]any) error {
	return r.DB.WithContext(ctx).Model(&model.Community{}).Where("id = ?", id).Updates(fields).Error
}

// Delete 级联删除社区下的成员、频道、授权、帖子和消息；不存在时视为成功
func (r *CommunityRepository) Delete(ctx context.Context, id uint64) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var channelIDs []uint64
		if err := tx.Model(&model.Channel{}).Where("community_id = ?", id).Pluck("id", &channelIDs).Error; err != nil {
			return err
		}
		if err := deleteChannels(tx, channelIDs); err != nil {
			return err
		}
		if err := tx.Where("community_id = ?", id).Delete(&model.Membership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Community{}, id).Error
	})
}
