package mysql

import (
	"context"

	"Campus_Hub/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, id).Error
	return &user, err
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var usr model.User
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&usr).Error
	return &usr, err
}

// FindByIDs 批量取用户，成员列表展示名字用
func (r *UserRepository) FindByIDs(ctx context.Context, ids []uint64) ([]model.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var list []model.User
	err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error
	return list, err
}

func (r *UserRepository) UpdatePassword(ctx context.Context, user *model.User, newPassword string) error {
	return r.DB.WithContext(ctx).Model(user).Update("password", newPassword).Error
}
