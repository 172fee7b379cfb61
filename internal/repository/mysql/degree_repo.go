package mysql

import (
	"context"

	"Campus_Hub/internal/model"

	"gorm.io/gorm"
)

type DegreeRepository struct {
	DB *gorm.DB
}

func (r *DegreeRepository) List(ctx context.Context) ([]model.Degree, error) {
	var list []model.Degree
	err := r.DB.WithContext(ctx).Order("name ASC").Find(&list).Error
	return list, err
}

func (r *DegreeRepository) FindByID(ctx context.Context, id uint64) (*model.Degree, error) {
	var d model.Degree
	err := r.DB.WithContext(ctx).First(&d, id).Error
	return &d, err
}

func (r *DegreeRepository) FindBySlug(ctx context.Context, slug string) (*model.Degree, error) {
	var d model.Degree
	err := r.DB.WithContext(ctx).Where("slug = ?", slug).First(&d).Error
	return &d, err
}

// ListModules maxYear <= 0 时不限学年
func (r *DegreeRepository) ListModules(ctx context.Context, degreeID uint64, maxYear int) ([]model.DegreeModule, error) {
	q := r.DB.WithContext(ctx).Preload("Module").Where("degree_id = ?", degreeID)
	if maxYear > 0 {
		q = q.Where("year <= ?", maxYear)
	}
	var list []model.DegreeModule
	err := q.Order("year ASC, sort_order ASC, id ASC").Find(&list).Error
	return list, err
}

func (r *DegreeRepository) ModuleIDs(ctx context.Context, degreeID uint64, maxYear int) ([]uint64, error) {
	var ids []uint64
	err := r.DB.WithContext(ctx).Model(&model.DegreeModule{}).
		Where("degree_id = ? AND year <= ?", degreeID, maxYear).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *DegreeRepository) FindDegreeModule(ctx context.Context, id uint64) (*model.DegreeModule, error) {
	var dm model.DegreeModule
	err := r.DB.WithContext(ctx).Preload("Module").First(&dm, id).Error
	return &dm, err
}
