package service

import (
	"context"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/repository/mysql"

	"gorm.io/gorm"
)

type DegreeView struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Slug          string `json:"slug"`
	Type          string `json:"type"`
	DurationYears int    `json:"durationYears"`
}

type DegreeModuleView struct {
	ID          string `json:"id"`
	ModuleID    string `json:"moduleId"`
	Title       string `json:"title"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Year        int    `json:"year"`
	Kind        string `json:"kind"`
	Credits     int    `json:"credits,omitempty"`
	Term        string `json:"term,omitempty"`
	Order       int    `json:"order"`
	Notes       string `json:"notes,omitempty"`
}

type DegreeDetail struct {
	DegreeView
	Modules []DegreeModuleView `json:"modules"`
}

// DegreeService 学位目录只读
type DegreeService struct {
	degrees *mysql.DegreeRepository
}

func NewDegreeService(db *gorm.DB) *DegreeService {
	return &DegreeService{degrees: &mysql.DegreeRepository{DB: db}}
}

func (s *DegreeService) ListDegrees(ctx context.Context) ([]DegreeView, error) {
	list, err := s.degrees.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]DegreeView, 0, len(list))
	for i := range list {
		out = append(out, toDegreeView(&list[i]))
	}
	return out, nil
}

func (s *DegreeService) GetDegree(ctx context.Context, slug string) (*DegreeDetail, error) {
	d, err := s.degrees.FindBySlug(ctx, slug)
	if err != nil {
		return nil, notFound(err, "degree not found")
	}
	modules, err := s.listModules(ctx, d.ID, 0)
	if err != nil {
		return nil, err
	}
	return &DegreeDetail{DegreeView: toDegreeView(d), Modules: modules}, nil
}

// ListModules year > 0 时只返回该学年及之前的模块
func (s *DegreeService) ListModules(ctx context.Context, slug string, year int) ([]DegreeModuleView, error) {
	if year < 0 {
		return nil, pkg.Validation("year must not be negative")
	}
	d, err := s.degrees.FindBySlug(ctx, slug)
	if err != nil {
		return nil, notFound(err, "degree not found")
	}
	return s.listModules(ctx, d.ID, year)
}

func (s *DegreeService) listModules(ctx context.Context, degreeID uint64, year int) ([]DegreeModuleView, error) {
	list, err := s.degrees.ListModules(ctx, degreeID, year)
	if err != nil {
		return nil, err
	}
	out := make([]DegreeModuleView, 0, len(list))
	for i := range list {
		out = append(out, toDegreeModuleView(&list[i]))
	}
	return out, nil
}

func toDegreeView(d *model.Degree) DegreeView {
	return DegreeView{
		ID:            pkg.FormatID(d.ID),
		Name:          d.Name,
		Slug:          d.Slug,
		Type:          d.Type,
		DurationYears: d.DurationYears,
	}
}

func toDegreeModuleView(dm *model.DegreeModule) DegreeModuleView {
	v := DegreeModuleView{
		ID:       pkg.FormatID(dm.ID),
		ModuleID: pkg.FormatID(dm.ModuleID),
		Year:     dm.Year,
		Kind:     string(dm.Kind),
		Term:     dm.Term,
		Order:    dm.SortOrder,
		Notes:    dm.Notes,
	}
	if dm.Module != nil {
		v.Title = dm.Module.Title
		v.Slug = dm.Module.Slug
		v.Description = dm.Module.Description
		v.Credits = dm.Module.Credits
		if v.Term == "" {
			v.Term = dm.Module.Term
		}
	}
	return v
}
