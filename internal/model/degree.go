package model

import "time"

// Degree 学位目录，institutional-module 社区通过 DegreeModule 关联
type Degree struct {
	ID            uint64 `gorm:"primaryKey"`
	Name          string `gorm:"size:128;not null"`
	Slug          string `gorm:"uniqueIndex;size:128;not null"`
	Type          string `gorm:"size:32;not null"`
	DurationYears int    `gorm:"not null"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type CourseModule struct {
	ID          uint64     `gorm:"primaryKey"`
	Title       string     `gorm:"size:200;not null"`
	Description string     `gorm:"type:text"`
	Slug        string     `gorm:"uniqueIndex;size:128;not null"`
	Kind        ModuleKind `gorm:"type:varchar(16);not null"`
	Credits     int
	Term        string `gorm:"size:16"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DegreeModule 某学位某学年包含的模块
type DegreeModule struct {
	ID        uint64        `gorm:"primaryKey"`
	DegreeID  uint64        `gorm:"not null;uniqueIndex:uk_degree_year_module,priority:1"`
	ModuleID  uint64        `gorm:"not null;uniqueIndex:uk_degree_year_module,priority:3"`
	Module    *CourseModule `gorm:"foreignKey:ModuleID"`
	Year      int           `gorm:"not null;uniqueIndex:uk_degree_year_module,priority:2"`
	Kind      ModuleKind    `gorm:"type:varchar(16);not null"`
	Term      string        `gorm:"size:16"`
	SortOrder int           `gorm:"not null;default:0"`
	Notes     string        `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
