package model

import "time"

type Community struct {
	ID             uint64        `gorm:"primaryKey"`
	Name           string        `gorm:"size:64;not null"`
	Slug           string        `gorm:"uniqueIndex;size:80;not null"`
	Kind           CommunityKind `gorm:"type:varchar(32);not null;index"`
	OwnerID        *uint64       `gorm:"index"`
	Icon           string        `gorm:"size:512"`
	DegreeID       *uint64       `gorm:"index"`
	DegreeModuleID *uint64       `gorm:"uniqueIndex"` // 仅 institutional-module 使用
	CreatedAt      time.Time     `gorm:"index"`
	UpdatedAt      time.Time
}

// Membership 每个 (community, user) 至多一条
type Membership struct {
	ID          uint64           `gorm:"primaryKey"`
	CommunityID uint64           `gorm:"not null;uniqueIndex:uk_community_user;index:idx_community_status,priority:1"`
	UserID      uint64           `gorm:"not null;uniqueIndex:uk_community_user;index"`
	Roles       Roles            `gorm:"type:varchar(128);not null"`
	Status      MembershipStatus `gorm:"type:varchar(16);not null;index:idx_community_status,priority:2"`
	JoinedAt    time.Time
	Nickname    string  `gorm:"size:64"`
	InvitedBy   *uint64 `gorm:"index"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (Membership) TableName() string { return "memberships" }

// IsActive 仅 active 状态参与权限判断
func (m *Membership) IsActive() bool {
	return m != nil && m.Status == StatusActive
}
