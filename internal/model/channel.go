package model

import "time"

type Channel struct {
	ID          uint64         `gorm:"primaryKey"`
	CommunityID uint64         `gorm:"not null;uniqueIndex:uk_community_channel_name;index:idx_community_position,priority:1"`
	Name        string         `gorm:"size:32;not null;uniqueIndex:uk_community_channel_name"`
	Kind        ChannelKind    `gorm:"type:varchar(8);not null"`
	Position    int            `gorm:"not null;default:0;index:idx_community_position,priority:2"`
	Privacy     ChannelPrivacy `gorm:"type:varchar(8);not null"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ChannelAccess hidden 频道的显式授权，每个 (channel, user) 至多一条
type ChannelAccess struct {
	ID        uint64 `gorm:"primaryKey"`
	ChannelID uint64 `gorm:"not null;uniqueIndex:uk_channel_user"`
	UserID    uint64 `gorm:"not null;uniqueIndex:uk_channel_user;index"`
	GrantedBy uint64
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (ChannelAccess) TableName() string { return "channel_access" }
