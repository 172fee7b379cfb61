package model

import (
	"errors"
	"time"
	"unicode/utf8"

	"gorm.io/gorm"
)

const MaxContentRunes = 4000

var (
	ErrMessageScope   = errors.New("exactly one of channelId or threadId must be set")
	ErrContentTooLong = errors.New("content must be at most 4000 characters")
)

type Attachment struct {
	URL  string `json:"url"`
	Name string `json:"name,omitempty"`
	Mime string `json:"mime,omitempty"`
	Size int64  `json:"size,omitempty"`
}

type Mention struct {
	UserID uint64 `json:"userId,string"`
}

type Message struct {
	ID          uint64       `gorm:"primaryKey"`
	ChannelID   *uint64      `gorm:"index:idx_channel_time,priority:1"`
	ThreadID    *uint64      `gorm:"index:idx_thread_time,priority:1"`
	AuthorID    uint64       `gorm:"not null;index"`
	AuthorName  string       `gorm:"size:200;not null"`
	Content     string       `gorm:"type:text;not null"`
	Attachments []Attachment `gorm:"serializer:json;type:text"`
	Mentions    []Mention    `gorm:"serializer:json;type:text"`
	EditedAt    *time.Time
	CreatedAt   time.Time `gorm:"index:idx_channel_time,priority:2;index:idx_thread_time,priority:2"`
	UpdatedAt   time.Time
}

// BeforeCreate 落库前强制 channel/thread 二选一
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if (m.ChannelID != nil) == (m.ThreadID != nil) {
		return ErrMessageScope
	}
	if utf8.RuneCountInString(m.Content) > MaxContentRunes {
		return ErrContentTooLong
	}
	if m.Attachments == nil {
		m.Attachments = []Attachment{}
	}
	if m.Mentions == nil {
		m.Mentions = []Mention{}
	}
	return nil
}

type Thread struct {
	ID                uint64       `gorm:"primaryKey"`
	ChannelID         uint64       `gorm:"not null;index:idx_thread_channel_time,priority:1"`
	CreatedBy         uint64       `gorm:"not null;index"`
	Title             string       `gorm:"size:200;not null"`
	Status            ThreadStatus `gorm:"type:varchar(16);not null;index"`
	AcceptedMessageID *uint64
	CreatedAt         time.Time `gorm:"index:idx_thread_channel_time,priority:2"`
	UpdatedAt         time.Time
}
