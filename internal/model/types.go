package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"slices"
)

// CommunityKind 社区类型
type CommunityKind string

const (
	KindInstitutionalModule CommunityKind = "institutional-module"
	KindSociety             CommunityKind = "society"
	KindPersonal            CommunityKind = "personal"
)

func (k CommunityKind) Valid() bool {
	switch k {
	case KindInstitutionalModule, KindSociety, KindPersonal:
		return true
	}
	return false
}

// Role 成员角色，一个成员可同时拥有多个
type Role string

const (
	RoleOwner     Role = "owner"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
	RoleMember    Role = "member"
)

func (r Role) Valid() bool {
	switch r {
	case RoleOwner, RoleAdmin, RoleModerator, RoleMember:
		return true
	}
	return false
}

type Roles []Role

// HasAny 是否包含任一角色
func (rs Roles) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if slices.Contains(rs, r) {
			return true
		}
	}
	return false
}

// Value 以 JSON 数组落库，map 更新时同样生效
func (rs Roles) Value() (driver.Value, error) {
	if rs == nil {
		rs = Roles{}
	}
	b, err := json.Marshal(rs)
	return string(b), err
}

func (rs *Roles) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*rs = nil
		return nil
	case []byte:
		return json.Unmarshal(v, rs)
	case string:
		return json.Unmarshal([]byte(v), rs)
	default:
		return fmt.Errorf("roles: unsupported type %T", src)
	}
}

// Normalize 去重并校验，空集合或含非法角色时返回 false
func (rs Roles) Normalize() (Roles, bool) {
	out := make(Roles, 0, len(rs))
	for _, r := range rs {
		if !r.Valid() {
			return nil, false
		}
		if !slices.Contains(out, r) {
			out = append(out, r)
		}
	}
	return out, len(out) > 0
}

type MembershipStatus string

const (
	StatusActive MembershipStatus = "active"
	StatusBanned MembershipStatus = "banned"
	StatusLeft   MembershipStatus = "left"
)

func (s MembershipStatus) Valid() bool {
	switch s {
	case StatusActive, StatusBanned, StatusLeft:
		return true
	}
	return false
}

// ChannelKind 频道类型：普通文本或问答
type ChannelKind string

const (
	ChannelText ChannelKind = "text"
	ChannelQA   ChannelKind = "qa"
)

func (k ChannelKind) Valid() bool {
	switch k {
	case ChannelText, ChannelQA:
		return true
	}
	return false
}

type ChannelPrivacy string

const (
	PrivacyPublic ChannelPrivacy = "public"
	PrivacyHidden ChannelPrivacy = "hidden"
)

func (p ChannelPrivacy) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyHidden:
		return true
	}
	return false
}

type ThreadStatus string

const (
	ThreadOpen     ThreadStatus = "open"
	ThreadAnswered ThreadStatus = "answered"
)

type ModuleKind string

const (
	ModuleCore     ModuleKind = "core"
	ModuleElective ModuleKind = "elective"
)
