package models

import (
	"strings"
	"time"
)

// Preference 用户对某条内容的个人显示/隐藏选择，与投票无关
type Preference string

const (
	PreferenceShow Preference = "show"
	PreferenceHide Preference = "hide"
	PreferenceNone Preference = "none"
)

func ParsePreference(s string) (Preference, bool) {
	switch p := Preference(strings.ToLower(strings.TrimSpace(s))); p {
	case PreferenceShow, PreferenceHide, PreferenceNone:
		return p, true
	}
	return "", false
}

type UserContentPreference struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UserID      uint        `gorm:"not null;uniqueIndex:idx_pref_user_votable,priority:1" json:"user_id"`
	VotableKind VotableKind `gorm:"size:20;not null;uniqueIndex:idx_pref_user_votable,priority:2" json:"votable_kind"`
	VotableID   uint        `gorm:"not null;uniqueIndex:idx_pref_user_votable,priority:3" json:"votable_id"`
	Preference  Preference  `gorm:"size:10;not null;default:'none'" json:"preference"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

func (p *UserContentPreference) Ref() VotableRef {
	return VotableRef{Kind: p.VotableKind, ID: p.VotableID}
}
