package models

import (
	"time"
)

// VoteValue 1 or -1. 0 means "no vote" and is never stored.
type VoteValue int

const (
	VotePositive VoteValue = 1
	VoteNegative VoteValue = -1
	NoVote       VoteValue = 0
)

func (v VoteValue) Valid() bool {
	return v == VotePositive || v == VoteNegative
}

// Vote 每个用户对每个内容最多一条，由 idx_vote_user_votable 唯一索引保证
type Vote struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	UserID      uint        `gorm:"not null;uniqueIndex:idx_vote_user_votable,priority:1" json:"user_id"`
	VotableKind VotableKind `gorm:"size:20;not null;uniqueIndex:idx_vote_user_votable,priority:2;index:idx_vote_votable,priority:1" json:"votable_kind"`
	VotableID   uint        `gorm:"not null;uniqueIndex:idx_vote_user_votable,priority:3;index:idx_vote_votable,priority:2" json:"votable_id"`
	Value       VoteValue   `gorm:"not null" json:"value"`
	CreatedAt   time.Time   `json:"created_at"`
}

func (v *Vote) Ref() VotableRef {
	return VotableRef{Kind: v.VotableKind, ID: v.VotableID}
}
