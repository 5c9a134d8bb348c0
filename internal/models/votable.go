package models

import (
	"fmt"
	"strings"
)

// VotableKind 可投票内容的类型
type VotableKind string

const (
	KindDiscussion VotableKind = "discussion"
	KindComment    VotableKind = "comment"
)

// ParseVotableKind accepts the kind as it appears in URLs ("discussion", "comment").
func ParseVotableKind(s string) (VotableKind, bool) {
	switch VotableKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDiscussion:
		return KindDiscussion, true
	case KindComment:
		return KindComment, true
	}
	return "", false
}

// VotableRef 多态引用：类型 + ID，投票和偏好都通过它指向内容
type VotableRef struct {
	Kind VotableKind `json:"kind"`
	ID   uint        `json:"id"`
}

func DiscussionRef(id uint) VotableRef { return VotableRef{Kind: KindDiscussion, ID: id} }

func CommentRef(id uint) VotableRef { return VotableRef{Kind: KindComment, ID: id} }

func (r VotableRef) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

type VisibilityStatus string

const (
	Visible VisibilityStatus = "visible"
	Hidden  VisibilityStatus = "hidden"
)

// VotableStats 讨论和评论共享的统计字段，只由聚合引擎写入
type VotableStats struct {
	TotalVotes              int              `gorm:"not null;default:0;index" json:"total_votes"`
	PositiveVotes           int              `gorm:"not null;default:0" json:"positive_votes"`
	NegativeVotes           int              `gorm:"not null;default:0" json:"negative_votes"`
	ParticipationPercentage int              `gorm:"not null;default:0" json:"participation_percentage"`
	PositivePercentage      int              `gorm:"not null;default:0" json:"positive_percentage"`
	NegativePercentage      int              `gorm:"not null;default:0" json:"negative_percentage"`
	WilsonScore             float64          `gorm:"not null;default:0;index" json:"wilson_score"`
	VisibilityStatus        VisibilityStatus `gorm:"size:20;not null;default:'visible'" json:"visibility_status"`
}

// Columns 持久化统计字段时使用的列名
func (s VotableStats) Columns() map[string]interface{} {
	return map[string]interface{}{
		"total_votes":              s.TotalVotes,
		"positive_votes":           s.PositiveVotes,
		"negative_votes":           s.NegativeVotes,
		"participation_percentage": s.ParticipationPercentage,
		"positive_percentage":      s.PositivePercentage,
		"negative_percentage":      s.NegativePercentage,
		"wilson_score":             s.WilsonScore,
		"visibility_status":        s.VisibilityStatus,
	}
}

// Votable is the capability shared by Discussion and Comment.
type Votable interface {
	Ref() VotableRef
	CreatorUserID() uint
	Stats() VotableStats
}
