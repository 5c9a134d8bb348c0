package models

import (
	"time"
)

type Comment struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	DiscussionID       uint      `gorm:"not null;index" json:"discussion_id"`
	ParentID           *uint     `gorm:"index" json:"parent_id"` // Nullable for top-level comments
	Parent             *Comment  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	CreatorID          uint      `gorm:"not null;index" json:"creator_id"`
	CreatorDisplayName string    `gorm:"size:100" json:"creator_display_name"`
	Content            string    `gorm:"type:text;not null;default:''" json:"content"`
	CreatedAt          time.Time `gorm:"index" json:"created_at"`

	VotableStats `gorm:"embedded"`
}

func (c *Comment) Ref() VotableRef     { return CommentRef(c.ID) }
func (c *Comment) CreatorUserID() uint { return c.CreatorID }
func (c *Comment) Stats() VotableStats { return c.VotableStats }
