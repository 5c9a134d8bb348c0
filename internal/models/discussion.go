package models

import (
	"time"
)

// Discussion 讨论主题
type Discussion struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	CreatorID          uint      `gorm:"not null;index" json:"creator_id"`
	CreatorDisplayName string    `gorm:"size:100" json:"creator_display_name"` // 每次保存时从身份服务刷新
	Subject            string    `gorm:"size:255;not null" json:"subject"`
	Category           *string   `gorm:"size:50" json:"category"`
	CreatedAt          time.Time `gorm:"index" json:"created_at"`

	VotableStats `gorm:"embedded"`

	Comments []Comment `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
}

func (d *Discussion) Ref() VotableRef     { return DiscussionRef(d.ID) }
func (d *Discussion) CreatorUserID() uint { return d.CreatorID }
func (d *Discussion) Stats() VotableStats { return d.VotableStats }
