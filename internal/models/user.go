package models

import (
	"time"
)

// User 外部身份服务的本地镜像。账号管理不在本服务内，只读 DisplayName 和总数
type User struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Username    string    `gorm:"size:150;not null;uniqueIndex" json:"username"`
	DisplayName string    `gorm:"size:100" json:"display_name"` // preferred name, may change at any time
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Name 没有设置显示名时回退到用户名
func (u *User) Name() string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
