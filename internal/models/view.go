package models

import (
	"time"
)

// View 浏览记录，只追加，不更新也不删除
type View struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DiscussionID uint      `gorm:"not null;index" json:"discussion_id"`
	UserID       *uint     `gorm:"index" json:"user_id"`
	IPAddress    *string   `gorm:"size:64" json:"ip_address"`
	UserAgent    *string   `gorm:"size:512" json:"user_agent"`
	CreatedAt    time.Time `json:"created_at"`
}
