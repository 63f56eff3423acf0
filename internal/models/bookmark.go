package models

import (
	"time"
)

// Bookmark 收藏模型 - 用户收藏讨论
type Bookmark struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	UserID       uint       `gorm:"not null;index;uniqueIndex:idx_user_discussion" json:"user_id"`
	DiscussionID uint       `gorm:"not null;index;uniqueIndex:idx_user_discussion" json:"discussion_id"`
	Discussion   Discussion `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"discussion"`
	CreatedAt    time.Time  `json:"created_at"`
}
