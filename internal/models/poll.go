package models

import (
	"time"
)

// Poll 与 content_type=poll 的讨论一一对应
type Poll struct {
	ID               uint         `gorm:"primaryKey" json:"id"`
	DiscussionID     uint         `gorm:"not null;uniqueIndex" json:"discussion_id"`
	Question         string       `gorm:"not null" json:"question"`
	IsMultipleChoice bool         `gorm:"default:false" json:"is_multiple_choice"`
	IsAnonymous      bool         `gorm:"default:false" json:"is_anonymous"`
	TotalVotes       int          `gorm:"default:0" json:"total_votes"`
	ExpiresAt        *time.Time   `json:"expires_at"`
	CreatedAt        time.Time    `json:"created_at"`
	Options          []PollOption `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"options"`
}

// Expired 判断投票是否已截止
func (p *Poll) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && p.ExpiresAt.Before(now)
}

type PollOption struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	PollID       uint   `gorm:"not null;index" json:"poll_id"`
	OptionText   string `gorm:"type:text;not null" json:"-"` // 纯文本（旧数据）或 JSON {text, emoji}
	VoteCount    int    `gorm:"default:0" json:"vote_count"`
	DisplayOrder int    `gorm:"not null;default:0" json:"display_order"`

	// 非数据库字段，由 OptionText 解码
	Text  string `gorm:"-" json:"text"`
	Emoji string `gorm:"-" json:"emoji"`
}

// PollVote 每个 (poll, option, user) 至多一行
type PollVote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PollID    uint      `gorm:"not null;uniqueIndex:idx_poll_option_user;index" json:"poll_id"`
	OptionID  uint      `gorm:"not null;uniqueIndex:idx_poll_option_user;index" json:"option_id"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_poll_option_user;index" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
