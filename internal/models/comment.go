package models

import (
	"strconv"
	"time"
)

// Comment 评论树节点。Path 为祖先 ID 链（点号分隔），根评论为空串
type Comment struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	DiscussionID uint      `gorm:"not null;index" json:"discussion_id"`
	ParentID     *uint     `gorm:"index" json:"parent_id"` // Nullable for root comments
	AuthorID     uint      `gorm:"not null;index" json:"author_id"`
	Content      string    `gorm:"type:text;not null" json:"content"`
	Depth        int       `gorm:"not null;default:0" json:"depth"`
	Path         string    `gorm:"size:512;index;not null;default:''" json:"path"`
	VoteScore    int       `gorm:"default:0" json:"vote_score"`
	IsEdited     bool      `gorm:"default:false" json:"is_edited"`
	IsDeleted    bool      `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt    time.Time `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// ChildPath 返回该评论的子节点应使用的 path
func (c *Comment) ChildPath() string {
	id := strconv.FormatUint(uint64(c.ID), 10)
	if c.Path == "" {
		return id
	}
	return c.Path + "." + id
}
