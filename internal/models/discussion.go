package models

import (
	"time"
)

type ContentType string

const (
	ContentTypeText ContentType = "text"
	ContentTypePoll ContentType = "poll"
)

// Discussion 讨论主题，可附带一个投票
type Discussion struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	Title          string          `gorm:"not null" json:"title"`
	Slug           string          `gorm:"uniqueIndex;size:120;not null" json:"slug"`
	Content        string          `gorm:"type:text" json:"content"`
	ContentType    ContentType     `gorm:"size:10;not null;default:'text'" json:"content_type"`
	AuthorID       uint            `gorm:"not null;index" json:"author_id"`
	CategoryID     uint            `gorm:"not null;index;default:1" json:"category_id"`
	Tags           []DiscussionTag `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"-"`
	VoteScore      int             `gorm:"default:0" json:"vote_score"`
	CommentCount   int             `gorm:"default:0" json:"comment_count"`
	LastActivityAt time.Time       `gorm:"index" json:"last_activity_at"`
	IsDeleted      bool            `gorm:"default:false;index" json:"is_deleted"`
	CreatedAt      time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`

	// 非数据库字段，读取时从 View 表实时统计
	ViewCount int `gorm:"-" json:"view_count"`
}

// DiscussionTag 标签集合，(discussion_id, tag) 唯一
type DiscussionTag struct {
	ID           uint   `gorm:"primaryKey" json:"-"`
	DiscussionID uint   `gorm:"not null;uniqueIndex:idx_discussion_tag" json:"-"`
	Tag          string `gorm:"size:50;not null;uniqueIndex:idx_discussion_tag;index" json:"tag"`
}

// TagNames 返回标签字符串列表
func (d *Discussion) TagNames() []string {
	names := make([]string, 0, len(d.Tags))
	for _, t := range d.Tags {
		names = append(names, t.Tag)
	}
	return names
}
