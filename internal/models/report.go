package models

import (
	"time"
)

type ReportReason string

const (
	ReasonSpam           ReportReason = "spam"
	ReasonHarassment     ReportReason = "harassment"
	ReasonInappropriate  ReportReason = "inappropriate"
	ReasonMisinformation ReportReason = "misinformation"
	ReasonOther          ReportReason = "other"
)

// Valid 校验举报原因
func (r ReportReason) Valid() bool {
	switch r {
	case ReasonSpam, ReasonHarassment, ReasonInappropriate, ReasonMisinformation, ReasonOther:
		return true
	}
	return false
}

type Report struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	ReporterID   uint         `gorm:"not null;index" json:"reporter_id"`
	DiscussionID *uint        `gorm:"index" json:"discussion_id"`
	CommentID    *uint        `gorm:"index" json:"comment_id"`
	Reason       ReportReason `gorm:"size:20;not null" json:"reason"`
	Description  *string      `gorm:"type:text" json:"description"`
	CreatedAt    time.Time    `json:"created_at"`
}
