package models

import (
	"time"
)

type VoteType string

const (
	VoteUp      VoteType = "up"
	VoteDown    VoteType = "down"
	VoteNeutral VoteType = "neutral" // 仅用于请求，表示撤销
)

type TargetKind string

const (
	TargetDiscussion TargetKind = "discussion"
	TargetComment    TargetKind = "comment"
)

// VoteTarget 投票对象：讨论或评论二选一
type VoteTarget struct {
	Kind TargetKind `json:"kind"`
	ID   uint       `json:"id"`
}

func DiscussionTarget(id uint) VoteTarget { return VoteTarget{Kind: TargetDiscussion, ID: id} }
func CommentTarget(id uint) VoteTarget    { return VoteTarget{Kind: TargetComment, ID: id} }

// Column 返回 votes 表中对应的外键列
func (t VoteTarget) Column() string {
	if t.Kind == TargetComment {
		return "comment_id"
	}
	return "discussion_id"
}

// Vote 多态投票行，DiscussionID 与 CommentID 有且仅有一个非空。
// 唯一性：(discussion_id, user_id) 与 (comment_id, user_id)，PG 与 SQLite 都允许多个 NULL
type Vote struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	UserID       uint      `gorm:"not null;index;uniqueIndex:idx_vote_discussion_user;uniqueIndex:idx_vote_comment_user" json:"user_id"`
	DiscussionID *uint     `gorm:"index;uniqueIndex:idx_vote_discussion_user" json:"discussion_id"`
	CommentID    *uint     `gorm:"index;uniqueIndex:idx_vote_comment_user" json:"comment_id"`
	VoteType     VoteType  `gorm:"size:10;not null" json:"vote_type"`
	CreatedAt    time.Time `json:"created_at"`
}

// Target 还原投票的 tagged variant
func (v *Vote) Target() VoteTarget {
	if v.CommentID != nil {
		return CommentTarget(*v.CommentID)
	}
	if v.DiscussionID != nil {
		return DiscussionTarget(*v.DiscussionID)
	}
	return VoteTarget{}
}

// NewVote 按投票对象填充对应外键
func NewVote(target VoteTarget, userID uint, voteType VoteType) Vote {
	id := target.ID
	v := Vote{UserID: userID, VoteType: voteType}
	if target.Kind == TargetComment {
		v.CommentID = &id
	} else {
		v.DiscussionID = &id
	}
	return v
}
