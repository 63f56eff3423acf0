package services

import (
	"context"
	"strings"
	"unicode/utf8"
	"zhutan/internal/models"
	"zhutan/internal/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EngagementService 收藏、浏览、举报
type EngagementService struct {
	db *gorm.DB
}

func NewEngagementService(db *gorm.DB) *EngagementService {
	return &EngagementService{db: db}
}

// ToggleBookmark 已收藏则取消并返回 false，否则收藏并返回 true。
// 并发重复收藏由唯一索引兜底，冲突的插入视为已收藏
func (s *EngagementService) ToggleBookmark(ctx context.Context, userID, discussionID uint) (bool, error) {
	if userID == 0 {
		return false, utils.NewValidationError("user_id is required")
	}
	bookmarked := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findDiscussion(tx, discussionID, false); err != nil {
			return err
		}

		res := tx.Where("user_id = ? AND discussion_id = ?", userID, discussionID).Delete(&models.Bookmark{})
		if res.Error != nil {
			return utils.NewStoreError("delete bookmark", res.Error)
		}
		if res.RowsAffected > 0 {
			return nil
		}

		bookmark := models.Bookmark{UserID: userID, DiscussionID: discussionID}
		if err := tx.Omit(clause.Associations).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&bookmark).Error; err != nil {
			return utils.NewStoreError("insert bookmark", err)
		}
		bookmarked = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return bookmarked, nil
}

func (s *EngagementService) IsBookmarked(ctx context.Context, userID, discussionID uint) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Bookmark{}).
		Where("user_id = ? AND discussion_id = ?", userID, discussionID).
		Count(&count).Error; err != nil {
		return false, utils.NewStoreError("check bookmark", err)
	}
	return count > 0, nil
}

func (s *EngagementService) BookmarkCount(ctx context.Context, discussionID uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Bookmark{}).
		Where("discussion_id = ?", discussionID).
		Count(&count).Error; err != nil {
		return 0, utils.NewStoreError("count bookmarks", err)
	}
	return count, nil
}

// ListBookmarks 用户收藏的讨论，按收藏时间倒序，已删除的讨论不显示
func (s *EngagementService) ListBookmarks(ctx context.Context, userID uint, page Page) ([]models.Bookmark, error) {
	page = page.normalize(defaultPageSize, maxPageSize)
	bookmarks := make([]models.Bookmark, 0)
	err := s.db.WithContext(ctx).
		Joins("Discussion").
		Where("bookmarks.user_id = ? AND is_deleted = ?", userID, false).
		Order("bookmarks.created_at DESC, bookmarks.id DESC").
		Limit(page.Limit).Offset(page.Offset).
		Find(&bookmarks).Error
	if err != nil {
		return nil, utils.NewStoreError("list bookmarks", err)
	}
	return bookmarks, nil
}

// ViewInput 一次浏览事件，匿名访问时 UserID 为空
type ViewInput struct {
	DiscussionID uint
	UserID       *uint
	IPAddress    *string
	UserAgent    *string
}

const maxUserAgentBytes = 512

// truncateUTF8 截断到不超过 n 字节，不切断多字节字符
func truncateUTF8(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// RecordView 每次调用都追加一行，不做去重
func (s *EngagementService) RecordView(ctx context.Context, in ViewInput) error {
	tx := s.db.WithContext(ctx)
	if _, err := findDiscussion(tx, in.DiscussionID, false); err != nil {
		return err
	}
	if in.UserAgent != nil && len(*in.UserAgent) > maxUserAgentBytes {
		ua := truncateUTF8(*in.UserAgent, maxUserAgentBytes)
		in.UserAgent = &ua
	}
	view := models.View{
		DiscussionID: in.DiscussionID,
		UserID:       in.UserID,
		IPAddress:    in.IPAddress,
		UserAgent:    in.UserAgent,
	}
	if err := tx.Create(&view).Error; err != nil {
		return utils.NewStoreError("insert view", err)
	}
	return nil
}

// ViewCount 浏览数，实时统计 View 行数
func (s *EngagementService) ViewCount(ctx context.Context, discussionID uint) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.View{}).
		Where("discussion_id = ?", discussionID).
		Count(&count).Error; err != nil {
		return 0, utils.NewStoreError("count views", err)
	}
	return int(count), nil
}

// ViewCounts 批量统计浏览数，没有浏览记录的讨论不在结果中
func (s *EngagementService) ViewCounts(ctx context.Context, discussionIDs []uint) (map[uint]int, error) {
	counts := make(map[uint]int, len(discussionIDs))
	if len(discussionIDs) == 0 {
		return counts, nil
	}
	type row struct {
		DiscussionID uint
		Count        int
	}
	var rows []row
	if err := s.db.WithContext(ctx).Model(&models.View{}).
		Select("discussion_id, COUNT(*) AS count").
		Where("discussion_id IN ?", discussionIDs).
		Group("discussion_id").
		Scan(&rows).Error; err != nil {
		return nil, utils.NewStoreError("count views", err)
	}
	for _, r := range rows {
		counts[r.DiscussionID] = r.Count
	}
	return counts, nil
}

// ReportInput 举报，DiscussionID 与 CommentID 必须且只能设置一个
type ReportInput struct {
	ReporterID   uint                `json:"-"`
	Reason       models.ReportReason `json:"reason"`
	Description  *string             `json:"description"`
	DiscussionID *uint               `json:"-"`
	CommentID    *uint               `json:"-"`
}

func (s *EngagementService) ReportContent(ctx context.Context, in ReportInput) (*models.Report, error) {
	if in.ReporterID == 0 {
		return nil, utils.NewValidationError("reporter_id is required")
	}
	if (in.DiscussionID == nil) == (in.CommentID == nil) {
		return nil, utils.NewValidationError("exactly one of discussion_id or comment_id must be set")
	}
	if !in.Reason.Valid() {
		return nil, utils.NewValidationError("invalid report reason %q", in.Reason)
	}
	if in.Description != nil {
		desc := strings.TrimSpace(*in.Description)
		if desc == "" {
			in.Description = nil
		} else {
			in.Description = &desc
		}
	}

	tx := s.db.WithContext(ctx)
	if in.DiscussionID != nil {
		if _, err := findDiscussion(tx, *in.DiscussionID, false); err != nil {
			return nil, err
		}
	} else {
		if _, err := findComment(tx, *in.CommentID, false); err != nil {
			return nil, err
		}
	}

	report := models.Report{
		ReporterID:   in.ReporterID,
		DiscussionID: in.DiscussionID,
		CommentID:    in.CommentID,
		Reason:       in.Reason,
		Description:  in.Description,
	}
	if err := tx.Create(&report).Error; err != nil {
		return nil, utils.NewStoreError("insert report", err)
	}
	return &report, nil
}
