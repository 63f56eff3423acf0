package services

import (
	"context"
	"strings"
	"time"
	"zhutan/internal/models"
	"zhutan/internal/utils"

	"gorm.io/gorm"
)

type CommentSort string

const (
	CommentSortNewest  CommentSort = "newest"
	CommentSortOldest  CommentSort = "oldest"
	CommentSortPopular CommentSort = "popular"
)

// CommentService 评论树管理：插入时计算 depth/path，软删除不级联
type CommentService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{db: db, now: time.Now}
}

// CreateComment 发表评论或回复。parentID 为 nil 时为根评论
func (s *CommentService) CreateComment(ctx context.Context, discussionID uint, parentID *uint, authorID uint, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if discussionID == 0 {
		return nil, utils.NewValidationError("discussion_id is required")
	}
	if authorID == 0 {
		return nil, utils.NewValidationError("author_id is required")
	}
	if content == "" {
		return nil, utils.NewValidationError("content must not be empty")
	}

	comment := models.Comment{
		DiscussionID: discussionID,
		ParentID:     parentID,
		AuthorID:     authorID,
		Content:      content,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := findDiscussion(tx, discussionID, true); err != nil {
			return err
		}

		if parentID != nil {
			parent, err := findComment(tx, *parentID, false)
			if err != nil {
				return err
			}
			// 父评论必须属于同一讨论
			if parent.DiscussionID != discussionID {
				return utils.NewNotFoundError("parent comment", *parentID)
			}
			comment.Depth = parent.Depth + 1
			comment.Path = parent.ChildPath()
		}

		if err := tx.Create(&comment).Error; err != nil {
			return utils.NewStoreError("insert comment", err)
		}
		return refreshCommentCount(tx, discussionID, s.now())
	})
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// GetComment 按 ID 读取未删除的评论，不受祖先是否删除影响
func (s *CommentService) GetComment(ctx context.Context, id uint) (*models.Comment, error) {
	return findComment(s.db.WithContext(ctx), id, false)
}

// ListComments 列出某讨论下 parent_id 精确匹配的评论（nil 表示根评论）
func (s *CommentService) ListComments(ctx context.Context, discussionID uint, parentID *uint, sortBy CommentSort, page Page) ([]models.Comment, error) {
	order, err := commentOrder(sortBy)
	if err != nil {
		return nil, err
	}
	tx := s.db.WithContext(ctx)
	if _, err := findDiscussion(tx, discussionID, false); err != nil {
		return nil, err
	}

	page = page.normalize(defaultPageSize, maxPageSize)
	q := tx.Where("discussion_id = ? AND is_deleted = ?", discussionID, false)
	if parentID == nil {
		q = q.Where("parent_id IS NULL")
	} else {
		q = q.Where("parent_id = ?", *parentID)
	}

	comments := make([]models.Comment, 0)
	if err := q.Order(order).Limit(page.Limit).Offset(page.Offset).Find(&comments).Error; err != nil {
		return nil, utils.NewStoreError("list comments", err)
	}
	return comments, nil
}

// Subtree 返回某评论的全部未删除后代，按 path 前缀匹配，无需递归
func (s *CommentService) Subtree(ctx context.Context, id uint) ([]models.Comment, error) {
	tx := s.db.WithContext(ctx)
	root, err := findComment(tx, id, false)
	if err != nil {
		return nil, err
	}

	prefix := root.ChildPath()
	descendants := make([]models.Comment, 0)
	err = tx.Where("discussion_id = ? AND is_deleted = ?", root.DiscussionID, false).
		Where("(path = ? OR path LIKE ?)", prefix, prefix+".%").
		Order("depth ASC, created_at ASC, id ASC").
		Find(&descendants).Error
	if err != nil {
		return nil, utils.NewStoreError("load subtree", err)
	}
	return descendants, nil
}

// UpdateComment 修改内容并标记为已编辑，仅作者本人可操作
func (s *CommentService) UpdateComment(ctx context.Context, id, editorID uint, content string) (*models.Comment, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, utils.NewValidationError("content must not be empty")
	}

	var comment *models.Comment
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := findComment(tx, id, true)
		if err != nil {
			return err
		}
		if c.AuthorID != editorID {
			return utils.NewForbiddenError("only the author can edit this comment")
		}
		c.Content = content
		c.IsEdited = true
		if err := tx.Model(c).Updates(map[string]interface{}{
			"content":   content,
			"is_edited": true,
		}).Error; err != nil {
			return utils.NewStoreError("update comment", err)
		}
		comment = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return comment, nil
}

// DeleteComment 软删除单条评论，子评论不受影响
func (s *CommentService) DeleteComment(ctx context.Context, id, actorID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		c, err := findComment(tx, id, true)
		if err != nil {
			return err
		}
		if c.AuthorID != actorID {
			return utils.NewForbiddenError("only the author can delete this comment")
		}
		if err := tx.Model(c).Update("is_deleted", true).Error; err != nil {
			return utils.NewStoreError("delete comment", err)
		}
		return refreshCommentCount(tx, c.DiscussionID, time.Time{})
	})
}

func commentOrder(sortBy CommentSort) (string, error) {
	switch sortBy {
	case "", CommentSortNewest:
		return "created_at DESC, id DESC", nil
	case CommentSortOldest:
		return "created_at ASC, id ASC", nil
	case CommentSortPopular:
		return "vote_score DESC, created_at DESC, id DESC", nil
	}
	return "", utils.NewValidationError("unknown sort_by %q", sortBy)
}

// refreshCommentCount 从评论表重算 comment_count；activity 非零时同时刷新最后活跃时间
func refreshCommentCount(tx *gorm.DB, discussionID uint, activity time.Time) error {
	var count int64
	if err := tx.Model(&models.Comment{}).
		Where("discussion_id = ? AND is_deleted = ?", discussionID, false).
		Count(&count).Error; err != nil {
		return utils.NewStoreError("count comments", err)
	}

	updates := map[string]interface{}{"comment_count": count}
	if !activity.IsZero() {
		updates["last_activity_at"] = activity
	}
	if err := tx.Model(&models.Discussion{}).Where("id = ?", discussionID).UpdateColumns(updates).Error; err != nil {
		return utils.NewStoreError("update comment count", err)
	}
	return nil
}
