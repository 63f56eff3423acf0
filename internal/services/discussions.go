package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"
	"zhutan/internal/models"
	"zhutan/internal/utils"

	"gorm.io/gorm"
)

type DiscussionSort string

const (
	SortNewest   DiscussionSort = "newest"
	SortPopular  DiscussionSort = "popular"
	SortActivity DiscussionSort = "activity"
)

const (
	maxTitleLength = 200
	maxTags        = 10
	maxTagLength   = 50
)

// DiscussionInput 创建/修改讨论的参数
type DiscussionInput struct {
	Title       string             `json:"title"`
	Content     string             `json:"content"`
	ContentType models.ContentType `json:"content_type"`
	CategoryID  uint               `json:"category_id"`
	Tags        []string           `json:"tags"`
	Poll        *CreatePollInput   `json:"poll"`
}

// DiscussionFilter 列表查询条件，零值表示不过滤
type DiscussionFilter struct {
	Limit      int
	Offset     int
	CategoryID *uint
	Tag        string
	Search     string
	SortBy     DiscussionSort
	AuthorID   *uint
}

// DiscussionView 附带作者、分类、投票和实时浏览数的讨论
type DiscussionView struct {
	models.Discussion
	Tags        []string         `json:"tags"`
	ContentHTML string           `json:"content_html"`
	Author      AuthorSummary    `json:"author"`
	Category    *CategorySummary `json:"category"`
	Poll        *models.Poll     `json:"poll,omitempty"`
}

// DiscussionPage 分页结果。Total 为过滤后的行数，作者已注销的条目在计数之后剔除
type DiscussionPage struct {
	Items  []DiscussionView `json:"items"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

type DiscussionService struct {
	db          *gorm.DB
	polls       *PollService
	engagement  *EngagementService
	directory   Directory
	now         func() time.Time
	defaultPage int
	maxPage     int
}

func NewDiscussionService(db *gorm.DB, polls *PollService, engagement *EngagementService, directory Directory) *DiscussionService {
	return &DiscussionService{
		db:          db,
		polls:       polls,
		engagement:  engagement,
		directory:   directory,
		now:         time.Now,
		defaultPage: defaultPageSize,
		maxPage:     maxPageSize,
	}
}

// SetPageLimits 覆盖默认分页大小
func (s *DiscussionService) SetPageLimits(def, max int) {
	if def > 0 {
		s.defaultPage = def
	}
	if max >= s.defaultPage {
		s.maxPage = max
	}
}

// normalizeTags 小写、去空白、去重，保持原始顺序
func normalizeTags(tags []string) ([]string, error) {
	seen := make(map[string]bool, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		if utf8.RuneCountInString(t) > maxTagLength {
			return nil, utils.NewValidationError("tag %q is too long", t)
		}
		seen[t] = true
		out = append(out, t)
	}
	if len(out) > maxTags {
		return nil, utils.NewValidationError("at most %d tags allowed", maxTags)
	}
	return out, nil
}

func (s *DiscussionService) validateInput(ctx context.Context, in *DiscussionInput) error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return utils.NewValidationError("title must not be empty")
	}
	if utf8.RuneCountInString(in.Title) > maxTitleLength {
		return utils.NewValidationError("title must be at most %d characters", maxTitleLength)
	}
	if in.CategoryID == 0 {
		return utils.NewValidationError("category_id is required")
	}
	category, err := s.directory.Category(ctx, in.CategoryID)
	if err != nil {
		return err
	}
	if category == nil {
		return utils.NewValidationError("unknown category %d", in.CategoryID)
	}
	tags, err := normalizeTags(in.Tags)
	if err != nil {
		return err
	}
	in.Tags = tags
	return nil
}

// CreateDiscussion 发布讨论；content_type=poll 且带投票参数时在同一事务内创建投票
func (s *DiscussionService) CreateDiscussion(ctx context.Context, authorID uint, in DiscussionInput) (*DiscussionView, error) {
	if authorID == 0 {
		return nil, utils.NewValidationError("author_id is required")
	}
	if in.ContentType == "" {
		in.ContentType = models.ContentTypeText
	}
	if in.ContentType != models.ContentTypeText && in.ContentType != models.ContentTypePoll {
		return nil, utils.NewValidationError("invalid content_type %q", in.ContentType)
	}
	if in.Poll != nil && in.ContentType != models.ContentTypePoll {
		return nil, utils.NewValidationError("poll requires content_type=poll")
	}
	if err := s.validateInput(ctx, &in); err != nil {
		return nil, err
	}
	if strings.TrimSpace(in.Content) == "" && in.ContentType == models.ContentTypeText {
		return nil, utils.NewValidationError("content must not be empty")
	}
	now := s.now()
	if in.Poll != nil {
		if err := validatePollInput(*in.Poll, now); err != nil {
			return nil, err
		}
	}

	discussion := models.Discussion{
		Title:          in.Title,
		Slug:           utils.MakeSlug(in.Title),
		Content:        in.Content,
		ContentType:    in.ContentType,
		AuthorID:       authorID,
		CategoryID:     in.CategoryID,
		LastActivityAt: now,
	}
	for _, t := range in.Tags {
		discussion.Tags = append(discussion.Tags, models.DiscussionTag{Tag: t})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&discussion).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return utils.NewConflictError("slug %q already exists", discussion.Slug)
			}
			return utils.NewStoreError("insert discussion", err)
		}
		if in.Poll != nil {
			p := *in.Poll
			p.DiscussionID = discussion.ID
			if _, err := createPollTx(tx, p); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, utils.NewStoreError("create discussion", err)
	}

	slog.Info("discussion created", "id", discussion.ID, "author_id", authorID, "content_type", discussion.ContentType)
	return s.GetDiscussion(ctx, discussion.ID)
}

// UpdateDiscussion 修改标题、正文、分类和标签，仅作者本人可操作；content_type 不可变
func (s *DiscussionService) UpdateDiscussion(ctx context.Context, id, editorID uint, in DiscussionInput) (*DiscussionView, error) {
	if err := s.validateInput(ctx, &in); err != nil {
		return nil, err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := findDiscussion(tx, id, true)
		if err != nil {
			return err
		}
		if d.AuthorID != editorID {
			return utils.NewForbiddenError("only the author can edit this discussion")
		}
		if in.ContentType != "" && in.ContentType != d.ContentType {
			return utils.NewValidationError("content_type cannot be changed")
		}
		if strings.TrimSpace(in.Content) == "" && d.ContentType == models.ContentTypeText {
			return utils.NewValidationError("content must not be empty")
		}

		if err := tx.Model(&models.Discussion{}).Where("id = ?", id).Updates(map[string]any{
			"title":       in.Title,
			"content":     in.Content,
			"category_id": in.CategoryID,
			"updated_at":  s.now(),
		}).Error; err != nil {
			return utils.NewStoreError("update discussion", err)
		}

		if err := tx.Where("discussion_id = ?", id).Delete(&models.DiscussionTag{}).Error; err != nil {
			return utils.NewStoreError("clear tags", err)
		}
		for _, t := range in.Tags {
			if err := tx.Create(&models.DiscussionTag{DiscussionID: id, Tag: t}).Error; err != nil {
				return utils.NewStoreError("insert tag", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, utils.NewStoreError("update discussion", err)
	}
	return s.GetDiscussion(ctx, id)
}

// DeleteDiscussion 软删除，评论、投票等保留
func (s *DiscussionService) DeleteDiscussion(ctx context.Context, id, actorID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := findDiscussion(tx, id, true)
		if err != nil {
			return err
		}
		if d.AuthorID != actorID {
			return utils.NewForbiddenError("only the author can delete this discussion")
		}
		return tx.Model(&models.Discussion{}).Where("id = ?", id).
			UpdateColumn("is_deleted", true).Error
	})
	if err != nil {
		return utils.NewStoreError("delete discussion", err)
	}
	slog.Info("discussion deleted", "id", id, "actor_id", actorID)
	return nil
}

// GetDiscussion 读取单个讨论并补全关联数据；作者已不存在时视为不存在
func (s *DiscussionService) GetDiscussion(ctx context.Context, id uint) (*DiscussionView, error) {
	var d models.Discussion
	err := s.db.WithContext(ctx).Preload("Tags", orderTags).
		Where("id = ? AND is_deleted = ?", id, false).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewNotFoundError("discussion", id)
	}
	if err != nil {
		return nil, utils.NewStoreError("load discussion", err)
	}

	views, err := s.enrich(ctx, []models.Discussion{d})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, utils.NewNotFoundError("discussion", id)
	}
	return &views[0], nil
}

func orderTags(db *gorm.DB) *gorm.DB {
	return db.Order("id ASC")
}

// filtered 按过滤条件构造查询，每次返回新的链，Count 与 Find 互不影响
func (s *DiscussionService) filtered(ctx context.Context, f DiscussionFilter) *gorm.DB {
	q := s.db.WithContext(ctx).Model(&models.Discussion{}).Where("is_deleted = ?", false)
	if f.CategoryID != nil {
		q = q.Where("category_id = ?", *f.CategoryID)
	}
	if f.AuthorID != nil {
		q = q.Where("author_id = ?", *f.AuthorID)
	}
	if tag := strings.ToLower(strings.TrimSpace(f.Tag)); tag != "" {
		q = q.Where("id IN (?)", s.db.Model(&models.DiscussionTag{}).Select("discussion_id").Where("tag = ?", tag))
	}
	if search := strings.ToLower(strings.TrimSpace(f.Search)); search != "" {
		pattern := "%" + escapeLike(search) + "%"
		q = q.Where(`(LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	return q
}

func discussionOrder(sortBy DiscussionSort) (string, error) {
	switch sortBy {
	case "", SortNewest:
		return "created_at DESC, id DESC", nil
	case SortPopular:
		return "vote_score DESC, id DESC", nil
	case SortActivity:
		return "last_activity_at DESC, id DESC", nil
	}
	return "", utils.NewValidationError("invalid sort_by %q", sortBy)
}

// ListDiscussions 过滤、排序、分页并补全作者/分类/投票/浏览数
func (s *DiscussionService) ListDiscussions(ctx context.Context, f DiscussionFilter) (*DiscussionPage, error) {
	order, err := discussionOrder(f.SortBy)
	if err != nil {
		return nil, err
	}
	page := Page{Limit: f.Limit, Offset: f.Offset}.normalize(s.defaultPage, s.maxPage)

	var total int64
	if err := s.filtered(ctx, f).Count(&total).Error; err != nil {
		return nil, utils.NewStoreError("count discussions", err)
	}

	discussions := make([]models.Discussion, 0, page.Limit)
	if err := s.filtered(ctx, f).Preload("Tags", orderTags).
		Order(order).Limit(page.Limit).Offset(page.Offset).
		Find(&discussions).Error; err != nil {
		return nil, utils.NewStoreError("list discussions", err)
	}

	items, err := s.enrich(ctx, discussions)
	if err != nil {
		return nil, err
	}
	return &DiscussionPage{Items: items, Total: total, Limit: page.Limit, Offset: page.Offset}, nil
}

// enrich 批量补全，保持输入顺序；作者无法解析的讨论被剔除
func (s *DiscussionService) enrich(ctx context.Context, discussions []models.Discussion) ([]DiscussionView, error) {
	if len(discussions) == 0 {
		return []DiscussionView{}, nil
	}
	ids := make([]uint, 0, len(discussions))
	authorIDs := make([]uint, 0, len(discussions))
	var pollIDs []uint
	for _, d := range discussions {
		ids = append(ids, d.ID)
		authorIDs = append(authorIDs, d.AuthorID)
		if d.ContentType == models.ContentTypePoll {
			pollIDs = append(pollIDs, d.ID)
		}
	}

	authors, err := s.directory.Authors(ctx, authorIDs)
	if err != nil {
		return nil, err
	}
	viewCounts, err := s.engagement.ViewCounts(ctx, ids)
	if err != nil {
		return nil, err
	}
	polls, err := s.polls.PollsByDiscussion(ctx, pollIDs)
	if err != nil {
		return nil, err
	}

	views := make([]DiscussionView, 0, len(discussions))
	for _, d := range discussions {
		author, ok := authors[d.AuthorID]
		if !ok {
			continue
		}
		category, err := s.directory.Category(ctx, d.CategoryID)
		if err != nil {
			return nil, err
		}
		d.ViewCount = viewCounts[d.ID]
		views = append(views, DiscussionView{
			Discussion:  d,
			Tags:        d.TagNames(),
			ContentHTML: utils.RenderMarkdown(d.Content),
			Author:      author,
			Category:    category,
			Poll:        polls[d.ID],
		})
	}
	return views, nil
}
