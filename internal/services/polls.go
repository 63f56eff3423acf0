package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
	"zhutan/internal/models"
	"zhutan/internal/utils"

	"gorm.io/gorm"
)

// CreatePollInput 创建投票的参数
type CreatePollInput struct {
	DiscussionID     uint            `json:"-"`
	Question         string          `json:"question"`
	Options          []OptionContent `json:"options"`
	IsMultipleChoice bool            `json:"is_multiple_choice"`
	IsAnonymous      bool            `json:"is_anonymous"`
	ExpiresAt        *time.Time      `json:"expires_at"`
}

// PollService 单选/多选投票。计数总是从 poll_votes 重算
type PollService struct {
	db         *gorm.DB
	reconciler *Reconciler
	now        func() time.Time
	recount    func(tx *gorm.DB, poll *models.Poll) error
}

func NewPollService(db *gorm.DB, reconciler *Reconciler) *PollService {
	return &PollService{db: db, reconciler: reconciler, now: time.Now, recount: recountPoll}
}

// CreatePoll 为 content_type=poll 的讨论创建投票，投票与选项同一事务写入
func (s *PollService) CreatePoll(ctx context.Context, in CreatePollInput) (*models.Poll, error) {
	if err := validatePollInput(in, s.now()); err != nil {
		return nil, err
	}

	var poll *models.Poll
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := findDiscussion(tx, in.DiscussionID, true)
		if err != nil {
			return err
		}
		if d.ContentType != models.ContentTypePoll {
			return utils.NewValidationError("discussion %d is not a poll discussion", d.ID)
		}
		poll, err = createPollTx(tx, in)
		return err
	})
	if err != nil {
		return nil, utils.NewStoreError("create poll", err)
	}
	return poll, nil
}

func validatePollInput(in CreatePollInput, now time.Time) error {
	if strings.TrimSpace(in.Question) == "" {
		return utils.NewValidationError("poll question must not be empty")
	}
	if len(in.Options) < 2 {
		return utils.NewValidationError("poll needs at least 2 options")
	}
	for i, o := range in.Options {
		if strings.TrimSpace(o.Text) == "" {
			return utils.NewValidationError("poll option %d must not be empty", i)
		}
	}
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return utils.NewValidationError("expires_at must be in the future")
	}
	return nil
}

// createPollTx 在调用方事务内写入投票和全部选项，任一失败整体回滚
func createPollTx(tx *gorm.DB, in CreatePollInput) (*models.Poll, error) {
	var existing int64
	if err := tx.Model(&models.Poll{}).Where("discussion_id = ?", in.DiscussionID).Count(&existing).Error; err != nil {
		return nil, utils.NewStoreError("check poll", err)
	}
	if existing > 0 {
		return nil, utils.NewConflictError("discussion %d already has a poll", in.DiscussionID)
	}

	poll := models.Poll{
		DiscussionID:     in.DiscussionID,
		Question:         strings.TrimSpace(in.Question),
		IsMultipleChoice: in.IsMultipleChoice,
		IsAnonymous:      in.IsAnonymous,
		ExpiresAt:        in.ExpiresAt,
	}
	if err := tx.Omit("Options").Create(&poll).Error; err != nil {
		return nil, utils.NewStoreError("insert poll", err)
	}

	poll.Options = make([]models.PollOption, 0, len(in.Options))
	for i, o := range in.Options {
		o.Text = strings.TrimSpace(o.Text)
		option := models.PollOption{
			PollID:       poll.ID,
			OptionText:   EncodeOptionText(o),
			DisplayOrder: i,
		}
		if err := tx.Create(&option).Error; err != nil {
			return nil, utils.NewStoreError("insert poll option", err)
		}
		poll.Options = append(poll.Options, option)
	}
	decodeOptions(poll.Options)
	return &poll, nil
}

// GetPoll 读取讨论的投票，选项按 display_order 排序并解码
func (s *PollService) GetPoll(ctx context.Context, discussionID uint) (*models.Poll, error) {
	tx := s.db.WithContext(ctx)
	if _, err := findDiscussion(tx, discussionID, false); err != nil {
		return nil, err
	}

	var poll models.Poll
	err := tx.Preload("Options", orderOptions).Where("discussion_id = ?", discussionID).First(&poll).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewAppError(utils.ErrNotFound, "poll not found for discussion", nil)
	}
	if err != nil {
		return nil, utils.NewStoreError("load poll", err)
	}
	decodeOptions(poll.Options)
	return &poll, nil
}

// PollsByDiscussion 批量读取投票，key 为 discussion_id
func (s *PollService) PollsByDiscussion(ctx context.Context, discussionIDs []uint) (map[uint]*models.Poll, error) {
	result := make(map[uint]*models.Poll, len(discussionIDs))
	if len(discussionIDs) == 0 {
		return result, nil
	}
	var polls []models.Poll
	if err := s.db.WithContext(ctx).Preload("Options", orderOptions).
		Where("discussion_id IN ?", discussionIDs).Find(&polls).Error; err != nil {
		return nil, utils.NewStoreError("load polls", err)
	}
	for i := range polls {
		decodeOptions(polls[i].Options)
		result[polls[i].DiscussionID] = &polls[i]
	}
	return result, nil
}

func orderOptions(db *gorm.DB) *gorm.DB {
	return db.Order("display_order ASC, id ASC")
}

// CastVotes 用 optionIDs 替换用户在该投票中的全部选择；空集合表示撤销全部
func (s *PollService) CastVotes(ctx context.Context, pollID uint, optionIDs []uint, userID uint) (*models.Poll, error) {
	if userID == 0 {
		return nil, utils.NewValidationError("user_id is required")
	}
	return s.mutate(ctx, pollID, func(tx *gorm.DB, poll *models.Poll) ([]uint, error) {
		return dedupeIDs(optionIDs), nil
	}, userID)
}

// ToggleOption 切换单个选项：已选则取消；否则单选替换、多选追加
func (s *PollService) ToggleOption(ctx context.Context, pollID, optionID, userID uint) (*models.Poll, error) {
	if userID == 0 {
		return nil, utils.NewValidationError("user_id is required")
	}
	return s.mutate(ctx, pollID, func(tx *gorm.DB, poll *models.Poll) ([]uint, error) {
		current, err := userOptionIDs(tx, poll.ID, userID)
		if err != nil {
			return nil, utils.NewStoreError("load poll votes", err)
		}

		next := make([]uint, 0, len(current)+1)
		found := false
		for _, id := range current {
			if id == optionID {
				found = true
				continue
			}
			next = append(next, id)
		}
		if found {
			return next, nil
		}
		if !poll.IsMultipleChoice {
			return []uint{optionID}, nil
		}
		return append(next, optionID), nil
	}, userID)
}

// mutate 锁定投票行后计算新选择并写入，读-改-写在同一事务内完成
func (s *PollService) mutate(ctx context.Context, pollID uint, selection func(tx *gorm.DB, poll *models.Poll) ([]uint, error), userID uint) (*models.Poll, error) {
	var poll models.Poll
	var staleErr error

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := loadPoll(tx, pollID, &poll, true); err != nil {
			return err
		}
		if poll.Expired(s.now()) {
			return utils.NewExpiredError(poll.ID)
		}

		ids, err := selection(tx, &poll)
		if err != nil {
			return err
		}
		if !poll.IsMultipleChoice && len(ids) > 1 {
			return utils.NewValidationError("poll %d is single choice", poll.ID)
		}

		var options []models.PollOption
		if err := tx.Where("poll_id = ?", poll.ID).Find(&options).Error; err != nil {
			return utils.NewStoreError("load poll options", err)
		}
		valid := make(map[uint]bool, len(options))
		for _, o := range options {
			valid[o.ID] = true
		}
		for _, id := range ids {
			if !valid[id] {
				return utils.NewValidationError("option %d does not belong to poll %d", id, poll.ID)
			}
		}

		if err := tx.Where("poll_id = ? AND user_id = ?", poll.ID, userID).Delete(&models.PollVote{}).Error; err != nil {
			return utils.NewStoreError("clear poll votes", err)
		}
		for _, id := range ids {
			vote := models.PollVote{PollID: poll.ID, OptionID: id, UserID: userID}
			if err := tx.Create(&vote).Error; err != nil {
				return utils.NewStoreError("insert poll vote", err)
			}
		}

		if err := tx.Transaction(func(inner *gorm.DB) error {
			return s.recount(inner, &poll)
		}); err != nil {
			staleErr = err
		}
		return nil
	})
	if err != nil {
		return nil, utils.NewStoreError("cast poll votes", err)
	}

	if err := s.db.WithContext(ctx).Preload("Options", orderOptions).First(&poll, poll.ID).Error; err != nil {
		return nil, utils.NewStoreError("reload poll", err)
	}
	decodeOptions(poll.Options)

	if staleErr != nil {
		slog.Warn("poll vote recorded but recount failed", "poll_id", poll.ID, "user_id", userID, "error", staleErr)
		if s.reconciler != nil {
			s.reconciler.SchedulePoll(poll.ID)
		}
		return &poll, utils.NewStaleAggregateError("poll vote recorded, counts refresh pending", staleErr)
	}
	return &poll, nil
}

// loadPoll 读取投票，lock 为 true 时加行锁；所属讨论已删除时视为不存在
func loadPoll(tx *gorm.DB, pollID uint, poll *models.Poll, lock bool) error {
	q := tx
	if lock {
		q = q.Clauses(forUpdate)
	}
	err := q.First(poll, pollID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.NewNotFoundError("poll", pollID)
	}
	if err != nil {
		return utils.NewStoreError("load poll", err)
	}
	if _, err := findDiscussion(tx, poll.DiscussionID, false); err != nil {
		if utils.IsErrorCode(err, utils.ErrNotFound) {
			return utils.NewNotFoundError("poll", pollID)
		}
		return err
	}
	return nil
}

// recountPoll 重算每个选项的 vote_count 与投票的 total_votes
func recountPoll(tx *gorm.DB, poll *models.Poll) error {
	type optionCount struct {
		OptionID uint
		Count    int
	}
	var counts []optionCount
	if err := tx.Model(&models.PollVote{}).
		Select("option_id, COUNT(*) AS count").
		Where("poll_id = ?", poll.ID).
		Group("option_id").
		Scan(&counts).Error; err != nil {
		return err
	}
	countMap := make(map[uint]int, len(counts))
	total := 0
	for _, c := range counts {
		countMap[c.OptionID] = c.Count
		total += c.Count
	}

	var options []models.PollOption
	if err := tx.Where("poll_id = ?", poll.ID).Find(&options).Error; err != nil {
		return err
	}
	for _, o := range options {
		if err := tx.Model(&models.PollOption{}).Where("id = ?", o.ID).
			UpdateColumn("vote_count", countMap[o.ID]).Error; err != nil {
			return err
		}
	}

	poll.TotalVotes = total
	return tx.Model(&models.Poll{}).Where("id = ?", poll.ID).UpdateColumn("total_votes", total).Error
}

// UserVotes 用户当前的选择
func (s *PollService) UserVotes(ctx context.Context, pollID, userID uint) ([]uint, error) {
	tx := s.db.WithContext(ctx)
	var poll models.Poll
	if err := loadPoll(tx, pollID, &poll, false); err != nil {
		return nil, err
	}
	ids, err := userOptionIDs(tx, pollID, userID)
	if err != nil {
		return nil, utils.NewStoreError("load poll votes", err)
	}
	return ids, nil
}

func userOptionIDs(tx *gorm.DB, pollID, userID uint) ([]uint, error) {
	ids := make([]uint, 0)
	err := tx.Model(&models.PollVote{}).
		Where("poll_id = ? AND user_id = ?", pollID, userID).
		Order("option_id ASC").
		Pluck("option_id", &ids).Error
	return ids, err
}

// Voters 每个选项的投票人，匿名投票不公开
func (s *PollService) Voters(ctx context.Context, pollID uint) (map[uint][]uint, error) {
	tx := s.db.WithContext(ctx)
	var poll models.Poll
	if err := loadPoll(tx, pollID, &poll, false); err != nil {
		return nil, err
	}
	if poll.IsAnonymous {
		return nil, utils.NewForbiddenError("poll is anonymous")
	}

	var votes []models.PollVote
	if err := tx.Where("poll_id = ?", pollID).Order("created_at ASC, id ASC").Find(&votes).Error; err != nil {
		return nil, utils.NewStoreError("load poll votes", err)
	}
	voters := make(map[uint][]uint)
	for _, v := range votes {
		voters[v.OptionID] = append(voters[v.OptionID], v.UserID)
	}
	return voters, nil
}

func dedupeIDs(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
