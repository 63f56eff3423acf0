package services

import (
	"context"
	"errors"
	"log/slog"
	"zhutan/internal/models"
	"zhutan/internal/utils"

	"gorm.io/gorm"
)

// VoteResult 投票后的状态
type VoteResult struct {
	Target    models.VoteTarget `json:"target"`
	UserVote  models.VoteType   `json:"user_vote"`
	VoteScore int               `json:"vote_score"`
}

// VoteService 投票与 vote_score 聚合。分数总是从 votes 表全量重算，不做增量加减
type VoteService struct {
	db         *gorm.DB
	reconciler *Reconciler
	recompute  func(tx *gorm.DB, target models.VoteTarget) (int, error)
}

func NewVoteService(db *gorm.DB, reconciler *Reconciler) *VoteService {
	return &VoteService{db: db, reconciler: reconciler, recompute: recomputeVoteScore}
}

// VoteOnDiscussion 讨论只支持点赞：down 表示撤销自己的赞
func (s *VoteService) VoteOnDiscussion(ctx context.Context, discussionID, userID uint, voteType models.VoteType) (*VoteResult, error) {
	switch voteType {
	case models.VoteUp:
		return s.apply(ctx, models.DiscussionTarget(discussionID), userID, models.VoteUp)
	case models.VoteDown:
		return s.apply(ctx, models.DiscussionTarget(discussionID), userID, models.VoteNeutral)
	}
	return nil, utils.NewValidationError("discussion vote type must be up or down, got %q", voteType)
}

// VoteOnComment 评论支持 up/down，neutral 表示撤销
func (s *VoteService) VoteOnComment(ctx context.Context, commentID, userID uint, voteType models.VoteType) (*VoteResult, error) {
	switch voteType {
	case models.VoteUp, models.VoteDown, models.VoteNeutral:
		return s.apply(ctx, models.CommentTarget(commentID), userID, voteType)
	}
	return nil, utils.NewValidationError("comment vote type must be up, down or neutral, got %q", voteType)
}

// UserVote 查询用户当前对目标的投票，未投票返回 neutral
func (s *VoteService) UserVote(ctx context.Context, target models.VoteTarget, userID uint) (models.VoteType, error) {
	var v models.Vote
	err := s.db.WithContext(ctx).
		Where(target.Column()+" = ? AND user_id = ?", target.ID, userID).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.VoteNeutral, nil
	}
	if err != nil {
		return "", utils.NewStoreError("load vote", err)
	}
	return v.VoteType, nil
}

// apply 写投票并重算分数。二者在同一事务内、目标行加锁，
// 重算放在 savepoint 中：重算失败只回滚重算，投票照常提交并交给 Reconciler 补算
func (s *VoteService) apply(ctx context.Context, target models.VoteTarget, userID uint, voteType models.VoteType) (*VoteResult, error) {
	if target.ID == 0 {
		return nil, utils.NewValidationError("%s id is required", target.Kind)
	}
	if userID == 0 {
		return nil, utils.NewValidationError("user_id is required")
	}

	result := &VoteResult{Target: target, UserVote: voteType}
	var staleErr error

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := lockVoteTarget(tx, target)
		if err != nil {
			return err
		}
		result.VoteScore = current

		if err := writeVote(tx, target, userID, voteType); err != nil {
			return utils.NewStoreError("write vote", err)
		}

		if err := tx.Transaction(func(inner *gorm.DB) error {
			score, err := s.recompute(inner, target)
			if err != nil {
				return err
			}
			result.VoteScore = score
			return nil
		}); err != nil {
			staleErr = err
		}
		return nil
	})
	if err != nil {
		return nil, utils.NewStoreError("vote", err)
	}

	if staleErr != nil {
		slog.Warn("vote recorded but score recompute failed",
			"kind", target.Kind, "id", target.ID, "user_id", userID, "error", staleErr)
		if s.reconciler != nil {
			s.reconciler.Schedule(target)
		}
		return result, utils.NewStaleAggregateError("vote recorded, score refresh pending", staleErr)
	}
	return result, nil
}

// Recompute 加锁后全量重算目标的 vote_score
func (s *VoteService) Recompute(ctx context.Context, target models.VoteTarget) (int, error) {
	var score int
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := lockVoteTarget(tx, target); err != nil {
			return err
		}
		var err error
		score, err = s.recompute(tx, target)
		return err
	})
	return score, err
}

// lockVoteTarget 锁定被投票的讨论/评论行，返回当前存储的分数
func lockVoteTarget(tx *gorm.DB, target models.VoteTarget) (int, error) {
	switch target.Kind {
	case models.TargetDiscussion:
		d, err := findDiscussion(tx, target.ID, true)
		if err != nil {
			return 0, err
		}
		return d.VoteScore, nil
	case models.TargetComment:
		c, err := findComment(tx, target.ID, true)
		if err != nil {
			return 0, err
		}
		return c.VoteScore, nil
	}
	return 0, utils.NewValidationError("unknown vote target %q", target.Kind)
}

// writeVote neutral 删除用户的投票，up/down 为 upsert
func writeVote(tx *gorm.DB, target models.VoteTarget, userID uint, voteType models.VoteType) error {
	where := target.Column() + " = ? AND user_id = ?"
	if voteType == models.VoteNeutral {
		return tx.Where(where, target.ID, userID).Delete(&models.Vote{}).Error
	}

	var existing models.Vote
	err := tx.Where(where, target.ID, userID).First(&existing).Error
	if err == nil {
		if existing.VoteType == voteType {
			return nil
		}
		return tx.Model(&existing).Update("vote_type", voteType).Error
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	vote := models.NewVote(target, userID, voteType)
	return tx.Create(&vote).Error
}

// recomputeVoteScore vote_score = count(up) - count(down)，写回目标行
func recomputeVoteScore(tx *gorm.DB, target models.VoteTarget) (int, error) {
	var score int
	err := tx.Model(&models.Vote{}).
		Select("COALESCE(SUM(CASE WHEN vote_type = ? THEN 1 WHEN vote_type = ? THEN -1 ELSE 0 END), 0)", models.VoteUp, models.VoteDown).
		Where(target.Column()+" = ?", target.ID).
		Scan(&score).Error
	if err != nil {
		return 0, err
	}

	var model interface{}
	if target.Kind == models.TargetComment {
		model = &models.Comment{}
	} else {
		model = &models.Discussion{}
	}
	if err := tx.Model(model).Where("id = ?", target.ID).UpdateColumn("vote_score", score).Error; err != nil {
		return 0, err
	}
	return score, nil
}
