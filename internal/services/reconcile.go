package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
	"zhutan/internal/models"

	"gorm.io/gorm"
)

// aggregateKey 需要补算的聚合：讨论/评论的 vote_score，或投票的计数
type aggregateKey struct {
	kind string
	id   uint
}

const aggregatePoll = "poll"

// Reconciler 后台补算聚合值：行内重算失败时入队，另有全量巡检
type Reconciler struct {
	db       *gorm.DB
	queue    chan aggregateKey
	pending  map[aggregateKey]bool
	mu       sync.Mutex
	batch    int
	interval time.Duration
}

func NewReconciler(db *gorm.DB) *Reconciler {
	return &Reconciler{
		db:       db,
		queue:    make(chan aggregateKey, 1000),
		pending:  make(map[aggregateKey]bool),
		batch:    50,
		interval: 500 * time.Millisecond,
	}
}

// Schedule 将投票目标加入补算队列，已在队列中的跳过
func (r *Reconciler) Schedule(target models.VoteTarget) {
	r.enqueue(aggregateKey{kind: string(target.Kind), id: target.ID})
}

// SchedulePoll 将投票（poll）的计数加入补算队列
func (r *Reconciler) SchedulePoll(pollID uint) {
	r.enqueue(aggregateKey{kind: aggregatePoll, id: pollID})
}

func (r *Reconciler) enqueue(key aggregateKey) {
	r.mu.Lock()
	if r.pending[key] {
		r.mu.Unlock()
		return
	}
	r.pending[key] = true
	r.mu.Unlock()

	select {
	case r.queue <- key:
	default:
		r.mu.Lock()
		delete(r.pending, key)
		r.mu.Unlock()
		slog.Warn("reconcile queue full, dropping", "kind", key.kind, "id", key.id)
	}
}

// Pending 当前等待补算的数量
func (r *Reconciler) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Run 批量消费队列，直到 ctx 结束
func (r *Reconciler) Run(ctx context.Context) {
	batch := make([]aggregateKey, 0, r.batch)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case key := <-r.queue:
			batch = append(batch, key)
			if len(batch) >= r.batch {
				r.processBatch(ctx, batch)
				batch = batch[:0]
			}
		case <-ticker.C:
			if len(batch) > 0 {
				r.processBatch(ctx, batch)
				batch = batch[:0]
			}
		}
	}
}

// Drain 同步处理队列中已有的全部任务
func (r *Reconciler) Drain(ctx context.Context) {
	for {
		select {
		case key := <-r.queue:
			r.processBatch(ctx, []aggregateKey{key})
		default:
			return
		}
	}
}

// processBatch 先清除 pending 再补算：补算期间到来的 Schedule 会重新入队
func (r *Reconciler) processBatch(ctx context.Context, keys []aggregateKey) {
	for _, key := range keys {
		r.mu.Lock()
		delete(r.pending, key)
		r.mu.Unlock()

		if err := r.reconcile(ctx, key); err != nil {
			slog.Warn("reconcile failed", "kind", key.kind, "id", key.id, "error", err)
		}
	}
}

// lockAggregateRow 按 ID 锁定聚合所在行，软删除的行同样加锁
func lockAggregateRow(tx *gorm.DB, model any, id uint) error {
	return tx.Clauses(forUpdate).Select("id").Where("id = ?", id).Take(model).Error
}

func (r *Reconciler) reconcile(ctx context.Context, key aggregateKey) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		switch key.kind {
		case aggregatePoll:
			var poll models.Poll
			if err := tx.Clauses(forUpdate).First(&poll, key.id).Error; err != nil {
				return err
			}
			return recountPoll(tx, &poll)
		case string(models.TargetDiscussion), string(models.TargetComment):
			target := models.VoteTarget{Kind: models.TargetKind(key.kind), ID: key.id}
			var row any = &models.Discussion{}
			if target.Kind == models.TargetComment {
				row = &models.Comment{}
			}
			if err := lockAggregateRow(tx, row, target.ID); err != nil {
				return err
			}
			_, err := recomputeVoteScore(tx, target)
			return err
		}
		return nil
	})
}

// ReconcileAll 全量巡检：重算所有讨论、评论的 vote_score，讨论的 comment_count，以及所有投票计数
func (r *Reconciler) ReconcileAll(ctx context.Context) (int, error) {
	count := 0
	db := r.db.WithContext(ctx)

	var discussionIDs []uint
	if err := db.Model(&models.Discussion{}).Pluck("id", &discussionIDs).Error; err != nil {
		return count, err
	}
	for _, id := range discussionIDs {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := lockAggregateRow(tx, &models.Discussion{}, id); err != nil {
				return err
			}
			if _, err := recomputeVoteScore(tx, models.DiscussionTarget(id)); err != nil {
				return err
			}
			return refreshCommentCount(tx, id, time.Time{})
		})
		if err != nil {
			return count, err
		}
		count++
	}

	var commentIDs []uint
	if err := db.Model(&models.Comment{}).Pluck("id", &commentIDs).Error; err != nil {
		return count, err
	}
	for _, id := range commentIDs {
		if err := r.reconcile(ctx, aggregateKey{kind: string(models.TargetComment), id: id}); err != nil {
			return count, err
		}
		count++
	}

	var pollIDs []uint
	if err := db.Model(&models.Poll{}).Pluck("id", &pollIDs).Error; err != nil {
		return count, err
	}
	for _, id := range pollIDs {
		if err := r.reconcile(ctx, aggregateKey{kind: aggregatePoll, id: id}); err != nil {
			return count, err
		}
		count++
	}

	slog.Info("reconcile sweep finished", "aggregates", count)
	return count, nil
}

// StartScheduledSweep 每天凌晨 3 点执行一次全量巡检
func (r *Reconciler) StartScheduledSweep(ctx context.Context) {
	go func() {
		for {
			now := time.Now()
			next := time.Date(now.Year(), now.Month(), now.Day(), 3, 0, 0, 0, now.Location())
			if now.After(next) {
				next = next.Add(24 * time.Hour)
			}

			timer := time.NewTimer(time.Until(next))
			select {
			case <-ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			if _, err := r.ReconcileAll(ctx); err != nil {
				slog.Error("scheduled reconcile sweep failed", "error", err)
			}
		}
	}()
}
