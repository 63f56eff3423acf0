package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"
	"zhutan/internal/db"
	"zhutan/internal/models"
	"zhutan/internal/utils"

	"gorm.io/gorm"
)

type testEnv struct {
	db          *gorm.DB
	reconciler  *Reconciler
	comments    *CommentService
	votes       *VoteService
	polls       *PollService
	engagement  *EngagementService
	discussions *DiscussionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gdb, err := db.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.Migrate(gdb); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if err := db.SeedCategories(gdb); err != nil {
		t.Fatalf("seed: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			sqlDB.Close()
		}
	})

	cache, err := utils.NewLocalCache(100)
	if err != nil {
		t.Fatal(err)
	}
	reconciler := NewReconciler(gdb)
	polls := NewPollService(gdb, reconciler)
	engagement := NewEngagementService(gdb)
	return &testEnv{
		db:          gdb,
		reconciler:  reconciler,
		comments:    NewCommentService(gdb),
		votes:       NewVoteService(gdb, reconciler),
		polls:       polls,
		engagement:  engagement,
		discussions: NewDiscussionService(gdb, polls, engagement, NewStoreDirectory(gdb, cache, time.Minute)),
	}
}

func (e *testEnv) user(t *testing.T, name string) uint {
	t.Helper()
	u := models.User{Username: name}
	if err := e.db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u.ID
}

func (e *testEnv) discussion(t *testing.T, authorID uint, title string) *DiscussionView {
	t.Helper()
	d, err := e.discussions.CreateDiscussion(context.Background(), authorID, DiscussionInput{
		Title:      title,
		Content:    "content of " + title,
		CategoryID: 1,
	})
	if err != nil {
		t.Fatalf("create discussion: %v", err)
	}
	return d
}

// pollDiscussion 创建带两个选项的投票讨论
func (e *testEnv) pollDiscussion(t *testing.T, authorID uint, multiple bool, options ...string) (*DiscussionView, *models.Poll) {
	t.Helper()
	ctx := context.Background()
	contents := make([]OptionContent, 0, len(options))
	for _, o := range options {
		contents = append(contents, OptionContent{Text: o})
	}
	d, err := e.discussions.CreateDiscussion(ctx, authorID, DiscussionInput{
		Title:       "Which one?",
		ContentType: models.ContentTypePoll,
		CategoryID:  1,
		Poll: &CreatePollInput{
			Question:         "Pick",
			Options:          contents,
			IsMultipleChoice: multiple,
		},
	})
	if err != nil {
		t.Fatalf("create poll discussion: %v", err)
	}
	poll, err := e.polls.GetPoll(ctx, d.ID)
	if err != nil {
		t.Fatalf("get poll: %v", err)
	}
	return d, poll
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", code)
	}
	if got := utils.ErrorCode(err); got != code {
		t.Fatalf("expected %s error, got %s (%v)", code, got, err)
	}
}
