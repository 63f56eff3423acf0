package db

import (
	"bytes"
	"errors"
	"path/filepath"
	"testing"
	"zhutan/internal/models"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestMigrateAndSeed(t *testing.T) {
	gdb, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatalf("Migrate failed: %v", err)
	}
	if err := SeedCategories(gdb); err != nil {
		t.Fatalf("SeedCategories failed: %v", err)
	}
	// 第二次调用应跳过
	if err := SeedCategories(gdb); err != nil {
		t.Fatalf("second SeedCategories failed: %v", err)
	}

	var count int64
	gdb.Model(&models.Category{}).Count(&count)
	if count != 4 {
		t.Errorf("expected 4 categories, got %d", count)
	}
}

func TestVoteUniquePerTarget(t *testing.T) {
	gdb, err := Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatal(err)
	}

	first := models.NewVote(models.DiscussionTarget(1), 7, models.VoteUp)
	if err := gdb.Create(&first).Error; err != nil {
		t.Fatalf("first vote: %v", err)
	}
	// 同一用户对评论投票不受讨论唯一索引影响
	other := models.NewVote(models.CommentTarget(1), 7, models.VoteDown)
	if err := gdb.Create(&other).Error; err != nil {
		t.Fatalf("comment vote: %v", err)
	}
	dup := models.NewVote(models.DiscussionTarget(1), 7, models.VoteUp)
	if err := gdb.Create(&dup).Error; err == nil {
		t.Fatal("expected unique violation for duplicate discussion vote")
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open("mysql", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoggerSkipsRecordNotFound(t *testing.T) {
	var buf bytes.Buffer
	gdb, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger:         newLogger(&buf),
		TranslateError: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := Migrate(gdb); err != nil {
		t.Fatal(err)
	}
	buf.Reset()

	var c models.Category
	if err := gdb.First(&c, 9999).Error; !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("record not found should not be logged, got %q", buf.String())
	}

	// 真正的错误仍然输出
	var n int64
	if err := gdb.Table("no_such_table").Count(&n).Error; err == nil {
		t.Fatal("expected error for missing table")
	}
	if buf.Len() == 0 {
		t.Error("expected query error to be logged")
	}
}
