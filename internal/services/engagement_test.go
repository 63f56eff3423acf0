package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"unicode/utf8"
	"zhutan/internal/models"
	"zhutan/internal/utils"
)

func TestToggleBookmarkIsItsOwnInverse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	u := env.user(t, "reader")
	d := env.discussion(t, author, "keep me")

	on, err := env.engagement.ToggleBookmark(ctx, u, d.ID)
	if err != nil || !on {
		t.Fatalf("first toggle should bookmark, got %v %v", on, err)
	}
	if ok, _ := env.engagement.IsBookmarked(ctx, u, d.ID); !ok {
		t.Error("expected bookmarked")
	}
	off, err := env.engagement.ToggleBookmark(ctx, u, d.ID)
	if err != nil || off {
		t.Fatalf("second toggle should remove, got %v %v", off, err)
	}
	if n, _ := env.engagement.BookmarkCount(ctx, d.ID); n != 0 {
		t.Errorf("expected 0 bookmarks, got %d", n)
	}

	_, err = env.engagement.ToggleBookmark(ctx, u, 999)
	assertCode(t, err, utils.ErrNotFound)
}

func TestConcurrentBookmarkToggleKeepsUniquePair(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	u := env.user(t, "reader")
	d := env.discussion(t, author, "race")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := env.engagement.ToggleBookmark(ctx, u, d.ID); err != nil {
				t.Errorf("toggle: %v", err)
			}
		}()
	}
	wg.Wait()

	var rows int64
	env.db.Model(&models.Bookmark{}).Where("user_id = ? AND discussion_id = ?", u, d.ID).Count(&rows)
	if rows > 1 {
		t.Errorf("unique pair violated: %d rows", rows)
	}
}

func TestListBookmarksHidesDeleted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	u := env.user(t, "reader")
	a := env.discussion(t, author, "first")
	b := env.discussion(t, author, "second")

	env.engagement.ToggleBookmark(ctx, u, a.ID)
	env.engagement.ToggleBookmark(ctx, u, b.ID)
	if err := env.discussions.DeleteDiscussion(ctx, a.ID, author); err != nil {
		t.Fatal(err)
	}

	list, err := env.engagement.ListBookmarks(ctx, u, Page{})
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 || list[0].DiscussionID != b.ID || list[0].Discussion.Title != "second" {
		t.Errorf("expected only the live bookmark, got %+v", list)
	}
}

func TestViewCountMonotonic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	u := env.user(t, "reader")
	d := env.discussion(t, author, "popular")

	ip := "127.0.0.1"
	ua := strings.Repeat("x", 600)
	prev := 0
	for i := 0; i < 5; i++ {
		in := ViewInput{DiscussionID: d.ID, IPAddress: &ip, UserAgent: &ua}
		if i%2 == 0 {
			in.UserID = &u
		}
		if err := env.engagement.RecordView(ctx, in); err != nil {
			t.Fatal(err)
		}
		n, err := env.engagement.ViewCount(ctx, d.ID)
		if err != nil {
			t.Fatal(err)
		}
		if n <= prev {
			t.Fatalf("view count did not grow: %d -> %d", prev, n)
		}
		prev = n
	}
	if prev != 5 {
		t.Errorf("views are never deduplicated, expected 5, got %d", prev)
	}

	counts, _ := env.engagement.ViewCounts(ctx, []uint{d.ID, 999})
	if counts[d.ID] != 5 || counts[999] != 0 {
		t.Errorf("unexpected batch counts %v", counts)
	}

	err := env.engagement.RecordView(ctx, ViewInput{DiscussionID: 999})
	assertCode(t, err, utils.ErrNotFound)
}

func TestRecordViewTruncatesUserAgentOnRuneBoundary(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	d := env.discussion(t, author, "utf8")

	// "é" 占两个字节，跨越 512 字节边界
	ua := strings.Repeat("a", 511) + "é"
	if err := env.engagement.RecordView(ctx, ViewInput{DiscussionID: d.ID, UserAgent: &ua}); err != nil {
		t.Fatal(err)
	}
	var v models.View
	if err := env.db.Where("discussion_id = ?", d.ID).First(&v).Error; err != nil {
		t.Fatal(err)
	}
	if v.UserAgent == nil || !utf8.ValidString(*v.UserAgent) {
		t.Fatalf("stored user agent is not valid UTF-8: %v", v.UserAgent)
	}
	if len(*v.UserAgent) != 511 {
		t.Errorf("expected 511 bytes, got %d", len(*v.UserAgent))
	}

	if got := truncateUTF8("ab你好", 4); got != "ab" {
		t.Errorf("truncateUTF8 = %q, want %q", got, "ab")
	}
	if got := truncateUTF8("short", 512); got != "short" {
		t.Errorf("truncateUTF8 = %q, want unchanged", got)
	}
}

func TestReportContent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	author := env.user(t, "author")
	u := env.user(t, "reporter")
	d := env.discussion(t, author, "bad")
	c, _ := env.comments.CreateComment(ctx, d.ID, nil, author, "rude")

	desc := "  off topic  "
	r, err := env.engagement.ReportContent(ctx, ReportInput{
		ReporterID: u, Reason: models.ReasonSpam, Description: &desc, DiscussionID: &d.ID,
	})
	if err != nil {
		t.Fatal(err)
	}
	if r.Description == nil || *r.Description != "off topic" {
		t.Errorf("description should be trimmed, got %v", r.Description)
	}

	if _, err := env.engagement.ReportContent(ctx, ReportInput{
		ReporterID: u, Reason: models.ReasonHarassment, CommentID: &c.ID,
	}); err != nil {
		t.Fatal(err)
	}

	_, err = env.engagement.ReportContent(ctx, ReportInput{
		ReporterID: u, Reason: models.ReasonSpam, DiscussionID: &d.ID, CommentID: &c.ID,
	})
	assertCode(t, err, utils.ErrValidation)

	_, err = env.engagement.ReportContent(ctx, ReportInput{ReporterID: u, Reason: models.ReasonSpam})
	assertCode(t, err, utils.ErrValidation)

	_, err = env.engagement.ReportContent(ctx, ReportInput{
		ReporterID: u, Reason: "boring", DiscussionID: &d.ID,
	})
	assertCode(t, err, utils.ErrValidation)

	missing := uint(999)
	_, err = env.engagement.ReportContent(ctx, ReportInput{
		ReporterID: u, Reason: models.ReasonOther, CommentID: &missing,
	})
	assertCode(t, err, utils.ErrNotFound)
}
