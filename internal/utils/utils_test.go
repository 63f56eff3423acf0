package utils

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func TestMakeSlug(t *testing.T) {
	a := MakeSlug("Hello, World!")
	b := MakeSlug("Hello, World!")
	if !strings.HasPrefix(a, "hello-world-") {
		t.Errorf("unexpected slug %q", a)
	}
	if a == b {
		t.Errorf("slugs should be unique, both %q", a)
	}
	if s := MakeSlug("!!!"); len(s) != 8 {
		t.Errorf("expected bare suffix for empty title, got %q", s)
	}
	if s := MakeSlug("竹林 讨论"); !strings.HasPrefix(s, "竹林-讨论-") {
		t.Errorf("unicode letters should be kept, got %q", s)
	}
}

func TestAppErrorStatus(t *testing.T) {
	cases := map[string]int{
		ErrValidation:     http.StatusBadRequest,
		ErrNotFound:       http.StatusNotFound,
		ErrConflict:       http.StatusConflict,
		ErrExpired:        http.StatusConflict,
		ErrStaleAggregate: http.StatusAccepted,
		ErrStore:          http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := AppErrorToHTTPStatus(code); got != want {
			t.Errorf("%s: expected %d, got %d", code, want, got)
		}
	}
}

func TestStoreErrorWrapping(t *testing.T) {
	base := errors.New("connection reset")
	err := NewStoreError("insert vote", base)
	if !IsErrorCode(err, ErrStore) {
		t.Fatalf("expected STORE code, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Error("origin should be reachable via errors.Is")
	}

	nf := NewNotFoundError("comment", 3)
	if NewStoreError("load", nf) != error(nf) {
		t.Error("AppError should pass through unchanged")
	}
	if ErrorCode(base) != ErrStore {
		t.Error("plain errors should map to STORE")
	}
}

func TestLocalCacheExpiry(t *testing.T) {
	c, err := NewLocalCache(10)
	if err != nil {
		t.Fatal(err)
	}
	now := time.Now()
	c.now = func() time.Time { return now }
	ctx := context.Background()

	c.Set(ctx, "k", map[string]int{"a": 1}, time.Minute)
	var got map[string]int
	if !c.Get(ctx, "k", &got) || got["a"] != 1 {
		t.Fatalf("expected cached value, got %v", got)
	}

	now = now.Add(2 * time.Minute)
	if c.Get(ctx, "k", &got) {
		t.Error("expected entry to expire")
	}
	if c.Len() != 0 {
		t.Errorf("expired entry should be evicted, len=%d", c.Len())
	}
}

func TestRedisCache(t *testing.T) {
	s := miniredis.RunT(t)
	c, err := NewRedisCache("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("NewRedisCache failed: %v", err)
	}
	defer c.Close()
	ctx := context.Background()

	type summary struct {
		ID   uint   `json:"id"`
		Name string `json:"name"`
	}
	c.Set(ctx, "author:1", summary{ID: 1, Name: "bamboo"}, time.Minute)

	var got summary
	if !c.Get(ctx, "author:1", &got) || got.Name != "bamboo" {
		t.Fatalf("unexpected cached value %+v", got)
	}

	s.FastForward(2 * time.Minute)
	if c.Get(ctx, "author:1", &got) {
		t.Error("expected key to expire")
	}

	c.Set(ctx, "author:2", summary{ID: 2}, time.Minute)
	c.Delete(ctx, "author:2")
	if c.Get(ctx, "author:2", &got) {
		t.Error("expected key to be deleted")
	}
}

func TestRenderMarkdownSanitizes(t *testing.T) {
	out := RenderMarkdown("**bold** <script>alert(1)</script>\n\n![x](http://img.example/a.png)")
	if !strings.Contains(out, "<strong>bold</strong>") {
		t.Errorf("markdown not rendered: %s", out)
	}
	if strings.Contains(out, "<script>") {
		t.Errorf("script tag should be stripped: %s", out)
	}
	if !strings.Contains(out, `loading="lazy"`) {
		t.Errorf("image should be lazy loaded: %s", out)
	}
}
