package utils

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var slugRe = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// MakeSlug 标题转 URL 友好的 slug，并追加短随机后缀保证全局唯一
func MakeSlug(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = slugRe.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if r := []rune(s); len(r) > 60 {
		s = strings.Trim(string(r[:60]), "-")
	}
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	if s == "" {
		return suffix
	}
	return s + "-" + suffix
}
