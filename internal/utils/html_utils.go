package utils

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// EnhanceHTMLContent 为图片增加懒加载与防盗链属性
func EnhanceHTMLContent(htmlStr string) string {
	if htmlStr == "" || !strings.Contains(htmlStr, "<img") {
		return htmlStr
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr
	}

	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		s.SetAttr("referrerpolicy", "no-referrer")
		s.SetAttr("loading", "lazy")
	})

	// goquery renders full document tags if missing, we just want the body content
	out, _ := doc.Find("body").Html()
	if out == "" {
		out, _ = doc.Html()
	}
	return out
}
