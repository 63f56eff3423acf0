package services

import (
	"encoding/json"
	"strings"
	"zhutan/internal/models"
)

// DefaultOptionEmoji 旧版纯文本选项没有 emoji，解码时补默认值
const DefaultOptionEmoji = "💬"

// OptionContent 投票选项的结构化内容
type OptionContent struct {
	Text  string `json:"text"`
	Emoji string `json:"emoji"`
}

// EncodeOptionText 编码为 JSON 存入 option_text
func EncodeOptionText(o OptionContent) string {
	if o.Emoji == "" {
		o.Emoji = DefaultOptionEmoji
	}
	data, err := json.Marshal(o)
	if err != nil {
		return o.Text
	}
	return string(data)
}

// DecodeOptionText 先尝试 JSON，失败则把整段当作纯文本。永不报错
func DecodeOptionText(raw string) OptionContent {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		var o OptionContent
		if err := json.Unmarshal([]byte(trimmed), &o); err == nil && o.Text != "" {
			if o.Emoji == "" {
				o.Emoji = DefaultOptionEmoji
			}
			return o
		}
	}
	return OptionContent{Text: raw, Emoji: DefaultOptionEmoji}
}

// decodeOptions 填充选项的 Text/Emoji 展示字段
func decodeOptions(options []models.PollOption) {
	for i := range options {
		o := DecodeOptionText(options[i].OptionText)
		options[i].Text = o.Text
		options[i].Emoji = o.Emoji
	}
}
