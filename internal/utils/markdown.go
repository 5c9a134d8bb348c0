package utils

import (
	"bytes"
	stdhtml "html"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	mdParser = goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(
			html.WithHardWraps(),
			html.WithXHTML(),
			// 原始 HTML 交给 bluemonday 清洗，不在这里丢弃
			html.WithUnsafe(),
		),
	)
	policy      = bluemonday.UGCPolicy()
	plainPolicy = bluemonday.StrictPolicy()
)

func init() {
	// Allow images
	policy.AllowImages()
	// Force links to open in new tab
	policy.AddTargetBlankToFullyQualifiedLinks(true)
	policy.RequireNoReferrerOnLinks(true)
}

// RenderMarkdown 评论内容渲染为经过清洗的 HTML，原文不变
func RenderMarkdown(source string) template.HTML {
	if strings.TrimSpace(source) == "" {
		return ""
	}

	var buf bytes.Buffer
	if err := mdParser.Convert([]byte(source), &buf); err != nil {
		return template.HTML(plainPolicy.Sanitize(source))
	}

	sanitized := strings.TrimSpace(string(policy.SanitizeBytes(buf.Bytes())))
	if sanitized == "" {
		return ""
	}

	return EnhanceHTMLContent(sanitized)
}

// PlainText 去掉所有 HTML，用于标题、分类这类纯文本字段。
// StrictPolicy 会转义实体，这里再还原成普通字符。
func PlainText(s string) string {
	return strings.TrimSpace(stdhtml.UnescapeString(plainPolicy.Sanitize(s)))
}
