package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRenderMarkdown(t *testing.T) {
	assert.Equal(t, "", string(RenderMarkdown("   ")))

	out := string(RenderMarkdown("**bold** text"))
	assert.Contains(t, out, "<strong>bold</strong>")

	out = string(RenderMarkdown("<script>alert(1)</script>hello"))
	assert.NotContains(t, out, "<script")
	assert.Contains(t, out, "hello")

	out = string(RenderMarkdown("<div>hi</div>"))
	assert.Contains(t, out, "hi")
	assert.NotContains(t, out, "<html>")

	out = string(RenderMarkdown("<a href=\"https://example.com\" onclick=\"steal()\">link</a> text"))
	assert.Contains(t, out, "link")
	assert.NotContains(t, out, "onclick")

	assert.Equal(t, "", string(RenderMarkdown("<!-- x -->")))
	assert.Equal(t, "", string(RenderMarkdown("<script>alert(1)</script>")))

	out = string(RenderMarkdown("![cat](https://example.com/cat.png)"))
	assert.Contains(t, out, `loading="lazy"`)
	assert.Contains(t, out, `referrerpolicy="no-referrer"`)

	out = string(RenderMarkdown("[site](https://example.com)"))
	assert.Contains(t, out, `target="_blank"`)
	assert.Contains(t, out, "noreferrer")
}

func TestEnhanceHTMLContentKeepsBodyOnly(t *testing.T) {
	assert.Equal(t, "", string(EnhanceHTMLContent("")))
	assert.Equal(t, "", string(EnhanceHTMLContent("   ")))

	out := string(EnhanceHTMLContent(`<p><img src="a.png"/></p>`))
	assert.NotContains(t, out, "<body>")
	assert.Contains(t, out, `loading="lazy"`)
}

func TestPlainText(t *testing.T) {
	assert.Equal(t, "Hello & world", PlainText("  <b>Hello</b> &amp; world "))
	assert.Equal(t, "Tom & Jerry", PlainText("Tom & Jerry"))
	assert.Equal(t, "", PlainText("<img src=x onerror=alert(1)>"))
}
