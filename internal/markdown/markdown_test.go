package markdown

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRenderHTML_Basic(t *testing.T) {
	out := RenderHTML("# Title\nThis is **bold**.")
	require.Contains(t, out, "<h1>Title</h1>")
	require.Contains(t, out, "<strong>bold</strong>")
}

func TestRenderHTML_StripsScript(t *testing.T) {
	out := RenderHTML("# Title\n\n<script>alert('x')</script>\n\nThis is **bold**.")
	require.NotContains(t, out, "<script")
	require.NotContains(t, out, "alert(")
	require.Contains(t, out, "<strong>bold</strong>")
}

func TestRenderHTML_StripsHandlersAndJavascriptURLs(t *testing.T) {
	out := RenderHTML(`<img src="x.png" onerror="alert(1)">` + "\n\n[click](javascript:alert(1))")
	require.NotContains(t, out, "onerror")
	require.NotContains(t, out, "javascript:")
}

func TestRenderHTML_Extensions(t *testing.T) {
	src := "| a | b |\n|---|---|\n| 1 | 2 |\n\n~~gone~~\n\n- [x] done\n- [ ] todo\n\nNote[^1].\n\n[^1]: The footnote.\n"
	out := RenderHTML(src)
	require.Contains(t, out, "<table>")
	require.Contains(t, out, "<del>gone</del>")
	require.Contains(t, out, "checkbox")
	require.Contains(t, out, "fn:1")
}

func TestRenderHTML_MalformedInput(t *testing.T) {
	require.NotPanics(t, func() {
		_ = RenderHTML("**unclosed [link]( <div> ```\n")
	})
}

func TestPlainText(t *testing.T) {
	require.Equal(t, "Title\nThis is bold.", PlainText("# Title\nThis is **bold**."))
}

func TestPlainText_CodeAndBreaks(t *testing.T) {
	require.Equal(t, "run go test now\nsecond line", PlainText("run `go test` now\nsecond line"))
}

func TestPlainText_DropsRawHTML(t *testing.T) {
	require.Equal(t, "text", PlainText("<div>\nhidden\n</div>\n\ntext"))
}
