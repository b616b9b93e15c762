package captions

import (
	"strings"
)

// MaxLineChars matches the trim UI's caption preview width.
const MaxLineChars = 30

// Wrap splits text into lines of at most limit characters using greedy
// word wrapping. A single word longer than the limit gets its own line
// rather than being broken; no words are dropped or reordered.
func Wrap(text string, limit int) []string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = MaxLineChars
	}

	var lines []string
	cur := words[0]
	for _, w := range words[1:] {
		if len([]rune(cur))+1+len([]rune(w)) > limit {
			lines = append(lines, cur)
			cur = w
			continue
		}
		cur += " " + w
	}
	return append(lines, cur)
}

// Drawtext builds the ffmpeg drawtext filter for a caption: wrapped
// text, centered horizontally, anchored near the bottom with a
// semi-opaque box behind it. Empty caption yields an empty filter.
func Drawtext(caption string) string {
	lines := Wrap(caption, MaxLineChars)
	if len(lines) == 0 {
		return ""
	}
	text := escapeDrawtext(strings.Join(lines, "\n"))

	var b strings.Builder
	b.WriteString("drawtext=text='")
	b.WriteString(text)
	b.WriteString("'")
	b.WriteString(":fontcolor=white")
	b.WriteString(":fontsize=16")
	b.WriteString(":box=1:boxcolor=black@0.5:boxborderw=8")
	b.WriteString(":x=(w-text_w)/2")
	b.WriteString(":y=h-text_h-20")
	return b.String()
}

// escapeDrawtext escapes characters that are special inside a quoted
// drawtext value and the enclosing filtergraph.
func escapeDrawtext(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `'`, `\\\'`)
	s = strings.ReplaceAll(s, `:`, `\:`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	return s
}
