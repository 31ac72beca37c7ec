package table

import (
	"regexp"
	"strings"
)

// Placeholders rendered by empty editor cells.
const (
	StepPlaceholder   = "输入步骤描述"
	ResultPlaceholder = "输入预期结果"
)

// DefaultButtonCaptions are the captions of the per-step action buttons that
// share cells with the step and result text.
var DefaultButtonCaptions = []string{"success", "error", "查看生成代码", "查看错误信息", "复制快照地址"}

var (
	whitespace  = regexp.MustCompile(`[\s\p{Zs}]+`)
	loneSuccess = regexp.MustCompile(`(?i)^success\s*$`)
	loneError   = regexp.MustCompile(`(?i)^error\s*$`)
)

// CleanText trims s and collapses every whitespace run to a single space.
func CleanText(s string) string {
	return whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
}

// TextFilter strips and recognizes button captions in cell text.
type TextFilter struct {
	captions []string
	strip    []*regexp.Regexp
}

// NewTextFilter builds a filter for captions; nil means DefaultButtonCaptions.
func NewTextFilter(captions []string) *TextFilter {
	if len(captions) == 0 {
		captions = DefaultButtonCaptions
	}
	f := &TextFilter{captions: captions}
	for _, c := range captions {
		f.strip = append(f.strip, regexp.MustCompile(`(?i)[\s\p{Zs}]*`+regexp.QuoteMeta(c)+`[\s\p{Zs}]*`))
	}
	return f
}

// RemoveButtonText removes every caption occurrence from s.
func (f *TextFilter) RemoveButtonText(s string) string {
	if s == "" {
		return ""
	}
	for _, re := range f.strip {
		s = re.ReplaceAllString(s, " ")
	}
	return CleanText(s)
}

// IsButtonText reports whether s is a caption, or a caption glued to other
// text by a single space at either end.
func (f *TextFilter) IsButtonText(s string) bool {
	t := strings.TrimSpace(s)
	if t == "" {
		return false
	}
	for _, c := range f.captions {
		if t == c || strings.HasPrefix(t, c+" ") || strings.HasSuffix(t, " "+c) {
			return true
		}
	}
	return loneSuccess.MatchString(t) || loneError.MatchString(t)
}

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

// truncate cuts s to n characters.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

func runeLen(s string) int {
	return len([]rune(s))
}
