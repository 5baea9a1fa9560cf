package normalize

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxNameLength  = 100
	MaxNotesLength = 500
)

var (
	nameDisallowed = regexp.MustCompile("[<>{}|\\[\\]\\\\^`~@#$%&*+=]")
	whitespaceRun  = regexp.MustCompile(`\s+`)

	placeholderNames = []*regexp.Regexp{
		regexp.MustCompile(`^[0-9\s\-.]+$`),
		regexp.MustCompile(`(?i)^test\s*(user|name)?$`),
		regexp.MustCompile(`(?i)^x{3,}$`),
		regexp.MustCompile(`(?i)^n/?a$`),
		regexp.MustCompile(`(?i)^none$`),
		regexp.MustCompile(`(?i)^unknown$`),
	}

	scriptBlock   = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	htmlTag       = regexp.MustCompile(`<[^>]*>`)
	jsScheme      = regexp.MustCompile(`(?i)javascript\s*:`)
	inlineHandler = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)
)

type NameResult struct {
	Value       string
	Sanitized   bool
	Placeholder bool
	Truncated   bool
}

// Name trims, collapses whitespace and strips disallowed characters.
// Placeholder-looking names are flagged but kept.
func Name(raw string, maxLen int) NameResult {
	if maxLen <= 0 {
		maxLen = MaxNameLength
	}
	collapsed := collapse(raw)
	cleaned := collapse(nameDisallowed.ReplaceAllString(collapsed, ""))
	res := NameResult{Value: cleaned, Sanitized: cleaned != collapsed}
	if cleaned == "" {
		return res
	}
	res.Placeholder = isPlaceholderName(cleaned)
	if utf8.RuneCountInString(cleaned) > maxLen {
		res.Value = truncateAtWord(cleaned, maxLen)
		res.Truncated = true
	}
	return res
}

func isPlaceholderName(s string) bool {
	for _, re := range placeholderNames {
		if re.MatchString(s) {
			return true
		}
	}
	runes := []rune(strings.ToLower(s))
	if len(runes) >= 4 {
		same := true
		for _, r := range runes[1:] {
			if r != runes[0] {
				same = false
				break
			}
		}
		if same {
			return true
		}
	}
	return false
}

type NotesResult struct {
	Value     string
	Sanitized bool
	Truncated bool
}

// Notes removes markup and script-like content and caps the length,
// preferring to end on a full sentence.
func Notes(raw string, maxLen int) NotesResult {
	if maxLen <= 0 {
		maxLen = MaxNotesLength
	}
	collapsed := collapse(raw)
	s := scriptBlock.ReplaceAllString(collapsed, "")
	s = htmlTag.ReplaceAllString(s, "")
	s = jsScheme.ReplaceAllString(s, "")
	s = inlineHandler.ReplaceAllString(s, "")
	s = collapse(s)
	res := NotesResult{Value: s, Sanitized: s != collapsed}

	runes := []rune(s)
	if len(runes) > maxLen {
		cut := string(runes[:maxLen])
		if i := strings.LastIndex(cut, "."); i > 0 && utf8.RuneCountInString(cut[:i]) > maxLen*7/10 {
			cut = cut[:i+1]
		}
		res.Value = strings.TrimSpace(cut)
		res.Truncated = true
	}
	return res
}

func collapse(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

func truncateAtWord(s string, maxLen int) string {
	runes := []rune(s)
	cut := string(runes[:maxLen])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}
	return strings.TrimSpace(cut)
}

// HasLetter reports whether s contains at least one letter.
func HasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
