// Package normalize canonicalizes caller input: phone numbers, names, notes, dates and times.
package normalize

import (
	"errors"
	"regexp"
	"strings"
)

var (
	ErrPhoneRequired   = errors.New("phone number is required")
	ErrPhoneFormat     = errors.New("phone number is not a valid international number")
	ErrPhoneSuspicious = errors.New("phone number looks like a placeholder")
)

var (
	phoneSeparators = regexp.MustCompile(`[\s\-.()\[\]]`)
	phonePrefixes   = regexp.MustCompile(`(?i)^(tel|phone|mobile|mob):`)
	e164Pattern     = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)
	phoneCandidate  = regexp.MustCompile(`\+?\d[\d\s\-.()]{5,}\d`)
)

// Phone converts raw caller input to E.164. countryCode is applied to
// national numbers, e.g. "+421".
func Phone(raw, countryCode string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", ErrPhoneRequired
	}
	s = phoneSeparators.ReplaceAllString(s, "")
	s = phonePrefixes.ReplaceAllString(s, "")
	if s == "" {
		return "", ErrPhoneRequired
	}

	cc := "+" + strings.TrimLeft(strings.TrimSpace(countryCode), "+")
	ccDigits := cc[1:]

	switch {
	case strings.HasPrefix(s, "00"):
		s = "+" + s[2:]
	case strings.HasPrefix(s, "0") && len(s) >= 9:
		s = cc + s[1:]
	case !strings.HasPrefix(s, "+") && len(s) >= 9:
		if ccDigits != "" && strings.HasPrefix(s, ccDigits) {
			s = "+" + s
		} else {
			s = cc + s
		}
	}

	digits := Digits(s)
	if strings.HasPrefix(s, "+") {
		s = "+" + digits
	} else {
		s = digits
	}
	if !e164Pattern.MatchString(s) {
		return "", ErrPhoneFormat
	}
	if suspiciousDigits(digits) || (ccDigits != "" && strings.HasPrefix(digits, ccDigits) && suspiciousDigits(digits[len(ccDigits):])) {
		return "", ErrPhoneSuspicious
	}
	return s, nil
}

func suspiciousDigits(d string) bool {
	if len(d) < 7 {
		return false
	}
	same := true
	for i := 1; i < len(d); i++ {
		if d[i] != d[0] {
			same = false
			break
		}
	}
	if same {
		return true
	}
	return strings.HasPrefix(d, "1234567") || strings.HasPrefix(d, "0000000")
}

// Digits keeps only ASCII digits.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var spokenDigits = map[string]string{
	"zero": "0", "oh": "0", "one": "1", "two": "2", "three": "3", "four": "4",
	"five": "5", "six": "6", "seven": "7", "eight": "8", "nine": "9", "plus": "+",
	"ноль": "0", "один": "1", "два": "2", "три": "3", "четыре": "4",
	"пять": "5", "шесть": "6", "семь": "7", "восемь": "8", "девять": "9", "плюс": "+",
}

// PhoneCandidate pulls a phone-like digit run out of an utterance. Spelled
// out digits ("zero nine zero one") are converted first.
func PhoneCandidate(text string) (string, bool) {
	fields := strings.Fields(strings.ToLower(text))
	for i, f := range fields {
		if d, ok := spokenDigits[strings.Trim(f, ",.")]; ok {
			fields[i] = d
		}
	}
	joined := strings.Join(fields, " ")
	m := phoneCandidate.FindString(joined)
	if m == "" || len(Digits(m)) < 7 {
		return "", false
	}
	return strings.TrimSpace(m), true
}
