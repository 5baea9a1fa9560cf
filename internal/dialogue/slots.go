package dialogue

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/restaurant-voice/backend/internal/normalize"
	"github.com/restaurant-voice/backend/internal/policy"
)

var (
	nameLeadIn = regexp.MustCompile(`(?i)^(?:(?:yes|yeah|hi|hello|ok|okay|well|sure)[,.!]?\s+)?` +
		`(?:my name is|my name's|the name is|name is|it's under|under the name(?: of)?|under|this is|it is|it's|i am|i'm|call me|` +
		`меня зовут|на имя|это)\s+`)
	nameTail = regexp.MustCompile(`(?i)[\s,.!]*(?:please|thanks|thank you|пожалуйста)?[\s,.!]*$`)

	// A caller pointing at the number they are calling from.
	sameNumber = regexp.MustCompile(`(?i)\b(this|same|my|current) (number|phone)\b|\bcalling from\b|этот номер|с этого номера`)
	timeLike   = regexp.MustCompile(`(?i)\d{1,2}[:.]\d{2}|\d\s*(am|pm|a\.m\.|p\.m\.)|o'?clock`)
)

// extractName pulls a person's name out of phrases like "my name is Maria".
func extractName(text string) (string, bool) {
	s := nameLeadIn.ReplaceAllString(strings.TrimSpace(text), "")
	s = nameTail.ReplaceAllString(s, "")
	res := normalize.Name(s, normalize.MaxNameLength)
	if res.Value == "" || !normalize.HasLetter(res.Value) || len(strings.Fields(res.Value)) > 5 {
		return "", false
	}
	return res.Value, true
}

// extractPhone returns the raw and normalized phone number heard in text,
// falling back to caller ID when the caller refers to their own line.
func (e *Engine) extractPhone(s *CallSession, text string) (raw, phone, problem string) {
	raw, ok := normalize.PhoneCandidate(text)
	if !ok && s.CallerPhone != "" && sameNumber.MatchString(text) {
		raw, ok = s.CallerPhone, true
	}
	if !ok {
		return "", "", ""
	}
	phone, err := normalize.Phone(raw, e.Config.CountryCode)
	if err != nil {
		return "", "", "That doesn't sound like a valid phone number."
	}
	return raw, phone, ""
}

func clockString(h, m int) string {
	return fmt.Sprintf("%02d:%02d", h, m)
}

// spread picks up to n entries evenly across slots, keeping the first
// and last.
func spread(slots []string, n int) []string {
	if len(slots) <= n {
		return slots
	}
	if n < 2 {
		return slots[:n]
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, slots[i*(len(slots)-1)/(n-1)])
	}
	return out
}

// nearest returns up to n slots closest to at, in time order.
func nearest(slots []string, at string, n int) []string {
	target, err := policy.ParseTimeOfDay(at)
	if err != nil {
		return spread(slots, n)
	}
	sorted := append([]string(nil), slots...)
	dist := func(s string) int {
		t, _ := policy.ParseTimeOfDay(s)
		d := int(t - target)
		if d < 0 {
			return -d
		}
		return d
	}
	sort.SliceStable(sorted, func(i, j int) bool { return dist(sorted[i]) < dist(sorted[j]) })
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	sort.Strings(sorted)
	return sorted
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func samePhone(a, b string) bool {
	da, db := normalize.Digits(a), normalize.Digits(b)
	if da == "" || db == "" {
		return false
	}
	const tail = 9
	if len(da) > tail && len(db) > tail {
		return da[len(da)-tail:] == db[len(db)-tail:]
	}
	return da == db
}
