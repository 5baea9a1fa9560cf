package dialogue

import (
	"regexp"
	"strings"
)

type intentRule struct {
	intent   Intent
	patterns []*regexp.Regexp
}

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + e)
	}
	return out
}

// Rules are checked in order; the first matching intent wins. Cyrillic
// stems are plain substrings because \b only knows ASCII word characters.
var intentRules = []intentRule{
	{IntentCancel, compileAll(
		`\bcancel`, `\bcall off\b`, `\b(remove|delete|drop)\b.*\b(booking|reservation|table)`,
		`отмен`, `удали`, `снять бронь`,
	)},
	{IntentReserve, compileAll(
		`\bbook`, `\breserv`, `\btable\b`, `\bfor (two|three|four|five|six|\d+) (people|persons|guests)\b`,
		`брон`, `зарезерв`, `столик`,
	)},
	{IntentRecommend, compileAll(
		`\brecommend`, `\bsuggest`, `\bspecials?\b`, `\bchef`, `\bwhat('s| is) (good|popular|best)\b`, `\bfavou?rite\b`,
		`посовет`, `рекоменд`, `что вкусн`,
	)},
	{IntentMenu, compileAll(
		`\bmenu\b`, `\bfood\b`, `\bdish`, `\beat\b`, `\bserve\b`, `\bvegan\b`, `\bvegetarian\b`, `\bgluten`,
		`\bprices?\b`, `\bdesserts?\b`, `\bdrinks?\b`, `\bstarters?\b`, `\bmains?\b`,
		`меню`, `блюд`, `еда`, `поесть`, `цен`,
	)},
	{IntentHandoff, compileAll(
		`\boperator\b`, `\bhuman\b`, `\bperson\b`, `\bagent\b`, `\bmanager\b`, `\bstaff\b`, `\bsomeone\b`, `\bcomplain`,
		`оператор`, `человек`, `менеджер`, `администратор`, `жалоб`,
	)},
}

// Keypad shortcuts offered in the greeting.
var dtmfIntents = map[string]Intent{
	"1": IntentReserve,
	"2": IntentCancel,
	"3": IntentMenu,
	"4": IntentRecommend,
	"0": IntentHandoff,
}

// Classify maps an utterance to an intent. It never fails; unmatched
// input is IntentUnknown.
func Classify(text string) Intent {
	t := strings.TrimSpace(text)
	if in, ok := dtmfIntents[t]; ok {
		return in
	}
	for _, rule := range intentRules {
		for _, re := range rule.patterns {
			if re.MatchString(t) {
				return rule.intent
			}
		}
	}
	return IntentUnknown
}

type Answer int

const (
	AnswerUnclear Answer = iota
	AnswerYes
	AnswerNo
)

var (
	affirmativeWords = map[string]bool{
		"yes": true, "yeah": true, "yep": true, "yup": true, "sure": true, "correct": true,
		"confirm": true, "confirmed": true, "ok": true, "okay": true, "right": true,
		"absolutely": true, "exactly": true, "definitely": true, "please": true,
		"да": true, "верно": true, "подтверждаю": true, "конечно": true, "точно": true,
		"правильно": true, "ага": true, "хорошо": true,
	}
	negativeWords = map[string]bool{
		"no": true, "nope": true, "nah": true, "wrong": true, "incorrect": true, "not": true,
		"don't": true, "dont": true, "нет": true, "неверно": true, "неправильно": true, "не": true,
	}
	// Negated affirmatives and idioms that would otherwise read as both.
	negativePhrases = []string{"not correct", "not right", "that's wrong", "не надо", "не верно", "не правильно", "don't"}
	neutralPhrases  = []string{"no problem", "no worries", "not a problem", "why not"}
	hedgePhrases    = []string{"don't know", "dont know", "not sure", "maybe", "perhaps", "no idea", "не знаю", "не уверен", "может быть"}
	answerToken     = regexp.MustCompile(`[\p{L}']+`)
)

// Confirmation reads a yes/no answer. Input carrying both or neither
// is unclear and must be asked again.
func Confirmation(text string) Answer {
	s := strings.ToLower(strings.TrimSpace(text))
	switch s {
	case "1":
		return AnswerYes
	case "2":
		return AnswerNo
	}
	for _, p := range hedgePhrases {
		if strings.Contains(s, p) {
			return AnswerUnclear
		}
	}
	for _, p := range neutralPhrases {
		if strings.Contains(s, p) {
			s = strings.ReplaceAll(s, p, " yes ")
		}
	}
	for _, p := range negativePhrases {
		if strings.Contains(s, p) {
			return AnswerNo
		}
	}
	var yes, no bool
	for _, w := range answerToken.FindAllString(s, -1) {
		yes = yes || affirmativeWords[w]
		no = no || negativeWords[w]
	}
	switch {
	case yes && !no:
		return AnswerYes
	case no && !yes:
		return AnswerNo
	}
	return AnswerUnclear
}

var closingPhrase = regexp.MustCompile(`(?i)\b(bye|goodbye|that's all|that is all|nothing else|no thanks|no thank you|i'm done|all good)\b|до свидания|пока|всё|все, спасибо|больше ничего`)

// Closing reports whether the caller is wrapping up the call.
func Closing(text string) bool {
	return closingPhrase.MatchString(text) || Confirmation(text) == AnswerNo
}
