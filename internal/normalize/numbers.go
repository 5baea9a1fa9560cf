package normalize

import (
	"regexp"
	"strconv"
	"strings"
)

var cardinalWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6, "seven": 7,
	"eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12, "thirteen": 13,
	"fourteen": 14, "fifteen": 15, "sixteen": 16, "seventeen": 17, "eighteen": 18,
	"nineteen": 19, "twenty": 20,
	"один": 1, "одна": 1, "два": 2, "две": 2, "три": 3, "четыре": 4, "пять": 5,
	"шесть": 6, "семь": 7, "восемь": 8, "девять": 9, "десять": 10,
	"одиннадцать": 11, "двенадцать": 12,
	"двое": 2, "трое": 3, "четверо": 4, "пятеро": 5, "шестеро": 6, "семеро": 7,
}

var ordinalWords = map[string]int{
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5,
	"sixth": 6, "seventh": 7, "eighth": 8, "ninth": 9, "tenth": 10,
	"первый": 1, "первую": 1, "второй": 2, "вторую": 2, "третий": 3, "третью": 3,
	"четвертый": 4, "четвёртый": 4, "пятый": 5,
}

var (
	smallNumber = regexp.MustCompile(`\b(\d{1,3})\b`)
	wordToken   = regexp.MustCompile(`[\p{L}']+`)
)

// Count reads a head count from an utterance: digits, number words or
// phrases such as "a couple" and "just me".
func Count(text string) (int, bool) {
	s := strings.ToLower(text)
	if m := smallNumber.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		return n, err == nil
	}
	for _, w := range wordToken.FindAllString(s, -1) {
		if n, ok := cardinalWords[w]; ok {
			return n, true
		}
	}
	switch {
	case strings.Contains(s, "couple"), strings.Contains(s, "вдвоем"), strings.Contains(s, "вдвоём"):
		return 2, true
	case strings.Contains(s, "just me"), strings.Contains(s, "only me"), strings.Contains(s, "myself"),
		strings.Contains(s, "alone"), strings.Contains(s, "один человек"):
		return 1, true
	}
	return 0, false
}

// Choice reads a 1-based list selection: "2", "the second one", "number two".
func Choice(text string) (int, bool) {
	s := strings.ToLower(text)
	if m := smallNumber.FindStringSubmatch(s); m != nil {
		n, err := strconv.Atoi(m[1])
		return n, err == nil
	}
	for _, w := range wordToken.FindAllString(s, -1) {
		if n, ok := ordinalWords[w]; ok {
			return n, true
		}
		if n, ok := cardinalWords[w]; ok {
			return n, true
		}
	}
	return 0, false
}
