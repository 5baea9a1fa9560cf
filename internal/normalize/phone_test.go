package normalize

import (
	"errors"
	"strings"
	"testing"
)

func TestPhone(t *testing.T) {
	cases := []struct {
		in   string
		want string
		err  error
	}{
		{"0901234567", "+421901234567", nil},
		{"0901 234 567", "+421901234567", nil},
		{"(0901) 234-567", "+421901234567", nil},
		{"tel:+421901234567", "+421901234567", nil},
		{"00421901234567", "+421901234567", nil},
		{"421901234567", "+421901234567", nil},
		{"901234567", "+421901234567", nil},
		{"+44 20 7946 0958", "+442079460958", nil},
		{"", "", ErrPhoneRequired},
		{"12345", "", ErrPhoneFormat},
		{"0000000000", "", ErrPhoneFormat},
		{"+1234567890", "", ErrPhoneSuspicious},
		{"0999999999", "", ErrPhoneSuspicious},
	}
	for _, tc := range cases {
		got, err := Phone(tc.in, "+421")
		if tc.err != nil {
			if !errors.Is(err, tc.err) {
				t.Errorf("Phone(%q) err = %v, want %v", tc.in, err, tc.err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("Phone(%q) = %q, %v; want %q", tc.in, got, err, tc.want)
		}
	}
}

func TestPhoneLocalFormKeepsSubscriberDigits(t *testing.T) {
	for _, local := range []string{"0901234567", "0911222333", "0277123456", "0948765432"} {
		got, err := Phone(local, "421")
		if err != nil {
			t.Fatalf("Phone(%q): %v", local, err)
		}
		if !strings.HasPrefix(got, "+421") || strings.Count(got, "+") != 1 {
			t.Fatalf("Phone(%q) = %q, want single +421 prefix", local, got)
		}
		if strings.TrimPrefix(got, "+421") != local[1:] {
			t.Fatalf("Phone(%q) = %q, subscriber digits changed", local, got)
		}
	}
}

func TestPhoneCandidate(t *testing.T) {
	got, ok := PhoneCandidate("my number is 0901 234 567 thanks")
	if !ok || Digits(got) != "0901234567" {
		t.Fatalf("candidate = %q %v", got, ok)
	}
	got, ok = PhoneCandidate("zero nine zero one two three four five six seven")
	if !ok || Digits(got) != "0901234567" {
		t.Fatalf("spelled candidate = %q %v", got, ok)
	}
	if _, ok := PhoneCandidate("four people"); ok {
		t.Fatalf("expected no candidate")
	}
}
