package service

import (
	"reflect"
	"testing"
	"time"

	"github.com/restaurant-voice/backend/internal/models"
	"github.com/restaurant-voice/backend/internal/policy"
)

// testClock is Saturday 2026-10-17 10:00 in Bratislava.
func testClock(t *testing.T) (policy.Policy, func() time.Time) {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Bratislava")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	now := time.Date(2026, 10, 17, 10, 0, 0, 0, loc)
	return policy.Default(loc), func() time.Time { return now }
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	p, clock := testClock(t)
	p.Special = map[string]policy.SpecialDay{
		"2026-10-20": {Date: "2026-10-20", Closed: true, Description: "Staff training"},
	}
	v := NewValidator(p, NewIdempotencyRegistry(), "+421")
	v.Now = clock
	return v
}

func validRequest() ReservationRequest {
	return ReservationRequest{
		Name:      "Anna Kovacova",
		Phone:     "0901 234 567",
		Date:      "2026-10-18",
		Time:      "19:00",
		PartySize: 2,
		Source:    "phone",
		CallSID:   "CA1",
	}
}

func TestValidateAcceptsReservation(t *testing.T) {
	v := newTestValidator(t)
	draft, res := v.Validate(validRequest())
	if !res.Valid || draft == nil {
		t.Fatalf("expected valid, got %+v", res.Errors)
	}
	start := time.Date(2026, 10, 18, 19, 0, 0, 0, v.Policy.Location)
	if draft.Phone != "+421901234567" || draft.PhoneRaw != "0901 234 567" || !draft.StartAt.Equal(start) {
		t.Fatalf("draft = %+v", draft)
	}
	if draft.DurationMinutes != 90 || draft.Status() != models.StatusConfirmed || draft.CallSID != "CA1" {
		t.Fatalf("draft = %+v", draft)
	}
	if draft.Fingerprint != Fingerprint("+421901234567", start, 2) {
		t.Fatalf("fingerprint = %s", draft.Fingerprint)
	}
	want := []string{"name", "phone", "notes", "datetime", "party_size", "duration", "cross_field", "idempotency"}
	if len(res.Stages) != len(want) {
		t.Fatalf("stages = %v", res.Stages)
	}
	for i := range want {
		if res.Stages[i] != want[i] {
			t.Fatalf("stages = %v", res.Stages)
		}
	}
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name  string
		edit  func(*ReservationRequest)
		code  string
		field string
	}{
		{"missing name", func(r *ReservationRequest) { r.Name = "  " }, "NAME_REQUIRED", FieldName},
		{"missing phone", func(r *ReservationRequest) { r.Phone = "" }, "PHONE_REQUIRED", FieldPhone},
		{"short phone", func(r *ReservationRequest) { r.Phone = "12" }, "INVALID_PHONE", FieldPhone},
		{"placeholder phone", func(r *ReservationRequest) { r.Phone = "+421 111 111 111" }, "SUSPICIOUS_PHONE", FieldPhone},
		{"unparsable date", func(r *ReservationRequest) { r.Date = "tomorrow" }, "DATETIME_INVALID", FieldDate},
		{"unparsable time", func(r *ReservationRequest) { r.Time = "evening" }, "DATETIME_INVALID", FieldTime},
		{"past", func(r *ReservationRequest) { r.Date = "2026-10-16" }, "PAST_DATETIME", FieldTime},
		{"short notice", func(r *ReservationRequest) { r.Date, r.Time = "2026-10-17", "10:30" }, "INSUFFICIENT_LEAD_TIME", FieldTime},
		{"too far ahead", func(r *ReservationRequest) { r.Date = "2027-01-08" }, "EXCEEDS_HORIZON", FieldDate},
		{"closed", func(r *ReservationRequest) { r.Date = "2026-10-20" }, "CLOSED_DATE", FieldDate},
		{"before opening", func(r *ReservationRequest) { r.Date, r.Time = "2026-10-19", "10:30" }, "BEFORE_OPENING", FieldTime},
		{"after last seating", func(r *ReservationRequest) { r.Date, r.Time = "2026-10-19", "21:30" }, "AFTER_LAST_RESERVATION", FieldTime},
		{"off grid", func(r *ReservationRequest) { r.Time = "19:10" }, "INVALID_TIME_SLOT", FieldTime},
		{"empty party", func(r *ReservationRequest) { r.PartySize = 0 }, "PARTY_TOO_SMALL", FieldPartySize},
		{"huge party", func(r *ReservationRequest) { r.PartySize = 25 }, "PARTY_TOO_LARGE", FieldPartySize},
		{"short sitting", func(r *ReservationRequest) { r.DurationMinutes = 30 }, "DURATION_TOO_SHORT", FieldDuration},
		{"long sitting", func(r *ReservationRequest) { r.DurationMinutes = 240 }, "DURATION_TOO_LONG", FieldDuration},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := newTestValidator(t)
			req := validRequest()
			tc.edit(&req)
			draft, res := v.Validate(req)
			if res.Valid || draft != nil {
				t.Fatalf("expected invalid, got %+v", res)
			}
			if !res.HasCode(tc.code) {
				t.Fatalf("expected %s, got %+v", tc.code, res.Errors)
			}
			for _, issue := range res.Errors {
				if issue.Code == tc.code && issue.Field != tc.field {
					t.Fatalf("%s field = %s, want %s", tc.code, issue.Field, tc.field)
				}
			}
		})
	}
}

func TestValidateLargePartyEscalates(t *testing.T) {
	v := newTestValidator(t)
	req := validRequest()
	req.PartySize = 15
	draft, res := v.Validate(req)
	if !res.Valid || draft == nil {
		t.Fatalf("large parties are allowed, got %+v", res.Errors)
	}
	if !draft.RequiresEscalation || !draft.RequiresManualConfirmation || draft.EscalationReason == "" {
		t.Fatalf("draft = %+v", draft)
	}
	if draft.Status() != models.StatusPending {
		t.Fatalf("status = %s", draft.Status())
	}
	if draft.DurationMinutes != 120 {
		t.Fatalf("duration = %d", draft.DurationMinutes)
	}
	for _, code := range []string{"LARGE_PARTY", "LARGE_PARTY_NOTES_RECOMMENDED", "ESCALATION_REQUIRED", "WEEKEND_LARGE_PARTY"} {
		if !res.HasCode(code) {
			t.Errorf("missing warning %s in %+v", code, res.Warnings)
		}
	}
}

func TestValidateNotesAvoidManualConfirmation(t *testing.T) {
	v := newTestValidator(t)
	req := validRequest()
	req.PartySize = 10
	req.Notes = "Birthday dinner, one high chair please"
	draft, res := v.Validate(req)
	if !res.Valid || draft.RequiresManualConfirmation || draft.RequiresEscalation {
		t.Fatalf("draft = %+v, result = %+v", draft, res)
	}
	if draft.Notes != req.Notes {
		t.Fatalf("notes = %q", draft.Notes)
	}
}

func TestValidateShortensSittingAtClosing(t *testing.T) {
	v := newTestValidator(t)
	req := validRequest()
	req.Time = "21:30"
	req.DurationMinutes = 180
	draft, res := v.Validate(req)
	if !res.Valid {
		t.Fatalf("expected valid, got %+v", res.Errors)
	}
	if draft.DurationMinutes != 149 || !res.HasCode("DURATION_ADJUSTED") {
		t.Fatalf("duration = %d, warnings = %+v", draft.DurationMinutes, res.Warnings)
	}
}

func TestValidateSameDayLargeParty(t *testing.T) {
	v := newTestValidator(t)
	req := validRequest()
	req.Date, req.Time, req.PartySize = "2026-10-17", "12:00", 6
	_, res := v.Validate(req)
	if !res.Valid || !res.HasCode("SAME_DAY_LARGE_PARTY") {
		t.Fatalf("result = %+v", res)
	}
}

func TestValidateSpecialDate(t *testing.T) {
	v := newTestValidator(t)
	v.Policy.Special["2026-10-22"] = policy.SpecialDay{
		Date:        "2026-10-22",
		Hours:       policy.Hours{Open: policy.At(12, 0), Close: policy.At(20, 0)},
		Description: "Wine tasting",
	}
	req := validRequest()
	req.Date = "2026-10-22"
	_, res := v.Validate(req)
	if res.Valid || !res.HasCode("AFTER_LAST_RESERVATION") || !res.HasCode("SPECIAL_DATE") {
		t.Fatalf("result = %+v", res)
	}

	req.Time = "17:00"
	draft, res := v.Validate(req)
	if !res.Valid || draft == nil {
		t.Fatalf("17:00 fits the special hours, got %+v", res.Errors)
	}
}

func TestValidateDuplicate(t *testing.T) {
	v := newTestValidator(t)
	loc := v.Policy.Location
	v.Registry.Register(Fingerprint("+421901234567", time.Date(2026, 10, 18, 19, 30, 0, 0, loc), 2))

	_, res := v.Validate(validRequest())
	if res.Valid || !res.HasCode("DUPLICATE_RESERVATION") {
		t.Fatalf("expected a duplicate, got %+v", res)
	}

	req := validRequest()
	req.Time = "20:30"
	if _, res := v.Validate(req); !res.Valid {
		t.Fatalf("an hour apart is not a duplicate: %+v", res.Errors)
	}
	req = validRequest()
	req.PartySize = 3
	if _, res := v.Validate(req); !res.Valid {
		t.Fatalf("a different party size is not a duplicate: %+v", res.Errors)
	}
}

func TestValidateIsRepeatable(t *testing.T) {
	v := newTestValidator(t)
	req := validRequest()
	req.PartySize = 14
	_, first := v.Validate(req)
	_, second := v.Validate(req)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("results differ:\n%+v\n%+v", first, second)
	}
}
