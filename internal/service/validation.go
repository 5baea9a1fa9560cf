package service

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/restaurant-voice/backend/internal/models"
	"github.com/restaurant-voice/backend/internal/normalize"
	"github.com/restaurant-voice/backend/internal/policy"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

type Category string

const (
	CategoryName         Category = "name"
	CategoryPhone        Category = "phone"
	CategoryNotes        Category = "notes"
	CategoryDatetime     Category = "datetime"
	CategoryPartySize    Category = "party_size"
	CategoryDuration     Category = "duration"
	CategoryCapacity     Category = "capacity"
	CategoryCrossField   Category = "cross_field"
	CategoryIdempotency  Category = "idempotency"
	CategoryAvailability Category = "availability"
)

// Fields named by ValidationIssue.Field.
const (
	FieldName      = "name"
	FieldPhone     = "phone"
	FieldNotes     = "notes"
	FieldDate      = "date"
	FieldTime      = "time"
	FieldPartySize = "party_size"
	FieldDuration  = "duration"
)

type ValidationIssue struct {
	Category Category       `json:"category"`
	Severity Severity       `json:"severity"`
	Code     string         `json:"code"`
	Field    string         `json:"field"`
	Message  string         `json:"message"`
	Details  map[string]any `json:"details,omitempty"`
}

// ReservationRequest is a raw, caller-supplied reservation. Date is
// YYYY-MM-DD and Time is HH:MM in the restaurant's timezone.
type ReservationRequest struct {
	Name            string `json:"name" validate:"required,max=200"`
	Phone           string `json:"phone" validate:"required,max=40"`
	Date            string `json:"date" validate:"required"`
	Time            string `json:"time" validate:"required"`
	PartySize       int    `json:"party_size" validate:"gte=0,lte=1000"`
	Notes           string `json:"notes" validate:"max=2000"`
	DurationMinutes int    `json:"duration_minutes" validate:"gte=0,lte=1440"`
	Source          string `json:"-"`
	CallSID         string `json:"-"`
}

type NormalizedFields struct {
	Name            string    `json:"name"`
	Phone           string    `json:"phone"`
	Notes           string    `json:"notes,omitempty"`
	StartAt         time.Time `json:"start_at"`
	DurationMinutes int       `json:"duration_minutes"`
	PartySize       int       `json:"party_size"`
	Fingerprint     string    `json:"fingerprint,omitempty"`
}

type ValidationResult struct {
	Valid                      bool              `json:"valid"`
	Errors                     []ValidationIssue `json:"errors"`
	Warnings                   []ValidationIssue `json:"warnings"`
	Normalized                 NormalizedFields  `json:"normalized"`
	RequiresManualConfirmation bool              `json:"requires_manual_confirmation"`
	RequiresEscalation         bool              `json:"requires_escalation"`
	EscalationReason           string            `json:"escalation_reason,omitempty"`
	Stages                     []string          `json:"stages"`
}

func (r ValidationResult) HasCode(code string) bool {
	for _, list := range [][]ValidationIssue{r.Errors, r.Warnings} {
		for _, issue := range list {
			if issue.Code == code {
				return true
			}
		}
	}
	return false
}

func (r ValidationResult) FirstError() (ValidationIssue, bool) {
	if len(r.Errors) == 0 {
		return ValidationIssue{}, false
	}
	return r.Errors[0], true
}

// Validator runs the reservation rule pipeline against a policy.
type Validator struct {
	Policy      policy.Policy
	Registry    *IdempotencyRegistry
	CountryCode string
	Now         func() time.Time
}

func NewValidator(p policy.Policy, registry *IdempotencyRegistry, countryCode string) *Validator {
	return &Validator{Policy: p, Registry: registry, CountryCode: countryCode, Now: time.Now}
}

type validationRun struct {
	v       *Validator
	req     ReservationRequest
	now     time.Time
	result  ValidationResult
	start   time.Time
	hasTime bool
	open    bool
	hours   policy.Hours
}

// Validate returns a draft only when no blocking error was found.
func (v *Validator) Validate(req ReservationRequest) (*models.ReservationDraft, ValidationResult) {
	run := &validationRun{v: v, req: req, now: v.Policy.In(v.now())}
	run.result.Errors = []ValidationIssue{}
	run.result.Warnings = []ValidationIssue{}
	run.result.Normalized.PartySize = req.PartySize

	run.stage("name", run.checkName)
	run.stage("phone", run.checkPhone)
	run.stage("notes", run.checkNotes)
	if !run.stage("datetime", run.checkDatetime) {
		run.result.Valid = false
		return nil, run.result
	}
	run.stage("party_size", run.checkPartySize)
	run.stage("duration", run.checkDuration)
	run.stage("cross_field", run.checkCrossField)
	if len(run.result.Errors) == 0 {
		run.stage("idempotency", run.checkIdempotency)
	}

	run.result.Valid = len(run.result.Errors) == 0
	if !run.result.Valid {
		return nil, run.result
	}
	n := run.result.Normalized
	return &models.ReservationDraft{
		Name:                       n.Name,
		Phone:                      n.Phone,
		PhoneRaw:                   strings.TrimSpace(req.Phone),
		StartAt:                    n.StartAt,
		DurationMinutes:            n.DurationMinutes,
		PartySize:                  n.PartySize,
		Notes:                      n.Notes,
		Fingerprint:                n.Fingerprint,
		RequiresManualConfirmation: run.result.RequiresManualConfirmation,
		RequiresEscalation:         run.result.RequiresEscalation,
		EscalationReason:           run.result.EscalationReason,
		Source:                     req.Source,
		CallSID:                    req.CallSID,
	}, run.result
}

func (v *Validator) now() time.Time {
	if v.Now != nil {
		return v.Now()
	}
	return time.Now()
}

func (r *validationRun) stage(name string, fn func() bool) bool {
	r.result.Stages = append(r.result.Stages, name)
	return fn()
}

func (r *validationRun) fail(cat Category, code, field, msg string, details map[string]any) {
	r.result.Errors = append(r.result.Errors, ValidationIssue{Category: cat, Severity: SeverityError, Code: code, Field: field, Message: msg, Details: details})
}

func (r *validationRun) warn(cat Category, sev Severity, code, field, msg string, details map[string]any) {
	r.result.Warnings = append(r.result.Warnings, ValidationIssue{Category: cat, Severity: sev, Code: code, Field: field, Message: msg, Details: details})
}

func (r *validationRun) checkName() bool {
	res := normalize.Name(r.req.Name, normalize.MaxNameLength)
	r.result.Normalized.Name = res.Value
	if res.Value == "" {
		r.fail(CategoryName, "NAME_REQUIRED", FieldName, "A name for the reservation is required", nil)
		return true
	}
	if res.Sanitized {
		r.warn(CategoryName, SeverityWarning, "NAME_SANITIZED", FieldName, "Unsupported characters were removed from the name", map[string]any{"original": strings.TrimSpace(r.req.Name)})
	}
	if res.Placeholder {
		r.warn(CategoryName, SeverityWarning, "NAME_PLACEHOLDER", FieldName, "The name looks like a placeholder", nil)
	}
	if res.Truncated {
		r.warn(CategoryName, SeverityWarning, "NAME_TRUNCATED", FieldName, fmt.Sprintf("The name was shortened to %d characters", normalize.MaxNameLength), nil)
	}
	return true
}

func (r *validationRun) checkPhone() bool {
	phone, err := normalize.Phone(r.req.Phone, r.v.CountryCode)
	if err != nil {
		code := "INVALID_PHONE"
		msg := "The phone number is not valid"
		switch {
		case errors.Is(err, normalize.ErrPhoneRequired):
			code, msg = "PHONE_REQUIRED", "A phone number is required"
		case errors.Is(err, normalize.ErrPhoneSuspicious):
			code, msg = "SUSPICIOUS_PHONE", "The phone number does not look real"
		}
		r.fail(CategoryPhone, code, FieldPhone, msg, map[string]any{"input": strings.TrimSpace(r.req.Phone)})
		return true
	}
	r.result.Normalized.Phone = phone
	return true
}

func (r *validationRun) checkNotes() bool {
	if strings.TrimSpace(r.req.Notes) == "" {
		return true
	}
	res := normalize.Notes(r.req.Notes, normalize.MaxNotesLength)
	r.result.Normalized.Notes = res.Value
	if res.Sanitized {
		r.warn(CategoryNotes, SeverityWarning, "NOTES_SANITIZED", FieldNotes, "Markup was removed from the notes", nil)
	}
	if res.Truncated {
		r.warn(CategoryNotes, SeverityWarning, "NOTES_TRUNCATED", FieldNotes, fmt.Sprintf("The notes were shortened to %d characters", normalize.MaxNotesLength), nil)
	}
	return true
}

// checkDatetime returns false when the start time cannot be built at all.
func (r *validationRun) checkDatetime() bool {
	p := r.v.Policy
	rules := p.Rules
	date, err := time.ParseInLocation(policy.DateLayout, strings.TrimSpace(r.req.Date), p.Location)
	if err != nil {
		r.fail(CategoryDatetime, "DATETIME_INVALID", FieldDate, "The date could not be understood", map[string]any{"date": r.req.Date})
		return false
	}
	at, err := policy.ParseTimeOfDay(r.req.Time)
	if err != nil {
		r.fail(CategoryDatetime, "DATETIME_INVALID", FieldTime, "The time could not be understood", map[string]any{"time": r.req.Time})
		return false
	}
	start := p.Combine(date, at)
	r.start = start
	r.hasTime = true
	r.result.Normalized.StartAt = start

	switch {
	case !start.After(r.now):
		r.fail(CategoryDatetime, "PAST_DATETIME", FieldTime, "That time has already passed", nil)
	case start.Sub(r.now) < rules.MinLeadTime:
		r.fail(CategoryDatetime, "INSUFFICIENT_LEAD_TIME", FieldTime,
			fmt.Sprintf("Reservations need at least %d minutes notice", int(rules.MinLeadTime/time.Minute)),
			map[string]any{"min_lead_minutes": int(rules.MinLeadTime / time.Minute)})
	}
	if start.After(r.now.AddDate(0, 0, rules.MaxHorizonDays)) {
		r.fail(CategoryDatetime, "EXCEEDS_HORIZON", FieldDate,
			fmt.Sprintf("Reservations can be made at most %d days in advance", rules.MaxHorizonDays),
			map[string]any{"max_days": rules.MaxHorizonDays})
	}

	hours, open := p.HoursOn(date)
	r.hours, r.open = hours, open
	if !open {
		details := map[string]any{"date": policy.DateKey(date)}
		if sd, ok := p.SpecialOn(date); ok && sd.Description != "" {
			details["reason"] = sd.Description
		}
		r.fail(CategoryDatetime, "CLOSED_DATE", FieldDate, "The restaurant is closed on that date", details)
	} else {
		last := p.LastReservation(hours)
		switch {
		case at < hours.Open:
			r.fail(CategoryDatetime, "BEFORE_OPENING", FieldTime,
				fmt.Sprintf("We open at %s that day", hours.Open),
				map[string]any{"opens": hours.Open.String()})
		case at > last:
			r.fail(CategoryDatetime, "AFTER_LAST_RESERVATION", FieldTime,
				fmt.Sprintf("The last reservation that day is at %s", last),
				map[string]any{"last_reservation": last.String()})
		}
	}
	if !p.Aligned(at) {
		step := int(rules.SlotGranularity / time.Minute)
		r.fail(CategoryDatetime, "INVALID_TIME_SLOT", FieldTime,
			fmt.Sprintf("Reservations start every %d minutes", step),
			map[string]any{"granularity_minutes": step})
	}
	return true
}

func (r *validationRun) checkPartySize() bool {
	rules := r.v.Policy.Rules
	n := r.req.PartySize
	switch {
	case n < rules.MinPartySize:
		r.fail(CategoryPartySize, "PARTY_TOO_SMALL", FieldPartySize,
			fmt.Sprintf("We seat parties of %d to %d guests", rules.MinPartySize, rules.MaxPartySize), nil)
		return true
	case n > rules.MaxPartySize:
		r.fail(CategoryPartySize, "PARTY_TOO_LARGE", FieldPartySize,
			fmt.Sprintf("We seat parties of %d to %d guests", rules.MinPartySize, rules.MaxPartySize),
			map[string]any{"max_party_size": rules.MaxPartySize})
		return true
	}
	if n >= rules.LargePartyThreshold {
		r.warn(CategoryPartySize, SeverityWarning, "LARGE_PARTY", FieldPartySize,
			fmt.Sprintf("Party of %d is a large party", n), nil)
	}
	if n > rules.MaxPartyWithoutNotes && utf8.RuneCountInString(r.result.Normalized.Notes) < rules.MinNotesLength {
		r.result.RequiresManualConfirmation = true
		r.warn(CategoryPartySize, SeverityWarning, "LARGE_PARTY_NOTES_RECOMMENDED", FieldNotes,
			fmt.Sprintf("Parties over %d guests need details in the notes or a staff confirmation", rules.MaxPartyWithoutNotes), nil)
	}
	if n > rules.EscalationPartySize {
		r.result.RequiresEscalation = true
		r.result.EscalationReason = fmt.Sprintf("Party of %d guests exceeds %d and needs manager approval", n, rules.EscalationPartySize)
		r.warn(CategoryPartySize, SeverityWarning, "ESCALATION_REQUIRED", FieldPartySize,
			fmt.Sprintf("Parties of more than %d guests require manual approval by a manager", rules.EscalationPartySize),
			map[string]any{"threshold": rules.EscalationPartySize})
	}
	return true
}

func (r *validationRun) checkDuration() bool {
	p := r.v.Policy
	rules := p.Rules
	d := p.DurationFor(r.req.PartySize)
	if r.req.DurationMinutes > 0 {
		d = time.Duration(r.req.DurationMinutes) * time.Minute
	}
	r.result.Normalized.DurationMinutes = int(d / time.Minute)

	switch {
	case d < rules.MinDuration:
		r.fail(CategoryDuration, "DURATION_TOO_SHORT", FieldDuration,
			fmt.Sprintf("A sitting lasts at least %d minutes", int(rules.MinDuration/time.Minute)), nil)
		return true
	case d > rules.MaxDuration:
		r.fail(CategoryDuration, "DURATION_TOO_LONG", FieldDuration,
			fmt.Sprintf("A sitting lasts at most %d minutes", int(rules.MaxDuration/time.Minute)), nil)
		return true
	}
	if !r.open {
		return true
	}
	fitted, adjusted, ok := p.FitToClosing(r.start, d)
	switch {
	case !ok:
		r.fail(CategoryDuration, "EXCEEDS_CLOSING", FieldTime,
			fmt.Sprintf("That time leaves less than %d minutes before we close at %s", int(rules.MinDuration/time.Minute), r.hours.Close),
			map[string]any{"closes": r.hours.Close.String()})
	case adjusted:
		r.result.Normalized.DurationMinutes = int(fitted / time.Minute)
		r.warn(CategoryDuration, SeverityWarning, "DURATION_ADJUSTED", FieldDuration,
			fmt.Sprintf("The reservation was shortened to %d minutes to end by closing time", int(fitted/time.Minute)),
			map[string]any{"requested_minutes": int(d / time.Minute), "duration_minutes": int(fitted / time.Minute)})
	}
	return true
}

func (r *validationRun) checkCrossField() bool {
	p := r.v.Policy
	rules := p.Rules
	n := r.req.PartySize
	if sd, ok := p.SpecialOn(r.start); ok && !sd.Closed && sd.Description != "" {
		r.warn(CategoryCrossField, SeverityInfo, "SPECIAL_DATE", FieldDate,
			fmt.Sprintf("%s: special opening hours %s apply", sd.Description, sd.Hours),
			map[string]any{"description": sd.Description})
	}
	if p.IsWeekend(r.start) && n >= rules.LargePartyThreshold {
		r.warn(CategoryCrossField, SeverityInfo, "WEEKEND_LARGE_PARTY", FieldPartySize,
			"Large weekend parties may be seated in the back room", nil)
	}
	sameDay := policy.DateKey(r.start) == policy.DateKey(r.now)
	if sameDay && n >= rules.SameDayPartySize && r.start.Sub(r.now) < rules.SameDayNotice {
		r.warn(CategoryCrossField, SeverityWarning, "SAME_DAY_LARGE_PARTY", FieldTime,
			fmt.Sprintf("Same-day bookings for %d or more guests usually need %d hours notice", rules.SameDayPartySize, int(rules.SameDayNotice/time.Hour)), nil)
	}
	return true
}

func (r *validationRun) checkIdempotency() bool {
	n := &r.result.Normalized
	n.Fingerprint = Fingerprint(n.Phone, r.start, n.PartySize)
	if r.v.Registry == nil {
		return true
	}
	rules := r.v.Policy.Rules
	if fp, dup := r.v.Registry.FindDuplicate(n.Phone, r.start, n.PartySize, rules.DuplicateWindow, rules.DuplicateStep); dup {
		r.fail(CategoryIdempotency, "DUPLICATE_RESERVATION", FieldTime,
			"A reservation for this phone number, time and party size already exists",
			map[string]any{"fingerprint": fp})
	}
	return true
}
