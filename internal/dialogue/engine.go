package dialogue

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/restaurant-voice/backend/internal/models"
	"github.com/restaurant-voice/backend/internal/policy"
	"github.com/restaurant-voice/backend/internal/service"
)

var tracer = otel.Tracer("restaurant-voice/dialogue")

// Bookings is the reservation side of the engine.
type Bookings interface {
	Create(ctx context.Context, draft models.ReservationDraft) (models.Reservation, error)
	Cancel(ctx context.Context, id, reason string) (models.Reservation, error)
	Find(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, error)
	OpenSlots(ctx context.Context, date time.Time, party int) ([]time.Time, error)
}

type ReservationValidator interface {
	Validate(req service.ReservationRequest) (*models.ReservationDraft, service.ValidationResult)
}

type Config struct {
	RestaurantName string
	CountryCode    string
	// MaxRetries is how many failed attempts at one question end in a handoff.
	MaxRetries int
	// MaxOffered caps the slot times read out when asking for a time.
	MaxOffered int
}

type Engine struct {
	Policy    policy.Policy
	Validator ReservationValidator
	Bookings  Bookings
	Menu      *service.Menu
	Config    Config
	Logger    zerolog.Logger
	Now       func() time.Time
}

func NewEngine(p policy.Policy, validator ReservationValidator, bookings Bookings, menu *service.Menu, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.MaxOffered <= 0 {
		cfg.MaxOffered = 5
	}
	return &Engine{
		Policy:    p,
		Validator: validator,
		Bookings:  bookings,
		Menu:      menu,
		Config:    cfg,
		Logger:    logger,
		Now:       time.Now,
	}
}

// Reply is what the caller hears after a turn.
type Reply struct {
	Text          string `json:"text"`
	EndSession    bool   `json:"end_session"`
	State         State  `json:"state"`
	Intent        Intent `json:"intent"`
	Handoff       bool   `json:"handoff"`
	HandoffReason string `json:"handoff_reason,omitempty"`
}

// input is the caller utterance for one turn. The first state to act on
// it marks it used; states reached later in the same turn only prompt.
type input struct {
	text string
	used bool
}

func (in *input) fresh() bool { return !in.used }
func (in *input) take() string {
	in.used = true
	return in.text
}

// step is a state handler result: either a prompt for the caller, or
// a request to run the (new) current state right away.
type step struct {
	prompt string
	next   bool
}

func say(prompt string) step { return step{prompt: prompt} }
func proceed() step          { return step{next: true} }

// maxChain bounds state transitions within one turn.
const maxChain = 12

// Handle runs one caller turn against the session and returns the reply.
// An empty utterance on a new session produces the greeting.
func (e *Engine) Handle(ctx context.Context, s *CallSession, utterance string) Reply {
	ctx, span := tracer.Start(ctx, "dialogue.Handle")
	defer span.End()

	now := e.now()
	if s.Retries == nil {
		s.Retries = map[string]int{}
	}
	if s.State == "" {
		s.State = StateDetectIntent
	}
	text := strings.TrimSpace(utterance)
	from := s.State
	s.Turns++

	var out step
	switch {
	case s.Ended:
		out = say(promptGoodbye)
	case text == "" && len(s.Transcript) == 0:
		out = say(e.greeting())
	case text == "":
		out = e.silence(s)
	default:
		s.record(RoleUser, text, now)
		out = e.run(ctx, s, &input{text: text})
	}

	s.LastPrompt = out.prompt
	s.record(RoleAssistant, out.prompt, e.now())
	span.SetAttributes(
		attribute.String("call.id", s.CallID),
		attribute.String("dialogue.from", string(from)),
		attribute.String("dialogue.to", string(s.State)),
	)
	return Reply{
		Text:          out.prompt,
		EndSession:    s.Ended,
		State:         s.State,
		Intent:        s.Intent,
		Handoff:       s.Handoff,
		HandoffReason: s.HandoffReason,
	}
}

func (e *Engine) run(ctx context.Context, s *CallSession, in *input) step {
	if s.Completed && (s.State == StateMenuAnswer || s.State == StateRecommend) {
		if out, done := e.followUp(s, in); done {
			return out
		}
	}
	var out step
	for i := 0; i < maxChain; i++ {
		prev := s.State
		out = e.dispatch(ctx, s, in)
		if s.State != prev {
			e.Logger.Debug().
				Str("call_id", s.CallID).
				Str("from", string(prev)).
				Str("to", string(s.State)).
				Msg("dialogue transition")
		}
		if !out.next {
			return out
		}
	}
	e.Logger.Error().Str("call_id", s.CallID).Str("state", string(s.State)).Msg("dialogue did not settle")
	return e.handoff(s, "internal dialogue error")
}

func (e *Engine) dispatch(ctx context.Context, s *CallSession, in *input) step {
	switch s.State {
	case StateDetectIntent:
		return e.detectIntent(s, in)
	case StateMenuAnswer:
		return e.menuAnswer(s, in)
	case StateRecommend:
		return e.recommend(s, in)
	case StateReserveCollect:
		return e.reserveCollect(ctx, s, in)
	case StateReserveConfirm:
		return e.reserveConfirm(s, in)
	case StateReserveExecute:
		return e.reserveExecute(ctx, s)
	case StateCancelCollect:
		return e.cancelCollect(s, in)
	case StateCancelSearch:
		return e.cancelSearch(ctx, s)
	case StateCancelDisambiguate:
		return e.cancelDisambiguate(s, in)
	case StateCancelConfirm:
		return e.cancelConfirm(s, in)
	case StateCancelExecute:
		return e.cancelExecute(ctx, s)
	case StateCancelNotFound, StateCancelDeclined:
		s.Ended = true
		return say(promptGoodbye)
	case StateHandoff:
		return e.handoff(s, s.HandoffReason)
	}
	e.Logger.Error().Str("call_id", s.CallID).Str("state", string(s.State)).Msg("unknown dialogue state")
	return e.handoff(s, "unknown dialogue state")
}

// followUp handles the turn after an informational answer. It reports
// false when the utterance should be classified as a new request.
func (e *Engine) followUp(s *CallSession, in *input) (step, bool) {
	s.Completed = false
	switch {
	case Confirmation(in.text) == AnswerYes:
		in.take()
		s.Intent = IntentReserve
		s.State = StateReserveCollect
		return step{}, false
	case Closing(in.text):
		s.Ended = true
		s.Completed = true
		return say(promptGoodbye), true
	}
	s.State = StateDetectIntent
	return step{}, false
}

func (e *Engine) detectIntent(s *CallSession, in *input) step {
	if !in.fresh() {
		return say("How can I help you? " + promptHelp)
	}
	intent := Classify(in.take())
	s.Intent = intent
	switch intent {
	case IntentMenu:
		s.State = StateMenuAnswer
	case IntentRecommend:
		s.State = StateRecommend
	case IntentReserve:
		s.State = StateReserveCollect
	case IntentCancel:
		s.State = StateCancelCollect
	case IntentHandoff:
		return e.handoff(s, "caller asked for a member of staff")
	default:
		if e.exhausted(s, "intent") {
			return e.handoff(s, "intent not recognized")
		}
		return say("Sorry, I didn't understand. " + promptHelp)
	}
	return proceed()
}

// silence repeats the last prompt. Repeated silence ends in a handoff.
func (e *Engine) silence(s *CallSession) step {
	if e.exhausted(s, "silence") {
		return e.handoff(s, "no response from caller")
	}
	last := strings.TrimSpace(strings.TrimPrefix(s.LastPrompt, promptApology))
	if last == "" {
		last = "How can I help you?"
	}
	return say(promptApology + " " + last)
}

// exhausted counts a failed attempt at key and reports whether the
// retry limit is reached.
func (e *Engine) exhausted(s *CallSession, key string) bool {
	s.Retries[key]++
	return s.Retries[key] >= e.maxRetries()
}

// handoff transfers the call to staff. Any pending action is dropped.
func (e *Engine) handoff(s *CallSession, reason string) step {
	s.State = StateHandoff
	s.Handoff = true
	s.HandoffReason = reason
	s.NeedsConfirmation = false
	s.PendingAction = ActionNone
	s.Ended = true
	e.Logger.Info().Str("call_id", s.CallID).Str("reason", reason).Msg("handing call to staff")
	return say(promptHandoff)
}

func (e *Engine) maxRetries() int {
	if e.Config.MaxRetries <= 0 {
		return 3
	}
	return e.Config.MaxRetries
}

func (e *Engine) maxOffered() int {
	if e.Config.MaxOffered <= 0 {
		return 5
	}
	return e.Config.MaxOffered
}

func (e *Engine) restaurantName() string {
	if e.Config.RestaurantName != "" {
		return e.Config.RestaurantName
	}
	return e.Policy.Name
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Policy.In(e.Now())
	}
	return e.Policy.In(time.Now())
}
