package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/restaurant-voice/backend/internal/models"
	"github.com/restaurant-voice/backend/internal/notify"
)

var (
	ErrSlotUnavailable = errors.New("requested time is fully booked")
	ErrDuplicate       = errors.New("a matching reservation already exists")
)

var tracer = otel.Tracer("restaurant-voice/service")

// ReservationStore is the persistence collaborator.
type ReservationStore interface {
	CreateReservation(ctx context.Context, draft models.ReservationDraft) (models.Reservation, error)
	CancelReservation(ctx context.Context, id, reason string) error
	GetReservation(ctx context.Context, id string) (models.Reservation, error)
	FindReservations(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, error)
	ListOverlapping(ctx context.Context, from, to time.Time) ([]models.Reservation, error)
}

// BookingService executes reservation side effects. Create and Cancel are
// serialized so the duplicate check, the capacity check and the write see
// the same state.
type BookingService struct {
	Store        ReservationStore
	Availability *AvailabilityChecker
	Registry     *IdempotencyRegistry
	Notifier     notify.Notifier
	Logger       zerolog.Logger
	Now          func() time.Time

	mu sync.Mutex
}

func NewBookingService(store ReservationStore, availability *AvailabilityChecker, registry *IdempotencyRegistry, notifier notify.Notifier, logger zerolog.Logger) *BookingService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &BookingService{
		Store:        store,
		Availability: availability,
		Registry:     registry,
		Notifier:     notifier,
		Logger:       logger,
		Now:          time.Now,
	}
}

func (s *BookingService) Create(ctx context.Context, draft models.ReservationDraft) (models.Reservation, error) {
	ctx, span := tracer.Start(ctx, "booking.create")
	defer span.End()
	span.SetAttributes(
		attribute.String("reservation.start_at", draft.StartAt.Format(time.RFC3339)),
		attribute.Int("reservation.party_size", draft.PartySize),
		attribute.Bool("reservation.escalated", draft.RequiresEscalation),
	)

	s.mu.Lock()
	rules := s.Availability.Policy.Rules
	if fp, dup := s.Registry.FindDuplicate(draft.Phone, draft.StartAt, draft.PartySize, rules.DuplicateWindow, rules.DuplicateStep); dup {
		s.mu.Unlock()
		span.SetAttributes(attribute.String("reservation.duplicate_of", fp))
		return models.Reservation{}, fmt.Errorf("%w: fingerprint %s", ErrDuplicate, fp)
	}
	avail, err := s.Availability.Check(ctx, draft.StartAt, draft.PartySize, "")
	if err != nil {
		s.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "availability check failed")
		return models.Reservation{}, err
	}
	if !avail.Available {
		s.mu.Unlock()
		span.SetAttributes(attribute.String("reservation.unavailable", avail.Reason))
		return models.Reservation{}, fmt.Errorf("%w: %s", ErrSlotUnavailable, avail.Reason)
	}
	res, err := s.Store.CreateReservation(ctx, draft)
	if err != nil {
		s.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "create reservation failed")
		return models.Reservation{}, fmt.Errorf("create reservation: %w", err)
	}
	s.Registry.Register(res.Fingerprint)
	s.mu.Unlock()

	span.SetAttributes(attribute.String("reservation.id", res.ID))
	s.Logger.Info().
		Str("reservation_id", res.ID).
		Str("status", string(res.Status)).
		Time("start_at", res.StartAt).
		Int("party_size", res.PartySize).
		Msg("reservation created")

	ev := notify.EventReservationCreated
	if draft.RequiresEscalation || draft.RequiresManualConfirmation {
		ev = notify.EventReservationEscalated
	}
	s.publish(ctx, notify.Event{
		Type:          ev,
		ReservationID: res.ID,
		CallSID:       res.CallSID,
		Name:          res.Name,
		Phone:         res.Phone,
		StartAt:       res.StartAt,
		PartySize:     res.PartySize,
		Reason:        res.EscalationReason,
	})
	return res, nil
}

func (s *BookingService) Cancel(ctx context.Context, id, reason string) (models.Reservation, error) {
	ctx, span := tracer.Start(ctx, "booking.cancel")
	defer span.End()
	span.SetAttributes(attribute.String("reservation.id", id))

	s.mu.Lock()
	res, err := s.Store.GetReservation(ctx, id)
	if err != nil {
		s.mu.Unlock()
		span.RecordError(err)
		return models.Reservation{}, err
	}
	if !res.Active() {
		s.mu.Unlock()
		return res, models.ErrAlreadyCancelled
	}
	if err := s.Store.CancelReservation(ctx, id, reason); err != nil {
		s.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancel reservation failed")
		return models.Reservation{}, fmt.Errorf("cancel reservation: %w", err)
	}
	s.Registry.Unregister(res.Fingerprint)
	s.mu.Unlock()

	now := s.now()
	res.Status = models.StatusCancelled
	res.CancelReason = reason
	res.CancelledAt = &now

	s.Logger.Info().Str("reservation_id", id).Str("reason", reason).Msg("reservation cancelled")
	s.publish(ctx, notify.Event{
		Type:          notify.EventReservationCancelled,
		ReservationID: res.ID,
		Name:          res.Name,
		Phone:         res.Phone,
		StartAt:       res.StartAt,
		PartySize:     res.PartySize,
		Reason:        reason,
	})
	return res, nil
}

func (s *BookingService) Find(ctx context.Context, filter models.ReservationFilter) ([]models.Reservation, error) {
	ctx, span := tracer.Start(ctx, "booking.find")
	defer span.End()
	out, err := s.Store.FindReservations(ctx, filter)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("find reservations: %w", err)
	}
	return out, nil
}

func (s *BookingService) OpenSlots(ctx context.Context, date time.Time, party int) ([]time.Time, error) {
	return s.Availability.OpenSlots(ctx, date, party, s.now())
}

// RebuildRegistry reloads fingerprints of upcoming active reservations.
func (s *BookingService) RebuildRegistry(ctx context.Context) (int, error) {
	upcoming, err := s.Store.FindReservations(ctx, models.ReservationFilter{From: s.now(), Active: true})
	if err != nil {
		return 0, fmt.Errorf("load upcoming reservations: %w", err)
	}
	return s.Registry.Rebuild(upcoming), nil
}

func (s *BookingService) publish(ctx context.Context, ev notify.Event) {
	if ev.At.IsZero() {
		ev.At = s.now().UTC()
	}
	if err := s.Notifier.Publish(ctx, ev); err != nil {
		s.Logger.Warn().Err(err).Str("event", string(ev.Type)).Msg("notify failed")
	}
}

func (s *BookingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
