package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/restaurant-voice/backend/internal/models"
)

// Store is the PostgreSQL reservation and call-log store.
type Store struct {
	Pool *pgxpool.Pool
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &Store{Pool: pool}, nil
}

func (s *Store) Close() error {
	s.Pool.Close()
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.Pool.Ping(ctx)
}

func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range statements(postgresSchema) {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Store) CreateReservation(ctx context.Context, d models.ReservationDraft) (models.Reservation, error) {
	now := time.Now().UTC()
	r := models.Reservation{
		ID:                         uuid.NewString(),
		Name:                       d.Name,
		Phone:                      d.Phone,
		PhoneRaw:                   d.PhoneRaw,
		StartAt:                    d.StartAt,
		DurationMinutes:            d.DurationMinutes,
		PartySize:                  d.PartySize,
		Notes:                      d.Notes,
		Status:                     d.Status(),
		Fingerprint:                d.Fingerprint,
		RequiresManualConfirmation: d.RequiresManualConfirmation,
		EscalationReason:           d.EscalationReason,
		Source:                     d.Source,
		CallSID:                    d.CallSID,
		CreatedAt:                  now,
		UpdatedAt:                  now,
	}
	err := s.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO reservations (`+reservationColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)
		`, r.ID, r.Name, r.Phone, r.PhoneRaw, r.StartAt, r.DurationMinutes, r.PartySize, r.Notes, string(r.Status),
			r.Fingerprint, r.RequiresManualConfirmation, r.EscalationReason, r.Source, r.CallSID, r.CancelReason,
			r.CancelledAt, r.CreatedAt, r.UpdatedAt)
		if err != nil {
			return err
		}
		return insertAudit(ctx, tx, "reservation.created", r.ID, auditMetadata(r, map[string]any{"source": r.Source}))
	})
	if err != nil {
		return models.Reservation{}, err
	}
	return r, nil
}

func (s *Store) CancelReservation(ctx context.Context, id, reason string) error {
	return s.WithTx(ctx, func(tx pgx.Tx) error {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM reservations WHERE id = $1 FOR UPDATE`, id).Scan(&status)
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return err
		}
		if status == string(models.StatusCancelled) {
			return models.ErrAlreadyCancelled
		}
		if _, err := tx.Exec(ctx, `
			UPDATE reservations
			SET status = $2, cancel_reason = $3, cancelled_at = now(), updated_at = now()
			WHERE id = $1
		`, id, string(models.StatusCancelled), reason); err != nil {
			return err
		}
		return insertAudit(ctx, tx, "reservation.cancelled", id, reasonMetadata(reason))
	})
}

func insertAudit(ctx context.Context, tx pgx.Tx, action, entityID string, metadata []byte) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO audit_log (action, entity_type, entity_id, metadata)
		VALUES ($1, 'reservation', $2, $3)
	`, action, entityID, metadata)
	return err
}

func (s *Store) GetReservation(ctx context.Context, id string) (models.Reservation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return models.Reservation{}, models.ErrNotFound
	}
	row := s.Pool.QueryRow(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = $1`, id)
	r, err := scanReservation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Reservation{}, models.ErrNotFound
	}
	return r, err
}

func (s *Store) FindReservations(ctx context.Context, f models.ReservationFilter) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	var args []any
	var wheres []string
	if f.Name != "" {
		args = append(args, "%"+f.Name+"%")
		wheres = append(wheres, fmt.Sprintf("name ILIKE $%d", len(args)))
	}
	if f.Phone != "" {
		args = append(args, f.Phone)
		wheres = append(wheres, fmt.Sprintf("phone = $%d", len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		wheres = append(wheres, fmt.Sprintf("start_at >= $%d", len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		wheres = append(wheres, fmt.Sprintf("start_at < $%d", len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		wheres = append(wheres, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Active {
		args = append(args, string(models.StatusCancelled))
		wheres = append(wheres, fmt.Sprintf("status <> $%d", len(args)))
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY start_at ASC, created_at ASC"
	if f.Limit > 0 {
		args = append(args, f.Limit, max(f.Offset, 0))
		query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	}
	return s.queryReservations(ctx, query, args...)
}

func (s *Store) ListOverlapping(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	return s.queryReservations(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status <> $1 AND start_at > $2 AND start_at < $3
		ORDER BY start_at ASC
	`, string(models.StatusCancelled), from, to)
}

func (s *Store) queryReservations(ctx context.Context, query string, args ...any) ([]models.Reservation, error) {
	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanReservation(row pgx.Row) (models.Reservation, error) {
	var r models.Reservation
	var status string
	err := row.Scan(&r.ID, &r.Name, &r.Phone, &r.PhoneRaw, &r.StartAt, &r.DurationMinutes, &r.PartySize, &r.Notes, &status,
		&r.Fingerprint, &r.RequiresManualConfirmation, &r.EscalationReason, &r.Source, &r.CallSID, &r.CancelReason,
		&r.CancelledAt, &r.CreatedAt, &r.UpdatedAt)
	r.Status = models.ReservationStatus(status)
	return r, err
}

// SaveCall inserts the call or updates its dialogue progress.
func (s *Store) SaveCall(ctx context.Context, c models.CallLog) error {
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now().UTC()
	}
	if c.Status == "" {
		c.Status = "in-progress"
	}
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO call_logs (`+callColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
		ON CONFLICT (call_sid) DO UPDATE SET
			intent = EXCLUDED.intent,
			state = EXCLUDED.state,
			outcome = EXCLUDED.outcome,
			handoff_reason = EXCLUDED.handoff_reason,
			reservation_id = EXCLUDED.reservation_id,
			turns = EXCLUDED.turns,
			transcript = EXCLUDED.transcript
	`, c.CallSID, c.From, c.To, c.Intent, c.State, c.Outcome, c.HandoffReason, c.ReservationID,
		c.Turns, nullJSON(c.Transcript), c.Status, c.DurationSeconds, c.StartedAt, c.EndedAt)
	return err
}

func (s *Store) FinishCall(ctx context.Context, callSID, status string, durationSeconds int, endedAt time.Time) error {
	tag, err := s.Pool.Exec(ctx, `
		UPDATE call_logs SET status = $2, duration_seconds = $3, ended_at = $4
		WHERE call_sid = $1
	`, callSID, status, durationSeconds, endedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *Store) ListCalls(ctx context.Context, limit, offset int) ([]models.CallLog, error) {
	limit, offset = normalizeLimit(limit, offset)
	rows, err := s.Pool.Query(ctx, `
		SELECT `+callColumns+` FROM call_logs
		ORDER BY started_at DESC LIMIT $1 OFFSET $2
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CallLog
	for rows.Next() {
		var c models.CallLog
		if err := rows.Scan(&c.CallSID, &c.From, &c.To, &c.Intent, &c.State, &c.Outcome, &c.HandoffReason, &c.ReservationID,
			&c.Turns, &c.Transcript, &c.Status, &c.DurationSeconds, &c.StartedAt, &c.EndedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return b
}
