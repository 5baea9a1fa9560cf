package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/restaurant-voice/backend/internal/models"
)

// Timestamps are stored as fixed-width UTC strings so they sort lexically.
const sqliteTime = "2006-01-02T15:04:05Z"

// SQLiteStore is the single-node reservation and call-log store.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	for _, stmt := range statements(sqliteSchema) {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback()
	}()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func fmtTime(t time.Time) string {
	return t.UTC().Format(sqliteTime)
}

func fmtTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return fmtTime(*t)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(sqliteTime, s)
}

func (s *SQLiteStore) CreateReservation(ctx context.Context, d models.ReservationDraft) (models.Reservation, error) {
	now := time.Now().UTC().Truncate(time.Second)
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
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO reservations (`+reservationColumns+`)
			VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		`, r.ID, r.Name, r.Phone, r.PhoneRaw, fmtTime(r.StartAt), r.DurationMinutes, r.PartySize, r.Notes, string(r.Status),
			r.Fingerprint, r.RequiresManualConfirmation, r.EscalationReason, r.Source, r.CallSID, r.CancelReason,
			nil, fmtTime(r.CreatedAt), fmtTime(r.UpdatedAt))
		if err != nil {
			return err
		}
		return s.insertAudit(ctx, tx, "reservation.created", r.ID, auditMetadata(r, map[string]any{"source": r.Source}))
	})
	if err != nil {
		return models.Reservation{}, err
	}
	return r, nil
}

func (s *SQLiteStore) CancelReservation(ctx context.Context, id, reason string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var status string
		err := tx.QueryRowContext(ctx, `SELECT status FROM reservations WHERE id = ?`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrNotFound
		}
		if err != nil {
			return err
		}
		if status == string(models.StatusCancelled) {
			return models.ErrAlreadyCancelled
		}
		now := fmtTime(time.Now())
		if _, err := tx.ExecContext(ctx, `
			UPDATE reservations SET status = ?, cancel_reason = ?, cancelled_at = ?, updated_at = ?
			WHERE id = ?
		`, string(models.StatusCancelled), reason, now, now, id); err != nil {
			return err
		}
		return s.insertAudit(ctx, tx, "reservation.cancelled", id, reasonMetadata(reason))
	})
}

func (s *SQLiteStore) insertAudit(ctx context.Context, tx *sql.Tx, action, entityID string, metadata []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO audit_log (action, entity_type, entity_id, metadata, created_at)
		VALUES (?, 'reservation', ?, ?, ?)
	`, action, entityID, string(metadata), fmtTime(time.Now()))
	return err
}

func (s *SQLiteStore) GetReservation(ctx context.Context, id string) (models.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+reservationColumns+` FROM reservations WHERE id = ?`, id)
	if err != nil {
		return models.Reservation{}, err
	}
	out, err := scanSQLiteReservations(rows)
	if err != nil {
		return models.Reservation{}, err
	}
	if len(out) == 0 {
		return models.Reservation{}, models.ErrNotFound
	}
	return out[0], nil
}

func (s *SQLiteStore) FindReservations(ctx context.Context, f models.ReservationFilter) ([]models.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations`
	var args []any
	var wheres []string
	if f.Name != "" {
		args = append(args, "%"+strings.ToLower(f.Name)+"%")
		wheres = append(wheres, "lower(name) LIKE ?")
	}
	if f.Phone != "" {
		args = append(args, f.Phone)
		wheres = append(wheres, "phone = ?")
	}
	if !f.From.IsZero() {
		args = append(args, fmtTime(f.From))
		wheres = append(wheres, "start_at >= ?")
	}
	if !f.To.IsZero() {
		args = append(args, fmtTime(f.To))
		wheres = append(wheres, "start_at < ?")
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		wheres = append(wheres, "status = ?")
	}
	if f.Active {
		args = append(args, string(models.StatusCancelled))
		wheres = append(wheres, "status <> ?")
	}
	if len(wheres) > 0 {
		query += " WHERE " + strings.Join(wheres, " AND ")
	}
	query += " ORDER BY start_at ASC, created_at ASC"
	if f.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, max(f.Offset, 0))
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanSQLiteReservations(rows)
}

func (s *SQLiteStore) ListOverlapping(ctx context.Context, from, to time.Time) ([]models.Reservation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reservationColumns+` FROM reservations
		WHERE status <> ? AND start_at > ? AND start_at < ?
		ORDER BY start_at ASC
	`, string(models.StatusCancelled), fmtTime(from), fmtTime(to))
	if err != nil {
		return nil, err
	}
	return scanSQLiteReservations(rows)
}

func scanSQLiteReservations(rows *sql.Rows) ([]models.Reservation, error) {
	defer rows.Close()
	var out []models.Reservation
	for rows.Next() {
		var (
			r                    models.Reservation
			status, startAt      string
			createdAt, updatedAt string
			cancelledAt          sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Phone, &r.PhoneRaw, &startAt, &r.DurationMinutes, &r.PartySize, &r.Notes, &status,
			&r.Fingerprint, &r.RequiresManualConfirmation, &r.EscalationReason, &r.Source, &r.CallSID, &r.CancelReason,
			&cancelledAt, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		r.Status = models.ReservationStatus(status)
		var err error
		if r.StartAt, err = parseTime(startAt); err != nil {
			return nil, err
		}
		if r.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		if cancelledAt.Valid {
			t, err := parseTime(cancelledAt.String)
			if err != nil {
				return nil, err
			}
			r.CancelledAt = &t
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveCall(ctx context.Context, c models.CallLog) error {
	if c.StartedAt.IsZero() {
		c.StartedAt = time.Now()
	}
	if c.Status == "" {
		c.Status = "in-progress"
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO call_logs (`+callColumns+`)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (call_sid) DO UPDATE SET
			intent = excluded.intent,
			state = excluded.state,
			outcome = excluded.outcome,
			handoff_reason = excluded.handoff_reason,
			reservation_id = excluded.reservation_id,
			turns = excluded.turns,
			transcript = excluded.transcript
	`, c.CallSID, c.From, c.To, c.Intent, c.State, c.Outcome, c.HandoffReason, c.ReservationID,
		c.Turns, string(c.Transcript), c.Status, c.DurationSeconds, fmtTime(c.StartedAt), fmtTimePtr(c.EndedAt))
	return err
}

func (s *SQLiteStore) FinishCall(ctx context.Context, callSID, status string, durationSeconds int, endedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE call_logs SET status = ?, duration_seconds = ?, ended_at = ? WHERE call_sid = ?
	`, status, durationSeconds, fmtTime(endedAt), callSID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) ListCalls(ctx context.Context, limit, offset int) ([]models.CallLog, error) {
	limit, offset = normalizeLimit(limit, offset)
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+callColumns+` FROM call_logs ORDER BY started_at DESC LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.CallLog
	for rows.Next() {
		var (
			c          models.CallLog
			transcript sql.NullString
			startedAt  string
			endedAt    sql.NullString
		)
		if err := rows.Scan(&c.CallSID, &c.From, &c.To, &c.Intent, &c.State, &c.Outcome, &c.HandoffReason, &c.ReservationID,
			&c.Turns, &transcript, &c.Status, &c.DurationSeconds, &startedAt, &endedAt); err != nil {
			return nil, err
		}
		if transcript.Valid && transcript.String != "" {
			c.Transcript = []byte(transcript.String)
		}
		var err error
		if c.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, err
		}
		if endedAt.Valid {
			t, err := parseTime(endedAt.String)
			if err != nil {
				return nil, err
			}
			c.EndedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
