package db

import (
	_ "embed"
	"encoding/json"
	"strings"

	"github.com/restaurant-voice/backend/internal/models"
)

//go:embed schema/postgres.sql
var postgresSchema string

//go:embed schema/sqlite.sql
var sqliteSchema string

const reservationColumns = `id, name, phone, phone_raw, start_at, duration_minutes, party_size, notes, status,
	fingerprint, requires_manual_confirmation, escalation_reason, source, call_sid, cancel_reason,
	cancelled_at, created_at, updated_at`

const callColumns = `call_sid, from_number, to_number, intent, state, outcome, handoff_reason, reservation_id,
	turns, transcript, status, duration_seconds, started_at, ended_at`

func statements(schema string) []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		if s := strings.TrimSpace(stmt); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func auditMetadata(r models.Reservation, extra map[string]any) []byte {
	meta := map[string]any{
		"name":       r.Name,
		"phone":      r.Phone,
		"start_at":   r.StartAt,
		"party_size": r.PartySize,
		"status":     r.Status,
	}
	for k, v := range extra {
		meta[k] = v
	}
	b, _ := json.Marshal(meta)
	return b
}

func reasonMetadata(reason string) []byte {
	b, _ := json.Marshal(map[string]string{"reason": reason})
	return b
}

func normalizeLimit(limit, offset int) (int, int) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
