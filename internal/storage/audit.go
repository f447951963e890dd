package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"tally/internal/core"
)

// AuditEntry is one ledger event as recorded by the audit worker.
type AuditEntry struct {
	ID         int64
	EventID    string
	EventType  string
	EntityID   int64
	CategoryID int64
	Month      string
	Amount     decimal.Decimal
	OccurredAt time.Time
	RecordedAt time.Time
}

// AppendAudit records an event. Redelivered events with a known EventID are
// ignored, so the call is idempotent; it reports whether a row was written.
func (s *Store) AppendAudit(ctx context.Context, e AuditEntry) (bool, error) {
	amount, err := core.CheckedCents("amount", e.Amount.Round(2))
	if err != nil {
		return false, fmt.Errorf("append audit %s: %w", e.EventID, err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_log (event_id, event_type, entity_id, category_id, month, amount_cents, occurred_at, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (event_id) DO NOTHING`,
		e.EventID, e.EventType, e.EntityID, e.CategoryID, e.Month, amount,
		e.OccurredAt.UTC().Format(time.RFC3339Nano), s.timestamp())
	if err != nil {
		return false, fmt.Errorf("append audit %s: %w", e.EventID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("append audit %s: %w", e.EventID, err)
	}
	return n > 0, nil
}

// ListAudit returns the most recent entries, newest first.
func (s *Store) ListAudit(ctx context.Context, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, event_id, event_type, entity_id, category_id, month, amount_cents, occurred_at, recorded_at
		 FROM audit_log ORDER BY occurred_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit: %w", err)
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var (
			e                  AuditEntry
			cents              int64
			occurred, recorded string
		)
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &e.EntityID, &e.CategoryID, &e.Month, &cents, &occurred, &recorded); err != nil {
			return nil, fmt.Errorf("scan audit: %w", err)
		}
		e.Amount = core.FromCents(cents)
		e.OccurredAt = parseTimestamp(occurred)
		e.RecordedAt = parseTimestamp(recorded)
		out = append(out, e)
	}
	return out, rows.Err()
}
