package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dragonsend/dispatch-engine/internal/domain"
)

type pgLedger struct {
	pool *pgxpool.Pool
}

// NewPgLedger returns a TrackingStore backed by PostgreSQL. The pool is owned
// by the caller; Close here is a no-op so one pool can serve several
// components.
func NewPgLedger(pool *pgxpool.Pool) TrackingStore {
	return &pgLedger{pool: pool}
}

func (l *pgLedger) AppendResult(ctx context.Context, res domain.DeliveryResult) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO delivery_results
			(recipient, success, detail, kind, tracking_id, provider, sent_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		res.Recipient, res.Success, res.Detail, string(res.Kind),
		nullIfEmpty(res.TrackingID), nullIfEmpty(res.Provider), res.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert delivery result: %w", err)
	}
	return nil
}

func (l *pgLedger) AppendTrackingEvent(ctx context.Context, trackingID, event string) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO tracking_events (tracking_id, event, observed_at)
		VALUES ($1,$2,NOW())`,
		trackingID, event,
	)
	if err != nil {
		return fmt.Errorf("insert tracking event: %w", err)
	}
	return nil
}

func (l *pgLedger) RecentResults(ctx context.Context, limit int) ([]domain.DeliveryResult, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := l.pool.Query(ctx, `
		SELECT recipient, success, detail, kind,
		       COALESCE(tracking_id, ''), COALESCE(provider, ''), sent_at
		FROM delivery_results
		ORDER BY sent_at DESC
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list delivery results: %w", err)
	}
	defer rows.Close()

	var results []domain.DeliveryResult
	for rows.Next() {
		var r domain.DeliveryResult
		var kind string
		if err := rows.Scan(&r.Recipient, &r.Success, &r.Detail, &kind,
			&r.TrackingID, &r.Provider, &r.Timestamp); err != nil {
			return nil, err
		}
		r.Kind = domain.FailKind(kind)
		results = append(results, r)
	}
	return results, rows.Err()
}

func (l *pgLedger) Close() error { return nil }

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
