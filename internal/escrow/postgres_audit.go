package escrow

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PostgresAuditLog appends protocol events to a claim_events table, the
// durable substitute for on-chain event logs. Inserts are keyed by event ID
// so redelivery is idempotent.
type PostgresAuditLog struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

const createEventsTableSQL = `
CREATE TABLE IF NOT EXISTS claim_events (
    event_id UUID PRIMARY KEY,
    event_type TEXT NOT NULL,
    claim_code_hash BYTEA NOT NULL,
    amount NUMERIC(78, 0) NOT NULL,
    recipient BYTEA NOT NULL,
    sender BYTEA NOT NULL,
    emitted_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS claim_events_hash_idx ON claim_events (claim_code_hash);
`

func NewPostgresAuditLog(ctx context.Context, pool *pgxpool.Pool, log zerolog.Logger) (*PostgresAuditLog, error) {
	if _, err := pool.Exec(ctx, createEventsTableSQL); err != nil {
		return nil, err
	}
	return &PostgresAuditLog{pool: pool, log: log}, nil
}

func (a *PostgresAuditLog) Emit(ctx context.Context, ev Event) {
	_, err := a.pool.Exec(ctx, `
INSERT INTO claim_events (event_id, event_type, claim_code_hash, amount, recipient, sender, emitted_at)
VALUES ($1, $2, $3, $4::numeric, $5, $6, $7)
ON CONFLICT (event_id) DO NOTHING
`, ev.EventID, ev.Type, ev.ClaimCodeHash.Bytes(), ev.Amount.String(), ev.Recipient.Bytes(), ev.Sender.Bytes(), ev.EmittedAt)
	if err != nil {
		a.log.Error().Err(err).Str("eventId", ev.EventID).Msg("append claim event")
	}
}
