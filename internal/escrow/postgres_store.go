package escrow

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore persists claims in a PostgreSQL table. The INSERT and UPDATE
// shapes make Create and MarkClaimed atomic read-modify-writes, so
// first-committed-wins holds even across service replicas sharing the
// database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

const createClaimsTableSQL = `
CREATE TABLE IF NOT EXISTS claims (
    claim_code_hash BYTEA PRIMARY KEY,
    amount NUMERIC(78, 0) NOT NULL CHECK (amount > 0),
    recipient BYTEA NOT NULL,
    claimed BOOLEAN NOT NULL DEFAULT FALSE,
    message TEXT NOT NULL DEFAULT '',
    sender BYTEA NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
    claimed_at TIMESTAMPTZ
);
`

// NewPostgresStore connects using the DSN and ensures the table exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	if _, err := pool.Exec(ctx, createClaimsTableSQL); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

// Pool exposes the connection pool so the audit log can share it.
func (p *PostgresStore) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *PostgresStore) Get(ctx context.Context, hash common.Hash) (ClaimRecord, error) {
	row := p.pool.QueryRow(ctx, `
SELECT amount::text, recipient, claimed, message, sender
FROM claims
WHERE claim_code_hash = $1
`, hash.Bytes())

	var (
		amountText      string
		recipient, sndr []byte
		claimed         bool
		message         string
	)
	if err := row.Scan(&amountText, &recipient, &claimed, &message, &sndr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ClaimRecord{}, nil
		}
		return ClaimRecord{}, err
	}

	amount, ok := new(big.Int).SetString(amountText, 10)
	if !ok {
		return ClaimRecord{}, fmt.Errorf("corrupt amount %q for claim %s", amountText, hash)
	}

	return ClaimRecord{
		Amount:    amount,
		Recipient: common.BytesToAddress(recipient),
		Claimed:   claimed,
		Message:   message,
		Sender:    common.BytesToAddress(sndr),
	}, nil
}

func (p *PostgresStore) Create(ctx context.Context, hash common.Hash, rec ClaimRecord) error {
	if !rec.Exists() {
		return ErrInvalidAmount
	}
	tag, err := p.pool.Exec(ctx, `
INSERT INTO claims (claim_code_hash, amount, recipient, claimed, message, sender)
VALUES ($1, $2::numeric, $3, FALSE, $4, $5)
ON CONFLICT (claim_code_hash) DO NOTHING
`, hash.Bytes(), rec.Amount.String(), rec.Recipient.Bytes(), rec.Message, rec.Sender.Bytes())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateClaim
	}
	return nil
}

func (p *PostgresStore) MarkClaimed(ctx context.Context, hash common.Hash) error {
	tag, err := p.pool.Exec(ctx, `
UPDATE claims
SET claimed = TRUE, claimed_at = now()
WHERE claim_code_hash = $1 AND NOT claimed
`, hash.Bytes())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	// Zero rows: distinguish a missing record from one already consumed.
	rec, err := p.Get(ctx, hash)
	if err != nil {
		return err
	}
	if !rec.Exists() {
		return ErrClaimNotFound
	}
	return ErrAlreadyClaimed
}
