package store

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS canceled_sales (
    sale_id     TEXT PRIMARY KEY,
    canceled_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS consumed_signatures (
    sig_key     TEXT PRIMARY KEY,
    consumed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS settlements (
    sale_id          TEXT PRIMARY KEY,
    trade_type       TEXT NOT NULL,
    buyer            TEXT NOT NULL,
    seller           TEXT NOT NULL,
    payment_receiver TEXT NOT NULL,
    nft_contract     TEXT NOT NULL,
    token_id         TEXT NOT NULL,
    payment_token    TEXT NOT NULL,
    amount           TEXT NOT NULL,
    price            TEXT NOT NULL,
    fee              TEXT NOT NULL,
    payout           TEXT NOT NULL,
    settled_at       TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS settlements_settled_at_idx ON settlements (settled_at DESC);
`

// Postgres is the shared durable Ledger for multi-node deployments. Primary
// key conflicts carry the compare-and-set semantics, so concurrent writers
// race safely without advisory locks.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps an existing pool and ensures the ledger schema exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("ensure ledger schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// OpenPostgres connects to the given DSN and ensures the ledger schema.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect ledger database: %w", err)
	}
	pg, err := NewPostgres(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return pg, nil
}

func (p *Postgres) CancelSale(ctx context.Context, saleID string) error {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO canceled_sales (sale_id) VALUES ($1) ON CONFLICT (sale_id) DO NOTHING`,
		saleID,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrAlreadyCanceled
	}
	return nil
}

func (p *Postgres) IsSaleCanceled(ctx context.Context, saleID string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM canceled_sales WHERE sale_id = $1)`,
		saleID,
	).Scan(&exists)
	return exists, err
}

func (p *Postgres) ConsumeSignature(ctx context.Context, key common.Hash) error {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO consumed_signatures (sig_key) VALUES ($1) ON CONFLICT (sig_key) DO NOTHING`,
		key.Hex(),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrSignatureConsumed
	}
	return nil
}

func (p *Postgres) IsSignatureConsumed(ctx context.Context, key common.Hash) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM consumed_signatures WHERE sig_key = $1)`,
		key.Hex(),
	).Scan(&exists)
	return exists, err
}

func (p *Postgres) RecordSettlement(ctx context.Context, rec *Settlement, sigKeys ...common.Hash) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin settlement transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx,
		`INSERT INTO settlements
		     (sale_id, trade_type, buyer, seller, payment_receiver, nft_contract,
		      token_id, payment_token, amount, price, fee, payout, settled_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (sale_id) DO NOTHING`,
		rec.SaleID, rec.TradeType,
		rec.Buyer.Hex(), rec.Seller.Hex(), rec.PaymentReceiver.Hex(), rec.NFTContract.Hex(),
		bigText(rec.TokenID), rec.PaymentToken.Hex(),
		bigText(rec.Amount), bigText(rec.Price), bigText(rec.Fee), bigText(rec.Payout),
		rec.SettledAt,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrDuplicateSale
	}

	for _, sig := range sigKeys {
		tag, err := tx.Exec(ctx,
			`INSERT INTO consumed_signatures (sig_key) VALUES ($1) ON CONFLICT (sig_key) DO NOTHING`,
			sig.Hex(),
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return ErrSignatureConsumed
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit settlement transaction: %w", err)
	}
	return nil
}

func (p *Postgres) GetSettlement(ctx context.Context, saleID string) (*Settlement, error) {
	row := p.pool.QueryRow(ctx,
		`SELECT sale_id, trade_type, buyer, seller, payment_receiver, nft_contract,
		        token_id, payment_token, amount, price, fee, payout, settled_at
		 FROM settlements WHERE sale_id = $1`,
		saleID,
	)
	rec, err := scanSettlement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

func (p *Postgres) ListSettlements(ctx context.Context, limit, offset int) ([]*Settlement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := p.pool.Query(ctx,
		`SELECT sale_id, trade_type, buyer, seller, payment_receiver, nft_contract,
		        token_id, payment_token, amount, price, fee, payout, settled_at
		 FROM settlements ORDER BY settled_at DESC, sale_id DESC
		 LIMIT $1 OFFSET $2`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Settlement
	for rows.Next() {
		rec, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func scanSettlement(row pgx.Row) (*Settlement, error) {
	var rec Settlement
	var buyer, seller, receiver, contract, payToken string
	var tokenID, amount, price, fee, payout string
	var settledAt time.Time
	err := row.Scan(&rec.SaleID, &rec.TradeType, &buyer, &seller, &receiver, &contract,
		&tokenID, &payToken, &amount, &price, &fee, &payout, &settledAt)
	if err != nil {
		return nil, err
	}
	rec.Buyer = common.HexToAddress(buyer)
	rec.Seller = common.HexToAddress(seller)
	rec.PaymentReceiver = common.HexToAddress(receiver)
	rec.NFTContract = common.HexToAddress(contract)
	rec.PaymentToken = common.HexToAddress(payToken)
	rec.SettledAt = settledAt
	if rec.TokenID, err = bigFromText(tokenID); err != nil {
		return nil, err
	}
	if rec.Amount, err = bigFromText(amount); err != nil {
		return nil, err
	}
	if rec.Price, err = bigFromText(price); err != nil {
		return nil, err
	}
	if rec.Fee, err = bigFromText(fee); err != nil {
		return nil, err
	}
	if rec.Payout, err = bigFromText(payout); err != nil {
		return nil, err
	}
	return &rec, nil
}

func bigText(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func bigFromText(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("malformed numeric column value %q", s)
	}
	return v, nil
}
