package clickhouse

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/observability"
	"wallet-profiler/internal/storage"
)

// TradeLedger implements storage.TradeLedger using ClickHouse.
// wallet_trades is a ReplacingMergeTree keyed by (wallet, signature), so
// concurrent appends of the same trade collapse on merge and reads use FINAL.
type TradeLedger struct {
	conn *Conn
}

// NewTradeLedger creates a new TradeLedger.
func NewTradeLedger(conn *Conn) *TradeLedger {
	return &TradeLedger{conn: conn}
}

// Compile-time interface check.
var _ storage.TradeLedger = (*TradeLedger)(nil)

const tradeColumns = `
	signature, timestamp, slot, direction, token_mint, token_category,
	amount_raw, amount_usd, fee_paid, venue
`

// Append inserts trades whose signature is not yet stored for wallet.
func (l *TradeLedger) Append(ctx context.Context, wallet string, trades []domain.Trade) (added int, err error) {
	if wallet == "" {
		return 0, storage.ErrInvalidInput
	}
	if len(trades) == 0 {
		return 0, nil
	}
	defer observe("append", time.Now(), &err)

	seen := make(map[string]struct{}, len(trades))
	signatures := make([]string, 0, len(trades))
	for _, t := range trades {
		if t.Signature == "" {
			return 0, storage.ErrInvalidInput
		}
		if _, dup := seen[t.Signature]; dup {
			continue
		}
		seen[t.Signature] = struct{}{}
		signatures = append(signatures, t.Signature)
	}

	existing, err := l.existing(ctx, wallet, signatures)
	if err != nil {
		return 0, err
	}

	batch, err := l.conn.PrepareBatch(ctx, `INSERT INTO wallet_trades (wallet, `+tradeColumns+`)`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch: %w", err)
	}

	for _, t := range trades {
		if _, ok := existing[t.Signature]; ok {
			continue
		}
		if _, pending := seen[t.Signature]; !pending {
			continue
		}
		delete(seen, t.Signature)

		err = batch.Append(
			wallet, t.Signature, t.Timestamp, t.Slot, string(t.Direction), t.TokenMint,
			categoryString(t.TokenCategory), t.AmountRaw.String(), decimalString(t.AmountUSD),
			t.FeePaid.String(), t.Venue,
		)
		if err != nil {
			return 0, fmt.Errorf("append to batch: %w", err)
		}
		added++
	}

	if added == 0 {
		_ = batch.Abort()
		return 0, nil
	}
	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("send batch: %w", err)
	}
	return added, nil
}

// LatestSignature returns the newest stored signature for wallet.
func (l *TradeLedger) LatestSignature(ctx context.Context, wallet string) (sig string, err error) {
	defer observe("latest_signature", time.Now(), &err)

	query := `
		SELECT signature FROM wallet_trades FINAL
		WHERE wallet = ?
		ORDER BY timestamp DESC, slot DESC, signature DESC
		LIMIT 1
	`

	rows, err := l.conn.Query(ctx, query, wallet)
	if err != nil {
		return "", fmt.Errorf("query latest signature: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return "", fmt.Errorf("iterate latest signature: %w", err)
		}
		return "", storage.ErrNotFound
	}
	if err := rows.Scan(&sig); err != nil {
		return "", fmt.Errorf("scan latest signature: %w", err)
	}
	return sig, nil
}

// Recent returns up to limit newest trades for wallet, oldest first.
func (l *TradeLedger) Recent(ctx context.Context, wallet string, limit int) (out []domain.Trade, err error) {
	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}
	defer observe("recent", time.Now(), &err)

	query := `
		SELECT ` + tradeColumns + `
		FROM wallet_trades FINAL
		WHERE wallet = ?
		ORDER BY timestamp DESC, slot DESC, signature DESC
		LIMIT ?
	`

	rows, err := l.conn.Query(ctx, query, wallet, uint64(limit))
	if err != nil {
		return nil, fmt.Errorf("query recent trades: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			t         domain.Trade
			direction string
			category  *string
			amountRaw string
			amountUSD *string
			feePaid   string
		)
		if err := rows.Scan(
			&t.Signature, &t.Timestamp, &t.Slot, &direction, &t.TokenMint, &category,
			&amountRaw, &amountUSD, &feePaid, &t.Venue,
		); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}

		t.Wallet = wallet
		t.Direction = domain.Direction(direction)
		if category != nil {
			t.TokenCategory = domain.TokenCategory(*category).Ptr()
		}
		if t.AmountRaw, err = decimal.NewFromString(amountRaw); err != nil {
			return nil, fmt.Errorf("parse amount of %s: %w", t.Signature, err)
		}
		if t.FeePaid, err = decimal.NewFromString(feePaid); err != nil {
			return nil, fmt.Errorf("parse fee of %s: %w", t.Signature, err)
		}
		if amountUSD != nil {
			usd, err := decimal.NewFromString(*amountUSD)
			if err != nil {
				return nil, fmt.Errorf("parse usd amount of %s: %w", t.Signature, err)
			}
			t.AmountUSD = &usd
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent trades: %w", err)
	}

	slices.Reverse(out)
	return out, nil
}

// existing returns which of signatures are already stored for wallet.
func (l *TradeLedger) existing(ctx context.Context, wallet string, signatures []string) (map[string]struct{}, error) {
	rows, err := l.conn.Query(ctx, `
		SELECT DISTINCT signature FROM wallet_trades
		WHERE wallet = ? AND has(?, signature)
	`, wallet, signatures)
	if err != nil {
		return nil, fmt.Errorf("query existing signatures: %w", err)
	}
	defer rows.Close()

	found := make(map[string]struct{})
	for rows.Next() {
		var sig string
		if err := rows.Scan(&sig); err != nil {
			return nil, fmt.Errorf("scan signature: %w", err)
		}
		found[sig] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing signatures: %w", err)
	}
	return found, nil
}

func categoryString(c *domain.TokenCategory) *string {
	if c == nil {
		return nil
	}
	s := c.String()
	return &s
}

func decimalString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

// observe records query latency; ErrNotFound is not counted as an error.
func observe(op string, start time.Time, errp *error) {
	err := *errp
	if err == storage.ErrNotFound {
		err = nil
	}
	observability.RecordDBQuery("clickhouse", op, time.Since(start), err)
}
