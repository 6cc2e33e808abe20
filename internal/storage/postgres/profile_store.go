package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"wallet-profiler/internal/domain"
	"wallet-profiler/internal/observability"
	"wallet-profiler/internal/storage"
)

// ProfileStore implements storage.ProfileStore using PostgreSQL.
// History lives in wallet_profiles; wallet_profile_latest points at the
// current profile per wallet.
type ProfileStore struct {
	pool *Pool
}

// NewProfileStore creates a new ProfileStore.
func NewProfileStore(pool *Pool) *ProfileStore {
	return &ProfileStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ProfileStore = (*ProfileStore)(nil)

const profileColumns = `
	p.run_id, p.wallet_address, p.computed_at, p.archetype,
	p.trade_count, p.confidence, p.model_version, p.scores, p.analytics
`

// Get returns the latest profile for wallet. Returns ErrNotFound if none.
func (s *ProfileStore) Get(ctx context.Context, wallet string) (p *domain.WalletProfile, err error) {
	defer observe("get", time.Now(), &err)

	query := `
		SELECT ` + profileColumns + `
		FROM wallet_profile_latest l
		JOIN wallet_profiles p ON p.run_id = l.run_id
		WHERE l.wallet_address = $1
	`

	p, err = scanProfile(s.pool.QueryRow(ctx, query, wallet))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Upsert appends p to history and moves the latest pointer to it, unless
// the pointer already references a newer computation.
// Returns ErrDuplicateKey if p.RunID exists.
func (s *ProfileStore) Upsert(ctx context.Context, p *domain.WalletProfile) (err error) {
	defer observe("upsert", time.Now(), &err)

	if p == nil || p.WalletAddress == "" || p.RunID == "" {
		return storage.ErrInvalidInput
	}

	scores, err := json.Marshal(p.Scores)
	if err != nil {
		return fmt.Errorf("marshal scores: %w", err)
	}
	analytics, err := json.Marshal(p.Analytics)
	if err != nil {
		return fmt.Errorf("marshal analytics: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_profiles (
			run_id, wallet_address, computed_at, archetype,
			trade_count, confidence, model_version, scores, analytics
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		p.RunID, p.WalletAddress, p.ComputedAt.UTC(), string(p.Archetype),
		p.TradeCount, p.Confidence, p.ModelVersion, scores, analytics,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert profile: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO wallet_profile_latest (wallet_address, run_id, computed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (wallet_address) DO UPDATE
		SET run_id = EXCLUDED.run_id,
		    computed_at = EXCLUDED.computed_at,
		    updated_at = now()
		WHERE wallet_profile_latest.computed_at <= EXCLUDED.computed_at
	`, p.WalletAddress, p.RunID, p.ComputedAt.UTC())
	if err != nil {
		return fmt.Errorf("update latest profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Invalidate removes the latest pointer for wallet. History is kept.
func (s *ProfileStore) Invalidate(ctx context.Context, wallet string) (err error) {
	defer observe("invalidate", time.Now(), &err)

	if _, err := s.pool.Exec(ctx, `DELETE FROM wallet_profile_latest WHERE wallet_address = $1`, wallet); err != nil {
		return fmt.Errorf("invalidate profile: %w", err)
	}
	return nil
}

// History returns up to limit profiles for wallet, newest first.
func (s *ProfileStore) History(ctx context.Context, wallet string, limit int) (out []*domain.WalletProfile, err error) {
	defer observe("history", time.Now(), &err)

	if limit <= 0 {
		return nil, storage.ErrInvalidInput
	}

	query := `
		SELECT ` + profileColumns + `
		FROM wallet_profiles p
		WHERE p.wallet_address = $1
		ORDER BY p.computed_at DESC, p.created_at DESC
		LIMIT $2
	`

	rows, err := s.pool.Query(ctx, query, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("query profile history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profile history: %w", err)
	}
	return out, nil
}

func scanProfile(row pgx.Row) (*domain.WalletProfile, error) {
	var (
		p         domain.WalletProfile
		archetype string
		scores    []byte
		analytics []byte
	)
	err := row.Scan(
		&p.RunID, &p.WalletAddress, &p.ComputedAt, &archetype,
		&p.TradeCount, &p.Confidence, &p.ModelVersion, &scores, &analytics,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(scores, &p.Scores); err != nil {
		return nil, fmt.Errorf("decode scores: %w", err)
	}
	if err := json.Unmarshal(analytics, &p.Analytics); err != nil {
		return nil, fmt.Errorf("decode analytics: %w", err)
	}
	p.Archetype = domain.Archetype(archetype)
	p.ComputedAt = p.ComputedAt.UTC()
	p.SourceTier = domain.TierDurable
	return &p, nil
}

// observe records query latency; ErrNotFound is not counted as an error.
func observe(op string, start time.Time, errp *error) {
	err := *errp
	if err == storage.ErrNotFound {
		err = nil
	}
	observability.RecordDBQuery("postgres", op, time.Since(start), err)
}
