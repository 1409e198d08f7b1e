package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/tour-quote/internal/pricing"
)

var (
	// ErrNotFound is returned when no quote is stored for a proposal.
	ErrNotFound = errors.New("store: quote not found")
	// ErrStale is returned by Upsert when the stored quote was priced from a
	// newer input snapshot than the one being written.
	ErrStale = errors.New("store: newer quote already stored")
)

// DBTX is the subset of pgx used by the repository. *pgxpool.Pool and pgx.Tx satisfy it.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Record is a persisted quote: the exact snapshot that was priced and the breakdown it produced.
type Record struct {
	ID              uuid.UUID         `json:"id"`
	ProposalID      string            `json:"proposalId"`
	Snapshot        pricing.Snapshot  `json:"snapshot"`
	Breakdown       pricing.Breakdown `json:"breakdown"`
	SettingsVersion string            `json:"settingsVersion"`
	Revision        int64             `json:"revision"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

// Quotes persists records in the proposal_quotes table.
type Quotes struct {
	DB  DBTX
	Now func() time.Time
}

const upsertQuoteSQL = `
INSERT INTO proposal_quotes (id, proposal_id, snapshot, breakdown, settings_version, final_price, currency, revision, input_at, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6::text::numeric, $7, 1, $9, $8, $8)
ON CONFLICT (proposal_id) DO UPDATE SET
    snapshot = EXCLUDED.snapshot,
    breakdown = EXCLUDED.breakdown,
    settings_version = EXCLUDED.settings_version,
    final_price = EXCLUDED.final_price,
    currency = EXCLUDED.currency,
    revision = proposal_quotes.revision + 1,
    input_at = EXCLUDED.input_at,
    updated_at = EXCLUDED.updated_at
WHERE proposal_quotes.input_at <= EXCLUDED.input_at
RETURNING id, revision, created_at, updated_at`

const getQuoteSQL = `
SELECT id, proposal_id, snapshot, breakdown, settings_version, revision, created_at, updated_at
FROM proposal_quotes
WHERE proposal_id = $1`

const deleteQuoteSQL = `DELETE FROM proposal_quotes WHERE proposal_id = $1`

// Upsert stores rec, replacing any quote already held for the proposal unless
// that quote was priced from a newer snapshot (rec.Snapshot.Now), in which case
// ErrStale is returned. The returned record carries the database id, revision
// and timestamps.
func (q *Quotes) Upsert(ctx context.Context, rec Record) (Record, error) {
	if q == nil || q.DB == nil {
		return Record{}, errors.New("store: database not configured")
	}
	proposalID := strings.TrimSpace(rec.ProposalID)
	if proposalID == "" {
		return Record{}, errors.New("store: proposal id is required")
	}
	snapshot, err := json.Marshal(rec.Snapshot)
	if err != nil {
		return Record{}, fmt.Errorf("store: encode snapshot: %w", err)
	}
	breakdown, err := json.Marshal(rec.Breakdown)
	if err != nil {
		return Record{}, fmt.Errorf("store: encode breakdown: %w", err)
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.ProposalID = proposalID

	row := q.DB.QueryRow(ctx, upsertQuoteSQL,
		rec.ID,
		proposalID,
		snapshot,
		breakdown,
		rec.SettingsVersion,
		rec.Breakdown.FinalPrice.StringFixed(2),
		rec.Breakdown.Currency,
		q.now(),
		rec.Snapshot.Now.UTC(),
	)
	if err := row.Scan(&rec.ID, &rec.Revision, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, fmt.Errorf("%w: %s", ErrStale, proposalID)
		}
		return Record{}, fmt.Errorf("store: upsert quote %s: %w", proposalID, err)
	}
	return rec, nil
}

// Get loads the quote stored for proposalID.
func (q *Quotes) Get(ctx context.Context, proposalID string) (Record, error) {
	if q == nil || q.DB == nil {
		return Record{}, errors.New("store: database not configured")
	}
	var (
		rec       Record
		snapshot  []byte
		breakdown []byte
	)
	row := q.DB.QueryRow(ctx, getQuoteSQL, strings.TrimSpace(proposalID))
	if err := row.Scan(&rec.ID, &rec.ProposalID, &snapshot, &breakdown, &rec.SettingsVersion, &rec.Revision, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("store: get quote %s: %w", proposalID, err)
	}
	if err := json.Unmarshal(snapshot, &rec.Snapshot); err != nil {
		return Record{}, fmt.Errorf("store: decode snapshot: %w", err)
	}
	if err := json.Unmarshal(breakdown, &rec.Breakdown); err != nil {
		return Record{}, fmt.Errorf("store: decode breakdown: %w", err)
	}
	return rec, nil
}

// Delete removes the quote stored for proposalID.
func (q *Quotes) Delete(ctx context.Context, proposalID string) error {
	if q == nil || q.DB == nil {
		return errors.New("store: database not configured")
	}
	tag, err := q.DB.Exec(ctx, deleteQuoteSQL, strings.TrimSpace(proposalID))
	if err != nil {
		return fmt.Errorf("store: delete quote %s: %w", proposalID, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *Quotes) now() time.Time {
	if q.Now != nil {
		return q.Now().UTC()
	}
	return time.Now().UTC()
}
