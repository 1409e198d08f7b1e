package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/tour-quote/internal/obs"
	"github.com/noah-isme/tour-quote/internal/pricing"
	"github.com/noah-isme/tour-quote/internal/settings"
	"github.com/noah-isme/tour-quote/internal/store"
)

// Save modes reported in metrics and logs.
const (
	ModeImmediate = "immediate"
	ModeDebounced = "debounced"
)

var (
	// ErrNotFound is returned when a proposal has no stored quote.
	ErrNotFound = errors.New("quote: not found")
	// ErrSuperseded is returned when a newer snapshot is already stored for the proposal.
	ErrSuperseded = errors.New("quote: superseded by a newer save")
	// ErrProposalRequired is returned when a write names no proposal.
	ErrProposalRequired = fmt.Errorf("%w: proposal id is required", pricing.ErrInvalidInput)
)

// SettingsProvider supplies the current pricing settings snapshot.
type SettingsProvider interface {
	Snapshot(ctx context.Context) (settings.Snapshot, error)
}

// Store persists priced quotes.
type Store interface {
	Upsert(ctx context.Context, rec store.Record) (store.Record, error)
	Get(ctx context.Context, proposalID string) (store.Record, error)
	Delete(ctx context.Context, proposalID string) error
}

// Locker serialises writes for one proposal across instances.
type Locker interface {
	WithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Prepared is a fully resolved snapshot ready to be priced, together with the
// settings version it was built from.
type Prepared struct {
	Snapshot        pricing.Snapshot
	SettingsVersion string
}

// Result is a priced but unsaved quote.
type Result struct {
	SettingsVersion string            `json:"settingsVersion"`
	Breakdown       pricing.Breakdown `json:"breakdown"`
}

// VerifyResult reports whether a stored quote is reproducible from its snapshot.
type VerifyResult struct {
	ProposalID   string            `json:"proposalId"`
	Revision     int64             `json:"revision"`
	Reproducible bool              `json:"reproducible"`
	Stored       pricing.Breakdown `json:"stored"`
	Recomputed   pricing.Breakdown `json:"recomputed"`
}

// Service prices proposals and persists their quotes.
type Service struct {
	Settings           SettingsProvider
	Store              Store
	Locker             Locker
	LockTTL            time.Duration
	DefaultServiceType string
	Logger             zerolog.Logger
	Now                func() time.Time
}

// Prepare resolves req against the current settings into an immutable snapshot.
func (s *Service) Prepare(ctx context.Context, req Request) (Prepared, error) {
	if s == nil || s.Settings == nil {
		return Prepared{}, fmt.Errorf("quote: settings provider not configured: %w", pricing.ErrConfiguration)
	}
	snap, err := s.Settings.Snapshot(ctx)
	if err != nil {
		return Prepared{}, err
	}
	cfg := snap.Settings
	opts := req.Options
	if strings.TrimSpace(opts.ServiceType) == "" {
		opts.ServiceType = s.DefaultServiceType
	}
	prepared := Prepared{
		SettingsVersion: snap.Version,
		Snapshot: pricing.Snapshot{
			LineItems: append([]pricing.LineItem(nil), req.LineItems...),
			Trip:      req.Trip,
			Pax:       req.Pax,
			Settings:  &cfg,
			Taxes:     pricing.TaxTable{Rules: append([]pricing.TaxRule(nil), snap.Taxes.Rules...)},
			Currency:  req.Currency,
			Options:   opts,
			Now:       s.now(),
		},
	}
	if err := pricing.Validate(prepared.Snapshot); err != nil {
		return Prepared{}, err
	}
	return prepared, nil
}

// Preview prices req without persisting anything.
func (s *Service) Preview(ctx context.Context, req Request) (Result, error) {
	prepared, err := s.Prepare(ctx, req)
	if err != nil {
		return Result{}, err
	}
	breakdown, err := s.compute(ctx, "preview", "", prepared.Snapshot)
	if err != nil {
		return Result{}, err
	}
	return Result{SettingsVersion: prepared.SettingsVersion, Breakdown: breakdown}, nil
}

// Save prices req and stores the quote for proposalID immediately.
func (s *Service) Save(ctx context.Context, proposalID string, req Request) (store.Record, error) {
	if strings.TrimSpace(proposalID) == "" {
		return store.Record{}, ErrProposalRequired
	}
	prepared, err := s.Prepare(ctx, req)
	if err != nil {
		return store.Record{}, err
	}
	return s.Commit(ctx, proposalID, prepared, ModeImmediate)
}

// Commit prices a prepared snapshot and upserts it under the proposal lock.
// A snapshot prepared before the one already stored is not written.
func (s *Service) Commit(ctx context.Context, proposalID string, prepared Prepared, mode string) (store.Record, error) {
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return store.Record{}, ErrProposalRequired
	}
	if s == nil || s.Store == nil {
		return store.Record{}, errors.New("quote: store not configured")
	}
	var saved store.Record
	write := func(ctx context.Context) error {
		breakdown, err := s.compute(ctx, "save", proposalID, prepared.Snapshot)
		if err != nil {
			return err
		}
		saved, err = s.Store.Upsert(ctx, store.Record{
			ProposalID:      proposalID,
			Snapshot:        prepared.Snapshot,
			Breakdown:       breakdown,
			SettingsVersion: prepared.SettingsVersion,
		})
		return err
	}

	var err error
	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, "proposal:"+proposalID, s.lockTTL(), write)
	} else {
		err = write(ctx)
	}
	if errors.Is(err, store.ErrStale) {
		obs.ObserveQuoteSave(mode, "stale")
		s.Logger.Info().Str("proposal_id", proposalID).Str("mode", mode).Msg("older quote snapshot not saved")
		return store.Record{}, fmt.Errorf("%w: %s", ErrSuperseded, proposalID)
	}
	if err != nil {
		obs.ObserveQuoteSave(mode, "error")
		s.Logger.Error().Err(err).Str("proposal_id", proposalID).Str("mode", mode).Msg("quote save failed")
		return store.Record{}, err
	}
	obs.ObserveQuoteSave(mode, "ok")
	s.Logger.Info().
		Str("proposal_id", proposalID).
		Str("mode", mode).
		Int64("revision", saved.Revision).
		Str("final_price", saved.Breakdown.FinalPrice.StringFixed(2)).
		Str("currency", saved.Breakdown.Currency).
		Msg("quote saved")
	return saved, nil
}

// Get returns the stored quote for proposalID.
func (s *Service) Get(ctx context.Context, proposalID string) (store.Record, error) {
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return store.Record{}, ErrProposalRequired
	}
	if s == nil || s.Store == nil {
		return store.Record{}, errors.New("quote: store not configured")
	}
	rec, err := s.Store.Get(ctx, proposalID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Record{}, fmt.Errorf("%w: %s", ErrNotFound, proposalID)
		}
		return store.Record{}, err
	}
	return rec, nil
}

// Delete removes the stored quote for proposalID under the proposal lock.
func (s *Service) Delete(ctx context.Context, proposalID string) error {
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return ErrProposalRequired
	}
	if s == nil || s.Store == nil {
		return errors.New("quote: store not configured")
	}
	remove := func(ctx context.Context) error {
		return s.Store.Delete(ctx, proposalID)
	}
	var err error
	if s.Locker != nil {
		err = s.Locker.WithLock(ctx, "proposal:"+proposalID, s.lockTTL(), remove)
	} else {
		err = remove(ctx)
	}
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, proposalID)
	}
	if err != nil {
		return err
	}
	s.Logger.Info().Str("proposal_id", proposalID).Msg("quote deleted")
	return nil
}

// Verify re-prices the stored snapshot and compares it with the stored breakdown.
func (s *Service) Verify(ctx context.Context, proposalID string) (VerifyResult, error) {
	rec, err := s.Get(ctx, proposalID)
	if err != nil {
		return VerifyResult{}, err
	}
	recomputed, err := s.compute(ctx, "verify", rec.ProposalID, rec.Snapshot)
	if err != nil {
		return VerifyResult{}, err
	}
	result := VerifyResult{
		ProposalID:   rec.ProposalID,
		Revision:     rec.Revision,
		Reproducible: recomputed.Equal(rec.Breakdown),
		Stored:       rec.Breakdown,
		Recomputed:   recomputed,
	}
	if !result.Reproducible {
		s.Logger.Warn().
			Str("proposal_id", rec.ProposalID).
			Int64("revision", rec.Revision).
			Str("stored_final", rec.Breakdown.FinalPrice.String()).
			Str("recomputed_final", recomputed.FinalPrice.String()).
			Msg("stored quote is not reproducible")
	}
	return result, nil
}

func (s *Service) compute(ctx context.Context, operation, proposalID string, snap pricing.Snapshot) (pricing.Breakdown, error) {
	_, span := otel.Tracer("quote.service").Start(ctx, "quote."+operation, trace.WithAttributes(
		attribute.String("quote.operation", operation),
		attribute.Int("quote.line_items", len(snap.LineItems)),
	))
	defer span.End()
	if proposalID != "" {
		span.SetAttributes(attribute.String("quote.proposal_id", proposalID))
	}

	start := time.Now()
	breakdown, err := pricing.Aggregate(snap)
	elapsed := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		obs.ObserveQuoteComputation(operation, "error", elapsed, nil)
		return pricing.Breakdown{}, err
	}

	warnCodes := make([]string, 0, len(breakdown.Warnings))
	for _, w := range breakdown.Warnings {
		warnCodes = append(warnCodes, w.Code)
		s.Logger.Warn().
			Str("operation", operation).
			Str("proposal_id", proposalID).
			Str("code", w.Code).
			Msg(w.Message)
	}
	obs.ObserveQuoteComputation(operation, "ok", elapsed, warnCodes)
	span.SetAttributes(
		attribute.String("quote.final_price", breakdown.FinalPrice.StringFixed(2)),
		attribute.String("quote.currency", breakdown.Currency),
		attribute.Int("quote.warnings", len(breakdown.Warnings)),
	)
	return breakdown, nil
}

func (s *Service) lockTTL() time.Duration {
	if s.LockTTL <= 0 {
		return 10 * time.Second
	}
	return s.LockTTL
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
