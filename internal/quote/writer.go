package quote

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/noah-isme/tour-quote/internal/obs"
	"github.com/noah-isme/tour-quote/internal/store"
)

// ErrWriterClosed is returned by Submit once the writer has been closed.
var ErrWriterClosed = errors.New("quote: writer closed")

const (
	defaultSaveDelay   = 5 * time.Second
	defaultSaveTimeout = 30 * time.Second
)

// Committer prices and persists a prepared snapshot.
type Committer interface {
	Commit(ctx context.Context, proposalID string, prepared Prepared, mode string) (store.Record, error)
}

type pendingSave struct {
	seq      uint64
	prepared Prepared
	timer    *time.Timer
}

// Writer debounces quote saves per proposal. A newer submission replaces the
// pending one, and each save persists exactly the snapshot it was handed.
// Saves for one proposal never overlap: a save starts only after the previous
// one for that proposal has finished.
type Writer struct {
	Committer Committer
	Delay     time.Duration
	Timeout   time.Duration
	Logger    zerolog.Logger
	Meter     metric.Meter

	mu       sync.Mutex
	idle     *sync.Cond
	pending  map[string]*pendingSave
	inflight map[string]bool
	seq      uint64
	closed   bool
	running  sync.WaitGroup

	metricsOnce sync.Once
	superseded  metric.Int64Counter
}

// Submit schedules prepared to be saved for proposalID after the debounce delay.
func (w *Writer) Submit(proposalID string, prepared Prepared) error {
	proposalID = strings.TrimSpace(proposalID)
	if proposalID == "" {
		return ErrProposalRequired
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrWriterClosed
	}
	if w.pending == nil {
		w.pending = make(map[string]*pendingSave)
	}
	if prev, ok := w.pending[proposalID]; ok {
		prev.timer.Stop()
		w.countSuperseded()
	}
	w.seq++
	seq := w.seq
	w.pending[proposalID] = &pendingSave{
		seq:      seq,
		prepared: prepared,
		timer:    time.AfterFunc(w.delay(), func() { w.fire(proposalID, seq) }),
	}
	obs.SetPendingSaves(len(w.pending))
	return nil
}

// Discard drops the pending save for proposalID, if any. It waits for a save
// of proposalID that is already running, so the caller's next write lands after it.
func (w *Writer) Discard(proposalID string) bool {
	proposalID = strings.TrimSpace(proposalID)
	w.mu.Lock()
	defer w.mu.Unlock()
	w.waitIdleLocked(proposalID)
	p, ok := w.pending[proposalID]
	if !ok {
		return false
	}
	p.timer.Stop()
	delete(w.pending, proposalID)
	obs.SetPendingSaves(len(w.pending))
	return true
}

// Pending reports how many proposals have a save scheduled.
func (w *Writer) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.pending)
}

// Flush runs every pending save now and returns the joined errors.
func (w *Writer) Flush(ctx context.Context) error {
	w.mu.Lock()
	ids := make([]string, 0, len(w.pending))
	for id := range w.pending {
		ids = append(ids, id)
	}
	w.mu.Unlock()

	var errs []error
	for _, id := range ids {
		w.mu.Lock()
		p, ok := w.takeLocked(id, 0)
		w.mu.Unlock()
		if !ok {
			continue
		}
		_, err := w.Committer.Commit(ctx, id, p.prepared, ModeDebounced)
		w.release(id)
		if err != nil && !errors.Is(err, ErrSuperseded) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close stops accepting submissions, flushes pending saves and waits for
// in-flight saves to finish or ctx to expire.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.mu.Unlock()

	err := w.Flush(ctx)

	done := make(chan struct{})
	go func() {
		w.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return err
	case <-ctx.Done():
		return errors.Join(err, ctx.Err())
	}
}

func (w *Writer) fire(proposalID string, seq uint64) {
	w.running.Add(1)
	defer w.running.Done()

	w.mu.Lock()
	p, ok := w.takeLocked(proposalID, seq)
	w.mu.Unlock()
	if !ok {
		return
	}
	defer w.release(proposalID)

	ctx, cancel := context.WithTimeout(context.Background(), w.timeout())
	defer cancel()
	_, err := w.Committer.Commit(ctx, proposalID, p.prepared, ModeDebounced)
	if err != nil && !errors.Is(err, ErrSuperseded) {
		w.Logger.Warn().Err(err).Str("proposal_id", proposalID).Msg("debounced quote save dropped")
	}
}

// takeLocked waits until no save of proposalID is running, then claims its
// pending save if it is still the one scheduled as seq (0 accepts any).
// Callers hold w.mu.
func (w *Writer) takeLocked(proposalID string, seq uint64) (*pendingSave, bool) {
	w.waitIdleLocked(proposalID)
	p, ok := w.pending[proposalID]
	if !ok || (seq != 0 && p.seq != seq) {
		return nil, false
	}
	p.timer.Stop()
	delete(w.pending, proposalID)
	obs.SetPendingSaves(len(w.pending))
	if w.inflight == nil {
		w.inflight = make(map[string]bool)
	}
	w.inflight[proposalID] = true
	return p, true
}

func (w *Writer) release(proposalID string) {
	w.mu.Lock()
	delete(w.inflight, proposalID)
	w.idleCond().Broadcast()
	w.mu.Unlock()
}

func (w *Writer) waitIdleLocked(proposalID string) {
	for w.inflight[proposalID] {
		w.idleCond().Wait()
	}
}

func (w *Writer) idleCond() *sync.Cond {
	if w.idle == nil {
		w.idle = sync.NewCond(&w.mu)
	}
	return w.idle
}

func (w *Writer) countSuperseded() {
	w.metricsOnce.Do(func() {
		meter := w.Meter
		if meter == nil {
			meter = otel.Meter("quote.writer")
		}
		counter, err := meter.Int64Counter("quote.writer.superseded",
			metric.WithDescription("Pending quote saves replaced by a newer submission"))
		if err != nil {
			w.Logger.Warn().Err(err).Msg("superseded counter unavailable")
			return
		}
		w.superseded = counter
	})
	if w.superseded != nil {
		w.superseded.Add(context.Background(), 1, metric.WithAttributes(attribute.String("mode", ModeDebounced)))
	}
}

func (w *Writer) delay() time.Duration {
	if w.Delay <= 0 {
		return defaultSaveDelay
	}
	return w.Delay
}

func (w *Writer) timeout() time.Duration {
	if w.Timeout <= 0 {
		return defaultSaveTimeout
	}
	return w.Timeout
}
