package services

import (
	"context"
	"log"
	"sync"
	"time"
)

// Retry phases for one polling sequence.
const (
	RetryPhaseIdle      = "idle"
	RetryPhaseFetching  = "fetching"
	RetryPhaseSuccess   = "success"
	RetryPhaseExhausted = "exhausted"
)

const (
	// The bureau's processing window is roughly bounded and known, so
	// the delay is deliberately fixed rather than exponential.
	maxFetchAttempts = 5
	fetchRetryDelay  = 5000 * time.Millisecond
)

// ReportFetcher retrieves the report for a transaction, or fails. The
// retrier does not distinguish failure causes.
type ReportFetcher func(ctx context.Context, transactionID string) (*BureauReport, error)

// ReportSink persists a successfully fetched report.
type ReportSink func(ctx context.Context, report *BureauReport) error

// RetryState is a snapshot of one polling sequence.
type RetryState struct {
	TransactionID string `json:"transaction_id"`
	Phase         string `json:"phase"`
	Attempts      int    `json:"attempts"`
	LastOutcome   string `json:"last_outcome,omitempty"`
}

// ReportRetrier polls the bureau for an asynchronously generated report
// with a bounded number of fixed-interval attempts. A sequence for a
// given transaction ID runs at most once per process lifetime: repeated
// launches return the existing sequence's state.
type ReportRetrier struct {
	fetch       ReportFetcher
	store       ReportSink
	onExhausted func(ctx context.Context, transactionID string)
	sleep       func(ctx context.Context, d time.Duration) error

	mu        sync.Mutex
	sequences map[string]*RetryState
}

// NewReportRetrier constructs a ReportRetrier. onExhausted may be nil.
func NewReportRetrier(fetch ReportFetcher, store ReportSink, onExhausted func(ctx context.Context, transactionID string)) *ReportRetrier {
	return &ReportRetrier{
		fetch:       fetch,
		store:       store,
		onExhausted: onExhausted,
		sleep:       sleepContext,
		sequences:   make(map[string]*RetryState),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Launch starts the polling sequence for transactionID in the
// background and returns immediately. If a sequence for the same ID was
// already launched, no new sequence starts and the existing state is
// returned with started=false.
func (r *ReportRetrier) Launch(ctx context.Context, transactionID string) (RetryState, bool) {
	r.mu.Lock()
	if existing, ok := r.sequences[transactionID]; ok {
		state := *existing
		r.mu.Unlock()
		return state, false
	}

	state := &RetryState{TransactionID: transactionID, Phase: RetryPhaseFetching}
	r.sequences[transactionID] = state
	r.mu.Unlock()

	go r.run(ctx, transactionID)

	return RetryState{TransactionID: transactionID, Phase: RetryPhaseFetching}, true
}

// State returns a snapshot of the sequence for transactionID.
func (r *ReportRetrier) State(transactionID string) (RetryState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if state, ok := r.sequences[transactionID]; ok {
		return *state, true
	}
	return RetryState{TransactionID: transactionID, Phase: RetryPhaseIdle}, false
}

// run executes the bounded polling loop. The first non-empty report
// wins and stops the loop even with attempt budget remaining; failures
// are counted, never classified. The fixed delay is applied between
// attempts only, never after the last one.
func (r *ReportRetrier) run(ctx context.Context, transactionID string) {
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		report, err := r.fetch(ctx, transactionID)
		if err == nil {
			err = r.store(ctx, report)
			if err == nil {
				r.record(transactionID, attempt, RetryPhaseSuccess, "")
				return
			}
		}

		r.record(transactionID, attempt, RetryPhaseFetching, err.Error())
		log.Printf("[Retrier] attempt %d/%d for transaction %s failed: %v", attempt, maxFetchAttempts, transactionID, err)

		if ctx.Err() != nil {
			// Abandoned mid-sequence; the one-shot guard keeps the
			// sequence from restarting within this process.
			return
		}

		if attempt < maxFetchAttempts {
			if err := r.sleep(ctx, fetchRetryDelay); err != nil {
				return
			}
		}
	}

	r.record(transactionID, maxFetchAttempts, RetryPhaseExhausted, "report not available after final attempt")
	if r.onExhausted != nil {
		r.onExhausted(ctx, transactionID)
	}
}

func (r *ReportRetrier) record(transactionID string, attempts int, phase, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, ok := r.sequences[transactionID]
	if !ok {
		return
	}
	state.Attempts = attempts
	state.Phase = phase
	if outcome != "" {
		state.LastOutcome = outcome
	}
}
