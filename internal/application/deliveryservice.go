// Package application contains the delivery pipelines. Services depend only
// on the driven port interfaces; every collaborator is injected through the
// constructor so there is no process-wide store handle.
package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/model"
	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/port/driven"
)

// ErrEmptyNote indicates the incoming request carried a blank payload.
// Rejected before any queue mutation.
var ErrEmptyNote = errors.New("note content is empty")

// DeliveryFailedError reports a single-note delivery attempt that did not
// reach confirmed acceptance. The note remains queued for a later flush.
type DeliveryFailedError struct {
	NoteID  int64
	Outcome model.DeliveryOutcome
}

func (e *DeliveryFailedError) Error() string {
	return fmt.Sprintf("delivery of queued note %d failed: %s", e.NoteID, e.Outcome.Detail())
}

// DeliveryReport describes one confirmed single-note delivery.
type DeliveryReport struct {
	Vault      string
	Period     model.Period
	NoteID     int64
	StatusCode int
}

// FlushAttempt pairs one queued note with the outcome of its delivery
// attempt, so the report can attribute every result to its own id.
type FlushAttempt struct {
	Note    model.QueuedNote
	Outcome model.DeliveryOutcome
}

// AttemptFunc performs the delivery attempt for one queued note.
type AttemptFunc func(ctx context.Context, note model.QueuedNote) model.DeliveryOutcome

// FlushRunner drives the delivery attempts of a flush over a snapshot of
// queued notes. It must return one FlushAttempt per input note. The runner is
// a seam for substituting a bounded-concurrency variant without touching the
// orchestration around it.
type FlushRunner func(ctx context.Context, notes []model.QueuedNote, attempt AttemptFunc) []FlushAttempt

// SequentialFlushRunner attempts notes one at a time in listed order. This is
// the default: it keeps the accounting simple and bounds the downstream call
// rate at one in-flight request per flush.
func SequentialFlushRunner(ctx context.Context, notes []model.QueuedNote, attempt AttemptFunc) []FlushAttempt {
	attempts := make([]FlushAttempt, 0, len(notes))
	for _, note := range notes {
		attempts = append(attempts, FlushAttempt{Note: note, Outcome: attempt(ctx, note)})
	}
	return attempts
}

// FlushError describes one note that failed during a flush.
type FlushError struct {
	NoteID int64
	Detail string
}

// FlushReport aggregates the results of one flush invocation.
type FlushReport struct {
	Vault        string
	TotalNotes   int
	SuccessCount int
	FailureCount int
	// Errors is nil when every note was delivered.
	Errors []FlushError
}

// Success reports whether the flush completed with zero failures.
func (r *FlushReport) Success() bool {
	return r.FailureCount == 0
}

// DeliveryService orchestrates the single-note delivery pipeline and the
// batch retry (flush) pipeline. Durability comes from ordering alone: the
// note is written before the downstream call and deleted only after confirmed
// acceptance, so a crash anywhere in between leaves it recoverable via flush.
type DeliveryService struct {
	vaults    driven.VaultStore
	queue     driven.NoteQueue
	deliverer driven.NoteDeliverer
	runner    FlushRunner
	logger    *slog.Logger
}

// DeliveryServiceOption customizes a DeliveryService.
type DeliveryServiceOption func(*DeliveryService)

// WithFlushRunner replaces the default sequential flush strategy.
func WithFlushRunner(runner FlushRunner) DeliveryServiceOption {
	return func(s *DeliveryService) {
		s.runner = runner
	}
}

// NewDeliveryService creates a DeliveryService with the required dependencies.
func NewDeliveryService(
	vaults driven.VaultStore,
	queue driven.NoteQueue,
	deliverer driven.NoteDeliverer,
	logger *slog.Logger,
	opts ...DeliveryServiceOption,
) *DeliveryService {
	s := &DeliveryService{
		vaults:    vaults,
		queue:     queue,
		deliverer: deliverer,
		runner:    SequentialFlushRunner,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Deliver runs the single-note pipeline: resolve credential, validate
// payload, durably enqueue, attempt delivery, dequeue on confirmed success.
//
// A note for an unconfigured vault is never enqueued (it could never be
// delivered), so credential resolution happens first. On a failed attempt the
// note stays queued and a *DeliveryFailedError is returned. If the dequeue
// after a confirmed delivery fails, the success is still reported: the note
// will be re-delivered by a future flush, which is the accepted at-least-once
// tradeoff.
func (s *DeliveryService) Deliver(ctx context.Context, vault string, period model.Period, note string) (*DeliveryReport, error) {
	v, err := s.vaults.GetByName(ctx, vault)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(note) == "" {
		return nil, ErrEmptyNote
	}

	id, err := s.queue.Enqueue(ctx, vault, note)
	if err != nil {
		return nil, fmt.Errorf("enqueue note: %w", err)
	}

	outcome := s.deliverer.Deliver(ctx, v.APIKey, period, note)
	if !outcome.Delivered() {
		s.logger.Warn("note delivery failed, left queued",
			"vault", vault,
			"note_id", id,
			"status", outcome.Status,
			"detail", outcome.Detail(),
		)
		return nil, &DeliveryFailedError{NoteID: id, Outcome: outcome}
	}

	if err := s.queue.Dequeue(ctx, id); err != nil {
		// Delivered but still queued: a future flush re-delivers it.
		s.logger.Error("dequeue after confirmed delivery failed",
			"vault", vault,
			"note_id", id,
			"error", err,
		)
	}

	return &DeliveryReport{
		Vault:      vault,
		Period:     period,
		NoteID:     id,
		StatusCode: outcome.StatusCode,
	}, nil
}

// Flush retries every currently queued note for the vault, oldest first, and
// bulk-dequeues the successes after the whole batch has been attempted. One
// failing note never blocks the rest; failures are collected into the report.
//
// Every flushed note targets model.DefaultPeriod regardless of the period it
// was originally submitted under: the queue does not record the original
// period. Known limitation, kept deliberately.
func (s *DeliveryService) Flush(ctx context.Context, vault string) (*FlushReport, error) {
	v, err := s.vaults.GetByName(ctx, vault)
	if err != nil {
		return nil, err
	}

	notes, err := s.queue.ListPending(ctx, vault)
	if err != nil {
		return nil, fmt.Errorf("list pending notes: %w", err)
	}

	report := &FlushReport{Vault: vault, TotalNotes: len(notes)}
	if len(notes) == 0 {
		return report, nil
	}

	attempts := s.runner(ctx, notes, func(ctx context.Context, note model.QueuedNote) model.DeliveryOutcome {
		return s.deliverer.Deliver(ctx, v.APIKey, model.DefaultPeriod, note.Note)
	})

	var delivered []int64
	for _, a := range attempts {
		if a.Outcome.Delivered() {
			delivered = append(delivered, a.Note.ID)
			continue
		}
		report.Errors = append(report.Errors, FlushError{
			NoteID: a.Note.ID,
			Detail: a.Outcome.Detail(),
		})
	}
	report.SuccessCount = len(delivered)
	report.FailureCount = len(report.Errors)

	if err := s.queue.DequeueMany(ctx, delivered); err != nil {
		// Successes stay queued and will be re-delivered; surface the storage
		// failure rather than report a state the queue does not reflect.
		return nil, fmt.Errorf("dequeue delivered notes: %w", err)
	}

	s.logger.Info("flush complete",
		"vault", vault,
		"total", report.TotalNotes,
		"delivered", report.SuccessCount,
		"failed", report.FailureCount,
	)

	return report, nil
}
