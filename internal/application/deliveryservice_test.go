package application_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pj-lytezen/obsidian-api-webhook/internal/application"
	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/model"
	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/port/driven"
)

// --- Mock implementations ---

type mockVaultStore struct {
	vaults map[string]string // name -> api key
	err    error
}

func (m *mockVaultStore) GetByName(_ context.Context, name string) (*model.Vault, error) {
	if m.err != nil {
		return nil, m.err
	}
	key, ok := m.vaults[name]
	if !ok {
		return nil, fmt.Errorf("get vault %q: %w", name, driven.ErrVaultNotFound)
	}
	return &model.Vault{Name: name, APIKey: key}, nil
}

func (m *mockVaultStore) Set(_ context.Context, _, _ string) error      { return nil }
func (m *mockVaultStore) Delete(_ context.Context, _ string) error      { return nil }
func (m *mockVaultStore) ListNames(_ context.Context) ([]string, error) { return nil, nil }

// mockQueue is an in-memory NoteQueue preserving insertion order, safe for
// concurrent use.
type mockQueue struct {
	mu         sync.Mutex
	nextID     int64
	notes      []model.QueuedNote
	enqueueErr error
	dequeueErr error
	listErr    error
	bulkErr    error
}

func (m *mockQueue) Enqueue(_ context.Context, vault, note string) (int64, error) {
	if m.enqueueErr != nil {
		return 0, m.enqueueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.notes = append(m.notes, model.QueuedNote{
		ID:        m.nextID,
		Vault:     vault,
		Note:      note,
		CreatedAt: time.Now().UTC(),
	})
	return m.nextID, nil
}

func (m *mockQueue) Dequeue(_ context.Context, id int64) error {
	if m.dequeueErr != nil {
		return m.dequeueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeLocked(id)
	return nil
}

func (m *mockQueue) DequeueMany(_ context.Context, ids []int64) error {
	if m.bulkErr != nil {
		return m.bulkErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		m.removeLocked(id)
	}
	return nil
}

func (m *mockQueue) ListPending(_ context.Context, vault string) ([]model.QueuedNote, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.QueuedNote
	for _, n := range m.notes {
		if n.Vault == vault {
			out = append(out, n)
		}
	}
	return out, nil
}

func (m *mockQueue) Get(_ context.Context, id int64) (*model.QueuedNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, n := range m.notes {
		if n.ID == id {
			return &n, nil
		}
	}
	return nil, driven.ErrNoteNotFound
}

func (m *mockQueue) removeLocked(id int64) {
	for i, n := range m.notes {
		if n.ID == id {
			m.notes = append(m.notes[:i], m.notes[i+1:]...)
			return
		}
	}
}

func (m *mockQueue) pendingIDs(vault string) []int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []int64
	for _, n := range m.notes {
		if n.Vault == vault {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// mockDeliverer records every attempt and answers from outcomeFor, defaulting
// to delivered.
type mockDeliverer struct {
	mu         sync.Mutex
	calls      []deliverCall
	outcomeFor func(note string) model.DeliveryOutcome
}

type deliverCall struct {
	apiKey string
	period model.Period
	note   string
}

func (m *mockDeliverer) Deliver(_ context.Context, apiKey string, period model.Period, note string) model.DeliveryOutcome {
	m.mu.Lock()
	m.calls = append(m.calls, deliverCall{apiKey: apiKey, period: period, note: note})
	m.mu.Unlock()

	if m.outcomeFor != nil {
		return m.outcomeFor(note)
	}
	return model.DeliveryOutcome{Status: model.DeliveryDelivered, StatusCode: 200}
}

func (m *mockDeliverer) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func delivered() model.DeliveryOutcome {
	return model.DeliveryOutcome{Status: model.DeliveryDelivered, StatusCode: 200}
}

func rejected(status int) model.DeliveryOutcome {
	return model.DeliveryOutcome{Status: model.DeliveryRejected, StatusCode: status, Body: "nope"}
}

func transportFailed() model.DeliveryOutcome {
	return model.DeliveryOutcome{Status: model.DeliveryTransportFailure, Reason: "connection refused"}
}

func newService(vaults *mockVaultStore, queue *mockQueue, deliverer *mockDeliverer, opts ...application.DeliveryServiceOption) *application.DeliveryService {
	return application.NewDeliveryService(vaults, queue, deliverer, slog.New(slog.DiscardHandler), opts...)
}

func singleVault() *mockVaultStore {
	return &mockVaultStore{vaults: map[string]string{"personal": "secret-key"}}
}

// --- Single-note pipeline ---

func TestDeliver_SuccessDequeues(t *testing.T) {
	queue := &mockQueue{}
	deliverer := &mockDeliverer{}
	svc := newService(singleVault(), queue, deliverer)

	report, err := svc.Deliver(context.Background(), "personal", model.PeriodDaily, "# today")
	require.NoError(t, err)

	assert.Equal(t, "personal", report.Vault)
	assert.Equal(t, model.PeriodDaily, report.Period)
	assert.Equal(t, 200, report.StatusCode)
	assert.Empty(t, queue.pendingIDs("personal"), "confirmed delivery must remove the note")

	require.Equal(t, 1, deliverer.callCount())
	assert.Equal(t, "secret-key", deliverer.calls[0].apiKey)
	assert.Equal(t, model.PeriodDaily, deliverer.calls[0].period)
}

func TestDeliver_UnknownVault_NoSideEffects(t *testing.T) {
	queue := &mockQueue{}
	deliverer := &mockDeliverer{}
	svc := newService(singleVault(), queue, deliverer)

	_, err := svc.Deliver(context.Background(), "ghost", model.PeriodDaily, "# note")

	assert.ErrorIs(t, err, driven.ErrVaultNotFound)
	assert.Empty(t, queue.pendingIDs("ghost"), "unknown vault must cause zero queue mutations")
	assert.Zero(t, deliverer.callCount(), "unknown vault must cause zero downstream calls")
}

func TestDeliver_EmptyNote_NoSideEffects(t *testing.T) {
	queue := &mockQueue{}
	deliverer := &mockDeliverer{}
	svc := newService(singleVault(), queue, deliverer)

	_, err := svc.Deliver(context.Background(), "personal", model.PeriodDaily, "   \n\t ")

	assert.ErrorIs(t, err, application.ErrEmptyNote)
	assert.Empty(t, queue.pendingIDs("personal"))
	assert.Zero(t, deliverer.callCount())
}

func TestDeliver_RejectedLeavesNoteQueued(t *testing.T) {
	queue := &mockQueue{}
	deliverer := &mockDeliverer{outcomeFor: func(string) model.DeliveryOutcome { return rejected(401) }}
	svc := newService(singleVault(), queue, deliverer)

	_, err := svc.Deliver(context.Background(), "personal", model.PeriodDaily, "# note")

	var dfe *application.DeliveryFailedError
	require.ErrorAs(t, err, &dfe)
	assert.Equal(t, model.DeliveryRejected, dfe.Outcome.Status)
	assert.Equal(t, 401, dfe.Outcome.StatusCode)

	ids := queue.pendingIDs("personal")
	require.Len(t, ids, 1, "rejected delivery must leave the note queued")
	assert.Equal(t, dfe.NoteID, ids[0])
}

func TestDeliver_TransportFailureLeavesNoteQueued(t *testing.T) {
	queue := &mockQueue{}
	deliverer := &mockDeliverer{outcomeFor: func(string) model.DeliveryOutcome { return transportFailed() }}
	svc := newService(singleVault(), queue, deliverer)

	_, err := svc.Deliver(context.Background(), "personal", model.PeriodWeekly, "# note")

	var dfe *application.DeliveryFailedError
	require.ErrorAs(t, err, &dfe)
	assert.Equal(t, model.DeliveryTransportFailure, dfe.Outcome.Status)
	assert.Len(t, queue.pendingIDs("personal"), 1)
}

func TestDeliver_EnqueueFailureSurfaces(t *testing.T) {
	queue := &mockQueue{enqueueErr: errors.New("disk full")}
	deliverer := &mockDeliverer{}
	svc := newService(singleVault(), queue, deliverer)

	_, err := svc.Deliver(context.Background(), "personal", model.PeriodDaily, "# note")

	require.Error(t, err)
	assert.Zero(t, deliverer.callCount(), "no downstream call without the durability checkpoint")
}

func TestDeliver_DequeueFailureStillReportsSuccess(t *testing.T) {
	queue := &mockQueue{dequeueErr: errors.New("storage hiccup")}
	deliverer := &mockDeliverer{}
	svc := newService(singleVault(), queue, deliverer)

	report, err := svc.Deliver(context.Background(), "personal", model.PeriodDaily, "# note")

	// At-least-once: the delivery happened, the lingering row is flushed later.
	require.NoError(t, err)
	assert.Equal(t, 200, report.StatusCode)
	assert.Len(t, queue.pendingIDs("personal"), 1)
}

// Durability before delivery: a note that failed downstream is recoverable by
// a later flush, which delivers it.
func TestDeliver_FailedNoteRecoveredByFlush(t *testing.T) {
	queue := &mockQueue{}
	failing := true
	deliverer := &mockDeliverer{outcomeFor: func(string) model.DeliveryOutcome {
		if failing {
			return transportFailed()
		}
		return delivered()
	}}
	svc := newService(singleVault(), queue, deliverer)

	_, err := svc.Deliver(context.Background(), "personal", model.PeriodDaily, "# stranded")
	require.Error(t, err)
	require.Len(t, queue.pendingIDs("personal"), 1)

	failing = false
	report, err := svc.Flush(context.Background(), "personal")
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalNotes)
	assert.Equal(t, 1, report.SuccessCount)
	assert.Equal(t, 0, report.FailureCount)
	assert.Empty(t, queue.pendingIDs("personal"))
}

func TestDeliver_ConcurrentCallsKeepIndependentRows(t *testing.T) {
	queue := &mockQueue{}
	deliverer := &mockDeliverer{outcomeFor: func(note string) model.DeliveryOutcome {
		// Only one of the two notes is accepted.
		if note == "# keep me" {
			return rejected(503)
		}
		return delivered()
	}}
	svc := newService(singleVault(), queue, deliverer)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = svc.Deliver(context.Background(), "personal", model.PeriodDaily, "# keep me")
	}()
	go func() {
		defer wg.Done()
		_, _ = svc.Deliver(context.Background(), "personal", model.PeriodDaily, "# deliver me")
	}()
	wg.Wait()

	// The rejected note's row survives; the delivered note's row is gone.
	pending, err := queue.ListPending(context.Background(), "personal")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "# keep me", pending[0].Note)
}

// --- Flush pipeline ---

func flushQueueWith(t *testing.T, queue *mockQueue, notes ...string) []int64 {
	t.Helper()
	ids := make([]int64, 0, len(notes))
	for _, n := range notes {
		id, err := queue.Enqueue(context.Background(), "personal", n)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestFlush_EmptyQueue(t *testing.T) {
	queue := &mockQueue{}
	deliverer := &mockDeliverer{}
	svc := newService(singleVault(), queue, deliverer)

	report, err := svc.Flush(context.Background(), "personal")
	require.NoError(t, err)

	assert.Equal(t, 0, report.TotalNotes)
	assert.Equal(t, 0, report.SuccessCount)
	assert.Equal(t, 0, report.FailureCount)
	assert.Nil(t, report.Errors)
	assert.True(t, report.Success())
	assert.Zero(t, deliverer.callCount(), "empty flush must not call downstream")
}

func TestFlush_UnknownVault_NoQueueAccess(t *testing.T) {
	queue := &mockQueue{listErr: errors.New("should not be called")}
	deliverer := &mockDeliverer{}
	svc := newService(singleVault(), queue, deliverer)

	_, err := svc.Flush(context.Background(), "ghost")

	assert.ErrorIs(t, err, driven.ErrVaultNotFound)
	assert.Zero(t, deliverer.callCount())
}

func TestFlush_AttemptsInEnqueueOrder(t *testing.T) {
	queue := &mockQueue{}
	deliverer := &mockDeliverer{}
	svc := newService(singleVault(), queue, deliverer)

	flushQueueWith(t, queue, "A", "B", "C")

	report, err := svc.Flush(context.Background(), "personal")
	require.NoError(t, err)
	assert.Equal(t, 3, report.SuccessCount)

	require.Equal(t, 3, deliverer.callCount())
	assert.Equal(t, "A", deliverer.calls[0].note)
	assert.Equal(t, "B", deliverer.calls[1].note)
	assert.Equal(t, "C", deliverer.calls[2].note)
}

// Flush always targets the default period, whatever period the notes were
// originally submitted under. Pins the known limitation.
func TestFlush_AlwaysTargetsDefaultPeriod(t *testing.T) {
	queue := &mockQueue{}
	rejectFirst := true
	deliverer := &mockDeliverer{outcomeFor: func(string) model.DeliveryOutcome {
		if rejectFirst {
			rejectFirst = false
			return rejected(500)
		}
		return delivered()
	}}
	svc := newService(singleVault(), queue, deliverer)

	// Queued via a yearly request that failed downstream.
	_, err := svc.Deliver(context.Background(), "personal", model.PeriodYearly, "# year in review")
	require.Error(t, err)

	_, err = svc.Flush(context.Background(), "personal")
	require.NoError(t, err)

	require.Equal(t, 2, deliverer.callCount())
	assert.Equal(t, model.PeriodYearly, deliverer.calls[0].period)
	assert.Equal(t, model.DefaultPeriod, deliverer.calls[1].period, "flush must use the fixed default period")
}

func TestFlush_PartialFailure(t *testing.T) {
	queue := &mockQueue{}
	deliverer := &mockDeliverer{outcomeFor: func(note string) model.DeliveryOutcome {
		if note == "B" {
			return rejected(500)
		}
		return delivered()
	}}
	svc := newService(singleVault(), queue, deliverer)

	ids := flushQueueWith(t, queue, "A", "B", "C")

	report, err := svc.Flush(context.Background(), "personal")
	require.NoError(t, err)

	assert.Equal(t, 3, report.TotalNotes)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Equal(t, 1, report.FailureCount)
	assert.False(t, report.Success())
	require.Len(t, report.Errors, 1)
	assert.Equal(t, ids[1], report.Errors[0].NoteID)
	assert.Contains(t, report.Errors[0].Detail, "500")

	// Only B remains.
	assert.Equal(t, []int64{ids[1]}, queue.pendingIDs("personal"))
}

// Flush idempotence: a second flush after a partial failure sees only the
// failed note and never re-attempts the delivered ones.
func TestFlush_SecondFlushOnlyRetriesFailures(t *testing.T) {
	queue := &mockQueue{}
	failB := true
	deliverer := &mockDeliverer{outcomeFor: func(note string) model.DeliveryOutcome {
		if note == "B" && failB {
			return transportFailed()
		}
		return delivered()
	}}
	svc := newService(singleVault(), queue, deliverer)

	flushQueueWith(t, queue, "A", "B", "C")

	_, err := svc.Flush(context.Background(), "personal")
	require.NoError(t, err)
	require.Equal(t, 3, deliverer.callCount())

	failB = false
	report, err := svc.Flush(context.Background(), "personal")
	require.NoError(t, err)

	assert.Equal(t, 1, report.TotalNotes)
	assert.Equal(t, 1, report.SuccessCount)
	require.Equal(t, 4, deliverer.callCount(), "second flush must attempt only the failed note")
	assert.Equal(t, "B", deliverer.calls[3].note)
	assert.Empty(t, queue.pendingIDs("personal"))
}

func TestFlush_BulkDequeueFailureSurfaces(t *testing.T) {
	queue := &mockQueue{bulkErr: errors.New("storage down")}
	deliverer := &mockDeliverer{}
	svc := newService(singleVault(), queue, deliverer)

	flushQueueWith(t, queue, "A")

	_, err := svc.Flush(context.Background(), "personal")
	require.Error(t, err)
	assert.Len(t, queue.pendingIDs("personal"), 1, "notes stay queued when the dequeue fails")
}

func TestFlush_CustomRunnerReceivesSnapshot(t *testing.T) {
	queue := &mockQueue{}
	deliverer := &mockDeliverer{}

	var runnerNotes []string
	runner := func(ctx context.Context, notes []model.QueuedNote, attempt application.AttemptFunc) []application.FlushAttempt {
		attempts := make([]application.FlushAttempt, 0, len(notes))
		// Reverse order on purpose: the report must still attribute outcomes
		// to the right ids.
		for i := len(notes) - 1; i >= 0; i-- {
			runnerNotes = append(runnerNotes, notes[i].Note)
			attempts = append(attempts, application.FlushAttempt{Note: notes[i], Outcome: attempt(ctx, notes[i])})
		}
		return attempts
	}

	svc := newService(singleVault(), queue, deliverer, application.WithFlushRunner(runner))

	flushQueueWith(t, queue, "A", "B")

	report, err := svc.Flush(context.Background(), "personal")
	require.NoError(t, err)

	assert.Equal(t, []string{"B", "A"}, runnerNotes)
	assert.Equal(t, 2, report.SuccessCount)
	assert.Empty(t, queue.pendingIDs("personal"))
}
