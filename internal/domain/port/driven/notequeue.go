package driven

import (
	"context"
	"errors"

	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/model"
)

// ErrNoteNotFound indicates the requested queued note does not exist.
var ErrNoteNotFound = errors.New("queued note not found")

// NoteQueue defines the driven port for the durable note queue.
//
// Enqueue must be durable before it returns: a crash after Enqueue returns
// but before delivery completes must leave the note recoverable via
// ListPending. Dequeue is idempotent cleanup; removing an id that no longer
// exists is not an error. ListPending returns a point-in-time snapshot
// ordered by created_at ascending, ties broken by id ascending. DequeueMany
// removes every listed id in one atomic step; a nil or empty id set is a
// no-op. Get returns ErrNoteNotFound (wrapped) for an unknown id.
type NoteQueue interface {
	Enqueue(ctx context.Context, vault, note string) (int64, error)
	Dequeue(ctx context.Context, id int64) error
	DequeueMany(ctx context.Context, ids []int64) error
	ListPending(ctx context.Context, vault string) ([]model.QueuedNote, error)
	Get(ctx context.Context, id int64) (*model.QueuedNote, error)
}
