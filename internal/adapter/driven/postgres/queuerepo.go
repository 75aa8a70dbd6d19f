package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/model"
	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.NoteQueue = (*QueueRepo)(nil)

// QueueRepo is the PostgreSQL implementation of the NoteQueue port interface.
type QueueRepo struct {
	db *DB
}

// NewQueueRepo creates a new QueueRepo backed by the given DB.
func NewQueueRepo(db *DB) *QueueRepo {
	return &QueueRepo{db: db}
}

// Enqueue durably appends one note for the vault and returns its assigned id.
func (r *QueueRepo) Enqueue(ctx context.Context, vault, note string) (int64, error) {
	const query = `INSERT INTO note_queue (vault, note) VALUES ($1, $2) RETURNING id`

	var id int64
	if err := r.db.Conn.QueryRowContext(ctx, query, vault, note).Scan(&id); err != nil {
		return 0, fmt.Errorf("enqueue note for vault %q: %w", vault, err)
	}

	return id, nil
}

// Dequeue removes one note by id. Removing an id that no longer exists is a
// no-op, so delivery pipelines can treat dequeue as idempotent cleanup.
func (r *QueueRepo) Dequeue(ctx context.Context, id int64) error {
	const query = `DELETE FROM note_queue WHERE id = $1`

	if _, err := r.db.Conn.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("dequeue note %d: %w", id, err)
	}
	return nil
}

// DequeueMany removes all notes whose id is in ids in a single statement.
func (r *QueueRepo) DequeueMany(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	const query = `DELETE FROM note_queue WHERE id = ANY($1)`

	if _, err := r.db.Conn.ExecContext(ctx, query, pq.Array(ids)); err != nil {
		return fmt.Errorf("dequeue %d notes: %w", len(ids), err)
	}
	return nil
}

// ListPending returns a snapshot of all queued notes for the vault, oldest
// first, ties broken by id ascending.
func (r *QueueRepo) ListPending(ctx context.Context, vault string) ([]model.QueuedNote, error) {
	const query = `SELECT id, vault, note, created_at FROM note_queue WHERE vault = $1 ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Conn.QueryContext(ctx, query, vault)
	if err != nil {
		return nil, fmt.Errorf("list pending notes for vault %q: %w", vault, err)
	}
	defer rows.Close()

	var notes []model.QueuedNote
	for rows.Next() {
		var n model.QueuedNote
		if err := rows.Scan(&n.ID, &n.Vault, &n.Note, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan queued note: %w", err)
		}
		notes = append(notes, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queued notes: %w", err)
	}

	return notes, nil
}

// Get retrieves one queued note by id.
// Returns driven.ErrNoteNotFound (wrapped) when the id does not exist.
func (r *QueueRepo) Get(ctx context.Context, id int64) (*model.QueuedNote, error) {
	const query = `SELECT id, vault, note, created_at FROM note_queue WHERE id = $1`

	var n model.QueuedNote
	err := r.db.Conn.QueryRowContext(ctx, query, id).Scan(&n.ID, &n.Vault, &n.Note, &n.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get queued note %d: %w", id, driven.ErrNoteNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get queued note %d: %w", id, err)
	}

	return &n, nil
}
