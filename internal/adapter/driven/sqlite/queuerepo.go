package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/model"
	"github.com/pj-lytezen/obsidian-api-webhook/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.NoteQueue = (*QueueRepo)(nil)

// QueueRepo is the SQLite implementation of the NoteQueue port interface.
// Durability relies on the WAL journal with synchronous NORMAL configured in
// NewDB: once ExecContext returns, the row survives a process crash.
type QueueRepo struct {
	db *DB
}

// NewQueueRepo creates a new QueueRepo backed by the given DB.
func NewQueueRepo(db *DB) *QueueRepo {
	return &QueueRepo{db: db}
}

// Enqueue durably appends one note for the vault and returns its assigned id.
func (r *QueueRepo) Enqueue(ctx context.Context, vault, note string) (int64, error) {
	const query = `INSERT INTO note_queue (vault, note, created_at) VALUES (?, ?, ?)`

	result, err := r.db.Writer.ExecContext(ctx, query, vault, note, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("enqueue note for vault %q: %w", vault, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read enqueued note id: %w", err)
	}

	return id, nil
}

// Dequeue removes one note by id. Removing an id that no longer exists is a
// no-op, so delivery pipelines can treat dequeue as idempotent cleanup.
func (r *QueueRepo) Dequeue(ctx context.Context, id int64) error {
	const query = `DELETE FROM note_queue WHERE id = ?`

	if _, err := r.db.Writer.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("dequeue note %d: %w", id, err)
	}
	return nil
}

// DequeueMany removes all notes whose id is in ids as a single statement,
// so a subsequent listing never observes a partial removal.
func (r *QueueRepo) DequeueMany(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	query := fmt.Sprintf(`DELETE FROM note_queue WHERE id IN (%s)`, placeholders)

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	if _, err := r.db.Writer.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("dequeue %d notes: %w", len(ids), err)
	}
	return nil
}

// ListPending returns a snapshot of all queued notes for the vault, oldest
// first, ties broken by id ascending.
func (r *QueueRepo) ListPending(ctx context.Context, vault string) ([]model.QueuedNote, error) {
	const query = `SELECT id, vault, note, created_at FROM note_queue WHERE vault = ? ORDER BY created_at ASC, id ASC`

	rows, err := r.db.Reader.QueryContext(ctx, query, vault)
	if err != nil {
		return nil, fmt.Errorf("list pending notes for vault %q: %w", vault, err)
	}
	defer rows.Close()

	var notes []model.QueuedNote
	for rows.Next() {
		n, err := scanQueuedNote(rows)
		if err != nil {
			return nil, fmt.Errorf("scan queued note: %w", err)
		}
		notes = append(notes, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queued notes: %w", err)
	}

	return notes, nil
}

// Get retrieves one queued note by id.
// Returns driven.ErrNoteNotFound (wrapped) when the id does not exist.
func (r *QueueRepo) Get(ctx context.Context, id int64) (*model.QueuedNote, error) {
	const query = `SELECT id, vault, note, created_at FROM note_queue WHERE id = ?`

	n, err := scanQueuedNote(r.db.Reader.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get queued note %d: %w", id, driven.ErrNoteNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get queued note %d: %w", id, err)
	}

	return n, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanQueuedNote(s scanner) (*model.QueuedNote, error) {
	var n model.QueuedNote
	var createdAt string

	if err := s.Scan(&n.ID, &n.Vault, &n.Note, &createdAt); err != nil {
		return nil, err
	}

	var err error
	n.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, err
	}

	return &n, nil
}
