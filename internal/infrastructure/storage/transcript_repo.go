package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jbctechsolutions/streamchat/internal/application/ports"
	"github.com/jbctechsolutions/streamchat/internal/domain/chat"
	domainErrors "github.com/jbctechsolutions/streamchat/internal/domain/errors"
)

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Compile-time check that TranscriptRepository implements TranscriptStoragePort.
var _ ports.TranscriptStoragePort = (*TranscriptRepository)(nil)

// TranscriptRepository implements TranscriptStoragePort using SQLite.
type TranscriptRepository struct {
	db *sql.DB
}

// NewTranscriptRepository creates a new transcript repository.
func NewTranscriptRepository(db *sql.DB) *TranscriptRepository {
	return &TranscriptRepository{db: db}
}

// Save inserts or replaces a transcript and all of its messages.
func (r *TranscriptRepository) Save(ctx context.Context, t *chat.Transcript) error {
	if err := t.Validate(); err != nil {
		return domainErrors.NewError(domainErrors.CodeValidation, "invalid transcript", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domainErrors.NewError(domainErrors.CodeStorage, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transcripts (id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at
	`, t.ID, t.Title, formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	if err != nil {
		return domainErrors.NewError(domainErrors.CodeStorage, "failed to save transcript", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM transcript_messages WHERE transcript_id = ?", t.ID); err != nil {
		return domainErrors.NewError(domainErrors.CodeStorage, "failed to clear transcript messages", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO transcript_messages (transcript_id, position, role, content)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return domainErrors.NewError(domainErrors.CodeStorage, "failed to prepare message insert", err)
	}
	defer stmt.Close()

	for i, msg := range t.Messages {
		if _, err := stmt.ExecContext(ctx, t.ID, i, string(msg.Role), msg.Content); err != nil {
			return domainErrors.NewError(domainErrors.CodeStorage, "failed to save transcript message", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return domainErrors.NewError(domainErrors.CodeStorage, "failed to commit transcript", err)
	}
	return nil
}

// Get retrieves a transcript with its messages.
func (r *TranscriptRepository) Get(ctx context.Context, id string) (*chat.Transcript, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, title, created_at, updated_at
		FROM transcripts
		WHERE id = ?
	`, id)

	t, err := scanTranscript(row)
	if err == sql.ErrNoRows {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript: %w", err)
	}

	if t.Messages, err = r.loadMessages(ctx, id); err != nil {
		return nil, err
	}
	return t, nil
}

// List returns up to limit transcripts, most recently updated first. A
// non-positive limit returns all of them.
func (r *TranscriptRepository) List(ctx context.Context, limit int) ([]*chat.Transcript, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, title, created_at, updated_at
		FROM transcripts
		ORDER BY updated_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list transcripts: %w", err)
	}
	defer rows.Close()

	var transcripts []*chat.Transcript
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		transcripts = append(transcripts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcripts: %w", err)
	}
	rows.Close()

	for _, t := range transcripts {
		if t.Messages, err = r.loadMessages(ctx, t.ID); err != nil {
			return nil, err
		}
	}
	return transcripts, nil
}

// Delete removes a transcript and its messages.
func (r *TranscriptRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM transcripts WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete transcript: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if affected == 0 {
		return notFound(id)
	}
	return nil
}

func (r *TranscriptRepository) loadMessages(ctx context.Context, id string) ([]chat.Message, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT role, content
		FROM transcript_messages
		WHERE transcript_id = ?
		ORDER BY position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load transcript messages: %w", err)
	}
	defer rows.Close()

	messages := make([]chat.Message, 0)
	for rows.Next() {
		var role, content string
		if err := rows.Scan(&role, &content); err != nil {
			return nil, fmt.Errorf("failed to scan transcript message: %w", err)
		}
		messages = append(messages, chat.NewMessage(chat.MessageRole(role), content))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcript messages: %w", err)
	}
	return messages, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTranscript(s scanner) (*chat.Transcript, error) {
	var (
		t                    chat.Transcript
		createdAt, updatedAt string
	)
	if err := s.Scan(&t.ID, &t.Title, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if t.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if t.UpdatedAt, err = time.Parse(timeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}
	return &t, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func notFound(id string) error {
	return domainErrors.WithContext(
		domainErrors.NewError(domainErrors.CodeNotFound, "transcript not found", domainErrors.ErrTranscriptNotFound),
		"transcript_id", id,
	)
}
