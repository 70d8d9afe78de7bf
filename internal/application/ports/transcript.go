package ports

import (
	"context"

	"github.com/jbctechsolutions/streamchat/internal/domain/chat"
)

// TranscriptStoragePort persists committed conversation histories.
type TranscriptStoragePort interface {
	// Save creates the transcript or replaces its stored messages.
	Save(ctx context.Context, t *chat.Transcript) error

	// Get returns the transcript with id.
	Get(ctx context.Context, id string) (*chat.Transcript, error)

	// List returns transcripts, most recently updated first. A non-positive
	// limit returns all of them.
	List(ctx context.Context, limit int) ([]*chat.Transcript, error)

	// Delete removes the transcript with id.
	Delete(ctx context.Context, id string) error
}
