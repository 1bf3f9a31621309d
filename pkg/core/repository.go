package core

import "context"

// GraphSource is the collaborator that owns documents on the authoritative side.
// Parsing CNL text is its responsibility, never the session's.
type GraphSource interface {
	// ListGraphs returns the documents available to the user.
	ListGraphs(ctx context.Context, userID string) ([]DocumentInfo, error)
	// FetchRaw returns the CNL source of a document.
	FetchRaw(ctx context.Context, userID, id string) (string, error)
	// FetchParsed returns the parsed structure of a document.
	FetchParsed(ctx context.Context, userID, id string) (*ParsedStructure, error)
	// CreateDocument registers a new document. A collision returns ErrDuplicateDocument.
	CreateDocument(ctx context.Context, userID, id, title, description string) error
	// SaveDocument stores new CNL source for a document.
	SaveDocument(ctx context.Context, userID, id, raw string) error
}

// Preferences exposes user preferences that drive rendering defaults.
type Preferences interface {
	GetDifficulty(ctx context.Context, userID string) (Difficulty, error)
}

// Watchable defines an interface for sources that report external changes.
type Watchable interface {
	// Watch emits events until ctx is canceled, then closes the channel.
	Watch(ctx context.Context, userID string) (<-chan Event, error)
}
