package storage

import (
	"context"
	"errors"
)

// ErrDuplicateSlug is returned by LinkTx.Insert when the slug is already
// registered, whichever allocation path registered it.
var ErrDuplicateSlug = errors.New("storage: duplicate slug")

// LinkStorage reads return nil, nil when no row matches.
type LinkStorage interface {
	// WithTx runs fn in one transaction, committing only when fn returns nil.
	WithTx(ctx context.Context, fn func(tx LinkTx) error) error
	GetBySlug(ctx context.Context, slug string) (*ShortLink, error)
	// Delete removes the link and its click events. It reports whether a
	// row was removed.
	Delete(ctx context.Context, slug string) (bool, error)
}

// LinkTx is the slug registry shared by both allocation paths.
type LinkTx interface {
	// NextID reserves a strictly increasing, never reused identifier.
	NextID(ctx context.Context) (int64, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	// Insert stores link. A zero ID is assigned from the sequence; ID and
	// CreatedAt are written back into link.
	Insert(ctx context.Context, link *ShortLink) error
}

type ClickStorage interface {
	Record(ctx context.Context, click *ClickEvent) error
	// ListByLink returns events oldest first.
	ListByLink(ctx context.Context, linkID int64) ([]ClickEvent, error)
	CountByLink(ctx context.Context, linkID int64) (int64, error)
}

type Store interface {
	LinkStorage
	ClickStorage
	Close()
}
