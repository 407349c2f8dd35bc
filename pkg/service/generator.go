package service

import (
	"context"
	"errors"
	"time"

	"tinylink/pkg/base62"
	"tinylink/pkg/slug"
	"tinylink/pkg/storage"
)

// An auto slug can collide only with a custom slug that already claimed the
// same text, so a few fresh ids are always enough.
const maxAutoAttempts = 3

const (
	pathAuto   = "auto"
	pathCustom = "custom"
)

// Allocator assigns slugs through the single registry shared by both paths.
type Allocator struct {
	links    storage.LinkStorage
	codec    *base62.Codec
	reserved slug.ReservedSet
}

func NewAllocator(links storage.LinkStorage, codec *base62.Codec, reserved slug.ReservedSet) *Allocator {
	if codec == nil {
		codec = base62.MustNewCodec(base62.Alphabet, base62.DefaultMinLength)
	}
	return &Allocator{links: links, codec: codec, reserved: reserved}
}

// CheckCustom runs the custom-slug gates in order and returns the
// normalized slug. It does not consult storage.
func (a *Allocator) CheckCustom(raw string) (string, error) {
	normalized := slug.NormalizeCustomSlug(raw)
	if a.reserved.Contains(normalized) {
		return "", ErrReservedSlug
	}
	if !slug.IsValidCustomSlug(normalized) {
		return "", ErrInvalidSlug
	}
	return normalized, nil
}

// AllocateCustom claims a caller-chosen slug.
func (a *Allocator) AllocateCustom(ctx context.Context, raw, targetURL string, createdAt time.Time, expiresAt *time.Time) (*storage.ShortLink, error) {
	normalized, err := a.CheckCustom(raw)
	if err != nil {
		return nil, err
	}

	link := &storage.ShortLink{
		Slug:      normalized,
		TargetURL: targetURL,
		CreatedAt: createdAt,
		ExpiresAt: expiresAt,
	}
	err = a.links.WithTx(ctx, func(tx storage.LinkTx) error {
		exists, err := tx.SlugExists(ctx, normalized)
		if err != nil {
			return err
		}
		if exists {
			return ErrSlugTaken
		}
		return tx.Insert(ctx, link)
	})
	switch {
	case err == nil:
		return link, nil
	case errors.Is(err, ErrSlugTaken), errors.Is(err, storage.ErrDuplicateSlug):
		return nil, ErrSlugTaken
	default:
		return nil, storageFailure("create custom link", err)
	}
}

// AllocateAuto reserves the next id, derives its base62 slug and inserts the
// row in one transaction.
func (a *Allocator) AllocateAuto(ctx context.Context, targetURL string, createdAt time.Time, expiresAt *time.Time) (*storage.ShortLink, error) {
	for attempt := 0; attempt < maxAutoAttempts; attempt++ {
		var link *storage.ShortLink
		err := a.links.WithTx(ctx, func(tx storage.LinkTx) error {
			id, err := tx.NextID(ctx)
			if err != nil {
				return err
			}
			candidate := a.codec.Encode(uint64(id))
			exists, err := tx.SlugExists(ctx, candidate)
			if err != nil {
				return err
			}
			if exists {
				return storage.ErrDuplicateSlug
			}
			link = &storage.ShortLink{
				ID:        id,
				Slug:      candidate,
				TargetURL: targetURL,
				CreatedAt: createdAt,
				ExpiresAt: expiresAt,
			}
			return tx.Insert(ctx, link)
		})
		if err == nil {
			return link, nil
		}
		if !errors.Is(err, storage.ErrDuplicateSlug) {
			return nil, storageFailure("create link", err)
		}
	}
	return nil, ErrSlugTaken
}
