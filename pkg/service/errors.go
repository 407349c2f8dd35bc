package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidURL    = errors.New("invalid URL")
	ErrInvalidSlug   = errors.New("invalid custom slug: use 3-50 letters, digits, '-' or '_'")
	ErrInvalidExpiry = errors.New("invalid expiry: must be in the future")
	ErrReservedSlug  = errors.New("slug is reserved")
	ErrSlugTaken     = errors.New("slug already taken")
	ErrNotFound      = errors.New("link not found")
	ErrExpired       = errors.New("link expired")
	ErrStorage       = errors.New("storage failure")
)

func storageFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
