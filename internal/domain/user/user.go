package user

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("user: not found")

type ID string

// Profile is the public part of an identity, used in booking summaries.
type Profile struct {
	ID    ID
	Name  string
	Email string
}

// Directory resolves profiles owned by the identity service.
type Directory interface {
	ByID(ctx context.Context, id ID) (*Profile, error)
}
