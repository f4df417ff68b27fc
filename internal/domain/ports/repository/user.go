package repository

import (
	"context"

	"fitmarket-settlement/internal/domain/model"
)

// UserRepository is a read-only directory lookup used to enrich listings and
// CSV exports with display names.
type UserRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.User, error)
}
