package repository

import (
	"context"
	"time"

	"fitmarket-settlement/internal/domain/model"
)

type MembershipRepository interface {
	Save(ctx context.Context, tx Tx, m *model.Membership) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Membership, error)
	// FindLatestByUser returns the user's most recently created membership.
	FindLatestByUser(ctx context.Context, tx Tx, userID string) (*model.Membership, error)
	// ListActiveExpired returns ACTIVE memberships whose EndDate is at or
	// before asOf, oldest first, capped at limit.
	ListActiveExpired(ctx context.Context, tx Tx, asOf time.Time, limit int) ([]*model.Membership, error)
	// UpdateStatusIf moves a membership from one status to another only when
	// it still holds the expected source status; reports whether a row changed.
	UpdateStatusIf(ctx context.Context, tx Tx, id string, from, to model.MembershipStatus) (bool, error)
}
