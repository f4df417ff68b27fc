//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"fitmarket-settlement/internal/domain/model"
)

func TestMembershipRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	ctx := context.Background()
	repo := NewMembershipRepo(testPool)

	t.Run("latest membership wins for a user with history", func(t *testing.T) {
		cleanup(t)
		userID := seedUser(t, "Alma Client", "alma@example.com")
		past := time.Now().Add(-48 * time.Hour)
		old := &model.Membership{
			ID:              uuid.NewString(),
			UserID:          userID,
			Type:            model.MembershipTypePayment,
			Status:          model.MembershipStatusExpired,
			StartDate:       past.AddDate(0, -1, 0),
			EndDate:         past,
			PaymentCurrency: "EUR",
			CreatedAt:       past,
			UpdatedAt:       past,
		}
		if err := repo.Save(ctx, nil, old); err != nil {
			t.Fatalf("save: %v", err)
		}
		latest := seedMembership(t, userID, nil)

		got, err := repo.FindLatestByUser(ctx, nil, userID)
		if err != nil {
			t.Fatalf("find latest: %v", err)
		}
		if got.ID != latest.ID {
			t.Errorf("expected latest membership %s, got %s", latest.ID, got.ID)
		}
	})

	t.Run("conditional status update is a no-op from the wrong source state", func(t *testing.T) {
		cleanup(t)
		userID := seedUser(t, "Alma Client", "alma@example.com")
		ms := seedMembership(t, userID, nil)

		ok, err := repo.UpdateStatusIf(ctx, nil, ms.ID, model.MembershipStatusActive, model.MembershipStatusExpired)
		if err != nil || !ok {
			t.Fatalf("expected first demotion to succeed, ok=%v err=%v", ok, err)
		}
		ok, err = repo.UpdateStatusIf(ctx, nil, ms.ID, model.MembershipStatusActive, model.MembershipStatusExpired)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ok {
			t.Error("expected second demotion to change nothing")
		}
	})

	t.Run("expired listing only returns due active rows", func(t *testing.T) {
		cleanup(t)
		userID := seedUser(t, "Alma Client", "alma@example.com")
		due := seedMembership(t, userID, nil)
		due.EndDate = time.Now().Add(-24 * time.Hour)
		due.StartDate = due.EndDate.AddDate(0, -1, 0)
		if err := repo.Save(ctx, nil, due); err != nil {
			t.Fatalf("save: %v", err)
		}
		seedMembership(t, userID, nil) // still in the future

		got, err := repo.ListActiveExpired(ctx, nil, time.Now(), 10)
		if err != nil {
			t.Fatalf("list: %v", err)
		}
		if len(got) != 1 || got[0].ID != due.ID {
			t.Errorf("expected only the due membership, got %d rows", len(got))
		}
	})
}
