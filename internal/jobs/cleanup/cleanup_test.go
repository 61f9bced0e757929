package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/enums"
	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
	"github.com/ebuka-odih/nyem-sub003/internal/testutil/memstore"
)

func TestRunPurgesExpiredWishlistSwipes(t *testing.T) {
	now := time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)

	store := memstore.New()
	store.AddItem(10, 1, "bike")
	store.AddItem(20, 2, "guitar")
	store.AddItem(30, 3, "kettle")
	store.PutSwipe(model.Swipe{ActorUserID: 2, TargetItemID: 10, Direction: enums.SwipeDirectionUp, CreatedAt: now.Add(-25 * time.Hour)})
	store.PutSwipe(model.Swipe{ActorUserID: 3, TargetItemID: 10, Direction: enums.SwipeDirectionUp, CreatedAt: now.Add(-23 * time.Hour)})
	store.PutSwipe(model.Swipe{ActorUserID: 1, TargetItemID: 30, Direction: enums.SwipeDirectionLeft, CreatedAt: now.Add(-48 * time.Hour)})

	job := New(store.SwipeStore(), 24*time.Hour, nil)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}

	if _, ok := store.SwipeOf(2, 10); ok {
		t.Fatalf("expected wishlist swipe older than 24h to be removed")
	}
	if _, ok := store.SwipeOf(3, 10); !ok {
		t.Fatalf("expected wishlist swipe younger than 24h to be retained")
	}
	if _, ok := store.SwipeOf(1, 30); !ok {
		t.Fatalf("expected non-wishlist swipe to be retained")
	}
}

func TestRunKeepsWishlistSwipeThatMatched(t *testing.T) {
	now := time.Date(2026, time.February, 10, 12, 0, 0, 0, time.UTC)

	store := memstore.New()
	store.AddItem(10, 1, "bike")
	store.AddItem(20, 2, "guitar")
	store.PutSwipe(model.Swipe{ActorUserID: 2, TargetItemID: 10, Direction: enums.SwipeDirectionUp, CreatedAt: now.Add(-72 * time.Hour)})
	key := model.CanonicalMatchKey(1, 10, 2, 20)
	if _, err := store.MatchStore().Insert(context.Background(), nil, key, now.Add(-70*time.Hour)); err != nil {
		t.Fatalf("seed match: %v", err)
	}

	job := New(store.SwipeStore(), 24*time.Hour, nil)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run cleanup job: %v", err)
	}
	if _, ok := store.SwipeOf(2, 10); !ok {
		t.Fatalf("expected matched wishlist swipe to be retained")
	}
}

type failingCleaner struct{}

func (failingCleaner) DeleteExpiredWishlist(context.Context, time.Time) (int64, error) {
	return 0, errors.New("db down")
}

func TestRunWrapsCleanerError(t *testing.T) {
	job := New(failingCleaner{}, time.Hour, nil)
	if err := job.Run(context.Background()); err == nil {
		t.Fatalf("expected error from cleaner")
	}
}

func TestRunWithoutCleanerIsNoop(t *testing.T) {
	if err := New(nil, 0, nil).Run(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
