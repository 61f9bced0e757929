package matches

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ebuka-odih/nyem-sub003/internal/testutil/memstore"
)

func TestListOrientsMatchForCaller(t *testing.T) {
	detector, store := newDetectorFixture(t, DetectorConfig{})
	store.PutSwipe(rightSwipe(1, 20))
	if _, err := detector.OnRightSwipe(context.Background(), nil, rightSwipe(2, 10), 1); err != nil {
		t.Fatalf("seed match: %v", err)
	}

	service := NewService(Dependencies{Tx: store, MatchStore: store.MatchStore(), BlockStore: store.BlockStore()})

	items, err := service.List(context.Background(), 2, 20)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected one match, got %d", len(items))
	}
	item := items[0]
	if item.CounterpartID != 1 || item.MyItemID != 20 || item.TheirItemID != 10 {
		t.Fatalf("unexpected orientation: %+v", item)
	}
}

func TestListHidesMatchesBlockedByCounterpart(t *testing.T) {
	detector, store := newDetectorFixture(t, DetectorConfig{})
	store.PutSwipe(rightSwipe(1, 20))
	if _, err := detector.OnRightSwipe(context.Background(), nil, rightSwipe(2, 10), 1); err != nil {
		t.Fatalf("seed match: %v", err)
	}

	service := NewService(Dependencies{Tx: store, MatchStore: store.MatchStore(), BlockStore: store.BlockStore()})
	if err := service.Block(context.Background(), 1, 2, "spam"); err != nil {
		t.Fatalf("block: %v", err)
	}

	items, err := service.List(context.Background(), 2, 20)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected blocked match to be hidden, got %+v", items)
	}

	// The blocker still sees it.
	items, err = service.List(context.Background(), 1, 20)
	if err != nil {
		t.Fatalf("list blocker: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected blocker to keep the match, got %d", len(items))
	}
}

func TestBlockValidatesInput(t *testing.T) {
	store := memstore.New()
	store.SetNow(func() time.Time { return time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC) })
	service := NewService(Dependencies{Tx: store, MatchStore: store.MatchStore(), BlockStore: store.BlockStore()})

	for _, tc := range []struct {
		name         string
		user, target int64
	}{
		{name: "self", user: 1, target: 1},
		{name: "zero user", user: 0, target: 2},
		{name: "negative target", user: 1, target: -2},
	} {
		if err := service.Block(context.Background(), tc.user, tc.target, ""); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: expected ErrValidation, got %v", tc.name, err)
		}
	}
}
