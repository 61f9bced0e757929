package redis

import (
	"context"
	"testing"
	"time"
)

func TestPresenceSetAndClear(t *testing.T) {
	mr, client := newTestClient(t)
	repo := NewPresenceRepo(client, time.Minute)
	ctx := context.Background()

	if err := repo.SetConnections(ctx, 7, 2); err != nil {
		t.Fatalf("set connections: %v", err)
	}
	got, err := repo.Connections(ctx, 7)
	if err != nil {
		t.Fatalf("connections: %v", err)
	}
	if got != 2 {
		t.Fatalf("unexpected connections: got %d want 2", got)
	}
	if ttl := mr.TTL("presence:user:7"); ttl != time.Minute {
		t.Fatalf("unexpected ttl: %s", ttl)
	}

	if err := repo.SetConnections(ctx, 7, 0); err != nil {
		t.Fatalf("clear connections: %v", err)
	}
	if mr.Exists("presence:user:7") {
		t.Fatalf("presence key must be removed at zero connections")
	}
}

func TestPresenceExpiresWithoutTouch(t *testing.T) {
	mr, client := newTestClient(t)
	repo := NewPresenceRepo(client, 30*time.Second)
	ctx := context.Background()

	if err := repo.SetConnections(ctx, 1, 1); err != nil {
		t.Fatalf("set user 1: %v", err)
	}
	if err := repo.SetConnections(ctx, 2, 1); err != nil {
		t.Fatalf("set user 2: %v", err)
	}

	mr.FastForward(20 * time.Second)
	if err := repo.Touch(ctx, []int64{1}); err != nil {
		t.Fatalf("touch: %v", err)
	}
	mr.FastForward(20 * time.Second)

	if got, _ := repo.Connections(ctx, 1); got != 1 {
		t.Fatalf("touched user must stay present, got %d", got)
	}
	if got, _ := repo.Connections(ctx, 2); got != 0 {
		t.Fatalf("untouched user must expire, got %d", got)
	}
}
