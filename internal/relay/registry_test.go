package relay

import "testing"

func TestRegistryRemoveDropsEmptyUser(t *testing.T) {
	reg := NewRegistry()
	a := &Conn{id: [16]byte{1}}
	b := &Conn{id: [16]byte{2}}
	a.userID.Store(3)
	b.userID.Store(3)

	if got := reg.Register(a); got != 1 {
		t.Fatalf("first register: got %d", got)
	}
	if got := reg.Register(b); got != 2 {
		t.Fatalf("second register: got %d", got)
	}

	remaining, registered := reg.Remove(a)
	if !registered || remaining != 1 {
		t.Fatalf("remove a: remaining=%d registered=%v", remaining, registered)
	}
	remaining, registered = reg.Remove(b)
	if !registered || remaining != 0 {
		t.Fatalf("remove b: remaining=%d registered=%v", remaining, registered)
	}
	if users := reg.Users(); len(users) != 0 {
		t.Fatalf("expected empty user index, got %v", users)
	}
	if _, registered := reg.Remove(b); registered {
		t.Fatalf("second remove must be a no-op")
	}
}

func TestRegistryTrackedConnectionIsNotAddressable(t *testing.T) {
	reg := NewRegistry()
	c := &Conn{id: [16]byte{9}}
	reg.Track(c)

	if got := len(reg.All()); got != 1 {
		t.Fatalf("expected tracked connection, got %d", got)
	}
	if got := len(reg.Snapshot([]int64{0})); got != 0 {
		t.Fatalf("unauthenticated connection must not be addressable, got %d", got)
	}
	if _, registered := reg.Remove(c); registered {
		t.Fatalf("tracked connection was never registered")
	}
	if got := len(reg.All()); got != 0 {
		t.Fatalf("expected tracked connection removed, got %d", got)
	}
}
