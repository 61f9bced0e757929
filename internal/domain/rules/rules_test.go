package rules

import (
	"strings"
	"testing"
	"time"
)

func TestWishlistExpiredUsesTTL(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	if !WishlistExpired(now.Add(-25*time.Hour), now, 24*time.Hour) {
		t.Fatalf("expected 25h old up-swipe to be expired")
	}
	if WishlistExpired(now.Add(-23*time.Hour), now, 24*time.Hour) {
		t.Fatalf("expected 23h old up-swipe to be kept")
	}
}

func TestWishlistCutoffDefaultsTo24h(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	got := WishlistCutoff(now, 0)
	want := now.Add(-24 * time.Hour)
	if !got.Equal(want) {
		t.Fatalf("unexpected cutoff: got %s want %s", got, want)
	}
}

func TestNormalizeMessageText(t *testing.T) {
	cases := []struct {
		name string
		in   string
		max  int
		want string
		ok   bool
	}{
		{name: "trims", in: "  hi there \n", max: 10, want: "hi there", ok: true},
		{name: "empty", in: "   ", max: 10, ok: false},
		{name: "too long", in: strings.Repeat("a", 11), max: 10, ok: false},
		{name: "counts runes", in: "привет", max: 6, want: "привет", ok: true},
	}

	for _, tc := range cases {
		got, ok := NormalizeMessageText(tc.in, tc.max)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("%s: got (%q,%v) want (%q,%v)", tc.name, got, ok, tc.want, tc.ok)
		}
	}
}
