package validate

import "testing"

func TestRequired(t *testing.T) {
	if Required("   ") {
		t.Fatalf("blank value must not pass")
	}
	if !Required(" token ") {
		t.Fatalf("non-blank value must pass")
	}
}

func TestPositiveIDs(t *testing.T) {
	cases := []struct {
		ids  []int64
		want bool
	}{
		{ids: nil, want: true},
		{ids: []int64{1, 2, 3}, want: true},
		{ids: []int64{1, 0}, want: false},
		{ids: []int64{-4}, want: false},
	}
	for _, tc := range cases {
		if got := PositiveIDs(tc.ids...); got != tc.want {
			t.Fatalf("PositiveIDs(%v) = %v, want %v", tc.ids, got, tc.want)
		}
	}
}
