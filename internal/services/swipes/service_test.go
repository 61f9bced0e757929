package swipes

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/enums"
	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
	matchsvc "github.com/ebuka-odih/nyem-sub003/internal/services/matches"
	ratesvc "github.com/ebuka-odih/nyem-sub003/internal/services/rate"
	"github.com/ebuka-odih/nyem-sub003/internal/testutil/memstore"
)

type notifierStub struct {
	mu    sync.Mutex
	calls []notifyCall
}

type notifyCall struct {
	match               model.Match
	conversation        model.Conversation
	conversationCreated bool
}

func (s *notifierStub) MatchCreated(_ context.Context, match model.Match, conversation model.Conversation, conversationCreated bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, notifyCall{match: match, conversation: conversation, conversationCreated: conversationCreated})
}

func (s *notifierStub) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type rateLimiterStub struct {
	allowed    bool
	retryAfter int64
}

func (s rateLimiterStub) Allow(context.Context, int64) (int64, bool, error) {
	return s.retryAfter, s.allowed, nil
}

type fixture struct {
	service  *Service
	store    *memstore.Store
	notifier *notifierStub
}

// Alice (1) owns item 10 (bike), Bob (2) owns item 20 (guitar), Carol (3)
// owns item 30.
func newFixture(t *testing.T, cfg Config) fixture {
	t.Helper()

	store := memstore.New()
	store.AddUser(1, "alice")
	store.AddUser(2, "bob")
	store.AddUser(3, "carol")
	store.AddItem(10, 1, "bike")
	store.AddItem(11, 1, "lamp")
	store.AddItem(20, 2, "guitar")
	store.AddItem(30, 3, "kettle")

	detector := matchsvc.NewDetector(matchsvc.DetectorDependencies{
		Swipes:        store.SwipeStore(),
		Matches:       store.MatchStore(),
		Conversations: store.ConversationStore(),
	}, matchsvc.DetectorConfig{OnePerPair: true})

	notifier := &notifierStub{}
	service := NewService(Dependencies{
		Tx:       store,
		Items:    store.ItemStore(),
		Blocks:   store.BlockStore(),
		Swipes:   store.SwipeStore(),
		Detector: detector,
		Notifier: notifier,
	}, cfg)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return now }

	return fixture{service: service, store: store, notifier: notifier}
}

func offer(id int64) *int64 {
	return &id
}

func TestRecordReciprocalSwipesCreateMatch(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	first, err := f.service.Record(ctx, 1, 20, enums.SwipeDirectionRight, offer(10))
	if err != nil {
		t.Fatalf("alice swipe: %v", err)
	}
	if first.Outcome.Matched {
		t.Fatalf("expected no match after the first swipe, got %+v", first.Outcome)
	}

	second, err := f.service.Record(ctx, 2, 10, enums.SwipeDirectionRight, offer(20))
	if err != nil {
		t.Fatalf("bob swipe: %v", err)
	}
	if !second.Outcome.Matched || !second.Outcome.Created {
		t.Fatalf("expected a new match, got %+v", second.Outcome)
	}
	if second.Outcome.Conversation.ID == 0 {
		t.Fatalf("expected a conversation id")
	}
	if second.MatchErr != nil {
		t.Fatalf("unexpected match error: %v", second.MatchErr)
	}

	if f.notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", f.notifier.count())
	}
	call := f.notifier.calls[0]
	if call.match.ID != second.Outcome.Match.ID || !call.conversationCreated {
		t.Fatalf("unexpected notification: %+v", call)
	}
}

func TestRecordRejectsSelfSwipe(t *testing.T) {
	f := newFixture(t, Config{})

	_, err := f.service.Record(context.Background(), 1, 10, enums.SwipeDirectionRight, nil)
	if !errors.Is(err, ErrInvalidOperation) {
		t.Fatalf("expected ErrInvalidOperation, got %v", err)
	}
	if f.store.SwipeCount() != 0 {
		t.Fatalf("self-swipe must not be stored")
	}
}

func TestRecordRejectsBlockedPairInBothDirections(t *testing.T) {
	f := newFixture(t, Config{})
	blocks := f.store.BlockStore()
	if err := blocks.Upsert(context.Background(), nil, 2, 1, "spam"); err != nil {
		t.Fatalf("seed block: %v", err)
	}

	if _, err := f.service.Record(context.Background(), 1, 20, enums.SwipeDirectionRight, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("blocked actor: expected ErrForbidden, got %v", err)
	}
	if _, err := f.service.Record(context.Background(), 2, 10, enums.SwipeDirectionLeft, nil); !errors.Is(err, ErrForbidden) {
		t.Fatalf("blocker: expected ErrForbidden, got %v", err)
	}
	if f.store.SwipeCount() != 0 {
		t.Fatalf("blocked swipes must not be stored")
	}
}

func TestRecordValidatesInput(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	cases := []struct {
		name    string
		actor   int64
		item    int64
		dir     enums.SwipeDirection
		offered *int64
		want    error
	}{
		{name: "zero actor", actor: 0, item: 20, dir: enums.SwipeDirectionRight, want: ErrValidation},
		{name: "unknown direction", actor: 1, item: 20, dir: "down", want: ErrValidation},
		{name: "offer equals target", actor: 1, item: 20, dir: enums.SwipeDirectionRight, offered: offer(20), want: ErrValidation},
		{name: "offer owned by someone else", actor: 1, item: 20, dir: enums.SwipeDirectionRight, offered: offer(30), want: ErrValidation},
		{name: "unknown item", actor: 1, item: 99, dir: enums.SwipeDirectionRight, want: ErrItemNotFound},
	}
	for _, tc := range cases {
		if _, err := f.service.Record(ctx, tc.actor, tc.item, tc.dir, tc.offered); !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
	if f.store.SwipeCount() != 0 {
		t.Fatalf("invalid swipes must not be stored")
	}
}

func TestRecordRejectPolicyRefusesChangedSwipe(t *testing.T) {
	f := newFixture(t, Config{ConflictPolicy: enums.SwipeConflictReject})
	ctx := context.Background()

	if _, err := f.service.Record(ctx, 1, 20, enums.SwipeDirectionLeft, nil); err != nil {
		t.Fatalf("first swipe: %v", err)
	}
	if _, err := f.service.Record(ctx, 1, 20, enums.SwipeDirectionRight, nil); !errors.Is(err, ErrDuplicateSwipe) {
		t.Fatalf("expected ErrDuplicateSwipe, got %v", err)
	}

	stored, ok := f.store.SwipeOf(1, 20)
	if !ok || stored.Direction != enums.SwipeDirectionLeft {
		t.Fatalf("stored swipe changed: %+v", stored)
	}
}

func TestRecordOverwritePolicyUpdatesSwipeAndDetects(t *testing.T) {
	f := newFixture(t, Config{ConflictPolicy: enums.SwipeConflictOverwrite})
	ctx := context.Background()

	if _, err := f.service.Record(ctx, 2, 10, enums.SwipeDirectionRight, nil); err != nil {
		t.Fatalf("bob swipe: %v", err)
	}
	first, err := f.service.Record(ctx, 1, 20, enums.SwipeDirectionLeft, nil)
	if err != nil {
		t.Fatalf("alice left swipe: %v", err)
	}

	second, err := f.service.Record(ctx, 1, 20, enums.SwipeDirectionRight, nil)
	if err != nil {
		t.Fatalf("alice overwrite: %v", err)
	}
	if second.Swipe.ID != first.Swipe.ID || second.Swipe.Direction != enums.SwipeDirectionRight {
		t.Fatalf("expected in-place overwrite, got first=%+v second=%+v", first.Swipe, second.Swipe)
	}
	if !second.Outcome.Created {
		t.Fatalf("expected overwritten right swipe to create a match, got %+v", second.Outcome)
	}
	if f.store.SwipeCount() != 2 {
		t.Fatalf("expected two stored swipes, got %d", f.store.SwipeCount())
	}
}

func TestRecordIdenticalReplayReturnsExistingMatch(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.service.Record(ctx, 1, 20, enums.SwipeDirectionRight, offer(10)); err != nil {
		t.Fatalf("alice swipe: %v", err)
	}
	first, err := f.service.Record(ctx, 2, 10, enums.SwipeDirectionRight, offer(20))
	if err != nil {
		t.Fatalf("bob swipe: %v", err)
	}

	replay, err := f.service.Record(ctx, 2, 10, enums.SwipeDirectionRight, offer(20))
	if err != nil {
		t.Fatalf("bob replay: %v", err)
	}
	if !replay.Replayed || replay.Swipe.ID != first.Swipe.ID {
		t.Fatalf("expected replay of swipe %d, got %+v", first.Swipe.ID, replay)
	}
	if !replay.Outcome.Matched || replay.Outcome.Created || replay.Outcome.Match.ID != first.Outcome.Match.ID {
		t.Fatalf("expected existing match %d, got %+v", first.Outcome.Match.ID, replay.Outcome)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("replay must not notify again, got %d notifications", f.notifier.count())
	}
}

func TestRecordKeepsSwipeWhenDetectionFails(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.service.Record(ctx, 1, 20, enums.SwipeDirectionRight, nil); err != nil {
		t.Fatalf("alice swipe: %v", err)
	}

	f.store.FailNext("conversation.create", errors.New("connection reset"))
	failed, err := f.service.Record(ctx, 2, 10, enums.SwipeDirectionRight, nil)
	if err != nil {
		t.Fatalf("bob swipe must succeed even when detection fails: %v", err)
	}
	if failed.MatchErr == nil || failed.Outcome.Matched {
		t.Fatalf("expected match error without match, got %+v", failed)
	}
	if _, ok := f.store.SwipeOf(2, 10); !ok {
		t.Fatalf("swipe must be committed")
	}
	if got := len(f.store.Matches()); got != 0 {
		t.Fatalf("failed detection must roll back the match, got %d", got)
	}
	if f.notifier.count() != 0 {
		t.Fatalf("failed detection must not notify")
	}

	retry, err := f.service.Record(ctx, 2, 10, enums.SwipeDirectionRight, nil)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !retry.Replayed || !retry.Outcome.Created {
		t.Fatalf("expected the retry to create the match, got %+v", retry)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("expected one notification after retry, got %d", f.notifier.count())
	}
}

func TestRecordConcurrentCompletionsShareOneMatch(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.service.Record(ctx, 1, 20, enums.SwipeDirectionRight, offer(10)); err != nil {
		t.Fatalf("alice swipe: %v", err)
	}

	const workers = 8
	results := make([]SwipeResult, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.service.Record(ctx, 2, 10, enums.SwipeDirectionRight, offer(20))
		}(i)
	}
	wg.Wait()

	matchID := int64(0)
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if !results[i].Outcome.Matched {
			t.Fatalf("worker %d: expected matched, got %+v", i, results[i].Outcome)
		}
		if matchID == 0 {
			matchID = results[i].Outcome.Match.ID
		}
		if results[i].Outcome.Match.ID != matchID {
			t.Fatalf("worker %d saw match %d, want %d", i, results[i].Outcome.Match.ID, matchID)
		}
	}
	if got := len(f.store.Matches()); got != 1 {
		t.Fatalf("expected one match row, got %d", got)
	}
	if f.notifier.count() != 1 {
		t.Fatalf("expected one notification, got %d", f.notifier.count())
	}
}

func TestRecordSimultaneousReciprocalSwipesMatchOnce(t *testing.T) {
	for round := 0; round < 20; round++ {
		f := newFixture(t, Config{})
		ctx := context.Background()

		var wg sync.WaitGroup
		results := make([]SwipeResult, 2)
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			results[0], errs[0] = f.service.Record(ctx, 1, 20, enums.SwipeDirectionRight, nil)
		}()
		go func() {
			defer wg.Done()
			results[1], errs[1] = f.service.Record(ctx, 2, 10, enums.SwipeDirectionRight, nil)
		}()
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				t.Fatalf("round %d swipe %d: %v", round, i, err)
			}
		}
		if results[0].Outcome.Matched == results[1].Outcome.Matched {
			t.Fatalf("round %d: expected exactly one swipe to observe the match, got %+v / %+v", round, results[0].Outcome, results[1].Outcome)
		}
		if got := len(f.store.Matches()); got != 1 {
			t.Fatalf("round %d: expected one match, got %d", round, got)
		}
	}
}

func TestRecordWishlistSwipeSkipsDetection(t *testing.T) {
	f := newFixture(t, Config{})
	ctx := context.Background()

	if _, err := f.service.Record(ctx, 2, 10, enums.SwipeDirectionRight, nil); err != nil {
		t.Fatalf("bob swipe: %v", err)
	}
	res, err := f.service.Record(ctx, 1, 20, enums.SwipeDirectionUp, nil)
	if err != nil {
		t.Fatalf("alice wishlist: %v", err)
	}
	if res.Outcome.Matched {
		t.Fatalf("wishlist swipe must not match")
	}
}

func TestRecordRateLimited(t *testing.T) {
	f := newFixture(t, Config{})
	f.service.rateLimiter = rateLimiterStub{allowed: false, retryAfter: 7}

	_, err := f.service.Record(context.Background(), 1, 20, enums.SwipeDirectionRight, nil)
	tooFast, ok := ratesvc.IsTooFast(err)
	if !ok {
		t.Fatalf("expected TooFastError, got %v", err)
	}
	if tooFast.RetryAfter() != 7 {
		t.Fatalf("unexpected retry after: %d", tooFast.RetryAfter())
	}
	if f.store.SwipeCount() != 0 {
		t.Fatalf("rate limited swipe must not be stored")
	}
}
