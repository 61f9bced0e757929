// Package memstore is an in-memory stand-in for the postgres repositories.
// It enforces the same unique keys and returns the same sentinel errors, and
// rolls back writes made inside a failed WithTx or WithSavepoint.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
)

type swipeKey struct {
	actor int64
	item  int64
}

type pairKey struct {
	user1 int64
	user2 int64
}

func newPairKey(a, b int64) pairKey {
	u1, u2 := model.CanonicalPair(a, b)
	return pairKey{user1: u1, user2: u2}
}

// memTx satisfies pgx.Tx so it can flow through the service code; none of
// the embedded methods are ever called.
type memTx struct {
	pgx.Tx
	root   *memTx
	undo   []func()
	unlock []func()
}

type Store struct {
	mu sync.Mutex

	nextID        int64
	users         map[int64]model.UserSummary
	items         map[int64]model.ItemSummary
	swipes        map[swipeKey]model.Swipe
	matches       map[model.MatchKey]model.Match
	conversations map[int64]model.Conversation
	messages      []model.Message
	blocks        map[[2]int64]string
	pairLocks     map[pairKey]*sync.Mutex
	failures      map[string]error

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:         make(map[int64]model.UserSummary),
		items:         make(map[int64]model.ItemSummary),
		swipes:        make(map[swipeKey]model.Swipe),
		matches:       make(map[model.MatchKey]model.Match),
		conversations: make(map[int64]model.Conversation),
		blocks:        make(map[[2]int64]string),
		pairLocks:     make(map[pairKey]*sync.Mutex),
		failures:      make(map[string]error),
		now:           time.Now,
	}
}

func (s *Store) SetNow(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// FailNext makes the next call of op return err. Known ops: "swipe.create",
// "match.insert", "match.link", "conversation.create", "message.create".
func (s *Store) FailNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = err
}

func (s *Store) AddUser(id int64, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = model.UserSummary{ID: id, DisplayName: displayName}
}

func (s *Store) AddItem(id, ownerUserID int64, title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[id] = model.ItemSummary{ID: id, OwnerUserID: ownerUserID, Title: title}
}

// PutSwipe stores a swipe directly, bypassing all checks.
func (s *Store) PutSwipe(swipe model.Swipe) model.Swipe {
	s.mu.Lock()
	defer s.mu.Unlock()
	if swipe.ID == 0 {
		swipe.ID = s.id()
	}
	if swipe.CreatedAt.IsZero() {
		swipe.CreatedAt = s.now().UTC()
	}
	s.swipes[swipeKey{actor: swipe.ActorUserID, item: swipe.TargetItemID}] = swipe
	return swipe
}

func (s *Store) SwipeOf(actorUserID, targetItemID int64) (model.Swipe, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	swipe, ok := s.swipes[swipeKey{actor: actorUserID, item: targetItemID}]
	return swipe, ok
}

func (s *Store) SwipeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.swipes)
}

func (s *Store) Matches() []model.Match {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Match, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Conversations() []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Conversation, 0, len(s.conversations))
	for _, c := range s.conversations {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Store) Messages() []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Message(nil), s.messages...)
}

func (s *Store) WithTx(ctx context.Context, fn func(context.Context, pgx.Tx) error) error {
	tx := &memTx{}
	tx.root = tx

	err := fn(ctx, tx)
	if err != nil {
		s.rollback(tx)
	}
	for i := len(tx.unlock) - 1; i >= 0; i-- {
		tx.unlock[i]()
	}
	return err
}

func (s *Store) WithSavepoint(ctx context.Context, parent pgx.Tx, fn func(context.Context, pgx.Tx) error) error {
	p := asTx(parent)
	child := &memTx{}
	if p != nil {
		child.root = p.root
	} else {
		child.root = child
	}

	if err := fn(ctx, child); err != nil {
		s.rollback(child)
		return err
	}
	if p != nil {
		p.undo = append(p.undo, child.undo...)
	}
	return nil
}

func (s *Store) rollback(tx *memTx) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

// record must be called with s.mu held.
func (s *Store) record(tx pgx.Tx, undo func()) {
	if t := asTx(tx); t != nil {
		t.undo = append(t.undo, undo)
	}
}

func (s *Store) fail(op string) error {
	if err, ok := s.failures[op]; ok {
		delete(s.failures, op)
		return err
	}
	return nil
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *Store) isBlocked(a, b int64) bool {
	_, ab := s.blocks[[2]int64{a, b}]
	_, ba := s.blocks[[2]int64{b, a}]
	return ab || ba
}

func asTx(tx pgx.Tx) *memTx {
	if tx == nil {
		return nil
	}
	t, _ := tx.(*memTx)
	return t
}
