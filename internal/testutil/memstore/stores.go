package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/enums"
	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
	pgrepo "github.com/ebuka-odih/nyem-sub003/internal/repo/postgres"
)

type SwipeStore struct{ s *Store }
type ItemStore struct{ s *Store }
type UserStore struct{ s *Store }
type MatchStore struct{ s *Store }
type ConversationStore struct{ s *Store }
type MessageStore struct{ s *Store }
type BlockStore struct{ s *Store }

func (s *Store) SwipeStore() *SwipeStore               { return &SwipeStore{s: s} }
func (s *Store) ItemStore() *ItemStore                 { return &ItemStore{s: s} }
func (s *Store) UserStore() *UserStore                 { return &UserStore{s: s} }
func (s *Store) MatchStore() *MatchStore               { return &MatchStore{s: s} }
func (s *Store) ConversationStore() *ConversationStore { return &ConversationStore{s: s} }
func (s *Store) MessageStore() *MessageStore           { return &MessageStore{s: s} }
func (s *Store) BlockStore() *BlockStore               { return &BlockStore{s: s} }

// LockPair blocks until the pair lock is free and holds it until the
// surrounding WithTx returns.
func (r *SwipeStore) LockPair(_ context.Context, tx pgx.Tx, userA, userB int64) error {
	t := asTx(tx)
	if t == nil {
		return nil
	}

	r.s.mu.Lock()
	key := newPairKey(userA, userB)
	lock, ok := r.s.pairLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		r.s.pairLocks[key] = lock
	}
	r.s.mu.Unlock()

	lock.Lock()
	t.root.unlock = append(t.root.unlock, lock.Unlock)
	return nil
}

func (r *SwipeStore) Get(_ context.Context, _ pgx.Tx, actorUserID, targetItemID int64) (model.Swipe, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	swipe, ok := r.s.swipes[swipeKey{actor: actorUserID, item: targetItemID}]
	if !ok {
		return model.Swipe{}, pgrepo.ErrSwipeNotFound
	}
	return swipe, nil
}

func (r *SwipeStore) Create(_ context.Context, tx pgx.Tx, swipe model.Swipe) (model.Swipe, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("swipe.create"); err != nil {
		return model.Swipe{}, err
	}

	key := swipeKey{actor: swipe.ActorUserID, item: swipe.TargetItemID}
	if _, exists := r.s.swipes[key]; exists {
		return model.Swipe{}, pgrepo.ErrSwipeExists
	}
	swipe.ID = r.s.id()
	if swipe.CreatedAt.IsZero() {
		swipe.CreatedAt = r.s.now().UTC()
	}
	r.s.swipes[key] = swipe
	r.s.record(tx, func() { delete(r.s.swipes, key) })
	return swipe, nil
}

func (r *SwipeStore) Overwrite(_ context.Context, tx pgx.Tx, swipe model.Swipe) (model.Swipe, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := swipeKey{actor: swipe.ActorUserID, item: swipe.TargetItemID}
	prev, exists := r.s.swipes[key]
	if !exists {
		return model.Swipe{}, pgrepo.ErrSwipeNotFound
	}
	swipe.ID = prev.ID
	if swipe.CreatedAt.IsZero() {
		swipe.CreatedAt = r.s.now().UTC()
	}
	r.s.swipes[key] = swipe
	r.s.record(tx, func() { r.s.swipes[key] = prev })
	return swipe, nil
}

func (r *SwipeStore) FindReciprocal(_ context.Context, _ pgx.Tx, actorUserID, itemOwnerID int64, preferItemID *int64) (model.Swipe, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	candidates := make([]model.Swipe, 0)
	for key, swipe := range r.s.swipes {
		if key.actor != actorUserID || swipe.Direction != enums.SwipeDirectionRight {
			continue
		}
		item, ok := r.s.items[key.item]
		if !ok || item.OwnerUserID != itemOwnerID {
			continue
		}
		candidates = append(candidates, swipe)
	}
	if len(candidates) == 0 {
		return model.Swipe{}, pgrepo.ErrSwipeNotFound
	}

	preferred := func(s model.Swipe) bool {
		return preferItemID != nil && s.TargetItemID == *preferItemID
	}
	sort.Slice(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if preferred(a) != preferred(b) {
			return preferred(a)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return candidates[0], nil
}

func (r *SwipeStore) DeleteExpiredWishlist(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var deleted int64
	for key, swipe := range r.s.swipes {
		if swipe.Direction != enums.SwipeDirectionUp || !swipe.CreatedAt.Before(cutoff) {
			continue
		}
		if r.s.matchedOn(swipe.ActorUserID, swipe.TargetItemID) {
			continue
		}
		delete(r.s.swipes, key)
		deleted++
	}
	return deleted, nil
}

func (s *Store) matchedOn(actorUserID, itemID int64) bool {
	for _, m := range s.matches {
		if (m.User1ID == actorUserID && m.Item2ID == itemID) || (m.User2ID == actorUserID && m.Item1ID == itemID) {
			return true
		}
	}
	return false
}

func (r *ItemStore) GetOwner(_ context.Context, _ pgx.Tx, itemID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	item, ok := r.s.items[itemID]
	if !ok {
		return 0, pgrepo.ErrItemNotFound
	}
	return item.OwnerUserID, nil
}

func (r *ItemStore) GetSummaries(_ context.Context, itemIDs []int64) (map[int64]model.ItemSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[int64]model.ItemSummary, len(itemIDs))
	for _, id := range itemIDs {
		if item, ok := r.s.items[id]; ok {
			out[id] = item
		}
	}
	return out, nil
}

func (r *UserStore) GetSummaries(_ context.Context, userIDs []int64) (map[int64]model.UserSummary, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[int64]model.UserSummary, len(userIDs))
	for _, id := range userIDs {
		if user, ok := r.s.users[id]; ok {
			out[id] = user
		}
	}
	return out, nil
}

func (r *MatchStore) Insert(_ context.Context, tx pgx.Tx, key model.MatchKey, now time.Time) (model.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("match.insert"); err != nil {
		return model.Match{}, err
	}

	if _, exists := r.s.matches[key]; exists {
		return model.Match{}, pgrepo.ErrMatchExists
	}
	m := model.Match{
		ID:        r.s.id(),
		User1ID:   key.User1ID,
		User2ID:   key.User2ID,
		Item1ID:   key.Item1ID,
		Item2ID:   key.Item2ID,
		CreatedAt: now,
	}
	r.s.matches[key] = m
	r.s.record(tx, func() { delete(r.s.matches, key) })
	return m, nil
}

func (r *MatchStore) GetByKey(_ context.Context, _ pgx.Tx, key model.MatchKey) (model.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.matches[key]
	if !ok {
		return model.Match{}, pgrepo.ErrMatchNotFound
	}
	return m, nil
}

func (r *MatchStore) FindByPair(_ context.Context, _ pgx.Tx, userA, userB int64) (model.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pair := newPairKey(userA, userB)

	var (
		found model.Match
		ok    bool
	)
	for key, m := range r.s.matches {
		if key.User1ID != pair.user1 || key.User2ID != pair.user2 {
			continue
		}
		if !ok || m.ID < found.ID {
			found, ok = m, true
		}
	}
	if !ok {
		return model.Match{}, pgrepo.ErrMatchNotFound
	}
	return found, nil
}

func (r *MatchStore) LinkConversation(_ context.Context, tx pgx.Tx, matchID, conversationID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("match.link"); err != nil {
		return err
	}

	for key, m := range r.s.matches {
		if m.ID != matchID || m.ConversationID != 0 {
			continue
		}
		prev := m
		m.ConversationID = conversationID
		r.s.matches[key] = m
		r.s.record(tx, func() {
			if _, ok := r.s.matches[key]; ok {
				r.s.matches[key] = prev
			}
		})
		return nil
	}
	return pgrepo.ErrMatchNotFound
}

func (r *MatchStore) ListForUser(_ context.Context, userID int64, limit int) ([]model.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]model.Match, 0)
	for _, m := range r.s.matches {
		if !m.Involves(userID) {
			continue
		}
		if _, blocked := r.s.blocks[[2]int64{m.Counterpart(userID), userID}]; blocked {
			continue
		}
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *ConversationStore) Create(_ context.Context, tx pgx.Tx, userA, userB int64, now time.Time) (model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("conversation.create"); err != nil {
		return model.Conversation{}, err
	}

	u1, u2 := model.CanonicalPair(userA, userB)
	c := model.Conversation{ID: r.s.id(), User1ID: u1, User2ID: u2, CreatedAt: now}
	r.s.conversations[c.ID] = c
	r.s.record(tx, func() { delete(r.s.conversations, c.ID) })
	return c, nil
}

func (r *ConversationStore) LatestByPair(_ context.Context, _ pgx.Tx, userA, userB int64) (model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pair := newPairKey(userA, userB)

	var (
		found model.Conversation
		ok    bool
	)
	for _, c := range r.s.conversations {
		if c.User1ID != pair.user1 || c.User2ID != pair.user2 {
			continue
		}
		if !ok || c.ID > found.ID {
			found, ok = c, true
		}
	}
	if !ok {
		return model.Conversation{}, pgrepo.ErrConversationNotFound
	}
	return found, nil
}

func (r *ConversationStore) Get(_ context.Context, _ pgx.Tx, conversationID int64) (model.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.conversations[conversationID]
	if !ok {
		return model.Conversation{}, pgrepo.ErrConversationNotFound
	}
	return c, nil
}

func (r *MessageStore) Create(_ context.Context, tx pgx.Tx, msg model.Message) (model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.s.fail("message.create"); err != nil {
		return model.Message{}, err
	}

	msg.ID = r.s.id()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = r.s.now().UTC()
	}
	r.s.messages = append(r.s.messages, msg)
	id := msg.ID
	r.s.record(tx, func() {
		for i := range r.s.messages {
			if r.s.messages[i].ID == id {
				r.s.messages = append(r.s.messages[:i], r.s.messages[i+1:]...)
				return
			}
		}
	})
	return msg, nil
}

func (r *MessageStore) ListByConversation(_ context.Context, conversationID, beforeID int64, limit int) ([]model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	out := make([]model.Message, 0)
	for i := len(r.s.messages) - 1; i >= 0 && len(out) < limit; i-- {
		m := r.s.messages[i]
		if m.ConversationID != conversationID {
			continue
		}
		if beforeID > 0 && m.ID >= beforeID {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func (r *BlockStore) Upsert(_ context.Context, tx pgx.Tx, actorUserID, targetUserID int64, reason string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	key := [2]int64{actorUserID, targetUserID}
	prev, existed := r.s.blocks[key]
	r.s.blocks[key] = reason
	r.s.record(tx, func() {
		if existed {
			r.s.blocks[key] = prev
			return
		}
		delete(r.s.blocks, key)
	})
	return nil
}

func (r *BlockStore) ExistsBetween(_ context.Context, _ pgx.Tx, userA, userB int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.isBlocked(userA, userB), nil
}
