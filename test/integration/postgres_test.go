//go:build integration

package integration_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/ebuka-odih/nyem-sub003/internal/domain/enums"
	"github.com/ebuka-odih/nyem-sub003/internal/domain/model"
	"github.com/ebuka-odih/nyem-sub003/internal/jobs/cleanup"
	pgrepo "github.com/ebuka-odih/nyem-sub003/internal/repo/postgres"
	matchsvc "github.com/ebuka-odih/nyem-sub003/internal/services/matches"
	messagesvc "github.com/ebuka-odih/nyem-sub003/internal/services/messages"
	swipesvc "github.com/ebuka-odih/nyem-sub003/internal/services/swipes"
)

type pgFixture struct {
	pool     *pgxpool.Pool
	swipes   *swipesvc.Service
	messages *messagesvc.Service
}

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("swap"),
		postgres.WithUsername("swap"),
		postgres.WithPassword("password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		assert.NoError(t, container.Terminate(context.Background()))
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgrepo.NewPool(ctx, pgrepo.PoolConfig{DSN: dsn, MaxConns: 20})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, pgrepo.ApplySchema(ctx, pool))
	return pool
}

func newPGFixture(t *testing.T, matchCfg matchsvc.DetectorConfig) pgFixture {
	t.Helper()
	pool := startPostgres(t)

	_, err := pool.Exec(context.Background(), `
		INSERT INTO users (id, display_name) VALUES (1, 'alice'), (2, 'bob'), (3, 'carol');
		INSERT INTO items (id, owner_user_id, title) VALUES
			(10, 1, 'bike'), (11, 1, 'lamp'), (20, 2, 'guitar'), (21, 2, 'drum'), (30, 3, 'kettle');
	`)
	require.NoError(t, err, "seed users and items")

	tx := pgrepo.NewTransactor(pool)
	swipeRepo := pgrepo.NewSwipeRepo(pool)
	blockRepo := pgrepo.NewBlockRepo(pool)
	conversationRepo := pgrepo.NewConversationRepo(pool)

	detector := matchsvc.NewDetector(matchsvc.DetectorDependencies{
		Swipes:        swipeRepo,
		Matches:       pgrepo.NewMatchRepo(pool),
		Conversations: conversationRepo,
	}, matchCfg)

	return pgFixture{
		pool: pool,
		swipes: swipesvc.NewService(swipesvc.Dependencies{
			Tx:       tx,
			Items:    pgrepo.NewItemRepo(pool),
			Blocks:   blockRepo,
			Swipes:   swipeRepo,
			Detector: detector,
		}, swipesvc.Config{ConflictPolicy: enums.SwipeConflictReject}),
		messages: messagesvc.NewService(messagesvc.Dependencies{
			Tx:            tx,
			Conversations: conversationRepo,
			Messages:      pgrepo.NewMessageRepo(pool),
			Blocks:        blockRepo,
		}, messagesvc.Config{}),
	}
}

func (f pgFixture) count(t *testing.T, query string) int {
	t.Helper()
	var n int
	require.NoError(t, f.pool.QueryRow(context.Background(), query).Scan(&n))
	return n
}

func TestPostgresReciprocalSwipesMatchOnce(t *testing.T) {
	f := newPGFixture(t, matchsvc.DetectorConfig{OnePerPair: true})
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		_, err := f.pool.Exec(ctx, `TRUNCATE matches, conversations, swipes RESTART IDENTITY CASCADE`)
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make([]swipesvc.SwipeResult, 2)
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			results[0], errs[0] = f.swipes.Record(ctx, 1, 20, enums.SwipeDirectionRight, nil)
		}()
		go func() {
			defer wg.Done()
			results[1], errs[1] = f.swipes.Record(ctx, 2, 10, enums.SwipeDirectionRight, nil)
		}()
		wg.Wait()

		require.NoError(t, errs[0])
		require.NoError(t, errs[1])
		created := 0
		for _, r := range results {
			if r.Outcome.Created {
				created++
			}
		}
		assert.Equal(t, 1, created, "round %d: exactly one swipe creates the match", round)
		assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM matches`), "round %d", round)
		assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM conversations`), "round %d", round)
	}
}

func TestPostgresMatchIsCanonical(t *testing.T) {
	f := newPGFixture(t, matchsvc.DetectorConfig{OnePerPair: true})
	ctx := context.Background()

	_, err := f.swipes.Record(ctx, 2, 11, enums.SwipeDirectionRight, nil)
	require.NoError(t, err)
	result, err := f.swipes.Record(ctx, 1, 21, enums.SwipeDirectionRight, nil)
	require.NoError(t, err)
	require.True(t, result.Outcome.Created)

	match := result.Outcome.Match
	assert.Equal(t, model.Match{
		ID:             match.ID,
		User1ID:        1,
		User2ID:        2,
		Item1ID:        11,
		Item2ID:        21,
		ConversationID: result.Outcome.Conversation.ID,
		CreatedAt:      match.CreatedAt,
	}, match)

	_, err = f.swipes.Record(ctx, 1, 21, enums.SwipeDirectionLeft, nil)
	assert.ErrorIs(t, err, swipesvc.ErrDuplicateSwipe)
}

func TestPostgresMessagesAndBlocks(t *testing.T) {
	f := newPGFixture(t, matchsvc.DetectorConfig{OnePerPair: true})
	ctx := context.Background()

	_, err := f.swipes.Record(ctx, 1, 20, enums.SwipeDirectionRight, nil)
	require.NoError(t, err)
	result, err := f.swipes.Record(ctx, 2, 10, enums.SwipeDirectionRight, nil)
	require.NoError(t, err)
	convID := result.Outcome.Conversation.ID
	require.Positive(t, convID)

	msg, err := f.messages.Send(ctx, 1, convID, "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Text)
	assert.EqualValues(t, 2, msg.ReceiverID)

	_, err = f.messages.Send(ctx, 3, convID, "hi")
	assert.ErrorIs(t, err, messagesvc.ErrForbidden)

	_, err = f.pool.Exec(ctx, `INSERT INTO blocks (actor_user_id, target_user_id) VALUES (2, 1)`)
	require.NoError(t, err)
	_, err = f.messages.Send(ctx, 1, convID, "still there?")
	assert.ErrorIs(t, err, messagesvc.ErrForbidden)

	page, err := f.messages.List(ctx, 2, convID, 0, 10)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, msg.ID, page[0].ID)
}

func TestPostgresWishlistCleanup(t *testing.T) {
	f := newPGFixture(t, matchsvc.DetectorConfig{OnePerPair: true})
	ctx := context.Background()

	_, err := f.pool.Exec(ctx, `
		INSERT INTO swipes (actor_user_id, target_item_id, direction, created_at) VALUES
			(1, 20, 'up', NOW() - INTERVAL '25 hours'),
			(1, 30, 'up', NOW() - INTERVAL '1 hour'),
			(2, 30, 'up', NOW() - INTERVAL '30 hours'),
			(3, 10, 'right', NOW() - INTERVAL '30 hours');
	`)
	require.NoError(t, err)

	job := cleanup.New(pgrepo.NewSwipeRepo(f.pool), 24*time.Hour, nil)
	require.NoError(t, job.Run(ctx))

	assert.Equal(t, 0, f.count(t, `SELECT COUNT(*) FROM swipes WHERE direction = 'up' AND created_at < NOW() - INTERVAL '24 hours'`))
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM swipes WHERE direction = 'up'`))
	assert.Equal(t, 1, f.count(t, `SELECT COUNT(*) FROM swipes WHERE direction = 'right'`))
}
