package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultPresenceTTL = 90 * time.Second

// PresenceRepo stores how many live relay connections each user has. Keys
// expire on their own, so a crashed relay cannot leave users online forever.
type PresenceRepo struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewPresenceRepo(client *goredis.Client, ttl time.Duration) *PresenceRepo {
	if ttl <= 0 {
		ttl = defaultPresenceTTL
	}
	return &PresenceRepo{client: client, ttl: ttl}
}

func (r *PresenceRepo) SetConnections(ctx context.Context, userID int64, count int) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return fmt.Errorf("invalid user id")
	}

	key := presenceKey(userID)
	if count <= 0 {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("delete presence key: %w", err)
		}
		return nil
	}

	if err := r.client.Set(ctx, key, count, r.ttl).Err(); err != nil {
		return fmt.Errorf("set presence key: %w", err)
	}
	return nil
}

// Touch extends the expiry of every listed user that is still present.
func (r *PresenceRepo) Touch(ctx context.Context, userIDs []int64) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if len(userIDs) == 0 {
		return nil
	}

	_, err := r.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for _, userID := range userIDs {
			pipe.Expire(ctx, presenceKey(userID), r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("touch presence keys: %w", err)
	}
	return nil
}

func (r *PresenceRepo) Connections(ctx context.Context, userID int64) (int, error) {
	if r.client == nil {
		return 0, fmt.Errorf("redis client is nil")
	}
	if userID <= 0 {
		return 0, fmt.Errorf("invalid user id")
	}

	count, err := r.client.Get(ctx, presenceKey(userID)).Int()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get presence key: %w", err)
	}
	return count, nil
}

func presenceKey(userID int64) string {
	return "presence:user:" + strconv.FormatInt(userID, 10)
}
