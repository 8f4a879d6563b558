// Package presence tracks which users are online in Redis: a set of user
// ids plus a per-user username key with a TTL. The set entry has no TTL of
// its own, so the two can drift; List heals the drift lazily at read time.
package presence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	onlineSetKey  = "presence:online_users"
	userKeyPrefix = "presence:user:"
)

// OnlineUser is one entry of the online listing.
type OnlineUser struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

// Tracker is the Redis-backed presence registry.
//
// The username TTL is independent of connection lifetime: a connection idle
// for longer than the TTL drops out of List until the user reconnects, even
// though it is still registered. That gap is accepted; presence is a cache,
// not a source of truth.
type Tracker struct {
	rdb *redis.Client
	ttl time.Duration
}

// New creates a tracker. ttl <= 0 falls back to one hour.
func New(rdb *redis.Client, ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Tracker{rdb: rdb, ttl: ttl}
}

// Add marks a user as online. Idempotent upsert.
func (t *Tracker) Add(ctx context.Context, userID uuid.UUID, username string) error {
	if err := t.rdb.SAdd(ctx, onlineSetKey, userID.String()).Err(); err != nil {
		return fmt.Errorf("add to online set: %w", err)
	}
	if err := t.rdb.Set(ctx, userKeyPrefix+userID.String(), username, t.ttl).Err(); err != nil {
		return fmt.Errorf("store username: %w", err)
	}
	return nil
}

// Remove marks a user as offline. Idempotent on missing entries.
func (t *Tracker) Remove(ctx context.Context, userID uuid.UUID) error {
	if err := t.rdb.SRem(ctx, onlineSetKey, userID.String()).Err(); err != nil {
		return fmt.Errorf("remove from online set: %w", err)
	}
	if err := t.rdb.Del(ctx, userKeyPrefix+userID.String()).Err(); err != nil {
		return fmt.Errorf("delete username: %w", err)
	}
	return nil
}

// List enumerates online users. Set members whose username key has expired
// are evicted from the set and excluded from the result.
func (t *Tracker) List(ctx context.Context) ([]OnlineUser, error) {
	members, err := t.rdb.SMembers(ctx, onlineSetKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list online set: %w", err)
	}

	users := make([]OnlineUser, 0, len(members))
	for _, member := range members {
		id, err := uuid.Parse(member)
		if err != nil {
			// Unparseable members are garbage; drop them.
			_ = t.rdb.SRem(ctx, onlineSetKey, member).Err()
			continue
		}

		username, err := t.rdb.Get(ctx, userKeyPrefix+member).Result()
		if errors.Is(err, redis.Nil) {
			if remErr := t.rdb.SRem(ctx, onlineSetKey, member).Err(); remErr != nil {
				return nil, fmt.Errorf("evict stale member: %w", remErr)
			}
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load username: %w", err)
		}

		users = append(users, OnlineUser{ID: id, Username: username})
	}

	return users, nil
}

// IsOnline reports whether the user is in the online set.
func (t *Tracker) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	online, err := t.rdb.SIsMember(ctx, onlineSetKey, userID.String()).Result()
	if err != nil {
		return false, fmt.Errorf("check online set: %w", err)
	}
	return online, nil
}
