package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

const keySubmitLock = "marketplace:create:lock:%s:%s:%s"

// Deletes the lock only while it still carries the caller's token, so a
// create that outlived its TTL cannot free a newer submit.
const submitUnlockScript = `
local held = redis.call("GET", KEYS[1])
if held and held == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	errSubmitLockUnset = errors.New("submit_lock_unconfigured")
	errSubmitKeyEmpty  = errors.New("submit_lock_key_empty")
)

// submitLock marks one create per (merchant, requester, kind) as in flight.
type submitLock struct {
	client *redis.Client
	unlock *redis.Script
	ttl    time.Duration
}

func newSubmitLock(client *redis.Client, ttl time.Duration) (*submitLock, error) {
	if client == nil {
		return nil, errSubmitLockUnset
	}
	if ttl <= 0 {
		return nil, errors.New("create lock ttl must be positive")
	}
	return &submitLock{
		client: client,
		unlock: redis.NewScript(submitUnlockScript),
		ttl:    ttl,
	}, nil
}

func submitKey(merchantID, requesterID, kind string) string {
	return fmt.Sprintf(
		keySubmitLock,
		strings.TrimSpace(merchantID),
		strings.TrimSpace(requesterID),
		strings.TrimSpace(kind),
	)
}

// acquire returns the token that must be handed back to release. ok is false
// when a create for the same key is still running.
func (l *submitLock) acquire(ctx context.Context, key string) (token string, ok bool, err error) {
	if l == nil || l.client == nil {
		return "", false, errSubmitLockUnset
	}
	if key == "" {
		return "", false, errSubmitKeyEmpty
	}
	token = uuid.NewString()
	ok, err = l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *submitLock) release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	return l.unlock.Run(ctx, l.client, []string{key}, token).Err()
}
