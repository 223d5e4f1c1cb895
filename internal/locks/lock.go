package locks

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Redis holds short-lived advisory locks around the contended ownership
// slots. They narrow the race window between validation and commit; the
// conditional update inside the store transaction remains the authority.
type Redis struct {
	Client *redis.Client
	Logger *log.Logger
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{
		Client: client,
		Logger: log.Default(),
	}
}

// lockDuration returns the advisory lock TTL, default 30 seconds.
func (r *Redis) lockDuration() time.Duration {
	defaultDuration := 30 * time.Second

	ttlStr := os.Getenv("WORKFLOW_LOCK_TTL_SECONDS")
	if ttlStr == "" {
		return defaultDuration
	}

	ttlSec, err := strconv.Atoi(ttlStr)
	if err != nil {
		r.Logger.Println("LOCKS: Invalid WORKFLOW_LOCK_TTL_SECONDS value '" + ttlStr + "', using default 30 seconds")
		return defaultDuration
	}

	return time.Duration(ttlSec) * time.Second
}

func (r *Redis) lock(key, holder string) (bool, error) {
	return r.Client.SetNX(context.Background(), key, holder, r.lockDuration()).Result()
}

func (r *Redis) unlock(key, holder string) error {
	ctx := context.Background()
	val, err := r.Client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil // already released or expired
	}
	if err != nil {
		return err
	}
	if val == holder {
		_, err := r.Client.Del(ctx, key).Result()
		return err
	}
	return nil
}

// LockSlot guards the team-lead slot of one sub-event while a reviewer's
// approval is in flight.
func (r *Redis) LockSlot(subEventID, holder string) (bool, error) {
	return r.lock("slot_lock:"+subEventID, holder)
}

func (r *Redis) UnlockSlot(subEventID, holder string) error {
	return r.unlock("slot_lock:"+subEventID, holder)
}

// LockCredential guards a credential code while a redemption is in flight.
func (r *Redis) LockCredential(code, holder string) (bool, error) {
	return r.lock(fmt.Sprintf("credential_lock:%s", code), holder)
}

func (r *Redis) UnlockCredential(code, holder string) error {
	return r.unlock(fmt.Sprintf("credential_lock:%s", code), holder)
}
