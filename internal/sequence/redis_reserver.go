package sequence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const reservationKeyPrefix = "sow:number:"

// RedisReserver claims numbers with SET NX so two replicas never hand out the
// same proposal. A nil client reserves nothing and reports every number free.
type RedisReserver struct {
	client *redis.Client
	ttl    time.Duration
	owner  string
}

// NewRedisReserver builds a reserver; ttl bounds how long a claim outlives an
// aborted insert.
func NewRedisReserver(client *redis.Client, ttl time.Duration) *RedisReserver {
	return &RedisReserver{client: client, ttl: ttl, owner: uuid.NewString()}
}

// Reserve reports whether this process now holds number.
func (r *RedisReserver) Reserve(ctx context.Context, number string) (bool, error) {
	if r == nil || r.client == nil {
		return true, nil
	}
	ok, err := r.client.SetNX(ctx, reservationKeyPrefix+number, r.owner, r.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("reserve number %s: %w", number, err)
	}
	return ok, nil
}
