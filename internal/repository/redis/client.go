package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const presencePrefix = "presence:"

// DefaultPresenceTTL bounds how long a crashed server leaves identities
// marked online.
const DefaultPresenceTTL = 2 * time.Minute

// NewClient connects and pings the server.
func NewClient(ctx context.Context, addr, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       0,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

// PresenceStore mirrors connected identities into Redis so other processes
// can see who is online.
type PresenceStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPresenceStore(client *redis.Client, ttl time.Duration) *PresenceStore {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &PresenceStore{client: client, ttl: ttl}
}

func presenceKey(identity string) string {
	return presencePrefix + identity
}

func (p *PresenceStore) MarkOnline(ctx context.Context, identity string) error {
	return p.client.Set(ctx, presenceKey(identity), time.Now().Unix(), p.ttl).Err()
}

func (p *PresenceStore) MarkOffline(ctx context.Context, identity string) error {
	return p.client.Del(ctx, presenceKey(identity)).Err()
}

func (p *PresenceStore) IsOnline(ctx context.Context, identity string) (bool, error) {
	n, err := p.client.Exists(ctx, presenceKey(identity)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Refresh extends the TTL of every listed identity in one round trip.
func (p *PresenceStore) Refresh(ctx context.Context, identities []string) error {
	if len(identities) == 0 {
		return nil
	}
	now := time.Now().Unix()
	_, err := p.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, identity := range identities {
			pipe.Set(ctx, presenceKey(identity), now, p.ttl)
		}
		return nil
	})
	return err
}
