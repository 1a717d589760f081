// Package redisselect stores selections in Redis sets so several processes
// can share what the operator has highlighted.
package redisselect

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dd0wney/sewertrace/pkg/network"
)

// Codec converts ids to and from set members
type Codec[K comparable] struct {
	Encode func(K) string
	Decode func(string) (K, error)
}

// Int64Codec encodes integer ids in base 10
func Int64Codec[K ~int64]() Codec[K] {
	return Codec[K]{
		Encode: func(k K) string { return strconv.FormatInt(int64(k), 10) },
		Decode: func(s string) (K, error) {
			v, err := strconv.ParseInt(s, 10, 64)
			return K(v), err
		},
	}
}

// StringCodec stores string ids verbatim
func StringCodec[K ~string]() Codec[K] {
	return Codec[K]{
		Encode: func(k K) string { return string(k) },
		Decode: func(s string) (K, error) { return K(s), nil },
	}
}

// Selection is a network.Selection backed by one Redis set
type Selection[K comparable] struct {
	client redis.Cmdable
	key    string
	codec  Codec[K]
}

// New returns a selection stored under key
func New[K comparable](client redis.Cmdable, key string, codec Codec[K]) *Selection[K] {
	return &Selection[K]{client: client, key: key, codec: codec}
}

// Key returns the Redis key of the set
func (s *Selection[K]) Key() string {
	return s.key
}

func (s *Selection[K]) Selected(ctx context.Context) (network.Set[K], error) {
	members, err := s.client.SMembers(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.key, err)
	}
	out := make(network.Set[K], len(members))
	for _, m := range members {
		id, err := s.codec.Decode(m)
		if err != nil {
			return nil, fmt.Errorf("decode member %q of %s: %w", m, s.key, err)
		}
		out.Add(id)
	}
	return out, nil
}

func (s *Selection[K]) Select(ctx context.Context, ids network.Set[K]) error {
	if len(ids) == 0 {
		return nil
	}
	return s.client.SAdd(ctx, s.key, s.members(ids)...).Err()
}

func (s *Selection[K]) Deselect(ctx context.Context, ids network.Set[K]) error {
	if len(ids) == 0 {
		return nil
	}
	return s.client.SRem(ctx, s.key, s.members(ids)...).Err()
}

func (s *Selection[K]) Clear(ctx context.Context) error {
	return s.client.Del(ctx, s.key).Err()
}

// Replace swaps the set content in a single MULTI/EXEC
func (s *Selection[K]) Replace(ctx context.Context, ids network.Set[K]) error {
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(ids) > 0 {
			pipe.SAdd(ctx, s.key, s.members(ids)...)
		}
		return nil
	})
	return err
}

func (s *Selection[K]) members(ids network.Set[K]) []any {
	out := make([]any, 0, len(ids))
	for id := range ids {
		out = append(out, s.codec.Encode(id))
	}
	return out
}

// Options configures the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// Connect opens a client and verifies it answers
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: 4,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Selections returns one Redis set per layer under prefix:<session>:<layer>
func Selections(client redis.Cmdable, prefix, session string) network.Selections {
	key := func(layer string) string {
		return prefix + ":" + session + ":" + layer
	}
	return network.Selections{
		Conduits: New(client, key("conduit"), Int64Codec[network.EdgeID]()),
		Channels: New(client, key("channel"), Int64Codec[network.EdgeID]()),
		Liaisons: New(client, key("liaison"), Int64Codec[network.LiaisonID]()),
		Entities: New(client, key("entity"), StringCodec[network.EntityID]()),
	}
}
