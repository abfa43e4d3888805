package secret

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "pw:secret:"
	probeKeyPrefix   = "pw:metrics:"
	probeTTL         = 2 * time.Second
)

// Storage é a persistência dos segredos.
type Storage interface {
	// Store falha com ErrAlreadyExists se o id já existir.
	Store(ctx context.Context, s Secret) error
	// Load devolve ErrNotFound para id desconhecido. Segredos OneTime são
	// removidos na leitura e só um leitor concorrente os recebe.
	Load(ctx context.Context, id string) (Secret, error)
	// Remove é idempotente.
	Remove(ctx context.Context, id string) error
}

type RedisStorage struct {
	rdb    redis.UniversalClient
	prefix string
}

type RedisOption func(*RedisStorage)

func WithKeyPrefix(p string) RedisOption {
	return func(s *RedisStorage) { s.prefix = p }
}

func NewRedisStorage(rdb redis.UniversalClient, opts ...RedisOption) *RedisStorage {
	s := &RedisStorage{rdb: rdb, prefix: DefaultKeyPrefix}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStorage) key(id string) string { return s.prefix + id }

func (s *RedisStorage) Store(ctx context.Context, sec Secret) error {
	data, err := json.Marshal(sec)
	if err != nil {
		return fmt.Errorf("encode secret: %w", err)
	}
	ok, err := s.rdb.SetNX(ctx, s.key(sec.ID), data, sec.TTL.Duration()).Result()
	if err != nil {
		return fmt.Errorf("store secret: %w", err)
	}
	if !ok {
		return ErrAlreadyExists
	}
	return nil
}

func (s *RedisStorage) Load(ctx context.Context, id string) (Secret, error) {
	key := s.key(id)
	data, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Secret{}, ErrNotFound
	}
	if err != nil {
		return Secret{}, fmt.Errorf("load secret: %w", err)
	}

	var sec Secret
	if err := json.Unmarshal(data, &sec); err != nil {
		return Secret{}, fmt.Errorf("decode secret %s: %w", id, err)
	}

	if sec.DownloadPolicy == DownloadOneTime {
		n, err := s.rdb.Del(ctx, key).Result()
		if err != nil {
			return Secret{}, fmt.Errorf("consume one-time secret: %w", err)
		}
		// outro leitor removeu primeiro
		if n == 0 {
			return Secret{}, ErrNotFound
		}
	}
	return sec, nil
}

func (s *RedisStorage) Remove(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("remove secret: %w", err)
	}
	return nil
}

// Probe grava e lê uma chave descartável e devolve a latência do ciclo.
func (s *RedisStorage) Probe(ctx context.Context) (time.Duration, error) {
	key := probeKeyPrefix + uuid.NewString()
	start := time.Now()

	if err := s.rdb.Set(ctx, key, "1", probeTTL).Err(); err != nil {
		return 0, fmt.Errorf("redis probe write: %w", err)
	}
	if err := s.rdb.Get(ctx, key).Err(); err != nil {
		return 0, fmt.Errorf("redis probe read: %w", err)
	}
	elapsed := time.Since(start)

	_ = s.rdb.Del(ctx, key).Err()
	return elapsed, nil
}
