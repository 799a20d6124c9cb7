package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// OTPStore guarda el hash del código pendiente por email, con expiración.
// Un email ausente significa que no hay código vigente.
type OTPStore interface {
	Set(email, hash string, ttl time.Duration) error
	Get(email string) (string, bool, error)
	Delete(email string) error
}

type memoryOTPEntry struct {
	hash      string
	expiresAt time.Time
}

type memoryOTPStore struct {
	mu    sync.Mutex
	items map[string]memoryOTPEntry
}

func NewMemoryOTPStore() OTPStore {
	return &memoryOTPStore{
		items: make(map[string]memoryOTPEntry),
	}
}

func (s *memoryOTPStore) Set(email, hash string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(email) == "" {
		return nil
	}
	s.items[email] = memoryOTPEntry{
		hash:      hash,
		expiresAt: time.Now().UTC().Add(ttl),
	}
	return nil
}

func (s *memoryOTPStore) Get(email string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.items[email]
	if !ok {
		return "", false, nil
	}
	if time.Now().UTC().After(entry.expiresAt) {
		delete(s.items, email)
		return "", false, nil
	}
	return entry.hash, true, nil
}

func (s *memoryOTPStore) Delete(email string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.items, email)
	return nil
}

type redisOTPStore struct {
	client redisKVGetClient
	prefix string
}

type redisKVGetClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

func NewRedisOTPStore(client *redis.Client) OTPStore {
	if client == nil {
		return nil
	}
	return &redisOTPStore{
		client: client,
		prefix: "auth:otp:",
	}
}

func (s *redisOTPStore) Set(email, hash string, ttl time.Duration) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	if ttl <= 0 {
		ttl = time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Set(ctx, s.prefix+email, hash, ttl).Err()
}

func (s *redisOTPStore) Get(email string) (string, bool, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", false, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	hash, err := s.client.Get(ctx, s.prefix+email).Result()
	if err != nil {
		if err == redis.Nil {
			return "", false, nil
		}
		return "", false, err
	}
	return hash, true, nil
}

func (s *redisOTPStore) Delete(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	return s.client.Del(ctx, s.prefix+email).Err()
}
