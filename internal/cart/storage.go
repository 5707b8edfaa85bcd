package cart

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/zerymnor-storefront/pkg/db/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Storage persists one serialized cart per session key.
type Storage interface {
	Load(ctx context.Context, key string) (string, bool, error)
	Save(ctx context.Context, key, value string) error
}

// Pinger is implemented by storages that can report readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

type redisKV interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	CartKey(sessionID string) string
	Ping(ctx context.Context) error
}

// emptyCartPayload is how an empty cart serializes.
const emptyCartPayload = "[]"

// RedisStorage keeps carts as namespaced redis strings.
type RedisStorage struct {
	client redisKV
	ttl    time.Duration
}

// NewRedisStorage builds a redis-backed storage; ttl <= 0 keeps carts forever.
func NewRedisStorage(client redisKV, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, ttl: ttl}
}

func (s *RedisStorage) Load(ctx context.Context, key string) (string, bool, error) {
	return s.client.Lookup(ctx, s.client.CartKey(key))
}

// Save writes the cart under its namespaced key. An empty cart drops the key
// instead, which reads back as an empty cart.
func (s *RedisStorage) Save(ctx context.Context, key, value string) error {
	if value == emptyCartPayload {
		return s.client.Del(ctx, s.client.CartKey(key))
	}
	ttl := s.ttl
	if ttl < 0 {
		ttl = 0
	}
	return s.client.Set(ctx, s.client.CartKey(key), value, ttl)
}

func (s *RedisStorage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// SQLStorage keeps carts in the cart_entries table.
type SQLStorage struct {
	db  *gorm.DB
	now func() time.Time
}

// NewSQLStorage builds a GORM-backed storage.
func NewSQLStorage(db *gorm.DB) *SQLStorage {
	return &SQLStorage{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *SQLStorage) Load(ctx context.Context, key string) (string, bool, error) {
	var entry models.CartEntry
	err := s.db.WithContext(ctx).Where("cart_key = ?", key).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return entry.Payload, true, nil
}

func (s *SQLStorage) Save(ctx context.Context, key, value string) error {
	entry := models.CartEntry{CartKey: key, Payload: value, UpdatedAt: s.now()}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "cart_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&entry).Error
}

func (s *SQLStorage) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// MemoryStorage keeps carts in process memory.
type MemoryStorage struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{items: map[string]string{}}
}

func (s *MemoryStorage) Load(ctx context.Context, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.items[key]
	return value, ok, nil
}

func (s *MemoryStorage) Save(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = value
	return nil
}

func (s *MemoryStorage) Ping(ctx context.Context) error {
	return nil
}
