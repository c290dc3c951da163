package cache

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss возвращается, когда ключ отсутствует или истёк.
var ErrCacheMiss = errors.New("cache miss")

// Cache — байтовый кэш с TTL. Промах — штатная ситуация, ошибки уровня
// транспорта (недоступный Redis) чтение трактует как промах на стороне
// вызывающего.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}
