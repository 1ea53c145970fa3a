package briefs

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// SeenFilter remembers which feed items were already imported.
type SeenFilter interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}

// BloomConfig configures the RedisBloom filter
type BloomConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string
	// TTL slides forward on every insert.
	TTL time.Duration
	// Capacity and ErrorRate are passed to BF.RESERVE when the key is new.
	Capacity  int
	ErrorRate float64
}

// RedisBloom is a SeenFilter backed by the RedisBloom module.
type RedisBloom struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

// NewRedisBloom connects to Redis and reserves the filter if it does not
// exist yet.
func NewRedisBloom(ctx context.Context, cfg BloomConfig) (*RedisBloom, error) {
	if cfg.Key == "" {
		cfg.Key = "reelforge:briefs:bloom"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * 24 * time.Hour
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = 100000
	}
	if cfg.ErrorRate <= 0 {
		cfg.ErrorRate = 0.001
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	// BF.ADD auto-creates the filter with module defaults if the reserve fails.
	if n, err := client.Exists(ctx, cfg.Key).Result(); err == nil && n == 0 {
		if err := client.Do(ctx, "BF.RESERVE", cfg.Key, fmt.Sprintf("%f", cfg.ErrorRate), cfg.Capacity).Err(); err != nil {
			log.Printf("⚠️  BF.RESERVE %s failed: %v", cfg.Key, err)
		}
	}
	return &RedisBloom{client: client, key: cfg.Key, ttl: cfg.TTL}, nil
}

// Close closes the underlying Redis client
func (r *RedisBloom) Close() error {
	return r.client.Close()
}

// Seen reports whether key is (probably) in the filter.
func (r *RedisBloom) Seen(ctx context.Context, key string) (bool, error) {
	res, err := r.client.Do(ctx, "BF.EXISTS", r.key, key).Result()
	if err != nil {
		return false, err
	}
	return bloomBool(res)
}

// Mark adds key to the filter and refreshes the filter's TTL.
func (r *RedisBloom) Mark(ctx context.Context, key string) error {
	if err := r.client.Do(ctx, "BF.ADD", r.key, key).Err(); err != nil {
		return err
	}
	return r.client.Expire(ctx, r.key, r.ttl).Err()
}

func bloomBool(res interface{}) (bool, error) {
	switch v := res.(type) {
	case int64:
		return v == 1, nil
	case bool:
		return v, nil
	case string:
		return v == "1", nil
	default:
		return false, fmt.Errorf("unexpected BF.EXISTS response type %T: %v", res, res)
	}
}

// ItemKey identifies a feed item by its normalized link and title, so the
// same story reached through tracking links is recognised.
func ItemKey(link, title string) string {
	h := sha256.Sum256([]byte(normalizeURL(link) + "|" + normalizeTitle(title)))
	return hex.EncodeToString(h[:])
}

func normalizeTitle(t string) string {
	return strings.Join(strings.Fields(strings.ToLower(t)), " ")
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""

	q := u.Query()
	for k := range q {
		lk := strings.ToLower(k)
		if strings.HasPrefix(lk, "utm_") || lk == "fbclid" || lk == "gclid" {
			q.Del(k)
		}
	}
	u.RawQuery = q.Encode()
	return strings.TrimRight(u.String(), "/")
}
