package redisclient

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"ice-inventory/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	//go:embed scripts/set_availability.lua
	setAvailabilityScript string
	//go:embed scripts/release_lock.lua
	releaseLockScript string
)

const (
	availabilityPrefix        = "availability:"
	availabilitySizes         = "availability:sizes"
	availabilityVersionPrefix = "availability-version:"
)

// ErrIncompleteAvailability is returned when a known size has no cached
// snapshot, typically because it expired
var ErrIncompleteAvailability = errors.New("availability cache is incomplete")

type Client struct {
	rdb          *redis.Client
	setAvailable *redis.Script
	releaseLock  *redis.Script
	cacheTTL     time.Duration
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int, cacheTTL time.Duration) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:          rdb,
		setAvailable: redis.NewScript(setAvailabilityScript),
		releaseLock:  redis.NewScript(releaseLockScript),
		cacheTTL:     cacheTTL,
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// SetAvailability stores a ledger snapshot for a size unless a newer
// version was already applied. Returns false when the write was stale.
// The applied version outlives the snapshot TTL.
func (c *Client) SetAvailability(ctx context.Context, a models.Availability) (bool, error) {
	keys := []string{availabilityPrefix + a.Size, availabilitySizes, availabilityVersionPrefix + a.Size}

	result, err := c.setAvailable.Run(ctx, c.rdb, keys,
		a.Version, a.Quantity, a.Price.String(), string(a.Status), a.Size, int64(c.cacheTTL.Seconds()),
	).Result()
	if err != nil {
		return false, fmt.Errorf("set availability script failed: %w", err)
	}

	applied, ok := result.(int64)
	if !ok {
		return false, fmt.Errorf("unexpected script result type")
	}

	return applied == 1, nil
}

// GetAvailability retrieves the cached snapshot for a size
func (c *Client) GetAvailability(ctx context.Context, size string) (*models.Availability, error) {
	result, err := c.rdb.HGetAll(ctx, availabilityPrefix+size).Result()
	if err != nil {
		return nil, err
	}

	if len(result) == 0 {
		return nil, fmt.Errorf("availability not cached for size %s", size)
	}

	return parseAvailability(result)
}

// ListAvailability retrieves every cached size snapshot, ordered by size.
// It fails with ErrIncompleteAvailability when any known size has expired.
func (c *Client) ListAvailability(ctx context.Context) ([]models.Availability, error) {
	sizes, err := c.rdb.SMembers(ctx, availabilitySizes).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(sizes)

	pipe := c.rdb.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(sizes))
	for i, size := range sizes {
		cmds[i] = pipe.HGetAll(ctx, availabilityPrefix+size)
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, err
	}

	out := make([]models.Availability, 0, len(sizes))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			return nil, fmt.Errorf("%w: size %s", ErrIncompleteAvailability, sizes[i])
		}
		a, err := parseAvailability(fields)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, nil
}

func parseAvailability(fields map[string]string) (*models.Availability, error) {
	quantity, err := strconv.Atoi(fields["quantity"])
	if err != nil {
		return nil, fmt.Errorf("invalid cached quantity: %w", err)
	}
	version, err := strconv.ParseInt(fields["version"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid cached version: %w", err)
	}
	price, err := decimal.NewFromString(fields["price"])
	if err != nil {
		return nil, fmt.Errorf("invalid cached price: %w", err)
	}

	return &models.Availability{
		Size:     fields["size"],
		Quantity: quantity,
		Price:    price,
		Status:   models.StockStatus(fields["status"]),
		Version:  version,
	}, nil
}

// AcquireLock acquires a distributed lock. The returned token must be
// passed to ReleaseLock; it is empty when the lock is held elsewhere.
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	ok, err := c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), token, ttl).Result()
	if err != nil || !ok {
		return "", err
	}
	return token, nil
}

// ReleaseLock releases a distributed lock if token still owns it
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	return c.releaseLock.Run(ctx, c.rdb, []string{fmt.Sprintf("lock:%s", lockKey)}, token).Err()
}
