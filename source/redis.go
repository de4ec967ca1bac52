package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/uyouii/optimal-stopping/common"
	"github.com/uyouii/optimal-stopping/utils"
)

const (
	DefaultRedisKey      = "picker:prices"
	DefaultSelectionKey  = "picker:selection"
	DefaultBlockTimeout  = 5 * time.Second
	DefaultPollPerSecond = 10
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// list the feed pushes prices onto (RPUSH), read with BLPOP
	Key          string
	SelectionKey string
	BlockTimeout time.Duration
	// bound on BLPOP calls per second while the list stays empty
	PollPerSecond float64
}

func (o *RedisOptions) setDefaults() {
	if o.Key == "" {
		o.Key = DefaultRedisKey
	}
	if o.SelectionKey == "" {
		o.SelectionKey = DefaultSelectionKey
	}
	if o.BlockTimeout <= 0 {
		o.BlockTimeout = DefaultBlockTimeout
	}
	if o.PollPerSecond <= 0 {
		o.PollPerSecond = DefaultPollPerSecond
	}
}

type Selection struct {
	Index int     `json:"index"`
	Price float64 `json:"price"`
}

// RedisSource pulls live prices from a redis list and writes the kept item to a key.
type RedisSource struct {
	client  *redis.Client
	opts    RedisOptions
	limiter *rate.Limiter

	fetched   int
	lastPrice float64
	committed bool
}

func NewRedisSource(ctx context.Context, opts RedisOptions) (*RedisSource, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		PoolSize:     2,
		DialTimeout:  5 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	return newRedisSource(client, opts), nil
}

func newRedisSource(client *redis.Client, opts RedisOptions) *RedisSource {
	opts.setDefaults()
	return &RedisSource{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.PollPerSecond), 1),
	}
}

// NextPrice blocks until the feed pushes a price or ctx is done.
func (r *RedisSource) NextPrice(ctx context.Context) (float64, error) {
	for {
		if err := r.limiter.Wait(ctx); err != nil {
			return 0, err
		}
		res, err := r.client.BLPop(ctx, r.opts.BlockTimeout, r.opts.Key).Result()
		if errors.Is(err, redis.Nil) {
			utils.GetLogger(ctx).Debug("price feed empty", zap.String("key", r.opts.Key),
				zap.Int("fetched", r.fetched))
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("redis blpop %s: %w", r.opts.Key, err)
		}
		// reply is [key, value]
		if len(res) != 2 {
			return 0, fmt.Errorf("blpop reply %v: %w", res, common.ErrorInvalidValue)
		}
		price, err := strconv.ParseFloat(res[1], 64)
		if err != nil || math.IsNaN(price) || math.IsInf(price, 0) {
			return 0, fmt.Errorf("price %q from %s: %w", res[1], r.opts.Key, common.ErrorInvalidValue)
		}
		r.fetched++
		r.lastPrice = price
		return price, nil
	}
}

// CommitSelection writes the last fetched item as json to the selection key.
func (r *RedisSource) CommitSelection(ctx context.Context) error {
	if r.fetched == 0 {
		return fmt.Errorf("no item fetched yet: %w", common.ErrorInvalidValue)
	}
	if r.committed {
		return common.ErrorAlreadyCommitted
	}
	payload, err := json.Marshal(Selection{Index: r.fetched - 1, Price: r.lastPrice})
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.opts.SelectionKey, string(payload), 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", r.opts.SelectionKey, err)
	}
	r.committed = true
	return nil
}

func (r *RedisSource) Close() error {
	return r.client.Close()
}
