package httpapi

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"emabot-go/internal/execution"
	"emabot-go/internal/record"
)

// TradeCache holds rendered /get-trades responses keyed by limit. Entries belong
// to a generation: Get reports the generation it looked in, and Set only lands in
// that generation, so a list read before an Invalidate is never served after it.
type TradeCache interface {
	Get(ctx context.Context, key string) (body []byte, gen int64, ok bool)
	Set(ctx context.Context, gen int64, key string, body []byte)
	Invalidate(ctx context.Context)
}

// InvalidateSink drops the cached lists whenever the engine persists a record,
// whichever path produced it.
func InvalidateSink(c TradeCache) execution.Sink {
	return execution.SinkFunc(func(ctx context.Context, _ record.TradeRecord) error {
		c.Invalidate(ctx)
		return nil
	})
}

const (
	tradesCacheKey    = "emabot:trades"
	tradesCacheGenKey = "emabot:trades:gen"
)

// RedisCache stores every cached list as a field of one hash, named by
// generation and limit.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

func NewRedisCache(client *redis.Client, ttl time.Duration, log zerolog.Logger) *RedisCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &RedisCache{client: client, ttl: ttl, log: log}
}

func cacheField(gen int64, key string) string {
	return strconv.FormatInt(gen, 10) + ":" + key
}

func (r *RedisCache) generation(ctx context.Context) (int64, error) {
	gen, err := r.client.Get(ctx, tradesCacheGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]byte, int64, bool) {
	gen, err := r.generation(ctx)
	if err != nil {
		r.log.Debug().Err(err).Msg("trade cache generation read failed")
		return nil, -1, false
	}
	body, err := r.client.HGet(ctx, tradesCacheKey, cacheField(gen, key)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			r.log.Debug().Err(err).Msg("trade cache read failed")
		}
		return nil, gen, false
	}
	return body, gen, true
}

func (r *RedisCache) Set(ctx context.Context, gen int64, key string, body []byte) {
	if gen < 0 {
		return
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, tradesCacheKey, cacheField(gen, key), body)
		pipe.Expire(ctx, tradesCacheKey, r.ttl)
		return nil
	})
	if err != nil {
		r.log.Debug().Err(err).Msg("trade cache write failed")
	}
}

func (r *RedisCache) Invalidate(ctx context.Context) {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, tradesCacheGenKey)
		pipe.Del(ctx, tradesCacheKey)
		return nil
	})
	if err != nil {
		r.log.Warn().Err(err).Msg("trade cache invalidation failed")
	}
}
