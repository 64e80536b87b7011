package adapter

import (
	"context"
	"errors"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const (
	idempotencyKeyPrefix = "fulfillment:idem:"
	inFlightMarker       = "0"
)

// IdempotencyRedisAdapter 是 port.IdempotencyStore 的 Redis 实现。
// 占位用 SETNX 写入 "0"，下单成功后改写为订单号，两者共用同一个 TTL。
type IdempotencyRedisAdapter struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewIdempotencyRedisAdapter(client redis.Cmdable, ttl time.Duration) *IdempotencyRedisAdapter {
	return &IdempotencyRedisAdapter{client: client, ttl: ttl}
}

func (a *IdempotencyRedisAdapter) Reserve(ctx context.Context, key string) (int64, bool, error) {
	k := idempotencyKeyPrefix + key
	ok, err := a.client.SetNX(ctx, k, inFlightMarker, a.ttl).Result()
	if err != nil {
		return 0, false, pkgerrors.Wrap(err, "reserve idempotency key")
	}
	if ok {
		return 0, true, nil
	}

	val, err := a.client.Get(ctx, k).Result()
	if errors.Is(err, redis.Nil) {
		// 在 SETNX 和 GET 之间过期了，重新占位
		return a.Reserve(ctx, key)
	}
	if err != nil {
		return 0, false, pkgerrors.Wrap(err, "read idempotency key")
	}
	orderID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, false, pkgerrors.Wrapf(err, "corrupt idempotency value %q", val)
	}
	return orderID, false, nil
}

func (a *IdempotencyRedisAdapter) Complete(ctx context.Context, key string, orderID int64) error {
	err := a.client.Set(ctx, idempotencyKeyPrefix+key, strconv.FormatInt(orderID, 10), a.ttl).Err()
	return pkgerrors.Wrap(err, "complete idempotency key")
}

func (a *IdempotencyRedisAdapter) Release(ctx context.Context, key string) error {
	return pkgerrors.Wrap(a.client.Del(ctx, idempotencyKeyPrefix+key).Err(), "release idempotency key")
}
