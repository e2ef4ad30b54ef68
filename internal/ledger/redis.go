package ledger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const consumedValue = "consumed"

var _ Ledger = &Redis{}

// commitScript promotes every key still holding the reservation token to consumed.
var commitScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
	if redis.call("GET", key) ~= ARGV[1] then
		return 0
	end
end
for i, key in ipairs(KEYS) do
	redis.call("SET", key, ARGV[2])
end
return 1
`)

// releaseScript deletes only the keys still holding the reservation token.
var releaseScript = redis.NewScript(`
local n = 0
for i, key in ipairs(KEYS) do
	if redis.call("GET", key) == ARGV[1] then
		redis.call("DEL", key)
		n = n + 1
	end
end
return n
`)

// Redis is a ledger persisted in Redis. All keys of one ledger share a hash tag so
// multi-key reservations stay atomic on a cluster.
type Redis struct {
	logger *zap.Logger
	client redis.UniversalClient
	prefix string
}

// NewRedis connects to redisURL. namespace separates the ledgers of different chains.
func NewRedis(logger *zap.Logger, redisURL string, namespace string) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Error("Failed to parse Redis URL", zap.Error(err))
		return nil, err
	}
	return NewRedisWithClient(logger, redis.NewClient(opts), namespace), nil
}

func NewRedisWithClient(logger *zap.Logger, client redis.UniversalClient, namespace string) *Redis {
	return &Redis{
		logger: logger.With(zap.String("component", "RedisLedger"), zap.String("namespace", namespace)),
		client: client,
		prefix: fmt.Sprintf("circle-integration:{%s}:", namespace),
	}
}

func (r *Redis) key(k Key) string {
	return r.prefix + string(k)
}

func (r *Redis) TryConsume(ctx context.Context, key Key) error {
	ok, err := r.client.SetNX(ctx, r.key(key), consumedValue, 0).Result()
	if err != nil {
		r.logger.Error("Error consuming key in Redis", zap.String("key", string(key)), zap.Error(err))
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrAlreadyConsumed, key)
	}
	return nil
}

func (r *Redis) Reserve(ctx context.Context, keys ...Key) (Reservation, error) {
	token, err := reservationToken()
	if err != nil {
		return nil, err
	}
	pairs := make([]interface{}, 0, 2*len(keys))
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = r.key(k)
		pairs = append(pairs, full[i], token)
	}
	ok, err := r.client.MSetNX(ctx, pairs...).Result()
	if err != nil {
		r.logger.Error("Error reserving keys in Redis", zap.Strings("keys", full), zap.Error(err))
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: one of %v", ErrAlreadyConsumed, keys)
	}
	return &redisReservation{ledger: r, keys: full, token: token}, nil
}

func (r *Redis) IsConsumed(ctx context.Context, key Key) (bool, error) {
	val, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		r.logger.Debug("Error retrieving key from Redis", zap.String("key", string(key)), zap.Error(err))
		return false, err
	}
	return val == consumedValue, nil
}

type redisReservation struct {
	ledger *Redis
	keys   []string
	token  string
}

func (res *redisReservation) Commit(ctx context.Context) error {
	ok, err := commitScript.Run(ctx, res.ledger.client, res.keys, res.token, consumedValue).Int()
	if err != nil {
		res.ledger.logger.Error("Error committing reservation", zap.Strings("keys", res.keys), zap.Error(err))
		return err
	}
	if ok != 1 {
		return ErrNotReserved
	}
	return nil
}

func (res *redisReservation) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, res.ledger.client, res.keys, res.token).Int()
	if err != nil {
		res.ledger.logger.Error("Error releasing reservation", zap.Strings("keys", res.keys), zap.Error(err))
		return err
	}
	if n != len(res.keys) {
		return ErrNotReserved
	}
	return nil
}

func reservationToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return "reserved:" + hex.EncodeToString(b[:]), nil
}
