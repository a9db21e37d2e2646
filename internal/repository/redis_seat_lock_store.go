package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/bus-pos/internal/model"
)

// RedisSeatLockStore keeps seat leases in Redis hashes keyed by trip and
// seat.  Acquire and Release run as Lua scripts so the holder comparison
// and the write happen atomically on the server.  Keys also carry a
// PEXPIREAT so Redis evicts stale leases by itself.
type RedisSeatLockStore struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisSeatLockStore returns a store writing keys under prefix
// ("seatlock" when empty).
func NewRedisSeatLockStore(rdb *redis.Client, prefix string) *RedisSeatLockStore {
	if prefix == "" {
		prefix = "seatlock"
	}
	return &RedisSeatLockStore{rdb: rdb, prefix: prefix}
}

var acquireScript = redis.NewScript(`
    local holder = redis.call('HGET', KEYS[1], 'holder')
    local exp = tonumber(redis.call('HGET', KEYS[1], 'expires_at') or '0')
    local now = tonumber(ARGV[2])
    if holder and holder ~= ARGV[1] and exp > now then
        return { 0, holder, redis.call('HGET', KEYS[1], 'locked_at'), redis.call('HGET', KEYS[1], 'expires_at') }
    end
    redis.call('HSET', KEYS[1], 'holder', ARGV[1], 'locked_at', ARGV[2], 'expires_at', ARGV[3])
    redis.call('PEXPIREAT', KEYS[1], ARGV[3])
    return { 1, ARGV[1], ARGV[2], ARGV[3] }
`)

var releaseScript = redis.NewScript(`
    if redis.call('HGET', KEYS[1], 'holder') == ARGV[1] then
        return redis.call('DEL', KEYS[1])
    end
    return 0
`)

func (s *RedisSeatLockStore) key(tripID, seatID string) string {
	return s.prefix + ":" + tripID + ":" + seatID
}

// Acquire implements SeatLockStore.
func (s *RedisSeatLockStore) Acquire(ctx context.Context, lock model.SeatLock) (model.SeatLock, error) {
	vals, err := acquireScript.Run(ctx, s.rdb,
		[]string{s.key(lock.TripID, lock.SeatID)},
		lock.HolderID, lock.LockedAt.UnixMilli(), lock.ExpiresAt.UnixMilli(),
	).Slice()
	if err != nil {
		return model.SeatLock{}, err
	}
	if len(vals) != 4 {
		return model.SeatLock{}, fmt.Errorf("seat lock script: unexpected result %#v", vals)
	}
	cur := model.SeatLock{
		TripID:    lock.TripID,
		SeatID:    lock.SeatID,
		HolderID:  fmt.Sprint(vals[1]),
		LockedAt:  msToTime(vals[2]),
		ExpiresAt: msToTime(vals[3]),
	}
	if n, _ := vals[0].(int64); n != 1 {
		return cur, ErrLocked
	}
	return lock, nil
}

// Release implements SeatLockStore.
func (s *RedisSeatLockStore) Release(ctx context.Context, tripID, seatID, holderID string) (bool, error) {
	n, err := releaseScript.Run(ctx, s.rdb, []string{s.key(tripID, seatID)}, holderID).Int64()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReleaseAny implements SeatLockStore.
func (s *RedisSeatLockStore) ReleaseAny(ctx context.Context, tripID, seatID string) (bool, error) {
	n, err := s.rdb.Del(ctx, s.key(tripID, seatID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// FindActive implements SeatLockStore.
func (s *RedisSeatLockStore) FindActive(ctx context.Context, tripID, seatID string, now time.Time) (*model.SeatLock, error) {
	vals, err := s.rdb.HMGet(ctx, s.key(tripID, seatID), "holder", "locked_at", "expires_at").Result()
	if err != nil {
		return nil, err
	}
	if len(vals) != 3 || vals[0] == nil {
		return nil, nil
	}
	l := model.SeatLock{
		TripID:    tripID,
		SeatID:    seatID,
		HolderID:  fmt.Sprint(vals[0]),
		LockedAt:  msToTime(vals[1]),
		ExpiresAt: msToTime(vals[2]),
	}
	if !l.ActiveAt(now) {
		return nil, nil
	}
	return &l, nil
}

// DeleteExpired is a no-op: Redis expires lease keys on its own.
func (s *RedisSeatLockStore) DeleteExpired(context.Context, time.Time) (int64, error) {
	return 0, nil
}

func msToTime(v any) time.Time {
	var ms int64
	switch t := v.(type) {
	case int64:
		ms = t
	case string:
		ms, _ = strconv.ParseInt(t, 10, 64)
	}
	return time.UnixMilli(ms).UTC()
}
