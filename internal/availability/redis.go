package availability

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/model-booking/internal/model"
)

// RedisIndex stores each model's occupied windows in a sorted set scored by
// window start, so several server instances share one index. Members are
// "<startUnix>|<endUnix>|<bookingID>". Reserve runs as a Lua script, which
// Redis executes atomically.
type RedisIndex struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisIndex(rdb *redis.Client, prefix string) *RedisIndex {
	if prefix == "" {
		prefix = "avail"
	}
	return &RedisIndex{rdb: rdb, prefix: prefix}
}

// The entry with the greatest start below our end is the only candidate
// blocker, since stored windows are disjoint.
var reserveScript = redis.NewScript(`
	local key = KEYS[1]
	local start = tonumber(ARGV[1])
	local finish = tonumber(ARGV[2])
	local member = ARGV[3]

	local prev = redis.call('ZREVRANGEBYSCORE', key, '(' .. finish, '-inf', 'LIMIT', 0, 1)
	if #prev > 0 then
		local first = string.find(prev[1], '|', 1, true)
		local second = string.find(prev[1], '|', first + 1, true)
		local prev_end = tonumber(string.sub(prev[1], first + 1, second - 1))
		if prev_end > start then
			return { 0, prev[1] }
		end
	end

	redis.call('ZADD', key, start, member)
	return { 1, member }
`)

var releaseScript = redis.NewScript(`
	local key = KEYS[1]
	local prefix = ARGV[1] .. '|' .. ARGV[2] .. '|'
	local removed = 0
	for _, m in ipairs(redis.call('ZRANGEBYSCORE', key, ARGV[1], ARGV[1])) do
		if string.sub(m, 1, #prefix) == prefix then
			redis.call('ZREM', key, m)
			removed = removed + 1
		end
	end
	return removed
`)

func (ix *RedisIndex) key(modelID string) string {
	return ix.prefix + ":" + modelID
}

func encodeMember(w model.TimeWindow, bookingID string) string {
	return fmt.Sprintf("%d|%d|%s", w.Start.Unix(), w.End.Unix(), bookingID)
}

func decodeMember(s string) (Entry, error) {
	parts := strings.SplitN(s, "|", 3)
	if len(parts) != 3 {
		return Entry{}, fmt.Errorf("availability: bad member %q", s)
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("availability: bad member %q: %w", s, err)
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("availability: bad member %q: %w", s, err)
	}
	return Entry{
		BookingID: parts[2],
		Window:    model.TimeWindow{Start: time.Unix(start, 0).UTC(), End: time.Unix(end, 0).UTC()},
	}, nil
}

func (ix *RedisIndex) Reserve(ctx context.Context, modelID string, w model.TimeWindow, bookingID string) (Token, error) {
	member := encodeMember(w, bookingID)
	vals, err := reserveScript.Run(ctx, ix.rdb, []string{ix.key(modelID)},
		w.Start.Unix(), w.End.Unix(), member).Slice()
	if err != nil {
		return Token{}, fmt.Errorf("availability: reserve: %w", err)
	}
	if len(vals) != 2 {
		return Token{}, fmt.Errorf("availability: unexpected reserve result %#v", vals)
	}
	if ok, _ := vals[0].(int64); ok != 1 {
		held, err := decodeMember(fmt.Sprint(vals[1]))
		if err != nil {
			return Token{}, err
		}
		return Token{}, &ConflictError{ModelID: modelID, Requested: w, Occupied: held.Window, HolderID: held.BookingID}
	}
	return Token{ID: uuid.NewString(), ModelID: modelID, BookingID: bookingID, Window: w}, nil
}

func (ix *RedisIndex) Release(ctx context.Context, modelID string, w model.TimeWindow) error {
	err := releaseScript.Run(ctx, ix.rdb, []string{ix.key(modelID)},
		strconv.FormatInt(w.Start.Unix(), 10), strconv.FormatInt(w.End.Unix(), 10)).Err()
	if err != nil {
		return fmt.Errorf("availability: release: %w", err)
	}
	return nil
}

func (ix *RedisIndex) Overlaps(ctx context.Context, modelID string, w model.TimeWindow) (bool, error) {
	prev, err := ix.rdb.ZRevRangeByScore(ctx, ix.key(modelID), &redis.ZRangeBy{
		Max:   "(" + strconv.FormatInt(w.End.Unix(), 10),
		Min:   "-inf",
		Count: 1,
	}).Result()
	if err != nil {
		return false, fmt.Errorf("availability: overlaps: %w", err)
	}
	if len(prev) == 0 {
		return false, nil
	}
	held, err := decodeMember(prev[0])
	if err != nil {
		return false, err
	}
	return held.Window.Overlaps(w), nil
}

func (ix *RedisIndex) Replace(ctx context.Context, modelID string, entries []Entry) error {
	entries, err := sortedDisjoint(modelID, entries)
	if err != nil {
		return err
	}
	key := ix.key(modelID)
	_, err = ix.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, key)
		if len(entries) == 0 {
			return nil
		}
		members := make([]redis.Z, 0, len(entries))
		for _, e := range entries {
			members = append(members, redis.Z{Score: float64(e.Window.Start.Unix()), Member: encodeMember(e.Window, e.BookingID)})
		}
		p.ZAdd(ctx, key, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("availability: replace: %w", err)
	}
	return nil
}
