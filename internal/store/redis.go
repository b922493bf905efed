package store

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/hiqty/ari/internal/apperror"
	"github.com/hiqty/ari/internal/entry"
)

// moveScript is ported near-verbatim from the original implementation's
// MOVE_ENTRY Lua body (ari/entry/redis.py): look up the pivot at the given
// index, resolve ABSOLUTE to BEFORE/AFTER relative to the entry's current
// position, then atomically LREM + LINSERT. An aid that is its own pivot
// stays where it is; an aid absent from the list fails the move instead
// of being inserted. Running as a server-side
// script avoids a TOCTOU race against concurrent writers on the same key.
var moveScript = redis.NewScript(`
local function get_index(key, value)
    local l = redis.call("LRANGE", key, 0, -1)
    for i = 1, #l do
        if l[i] == value then
            return i - 1
        end
    end
    return -1
end

local klist = KEYS[1]
local aid, index, whence = ARGV[1], tonumber(ARGV[2]), ARGV[3]

local pivot = redis.call("LINDEX", klist, index)
if not pivot then return 0 end

if whence == "absolute" then
    local current_index = get_index(klist, aid)
    if current_index == -1 then return 0 end

    if current_index > index then whence = "BEFORE"
    else                          whence = "AFTER" end
elseif whence == "before" or whence == "after" then
    whence = whence:upper()
else
    return 0
end

if pivot == aid then return 1 end
if redis.call("LREM", klist, 1, aid) == 0 then return 0 end
redis.call("LINSERT", klist, whence, pivot, aid)

return 1
`)

// shuffleScript is ported from SHUFFLE_ENTRIES (ari/entry/redis.py): a
// server-side Fisher-Yates shuffle over K:order seeded from the caller, so
// that two calls with the same seed and the same starting order produce
// the same result (spec.md §8 shuffle determinism property).
var shuffleScript = redis.NewScript(`
local function shuffle(l)
    for i = #l, 2, -1 do
        local j = math.random(i)
        l[i], l[j] = l[j], l[i]
    end
end

local klist = KEYS[1]
local seed = tonumber(ARGV[1])

math.randomseed(seed)

local aids = redis.call("LRANGE", klist, 0, -1)
if #aids == 0 then return end

shuffle(aids)
redis.call("DEL", klist)
redis.call("RPUSH", klist, unpack(aids))
`)

// addScript inserts aid at the front or back of the order list and records
// its payload, failing atomically if the aid is already present — the
// Open Question from spec.md §9 ("duplicate-aid behavior ... is not
// specified; implementers should define and test explicitly") resolved as:
// reject the add rather than silently overwriting or desynchronizing the
// order list from the info hash.
var addScript = redis.NewScript(`
local klist, khash = KEYS[1], KEYS[2]
local which, aid, payload = ARGV[1], ARGV[2], ARGV[3]

if redis.call("HEXISTS", khash, aid) == 1 then
    return 0
end

if which == "start" then
    redis.call("LPUSH", klist, aid)
else
    redis.call("RPUSH", klist, aid)
end
redis.call("HSET", khash, aid, payload)

return 1
`)

// popScript is ported from POP_ENTRY (ari/entry/redis.py): atomically pop
// one end of the order list and delete the matching info entry.
var popScript = redis.NewScript(`
local klist, khash = KEYS[1], KEYS[2]
local pop_command = ARGV[1]

local aid = redis.call(pop_command, klist)
if not aid then return false end

local info = redis.call("HGET", khash, aid)
redis.call("HDEL", khash, aid)

return {aid, info}
`)

// RedisStore is the Redis-backed Store implementation. Storage layout: two
// keys per store, "<key>:order" (a list of aid strings giving insertion
// order) and "<key>:info" (a hash from aid to the msgpack-encoded
// (eid, meta) payload).
type RedisStore struct {
	redis    redis.Cmdable
	orderKey string
	infoKey  string
}

// New builds a RedisStore rooted at key (e.g. "ari:123:queue").
func New(client redis.Cmdable, key string) *RedisStore {
	return &RedisStore{
		redis:    client,
		orderKey: key + ":order",
		infoKey:  key + ":info",
	}
}

func (s *RedisStore) Length(ctx context.Context) (int64, error) {
	n, err := s.redis.LLen(ctx, s.orderKey).Result()
	if err != nil {
		return 0, wrapTransient(err)
	}
	return n, nil
}

func (s *RedisStore) GetByIndex(ctx context.Context, index int64) (entry.Entry, bool, error) {
	aid, err := s.redis.LIndex(ctx, s.orderKey, index).Result()
	if err == redis.Nil {
		return entry.Entry{}, false, nil
	}
	if err != nil {
		return entry.Entry{}, false, wrapTransient(err)
	}
	return s.GetByAid(ctx, aid)
}

func (s *RedisStore) GetByAid(ctx context.Context, aid string) (entry.Entry, bool, error) {
	raw, err := s.redis.HGet(ctx, s.infoKey, aid).Bytes()
	if err == redis.Nil {
		return entry.Entry{}, false, nil
	}
	if err != nil {
		return entry.Entry{}, false, wrapTransient(err)
	}
	e, err := entry.DecodePayload(aid, raw)
	if err != nil {
		return entry.Entry{}, false, apperror.NewUnreachable("decode entry %s: %v", aid, err)
	}
	return e, true, nil
}

func (s *RedisStore) IndexOf(ctx context.Context, aid string) (int64, error) {
	pos, err := s.redis.LPos(ctx, s.orderKey, aid, redis.LPosArgs{}).Result()
	if err == redis.Nil {
		return 0, apperror.NewNotFound("aid %s not in store", aid)
	}
	if err != nil {
		return 0, wrapTransient(err)
	}
	return pos, nil
}

func (s *RedisStore) AddStart(ctx context.Context, e entry.Entry) error {
	return s.add(ctx, "start", e)
}

func (s *RedisStore) AddEnd(ctx context.Context, e entry.Entry) error {
	return s.add(ctx, "end", e)
}

func (s *RedisStore) add(ctx context.Context, which string, e entry.Entry) error {
	payload, err := entry.EncodePayload(e)
	if err != nil {
		return apperror.NewUnreachable("encode entry %s: %v", e.Aid, err)
	}

	res, err := addScript.Run(ctx, s.redis, []string{s.orderKey, s.infoKey}, which, e.Aid, payload).Int64()
	if err != nil {
		return wrapTransient(err)
	}
	if res == 0 {
		return apperror.NewUnreachable("duplicate aid %s added to store", e.Aid)
	}
	return nil
}

func (s *RedisStore) PopStart(ctx context.Context) (entry.Entry, bool, error) {
	return s.pop(ctx, "LPOP")
}

func (s *RedisStore) PopEnd(ctx context.Context) (entry.Entry, bool, error) {
	return s.pop(ctx, "RPOP")
}

func (s *RedisStore) pop(ctx context.Context, popCommand string) (entry.Entry, bool, error) {
	res, err := popScript.Run(ctx, s.redis, []string{s.orderKey, s.infoKey}, popCommand).Result()
	if err != nil {
		return entry.Entry{}, false, wrapTransient(err)
	}

	pair, ok := res.([]any)
	if !ok || len(pair) != 2 {
		return entry.Entry{}, false, nil
	}

	aid, _ := pair[0].(string)
	rawInfo, _ := pair[1].(string)

	e, err := entry.DecodePayload(aid, []byte(rawInfo))
	if err != nil {
		return entry.Entry{}, false, apperror.NewUnreachable("decode popped entry %s: %v", aid, err)
	}
	return e, true, nil
}

func (s *RedisStore) Remove(ctx context.Context, aid string) (bool, error) {
	pipe := s.redis.TxPipeline()
	remCmd := pipe.LRem(ctx, s.orderKey, 1, aid)
	pipe.HDel(ctx, s.infoKey, aid)
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return false, wrapTransient(err)
	}
	return remCmd.Val() > 0, nil
}

func (s *RedisStore) Move(ctx context.Context, aid string, index int64, whence Whence) (bool, error) {
	res, err := moveScript.Run(ctx, s.redis, []string{s.orderKey}, aid, index, whence.String()).Int64()
	if err != nil {
		return false, wrapTransient(err)
	}
	return res == 1, nil
}

func (s *RedisStore) Shuffle(ctx context.Context, seed *int64) error {
	var s64 int64
	if seed != nil {
		s64 = *seed
	} else {
		s64 = newShuffleSeed()
	}

	if err := shuffleScript.Run(ctx, s.redis, []string{s.orderKey}, s64).Err(); err != nil && err != redis.Nil {
		return wrapTransient(err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.orderKey, s.infoKey).Err(); err != nil {
		return wrapTransient(err)
	}
	return nil
}

func wrapTransient(err error) error {
	return apperror.NewTransientStorageWrap(err)
}
