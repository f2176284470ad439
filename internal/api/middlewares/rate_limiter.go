package middlewares

import (
	"log"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/5w1tchy/local-library/internal/api/apperr"
)

// --------- Key helpers ---------

type KeyFunc func(r *http.Request) string

// PerIPKey buckets clients by address.
func PerIPKey(prefix string) KeyFunc {
	return func(r *http.Request) string {
		ip := clientIP(r)
		if ip == "" {
			ip = "unknown"
		}
		return prefix + ":" + ip
	}
}

func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xrip := r.Header.Get("X-Real-IP"); xrip != "" {
		return xrip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		return host
	}
	return r.RemoteAddr
}

func limitHeaders(w http.ResponseWriter, policy string, limit, remaining int) {
	w.Header().Set("X-RateLimit-Policy", policy)
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(max(0, remaining)))
}

func tooMany(w http.ResponseWriter, r *http.Request, tag, key string, retry time.Duration) {
	sec := int64(math.Ceil(retry.Seconds()))
	if sec < 1 {
		sec = 1
	}
	w.Header().Set("Retry-After", strconv.FormatInt(sec, 10))
	log.Printf("[%s] Blocked request from %s (key=%s). Retry after %ds\n", tag, r.RemoteAddr, key, sec)
	apperr.Write(w, r, apperr.Problem{
		Status:    http.StatusTooManyRequests,
		Title:     "Too Many Requests",
		Detail:    "rate limit exceeded",
		Retryable: true,
	})
}

// --------- Token Bucket (Redis + Lua) ---------

const tokenBucketLua = `
-- KEYS[1] = bucket key (hash with fields: tokens, ts)
-- ARGV[1] = ratePerS (float)
-- ARGV[2] = capacity (int)
-- Returns: {allowed (1/0), remaining_tokens (int), retry_after_ms (int)}
local key   = KEYS[1]
local rate  = tonumber(ARGV[1])
local cap   = tonumber(ARGV[2])

local t = redis.call('TIME')
local now_ms = (tonumber(t[1]) * 1000) + math.floor(tonumber(t[2]) / 1000)

local data = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(data[1])
local ts     = tonumber(data[2])

if tokens == nil then
  tokens = cap
  ts = now_ms
end

local delta_ms = now_ms - ts
if delta_ms > 0 then
  tokens = math.min(cap, tokens + (delta_ms / 1000.0) * rate)
end

local allowed = 0
local retry_after_ms = 0

if tokens >= 1.0 then
  tokens = tokens - 1.0
  allowed = 1
else
  retry_after_ms = math.ceil((1.0 - tokens) * 1000.0 / rate)
end

redis.call('HSET', key, 'tokens', tokens, 'ts', now_ms)
redis.call('PEXPIRE', key, math.ceil((cap / rate) * 1000.0))

return {allowed, math.floor(tokens), retry_after_ms}
`

// RedisTokenBucket allows bursts of limit requests refilled evenly over window.
type RedisTokenBucket struct {
	rdb      redis.Scripter
	keyFn    KeyFunc
	ratePerS float64
	burst    int
	script   *redis.Script
}

func NewRedisTokenBucket(rdb redis.Scripter, limit int, window time.Duration, keyFn KeyFunc) *RedisTokenBucket {
	return &RedisTokenBucket{
		rdb:      rdb,
		keyFn:    keyFn,
		ratePerS: float64(limit) / window.Seconds(),
		burst:    limit,
		script:   redis.NewScript(tokenBucketLua),
	}
}

func (tb *RedisTokenBucket) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := tb.keyFn(r)
		res, err := tb.script.Run(r.Context(), tb.rdb, []string{key},
			strconv.FormatFloat(tb.ratePerS, 'f', -1, 64),
			strconv.Itoa(tb.burst),
		).Int64Slice()
		if err != nil || len(res) != 3 {
			log.Printf("[TokenBucket] Redis error: %v (allowing request)\n", err)
			next.ServeHTTP(w, r)
			return
		}

		limitHeaders(w, "token-bucket", tb.burst, int(res[1]))
		if res[0] != 1 {
			tooMany(w, r, "TokenBucket", key, time.Duration(res[2])*time.Millisecond)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --------- Sliding Window (Redis ZSET) ---------

// RedisSlidingWindow admits at most limit requests in any trailing window.
type RedisSlidingWindow struct {
	rdb    redis.Cmdable
	keyFn  KeyFunc
	limit  int
	window time.Duration
}

func NewRedisSlidingWindow(rdb redis.Cmdable, limit int, window time.Duration, keyFn KeyFunc) *RedisSlidingWindow {
	return &RedisSlidingWindow{rdb: rdb, keyFn: keyFn, limit: limit, window: window}
}

func (sw *RedisSlidingWindow) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		now := time.Now()
		key := sw.keyFn(r)
		windowMs := sw.window.Milliseconds()

		pipe := sw.rdb.TxPipeline()
		pipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixMilli()), Member: strconv.FormatInt(now.UnixNano(), 36)})
		pipe.ZRemRangeByScore(ctx, key, "0", strconv.FormatInt(now.UnixMilli()-windowMs, 10))
		countCmd := pipe.ZCard(ctx, key)
		oldestCmd := pipe.ZRangeWithScores(ctx, key, 0, 0)
		pipe.PExpire(ctx, key, sw.window+time.Second)
		if _, err := pipe.Exec(ctx); err != nil {
			log.Printf("[SlidingWindow] Redis error: %v (allowing request)\n", err)
			next.ServeHTTP(w, r)
			return
		}
		count := int(countCmd.Val())

		limitHeaders(w, "sliding-window", sw.limit, sw.limit-count)
		if count > sw.limit {
			retry := time.Second
			if oldest := oldestCmd.Val(); len(oldest) == 1 {
				retry = time.Duration(int64(oldest[0].Score)+windowMs-now.UnixMilli()) * time.Millisecond
			}
			tooMany(w, r, "SlidingWindow", key, retry)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// --------- In-process fallback ---------

// LocalLimiter is a per-key token bucket kept in memory, used when no Redis
// is configured. Limits are per process, not per deployment.
type LocalLimiter struct {
	keyFn  KeyFunc
	limit  int
	every  rate.Limit
	window time.Duration

	mu      sync.Mutex
	buckets map[string]*localBucket
	swept   time.Time
}

type localBucket struct {
	lim  *rate.Limiter
	seen time.Time
}

func NewLocalLimiter(limit int, window time.Duration, keyFn KeyFunc) *LocalLimiter {
	return &LocalLimiter{
		keyFn:   keyFn,
		limit:   limit,
		every:   rate.Every(window / time.Duration(limit)),
		window:  window,
		buckets: map[string]*localBucket{},
		swept:   time.Now(),
	}
}

func (l *LocalLimiter) bucket(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	// idle buckets are full again after one window, so dropping them is lossless
	if now.Sub(l.swept) > l.window {
		for k, b := range l.buckets {
			if now.Sub(b.seen) > l.window {
				delete(l.buckets, k)
			}
		}
		l.swept = now
	}
	b, ok := l.buckets[key]
	if !ok {
		b = &localBucket{lim: rate.NewLimiter(l.every, l.limit)}
		l.buckets[key] = b
	}
	b.seen = now
	return b.lim
}

func (l *LocalLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := l.keyFn(r)
		now := time.Now()
		lim := l.bucket(key, now)

		res := lim.ReserveN(now, 1)
		delay := res.DelayFrom(now)
		if delay > 0 {
			res.CancelAt(now)
			limitHeaders(w, "token-bucket-local", l.limit, 0)
			tooMany(w, r, "RateLimit", key, delay)
			return
		}
		limitHeaders(w, "token-bucket-local", l.limit, int(lim.TokensAt(now)))
		next.ServeHTTP(w, r)
	})
}
