package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
)

// idleTTL is how long an untouched bucket survives a sweep.
const idleTTL = 10 * time.Minute

// LimiterStore hands out one token bucket per key (client IP, user id, peer
// address) and sweeps idle buckets in the background.
type LimiterStore struct {
	mu      sync.Mutex
	every   rate.Limit
	burst   int
	buckets map[string]*bucket

	stop     chan struct{}
	stopOnce sync.Once
}

type bucket struct {
	*rate.Limiter
	touched time.Time
}

// NewLimiterStore allows perMinute events per key with the given burst and
// sweeps idle keys every sweepEvery. A non-positive perMinute means 60.
func NewLimiterStore(perMinute int, burst int, sweepEvery time.Duration) *LimiterStore {
	if perMinute <= 0 {
		perMinute = 60
	}
	if burst <= 0 {
		burst = 1
	}
	s := &LimiterStore{
		every:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   burst,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go s.sweepLoop(sweepEvery)
	return s
}

func (s *LimiterStore) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case now := <-t.C:
			s.sweep(now.Add(-idleTTL))
		case <-s.stop:
			return
		}
	}
}

// sweep drops buckets not touched since cutoff and reports how many went.
func (s *LimiterStore) sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for k, b := range s.buckets {
		if b.touched.Before(cutoff) {
			delete(s.buckets, k)
			n++
		}
	}
	return n
}

// Stop ends the sweeper. Safe to call more than once.
func (s *LimiterStore) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Allow takes one token from key's bucket, creating the bucket on first use.
func (s *LimiterStore) Allow(key string) bool {
	now := time.Now()

	s.mu.Lock()
	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{Limiter: rate.NewLimiter(s.every, s.burst)}
		s.buckets[key] = b
	}
	b.touched = now
	s.mu.Unlock()

	return b.AllowN(now, 1)
}

// Len reports how many keys currently hold a bucket.
func (s *LimiterStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// RateLimit returns gin middleware that rejects requests over the limit with
// 429. key picks the bucket; an empty key falls back to the client IP.
func RateLimit(store *LimiterStore, scope string, key func(*gin.Context) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := ""
		if key != nil {
			k = key(c)
		}
		if k == "" {
			k = "ip:" + c.ClientIP()
		}
		if !store.Allow(scope + "|" + k) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate limit exceeded"})
			return
		}
		c.Next()
	}
}

// RateLimitStreamInterceptor applies the limiter to new streams on the given
// methods, keyed by remote peer address.
func RateLimitStreamInterceptor(store *LimiterStore, limitedMethods map[string]bool) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if !limitedMethods[info.FullMethod] {
			return handler(srv, ss)
		}

		key := "unknown"
		if p, ok := peer.FromContext(ss.Context()); ok && p.Addr != nil {
			key = p.Addr.String()
		}

		if !store.Allow(fmt.Sprintf("%s|peer:%s", info.FullMethod, key)) {
			return status.Errorf(codes.ResourceExhausted, "rate limit exceeded")
		}
		return handler(srv, ss)
	}
}
