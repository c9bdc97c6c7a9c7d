package forwardproxy

import (
	"sync"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// limiterPerAgentRPS and limiterBurst bound how often a single agent's
// credentials may pass the admission check per second, smoothing the
// 407/403 admission-check path under bursty concurrent CONNECT attempts
// rather than doing a full plan/budget query on every single request.
const (
	limiterPerAgentRPS = 20
	limiterBurst       = 40
)

// limiterSet is a lazily-populated, never-evicted map of per-agent token
// buckets. Memory cost is one limiter per agent that has ever used the
// proxy in this process's lifetime, which is bounded by the deployment's
// tenant count rather than by request volume.
type limiterSet struct {
	mu       sync.Mutex
	limiters map[uuid.UUID]*rate.Limiter
}

func newLimiterSet() *limiterSet {
	return &limiterSet{limiters: make(map[uuid.UUID]*rate.Limiter)}
}

func (s *limiterSet) allow(agentID uuid.UUID) bool {
	s.mu.Lock()
	lim, ok := s.limiters[agentID]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(limiterPerAgentRPS), limiterBurst)
		s.limiters[agentID] = lim
	}
	s.mu.Unlock()
	return lim.Allow()
}
