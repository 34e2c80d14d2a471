package rate

import (
	"context"
	"sync"
	"time"
)

// Config - параметры токен-бакета.
type Config struct {
	RequestsPerSecond int
	Burst             int
}

// Limiter is a token bucket. A zero or negative rate disables limiting.
type Limiter struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
	rate   float64
	burst  float64
	used   time.Time
	now    func() time.Time
}

func New(cfg Config) *Limiter {
	burst := cfg.Burst
	if burst <= 0 {
		burst = cfg.RequestsPerSecond
	}
	now := time.Now()
	return &Limiter{
		tokens: float64(burst),
		last:   now,
		used:   now,
		rate:   float64(cfg.RequestsPerSecond),
		burst:  float64(burst),
		now:    time.Now,
	}
}

func (l *Limiter) Allow() bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.used = now
	if l.rate <= 0 {
		return true
	}
	l.tokens += now.Sub(l.last).Seconds() * l.rate
	l.last = now
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	if l.tokens >= 1 {
		l.tokens--
		return true
	}
	return false
}

func (l *Limiter) idleSince() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.used
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	for {
		if l.Allow() {
			return nil
		}
		select {
		case <-time.After(20 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Manager держит лимитеры по ключу (IP клиента API и т.п.).
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
	defaults Config
	now      func() time.Time
}

func NewManager(defaults Config) *Manager {
	return &Manager{limiters: make(map[string]*Limiter), defaults: defaults, now: time.Now}
}

func (m *Manager) Get(key string) *Limiter {
	m.mu.RLock()
	lim, ok := m.limiters[key]
	m.mu.RUnlock()
	if ok {
		return lim
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if lim, ok := m.limiters[key]; ok {
		return lim
	}
	lim = New(m.defaults)
	m.limiters[key] = lim
	return lim
}

func (m *Manager) Allow(key string) bool { return m.Get(key).Allow() }

func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.limiters)
}

// Sweep drops limiters unused for longer than idle and returns how many went.
// A dropped key starts over with a full bucket.
func (m *Manager) Sweep(idle time.Duration) int {
	cutoff := m.now().Add(-idle)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for key, lim := range m.limiters {
		if lim.idleSince().Before(cutoff) {
			delete(m.limiters, key)
			n++
		}
	}
	return n
}

// Run sweeps every interval until ctx is done.
func (m *Manager) Run(ctx context.Context, every, idle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			m.Sweep(idle)
		}
	}
}
