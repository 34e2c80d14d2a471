package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	imetrics "github.com/you/swap-estimator/internal/metrics"
)

// Manager keeps live sessions by id and expires idle ones.
type Manager struct {
	run  Runner
	opts Options
	sink Callback
	ttl  time.Duration
	log  *zap.Logger

	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager: sink (может быть nil) получает каждый доставленный раунд каждой сессии.
func NewManager(run Runner, opts Options, ttl time.Duration, sink Callback, log *zap.Logger) *Manager {
	return &Manager{
		run:      run,
		opts:     opts,
		sink:     sink,
		ttl:      ttl,
		log:      log,
		now:      time.Now,
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if ok {
		s.touch()
	}
	return s, ok
}

// GetOrCreate returns the session for id, creating it on first use.
// An empty id allocates a fresh one.
func (m *Manager) GetOrCreate(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok && id != "" {
		s.touch()
		return s
	}
	s := NewSession(id, m.run, m.opts, m.sink, m.log)
	m.sessions[s.ID()] = s
	imetrics.ActiveSessions.Set(float64(len(m.sessions)))
	return s
}

func (m *Manager) Delete(id string) bool {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	if ok {
		s.Close()
		imetrics.ActiveSessions.Set(float64(n))
	}
	return ok
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep closes sessions idle for longer than the ttl and returns how many it dropped.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}
	cutoff := m.now().Add(-m.ttl)

	m.mu.Lock()
	var expired []*Session
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			expired = append(expired, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range expired {
		s.Close()
	}
	if len(expired) > 0 {
		imetrics.ActiveSessions.Set(float64(n))
		m.log.Debug("sessions expired", zap.Int("count", len(expired)), zap.Int("left", n))
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done, then closes everything.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			m.closeAll()
			return
		case <-t.C:
			m.Sweep()
		}
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	all := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()
	for _, s := range all {
		s.Close()
	}
	imetrics.ActiveSessions.Set(0)
}
