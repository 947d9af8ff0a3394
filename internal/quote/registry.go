package quote

import (
	"sync"
	"time"

	"github.com/richxcame/trip-quote/pkg/logger"
	"go.uber.org/zap"
)

// RegistryConfig bounds how much session state is kept
type RegistryConfig struct {
	// IdleTTL drops sessions untouched for this long
	IdleTTL time.Duration
	// MaxSessions evicts the least recently used session when exceeded
	MaxSessions int
	// SweepInterval is how often idle sessions are dropped
	SweepInterval time.Duration
}

// DefaultRegistryConfig returns sensible defaults.
func DefaultRegistryConfig() RegistryConfig {
	return RegistryConfig{
		IdleTTL:       30 * time.Minute,
		MaxSessions:   10000,
		SweepInterval: time.Minute,
	}
}

type session struct {
	service  *Service
	lastSeen time.Time
}

// Registry hands each session its own pipeline state
type Registry struct {
	deps     Dependencies
	cfg      RegistryConfig
	mu       sync.Mutex
	sessions map[string]*session
	now      func() time.Time
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRegistry creates a registry. Call Start to sweep idle sessions in the background.
func NewRegistry(deps Dependencies, cfg RegistryConfig) *Registry {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRegistryConfig().IdleTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultRegistryConfig().SweepInterval
	}

	return &Registry{
		deps:     deps,
		cfg:      cfg,
		sessions: make(map[string]*session),
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Session returns the pipeline for id, creating it on first use
func (r *Registry) Session(id string) *Service {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if s, ok := r.sessions[id]; ok {
		s.lastSeen = now
		return s.service
	}

	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		r.evictOldestLocked()
	}

	svc := NewService(r.deps)
	r.sessions[id] = &session{service: svc, lastSeen: now}
	quoteSessionsActive.Set(float64(len(r.sessions)))
	return svc
}

// Lookup returns the pipeline for id without creating one
func (r *Registry) Lookup(id string) (*Service, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	s.lastSeen = r.now()
	return s.service, true
}

// Remove forgets a session
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.sessions, id)
	quoteSessionsActive.Set(float64(len(r.sessions)))
	r.mu.Unlock()
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep drops sessions idle for longer than IdleTTL and returns how many went
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-r.cfg.IdleTTL)
	removed := 0
	for id, s := range r.sessions {
		if s.lastSeen.Before(cutoff) {
			delete(r.sessions, id)
			removed++
		}
	}
	quoteSessionsActive.Set(float64(len(r.sessions)))
	return removed
}

// Start runs the idle sweep until Stop is called
func (r *Registry) Start() {
	go r.sweepLoop()
}

// Stop ends the sweep loop. It is safe to call more than once.
func (r *Registry) Stop() {
	r.stopOnce.Do(func() { close(r.stopCh) })
}

func (r *Registry) sweepLoop() {
	ticker := time.NewTicker(r.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := r.Sweep(); removed > 0 {
				logger.Debug("idle quote sessions dropped",
					zap.Int("removed", removed),
					zap.Int("remaining", r.Len()),
				)
			}
		case <-r.stopCh:
			return
		}
	}
}

func (r *Registry) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, s := range r.sessions {
		if oldestID == "" || s.lastSeen.Before(oldest) {
			oldestID, oldest = id, s.lastSeen
		}
	}
	if oldestID != "" {
		delete(r.sessions, oldestID)
		logger.Debug("quote session evicted", zap.String("session_id", oldestID))
	}
}
