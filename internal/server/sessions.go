package server

import (
	"sync"
	"time"

	"trading-journal/internal/tracker"

	"github.com/google/uuid"
)

type session struct {
	tracker  *tracker.Tracker
	lastSeen time.Time
}

// Sessions maps bearer tokens to live trackers. A session idle for longer
// than the TTL is dropped and handed to onExpire, which runs without the lock.
type Sessions struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	onExpire func(t *tracker.Tracker)
	byToken  map[string]*session
}

func NewSessions(ttl time.Duration, onExpire func(t *tracker.Tracker)) *Sessions {
	return &Sessions{
		ttl:      ttl,
		now:      time.Now,
		onExpire: onExpire,
		byToken:  make(map[string]*session),
	}
}

// Add registers t and returns its new token.
func (s *Sessions) Add(t *tracker.Tracker) string {
	token := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byToken[token] = &session{tracker: t, lastSeen: s.now()}
	return token
}

// Get returns the tracker of token and refreshes its idle timer.
func (s *Sessions) Get(token string) (*tracker.Tracker, bool) {
	s.mu.Lock()
	sess, ok := s.byToken[token]
	if !ok {
		s.mu.Unlock()
		return nil, false
	}
	now := s.now()
	if s.expired(sess, now) {
		delete(s.byToken, token)
		s.mu.Unlock()
		s.expire(sess.tracker)
		return nil, false
	}
	sess.lastSeen = now
	s.mu.Unlock()
	return sess.tracker, true
}

func (s *Sessions) Remove(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byToken, token)
}

// Sweep drops expired sessions and reports how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	now := s.now()
	var dropped []*tracker.Tracker
	for token, sess := range s.byToken {
		if s.expired(sess, now) {
			delete(s.byToken, token)
			dropped = append(dropped, sess.tracker)
		}
	}
	s.mu.Unlock()

	for _, t := range dropped {
		s.expire(t)
	}
	return len(dropped)
}

// Each calls fn for every live session. fn runs without the lock held.
func (s *Sessions) Each(fn func(t *tracker.Tracker)) {
	s.mu.Lock()
	now := s.now()
	live := make([]*tracker.Tracker, 0, len(s.byToken))
	for _, sess := range s.byToken {
		if !s.expired(sess, now) {
			live = append(live, sess.tracker)
		}
	}
	s.mu.Unlock()

	for _, t := range live {
		fn(t)
	}
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byToken)
}

func (s *Sessions) expire(t *tracker.Tracker) {
	if s.onExpire != nil {
		s.onExpire(t)
	}
}

func (s *Sessions) expired(sess *session, now time.Time) bool {
	return s.ttl > 0 && now.Sub(sess.lastSeen) > s.ttl
}
