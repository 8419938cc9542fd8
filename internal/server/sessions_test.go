package server

import (
	"testing"
	"time"

	"trading-journal/internal/tracker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessions(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	var expired []*tracker.Tracker
	s := NewSessions(time.Hour, func(tr *tracker.Tracker) { expired = append(expired, tr) })
	s.now = func() time.Time { return now }

	a, b := &tracker.Tracker{}, &tracker.Tracker{}
	ta := s.Add(a)
	tb := s.Add(b)
	require.NotEqual(t, ta, tb)

	got, ok := s.Get(ta)
	require.True(t, ok)
	assert.Same(t, a, got)

	_, ok = s.Get("unknown")
	assert.False(t, ok)

	// a is touched at 12:40, b stays idle since 12:00.
	now = now.Add(40 * time.Minute)
	_, ok = s.Get(ta)
	require.True(t, ok)

	now = now.Add(30 * time.Minute)
	var live []*tracker.Tracker
	s.Each(func(tr *tracker.Tracker) { live = append(live, tr) })
	assert.Equal(t, []*tracker.Tracker{a}, live)

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
	require.Len(t, expired, 1)
	assert.Same(t, b, expired[0])

	_, ok = s.Get(tb)
	assert.False(t, ok)

	// An expired session found by Get is handed over as well.
	now = now.Add(2 * time.Hour)
	_, ok = s.Get(ta)
	assert.False(t, ok)
	require.Len(t, expired, 2)
	assert.Same(t, a, expired[1])
	assert.Equal(t, 0, s.Len())

	tc := s.Add(&tracker.Tracker{})
	s.Remove(tc)
	assert.Equal(t, 0, s.Len())
	assert.Len(t, expired, 2, "removed sessions are not expired")
}

func TestSessionsWithoutTTL(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	s := NewSessions(0, func(*tracker.Tracker) { t.Fatal("no session expires without a TTL") })
	s.now = func() time.Time { return now }

	token := s.Add(&tracker.Tracker{})
	now = now.Add(24 * 365 * time.Hour)

	_, ok := s.Get(token)
	assert.True(t, ok)
	assert.Equal(t, 0, s.Sweep())
}
