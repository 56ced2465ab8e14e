package services

import (
	"sync"
	"time"

	"github.com/Dosada05/club-ladder/models"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type standingsEntry struct {
	players []models.SeasonPlayer
	expires time.Time
}

// StandingsCache holds per-season standings for ttl. Mutations invalidate
// their season explicitly; expiry only bounds staleness from other writers.
type StandingsCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	clock   Clock
	entries map[int]standingsEntry
}

func NewStandingsCache(ttl time.Duration, clock Clock) *StandingsCache {
	if clock == nil {
		clock = systemClock{}
	}
	return &StandingsCache{ttl: ttl, clock: clock, entries: make(map[int]standingsEntry)}
}

// Get returns a copy of the cached standings.
func (c *StandingsCache) Get(seasonID int) ([]*models.SeasonPlayer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[seasonID]
	if !ok {
		return nil, false
	}
	if !c.clock.Now().Before(entry.expires) {
		delete(c.entries, seasonID)
		return nil, false
	}
	out := make([]*models.SeasonPlayer, len(entry.players))
	for i := range entry.players {
		sp := entry.players[i]
		out[i] = &sp
	}
	return out, true
}

func (c *StandingsCache) Set(seasonID int, players []*models.SeasonPlayer) {
	if c.ttl <= 0 {
		return
	}
	stored := make([]models.SeasonPlayer, len(players))
	for i, sp := range players {
		stored[i] = *sp
	}
	c.mu.Lock()
	c.entries[seasonID] = standingsEntry{players: stored, expires: c.clock.Now().Add(c.ttl)}
	c.mu.Unlock()
}

func (c *StandingsCache) Invalidate(seasonIDs ...int) {
	c.mu.Lock()
	for _, id := range seasonIDs {
		delete(c.entries, id)
	}
	c.mu.Unlock()
}
