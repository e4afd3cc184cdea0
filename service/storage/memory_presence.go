package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryPresence is the single-process twin of RedisPresence, used by
// tests and by local development without a redis. Expiry is lazy: a
// value past its deadline reads as absent. The clock is injectable so
// tests can fast-forward instead of sleeping.
type MemoryPresence struct {
	mu    sync.Mutex
	sets  map[string]map[string]struct{}
	vals  map[string]memVal
	clock func() time.Time
}

type memVal struct {
	value    string
	expireAt time.Time // zero means no expiry
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{
		sets:  make(map[string]map[string]struct{}),
		vals:  make(map[string]memVal),
		clock: time.Now,
	}
}

// SetClock replaces the time source. Test hook only.
func (p *MemoryPresence) SetClock(clock func() time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clock = clock
}

func (p *MemoryPresence) AddToSet(_ context.Context, key, member string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.sets[key]
	if s == nil {
		s = make(map[string]struct{})
		p.sets[key] = s
	}
	s[member] = struct{}{}
	return nil
}

func (p *MemoryPresence) RemoveFromSet(_ context.Context, key, member string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s := p.sets[key]; s != nil {
		delete(s, member)
		if len(s) == 0 {
			delete(p.sets, key)
		}
	}
	return nil
}

func (p *MemoryPresence) Members(_ context.Context, key string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.sets[key]
	if len(s) == 0 {
		return nil, nil
	}
	out := make([]string, 0, len(s))
	for m := range s {
		out = append(out, m)
	}
	return out, nil
}

func (p *MemoryPresence) IsMember(_ context.Context, key, member string) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.sets[key]
	if s == nil {
		return false, nil
	}
	_, ok := s[member]
	return ok, nil
}

func (p *MemoryPresence) Cardinality(_ context.Context, key string) (int64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return int64(len(p.sets[key])), nil
}

func (p *MemoryPresence) RemoveAll(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.sets, key)
	delete(p.vals, key)
	return nil
}

func (p *MemoryPresence) SetWithExpiry(_ context.Context, key, value string, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	v := memVal{value: value}
	if ttl > 0 {
		v.expireAt = p.clock().Add(ttl)
	}
	p.vals[key] = v
	return nil
}

func (p *MemoryPresence) Get(_ context.Context, key string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.vals[key]
	if !ok {
		return "", false, nil
	}
	if !v.expireAt.IsZero() && !p.clock().Before(v.expireAt) {
		delete(p.vals, key)
		return "", false, nil
	}
	return v.value, true, nil
}

func (p *MemoryPresence) Delete(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.vals, key)
	return nil
}
