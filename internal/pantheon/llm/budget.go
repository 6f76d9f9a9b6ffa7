package llm

import (
	"sync"
	"time"
)

// Unlimited is what Remaining reports when the budget is disabled.
const Unlimited = -1

// TokenBudget caps the tokens each key may consume per UTC day. The counter
// for a key resets at the next midnight UTC after its first charge.
//
// TokenBudget is safe for concurrent use.
type TokenBudget struct {
	mu     sync.Mutex
	budget int
	now    func() time.Time
	usage  map[string]*dailyUsage
}

type dailyUsage struct {
	tokens  int
	resetAt time.Time
}

// NewTokenBudget returns a budget of dailyBudget tokens per key. A
// non-positive budget disables the check; the returned value is nil and all
// its methods are no-ops.
func NewTokenBudget(dailyBudget int, now func() time.Time) *TokenBudget {
	if dailyBudget <= 0 {
		return nil
	}
	if now == nil {
		now = time.Now
	}
	return &TokenBudget{
		budget: dailyBudget,
		now:    now,
		usage:  make(map[string]*dailyUsage),
	}
}

// Allow reports whether key may make another call today. It does not charge
// anything.
func (b *TokenBudget) Allow(key string) bool {
	if b == nil {
		return true
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.current(key)
	return u == nil || u.tokens < b.budget
}

// Record charges tokens to key.
func (b *TokenBudget) Record(key string, tokens int) {
	if b == nil || tokens <= 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.current(key)
	if u == nil {
		u = &dailyUsage{resetAt: nextMidnightUTC(b.now())}
		b.usage[key] = u
	}
	u.tokens += tokens
}

// Remaining returns how many tokens key may still spend today, or Unlimited.
func (b *TokenBudget) Remaining(key string) int {
	if b == nil {
		return Unlimited
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	u := b.current(key)
	if u == nil {
		return b.budget
	}
	return max(b.budget-u.tokens, 0)
}

// current drops key's counter when its day has rolled over. Must be called
// with b.mu held.
func (b *TokenBudget) current(key string) *dailyUsage {
	u := b.usage[key]
	if u != nil && !b.now().UTC().Before(u.resetAt) {
		delete(b.usage, key)
		return nil
	}
	return u
}

func nextMidnightUTC(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day()+1, 0, 0, 0, 0, time.UTC)
}
