package usecase

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/moicben/calendar-agent/internal/entity"
)

var (
	// ErrEmptyPool is returned when the pool holds no proxy at all.
	ErrEmptyPool = errors.New("proxy pool is empty")
	// ErrPoolExhausted is returned by DrawExcluding when every proxy is
	// excluded and the pool does not allow reuse.
	ErrPoolExhausted = errors.New("every proxy in the pool has been tried")
)

// DrawPhase tells whether a proxy was drawn among untried proxies or whether
// the pool had to wrap around.
type DrawPhase string

const (
	PhaseExclusion DrawPhase = "exclusion"
	PhaseReuse     DrawPhase = "reuse"
	// PhaseDirect marks attempts made without any proxy.
	PhaseDirect DrawPhase = "direct"
)

// ReusePolicy decides what DrawExcluding does once every proxy is excluded.
type ReusePolicy int

const (
	// ReuseOnExhaustion draws from the whole pool again.
	ReuseOnExhaustion ReusePolicy = iota
	// FailOnExhaustion returns ErrPoolExhausted.
	FailOnExhaustion
)

// ProxyPool hands out proxies at random. It is safe for concurrent use.
type ProxyPool struct {
	proxies []entity.Proxy
	policy  ReusePolicy

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewProxyPool creates a pool over proxies.
func NewProxyPool(proxies []entity.Proxy, policy ReusePolicy) *ProxyPool {
	return NewProxyPoolWithSource(proxies, policy, rand.NewSource(time.Now().UnixNano()))
}

// NewProxyPoolWithSource creates a pool drawing from src, for reproducible draws.
func NewProxyPoolWithSource(proxies []entity.Proxy, policy ReusePolicy, src rand.Source) *ProxyPool {
	cp := make([]entity.Proxy, len(proxies))
	copy(cp, proxies)
	return &ProxyPool{proxies: cp, policy: policy, rnd: rand.New(src)}
}

// Size returns the number of proxies in the pool.
func (p *ProxyPool) Size() int {
	return len(p.proxies)
}

// Draw picks any proxy uniformly at random.
func (p *ProxyPool) Draw() (entity.Proxy, error) {
	if len(p.proxies) == 0 {
		return entity.Proxy{}, ErrEmptyPool
	}
	return p.pick(p.proxies), nil
}

// DrawExcluding picks uniformly among proxies not in excluded. When none is
// left it either reuses the whole pool or fails, depending on the policy.
func (p *ProxyPool) DrawExcluding(excluded map[entity.Proxy]struct{}) (entity.Proxy, DrawPhase, error) {
	if len(p.proxies) == 0 {
		return entity.Proxy{}, "", ErrEmptyPool
	}

	candidates := make([]entity.Proxy, 0, len(p.proxies))
	for _, px := range p.proxies {
		if _, skip := excluded[px]; !skip {
			candidates = append(candidates, px)
		}
	}
	if len(candidates) > 0 {
		return p.pick(candidates), PhaseExclusion, nil
	}
	if p.policy == FailOnExhaustion {
		return entity.Proxy{}, "", ErrPoolExhausted
	}
	return p.pick(p.proxies), PhaseReuse, nil
}

func (p *ProxyPool) pick(from []entity.Proxy) entity.Proxy {
	p.mu.Lock()
	defer p.mu.Unlock()
	return from[p.rnd.Intn(len(from))]
}
