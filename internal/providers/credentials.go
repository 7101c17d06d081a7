package providers

import (
	"errors"
	"math/rand"
	"sync"
)

// ErrNoCredentials is raised before any network call when the provider has
// no API key configured.
var ErrNoCredentials = errors.New("providers: no api key configured")

// KeySelector picks one credential per request. The selection strategy is
// deliberately behind an interface so random choice can be swapped for
// round-robin or health-aware selection without touching call sites.
type KeySelector interface {
	Select() (string, error)
}

// RandomSelector distributes load by choosing uniformly at random per
// request. Stateless single-shot choice; no pooling, no backpressure.
type RandomSelector struct {
	mu   sync.Mutex
	keys []string
	rng  *rand.Rand
}

func NewRandomSelector(keys []string, seed int64) *RandomSelector {
	filtered := make([]string, 0, len(keys))
	for _, key := range keys {
		if key != "" {
			filtered = append(filtered, key)
		}
	}
	return &RandomSelector{
		keys: filtered,
		rng:  rand.New(rand.NewSource(seed)),
	}
}

func (s *RandomSelector) Select() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.keys) == 0 {
		return "", ErrNoCredentials
	}
	return s.keys[s.rng.Intn(len(s.keys))], nil
}

// staticSelector wraps a single fixed key.
type staticSelector string

func (s staticSelector) Select() (string, error) {
	if s == "" {
		return "", ErrNoCredentials
	}
	return string(s), nil
}
