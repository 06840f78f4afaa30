package breakers

import (
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	cb "github.com/sony/gobreaker"

	"github.com/sawpanic/equilibrium/internal/config"
)

// ErrOpen is returned without calling the guarded function while the
// breaker is open or throttling half-open probes.
var ErrOpen = errors.New("circuit breaker open")

// Breaker guards calls to an external store.
type Breaker struct{ cb *cb.CircuitBreaker }

// New builds a breaker that trips after FailureThreshold consecutive
// failures, or when more than 5% of at least 20 requests in an interval fail.
func New(name string, c config.BreakerConfig) *Breaker {
	st := cb.Settings{
		Name:        name,
		MaxRequests: c.MaxRequests,
		Interval:    c.Interval,
		Timeout:     c.Timeout,
	}
	threshold := c.FailureThreshold
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= threshold {
			return true
		}
		if counts.Requests < 20 {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > 0.05
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("Circuit breaker state change")
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st)}
}

// Default returns a breaker with the stock settings.
func Default(name string) *Breaker {
	return New(name, config.BreakerConfig{
		MaxRequests:      3,
		Interval:         30 * time.Second,
		Timeout:          15 * time.Second,
		FailureThreshold: 5,
	})
}

// Execute runs fn unless the breaker is open.
func (b *Breaker) Execute(fn func() (any, error)) (any, error) {
	v, err := b.cb.Execute(fn)
	if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) {
		return nil, ErrOpen
	}
	return v, err
}

// State reports the breaker state as "closed", "half-open", or "open".
func (b *Breaker) State() string { return b.cb.State().String() }
