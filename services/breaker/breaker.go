package breaker

import (
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/practicas-ubb/practicas/core"
)

const (
	SendGrid = "SendGrid"
	RabbitMQ = "RabbitMQ-Publisher"
)

// New returns a circuit breaker that opens after 3 consecutive failures.
// State changes are reported to logger when it is set.
func New(name string, logger core.Logger) *gobreaker.CircuitBreaker {
	var timeout time.Duration
	switch name {
	case SendGrid:
		timeout = 60 * time.Second
	default:
		timeout = 30 * time.Second
	}

	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    10 * time.Second,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn(fmt.Sprintf("circuit breaker %s: %s -> %s", name, from, to))
			}
		},
	})
}
