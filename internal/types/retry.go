package types

import "time"

// RetryPolicy bounds a polling wait for an asynchronously confirmed write to
// become visible. MaxAttempts counts the first check.
type RetryPolicy struct {
	MaxAttempts int           `mapstructure:"max_attempts" validate:"min=1"`
	Delay       time.Duration `mapstructure:"delay"`
}

// DefaultResidenceRecheckPolicy is used when no policy is configured
var DefaultResidenceRecheckPolicy = RetryPolicy{
	MaxAttempts: 3,
	Delay:       200 * time.Millisecond,
}

// Retries is the number of re-checks after the first attempt
func (p RetryPolicy) Retries() uint64 {
	if p.MaxAttempts <= 1 {
		return 0
	}
	return uint64(p.MaxAttempts - 1)
}
