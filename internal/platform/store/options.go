package store

import (
	"locnorm/internal/platform/logger"
)

// Option adjusts a Store before Open connects
type Option func(*Store) error

// WithLogger routes connection retries and traced SQL through log,
// tagged component=store
func WithLogger(log logger.Logger) Option {
	return func(s *Store) error {
		s.Log = log.With().Str("component", "store").Logger()
		return nil
	}
}
