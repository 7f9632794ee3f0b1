package backtest

import "fmt"

// InsufficientHistoryError means the series is too short for a single full
// observation window.
type InsufficientHistoryError struct {
	HorizonDays int
	Available   int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history: a %d trading day horizon needs more than %d prices", e.HorizonDays, e.Available)
}

// EmptyResultSetError means statistics were requested over zero periods
type EmptyResultSetError struct{}

func (e *EmptyResultSetError) Error() string {
	return "empty result set: no backtest periods to aggregate"
}

// ConfigError reports an unusable note term
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid config: %s %s", e.Field, e.Message)
}
