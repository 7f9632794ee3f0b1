package series

import "fmt"

// InsufficientDataError reports an input that yields no usable prices:
// nothing left after cleaning, or no close column at all.
type InsufficientDataError struct {
	Reason string
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("insufficient data: %s", e.Reason)
}
