package domain

import "errors"

// RetriableError defines an interface for errors that can be retried
type RetriableError interface {
	error
	IsRetriable() bool
}

// IsRetriable checks if an error is retriable
func IsRetriable(err error) bool {
	var re RetriableError
	if errors.As(err, &re) {
		return re.IsRetriable()
	}
	return false
}

// NetworkError represents a network-related error that may be retriable
type NetworkError struct {
	Op        string // Operation that failed (e.g., "fetch", "send", "poll")
	Err       error  // Underlying error
	Retriable bool   // Whether this error is retriable
}

func (e *NetworkError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *NetworkError) IsRetriable() bool {
	return e.Retriable
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// NewNetworkError creates a new retriable network error
func NewNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: true}
}

// NewFatalNetworkError creates a non-retriable network error
func NewFatalNetworkError(op string, err error) *NetworkError {
	return &NetworkError{Op: op, Err: err, Retriable: false}
}

// ConfigError represents a configuration error (never retriable)
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return "config error [" + e.Field + "]: " + e.Err.Error()
}

func (e *ConfigError) IsRetriable() bool {
	return false
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

var (
	// ErrNoPrice is returned when no source could resolve a price for a
	// symbol this cycle. Retried on the next scheduled cycle.
	ErrNoPrice = errors.New("no price available")

	// ErrInvalidSymbol is returned when a ticker is malformed or cannot be
	// validated against any source. Not retriable.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrInvalidThreshold is returned when a threshold is malformed or not
	// positive.
	ErrInvalidThreshold = errors.New("invalid threshold")

	// ErrUnknownSymbol is returned on remove/update of a symbol the user
	// does not track.
	ErrUnknownSymbol = errors.New("symbol not tracked")

	// ErrConflict is returned when the messaging platform reports another
	// active instance polling the same bot. Transient.
	ErrConflict = errors.New("another instance active")

	// ErrConfigNotFound is returned when the configuration file is missing
	ErrConfigNotFound = errors.New("configuration not found")
)
