package providers

import "fmt"

// ProviderCallError describes a failed call to an external provider.
// StatusCode 0 means the request never completed (timeout, connection error).
type ProviderCallError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *ProviderCallError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s request failed with status %d: %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Provider, e.Err)
}

func (e *ProviderCallError) Unwrap() error {
	return e.Err
}

// Connection reports whether the failure was a connection-class error.
func (e *ProviderCallError) Connection() bool {
	return e.StatusCode == 0
}

// Retryable reports whether the gateway should retry the call: timeouts,
// connection errors, and any non-2xx status outside {401, 403, 404}.
func (e *ProviderCallError) Retryable() bool {
	if e.StatusCode == 0 {
		return true
	}
	switch e.StatusCode {
	case 401, 403, 404:
		return false
	}
	return true
}
