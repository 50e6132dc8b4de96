package vegvesen

import "errors"

// Lookup failure categories. Use errors.Is() to classify an error returned
// by Client.
var (
	// ErrAuth is returned when the registry rejects the API key (HTTP 401/403).
	ErrAuth = errors.New("vegvesen: authentication failed")

	// ErrNotFound is returned when the registry has no vehicle for the number.
	ErrNotFound = errors.New("vegvesen: vehicle not found")

	// ErrConnection is returned on network failures and timeouts.
	ErrConnection = errors.New("vegvesen: connection error")

	// ErrAPI is returned for any other non-2xx status or a malformed body.
	ErrAPI = errors.New("vegvesen: api error")
)
