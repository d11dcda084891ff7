package api

import "fmt"

// DownstreamError describes a failed call to a peer service. Exactly one of
// three situations holds: the peer answered with a non-2xx StatusCode, the
// request produced no response (NoResponse), or it timed out (Timeout).
type DownstreamError struct {
	// Service names the peer role, e.g. "statistics" or "authz".
	Service string
	URL     string

	StatusCode int
	// Detail is the error message extracted from the peer's body, if any.
	Detail string

	NoResponse bool
	Timeout    bool

	Err error
}

func (e *DownstreamError) Error() string {
	switch {
	case e.Timeout:
		return fmt.Sprintf("%s service at %s timed out", e.Service, e.URL)
	case e.NoResponse:
		if e.Err != nil {
			return fmt.Sprintf("no response from %s service at %s: %v", e.Service, e.URL, e.Err)
		}
		return fmt.Sprintf("no response from %s service at %s", e.Service, e.URL)
	case e.Detail != "":
		return fmt.Sprintf("%s service returned status %d: %s", e.Service, e.StatusCode, e.Detail)
	default:
		return fmt.Sprintf("%s service returned status %d", e.Service, e.StatusCode)
	}
}

func (e *DownstreamError) Unwrap() error {
	return e.Err
}
