package pagination

import "fmt"

// FetchError reports a transport-level adapter failure: the backing service
// was unreachable or answered with a server error. Status is 0 when no
// response arrived at all.
type FetchError struct {
	Status int
	Body   string
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status == 0 {
		return fmt.Sprintf("fetch failed: %v", e.Err)
	}
	return fmt.Sprintf("server error %d: %s", e.Status, e.Body)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ValidationError reports that the adapter rejected the request parameters
// (malformed filters, bad cursor). Retrying the identical request will not
// help. The controller surfaces it the same way as a FetchError and leaves
// any distinction to the caller.
type ValidationError struct {
	Status int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("invalid request (%d): %s", e.Status, e.Reason)
	}
	return "invalid request: " + e.Reason
}
