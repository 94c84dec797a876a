package fresto

import "fmt"

// upstream error bodies can dump whole HTML pages, keep messages readable
const maxErrBodyLen = 512

func truncate(body string) string {
	if len(body) > maxErrBodyLen {
		return body[:maxErrBodyLen] + "…"
	}
	return body
}

// AuthError means the token endpoint rejected the client credentials,
// returned garbage, or a data endpoint revoked the token mid-run.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("fresto auth failed (status %d): %s", e.Status, truncate(e.Body))
}

// HttpError is any non-2xx from a data endpoint.
type HttpError struct {
	Status int
	Path   string
	Body   string
}

func (e *HttpError) Error() string {
	return fmt.Sprintf("fresto %s returned %d: %s", e.Path, e.Status, truncate(e.Body))
}
