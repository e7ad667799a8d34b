package shared

import (
	"net/http"

	"github.com/go-chi/httprate"
)

// RateLimitKey buckets requests by session, falling back to the client IP.
func RateLimitKey(r *http.Request) (string, error) {
	if sess := SessionFromContext(r.Context()); sess != nil && sess.ID != "" {
		return "session:" + sess.ID, nil
	}
	key, err := httprate.KeyByIP(r)
	if err != nil {
		return "", err
	}
	return "ip:" + key, nil
}
