package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sustainhub/sustainability-hub/internal/platform/httpx"
)

// ErrEmptyResponse is returned when a JSON body was expected but none arrived.
var ErrEmptyResponse = errors.New("empty response body")

// Error describes a failed call to the API.
type Error struct {
	Method string
	Path   string
	Status int
	Detail string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Status >= 400 && e.Detail != "":
		return fmt.Sprintf("backend: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Detail)
	case e.Status >= 400:
		return fmt.Sprintf("backend: %s %s: status %d", e.Method, e.Path, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("backend: %s %s: %v", e.Method, e.Path, e.Err)
	default:
		return fmt.Sprintf("backend: %s %s failed", e.Method, e.Path)
	}
}

// Unwrap exposes the transport error or the httpx sentinel matching the status.
func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	switch e.Status {
	case http.StatusNotFound:
		return httpx.ErrNotFound
	case http.StatusConflict:
		return httpx.ErrDuplicate
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return httpx.ErrValidation
	case http.StatusForbidden:
		return httpx.ErrForbidden
	case http.StatusUnauthorized:
		return httpx.ErrUnauthorized
	}
	return nil
}

// Is matches httpx.ErrUpstream for transport failures and 5xx responses.
func (e *Error) Is(target error) bool {
	return target == httpx.ErrUpstream && e.Temporary()
}

// UserMessage is the text shown next to the component that issued the call.
func (e *Error) UserMessage() string {
	if e.Status >= 400 {
		if e.Detail != "" {
			return e.Detail
		}
		return fmt.Sprintf("Request failed with status code %d", e.Status)
	}
	if errors.Is(e.Err, ErrEmptyResponse) {
		return "The server returned an empty response."
	}
	return "Could not reach the server. Please try again."
}

// Temporary reports whether retrying later could succeed.
func (e *Error) Temporary() bool {
	return e.Status == 0 || e.Status >= 500 || e.Status == http.StatusTooManyRequests
}

func newStatusError(method, path string, status int, body []byte) *Error {
	return &Error{Method: method, Path: path, Status: status, Detail: problemDetail(body)}
}

// problemDetail extracts a message from an RFC7807 body or a short plain-text body.
func problemDetail(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	var problem struct {
		httpx.ProblemDetail
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal([]byte(trimmed), &problem); err == nil {
		for _, candidate := range []string{problem.Detail, problem.Message, problem.Error, problem.Title} {
			if candidate = strings.TrimSpace(candidate); candidate != "" {
				return candidate
			}
		}
		return ""
	}
	if len(trimmed) > 200 || strings.HasPrefix(trimmed, "<") {
		return ""
	}
	return trimmed
}
