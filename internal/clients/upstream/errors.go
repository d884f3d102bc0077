package upstream

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedResponse = errors.New("upstream: malformed response")
	ErrNotConfigured     = errors.New("upstream: base url not configured")
)

// Error is an upstream-reported failure: either an {"error": ...} body or a
// non-2xx status.
type Error struct {
	Status  int
	Message string
	Detail  any
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Status != 0 {
		return fmt.Sprintf("upstream error (%d): %s", e.Status, e.Message)
	}
	return "upstream error: " + e.Message
}

func (e *Error) HTTPStatusCode() int { return e.Status }

// Payload is the client-facing representation broadcast on failures.
func (e *Error) Payload() map[string]any {
	out := map[string]any{"error": e.Message}
	if e.Detail != nil {
		out["error"] = e.Detail
	}
	if e.Status != 0 {
		out["status"] = e.Status
	}
	return out
}

func errorFromDoc(status int, doc map[string]any) *Error {
	raw := doc["error"]
	msg := ""
	switch v := raw.(type) {
	case string:
		msg = v
	case map[string]any:
		if m, ok := v["message"].(string); ok {
			msg = m
		}
	}
	if msg == "" {
		if b, err := json.Marshal(raw); err == nil {
			msg = string(b)
		}
	}
	e := &Error{Status: status, Message: msg}
	if _, isString := raw.(string); !isString {
		e.Detail = raw
	}
	return e
}
