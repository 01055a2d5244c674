package idp

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
)

// Error is a failure reported by the provider. Error() returns the
// provider's message unchanged so it can be shown to the user.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ErrSessionMissing is returned by user-scoped calls when the browser holds
// no provider session
var ErrSessionMissing = &Error{
	Status:  http.StatusUnauthorized,
	Code:    "session_missing",
	Message: "Auth session missing!",
}

// errorBody covers the error shapes returned by GoTrue versions
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Msg              string          `json:"msg"`
	Message          string          `json:"message"`
	ErrorDescription string          `json:"error_description"`
	Err              string          `json:"error"`
}

const maxErrorBody = 64 << 10

// decodeError builds an *Error from a non-2xx response
func decodeError(resp *http.Response) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return fmt.Errorf("failed to read provider error: %w", err)
	}

	e := &Error{Status: resp.StatusCode}

	var body errorBody
	if json.Unmarshal(data, &body) == nil {
		e.Code = firstNonEmpty(body.ErrorCode, body.Err, codeString(body.Code))
		e.Message = firstNonEmpty(body.Msg, body.Message, body.ErrorDescription, body.Err)
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	return e
}

// codeString accepts "code" as either a JSON string or number
func codeString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n int
	if json.Unmarshal(raw, &n) == nil {
		return strconv.Itoa(n)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
