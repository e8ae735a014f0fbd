package apiclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-reader-client/internal/errors"
)

// StatusError is a non-2xx response from the backend.
type StatusError struct {
	StatusCode int
	Message    string // detail or message from the response body, if any
	Body       []byte
}

// NewStatusError builds a StatusError, pulling a message out of a JSON error body.
func NewStatusError(statusCode int, body []byte) *StatusError {
	return &StatusError{
		StatusCode: statusCode,
		Message:    errorMessage(body),
		Body:       body,
	}
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.StatusCode, http.StatusText(e.StatusCode), e.Message)
	}
	return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Unwrap lets errors.Is match the error kind for the status.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return apperrors.ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return apperrors.ErrNotFound
	case e.StatusCode == http.StatusBadRequest, e.StatusCode == http.StatusConflict, e.StatusCode == http.StatusUnprocessableEntity:
		return apperrors.ErrValidation
	case e.StatusCode >= 500:
		return apperrors.ErrServer
	}
	return nil
}

// errorMessage understands {"detail": "..."}, {"detail": [{"msg": "..."}]} and {"message": "..."}.
func errorMessage(body []byte) string {
	var payload struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
		Error   string          `json:"error_description"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil {
		return ""
	}
	if len(payload.Detail) > 0 {
		var detail string
		if json.Unmarshal(payload.Detail, &detail) == nil {
			return detail
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(payload.Detail, &items) == nil {
			msgs := make([]string, 0, len(items))
			for _, item := range items {
				if item.Msg != "" {
					msgs = append(msgs, item.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error
}

// ClassifyError maps a transport error onto ErrTimeout or ErrTransport. Caller cancellation
// and errors that already carry a kind are returned unchanged.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}
	if apperrors.Is(err, apperrors.ErrTimeout) || apperrors.Is(err, apperrors.ErrTransport) ||
		apperrors.Is(err, apperrors.ErrRefreshFailed) {
		return err
	}
	if isTimeout(err) {
		return apperrors.Join(apperrors.ErrTimeout, err)
	}
	if apperrors.Is(err, context.Canceled) {
		return err
	}
	return apperrors.Join(apperrors.ErrTransport, err)
}

func isTimeout(err error) bool {
	if apperrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return apperrors.As(err, &netErr) && netErr.Timeout()
}

// UserMessage returns text suitable for showing to the user.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case apperrors.Is(err, apperrors.ErrTimeout) || isTimeout(err):
		return apperrors.TimeoutMessage
	case apperrors.Is(err, apperrors.ErrRefreshFailed):
		return "Your session has ended. Please log in again."
	}
	var statusErr *StatusError
	if apperrors.As(err, &statusErr) && statusErr.Message != "" {
		return statusErr.Message
	}
	return err.Error()
}
