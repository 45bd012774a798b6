package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	apperrors "github.com/Clive-Anthony/mywaterquality-ca-sub001/pkg/errors"
)

// remoteErrorBody covers the error shapes returned by JSON APIs we call:
// a top-level message, a string error, or a nested {error:{code,message}}.
type remoteErrorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
}

type nestedError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponseError consumes and closes the body of a non-2xx response and
// converts it into an AppError for the known 4xx/503 classes, or a plain
// error otherwise.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%s returned status %d (read body: %w)", serviceName, resp.StatusCode, err)
	}

	code, message := decodeRemoteError(raw)
	if message == "" {
		return fmt.Errorf("%s returned status %d: %s", serviceName, resp.StatusCode, string(raw))
	}
	return mapRemoteError(resp.StatusCode, code, message, serviceName)
}

func decodeRemoteError(raw []byte) (code, message string) {
	var body remoteErrorBody
	if json.Unmarshal(raw, &body) != nil {
		return "", ""
	}
	if len(body.Error) > 0 {
		var nested nestedError
		if json.Unmarshal(body.Error, &nested) == nil && nested.Message != "" {
			return nested.Code, nested.Message
		}
		var s string
		if json.Unmarshal(body.Error, &s) == nil && s != "" {
			return "", s
		}
	}
	return "", body.Message
}

func mapRemoteError(status int, code, message, serviceName string) error {
	qualified := fmt.Sprintf("%s: %s", serviceName, message)

	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return apperrors.InvalidInput(qualified)
	case status == http.StatusUnauthorized:
		return apperrors.Unauthorized(qualified)
	case status == http.StatusForbidden:
		return apperrors.Forbidden(qualified)
	case status == http.StatusNotFound:
		return apperrors.NotFound(serviceName, message)
	case status == http.StatusConflict:
		return apperrors.Conflict(qualified)
	case status == http.StatusServiceUnavailable:
		return &apperrors.AppError{
			Code:    "SERVICE_UNAVAILABLE",
			Message: qualified,
			Status:  http.StatusServiceUnavailable,
			Err:     apperrors.ErrServiceUnavail,
		}
	case status >= 500:
		return fmt.Errorf("%s server error (%d/%s): %s", serviceName, status, code, message)
	default:
		return &apperrors.AppError{Code: code, Message: qualified, Status: status}
	}
}

// IsSuccess reports whether status is 2xx.
func IsSuccess(status int) bool {
	return status >= 200 && status < 300
}
