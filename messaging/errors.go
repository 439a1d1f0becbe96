// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"maunium.net/go/mautrix"
)

// Error codes the client reacts to. The full list is in the Matrix
// client-server API; codes not named here still round-trip in
// [MatrixError.Code].
const (
	ErrCodeForbidden     = "M_FORBIDDEN"
	ErrCodeUnknownToken  = "M_UNKNOWN_TOKEN"
	ErrCodeNotFound      = "M_NOT_FOUND"
	ErrCodeLimitExceeded = "M_LIMIT_EXCEEDED"
	ErrCodeUnrecognized  = "M_UNRECOGNIZED"
	ErrCodeUnknown       = "M_UNKNOWN"
)

// MatrixError is a homeserver's refusal of a request: the errcode and
// error fields of the response body together with the HTTP status.
// Responses without a usable body get [ErrCodeUnknown] and the status
// text as the message. Use [IsMatrixError] or errors.As to inspect
// one through the wrapping added by Session methods.
type MatrixError struct {
	Code       string `json:"errcode"`
	Message    string `json:"error"`
	StatusCode int    `json:"-"`
}

func (e *MatrixError) Error() string {
	return fmt.Sprintf("matrix: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsMatrixError reports whether err wraps a *MatrixError carrying code.
func IsMatrixError(err error, code string) bool {
	var matrixErr *MatrixError
	return errors.As(err, &matrixErr) && matrixErr.Code == code
}

// unknownStatus is the MatrixError for a response whose body said
// nothing useful.
func unknownStatus(statusCode int) *MatrixError {
	return &MatrixError{Code: ErrCodeUnknown, Message: http.StatusText(statusCode), StatusCode: statusCode}
}

// translateError maps a mautrix HTTP failure onto *MatrixError.
// Anything that never produced a response (dial failures, cancelled
// contexts) passes through untouched.
func translateError(err error) error {
	var httpErr mautrix.HTTPError
	if err == nil || !errors.As(err, &httpErr) {
		return err
	}
	var statusCode int
	if httpErr.Response != nil {
		statusCode = httpErr.Response.StatusCode
	}
	switch {
	case httpErr.RespError != nil:
		return &MatrixError{
			Code:       httpErr.RespError.ErrCode,
			Message:    httpErr.RespError.Err,
			StatusCode: statusCode,
		}
	case statusCode != 0:
		return unknownStatus(statusCode)
	default:
		return err
	}
}

// decodeErrorBody parses the body of a failed request that bypassed
// the mautrix helpers, such as a media download.
func decodeErrorBody(statusCode int, body []byte) *MatrixError {
	var decoded MatrixError
	if json.Unmarshal(body, &decoded) != nil || decoded.Code == "" {
		return unknownStatus(statusCode)
	}
	decoded.StatusCode = statusCode
	return &decoded
}
