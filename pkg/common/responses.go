package common

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	pkgerrors "canvashistory/pkg/errors"

	"github.com/go-chi/chi/v5/middleware"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
	Meta    *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo contains error details
type ErrorInfo struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MetaInfo contains metadata about the response
type MetaInfo struct {
	RequestID string `json:"request_id,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
}

// StandardErrorCodes defines common error codes
var StandardErrorCodes = struct {
	ValidationError    string
	NotFound           string
	Unauthorized       string
	Forbidden          string
	Conflict           string
	InternalError      string
	BadRequest         string
	TooManyRequests    string
	ServiceUnavailable string
	BadGateway         string
}{
	ValidationError:    "VALIDATION_ERROR",
	NotFound:           "NOT_FOUND",
	Unauthorized:       "UNAUTHORIZED",
	Forbidden:          "FORBIDDEN",
	Conflict:           "CONFLICT",
	InternalError:      "INTERNAL_ERROR",
	BadRequest:         "BAD_REQUEST",
	TooManyRequests:    "TOO_MANY_REQUESTS",
	ServiceUnavailable: "SERVICE_UNAVAILABLE",
	BadGateway:         "BAD_GATEWAY",
}

var codeByType = map[pkgerrors.ErrorType]string{
	pkgerrors.ErrorTypeValidation:   StandardErrorCodes.ValidationError,
	pkgerrors.ErrorTypeNotFound:     StandardErrorCodes.NotFound,
	pkgerrors.ErrorTypeConflict:     StandardErrorCodes.Conflict,
	pkgerrors.ErrorTypeUnauthorized: StandardErrorCodes.Unauthorized,
	pkgerrors.ErrorTypeForbidden:    StandardErrorCodes.Forbidden,
	pkgerrors.ErrorTypeInternal:     StandardErrorCodes.InternalError,
	pkgerrors.ErrorTypeUnavailable:  StandardErrorCodes.ServiceUnavailable,
	pkgerrors.ErrorTypeExternal:     StandardErrorCodes.BadGateway,
}

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	response := APIResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
		Meta:    metaFor(r),
	}
	write(w, status, response)
}

// RespondError sends an error response
func RespondError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	RespondErrorWithDetails(w, r, status, code, message, nil)
}

// RespondErrorWithDetails sends an error response with additional details
func RespondErrorWithDetails(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]interface{}) {
	response := APIResponse{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
			Details: details,
		},
		Meta: metaFor(r),
	}
	write(w, status, response)
}

// RespondAppError maps err onto the standard error envelope. Errors that are
// not AppErrors are reported as internal errors without leaking their text.
func RespondAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *pkgerrors.AppError
	if !errors.As(err, &appErr) {
		RespondError(w, r, http.StatusInternalServerError, StandardErrorCodes.InternalError, "internal server error")
		return
	}

	code := appErr.Code
	if code == "" {
		code = codeByType[appErr.Type]
	}
	if code == "" {
		code = StandardErrorCodes.InternalError
	}
	message := appErr.Message
	if appErr.Type == pkgerrors.ErrorTypeInternal {
		message = "internal server error"
	}
	RespondErrorWithDetails(w, r, pkgerrors.HTTPStatus(appErr), code, message, appErr.Details)
}

// ParseJSONBody parses JSON request body with size limit
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}, maxBytes int64) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return pkgerrors.NewValidationError("request body too large").
				WithDetails(map[string]interface{}{"limit_bytes": maxErr.Limit})
		}
		return pkgerrors.NewValidationError("invalid request body").WithCause(err)
	}

	return nil
}

func metaFor(r *http.Request) *MetaInfo {
	if r == nil {
		return nil
	}
	return &MetaInfo{
		RequestID: middleware.GetReqID(r.Context()),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func write(w http.ResponseWriter, status int, response APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(response)
}
