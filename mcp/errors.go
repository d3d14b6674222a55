package mcp

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"procurement-client/apierr"
)

// ToolError is the structured body returned for a failed tool call.
type ToolError struct {
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	Tool       string                 `json:"tool,omitempty"`
	Field      string                 `json:"field,omitempty"`
	Hint       string                 `json:"hint,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HttpStatus int                    `json:"http_status,omitempty"`
}

func (e *ToolError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

const (
	// Validation
	ErrCodeMissingRequired  = apierr.CodeMissingRequired
	ErrCodeInvalidValue     = apierr.CodeInvalidValue
	ErrCodeValidationFailed = apierr.CodeValidationFailed

	// Business logic
	ErrCodeNotFound     = apierr.CodeNotFound
	ErrCodeNotLoaded    = apierr.CodeNotLoaded
	ErrCodeConflict     = apierr.CodeConflict
	ErrCodeUnauthorized = apierr.CodeUnauthorized
	ErrCodeNoAccount    = apierr.CodeNoAccount
	ErrCodeUserRejected = apierr.CodeUserRejected
	ErrCodeReverted     = apierr.CodeReverted
	ErrCodeTimeout      = apierr.CodeTimeout
	ErrCodeUpload       = apierr.CodeUpload
	ErrCodeRateLimited  = apierr.CodeRateLimited

	// Infrastructure
	ErrCodeServiceUnavailable = apierr.CodeServiceUnavailable
	ErrCodeInternalError      = apierr.CodeInternalError
	ErrCodeBadGateway         = apierr.CodeBadGateway
)

// NewMissingFieldError creates an error for a missing required argument.
func NewMissingFieldError(tool, field string) *ToolError {
	return &ToolError{
		Code:       ErrCodeMissingRequired,
		Message:    fmt.Sprintf("Field '%s' is required", field),
		Tool:       tool,
		Field:      field,
		HttpStatus: http.StatusBadRequest,
		Hint:       fmt.Sprintf("Add '%s' to your request parameters", field),
	}
}

// NewInvalidFieldError creates an error for an argument that failed to parse.
func NewInvalidFieldError(tool, field, message string) *ToolError {
	return &ToolError{
		Code:       ErrCodeInvalidValue,
		Message:    message,
		Tool:       tool,
		Field:      field,
		HttpStatus: http.StatusBadRequest,
	}
}

// NewNotFoundError creates a resource not found error.
func NewNotFoundError(tool, resourceType, resourceID string) *ToolError {
	return &ToolError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s '%s' not found", resourceType, resourceID),
		Tool:       tool,
		HttpStatus: http.StatusNotFound,
		Hint:       "Refresh projects and verify the id",
	}
}

// NewServiceUnavailableError reports an optional component that is not
// configured.
func NewServiceUnavailableError(tool, service string) *ToolError {
	return &ToolError{
		Code:       ErrCodeServiceUnavailable,
		Message:    fmt.Sprintf("%s service is unavailable", service),
		Tool:       tool,
		HttpStatus: http.StatusServiceUnavailable,
	}
}

// ToolErrorFrom classifies a domain error for tool.
func ToolErrorFrom(tool string, err error) *ToolError {
	var terr *ToolError
	if errors.As(err, &terr) {
		return terr
	}
	e := apierr.From(err)
	return &ToolError{
		Code:       e.Code,
		Message:    e.Message,
		Tool:       tool,
		Field:      e.Field,
		Hint:       e.Hint,
		Details:    e.Details,
		HttpStatus: e.Status,
	}
}

// JSON renders the error body; it never fails for the types it carries.
func (e *ToolError) JSON() string {
	b, err := json.Marshal(e)
	if err != nil {
		return e.Error()
	}
	return string(b)
}

// GetHTTPStatusFromError extracts the HTTP status carried by err.
func GetHTTPStatusFromError(err error) int {
	var terr *ToolError
	if errors.As(err, &terr) && terr.HttpStatus != 0 {
		return terr.HttpStatus
	}
	return http.StatusInternalServerError
}
