package models

import (
	"time"
)

// ErrorResponse represents API error response
type ErrorResponse struct {
	Error     string                 `json:"error"`
	Message   string                 `json:"message,omitempty"`
	Code      int                    `json:"code,omitempty"`
	Hint      string                 `json:"hint,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// APIResponse is the envelope for every JSON endpoint.
type APIResponse struct {
	Success bool                   `json:"success"`
	Data    interface{}            `json:"data,omitempty"`
	Error   *ErrorResponse         `json:"error,omitempty"`
	Meta    map[string]interface{} `json:"meta,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data interface{}) *APIResponse {
	return &APIResponse{
		Success: true,
		Data:    data,
	}
}

// NewErrorResponse creates an error response
func NewErrorResponse(code string, message string, status int) *APIResponse {
	return &APIResponse{
		Success: false,
		Error: &ErrorResponse{
			Error:     code,
			Message:   message,
			Code:      status,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	}
}

// NewErrorResponseWithHint creates an error response with a hint.
func NewErrorResponseWithHint(code string, message string, status int, hint string) *APIResponse {
	resp := NewErrorResponse(code, message, status)
	resp.Error.Hint = hint
	return resp
}

// CreateProjectRequest is the agency's project form. Dates are YYYY-MM-DD.
type CreateProjectRequest struct {
	Description       string `json:"description"`
	Budget            string `json:"budget"`
	ContractorAddress string `json:"contractor_address"`
	StartDate         string `json:"start_date"`
	EndDate           string `json:"end_date"`
}

// RoleRequest asks for the role of a navigation path.
type RoleRequest struct {
	Path string `json:"path"`
}

// RoleResponse is the resolved role.
type RoleResponse struct {
	Path    string `json:"path"`
	Role    string `json:"role"`
	Account string `json:"account,omitempty"`
}

// EvidenceURLResponse links to stored evidence.
type EvidenceURLResponse struct {
	CID       string     `json:"cid"`
	URL       string     `json:"url"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// ListResponse wraps a collection with its count.
type ListResponse struct {
	Items      interface{} `json:"items"`
	TotalCount int         `json:"total_count"`
}
