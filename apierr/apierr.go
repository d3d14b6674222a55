// Package apierr classifies domain errors into stable codes and HTTP
// statuses shared by every client-facing surface.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"procurement-client/chain"
	"procurement-client/core/procurement"
	"procurement-client/ipfs"
	"procurement-client/workflow"
)

const (
	// Validation
	CodeMissingRequired  = "MISSING_REQUIRED_FIELD"
	CodeInvalidValue     = "INVALID_FIELD_VALUE"
	CodeValidationFailed = "VALIDATION_FAILED"

	// Business logic
	CodeNotFound     = "RESOURCE_NOT_FOUND"
	CodeNotLoaded    = "NOT_LOADED"
	CodeConflict     = "CONFLICT"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeNoAccount    = "WALLET_NOT_CONNECTED"
	CodeUserRejected = "USER_REJECTED"
	CodeReverted     = "TRANSACTION_REVERTED"
	CodeTimeout      = "TRANSACTION_TIMEOUT"
	CodeUpload       = "UPLOAD_FAILED"
	CodeRateLimited  = "RATE_LIMITED"

	// Infrastructure
	CodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeBadGateway         = "BAD_GATEWAY"
)

// Error is a classified failure.
type Error struct {
	Code    string
	Message string
	Field   string
	Hint    string
	Details map[string]interface{}
	Status  int
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field: %s)", e.Code, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// From classifies err. The message is the same text a user of the
// dashboard would see.
func From(err error) *Error {
	var aerr *Error
	if errors.As(err, &aerr) {
		return aerr
	}

	out := &Error{
		Code:    CodeInternalError,
		Message: workflow.Message(err),
		Status:  http.StatusInternalServerError,
	}

	var verr *workflow.ValidationError
	var uerr *ipfs.UploadError
	var werr *chain.ChainWriteError
	var qerr *chain.ChainQueryError
	var toerr *chain.TransactionTimeoutError
	switch {
	case errors.As(err, &verr):
		out.Code = CodeValidationFailed
		out.Status = http.StatusBadRequest
		out.Details = map[string]interface{}{"validation_errors": verr.Fields}
		if names := verr.FieldNames(); len(names) > 0 {
			out.Field = names[0]
		}
	case errors.As(err, &uerr):
		out.Code = CodeUpload
		out.Status = http.StatusBadGateway
		if !uerr.Retryable() {
			out.Status = http.StatusBadRequest
		}
		out.Details = map[string]interface{}{"kind": uerr.Kind, "file": uerr.File}
	case errors.As(err, &werr) && werr.UserRejected():
		out.Code = CodeUserRejected
		out.Status = http.StatusConflict
	case errors.As(err, &werr) && werr.Kind == chain.WriteMissingAccount,
		errors.Is(err, procurement.ErrNoAccount):
		out.Code = CodeNoAccount
		out.Status = http.StatusUnauthorized
		out.Hint = "Configure a signer key to enable writes"
	case errors.As(err, &werr), errors.As(err, &qerr):
		out.Code = CodeBadGateway
		out.Status = http.StatusBadGateway
	case errors.As(err, &toerr):
		out.Code = CodeTimeout
		out.Status = http.StatusGatewayTimeout
		out.Details = map[string]interface{}{"hash": toerr.Hash}
		out.Hint = "Retry tracks the same transaction again"
	case errors.Is(err, procurement.ErrTransactionFailed):
		out.Code = CodeReverted
		out.Status = http.StatusUnprocessableEntity
	case errors.Is(err, procurement.ErrProjectNotFound):
		out.Code = CodeNotFound
		out.Status = http.StatusNotFound
	case errors.Is(err, procurement.ErrNotLoaded):
		out.Code = CodeNotLoaded
		out.Status = http.StatusConflict
		out.Message = err.Error()
		out.Hint = "Refresh first"
	case errors.Is(err, workflow.ErrBusy), errors.Is(err, workflow.ErrNotRetryable):
		out.Code = CodeConflict
		out.Status = http.StatusConflict
	}
	return out
}
