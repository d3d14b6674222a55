package workflow

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"procurement-client/chain"
	"procurement-client/core/procurement"
	"procurement-client/ipfs"
)

// ErrBusy is returned when an attempt is started while another runs.
const ErrBusy = procurement.Err("workflow already running")

// ErrNotRetryable is returned by Retry when there is no failed attempt.
const ErrNotRetryable = procurement.Err("nothing to retry")

// ValidationError lists every invalid field of a form at once.
type ValidationError struct {
	Message string                 `json:"message"`
	Fields  map[string]*FieldError `json:"fields"`
}

// FieldError represents the problem with one field.
type FieldError struct {
	Value    any    `json:"value,omitempty"`
	Message  string `json:"message"`
	Required bool   `json:"required"`
}

func newValidationError(message string) *ValidationError {
	return &ValidationError{Message: message, Fields: map[string]*FieldError{}}
}

func (e *ValidationError) add(field, message string, value any, required bool) {
	e.Fields[field] = &FieldError{Value: value, Message: message, Required: required}
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// FieldNames returns the invalid fields in a stable order.
func (e *ValidationError) FieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s: invalid fields: %s", e.Message, strings.Join(e.FieldNames(), ", "))
}

// Message turns any workflow error into the text shown to the user.
// Provider messages are kept verbatim.
func Message(err error) string {
	if err == nil {
		return ""
	}

	var verr *ValidationError
	if errors.As(err, &verr) {
		parts := make([]string, 0, len(verr.Fields))
		for _, name := range verr.FieldNames() {
			parts = append(parts, verr.Fields[name].Message)
		}
		return "Please fix the form: " + strings.Join(parts, "; ") + "."
	}

	var uerr *ipfs.UploadError
	if errors.As(err, &uerr) {
		switch uerr.Kind {
		case ipfs.UploadTooLarge:
			return fmt.Sprintf("%s is larger than 1 MB. Choose a smaller image.", fileLabel(uerr.File))
		case ipfs.UploadUnsupportedType:
			return fmt.Sprintf("%s is not a PNG or JPEG image.", fileLabel(uerr.File))
		case ipfs.UploadNetworkError:
			return fmt.Sprintf("Could not reach the file store (%s). Check your connection and retry.", uerr.Message)
		default:
			return fmt.Sprintf("The file store rejected the upload: %s", uerr.Message)
		}
	}

	var werr *chain.ChainWriteError
	if errors.As(err, &werr) {
		if werr.UserRejected() {
			return "You cancelled the transaction in your wallet. Nothing was submitted."
		}
		if werr.Kind == chain.WriteMissingAccount {
			return "Connect your wallet before submitting."
		}
		return fmt.Sprintf("The transaction could not be sent: %v", werr.Err)
	}

	var terr *chain.TransactionTimeoutError
	if errors.As(err, &terr) {
		return fmt.Sprintf("Transaction %s was not confirmed within %s. It may still confirm; refresh later before retrying.", terr.Hash, terr.After)
	}

	switch {
	case errors.Is(err, procurement.ErrNoAccount):
		return "Connect your wallet before submitting."
	case errors.Is(err, procurement.ErrTransactionFailed):
		return fmt.Sprintf("The contract rejected the transaction (%v).", err)
	case errors.Is(err, procurement.ErrTrackingStopped):
		return "Stopped waiting for the transaction. It may still confirm on chain."
	case errors.Is(err, ErrBusy):
		return "A submission is already in progress."
	}
	return err.Error()
}

func fileLabel(name string) string {
	if name == "" {
		return "The evidence file"
	}
	return fmt.Sprintf("%q", name)
}
