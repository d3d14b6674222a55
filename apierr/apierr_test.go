package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"procurement-client/chain"
	"procurement-client/core/procurement"
	"procurement-client/ipfs"
	"procurement-client/workflow"
)

func TestFrom(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"too large", &ipfs.UploadError{File: "a.png", Kind: ipfs.UploadTooLarge}, CodeUpload, http.StatusBadRequest},
		{"network", &ipfs.UploadError{File: "a.png", Kind: ipfs.UploadNetworkError}, CodeUpload, http.StatusBadGateway},
		{"user rejected", &chain.ChainWriteError{Function: "SubmitProject", Kind: chain.WriteUserRejected}, CodeUserRejected, http.StatusConflict},
		{"no signer", &chain.ChainWriteError{Function: "SubmitProject", Kind: chain.WriteMissingAccount}, CodeNoAccount, http.StatusUnauthorized},
		{"rpc write", &chain.ChainWriteError{Function: "SubmitProject", Kind: chain.WriteRPC, Err: errors.New("nonce too low")}, CodeBadGateway, http.StatusBadGateway},
		{"rpc read", &chain.ChainQueryError{Function: "getAllContractors", Kind: chain.QueryRPC, Err: errors.New("eof")}, CodeBadGateway, http.StatusBadGateway},
		{"timeout", &chain.TransactionTimeoutError{Hash: "0xabc", After: time.Minute}, CodeTimeout, http.StatusGatewayTimeout},
		{"reverted", fmt.Errorf("%w: 0xabc", procurement.ErrTransactionFailed), CodeReverted, http.StatusUnprocessableEntity},
		{"not found", procurement.ErrProjectNotFound, CodeNotFound, http.StatusNotFound},
		{"not loaded", procurement.ErrNotLoaded, CodeNotLoaded, http.StatusConflict},
		{"busy", workflow.ErrBusy, CodeConflict, http.StatusConflict},
		{"nothing to retry", workflow.ErrNotRetryable, CodeConflict, http.StatusConflict},
		{"unknown", errors.New("boom"), CodeInternalError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := From(tt.err)
			assert.Equal(t, tt.code, e.Code)
			assert.Equal(t, tt.status, e.Status)
			assert.NotEmpty(t, e.Message)
		})
	}
}

func TestFromKeepsClassifiedError(t *testing.T) {
	orig := &Error{Code: CodeNotFound, Message: "gone", Status: http.StatusNotFound}
	assert.Same(t, orig, From(fmt.Errorf("lookup: %w", orig)))
}
