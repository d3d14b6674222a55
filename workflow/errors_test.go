package workflow

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"procurement-client/chain"
	"procurement-client/core/procurement"
	"procurement-client/ipfs"
)

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"too large", &ipfs.UploadError{File: "big.png", Kind: ipfs.UploadTooLarge}, `"big.png" is larger than 1 MB. Choose a smaller image.`},
		{"wrong type", &ipfs.UploadError{File: "a.gif", Kind: ipfs.UploadUnsupportedType}, `"a.gif" is not a PNG or JPEG image.`},
		{"provider", &ipfs.UploadError{Kind: ipfs.UploadProviderError, Message: "401 Unauthorized: INVALID_CREDENTIALS"}, "The file store rejected the upload: 401 Unauthorized: INVALID_CREDENTIALS"},
		{"rpc write", &chain.ChainWriteError{Function: "SubmitProject", Kind: chain.WriteRPC, Err: errors.New("insufficient funds for gas")}, "The transaction could not be sent: insufficient funds for gas"},
		{"timeout", fmt.Errorf("wrapped: %w", &chain.TransactionTimeoutError{Hash: "0xabc", After: 3 * time.Minute}), "Transaction 0xabc was not confirmed within 3m0s. It may still confirm; refresh later before retrying."},
		{"no account", procurement.ErrNoAccount, "Connect your wallet before submitting."},
		{"other", errors.New("disk on fire"), "disk on fire"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
		})
	}
}

func TestValidationErrorMessage(t *testing.T) {
	verr := newValidationError("submission is incomplete")
	verr.add("project_id", "project id is required", "", true)
	verr.add("description", "description is required", "", true)

	assert.Equal(t, "submission is incomplete: invalid fields: description, project_id", verr.Error())
	assert.Equal(t, "Please fix the form: description is required; project id is required.", Message(verr))
}
