package chain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"procurement-client/core/procurement"
)

// QueryErrorKind separates "nothing to ask yet" from real failures.
type QueryErrorKind string

const (
	QueryMissingAccount QueryErrorKind = "missing_account"
	QueryRPC            QueryErrorKind = "rpc"
	QueryDecode         QueryErrorKind = "decode"
)

// ChainQueryError wraps a failed read call.
type ChainQueryError struct {
	Function string
	Kind     QueryErrorKind
	Err      error
}

func (e *ChainQueryError) Error() string {
	return fmt.Sprintf("query %s failed (%s): %v", e.Function, e.Kind, e.Err)
}

func (e *ChainQueryError) Unwrap() error { return e.Err }

// Skipped reports whether the query was never sent because no account is
// connected. Callers treat this as "not loaded", not as a failure.
func (e *ChainQueryError) Skipped() bool { return e.Kind == QueryMissingAccount }

// WriteErrorKind classifies failed transactions.
type WriteErrorKind string

const (
	WriteUserRejected   WriteErrorKind = "user_rejected"
	WriteMissingAccount WriteErrorKind = "missing_account"
	WriteRPC            WriteErrorKind = "rpc"
)

// ChainWriteError wraps a failed write call.
type ChainWriteError struct {
	Function string
	Kind     WriteErrorKind
	Err      error
}

func (e *ChainWriteError) Error() string {
	if e.Kind == WriteUserRejected {
		return fmt.Sprintf("%s was cancelled in the wallet", e.Function)
	}
	return fmt.Sprintf("%s failed: %v", e.Function, e.Err)
}

func (e *ChainWriteError) Unwrap() error { return e.Err }

// UserRejected is true when the signer declined; this is not a system fault.
func (e *ChainWriteError) UserRejected() bool { return e.Kind == WriteUserRejected }

// TransactionTimeoutError is the terminal error of a tracker that gave up
// waiting for confirmation.
type TransactionTimeoutError struct {
	Hash  string
	After time.Duration
}

func (e *TransactionTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s not confirmed after %s", e.Hash, e.After)
}

func (e *TransactionTimeoutError) Unwrap() error { return procurement.ErrTransactionTimeout }

// rpcCodedError matches JSON-RPC errors that expose a numeric code.
type rpcCodedError interface {
	ErrorCode() int
}

// eip1193UserRejected is the provider code for a request declined by the user.
const eip1193UserRejected = 4001

func isUserRejected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, procurement.ErrUserRejected) {
		return true
	}
	var coded rpcCodedError
	if errors.As(err, &coded) && coded.ErrorCode() == eip1193UserRejected {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}

func classifyWriteError(fn string, err error) *ChainWriteError {
	if isUserRejected(err) {
		return &ChainWriteError{Function: fn, Kind: WriteUserRejected, Err: err}
	}
	if errors.Is(err, procurement.ErrNoAccount) {
		return &ChainWriteError{Function: fn, Kind: WriteMissingAccount, Err: err}
	}
	return &ChainWriteError{Function: fn, Kind: WriteRPC, Err: err}
}
