package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement-client/chain"
	"procurement-client/core/procurement"
	"procurement-client/ipfs"
)

func newSubmission(up Uploader, c *fakeChain, status uint64) (*SubmissionWorkflow, *fakeRefresher, *receipts) {
	tracker, src := newTracker(status)
	ref := &fakeRefresher{}
	w := NewSubmission(SubmissionDeps{
		Account:   fakeAccount{addr: contractor},
		Uploader:  up,
		Chain:     c,
		Tracker:   tracker,
		Refresher: ref,
	})
	return w, ref, src
}

func TestValidateReportsEveryField(t *testing.T) {
	up := &scriptedUploader{}
	c := &fakeChain{}
	tracker, _ := newTracker(types.ReceiptStatusSuccessful)
	w := NewSubmission(SubmissionDeps{Account: fakeAccount{}, Uploader: up, Chain: c, Tracker: tracker})

	p, err := w.Submit(context.Background(), SubmissionForm{ProjectID: " ", Description: ""})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"account", "description", "evidence", "project_id"}, verr.FieldNames())
	assert.Equal(t, StateFailed, p.State)
	assert.Contains(t, p.Message, "description is required")
	assert.Contains(t, p.Message, "project id is required")

	assert.Zero(t, up.callCount(), "no upload before validation passes")
	assert.Empty(t, c.submitCalls(), "no transaction before validation passes")
}

func TestValidateProjectIDMustBeNumeric(t *testing.T) {
	w, _, _ := newSubmission(&scriptedUploader{}, &fakeChain{}, types.ReceiptStatusSuccessful)
	err := w.Validate(SubmissionForm{ProjectID: "abc", Description: "d", Files: []ipfs.File{{Name: "a"}}})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, []string{"project_id"}, verr.FieldNames())
}

func TestSubmitEndToEnd(t *testing.T) {
	var uploads int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		uploads++
		mu.Unlock()
		assert.Equal(t, "Bearer jwt-from-secret-store", r.Header.Get("Authorization"))
		f, _, err := r.FormFile("file")
		if assert.NoError(t, err) {
			data, _ := io.ReadAll(f)
			assert.Len(t, data, 500*1024)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"IpfsHash": "bafybeievidence", "PinSize": 512000})
	}))
	defer srv.Close()

	pinata, err := ipfs.NewPinataClient("jwt-from-secret-store", ipfs.WithPinataAPIURL(srv.URL))
	require.NoError(t, err)
	c := &fakeChain{}
	w, ref, _ := newSubmission(ipfs.NewStore(pinata, nil), c, types.ReceiptStatusSuccessful)

	var states []State
	var smu sync.Mutex
	w.Subscribe(func(p Progress) {
		smu.Lock()
		defer smu.Unlock()
		if n := len(states); n == 0 || states[n-1] != p.State {
			states = append(states, p.State)
		}
	})

	form := SubmissionForm{
		ProjectID:   "42",
		Description: "Foundation poured",
		Files:       []ipfs.File{{Name: "site.jpg", ContentType: "image/jpeg", Data: jpeg(500 * 1024)}},
	}
	p, err := w.Submit(context.Background(), form)
	require.NoError(t, err)

	assert.Equal(t, StateDone, p.State)
	assert.Equal(t, "bafybeievidence", p.EvidenceCID)
	assert.Equal(t, chain.PhaseConfirmed, p.Transaction.Phase)
	assert.NotEmpty(t, p.AttemptID)
	assert.Equal(t, []submitCall{{"42", "Foundation poured", "bafybeievidence"}}, c.submitCalls())
	assert.Equal(t, 1, ref.count(), "exactly one refresh after confirmation")
	assert.Equal(t, 1, uploads)

	smu.Lock()
	defer smu.Unlock()
	assert.Equal(t, []State{
		StateValidating, StateUploadingEvidence, StateSubmittingTransaction, StateAwaitingConfirmation, StateDone,
	}, states)
}

func TestFirstSuccessfulUploadWins(t *testing.T) {
	up := &scriptedUploader{
		results: map[string]uploadResult{
			"bad.png":  {err: errors.New("boom")},
			"good.png": {cid: "bafygood"},
		},
		block: map[string]bool{"slow.png": true},
	}
	c := &fakeChain{}
	w, _, _ := newSubmission(up, c, types.ReceiptStatusSuccessful)

	p, err := w.Submit(context.Background(), SubmissionForm{
		ProjectID:   "1",
		Description: "d",
		Files:       []ipfs.File{{Name: "slow.png"}, {Name: "bad.png"}, {Name: "good.png"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "bafygood", p.EvidenceCID)

	require.Eventually(t, func() bool {
		up.mu.Lock()
		defer up.mu.Unlock()
		return len(up.cancelled) == 1
	}, time.Second, 2*time.Millisecond, "remaining uploads are cancelled")
	assert.Equal(t, "bafygood", c.submitCalls()[0].cid)
}

func TestUploadFailurePreservesFormAndRetries(t *testing.T) {
	up := &scriptedUploader{results: map[string]uploadResult{
		"a.png": {err: &ipfs.UploadError{File: "a.png", Kind: ipfs.UploadNetworkError, Message: "connection reset"}},
	}}
	c := &fakeChain{}
	w, ref, _ := newSubmission(up, c, types.ReceiptStatusSuccessful)

	form := SubmissionForm{ProjectID: "7", Description: "roof", Files: []ipfs.File{{Name: "a.png"}}}
	p, err := w.Submit(context.Background(), form)
	require.Error(t, err)
	assert.Equal(t, StateFailed, p.State)
	assert.Contains(t, p.Message, "connection reset")
	assert.Equal(t, form, w.Form())
	assert.Empty(t, c.submitCalls())

	up.mu.Lock()
	up.results["a.png"] = uploadResult{cid: "bafyretry"}
	up.mu.Unlock()

	p, err = w.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, p.State)
	assert.Equal(t, []submitCall{{"7", "roof", "bafyretry"}}, c.submitCalls())
	assert.Equal(t, 1, ref.count())
}

func TestUserRejectionIsNotASystemFault(t *testing.T) {
	up := &scriptedUploader{results: map[string]uploadResult{"a.png": {cid: "bafy1"}}}
	c := &fakeChain{err: &chain.ChainWriteError{Function: chain.FnSubmitProject, Kind: chain.WriteUserRejected, Err: procurement.ErrUserRejected}}
	w, ref, _ := newSubmission(up, c, types.ReceiptStatusSuccessful)

	p, err := w.Submit(context.Background(), SubmissionForm{ProjectID: "1", Description: "d", Files: []ipfs.File{{Name: "a.png"}}})
	require.Error(t, err)
	assert.Equal(t, StateFailed, p.State)
	assert.Equal(t, "You cancelled the transaction in your wallet. Nothing was submitted.", p.Message)
	assert.Equal(t, chain.PhaseNotStarted, p.Transaction.Phase)
	assert.Zero(t, ref.count())
}

func TestRevertedTransactionRetryReusesEvidence(t *testing.T) {
	up := &scriptedUploader{results: map[string]uploadResult{"a.png": {cid: "bafy1"}}}
	c := &fakeChain{}
	w, ref, src := newSubmission(up, c, types.ReceiptStatusFailed)

	p, err := w.Submit(context.Background(), SubmissionForm{ProjectID: "3", Description: "d", Files: []ipfs.File{{Name: "a.png"}}})
	require.Error(t, err)
	assert.ErrorIs(t, err, procurement.ErrTransactionFailed)
	assert.Equal(t, chain.PhaseFailed, p.Transaction.Phase)
	assert.Contains(t, p.Message, "rejected the transaction")
	assert.Zero(t, ref.count())

	src.setStatus(types.ReceiptStatusSuccessful)
	p, err = w.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, p.State)
	assert.Equal(t, 1, up.callCount(), "pinned evidence is reused")
	assert.Len(t, c.submitCalls(), 2)
}

func TestRetryWithoutFailure(t *testing.T) {
	w, _, _ := newSubmission(&scriptedUploader{}, &fakeChain{}, types.ReceiptStatusSuccessful)
	_, err := w.Retry(context.Background())
	assert.ErrorIs(t, err, ErrNotRetryable)
}

func TestSubmitWhileRunningIsBusy(t *testing.T) {
	up := &scriptedUploader{block: map[string]bool{"a.png": true}, started: make(chan string, 1)}
	w, _, _ := newSubmission(up, &fakeChain{}, types.ReceiptStatusSuccessful)
	form := SubmissionForm{ProjectID: "1", Description: "d", Files: []ipfs.File{{Name: "a.png"}}}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(ctx, form)
		done <- err
	}()
	<-up.started

	_, err := w.Submit(context.Background(), form)
	assert.ErrorIs(t, err, ErrBusy)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, StateFailed, w.Snapshot().State)
}

func TestAbandonWhileAwaitingConfirmation(t *testing.T) {
	up := &scriptedUploader{results: map[string]uploadResult{"a.png": {cid: "bafy1"}}}
	tracker := chain.NewTracker(neverMined{}, chain.TrackerConfig{PollInterval: 2 * time.Millisecond, Timeout: time.Minute}, nil)
	w := NewSubmission(SubmissionDeps{
		Account: fakeAccount{addr: contractor}, Uploader: up, Chain: &fakeChain{}, Tracker: tracker,
	})

	done := make(chan Progress, 1)
	go func() {
		p, _ := w.Submit(context.Background(), SubmissionForm{ProjectID: "1", Description: "d", Files: []ipfs.File{{Name: "a.png"}}})
		done <- p
	}()
	require.Eventually(t, func() bool {
		return w.Snapshot().Transaction.Phase == chain.PhaseConfirming
	}, time.Second, time.Millisecond)

	w.Abandon()
	p := <-done
	assert.Equal(t, StateFailed, p.State)
	assert.ErrorIs(t, p.Err, procurement.ErrTrackingStopped)
}

type neverMined struct{}

func (neverMined) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	return nil, ethereum.NotFound
}

func (neverMined) BlockNumber(context.Context) (uint64, error) { return 1, nil }

func TestCallerGoingAwayKeepsTracking(t *testing.T) {
	up := &scriptedUploader{results: map[string]uploadResult{"a.png": {cid: "bafy1"}}}
	c := &fakeChain{}
	w, ref, src := newSubmission(up, c, types.ReceiptStatusSuccessful)
	src.setPending(true)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan Progress, 1)
	go func() {
		p, _ := w.Submit(ctx, SubmissionForm{ProjectID: "1", Description: "d", Files: []ipfs.File{{Name: "a.png"}}})
		done <- p
	}()
	require.Eventually(t, func() bool {
		return w.Snapshot().Transaction.Phase == chain.PhaseConfirming
	}, time.Second, time.Millisecond)

	cancel()
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, StateAwaitingConfirmation, w.Snapshot().State)

	src.setPending(false)
	p := <-done
	assert.Equal(t, StateDone, p.State)
	assert.Equal(t, chain.PhaseConfirmed, p.Transaction.Phase)
	assert.Len(t, c.submitCalls(), 1)
	assert.Equal(t, 1, ref.count())
}

func TestRetryAfterTimeoutTracksSameTransaction(t *testing.T) {
	up := &scriptedUploader{results: map[string]uploadResult{"a.png": {cid: "bafy1"}}}
	c := &fakeChain{}
	src := &receipts{status: types.ReceiptStatusSuccessful, pending: true}
	tracker := chain.NewTracker(src, chain.TrackerConfig{PollInterval: 2 * time.Millisecond, Timeout: 30 * time.Millisecond}, nil)
	ref := &fakeRefresher{}
	w := NewSubmission(SubmissionDeps{
		Account: fakeAccount{addr: contractor}, Uploader: up, Chain: c, Tracker: tracker, Refresher: ref,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	p, err := w.Submit(ctx, SubmissionForm{ProjectID: "1", Description: "d", Files: []ipfs.File{{Name: "a.png"}}})
	var timeout *chain.TransactionTimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, StateFailed, p.State)
	sentHash := p.Transaction.Hash

	src.setPending(false)
	p, err = w.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, p.State)
	assert.Equal(t, sentHash, p.Transaction.Hash)
	assert.Equal(t, "bafy1", p.EvidenceCID)
	assert.Len(t, c.submitCalls(), 1, "SubmitProject is not resent")
	assert.Equal(t, 1, up.callCount())
	assert.Equal(t, 1, ref.count())
}

func TestRetryAfterAbandonTracksSameTransaction(t *testing.T) {
	up := &scriptedUploader{results: map[string]uploadResult{"a.png": {cid: "bafy1"}}}
	c := &fakeChain{}
	w, _, src := newSubmission(up, c, types.ReceiptStatusSuccessful)
	src.setPending(true)

	done := make(chan error, 1)
	go func() {
		_, err := w.Submit(context.Background(), SubmissionForm{ProjectID: "1", Description: "d", Files: []ipfs.File{{Name: "a.png"}}})
		done <- err
	}()
	require.Eventually(t, func() bool {
		return w.Snapshot().Transaction.Phase == chain.PhaseConfirming
	}, time.Second, time.Millisecond)
	w.Abandon()
	assert.ErrorIs(t, <-done, procurement.ErrTrackingStopped)

	src.setPending(false)
	p, err := w.Retry(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, p.State)
	assert.Len(t, c.submitCalls(), 1)
}
