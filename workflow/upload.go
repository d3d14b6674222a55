package workflow

import (
	"context"

	"procurement-client/ipfs"
)

// Uploader stores one evidence file and returns its CID.
type Uploader interface {
	Upload(ctx context.Context, file ipfs.File) (string, error)
}

type uploadResult struct {
	cid string
	err error
}

// uploadFirst starts every upload at once and returns the CID of the first
// one to succeed; the rest are cancelled. If all fail, the first failure
// is returned.
func uploadFirst(ctx context.Context, up Uploader, files []ipfs.File) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan uploadResult, len(files))
	for _, f := range files {
		go func(f ipfs.File) {
			cid, err := up.Upload(ctx, f)
			results <- uploadResult{cid: cid, err: err}
		}(f)
	}

	var firstErr error
	for range files {
		res := <-results
		if res.err == nil && res.cid != "" {
			return res.cid, nil
		}
		if firstErr == nil {
			firstErr = res.err
		}
	}
	if firstErr == nil {
		firstErr = ctx.Err()
	}
	return "", firstErr
}
