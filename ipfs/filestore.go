// Package ipfs uploads evidence files to an IPFS pinning provider.
package ipfs

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"procurement-client/metrics"
	"procurement-client/security"
)

// MaxFileSize is the largest evidence file accepted, in bytes.
const MaxFileSize = 1 << 20

// allowedTypes lists the accepted MIME types. image/jpg is not a registered
// type but browsers and some clients still send it.
var allowedTypes = map[string]bool{
	"image/png":  true,
	"image/jpeg": true,
	"image/jpg":  true,
}

// File is one evidence upload.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the payload length.
func (f File) Size() int { return len(f.Data) }

// Provider stores bytes on IPFS and returns the content identifier.
type Provider interface {
	Name() string
	Add(ctx context.Context, file File) (string, error)
}

// UploadErrorKind classifies upload failures.
type UploadErrorKind string

const (
	UploadTooLarge        UploadErrorKind = "too_large"
	UploadUnsupportedType UploadErrorKind = "unsupported_type"
	UploadNetworkError    UploadErrorKind = "network_error"
	UploadProviderError   UploadErrorKind = "provider_error"
)

// UploadError is returned by every failed upload.
type UploadError struct {
	File    string
	Kind    UploadErrorKind
	Message string
	Err     error
}

func (e *UploadError) Error() string {
	var b strings.Builder
	if e.File != "" {
		fmt.Fprintf(&b, "upload %s: ", e.File)
	}
	switch e.Kind {
	case UploadTooLarge:
		b.WriteString("file exceeds 1 MB")
	case UploadUnsupportedType:
		b.WriteString("only PNG and JPEG images are accepted")
	default:
		b.WriteString(string(e.Kind))
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

func (e *UploadError) Unwrap() error { return e.Err }

// Retryable is true for failures that may succeed if tried again unchanged.
func (e *UploadError) Retryable() bool {
	return e.Kind == UploadNetworkError || e.Kind == UploadProviderError
}

func networkError(file string, err error) *UploadError {
	return &UploadError{File: file, Kind: UploadNetworkError, Message: err.Error(), Err: err}
}

func providerError(file, msg string) *UploadError {
	return &UploadError{File: file, Kind: UploadProviderError, Message: msg}
}

// Store validates files locally and hands them to a Provider.
type Store struct {
	provider Provider
	metrics  *metrics.Metrics
}

// NewStore wraps provider with local validation.
func NewStore(provider Provider, m *metrics.Metrics) *Store {
	return &Store{provider: provider, metrics: m}
}

// Provider returns the backing provider.
func (s *Store) Provider() Provider { return s.provider }

// Validate checks size and type without touching the network.
func Validate(file File) error {
	if file.Size() > MaxFileSize {
		return &UploadError{File: file.Name, Kind: UploadTooLarge, Message: fmt.Sprintf("%d bytes", file.Size())}
	}
	if !security.ValidateExtension(file.Name, security.EvidenceExtensions) {
		return &UploadError{File: file.Name, Kind: UploadUnsupportedType, Message: "extension " + filepath.Ext(file.Name)}
	}
	declared := strings.ToLower(strings.TrimSpace(file.ContentType))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}
	if declared != "" && !allowedTypes[declared] {
		return &UploadError{File: file.Name, Kind: UploadUnsupportedType, Message: declared}
	}
	detected := mimetype.Detect(file.Data)
	if !allowedTypes[detected.String()] {
		return &UploadError{File: file.Name, Kind: UploadUnsupportedType, Message: detected.String()}
	}
	return nil
}

// Upload validates file and stores it, returning its CID.
func (s *Store) Upload(ctx context.Context, file File) (string, error) {
	provider := s.provider.Name()
	if err := Validate(file); err != nil {
		s.metrics.ObserveUpload(provider, "rejected", file.Size())
		return "", err
	}
	if file.ContentType == "" {
		file.ContentType = mimetype.Detect(file.Data).String()
	}

	cid, err := s.provider.Add(ctx, file)
	if err != nil {
		var uerr *UploadError
		if !errors.As(err, &uerr) {
			uerr = networkError(file.Name, err)
		}
		if uerr.File == "" {
			uerr.File = file.Name
		}
		if ctx.Err() == nil {
			log.Printf("Evidence upload of %s via %s failed: %v", file.Name, provider, uerr)
		}
		s.metrics.ObserveUpload(provider, string(uerr.Kind), file.Size())
		return "", uerr
	}
	s.metrics.ObserveUpload(provider, "ok", file.Size())
	log.Printf("Uploaded %s (%d bytes) via %s: %s", file.Name, file.Size(), provider, cid)
	return cid, nil
}
