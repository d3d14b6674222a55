package services

import (
	"bytes"
	"fmt"
	"image/png"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"
)

// QRCodeService renders scannable links for transactions and evidence.
type QRCodeService struct {
	explorerURL string
	size        int
}

// NewQRCodeService creates a QR service. explorerURL is a block explorer
// base such as https://sepolia.etherscan.io; it may be empty.
func NewQRCodeService(explorerURL string) *QRCodeService {
	return &QRCodeService{explorerURL: strings.TrimRight(explorerURL, "/"), size: 256}
}

// TransactionURL is the link a receipt QR code points to.
func (s *QRCodeService) TransactionURL(hash string) string {
	if s.explorerURL == "" {
		return hash
	}
	return fmt.Sprintf("%s/tx/%s", s.explorerURL, hash)
}

// TransactionReceipt returns a PNG QR code for a submitted transaction.
func (s *QRCodeService) TransactionReceipt(hash string) ([]byte, error) {
	if strings.TrimSpace(hash) == "" {
		return nil, fmt.Errorf("missing transaction hash")
	}
	return s.GenerateQRCode(s.TransactionURL(hash))
}

// GenerateQRCode encodes content as a PNG.
func (s *QRCodeService) GenerateQRCode(content string) ([]byte, error) {
	qr, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := png.Encode(buf, qr.Image(s.size)); err != nil {
		return nil, fmt.Errorf("failed to encode QR code to PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	Account   string `json:"account,omitempty"`
	Timestamp int64  `json:"timestamp"`
}

// HealthService reports liveness.
type HealthService struct {
	started time.Time
}

func NewHealthService() *HealthService {
	return &HealthService{started: time.Now()}
}

// GetHealthStatus returns current health status.
func (s *HealthService) GetHealthStatus(account string) *HealthResponse {
	return &HealthResponse{
		Status:    "healthy",
		Message:   fmt.Sprintf("procurement client up %s", time.Since(s.started).Round(time.Second)),
		Account:   account,
		Timestamp: time.Now().Unix(),
	}
}
