package services

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransactionReceipt(t *testing.T) {
	s := NewQRCodeService("https://sepolia.etherscan.io/")
	assert.Equal(t, "https://sepolia.etherscan.io/tx/0xabc", s.TransactionURL("0xabc"))

	data, err := s.TransactionReceipt("0xabc")
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 256, img.Bounds().Dx())

	_, err = s.TransactionReceipt(" ")
	assert.Error(t, err)
}

func TestTransactionURLWithoutExplorer(t *testing.T) {
	assert.Equal(t, "0xabc", NewQRCodeService("").TransactionURL("0xabc"))
}

func TestHealthStatus(t *testing.T) {
	h := NewHealthService().GetHealthStatus("0x01")
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "0x01", h.Account)
	assert.NotZero(t, h.Timestamp)
}
