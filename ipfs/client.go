package ipfs

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
)

// KuboClient talks to a local or self-hosted Kubo node over its RPC API.
type KuboClient struct {
	apiURL string
	client *http.Client
}

// NewKuboClient builds a client for apiURL; timeout bounds each request.
func NewKuboClient(apiURL string, timeout time.Duration) *KuboClient {
	if apiURL == "" {
		apiURL = "http://127.0.0.1:5001"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &KuboClient{
		apiURL: strings.TrimRight(apiURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

func (c *KuboClient) Name() string { return "kubo" }

// Add pins file on the node and returns its CIDv1.
func (c *KuboClient) Add(ctx context.Context, file File) (string, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		defer pw.Close()
		part, err := createFilePart(writer, "file", file)
		if err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, bytes.NewReader(file.Data)); err != nil {
			_ = pw.CloseWithError(err)
			return
		}
		_ = writer.Close()
	}()

	reqURL := fmt.Sprintf("%s/api/v0/add?pin=true&cid-version=1", c.apiURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, pr)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", networkError(file.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", providerError(file.Name, statusMessage(resp))
	}

	// Kubo streams one JSON object per added entry; the last is the root.
	var lastHash string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		var entry struct {
			Hash string `json:"Hash"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &entry); err == nil && entry.Hash != "" {
			lastHash = entry.Hash
		}
	}
	if err := scanner.Err(); err != nil {
		return "", networkError(file.Name, err)
	}
	if lastHash == "" {
		return "", providerError(file.Name, "ipfs add returned empty hash")
	}
	return lastHash, nil
}

func createFilePart(w *multipart.Writer, field string, file File) (io.Writer, error) {
	name := file.Name
	if name == "" {
		name = "evidence"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, field, name))
	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	return w.CreatePart(h)
}

func statusMessage(resp *http.Response) string {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return resp.Status
	}
	return resp.Status + ": " + msg
}
