package ipfs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultPinataAPIURL     = "https://api.pinata.cloud"
	DefaultPinataGatewayURL = "https://gateway.pinata.cloud"
)

// PinataClient pins files through the Pinata pinning API.
type PinataClient struct {
	apiURL     string
	gatewayURL string
	jwt        string
	client     *http.Client
	now        func() time.Time
}

// PinataOption customises a PinataClient.
type PinataOption func(*PinataClient)

func WithPinataAPIURL(u string) PinataOption {
	return func(c *PinataClient) {
		if u != "" {
			c.apiURL = strings.TrimRight(u, "/")
		}
	}
}

func WithPinataGateway(u string) PinataOption {
	return func(c *PinataClient) {
		if u != "" {
			c.gatewayURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) PinataOption {
	return func(c *PinataClient) { c.client = hc }
}

// NewPinataClient authenticates with jwt, which must come from a secret
// source and never from source code.
func NewPinataClient(jwt string, opts ...PinataOption) (*PinataClient, error) {
	jwt = strings.TrimSpace(jwt)
	if jwt == "" {
		return nil, errors.New("pinata: missing JWT")
	}
	c := &PinataClient{
		apiURL:     DefaultPinataAPIURL,
		gatewayURL: DefaultPinataGatewayURL,
		jwt:        jwt,
		client:     &http.Client{Timeout: 30 * time.Second},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *PinataClient) Name() string { return "pinata" }

type pinResponse struct {
	IpfsHash  string `json:"IpfsHash"`
	PinSize   int64  `json:"PinSize"`
	Timestamp string `json:"Timestamp"`
}

// Add uploads file with pinFileToIPFS and returns IpfsHash.
func (c *PinataClient) Add(ctx context.Context, file File) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := createFilePart(writer, "file", file)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(file.Data); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/pinning/pinFileToIPFS", &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", networkError(file.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", providerError(file.Name, pinataMessage(resp))
	}
	var out pinResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", providerError(file.Name, fmt.Sprintf("decode response: %v", err))
	}
	if out.IpfsHash == "" {
		return "", providerError(file.Name, "response has no IpfsHash")
	}
	return out.IpfsHash, nil
}

// GatewayURL is the public gateway address of cid.
func (c *PinataClient) GatewayURL(cid string) string {
	return fmt.Sprintf("%s/ipfs/%s", c.gatewayURL, cid)
}

type signRequest struct {
	URL     string `json:"url"`
	Expires int64  `json:"expires"`
	Date    int64  `json:"date"`
	Method  string `json:"method"`
}

// SignedURL asks Pinata for a time-limited link to a private file.
func (c *PinataClient) SignedURL(ctx context.Context, cid string, ttl time.Duration) (string, error) {
	cid = strings.TrimSpace(cid)
	if cid == "" {
		return "", errors.New("pinata: missing cid")
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	payload, err := json.Marshal(signRequest{
		URL:     fmt.Sprintf("%s/files/%s", c.gatewayURL, cid),
		Expires: int64(ttl / time.Second),
		Date:    c.now().Unix(),
		Method:  http.MethodGet,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+"/v3/files/sign", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.jwt)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sign %s: %w", cid, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("sign %s: %s", cid, pinataMessage(resp))
	}
	var out struct {
		Data      string `json:"data"`
		SignedURL string `json:"signedUrl"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("sign %s: decode response: %w", cid, err)
	}
	if out.Data != "" {
		return out.Data, nil
	}
	if out.SignedURL != "" {
		return out.SignedURL, nil
	}
	return "", fmt.Errorf("sign %s: empty signed url", cid)
}

// pinataMessage keeps the provider's own error text when it sends one.
func pinataMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body struct {
		Error json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && len(body.Error) > 0 {
		var text string
		if json.Unmarshal(body.Error, &text) == nil && text != "" {
			return resp.Status + ": " + text
		}
		var detail struct {
			Reason  string `json:"reason"`
			Details string `json:"details"`
		}
		if json.Unmarshal(body.Error, &detail) == nil && (detail.Reason != "" || detail.Details != "") {
			return strings.TrimSpace(fmt.Sprintf("%s: %s %s", resp.Status, detail.Reason, detail.Details))
		}
	}
	if msg := strings.TrimSpace(string(raw)); msg != "" {
		return resp.Status + ": " + msg
	}
	return resp.Status
}
