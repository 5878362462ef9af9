package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	insurance "github.com/x402-foundation/x402-insurance"
)

// FacilitatorClient talks to a facilitator service over HTTP.
type FacilitatorClient struct {
	baseURL    string
	httpClient *http.Client
}

// FacilitatorOption configures a FacilitatorClient.
type FacilitatorOption func(*FacilitatorClient)

// WithHTTPClient overrides the HTTP client used for facilitator calls.
func WithHTTPClient(client *http.Client) FacilitatorOption {
	return func(f *FacilitatorClient) {
		f.httpClient = client
	}
}

// NewFacilitatorClient creates a client for the facilitator at baseURL.
func NewFacilitatorClient(baseURL string, opts ...FacilitatorOption) *FacilitatorClient {
	f := &FacilitatorClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 90 * time.Second},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FacilitatorClient) post(ctx context.Context, path string, body, out interface{}) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, fmt.Errorf("failed to read response from %s: %w", path, err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to parse response from %s (status %d): %w", path, resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}

// Verify asks the facilitator to validate a settlement transaction
// without submitting it. Validation failures are reported in the
// response, not as errors.
func (f *FacilitatorClient) Verify(ctx context.Context, txBase64 string) (*insurance.VerifyResponse, error) {
	var out insurance.VerifyResponse
	status, err := f.post(ctx, "/verify", insurance.VerifyRequest{Transaction: txBase64}, &out)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK && status != http.StatusBadRequest {
		return nil, fmt.Errorf("verify returned unexpected status %d", status)
	}
	return &out, nil
}

// Settle submits a settlement transaction through the facilitator and
// waits for its confirmation.
func (f *FacilitatorClient) Settle(ctx context.Context, txBase64 string, gasless bool) (*insurance.SettleResponse, error) {
	var out insurance.SettleResponse
	status, err := f.post(ctx, "/settle", insurance.SettleRequest{Transaction: txBase64, Gasless: gasless}, &out)
	if err != nil {
		return nil, err
	}
	if !out.Success {
		if out.Error != "" {
			return &out, fmt.Errorf("settlement failed: %s", out.Error)
		}
		return &out, fmt.Errorf("settlement failed with status %d", status)
	}
	return &out, nil
}

// Supported fetches the facilitator's capability document.
func (f *FacilitatorClient) Supported(ctx context.Context) (*insurance.SupportedCapabilities, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.baseURL+"/supported", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to /supported failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("supported returned status %d", resp.StatusCode)
	}
	var out insurance.SupportedCapabilities
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to parse supported response: %w", err)
	}
	return &out, nil
}
