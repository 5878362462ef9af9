package facilitator

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	solana "github.com/gagliardetto/solana-go"
)

// RelayClient submits transactions to an external fee-sponsorship
// service over HTTP. The service counter-signs as fee payer and
// broadcasts on the facilitator's behalf.
type RelayClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// RelayOption configures a RelayClient.
type RelayOption func(*RelayClient)

// WithRelayHTTPClient overrides the HTTP client used for relay calls.
func WithRelayHTTPClient(client *http.Client) RelayOption {
	return func(r *RelayClient) {
		r.httpClient = client
	}
}

// NewRelayClient creates a fee relay client for the given endpoint.
// apiKey may be empty when the relay is unauthenticated.
func NewRelayClient(baseURL, apiKey string, opts ...RelayOption) *RelayClient {
	r := &RelayClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

type relaySendRequest struct {
	Transaction string           `json:"transaction"`
	Options     relaySendOptions `json:"options"`
}

type relaySendOptions struct {
	Commitment string `json:"commitment"`
}

type relaySendResponse struct {
	Signature string `json:"signature"`
	Error     string `json:"error,omitempty"`
}

// SignAndSend forwards the transaction to the relay, which signs as fee
// payer and broadcasts it. Implements FeeRelay.
func (r *RelayClient) SignAndSend(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to serialize transaction: %w", err)
	}

	body, err := json.Marshal(relaySendRequest{
		Transaction: base64.StdEncoding.EncodeToString(raw),
		Options:     relaySendOptions{Commitment: "confirmed"},
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/signAndSendTransaction", bytes.NewReader(body))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to read relay response: %w", err)
	}

	var decoded relaySendResponse
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return solana.Signature{}, fmt.Errorf("relay returned unparseable response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK {
		if decoded.Error != "" {
			return solana.Signature{}, fmt.Errorf("relay returned status %d: %s", resp.StatusCode, decoded.Error)
		}
		return solana.Signature{}, fmt.Errorf("relay returned status %d", resp.StatusCode)
	}

	sig, err := solana.SignatureFromBase58(decoded.Signature)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("relay returned invalid signature: %w", err)
	}
	return sig, nil
}
