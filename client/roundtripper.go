package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	insurance "github.com/x402-foundation/x402-insurance"
)

// maxPaymentRetries bounds how many challenges a single logical request
// will pay for, preventing payment loops against a misbehaving server.
const maxPaymentRetries = 1

// RoundTripper is an http.RoundTripper that transparently completes the
// insurance purchase cycle: on a 402 response it purchases coverage per
// the challenge and retries the request with proof headers.
type RoundTripper struct {
	base   http.RoundTripper
	client *Client
}

// NewRoundTripper wraps base (nil means http.DefaultTransport) with
// automatic challenge handling.
func NewRoundTripper(base http.RoundTripper, c *Client) *RoundTripper {
	if base == nil {
		base = http.DefaultTransport
	}
	return &RoundTripper{base: base, client: c}
}

// RoundTrip implements http.RoundTripper.
func (rt *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := rt.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	for attempt := 0; attempt < maxPaymentRetries && resp.StatusCode == http.StatusPaymentRequired; attempt++ {
		challenge, err := decodeChallenge(resp)
		if err != nil {
			return nil, err
		}

		purchase, err := rt.client.PurchaseInsurance(req.Context(), challenge)
		if err != nil {
			return nil, fmt.Errorf("failed to complete payment challenge: %w", err)
		}

		retry, err := cloneRequest(req)
		if err != nil {
			return nil, err
		}
		retry.Header.Set(insurance.HeaderPaymentProof, purchase.Proof)
		retry.Header.Set(insurance.HeaderRequestCommitment, purchase.Commitment)

		resp, err = rt.base.RoundTrip(retry)
		if err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func decodeChallenge(resp *http.Response) (*insurance.PaymentChallenge, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read challenge body: %w", err)
	}
	var challenge insurance.PaymentChallenge
	if err := json.Unmarshal(body, &challenge); err != nil {
		return nil, fmt.Errorf("failed to parse payment challenge: %w", err)
	}
	if challenge.Type != insurance.ChallengeType {
		return nil, fmt.Errorf("unrecognized challenge type %q", challenge.Type)
	}
	return &challenge, nil
}

func cloneRequest(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return retry, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("cannot retry request with unreplayable body")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("failed to rewind request body: %w", err)
	}
	retry.Body = body
	return retry, nil
}

// NewHTTPClient returns an http.Client whose transport completes
// payment challenges automatically.
func NewHTTPClient(c *Client) *http.Client {
	return &http.Client{Transport: NewRoundTripper(nil, c)}
}
