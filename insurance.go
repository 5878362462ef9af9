// Package insurance defines the wire types and constants of the
// x402-insurance protocol: a payment-required challenge/response cycle in
// which a service provider's refundable bond insures a client against
// non-delivery. The authoritative state machine lives in the ledger
// package; the facilitator, middleware, and client packages speak the
// types defined here.
package insurance

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
)

// Protocol identifiers advertised by facilitators and embedded in
// attestation payloads.
const (
	ProtocolName    = "x402-insurance"
	ProtocolVersion = "1.0.0"
)

// HTTP headers carried on the follow-up request after settlement.
const (
	HeaderPaymentProof      = "x-payment-proof"
	HeaderRequestCommitment = "x-request-commitment"
)

// ChallengeType is the discriminant of the 402 challenge body.
const ChallengeType = "x402-insurance"

// CommitmentLen is the byte length of a request commitment.
const CommitmentLen = 32

// NewCommitment returns a fresh 32-byte request commitment drawn from a
// cryptographically strong random source. Commitments key claims on the
// ledger, so they must be both collision-resistant and unpredictable.
func NewCommitment() ([CommitmentLen]byte, error) {
	var c [CommitmentLen]byte
	if _, err := rand.Read(c[:]); err != nil {
		return c, fmt.Errorf("failed to generate commitment: %w", err)
	}
	return c, nil
}

// EncodeCommitment renders a commitment as lowercase hex, the form used in
// the x-request-commitment header and the 402 challenge body.
func EncodeCommitment(c [CommitmentLen]byte) string {
	return hex.EncodeToString(c[:])
}

// ParseCommitment decodes a hex-encoded commitment, rejecting anything
// that is not exactly 32 bytes.
func ParseCommitment(s string) ([CommitmentLen]byte, error) {
	var c [CommitmentLen]byte
	raw, err := hex.DecodeString(s)
	if err != nil {
		return c, fmt.Errorf("invalid commitment encoding: %w", err)
	}
	if len(raw) != CommitmentLen {
		return c, fmt.Errorf("invalid commitment length: got %d bytes, want %d", len(raw), CommitmentLen)
	}
	copy(c[:], raw)
	return c, nil
}
