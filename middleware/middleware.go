// Package middleware gates protected resources behind the
// x402-insurance challenge cycle. A request without proof headers
// receives a 402 challenge carrying a fresh commitment and the derived
// account addresses the client needs; a request presenting a proof is
// admitted once the referenced claim exists in a non-rejected state.
package middleware

import (
	"context"
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"

	insurance "github.com/x402-foundation/x402-insurance"
	"github.com/x402-foundation/x402-insurance/ledger"
)

// ClaimReader reads claim lifecycle state. Satisfied by both the
// in-process ledger and the facilitator package's RPC state reader.
type ClaimReader interface {
	GetClaim(ctx context.Context, commitment [32]byte) (*ledger.InsuranceClaim, error)
}

// Config configures the challenge middleware for one protected
// resource.
type Config struct {
	// ProgramID defaults to the canonical insurance program.
	ProgramID solana.PublicKey

	// Provider is the service provider credited by insured payments.
	Provider solana.PublicKey

	// FacilitatorURL is advertised in challenges so clients know where
	// to verify and settle.
	FacilitatorURL string

	// PaymentAmount is the price of one unit of work, in minor units.
	PaymentAmount uint64

	// Currency names the value unit, for example "USDC".
	Currency string

	// TimeoutMinutes is the delivery deadline offered in challenges.
	// Zero defers to the ledger's configured default.
	TimeoutMinutes uint64

	// Claims resolves proof admission.
	Claims ClaimReader
}

func (c *Config) validate() error {
	if c.Provider.IsZero() {
		return errors.New("middleware: provider public key is required")
	}
	if c.PaymentAmount == 0 {
		return errors.New("middleware: payment amount is required")
	}
	if c.Claims == nil {
		return errors.New("middleware: claim reader is required")
	}
	return nil
}

func (c *Config) programID() solana.PublicKey {
	if c.ProgramID.IsZero() {
		return ledger.DefaultProgramID
	}
	return c.ProgramID
}

// NewChallenge synthesizes a 402 challenge with a fresh high-entropy
// commitment and the deterministic addresses the client will need.
func NewChallenge(cfg *Config) (*insurance.PaymentChallenge, error) {
	commitment, err := insurance.NewCommitment()
	if err != nil {
		return nil, fmt.Errorf("failed to generate commitment: %w", err)
	}

	programID := cfg.programID()
	configAddr, _, err := ledger.ConfigAddress(programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive config address: %w", err)
	}
	bondAddr, _, err := ledger.ProviderBondAddress(programID, cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("failed to derive bond address: %w", err)
	}
	claimAddr, _, err := ledger.ClaimAddress(programID, commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to derive claim address: %w", err)
	}

	return &insurance.PaymentChallenge{
		Type:        insurance.ChallengeType,
		Amount:      cfg.PaymentAmount,
		Currency:    cfg.Currency,
		Provider:    cfg.Provider.String(),
		Facilitator: cfg.FacilitatorURL,
		Details: insurance.ChallengeDetails{
			ProgramID:         programID.String(),
			RequestCommitment: insurance.EncodeCommitment(commitment),
			Accounts: insurance.ChallengeAccounts{
				Config:       configAddr.String(),
				ProviderBond: bondAddr.String(),
				Claim:        claimAddr.String(),
			},
			Timeout: cfg.TimeoutMinutes,
		},
	}, nil
}

// admitProof re-derives the claim from the presented commitment and
// admits when it is pending or confirmed. A missing or already-claimed
// record denies: a refunded payment buys no further service.
func admitProof(ctx context.Context, cfg *Config, proof, commitmentHex string) bool {
	if proof == "" || commitmentHex == "" {
		return false
	}
	commitment, err := insurance.ParseCommitment(commitmentHex)
	if err != nil {
		return false
	}
	claim, err := cfg.Claims.GetClaim(ctx, commitment)
	if err != nil {
		return false
	}
	switch claim.Status {
	case ledger.ClaimPending, ledger.ClaimConfirmed:
		return true
	default:
		return false
	}
}
