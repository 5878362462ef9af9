package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"

	insurance "github.com/x402-foundation/x402-insurance"
	"github.com/x402-foundation/x402-insurance/instruction"
	"github.com/x402-foundation/x402-insurance/ledger"
)

// BlockhashSource supplies the recent validity reference a transaction
// must be signed over. Satisfied by the facilitator package's RPC
// broadcaster and by the in-process ledger broadcaster.
type BlockhashSource interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// Config assembles a Client.
type Config struct {
	Signer      Signer
	Facilitator *FacilitatorClient
	Blockhash   BlockhashSource

	// Gasless requests fee-sponsored settlement. FeePayer must then
	// name the sponsor so it occupies the fee payer slot; the sponsor
	// counter-signs during settlement.
	Gasless  bool
	FeePayer solana.PublicKey
}

// Client drives the purchase side of the challenge cycle.
type Client struct {
	signer      Signer
	facilitator *FacilitatorClient
	blockhash   BlockhashSource
	gasless     bool
	feePayer    solana.PublicKey
}

// New creates a Client from its configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Signer == nil {
		return nil, errors.New("client: signer is required")
	}
	if cfg.Facilitator == nil {
		return nil, errors.New("client: facilitator client is required")
	}
	if cfg.Blockhash == nil {
		return nil, errors.New("client: blockhash source is required")
	}
	if cfg.Gasless && cfg.FeePayer.IsZero() {
		return nil, errors.New("client: gasless mode requires the sponsor's fee payer key")
	}
	return &Client{
		signer:      cfg.Signer,
		facilitator: cfg.Facilitator,
		blockhash:   cfg.Blockhash,
		gasless:     cfg.Gasless,
		feePayer:    cfg.FeePayer,
	}, nil
}

// Purchase is the outcome of a completed insurance purchase: the proof
// headers for the retried request plus the verified coverage details.
type Purchase struct {
	Proof      string
	Commitment string
	Details    *insurance.InsuranceDetails
}

// PurchaseInsurance answers a 402 challenge: it builds and signs the
// purchase transaction, has the facilitator verify it against live bond
// state, then settles it and returns the proof to retry with.
func (c *Client) PurchaseInsurance(ctx context.Context, challenge *insurance.PaymentChallenge) (*Purchase, error) {
	txBase64, commitmentHex, err := c.buildPurchaseTransaction(ctx, challenge)
	if err != nil {
		return nil, err
	}

	verifyResp, err := c.facilitator.Verify(ctx, txBase64)
	if err != nil {
		return nil, fmt.Errorf("verification request failed: %w", err)
	}
	if !verifyResp.Valid {
		return nil, fmt.Errorf("transaction rejected by facilitator: %s", verifyResp.Reason)
	}

	settleResp, err := c.facilitator.Settle(ctx, txBase64, c.gasless)
	if err != nil {
		return nil, err
	}

	return &Purchase{
		Proof:      settleResp.Signature,
		Commitment: commitmentHex,
		Details:    verifyResp.InsuranceDetails,
	}, nil
}

func (c *Client) buildPurchaseTransaction(ctx context.Context, challenge *insurance.PaymentChallenge) (string, string, error) {
	programID, err := solana.PublicKeyFromBase58(challenge.Details.ProgramID)
	if err != nil {
		return "", "", fmt.Errorf("challenge has invalid program id: %w", err)
	}
	provider, err := solana.PublicKeyFromBase58(challenge.Provider)
	if err != nil {
		return "", "", fmt.Errorf("challenge has invalid provider: %w", err)
	}
	commitment, err := insurance.ParseCommitment(challenge.Details.RequestCommitment)
	if err != nil {
		return "", "", fmt.Errorf("challenge has invalid commitment: %w", err)
	}

	configAddr, _, err := ledger.ConfigAddress(programID)
	if err != nil {
		return "", "", fmt.Errorf("failed to derive config address: %w", err)
	}
	bondAddr, _, err := ledger.ProviderBondAddress(programID, provider)
	if err != nil {
		return "", "", fmt.Errorf("failed to derive bond address: %w", err)
	}
	claimAddr, _, err := ledger.ClaimAddress(programID, commitment)
	if err != nil {
		return "", "", fmt.Errorf("failed to derive claim address: %w", err)
	}

	ix, err := instruction.NewPurchaseInsuranceInstruction(
		programID, configAddr, bondAddr, claimAddr,
		c.signer.PublicKey(), provider,
		instruction.PurchaseInsurance{
			RequestCommitment: commitment,
			PaymentAmount:     challenge.Amount,
			TimeoutMinutes:    challenge.Details.Timeout,
		},
	)
	if err != nil {
		return "", "", fmt.Errorf("failed to build instruction: %w", err)
	}

	blockhash, err := c.blockhash.LatestBlockhash(ctx)
	if err != nil {
		return "", "", fmt.Errorf("failed to fetch recent blockhash: %w", err)
	}

	feePayer := c.signer.PublicKey()
	if c.gasless {
		feePayer = c.feePayer
	}
	tx, err := solana.NewTransaction(
		[]solana.Instruction{ix},
		blockhash,
		solana.TransactionPayer(feePayer),
	)
	if err != nil {
		return "", "", fmt.Errorf("failed to build transaction: %w", err)
	}

	if err := c.signer.SignTransaction(tx); err != nil {
		return "", "", err
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return "", "", fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), challenge.Details.RequestCommitment, nil
}
