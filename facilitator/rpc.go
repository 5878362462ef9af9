package facilitator

import (
	"context"
	"errors"
	"fmt"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/x402-foundation/x402-insurance/ledger"
)

// RPCStateReader reads on-chain program state for verification. It
// derives the program's account addresses and decodes their contents
// with the ledger codecs.
type RPCStateReader struct {
	client    *rpc.Client
	programID solana.PublicKey
}

// NewRPCStateReader creates a StateReader backed by a JSON-RPC node.
func NewRPCStateReader(client *rpc.Client, programID solana.PublicKey) *RPCStateReader {
	return &RPCStateReader{client: client, programID: programID}
}

// GetConfig fetches and decodes the protocol configuration account.
func (r *RPCStateReader) GetConfig(ctx context.Context) (*ledger.Config, error) {
	addr, _, err := ledger.ConfigAddress(r.programID)
	if err != nil {
		return nil, fmt.Errorf("failed to derive config address: %w", err)
	}
	out, err := r.client.GetAccountInfo(ctx, addr)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ledger.ErrNotInitialized
		}
		return nil, fmt.Errorf("failed to fetch config account: %w", err)
	}
	if out == nil || out.Value == nil {
		return nil, ledger.ErrNotInitialized
	}
	return ledger.UnmarshalConfig(out.Value.Data.GetBinary())
}

// GetProviderBond fetches and decodes a provider's bond account.
func (r *RPCStateReader) GetProviderBond(ctx context.Context, provider solana.PublicKey) (*ledger.ProviderBond, error) {
	addr, _, err := ledger.ProviderBondAddress(r.programID, provider)
	if err != nil {
		return nil, fmt.Errorf("failed to derive bond address: %w", err)
	}
	out, err := r.client.GetAccountInfo(ctx, addr)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ledger.ErrBondNotFound
		}
		return nil, fmt.Errorf("failed to fetch bond account: %w", err)
	}
	if out == nil || out.Value == nil {
		return nil, ledger.ErrBondNotFound
	}
	return ledger.UnmarshalProviderBond(out.Value.Data.GetBinary())
}

// GetClaim fetches and decodes the claim account for a request
// commitment. Used by resource servers gating delivery on claim status.
func (r *RPCStateReader) GetClaim(ctx context.Context, commitment [32]byte) (*ledger.InsuranceClaim, error) {
	addr, _, err := ledger.ClaimAddress(r.programID, commitment)
	if err != nil {
		return nil, fmt.Errorf("failed to derive claim address: %w", err)
	}
	out, err := r.client.GetAccountInfo(ctx, addr)
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return nil, ledger.ErrClaimNotFound
		}
		return nil, fmt.Errorf("failed to fetch claim account: %w", err)
	}
	if out == nil || out.Value == nil {
		return nil, ledger.ErrClaimNotFound
	}
	return ledger.UnmarshalClaim(out.Value.Data.GetBinary())
}

// RPCBroadcaster submits transactions through a JSON-RPC node and polls
// signature status until the requested commitment level is reached.
type RPCBroadcaster struct {
	client       *rpc.Client
	pollInterval time.Duration
	confirmAfter time.Duration
}

// RPCBroadcasterOption configures an RPCBroadcaster.
type RPCBroadcasterOption func(*RPCBroadcaster)

// WithPollInterval sets the status polling cadence.
func WithPollInterval(d time.Duration) RPCBroadcasterOption {
	return func(b *RPCBroadcaster) {
		b.pollInterval = d
	}
}

// WithConfirmTimeout bounds how long SendTransaction waits for
// confirmation before giving up.
func WithConfirmTimeout(d time.Duration) RPCBroadcasterOption {
	return func(b *RPCBroadcaster) {
		b.confirmAfter = d
	}
}

// NewRPCBroadcaster creates a Broadcaster backed by a JSON-RPC node.
func NewRPCBroadcaster(client *rpc.Client, opts ...RPCBroadcasterOption) *RPCBroadcaster {
	b := &RPCBroadcaster{
		client:       client,
		pollInterval: 500 * time.Millisecond,
		confirmAfter: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// LatestBlockhash fetches a recent blockhash at finalized commitment.
func (b *RPCBroadcaster) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	out, err := b.client.GetLatestBlockhash(ctx, rpc.CommitmentFinalized)
	if err != nil {
		return solana.Hash{}, fmt.Errorf("failed to get latest blockhash: %w", err)
	}
	return out.Value.Blockhash, nil
}

// SendTransaction submits the transaction and blocks until it confirms
// or the confirmation window elapses.
func (b *RPCBroadcaster) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	sig, err := b.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: rpc.CommitmentConfirmed,
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("failed to send transaction: %w", err)
	}
	if err := b.awaitConfirmation(ctx, sig); err != nil {
		return solana.Signature{}, err
	}
	return sig, nil
}

func (b *RPCBroadcaster) awaitConfirmation(ctx context.Context, sig solana.Signature) error {
	ctx, cancel := context.WithTimeout(ctx, b.confirmAfter)
	defer cancel()

	ticker := time.NewTicker(b.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return fmt.Errorf("transaction %s not confirmed: %w", sig, ctx.Err())
		case <-ticker.C:
		}

		out, err := b.client.GetSignatureStatuses(ctx, true, sig)
		if err != nil {
			continue
		}
		if len(out.Value) == 0 || out.Value[0] == nil {
			continue
		}
		status := out.Value[0]
		if status.Err != nil {
			return fmt.Errorf("transaction %s failed on chain: %v", sig, status.Err)
		}
		switch status.ConfirmationStatus {
		case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
			return nil
		}
	}
}
