package ledger

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	solana "github.com/gagliardetto/solana-go"

	"github.com/x402-foundation/x402-insurance/instruction"
)

// Execute applies every insurance-program instruction in a transaction to
// the ledger. Instructions targeting other programs (compute budget and
// the like) are ignored; a transaction with none of ours is an error.
// Signer requirements are enforced against the transaction's message, so
// the caller identity each operation sees is one the client actually
// signed for.
func (l *Ledger) Execute(_ context.Context, tx *solana.Transaction) error {
	msg := &tx.Message
	executed := 0

	for _, ci := range msg.Instructions {
		if int(ci.ProgramIDIndex) >= len(msg.AccountKeys) {
			return fmt.Errorf("instruction program index out of range")
		}
		if !msg.AccountKeys[ci.ProgramIDIndex].Equals(l.programID) {
			continue
		}

		if err := l.executeInstruction(msg, ci); err != nil {
			return err
		}
		executed++
	}

	if executed == 0 {
		return fmt.Errorf("transaction carries no insurance program instruction")
	}
	return nil
}

func (l *Ledger) executeInstruction(msg *solana.Message, ci solana.CompiledInstruction) error {
	op, err := instruction.Decode(ci.Data)
	if err != nil {
		return err
	}

	keyAt := func(pos int) (solana.PublicKey, error) {
		if pos >= len(ci.Accounts) {
			return solana.PublicKey{}, fmt.Errorf("instruction account %d missing", pos)
		}
		idx := int(ci.Accounts[pos])
		if idx >= len(msg.AccountKeys) {
			return solana.PublicKey{}, fmt.Errorf("instruction account index out of range")
		}
		return msg.AccountKeys[idx], nil
	}
	signerAt := func(pos int) (solana.PublicKey, error) {
		key, err := keyAt(pos)
		if err != nil {
			return solana.PublicKey{}, err
		}
		if !msg.IsSigner(key) {
			return solana.PublicKey{}, ErrUnauthorized.withDetail("account %s must sign", key)
		}
		return key, nil
	}

	switch op := op.(type) {
	case *instruction.Initialize:
		treasury, err := keyAt(instruction.InitializeTreasuryIndex)
		if err != nil {
			return err
		}
		authority, err := signerAt(instruction.InitializeAuthorityIndex)
		if err != nil {
			return err
		}
		return l.Initialize(op.PenaltyRateBps, op.DefaultTimeoutSeconds, op.GracePeriodSeconds, treasury, authority)

	case *instruction.DepositBond:
		provider, err := signerAt(instruction.DepositProviderIndex)
		if err != nil {
			return err
		}
		return l.DepositBond(provider, op.Amount)

	case *instruction.PurchaseInsurance:
		client, err := signerAt(instruction.PurchaseClientIndex)
		if err != nil {
			return err
		}
		provider, err := keyAt(instruction.PurchaseProviderIndex)
		if err != nil {
			return err
		}
		return l.PurchaseInsurance(client, provider, op.RequestCommitment, op.PaymentAmount, op.TimeoutMinutes)

	case *instruction.ConfirmService:
		provider, err := signerAt(instruction.ConfirmProviderIndex)
		if err != nil {
			return err
		}
		return l.ConfirmService(provider, op.RequestCommitment, op.Attestation)

	case *instruction.ClaimInsurance:
		client, err := signerAt(instruction.ClaimClientIndex)
		if err != nil {
			return err
		}
		return l.ClaimInsurance(client, op.RequestCommitment)

	case *instruction.WithdrawBond:
		provider, err := signerAt(instruction.WithdrawProviderIndex)
		if err != nil {
			return err
		}
		return l.WithdrawBond(provider, op.Amount)

	case *instruction.LiquidateProvider:
		// Permissionless: the target is identified by the bond account,
		// which the ledger re-derives per provider; resolve the provider
		// from the bond address.
		bondAddr, err := keyAt(instruction.LiquidateProviderBondIndex)
		if err != nil {
			return err
		}
		provider, err := l.providerForBondAddress(bondAddr)
		if err != nil {
			return err
		}
		return l.LiquidateProvider(provider)

	default:
		return fmt.Errorf("unhandled operation type %T", op)
	}
}

func (l *Ledger) providerForBondAddress(bondAddr solana.PublicKey) (solana.PublicKey, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for provider := range l.bonds {
		addr, _, err := ProviderBondAddress(l.programID, provider)
		if err != nil {
			return solana.PublicKey{}, err
		}
		if addr.Equals(bondAddr) {
			return provider, nil
		}
	}
	return solana.PublicKey{}, ErrBondNotFound
}

// Broadcaster adapts the in-memory ledger to the facilitator's broadcast
// interface, verifying transaction signatures and deduplicating by
// settlement identifier the way the real substrate does. Resubmitting an
// already-landed transaction is a no-op that returns the same
// identifier.
type Broadcaster struct {
	ledger *Ledger

	mu   sync.Mutex
	seen map[solana.Signature]struct{}
}

// NewBroadcaster wraps a ledger as an execution substrate.
func NewBroadcaster(l *Ledger) *Broadcaster {
	return &Broadcaster{
		ledger: l,
		seen:   make(map[solana.Signature]struct{}),
	}
}

// LatestBlockhash returns a fresh validity reference.
func (b *Broadcaster) LatestBlockhash(_ context.Context) (solana.Hash, error) {
	var h solana.Hash
	if _, err := rand.Read(h[:]); err != nil {
		return h, fmt.Errorf("failed to generate blockhash: %w", err)
	}
	return h, nil
}

// SendTransaction verifies the transaction's signatures, executes it
// against the ledger, and returns the first signature as the settlement
// identifier.
func (b *Broadcaster) SendTransaction(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if len(tx.Signatures) == 0 {
		return solana.Signature{}, errors.New("transaction has no signatures")
	}
	if err := tx.VerifySignatures(); err != nil {
		return solana.Signature{}, fmt.Errorf("signature verification failed: %w", err)
	}
	sig := tx.Signatures[0]

	b.mu.Lock()
	if _, dup := b.seen[sig]; dup {
		b.mu.Unlock()
		return sig, nil
	}
	b.mu.Unlock()

	if err := b.ledger.Execute(ctx, tx); err != nil {
		return solana.Signature{}, err
	}

	b.mu.Lock()
	b.seen[sig] = struct{}{}
	b.mu.Unlock()
	return sig, nil
}
