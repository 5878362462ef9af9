// Package client is the orchestrator SDK for the x402-insurance
// challenge cycle: it detects 402 challenges, builds and signs the
// insurance purchase transaction, settles it through a facilitator, and
// retries the original request with proof headers.
package client

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// Signer signs settlement transactions on behalf of the paying client.
type Signer interface {
	PublicKey() solana.PublicKey
	SignTransaction(tx *solana.Transaction) error
}

type privateKeySigner struct {
	key solana.PrivateKey
}

// NewSignerFromPrivateKey wraps a base58-encoded ed25519 private key.
func NewSignerFromPrivateKey(privateKeyBase58 string) (Signer, error) {
	key, err := solana.PrivateKeyFromBase58(privateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &privateKeySigner{key: key}, nil
}

// NewSigner wraps an already-parsed private key.
func NewSigner(key solana.PrivateKey) Signer {
	return &privateKeySigner{key: key}
}

func (s *privateKeySigner) PublicKey() solana.PublicKey {
	return s.key.PublicKey()
}

// SignTransaction signs only this key's slot, leaving other signer
// slots zeroed for later counter-signing by a fee payer.
func (s *privateKeySigner) SignTransaction(tx *solana.Transaction) error {
	messageBytes, err := tx.Message.MarshalBinary()
	if err != nil {
		return fmt.Errorf("failed to serialize message for signing: %w", err)
	}

	signature, err := s.key.Sign(messageBytes)
	if err != nil {
		return fmt.Errorf("failed to sign message: %w", err)
	}

	index, err := tx.GetAccountIndex(s.key.PublicKey())
	if err != nil {
		return fmt.Errorf("signer %s is not an account of the transaction: %w", s.key.PublicKey(), err)
	}
	for int(index) >= len(tx.Signatures) {
		tx.Signatures = append(tx.Signatures, solana.Signature{})
	}
	tx.Signatures[index] = signature
	return nil
}
